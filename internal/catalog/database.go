package catalog

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// updatableColumns whitelists the columns a partial update may touch.
var updatableColumns = map[string]bool{
	"name":         true,
	"price_buy":    true,
	"price_sell":   true,
	"stock":        true,
	"stock_danger": true,
}

// sortableColumns whitelists listing sort fields.
var sortableColumns = map[string]bool{
	"id":         true,
	"name":       true,
	"price_buy":  true,
	"price_sell": true,
	"stock":      true,
	"created_at": true,
}

func (d *Database) CreateProduct(product *Product) error {
	return d.db.Create(product).Error
}

func (d *Database) GetProduct(id int64) (*Product, error) {
	var product Product
	if err := d.db.Where("id = ?", id).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

func (d *Database) UpdateProduct(id int64, updates map[string]interface{}) error {
	for column := range updates {
		if !updatableColumns[column] {
			return fmt.Errorf("column %q cannot be updated", column)
		}
	}
	if len(updates) == 0 {
		return nil
	}

	result := d.db.Model(&Product{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (d *Database) DeleteProduct(id int64) error {
	return d.db.Where("id = ?", id).Delete(&Product{}).Error
}

func (d *Database) ListProducts(opts ListOptions) ([]Product, error) {
	sortBy := opts.SortBy
	if !sortableColumns[sortBy] {
		sortBy = "created_at"
	}
	direction := "DESC"
	if opts.Ascending {
		direction = "ASC"
	}

	query := d.db.Model(&Product{})
	if opts.LowStockOnly {
		query = query.Where("stock IS NOT NULL AND stock_danger IS NOT NULL AND stock < stock_danger")
	}

	var products []Product
	err := query.
		Order(sortBy + " " + direction).
		Limit(opts.Limit).
		Offset(opts.Offset).
		Find(&products).Error
	return products, err
}

func (d *Database) SearchProducts(keyword string, opts ListOptions) ([]Product, error) {
	sortBy := opts.SortBy
	if !sortableColumns[sortBy] {
		sortBy = "name"
	}
	direction := "DESC"
	if opts.Ascending {
		direction = "ASC"
	}

	pattern := "%" + keyword + "%"
	var products []Product
	err := d.db.
		Where("name LIKE ? OR CAST(id AS TEXT) LIKE ?", pattern, pattern).
		Order(sortBy + " " + direction).
		Limit(opts.Limit).
		Offset(opts.Offset).
		Find(&products).Error
	return products, err
}

func (d *Database) CountProducts() (int64, error) {
	var count int64
	err := d.db.Model(&Product{}).Count(&count).Error
	return count, err
}
