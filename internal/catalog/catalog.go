package catalog

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/walllidioooo/storepos/pkg/response"
)

// Service owns the live product catalog: identity, pricing and stock levels.
// The order ledger reads prices and adjusts stock through the same tables,
// but all direct product maintenance happens here.
type Service struct {
	db *Database
}

// NewService creates a new catalog service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// ListOptions controls sorting and pagination of product listings.
type ListOptions struct {
	SortBy       string
	Ascending    bool
	Limit        int
	Offset       int
	LowStockOnly bool
}

// generateBarcode builds an 18-digit numeric barcode from the millisecond
// timestamp (13 digits) plus 5 random digits. Used when a product is created
// without a scanned code.
func generateBarcode() int64 {
	timestamp := time.Now().UnixMilli()
	random := rand.Int63n(100000)
	return timestamp*100000 + random
}

// AddProduct inserts a product under a freshly generated barcode.
func (s *Service) AddProduct(name string, priceBuy, priceSell float64, stock, stockDanger *int64) (*Product, error) {
	return s.AddProductWithID(generateBarcode(), name, priceBuy, priceSell, stock, stockDanger)
}

// AddProductWithID inserts a product under an explicit barcode, the path used
// when a scan finds no existing item.
func (s *Service) AddProductWithID(id int64, name string, priceBuy, priceSell float64, stock, stockDanger *int64) (*Product, error) {
	product := &Product{
		ID:          id,
		Name:        name,
		PriceBuy:    priceBuy,
		PriceSell:   priceSell,
		Stock:       stock,
		StockDanger: stockDanger,
		CreatedAt:   time.Now(),
	}

	if err := s.db.CreateProduct(product); err != nil {
		return nil, fmt.Errorf("failed to create product %d: %w", id, err)
	}

	log.Info().
		Int64("product_id", id).
		Str("name", name).
		Msg("product added to catalog")

	return product, nil
}

// GetProduct returns the product for a barcode, or nil when absent.
func (s *Service) GetProduct(id int64) (*Product, error) {
	return s.db.GetProduct(id)
}

// UpdateProduct applies a partial column update to a product.
func (s *Service) UpdateProduct(id int64, updates map[string]interface{}) error {
	return s.db.UpdateProduct(id, updates)
}

// DeleteProduct removes a product from the live catalog. Snapshot rows that
// reference it keep their copied fields and are unaffected.
func (s *Service) DeleteProduct(id int64) error {
	return s.db.DeleteProduct(id)
}

func (s *Service) ListProducts(opts ListOptions) ([]Product, error) {
	return s.db.ListProducts(opts)
}

func (s *Service) SearchProducts(keyword string, opts ListOptions) ([]Product, error) {
	return s.db.SearchProducts(keyword, opts)
}

func (s *Service) CountProducts() (int64, error) {
	return s.db.CountProducts()
}

// GinHandlers contains HTTP handlers for catalog endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

type createProductRequest struct {
	ID          *int64  `json:"id"`
	Name        string  `json:"name" binding:"required"`
	PriceBuy    float64 `json:"price_buy"`
	PriceSell   float64 `json:"price_sell"`
	Stock       *int64  `json:"stock"`
	StockDanger *int64  `json:"stock_danger"`
}

// CreateProductHandler handles POST requests to add a product.
// A product with an explicit id comes from a barcode scan; otherwise a
// barcode is generated.
func (h *GinHandlers) CreateProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		var product *Product
		var err error
		if req.ID != nil {
			product, err = h.service.AddProductWithID(*req.ID, req.Name, req.PriceBuy, req.PriceSell, req.Stock, req.StockDanger)
		} else {
			product, err = h.service.AddProduct(req.Name, req.PriceBuy, req.PriceSell, req.Stock, req.StockDanger)
		}
		response.Handle(c, product, err)
	}
}

// GetProductHandler handles GET requests for a single product by barcode.
func (h *GinHandlers) GetProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("product_id"), 10, 64)
		if err != nil {
			response.BadRequest(c, "invalid product id")
			return
		}

		product, err := h.service.GetProduct(id)
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}
		if product == nil {
			response.NotFound(c, "Product not found")
			return
		}
		response.Success(c, product)
	}
}

// UpdateProductHandler handles PUT requests applying a partial update.
func (h *GinHandlers) UpdateProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("product_id"), 10, 64)
		if err != nil {
			response.BadRequest(c, "invalid product id")
			return
		}

		var updates map[string]interface{}
		if err := c.ShouldBindJSON(&updates); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if err := h.service.UpdateProduct(id, updates); err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, gin.H{"message": "product updated successfully"})
	}
}

// DeleteProductHandler handles DELETE requests for a product.
func (h *GinHandlers) DeleteProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("product_id"), 10, 64)
		if err != nil {
			response.BadRequest(c, "invalid product id")
			return
		}

		if err := h.service.DeleteProduct(id); err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, gin.H{"message": "product deleted successfully"})
	}
}

// ListProductsHandler handles GET requests for the paginated product list.
// Query parameters: sort_by, ascending, limit, offset, low_stock, search.
func (h *GinHandlers) ListProductsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		opts := ListOptions{
			SortBy:       c.DefaultQuery("sort_by", "created_at"),
			Ascending:    c.Query("ascending") == "true",
			Limit:        intQuery(c, "limit", 100),
			Offset:       intQuery(c, "offset", 0),
			LowStockOnly: c.Query("low_stock") == "true",
		}

		var products []Product
		var err error
		if keyword := c.Query("search"); keyword != "" {
			products, err = h.service.SearchProducts(keyword, opts)
		} else {
			products, err = h.service.ListProducts(opts)
		}
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}

		total, err := h.service.CountProducts()
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}

		response.Success(c, gin.H{
			"products": products,
			"total":    total,
		})
	}
}

func intQuery(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}
