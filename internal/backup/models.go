package backup

// ImportRecord remembers the external identifier of the last imported
// database file (a cloud drive file id). Single-row table, id pinned to 1.
type ImportRecord struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	FileID string `gorm:"not null" json:"file_id"`
}

func (ImportRecord) TableName() string { return "import_id_table" }
