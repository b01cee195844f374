package backup

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/walllidioooo/storepos/pkg/response"
)

// Service exports and imports the whole database as one binary blob and
// remembers where the last import came from.
type Service struct {
	db *gorm.DB
}

// NewService creates a new backup service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{db: gormDB}
}

// Export serializes the live database.
func (s *Service) Export() ([]byte, error) {
	data, err := ExportBinary(s.db)
	if err != nil {
		return nil, err
	}
	log.Info().Int("bytes", len(data)).Msg("database exported")
	return data, nil
}

// Import replaces the live database contents with the uploaded blob. When
// fileID is non-empty it is remembered as the last import source.
func (s *Service) Import(data []byte, fileID string) error {
	if err := ImportBinary(s.db, data); err != nil {
		return err
	}

	if fileID != "" {
		if err := s.RememberImportID(fileID); err != nil {
			return err
		}
	}

	log.Info().
		Int("bytes", len(data)).
		Str("file_id", fileID).
		Msg("database imported")
	return nil
}

// RememberImportID upserts the single import_id_table row.
func (s *Service) RememberImportID(fileID string) error {
	record := ImportRecord{ID: 1, FileID: fileID}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"file_id": fileID}),
	}).Create(&record).Error
}

// LastImportID returns the remembered import source id, or empty when none
// was ever recorded.
func (s *Service) LastImportID() (string, error) {
	var record ImportRecord
	if err := s.db.Where("id = ?", 1).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return record.FileID, nil
}

// GinHandlers contains HTTP handlers for backup endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// ExportHandler handles GET requests downloading the database blob.
func (h *GinHandlers) ExportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		data, err := h.service.Export()
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}

		filename := fmt.Sprintf("store_database_%s.db", time.Now().Format("2006-01-02"))
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Data(200, "application/octet-stream", data)
	}
}

// ImportHandler handles POST requests uploading a database blob (multipart
// field "file", optional form value "file_id" naming the external source).
func (h *GinHandlers) ImportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		file, err := c.FormFile("file")
		if err != nil {
			response.BadRequest(c, "file is required")
			return
		}

		src, err := file.Open()
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}
		defer src.Close()

		data, err := io.ReadAll(src)
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}

		if err := h.service.Import(data, c.PostForm("file_id")); err != nil {
			if errors.Is(err, ErrInvalidDatabase) {
				response.BadRequest(c, err.Error())
				return
			}
			response.InternalError(c, err.Error())
			return
		}
		response.Success(c, gin.H{"message": "database imported successfully"})
	}
}

// LastImportIDHandler handles GET requests for the remembered import source.
func (h *GinHandlers) LastImportIDHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		fileID, err := h.service.LastImportID()
		response.Handle(c, gin.H{"file_id": fileID}, err)
	}
}
