package borrowers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/walllidioooo/storepos/pkg/response"
)

// ErrOrderNotFound is returned when linking targets an order that was
// deleted before the link happened. Unlike a duplicate link, this is a hard
// failure.
var ErrOrderNotFound = errors.New("order not found")

// Service is the borrower ledger: it maintains borrower identity and the
// running debt balance, and converts live orders into permanent historical
// snapshots exactly once per order.
type Service struct {
	db *Database
}

// NewService creates a new borrower ledger service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// AddBorrower inserts a borrower and returns the new id.
func (s *Service) AddBorrower(name string, date time.Time, amount float64) (uint, error) {
	borrower := &Borrower{
		Name:   name,
		Date:   date,
		Amount: amount,
	}
	if err := s.db.CreateBorrower(borrower); err != nil {
		return 0, err
	}

	log.Info().
		Uint("borrower_id", borrower.ID).
		Str("name", name).
		Msg("borrower added")

	return borrower.ID, nil
}

func (s *Service) GetBorrower(id uint) (*Borrower, error) {
	return s.db.GetBorrower(id)
}

// LinkOrderToBorrower converts a live order's value into a permanent debt
// record against the borrower. The one place a live order's financial state
// is frozen into history.
func (s *Service) LinkOrderToBorrower(orderID, borrowerID uint) (*LinkResult, error) {
	logger := log.With().
		Uint("order_id", orderID).
		Uint("borrower_id", borrowerID).
		Str("service", "borrowers").
		Logger()

	result, err := s.db.LinkOrder(orderID, borrowerID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to link order to borrower")
		return nil, err
	}

	if !result.Linked {
		logger.Info().Str("reason", result.Reason).Msg("link rejected")
		return result, nil
	}

	logger.Info().Msg("order linked to borrower")
	return result, nil
}

// GetSnapshotOrdersForBorrower returns the borrower's debt history, newest
// first, with the frozen product lines of each snapshot attached.
func (s *Service) GetSnapshotOrdersForBorrower(borrowerID uint) ([]BorrowerOrder, error) {
	return s.db.GetSnapshotOrders(borrowerID)
}

// UpdateBorrowerAmountDirect overwrites the cached running total without
// recomputing from snapshot history. Unsafe escape hatch for manual
// correction; callers who want consistency should use RecalculateAmount.
func (s *Service) UpdateBorrowerAmountDirect(borrowerID uint, amount float64) error {
	if err := s.db.UpdateAmount(borrowerID, amount); err != nil {
		return err
	}
	log.Warn().
		Uint("borrower_id", borrowerID).
		Float64("amount", amount).
		Msg("borrower amount overwritten directly")
	return nil
}

// RecalculateAmount rewrites the borrower's running total from the sum of
// their order snapshot totals and returns the new value.
func (s *Service) RecalculateAmount(borrowerID uint) (float64, error) {
	return s.db.RecalculateAmount(borrowerID)
}

// DeleteBorrower removes the borrower and cascades over their whole snapshot
// history.
func (s *Service) DeleteBorrower(borrowerID uint) error {
	if err := s.db.DeleteBorrower(borrowerID); err != nil {
		return err
	}
	log.Info().Uint("borrower_id", borrowerID).Msg("borrower and snapshot history deleted")
	return nil
}

// GetBorrowers lists borrowers matching a name substring, sorted by date or
// amount, paginated.
func (s *Service) GetBorrowers(search, sortBy string, ascending bool, limit, offset int) ([]Borrower, error) {
	return s.db.ListBorrowers(search, sortBy, ascending, limit, offset)
}

func (s *Service) CountBorrowers(search string) (int64, error) {
	return s.db.CountBorrowers(search)
}

// GinHandlers contains HTTP handlers for borrower ledger endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

type addBorrowerRequest struct {
	Name   string    `json:"name" binding:"required"`
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
}

// AddBorrowerHandler handles POST requests to register a borrower.
func (h *GinHandlers) AddBorrowerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req addBorrowerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		if req.Date.IsZero() {
			req.Date = time.Now()
		}

		id, err := h.service.AddBorrower(req.Name, req.Date, req.Amount)
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}
		response.Success(c, gin.H{"borrower_id": id})
	}
}

// ListBorrowersHandler handles GET requests for the paginated borrower list.
// Query parameters: search, sort_by (date|amount), ascending, limit, offset.
func (h *GinHandlers) ListBorrowersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		search := c.Query("search")
		list, err := h.service.GetBorrowers(
			search,
			c.DefaultQuery("sort_by", "date"),
			c.Query("ascending") == "true",
			intQuery(c, "limit", 10),
			intQuery(c, "offset", 0),
		)
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}

		total, err := h.service.CountBorrowers(search)
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}

		response.Success(c, gin.H{
			"borrowers": list,
			"total":     total,
		})
	}
}

// LinkOrderHandler handles POST requests linking an order to a borrower.
// A duplicate link returns 200 with linked=false; a vanished order is a 404.
func (h *GinHandlers) LinkOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		borrowerID, err := parseID(c, "borrower_id")
		if err != nil {
			response.BadRequest(c, "invalid borrower id")
			return
		}
		orderID, err := parseID(c, "order_id")
		if err != nil {
			response.BadRequest(c, "invalid order id")
			return
		}

		result, err := h.service.LinkOrderToBorrower(orderID, borrowerID)
		if err != nil {
			if errors.Is(err, ErrOrderNotFound) {
				response.NotFound(c, err.Error())
				return
			}
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, result)
	}
}

// GetSnapshotOrdersHandler handles GET requests for a borrower's debt history.
func (h *GinHandlers) GetSnapshotOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		borrowerID, err := parseID(c, "borrower_id")
		if err != nil {
			response.BadRequest(c, "invalid borrower id")
			return
		}

		history, err := h.service.GetSnapshotOrdersForBorrower(borrowerID)
		response.Handle(c, history, err)
	}
}

type updateAmountRequest struct {
	Amount float64 `json:"amount"`
}

// UpdateAmountHandler handles PUT requests overwriting the running total.
func (h *GinHandlers) UpdateAmountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		borrowerID, err := parseID(c, "borrower_id")
		if err != nil {
			response.BadRequest(c, "invalid borrower id")
			return
		}

		var req updateAmountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if err := h.service.UpdateBorrowerAmountDirect(borrowerID, req.Amount); err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, gin.H{"message": "borrower amount updated successfully"})
	}
}

// RecalculateAmountHandler handles POST requests recomputing the running
// total from snapshot history.
func (h *GinHandlers) RecalculateAmountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		borrowerID, err := parseID(c, "borrower_id")
		if err != nil {
			response.BadRequest(c, "invalid borrower id")
			return
		}

		amount, err := h.service.RecalculateAmount(borrowerID)
		response.Handle(c, gin.H{"amount": amount}, err)
	}
}

// DeleteBorrowerHandler handles DELETE requests cascading over the
// borrower's history.
func (h *GinHandlers) DeleteBorrowerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		borrowerID, err := parseID(c, "borrower_id")
		if err != nil {
			response.BadRequest(c, "invalid borrower id")
			return
		}

		if err := h.service.DeleteBorrower(borrowerID); err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, gin.H{"message": "borrower deleted successfully"})
	}
}

func parseID(c *gin.Context, param string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(param), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

func intQuery(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}
