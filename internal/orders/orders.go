package orders

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/walllidioooo/storepos/internal/types"
	"github.com/walllidioooo/storepos/pkg/response"
)

var (
	// ErrEmptyOrder rejects an order with no lines before any transaction starts.
	ErrEmptyOrder = errors.New("cannot create an empty order")
	// ErrProductNotFound aborts order placement when a line references an
	// unknown product id.
	ErrProductNotFound = errors.New("product not found")
	// ErrOrderNotFound is returned when an operation targets an order that no
	// longer exists.
	ErrOrderNotFound = errors.New("order not found")
)

// InsufficientStockError carries what the presentation layer needs to show:
// which product, how much is left, how much was asked for.
type InsufficientStockError struct {
	Product   string
	Available int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %q: available %d, requested %d",
		e.Product, e.Available, e.Requested)
}

// Service is the order ledger: it creates and reverses live orders,
// snapshotting product state and adjusting catalog stock atomically.
type Service struct {
	db *Database
}

// NewService creates a new order ledger service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// ListOptions controls sorting and pagination of the order listing.
type ListOptions struct {
	SortBy    string // date, price_sell or profit
	Ascending bool
	Limit     int
	Offset    int
}

// PlaceOrder creates an order from the given lines with idempotency support.
// An unexpired record for the same key returns the previously created order
// id instead of placing a second order.
func (s *Service) PlaceOrder(lines []types.OrderLine, idempotencyKey string) (uint, error) {
	if len(lines) == 0 {
		return 0, ErrEmptyOrder
	}

	if idempotencyKey != "" {
		record, err := s.db.GetIdempotencyRecord(idempotencyKey)
		if err != nil {
			return 0, err
		}
		if record != nil && record.ExpiresAt.After(time.Now()) {
			log.Debug().
				Str("idempotency_key", idempotencyKey).
				Uint("order_id", record.OrderID).
				Msg("returning existing order for idempotency key")
			return record.OrderID, nil
		}
	}

	orderID, err := s.db.CreateOrder(lines, idempotencyKey)
	if err != nil {
		return 0, err
	}

	log.Info().
		Uint("order_id", orderID).
		Int("lines", len(lines)).
		Msg("order placed")

	return orderID, nil
}

// DeleteOrder reverses a live order: stock comes back, the order and its
// snapshot lines go away. Borrower history linked to the order is untouched.
func (s *Service) DeleteOrder(orderID uint) error {
	if err := s.db.DeleteOrder(orderID); err != nil {
		return err
	}

	log.Info().Uint("order_id", orderID).Msg("order deleted, borrower history preserved")
	return nil
}

func (s *Service) GetOrder(orderID uint) (*types.Order, error) {
	return s.db.GetOrder(orderID)
}

func (s *Service) GetOrdersWithTotal(opts ListOptions) ([]types.OrderWithTotal, error) {
	return s.db.GetOrdersWithTotal(opts)
}

func (s *Service) GetProductsInOrder(orderID uint, limit, offset int) ([]types.OrderProductLine, error) {
	return s.db.GetProductsInOrder(orderID, limit, offset)
}

func (s *Service) CountOrders() (int64, error) {
	return s.db.CountOrders()
}

func (s *Service) CountProductsInOrder(orderID uint) (int64, error) {
	return s.db.CountProductsInOrder(orderID)
}

func (s *Service) GetOrderStatistics() (*types.OrderStatistics, error) {
	return s.db.GetOrderStatistics()
}

// GinHandlers contains HTTP handlers for order ledger endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

type placeOrderRequest struct {
	Lines []types.OrderLine `json:"lines" binding:"required"`
}

// PlaceOrderHandler handles POST requests to place a new order.
// An Idempotency-Key header protects against double submission.
func (h *GinHandlers) PlaceOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		idempotencyKey := c.GetHeader("Idempotency-Key")

		var req placeOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		orderID, err := h.service.PlaceOrder(req.Lines, idempotencyKey)
		if err != nil {
			respondError(c, err)
			return
		}

		response.Success(c, gin.H{"order_id": orderID})
	}
}

// DeleteOrderHandler handles DELETE requests to reverse a live order.
func (h *GinHandlers) DeleteOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, err := parseOrderID(c)
		if err != nil {
			response.BadRequest(c, "invalid order id")
			return
		}

		if err := h.service.DeleteOrder(orderID); err != nil {
			respondError(c, err)
			return
		}
		response.Success(c, gin.H{"message": "order deleted successfully"})
	}
}

// ListOrdersHandler handles GET requests for the paginated order listing.
// Query parameters: sort_by (date|price_sell|profit), ascending, limit, offset.
func (h *GinHandlers) ListOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		opts := ListOptions{
			SortBy:    c.DefaultQuery("sort_by", "date"),
			Ascending: c.Query("ascending") == "true",
			Limit:     intQuery(c, "limit", 5),
			Offset:    intQuery(c, "offset", 0),
		}

		rows, err := h.service.GetOrdersWithTotal(opts)
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}

		total, err := h.service.CountOrders()
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}

		response.Success(c, gin.H{
			"orders": rows,
			"total":  total,
		})
	}
}

// GetOrderProductsHandler handles GET requests for an order's snapshot lines.
func (h *GinHandlers) GetOrderProductsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, err := parseOrderID(c)
		if err != nil {
			response.BadRequest(c, "invalid order id")
			return
		}

		lines, err := h.service.GetProductsInOrder(orderID, intQuery(c, "limit", 100), intQuery(c, "offset", 0))
		response.Handle(c, lines, err)
	}
}

// GetOrderStatisticsHandler handles GET requests for aggregate order statistics.
func (h *GinHandlers) GetOrderStatisticsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := h.service.GetOrderStatistics()
		response.Handle(c, stats, err)
	}
}

// respondError maps ledger errors onto HTTP responses: invalid input is a
// 400, missing references a 404, a stock shortfall a 409 whose message
// carries product, available and requested.
func respondError(c *gin.Context, err error) {
	var stockErr *InsufficientStockError
	switch {
	case errors.Is(err, ErrEmptyOrder):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrProductNotFound), errors.Is(err, ErrOrderNotFound):
		response.NotFound(c, err.Error())
	case errors.As(err, &stockErr):
		response.Conflict(c, err.Error())
	default:
		response.Handle(c, nil, err)
	}
}

func parseOrderID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("order_id"), 10, 64)
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
