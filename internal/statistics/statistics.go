package statistics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/walllidioooo/storepos/pkg/response"
)

// Service answers read-only reporting queries over the snapshot tables. It
// never mutates anything; all derived numbers come from products_snapshots,
// orders and borrowers as they stand.
type Service struct {
	db *Database
}

// NewService creates a new statistics service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// DashboardKPIs are the headline numbers of the dashboard.
type DashboardKPIs struct {
	TotalSales  float64 `json:"total_sales"`
	TotalProfit float64 `json:"total_profit"`
	TotalOrders int64   `json:"total_orders"`
	TotalDebt   float64 `json:"total_debt"`
}

// ProductSales is one product's total quantity sold.
type ProductSales struct {
	Name      string `json:"name"`
	TotalSold int64  `json:"total_sold"`
}

// ProfitMargin summarizes profit against cost.
type ProfitMargin struct {
	TotalProfit float64 `json:"total_profit"`
	TotalCost   float64 `json:"total_cost"`
}

// ProductStatistics aggregates catalog-wide sales figures.
type ProductStatistics struct {
	TotalProducts     int64        `json:"total_products"`
	TotalQuantitySold int64        `json:"total_quantity_sold"`
	MostSold          ProductSales `json:"most_sold"`
	LeastSold         ProductSales `json:"least_sold"`
	TopRevenue        struct {
		Name    string  `json:"name"`
		Revenue float64 `json:"revenue"`
	} `json:"top_revenue"`
	TotalProfit    float64 `json:"total_profit"`
	StockValueBuy  float64 `json:"stock_value_buy"`
	StockValueSell float64 `json:"stock_value_sell"`
}

// SalesSeries is a bucketed chart series.
type SalesSeries struct {
	Labels   []string  `json:"labels"`
	Sales    []float64 `json:"sales"`
	Profit   []float64 `json:"profit"`
	Accuracy string    `json:"accuracy"`
}

// SeriesOptions selects the time range and bucketing of a sales series.
// Duration is a day count ("7", "30", ...), "all", or "custom" with explicit
// Start/End (YYYY-MM-DD). Accuracy is auto, daily, 3-day, weekly or monthly.
type SeriesOptions struct {
	Duration string
	Start    string
	End      string
	Accuracy string
}

const dayFormat = "2006-01-02"

func (s *Service) GetDashboardKPIs() (*DashboardKPIs, error) {
	return s.db.GetDashboardKPIs()
}

func (s *Service) GetTopSellingProducts() ([]ProductSales, error) {
	return s.db.GetTopSellingProducts(5)
}

func (s *Service) GetProfitMargin() (*ProfitMargin, error) {
	return s.db.GetProfitMargin()
}

func (s *Service) GetProductStatistics() (*ProductStatistics, error) {
	return s.db.GetProductStatistics()
}

// GetSalesSeries builds the chart series: per-day sums over the selected
// range, zero-filled for quiet days, then grouped into buckets sized by the
// requested accuracy.
func (s *Service) GetSalesSeries(opts SeriesOptions) (*SalesSeries, error) {
	start, end, err := s.resolveRange(opts)
	if err != nil {
		return nil, err
	}
	if start == "" {
		// No data at all: a single empty bucket for today.
		today := time.Now().Format(dayFormat)
		return &SalesSeries{
			Labels:   []string{today},
			Sales:    []float64{0},
			Profit:   []float64{0},
			Accuracy: "daily",
		}, nil
	}

	rows, err := s.db.fetchDailySales(start, end)
	if err != nil {
		return nil, err
	}

	byDay := make(map[string]dailyRow, len(rows))
	for _, row := range rows {
		byDay[row.Day] = row
	}

	days, err := dateRange(start, end)
	if err != nil {
		return nil, err
	}
	perDay := make([]dailyRow, len(days))
	for i, day := range days {
		row := byDay[day]
		perDay[i] = dailyRow{Day: day, Sales: row.Sales, Profit: row.Profit}
	}

	accuracy := opts.Accuracy
	if accuracy == "" || accuracy == "auto" {
		switch {
		case len(days) <= 45:
			accuracy = "daily"
		case len(days) <= 180:
			accuracy = "3-day"
		case len(days) <= 1000:
			accuracy = "weekly"
		default:
			accuracy = "monthly"
		}
	}

	series := bucketSeries(perDay, accuracy)
	series.Accuracy = accuracy
	return series, nil
}

func (s *Service) resolveRange(opts SeriesOptions) (string, string, error) {
	switch opts.Duration {
	case "custom":
		if opts.Start == "" || opts.End == "" {
			return "", "", fmt.Errorf("custom duration requires start and end dates")
		}
		return opts.Start, opts.End, nil
	case "all":
		return s.db.snapshotDateBounds()
	default:
		days, err := strconv.Atoi(opts.Duration)
		if err != nil || days <= 0 {
			days = 7
		}
		end := time.Now()
		start := end.AddDate(0, 0, -(days - 1))
		return start.Format(dayFormat), end.Format(dayFormat), nil
	}
}

func bucketSeries(perDay []dailyRow, accuracy string) *SalesSeries {
	series := &SalesSeries{}

	switch accuracy {
	case "3-day":
		for i := 0; i < len(perDay); i += 3 {
			chunk := perDay[i:min(i+3, len(perDay))]
			label := chunk[0].Day
			if len(chunk) > 1 {
				label = chunk[0].Day + " to " + chunk[len(chunk)-1].Day
			}
			var sales, profit float64
			for _, row := range chunk {
				sales += row.Sales
				profit += row.Profit
			}
			series.Labels = append(series.Labels, label)
			series.Sales = append(series.Sales, sales)
			series.Profit = append(series.Profit, profit)
		}

	case "weekly":
		type bucket struct {
			sales, profit float64
		}
		weeks := make(map[string]*bucket)
		var order []string
		for _, row := range perDay {
			day, _ := time.Parse(dayFormat, row.Day)
			monday := day.AddDate(0, 0, -((int(day.Weekday()) + 6) % 7))
			key := monday.Format(dayFormat)
			b, ok := weeks[key]
			if !ok {
				b = &bucket{}
				weeks[key] = b
				order = append(order, key)
			}
			b.sales += row.Sales
			b.profit += row.Profit
		}
		for _, key := range order {
			monday, _ := time.Parse(dayFormat, key)
			series.Labels = append(series.Labels, key+" to "+monday.AddDate(0, 0, 6).Format(dayFormat))
			series.Sales = append(series.Sales, weeks[key].sales)
			series.Profit = append(series.Profit, weeks[key].profit)
		}

	case "monthly":
		type bucket struct {
			sales, profit float64
		}
		months := make(map[string]*bucket)
		var order []string
		for _, row := range perDay {
			key := row.Day[:7] // YYYY-MM
			b, ok := months[key]
			if !ok {
				b = &bucket{}
				months[key] = b
				order = append(order, key)
			}
			b.sales += row.Sales
			b.profit += row.Profit
		}
		for _, key := range order {
			series.Labels = append(series.Labels, key)
			series.Sales = append(series.Sales, months[key].sales)
			series.Profit = append(series.Profit, months[key].profit)
		}

	default: // daily
		for _, row := range perDay {
			series.Labels = append(series.Labels, row.Day)
			series.Sales = append(series.Sales, row.Sales)
			series.Profit = append(series.Profit, row.Profit)
		}
	}

	return series
}

func dateRange(start, end string) ([]string, error) {
	first, err := time.Parse(dayFormat, start)
	if err != nil {
		return nil, fmt.Errorf("invalid start date %q: %w", start, err)
	}
	last, err := time.Parse(dayFormat, end)
	if err != nil {
		return nil, fmt.Errorf("invalid end date %q: %w", end, err)
	}

	var days []string
	for cur := first; !cur.After(last); cur = cur.AddDate(0, 0, 1) {
		days = append(days, cur.Format(dayFormat))
	}
	return days, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// GinHandlers contains HTTP handlers for statistics endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

func (h *GinHandlers) DashboardHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		kpis, err := h.service.GetDashboardKPIs()
		response.Handle(c, kpis, err)
	}
}

// SalesSeriesHandler handles GET requests for the bucketed sales chart.
// Query parameters: duration, start, end, accuracy.
func (h *GinHandlers) SalesSeriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		series, err := h.service.GetSalesSeries(SeriesOptions{
			Duration: c.DefaultQuery("duration", "7"),
			Start:    c.Query("start"),
			End:      c.Query("end"),
			Accuracy: c.DefaultQuery("accuracy", "auto"),
		})
		response.Handle(c, series, err)
	}
}

func (h *GinHandlers) TopProductsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		top, err := h.service.GetTopSellingProducts()
		response.Handle(c, top, err)
	}
}

func (h *GinHandlers) ProfitMarginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		margin, err := h.service.GetProfitMargin()
		response.Handle(c, margin, err)
	}
}

func (h *GinHandlers) ProductStatisticsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := h.service.GetProductStatistics()
		response.Handle(c, stats, err)
	}
}
