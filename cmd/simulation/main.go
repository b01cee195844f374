package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/walllidioooo/storepos/internal/auth"
	"github.com/walllidioooo/storepos/internal/backup"
	"github.com/walllidioooo/storepos/internal/borrowers"
	"github.com/walllidioooo/storepos/internal/catalog"
	"github.com/walllidioooo/storepos/internal/config"
	"github.com/walllidioooo/storepos/internal/database"
	"github.com/walllidioooo/storepos/internal/orders"
	"github.com/walllidioooo/storepos/internal/statistics"
	"github.com/walllidioooo/storepos/internal/types"
	"github.com/walllidioooo/storepos/pkg/middleware"
)

const (
	minOrders     = 30
	maxOrders     = 200
	numWorkers    = 5
	numProducts   = 25
	numBorrowers  = 8
	serverAddress = "http://localhost:8080"
)

var productNames = []string{
	"Rice 5kg", "Sugar 1kg", "Cooking Oil 1L", "Flour 1kg", "Tea 250g",
	"Coffee 200g", "Milk Powder", "Tomato Paste", "Pasta 500g", "Lentils 1kg",
	"Soap Bar", "Shampoo", "Toothpaste", "Detergent 2kg", "Bleach 1L",
	"Canned Tuna", "Sardines", "Chickpeas 1kg", "Dates 500g", "Olives 400g",
	"Juice 1L", "Soda 2L", "Water 6x1.5L", "Biscuits", "Chocolate Bar",
}

var borrowerNames = []string{
	"Ahmed", "Fatima", "Youssef", "Amina", "Karim", "Leila", "Omar", "Sara",
}

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))
	median = rs.durations[len(rs.durations)/2]

	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient handles HTTP communication with the store API
type simulationClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	stats     map[string]*routeStats
}

// newSimulationClient creates and initializes a new simulation client
// It authenticates with the API and prepares performance tracking
func newSimulationClient() (*simulationClient, error) {
	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	sc := &simulationClient{
		baseURL: serverAddress,
		client:  client,
		stats: map[string]*routeStats{
			"auth":     {name: "Authentication"},
			"product":  {name: "Create Product"},
			"order":    {name: "Place Order"},
			"delete":   {name: "Delete Order"},
			"borrower": {name: "Add Borrower"},
			"link":     {name: "Link Order"},
			"stats":    {name: "Statistics"},
		},
	}

	token, err := sc.authenticate()
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	sc.authToken = token

	return sc, nil
}

// authenticate performs API authentication and returns a JWT token
func (sc *simulationClient) authenticate() (string, error) {
	start := time.Now()
	defer func() {
		sc.stats["auth"].addDuration(time.Since(start))
	}()

	cfg := config.Load()
	credentials := map[string]string{
		"api_key":    cfg.APIKey,
		"api_secret": cfg.APISecret,
	}

	body, err := json.Marshal(credentials)
	if err != nil {
		return "", err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/token", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("authentication failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Token string `json:"jwt_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	return result.Data.Token, nil
}

// doJSON performs an authenticated request and decodes the API envelope into out
func (sc *simulationClient) doJSON(method, path string, payload interface{}, idempotent bool, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, sc.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+sc.authToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotent {
		req.Header.Set("Idempotency-Key", uuid.New().String())
	}

	resp, err := sc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("path", path).Str("response", string(respBody)).Msg("API response")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%s %s failed with status %d: %s", method, path, resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
		}
	}
	return nil
}

// createProduct seeds one catalog product and returns its barcode
func (sc *simulationClient) createProduct(name string, priceBuy, priceSell float64, stock int64) (int64, error) {
	start := time.Now()
	defer func() {
		sc.stats["product"].addDuration(time.Since(start))
	}()

	payload := map[string]interface{}{
		"name":         name,
		"price_buy":    priceBuy,
		"price_sell":   priceSell,
		"stock":        stock,
		"stock_danger": 5,
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			ID int64 `json:"id"`
		} `json:"data"`
	}
	if err := sc.doJSON("POST", "/api/v1/products", payload, false, &result); err != nil {
		sc.stats["product"].failures++
		return 0, err
	}
	if result.Data.ID == 0 {
		return 0, fmt.Errorf("no product ID in response")
	}
	return result.Data.ID, nil
}

// placeOrder submits a new order and returns the order ID
func (sc *simulationClient) placeOrder(lines []types.OrderLine) (uint, error) {
	start := time.Now()
	defer func() {
		sc.stats["order"].addDuration(time.Since(start))
	}()

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			OrderID uint `json:"order_id"`
		} `json:"data"`
	}
	payload := map[string]interface{}{"lines": lines}
	if err := sc.doJSON("POST", "/api/v1/orders", payload, true, &result); err != nil {
		sc.stats["order"].failures++
		return 0, err
	}
	if result.Data.OrderID == 0 {
		return 0, fmt.Errorf("no order ID in response")
	}
	return result.Data.OrderID, nil
}

// deleteOrder reverses a live order
func (sc *simulationClient) deleteOrder(orderID uint) error {
	start := time.Now()
	defer func() {
		sc.stats["delete"].addDuration(time.Since(start))
	}()

	if err := sc.doJSON("DELETE", fmt.Sprintf("/api/v1/orders/%d", orderID), nil, false, nil); err != nil {
		sc.stats["delete"].failures++
		return err
	}
	return nil
}

// addBorrower registers a borrower and returns their id
func (sc *simulationClient) addBorrower(name string) (uint, error) {
	start := time.Now()
	defer func() {
		sc.stats["borrower"].addDuration(time.Since(start))
	}()

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			BorrowerID uint `json:"borrower_id"`
		} `json:"data"`
	}
	payload := map[string]interface{}{"name": name}
	if err := sc.doJSON("POST", "/api/v1/borrowers", payload, false, &result); err != nil {
		sc.stats["borrower"].failures++
		return 0, err
	}
	return result.Data.BorrowerID, nil
}

// linkOrder converts an order into a borrower debt record
// Returns whether the link happened (false means already linked)
func (sc *simulationClient) linkOrder(borrowerID, orderID uint) (bool, error) {
	start := time.Now()
	defer func() {
		sc.stats["link"].addDuration(time.Since(start))
	}()

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Linked bool   `json:"linked"`
			Reason string `json:"reason"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/api/v1/borrowers/%d/orders/%d", borrowerID, orderID)
	if err := sc.doJSON("POST", path, nil, false, &result); err != nil {
		sc.stats["link"].failures++
		return false, err
	}
	return result.Data.Linked, nil
}

// fetchDashboard pulls the end-of-run KPIs
func (sc *simulationClient) fetchDashboard() (*statistics.DashboardKPIs, error) {
	start := time.Now()
	defer func() {
		sc.stats["stats"].addDuration(time.Since(start))
	}()

	var result struct {
		Success bool                     `json:"success"`
		Data    statistics.DashboardKPIs `json:"data"`
	}
	if err := sc.doJSON("GET", "/api/v1/statistics/dashboard", nil, false, &result); err != nil {
		sc.stats["stats"].failures++
		return nil, err
	}
	return &result.Data, nil
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\nAPI Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	for _, stats := range sc.stats {
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			stats.name,
			stats.totalCalls,
			stats.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

// main runs a store-day simulation: seed the catalog, hammer the order
// ledger from concurrent workers, put a share of the orders on credit,
// reverse a few, then read the dashboard back.
func main() {
	go func() {
		if err := startServer(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for server to start
	time.Sleep(2 * time.Second)

	simClient, err := newSimulationClient()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize simulation client")
	}

	// Seed catalog
	var productIDs []int64
	for i := 0; i < numProducts; i++ {
		name := productNames[i%len(productNames)]
		priceBuy := float64(rand.Intn(80)+10) / 2
		priceSell := priceBuy * (1.2 + rand.Float64()*0.5)
		stock := int64(rand.Intn(80) + 40)

		id, err := simClient.createProduct(name, priceBuy, priceSell, stock)
		if err != nil {
			log.Error().Err(err).Str("name", name).Msg("Failed to create product")
			continue
		}
		productIDs = append(productIDs, id)
	}
	log.Info().Int("products", len(productIDs)).Msg("Catalog seeded")

	// Seed borrowers
	var borrowerIDs []uint
	for _, name := range borrowerNames[:numBorrowers] {
		id, err := simClient.addBorrower(name)
		if err != nil {
			log.Error().Err(err).Str("name", name).Msg("Failed to add borrower")
			continue
		}
		borrowerIDs = append(borrowerIDs, id)
	}

	targetOrders := rand.Intn(maxOrders-minOrders) + minOrders
	log.Info().Int("target_orders", targetOrders).Msg("Starting simulation")

	ordersChan := make(chan uint, targetOrders)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			placeOrdersHTTP(workerID, targetOrders/numWorkers, productIDs, simClient, ordersChan)
		}(i)
	}

	wg.Wait()
	close(ordersChan)

	var orderIDs []uint
	for orderID := range ordersChan {
		orderIDs = append(orderIDs, orderID)
	}
	log.Info().Int("orders_created", len(orderIDs)).Msg("All orders created")

	stats := struct {
		TotalOrders   int
		LinkedOrders  int
		RejectedLinks int
		DeletedOrders int
		FailedLinks   int
		FailedDeletes int
		StartTime     time.Time
	}{
		StartTime:   time.Now(),
		TotalOrders: len(orderIDs),
	}

	// Put roughly a third of the orders on credit; re-link a few on purpose
	// to exercise the duplicate-link rejection.
	for i, orderID := range orderIDs {
		if i%3 != 0 || len(borrowerIDs) == 0 {
			continue
		}
		borrowerID := borrowerIDs[rand.Intn(len(borrowerIDs))]

		linked, err := simClient.linkOrder(borrowerID, orderID)
		if err != nil {
			stats.FailedLinks++
			log.Error().Err(err).Uint("order_id", orderID).Msg("Failed to link order")
			continue
		}
		if linked {
			stats.LinkedOrders++
		}

		if i%9 == 0 {
			second := borrowerIDs[rand.Intn(len(borrowerIDs))]
			linkedAgain, err := simClient.linkOrder(second, orderID)
			if err == nil && !linkedAgain {
				stats.RejectedLinks++
			}
		}
	}

	// Reverse a handful of orders, including linked ones: their borrower
	// history must survive.
	for i, orderID := range orderIDs {
		if i%6 != 0 {
			continue
		}
		if err := simClient.deleteOrder(orderID); err != nil {
			stats.FailedDeletes++
			log.Error().Err(err).Uint("order_id", orderID).Msg("Failed to delete order")
			continue
		}
		stats.DeletedOrders++
	}

	kpis, err := simClient.fetchDashboard()
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch dashboard")
		kpis = &statistics.DashboardKPIs{}
	}

	duration := time.Since(stats.StartTime)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("STORE SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Printf(`
Order Statistics
----------------
Total Orders:     %d
Linked to Credit: %d
Duplicate Links Rejected: %d
Deleted Orders:   %d
Failed Links:     %d
Failed Deletes:   %d
Duration:         %v

Dashboard
---------
Total Sales:      %.2f
Total Profit:     %.2f
Total Orders:     %d
Outstanding Debt: %.2f
`, stats.TotalOrders, stats.LinkedOrders, stats.RejectedLinks, stats.DeletedOrders,
		stats.FailedLinks, stats.FailedDeletes, duration.Round(time.Millisecond),
		kpis.TotalSales, kpis.TotalProfit, kpis.TotalOrders, kpis.TotalDebt)

	fmt.Println(strings.Repeat("=", 80))

	simClient.printPerformanceStats()
}

// placeOrdersHTTP generates and submits random orders to the API
// Runs as a worker goroutine, sending created order IDs to ordersChan
func placeOrdersHTTP(workerID, numOrders int, productIDs []int64, simClient *simulationClient, ordersChan chan<- uint) {
	for i := 0; i < numOrders; i++ {
		numLines := rand.Intn(3) + 1
		lines := make([]types.OrderLine, 0, numLines)
		for j := 0; j < numLines; j++ {
			lines = append(lines, types.OrderLine{
				ProductID: productIDs[rand.Intn(len(productIDs))],
				Quantity:  int64(rand.Intn(4) + 1),
			})
		}

		orderID, err := simClient.placeOrder(lines)
		if err != nil {
			// Insufficient stock is an expected outcome late in the run.
			log.Warn().Err(err).Int("worker_id", workerID).Msg("Failed to place order")
			continue
		}

		ordersChan <- orderID
		log.Info().
			Int("worker_id", workerID).
			Uint("order_id", orderID).
			Int("lines", len(lines)).
			Msg("Order placed")

		time.Sleep(time.Duration(rand.Intn(200)) * time.Millisecond)
	}
}

// startServer initializes and starts the store API server
// Sets up all required services, handlers and routes
func startServer() error {
	cfg := config.Load()
	cfg.DatabasePath = "simulation.db"

	db, err := database.NewDatabase(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	authService := auth.NewService(cfg.JWTSecret)
	authService.RegisterAPICredentials(cfg.APIKey, cfg.APISecret)
	authHandlers := auth.NewGinHandlers(authService)

	catalogHandlers := catalog.NewGinHandlers(catalog.NewService(db))
	orderHandlers := orders.NewGinHandlers(orders.NewService(db))
	borrowerHandlers := borrowers.NewGinHandlers(borrowers.NewService(db))
	statisticsHandlers := statistics.NewGinHandlers(statistics.NewService(db))
	backupHandlers := backup.NewGinHandlers(backup.NewService(db))

	// No rate limiting here: the whole point is to hammer the API.
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	v1 := router.Group("/api/v1")
	{
		v1.POST("/auth/token", authHandlers.GenerateTokenHandler())

		protected := v1.Group("")
		protected.Use(middleware.JWTAuth(cfg.JWTSecret))
		{
			protected.POST("/products", catalogHandlers.CreateProductHandler())
			protected.GET("/products", catalogHandlers.ListProductsHandler())

			protected.POST("/orders", orderHandlers.PlaceOrderHandler())
			protected.DELETE("/orders/:order_id", orderHandlers.DeleteOrderHandler())

			protected.POST("/borrowers", borrowerHandlers.AddBorrowerHandler())
			protected.POST("/borrowers/:borrower_id/orders/:order_id", borrowerHandlers.LinkOrderHandler())

			protected.GET("/statistics/dashboard", statisticsHandlers.DashboardHandler())

			protected.GET("/backup/export", backupHandlers.ExportHandler())
		}
	}

	return router.Run(":" + cfg.Port)
}
