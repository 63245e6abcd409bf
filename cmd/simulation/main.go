package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hiiliketocode/polycopy-sub003/internal/auth"
	"github.com/hiiliketocode/polycopy-sub003/internal/backfill"
	"github.com/hiiliketocode/polycopy-sub003/internal/clob"
	"github.com/hiiliketocode/polycopy-sub003/internal/custody"
	"github.com/hiiliketocode/polycopy-sub003/internal/database"
	"github.com/hiiliketocode/polycopy-sub003/internal/orders"
	"github.com/hiiliketocode/polycopy-sub003/internal/traders"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	numWorkers      = 5
	ordersPerWorker = 10
	serverAddress   = "http://localhost:8080"
)

var (
	tokenIDs = []string{
		"71321045679252212594626385532706912750332728571942532289631379312455583992563",
		"52114319501245915516055106046884209969926127482827954674443846427813813222426",
		"21742633143463906290569050155826241533067272736897614950488156847949938836455",
	}
	copiedWallets = []string{
		"0x8ba1f109551bd432803012645ac136ddd64dba72",
		"0xab5801a7d398351b8be11c439e05c5b3259aec9b",
		"0x1db3439a222c519ab44bb1144fc28167b4fa6ee6",
	}
	sides = []string{"BUY", "SELL"}
)

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// simulationClient drives the order API over HTTP like a real caller would
type simulationClient struct {
	baseURL   string
	authToken string
	client    *http.Client
}

func newSimulationClient() (*simulationClient, error) {
	sc := &simulationClient{
		baseURL: serverAddress,
		client:  &http.Client{Timeout: 10 * time.Second},
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
	credentials := map[string]string{
		"api_key":    auth.DevAPIKey,
		"api_secret": auth.DevAPISecret,
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
		Data struct {
			Token string `json:"jwt_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if result.Data.Token == "" {
		return "", fmt.Errorf("no token in response")
	}
	return result.Data.Token, nil
}

type placementOutcome struct {
	OK         bool   `json:"ok"`
	OrderID    string `json:"orderId"`
	Error      string `json:"error"`
	ErrorType  string `json:"errorType"`
	Idempotent bool   `json:"idempotent"`
}

// placeOrder submits one order and returns the decoded result
func (sc *simulationClient) placeOrder(payload map[string]interface{}) (*placementOutcome, int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequest(
		"POST",
		fmt.Sprintf("%s/api/v1/orders", sc.baseURL),
		bytes.NewBuffer(body),
	)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))
	req.Header.Set("Content-Type", "application/json")

	resp, err := sc.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var outcome placementOutcome
	if err := json.NewDecoder(resp.Body).Decode(&outcome); err != nil {
		return nil, resp.StatusCode, err
	}
	return &outcome, resp.StatusCode, nil
}

// refreshCopiedOrders triggers a reconciliation pass
func (sc *simulationClient) refreshCopiedOrders() error {
	req, err := http.NewRequest(
		"POST",
		fmt.Sprintf("%s/api/v1/copied-orders/refresh", sc.baseURL),
		nil,
	)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))

	resp, err := sc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("refresh failed with status: %d", resp.StatusCode)
	}
	return nil
}

// main runs the copy-trading simulation against an in-process server backed
// by stub exchange and custody services
func main() {
	exchange := startStubExchange()
	defer exchange.Close()
	custodySrv := startStubCustody()
	defer custodySrv.Close()

	go func() {
		if err := startServer(exchange.URL, custodySrv.URL); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for server to start
	time.Sleep(2 * time.Second)

	simClient, err := newSimulationClient()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize simulation client")
	}

	log.Info().Int("workers", numWorkers).Int("orders_per_worker", ordersPerWorker).Msg("Starting simulation")

	var (
		mu        sync.Mutex
		placed    int
		rejected  int
		replayed  int
		intentIDs []string
	)

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for j := 0; j < ordersPerWorker; j++ {
				intentID := uuid.New().String()
				payload := map[string]interface{}{
					"tokenId":            tokenIDs[rand.Intn(len(tokenIDs))],
					"price":              0.10 + rand.Float64()*0.80,
					"amount":             float64(rand.Intn(50)+5) + rand.Float64(),
					"side":               sides[rand.Intn(len(sides))],
					"orderType":          "GTC",
					"confirm":            true,
					"orderIntentId":      intentID,
					"copiedTraderWallet": copiedWallets[rand.Intn(len(copiedWallets))],
					"marketTitle":        fmt.Sprintf("Simulated market %d", rand.Intn(100)),
				}

				outcome, status, err := simClient.placeOrder(payload)
				if err != nil {
					log.Error().Err(err).Int("worker_id", workerID).Msg("Failed to place order")
					continue
				}

				mu.Lock()
				if outcome.OK {
					placed++
					intentIDs = append(intentIDs, intentID)
				} else {
					rejected++
				}
				mu.Unlock()

				log.Info().
					Int("worker_id", workerID).
					Int("status", status).
					Bool("ok", outcome.OK).
					Str("order_id", outcome.OrderID).
					Str("error_type", outcome.ErrorType).
					Msg("Order placed")

				time.Sleep(time.Duration(rand.Intn(200)) * time.Millisecond)
			}
		}(i)
	}
	wg.Wait()

	// Replay a few intents to exercise the idempotency path
	for _, intentID := range intentIDs[:min(5, len(intentIDs))] {
		payload := map[string]interface{}{
			"tokenId":       tokenIDs[0],
			"price":         0.50,
			"amount":        10.0,
			"side":          "BUY",
			"orderType":     "GTC",
			"confirm":       true,
			"orderIntentId": intentID,
		}
		outcome, _, err := simClient.placeOrder(payload)
		if err != nil {
			log.Error().Err(err).Msg("Failed to replay intent")
			continue
		}
		if outcome.Idempotent {
			replayed++
		}
	}

	if err := simClient.refreshCopiedOrders(); err != nil {
		log.Error().Err(err).Msg("Failed to refresh copied orders")
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("COPY-TRADING SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Orders placed:    %d\n", placed)
	fmt.Printf("Orders rejected:  %d\n", rejected)
	fmt.Printf("Intents replayed: %d\n", replayed)
	fmt.Println(strings.Repeat("=", 60))

	log.Info().
		Int("placed", placed).
		Int("rejected", rejected).
		Int("replayed", replayed).
		Msg("Simulation completed")
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// startStubExchange serves a minimal CLOB API: tick sizes, order posting
// and order status lookups. A small slice of posts is rejected to exercise
// the rejection path.
func startStubExchange() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/tick-size", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]float64{"minimum_tick_size": 0.01})
	})
	mux.HandleFunc("/order", func(w http.ResponseWriter, r *http.Request) {
		if rand.Intn(10) == 0 {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"success":  false,
				"errorMsg": "not enough balance / allowance",
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"orderId": "0x" + uuid.New().String(),
			"status":  "live",
		})
	})
	mux.HandleFunc("/data/order/", func(w http.ResponseWriter, r *http.Request) {
		statuses := []string{"live", "matched", "cancelled"}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":           strings.TrimPrefix(r.URL.Path, "/data/order/"),
			"status":       statuses[rand.Intn(len(statuses))],
			"size_matched": fmt.Sprintf("%.2f", rand.Float64()*10),
		})
	})
	return httptest.NewServer(mux)
}

// startStubCustody serves wallet lookups and order signing
func startStubCustody() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/signers/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/sign-order") {
			json.NewEncoder(w).Encode(map[string]string{
				"signature": "0x" + strings.Repeat("ab", 65),
				"address":   "0x05fc40e3a4cdd9b0b3fbc1ab2f0e8a07a0a16dcf",
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"address":        "0x05fc40e3a4cdd9b0b3fbc1ab2f0e8a07a0a16dcf",
			"signature_type": 1,
			"api_key":        "sim-owner-key",
		})
	})
	return httptest.NewServer(mux)
}

// startServer initializes and starts the order API against the stub
// backends, using an on-disk database dedicated to the simulation
func startServer(exchangeURL, custodyURL string) error {
	db, err := database.NewDatabase("simulation.db")
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	authService := auth.NewService("simulation-secret-key")
	authService.RegisterAPICredentials(auth.DevAPIKey, auth.DevAPISecret)

	// The stub exchange stands in for the proxy too; any non-empty proxy
	// satisfies the submitter's fail-closed check.
	exchangeClient := clob.NewClient(exchangeURL, exchangeURL, 10*time.Second)
	custodyClient := custody.NewClient(custodyURL, "", 10*time.Second)

	queue := backfill.NewQueue(db)
	tradersService := traders.NewService(db, exchangeClient, queue)

	submitter := orders.NewSubmitter(exchangeClient, custodyClient, 10*time.Second)
	ordersService := orders.NewService(db, submitter, exchangeClient, tradersService, orders.Config{
		IdempotencyFailOpen: true,
		DefaultTickSize:     0.01,
	})

	router := gin.Default()
	authHandlers := auth.NewGinHandlers(authService)
	ordersHandlers := orders.NewGinHandlers(ordersService)
	tradersHandlers := traders.NewGinHandlers(tradersService)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/auth/token", authHandlers.GenerateTokenHandler())

		// Simulation runs without JWT middleware; handlers fall back to the
		// claims set below.
		authed := v1.Group("")
		authed.Use(func(c *gin.Context) {
			c.Set("clientID", "SIM_CLIENT")
			c.Next()
		})
		{
			authed.POST("/orders", ordersHandlers.PlaceOrderHandler())
			authed.GET("/orders/:intent_id", ordersHandlers.GetOrderIntentHandler())
			authed.GET("/copied-orders", tradersHandlers.ListCopiedOrdersHandler())
			authed.POST("/copied-orders/refresh", tradersHandlers.RefreshCopiedOrdersHandler())
		}
	}

	return router.Run(":8080")
}
