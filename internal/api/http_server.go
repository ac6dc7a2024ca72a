package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"bazaar/internal/amm"
	"bazaar/internal/catalog"
	"bazaar/internal/config"
	"bazaar/internal/database"
	"bazaar/internal/domain"
	"bazaar/internal/events"
	"bazaar/internal/export"
	"bazaar/internal/ledger"
	"bazaar/internal/metrics"
	"bazaar/internal/models"
	"bazaar/internal/settlement"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// HTTPServer exposes the marketplace operations over a JSON HTTP API.
//
// The settlement engine expects its calls serialized; the server owns that
// guarantee through opMu, so handlers never touch the engine without it.
type HTTPServer struct {
	cfg       config.APIConfig
	engine    *settlement.Engine
	balances  *ledger.Ledger
	db        *database.DB
	idem      domain.IdempotencyStore
	exportDir string
	logger    zerolog.Logger
	server    *http.Server
	auth      *HTTPAuth

	opMu sync.Mutex
}

func NewHTTPServer(
	cfg config.APIConfig,
	engine *settlement.Engine,
	balances *ledger.Ledger,
	db *database.DB,
	idem domain.IdempotencyStore,
	exportDir string,
	logger *zerolog.Logger,
) *HTTPServer {
	mux := http.NewServeMux()
	srv := &HTTPServer{
		cfg:       cfg,
		engine:    engine,
		balances:  balances,
		db:        db,
		idem:      idem,
		exportDir: exportDir,
		logger:    logger.With().Str("component", "http").Logger(),
	}
	srv.auth = NewHTTPAuth(cfg)

	mux.HandleFunc("/api/v1/items", srv.handleItems)
	mux.HandleFunc("/api/v1/items/", srv.handleItem)
	mux.HandleFunc("/api/v1/journal", srv.handleJournal)
	mux.HandleFunc("/api/v1/export", srv.handleExport)
	mux.HandleFunc("/api/v1/balances/", srv.handleBalances)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("http api listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// handleItems serves the collection: POST creates a listing, GET lists all.
func (s *HTTPServer) handleItems(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"items": s.engine.Catalog().Records()})
	case http.MethodPost:
		s.handleCreateItem(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	type request struct {
		Actor       string `json:"actor"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Quantity    uint32 `json:"quantity"`
		PriceAsset  uint32 `json:"price_asset"`
		PriceAmount uint64 `json:"price_amount"`
	}

	var body request
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	actor, err := s.resolveActor(r, body.Actor)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	item := models.Item{Name: body.Name, Description: body.Description}

	s.opMu.Lock()
	id, err := s.engine.CreateItem(r.Context(), actor, body.Quantity, item, models.AssetID(body.PriceAsset), body.PriceAmount)
	s.opMu.Unlock()
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"item_id": id})
}

// handleItem routes /api/v1/items/{id} and /api/v1/items/{id}/{action}.
func (s *HTTPServer) handleItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/items/")
	idPart, action, _ := strings.Cut(rest, "/")

	rawID, err := strconv.ParseUint(idPart, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	itemID := models.ItemID(rawID)

	switch action {
	case "":
		switch r.Method {
		case http.MethodGet:
			s.handleGetItem(w, itemID)
		case http.MethodPut:
			s.handleUpdateItem(w, r, itemID)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	case "add", "remove":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleAdjustItem(w, r, itemID, action)
	case "purchase":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handlePurchase(w, r, itemID)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *HTTPServer) handleGetItem(w http.ResponseWriter, itemID models.ItemID) {
	rec, ok := s.engine.Catalog().Record(itemID)
	if !ok {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *HTTPServer) handleAdjustItem(w http.ResponseWriter, r *http.Request, itemID models.ItemID, action string) {
	type request struct {
		Actor    string `json:"actor"`
		Quantity uint32 `json:"quantity"`
	}

	var body request
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	actor, err := s.resolveActor(r, body.Actor)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.opMu.Lock()
	if action == "add" {
		err = s.engine.AddItem(r.Context(), actor, itemID, body.Quantity)
	} else {
		err = s.engine.RemoveItem(r.Context(), actor, itemID, body.Quantity)
	}
	quantity, _ := s.engine.Catalog().Quantity(itemID)
	s.opMu.Unlock()
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"item_id": itemID, "quantity": quantity})
}

func (s *HTTPServer) handleUpdateItem(w http.ResponseWriter, r *http.Request, itemID models.ItemID) {
	type request struct {
		Actor       string `json:"actor"`
		Quantity    uint32 `json:"quantity"`
		PriceAsset  uint32 `json:"price_asset"`
		PriceAmount uint64 `json:"price_amount"`
	}

	var body request
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	actor, err := s.resolveActor(r, body.Actor)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.opMu.Lock()
	err = s.engine.UpdateItem(r.Context(), actor, itemID, body.Quantity, models.AssetID(body.PriceAsset), body.PriceAmount)
	s.opMu.Unlock()
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"item_id": itemID})
}

func (s *HTTPServer) handlePurchase(w http.ResponseWriter, r *http.Request, itemID models.ItemID) {
	type request struct {
		Buyer          string `json:"buyer"`
		Quantity       uint32 `json:"quantity"`
		PayingAsset    uint32 `json:"paying_asset"`
		MaxTotalAmount uint64 `json:"max_total_paying_amount"`
	}

	var body request
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Quantity == 0 {
		writeError(w, http.StatusBadRequest, "quantity must be positive")
		return
	}

	buyer, err := s.resolveActor(r, body.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	idemKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idemKey != "" && s.idem != nil {
		reserved, err := s.idem.Reserve(r.Context(), idemKey)
		if err != nil {
			s.logger.Error().Err(err).Msg("idempotency reserve error")
			writeError(w, http.StatusServiceUnavailable, "idempotency check failed")
			return
		}
		if !reserved {
			writeError(w, http.StatusConflict, "duplicate purchase request")
			return
		}
	}

	s.opMu.Lock()
	err = s.engine.PurchaseItem(r.Context(), buyer, body.Quantity, itemID, models.AssetID(body.PayingAsset), body.MaxTotalAmount)
	s.opMu.Unlock()
	if err != nil {
		// Nothing settled, so the same key may be retried.
		if idemKey != "" && s.idem != nil {
			if relErr := s.idem.Release(r.Context(), idemKey); relErr != nil {
				s.logger.Error().Err(relErr).Msg("idempotency release error")
			}
		}
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"item_id": itemID, "quantity": body.Quantity})
}

func (s *HTTPServer) handleJournal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	var (
		entries []database.JournalEntry
		err     error
	)
	if eventType := strings.TrimSpace(r.URL.Query().Get("type")); eventType != "" {
		entries, err = s.db.ListEventsByType(r.Context(), eventType, limit)
	} else {
		entries, err = s.db.ListEvents(r.Context(), limit)
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("list journal error")
		writeError(w, http.StatusInternalServerError, "journal unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"events": entries})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	sales, err := s.db.ListEventsByType(r.Context(), events.EventItemSold, 10_000)
	if err != nil {
		s.logger.Error().Err(err).Msg("load sales for export error")
		writeError(w, http.StatusInternalServerError, "journal unavailable")
		return
	}

	path, err := export.WriteReport(s.exportDir, s.engine.Catalog().Records(), sales)
	if err != nil {
		s.logger.Error().Err(err).Msg("write export error")
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"path": path})
}

func (s *HTTPServer) handleBalances(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	account := strings.TrimPrefix(r.URL.Path, "/api/v1/balances/")
	if account == "" || strings.Contains(account, "/") {
		writeError(w, http.StatusBadRequest, "account is required")
		return
	}

	assets := splitCSV(r.URL.Query().Get("assets"))
	if len(assets) == 0 {
		writeError(w, http.StatusBadRequest, "assets is required")
		return
	}

	balances := make(map[string]uint64, len(assets))
	for _, raw := range assets {
		assetID, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid asset: %s", raw))
			return
		}
		balances[raw] = s.balances.Balance(models.AssetID(assetID), models.AccountID(account))
	}

	writeJSON(w, http.StatusOK, map[string]any{"account": account, "balances": balances})
}

// resolveActor picks the acting account: the authenticated identity when auth
// is enabled, the request body's field otherwise.
func (s *HTTPServer) resolveActor(r *http.Request, fromBody string) (models.AccountID, error) {
	if s.cfg.Auth.Enabled {
		if account, ok := accountFromContext(r.Context()); ok {
			return account, nil
		}
		return "", fmt.Errorf("no authenticated account")
	}
	if strings.TrimSpace(fromBody) == "" {
		return "", fmt.Errorf("account is required")
	}
	return models.AccountID(strings.TrimSpace(fromBody)), nil
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		endpoint := normalizeEndpoint(r.URL.Path)
		metrics.IncHTTP(endpoint, strconv.Itoa(recorder.status))
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// normalizeEndpoint collapses item ids so the metric label stays bounded.
func normalizeEndpoint(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if _, err := strconv.ParseUint(p, 10, 64); err == nil {
			parts[i] = ":id"
		}
	}
	if strings.HasPrefix(path, "/api/v1/balances/") {
		return "/api/v1/balances/:account"
	}
	return strings.Join(parts, "/")
}

func decodeBody(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

// writeEngineError maps domain errors onto HTTP statuses. Validation failures
// are 4xx; anything unrecognized stays 500.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrItemNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, settlement.ErrInsufficientStock),
		errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, amm.ErrPoolNotFound),
		errors.Is(err, amm.ErrInsufficientLiquidity),
		errors.Is(err, settlement.ErrNoPriceSet),
		errors.Is(err, settlement.ErrNoOwner),
		errors.Is(err, catalog.ErrIDSpaceExhausted):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, settlement.ErrPriceTooLow),
		errors.Is(err, settlement.ErrPriceOverflow),
		errors.Is(err, amm.ErrMaxPayingExceeded),
		errors.Is(err, amm.ErrAmountOverflow):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ledger.ErrZeroAmount),
		errors.Is(err, amm.ErrSameAsset):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

type contextKey string

const accountContextKey contextKey = "account"

func accountFromContext(ctx context.Context) (models.AccountID, bool) {
	account, ok := ctx.Value(accountContextKey).(models.AccountID)
	return account, ok
}

// HTTPAuth resolves API keys to accounts and rate-limits per key (per remote
// host when auth is off).
type HTTPAuth struct {
	cfg      config.APIConfig
	clients  map[string]config.APIClientKey
	limiters sync.Map // map[string]*rate.Limiter
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	m := make(map[string]config.APIClientKey, len(cfg.Auth.Keys))
	for _, k := range cfg.Auth.Keys {
		m[k.Key] = k
	}
	return &HTTPAuth{cfg: cfg, clients: m}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.cfg.Auth.Enabled {
			client, err := a.checkAuth(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			r = r.WithContext(context.WithValue(r.Context(), accountContextKey, models.AccountID(client.Account)))
		}

		if err := a.checkRateLimit(r); err != nil {
			writeError(w, http.StatusTooManyRequests, err.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *HTTPAuth) checkAuth(r *http.Request) (config.APIClientKey, error) {
	header := strings.TrimSpace(strings.ToLower(a.cfg.Auth.Header))
	if header == "" {
		header = "x-api-key"
	}

	apiKey := strings.TrimSpace(r.Header.Get(header))
	if apiKey == "" {
		return config.APIClientKey{}, fmt.Errorf("missing api key")
	}

	client, ok := a.clients[apiKey]
	if !ok {
		return config.APIClientKey{}, fmt.Errorf("invalid api key")
	}
	return client, nil
}

func (a *HTTPAuth) checkRateLimit(r *http.Request) error {
	if a.cfg.RateLimit.RPS <= 0 {
		return nil
	}

	lim := a.getLimiter(a.clientKey(r))
	if !lim.Allow() {
		return fmt.Errorf("rate limit exceeded")
	}
	return nil
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	header := strings.TrimSpace(strings.ToLower(a.cfg.Auth.Header))
	if header == "" {
		header = "x-api-key"
	}
	if apiKey := strings.TrimSpace(r.Header.Get(header)); apiKey != "" {
		return apiKey
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return "unknown"
}

func (a *HTTPAuth) getLimiter(key string) *rate.Limiter {
	if v, ok := a.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}

	burst := a.cfg.RateLimit.Burst
	if burst <= 0 {
		burst = 5
	}

	lim := rate.NewLimiter(rate.Limit(a.cfg.RateLimit.RPS), burst)
	actual, loaded := a.limiters.LoadOrStore(key, lim)
	if loaded {
		return actual.(*rate.Limiter)
	}
	return lim
}
