package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/attributionops/attribution-engine/internal/attribution"
	"github.com/attributionops/attribution-engine/internal/config"
	"github.com/attributionops/attribution-engine/internal/database"
	"github.com/attributionops/attribution-engine/internal/metrics"
	"github.com/attributionops/attribution-engine/internal/middleware"
	"github.com/attributionops/attribution-engine/internal/reporting"
	"github.com/attributionops/attribution-engine/internal/storage"
	"github.com/attributionops/attribution-engine/internal/tracking"
)

const dateLayout = "2006-01-02"

// Dependencies holds all external dependencies for the server.
type Dependencies struct {
	DB         *database.PostgresDB
	ClickHouse *database.ClickHouseDB
	Redis      *database.RedisDB
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *metrics.Metrics

	// RateLimit is the shared rate limiter; main owns it so it can run the
	// periodic limiter cleanup. Nil constructs a local one.
	RateLimit *middleware.RateLimitMiddleware

	// Store overrides the warehouse wiring. Used by tests and demo mode.
	Store storage.Warehouse
}

// Server wraps HTTP handlers and the attribution services.
type Server struct {
	engine    *attribution.Engine
	reporting *reporting.Service
	tracking  *tracking.Service
	redis     *database.RedisDB
	logger    *zap.Logger
	config    *config.Config
	metrics   *metrics.Metrics
}

// NewServer constructs a new http.Handler with all routes registered.
func NewServer(deps *Dependencies) http.Handler {
	store := deps.Store
	if store == nil {
		// Fall back to the in-memory warehouse for any backend that is not
		// connected, so the engine stays usable in demo mode.
		mem := storage.NewInMemoryWarehouse()

		var events storage.EventReader = mem
		if deps.ClickHouse != nil {
			events = storage.NewClickHouseEventStore(deps.ClickHouse.Conn)
		}

		var ledger storage.LedgerReader = mem
		if deps.DB != nil {
			ledger = storage.NewPostgresLedger(deps.DB.Pool)
		}

		store = storage.NewWarehouse(events, ledger)
	}

	engine := attribution.NewEngine(store, deps.Logger)
	reportingSvc := reporting.NewService(store, engine, deps.Logger)
	trackingSvc := tracking.NewService(store, deps.Logger)

	s := &Server{
		engine:    engine,
		reporting: reportingSvc,
		tracking:  trackingSvc,
		redis:     deps.Redis,
		logger:    deps.Logger,
		config:    deps.Config,
		metrics:   deps.Metrics,
	}

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", s.handleHealth)

	// Prometheus metrics
	if deps.Config.Metrics.Enabled {
		mux.Handle(deps.Config.Metrics.Path, metrics.Handler())
	}

	// Attribution
	mux.HandleFunc("/attribution/run", s.handleRun)
	mux.HandleFunc("/attribution/day-totals", s.handleDayTotals)

	// Reporting
	mux.HandleFunc("/reports/build", s.handleBuildReport)

	// Tracking diagnostics
	mux.HandleFunc("/tracking/health", s.handleTrackingHealth)

	// Ad ledgers
	mux.HandleFunc("/ads/platforms", s.handlePlatforms)
	mux.HandleFunc("/ads/spend", s.handleSpend)
	mux.HandleFunc("/ads/reported-value", s.handleReportedValue)

	rl := deps.RateLimit
	if rl == nil {
		var redisClient *redis.Client
		if deps.Redis != nil {
			redisClient = deps.Redis.Client
		}
		rl = middleware.NewRateLimitMiddleware(deps.Config.RateLimit, redisClient, deps.Metrics, deps.Logger)
	}

	var handler http.Handler = mux
	handler = rl.Handler(handler)
	handler = middleware.NewLoggingMiddleware(deps.Logger, deps.Metrics).Handler(handler)
	handler = middleware.NewRecoveryMiddleware(deps.Logger).Handler(handler)

	return handler
}

// ---- Health Check ----

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// ---- Attribution ----

type runRequest struct {
	StartDate      string  `json:"start_date"`
	EndDate        string  `json:"end_date"`
	Model          string  `json:"model"`
	LookbackDays   *int    `json:"lookback_days"`
	ConversionType string  `json:"conversion_type"`
	ValueType      string  `json:"value_type"`
	DateBasis      string  `json:"date_basis"`
	HalfLifeDays   float64 `json:"half_life_days"`
}

// paramsFromRequest validates a run request and applies configured defaults.
func (s *Server) paramsFromRequest(req runRequest) (attribution.Params, error) {
	var p attribution.Params

	start, err := time.ParseInLocation(dateLayout, req.StartDate, time.UTC)
	if err != nil {
		return p, errors.New("start_date must be YYYY-MM-DD")
	}
	end, err := time.ParseInLocation(dateLayout, req.EndDate, time.UTC)
	if err != nil {
		return p, errors.New("end_date must be YYYY-MM-DD")
	}
	if end.Before(start) {
		return p, errors.New("end_date must not be before start_date")
	}

	modelName := req.Model
	if modelName == "" {
		modelName = s.config.Attribution.DefaultModel
	}
	model, err := attribution.ParseModel(modelName)
	if err != nil {
		return p, err
	}

	valueType, err := attribution.ParseValueType(req.ValueType)
	if err != nil {
		return p, err
	}

	basis, err := attribution.ParseDateBasis(req.DateBasis)
	if err != nil {
		return p, err
	}

	lookback := s.config.Attribution.DefaultLookbackDays
	if req.LookbackDays != nil {
		lookback = *req.LookbackDays
	}
	if lookback < 0 {
		return p, errors.New("lookback_days must not be negative")
	}

	conversionType := req.ConversionType
	if conversionType == "" {
		conversionType = "Purchase"
	}

	halfLife := req.HalfLifeDays
	if halfLife == 0 {
		halfLife = s.config.Attribution.DefaultHalfLifeDays
	}

	return attribution.Params{
		StartDate:      start,
		EndDate:        end,
		Model:          model,
		LookbackDays:   lookback,
		ConversionType: conversionType,
		ValueType:      valueType,
		DateBasis:      basis,
		HalfLifeDays:   halfLife,
	}, nil
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return
	}

	params, err := s.paramsFromRequest(req)
	if err != nil {
		s.errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	start := time.Now()
	result, err := s.engine.Run(r.Context(), params)
	if err != nil {
		if isConfigError(err) {
			s.errorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.logger.Error("attribution run failed", zap.Error(err))
		if s.metrics != nil {
			s.metrics.RecordRun(params.Model.String(), "error", time.Since(start), 0, 0, 0)
		}
		s.errorResponse(w, "attribution run failed", http.StatusBadGateway)
		return
	}

	if s.metrics != nil {
		s.metrics.RecordRun(params.Model.String(), "ok", time.Since(start), result.OrdersProcessed, result.UnattributedOrders, len(result.Rows))
	}
	s.markLastRun(r, result.RunID)

	s.jsonResponse(w, result)
}

func (s *Server) handleDayTotals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return
	}

	params, err := s.paramsFromRequest(req)
	if err != nil {
		s.errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := s.engine.DayTotals(r.Context(), params)
	if err != nil {
		if isConfigError(err) {
			s.errorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.logger.Error("day totals failed", zap.Error(err))
		s.errorResponse(w, "day totals failed", http.StatusBadGateway)
		return
	}

	s.jsonResponse(w, result)
}

// ---- Reporting ----

type reportRequest struct {
	runRequest
	ReportName string `json:"report_name"`
	Currency   string `json:"currency"`
	Breakdown  string `json:"breakdown"`
	Platform   string `json:"platform"`
}

func (s *Server) handleBuildReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return
	}

	params, err := s.paramsFromRequest(req.runRequest)
	if err != nil {
		s.errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	breakdownName := req.Breakdown
	if breakdownName == "" {
		breakdownName = "campaign"
	}
	breakdown, err := reporting.ParseBreakdown(breakdownName)
	if err != nil {
		s.errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = s.config.Attribution.DefaultCurrency
	}

	start := time.Now()
	report, err := s.reporting.BuildReport(r.Context(), reporting.Inputs{
		ReportName:     req.ReportName,
		StartDate:      params.StartDate,
		EndDate:        params.EndDate,
		Currency:       currency,
		Model:          params.Model,
		LookbackDays:   params.LookbackDays,
		ConversionType: params.ConversionType,
		DateBasis:      params.DateBasis,
		HalfLifeDays:   params.HalfLifeDays,
		Breakdown:      breakdown,
		Platform:       req.Platform,
	})
	if err != nil {
		if isConfigError(err) {
			s.errorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.logger.Error("report build failed", zap.Error(err))
		if s.metrics != nil {
			s.metrics.RecordReport(breakdown.String(), "error", time.Since(start))
		}
		s.errorResponse(w, "report build failed", http.StatusBadGateway)
		return
	}

	if s.metrics != nil {
		s.metrics.RecordReport(breakdown.String(), "ok", time.Since(start))
	}
	s.markLastRun(r, report.RunID)

	s.jsonResponse(w, report)
}

// ---- Tracking diagnostics ----

func (s *Server) handleTrackingHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health, err := s.tracking.Check(r.Context())
	if err != nil {
		s.logger.Error("tracking health failed", zap.Error(err))
		s.errorResponse(w, "tracking health failed", http.StatusBadGateway)
		return
	}

	if s.metrics != nil {
		s.metrics.UpdateTrackingHealth(health.TrackingPercentage, health.ClickIDCoverage, health.OrderSourceCoverage)
	}

	s.jsonResponse(w, health)
}

// ---- Ad ledgers ----

func (s *Server) handlePlatforms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	platforms, err := s.reporting.ListPlatforms(r.Context())
	if err != nil {
		s.logger.Error("failed to list platforms", zap.Error(err))
		s.errorResponse(w, "failed to list platforms", http.StatusBadGateway)
		return
	}

	s.jsonResponse(w, map[string]interface{}{"platforms": platforms})
}

// ledgerQuery reads the shared GET query parameters for the ledger
// aggregation endpoints.
func (s *Server) ledgerQuery(r *http.Request) (start, end time.Time, platform string, breakdown reporting.Breakdown, err error) {
	q := r.URL.Query()

	start, err = time.ParseInLocation(dateLayout, q.Get("start_date"), time.UTC)
	if err != nil {
		return start, end, "", 0, errors.New("start_date must be YYYY-MM-DD")
	}
	end, err = time.ParseInLocation(dateLayout, q.Get("end_date"), time.UTC)
	if err != nil {
		return start, end, "", 0, errors.New("end_date must be YYYY-MM-DD")
	}
	if end.Before(start) {
		return start, end, "", 0, errors.New("end_date must not be before start_date")
	}

	breakdownName := q.Get("breakdown")
	if breakdownName == "" {
		breakdownName = "campaign"
	}
	breakdown, err = reporting.ParseBreakdown(breakdownName)
	if err != nil {
		return start, end, "", 0, err
	}

	return start, end, q.Get("platform"), breakdown, nil
}

func (s *Server) handleSpend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start, end, platform, breakdown, err := s.ledgerQuery(r)
	if err != nil {
		s.errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	rows, err := s.reporting.AggregateSpend(r.Context(), start, end, platform, breakdown)
	if err != nil {
		s.logger.Error("failed to aggregate spend", zap.Error(err))
		s.errorResponse(w, "failed to aggregate spend", http.StatusBadGateway)
		return
	}

	s.jsonResponse(w, map[string]interface{}{
		"breakdown": breakdown.String(),
		"rows":      rows,
	})
}

func (s *Server) handleReportedValue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start, end, platform, breakdown, err := s.ledgerQuery(r)
	if err != nil {
		s.errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	conversionType := r.URL.Query().Get("conversion_type")
	if conversionType == "" {
		conversionType = "Purchase"
	}

	rows, err := s.reporting.AggregateReportedValue(r.Context(), start, end, platform, conversionType, breakdown)
	if err != nil {
		s.logger.Error("failed to aggregate reported value", zap.Error(err))
		s.errorResponse(w, "failed to aggregate reported value", http.StatusBadGateway)
		return
	}

	s.jsonResponse(w, map[string]interface{}{
		"breakdown": breakdown.String(),
		"rows":      rows,
	})
}

// ---- Helpers ----

// markLastRun records the last run ID and time in Redis for dashboards.
// Best effort, never blocks the response.
func (s *Server) markLastRun(r *http.Request, runID string) {
	if s.redis == nil {
		return
	}
	now := strconv.FormatInt(time.Now().UTC().Unix(), 10)
	s.redis.Client.HSet(r.Context(), "attribution:last_run", "run_id", runID, "ts", now)
}

// isConfigError reports whether the error is a request configuration error
// rather than a warehouse failure.
func isConfigError(err error) bool {
	return errors.Is(err, attribution.ErrInvalidModel) ||
		errors.Is(err, attribution.ErrInvalidValueType) ||
		errors.Is(err, attribution.ErrInvalidDateBasis) ||
		errors.Is(err, attribution.ErrUnsupportedConversionType) ||
		errors.Is(err, reporting.ErrInvalidBreakdown)
}

func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
