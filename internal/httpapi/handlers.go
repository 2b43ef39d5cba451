package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"wastechem.org/internal/audit"
	"wastechem.org/internal/auth"
	"wastechem.org/internal/datasvc"
	"wastechem.org/internal/inventory"
	"wastechem.org/internal/obs"
	"wastechem.org/internal/storage"
)

const serviceName = "wastechem-api"

// ReadyProbe reports whether the data service answers.
type ReadyProbe interface {
	Ping(ctx context.Context) error
}

// Authorizer checks that an identity holds every listed permission.
type Authorizer interface {
	Require(ctx context.Context, id auth.Identity, perms ...string) error
}

// Deps are the collaborators wired by cmd/api.
type Deps struct {
	Ready      ReadyProbe
	Verifier   auth.Verifier
	Authorizer Authorizer
	Directory  *auth.Directory
	Inventory  *inventory.Service
	Recorder   *audit.Recorder
	Uploader   *storage.Uploader
	// Receiver redeems signed uploads; nil when uploads go to the hosted storage service.
	Receiver *storage.Receiver
	Logger   *slog.Logger
	Version  string

	CORSOrigins    []string
	TrustedProxies TrustedProxies
	RateBurst      int
	RatePerSec     float64
	MaxBodyBytes   int64
}

// API is the HTTP layer.
type API struct {
	router     chi.Router
	ready      ReadyProbe
	verifier   auth.Verifier
	authz      Authorizer
	directory  *auth.Directory
	inventory  *inventory.Service
	recorder   *audit.Recorder
	uploader   *storage.Uploader
	receiver   *storage.Receiver
	logger     *slog.Logger
	version    string
	origins    []string
	proxies    TrustedProxies
	rateBurst  int
	ratePerSec float64
	maxBody    int64
}

func New(d Deps) *API {
	a := &API{
		ready:      d.Ready,
		verifier:   d.Verifier,
		authz:      d.Authorizer,
		directory:  d.Directory,
		inventory:  d.Inventory,
		recorder:   d.Recorder,
		uploader:   d.Uploader,
		receiver:   d.Receiver,
		logger:     d.Logger,
		version:    d.Version,
		origins:    d.CORSOrigins,
		proxies:    d.TrustedProxies,
		rateBurst:  d.RateBurst,
		ratePerSec: d.RatePerSec,
		maxBody:    d.MaxBodyBytes,
	}
	if a.logger == nil {
		a.logger = obs.Logger()
	}
	if a.rateBurst <= 0 {
		a.rateBurst = 40
	}
	if a.ratePerSec <= 0 {
		a.ratePerSec = 20
	}
	if a.maxBody <= 0 {
		a.maxBody = 1 << 20
	}
	a.router = a.routes()
	return a
}

func (a *API) routes() chi.Router {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", a.Healthz)
	r.Get("/readyz", a.Ready)
	r.Get("/v1/info", a.Info)
	r.Method(http.MethodGet, "/metrics", obs.Handler())
	if a.receiver != nil {
		r.Put(uploadPrefix+"{bucket}/*", a.receiveUpload)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(a.withAuth)

		r.With(a.requirePermissions(auth.PermViewWaste)).Get("/waste", a.listWaste)
		r.With(a.requirePermissions(auth.PermCreateWaste)).Post("/waste", a.createWaste)
		r.With(a.requirePermissions(auth.PermEditWaste)).Put("/waste/{id}", a.updateWaste)
		r.With(a.requirePermissions(auth.PermDeleteWaste)).Delete("/waste/{id}", a.deleteWaste)

		r.With(a.requirePermissions(auth.PermViewChemicals)).Get("/chemicals", a.listChemicals)
		r.With(a.requirePermissions(auth.PermCreateChemicals)).Post("/chemicals", a.createChemical)
		r.With(a.requirePermissions(auth.PermEditChemicals)).Put("/chemicals/{id}", a.updateChemical)
		r.With(a.requirePermissions(auth.PermDeleteChemicals)).Delete("/chemicals/{id}", a.deleteChemical)

		r.Get("/dashboard/stats", a.dashboardStats)
		r.Get("/notifications", a.notifications)
		r.With(a.requirePermissions(auth.PermViewActivityLog)).Get("/activity-log", a.activityLog)

		r.Get("/user/profile", a.profile)
		admin := r.With(a.requirePermissions(auth.PermManageUsers))
		admin.Get("/admin/users", a.listUsers)
		admin.Put("/admin/users/{id}", a.updateUserRole)
		admin.Get("/admin/roles", a.listRoles)

		r.Post("/storage/upload-url", a.uploadURL)
	})
	return r
}

// Handler wraps the router with the middleware stack, outermost first.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.router
	h = MaxBodyBytes(h, a.maxBody, uploadPrefix)
	h = RateLimit(h, a.rateBurst, a.ratePerSec, a.proxies)
	h = CORS(a.origins)(h)
	h = SecurityHeaders(h)
	h = obs.Instrument(h)
	h = LoggingJSON(h, a.logger, a.proxies)
	h = RequestID(h)
	h = Recover(h, a.logger)
	return h
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if a.ready != nil {
		if err := a.ready.Ping(r.Context()); err != nil {
			obs.SetReady(false)
			a.logger.WarnContext(r.Context(), "readiness check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "not_ready",
				"error":  "data service unreachable",
			})
			return
		}
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeErrorDetails(w, r, code, msg, nil)
}

func writeErrorDetails(w http.ResponseWriter, r *http.Request, code int, msg string, details any) {
	payload := map[string]any{
		"error": msg,
	}
	if details != nil {
		payload["details"] = details
	}
	if rid := audit.RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

// decodeJSON reads a single JSON document. Unknown fields are ignored so
// clients may send back whole records on update.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func parsePositiveInt(raw string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("limit must be an integer")
	}
	if val < min || val > max {
		return 0, errors.New("limit must be between " + strconv.Itoa(min) + " and " + strconv.Itoa(max))
	}
	return val, nil
}

// handleError maps domain errors onto HTTP statuses; anything unrecognised is a 500.
func (a *API) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *inventory.ValidationError
	switch {
	case errors.As(err, &verr):
		writeErrorDetails(w, r, http.StatusBadRequest, "validation failed", verr.Fields)
	case errors.Is(err, inventory.ErrNoFields):
		writeError(w, r, http.StatusBadRequest, inventory.ErrNoFields.Error())
	case errors.Is(err, inventory.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, detail(err, inventory.ErrInvalidInput))
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, detail(err, auth.ErrInvalidInput))
	case errors.Is(err, storage.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, detail(err, storage.ErrInvalidInput))
	case errors.Is(err, inventory.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, detail(err, auth.ErrNotFound))
	case errors.Is(err, auth.ErrUnavailable):
		a.logger.ErrorContext(r.Context(), "authorization lookup failed", "error", err, "request_id", audit.RequestIDFromContext(r.Context()))
		writeError(w, r, http.StatusServiceUnavailable, "authorization service unavailable")
	case datasvc.IsConflict(err):
		a.logger.WarnContext(r.Context(), "data service conflict", "error", err, "request_id", audit.RequestIDFromContext(r.Context()))
		writeError(w, r, http.StatusConflict, "conflict with existing data")
	default:
		a.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", audit.RequestIDFromContext(r.Context()),
			"error", err,
		)
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

// detail drops the sentinel prefix from a wrapped error message.
func detail(err, sentinel error) string {
	return strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
}
