package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"datareg.org/internal/auth"
	"datareg.org/internal/obs"
	"datareg.org/internal/registry"
)

const (
	serviceName      = "datareg-api"
	maxJSONBodyBytes = 1 << 20
)

type readinessChecker interface {
	Ready(ctx context.Context) error
}

// API is the HTTP surface of the registry.
type API struct {
	svc            *registry.Service
	tokens         *auth.TokenIssuer
	version        string
	rateBurst      int
	ratePerSec     float64
	maxUpload      int64
	allowedOrigins []string
}

type Option func(*API)

func WithVersion(v string) Option {
	return func(a *API) { a.version = v }
}

// WithRateLimit sets the per-client token bucket.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(a *API) {
		if perSecond > 0 && burst > 0 {
			a.ratePerSec = perSecond
			a.rateBurst = burst
		}
	}
}

// WithMaxUpload caps the size of a multipart material upload.
func WithMaxUpload(n int64) Option {
	return func(a *API) {
		if n > 0 {
			a.maxUpload = n
		}
	}
}

func WithAllowedOrigins(origins ...string) Option {
	return func(a *API) { a.allowedOrigins = origins }
}

func New(svc *registry.Service, tokens *auth.TokenIssuer, opts ...Option) (*API, error) {
	if svc == nil {
		return nil, errors.New("httpapi: registry service is required")
	}
	if tokens == nil {
		return nil, errors.New("httpapi: token issuer is required")
	}
	a := &API{
		svc:            svc,
		tokens:         tokens,
		version:        "dev",
		rateBurst:      20,
		ratePerSec:     10,
		maxUpload:      32 << 20,
		allowedOrigins: []string{"*"},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Handler builds the router with the full middleware chain.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(LoggingJSON)
	r.Use(SecurityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: a.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader, "Content-Disposition", hashHeader},
		MaxAge:         600,
	}))
	r.Use(func(next http.Handler) http.Handler {
		return RateLimit(next, a.rateBurst, a.ratePerSec)
	})

	r.Get("/healthz", a.Healthz)
	r.Get("/readyz", a.Ready)
	r.Get("/v1/info", a.Info)
	r.Handle("/metrics", obs.Handler())

	r.Post("/v1/auth/register", a.handleRegister)
	r.Post("/v1/auth/login", a.handleLogin)
	r.Get("/v1/organizations", a.listOrganizations)

	r.Group(func(r chi.Router) {
		r.Use(a.authenticate)

		r.Get("/v1/auth/me", a.handleMe)
		r.Post("/v1/organizations", a.createOrganization)

		r.Route("/v1/assets", func(r chi.Router) {
			r.Get("/", a.listAssets)
			r.Post("/", a.createAsset)
			r.Get("/{assetID}", a.getAsset)
			r.Post("/{assetID}/submit", a.submitStage)
			r.Get("/{assetID}/records", a.listStageRecords)
		})
		r.Route("/v1/records", func(r chi.Router) {
			r.Get("/pending", a.listPendingRecords)
			r.Get("/{recordID}", a.getStageRecord)
			r.Post("/{recordID}/approve", a.approveStage)
			r.Post("/{recordID}/reject", a.rejectStage)
			r.Get("/{recordID}/materials", a.listMaterials)
			r.With(a.limitUpload).Post("/{recordID}/materials", a.uploadMaterial)
		})
		r.Get("/v1/materials/{materialID}/content", a.downloadMaterial)
		r.Get("/v1/audit", a.listAudit)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	return obs.Instrument(r)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.Ready(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
		"stages":  registry.Stages(),
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

// handleServiceError maps registry error kinds onto status codes.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, registry.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, "invalid username or password")
	case errors.Is(err, registry.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, registry.ErrForbidden):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, registry.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, registry.ErrInvalidState):
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, registry.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, http.StatusServiceUnavailable, "request cancelled")
	default:
		obs.Log("error", "request_failed", map[string]any{
			"request_id": RequestIDFromContext(r.Context()),
			"path":       r.URL.Path,
			"error":      err.Error(),
		})
		msg := "internal error"
		if errors.Is(err, registry.ErrIntegrity) {
			msg = "stored material failed its integrity check"
		}
		writeError(w, r, http.StatusInternalServerError, msg)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
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

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New(name + " must be a positive integer")
	}
	return id, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.New(name + " must be a non-negative integer")
	}
	return v, nil
}
