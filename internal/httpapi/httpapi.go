package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ulule/limiter/v3"

	"apotekku/backend/internal/service"
	"apotekku/backend/internal/store"
)

type Options struct {
	AllowedOrigin string
	// Rates use the limiter format, e.g. "5-M" for five per minute.
	LoginRate string
	SaleRate  string
	PINRate   string
	// LimiterStore backs all rate limits. Nil means per-process memory.
	LimiterStore limiter.Store
}

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *limiter.Limiter
	saleLimiter   *limiter.Limiter
	pinLimiter    *limiter.Limiter
}

func New(svc *service.Service, auth *AuthManager, opts Options) (*API, error) {
	if opts.AllowedOrigin == "" {
		opts.AllowedOrigin = "http://localhost:5173"
	}

	loginLimiter, err := newLimiter(opts.LimiterStore, opts.LoginRate, "5-M")
	if err != nil {
		return nil, err
	}
	saleLimiter, err := newLimiter(opts.LimiterStore, opts.SaleRate, "120-M")
	if err != nil {
		return nil, err
	}
	pinLimiter, err := newLimiter(opts.LimiterStore, opts.PINRate, "8-M")
	if err != nil {
		return nil, err
	}

	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: opts.AllowedOrigin,
		loginLimiter:  loginLimiter,
		saleLimiter:   saleLimiter,
		pinLimiter:    pinLimiter,
	}, nil
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{a.allowedOrigin},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))
	r.Use(securityHeaders)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeMethodNotAllowed(w)
	})

	r.Get("/healthz", a.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.With(a.rateLimit("login", a.loginLimiter, writeError)).Post("/auth/login", a.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth(roleCashier, roleAdmin))
			admin := a.requireAuth(roleAdmin)

			r.Route("/sales", func(r chi.Router) {
				r.With(a.rateLimit("sale", a.saleLimiter, writeSaleError)).Post("/", a.handleCreateSale)
				r.Get("/", a.handleListSales)
				r.Get("/{id}", a.handleGetSale)
			})

			r.Get("/pos/medicines", a.handlePOSMedicines)

			r.Route("/medicines", func(r chi.Router) {
				r.Get("/", a.handleListMedicines)
				r.With(admin).Post("/", a.handleCreateMedicine)
				r.Get("/{id}", a.handleGetMedicine)
				r.With(admin).Patch("/{id}", a.handleUpdateMedicine)
				r.Get("/{id}/price", a.handlePriceQuote)
			})

			r.Get("/manufacturers", a.handleListManufacturers)
			r.With(admin).Post("/manufacturers", a.handleCreateManufacturer)
			r.Get("/suppliers", a.handleListSuppliers)
			r.With(admin).Post("/suppliers", a.handleCreateSupplier)
			r.Get("/batches", a.handleListBatches)
			r.With(admin).Post("/batches", a.handleCreateBatch)

			r.Route("/customers", func(r chi.Router) {
				r.Get("/", a.handleListCustomers)
				r.With(admin).Post("/", a.handleCreateCustomer)
				r.Get("/{id}", a.handleGetCustomer)
			})

			r.Get("/dashboard", a.handleDashboard)
			r.With(admin).Get("/audit-logs", a.handleAuditLogs)

			r.With(admin).Get("/users/cashiers", a.handleListCashiers)
			r.With(admin).Post("/users/cashiers", a.handleCreateCashier)
		})
	})

	return r
}

func (a *API) requireAuth(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, authenticated := service.ActorFromContext(r.Context())
			if !authenticated {
				authorization := strings.TrimSpace(r.Header.Get("Authorization"))
				if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
					writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
					return
				}

				parsed, err := a.auth.ParseToken(strings.TrimSpace(authorization[len("Bearer "):]))
				if err != nil {
					writeError(w, http.StatusUnauthorized, err)
					return
				}
				actor = parsed
			}

			if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
				writeError(w, http.StatusForbidden, errors.New("forbidden role"))
				return
			}

			next.ServeHTTP(w, r.WithContext(service.WithActor(r.Context(), actor)))
		})
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")

		if r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		startedAt := time.Now()
		next.ServeHTTP(ww, r)
		log.Printf("%s %s %d %s request_id=%s", r.Method, r.URL.Path, ww.Status(), time.Since(startedAt), middleware.GetReqID(r.Context()))
	})
}

// statusFor maps domain errors to HTTP status codes. Anything unrecognised is
// an infrastructure failure.
func statusFor(err error) int {
	var stockErr *store.InsufficientStockError
	switch {
	case errors.As(err, &stockErr), errors.Is(err, store.ErrInsufficientStock), errors.Is(err, store.ErrDuplicateInvoice):
		return http.StatusConflict
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrCreditLimitExceeded), errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

// parseOptionalBool returns nil for an empty value.
func parseOptionalBool(raw string) (*bool, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	value, err := strconv.ParseBool(trimmed)
	if err != nil {
		return nil, errors.New("expected a boolean value")
	}
	return &value, nil
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies stay generic; the detail goes to the log.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

// writeSaleError uses the envelope the POS client expects from the sale endpoint.
func writeSaleError(w http.ResponseWriter, status int, err error) {
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"success": false,
		"message": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
