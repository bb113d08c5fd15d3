package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/tom2tomtomtom/airwave-redbaez-sub002/internal/auth"
	"github.com/tom2tomtomtom/airwave-redbaez-sub002/internal/kv"
	"github.com/tom2tomtomtom/airwave-redbaez-sub002/internal/obs"
)

// ReadyProbe checks the service's backing stores for /readyz.
type ReadyProbe struct {
	DB *sql.DB
	KV kv.Store
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB != nil {
		if err := rp.DB.PingContext(ctx); err != nil {
			return err
		}
	}
	if rp.KV != nil {
		return rp.KV.Ping(ctx)
	}
	return nil
}

// API is the HTTP layer: auth endpoints plus health/metrics, wrapped by the
// middleware chain from Handler.
type API struct {
	mux        *http.ServeMux
	tokens     *auth.TokenService
	perms      *auth.PermissionService
	users      auth.UserStore
	readyProbe ReadyProbe
	version    string
	production bool
}

// Options configures API construction.
type Options struct {
	Tokens     *auth.TokenService
	Perms      *auth.PermissionService
	Users      auth.UserStore
	ReadyProbe ReadyProbe
	Version    string
	Production bool
}

func New(opts Options) *API {
	a := &API{
		mux:        http.NewServeMux(),
		tokens:     opts.Tokens,
		perms:      opts.Perms,
		users:      opts.Users,
		readyProbe: opts.ReadyProbe,
		version:    opts.Version,
		production: opts.Production,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/v1/auth/logout_all", a.handleLogoutAll)
	a.mux.HandleFunc("/v1/auth/me", a.handleMe)

	a.mux.Handle("/v1/users/", a.requirePermission(auth.PermUserManage,
		http.HandlerFunc(a.handleUserResource)))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the full middleware chain around the route table. Auth runs
// before CSRF so the CSRF check can see the principal.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withCSRF(h)
	h = a.withAuth(h)
	h = RateLimit(h, 20, 10)
	h = LoggingJSON(h)
	h = RequestID(h)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = MaxBodyBytes(h, 1<<20)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "airwave-auth",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.readyProbe.Check(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
