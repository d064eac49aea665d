package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"confprogram/internal/config"
	appLog "confprogram/internal/log"
	"confprogram/internal/metrics"
	"confprogram/internal/model"
	"confprogram/internal/render"
	"confprogram/internal/store"
)

const (
	programPrefix = "/program/"
	staffPrefix   = "/staff/program/"
)

// Renderer produces a site's program in one format.
type Renderer interface {
	Render(ctx context.Context, domain string, f render.Format, pending bool) ([]byte, error)
}

// SiteLister lists the hosted conference sites.
type SiteLister interface {
	Sites(ctx context.Context) ([]model.Site, error)
}

// Server exposes the rendered programs over HTTP.
//
// Public programs live under /program/, the staff preview (pending talks
// included, never cached) under /staff/program/. The site is picked from
// the request Host.
type Server struct {
	cfg      *config.Config
	renderer Renderer
	sites    SiteLister
	mux      *http.ServeMux
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, r Renderer, sites SiteLister) *Server {
	s := &Server{
		cfg:      cfg,
		renderer: r,
		sites:    sites,
		mux:      http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the server's http.Handler with request id, logging and
// metrics middleware applied.
func (s *Server) Handler() http.Handler {
	return s.requestMiddleware(s.mux)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/api/sites", s.handleSites)
	s.mux.HandleFunc(programPrefix, s.programHandler(programPrefix, false))

	staff := http.Handler(s.programHandler(staffPrefix, true))
	if s.staffAuthEnabled() {
		staff = s.basicAuthMiddleware(staff)
	} else {
		appLog.Warn("staff program is served without authentication")
	}
	s.mux.Handle(staffPrefix, staff)
}

// Run serves on cfg.Listen until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	appLog.Info("shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// staffAuthEnabled reports whether staff credentials are configured.
func (s *Server) staffAuthEnabled() bool {
	if s.cfg == nil || s.cfg.StaffAuth == nil {
		return false
	}
	return s.cfg.StaffAuth.Username != "" && s.cfg.StaffAuth.Password != ""
}

func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.StaffAuth.Username
	password := s.cfg.StaffAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Program staff", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// routeFormats maps the path suffix after a program prefix to its format.
var routeFormats = map[string]render.Format{
	"":     render.FormatHTML,
	"xml/": render.FormatXML,
	"ics/": render.FormatICS,
}

// programHandler serves <prefix>{,xml/,ics/} for the site of the request
// Host.
func (s *Server) programHandler(prefix string, pending bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		f, ok := routeFormats[strings.TrimPrefix(r.URL.Path, prefix)]
		if !ok {
			http.Error(w, "format not available", http.StatusNotFound)
			return
		}

		domain := siteDomain(r.Host)
		out, err := s.renderer.Render(r.Context(), domain, f, pending)
		switch {
		case errors.Is(err, store.ErrSiteNotFound):
			http.Error(w, "site not found", http.StatusNotFound)
			return
		case err != nil:
			appLog.Error("program render failed", err,
				"site", domain,
				"format", f.String(),
				"pending", pending,
				"request_id", requestID(r.Context()),
			)
			http.Error(w, "program unavailable", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", f.ContentType())
		w.Header().Set("Content-Length", strconv.Itoa(len(out)))
		if pending {
			w.Header().Set("Cache-Control", "no-store")
		}
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(out)
		}
	}
}

// siteDomain strips the port and lowercases a Host header.
func siteDomain(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(strings.TrimSuffix(host, "."))
}

type siteDTO struct {
	Domain string            `json:"domain"`
	Name   string            `json:"name"`
	Links  map[string]string `json:"links"`
}

// handleSites lists the hosted sites with their program links.
func (s *Server) handleSites(w http.ResponseWriter, r *http.Request) {
	sites, err := s.sites.Sites(r.Context())
	if err != nil {
		appLog.Error("list sites failed", err, "request_id", requestID(r.Context()))
		writeError(w, http.StatusInternalServerError, "failed to list sites")
		return
	}

	resp := make([]siteDTO, 0, len(sites))
	for _, site := range sites {
		links := make(map[string]string, len(render.Formats))
		for _, f := range render.Formats {
			path := programPrefix
			if f != render.FormatHTML {
				path += f.String() + "/"
			}
			links[f.String()] = "//" + site.Domain + path
		}
		resp = append(resp, siteDTO{Domain: site.Domain, Name: site.Name, Links: links})
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

type ctxKey struct{}

// requestID returns the id the middleware attached to ctx.
func requestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requestMiddleware tags each request with an X-Request-ID (kept from the
// client when present), then logs and counts it.
func (s *Server) requestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()

		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		r = r.WithContext(context.WithValue(r.Context(), ctxKey{}, id))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		_, route := s.mux.Handler(r)
		if route == "" {
			route = "unmatched"
		}
		metrics.TrackRequest(route, strconv.Itoa(rec.status))
		appLog.Debug("http request",
			"method", r.Method,
			"host", r.Host,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(started).String(),
			"request_id", id,
		)
	})
}
