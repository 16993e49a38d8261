// Package web serves a live preview of the display: the current frame as
// PNG, the derived state as JSON, and an HTML rendition of the layout that
// the browser renderer screenshots.
package web

import (
	"context"
	"crypto/subtle"
	_ "embed"
	"encoding/json"
	"errors"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"

	"focusdisplay/internal/battery"
	"focusdisplay/internal/config"
	"focusdisplay/internal/derive"
	appLog "focusdisplay/internal/log"
	"focusdisplay/internal/model"
)

//go:embed templates/display.html
var displayHTML string

var displayTmpl = template.Must(template.New("display").Funcs(template.FuncMap{
	// 4 px per minute, one hour at most
	"bar": func(minutes int) int { return minutes * 4 },
}).Parse(displayHTML))

const batteryCacheTTL = 30 * time.Second

// Server holds the latest published frame and serves it over HTTP.
type Server struct {
	cfg     config.WebConfig
	width   int
	height  int
	battery battery.Reader
	mux     *http.ServeMux

	mu      sync.RWMutex
	state   *model.DisplayState
	errMsg  string
	preview []byte

	batteryMu    sync.Mutex
	batteryCache *batteryCache
}

type batteryCache struct {
	status    battery.Status
	updatedAt time.Time
}

// NewServer builds a server for frames of width x height.
func NewServer(cfg config.WebConfig, width, height int, br battery.Reader) *Server {
	s := &Server{
		cfg:     cfg,
		width:   width,
		height:  height,
		battery: br,
		mux:     http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Publish replaces the state shown by /display and /api/state.
func (s *Server) Publish(ds model.DisplayState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = &ds
	s.errMsg = ""
}

// PublishError switches /display to the error screen.
func (s *Server) PublishError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errMsg = msg
}

// SetPreview stores the last frame pushed to the panel.
func (s *Server) SetPreview(png []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preview = png
}

// Handler returns the routes, behind basic auth when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	ba := s.cfg.BasicAuth
	return ba != nil && ba.Username != "" && ba.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="focusdisplay", charset="UTF-8"`)
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

// Serve listens on cfg.Listen until ctx is cancelled, then shuts down
// gracefully. The bound address is sent on ready when it is non-nil.
func (s *Server) Serve(ctx context.Context, ready chan<- string) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	appLog.Info("starting HTTP server", "listen", "http://"+ln.Addr().String(), "basic_auth", s.basicAuthEnabled())
	if ready != nil {
		ready <- ln.Addr().String()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/state", s.handleState)
	s.mux.HandleFunc("/api/battery", s.handleBattery)
	s.mux.HandleFunc("/preview.png", s.handlePreview)
	s.mux.HandleFunc("/display", s.handleDisplay)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	st := s.state
	s.mu.RUnlock()
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "no frame rendered yet")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleBattery serves the gauge, cached briefly so page reloads do not
// hammer the I2C bus.
func (s *Server) handleBattery(w http.ResponseWriter, r *http.Request) {
	if s.battery == nil {
		writeError(w, http.StatusServiceUnavailable, "battery reader unavailable")
		return
	}

	s.batteryMu.Lock()
	defer s.batteryMu.Unlock()
	if bc := s.batteryCache; bc != nil && time.Since(bc.updatedAt) < batteryCacheTTL {
		writeJSON(w, http.StatusOK, bc.status)
		return
	}
	status, err := s.battery.Read(r.Context())
	if err != nil {
		appLog.Error("battery read failed", err)
		writeError(w, http.StatusInternalServerError, "failed to read battery")
		return
	}
	s.batteryCache = &batteryCache{status: status, updatedAt: time.Now()}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handlePreview(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	png := s.preview
	s.mu.RUnlock()
	if png == nil {
		http.Error(w, "no preview yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

// displayView feeds the HTML template.
type displayView struct {
	Width, Height int
	Error         string
	Battery       string
	Clocks        []clockView
	Focus         derive.FocusText
	Date          string
	Rows          []derive.AgendaRow
}

type clockView struct {
	Label string
	Time  string
}

func (s *Server) handleDisplay(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	st, errMsg := s.state, s.errMsg
	s.mu.RUnlock()
	if st == nil && errMsg == "" {
		http.Error(w, "no frame rendered yet", http.StatusServiceUnavailable)
		return
	}

	v := displayView{Width: s.width, Height: s.height, Error: errMsg}
	if st != nil && errMsg == "" {
		v.Battery = derive.BatteryText(st.BatteryPct)
		for _, c := range st.Clocks {
			v.Clocks = append(v.Clocks, clockView{Label: c.Label, Time: derive.Clock12(c.Hour, c.Minute)})
		}
		v.Focus = derive.FocusTextOf(*st)
		v.Date = st.DateString
		v.Rows = derive.AgendaRows(st.Agenda, st.LocalHour)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := displayTmpl.Execute(w, v); err != nil {
		appLog.Error("display template failed", err)
	}
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
