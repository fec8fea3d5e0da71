package main

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/ditti/pkg/activity"
	"github.com/codeGROOVE-dev/ditti/pkg/bouts"
	"github.com/codeGROOVE-dev/ditti/pkg/config"
	"github.com/codeGROOVE-dev/ditti/pkg/portal"
	"github.com/codeGROOVE-dev/ditti/pkg/timeline"
	"github.com/codeGROOVE-dev/ditti/pkg/timescale"
	"github.com/codeGROOVE-dev/ditti/pkg/tzconvert"
	"github.com/codeGROOVE-dev/ditti/pkg/zoom"
	"github.com/google/uuid"
	"github.com/maypok86/otter"
)

//go:embed templates/home.html
var homeTemplate string

//go:embed static/*
var staticFiles embed.FS

var (
	homeTmpl     *template.Template
	homeTmplOnce sync.Once
)

func getHomeTemplate() *template.Template {
	homeTmplOnce.Do(func() {
		homeTmpl = template.Must(template.New("home").Parse(homeTemplate))
	})
	return homeTmpl
}

var validDittiID = regexp.MustCompile(`^[A-Za-z0-9]{1,64}$`)

type rateLimiter struct {
	requests map[string][]time.Time
	limit    int
	mu       sync.Mutex
}

func newRateLimiter(perMinute int) *rateLimiter {
	return &rateLimiter{
		requests: make(map[string][]time.Time),
		limit:    perMinute,
	}
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-time.Minute)

	var valid []time.Time
	for _, t := range rl.requests[ip] {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[ip] = valid
		return false
	}

	rl.requests[ip] = append(valid, now)
	return true
}

type server struct {
	source   activity.Source
	renders  otter.Cache[string, []byte]
	limiter  *rateLimiter
	logger   *slog.Logger
	cfg      *config.Config
	location *time.Location
	now      func() time.Time
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleHome)
	mux.HandleFunc("GET /api/v1/participants/{id}/histogram.svg", s.handleHistogram)
	mux.HandleFunc("GET /api/v1/participants/{id}/timeline.svg", s.handleTimeline)
	mux.HandleFunc("GET /api/v1/participants/{id}/bouts", s.handleBouts)
	mux.HandleFunc("POST /api/v1/zoom", s.handleZoom)
	mux.Handle("GET /static/", http.FileServer(http.FS(staticFiles)))

	antiCSRF := http.NewCrossOriginProtection()
	return s.wrap(antiCSRF.Handler(mux))
}

func (s *server) wrap(handler http.Handler) http.Handler {
	csp := cspPolicy()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()
		w.Header().Set("X-Request-ID", id)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id))

		defer func() {
			if err := recover(); err != nil {
				const size = 64 << 10
				buf := make([]byte, size)
				buf = buf[:runtime.Stack(buf, false)]
				s.logger.Error("PANIC: Request handler crashed",
					"error", err,
					"path", r.URL.Path,
					"method", r.Method,
					"request_id", id,
					"client_ip", clientIP(r),
					"stack", string(buf))
				http.Error(w, portal.GenericErrorMessage, http.StatusInternalServerError)
			}
		}()

		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		w.Header().Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=(), usb=(), bluetooth=()")
		w.Header().Set("Content-Security-Policy", csp)

		if strings.HasPrefix(r.URL.Path, "/api/") {
			// Charts carry participant data.
			w.Header().Set("Cache-Control", "no-store, private")
			if !s.limiter.allow(clientIP(r)) {
				s.logger.Warn("Rate limit exceeded", "request_id", id, "client_ip", clientIP(r))
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}
		} else if strings.HasPrefix(r.URL.Path, "/static/") {
			w.Header().Set("Cache-Control", "public, max-age=3600")
		}

		handler.ServeHTTP(w, r)
	})
}

func (s *server) handleHome(w http.ResponseWriter, r *http.Request) {
	participant := r.URL.Query().Get("p")
	if !validDittiID.MatchString(participant) {
		participant = ""
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := getHomeTemplate().Execute(w, struct{ Participant string }{participant}); err != nil {
		s.logger.Error("Template execution failed", "request_id", requestID(r.Context()), "error", err)
	}
}

// window is a parsed chart request.
type window struct {
	state    zoom.State
	location *time.Location
	id       string
	width    int
}

func (w window) cacheKey(kind string) string {
	return fmt.Sprintf("%s:%s:%d:%d:%s:%d", kind, w.id,
		w.state.Domain.Start.UnixMilli(), w.state.Domain.End.UnixMilli(), w.location, w.width)
}

// parseWindow reads id from the path and start, end, zoom, tz and width
// from the query.
func (s *server) parseWindow(r *http.Request) (window, error) {
	var win window
	win.id = r.PathValue("id")
	if !validDittiID.MatchString(win.id) {
		return win, errors.New("invalid participant id")
	}

	q := r.URL.Query()
	win.location = s.location
	if tz := q.Get("tz"); tz != "" {
		loc, err := tzconvert.LoadLocation(tz)
		if err != nil {
			return win, err
		}
		win.location = loc
	}

	win.width = s.cfg.Chart.Width
	if v := q.Get("width"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 200 || n > 4000 {
			return win, fmt.Errorf("width %q must be between 200 and 4000", v)
		}
		win.width = n
	}

	ctrl := zoom.New(s.now(), win.location)
	if q.Get("start") != "" || q.Get("end") != "" {
		start, err := time.Parse(time.RFC3339, q.Get("start"))
		if err != nil {
			return win, fmt.Errorf("invalid start: %w", err)
		}
		end, err := time.Parse(time.RFC3339, q.Get("end"))
		if err != nil {
			return win, fmt.Errorf("invalid end: %w", err)
		}
		d := timescale.Domain{Start: start, End: end}
		if err := d.Validate(); err != nil {
			return win, err
		}
		ctrl = zoom.Restore(zoom.State{Domain: d}, s.now(), win.location)
	}
	if err := ctrl.ApplyAll(q.Get("zoom")); err != nil {
		return win, err
	}
	win.state = ctrl.State()
	return win, nil
}

func (s *server) derive(ctx context.Context, win window) (*activity.Window, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	logs, err := activity.Fetch(ctx, s.source, win.id, s.logger)
	if err != nil {
		return nil, err
	}
	return activity.Derive(logs, win.state.Domain, activity.Options{
		Location: win.location,
		Palette:  s.cfg.Palette(),
		Width:    win.width,
	})
}

// writeError maps failures to a status and the message shown in the page's
// error banner.
func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadGateway
	message := portal.UserMessage(err)

	var apiErr *portal.APIError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
		message = "The portal took too long to respond"
	case errors.Is(err, context.Canceled):
		status = http.StatusRequestTimeout
		message = "Request was canceled"
	case errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500:
		status = apiErr.Status
	}

	s.logger.Error("Request failed",
		"request_id", requestID(r.Context()),
		"path", r.URL.Path,
		"status", status,
		"error", err)
	s.writeJSON(w, r, status, map[string]string{"error": message})
}

func (s *server) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Debug("Bad request", "request_id", requestID(r.Context()), "path", r.URL.Path, "error", err)
	s.writeJSON(w, r, http.StatusBadRequest, map[string]string{"error": err.Error()})
}

func (s *server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", "request_id", requestID(r.Context()), "error", err)
	}
}

func (s *server) serveSVG(w http.ResponseWriter, r *http.Request, kind string, build func(*activity.Window, window) timeline.Chart) {
	start := time.Now()
	win, err := s.parseWindow(r)
	if err != nil {
		s.badRequest(w, r, err)
		return
	}

	key := win.cacheKey(kind)
	w.Header().Set("X-Min-Range-Reached", strconv.FormatBool(win.state.MinRangeReached))
	w.Header().Set("X-Max-Range-Reached", strconv.FormatBool(win.state.MaxRangeReached))

	if data, found := s.renders.Get(key); found {
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("X-Cache", "memory-hit")
		if _, err := w.Write(data); err != nil {
			s.logger.Error("Failed to write cached response", "request_id", requestID(r.Context()), "error", err)
		}
		return
	}

	aw, err := s.derive(r.Context(), win)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := timeline.RenderSVG(&buf, build(aw, win)); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.renders.Set(key, buf.Bytes())

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("X-Cache", "miss")
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Error("Failed to write response", "request_id", requestID(r.Context()), "error", err)
		return
	}
	s.logger.Info("Chart rendered",
		"request_id", requestID(r.Context()),
		"kind", kind,
		"ditti_id", win.id,
		"domain", win.state.Domain.String(),
		"duration_ms", time.Since(start).Milliseconds())
}

func (s *server) handleHistogram(w http.ResponseWriter, r *http.Request) {
	s.serveSVG(w, r, "histogram", func(aw *activity.Window, win window) timeline.Chart {
		c := aw.Chart("Taps", win.width, s.cfg.Chart.RowHeight, s.cfg.Chart.Colors.Bar, s.cfg.Chart.Colors.Background)
		c.Tracks = nil
		c.Markers = nil
		return c
	})
}

func (s *server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	s.serveSVG(w, r, "timeline", func(aw *activity.Window, win window) timeline.Chart {
		c := aw.Chart("Bouts", win.width, s.cfg.Chart.RowHeight, s.cfg.Chart.Colors.Bar, s.cfg.Chart.Colors.Background)
		c.Bins = nil
		return c
	})
}

type boutsResponse struct {
	State   zoom.State         `json:"state"`
	Records []timeline.Record  `json:"records"`
	Markers []tzconvert.Marker `json:"markers"`
	Summary bouts.Summary      `json:"summary"`
	Total   int                `json:"total_taps"`
}

func (s *server) handleBouts(w http.ResponseWriter, r *http.Request) {
	win, err := s.parseWindow(r)
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	aw, err := s.derive(r.Context(), win)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	visible := aw.VisibleRecords()
	resp := boutsResponse{
		State:   win.state,
		Records: visible,
		Markers: []tzconvert.Marker{},
		Summary: aw.Summary,
	}
	if resp.Records == nil {
		resp.Records = []timeline.Record{}
	}
	for _, m := range aw.Markers {
		if win.state.Domain.Contains(m.Time) {
			resp.Markers = append(resp.Markers, m)
		}
	}
	for _, b := range aw.Bins {
		resp.Total += b.Count
	}
	s.writeJSON(w, r, http.StatusOK, resp)
}

type zoomRequest struct {
	Start           time.Time  `json:"start"`
	End             time.Time  `json:"end"`
	Selection       *selection `json:"selection,omitempty"`
	Ops             string     `json:"ops"`
	Timezone        string     `json:"timezone"`
	MinRangeReached bool       `json:"min_range_reached"`
	MaxRangeReached bool       `json:"max_range_reached"`
}

type selection struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// handleZoom applies zoom operations to a domain and returns the result.
// The server keeps no view state; the page sends its current domain.
func (s *server) handleZoom(w http.ResponseWriter, r *http.Request) {
	var req zoomRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		s.badRequest(w, r, fmt.Errorf("invalid request: %w", err))
		return
	}

	loc := s.location
	if req.Timezone != "" {
		l, err := tzconvert.LoadLocation(req.Timezone)
		if err != nil {
			s.badRequest(w, r, err)
			return
		}
		loc = l
	}

	ctrl := zoom.New(s.now(), loc)
	if !req.Start.IsZero() || !req.End.IsZero() {
		d := timescale.Domain{Start: req.Start, End: req.End}
		if err := d.Validate(); err != nil {
			s.badRequest(w, r, err)
			return
		}
		ctrl = zoom.Restore(zoom.State{
			Domain:          d,
			MinRangeReached: req.MinRangeReached,
			MaxRangeReached: req.MaxRangeReached,
		}, s.now(), loc)
	}
	if req.Selection != nil {
		ctrl.SetDomainFromSelection(req.Selection.Start, req.Selection.End)
	}
	if err := ctrl.ApplyAll(req.Ops); err != nil {
		s.badRequest(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, ctrl.State())
}
