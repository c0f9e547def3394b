package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"dancefeed/internal/aggregate"
	appLog "dancefeed/internal/log"
	"dancefeed/internal/model"
)

// Corpus is the read side of the live event snapshot.
type Corpus interface {
	Matching(f model.Filters) []model.Event
	Len() int
}

// Submitter proposes a hand-entered event upstream and returns the URL of
// the proposal.
type Submitter interface {
	Submit(ctx context.Context, e model.Event) (string, error)
}

// Refresher runs aggregation cycles on demand.
type Refresher interface {
	Run(ctx context.Context) (aggregate.Summary, error)
	Last() (aggregate.Summary, bool)
}

// BasicAuth holds HTTP Basic Auth credentials guarding the write endpoints.
type BasicAuth struct {
	Username string
	Password string
}

// Options wires the server's collaborators. Only Corpus is required.
type Options struct {
	Corpus    Corpus
	Submitter Submitter
	Refresher Refresher
	// Metrics serves /metrics when set.
	Metrics   http.Handler
	BasicAuth *BasicAuth
}

// Server provides the HTTP API over the event corpus.
type Server struct {
	opts     Options
	mux      *http.ServeMux
	validate *validator.Validate
}

// maxSubmission bounds a POST /api/events body.
const maxSubmission = 64 << 10

func NewServer(opts Options) *Server {
	s := &Server{opts: opts, mux: http.NewServeMux(), validate: validator.New()}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/styles", s.handleStyles)
	s.mux.Handle("POST /api/events", s.requireAuth(http.HandlerFunc(s.handleSubmit)))
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.Handle("POST /api/refresh", s.requireAuth(http.HandlerFunc(s.handleRefresh)))
	if s.opts.Metrics != nil {
		s.mux.Handle("GET /metrics", s.opts.Metrics)
	}
}

func (s *Server) basicAuthEnabled() bool {
	a := s.opts.BasicAuth
	return a != nil && a.Username != "" && a.Password != ""
}

// requireAuth guards next with HTTP Basic Auth when credentials are set.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	if !s.basicAuthEnabled() {
		return next
	}
	username, password := s.opts.BasicAuth.Username, s.opts.BasicAuth.Password
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="dancefeed", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer serves s on listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) StartServer(ctx context.Context, listen string) error {
	srv := &http.Server{
		Addr:              listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleStyles lists the dance styles events can be tagged and filtered with.
func (s *Server) handleStyles(w http.ResponseWriter, _ *http.Request) {
	styles := model.DanceStyles()
	resp := make([]styleDTO, 0, len(styles))
	for _, st := range styles {
		resp = append(resp, styleDTO{Tag: string(st), Name: st.Name()})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleEvents returns the corpus filtered by the query and grouped by
// start month.
//
// GET /api/events?country=UK&style=e-ceilidh&workshop=true
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	f, err := model.ParseFilters(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	events := s.opts.Corpus.Matching(f)
	months := model.GroupByMonth(events)

	resp := eventsResponse{Months: make([]monthDTO, 0, len(months)), Count: len(events)}
	for _, m := range months {
		dto := monthDTO{Name: m.Name(), Start: m.Start.Format(model.DateLayout), Events: make([]eventDTO, 0, len(m.Events))}
		for _, e := range m.Events {
			dto.Events = append(dto.Events, toDTO(e))
		}
		resp.Months = append(resp.Months, dto)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSubmit accepts one event and proposes it upstream.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if s.opts.Submitter == nil {
		writeError(w, http.StatusServiceUnavailable, "publishing is not configured")
		return
	}
	var dto eventDTO
	dec := json.NewDecoder(io.LimitReader(r.Body, maxSubmission))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := s.validate.Struct(dto); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	e, err := dto.event()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := e.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reqID := uuid.NewString()
	appLog.Info("submit event", "request", reqID, "name", e.Name, "city", e.City)
	url, err := s.opts.Submitter.Submit(r.Context(), e)
	if err != nil {
		appLog.Error("submit event failed", err, "request", reqID)
		writeError(w, http.StatusBadGateway, "failed to publish event (request "+reqID+")")
		return
	}
	writeJSON(w, http.StatusCreated, submitResponse{PullRequest: url, Request: reqID})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{Events: s.opts.Corpus.Len()}
	if s.opts.Refresher != nil {
		if last, ok := s.opts.Refresher.Last(); ok {
			resp.LastCycle = toCycleDTO(last)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRefresh runs a cycle synchronously.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.opts.Refresher == nil {
		writeError(w, http.StatusServiceUnavailable, "refresh is not configured")
		return
	}
	sum, err := s.opts.Refresher.Run(r.Context())
	switch {
	case errors.Is(err, aggregate.ErrCycleRunning):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		appLog.Error("manual refresh failed", err)
		writeError(w, http.StatusInternalServerError, "refresh failed")
		return
	}
	writeJSON(w, http.StatusOK, toCycleDTO(sum))
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
