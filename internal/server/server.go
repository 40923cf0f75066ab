// Package server exposes formula evaluation over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/vogtb/go-spreadsheet/packages/formula/internal/errors"
	"github.com/vogtb/go-spreadsheet/packages/formula/internal/loader"
	"github.com/vogtb/go-spreadsheet/packages/formula/internal/logging"
)

const maxRequestBytes = 1 << 20

type Options struct {
	Addr           string
	DefaultSheet   string
	Logger         *logging.Logger
	WorkbookOption []formula.WorkbookOption
}

type Server struct {
	router *chi.Mux
	opts   Options
	logger *logging.Logger
}

func New(opts Options) *Server {
	if opts.DefaultSheet == "" {
		opts.DefaultSheet = "Sheet1"
	}
	s := &Server{
		router: chi.NewRouter(),
		opts:   opts,
		logger: opts.Logger,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(requestID)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Post("/v1/evaluate", s.handleEvaluate)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then drains for up to five
// seconds.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof(ctx, "listening on %s", s.opts.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type ctxKey struct{}

// RequestID returns the id assigned to the request, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.With("request_id", RequestID(r.Context())).Infof(r.Context(), "%s %s %d %dB %s",
			r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(), time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type evaluateRequest struct {
	Formula string          `json:"formula"`
	Sheet   string          `json:"sheet"`
	Cells   json.RawMessage `json:"cells"`
	Names   json.RawMessage `json:"names"`
}

type evaluateResponse struct {
	Value any    `json:"value"`
	Kind  string `json:"kind"`
	Error string `json:"error,omitempty"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		s.writeError(w, r, errors.InvalidInput("invalid request body: %v", err))
		return
	}
	if req.Formula == "" {
		s.writeError(w, r, errors.InvalidInput("formula is required"))
		return
	}
	if req.Sheet == "" {
		req.Sheet = s.opts.DefaultSheet
	}

	wb, err := s.workbook(req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx := r.Context()
	if err := wb.Calculate(ctx); err != nil {
		s.writeError(w, r, errors.Wrap(err, "calculate"))
		return
	}
	v, err := wb.EvaluateFormula(ctx, req.Sheet, req.Formula)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, renderValue(v))
}

// workbook builds a one-sheet workbook from the request cells and names.
func (s *Server) workbook(req evaluateRequest) (*formula.Workbook, error) {
	cells := req.Cells
	if len(cells) == 0 || string(cells) == "null" {
		cells = json.RawMessage("{}")
	}
	doc := map[string]any{
		"sheets": map[string]json.RawMessage{req.Sheet: cells},
	}
	if len(req.Names) > 0 {
		doc["names"] = req.Names
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.InvalidInput("invalid cells: %v", err)
	}
	return loader.ParseJSON(data, s.opts.WorkbookOption...)
}

func renderValue(v formula.CellValue) evaluateResponse {
	v = v.Resolved()
	resp := evaluateResponse{Kind: v.Kind.String()}
	switch v.Kind {
	case formula.KindEmpty:
	case formula.KindInt:
		resp.Value = v.Int
	case formula.KindFloat, formula.KindDateTime:
		resp.Value = v.Num
	case formula.KindBool:
		resp.Value = v.Bool
	case formula.KindError:
		resp.Value = v.Err.Code()
		resp.Error = v.Err.Message
	default:
		resp.Value = v.String()
	}
	return resp
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.Code(err)
	status := http.StatusInternalServerError
	switch code {
	case errors.CodeInvalidInput, errors.CodeParse:
		status = http.StatusBadRequest
	case errors.CodeNotFound:
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		s.logger.Errorf(r.Context(), "evaluate failed: %v", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: code, RequestID: RequestID(r.Context())})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
