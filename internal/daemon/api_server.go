package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"medannotate/internal/api"
	"medannotate/internal/assignment"
	"medannotate/internal/directory"
	"medannotate/internal/keywords"
	"medannotate/internal/logging"
	"medannotate/internal/metrics"
	"medannotate/internal/services"
	"medannotate/internal/workitem"
)

// maxBodyBytes bounds request bodies; trainee submissions carry geometry.
const maxBodyBytes = 4 << 20

type apiServer struct {
	bind    string
	logger  *slog.Logger
	store   *directory.Store
	manager *assignment.Manager

	handler http.Handler

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(bind, token string, store *directory.Store, manager *assignment.Manager, collector *metrics.Collector, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:    strings.TrimSpace(bind),
		logger:  logging.NewComponentLogger(logger, "api-server"),
		store:   store,
		manager: manager,
	}

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("POST /api/work", srv.handleRequestWork)
	apiMux.HandleFunc("GET /api/progress", srv.handleProgress)
	apiMux.HandleFunc("GET /api/items/{id}", srv.handleItem)
	apiMux.HandleFunc("GET /api/items/{id}/records", srv.handleRecords)
	apiMux.HandleFunc("POST /api/items/{id}/session", srv.handleEndSession)
	apiMux.HandleFunc("POST /api/items/{id}/finalize", srv.handleFinalize)
	apiMux.HandleFunc("POST /api/items/{id}/heartbeat", srv.handleHeartbeat)
	apiMux.HandleFunc("POST /api/items/{id}/keywords/{index}/{action}", srv.handleKeywordAction)
	apiMux.HandleFunc("POST /api/items/{id}/submissions", srv.handleSubmission)

	root := http.NewServeMux()
	root.Handle("/api/", authMiddleware(token, apiMux))
	root.Handle("GET /metrics", collector.Handler())
	srv.handler = requestIDMiddleware(root)
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return errors.New("api bind address is empty")
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleRequestWork(w http.ResponseWriter, r *http.Request) {
	var body api.Annotator
	if !s.decode(w, r, &body, false) {
		return
	}
	annotator, err := api.ToAnnotator(body)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	item, counter, err := s.manager.RequestWork(r.Context(), annotator)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	resp := api.WorkResponse{Counter: counter}
	if item != nil {
		dto := api.FromWorkItem(item)
		resp.Item = &dto
		resp.Available = true
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleProgress(w http.ResponseWriter, r *http.Request) {
	summary, err := s.manager.Summary(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromSummary(summary))
}

func (s *apiServer) handleItem(w http.ResponseWriter, r *http.Request) {
	id, ok := s.itemID(w, r)
	if !ok {
		return
	}
	item, err := s.store.GetByID(r.Context(), id)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if item == nil {
		s.writeError(w, http.StatusNotFound, "work item not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.ItemResponse{Item: api.FromWorkItem(item)})
}

func (s *apiServer) handleRecords(w http.ResponseWriter, r *http.Request) {
	id, ok := s.itemID(w, r)
	if !ok {
		return
	}
	var track workitem.Track
	if value := strings.TrimSpace(r.URL.Query().Get("track")); value != "" {
		parsed, err := workitem.ParseTrack(value)
		if err != nil {
			s.writeFailure(w, r, err)
			return
		}
		track = parsed
	}
	records, err := s.store.ListRecords(r.Context(), id, track)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SubmissionResponse{Records: api.FromRecords(records)})
}

func (s *apiServer) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id, ok := s.itemID(w, r)
	if !ok {
		return
	}
	var body api.SessionRequest
	if !s.decode(w, r, &body, false) {
		return
	}
	track, err := workitem.ParseTrack(body.Track)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	progress, err := api.ToProgress(body.Progress)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if err := s.manager.EndSession(r.Context(), id, track, body.Started, progress); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeCounter(w, r, track)
}

func (s *apiServer) handleFinalize(w http.ResponseWriter, r *http.Request) {
	id, ok := s.itemID(w, r)
	if !ok {
		return
	}
	var body api.TrackRequest
	if !s.decode(w, r, &body, false) {
		return
	}
	track, err := workitem.ParseTrack(body.Track)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if err := s.manager.FinalizeItem(r.Context(), id, track); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeCounter(w, r, track)
}

func (s *apiServer) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	id, ok := s.itemID(w, r)
	if !ok {
		return
	}
	var body api.HeartbeatRequest
	if !s.decode(w, r, &body, false) {
		return
	}
	track, err := workitem.ParseTrack(body.Track)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if err := s.manager.Heartbeat(r.Context(), id, track, body.AnnotatorID); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleKeywordAction(w http.ResponseWriter, r *http.Request) {
	id, ok := s.itemID(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid keyword index")
		return
	}
	action, err := keywords.ParseAction(r.PathValue("action"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	var body api.KeywordActionRequest
	if !s.decode(w, r, &body, true) {
		return
	}
	var record *workitem.Record
	if len(body.Payload) > 0 || body.Comment != "" {
		record = &workitem.Record{
			AnnotatorID: strings.TrimSpace(body.AnnotatorID),
			Payload:     body.Payload,
			Comment:     body.Comment,
		}
	}
	progress, err := s.manager.ApplyKeyword(r.Context(), id, action, index, record)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.KeywordActionResponse{ItemID: id, Progress: api.FromProgress(progress)})
}

func (s *apiServer) handleSubmission(w http.ResponseWriter, r *http.Request) {
	id, ok := s.itemID(w, r)
	if !ok {
		return
	}
	var body api.SubmissionRequest
	if !s.decode(w, r, &body, false) {
		return
	}
	records := make([]workitem.Record, 0, len(body.Records))
	for _, input := range body.Records {
		records = append(records, workitem.Record{
			Keyword: input.Keyword,
			Payload: input.Payload,
			Comment: input.Comment,
		})
	}
	stored, err := s.manager.SubmitTrainee(r.Context(), id, body.AnnotatorID, records)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	counter, err := s.manager.Counter(r.Context(), workitem.TrackTrainee)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SubmissionResponse{Records: api.FromRecords(stored), Counter: counter})
}

func (s *apiServer) itemID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid work item id")
		return 0, false
	}
	return id, true
}

// decode reads a JSON body into dst. An empty body is accepted only when
// optional is set.
func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) && optional {
			return true
		}
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func (s *apiServer) writeCounter(w http.ResponseWriter, r *http.Request, track workitem.Track) {
	counter, err := s.manager.Counter(r.Context(), track)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.CounterResponse{Track: string(track), Counter: counter})
}

// statusForError maps domain errors onto HTTP status codes.
func statusForError(err error) int {
	switch workitem.Kind(err) {
	case "not_found":
		return http.StatusNotFound
	case "invariant":
		return http.StatusUnprocessableEntity
	case "lock", "conflict":
		return http.StatusConflict
	case "validation":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	logger := logging.WithContext(r.Context(), s.logger)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Error(err),
		)
		message := "internal error"
		if id, ok := services.RequestIDFromContext(r.Context()); ok {
			message = "internal error (request " + id + ")"
		}
		s.writeError(w, status, message)
		return
	}
	logger.Debug("request rejected",
		logging.String("path", r.URL.Path),
		logging.Int("status", status),
		logging.Error(err),
	)
	s.writeError(w, status, err.Error())
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
