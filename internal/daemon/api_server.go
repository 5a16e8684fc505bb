package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"soundsketch/internal/api"
	"soundsketch/internal/config"
	"soundsketch/internal/fileutil"
	"soundsketch/internal/logging"
	"soundsketch/internal/services"
)

// uploadField is the multipart form field carrying the audio file.
const uploadField = "file"

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(cfg.API.CORSOrigins),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes(origins []string) http.Handler {
	router := mux.NewRouter().StrictSlash(true)
	router.Use(s.requestContext)
	router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/api/convert", s.handleConvert).Methods(http.MethodPost)
	router.HandleFunc("/api/status/{job_id}", s.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/api/download/{job_id}/{file_type}/{instrument}", s.handleDownload).Methods(http.MethodGet)
	router.HandleFunc("/api/jobs", s.handleJobs).Methods(http.MethodGet)
	router.HandleFunc("/api/jobs/{job_id}", s.handleDeleteJob).Methods(http.MethodDelete)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, "not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(router)
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "api server error", "api_serve_failed", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// requestContext stamps a request id on the context and logs each request.
func (s *apiServer) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := services.WithRequestID(r.Context(), id)
		started := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		logging.WithContext(ctx, s.logger).Debug("request served",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Duration("elapsed", time.Since(started)),
		)
	})
}

func (s *apiServer) handleIndex(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.IndexResponse{
		Message: "SoundSketch Audio to Sheet Music API",
		Version: api.Version,
		Endpoints: map[string]string{
			"upload":   "/api/convert",
			"status":   "/api/status/{job_id}",
			"download": "/api/download/{job_id}/{file_type}/{instrument}",
			"jobs":     "/api/jobs",
			"health":   "/health",
		},
	})
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	wf := api.FromStatusSummary(s.daemon.workflow.Status(r.Context()))
	status := "healthy"
	if err := s.daemon.store.Ping(r.Context()); err != nil {
		status = "degraded"
		wf.LastError = err.Error()
	}
	s.writeJSON(w, http.StatusOK, api.HealthResponse{
		Status:    status,
		Timestamp: api.FormatTime(time.Now()),
		Workflow:  &wf,
	})
}

func (s *apiServer) handleConvert(w http.ResponseWriter, r *http.Request) {
	// Room for multipart framing on top of the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, s.daemon.cfg.MaxUploadBytes()+1<<20)
	reader, err := r.MultipartReader()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "expected multipart/form-data upload")
		return
	}
	part, err := nextFilePart(reader)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer part.Close()

	job, err := s.daemon.Submit(r.Context(), part.FileName(), part)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ConversionResponse{
		JobID:   job.ID,
		Status:  string(job.Status),
		Message: "Audio file uploaded successfully. Processing started.",
	})
}

func nextFilePart(reader *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := reader.NextPart()
		if err != nil {
			return nil, fmt.Errorf("missing %q file field", uploadField)
		}
		if part.FormName() == uploadField && part.FileName() != "" {
			return part, nil
		}
		part.Close()
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.daemon.jobs.Describe(r.Context(), mux.Vars(r)["job_id"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

func (s *apiServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	fileType, ok := api.ParseFileType(vars["file_type"])
	if !ok {
		s.writeError(w, http.StatusBadRequest, "file_type must be midi or musicxml")
		return
	}
	instrument := vars["instrument"]
	path, err := s.daemon.jobs.Download(r.Context(), vars["job_id"], fileType, instrument)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", fileType.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", instrument+filepath.Ext(path)))
	http.ServeFile(w, r, path)
}

func (s *apiServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	limit := api.DefaultListLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	jobs, err := s.daemon.jobs.List(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: jobs})
}

func (s *apiServer) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	removed, err := s.daemon.jobs.Remove(r.Context(), mux.Vars(r)["job_id"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if !removed {
		s.writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.MessageResponse{Message: "Job deleted successfully"})
}

// writeServiceError maps error markers to HTTP status codes.
func (s *apiServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, fileutil.ErrTooLarge), errors.As(err, &tooLarge):
		s.writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("File exceeds %d MB limit", s.daemon.cfg.API.MaxUploadMB))
	case errors.Is(err, services.ErrNotFound):
		s.writeError(w, http.StatusNotFound, detailMessage(err))
	case errors.Is(err, services.ErrValidation):
		s.writeError(w, http.StatusBadRequest, detailMessage(err))
	case errors.Is(err, api.ErrJobBusy):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "request failed", "api_request_failed",
			logging.String("path", r.URL.Path),
			logging.Error(err),
		)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// detailMessage drops the "stage: operation: " prefix of a wrapped error.
func detailMessage(err error) string {
	parts := strings.SplitN(services.Details(err), ": ", 3)
	return parts[len(parts)-1]
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
	s.writeJSON(w, status, api.ErrorResponse{Detail: message})
}
