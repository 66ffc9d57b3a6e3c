package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"archivist/internal/api"
	"archivist/internal/bookmarks"
	"archivist/internal/config"
	"archivist/internal/jobs"
	"archivist/internal/logging"
	"archivist/internal/scheduler"
	"archivist/internal/settings"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
	upgrader websocket.Upgrader
	stopOnce sync.Once
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", srv.handleHealth)
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/jobs", srv.handleJobs)
	mux.HandleFunc("/api/jobs/", srv.handleJobSubpath)
	mux.HandleFunc("/api/jobs/events", srv.handleEvents)
	mux.HandleFunc("/api/jobs/ws", srv.handleWebsocket)
	mux.HandleFunc("/api/search", srv.handleSearch)
	mux.HandleFunc("/api/searches", srv.handleRecentSearches)
	mux.HandleFunc("/api/items/", srv.handleItem)
	mux.HandleFunc("/api/bookmarks", srv.handleBookmarks)
	mux.HandleFunc("/api/bookmarks/", srv.handleBookmarkItem)
	mux.HandleFunc("/api/settings", srv.handleSettings)

	srv.server = &http.Server{
		Handler:           requireToken(cfg.Paths.APIToken, mux),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
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
	s.stopOnce.Do(func() {
		if s.server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = s.server.Shutdown(shutdownCtx)
		}
		if s.listener != nil {
			_ = s.listener.Close()
		}
	})
}

// addr returns the bound address, useful when the bind port was 0.
func (s *apiServer) addr() string {
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	counts := make(map[string]int, len(status.JobCounts))
	for state, count := range status.JobCounts {
		counts[string(state)] = count
	}
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		Capacity:     status.Capacity,
		ActiveJobs:   status.ActiveJobs,
		JobCounts:    counts,
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
		DataDir:      status.DataDir,
	})
}

func (s *apiServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: api.FromJobs(s.daemon.sched.ListActive())})
	case http.MethodPost:
		s.handleCreateJob(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req api.CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	job, err := s.daemon.sched.Create(r.Context(), scheduler.CreateRequest{
		Identifier: req.Identifier,
		Files:      req.Files,
		Glob:       req.Glob,
		Format:     req.Format,
		DestDir:    req.DestDir,
		Overrides: scheduler.OptionOverrides{
			SkipExisting:       req.SkipExisting,
			VerifyChecksum:     req.VerifyChecksum,
			Retries:            req.Retries,
			TimeoutSeconds:     req.TimeoutSeconds,
			Flatten:            req.Flatten,
			PreserveTimestamps: req.PreserveTimestamps,
			IncludeDerivatives: req.IncludeDerivatives,
			Sources:            req.Sources,
			ExcludeSources:     req.ExcludeSources,
			ExcludeGlob:        req.ExcludeGlob,
		},
	})
	if err != nil {
		if errors.Is(err, scheduler.ErrNotAccepting) {
			s.writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, api.JobResponse{Job: api.FromJob(job)})
}

func (s *apiServer) handleJobSubpath(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if rest == "history" {
		s.handleHistory(w, r)
		return
	}
	if id, ok := strings.CutSuffix(rest, "/cancel"); ok {
		s.handleCancel(w, r, id)
		return
	}
	if rest == "" || strings.Contains(rest, "/") {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	// DELETE on a job is a cancel request.
	if r.Method == http.MethodDelete {
		s.handleCancel(w, r, rest)
		return
	}
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	job, err := s.daemon.sched.Get(r.Context(), rest)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "job not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobResponse{Job: api.FromJob(job)})
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		history, err := s.daemon.sched.History(r.Context(), limit)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: api.FromJobs(history)})
	case http.MethodDelete:
		removed, err := s.daemon.sched.ClearHistory(r.Context())
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.ClearHistoryResponse{Removed: removed})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleCancel(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	cancelled := s.daemon.sched.Cancel(r.Context(), id)
	s.writeJSON(w, http.StatusOK, api.CancelResponse{Cancelled: cancelled})
}

func (s *apiServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		s.writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	rows, _ := strconv.Atoi(r.URL.Query().Get("rows"))
	sort := r.URL.Query().Get("sort")

	result, err := s.daemon.content.Search(r.Context(), query, page, rows, sort)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if err := s.daemon.settings.RecordSearch(r.Context(), query); err != nil {
		s.logger.Warn("record search failed", logging.Error(err))
	}
	s.writeJSON(w, http.StatusOK, api.SearchResponse{
		Results: result.Results,
		Total:   result.Total,
		Page:    result.Page,
		Rows:    result.Rows,
	})
}

func (s *apiServer) handleRecentSearches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	queries, err := s.daemon.settings.RecentSearches(r.Context(), 10)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.SearchHistoryResponse{Queries: queries})
}

func (s *apiServer) handleItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	identifier := strings.TrimPrefix(r.URL.Path, "/api/items/")
	if identifier == "" || strings.Contains(identifier, "/") {
		s.writeError(w, http.StatusNotFound, "item not found")
		return
	}
	item, err := s.daemon.content.Item(r.Context(), identifier)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.ItemResponse{Item: *item})
}

func (s *apiServer) handleBookmarks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		marks, err := s.daemon.bookmarks.List(r.Context())
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.BookmarkListResponse{Bookmarks: marks})
	case http.MethodPost:
		var req api.BookmarkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		err := s.daemon.bookmarks.Add(r.Context(), bookmarks.Bookmark{
			Identifier: req.Identifier,
			Title:      req.Title,
			MediaType:  req.MediaType,
			Note:       req.Note,
		})
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeJSON(w, http.StatusCreated, nil)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleBookmarkItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	identifier := strings.TrimPrefix(r.URL.Path, "/api/bookmarks/")
	if identifier == "" {
		s.writeError(w, http.StatusNotFound, "bookmark not found")
		return
	}
	if err := s.daemon.bookmarks.Remove(r.Context(), identifier); err != nil {
		if errors.Is(err, bookmarks.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "bookmark not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, nil)
}

func (s *apiServer) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeSettings(w, r)
	case http.MethodPut:
		var req api.UpdateSettingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		for key, value := range req.Settings {
			if key == settings.KeyMaxConcurrentTransfers {
				var requested int
				if err := json.Unmarshal(value, &requested); err != nil {
					s.writeError(w, http.StatusBadRequest, "max_concurrent_transfers must be an integer")
					return
				}
				clamped := s.daemon.sched.SetCapacity(requested)
				if err := s.daemon.settings.Set(r.Context(), key, clamped); err != nil {
					s.writeError(w, http.StatusInternalServerError, err.Error())
					return
				}
				continue
			}
			if err := s.daemon.settings.Set(r.Context(), key, value); err != nil {
				if errors.Is(err, settings.ErrUnknownKey) {
					s.writeError(w, http.StatusBadRequest, err.Error())
					return
				}
				s.writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
		s.writeSettings(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) writeSettings(w http.ResponseWriter, r *http.Request) {
	all, err := s.daemon.settings.All(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.SettingsResponse{Settings: all})
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
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}
