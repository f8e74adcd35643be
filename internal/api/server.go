package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"notely/internal/broadcast"
	"notely/internal/logging"
	"notely/internal/notifications"
)

const defaultMaxUploadBytes = 64 << 20

// Options wires the HTTP API.
type Options struct {
	Queue    *QueueService
	Hub      *broadcast.Hub
	Logs     *logging.StreamHub
	Status   func(ctx context.Context) DaemonStatus
	Notifier notifications.Service
	Token    string
	Logger   *slog.Logger
	// MaxUploadBytes caps an enqueue request body.
	MaxUploadBytes int64
}

type server struct {
	opts     Options
	logger   *slog.Logger
	validate *validator.Validate
	upgrader websocket.Upgrader
}

// NewRouter builds the chi router serving every /api endpoint.
func NewRouter(opts Options) http.Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	s := &server{
		opts:     opts,
		logger:   logging.NewComponentLogger(opts.Logger, "api-server"),
		validate: newValidator(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(contextMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(opts.Token))

			r.Get("/status", s.handleStatus)
			r.Get("/stats", s.handleStats)
			r.Get("/logs", s.handleLogs)
			r.Get("/events", s.handleEvents)
			r.Post("/notifications/test", s.handleTestNotification)

			r.Route("/jobs", func(r chi.Router) {
				r.Get("/", s.handleListJobs)
				r.Post("/", s.handleEnqueue)
				r.Post("/refresh", s.handleRefresh)
				r.Post("/reorder", s.handleReorder)
				r.Post("/retry", s.handleRetryAll)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetJob)
					r.Delete("/", s.handleRemove)
					r.Post("/retry", s.handleRetry)
					r.Post("/move", s.handleMove)
					r.Put("/priority", s.handlePriority)
					r.Get("/history", s.handleHistory)
				})
			})
		})
	})
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.opts.Status == nil {
		writeJSON(s.logger, w, http.StatusOK, DaemonStatus{Running: true})
		return
	}
	writeJSON(s.logger, w, http.StatusOK, s.opts.Status(r.Context()))
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.opts.Queue.Stats(r.Context())
	if err != nil {
		writeDomainError(s.logger, w, r, err)
		return
	}
	writeJSON(s.logger, w, http.StatusOK, stats)
}

func (s *server) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	if s.opts.Notifier == nil {
		writeError(s.logger, w, http.StatusServiceUnavailable, "notifications unavailable")
		return
	}
	if err := s.opts.Notifier.Publish(r.Context(), notifications.EventTest, nil); err != nil {
		writeError(s.logger, w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(s.logger, w, http.StatusAccepted, map[string]string{"status": "sent"})
}
