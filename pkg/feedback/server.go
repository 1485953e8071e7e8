package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/harunnryd/interviewer/pkg/logging"
)

const maxBodyBytes = 1 << 20

type RouterOptions struct {
	// Path serves the feedback endpoint. Defaults to /api/feedback.
	Path string
	// AllowedOrigin is sent as Access-Control-Allow-Origin. Defaults to *.
	AllowedOrigin string
	// RequestTimeout bounds one feedback generation.
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// NewRouter exposes gen over HTTP with permissive CORS.
func NewRouter(gen Requester, opts RouterOptions) http.Handler {
	if opts.Path == "" {
		opts.Path = "/api/feedback"
	}
	if opts.AllowedOrigin == "" {
		opts.AllowedOrigin = "*"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{gen: gen, timeout: opts.RequestTimeout, logger: logging.NewComponentLogger(logger, "feedback_server")}

	r := chi.NewRouter()
	r.Use(cors(opts.AllowedOrigin))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Options(opts.Path, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Post(opts.Path, h.feedback)
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Allow", "POST, OPTIONS")
		writeJSON(w, http.StatusMethodNotAllowed, Response{Error: "Method " + req.Method + " Not Allowed"})
	})
	return r
}

func cors(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hdr := w.Header()
			hdr.Set("Access-Control-Allow-Origin", origin)
			hdr.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
			hdr.Set("Access-Control-Allow-Headers", "Content-Type, Accept")
			hdr.Set("Access-Control-Max-Age", "600")
			next.ServeHTTP(w, r)
		})
	}
}

type handler struct {
	gen     Requester
	timeout time.Duration
	logger  *slog.Logger
}

func (h *handler) feedback(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.logger.Warn("feedback_bad_request", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, Response{Error: MessageBadRequest})
		return
	}
	if len(req.UserAnswers) == 0 {
		writeJSON(w, http.StatusBadRequest, Response{Error: MessageNoAnswers})
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	text, err := h.gen.Request(ctx, req.UserAnswers)
	if err != nil {
		if errors.Is(err, ErrEmptyTranscript) {
			writeJSON(w, http.StatusBadRequest, Response{Error: MessageNoAnswers})
			return
		}
		h.logger.Error("feedback_failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, Response{Error: MessageUpstreamError})
		return
	}
	writeJSON(w, http.StatusOK, Response{Feedback: text})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
