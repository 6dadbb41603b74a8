package web

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/nebulahq/nebula/auth"
	"github.com/nebulahq/nebula/metrics"
	"github.com/nebulahq/nebula/service"
	"github.com/nebulahq/nebula/types"
)

type Handler struct {
	Service     *service.Service
	ErrorLogger *slog.Logger
	Tokens      auth.Tokens
	Metrics     *metrics.Metrics

	handler http.Handler
	once    sync.Once
}

func (h *Handler) init() {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/users", h.createUser)

	mux.HandleFunc("POST /api/programs", h.createProgram)
	mux.HandleFunc("GET /api/programs", h.programs)
	mux.HandleFunc("GET /api/programs/{slug}", h.showProgram)
	mux.HandleFunc("POST /api/programs/{slug}/enroll", h.enroll)
	mux.HandleFunc("POST /api/programs/{programID}/cohorts", h.createCohort)
	mux.HandleFunc("DELETE /api/programs/{programID}", h.deactivateProgram)

	mux.HandleFunc("GET /api/enrollments", h.enrollments)
	mux.HandleFunc("PATCH /api/enrollments/{enrollmentID}/progress", h.updateEnrollmentProgress)

	mux.HandleFunc("POST /api/conversations", h.createConversation)
	mux.HandleFunc("GET /api/conversations", h.conversations)
	mux.HandleFunc("GET /api/conversations/{conversationID}", h.showConversation)
	mux.HandleFunc("GET /api/conversations/{conversationID}/messages", h.messages)
	mux.HandleFunc("POST /api/conversations/{conversationID}/messages", h.createMessage)
	mux.HandleFunc("POST /api/conversations/{conversationID}/read", h.markConversationRead)

	mux.HandleFunc("GET /healthz", h.healthz)
	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics.Handler())
	}

	h.handler = h.withUser(mux)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.once.Do(h.init)
	h.handler.ServeHTTP(w, r)
}

// withUser resolves the bearer token into an auth context user.
// An absent or invalid token just leaves the request unauthenticated;
// the service layer rejects operations that need a user.
func (h *Handler) withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		userID, err := h.Tokens.Verify(token)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		user, err := h.Service.User(ctx, types.RetrieveUser{UserID: userID})
		if err != nil || !user.IsActive {
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.ContextWithUser(ctx, user)))
	})
}

func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
