package http

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"classroom-session-service/internal/app"
	"classroom-session-service/internal/domain"
)

// SessionHandler exposes the session engine over REST. All state and role
// checks live in the engine; the handler only decodes, dispatches, and maps
// the error taxonomy to status codes.
type SessionHandler struct {
	service *app.SessionService
	logger  *zap.Logger
}

func NewSessionHandler(service *app.SessionService, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{service: service, logger: logger}
}

// Register wires the session routes into an authenticated router group.
func (h *SessionHandler) Register(r gin.IRouter) {
	r.POST("/sessions", h.Create)
	r.POST("/sessions/join", h.Join)
	r.GET("/sessions/:id", h.Status)
	r.POST("/sessions/:id/start", h.Start)
	r.POST("/sessions/:id/answers", h.SubmitAnswer)
	r.POST("/sessions/:id/finish", h.Finalize)
	r.GET("/sessions/:id/ranking", h.Ranking)
}

type createRequest struct {
	Name            string `json:"name"`
	Topic           string `json:"topic"`
	QuestionCount   int    `json:"questionCount"`
	DurationMinutes int    `json:"durationMinutes"`
	PomodoroEnabled bool   `json:"pomodoroEnabled"`
}

type joinRequest struct {
	Code string `json:"code"`
}

type answerRequest struct {
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
}

// Create handles POST /sessions (teacher creates a timed quiz session).
func (h *SessionHandler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	session, err := h.service.Create(c.Request.Context(), principalFrom(c), app.CreateParams{
		Name:            req.Name,
		Topic:           req.Topic,
		QuestionCount:   req.QuestionCount,
		DurationMinutes: req.DurationMinutes,
		PomodoroEnabled: req.PomodoroEnabled,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	respondCreated(c, newSessionView(session, principalFrom(c)))
}

// Join handles POST /sessions/join (student joins by code).
func (h *SessionHandler) Join(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	session, err := h.service.Join(c.Request.Context(), principalFrom(c), req.Code)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respondOK(c, newSessionView(session, principalFrom(c)))
}

// Status handles GET /sessions/:id (owner or participant polls state).
func (h *SessionHandler) Status(c *gin.Context) {
	session, err := h.service.Status(c.Request.Context(), principalFrom(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	respondOK(c, newSessionView(session, principalFrom(c)))
}

// Start handles POST /sessions/:id/start (owner activates the session).
func (h *SessionHandler) Start(c *gin.Context) {
	session, err := h.service.Start(c.Request.Context(), principalFrom(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	respondOK(c, newSessionView(session, principalFrom(c)))
}

// SubmitAnswer handles POST /sessions/:id/answers. The response discloses
// only correctness and the new total; the correct letter is never echoed.
func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	result, err := h.service.SubmitAnswer(c.Request.Context(), principalFrom(c), c.Param("id"), req.QuestionID, req.Answer)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respondOK(c, result)
}

// Finalize handles POST /sessions/:id/finish (owner closes the session).
func (h *SessionHandler) Finalize(c *gin.Context) {
	session, err := h.service.Finalize(c.Request.Context(), principalFrom(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	respondOK(c, newSessionView(session, principalFrom(c)))
}

// Ranking handles GET /sessions/:id/ranking.
func (h *SessionHandler) Ranking(c *gin.Context) {
	view, err := h.service.Ranking(c.Request.Context(), principalFrom(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	respondOK(c, view)
}

// writeError maps the engine's error taxonomy onto HTTP status codes. Every
// kind carries a stable, user-presentable message; nothing is retried here.
func (h *SessionHandler) writeError(c *gin.Context, err error) {
	var (
		validationErr   *domain.ValidationError
		invalidStateErr *domain.InvalidStateError
		upstreamErr     *domain.UpstreamError
	)
	switch {
	case errors.As(err, &validationErr):
		respondBadRequest(c, validationErr.Error())
	case domain.IsAuthorization(err):
		respondForbidden(c, err.Error())
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrQuestionNotFound):
		respondNotFound(c, err.Error())
	case errors.As(err, &invalidStateErr):
		respondConflict(c, invalidStateErr.Error())
	case errors.Is(err, domain.ErrAlreadyAnswered), errors.Is(err, domain.ErrVersionConflict):
		respondConflict(c, err.Error())
	case errors.As(err, &upstreamErr):
		h.logger.Error("question generation failed", zap.Error(err))
		respondBadGateway(c, upstreamErr.Error())
	default:
		h.logger.Error("unhandled error", zap.Error(err))
		respondInternal(c, "internal server error")
	}
}
