package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"daily-puzzle-service/internal/app"
	"daily-puzzle-service/internal/domain"
)

// Handler exposes the inbound boundary operations as a thin JSON API. The
// chat transport and its capability checks live upstream; handlers here trust
// the caller.
type Handler struct {
	review       *app.ReviewService
	scoring      *app.ScoringEngine
	scheduler    *app.Scheduler
	leaderboards *app.LeaderboardService
	admin        *app.AdminService
	ratings      *app.RatingService
	hub          *Hub
	log          *zap.Logger
}

func NewHandler(
	review *app.ReviewService,
	scoring *app.ScoringEngine,
	scheduler *app.Scheduler,
	leaderboards *app.LeaderboardService,
	admin *app.AdminService,
	ratings *app.RatingService,
	hub *Hub,
	log *zap.Logger,
) *Handler {
	return &Handler{
		review:       review,
		scoring:      scoring,
		scheduler:    scheduler,
		leaderboards: leaderboards,
		admin:        admin,
		ratings:      ratings,
		hub:          hub,
		log:          log,
	}
}

// Register wires all routes onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /problems", h.createProblem)
	mux.HandleFunc("GET /problems", h.listProblems)
	mux.HandleFunc("POST /problems/{code}/review", h.reviewDecision)
	mux.HandleFunc("POST /problems/{code}/unscore", h.unscore)
	mux.HandleFunc("POST /attempts", h.submitAttempt)
	mux.HandleFunc("POST /activate", h.activate)
	mux.HandleFunc("POST /grants", h.grant)
	mux.HandleFunc("POST /ratings", h.rate)
	mux.HandleFunc("GET /leaderboard", h.leaderboard)
	mux.HandleFunc("GET /leaderboard/curators", h.curators)
	mux.HandleFunc("GET /users/{id}/stats", h.userStats)
	mux.HandleFunc("GET /ws/leaderboard", h.ServeWS)
}

type createProblemRequest struct {
	Code         string `json:"code"`
	Statement    string `json:"statement"`
	Topics       string `json:"topics"`
	Difficulty   int    `json:"difficulty"`
	Setter       string `json:"setter"`
	Source       string `json:"source"`
	Answer       string `json:"answer"`
	AuthorID     string `json:"authorId"`
	ImageRef     string `json:"imageRef"`
	EditorialRef string `json:"editorialRef"`
}

func (h *Handler) createProblem(w http.ResponseWriter, r *http.Request) {
	var req createProblemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := h.review.Submit(r.Context(), app.CreateProblemInput{
		Code:         req.Code,
		Statement:    req.Statement,
		Topics:       req.Topics,
		Difficulty:   req.Difficulty,
		Setter:       req.Setter,
		Source:       req.Source,
		Answer:       req.Answer,
		AuthorID:     req.AuthorID,
		ImageRef:     req.ImageRef,
		EditorialRef: req.EditorialRef,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": p.ID, "code": p.Code})
}

func (h *Handler) listProblems(w http.ResponseWriter, r *http.Request) {
	list, err := h.review.List(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type reviewRequest struct {
	Decision string `json:"decision"` // "approve" or "reject"
	Reason   string `json:"reason"`
}

func (h *Handler) reviewDecision(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var err error
	switch req.Decision {
	case "approve":
		err = h.review.Approve(r.Context(), code)
	case "reject":
		err = h.review.Reject(r.Context(), code, req.Reason)
	default:
		writeError(w, http.StatusBadRequest, "decision must be approve or reject")
		return
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type attemptRequest struct {
	UserID string `json:"userId"`
	Code   string `json:"code"`
	Answer string `json:"answer"`
}

func (h *Handler) submitAttempt(w http.ResponseWriter, r *http.Request) {
	var req attemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := h.scoring.SubmitAttempt(r.Context(), req.UserID, req.Code, req.Answer)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.broadcastLeaderboard(r.Context())
	writeJSON(w, http.StatusOK, result)
}

type activateRequest struct {
	Code string `json:"code"`
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	var req activateRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	p, err := h.scheduler.Activate(r.Context(), req.Code)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"code": p.Code, "opensAt": p.OpensAt, "closesAt": p.ClosesAt})
}

type grantRequest struct {
	UserID string `json:"userId"`
	Points int    `json:"points"`
	Reason string `json:"reason"`
}

func (h *Handler) grant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.admin.Grant(r.Context(), req.UserID, req.Points, req.Reason); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type unscoreRequest struct {
	UserID string `json:"userId"`
}

func (h *Handler) unscore(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	var req unscoreRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	affected, err := h.admin.Unscore(r.Context(), code, req.UserID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"affected": affected})
}

type rateRequest struct {
	UserID string `json:"userId"`
	Code   string `json:"code"`
	Rating int    `json:"rating"`
}

func (h *Handler) rate(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.ratings.Rate(r.Context(), req.UserID, req.Code, req.Rating); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"), 10)
	var (
		lb  domain.Leaderboard
		err error
	)
	switch period := r.URL.Query().Get("period"); period {
	case "", "overall":
		lb, err = h.leaderboards.Overall(r.Context(), limit)
	case "today":
		lb, err = h.leaderboards.Today(r.Context(), limit)
	default:
		lb, err = h.leaderboards.ForProblem(r.Context(), period, limit)
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

func (h *Handler) curators(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"), 10)
	entries, err := h.leaderboards.Curators(r.Context(), limit)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) userStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.leaderboards.UserStats(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) broadcastLeaderboard(ctx context.Context) {
	lb, err := h.leaderboards.Overall(ctx, 10)
	if err != nil {
		h.log.Warn("leaderboard broadcast skipped", zap.Error(err))
		return
	}
	h.hub.Broadcast(lb)
}

// writeDomainError maps the error taxonomy onto status codes. Business-rule
// rejections are expected outcomes and are surfaced verbatim, never logged as
// failures.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrDuplicateCode), errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrSelfSubmission),
		errors.Is(err, domain.ErrWindowClosed),
		errors.Is(err, domain.ErrAlreadySolved),
		errors.Is(err, domain.ErrCreateRateLimited),
		errors.Is(err, domain.ErrNotSolved),
		errors.Is(err, domain.ErrNotReleasable),
		errors.Is(err, domain.ErrExhausted):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func parseLimit(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		return n
	}
	return fallback
}
