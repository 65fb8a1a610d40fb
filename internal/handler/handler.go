// Package handler содержит HTTP-обработчики API платформы доверия.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/nicolasromanina/immo-backend-sub004/internal/middleware"
	"github.com/nicolasromanina/immo-backend-sub004/internal/model"
	"github.com/nicolasromanina/immo-backend-sub004/internal/repository"
	"github.com/nicolasromanina/immo-backend-sub004/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	GetPromoteur(ctx context.Context, id int64) (*model.Promoteur, error)
	CalculateScore(ctx context.Context, promoteurID int64) (*model.ScoreResult, error)
	RecalculateAllScores(ctx context.Context) (model.SweepResult, error)

	GetSanctionHistory(ctx context.Context, promoteurID int64) (*model.SanctionHistory, error)
	CheckUpdateFrequency(ctx context.Context) (model.SweepResult, error)
	RemoveExpiredRestrictions(ctx context.Context) (model.SweepResult, error)

	CreateBadge(ctx context.Context, b model.Badge) (int64, error)
	CheckAndAwardBadges(ctx context.Context, promoteurID int64) ([]string, error)
	RemoveBadge(ctx context.Context, promoteurID int64, slug string) error
	CheckExpiredBadges(ctx context.Context) (model.SweepResult, error)

	CreateAppeal(ctx context.Context, input service.CreateAppealInput) (*model.Appeal, error)
	ListAppeals(ctx context.Context, status model.AppealStatus) ([]model.Appeal, error)
	AssignAppeal(ctx context.Context, appealID int64, assignee string) (*model.Appeal, error)
	AddReviewNote(ctx context.Context, appealID int64, note, addedBy string, isInternal bool) (*model.ReviewNote, error)
	EscalateToN2(ctx context.Context, appealID int64, reason string) (*model.Appeal, error)
	ResolveAppeal(ctx context.Context, appealID int64, outcome model.AppealOutcome, explanation, decidedBy string, newAction *model.NewAction) (*model.Appeal, error)
	CheckOverdueAppeals(ctx context.Context) (model.SweepResult, error)
	GetAppealStats(ctx context.Context, days int) (*model.AppealStats, error)

	GetScoreConfig(ctx context.Context) *model.ScoreConfig
	SaveScoreConfig(ctx context.Context, cfg model.ScoreConfig) (int64, error)
	ActivateScoreConfig(ctx context.Context, id int64, actor string) error
}

// Handler реализует HTTP-обработчики API платформы доверия.
type Handler struct {
	service         Service
	logger          *zap.Logger
	authMiddleware  *middleware.AuthMiddleware
	adminMiddleware *middleware.AdminMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, admin *middleware.AdminMiddleware) *Handler {
	return &Handler{
		service:         s,
		logger:          logger,
		authMiddleware:  auth,
		adminMiddleware: admin,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}

// serviceError транслирует ошибки бизнес-логики в HTTP-статусы.
func (h *Handler) serviceError(w http.ResponseWriter, err error, logMsg string, fields ...zap.Field) {
	switch {
	case errors.Is(err, repository.ErrPromoteurNotFound),
		errors.Is(err, repository.ErrAppealNotFound),
		errors.Is(err, repository.ErrBadgeNotFound),
		errors.Is(err, repository.ErrScoreConfigNotFound),
		errors.Is(err, service.ErrBadgeNotAwarded):
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, repository.ErrBadgeExists):
		http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
	default:
		h.logger.Error(logMsg, append(fields, zap.Error(err))...)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

type restrictionResponse struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	Reason    string `json:"reason"`
	AppliedAt string `json:"appliedAt"`
	ExpiresAt string `json:"expiresAt,omitempty"`
}

func toRestrictionResponse(r model.Restriction) restrictionResponse {
	resp := restrictionResponse{
		ID:        r.ID,
		Type:      string(r.Type),
		Reason:    r.Reason,
		AppliedAt: r.AppliedAt.Format(time.RFC3339),
	}
	if r.ExpiresAt != nil {
		resp.ExpiresAt = r.ExpiresAt.Format(time.RFC3339)
	}
	return resp
}

type sanctionsResponse struct {
	Active       []restrictionResponse `json:"active"`
	Expired      []restrictionResponse `json:"expired"`
	CurrentLevel string                `json:"currentLevel"`
}

func toSanctionsResponse(history *model.SanctionHistory) sanctionsResponse {
	resp := sanctionsResponse{
		Active:       make([]restrictionResponse, 0, len(history.Active)),
		Expired:      make([]restrictionResponse, 0, len(history.Expired)),
		CurrentLevel: string(history.CurrentLevel),
	}
	for _, r := range history.Active {
		resp.Active = append(resp.Active, toRestrictionResponse(r))
	}
	for _, r := range history.Expired {
		resp.Expired = append(resp.Expired, toRestrictionResponse(r))
	}
	return resp
}

type appealResponse struct {
	ID               int64                 `json:"id"`
	Reference        string                `json:"reference"`
	PromoteurID      int64                 `json:"promoteurId"`
	ProjectID        *int64                `json:"projectId,omitempty"`
	Type             string                `json:"type"`
	Reason           string                `json:"reason"`
	Description      string                `json:"description,omitempty"`
	OriginalAction   model.OriginalAction  `json:"originalAction"`
	Evidence         []string              `json:"evidence,omitempty"`
	MitigationPlan   string                `json:"mitigationPlan,omitempty"`
	Status           string                `json:"status"`
	Level            int                   `json:"level"`
	SubmittedAt      string                `json:"submittedAt"`
	Deadline         string                `json:"deadline"`
	Escalated        bool                  `json:"escalated"`
	EscalationReason string                `json:"escalationReason,omitempty"`
	AssignedTo       string                `json:"assignedTo,omitempty"`
	ReviewStartedAt  string                `json:"reviewStartedAt,omitempty"`
	ResolvedAt       string                `json:"resolvedAt,omitempty"`
	Decision         *model.AppealDecision `json:"decision,omitempty"`
}

func toAppealResponse(a *model.Appeal) appealResponse {
	resp := appealResponse{
		ID:               a.ID,
		Reference:        a.Reference,
		PromoteurID:      a.PromoteurID,
		ProjectID:        a.ProjectID,
		Type:             a.Type,
		Reason:           a.Reason,
		Description:      a.Description,
		OriginalAction:   a.OriginalAction,
		Evidence:         a.Evidence,
		MitigationPlan:   a.MitigationPlan,
		Status:           string(a.Status),
		Level:            a.Level,
		SubmittedAt:      a.SubmittedAt.Format(time.RFC3339),
		Deadline:         a.Deadline.Format(time.RFC3339),
		Escalated:        a.Escalated,
		EscalationReason: a.EscalationReason,
		AssignedTo:       a.AssignedTo,
		Decision:         a.Decision,
	}
	if a.ReviewStartedAt != nil {
		resp.ReviewStartedAt = a.ReviewStartedAt.Format(time.RFC3339)
	}
	if a.ResolvedAt != nil {
		resp.ResolvedAt = a.ResolvedAt.Format(time.RFC3339)
	}
	return resp
}

type createAppealRequest struct {
	ProjectID      *int64               `json:"projectId"`
	Type           string               `json:"type"`
	Reason         string               `json:"reason"`
	Description    string               `json:"description"`
	OriginalAction model.OriginalAction `json:"originalAction"`
	Evidence       []string             `json:"evidence"`
	MitigationPlan string               `json:"mitigationPlan"`
}

// SubmitAppeal регистрирует апелляцию текущего промоутера.
func (h *Handler) SubmitAppeal(w http.ResponseWriter, r *http.Request) {
	promoteurID, ok := middleware.GetPromoteurIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req createAppealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Type == "" || req.Reason == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if req.OriginalAction.Type == "" || req.OriginalAction.AppliedAt.IsZero() {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	appeal, err := h.service.CreateAppeal(r.Context(), service.CreateAppealInput{
		PromoteurID:    promoteurID,
		ProjectID:      req.ProjectID,
		Type:           req.Type,
		Reason:         req.Reason,
		Description:    req.Description,
		OriginalAction: req.OriginalAction,
		Evidence:       req.Evidence,
		MitigationPlan: req.MitigationPlan,
	})
	if err != nil {
		h.serviceError(w, err, "create appeal error", zap.Int64("promoteurID", promoteurID))
		return
	}

	h.writeJSON(w, http.StatusCreated, toAppealResponse(appeal))
}

// GetOwnSanctions возвращает историю санкций текущего промоутера.
func (h *Handler) GetOwnSanctions(w http.ResponseWriter, r *http.Request) {
	promoteurID, ok := middleware.GetPromoteurIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	history, err := h.service.GetSanctionHistory(r.Context(), promoteurID)
	if err != nil {
		h.serviceError(w, err, "get sanction history error", zap.Int64("promoteurID", promoteurID))
		return
	}

	h.writeJSON(w, http.StatusOK, toSanctionsResponse(history))
}

type scoreResponse struct {
	PromoteurID        int64  `json:"promoteurId"`
	TrustScore         int    `json:"trustScore"`
	SubscriptionStatus string `json:"subscriptionStatus"`
	ProfileComplete    bool   `json:"profileComplete"`
}

// GetOwnScore возвращает текущий рейтинг доверия промоутера.
func (h *Handler) GetOwnScore(w http.ResponseWriter, r *http.Request) {
	promoteurID, ok := middleware.GetPromoteurIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	p, err := h.service.GetPromoteur(r.Context(), promoteurID)
	if err != nil {
		h.serviceError(w, err, "get promoteur error", zap.Int64("promoteurID", promoteurID))
		return
	}

	h.writeJSON(w, http.StatusOK, scoreResponse{
		PromoteurID:        p.ID,
		TrustScore:         p.TrustScore,
		SubscriptionStatus: string(p.SubscriptionStatus),
		ProfileComplete:    p.ProfileComplete,
	})
}
