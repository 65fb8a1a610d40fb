package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/nicolasromanina/immo-backend-sub004/internal/model"
	"github.com/nicolasromanina/immo-backend-sub004/internal/validation"
)

func urlID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// RecalculateScore пересчитывает рейтинг одного промоутера и возвращает разбивку.
func (h *Handler) RecalculateScore(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	result, err := h.service.CalculateScore(r.Context(), id)
	if err != nil {
		h.serviceError(w, err, "recalculate score error", zap.Int64("promoteurID", id))
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// RecalculateAllScores запускает пересчёт рейтинга всех промоутеров.
func (h *Handler) RecalculateAllScores(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.RecalculateAllScores(r.Context())
	if err != nil {
		h.serviceError(w, err, "recalculate all scores error")
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// GetPromoteurSanctions возвращает историю санкций указанного промоутера.
func (h *Handler) GetPromoteurSanctions(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	history, err := h.service.GetSanctionHistory(r.Context(), id)
	if err != nil {
		h.serviceError(w, err, "get sanction history error", zap.Int64("promoteurID", id))
		return
	}

	h.writeJSON(w, http.StatusOK, toSanctionsResponse(history))
}

// RunSanctionSweep запускает проверку частоты обновлений строящихся проектов.
func (h *Handler) RunSanctionSweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.CheckUpdateFrequency(r.Context())
	if err != nil {
		h.serviceError(w, err, "update frequency sweep error")
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// RunRestrictionSweep снимает истёкшие ограничения.
func (h *Handler) RunRestrictionSweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.RemoveExpiredRestrictions(r.Context())
	if err != nil {
		h.serviceError(w, err, "expired restrictions sweep error")
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// RunBadgeSweep снимает истёкшие бейджи.
func (h *Handler) RunBadgeSweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.CheckExpiredBadges(r.Context())
	if err != nil {
		h.serviceError(w, err, "expired badges sweep error")
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// RunAppealSweep эскалирует просроченные апелляции.
func (h *Handler) RunAppealSweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.CheckOverdueAppeals(r.Context())
	if err != nil {
		h.serviceError(w, err, "overdue appeals sweep error")
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

type createBadgeRequest struct {
	Slug            string              `json:"slug"`
	Category        string              `json:"category"`
	Criteria        model.BadgeCriteria `json:"criteria"`
	TrustScoreBonus int                 `json:"trustScoreBonus"`
	HasExpiration   bool                `json:"hasExpiration"`
	ExpirationDays  int                 `json:"expirationDays"`
}

// CreateBadge добавляет бейдж в каталог.
func (h *Handler) CreateBadge(w http.ResponseWriter, r *http.Request) {
	var req createBadgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Slug == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateCriteria(req.Criteria); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	id, err := h.service.CreateBadge(r.Context(), model.Badge{
		Slug:            req.Slug,
		Category:        req.Category,
		Criteria:        req.Criteria,
		TrustScoreBonus: req.TrustScoreBonus,
		HasExpiration:   req.HasExpiration,
		ExpirationDays:  req.ExpirationDays,
		IsActive:        true,
	})
	if err != nil {
		h.serviceError(w, err, "create badge error", zap.String("slug", req.Slug))
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

// CheckBadges оценивает критерии каталога для промоутера и присуждает новые бейджи.
func (h *Handler) CheckBadges(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	awarded, err := h.service.CheckAndAwardBadges(r.Context(), id)
	if err != nil {
		h.serviceError(w, err, "check badges error", zap.Int64("promoteurID", id))
		return
	}

	h.writeJSON(w, http.StatusOK, map[string][]string{"awarded": awarded})
}

// RevokeBadge снимает бейдж с промоутера.
func (h *Handler) RevokeBadge(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	slug := chi.URLParam(r, "slug")
	if slug == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.RemoveBadge(r.Context(), id, slug); err != nil {
		h.serviceError(w, err, "revoke badge error", zap.Int64("promoteurID", id), zap.String("slug", slug))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

var listableStatuses = map[model.AppealStatus]bool{
	model.AppealStatusPending:     true,
	model.AppealStatusUnderReview: true,
	model.AppealStatusEscalated:   true,
	model.AppealStatusApproved:    true,
	model.AppealStatusRejected:    true,
}

// ListAppeals возвращает апелляции в указанном статусе, по умолчанию ожидающие.
func (h *Handler) ListAppeals(w http.ResponseWriter, r *http.Request) {
	status := model.AppealStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = model.AppealStatusPending
	}
	if !listableStatuses[status] {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	appeals, err := h.service.ListAppeals(r.Context(), status)
	if err != nil {
		h.serviceError(w, err, "list appeals error", zap.String("status", string(status)))
		return
	}

	resp := make([]appealResponse, 0, len(appeals))
	for i := range appeals {
		resp = append(resp, toAppealResponse(&appeals[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type assignAppealRequest struct {
	Assignee string `json:"assignee"`
}

// AssignAppeal назначает рецензента и переводит апелляцию в рассмотрение.
func (h *Handler) AssignAppeal(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req assignAppealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Assignee == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	appeal, err := h.service.AssignAppeal(r.Context(), id, req.Assignee)
	if err != nil {
		h.serviceError(w, err, "assign appeal error", zap.Int64("appealID", id))
		return
	}

	h.writeJSON(w, http.StatusOK, toAppealResponse(appeal))
}

type reviewNoteRequest struct {
	Note       string `json:"note"`
	AddedBy    string `json:"addedBy"`
	IsInternal bool   `json:"isInternal"`
}

type reviewNoteResponse struct {
	ID         int64  `json:"id"`
	AppealID   int64  `json:"appealId"`
	Note       string `json:"note"`
	AddedBy    string `json:"addedBy"`
	AddedAt    string `json:"addedAt"`
	IsInternal bool   `json:"isInternal"`
}

// AddAppealNote добавляет заметку рецензента к апелляции.
func (h *Handler) AddAppealNote(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req reviewNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Note == "" || req.AddedBy == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	note, err := h.service.AddReviewNote(r.Context(), id, req.Note, req.AddedBy, req.IsInternal)
	if err != nil {
		h.serviceError(w, err, "add review note error", zap.Int64("appealID", id))
		return
	}

	h.writeJSON(w, http.StatusCreated, reviewNoteResponse{
		ID:         note.ID,
		AppealID:   note.AppealID,
		Note:       note.Note,
		AddedBy:    note.AddedBy,
		AddedAt:    note.AddedAt.Format(time.RFC3339),
		IsInternal: note.IsInternal,
	})
}

type escalateAppealRequest struct {
	Reason string `json:"reason"`
}

// EscalateAppeal эскалирует апелляцию с уровня N1 на уровень N2.
func (h *Handler) EscalateAppeal(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req escalateAppealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Reason == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	appeal, err := h.service.EscalateToN2(r.Context(), id, req.Reason)
	if err != nil {
		h.serviceError(w, err, "escalate appeal error", zap.Int64("appealID", id))
		return
	}

	h.writeJSON(w, http.StatusOK, toAppealResponse(appeal))
}

type resolveAppealRequest struct {
	Outcome     string           `json:"outcome"`
	Explanation string           `json:"explanation"`
	DecidedBy   string           `json:"decidedBy"`
	NewAction   *model.NewAction `json:"newAction,omitempty"`
}

var resolvableOutcomes = map[model.AppealOutcome]bool{
	model.OutcomeApproved:          true,
	model.OutcomePartiallyApproved: true,
	model.OutcomeRejected:          true,
}

// ResolveAppeal выносит решение по апелляции.
func (h *Handler) ResolveAppeal(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req resolveAppealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	outcome := model.AppealOutcome(req.Outcome)
	if !resolvableOutcomes[outcome] || req.DecidedBy == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	appeal, err := h.service.ResolveAppeal(r.Context(), id, outcome, req.Explanation, req.DecidedBy, req.NewAction)
	if err != nil {
		h.serviceError(w, err, "resolve appeal error", zap.Int64("appealID", id))
		return
	}

	h.writeJSON(w, http.StatusOK, toAppealResponse(appeal))
}

// GetAppealStats возвращает статистику апелляций за указанный период в днях.
func (h *Handler) GetAppealStats(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		days = parsed
	}

	stats, err := h.service.GetAppealStats(r.Context(), days)
	if err != nil {
		h.serviceError(w, err, "appeal stats error")
		return
	}

	h.writeJSON(w, http.StatusOK, stats)
}

// GetActiveScoreConfig возвращает конфигурацию, с которой работает движок рейтинга.
func (h *Handler) GetActiveScoreConfig(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.GetScoreConfig(r.Context()))
}

// SaveScoreConfig сохраняет новую версию конфигурации рейтинга.
func (h *Handler) SaveScoreConfig(w http.ResponseWriter, r *http.Request) {
	var cfg model.ScoreConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if cfg.Name == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	id, err := h.service.SaveScoreConfig(r.Context(), cfg)
	if err != nil {
		h.serviceError(w, err, "save score config error", zap.String("name", cfg.Name))
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

type activateConfigRequest struct {
	Actor string `json:"actor"`
}

// ActivateScoreConfig делает указанную конфигурацию рейтинга активной.
func (h *Handler) ActivateScoreConfig(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req activateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.ActivateScoreConfig(r.Context(), id, req.Actor); err != nil {
		h.serviceError(w, err, "activate score config error", zap.Int64("configID", id))
		return
	}

	w.WriteHeader(http.StatusOK)
}
