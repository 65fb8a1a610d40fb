package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nicolasromanina/immo-backend-sub004/internal/model"
	"github.com/nicolasromanina/immo-backend-sub004/internal/notifier"
)

// Дедлайны рассмотрения: 72 часа на уровне N1, 7 дней после эскалации на N2.
const (
	appealDeadlineN1 = 72 * time.Hour
	appealDeadlineN2 = 7 * 24 * time.Hour
)

// autoEscalationReason — причина автоматической эскалации просроченной
// апелляции уровня N1.
const autoEscalationReason = "Deadline N1 dépassé — escalade automatique"

// CreateAppealInput содержит данные новой апелляции.
type CreateAppealInput struct {
	PromoteurID    int64
	ProjectID      *int64
	Type           string
	Reason         string
	Description    string
	OriginalAction model.OriginalAction
	Evidence       []string
	MitigationPlan string
}

// CreateAppeal регистрирует апелляцию на уровне N1 с дедлайном в 72 часа.
// Если оспариваемая санкция передана без идентификатора, он восстанавливается
// по паре (тип, момент наложения).
func (s *Service) CreateAppeal(ctx context.Context, input CreateAppealInput) (*model.Appeal, error) {
	p, err := s.repo.GetPromoteur(ctx, input.PromoteurID)
	if err != nil {
		return nil, err
	}

	if input.Type == "" || input.Reason == "" {
		return nil, fmt.Errorf("appeal type and reason are required")
	}
	if input.OriginalAction.Type == "" || input.OriginalAction.AppliedAt.IsZero() {
		return nil, fmt.Errorf("original action type and appliedAt are required")
	}

	if input.OriginalAction.RestrictionID == 0 {
		restriction, err := s.repo.FindRestriction(ctx, p.ID, input.OriginalAction.Type, input.OriginalAction.AppliedAt)
		if err != nil {
			return nil, err
		}
		if restriction != nil {
			input.OriginalAction.RestrictionID = restriction.ID
		}
	}

	now := s.now()
	appeal := &model.Appeal{
		Reference:      uuid.NewString(),
		PromoteurID:    p.ID,
		ProjectID:      input.ProjectID,
		Type:           input.Type,
		Reason:         input.Reason,
		Description:    input.Description,
		OriginalAction: input.OriginalAction,
		Evidence:       input.Evidence,
		MitigationPlan: input.MitigationPlan,
		Status:         model.AppealStatusPending,
		Level:          1,
		SubmittedAt:    now,
		Deadline:       now.Add(appealDeadlineN1),
	}

	id, err := s.repo.CreateAppeal(ctx, appeal)
	if err != nil {
		return nil, err
	}
	appeal.ID = id

	s.notify(ctx, notifier.Notification{
		Recipient: p.Email,
		Kind:      "appeal-created",
		Title:     "Recours enregistré",
		Message:   "Votre recours a bien été enregistré et sera examiné sous 72 heures.",
		Priority:  notifier.PriorityNormal,
		Link:      "/compte/recours/" + appeal.Reference,
	})
	s.auditAppeal(ctx, appeal, "appeal-created", "appeal submitted at level N1")

	return appeal, nil
}

// AssignAppeal назначает рецензента и переводит апелляцию в рассмотрение.
func (s *Service) AssignAppeal(ctx context.Context, appealID int64, assignee string) (*model.Appeal, error) {
	appeal, err := s.repo.GetAppeal(ctx, appealID)
	if err != nil {
		return nil, err
	}
	if isResolved(appeal.Status) {
		return nil, fmt.Errorf("%w: appeal is already resolved", ErrInvalidTransition)
	}

	appeal.AssignedTo = assignee
	appeal.Status = model.AppealStatusUnderReview
	if appeal.ReviewStartedAt == nil {
		now := s.now()
		appeal.ReviewStartedAt = &now
	}

	if err := s.repo.UpdateAppeal(ctx, appeal); err != nil {
		return nil, err
	}

	s.auditAppeal(ctx, appeal, "appeal-assigned", "assigned to "+assignee)
	return appeal, nil
}

// AddReviewNote добавляет заметку рецензента. Внешняя заметка отправляется
// промоутеру; внутренние никогда не покидают бэк-офис.
func (s *Service) AddReviewNote(ctx context.Context, appealID int64, note, addedBy string, isInternal bool) (*model.ReviewNote, error) {
	appeal, err := s.repo.GetAppeal(ctx, appealID)
	if err != nil {
		return nil, err
	}
	if note == "" {
		return nil, fmt.Errorf("note text is required")
	}

	n := model.ReviewNote{
		AppealID:   appeal.ID,
		Note:       note,
		AddedBy:    addedBy,
		AddedAt:    s.now(),
		IsInternal: isInternal,
	}

	id, err := s.repo.AddReviewNote(ctx, n)
	if err != nil {
		return nil, err
	}
	n.ID = id

	if !isInternal {
		p, err := s.repo.GetPromoteur(ctx, appeal.PromoteurID)
		if err == nil {
			s.notify(ctx, notifier.Notification{
				Recipient: p.Email,
				Kind:      "appeal-note",
				Title:     "Nouveau message sur votre recours",
				Message:   note,
				Priority:  notifier.PriorityNormal,
				Link:      "/compte/recours/" + appeal.Reference,
			})
		}
	}

	return &n, nil
}

// EscalateToN2 эскалирует апелляцию уровня N1 на уровень N2 с новым дедлайном
// в 7 дней. Назначение сбрасывается: на уровне N2 требуется новый рецензент.
func (s *Service) EscalateToN2(ctx context.Context, appealID int64, reason string) (*model.Appeal, error) {
	appeal, err := s.repo.GetAppeal(ctx, appealID)
	if err != nil {
		return nil, err
	}
	if isResolved(appeal.Status) {
		return nil, fmt.Errorf("%w: appeal is already resolved", ErrInvalidTransition)
	}
	if appeal.Level != 1 {
		return nil, fmt.Errorf("%w: appeal can only be escalated from N1", ErrInvalidTransition)
	}

	appeal.Level = 2
	appeal.Status = model.AppealStatusEscalated
	appeal.Escalated = true
	appeal.EscalationReason = reason
	appeal.Deadline = s.now().Add(appealDeadlineN2)
	appeal.AssignedTo = ""

	if err := s.repo.UpdateAppeal(ctx, appeal); err != nil {
		return nil, err
	}

	if p, err := s.repo.GetPromoteur(ctx, appeal.PromoteurID); err == nil {
		s.notify(ctx, notifier.Notification{
			Recipient: p.Email,
			Kind:      "appeal-escalated",
			Title:     "Recours transmis au niveau 2",
			Message:   "Votre recours a été transmis à l'équipe de révision de niveau 2.",
			Priority:  notifier.PriorityNormal,
			Link:      "/compte/recours/" + appeal.Reference,
		})
	}
	s.auditAppeal(ctx, appeal, "appeal-escalated", reason)

	return appeal, nil
}

// ResolveAppeal выносит решение по апелляции. Статус становится approved
// только при исходе approved; частичное удовлетворение сохраняется со
// статусом rejected — внешние панели фильтруют по этому статусу, а реальный
// исход остаётся в документе решения.
func (s *Service) ResolveAppeal(ctx context.Context, appealID int64, outcome model.AppealOutcome, explanation, decidedBy string, newAction *model.NewAction) (*model.Appeal, error) {
	appeal, err := s.repo.GetAppeal(ctx, appealID)
	if err != nil {
		return nil, err
	}
	if isResolved(appeal.Status) {
		return nil, fmt.Errorf("%w: appeal is already resolved", ErrInvalidTransition)
	}

	switch outcome {
	case model.OutcomeApproved, model.OutcomePartiallyApproved, model.OutcomeRejected:
	default:
		return nil, fmt.Errorf("unknown appeal outcome %q", outcome)
	}

	now := s.now()
	appeal.Decision = &model.AppealDecision{
		Outcome:     outcome,
		Explanation: explanation,
		DecidedBy:   decidedBy,
		DecidedAt:   now,
		NewAction:   newAction,
	}
	appeal.ResolvedAt = &now
	if outcome == model.OutcomeApproved {
		appeal.Status = model.AppealStatusApproved
	} else {
		appeal.Status = model.AppealStatusRejected
	}

	p, err := s.repo.GetPromoteur(ctx, appeal.PromoteurID)
	if err != nil {
		return nil, err
	}

	switch outcome {
	case model.OutcomeApproved:
		if err := s.removeContestedRestriction(ctx, appeal); err != nil {
			return nil, err
		}
		if p.SubscriptionStatus == model.SubscriptionSuspended {
			if err := s.repo.UpdateSubscriptionStatus(ctx, p.ID, model.SubscriptionActive, p.Version); err != nil {
				return nil, err
			}
		}
	case model.OutcomePartiallyApproved:
		if newAction != nil {
			if err := s.removeContestedRestriction(ctx, appeal); err != nil {
				return nil, err
			}
			expires := now.AddDate(0, 0, restrictionTermDays)
			_, err := s.repo.AddRestriction(ctx, model.Restriction{
				PromoteurID: p.ID,
				Type:        newAction.Type,
				Reason:      newAction.Reason,
				AppliedAt:   now,
				ExpiresAt:   &expires,
			})
			if err != nil {
				return nil, err
			}
		}
	}

	if err := s.repo.UpdateAppeal(ctx, appeal); err != nil {
		return nil, err
	}

	s.notify(ctx, notifier.Notification{
		Recipient: p.Email,
		Kind:      "appeal-resolved",
		Title:     "Décision sur votre recours",
		Message:   fmt.Sprintf("Votre recours a été traité (décision : %s). %s", outcome, explanation),
		Priority:  notifier.PriorityHigh,
		Link:      "/compte/recours/" + appeal.Reference,
	})
	s.auditAppeal(ctx, appeal, "appeal-resolved", fmt.Sprintf("outcome %s by %s", outcome, decidedBy))

	s.recalculateQuiet(ctx, appeal.PromoteurID)

	return appeal, nil
}

// removeContestedRestriction снимает ровно ту санкцию, на которую подан
// recours: по идентификатору, а для записей без него — по паре (тип, момент
// наложения). Отсутствие записи — no-op: санкция могла истечь естественно.
func (s *Service) removeContestedRestriction(ctx context.Context, appeal *model.Appeal) error {
	id := appeal.OriginalAction.RestrictionID
	if id == 0 {
		restriction, err := s.repo.FindRestriction(ctx, appeal.PromoteurID,
			appeal.OriginalAction.Type, appeal.OriginalAction.AppliedAt)
		if err != nil {
			return err
		}
		if restriction == nil {
			return nil
		}
		id = restriction.ID
	}

	_, err := s.repo.RemoveRestriction(ctx, id)
	return err
}

// CheckOverdueAppeals обрабатывает нерешённые апелляции с истёкшим дедлайном:
// уровень N1 эскалируется автоматически, остальные помечаются срочным
// уведомлением администраторам.
func (s *Service) CheckOverdueAppeals(ctx context.Context) (model.SweepResult, error) {
	overdue, err := s.repo.ListOverdueAppeals(ctx, s.now())
	if err != nil {
		return model.SweepResult{}, err
	}

	var res model.SweepResult
	for _, appeal := range overdue {
		res.Processed++

		if appeal.Level == 1 && !appeal.Escalated {
			if _, err := s.EscalateToN2(ctx, appeal.ID, autoEscalationReason); err != nil {
				res.Failed++
				s.logger.Error("appeal auto-escalation failed",
					zap.Int64("appealID", appeal.ID),
					zap.Error(err),
				)
				continue
			}
			res.Affected++
			continue
		}

		s.notify(ctx, notifier.Notification{
			Recipient: "admin",
			Kind:      "appeal-overdue",
			Title:     "Recours en retard au niveau maximal",
			Message:   fmt.Sprintf("Le recours %s a dépassé son délai de traitement au niveau %d.", appeal.Reference, appeal.Level),
			Priority:  notifier.PriorityUrgent,
			Link:      "/admin/recours/" + strconv.FormatInt(appeal.ID, 10),
		})
	}

	return res, nil
}

// GetAppealStats возвращает статистику апелляций, поданных за последние days дней.
func (s *Service) GetAppealStats(ctx context.Context, days int) (*model.AppealStats, error) {
	if days <= 0 {
		days = 30
	}

	cutoff := s.now().AddDate(0, 0, -days)
	appeals, err := s.repo.ListAppealsSince(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	stats := &model.AppealStats{
		Total:    len(appeals),
		ByStatus: make(map[model.AppealStatus]int),
	}

	var resolved int
	var resolutionHours float64
	for _, a := range appeals {
		stats.ByStatus[a.Status]++
		if a.ResolvedAt != nil {
			resolved++
			resolutionHours += a.ResolvedAt.Sub(a.SubmittedAt).Hours()
		}
	}

	if stats.Total > 0 {
		stats.ApprovalRate = float64(stats.ByStatus[model.AppealStatusApproved]) / float64(stats.Total)
	}
	if resolved > 0 {
		stats.AvgResolutionHours = resolutionHours / float64(resolved)
	}

	return stats, nil
}

func isResolved(status model.AppealStatus) bool {
	return status == model.AppealStatusApproved || status == model.AppealStatusRejected
}

func (s *Service) auditAppeal(ctx context.Context, appeal *model.Appeal, action, description string) {
	s.audit(ctx, model.AuditEntry{
		Actor:       "system",
		Action:      action,
		Category:    "appeals",
		TargetType:  "appeal",
		TargetID:    strconv.FormatInt(appeal.ID, 10),
		Description: description,
		Metadata: map[string]any{
			"promoteurId": appeal.PromoteurID,
			"level":       appeal.Level,
			"status":      string(appeal.Status),
		},
	})
}
