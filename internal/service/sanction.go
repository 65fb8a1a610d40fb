package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nicolasromanina/immo-backend-sub004/internal/model"
	"github.com/nicolasromanina/immo-backend-sub004/internal/notifier"
)

// Коды нарушений частоты обновлений. Один код на одно условие: предупреждение
// дедуплицируется по вхождению кода в причину ограничения.
const (
	codeNoUpdates45 = "no-updates-45days"
	codeNoUpdates60 = "no-updates-60days"
)

const (
	restrictionTermDays = 30
	suspensionTermDays  = 30
)

// CheckUpdateFrequency проверяет частоту обновлений опубликованных проектов в
// фазе строительства и применяет ступенчатые санкции к их владельцам. Сбой на
// одном проекте не прерывает проход.
func (s *Service) CheckUpdateFrequency(ctx context.Context) (model.SweepResult, error) {
	projects, err := s.repo.ListProjectsUnderConstruction(ctx)
	if err != nil {
		return model.SweepResult{}, err
	}

	var res model.SweepResult
	for _, project := range projects {
		res.Processed++
		applied, err := s.checkProjectCadence(ctx, project)
		if err != nil {
			res.Failed++
			s.logger.Error("update frequency check failed",
				zap.Int64("projectID", project.ID),
				zap.Error(err),
			)
			continue
		}
		if applied {
			res.Affected++
		}
	}

	return res, nil
}

// checkProjectCadence выбирает санкцию по давности последнего опубликованного
// обновления проекта: 45–60 дней — предупреждение, 60–90 — ограничение
// видимости, свыше 90 — приостановка. Проект без единого обновления старше
// 60 дней получает предупреждение.
func (s *Service) checkProjectCadence(ctx context.Context, project model.Project) (bool, error) {
	latest, err := s.repo.LatestPublishedUpdate(ctx, project.ID)
	if err != nil {
		return false, err
	}

	now := s.now()

	if latest == nil {
		if now.Sub(project.CreatedAt).Hours()/24 > 60 {
			return s.applyWarning(ctx, project, codeNoUpdates60,
				fmt.Sprintf("%s: aucune mise à jour publiée depuis la création du projet « %s »", codeNoUpdates60, project.Name))
		}
		return false, nil
	}

	days := now.Sub(*latest).Hours() / 24
	switch {
	case days > 90:
		return s.applySuspension(ctx, project,
			fmt.Sprintf("aucune mise à jour du projet « %s » depuis plus de 90 jours", project.Name),
			suspensionTermDays)
	case days > 60:
		return s.applyRestriction(ctx, project, model.RestrictionReducedVisibility,
			fmt.Sprintf("aucune mise à jour du projet « %s » depuis plus de 60 jours", project.Name))
	case days > 45:
		return s.applyWarning(ctx, project, codeNoUpdates45,
			fmt.Sprintf("%s: aucune mise à jour du projet « %s » depuis plus de 45 jours", codeNoUpdates45, project.Name))
	default:
		return false, nil
	}
}

// applyWarning добавляет предупреждение без срока действия. Повторное
// предупреждение с тем же кодом — no-op.
func (s *Service) applyWarning(ctx context.Context, project model.Project, code, reason string) (bool, error) {
	p, err := s.repo.GetPromoteur(ctx, project.PromoteurID)
	if err != nil {
		return false, err
	}

	restrictions, err := s.repo.ListRestrictions(ctx, p.ID)
	if err != nil {
		return false, err
	}
	for _, r := range restrictions {
		if r.Type == model.RestrictionWarning && strings.Contains(r.Reason, code) {
			return false, nil
		}
	}

	_, err = s.repo.AddRestriction(ctx, model.Restriction{
		PromoteurID: p.ID,
		Type:        model.RestrictionWarning,
		Reason:      reason,
		AppliedAt:   s.now(),
	})
	if err != nil {
		return false, err
	}

	s.notify(ctx, notifier.Notification{
		Recipient: p.Email,
		Kind:      "sanction-warning",
		Title:     "Avertissement",
		Message:   reason,
		Priority:  notifier.PriorityHigh,
		Link:      "/compte/sanctions",
	})
	s.auditSanction(ctx, p.ID, "warning-applied", reason, project.ID)

	s.recalculateQuiet(ctx, p.ID)
	return true, nil
}

// applyRestriction добавляет ограничение на 30 дней; ограничение видимости
// дополнительно снимает проект с продвижения.
func (s *Service) applyRestriction(ctx context.Context, project model.Project, typ model.RestrictionType, reason string) (bool, error) {
	p, err := s.repo.GetPromoteur(ctx, project.PromoteurID)
	if err != nil {
		return false, err
	}

	now := s.now()
	expires := now.AddDate(0, 0, restrictionTermDays)
	_, err = s.repo.AddRestriction(ctx, model.Restriction{
		PromoteurID: p.ID,
		Type:        typ,
		Reason:      reason,
		AppliedAt:   now,
		ExpiresAt:   &expires,
	})
	if err != nil {
		return false, err
	}

	if typ == model.RestrictionReducedVisibility {
		if err := s.repo.SetProjectFeatured(ctx, project.ID, false); err != nil {
			return false, err
		}
	}

	s.notify(ctx, notifier.Notification{
		Recipient: p.Email,
		Kind:      "sanction-restriction",
		Title:     "Restriction appliquée",
		Message:   reason,
		Priority:  notifier.PriorityHigh,
		Link:      "/compte/sanctions",
	})
	s.auditSanction(ctx, p.ID, "restriction-applied", reason, project.ID)

	s.recalculateQuiet(ctx, p.ID)
	return true, nil
}

// applySuspension приостанавливает подписку промоутера и сам проект, добавляя
// ограничение с указанным сроком.
func (s *Service) applySuspension(ctx context.Context, project model.Project, reason string, durationDays int) (bool, error) {
	p, err := s.repo.GetPromoteur(ctx, project.PromoteurID)
	if err != nil {
		return false, err
	}

	if err := s.repo.UpdateSubscriptionStatus(ctx, p.ID, model.SubscriptionSuspended, p.Version); err != nil {
		return false, err
	}

	now := s.now()
	expires := now.AddDate(0, 0, durationDays)
	_, err = s.repo.AddRestriction(ctx, model.Restriction{
		PromoteurID: p.ID,
		Type:        model.RestrictionSuspension,
		Reason:      reason,
		AppliedAt:   now,
		ExpiresAt:   &expires,
	})
	if err != nil {
		return false, err
	}

	if err := s.repo.SetProjectStatus(ctx, project.ID, model.ProjectStatusSuspended); err != nil {
		return false, err
	}

	s.notify(ctx, notifier.Notification{
		Recipient: p.Email,
		Kind:      "sanction-suspension",
		Title:     "Compte suspendu",
		Message:   reason,
		Priority:  notifier.PriorityUrgent,
		Link:      "/compte/sanctions",
	})
	s.auditSanction(ctx, p.ID, "suspension-applied", reason, project.ID)

	s.recalculateQuiet(ctx, p.ID)
	return true, nil
}

func (s *Service) auditSanction(ctx context.Context, promoteurID int64, action, description string, projectID int64) {
	s.audit(ctx, model.AuditEntry{
		Actor:       "system",
		Action:      action,
		Category:    "sanctions",
		TargetType:  "promoteur",
		TargetID:    strconv.FormatInt(promoteurID, 10),
		Description: description,
		Metadata:    map[string]any{"projectId": projectID},
	})
}

// RemoveExpiredRestrictions снимает истёкшие ограничения у всех промоутеров.
// Если после снятия у приостановленного промоутера не остаётся действующей
// приостановки, подписка возвращается в состояние active.
func (s *Service) RemoveExpiredRestrictions(ctx context.Context) (model.SweepResult, error) {
	now := s.now()

	ids, err := s.repo.ListPromoteursWithExpiredRestrictions(ctx, now)
	if err != nil {
		return model.SweepResult{}, err
	}

	var res model.SweepResult
	for _, id := range ids {
		res.Processed++
		if err := s.cleanupExpiredRestrictions(ctx, id, now); err != nil {
			res.Failed++
			s.logger.Error("expired restriction cleanup failed",
				zap.Int64("promoteurID", id),
				zap.Error(err),
			)
			continue
		}
		res.Affected++
	}

	return res, nil
}

func (s *Service) cleanupExpiredRestrictions(ctx context.Context, promoteurID int64, now time.Time) error {
	removed, err := s.repo.DeleteExpiredRestrictions(ctx, promoteurID, now)
	if err != nil {
		return err
	}
	if removed == 0 {
		return nil
	}

	p, err := s.repo.GetPromoteur(ctx, promoteurID)
	if err != nil {
		return err
	}

	if p.SubscriptionStatus == model.SubscriptionSuspended {
		remaining, err := s.repo.ListRestrictions(ctx, promoteurID)
		if err != nil {
			return err
		}
		if !hasActiveSuspension(remaining, now) {
			if err := s.repo.UpdateSubscriptionStatus(ctx, p.ID, model.SubscriptionActive, p.Version); err != nil {
				return err
			}
			s.notify(ctx, notifier.Notification{
				Recipient: p.Email,
				Kind:      "sanction-lifted",
				Title:     "Compte réactivé",
				Message:   "Votre suspension est arrivée à échéance, votre compte est de nouveau actif.",
				Priority:  notifier.PriorityNormal,
				Link:      "/compte",
			})
		}
	}

	s.notify(ctx, notifier.Notification{
		Recipient: p.Email,
		Kind:      "sanction-expired",
		Title:     "Sanctions expirées",
		Message:   fmt.Sprintf("%d sanction(s) arrivée(s) à échéance ont été levées.", removed),
		Priority:  notifier.PriorityNormal,
		Link:      "/compte/sanctions",
	})

	return nil
}

func hasActiveSuspension(restrictions []model.Restriction, now time.Time) bool {
	for _, r := range restrictions {
		if r.Type == model.RestrictionSuspension && r.Active(now) {
			return true
		}
	}
	return false
}

// GetSanctionHistory возвращает разбиение ограничений промоутера на
// действующие и истёкшие со сводным уровнем по числу действующих.
func (s *Service) GetSanctionHistory(ctx context.Context, promoteurID int64) (*model.SanctionHistory, error) {
	if _, err := s.repo.GetPromoteur(ctx, promoteurID); err != nil {
		return nil, err
	}

	restrictions, err := s.repo.ListRestrictions(ctx, promoteurID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	history := &model.SanctionHistory{}
	for _, r := range restrictions {
		if r.Active(now) {
			history.Active = append(history.Active, r)
		} else {
			history.Expired = append(history.Expired, r)
		}
	}

	switch n := len(history.Active); {
	case n == 0:
		history.CurrentLevel = model.SanctionLevelNone
	case n == 1:
		history.CurrentLevel = model.SanctionLevelWarning
	case n == 2:
		history.CurrentLevel = model.SanctionLevelRestricted
	default:
		history.CurrentLevel = model.SanctionLevelHighRisk
	}

	return history, nil
}
