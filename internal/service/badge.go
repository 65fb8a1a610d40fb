package service

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/nicolasromanina/immo-backend-sub004/internal/model"
	"github.com/nicolasromanina/immo-backend-sub004/internal/notifier"
	"github.com/nicolasromanina/immo-backend-sub004/internal/validation"
)

// CreateBadge сохраняет новую запись каталога после проверки критериев.
func (s *Service) CreateBadge(ctx context.Context, b model.Badge) (int64, error) {
	if b.Slug == "" {
		return 0, fmt.Errorf("badge slug is required")
	}
	if err := validation.ValidateCriteria(b.Criteria); err != nil {
		return 0, fmt.Errorf("invalid badge criteria: %w", err)
	}
	return s.repo.CreateBadge(ctx, b)
}

// CheckAndAwardBadges оценивает критерии всех активных бейджей каталога и
// присуждает промоутеру те, которых у него ещё нет. Возвращает слаги новых
// бейджей. Рейтинг пересчитывается только если был присуждён хотя бы один.
func (s *Service) CheckAndAwardBadges(ctx context.Context, promoteurID int64) ([]string, error) {
	p, err := s.repo.GetPromoteur(ctx, promoteurID)
	if err != nil {
		return nil, err
	}

	badges, err := s.repo.ListActiveBadges(ctx)
	if err != nil {
		return nil, err
	}

	awards, err := s.repo.ListBadgeAwards(ctx, promoteurID)
	if err != nil {
		return nil, err
	}

	held := make(map[int64]bool, len(awards))
	for _, a := range awards {
		held[a.BadgeID] = true
	}

	now := s.now()
	var awarded []string

	for _, badge := range badges {
		if held[badge.ID] {
			continue
		}
		if !criteriaMet(p, badge.Criteria) {
			continue
		}

		award := model.BadgeAward{
			PromoteurID: p.ID,
			BadgeID:     badge.ID,
			EarnedAt:    now,
		}
		if badge.HasExpiration {
			expires := now.AddDate(0, 0, badge.ExpirationDays)
			award.ExpiresAt = &expires
		}

		if _, err := s.repo.CreateBadgeAward(ctx, award); err != nil {
			return awarded, fmt.Errorf("award badge %s: %w", badge.Slug, err)
		}
		awarded = append(awarded, badge.Slug)

		s.notify(ctx, notifier.Notification{
			Recipient: p.Email,
			Kind:      "badge-awarded",
			Title:     "Nouveau badge obtenu",
			Message:   fmt.Sprintf("Félicitations, vous avez obtenu le badge « %s ».", badge.Slug),
			Priority:  notifier.PriorityNormal,
			Link:      "/profil/badges",
		})
		s.audit(ctx, model.AuditEntry{
			Actor:       "system",
			Action:      "badge-awarded",
			Category:    "badges",
			TargetType:  "promoteur",
			TargetID:    strconv.FormatInt(p.ID, 10),
			Description: fmt.Sprintf("badge %s awarded", badge.Slug),
		})
	}

	if len(awarded) > 0 {
		s.recalculateQuiet(ctx, promoteurID)
	}

	return awarded, nil
}

// RemoveBadge снимает присуждённый бейдж; отсутствие бейджа у промоутера — ошибка.
func (s *Service) RemoveBadge(ctx context.Context, promoteurID int64, slug string) error {
	removed, err := s.removeBadge(ctx, promoteurID, slug)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%w: %s", ErrBadgeNotAwarded, slug)
	}
	return nil
}

// RemoveBadgeIfExists снимает бейдж, если он присуждён; отсутствие — no-op.
// Используется автоматическими путями понижения.
func (s *Service) RemoveBadgeIfExists(ctx context.Context, promoteurID int64, slug string) error {
	_, err := s.removeBadge(ctx, promoteurID, slug)
	return err
}

func (s *Service) removeBadge(ctx context.Context, promoteurID int64, slug string) (bool, error) {
	badge, err := s.repo.GetBadgeBySlug(ctx, slug)
	if err != nil {
		return false, err
	}

	removed, err := s.repo.DeleteBadgeAward(ctx, promoteurID, badge.ID)
	if err != nil {
		return false, err
	}
	if !removed {
		return false, nil
	}

	s.audit(ctx, model.AuditEntry{
		Actor:       "system",
		Action:      "badge-removed",
		Category:    "badges",
		TargetType:  "promoteur",
		TargetID:    strconv.FormatInt(promoteurID, 10),
		Description: fmt.Sprintf("badge %s removed", slug),
	})

	s.recalculateQuiet(ctx, promoteurID)
	return true, nil
}

// CheckExpiredBadges снимает бейджи с истёкшим сроком действия у всех
// промоутеров и пересчитывает рейтинг каждого, кто потерял бейдж.
func (s *Service) CheckExpiredBadges(ctx context.Context) (model.SweepResult, error) {
	expired, err := s.repo.ListExpiredBadgeAwards(ctx, s.now())
	if err != nil {
		return model.SweepResult{}, err
	}

	var res model.SweepResult
	lost := make(map[int64]bool)

	for _, award := range expired {
		res.Processed++
		removed, err := s.repo.DeleteBadgeAward(ctx, award.PromoteurID, award.BadgeID)
		if err != nil {
			res.Failed++
			s.logger.Error("expired badge removal failed",
				zap.Int64("promoteurID", award.PromoteurID),
				zap.String("badge", award.BadgeSlug),
				zap.Error(err),
			)
			continue
		}
		if removed {
			res.Affected++
			lost[award.PromoteurID] = true
		}
	}

	for promoteurID := range lost {
		s.recalculateQuiet(ctx, promoteurID)
	}

	return res, nil
}

// criteriaMet проверяет все правила критериев; одно проваленное правило
// дисквалифицирует бейдж.
func criteriaMet(p *model.Promoteur, criteria model.BadgeCriteria) bool {
	if len(criteria.Rules) == 0 {
		return false
	}
	for _, rule := range criteria.Rules {
		if !ruleMet(p, rule) {
			return false
		}
	}
	return true
}

func ruleMet(p *model.Promoteur, rule model.BadgeRule) bool {
	value, ok := validation.RuleFieldValue(p, rule.Field)
	if !ok || value == nil {
		return false
	}

	switch rule.Operator {
	case model.OperatorEquals:
		if a, aok := asFloat(value); aok {
			if b, bok := asFloat(rule.Value); bok {
				return a == b
			}
			return false
		}
		return value == rule.Value
	case model.OperatorGTE, model.OperatorLTE, model.OperatorGT, model.OperatorLT:
		a, aok := asFloat(value)
		b, bok := asFloat(rule.Value)
		if !aok || !bok {
			return false
		}
		switch rule.Operator {
		case model.OperatorGTE:
			return a >= b
		case model.OperatorLTE:
			return a <= b
		case model.OperatorGT:
			return a > b
		default:
			return a < b
		}
	default:
		return false
	}
}

// asFloat приводит значение правила к числу. JSON-числа декодируются как
// float64, но значения из конфигурации могут приходить и как int.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
