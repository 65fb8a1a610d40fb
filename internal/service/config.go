package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/nicolasromanina/immo-backend-sub004/internal/model"
)

// GetScoreConfig возвращает конфигурацию, с которой сейчас работает движок
// рейтинга: активную либо встроенную по умолчанию.
func (s *Service) GetScoreConfig(ctx context.Context) *model.ScoreConfig {
	return s.scoreConfig(ctx)
}

// SaveScoreConfig сохраняет новую версию конфигурации рейтинга в неактивном
// состоянии; применяется она отдельным вызовом ActivateScoreConfig.
func (s *Service) SaveScoreConfig(ctx context.Context, cfg model.ScoreConfig) (int64, error) {
	if cfg.Name == "" {
		return 0, fmt.Errorf("score config name is required")
	}

	total := cfg.Weights.KYC + cfg.Weights.Documents + cfg.Weights.Updates +
		cfg.Weights.ResponseTime + cfg.Weights.Completion + cfg.Weights.Badges +
		cfg.Weights.FinancialProof
	if total <= 0 {
		return 0, fmt.Errorf("score config weights must be positive")
	}

	return s.repo.SaveScoreConfig(ctx, cfg)
}

// ActivateScoreConfig делает указанную версию конфигурации единственной активной.
func (s *Service) ActivateScoreConfig(ctx context.Context, id int64, actor string) error {
	if err := s.repo.ActivateScoreConfig(ctx, id); err != nil {
		return err
	}

	s.audit(ctx, model.AuditEntry{
		Actor:       actor,
		Action:      "score-config-activated",
		Category:    "trust-score",
		TargetType:  "score-config",
		TargetID:    strconv.FormatInt(id, 10),
		Description: "score config version activated",
	})

	return nil
}
