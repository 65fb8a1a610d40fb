package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nicolasromanina/immo-backend-sub004/internal/model"
)

// detectGaming ищет подозрительные временные паттерны в обновлениях активных
// проектов за последние сутки: либо слишком много обновлений за день, либо
// слишком короткий интервал между соседними. Первое найденное нарушение
// завершает проверку. Детектор консультативный: ошибки чтения логируются,
// расчёт рейтинга продолжается.
func (s *Service) detectGaming(ctx context.Context, projects []model.Project, cfg model.GamingDetection, now time.Time) (bool, string) {
	if !cfg.SuspiciousPatternsEnabled {
		return false, ""
	}

	since := now.Add(-24 * time.Hour)

	for _, project := range projects {
		updates, err := s.repo.ListProjectUpdatesSince(ctx, project.ID, since)
		if err != nil {
			s.logger.Warn("gaming detection read failed",
				zap.Int64("projectID", project.ID),
				zap.Error(err),
			)
			continue
		}

		if len(updates) > cfg.MaxDailyUpdates {
			return true, fmt.Sprintf("project %d published %d updates in 24h (max %d)",
				project.ID, len(updates), cfg.MaxDailyUpdates)
		}

		// Обновления приходят в хронологическом порядке.
		for i := 1; i < len(updates); i++ {
			gap := updates[i].PublishedAt.Sub(updates[i-1].PublishedAt).Hours()
			if gap < cfg.MinUpdateIntervalHours {
				return true, fmt.Sprintf("project %d updates %.1fh apart (min %.1fh)",
					project.ID, gap, cfg.MinUpdateIntervalHours)
			}
		}
	}

	return false, ""
}
