package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nicolasromanina/immo-backend-sub004/internal/model"
)

// StartSweeps запускает фоновый процесс плановых проходов: контроль частоты
// обновлений, снятие истёкших ограничений и бейджей, обработка просроченных
// апелляций. Нулевой интервал отключает фоновые проходы — их можно вызывать
// только через административный API.
func (s *Service) StartSweeps(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runSweeps(ctx)
			}
		}
	}()
}

func (s *Service) runSweeps(ctx context.Context) {
	sweeps := []struct {
		name string
		run  func(context.Context) (model.SweepResult, error)
	}{
		{"update-frequency", s.CheckUpdateFrequency},
		{"expired-restrictions", s.RemoveExpiredRestrictions},
		{"expired-badges", s.CheckExpiredBadges},
		{"overdue-appeals", s.CheckOverdueAppeals},
	}

	for _, sweep := range sweeps {
		res, err := sweep.run(ctx)
		if err != nil {
			s.logger.Error("sweep failed", zap.String("sweep", sweep.name), zap.Error(err))
			continue
		}
		s.logger.Info("sweep completed",
			zap.String("sweep", sweep.name),
			zap.Int("processed", res.Processed),
			zap.Int("failed", res.Failed),
			zap.Int("affected", res.Affected),
		)
	}
}
