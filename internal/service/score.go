package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/nicolasromanina/immo-backend-sub004/internal/model"
	"github.com/nicolasromanina/immo-backend-sub004/internal/repository"
)

// gamingPenalty — фиксированный вычет из нормализованного рейтинга при
// обнаружении накрутки обновлений.
const gamingPenalty = 20

const recentUpdateWindowDays = 30

const scoreWriteAttempts = 3

// CalculateScore вычисляет композитный рейтинг доверия промоутера из семи
// взвешенных факторов с бонусами, штрафами и поправкой на накрутку, после
// чего сохраняет его. При конкурентном изменении записи промоутера расчёт
// повторяется на свежей версии.
func (s *Service) CalculateScore(ctx context.Context, promoteurID int64) (*model.ScoreResult, error) {
	var lastErr error

	for attempt := 0; attempt < scoreWriteAttempts; attempt++ {
		p, err := s.repo.GetPromoteur(ctx, promoteurID)
		if err != nil {
			return nil, err
		}

		result, err := s.computeScore(ctx, p)
		if err != nil {
			return nil, err
		}

		err = s.repo.UpdateTrustScore(ctx, p.ID, result.TotalScore, p.Version)
		if err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				lastErr = err
				continue
			}
			return nil, err
		}

		if result.GamingDetected {
			s.audit(ctx, model.AuditEntry{
				Actor:       "system",
				Action:      "gaming-detected",
				Category:    "trust-score",
				TargetType:  "promoteur",
				TargetID:    strconv.FormatInt(p.ID, 10),
				Description: result.GamingReason,
				Metadata:    map[string]any{"totalScore": result.TotalScore},
			})
		}

		return result, nil
	}

	return nil, fmt.Errorf("calculate score after %d attempts: %w", scoreWriteAttempts, lastErr)
}

// RecalculateAllScores пересчитывает рейтинг всех промоутеров. Сбой на одном
// промоутере логируется и не прерывает весь проход.
func (s *Service) RecalculateAllScores(ctx context.Context) (model.SweepResult, error) {
	ids, err := s.repo.ListPromoteurIDs(ctx)
	if err != nil {
		return model.SweepResult{}, err
	}

	var res model.SweepResult
	for _, id := range ids {
		res.Processed++
		if _, err := s.CalculateScore(ctx, id); err != nil {
			res.Failed++
			s.logger.Error("score recalculation failed",
				zap.Int64("promoteurID", id),
				zap.Error(err),
			)
			continue
		}
		res.Affected++
	}

	return res, nil
}

func (s *Service) computeScore(ctx context.Context, p *model.Promoteur) (*model.ScoreResult, error) {
	cfg := s.scoreConfig(ctx)
	now := s.now()

	docs, err := s.repo.GetDocumentSummary(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	projects, err := s.repo.ListActiveProjects(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	// Момент последнего обновления каждого проекта нужен и фактору
	// обновлений, и бонусу за регулярность.
	latestUpdates := make(map[int64]*time.Time, len(projects))
	for _, project := range projects {
		latest, err := s.repo.LatestPublishedUpdate(ctx, project.ID)
		if err != nil {
			return nil, err
		}
		latestUpdates[project.ID] = latest
	}

	leads, err := s.repo.GetLeadSummary(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	awards, err := s.repo.ListBadgeAwards(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	breakdown := model.ScoreBreakdown{
		KYC:            kycScore(p.KYCStatus),
		Documents:      documentScore(docs),
		Updates:        updatesScore(projects, latestUpdates, cfg.UpdateFrequency, now),
		ResponseTime:   responseTimeScore(p.AvgResponseTimeHours, cfg.ResponseTimeSLA),
		Completion:     completionScore(p),
		Badges:         math.Min(100, float64(len(awards))*20),
		FinancialProof: math.Min(100, float64(p.FinancialProofLevel)*25),
	}

	w := cfg.Weights
	composite := breakdown.KYC*w.KYC/100 +
		breakdown.Documents*w.Documents/100 +
		breakdown.Updates*w.Updates/100 +
		breakdown.ResponseTime*w.ResponseTime/100 +
		breakdown.Completion*w.Completion/100 +
		breakdown.Badges*w.Badges/100 +
		breakdown.FinancialProof*w.FinancialProof/100

	bonus := s.bonusPoints(p, projects, latestUpdates, cfg, now)
	penalty := penaltyPoints(docs, leads, cfg.Penalties)

	normalized := int(math.Round(clampScore(composite + bonus - penalty)))

	result := &model.ScoreResult{
		PromoteurID: p.ID,
		TotalScore:  normalized,
		Breakdown:   breakdown,
		Bonus:       bonus,
		Penalty:     penalty,
	}

	// Детектор накрутки только корректирует итог, он никогда не
	// блокирует расчёт и не возвращает ошибку.
	detected, reason := s.detectGaming(ctx, projects, cfg.GamingDetection, now)
	if detected {
		result.GamingDetected = true
		result.GamingReason = reason
		result.TotalScore = max(0, normalized-gamingPenalty)
	}

	return result, nil
}

func kycScore(status model.KYCStatus) float64 {
	switch status {
	case model.KYCStatusVerified:
		return 100
	case model.KYCStatusSubmitted:
		return 50
	case model.KYCStatusPending:
		return 25
	default:
		return 0
	}
}

func documentScore(docs model.DocumentSummary) float64 {
	if docs.Total == 0 {
		return 0
	}
	score := float64(docs.Verified)/float64(docs.Total)*100 - 5*float64(docs.Expired+docs.Missing)
	return math.Max(0, score)
}

// updatesScore оценивает частоту обновлений по каждому активному проекту и
// усредняет. Отсутствие проектов — нейтральные 50.
func updatesScore(projects []model.Project, latest map[int64]*time.Time, freq model.UpdateFrequency, now time.Time) float64 {
	if len(projects) == 0 {
		return 50
	}

	var sum float64
	for _, project := range projects {
		sum += projectUpdateScore(latest[project.ID], freq, now)
	}
	return sum / float64(len(projects))
}

func projectUpdateScore(latest *time.Time, freq model.UpdateFrequency, now time.Time) float64 {
	if latest == nil {
		return 0
	}

	gapDays := now.Sub(*latest).Hours() / 24
	if gapDays > recentUpdateWindowDays {
		return 0
	}

	switch {
	case gapDays <= float64(freq.IdealDays):
		return 100
	case gapDays <= float64(freq.MinimumDays):
		return 70
	default:
		return math.Max(0, 50-(gapDays-float64(freq.MinimumDays)))
	}
}

func responseTimeScore(avgHours *float64, sla model.ResponseTimeSLA) float64 {
	if avgHours == nil {
		return 50
	}

	avg := *avgHours
	switch {
	case avg <= sla.ExcellentHours:
		return 100
	case avg <= sla.GoodHours:
		return 80
	case avg <= sla.AcceptableHours:
		return 60
	default:
		return math.Max(0, 40-2*(avg-sla.AcceptableHours))
	}
}

func completionScore(p *model.Promoteur) float64 {
	if p.TotalProjects == 0 {
		return 50
	}
	return float64(p.CompletedProjects) / float64(p.TotalProjects) * 100
}

func (s *Service) bonusPoints(p *model.Promoteur, projects []model.Project, latest map[int64]*time.Time, cfg *model.ScoreConfig, now time.Time) float64 {
	var bonus float64

	if p.ProfileComplete {
		bonus += cfg.BonusPoints.CompleteProfile
	}

	if p.AvgResponseTimeHours != nil && *p.AvgResponseTimeHours <= 2 {
		bonus += cfg.BonusPoints.QuickResponder
	}

	if len(projects) > 0 && allUpdatedWithin(projects, latest, 14*24*time.Hour, now) {
		bonus += cfg.BonusPoints.ConsistentUpdater
	}

	return bonus
}

func allUpdatedWithin(projects []model.Project, latest map[int64]*time.Time, window time.Duration, now time.Time) bool {
	for _, project := range projects {
		ts := latest[project.ID]
		if ts == nil || now.Sub(*ts) > window {
			return false
		}
	}
	return true
}

func penaltyPoints(docs model.DocumentSummary, leads model.LeadSummary, p model.Penalties) float64 {
	penalty := float64(docs.Missing+docs.Rejected)*p.PerMissingDocument +
		float64(leads.SLAMissed)*p.PerMissedSLALead
	return math.Min(penalty, p.MaxTotal)
}

func clampScore(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
