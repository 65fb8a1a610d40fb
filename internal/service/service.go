// Package service реализует бизнес-логику платформы доверия: движок рейтинга,
// автоматические санкции, бейджи и апелляции.
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/nicolasromanina/immo-backend-sub004/internal/model"
	"github.com/nicolasromanina/immo-backend-sub004/internal/notifier"
	"github.com/nicolasromanina/immo-backend-sub004/internal/repository"
)

// ErrInvalidTransition возвращается при недопустимом переходе состояния апелляции.
var (
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrBadgeNotAwarded возвращается при попытке снять бейдж, которого у промоутера нет.
	ErrBadgeNotAwarded = errors.New("badge is not awarded to promoteur")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	GetPromoteur(ctx context.Context, id int64) (*model.Promoteur, error)
	ListPromoteurIDs(ctx context.Context) ([]int64, error)
	UpdateTrustScore(ctx context.Context, id int64, score int, version int64) error
	UpdateSubscriptionStatus(ctx context.Context, id int64, status model.SubscriptionStatus, version int64) error

	ListRestrictions(ctx context.Context, promoteurID int64) ([]model.Restriction, error)
	AddRestriction(ctx context.Context, restriction model.Restriction) (int64, error)
	RemoveRestriction(ctx context.Context, id int64) (bool, error)
	FindRestriction(ctx context.Context, promoteurID int64, typ model.RestrictionType, appliedAt time.Time) (*model.Restriction, error)
	ListPromoteursWithExpiredRestrictions(ctx context.Context, now time.Time) ([]int64, error)
	DeleteExpiredRestrictions(ctx context.Context, promoteurID int64, now time.Time) (int64, error)

	CreateBadge(ctx context.Context, b model.Badge) (int64, error)
	GetBadgeBySlug(ctx context.Context, slug string) (*model.Badge, error)
	ListActiveBadges(ctx context.Context) ([]model.Badge, error)
	ListBadgeAwards(ctx context.Context, promoteurID int64) ([]model.BadgeAward, error)
	CreateBadgeAward(ctx context.Context, award model.BadgeAward) (int64, error)
	DeleteBadgeAward(ctx context.Context, promoteurID, badgeID int64) (bool, error)
	ListExpiredBadgeAwards(ctx context.Context, now time.Time) ([]model.BadgeAward, error)

	GetActiveScoreConfig(ctx context.Context) (*model.ScoreConfig, error)
	SaveScoreConfig(ctx context.Context, cfg model.ScoreConfig) (int64, error)
	ActivateScoreConfig(ctx context.Context, id int64) error

	ListActiveProjects(ctx context.Context, promoteurID int64) ([]model.Project, error)
	ListProjectsUnderConstruction(ctx context.Context) ([]model.Project, error)
	LatestPublishedUpdate(ctx context.Context, projectID int64) (*time.Time, error)
	ListProjectUpdatesSince(ctx context.Context, projectID int64, since time.Time) ([]model.ProjectUpdate, error)
	SetProjectFeatured(ctx context.Context, projectID int64, featured bool) error
	SetProjectStatus(ctx context.Context, projectID int64, status model.ProjectStatus) error
	GetDocumentSummary(ctx context.Context, promoteurID int64) (model.DocumentSummary, error)
	GetLeadSummary(ctx context.Context, promoteurID int64) (model.LeadSummary, error)

	CreateAppeal(ctx context.Context, a *model.Appeal) (int64, error)
	GetAppeal(ctx context.Context, id int64) (*model.Appeal, error)
	UpdateAppeal(ctx context.Context, a *model.Appeal) error
	AddReviewNote(ctx context.Context, n model.ReviewNote) (int64, error)
	ListReviewNotes(ctx context.Context, appealID int64) ([]model.ReviewNote, error)
	ListAppealsByStatus(ctx context.Context, status model.AppealStatus) ([]model.Appeal, error)
	ListOverdueAppeals(ctx context.Context, now time.Time) ([]model.Appeal, error)
	ListAppealsSince(ctx context.Context, cutoff time.Time) ([]model.Appeal, error)

	RecordAudit(ctx context.Context, e model.AuditEntry) error
}

// Notifier описывает контракт доставки уведомлений.
type Notifier interface {
	Notify(ctx context.Context, n notifier.Notification) error
}

// Service содержит бизнес-логику платформы доверия.
type Service struct {
	repo     Repository
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewService создаёт новый сервис с указанным репозиторием и клиентом уведомлений.
func NewService(repo Repository, n Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		notifier: n,
		logger:   logger,
		now:      time.Now,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// GetPromoteur возвращает профиль промоутера.
func (s *Service) GetPromoteur(ctx context.Context, id int64) (*model.Promoteur, error) {
	return s.repo.GetPromoteur(ctx, id)
}

// ListAppeals возвращает апелляции в указанном статусе.
func (s *Service) ListAppeals(ctx context.Context, status model.AppealStatus) ([]model.Appeal, error) {
	return s.repo.ListAppealsByStatus(ctx, status)
}

// notify доставляет уведомление по принципу fire-and-forget: ошибка доставки
// логируется и никогда не прерывает вызвавшую операцию.
func (s *Service) notify(ctx context.Context, n notifier.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn("notification delivery failed",
			zap.String("recipient", n.Recipient),
			zap.String("kind", n.Kind),
			zap.Error(err),
		)
	}
}

// audit записывает событие в журнал аудита; сбой журнала не прерывает операцию.
func (s *Service) audit(ctx context.Context, e model.AuditEntry) {
	if err := s.repo.RecordAudit(ctx, e); err != nil {
		s.logger.Warn("audit record failed",
			zap.String("action", e.Action),
			zap.String("targetId", e.TargetID),
			zap.Error(err),
		)
	}
}

// scoreConfig возвращает активную конфигурацию рейтинга либо встроенную по
// умолчанию: движок никогда не остаётся без конфигурации.
func (s *Service) scoreConfig(ctx context.Context) *model.ScoreConfig {
	cfg, err := s.repo.GetActiveScoreConfig(ctx)
	if err != nil {
		if !errors.Is(err, repository.ErrScoreConfigNotFound) {
			s.logger.Warn("load active score config failed, using default", zap.Error(err))
		}
		return model.DefaultScoreConfig()
	}
	return cfg
}

// recalculateQuiet пересчитывает рейтинг после изменения бейджей, санкций или
// апелляций; ошибка пересчёта логируется и не прерывает исходную операцию.
func (s *Service) recalculateQuiet(ctx context.Context, promoteurID int64) {
	if _, err := s.CalculateScore(ctx, promoteurID); err != nil {
		s.logger.Warn("trust score recalculation failed",
			zap.Int64("promoteurID", promoteurID),
			zap.Error(err),
		)
	}
}
