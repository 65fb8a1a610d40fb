package service

import (
	"context"
	"testing"
	"time"

	"github.com/nicolasromanina/immo-backend-sub004/internal/model"
	"github.com/nicolasromanina/immo-backend-sub004/internal/notifier"
	"github.com/nicolasromanina/immo-backend-sub004/internal/repository"
)

var testNow = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

type fakeNotifier struct {
	sent []notifier.Notification
	err  error
}

func (f *fakeNotifier) Notify(ctx context.Context, n notifier.Notification) error {
	f.sent = append(f.sent, n)
	return f.err
}

func (f *fakeNotifier) byKind(kind string) []notifier.Notification {
	var out []notifier.Notification
	for _, n := range f.sent {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// fakeRepo — репозиторий в памяти для тестов сервиса.
type fakeRepo struct {
	promoteurs map[int64]*model.Promoteur

	restrictions      []model.Restriction
	nextRestrictionID int64

	badges      []model.Badge
	awards      []model.BadgeAward
	nextAwardID int64

	activeConfig *model.ScoreConfig
	savedConfigs []model.ScoreConfig

	projects          map[int64][]model.Project
	underConstruction []model.Project
	latestUpdate      map[int64]*time.Time
	updates           map[int64][]model.ProjectUpdate
	featured          map[int64]bool
	projectStatus     map[int64]model.ProjectStatus

	docs  map[int64]model.DocumentSummary
	leads map[int64]model.LeadSummary

	appeals      map[int64]*model.Appeal
	nextAppealID int64
	notes        []model.ReviewNote

	audits []model.AuditEntry

	// forceVersionConflicts заставляет ближайшие N записей рейтинга
	// завершиться конфликтом версий.
	forceVersionConflicts int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		promoteurs:    make(map[int64]*model.Promoteur),
		projects:      make(map[int64][]model.Project),
		latestUpdate:  make(map[int64]*time.Time),
		updates:       make(map[int64][]model.ProjectUpdate),
		featured:      make(map[int64]bool),
		projectStatus: make(map[int64]model.ProjectStatus),
		docs:          make(map[int64]model.DocumentSummary),
		leads:         make(map[int64]model.LeadSummary),
		appeals:       make(map[int64]*model.Appeal),
	}
}

func (f *fakeRepo) Close() error { return nil }

func (f *fakeRepo) GetPromoteur(ctx context.Context, id int64) (*model.Promoteur, error) {
	p, ok := f.promoteurs[id]
	if !ok {
		return nil, repository.ErrPromoteurNotFound
	}
	copied := *p
	return &copied, nil
}

func (f *fakeRepo) ListPromoteurIDs(ctx context.Context) ([]int64, error) {
	ids := make([]int64, 0, len(f.promoteurs))
	for id := range f.promoteurs {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeRepo) UpdateTrustScore(ctx context.Context, id int64, score int, version int64) error {
	if f.forceVersionConflicts > 0 {
		f.forceVersionConflicts--
		return repository.ErrVersionConflict
	}
	p, ok := f.promoteurs[id]
	if !ok {
		return repository.ErrPromoteurNotFound
	}
	if p.Version != version {
		return repository.ErrVersionConflict
	}
	p.TrustScore = score
	p.Version++
	return nil
}

func (f *fakeRepo) UpdateSubscriptionStatus(ctx context.Context, id int64, status model.SubscriptionStatus, version int64) error {
	p, ok := f.promoteurs[id]
	if !ok {
		return repository.ErrPromoteurNotFound
	}
	if p.Version != version {
		return repository.ErrVersionConflict
	}
	p.SubscriptionStatus = status
	p.Version++
	return nil
}

func (f *fakeRepo) ListRestrictions(ctx context.Context, promoteurID int64) ([]model.Restriction, error) {
	var out []model.Restriction
	for _, r := range f.restrictions {
		if r.PromoteurID == promoteurID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRepo) AddRestriction(ctx context.Context, restriction model.Restriction) (int64, error) {
	f.nextRestrictionID++
	restriction.ID = f.nextRestrictionID
	f.restrictions = append(f.restrictions, restriction)
	return restriction.ID, nil
}

func (f *fakeRepo) RemoveRestriction(ctx context.Context, id int64) (bool, error) {
	for i, r := range f.restrictions {
		if r.ID == id {
			f.restrictions = append(f.restrictions[:i], f.restrictions[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) FindRestriction(ctx context.Context, promoteurID int64, typ model.RestrictionType, appliedAt time.Time) (*model.Restriction, error) {
	for _, r := range f.restrictions {
		if r.PromoteurID == promoteurID && r.Type == typ && r.AppliedAt.Equal(appliedAt) {
			copied := r
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) ListPromoteursWithExpiredRestrictions(ctx context.Context, now time.Time) ([]int64, error) {
	seen := make(map[int64]bool)
	var out []int64
	for _, r := range f.restrictions {
		if r.ExpiresAt != nil && !r.ExpiresAt.After(now) && !seen[r.PromoteurID] {
			seen[r.PromoteurID] = true
			out = append(out, r.PromoteurID)
		}
	}
	return out, nil
}

func (f *fakeRepo) DeleteExpiredRestrictions(ctx context.Context, promoteurID int64, now time.Time) (int64, error) {
	var kept []model.Restriction
	var removed int64
	for _, r := range f.restrictions {
		if r.PromoteurID == promoteurID && r.ExpiresAt != nil && !r.ExpiresAt.After(now) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	f.restrictions = kept
	return removed, nil
}

func (f *fakeRepo) CreateBadge(ctx context.Context, b model.Badge) (int64, error) {
	for _, existing := range f.badges {
		if existing.Slug == b.Slug {
			return 0, repository.ErrBadgeExists
		}
	}
	b.ID = int64(len(f.badges) + 1)
	f.badges = append(f.badges, b)
	return b.ID, nil
}

func (f *fakeRepo) GetBadgeBySlug(ctx context.Context, slug string) (*model.Badge, error) {
	for _, b := range f.badges {
		if b.Slug == slug {
			copied := b
			return &copied, nil
		}
	}
	return nil, repository.ErrBadgeNotFound
}

func (f *fakeRepo) ListActiveBadges(ctx context.Context) ([]model.Badge, error) {
	var out []model.Badge
	for _, b := range f.badges {
		if b.IsActive {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListBadgeAwards(ctx context.Context, promoteurID int64) ([]model.BadgeAward, error) {
	var out []model.BadgeAward
	for _, a := range f.awards {
		if a.PromoteurID == promoteurID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateBadgeAward(ctx context.Context, award model.BadgeAward) (int64, error) {
	f.nextAwardID++
	award.ID = f.nextAwardID
	f.awards = append(f.awards, award)
	return award.ID, nil
}

func (f *fakeRepo) DeleteBadgeAward(ctx context.Context, promoteurID, badgeID int64) (bool, error) {
	for i, a := range f.awards {
		if a.PromoteurID == promoteurID && a.BadgeID == badgeID {
			f.awards = append(f.awards[:i], f.awards[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) ListExpiredBadgeAwards(ctx context.Context, now time.Time) ([]model.BadgeAward, error) {
	var out []model.BadgeAward
	for _, a := range f.awards {
		if a.ExpiresAt != nil && !a.ExpiresAt.After(now) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetActiveScoreConfig(ctx context.Context) (*model.ScoreConfig, error) {
	if f.activeConfig == nil {
		return nil, repository.ErrScoreConfigNotFound
	}
	copied := *f.activeConfig
	return &copied, nil
}

func (f *fakeRepo) SaveScoreConfig(ctx context.Context, cfg model.ScoreConfig) (int64, error) {
	cfg.ID = int64(len(f.savedConfigs) + 1)
	f.savedConfigs = append(f.savedConfigs, cfg)
	return cfg.ID, nil
}

func (f *fakeRepo) ActivateScoreConfig(ctx context.Context, id int64) error {
	for i := range f.savedConfigs {
		if f.savedConfigs[i].ID == id {
			cfg := f.savedConfigs[i]
			cfg.IsActive = true
			f.activeConfig = &cfg
			return nil
		}
	}
	return repository.ErrScoreConfigNotFound
}

func (f *fakeRepo) ListActiveProjects(ctx context.Context, promoteurID int64) ([]model.Project, error) {
	return f.projects[promoteurID], nil
}

func (f *fakeRepo) ListProjectsUnderConstruction(ctx context.Context) ([]model.Project, error) {
	return f.underConstruction, nil
}

func (f *fakeRepo) LatestPublishedUpdate(ctx context.Context, projectID int64) (*time.Time, error) {
	return f.latestUpdate[projectID], nil
}

func (f *fakeRepo) ListProjectUpdatesSince(ctx context.Context, projectID int64, since time.Time) ([]model.ProjectUpdate, error) {
	var out []model.ProjectUpdate
	for _, u := range f.updates[projectID] {
		if u.PublishedAt.After(since) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeRepo) SetProjectFeatured(ctx context.Context, projectID int64, featured bool) error {
	f.featured[projectID] = featured
	return nil
}

func (f *fakeRepo) SetProjectStatus(ctx context.Context, projectID int64, status model.ProjectStatus) error {
	f.projectStatus[projectID] = status
	return nil
}

func (f *fakeRepo) GetDocumentSummary(ctx context.Context, promoteurID int64) (model.DocumentSummary, error) {
	return f.docs[promoteurID], nil
}

func (f *fakeRepo) GetLeadSummary(ctx context.Context, promoteurID int64) (model.LeadSummary, error) {
	return f.leads[promoteurID], nil
}

func (f *fakeRepo) CreateAppeal(ctx context.Context, a *model.Appeal) (int64, error) {
	f.nextAppealID++
	copied := *a
	copied.ID = f.nextAppealID
	f.appeals[copied.ID] = &copied
	return copied.ID, nil
}

func (f *fakeRepo) GetAppeal(ctx context.Context, id int64) (*model.Appeal, error) {
	a, ok := f.appeals[id]
	if !ok {
		return nil, repository.ErrAppealNotFound
	}
	copied := *a
	return &copied, nil
}

func (f *fakeRepo) UpdateAppeal(ctx context.Context, a *model.Appeal) error {
	if _, ok := f.appeals[a.ID]; !ok {
		return repository.ErrAppealNotFound
	}
	copied := *a
	f.appeals[a.ID] = &copied
	return nil
}

func (f *fakeRepo) AddReviewNote(ctx context.Context, n model.ReviewNote) (int64, error) {
	n.ID = int64(len(f.notes) + 1)
	f.notes = append(f.notes, n)
	return n.ID, nil
}

func (f *fakeRepo) ListReviewNotes(ctx context.Context, appealID int64) ([]model.ReviewNote, error) {
	var out []model.ReviewNote
	for _, n := range f.notes {
		if n.AppealID == appealID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListAppealsByStatus(ctx context.Context, status model.AppealStatus) ([]model.Appeal, error) {
	var out []model.Appeal
	for _, a := range f.appeals {
		if a.Status == status {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListOverdueAppeals(ctx context.Context, now time.Time) ([]model.Appeal, error) {
	var out []model.Appeal
	for _, a := range f.appeals {
		if isResolved(a.Status) {
			continue
		}
		if a.Deadline.Before(now) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListAppealsSince(ctx context.Context, cutoff time.Time) ([]model.Appeal, error) {
	var out []model.Appeal
	for _, a := range f.appeals {
		if a.SubmittedAt.After(cutoff) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeRepo) RecordAudit(ctx context.Context, e model.AuditEntry) error {
	f.audits = append(f.audits, e)
	return nil
}

func (f *fakeRepo) hasRestriction(promoteurID int64, typ model.RestrictionType) bool {
	for _, r := range f.restrictions {
		if r.PromoteurID == promoteurID && r.Type == typ {
			return true
		}
	}
	return false
}

func newTestService(repo *fakeRepo) (*Service, *fakeNotifier) {
	n := &fakeNotifier{}
	svc := NewService(repo, n, nil)
	svc.now = func() time.Time { return testNow }
	return svc, n
}

func TestScoreConfig_FallsBackToDefault(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)

	cfg := svc.GetScoreConfig(context.Background())
	if cfg == nil {
		t.Fatalf("expected default config, got nil")
	}
	if cfg.Weights.KYC != 20 || cfg.Weights.FinancialProof != 0 {
		t.Fatalf("unexpected default weights: %+v", cfg.Weights)
	}
}

func TestScoreConfig_PrefersActive(t *testing.T) {
	repo := newFakeRepo()
	custom := model.DefaultScoreConfig()
	custom.Name = "custom"
	custom.Weights.KYC = 40
	repo.activeConfig = custom

	svc, _ := newTestService(repo)

	cfg := svc.GetScoreConfig(context.Background())
	if cfg.Name != "custom" || cfg.Weights.KYC != 40 {
		t.Fatalf("expected active config, got %+v", cfg)
	}
}

func TestSaveScoreConfig_Validation(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)

	if _, err := svc.SaveScoreConfig(context.Background(), model.ScoreConfig{}); err == nil {
		t.Fatalf("expected error for config without name")
	}

	cfg := model.ScoreConfig{Name: "zero-weights"}
	if _, err := svc.SaveScoreConfig(context.Background(), cfg); err == nil {
		t.Fatalf("expected error for zero weights")
	}
}

func TestActivateScoreConfig_Applies(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)

	cfg := *model.DefaultScoreConfig()
	cfg.Name = "v2"
	id, err := svc.SaveScoreConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("save config: %v", err)
	}

	if err := svc.ActivateScoreConfig(context.Background(), id, "ops"); err != nil {
		t.Fatalf("activate config: %v", err)
	}

	active := svc.GetScoreConfig(context.Background())
	if active.Name != "v2" {
		t.Fatalf("active config = %q, want %q", active.Name, "v2")
	}
}

func TestNotify_SwallowsDeliveryError(t *testing.T) {
	repo := newFakeRepo()
	repo.promoteurs[1] = &model.Promoteur{ID: 1, Email: "p@example.fr", KYCStatus: model.KYCStatusVerified}

	svc, n := newTestService(repo)
	n.err = context.DeadlineExceeded

	// Присуждение бейджа уведомляет промоутера; сбой доставки не должен
	// прерывать операцию.
	repo.badges = append(repo.badges, model.Badge{
		ID:       1,
		Slug:     "kyc-verified",
		IsActive: true,
		Criteria: model.BadgeCriteria{Rules: []model.BadgeRule{
			{Field: "kycStatus", Operator: model.OperatorEquals, Value: "verified"},
		}},
	})

	awarded, err := svc.CheckAndAwardBadges(context.Background(), 1)
	if err != nil {
		t.Fatalf("check badges: %v", err)
	}
	if len(awarded) != 1 {
		t.Fatalf("awarded = %v, want one badge", awarded)
	}
}

func TestStartSweeps_ZeroIntervalDisabled(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)

	// Нулевой интервал не должен запускать горутину и блокировать вызов.
	svc.StartSweeps(context.Background(), 0)
}
