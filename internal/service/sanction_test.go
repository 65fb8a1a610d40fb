package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nicolasromanina/immo-backend-sub004/internal/model"
)

func constructionProject(id, promoteurID int64, name string) model.Project {
	return model.Project{
		ID:                 id,
		PromoteurID:        promoteurID,
		Name:               name,
		Status:             model.ProjectStatusActive,
		ConstructionStatus: model.ConstructionInProgress,
		IsPublished:        true,
		IsFeatured:         true,
		CreatedAt:          testNow.AddDate(-1, 0, 0),
	}
}

func TestCheckUpdateFrequency_WarningAfter45Days(t *testing.T) {
	repo := newFakeRepo()
	repo.promoteurs[1] = &model.Promoteur{ID: 1, Email: "p@example.fr", SubscriptionStatus: model.SubscriptionActive}
	project := constructionProject(100, 1, "Les Terrasses")
	repo.underConstruction = []model.Project{project}
	repo.latestUpdate[100] = timePtr(testNow.AddDate(0, 0, -50))

	svc, n := newTestService(repo)

	res, err := svc.CheckUpdateFrequency(context.Background())
	if err != nil {
		t.Fatalf("check update frequency: %v", err)
	}
	if res.Affected != 1 {
		t.Fatalf("affected = %d, want 1", res.Affected)
	}

	restrictions, _ := repo.ListRestrictions(context.Background(), 1)
	if len(restrictions) != 1 {
		t.Fatalf("restrictions = %d, want 1", len(restrictions))
	}
	r := restrictions[0]
	if r.Type != model.RestrictionWarning {
		t.Fatalf("restriction type = %s, want warning", r.Type)
	}
	if !strings.Contains(r.Reason, "no-updates-45days") {
		t.Fatalf("reason %q does not carry the violation code", r.Reason)
	}
	if r.ExpiresAt != nil {
		t.Fatalf("warning must not expire")
	}

	if len(n.byKind("sanction-warning")) != 1 {
		t.Fatalf("expected one warning notification, got %d", len(n.byKind("sanction-warning")))
	}
}

func TestCheckUpdateFrequency_WarningIsDeduplicated(t *testing.T) {
	repo := newFakeRepo()
	repo.promoteurs[1] = &model.Promoteur{ID: 1, Email: "p@example.fr", SubscriptionStatus: model.SubscriptionActive}
	repo.underConstruction = []model.Project{constructionProject(100, 1, "Les Terrasses")}
	repo.latestUpdate[100] = timePtr(testNow.AddDate(0, 0, -50))

	svc, _ := newTestService(repo)

	if _, err := svc.CheckUpdateFrequency(context.Background()); err != nil {
		t.Fatalf("first pass: %v", err)
	}

	res, err := svc.CheckUpdateFrequency(context.Background())
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if res.Affected != 0 {
		t.Fatalf("second pass affected = %d, want 0", res.Affected)
	}

	restrictions, _ := repo.ListRestrictions(context.Background(), 1)
	if len(restrictions) != 1 {
		t.Fatalf("restrictions after second pass = %d, want 1", len(restrictions))
	}
}

func TestCheckUpdateFrequency_ReducedVisibilityAfter60Days(t *testing.T) {
	repo := newFakeRepo()
	repo.promoteurs[1] = &model.Promoteur{ID: 1, Email: "p@example.fr", SubscriptionStatus: model.SubscriptionActive}
	repo.underConstruction = []model.Project{constructionProject(100, 1, "Les Terrasses")}
	repo.latestUpdate[100] = timePtr(testNow.AddDate(0, 0, -65))
	repo.featured[100] = true

	svc, _ := newTestService(repo)

	if _, err := svc.CheckUpdateFrequency(context.Background()); err != nil {
		t.Fatalf("check update frequency: %v", err)
	}

	restrictions, _ := repo.ListRestrictions(context.Background(), 1)
	if len(restrictions) != 1 || restrictions[0].Type != model.RestrictionReducedVisibility {
		t.Fatalf("expected one reduced-visibility restriction, got %+v", restrictions)
	}
	if restrictions[0].ExpiresAt == nil {
		t.Fatalf("restriction must carry an expiry")
	}
	wantExpiry := testNow.AddDate(0, 0, 30)
	if !restrictions[0].ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("expiry = %v, want %v", restrictions[0].ExpiresAt, wantExpiry)
	}

	if repo.featured[100] {
		t.Fatalf("project must lose its featured placement")
	}
}

func TestCheckUpdateFrequency_SuspensionAfter90Days(t *testing.T) {
	repo := newFakeRepo()
	repo.promoteurs[1] = &model.Promoteur{ID: 1, Email: "p@example.fr", SubscriptionStatus: model.SubscriptionActive}
	repo.underConstruction = []model.Project{constructionProject(100, 1, "Les Terrasses")}
	repo.latestUpdate[100] = timePtr(testNow.AddDate(0, 0, -95))

	svc, n := newTestService(repo)

	if _, err := svc.CheckUpdateFrequency(context.Background()); err != nil {
		t.Fatalf("check update frequency: %v", err)
	}

	if repo.promoteurs[1].SubscriptionStatus != model.SubscriptionSuspended {
		t.Fatalf("subscription = %s, want suspended", repo.promoteurs[1].SubscriptionStatus)
	}
	if repo.projectStatus[100] != model.ProjectStatusSuspended {
		t.Fatalf("project status = %s, want suspended", repo.projectStatus[100])
	}

	restrictions, _ := repo.ListRestrictions(context.Background(), 1)
	if len(restrictions) != 1 || restrictions[0].Type != model.RestrictionSuspension {
		t.Fatalf("expected one suspension restriction, got %+v", restrictions)
	}

	urgent := n.byKind("sanction-suspension")
	if len(urgent) != 1 || urgent[0].Title != "Compte suspendu" {
		t.Fatalf("expected suspension notification, got %+v", urgent)
	}
}

func TestCheckUpdateFrequency_ProjectWithoutAnyUpdate(t *testing.T) {
	repo := newFakeRepo()
	repo.promoteurs[1] = &model.Promoteur{ID: 1, Email: "p@example.fr", SubscriptionStatus: model.SubscriptionActive}

	old := constructionProject(100, 1, "Sans nouvelles")
	old.CreatedAt = testNow.AddDate(0, 0, -70)
	fresh := constructionProject(101, 1, "Tout neuf")
	fresh.CreatedAt = testNow.AddDate(0, 0, -10)
	repo.underConstruction = []model.Project{old, fresh}

	svc, _ := newTestService(repo)

	res, err := svc.CheckUpdateFrequency(context.Background())
	if err != nil {
		t.Fatalf("check update frequency: %v", err)
	}
	if res.Affected != 1 {
		t.Fatalf("affected = %d, want 1", res.Affected)
	}

	restrictions, _ := repo.ListRestrictions(context.Background(), 1)
	if len(restrictions) != 1 || !strings.Contains(restrictions[0].Reason, "no-updates-60days") {
		t.Fatalf("expected a no-updates-60days warning, got %+v", restrictions)
	}
}

func TestRemoveExpiredRestrictions_ReactivatesSuspendedAccount(t *testing.T) {
	repo := newFakeRepo()
	repo.promoteurs[1] = &model.Promoteur{ID: 1, Email: "p@example.fr", SubscriptionStatus: model.SubscriptionSuspended}
	repo.restrictions = []model.Restriction{{
		ID:          1,
		PromoteurID: 1,
		Type:        model.RestrictionSuspension,
		Reason:      "aucune mise à jour depuis plus de 90 jours",
		AppliedAt:   testNow.AddDate(0, 0, -31),
		ExpiresAt:   timePtr(testNow.Add(-time.Hour)),
	}}
	repo.nextRestrictionID = 1

	svc, n := newTestService(repo)

	res, err := svc.RemoveExpiredRestrictions(context.Background())
	if err != nil {
		t.Fatalf("remove expired restrictions: %v", err)
	}
	if res.Affected != 1 {
		t.Fatalf("affected = %d, want 1", res.Affected)
	}

	if len(repo.restrictions) != 0 {
		t.Fatalf("restrictions remaining = %d, want 0", len(repo.restrictions))
	}
	if repo.promoteurs[1].SubscriptionStatus != model.SubscriptionActive {
		t.Fatalf("subscription = %s, want active", repo.promoteurs[1].SubscriptionStatus)
	}

	if len(n.byKind("sanction-lifted")) != 1 {
		t.Fatalf("expected reactivation notification")
	}
	if len(n.byKind("sanction-expired")) != 1 {
		t.Fatalf("expected expiry notification")
	}
}

func TestRemoveExpiredRestrictions_KeepsSuspensionWhenAnotherActive(t *testing.T) {
	repo := newFakeRepo()
	repo.promoteurs[1] = &model.Promoteur{ID: 1, Email: "p@example.fr", SubscriptionStatus: model.SubscriptionSuspended}
	repo.restrictions = []model.Restriction{
		{
			ID:          1,
			PromoteurID: 1,
			Type:        model.RestrictionSuspension,
			AppliedAt:   testNow.AddDate(0, 0, -40),
			ExpiresAt:   timePtr(testNow.Add(-time.Hour)),
		},
		{
			ID:          2,
			PromoteurID: 1,
			Type:        model.RestrictionSuspension,
			AppliedAt:   testNow.AddDate(0, 0, -5),
			ExpiresAt:   timePtr(testNow.AddDate(0, 0, 25)),
		},
	}
	repo.nextRestrictionID = 2

	svc, n := newTestService(repo)

	if _, err := svc.RemoveExpiredRestrictions(context.Background()); err != nil {
		t.Fatalf("remove expired restrictions: %v", err)
	}

	if repo.promoteurs[1].SubscriptionStatus != model.SubscriptionSuspended {
		t.Fatalf("subscription = %s, want suspended", repo.promoteurs[1].SubscriptionStatus)
	}
	if len(repo.restrictions) != 1 {
		t.Fatalf("restrictions remaining = %d, want 1", len(repo.restrictions))
	}
	if len(n.byKind("sanction-lifted")) != 0 {
		t.Fatalf("reactivation notification must not be sent")
	}
}

func TestGetSanctionHistory_LevelsAndPartition(t *testing.T) {
	repo := newFakeRepo()
	repo.promoteurs[1] = &model.Promoteur{ID: 1, Email: "p@example.fr"}

	svc, _ := newTestService(repo)

	history, err := svc.GetSanctionHistory(context.Background(), 1)
	if err != nil {
		t.Fatalf("empty history: %v", err)
	}
	if history.CurrentLevel != model.SanctionLevelNone {
		t.Fatalf("level = %s, want none", history.CurrentLevel)
	}

	repo.restrictions = []model.Restriction{
		{ID: 1, PromoteurID: 1, Type: model.RestrictionWarning, AppliedAt: testNow.AddDate(0, 0, -10)},
		{ID: 2, PromoteurID: 1, Type: model.RestrictionReducedVisibility, AppliedAt: testNow.AddDate(0, 0, -5), ExpiresAt: timePtr(testNow.AddDate(0, 0, 25))},
		{ID: 3, PromoteurID: 1, Type: model.RestrictionReducedVisibility, AppliedAt: testNow.AddDate(0, 0, -60), ExpiresAt: timePtr(testNow.AddDate(0, 0, -30))},
	}

	history, err = svc.GetSanctionHistory(context.Background(), 1)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history.Active) != 2 || len(history.Expired) != 1 {
		t.Fatalf("partition = %d active / %d expired, want 2/1", len(history.Active), len(history.Expired))
	}
	if history.CurrentLevel != model.SanctionLevelRestricted {
		t.Fatalf("level = %s, want restricted", history.CurrentLevel)
	}
}

func TestGetSanctionHistory_HighRisk(t *testing.T) {
	repo := newFakeRepo()
	repo.promoteurs[1] = &model.Promoteur{ID: 1, Email: "p@example.fr"}
	repo.restrictions = []model.Restriction{
		{ID: 1, PromoteurID: 1, Type: model.RestrictionWarning, AppliedAt: testNow},
		{ID: 2, PromoteurID: 1, Type: model.RestrictionWarning, AppliedAt: testNow},
		{ID: 3, PromoteurID: 1, Type: model.RestrictionSuspension, AppliedAt: testNow, ExpiresAt: timePtr(testNow.AddDate(0, 0, 30))},
	}

	svc, _ := newTestService(repo)

	history, err := svc.GetSanctionHistory(context.Background(), 1)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if history.CurrentLevel != model.SanctionLevelHighRisk {
		t.Fatalf("level = %s, want high-risk", history.CurrentLevel)
	}
}
