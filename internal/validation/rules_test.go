package validation

import (
	"testing"

	"github.com/nicolasromanina/immo-backend-sub004/internal/model"
)

func TestIsValidRuleField(t *testing.T) {
	valid := []string{
		"trustScore",
		"kycStatus",
		"financialProofLevel",
		"totalProjects",
		"completedProjects",
		"subscriptionStatus",
		"profileComplete",
		"averageResponseTimeHours",
	}
	for _, field := range valid {
		if !IsValidRuleField(field) {
			t.Fatalf("field %q must be valid", field)
		}
	}

	invalid := []string{"", "TrustScore", "email", "restrictions.0.reason"}
	for _, field := range invalid {
		if IsValidRuleField(field) {
			t.Fatalf("field %q must be rejected", field)
		}
	}
}

func TestRuleFieldValue(t *testing.T) {
	avg := 3.5
	p := &model.Promoteur{
		TrustScore:           73,
		KYCStatus:            model.KYCStatusVerified,
		AvgResponseTimeHours: &avg,
	}

	v, ok := RuleFieldValue(p, "trustScore")
	if !ok || v != float64(73) {
		t.Fatalf("trustScore = %v (%v), want 73", v, ok)
	}

	v, ok = RuleFieldValue(p, "kycStatus")
	if !ok || v != "verified" {
		t.Fatalf("kycStatus = %v (%v), want verified", v, ok)
	}

	v, ok = RuleFieldValue(p, "averageResponseTimeHours")
	if !ok || v != 3.5 {
		t.Fatalf("averageResponseTimeHours = %v (%v), want 3.5", v, ok)
	}

	if _, ok := RuleFieldValue(p, "unknown"); ok {
		t.Fatalf("unknown field must return ok=false")
	}
}

func TestRuleFieldValue_NilResponseTime(t *testing.T) {
	p := &model.Promoteur{}

	v, ok := RuleFieldValue(p, "averageResponseTimeHours")
	if !ok {
		t.Fatalf("known field must return ok=true")
	}
	if v != nil {
		t.Fatalf("missing value = %v, want nil", v)
	}
}

func TestValidateCriteria(t *testing.T) {
	tests := []struct {
		name    string
		c       model.BadgeCriteria
		wantErr bool
	}{
		{
			name:    "empty rules",
			c:       model.BadgeCriteria{},
			wantErr: true,
		},
		{
			name: "valid",
			c: model.BadgeCriteria{Rules: []model.BadgeRule{
				{Field: "trustScore", Operator: model.OperatorGTE, Value: float64(60)},
				{Field: "kycStatus", Operator: model.OperatorEquals, Value: "verified"},
			}},
			wantErr: false,
		},
		{
			name: "unknown field",
			c: model.BadgeCriteria{Rules: []model.BadgeRule{
				{Field: "email", Operator: model.OperatorEquals, Value: "x"},
			}},
			wantErr: true,
		},
		{
			name: "unknown operator",
			c: model.BadgeCriteria{Rules: []model.BadgeRule{
				{Field: "trustScore", Operator: "contains", Value: float64(1)},
			}},
			wantErr: true,
		},
		{
			name: "missing value",
			c: model.BadgeCriteria{Rules: []model.BadgeRule{
				{Field: "trustScore", Operator: model.OperatorGTE},
			}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCriteria(tt.c)
			if tt.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
