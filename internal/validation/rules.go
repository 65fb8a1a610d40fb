// Package validation содержит проверку входных данных сервиса доверия.
package validation

import (
	"fmt"

	"github.com/nicolasromanina/immo-backend-sub004/internal/model"
)

// ruleFields — закрытый перечень полей промоутера, допустимых в правилах
// критериев бейджей, с типизированными аксессорами. Строковый путь вне
// перечня отклоняется при сохранении и проваливает правило при оценке.
var ruleFields = map[string]func(*model.Promoteur) any{
	"trustScore":              func(p *model.Promoteur) any { return float64(p.TrustScore) },
	"kycStatus":               func(p *model.Promoteur) any { return string(p.KYCStatus) },
	"financialProofLevel":     func(p *model.Promoteur) any { return float64(p.FinancialProofLevel) },
	"totalProjects":           func(p *model.Promoteur) any { return float64(p.TotalProjects) },
	"completedProjects":       func(p *model.Promoteur) any { return float64(p.CompletedProjects) },
	"subscriptionStatus":      func(p *model.Promoteur) any { return string(p.SubscriptionStatus) },
	"profileComplete":         func(p *model.Promoteur) any { return p.ProfileComplete },
	"averageResponseTimeHours": func(p *model.Promoteur) any {
		if p.AvgResponseTimeHours == nil {
			return nil
		}
		return *p.AvgResponseTimeHours
	},
}

// IsValidRuleField сообщает, входит ли поле в перечень допустимых.
func IsValidRuleField(field string) bool {
	_, ok := ruleFields[field]
	return ok
}

// RuleFieldValue возвращает значение поля промоутера для оценки правила.
// Для неизвестного поля возвращает ok=false.
func RuleFieldValue(p *model.Promoteur, field string) (any, bool) {
	fn, ok := ruleFields[field]
	if !ok {
		return nil, false
	}
	return fn(p), true
}

// IsValidOperator сообщает, поддерживается ли оператор правила.
func IsValidOperator(op model.RuleOperator) bool {
	switch op {
	case model.OperatorEquals, model.OperatorGTE, model.OperatorLTE, model.OperatorGT, model.OperatorLT:
		return true
	}
	return false
}

// ValidateCriteria проверяет критерии бейджа перед сохранением.
func ValidateCriteria(c model.BadgeCriteria) error {
	if len(c.Rules) == 0 {
		return fmt.Errorf("criteria must contain at least one rule")
	}
	for i, r := range c.Rules {
		if !IsValidRuleField(r.Field) {
			return fmt.Errorf("rule %d: unknown field %q", i, r.Field)
		}
		if !IsValidOperator(r.Operator) {
			return fmt.Errorf("rule %d: unknown operator %q", i, r.Operator)
		}
		if r.Value == nil {
			return fmt.Errorf("rule %d: value is required", i)
		}
	}
	return nil
}
