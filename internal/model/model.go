// Package model содержит доменные сущности платформы доверия промоутеров.
package model

import "time"

// KYCStatus описывает статус проверки KYC промоутера.
type KYCStatus string

const (
	KYCStatusNone      KYCStatus = "none"
	KYCStatusPending   KYCStatus = "pending"
	KYCStatusSubmitted KYCStatus = "submitted"
	KYCStatusVerified  KYCStatus = "verified"
	KYCStatusRejected  KYCStatus = "rejected"
)

// SubscriptionStatus описывает статус подписки промоутера.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionTrial     SubscriptionStatus = "trial"
	SubscriptionSuspended SubscriptionStatus = "suspended"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// Promoteur представляет застройщика — владельца проектов на платформе.
type Promoteur struct {
	ID                   int64
	Email                string
	CompanyName          string
	KYCStatus            KYCStatus
	FinancialProofLevel  int
	AvgResponseTimeHours *float64
	TotalProjects        int
	CompletedProjects    int
	TrustScore           int
	ProfileComplete      bool
	SubscriptionStatus   SubscriptionStatus
	Version              int64
	CreatedAt            time.Time
}

// RestrictionType описывает тип ограничения, наложенного на промоутера.
type RestrictionType string

const (
	RestrictionWarning           RestrictionType = "warning"
	RestrictionReducedVisibility RestrictionType = "reduced-visibility"
	RestrictionSuspension        RestrictionType = "suspension"
)

// Restriction описывает санкцию с необязательным сроком действия. Нулевой
// ExpiresAt означает бессрочное ограничение.
type Restriction struct {
	ID          int64
	PromoteurID int64
	Type        RestrictionType
	Reason      string
	AppliedAt   time.Time
	ExpiresAt   *time.Time
}

// Active сообщает, действует ли ограничение в момент now.
func (r Restriction) Active(now time.Time) bool {
	return r.ExpiresAt == nil || r.ExpiresAt.After(now)
}

// SanctionLevel описывает сводный уровень санкций промоутера.
type SanctionLevel string

const (
	SanctionLevelNone       SanctionLevel = "none"
	SanctionLevelWarning    SanctionLevel = "warning"
	SanctionLevelRestricted SanctionLevel = "restricted"
	SanctionLevelHighRisk   SanctionLevel = "high-risk"
)

// SanctionHistory содержит разбиение ограничений промоутера на действующие и истёкшие.
type SanctionHistory struct {
	Active       []Restriction
	Expired      []Restriction
	CurrentLevel SanctionLevel
}

// RuleOperator описывает оператор сравнения в правиле критериев бейджа.
type RuleOperator string

const (
	OperatorEquals RuleOperator = "equals"
	OperatorGTE    RuleOperator = "gte"
	OperatorLTE    RuleOperator = "lte"
	OperatorGT     RuleOperator = "gt"
	OperatorLT     RuleOperator = "lt"
)

// BadgeRule описывает одно правило критериев: поле промоутера, оператор и порог.
type BadgeRule struct {
	Field    string       `json:"field"`
	Operator RuleOperator `json:"operator"`
	Value    any          `json:"value"`
}

// BadgeCriteria объединяет правила бейджа; бейдж присуждается только при
// выполнении всех правил.
type BadgeCriteria struct {
	Rules []BadgeRule `json:"rules"`
}

// Badge описывает запись каталога бейджей.
type Badge struct {
	ID              int64
	Slug            string
	Category        string
	Criteria        BadgeCriteria
	TrustScoreBonus int
	HasExpiration   bool
	ExpirationDays  int
	IsActive        bool
	AwardedCount    int64
}

// BadgeAward описывает присуждённый промоутеру бейдж.
type BadgeAward struct {
	ID          int64
	PromoteurID int64
	BadgeID     int64
	BadgeSlug   string
	EarnedAt    time.Time
	ExpiresAt   *time.Time
}

// ProjectStatus описывает статус проекта.
type ProjectStatus string

const (
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusSuspended ProjectStatus = "suspended"
)

// ConstructionStatus описывает фазу строительства проекта.
type ConstructionStatus string

const (
	ConstructionInProgress ConstructionStatus = "in-construction"
	ConstructionHeavyWorks ConstructionStatus = "heavy-works"
	ConstructionDelivered  ConstructionStatus = "delivered"
)

// Project — снимок проекта из внешнего хранилища проектов.
type Project struct {
	ID                 int64
	PromoteurID        int64
	Name               string
	Status             ProjectStatus
	ConstructionStatus ConstructionStatus
	IsPublished        bool
	IsFeatured         bool
	CreatedAt          time.Time
}

// ProjectUpdate — снимок опубликованного обновления проекта.
type ProjectUpdate struct {
	ID          int64
	ProjectID   int64
	PublishedAt time.Time
}

// DocumentSummary содержит агрегаты по документам промоутера.
type DocumentSummary struct {
	Total    int
	Verified int
	Expired  int
	Missing  int
	Rejected int
}

// LeadSummary содержит агрегаты по заявкам промоутера.
type LeadSummary struct {
	Total     int
	SLAMissed int
}

// ScoreWeights содержит веса семи факторов рейтинга; в конфигурации по
// умолчанию сумма равна 100.
type ScoreWeights struct {
	KYC            float64 `json:"kyc"`
	Documents      float64 `json:"documents"`
	Updates        float64 `json:"updates"`
	ResponseTime   float64 `json:"responseTime"`
	Completion     float64 `json:"completion"`
	Badges         float64 `json:"badges"`
	FinancialProof float64 `json:"financialProof"`
}

// UpdateFrequency содержит пороги частоты обновлений проектов в днях.
type UpdateFrequency struct {
	MinimumDays int `json:"minimumDays"`
	IdealDays   int `json:"idealDays"`
	MaxPenalty  int `json:"maxPenalty"`
}

// ResponseTimeSLA содержит пороги времени ответа в часах.
type ResponseTimeSLA struct {
	ExcellentHours  float64 `json:"excellentHours"`
	GoodHours       float64 `json:"goodHours"`
	AcceptableHours float64 `json:"acceptableHours"`
}

// GamingDetection содержит настройки детектора накрутки обновлений.
type GamingDetection struct {
	MinUpdateIntervalHours    float64 `json:"minUpdateIntervalHours"`
	MaxDailyUpdates           int     `json:"maxDailyUpdates"`
	SuspiciousPatternsEnabled bool    `json:"suspiciousPatternsEnabled"`
}

// BonusPoints содержит размеры бонусов к рейтингу.
type BonusPoints struct {
	CompleteProfile   float64 `json:"completeProfile"`
	QuickResponder    float64 `json:"quickResponder"`
	ConsistentUpdater float64 `json:"consistentUpdater"`
}

// Penalties содержит размеры штрафов к рейтингу и их общий потолок.
type Penalties struct {
	PerMissingDocument float64 `json:"perMissingDocument"`
	PerMissedSLALead   float64 `json:"perMissedSlaLead"`
	MaxTotal           float64 `json:"maxTotal"`
}

// ScoreConfig — версия конфигурации движка рейтинга; активной может быть
// только одна.
type ScoreConfig struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	IsActive        bool            `json:"isActive"`
	Weights         ScoreWeights    `json:"weights"`
	UpdateFrequency UpdateFrequency `json:"updateFrequency"`
	ResponseTimeSLA ResponseTimeSLA `json:"responseTimeSLA"`
	GamingDetection GamingDetection `json:"gamingDetection"`
	BonusPoints     BonusPoints     `json:"bonusPoints"`
	Penalties       Penalties       `json:"penalties"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// DefaultScoreConfig возвращает встроенную конфигурацию, используемую при
// отсутствии активной записи в хранилище.
func DefaultScoreConfig() *ScoreConfig {
	return &ScoreConfig{
		Name: "default",
		Weights: ScoreWeights{
			KYC:            20,
			Documents:      20,
			Updates:        20,
			ResponseTime:   15,
			Completion:     15,
			Badges:         10,
			FinancialProof: 0,
		},
		UpdateFrequency: UpdateFrequency{
			MinimumDays: 14,
			IdealDays:   7,
			MaxPenalty:  20,
		},
		ResponseTimeSLA: ResponseTimeSLA{
			ExcellentHours:  2,
			GoodHours:       12,
			AcceptableHours: 24,
		},
		GamingDetection: GamingDetection{
			MinUpdateIntervalHours:    4,
			MaxDailyUpdates:           3,
			SuspiciousPatternsEnabled: true,
		},
		BonusPoints: BonusPoints{
			CompleteProfile:   5,
			QuickResponder:    5,
			ConsistentUpdater: 5,
		},
		Penalties: Penalties{
			PerMissingDocument: 2,
			PerMissedSLALead:   2,
			MaxTotal:           30,
		},
	}
}

// ScoreBreakdown содержит значения факторов рейтинга до взвешивания.
type ScoreBreakdown struct {
	KYC            float64 `json:"kyc"`
	Documents      float64 `json:"documents"`
	Updates        float64 `json:"updates"`
	ResponseTime   float64 `json:"responseTime"`
	Completion     float64 `json:"completion"`
	Badges         float64 `json:"badges"`
	FinancialProof float64 `json:"financialProof"`
}

// ScoreResult — итог расчёта рейтинга доверия промоутера.
type ScoreResult struct {
	PromoteurID    int64          `json:"promoteurId"`
	TotalScore     int            `json:"totalScore"`
	Breakdown      ScoreBreakdown `json:"breakdown"`
	Bonus          float64        `json:"bonus"`
	Penalty        float64        `json:"penalty"`
	GamingDetected bool           `json:"gamingDetected"`
	GamingReason   string         `json:"gamingReason,omitempty"`
}

// AppealStatus описывает состояние апелляции.
type AppealStatus string

const (
	AppealStatusPending     AppealStatus = "pending"
	AppealStatusUnderReview AppealStatus = "under-review"
	AppealStatusEscalated   AppealStatus = "escalated"
	AppealStatusApproved    AppealStatus = "approved"
	AppealStatusRejected    AppealStatus = "rejected"
)

// AppealOutcome описывает решение по апелляции.
type AppealOutcome string

const (
	OutcomeApproved          AppealOutcome = "approved"
	OutcomePartiallyApproved AppealOutcome = "partially-approved"
	OutcomeRejected          AppealOutcome = "rejected"
)

// OriginalAction описывает оспариваемую санкцию. RestrictionID указывает на
// конкретную запись ограничения; для записей без идентификатора
// сопоставление выполняется по паре (Type, AppliedAt).
type OriginalAction struct {
	RestrictionID int64           `json:"restrictionId,omitempty"`
	Type          RestrictionType `json:"type"`
	AppliedBy     string          `json:"appliedBy"`
	AppliedAt     time.Time       `json:"appliedAt"`
	Reason        string          `json:"reason"`
}

// NewAction описывает смягчённую санкцию при частичном удовлетворении апелляции.
type NewAction struct {
	Type   RestrictionType `json:"type"`
	Reason string          `json:"reason"`
}

// AppealDecision содержит итоговое решение по апелляции.
type AppealDecision struct {
	Outcome     AppealOutcome `json:"outcome"`
	Explanation string        `json:"explanation"`
	DecidedBy   string        `json:"decidedBy"`
	DecidedAt   time.Time     `json:"decidedAt"`
	NewAction   *NewAction    `json:"newAction,omitempty"`
}

// ReviewNote — заметка рецензента по апелляции. Внутренние заметки никогда
// не показываются промоутеру.
type ReviewNote struct {
	ID         int64
	AppealID   int64
	Note       string
	AddedBy    string
	AddedAt    time.Time
	IsInternal bool
}

// Appeal представляет апелляцию промоутера на санкцию. Рассматривается на
// уровне N1, при необходимости эскалируется на N2.
type Appeal struct {
	ID               int64
	Reference        string
	PromoteurID      int64
	ProjectID        *int64
	Type             string
	Reason           string
	Description      string
	OriginalAction   OriginalAction
	Evidence         []string
	MitigationPlan   string
	Status           AppealStatus
	Level            int
	SubmittedAt      time.Time
	Deadline         time.Time
	Escalated        bool
	EscalationReason string
	AssignedTo       string
	ReviewStartedAt  *time.Time
	ResolvedAt       *time.Time
	Decision         *AppealDecision
}

// AppealStats — сводная статистика апелляций за период.
type AppealStats struct {
	Total              int                  `json:"total"`
	ByStatus           map[AppealStatus]int `json:"byStatus"`
	ApprovalRate       float64              `json:"approvalRate"`
	AvgResolutionHours float64              `json:"avgResolutionHours"`
}

// AuditEntry — запись журнала аудита.
type AuditEntry struct {
	Actor       string
	Action      string
	Category    string
	TargetType  string
	TargetID    string
	Description string
	Metadata    map[string]any
}

// SweepResult содержит итоги одного планового прохода по сущностям.
type SweepResult struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Affected  int `json:"affected"`
}
