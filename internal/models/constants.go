package models

// ProposalStatus константы статусов предложений
const (
	ProposalStatusDraft    = "draft"
	ProposalStatusSent     = "sent"
	ProposalStatusViewed   = "viewed"
	ProposalStatusSigned   = "signed"
	ProposalStatusPaid     = "paid"
	ProposalStatusDeclined = "declined"
	ProposalStatusArchived = "archived"
)

// ValidProposalStatuses список валидных статусов предложений
var ValidProposalStatuses = map[string]struct{}{
	ProposalStatusDraft:    {},
	ProposalStatusSent:     {},
	ProposalStatusViewed:   {},
	ProposalStatusSigned:   {},
	ProposalStatusPaid:     {},
	ProposalStatusDeclined: {},
	ProposalStatusArchived: {},
}

// OwnerSettableStatuses статусы, которые владелец может выставить вручную.
var OwnerSettableStatuses = map[string]struct{}{
	ProposalStatusDraft:    {},
	ProposalStatusDeclined: {},
	ProposalStatusArchived: {},
}

// Типы подписи
const (
	SignatureTypeDrawn = "drawn"
	SignatureTypeTyped = "typed"
)

// Типы событий аналитики
const (
	AnalyticsEventView        = "view"
	AnalyticsEventDownload    = "download"
	AnalyticsEventSign        = "sign"
	AnalyticsEventPayment     = "payment"
	AnalyticsEventSectionView = "section_view"
	AnalyticsEventTimeSpent   = "time_spent"
)

// PublicAnalyticsEvents события, которые может прислать клиент по ссылке.
var PublicAnalyticsEvents = map[string]struct{}{
	AnalyticsEventSectionView: {},
	AnalyticsEventTimeSpent:   {},
}

// События исходящих вебхуков
const (
	WebhookEventProposalSent     = "proposal.sent"
	WebhookEventProposalViewed   = "proposal.viewed"
	WebhookEventProposalSigned   = "proposal.signed"
	WebhookEventPaymentCompleted = "payment.completed"
	WebhookEventTest             = "webhook.test"
)

// ValidWebhookEvents события, на которые можно подписаться.
var ValidWebhookEvents = map[string]struct{}{
	WebhookEventProposalSent:     {},
	WebhookEventProposalViewed:   {},
	WebhookEventProposalSigned:   {},
	WebhookEventPaymentCompleted: {},
}

// Платёжные провайдеры
const (
	PaymentProviderStripe = "stripe"
	PaymentProviderPayPal = "paypal"
)

// ValidPaymentProviders список поддерживаемых провайдеров.
var ValidPaymentProviders = map[string]struct{}{
	PaymentProviderStripe: {},
	PaymentProviderPayPal: {},
}

// Статусы платёжных ссылок
const (
	PaymentLinkStatusPending   = "pending"
	PaymentLinkStatusPaid      = "paid"
	PaymentLinkStatusCancelled = "cancelled"
	PaymentLinkStatusExpired   = "expired"
)

// Статусы подписок
const (
	SubscriptionStatusActive    = "active"
	SubscriptionStatusTrialing  = "trialing"
	SubscriptionStatusPastDue   = "past_due"
	SubscriptionStatusCancelled = "cancelled"
	SubscriptionStatusSuspended = "suspended"
	SubscriptionStatusExpired   = "expired"
	SubscriptionStatusPending   = "pending"
)

// Тарифы
const (
	PlanFree = "free"
	PlanPro  = "pro"
)

// Роли пользователей
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// События WebSocket для владельца предложения
const (
	WSEventProposalViewed   = "proposal.viewed"
	WSEventProposalSigned   = "proposal.signed"
	WSEventSignerSigned     = "proposal.signer_signed"
	WSEventPaymentCompleted = "payment.completed"
	WSEventSubscription     = "subscription.updated"
)
