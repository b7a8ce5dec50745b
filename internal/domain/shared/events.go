package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each event represents something significant that
// happened in the ledger or lifecycle machinery. Delivery (SMS, push,
// CRM feed) is an external concern; the core only publishes.
const (
	// Ledger events
	EventTransactionCreated EventType = "ledger.transaction_created"
	EventTransactionDeleted EventType = "ledger.transaction_deleted"

	// Lifecycle events
	EventAccountArchived    EventType = "lifecycle.account_archived"
	EventAccountUnarchived  EventType = "lifecycle.account_unarchived"
	EventMembershipArchived EventType = "lifecycle.membership_archived"

	// KPI events
	EventKpiApplied EventType = "kpi.applied"

	// System events
	EventBalanceDriftDetected EventType = "system.balance_drift_detected"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
	Version     int       `json:"version"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Ledger Events
// ═══════════════════════════════════════════════════════════════════════════

// TransactionCreatedEvent is emitted after a transaction and its audit entry
// have been committed together with the balance update.
type TransactionCreatedEvent struct {
	BaseEvent
	TransactionID   string `json:"transaction_id"`
	AccountID       string `json:"account_id"`
	Reason          string `json:"reason"`
	EffectiveAmount string `json:"effective_amount"`
	NewBalance      string `json:"new_balance"`
}

// NewTransactionCreatedEvent creates a TransactionCreatedEvent.
func NewTransactionCreatedEvent(transactionID, accountID, reason, effectiveAmount, newBalance string) *TransactionCreatedEvent {
	return &TransactionCreatedEvent{
		BaseEvent:       NewBaseEvent(EventTransactionCreated, accountID),
		TransactionID:   transactionID,
		AccountID:       accountID,
		Reason:          reason,
		EffectiveAmount: effectiveAmount,
		NewBalance:      newBalance,
	}
}

// Payload implements Event interface.
func (e *TransactionCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"transaction_id":   e.TransactionID,
		"account_id":       e.AccountID,
		"reason":           e.Reason,
		"effective_amount": e.EffectiveAmount,
		"new_balance":      e.NewBalance,
	}
}

// TransactionDeletedEvent is emitted after a transaction was reversed and
// removed. The reversal is exact: balance returns to what it would have been
// had the transaction never existed.
type TransactionDeletedEvent struct {
	BaseEvent
	TransactionID string `json:"transaction_id"`
	AccountID     string `json:"account_id"`
	NewBalance    string `json:"new_balance"`
}

// NewTransactionDeletedEvent creates a TransactionDeletedEvent.
func NewTransactionDeletedEvent(transactionID, accountID, newBalance string) *TransactionDeletedEvent {
	return &TransactionDeletedEvent{
		BaseEvent:     NewBaseEvent(EventTransactionDeleted, accountID),
		TransactionID: transactionID,
		AccountID:     accountID,
		NewBalance:    newBalance,
	}
}

// Payload implements Event interface.
func (e *TransactionDeletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"transaction_id": e.TransactionID,
		"account_id":     e.AccountID,
		"new_balance":    e.NewBalance,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Lifecycle Events
// ═══════════════════════════════════════════════════════════════════════════

// AccountArchivedEvent is emitted when an account transitions to ARCHIVED.
type AccountArchivedEvent struct {
	BaseEvent
	AccountID  string `json:"account_id"`
	RecordID   string `json:"record_id"`
	ReasonCode string `json:"reason_code"`
	Cascaded   bool   `json:"cascaded"`
}

// NewAccountArchivedEvent creates an AccountArchivedEvent.
func NewAccountArchivedEvent(accountID, recordID, reasonCode string, cascaded bool) *AccountArchivedEvent {
	return &AccountArchivedEvent{
		BaseEvent:  NewBaseEvent(EventAccountArchived, accountID),
		AccountID:  accountID,
		RecordID:   recordID,
		ReasonCode: reasonCode,
		Cascaded:   cascaded,
	}
}

// Payload implements Event interface.
func (e *AccountArchivedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"account_id":  e.AccountID,
		"record_id":   e.RecordID,
		"reason_code": e.ReasonCode,
		"cascaded":    e.Cascaded,
	}
}

// AccountUnarchivedEvent is emitted when an archived account returns to ACTIVE.
type AccountUnarchivedEvent struct {
	BaseEvent
	AccountID string `json:"account_id"`
	RecordID  string `json:"record_id"`
	ActorID   string `json:"actor_id"`
}

// NewAccountUnarchivedEvent creates an AccountUnarchivedEvent.
func NewAccountUnarchivedEvent(accountID, recordID, actorID string) *AccountUnarchivedEvent {
	return &AccountUnarchivedEvent{
		BaseEvent: NewBaseEvent(EventAccountUnarchived, accountID),
		AccountID: accountID,
		RecordID:  recordID,
		ActorID:   actorID,
	}
}

// Payload implements Event interface.
func (e *AccountUnarchivedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"account_id": e.AccountID,
		"record_id":  e.RecordID,
		"actor_id":   e.ActorID,
	}
}

// MembershipArchivedEvent is emitted when a group membership is archived,
// either directly or by a streak-threshold sweep.
type MembershipArchivedEvent struct {
	BaseEvent
	MembershipID string `json:"membership_id"`
	AccountID    string `json:"account_id"`
	GroupID      string `json:"group_id"`
	Comment      string `json:"comment"`
}

// NewMembershipArchivedEvent creates a MembershipArchivedEvent.
func NewMembershipArchivedEvent(membershipID, accountID, groupID, comment string) *MembershipArchivedEvent {
	return &MembershipArchivedEvent{
		BaseEvent:    NewBaseEvent(EventMembershipArchived, membershipID),
		MembershipID: membershipID,
		AccountID:    accountID,
		GroupID:      groupID,
		Comment:      comment,
	}
}

// Payload implements Event interface.
func (e *MembershipArchivedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"membership_id": e.MembershipID,
		"account_id":    e.AccountID,
		"group_id":      e.GroupID,
		"comment":       e.Comment,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// KPI Events
// ═══════════════════════════════════════════════════════════════════════════

// KpiAppliedEvent is emitted after a KPI batch run completes or is cancelled.
type KpiAppliedEvent struct {
	BaseEvent
	RulesetID string  `json:"ruleset_id"`
	Metric    float64 `json:"metric"`
	Issued    int     `json:"issued"`
	Skipped   int     `json:"skipped"`
}

// NewKpiAppliedEvent creates a KpiAppliedEvent.
func NewKpiAppliedEvent(rulesetID string, metric float64, issued, skipped int) *KpiAppliedEvent {
	return &KpiAppliedEvent{
		BaseEvent: NewBaseEvent(EventKpiApplied, rulesetID),
		RulesetID: rulesetID,
		Metric:    metric,
		Issued:    issued,
		Skipped:   skipped,
	}
}

// Payload implements Event interface.
func (e *KpiAppliedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"ruleset_id": e.RulesetID,
		"metric":     e.Metric,
		"issued":     e.Issued,
		"skipped":    e.Skipped,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// System Events
// ═══════════════════════════════════════════════════════════════════════════

// BalanceDriftDetectedEvent is emitted when a verification sweep finds an
// account whose stored balance disagrees with its ledger sum.
type BalanceDriftDetectedEvent struct {
	BaseEvent
	AccountID     string `json:"account_id"`
	StoredBalance string `json:"stored_balance"`
	LedgerSum     string `json:"ledger_sum"`
}

// NewBalanceDriftDetectedEvent creates a BalanceDriftDetectedEvent.
func NewBalanceDriftDetectedEvent(accountID, storedBalance, ledgerSum string) *BalanceDriftDetectedEvent {
	return &BalanceDriftDetectedEvent{
		BaseEvent:     NewBaseEvent(EventBalanceDriftDetected, accountID),
		AccountID:     accountID,
		StoredBalance: storedBalance,
		LedgerSum:     ledgerSum,
	}
}

// Payload implements Event interface.
func (e *BalanceDriftDetectedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"account_id":     e.AccountID,
		"stored_balance": e.StoredBalance,
		"ledger_sum":     e.LedgerSum,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Publisher / Handler contracts
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler processes a single event.
type EventHandler interface {
	// Handle processes the event.
	Handle(event Event) error

	// Name returns a stable handler name for logging.
	Name() string
}

// EventHandlerFunc adapts a function to the EventHandler interface.
type EventHandlerFunc struct {
	HandlerName string
	Fn          func(event Event) error
}

// Handle implements EventHandler.
func (f EventHandlerFunc) Handle(event Event) error {
	return f.Fn(event)
}

// Name implements EventHandler.
func (f EventHandlerFunc) Name() string {
	return f.HandlerName
}

// EventPublisher publishes domain events to interested subscribers.
type EventPublisher interface {
	// Publish delivers the event to all subscribers. Implementations may
	// deliver asynchronously; publishing never fails the business operation.
	Publish(event Event) error
}

// NopPublisher discards all events. Useful in tests.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
