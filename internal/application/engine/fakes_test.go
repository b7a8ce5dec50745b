package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bilim-hub/bilim-erp-core/internal/domain/account"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/archive"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/attendance"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/group"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/kpi"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/lead"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/ledger"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/shared"
)

// memStore is an in-memory stand-in for the postgres-backed stores. It
// implements LedgerStore, LifecycleStore and the read repositories the
// engines consume, with copy-on-read semantics and snapshot rollback so
// failed transactions leave no trace, like the real thing.
type memStore struct {
	mu          sync.Mutex
	accounts    map[string]*account.Account
	leads       map[string]*lead.Lead
	txs         map[string]*ledger.Transaction
	audits      []*ledger.AuditLogEntry
	records     map[string]*archive.Record
	memberships map[string]*group.Membership
	events      []*attendance.Event
	rulesets    map[string]*kpi.Ruleset
}

func newMemStore() *memStore {
	return &memStore{
		accounts:    make(map[string]*account.Account),
		leads:       make(map[string]*lead.Lead),
		txs:         make(map[string]*ledger.Transaction),
		records:     make(map[string]*archive.Record),
		memberships: make(map[string]*group.Membership),
		rulesets:    make(map[string]*kpi.Ruleset),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Snapshot / rollback
// ─────────────────────────────────────────────────────────────────────────────

type memSnapshot struct {
	accounts    map[string]*account.Account
	leads       map[string]*lead.Lead
	txs         map[string]*ledger.Transaction
	audits      []*ledger.AuditLogEntry
	records     map[string]*archive.Record
	memberships map[string]*group.Membership
}

func (s *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		accounts:    make(map[string]*account.Account, len(s.accounts)),
		leads:       make(map[string]*lead.Lead, len(s.leads)),
		txs:         make(map[string]*ledger.Transaction, len(s.txs)),
		audits:      append([]*ledger.AuditLogEntry(nil), s.audits...),
		records:     make(map[string]*archive.Record, len(s.records)),
		memberships: make(map[string]*group.Membership, len(s.memberships)),
	}
	for k, v := range s.accounts {
		snap.accounts[k] = v.Clone()
	}
	for k, v := range s.leads {
		c := *v
		snap.leads[k] = &c
	}
	for k, v := range s.txs {
		c := *v
		snap.txs[k] = &c
	}
	for k, v := range s.records {
		c := *v
		snap.records[k] = &c
	}
	for k, v := range s.memberships {
		c := *v
		snap.memberships[k] = &c
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.accounts = snap.accounts
	s.leads = snap.leads
	s.txs = snap.txs
	s.audits = snap.audits
	s.records = snap.records
	s.memberships = snap.memberships
}

// WithinTx implements LedgerStore and LifecycleStore (memTx satisfies both
// Tx interfaces, so a single method cannot serve two signatures - hence the
// two thin adapters below).
func (s *memStore) withinTx(fn func(tx *memTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(&memTx{store: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// ledgerStore adapts memStore to LedgerStore.
type ledgerStore struct{ *memStore }

func (s ledgerStore) WithinTx(_ context.Context, fn func(tx LedgerTx) error) error {
	return s.withinTx(func(tx *memTx) error { return fn(tx) })
}

// lifecycleStore adapts memStore to LifecycleStore.
type lifecycleStore struct{ *memStore }

func (s lifecycleStore) WithinTx(_ context.Context, fn func(tx LifecycleTx) error) error {
	return s.withinTx(func(tx *memTx) error { return fn(tx) })
}

// ─────────────────────────────────────────────────────────────────────────────
// memTx: LedgerTx + LifecycleTx
// ─────────────────────────────────────────────────────────────────────────────

type memTx struct {
	store *memStore
}

func (t *memTx) GetAccountForUpdate(_ context.Context, accountID string) (*account.Account, error) {
	acc, ok := t.store.accounts[accountID]
	if !ok {
		return nil, shared.ErrAccountNotFound
	}
	return acc, nil
}

func (t *memTx) UpdateBalance(_ context.Context, accountID string, balance decimal.Decimal) error {
	acc, ok := t.store.accounts[accountID]
	if !ok {
		return shared.ErrAccountNotFound
	}
	acc.Balance = balance
	return nil
}

func (t *memTx) InsertTransaction(_ context.Context, tr *ledger.Transaction) error {
	t.store.txs[tr.ID] = tr
	return nil
}

func (t *memTx) GetTransaction(_ context.Context, id string) (*ledger.Transaction, error) {
	tr, ok := t.store.txs[id]
	if !ok {
		return nil, shared.ErrTransactionNotFound
	}
	return tr, nil
}

func (t *memTx) DeleteTransaction(_ context.Context, id string) error {
	if _, ok := t.store.txs[id]; !ok {
		return shared.ErrTransactionNotFound
	}
	delete(t.store.txs, id)
	return nil
}

func (t *memTx) InsertAuditEntry(_ context.Context, e *ledger.AuditLogEntry) error {
	t.store.audits = append(t.store.audits, e)
	return nil
}

func (t *memTx) UpdateAccount(_ context.Context, acc *account.Account) error {
	t.store.accounts[acc.ID] = acc
	return nil
}

func (t *memTx) GetLeadForUpdate(_ context.Context, leadID string) (*lead.Lead, error) {
	l, ok := t.store.leads[leadID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return l, nil
}

func (t *memTx) UpdateLead(_ context.Context, l *lead.Lead) error {
	t.store.leads[l.ID] = l
	return nil
}

func (t *memTx) InsertArchiveRecord(_ context.Context, r *archive.Record) error {
	t.store.records[r.ID] = r
	return nil
}

func (t *memTx) GetArchiveRecord(_ context.Context, id string) (*archive.Record, error) {
	r, ok := t.store.records[id]
	if !ok {
		return nil, shared.ErrArchiveRecordNotFound
	}
	return r, nil
}

func (t *memTx) UpdateArchiveRecord(_ context.Context, r *archive.Record) error {
	t.store.records[r.ID] = r
	return nil
}

func (t *memTx) GetMembership(_ context.Context, id string) (*group.Membership, error) {
	m, ok := t.store.memberships[id]
	if !ok {
		return nil, shared.ErrMembershipNotFound
	}
	return m, nil
}

func (t *memTx) UpdateMembership(_ context.Context, m *group.Membership) error {
	t.store.memberships[m.ID] = m
	return nil
}

func (t *memTx) GetActiveMemberships(_ context.Context, accountID string) ([]*group.Membership, error) {
	return t.store.membershipsWhere(func(m *group.Membership) bool {
		return m.AccountID == accountID && !m.Archived
	}), nil
}

func (t *memTx) GetCascadedMemberships(_ context.Context, accountID string) ([]*group.Membership, error) {
	return t.store.membershipsWhere(func(m *group.Membership) bool {
		return m.AccountID == accountID && m.Archived && m.Cascaded
	}), nil
}

func (t *memTx) CountActiveMemberships(_ context.Context, accountID string) (int, error) {
	return len(t.store.membershipsWhere(func(m *group.Membership) bool {
		return m.AccountID == accountID && !m.Archived
	})), nil
}

func (s *memStore) membershipsWhere(pred func(*group.Membership) bool) []*group.Membership {
	var out []*group.Membership
	for _, m := range s.memberships {
		if pred(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Read repositories
// ─────────────────────────────────────────────────────────────────────────────

// memAccounts adapts memStore to account.Repository.
type memAccounts struct{ *memStore }

func (r memAccounts) Create(_ context.Context, acc *account.Account) error {
	r.accounts[acc.ID] = acc
	return nil
}

func (r memAccounts) GetByID(_ context.Context, id string) (*account.Account, error) {
	acc, ok := r.accounts[id]
	if !ok {
		return nil, shared.ErrAccountNotFound
	}
	return acc.Clone(), nil
}

func (r memAccounts) Update(_ context.Context, acc *account.Account) error {
	r.accounts[acc.ID] = acc
	return nil
}

func (r memAccounts) GetByKind(_ context.Context, kind account.Kind) ([]*account.Account, error) {
	return r.accountsWhere(func(a *account.Account) bool { return a.Kind == kind }), nil
}

func (r memAccounts) GetActiveByKind(_ context.Context, kind account.Kind) ([]*account.Account, error) {
	return r.accountsWhere(func(a *account.Account) bool { return a.Kind == kind && !a.Archived }), nil
}

func (r memAccounts) CountNonNegativeByKind(_ context.Context, kind account.Kind) (int, error) {
	return len(r.accountsWhere(func(a *account.Account) bool {
		return a.Kind == kind && !a.Archived && !a.Balance.IsNegative()
	})), nil
}

func (r memAccounts) FindFrozenExpired(_ context.Context, asOf time.Time) ([]*account.Account, error) {
	return r.accountsWhere(func(a *account.Account) bool {
		return a.FrozenUntil != nil && !a.IsFrozen(asOf)
	}), nil
}

func (r memAccounts) accountsWhere(pred func(*account.Account) bool) []*account.Account {
	var out []*account.Account
	for _, a := range r.accounts {
		if pred(a) {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// memMemberships adapts memStore to group.Repository.
type memMemberships struct{ *memStore }

func (r memMemberships) Create(_ context.Context, m *group.Membership) error {
	r.memberships[m.ID] = m
	return nil
}

func (r memMemberships) GetByID(_ context.Context, id string) (*group.Membership, error) {
	m, ok := r.memberships[id]
	if !ok {
		return nil, shared.ErrMembershipNotFound
	}
	return m, nil
}

func (r memMemberships) Update(_ context.Context, m *group.Membership) error {
	r.memberships[m.ID] = m
	return nil
}

func (r memMemberships) GetAllActive(_ context.Context) ([]*group.Membership, error) {
	return r.membershipsWhere(func(m *group.Membership) bool { return !m.Archived }), nil
}

func (r memMemberships) GetActiveByAccount(_ context.Context, accountID string) ([]*group.Membership, error) {
	return r.membershipsWhere(func(m *group.Membership) bool {
		return m.AccountID == accountID && !m.Archived
	}), nil
}

func (r memMemberships) CountActiveByAccount(_ context.Context, accountID string) (int, error) {
	return len(r.membershipsWhere(func(m *group.Membership) bool {
		return m.AccountID == accountID && !m.Archived
	})), nil
}

func (r memMemberships) GetCascadedByAccount(_ context.Context, accountID string) ([]*group.Membership, error) {
	return r.membershipsWhere(func(m *group.Membership) bool {
		return m.AccountID == accountID && m.Archived && m.Cascaded
	}), nil
}

// memAttendance adapts memStore to attendance.Repository.
type memAttendance struct{ *memStore }

func (r memAttendance) Create(_ context.Context, e *attendance.Event) error {
	r.events = append(r.events, e)
	return nil
}

func (r memAttendance) GetByMembership(_ context.Context, membershipID string) ([]*attendance.Event, error) {
	var out []*attendance.Event
	for _, e := range r.events {
		if e.MembershipID == membershipID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r memAttendance) CurrentStreak(ctx context.Context, membershipID string) (int, error) {
	events, err := r.GetByMembership(ctx, membershipID)
	if err != nil {
		return 0, err
	}
	return attendance.CurrentStreak(events), nil
}

// memTxRepo adapts memStore to ledger.TransactionRepository.
type memTxRepo struct{ *memStore }

func (r memTxRepo) GetByID(_ context.Context, id string) (*ledger.Transaction, error) {
	tr, ok := r.txs[id]
	if !ok {
		return nil, shared.ErrTransactionNotFound
	}
	return tr, nil
}

func (r memTxRepo) GetByAccount(_ context.Context, accountID string, _, _ int) ([]*ledger.Transaction, error) {
	var out []*ledger.Transaction
	for _, tr := range r.txs {
		if tr.AccountID == accountID {
			out = append(out, tr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r memTxRepo) SumEffectiveByAccount(_ context.Context, accountID string) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, tr := range r.txs {
		if tr.AccountID == accountID {
			sum = sum.Add(tr.EffectiveAmount)
		}
	}
	return sum, nil
}

// memRules adapts memStore to kpi.Repository.
type memRules struct{ *memStore }

func (r memRules) GetRuleset(_ context.Context, id string) (*kpi.Ruleset, error) {
	rs, ok := r.rulesets[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return rs, nil
}

// recordingPublisher collects published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) byType(t shared.EventType) []shared.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []shared.Event
	for _, e := range p.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}
