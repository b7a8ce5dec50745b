package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilim-hub/bilim-erp-core/internal/domain/account"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/archive"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/group"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/lead"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/shared"
)

func newLifecycleFixture(t *testing.T) (*LifecycleManager, *memStore, *recordingPublisher) {
	t.Helper()
	store := newMemStore()
	pub := &recordingPublisher{}
	mgr := NewLifecycleManager(lifecycleStore{store}, pub, testLogger())
	return mgr, store, pub
}

func newTestMembership(t *testing.T, store *memStore, accountID string) *group.Membership {
	t.Helper()
	m, err := group.NewMembership(uuid.NewString(), accountID, uuid.NewString(), decimal.NewFromInt(450000))
	require.NoError(t, err)
	store.memberships[m.ID] = m
	return m
}

func TestLifecycleManager_ArchiveAccount_CascadesMemberships(t *testing.T) {
	mgr, store, pub := newLifecycleFixture(t)
	acc := newTestAccount(t, store, account.KindStudent, account.StageActive)
	m1 := newTestMembership(t, store, acc.ID)
	m2 := newTestMembership(t, store, acc.ID)

	// A membership of another account must stay untouched.
	other := newTestAccount(t, store, account.KindStudent, account.StageActive)
	m3 := newTestMembership(t, store, other.ID)

	res, err := mgr.ArchiveAccount(context.Background(), ArchiveAccountInput{
		AccountID:  acc.ID,
		ReasonCode: archive.ReasonActiveStudent,
		ReasonText: "moved away",
		ActorID:    "emp-5",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.CascadedMemberships)

	assert.True(t, store.accounts[acc.ID].Archived)
	assert.True(t, store.memberships[m1.ID].Archived)
	assert.True(t, store.memberships[m1.ID].Cascaded)
	assert.True(t, store.memberships[m2.ID].Archived)
	assert.False(t, store.memberships[m3.ID].Archived)

	record := store.records[res.RecordID]
	require.NotNil(t, record)
	require.NotNil(t, record.StudentID)
	assert.Equal(t, acc.ID, *record.StudentID)
	assert.Nil(t, record.LeadID)
	assert.Equal(t, "emp-5", record.CreatedBy)

	assert.Len(t, pub.byType(shared.EventAccountArchived), 1)
}

func TestLifecycleManager_ArchiveAccount_AlreadyArchived(t *testing.T) {
	mgr, store, _ := newLifecycleFixture(t)
	acc := newTestAccount(t, store, account.KindStudent, account.StageActive)

	_, err := mgr.ArchiveAccount(context.Background(), ArchiveAccountInput{
		AccountID:  acc.ID,
		ReasonCode: archive.ReasonActiveStudent,
	})
	require.NoError(t, err)

	_, err = mgr.ArchiveAccount(context.Background(), ArchiveAccountInput{
		AccountID:  acc.ID,
		ReasonCode: archive.ReasonActiveStudent,
	})
	assert.ErrorIs(t, err, shared.ErrAlreadyArchived)

	// Only the first archival produced a record.
	assert.Len(t, store.records, 1)
}

func TestLifecycleManager_ArchiveAccount_PreArchiveHookFailureAborts(t *testing.T) {
	mgr, store, _ := newLifecycleFixture(t)
	acc := newTestAccount(t, store, account.KindStudent, account.StageNew)
	m := newTestMembership(t, store, acc.ID)

	hookErr := errors.New("first lesson charge failed")
	_, err := mgr.ArchiveAccount(context.Background(), ArchiveAccountInput{
		AccountID:  acc.ID,
		ReasonCode: archive.ReasonNewStudent,
		PreArchive: func(ctx context.Context) error { return hookErr },
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, hookErr)

	// The failed hook rolled everything back.
	assert.False(t, store.accounts[acc.ID].Archived)
	assert.False(t, store.memberships[m.ID].Archived)
	assert.Empty(t, store.records)
}

func TestLifecycleManager_ArchiveLead(t *testing.T) {
	mgr, store, _ := newLifecycleFixture(t)

	l, err := lead.NewLead(lead.NewLeadParams{ID: uuid.NewString(), FullName: "Aziz Karimov", Phone: "+998901234567"})
	require.NoError(t, err)
	store.leads[l.ID] = l

	recordID, err := mgr.ArchiveLead(context.Background(), ArchiveLeadInput{
		LeadID:     l.ID,
		ReasonCode: archive.ReasonNewLead,
		ReasonText: "unreachable",
		ActorID:    "emp-2",
	})
	require.NoError(t, err)

	assert.True(t, store.leads[l.ID].Archived)
	record := store.records[recordID]
	require.NotNil(t, record)
	require.NotNil(t, record.LeadID)
	assert.Equal(t, l.ID, *record.LeadID)
	assert.Nil(t, record.StudentID)

	_, err = mgr.ArchiveLead(context.Background(), ArchiveLeadInput{
		LeadID:     l.ID,
		ReasonCode: archive.ReasonNewLead,
	})
	assert.ErrorIs(t, err, shared.ErrAlreadyArchived)
}

func TestLifecycleManager_ArchiveMembership_ReportsRemaining(t *testing.T) {
	mgr, store, pub := newLifecycleFixture(t)
	acc := newTestAccount(t, store, account.KindStudent, account.StageActive)
	m1 := newTestMembership(t, store, acc.ID)
	m2 := newTestMembership(t, store, acc.ID)

	remaining, err := mgr.ArchiveMembership(context.Background(), m1.ID, "left the group")
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)
	assert.True(t, store.memberships[m1.ID].Archived)
	assert.False(t, store.memberships[m1.ID].Cascaded)

	remaining, err = mgr.ArchiveMembership(context.Background(), m2.ID, "left the group")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	assert.Len(t, pub.byType(shared.EventMembershipArchived), 2)
}

func TestLifecycleManager_Unarchive_RestoresCascadedMembershipsOnly(t *testing.T) {
	mgr, store, pub := newLifecycleFixture(t)
	acc := newTestAccount(t, store, account.KindStudent, account.StageActive)
	direct := newTestMembership(t, store, acc.ID)
	cascadedA := newTestMembership(t, store, acc.ID)
	cascadedB := newTestMembership(t, store, acc.ID)

	// One membership archived directly, before the account goes.
	_, err := mgr.ArchiveMembership(context.Background(), direct.ID, "dropped the course")
	require.NoError(t, err)

	res, err := mgr.ArchiveAccount(context.Background(), ArchiveAccountInput{
		AccountID:  acc.ID,
		ReasonCode: archive.ReasonActiveStudent,
		ReasonText: "long vacation",
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.CascadedMemberships)

	err = mgr.Unarchive(context.Background(), res.RecordID, "emp-7")
	require.NoError(t, err)

	assert.False(t, store.accounts[acc.ID].Archived)
	assert.False(t, store.memberships[cascadedA.ID].Archived)
	assert.False(t, store.memberships[cascadedB.ID].Archived)

	// The direct archival is not reverted by the account's unarchival.
	assert.True(t, store.memberships[direct.ID].Archived)

	record := store.records[res.RecordID]
	require.NotNil(t, record.UnarchivedAt)
	assert.Equal(t, "emp-7", record.UnarchivedBy)

	assert.Len(t, pub.byType(shared.EventAccountUnarchived), 1)
}

func TestLifecycleManager_Unarchive_Twice(t *testing.T) {
	mgr, store, _ := newLifecycleFixture(t)
	acc := newTestAccount(t, store, account.KindStudent, account.StageActive)

	res, err := mgr.ArchiveAccount(context.Background(), ArchiveAccountInput{
		AccountID:  acc.ID,
		ReasonCode: archive.ReasonActiveStudent,
	})
	require.NoError(t, err)

	require.NoError(t, mgr.Unarchive(context.Background(), res.RecordID, "emp-1"))

	err = mgr.Unarchive(context.Background(), res.RecordID, "emp-1")
	assert.ErrorIs(t, err, shared.ErrNotArchived)
}

func TestLifecycleManager_Unarchive_ThenArchiveAgain(t *testing.T) {
	mgr, store, _ := newLifecycleFixture(t)
	acc := newTestAccount(t, store, account.KindStudent, account.StageActive)

	first, err := mgr.ArchiveAccount(context.Background(), ArchiveAccountInput{
		AccountID:  acc.ID,
		ReasonCode: archive.ReasonActiveStudent,
	})
	require.NoError(t, err)
	require.NoError(t, mgr.Unarchive(context.Background(), first.RecordID, "emp-1"))

	// No terminal state: the account can be archived again, producing a
	// fresh record.
	second, err := mgr.ArchiveAccount(context.Background(), ArchiveAccountInput{
		AccountID:  acc.ID,
		ReasonCode: archive.ReasonActiveStudent,
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.RecordID, second.RecordID)
	assert.Len(t, store.records, 2)
}

func TestLifecycleManager_Unarchive_Lead(t *testing.T) {
	mgr, store, _ := newLifecycleFixture(t)

	l, err := lead.NewLead(lead.NewLeadParams{ID: uuid.NewString(), FullName: "Нилуфар Рахимова"})
	require.NoError(t, err)
	store.leads[l.ID] = l

	recordID, err := mgr.ArchiveLead(context.Background(), ArchiveLeadInput{
		LeadID:     l.ID,
		ReasonCode: archive.ReasonNewLead,
	})
	require.NoError(t, err)

	require.NoError(t, mgr.Unarchive(context.Background(), recordID, "emp-3"))
	assert.False(t, store.leads[l.ID].Archived)
}

func TestLifecycleManager_ArchiveAccount_RecordNotFoundOnUnknownID(t *testing.T) {
	mgr, _, _ := newLifecycleFixture(t)

	err := mgr.Unarchive(context.Background(), uuid.NewString(), "emp-1")
	assert.ErrorIs(t, err, shared.ErrArchiveRecordNotFound)
}

func TestLifecycleManager_ArchiveAccount_StampsTimes(t *testing.T) {
	mgr, store, _ := newLifecycleFixture(t)
	acc := newTestAccount(t, store, account.KindStudent, account.StageNew)

	before := time.Now().UTC().Add(-time.Second)
	res, err := mgr.ArchiveAccount(context.Background(), ArchiveAccountInput{
		AccountID:  acc.ID,
		ReasonCode: archive.ReasonNewStudent,
	})
	require.NoError(t, err)

	assert.False(t, store.accounts[acc.ID].ArchivedAt.Before(before))
	assert.False(t, store.records[res.RecordID].CreatedAt.Before(before))
}
