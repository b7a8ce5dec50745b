package group

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMembership(t *testing.T) *Membership {
	t.Helper()
	m, err := NewMembership(uuid.NewString(), "acc-1", "grp-1", decimal.NewFromInt(450000))
	require.NoError(t, err)
	return m
}

func TestNewMembership(t *testing.T) {
	m := newTestMembership(t)

	assert.False(t, m.Archived)
	assert.False(t, m.Cascaded)
	assert.True(t, m.Price.Equal(decimal.NewFromInt(450000)))
}

func TestNewMembership_Validation(t *testing.T) {
	_, err := NewMembership("", "acc-1", "grp-1", decimal.NewFromInt(1))
	assert.Error(t, err)

	_, err = NewMembership(uuid.NewString(), "", "grp-1", decimal.NewFromInt(1))
	assert.Error(t, err)

	_, err = NewMembership(uuid.NewString(), "acc-1", "", decimal.NewFromInt(1))
	assert.Error(t, err)

	_, err = NewMembership(uuid.NewString(), "acc-1", "grp-1", decimal.NewFromInt(-1))
	assert.Error(t, err)
}

func TestMembership_ArchiveDirect(t *testing.T) {
	m := newTestMembership(t)
	at := time.Now().UTC()

	require.NoError(t, m.Archive("dropped out", false, at))
	assert.True(t, m.Archived)
	assert.False(t, m.Cascaded)
	assert.Equal(t, "dropped out", m.ArchiveComment)
	assert.Equal(t, at, m.ArchivedAt)

	assert.ErrorIs(t, m.Archive("again", false, at), ErrMembershipArchived)
}

func TestMembership_ArchiveCascaded(t *testing.T) {
	m := newTestMembership(t)

	require.NoError(t, m.Archive("account archived", true, time.Now().UTC()))
	assert.True(t, m.Cascaded)
}

func TestMembership_Unarchive(t *testing.T) {
	m := newTestMembership(t)

	assert.ErrorIs(t, m.Unarchive(), ErrMembershipNotArchived)

	require.NoError(t, m.Archive("vacation", true, time.Now().UTC()))
	require.NoError(t, m.Unarchive())

	assert.False(t, m.Archived)
	assert.False(t, m.Cascaded)
	assert.Empty(t, m.ArchiveComment)
	assert.True(t, m.ArchivedAt.IsZero())
}

func TestMembership_SyncPrice(t *testing.T) {
	m := newTestMembership(t)

	m.SyncPrice(decimal.NewFromInt(500000))
	assert.True(t, m.Price.Equal(decimal.NewFromInt(500000)))
}
