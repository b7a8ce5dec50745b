package lead

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLead(t *testing.T) {
	l, err := NewLead(NewLeadParams{
		ID:       uuid.NewString(),
		FullName: "  Jasur Tashkentov  ",
		Phone:    "+998901112233",
		Source:   "instagram",
	})
	require.NoError(t, err)

	assert.Equal(t, "Jasur Tashkentov", l.FullName)
	assert.False(t, l.Archived)
	assert.False(t, l.IsConverted())
}

func TestNewLead_RequiresName(t *testing.T) {
	_, err := NewLead(NewLeadParams{ID: uuid.NewString(), FullName: "   "})
	assert.ErrorIs(t, err, ErrEmptyFullName)
}

func TestLead_ArchiveCycle(t *testing.T) {
	l, err := NewLead(NewLeadParams{ID: uuid.NewString(), FullName: "Test"})
	require.NoError(t, err)

	at := time.Now().UTC()
	require.NoError(t, l.Archive(at))
	assert.True(t, l.Archived)
	assert.ErrorIs(t, l.Archive(at), ErrAlreadyArchived)

	require.NoError(t, l.Unarchive())
	assert.False(t, l.Archived)
	assert.Nil(t, l.ArchivedAt)
	assert.ErrorIs(t, l.Unarchive(), ErrNotArchived)
}

func TestLead_MarkConverted(t *testing.T) {
	l, err := NewLead(NewLeadParams{ID: uuid.NewString(), FullName: "Test"})
	require.NoError(t, err)

	at := time.Now().UTC()
	require.NoError(t, l.MarkConverted(at))
	assert.True(t, l.IsConverted())
	assert.ErrorIs(t, l.MarkConverted(at), ErrAlreadyConverted)
}
