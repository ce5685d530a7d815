package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenSeedsDefaults(t *testing.T) {
	s := newTestStore(t)

	groups, err := s.AliasGroups()
	require.NoError(t, err)
	assert.Len(t, groups, 3)
	assert.Contains(t, groups, []string{"google", "youtube", "gmail"})
	assert.Contains(t, groups, []string{"microsoft", "outlook", "hotmail"})
	assert.Contains(t, groups, []string{"facebook", "instagram", "whatsapp"})

	domains, err := s.PackageDomains()
	require.NoError(t, err)
	assert.Equal(t, "instagram.com", domains["instagram"])
	assert.Equal(t, "github.com", domains["github"])
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SetEscrowRecord("abc:def"))
	require.NoError(t, s.SetPackageDomain("myapp", "myapp.example.com"))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	record, err := s.EscrowRecord()
	require.NoError(t, err)
	assert.Equal(t, "abc:def", record)

	domains, err := s.PackageDomains()
	require.NoError(t, err)
	assert.Equal(t, "myapp.example.com", domains["myapp"])

	// Reopening must not re-seed over custom data
	groups, err := s.AliasGroups()
	require.NoError(t, err)
	assert.Len(t, groups, 3)
}

func TestEscrowRecordLifecycle(t *testing.T) {
	s := newTestStore(t)

	record, err := s.EscrowRecord()
	require.NoError(t, err)
	assert.Empty(t, record)

	require.NoError(t, s.SetEscrowRecord("wrapped:iv"))
	record, err = s.EscrowRecord()
	require.NoError(t, err)
	assert.Equal(t, "wrapped:iv", record)

	require.NoError(t, s.DeleteEscrowRecord())
	record, err = s.EscrowRecord()
	require.NoError(t, err)
	assert.Empty(t, record)

	// Idempotent delete
	require.NoError(t, s.DeleteEscrowRecord())
}

func TestModifiedTimestamp(t *testing.T) {
	s := newTestStore(t)

	before, err := s.Modified()
	require.NoError(t, err)
	assert.False(t, before.IsZero())

	require.NoError(t, s.SetEscrowRecord("x:y"))
	after, err := s.Modified()
	require.NoError(t, err)
	assert.False(t, after.Before(before))
}
