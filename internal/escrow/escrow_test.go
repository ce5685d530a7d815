package escrow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEscrow(t *testing.T) *Escrow {
	t.Helper()
	e := New(NewMemoryStore())
	require.NoError(t, e.Generate())
	return e
}

func authedHandle(t *testing.T, e *Escrow) *UnlockChallenge {
	t.Helper()
	handle, err := e.IssueChallenge()
	require.NoError(t, err)
	require.NoError(t, handle.Authenticate())
	return handle
}

func TestGenerateAndState(t *testing.T) {
	e := New(NewMemoryStore())
	assert.False(t, e.HasKey())
	assert.Equal(t, StateNoKey, e.State())

	require.NoError(t, e.Generate())
	assert.True(t, e.HasKey())
	assert.Equal(t, StateKeyReady, e.State())
}

func TestWrapUnwrapRoundTrip(t *testing.T) {
	e := newTestEscrow(t)
	handle := authedHandle(t, e)
	defer handle.Close()

	rec, err := e.Wrap([]byte("P@ss1"), handle)
	require.NoError(t, err)
	assert.NotContains(t, string(rec.WrappedSecret), "P@ss1")

	secret, err := e.Unwrap(rec, handle)
	require.NoError(t, err)
	assert.Equal(t, []byte("P@ss1"), secret)
}

func TestWrapRequiresAuthentication(t *testing.T) {
	e := newTestEscrow(t)

	// Bare handle, Authenticate never called
	handle, err := e.IssueChallenge()
	require.NoError(t, err)
	_, err = e.Wrap([]byte("secret"), handle)
	assert.ErrorIs(t, err, ErrAuthRequired)

	// Nil handle
	_, err = e.Wrap([]byte("secret"), nil)
	assert.ErrorIs(t, err, ErrAuthRequired)
}

func TestUnwrapRequiresFreshAuthentication(t *testing.T) {
	e := newTestEscrow(t)
	handle := authedHandle(t, e)
	rec, err := e.Wrap([]byte("secret"), handle)
	require.NoError(t, err)

	// A second, never-authenticated handle may not unwrap
	stale, err := e.IssueChallenge()
	require.NoError(t, err)
	_, err = e.Unwrap(rec, stale)
	assert.ErrorIs(t, err, ErrAuthRequired)

	// With a fresh authenticated handle unwrap succeeds deterministically
	for i := 0; i < 3; i++ {
		h := authedHandle(t, e)
		secret, err := e.Unwrap(rec, h)
		require.NoError(t, err)
		assert.Equal(t, []byte("secret"), secret)
		h.Close()
	}
}

func TestAuthValidityWindowExpires(t *testing.T) {
	e := newTestEscrow(t)
	now := time.Now()
	e.now = func() time.Time { return now }

	handle := authedHandle(t, e)
	rec, err := e.Wrap([]byte("secret"), handle)
	require.NoError(t, err)

	// Within the window
	now = now.Add(AuthValidityWindow)
	_, err = e.Unwrap(rec, handle)
	require.NoError(t, err)

	// Past the window the handle is invalidated for good
	now = now.Add(AuthValidityWindow + time.Millisecond)
	_, err = e.Unwrap(rec, handle)
	assert.ErrorIs(t, err, ErrAuthExpired)

	// Even rewinding the clock cannot revive it
	now = now.Add(-2 * AuthValidityWindow)
	_, err = e.Unwrap(rec, handle)
	assert.ErrorIs(t, err, ErrAuthRequired)
}

func TestClosedHandleUnusable(t *testing.T) {
	e := newTestEscrow(t)
	handle := authedHandle(t, e)
	handle.Close()

	_, err := e.Wrap([]byte("secret"), handle)
	assert.ErrorIs(t, err, ErrAuthRequired)
}

func TestHandleBoundToEscrowInstance(t *testing.T) {
	e1 := newTestEscrow(t)
	e2 := newTestEscrow(t)

	handle := authedHandle(t, e1)
	_, err := e2.Wrap([]byte("secret"), handle)
	assert.ErrorIs(t, err, ErrAuthRequired)
}

func TestUnwrapTamperedRecord(t *testing.T) {
	e := newTestEscrow(t)
	handle := authedHandle(t, e)
	rec, err := e.Wrap([]byte("secret"), handle)
	require.NoError(t, err)

	rec.WrappedSecret[0] ^= 0x01
	_, err = e.Unwrap(rec, authedHandle(t, e))
	assert.ErrorIs(t, err, ErrUnwrapFailed)

	_, err = e.Unwrap(nil, authedHandle(t, e))
	assert.ErrorIs(t, err, ErrUnwrapFailed)
}

func TestGenerateReplacesKey(t *testing.T) {
	e := newTestEscrow(t)
	handle := authedHandle(t, e)
	rec, err := e.Wrap([]byte("secret"), handle)
	require.NoError(t, err)

	// Regenerating makes prior records permanently unreadable
	require.NoError(t, e.Generate())
	_, err = e.Unwrap(rec, authedHandle(t, e))
	assert.ErrorIs(t, err, ErrUnwrapFailed)
}

func TestDeleteIdempotent(t *testing.T) {
	e := newTestEscrow(t)
	require.NoError(t, e.Delete())
	assert.False(t, e.HasKey())
	require.NoError(t, e.Delete())

	_, err := e.IssueChallenge()
	assert.ErrorIs(t, err, ErrNoKey)
}

func TestLegacyAliasUntouched(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Set(legacyKeyAlias, []byte("old-key-material")))

	e := New(store)
	assert.False(t, e.HasKey(), "legacy key must not count as enrollment")

	require.NoError(t, e.Generate())
	require.NoError(t, e.Delete())

	// The stale alias survives enrollment and teardown
	legacy, err := store.Get(legacyKeyAlias)
	require.NoError(t, err)
	assert.Equal(t, []byte("old-key-material"), legacy)
}

func TestRecordEncodeDecode(t *testing.T) {
	e := newTestEscrow(t)
	handle := authedHandle(t, e)
	rec, err := e.Wrap([]byte("P@ss1"), handle)
	require.NoError(t, err)

	decoded, err := DecodeRecord(EncodeRecord(rec))
	require.NoError(t, err)
	assert.Equal(t, rec.WrappedSecret, decoded.WrappedSecret)
	assert.Equal(t, rec.IV, decoded.IV)

	secret, err := e.Unwrap(decoded, authedHandle(t, e))
	require.NoError(t, err)
	assert.Equal(t, []byte("P@ss1"), secret)

	_, err = DecodeRecord("no-separator")
	assert.ErrorIs(t, err, ErrUnwrapFailed)
	_, err = DecodeRecord("!!!:???")
	assert.ErrorIs(t, err, ErrUnwrapFailed)
}
