package autofill

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credvault/credvault/internal/escrow"
	"github.com/credvault/credvault/internal/match"
	"github.com/credvault/credvault/internal/vault"
)

type recordStub struct{ record string }

func (r *recordStub) EscrowRecord() (string, error) { return r.record, nil }

var testAliasGroups = [][]string{{"google", "youtube", "gmail"}}

var testPackageDomains = map[string]string{"github": "github.com"}

// fixture builds a vault with one github.com entry, an enrolled escrow
// wrapping the master password, and a coordinator over both.
func fixture(t *testing.T) (*Coordinator, *vault.Store, *escrow.Escrow) {
	t.Helper()

	store := vault.Open(filepath.Join(t.TempDir(), "vault.json"))
	password := []byte("P@ss1")
	require.NoError(t, store.Setup(password))
	_, err := store.Unlock(password)
	require.NoError(t, err)
	_, err = store.AddEntry(vault.Entry{Service: "github.com", Username: "alice", Secret: "s3cret"})
	require.NoError(t, err)

	esc := escrow.New(escrow.NewMemoryStore())
	require.NoError(t, esc.Generate())
	handle, err := esc.IssueChallenge()
	require.NoError(t, err)
	require.NoError(t, handle.Authenticate())
	rec, err := esc.Wrap(password, handle)
	require.NoError(t, err)
	handle.Close()

	records := &recordStub{record: escrow.EncodeRecord(rec)}
	c := New(store, esc, records, match.New(testAliasGroups), testPackageDomains)
	return c, store, esc
}

func loginFields() []*match.Field {
	return []*match.Field{{
		ID:      "form",
		Visible: true,
		Children: []*match.Field{
			{ID: "user", Type: match.FieldTypeEmail, Visible: true},
			{ID: "pw", Type: match.FieldTypePassword, Visible: true},
		},
	}}
}

func TestHandleFillUnlocked(t *testing.T) {
	c, _, _ := fixture(t)

	resp, err := c.HandleFill(context.Background(), FillRequest{
		RequestID: "req-1",
		Fields:    loginFields(),
		Context:   match.RequestContext{WebDomain: "github.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeFilled, resp.Outcome)
	assert.True(t, resp.Classification.Complete())
	require.Len(t, resp.Matches, 1)
	assert.Equal(t, "alice", resp.Matches[0].Entry.Username)
	assert.Equal(t, "s3cret", resp.Matches[0].Entry.Secret)
}

func TestHandleFillNoFields(t *testing.T) {
	c, _, _ := fixture(t)

	resp, err := c.HandleFill(context.Background(), FillRequest{
		RequestID: "req-1",
		Fields:    []*match.Field{{ID: "plain", Label: "search", Visible: true}},
		Context:   match.RequestContext{WebDomain: "github.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeEmpty, resp.Outcome)
}

func TestHandleFillLockedWithoutEscrow(t *testing.T) {
	c, store, _ := fixture(t)
	c.records = &recordStub{}
	store.Lock()

	resp, err := c.HandleFill(context.Background(), FillRequest{
		RequestID: "req-1",
		Fields:    loginFields(),
		Context:   match.RequestContext{WebDomain: "github.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeEmpty, resp.Outcome)
	assert.False(t, store.State().Unlocked)
}

func TestAuthenticatedFillFlow(t *testing.T) {
	c, store, _ := fixture(t)
	store.Lock()

	resp, err := c.HandleFill(context.Background(), FillRequest{
		RequestID: "req-1",
		Fields:    loginFields(),
		Context:   match.RequestContext{WebDomain: "github.com"},
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeAuthRequired, resp.Outcome)
	require.NotNil(t, resp.Challenge)
	assert.False(t, store.State().Unlocked)

	// The platform ceremony succeeds
	require.NoError(t, resp.Challenge.Authenticate())

	done, err := c.CompleteAuth(context.Background(), "req-1", resp.Challenge)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFilled, done.Outcome)
	require.Len(t, done.Matches, 1)
	assert.Equal(t, "s3cret", done.Matches[0].Entry.Secret)
	assert.True(t, store.State().Unlocked)

	// The session is single use
	_, err = c.CompleteAuth(context.Background(), "req-1", resp.Challenge)
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestCompleteAuthWithoutAuthentication(t *testing.T) {
	c, store, _ := fixture(t)
	store.Lock()

	resp, err := c.HandleFill(context.Background(), FillRequest{
		RequestID: "req-1",
		Fields:    loginFields(),
		Context:   match.RequestContext{WebDomain: "github.com"},
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeAuthRequired, resp.Outcome)

	// Authenticate never called on the handle
	_, err = c.CompleteAuth(context.Background(), "req-1", resp.Challenge)
	assert.ErrorIs(t, err, escrow.ErrAuthRequired)
	assert.False(t, store.State().Unlocked, "vault must stay locked when authentication never happened")
}

func TestCompleteAuthUnknownSession(t *testing.T) {
	c, _, esc := fixture(t)
	handle, err := esc.IssueChallenge()
	require.NoError(t, err)

	_, err = c.CompleteAuth(context.Background(), "never-seen", handle)
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestSessionExpiry(t *testing.T) {
	c, store, _ := fixture(t)
	store.Lock()

	now := time.Now()
	c.sessions.now = func() time.Time { return now }

	resp, err := c.HandleFill(context.Background(), FillRequest{
		RequestID: "req-1",
		Fields:    loginFields(),
		Context:   match.RequestContext{WebDomain: "github.com"},
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeAuthRequired, resp.Outcome)
	require.NoError(t, resp.Challenge.Authenticate())

	now = now.Add(SessionTTL + time.Second)
	_, err = c.CompleteAuth(context.Background(), "req-1", resp.Challenge)
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestCancellationKeepsVaultLocked(t *testing.T) {
	c, store, _ := fixture(t)
	store.Lock()

	resp, err := c.HandleFill(context.Background(), FillRequest{
		RequestID: "req-1",
		Fields:    loginFields(),
		Context:   match.RequestContext{WebDomain: "github.com"},
	})
	require.NoError(t, err)
	require.NoError(t, resp.Challenge.Authenticate())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.CompleteAuth(ctx, "req-1", resp.Challenge)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, store.State().Unlocked, "aborted transaction must not leave the vault unlocked")
}

func TestCancelAndPurge(t *testing.T) {
	c, store, _ := fixture(t)
	store.Lock()

	for _, requestID := range []string{"req-1", "req-2"} {
		resp, err := c.HandleFill(context.Background(), FillRequest{
			RequestID: requestID,
			Fields:    loginFields(),
			Context:   match.RequestContext{WebDomain: "github.com"},
		})
		require.NoError(t, err)
		require.Equal(t, OutcomeAuthRequired, resp.Outcome)
		resp.Challenge.Close()
	}

	c.Cancel("req-1")
	_, ok := c.sessions.take("req-1")
	assert.False(t, ok)

	c.Purge()
	_, ok = c.sessions.take("req-2")
	assert.False(t, ok)
}

func TestHandleSaveNewAndUpdate(t *testing.T) {
	c, store, _ := fixture(t)

	saved, err := c.HandleSave(context.Background(), SaveRequest{
		RequestID: "req-1",
		Context:   match.RequestContext{WebDomain: "example.com"},
		Username:  "bob",
		Secret:    "first",
	})
	require.NoError(t, err)
	assert.Equal(t, "example.com", saved.Service)
	assert.NotEmpty(t, saved.ID)

	// Saving again for the same service and username updates in place
	updated, err := c.HandleSave(context.Background(), SaveRequest{
		RequestID: "req-2",
		Context:   match.RequestContext{WebDomain: "example.com"},
		Username:  "bob",
		Secret:    "second",
	})
	require.NoError(t, err)
	assert.Equal(t, saved.ID, updated.ID)

	entries, err := store.Entries()
	require.NoError(t, err)
	count := 0
	for _, e := range entries {
		if e.Service == "example.com" {
			count++
			assert.Equal(t, "second", e.Secret)
		}
	}
	assert.Equal(t, 1, count)
}

func TestHandleSaveRejectsEmpty(t *testing.T) {
	c, _, _ := fixture(t)

	_, err := c.HandleSave(context.Background(), SaveRequest{
		RequestID: "req-1",
		Context:   match.RequestContext{WebDomain: "example.com"},
	})
	assert.ErrorIs(t, err, ErrNoFields)

	_, err = c.HandleSave(context.Background(), SaveRequest{
		RequestID: "req-1",
		Secret:    "pw",
	})
	assert.ErrorIs(t, err, ErrNoFields)
}

func TestHandleSavePackageFallback(t *testing.T) {
	c, _, _ := fixture(t)

	saved, err := c.HandleSave(context.Background(), SaveRequest{
		RequestID: "req-1",
		Context:   match.RequestContext{Package: "com.github.android"},
		Username:  "alice",
		Secret:    "pw",
	})
	require.NoError(t, err)
	assert.Equal(t, "github.com", saved.Service)
}
