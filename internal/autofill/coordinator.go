package autofill

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/credvault/credvault/internal/escrow"
	"github.com/credvault/credvault/internal/match"
	"github.com/credvault/credvault/internal/vault"
)

// Errors returned by the coordinator.
var (
	ErrNoFields          = errors.New("autofill: no fillable fields in hierarchy")
	ErrUnknownSession    = errors.New("autofill: unknown or expired fill session")
	ErrEscrowUnavailable = errors.New("autofill: biometric unlock not configured")
)

// VaultAccess is the slice of the vault store the coordinator uses.
type VaultAccess interface {
	State() vault.Snapshot
	UnlockWithSecret(secret []byte) ([]vault.Entry, error)
	Entries() ([]vault.Entry, error)
	AddEntry(e vault.Entry) (vault.Entry, error)
	UpdateEntry(e vault.Entry) error
}

// RecordSource yields the persisted escrow record, "" when escrow is
// not enrolled.
type RecordSource interface {
	EscrowRecord() (string, error)
}

// Outcome discriminates the three possible responses to a fill request.
type Outcome int

const (
	// OutcomeEmpty means no fields were classified or no credentials
	// matched; the surface gets no response.
	OutcomeEmpty Outcome = iota
	// OutcomeAuthRequired means the vault is locked and an
	// authentication challenge was issued; the caller must complete it
	// and call CompleteAuth with the same request id.
	OutcomeAuthRequired
	// OutcomeFilled carries classified fields and matched credentials.
	OutcomeFilled
)

// FillRequest is one fill invocation from the OS boundary.
type FillRequest struct {
	RequestID string
	Fields    []*match.Field
	Context   match.RequestContext
}

// FillResponse is the coordinator's answer to a FillRequest.
type FillResponse struct {
	Outcome        Outcome
	Classification match.Classification
	Domain         string
	Matches        []match.Result
	// Challenge is set when Outcome is OutcomeAuthRequired. The caller
	// runs platform authentication against it and then calls
	// CompleteAuth.
	Challenge *escrow.UnlockChallenge
}

// SaveRequest carries the values captured from a submitted login form.
type SaveRequest struct {
	RequestID string
	Context   match.RequestContext
	Username  string
	Secret    string
}

// Coordinator drives one autofill transaction end to end: classify the
// field hierarchy, decide the authentication path, unlock via escrow
// when needed, and rank matching credentials. All dependencies are
// injected; the coordinator owns only the session cache.
type Coordinator struct {
	store          VaultAccess
	escrow         escrow.HardwareKeyEscrow
	records        RecordSource
	matcher        *match.Matcher
	packageDomains map[string]string
	sessions       *sessionCache
	log            *zap.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. Defaults to a nop logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Coordinator) { c.log = log }
}

// New builds a Coordinator over the given dependencies.
func New(store VaultAccess, esc escrow.HardwareKeyEscrow, records RecordSource, matcher *match.Matcher, packageDomains map[string]string, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:          store,
		escrow:         esc,
		records:        records,
		matcher:        matcher,
		packageDomains: packageDomains,
		sessions:       newSessionCache(SessionTTL),
		log:            zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HandleFill processes a fill request. With the vault unlocked it
// classifies and matches in one pass. With the vault locked and escrow
// enrolled it issues an authentication challenge and parks the
// classification under the request id for CompleteAuth. Cancellation of
// ctx aborts without changing vault state.
func (c *Coordinator) HandleFill(ctx context.Context, req FillRequest) (FillResponse, error) {
	if err := ctx.Err(); err != nil {
		return FillResponse{}, err
	}

	classification := match.Classify(req.Fields)
	if classification.Empty() {
		c.log.Debug("fill request with no classifiable fields",
			zap.String("request_id", req.RequestID))
		return FillResponse{Outcome: OutcomeEmpty}, nil
	}
	domain := match.ResolveDomain(req.Context, c.packageDomains)

	if c.store.State().Unlocked {
		return c.respond(req.RequestID, classification, domain)
	}

	record, err := c.records.EscrowRecord()
	if err != nil {
		return FillResponse{}, fmt.Errorf("autofill: reading escrow record: %w", err)
	}
	if record == "" || !c.escrow.HasKey() {
		// Locked and no biometric path. The surface shows nothing; the
		// user unlocks through the app instead.
		return FillResponse{Outcome: OutcomeEmpty}, nil
	}

	challenge, err := c.escrow.IssueChallenge()
	if err != nil {
		return FillResponse{}, err
	}
	c.sessions.put(req.RequestID, session{
		classification: classification,
		domain:         domain,
	})
	c.log.Debug("issued authentication challenge",
		zap.String("request_id", req.RequestID),
		zap.String("domain", domain))
	return FillResponse{
		Outcome:        OutcomeAuthRequired,
		Classification: classification,
		Domain:         domain,
		Challenge:      challenge,
	}, nil
}

// CompleteAuth finishes a fill that HandleFill answered with
// OutcomeAuthRequired. The handle must have passed Authenticate; the
// coordinator unwraps the escrowed secret, unlocks the vault with it,
// and replays the parked classification. The session is consumed
// whether or not the unlock succeeds.
func (c *Coordinator) CompleteAuth(ctx context.Context, requestID string, handle *escrow.UnlockChallenge) (FillResponse, error) {
	sess, ok := c.sessions.take(requestID)
	if !ok {
		return FillResponse{}, ErrUnknownSession
	}
	if err := ctx.Err(); err != nil {
		return FillResponse{}, err
	}

	recordText, err := c.records.EscrowRecord()
	if err != nil {
		return FillResponse{}, fmt.Errorf("autofill: reading escrow record: %w", err)
	}
	if recordText == "" {
		return FillResponse{}, ErrEscrowUnavailable
	}
	record, err := escrow.DecodeRecord(recordText)
	if err != nil {
		return FillResponse{}, fmt.Errorf("autofill: decoding escrow record: %w", err)
	}

	secret, err := c.escrow.Unwrap(record, handle)
	if err != nil {
		c.log.Warn("escrow unwrap failed", zap.String("request_id", requestID), zap.Error(err))
		return FillResponse{}, err
	}
	defer func() {
		for i := range secret {
			secret[i] = 0
		}
	}()

	if err := ctx.Err(); err != nil {
		// Cancelled after authentication but before unlock; do not
		// leave the vault unlocked on an aborted transaction.
		return FillResponse{}, err
	}
	if _, err := c.store.UnlockWithSecret(secret); err != nil {
		return FillResponse{}, err
	}
	return c.respond(requestID, sess.classification, sess.domain)
}

// HandleSave persists credentials captured from a submitted form. An
// existing entry for the same service and username is updated in place;
// otherwise a new entry is created with the resolved domain as its
// service label. The vault must be unlocked.
func (c *Coordinator) HandleSave(ctx context.Context, req SaveRequest) (vault.Entry, error) {
	if err := ctx.Err(); err != nil {
		return vault.Entry{}, err
	}
	if req.Secret == "" {
		return vault.Entry{}, ErrNoFields
	}
	domain := match.ResolveDomain(req.Context, c.packageDomains)
	if domain == "" {
		return vault.Entry{}, ErrNoFields
	}

	entries, err := c.store.Entries()
	if err != nil {
		return vault.Entry{}, err
	}
	for _, e := range entries {
		if e.Service == domain && e.Username == req.Username {
			e.Secret = req.Secret
			if err := c.store.UpdateEntry(e); err != nil {
				return vault.Entry{}, err
			}
			c.log.Info("updated saved credential", zap.String("service", domain))
			return e, nil
		}
	}

	entry, err := c.store.AddEntry(vault.Entry{
		Service:  domain,
		Username: req.Username,
		Secret:   req.Secret,
	})
	if err != nil {
		return vault.Entry{}, err
	}
	c.log.Info("saved new credential", zap.String("service", domain))
	return entry, nil
}

// Cancel discards any parked session for the request id. Called when
// the surface abandons the transaction.
func (c *Coordinator) Cancel(requestID string) {
	c.sessions.purge(requestID)
}

// Purge empties the session cache. Wired to vault lock.
func (c *Coordinator) Purge() {
	c.sessions.purgeAll()
}

func (c *Coordinator) respond(requestID string, classification match.Classification, domain string) (FillResponse, error) {
	entries, err := c.store.Entries()
	if err != nil {
		return FillResponse{}, err
	}
	matches := c.matcher.Match(entries, domain)
	if len(matches) == 0 {
		c.log.Debug("no matching credentials",
			zap.String("request_id", requestID),
			zap.String("domain", domain))
	}
	return FillResponse{
		Outcome:        OutcomeFilled,
		Classification: classification,
		Domain:         domain,
		Matches:        matches,
	}, nil
}
