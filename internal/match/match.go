package match

import (
	"sort"
	"strings"

	"github.com/credvault/credvault/internal/vault"
)

// Confidence levels attached to match results.
const (
	ConfidenceExact     = 1.0
	ConfidenceSubstring = 0.9
	ConfidenceAlias     = 0.7
)

// Result pairs a vault entry with the confidence of its match.
type Result struct {
	Entry      vault.Entry
	Confidence float64
}

// Matcher ranks vault entries against a resolved request domain. The
// alias groups are data, not code: each group is a family of related
// first-party domains that should match one another regardless of
// substring containment.
type Matcher struct {
	groups [][]string
}

// New builds a Matcher over the given alias groups. Group members are
// normalized to lowercase once at construction.
func New(aliasGroups [][]string) *Matcher {
	groups := make([][]string, 0, len(aliasGroups))
	for _, g := range aliasGroups {
		norm := make([]string, 0, len(g))
		for _, member := range g {
			if m := strings.ToLower(strings.TrimSpace(member)); m != "" {
				norm = append(norm, m)
			}
		}
		if len(norm) > 0 {
			groups = append(groups, norm)
		}
	}
	return &Matcher{groups: groups}
}

// Match returns the entries whose service matches the domain, ordered
// by confidence and then by service name so repeated runs over the same
// inputs rank identically. An empty domain matches nothing.
func (m *Matcher) Match(entries []vault.Entry, domain string) []Result {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return nil
	}

	var results []Result
	for _, e := range entries {
		service := strings.ToLower(strings.TrimSpace(e.Service))
		if service == "" {
			continue
		}
		switch {
		case service == domain:
			results = append(results, Result{Entry: e, Confidence: ConfidenceExact})
		case strings.Contains(domain, service) || strings.Contains(service, domain):
			results = append(results, Result{Entry: e, Confidence: ConfidenceSubstring})
		case m.sameAliasFamily(service, domain):
			results = append(results, Result{Entry: e, Confidence: ConfidenceAlias})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Confidence != results[j].Confidence {
			return results[i].Confidence > results[j].Confidence
		}
		return results[i].Entry.Service < results[j].Entry.Service
	})
	return results
}

// sameAliasFamily reports whether the service and domain each mention a
// member of the same alias group.
func (m *Matcher) sameAliasFamily(service, domain string) bool {
	for _, group := range m.groups {
		var serviceHit, domainHit bool
		for _, member := range group {
			if strings.Contains(service, member) {
				serviceHit = true
			}
			if strings.Contains(domain, member) {
				domainHit = true
			}
		}
		if serviceHit && domainHit {
			return true
		}
	}
	return false
}
