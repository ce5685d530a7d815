package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var testPackageDomains = map[string]string{
	"instagram": "instagram.com",
	"facebook":  "facebook.com",
	"twitter":   "twitter.com",
	"github":    "github.com",
}

func TestResolveDomainPrecedence(t *testing.T) {
	// Web domain beats everything
	d := ResolveDomain(RequestContext{
		WebDomain:   "Accounts.Google.com",
		SurfaceURL:  "https://mail.example.com/login",
		WindowTitle: "Sign in to example.org",
		Package:     "com.instagram.android",
	}, testPackageDomains)
	assert.Equal(t, "accounts.google.com", d)

	// Then the scraped URL
	d = ResolveDomain(RequestContext{
		SurfaceURL:  "https://mail.example.com/login?next=/inbox",
		WindowTitle: "Sign in to example.org",
		Package:     "com.instagram.android",
	}, testPackageDomains)
	assert.Equal(t, "mail.example.com", d)

	// Then a domain-shaped token in the title
	d = ResolveDomain(RequestContext{
		WindowTitle: "Log in | example.org - Free Accounts",
		Package:     "com.instagram.android",
	}, testPackageDomains)
	assert.Equal(t, "example.org", d)

	// Then the package fallback table
	d = ResolveDomain(RequestContext{
		Package: "com.instagram.android",
	}, testPackageDomains)
	assert.Equal(t, "instagram.com", d)

	// Finally the raw package name
	d = ResolveDomain(RequestContext{
		Package: "com.example.unknownapp",
	}, testPackageDomains)
	assert.Equal(t, "com.example.unknownapp", d)
}

func TestResolveDomainUnparseableSignals(t *testing.T) {
	// Invalid URL falls through to the title
	d := ResolveDomain(RequestContext{
		SurfaceURL:  "::not-a-url::",
		WindowTitle: "welcome to github.com today",
	}, testPackageDomains)
	assert.Equal(t, "github.com", d)

	// Title without a domain-shaped token falls through to the package
	d = ResolveDomain(RequestContext{
		WindowTitle: "Sign In",
		Package:     "com.github.android",
	}, testPackageDomains)
	assert.Equal(t, "github.com", d)
}

func TestResolveDomainPackageSegments(t *testing.T) {
	// A package mentioning two table keys resolves by segment order,
	// identically on every run
	first := ResolveDomain(RequestContext{
		Package: "com.facebook.instagram.shim",
	}, testPackageDomains)
	assert.Equal(t, "facebook.com", first)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ResolveDomain(RequestContext{
			Package: "com.facebook.instagram.shim",
		}, testPackageDomains))
	}

	// Substrings inside a segment do not count as a table hit
	d := ResolveDomain(RequestContext{
		Package: "com.mygithubfan.app",
	}, testPackageDomains)
	assert.Equal(t, "com.mygithubfan.app", d)
}

func TestResolveDomainEmpty(t *testing.T) {
	assert.Equal(t, "", ResolveDomain(RequestContext{}, testPackageDomains))
}
