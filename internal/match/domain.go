package match

import (
	"net/url"
	"regexp"
	"strings"
)

// RequestContext carries everything the autofill boundary knows about
// the surface requesting credentials. All fields are optional and
// untrusted.
type RequestContext struct {
	// WebDomain is the domain the platform reports for a browser
	// surface. Most reliable signal when present.
	WebDomain string

	// SurfaceURL is a URL scraped off the rendering surface itself.
	SurfaceURL string

	// WindowTitle is free text from the window or activity title.
	WindowTitle string

	// Package identifies the requesting application.
	Package string
}

var domainRe = regexp.MustCompile(`(?i)\b([a-z0-9][a-z0-9-]*\.)+[a-z]{2,}\b`)

// ResolveDomain reduces a request context to a single lowercase domain
// string for matching. Signals are consulted most-reliable first: the
// platform-reported web domain, then a scraped URL, then a domain-shaped
// token extracted from the window title, then the package fallback
// table, and finally the raw package name so native apps without a
// table entry still get substring matching against services that happen
// to share a name.
func ResolveDomain(ctx RequestContext, packageDomains map[string]string) string {
	if d := strings.TrimSpace(ctx.WebDomain); d != "" {
		return strings.ToLower(d)
	}

	if raw := strings.TrimSpace(ctx.SurfaceURL); raw != "" {
		if u, err := url.Parse(raw); err == nil && u.Hostname() != "" {
			return strings.ToLower(u.Hostname())
		}
	}

	if title := ctx.WindowTitle; title != "" {
		if m := domainRe.FindString(title); m != "" {
			return strings.ToLower(m)
		}
	}

	pkg := strings.ToLower(strings.TrimSpace(ctx.Package))
	if pkg == "" {
		return ""
	}
	// Match whole package segments in their written order so a name
	// mentioning several table keys always resolves the same way, and
	// "com.mygithubfan.app" does not count as github.
	for _, segment := range strings.Split(pkg, ".") {
		if domain, ok := packageDomains[segment]; ok {
			return domain
		}
	}
	return pkg
}
