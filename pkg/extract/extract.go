// Package extract pulls single tokens out of HTML and JSON documents
// returned by browsershots. It does no I/O.
package extract

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrNotFound is matched by every *Failure.
var ErrNotFound = errors.New("token not found")

// CSRFPattern finds the sign-in form's hidden anti-forgery field. The name and
// value attributes may appear in either order; the value is single quoted.
var CSRFPattern = regexp.MustCompile(
	`(?im)<input\s+(?:[^>]*?\s)?` +
		`(?:name='csrfmiddlewaretoken'[^>]*?\svalue='(?P<csrf>[^']+)'` +
		`|value='(?P<csrf>[^']+)'[^>]*?\sname='csrfmiddlewaretoken')`)

// ExtendPattern finds the anchor carrying rel="extend" and captures its id.
// Attribute order does not matter.
var ExtendPattern = regexp.MustCompile(
	`(?im)<a\s+(?:[^>]*?\s)?` +
		`(?:id="(?P<id>[^"]+)"[^>]*?\srel="extend"` +
		`|rel="extend"[^>]*?\sid="(?P<id>[^"]+)")`)

// LoggedInPattern is only present on pages served to an authenticated user.
var LoggedInPattern = regexp.MustCompile(`(?i)href="/accounts/logout"`)

// SuccessPattern marks an accepted AJAX extend call.
var SuccessPattern = regexp.MustCompile(`"success":\s*true`)

const (
	CSRFGroup = "csrf"
	IDGroup   = "id"
)

// Failure reports a pattern that did not match. It carries the document so
// the caller can log what the remote side actually sent.
type Failure struct {
	Pattern  string
	Group    string
	Document string
}

func (f *Failure) Error() string {
	if f.Group != "" {
		return fmt.Sprintf("no match for group %q of pattern %s", f.Group, f.Pattern)
	}
	return fmt.Sprintf("no match for pattern %s", f.Pattern)
}

func (f *Failure) Is(target error) bool {
	return target == ErrNotFound
}

// Extract returns the named capture group of the first match of re in
// document. When several alternatives share the group name, the one that
// participated in the match wins.
func Extract(re *regexp.Regexp, group, document string) (string, error) {
	loc := re.FindStringSubmatchIndex(document)
	if loc == nil {
		return "", &Failure{Pattern: re.String(), Group: group, Document: document}
	}

	for i, name := range re.SubexpNames() {
		if name != group || i == 0 {
			continue
		}
		start, end := loc[2*i], loc[2*i+1]
		if start >= 0 && end > start {
			return document[start:end], nil
		}
	}

	return "", &Failure{Pattern: re.String(), Group: group, Document: document}
}

// Contains reports whether re matches anywhere in document.
func Contains(re *regexp.Regexp, document string) error {
	if re.MatchString(document) {
		return nil
	}
	return &Failure{Pattern: re.String(), Document: document}
}
