package extract

import (
	"errors"
	"strings"
	"testing"
)

func TestExtract_CSRF(t *testing.T) {
	tests := []struct {
		name     string
		document string
		expected string
	}{
		{
			name:     "django hidden field",
			document: `<form><div style='display:none'><input type='hidden' name='csrfmiddlewaretoken' value='TOK1' /></div></form>`,
			expected: "TOK1",
		},
		{
			name:     "value before name",
			document: `<input value='abc123' type='hidden' name='csrfmiddlewaretoken'>`,
			expected: "abc123",
		},
		{
			name:     "extra attributes around",
			document: `<INPUT id='x' class="hidden" NAME='csrfmiddlewaretoken' data-x='1' VALUE='T0K-en_9' autocomplete='off'>`,
			expected: "T0K-en_9",
		},
		{
			name: "multi-line page",
			document: "<html>\n<body>\n<input type='text' name='username' value='bob'>\n" +
				"<input type='hidden' name='csrfmiddlewaretoken' value='LINE3'>\n</body></html>",
			expected: "LINE3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(CSRFPattern, CSRFGroup, tt.document)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Extract() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestExtract_CSRFMissing(t *testing.T) {
	doc := `<input type='hidden' name='next' value='/'>`
	_, err := Extract(CSRFPattern, CSRFGroup, doc)
	if err == nil {
		t.Fatal("Expected error, got none")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("Expected *Failure, got %T", err)
	}
	if failure.Document != doc {
		t.Error("Failure should carry the offending document")
	}
	if !strings.Contains(failure.Pattern, "csrfmiddlewaretoken") {
		t.Errorf("Failure should carry the pattern, got %q", failure.Pattern)
	}
}

func TestExtract_ExtendAnchor(t *testing.T) {
	tests := []struct {
		name     string
		document string
		expected string
		found    bool
	}{
		{
			name:     "id then rel",
			document: `<a id="REQ9" rel="extend">extend</a>`,
			expected: "REQ9",
			found:    true,
		},
		{
			name:     "rel then id",
			document: `<a rel="extend" id="REQ10" href="#">extend</a>`,
			expected: "REQ10",
			found:    true,
		},
		{
			name:     "attributes in between",
			document: `<p>queue</p><a href="#" class="button" id="4711" title="Extend" rel="extend">+30 min</a>`,
			expected: "4711",
			found:    true,
		},
		{
			name:     "upper case markup",
			document: `<A HREF="#" ID="R1" REL="extend">more</A>`,
			expected: "R1",
			found:    true,
		},
		{
			name:     "skips anchors without rel extend",
			document: `<a id="nope" href="/">home</a>` + "\n" + `<a id="yes" rel="extend">x</a>`,
			expected: "yes",
			found:    true,
		},
		{
			name:     "data-id does not count as id",
			document: `<a data-id="bad" rel="extend">x</a>`,
			found:    false,
		},
		{
			name:     "no extend anchor",
			document: `<html><body><a id="x" href="/accounts/logout">Log out</a></body></html>`,
			found:    false,
		},
		{
			name:     "empty page",
			document: ``,
			found:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(ExtendPattern, IDGroup, tt.document)
			if !tt.found {
				if !errors.Is(err, ErrNotFound) {
					t.Errorf("Expected ErrNotFound, got %v (value %q)", err, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Extract() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestContains(t *testing.T) {
	if err := Contains(LoggedInPattern, `<a class="nav" href="/accounts/logout">Log out</a>`); err != nil {
		t.Errorf("Expected logout link to match: %v", err)
	}
	if err := Contains(LoggedInPattern, `<a href="/accounts/signin">Sign in</a>`); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := Contains(SuccessPattern, `{"success": true, "expire": "20:15"}`); err != nil {
		t.Errorf("Expected success marker to match: %v", err)
	}
	if err := Contains(SuccessPattern, `{"success": false}`); err == nil {
		t.Error("Expected failure for success=false")
	}
}
