package utils

import (
	"strings"
	"testing"
)

func TestNormalizeSlug(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Basic text with spaces",
			input:    "Hello World",
			expected: "hello-world",
		},
		{
			name:     "Turkish characters",
			input:    "İstanbul Başakşehir",
			expected: "istanbul-basaksehir",
		},
		{
			name:     "Turkish special characters",
			input:    "Galatasaray İçin Güzel Şehir Ölçüsü",
			expected: "galatasaray-icin-guzel-sehir-olcusu",
		},
		{
			name:     "German special characters",
			input:    "Bayern München",
			expected: "bayern-munchen",
		},
		{
			name:     "French special characters",
			input:    "Olympique Marseille",
			expected: "olympique-marseille",
		},
		{
			name:     "Spanish special characters",
			input:    "Real Madrid España",
			expected: "real-madrid-espana",
		},
		{
			name:     "Port and dashes",
			input:    "localhost:8080/my-page",
			expected: "localhost-8080-my-page",
		},
		{
			name:     "Numbers and special chars",
			input:    "Team 123! @#$% Test",
			expected: "team-123-at-test",
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "Only special characters",
			input:    "!@#$%^&*()",
			expected: "at-and",
		},
		{
			name:     "Multiple spaces and hyphens",
			input:    "Test    ---    Multiple   Spaces",
			expected: "test-multiple-spaces",
		},
		{
			name:     "Leading and trailing spaces",
			input:    "   Test Text   ",
			expected: "test-text",
		},
		{
			name:     "Accented characters",
			input:    "Café Résumé Naïve",
			expected: "cafe-resume-naive",
		},
		{
			name:     "Polish characters",
			input:    "Kraków Łódź Gdańsk",
			expected: "krakow-lodz-gdansk",
		},
		{
			name:     "Czech characters",
			input:    "Praha Brno Ostrava",
			expected: "praha-brno-ostrava",
		},
		{
			name:     "Host and path",
			input:    "www.example.org/about/team",
			expected: "www-example-org-about-team",
		},
		{
			name:     "Internationalized host",
			input:    "bücher.example/straße",
			expected: "bucher-example-strasse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeSlug(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizeSlug(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestRunName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Plain http target",
			input:    "http://example.org/job",
			expected: "example-org-job",
		},
		{
			name:     "Mixed case and spaces",
			input:    "https://Example.org/Some Page",
			expected: "example-org-some-page",
		},
		{
			name:     "Query string",
			input:    "http://example.org/index.php?page=2",
			expected: "example-org-index-php-page-2",
		},
		{
			name:     "No scheme",
			input:    "example.org",
			expected: "example-org",
		},
		{
			name:     "Empty",
			input:    "",
			expected: "run",
		},
		{
			name:     "Scheme only",
			input:    "http://",
			expected: "run",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RunName(tt.input)
			if result != tt.expected {
				t.Errorf("RunName(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestRunName_Truncates(t *testing.T) {
	long := "http://example.org/" + strings.Repeat("segment/", 20)
	result := RunName(long)

	if len(result) > MaxRunNameLength {
		t.Errorf("Expected at most %d characters, got %d", MaxRunNameLength, len(result))
	}
	if strings.HasSuffix(result, "-") {
		t.Errorf("Truncated name should not end with a dash: %q", result)
	}
	if !strings.HasPrefix(result, "example-org-segment") {
		t.Errorf("Unexpected prefix: %q", result)
	}
}

// Benchmark tests
func BenchmarkNormalizeSlug(b *testing.B) {
	input := "Fenerbahçe vs Galatasaray İçin Güzel Şehir Ölçüsü"
	for i := 0; i < b.N; i++ {
		NormalizeSlug(input)
	}
}

func BenchmarkRunName(b *testing.B) {
	input := "http://www.example.org/some/long/path/index.html?query=value"
	for i := 0; i < b.N; i++ {
		RunName(input)
	}
}
