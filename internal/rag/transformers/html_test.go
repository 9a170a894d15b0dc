package transformers

import (
	"errors"
	"strings"
	"testing"
)

func TestHTMLTransformer_CanTransform(t *testing.T) {
	transformer := NewHTMLTransformer()

	tests := []struct {
		name        string
		input       string
		expect      bool
		description string
	}{
		{
			name:        "plain text",
			input:       "S: fever\nO: temp 101\nA: viral illness\nP: rest",
			expect:      false,
			description: "plain clinical text is not HTML",
		},
		{
			name:        "full document",
			input:       "<!DOCTYPE html><html><body><p>note</p></body></html>",
			expect:      true,
			description: "a full HTML document should be detected",
		},
		{
			name:        "fragment",
			input:       "<div><h2>Assessment</h2><p>Stable.</p></div>",
			expect:      true,
			description: "an HTML fragment should be detected",
		},
		{
			name:        "text with angle brackets",
			input:       "temp < 101 and BP > 120/80",
			expect:      false,
			description: "comparison operators are not markup",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := transformer.CanTransform(tt.input); got != tt.expect {
				t.Errorf("Expected %v, got %v for test: %s", tt.expect, got, tt.description)
			}
		})
	}
}

func TestHTMLTransformer_Transform(t *testing.T) {
	transformer := NewHTMLTransformer()

	input := `<!DOCTYPE html>
<html>
<head><title>Discharge Summary - Room 4</title></head>
<body>
<h1>Discharge Summary</h1>
<p>The patient was admitted with <strong>community acquired pneumonia</strong>.</p>
<p>Discharged on oral antibiotics.</p>
</body>
</html>`

	result, err := transformer.Transform(input, "fallback")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if result.Title != "Discharge Summary - Room 4" {
		t.Errorf("Expected title from the title tag, got %q", result.Title)
	}
	if strings.Contains(result.Content, "<p>") || strings.Contains(result.Content, "<strong>") {
		t.Errorf("Expected markup stripped from content, got %q", result.Content)
	}
	if !strings.Contains(result.Content, "community acquired pneumonia") {
		t.Errorf("Expected body text preserved, got %q", result.Content)
	}
	if !strings.Contains(result.Content, "Discharged on oral antibiotics.") {
		t.Errorf("Expected all paragraphs preserved, got %q", result.Content)
	}
}

func TestHTMLTransformer_Transform_TitleFallbacks(t *testing.T) {
	transformer := NewHTMLTransformer()

	t.Run("heading fallback", func(t *testing.T) {
		input := "<div><h1>Progress Note</h1><p>Patient doing well.</p></div>"
		result, err := transformer.Transform(input, "fallback")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if result.Title != "Progress Note" {
			t.Errorf("Expected title from the first heading, got %q", result.Title)
		}
	})

	t.Run("fallback title", func(t *testing.T) {
		input := "<div><p>Patient doing well.</p></div>"
		result, err := transformer.Transform(input, "note-2024-01-15")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if result.Title != "note-2024-01-15" {
			t.Errorf("Expected the fallback title, got %q", result.Title)
		}
	})
}

func TestHTMLTransformer_Transform_EmptyInput(t *testing.T) {
	transformer := NewHTMLTransformer()

	if _, err := transformer.Transform("", "fallback"); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("Expected ErrEmptyInput, got %v", err)
	}
	if _, err := transformer.Transform("   \n ", "fallback"); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("Expected ErrEmptyInput, got %v", err)
	}
}
