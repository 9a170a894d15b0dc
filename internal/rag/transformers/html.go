package transformers

import (
	"errors"
	"regexp"
	"strings"

	"github.com/ryanpkennedy/df-healthbench/pkg/util"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/rs/zerolog"
)

var (
	ErrEmptyInput  = errors.New("input is empty")
	ErrNoPlainText = errors.New("no text content after conversion")
)

var (
	titleTagPattern   = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	headingPattern    = regexp.MustCompile(`(?m)^#{1,2}\s+(.+)$`)
	htmlMarkerPattern = regexp.MustCompile(`(?i)<(!doctype|html|body|p|div|h[1-6]|br|span|table)\b`)
)

// HTMLTransformer converts raw HTML exports of clinical notes into
// markdown suitable for chunking, extracting a document title along
// the way.
type HTMLTransformer struct {
	markdownConverter *md.Converter
	logger            zerolog.Logger
}

// TransformResult is the extracted document content ready for storage.
type TransformResult struct {
	Title   string
	Content string
}

// NewHTMLTransformer creates a new HTML transformer.
func NewHTMLTransformer() *HTMLTransformer {
	converter := md.NewConverter("", true, nil)
	logger := util.NewLogger(zerolog.ErrorLevel)

	return &HTMLTransformer{
		markdownConverter: converter,
		logger:            logger,
	}
}

// CanTransform reports whether the input looks like HTML rather than
// plain text. Plain text passes through untransformed at the call site.
func (h *HTMLTransformer) CanTransform(input string) bool {
	return htmlMarkerPattern.MatchString(input)
}

// Transform converts an HTML document to markdown and picks a title from
// the <title> tag, falling back to the first markdown heading, then to
// fallbackTitle.
func (h *HTMLTransformer) Transform(input, fallbackTitle string) (*TransformResult, error) {
	if strings.TrimSpace(input) == "" {
		return nil, ErrEmptyInput
	}

	title := h.extractTitle(input)

	markdown, err := h.markdownConverter.ConvertString(input)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to convert HTML to markdown")
		return nil, err
	}

	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return nil, ErrNoPlainText
	}

	if title == "" {
		if m := headingPattern.FindStringSubmatch(markdown); m != nil {
			title = strings.TrimSpace(m[1])
		}
	}
	if title == "" {
		title = fallbackTitle
	}

	return &TransformResult{
		Title:   title,
		Content: markdown,
	}, nil
}

// extractTitle pulls the <title> element's text, if present.
func (h *HTMLTransformer) extractTitle(input string) string {
	m := titleTagPattern.FindStringSubmatch(input)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
