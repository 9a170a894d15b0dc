package chunkers

import (
	"errors"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/ryanpkennedy/df-healthbench/pkg/util"

	"github.com/rs/zerolog"
)

var (
	ErrContentEmpty    = errors.New("content cannot be empty")
	ErrMaxSizeTooSmall = errors.New("maxSize must be at least 100 characters")
	ErrInvalidOverlap  = errors.New("overlap must be non-negative and less than maxSize")
)

const (
	minChunkSize        = 100
	maxChunkSizeDefault = 800
	overlapDefault      = 50
)

// SectionDetector finds structural section boundaries in semi-structured
// clinical text. Implementations return one span per detected section, in
// document order, or nil when the text has no usable structure.
type SectionDetector interface {
	DetectSections(content string) []string
}

// SOAPSectionDetector detects single-letter section headers followed by a
// colon at the start of a line, the convention used by SOAP notes
// (S:, O:, A:, P:).
type SOAPSectionDetector struct {
	pattern *regexp.Regexp
}

// NewSOAPSectionDetector creates the default section detector.
func NewSOAPSectionDetector() *SOAPSectionDetector {
	return &SOAPSectionDetector{
		pattern: regexp.MustCompile(`(?m)(?:^|\n)([A-Z]):[ \t]*`),
	}
}

// DetectSections splits content into marker-to-marker spans. Fewer than two
// markers means the text is not section-structured, and nil is returned.
// Text before the first marker is kept as a leading span so the chunk
// sequence still covers the whole document.
func (d *SOAPSectionDetector) DetectSections(content string) []string {
	matches := d.pattern.FindAllStringIndex(content, -1)
	if len(matches) < 2 {
		return nil
	}

	var sections []string
	if lead := strings.TrimSpace(content[:matches[0][0]]); lead != "" {
		sections = append(sections, lead)
	}

	for i, match := range matches {
		start := match[0]
		end := len(content)
		if i < len(matches)-1 {
			end = matches[i+1][0]
		}
		if section := strings.TrimSpace(content[start:end]); section != "" {
			sections = append(sections, section)
		}
	}

	return sections
}

// SectionChunker splits documents into bounded-size chunks using a tiered
// strategy: section markers first, then paragraphs, then sentences, then
// fixed-width slices. Overlap characters from each closed chunk seed the
// next one for context continuity.
type SectionChunker struct {
	detector         SectionDetector
	preserveSections bool
	logger           zerolog.Logger
}

// NewSectionChunker creates a structure-preserving chunker with the default
// SOAP section detector.
func NewSectionChunker() *SectionChunker {
	return NewSectionChunkerWithDetector(NewSOAPSectionDetector(), true)
}

// NewSectionChunkerWithDetector creates a chunker with a custom section
// detection strategy. A nil detector or preserveSections=false skips the
// section tier entirely.
func NewSectionChunkerWithDetector(detector SectionDetector, preserveSections bool) *SectionChunker {
	return &SectionChunker{
		detector:         detector,
		preserveSections: preserveSections && detector != nil,
		logger:           util.NewLogger(zerolog.ErrorLevel),
	}
}

// GetChunkingStrategy returns the strategy name used by this chunker.
func (c *SectionChunker) GetChunkingStrategy() string {
	return "section"
}

// ChunkDocument splits content into chunks of at most maxSize characters.
// Every returned chunk is non-empty after trimming and chunk order follows
// document order. Only the fixed-width fallback may exceed maxSize, and
// then only by trimming slack.
func (c *SectionChunker) ChunkDocument(content string, maxSize, overlap int) ([]string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		c.logger.Warn().Msg("content is empty")
		return nil, ErrContentEmpty
	}

	if maxSize < minChunkSize {
		c.logger.Warn().Int("max_size", maxSize).Msg("maxSize below minimum")
		return nil, ErrMaxSizeTooSmall
	}

	if overlap < 0 || overlap >= maxSize {
		c.logger.Warn().Int("overlap", overlap).Int("max_size", maxSize).Msg("invalid overlap")
		return nil, ErrInvalidOverlap
	}

	c.logger.Debug().Int("length", len(content)).Int("max_size", maxSize).Msg("chunking document")

	// Content that already fits is returned untouched.
	if len(content) <= maxSize {
		return []string{content}, nil
	}

	if c.preserveSections {
		if sections := c.detector.DetectSections(content); sections != nil {
			var chunks []string
			for _, section := range sections {
				if len(section) <= maxSize {
					chunks = append(chunks, section)
				} else {
					chunks = append(chunks, splitByParagraphs(section, maxSize, overlap)...)
				}
			}
			c.logger.Debug().Int("chunks", len(chunks)).Msg("document chunked section-aware")
			return chunks, nil
		}
	}

	chunks := splitByParagraphs(content, maxSize, overlap)
	c.logger.Debug().Int("chunks", len(chunks)).Msg("document chunked paragraph-based")
	return chunks, nil
}

var paragraphSplit = regexp.MustCompile(`\n\s*\n`)

// splitByParagraphs greedily packs blank-line separated paragraphs into
// chunks. When a chunk closes, its trailing overlap characters seed the
// next chunk. Paragraphs longer than maxSize fall through to the sentence
// tier.
func splitByParagraphs(content string, maxSize, overlap int) []string {
	var paragraphs []string
	for _, p := range paragraphSplit.Split(content, -1) {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	if len(paragraphs) == 0 {
		return []string{content}
	}

	chunks := packSegments(paragraphs, maxSize, overlap, "\n\n")

	var final []string
	for _, chunk := range chunks {
		if len(chunk) <= maxSize {
			final = append(final, chunk)
		} else {
			final = append(final, splitBySentences(chunk, maxSize, overlap)...)
		}
	}
	return final
}

var sentenceSplit = regexp.MustCompile(`([.!?])\s+`)

// splitBySentences packs sentences with the same greedy overlap-seeded
// logic. Text with no sentence boundary at all, or a single sentence that
// still exceeds maxSize, falls through to fixed-width slicing.
func splitBySentences(content string, maxSize, overlap int) []string {
	sentences := splitAfterBoundaries(content)
	if len(sentences) <= 1 {
		return splitByCharacterCount(content, maxSize, overlap)
	}

	chunks := packSegments(sentences, maxSize, overlap, " ")

	var final []string
	for _, chunk := range chunks {
		if len(chunk) <= maxSize {
			final = append(final, chunk)
		} else {
			final = append(final, splitByCharacterCount(chunk, maxSize, overlap)...)
		}
	}
	return final
}

// splitAfterBoundaries splits content after `.`, `!` or `?` followed by
// whitespace, keeping the terminator with its sentence.
func splitAfterBoundaries(content string) []string {
	indexes := sentenceSplit.FindAllStringSubmatchIndex(content, -1)

	var sentences []string
	start := 0
	for _, idx := range indexes {
		// idx[3] is the position just past the terminator character
		sentence := strings.TrimSpace(content[start:idx[3]])
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		start = idx[1]
	}
	if tail := strings.TrimSpace(content[start:]); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

// packSegments is the shared greedy packer for the paragraph and sentence
// tiers. Closing a chunk seeds the next one with the chunk's trailing
// overlap characters joined by sep.
func packSegments(segments []string, maxSize, overlap int, sep string) []string {
	var chunks []string
	current := ""

	for _, segment := range segments {
		if current != "" && len(current)+len(segment)+len(sep) > maxSize {
			chunks = append(chunks, strings.TrimSpace(current))

			if overlap > 0 && len(current) >= overlap {
				overlapText := strings.TrimSpace(current[len(current)-overlap:])
				current = overlapText + sep + segment
			} else {
				current = segment
			}
			continue
		}

		if current != "" {
			current += sep + segment
		} else {
			current = segment
		}
	}

	if current != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}
	return chunks
}

// splitByCharacterCount is the last-resort tier: fixed-width slices that
// slide forward by maxSize-overlap, snapping the right edge back to the
// nearest space inside the window to avoid mid-word splits.
func splitByCharacterCount(content string, maxSize, overlap int) []string {
	var chunks []string
	start := 0

	for start < len(content) {
		end := start + maxSize
		if end < len(content) {
			if lastSpace := strings.LastIndex(content[start:end], " "); lastSpace > 0 {
				end = start + lastSpace
			}
		} else {
			end = len(content)
		}

		if chunk := strings.TrimSpace(content[start:end]); chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := end
		if overlap > 0 {
			next = end - overlap
		}
		// The space snap can shrink the step below the overlap; never stall.
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// ChunkStats summarizes a chunk list for logging and diagnostics.
type ChunkStats struct {
	Count      int `json:"count"`
	AvgSize    int `json:"avg_size"`
	MinSize    int `json:"min_size"`
	MaxSize    int `json:"max_size"`
	TotalChars int `json:"total_chars"`
}

// Stats computes size statistics over a list of chunks.
func Stats(chunks []string) ChunkStats {
	if len(chunks) == 0 {
		return ChunkStats{}
	}

	stats := ChunkStats{Count: len(chunks), MinSize: len(chunks[0])}
	for _, chunk := range chunks {
		size := len(chunk)
		stats.TotalChars += size
		if size < stats.MinSize {
			stats.MinSize = size
		}
		if size > stats.MaxSize {
			stats.MaxSize = size
		}
	}
	stats.AvgSize = stats.TotalChars / len(chunks)
	return stats
}

// getIntFromEnv returns an integer from environment variable or default value.
func getIntFromEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}
	return defaultValue
}

// GetDefaultMaxChunkSize returns the default max chunk size from environment or default.
func GetDefaultMaxChunkSize() int {
	return getIntFromEnv("CHUNK_MAX_SIZE", maxChunkSizeDefault)
}

// GetDefaultOverlap returns the default chunk overlap from environment or default.
func GetDefaultOverlap() int {
	return getIntFromEnv("CHUNK_OVERLAP", overlapDefault)
}
