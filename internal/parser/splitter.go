package parser

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/tmc/langchaingo/textsplitter"

	"pdf-rag/internal/models"
)

const (
	SplitterRecursive = "recursive"
	SplitterFixed     = "fixed"
)

// Splitter breaks page text into overlapping chunks.
type Splitter interface {
	SplitText(text string) ([]string, error)
}

// NewSplitter returns the splitter for kind with the given size and overlap in characters.
func NewSplitter(kind string, chunkSize, chunkOverlap int) (Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", chunkSize, chunkOverlap)
	}
	switch kind {
	case SplitterRecursive, "":
		return textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		), nil
	case SplitterFixed:
		return FixedSplitter{ChunkSize: chunkSize, ChunkOverlap: chunkOverlap}, nil
	default:
		return nil, fmt.Errorf("unknown splitter: %s", kind)
	}
}

// FixedSplitter cuts windows of ChunkSize characters that overlap by ChunkOverlap.
type FixedSplitter struct {
	ChunkSize    int
	ChunkOverlap int
}

func (s FixedSplitter) SplitText(text string) ([]string, error) {
	return chunkContent(text, s.ChunkSize, s.ChunkOverlap), nil
}

// SplitPages chunks every page. Chunk numbering restarts at 0 on each page.
func SplitPages(splitter Splitter, pages []models.Page) ([]models.Chunk, error) {
	var chunks []models.Chunk
	for _, page := range pages {
		if strings.TrimSpace(page.Content) == "" {
			continue
		}
		texts, err := splitter.SplitText(page.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to split %s page %d: %w", page.Source, page.PageNumber, err)
		}
		idx := 0
		for _, t := range texts {
			if strings.TrimSpace(t) == "" {
				continue
			}
			chunks = append(chunks, models.Chunk{
				Content:    t,
				Source:     page.Source,
				PageNumber: page.PageNumber,
				ChunkID:    idx,
			})
			idx++
		}
	}
	return chunks, nil
}

// chunk content into chunks with maxChars and overlapChars, counted in runes.
// A window end is pulled back to whitespace or a period found within the last
// 10% of the window.
func chunkContent(content string, maxChars, overlapChars int) []string {
	if maxChars <= 0 {
		return nil
	}
	if overlapChars < 0 {
		overlapChars = 0
	}
	if overlapChars >= maxChars {
		overlapChars = maxChars / 2
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	runes := []rune(content)
	if len(runes) <= maxChars {
		return []string{content}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := min(start+maxChars, len(runes))

		if end < len(runes) {
			lookBack := min(maxChars/10, end-start)
			for i := end - 1; i >= end-lookBack && i > start; i-- {
				if unicode.IsSpace(runes[i]) || runes[i] == '.' {
					end = i + 1
					break
				}
			}
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end >= len(runes) {
			break
		}

		next := end - overlapChars
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}
