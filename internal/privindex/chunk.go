package privindex

import (
	"strings"
	"unicode"

	"github.com/fleetworks/quartermaster/internal/config"
)

// Chunk is one heading-scoped segment of a markdown body.
type Chunk struct {
	Heading string
	Text    string
}

// ChunkByHeadings splits a markdown body into heading-scoped chunks.
// Content before the first heading becomes an "(intro)" chunk. Short
// bodies stay whole as a single "(full)" chunk.
func ChunkByHeadings(body string) []Chunk {
	if len(body) <= config.ChunkCharThreshold {
		return []Chunk{{Heading: "(full)", Text: body}}
	}

	lines := strings.Split(body, "\n")
	var chunks []Chunk
	current := Chunk{Heading: "(intro)"}
	var buf []string

	flush := func() {
		text := strings.TrimSpace(strings.Join(buf, "\n"))
		if text != "" {
			current.Text = text
			chunks = append(chunks, current)
		}
		buf = buf[:0]
	}

	for _, line := range lines {
		if heading, ok := headingText(line); ok {
			flush()
			current = Chunk{Heading: heading}
			continue
		}
		buf = append(buf, line)
	}
	flush()

	if len(chunks) == 0 {
		return []Chunk{{Heading: "(full)", Text: body}}
	}

	// Split any chunk still over the embed limit on size boundaries.
	var final []Chunk
	for _, c := range chunks {
		if len(c.Text) > config.MaxEmbedChars {
			final = append(final, chunkBySize(c)...)
		} else {
			final = append(final, c)
		}
	}
	return final
}

func headingText(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "#") {
		return "", false
	}
	level := 0
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level > 6 || level >= len(trimmed) || trimmed[level] != ' ' {
		return "", false
	}
	return strings.TrimSpace(trimmed[level:]), true
}

// chunkBySize splits an oversized chunk at paragraph boundaries, falling
// back to hard cuts for pathological single-paragraph content.
func chunkBySize(c Chunk) []Chunk {
	var out []Chunk
	text := c.Text
	for len(text) > config.MaxEmbedChars {
		cut := strings.LastIndex(text[:config.MaxEmbedChars], "\n\n")
		if cut <= 0 {
			cut = config.MaxEmbedChars
		}
		out = append(out, Chunk{Heading: c.Heading, Text: strings.TrimSpace(text[:cut])})
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		out = append(out, Chunk{Heading: c.Heading, Text: text})
	}
	return out
}

// normalizeContent lowercases text and collapses whitespace runs so that
// lexical token matching is layout-independent.
func normalizeContent(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// tokenize splits a query into lowercase alphanumeric tokens.
func tokenize(query string) []string {
	return strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// estimateTokens approximates a token count at 4 characters per token.
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}
