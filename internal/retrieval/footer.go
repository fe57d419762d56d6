package retrieval

import (
	"strings"
)

const footerHeading = "Sources:"

// BuildCitationFooter renders the sources section appended to generated
// answers. An empty citation list still produces a footer so readers can
// tell "no sources" apart from "footer forgotten".
func BuildCitationFooter(citations []Citation) string {
	var sb strings.Builder
	sb.WriteString(footerHeading)
	sb.WriteString("\n")
	if len(citations) == 0 {
		sb.WriteString("[S0] No indexed knowledge sources retrieved.")
		return sb.String()
	}
	for i, c := range citations {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("[")
		sb.WriteString(c.ID)
		sb.WriteString("] ")
		if c.Title != "" {
			sb.WriteString(c.Title)
			sb.WriteString(" - ")
		}
		sb.WriteString(c.Path)
	}
	return sb.String()
}

// EnforceCitationFooter appends the citation footer to text unless it
// already ends with a sources section. Idempotent: applying it to its
// own output changes nothing.
func EnforceCitationFooter(text string, citations []Citation) string {
	if hasFooter(text) {
		return text
	}
	trimmed := strings.TrimRight(text, " \t\n")
	if trimmed == "" {
		return BuildCitationFooter(citations)
	}
	return trimmed + "\n\n" + BuildCitationFooter(citations)
}

func hasFooter(text string) bool {
	idx := strings.LastIndex(text, footerHeading)
	if idx < 0 {
		return false
	}
	// The heading counts only at the start of a line.
	return idx == 0 || text[idx-1] == '\n'
}
