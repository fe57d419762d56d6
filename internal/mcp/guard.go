package mcp

import (
	"context"

	"github.com/mdombrov-33/go-promptguard/detector"
)

// snippetGuard screens vault-sourced text before it reaches a model
// context. Pattern and statistical detectors only, no LLM judge, so
// every call stays sub-millisecond.
var snippetGuard = detector.New(
	detector.WithThreshold(0.6),
	detector.WithAllDetectors(),
	detector.WithMaxInputLength(1000),
)

const redactedExcerpt = "[excerpt withheld: possible prompt injection]"

// screenExcerpt replaces a search excerpt that trips the injection
// detector. Notes are third-party content by the time an agent reads
// them, so flagged snippets are withheld rather than passed through.
func screenExcerpt(text string) string {
	if len(text) == 0 {
		return text
	}
	result := snippetGuard.Detect(context.Background(), text)
	if !result.Safe {
		return redactedExcerpt
	}
	return text
}
