package bridge

import (
	"github.com/fleetworks/quartermaster/internal/signer"
)

// Envelope is one immutable mutation intent against the shared service.
type Envelope struct {
	Operation       string            `json:"operation"`
	Domain          string            `json:"domain"`
	CanonicalPath   string            `json:"canonicalPath"`
	ContentMarkdown string            `json:"contentMarkdown,omitempty"`
	Metadata        Metadata          `json:"metadata"`
	Event           Event             `json:"event"`
	Signature       *signer.Signature `json:"signature,omitempty"`
}

// SignablePayload serializes the signable subset of the envelope with
// lexicographically sorted keys and nulls stripped. The signature bundle
// itself is excluded. Verification must re-serialize identically, so any
// change here breaks every existing signature.
func (e Envelope) SignablePayload() ([]byte, error) {
	e.Signature = nil
	return signer.CanonicalJSON(e)
}
