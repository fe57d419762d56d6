// Package sealed provides age encryption-at-rest for private vault notes.
// A note on disk is either plaintext markdown or an age envelope; Open
// detects which and decrypts when a codec is available. The decryption
// policy (required vs best-effort plaintext fallback) is decided by the
// caller, not here.
package sealed

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"
)

// envelopeMagic is the binary age format header.
const envelopeMagic = "age-encryption.org/v1"

// ErrNoIdentity is returned when decryption is requested without a codec.
var ErrNoIdentity = errors.New("no encryption identity configured")

// IsEnvelope reports whether data looks like an age envelope.
func IsEnvelope(data []byte) bool {
	return bytes.HasPrefix(data, []byte(envelopeMagic))
}

// Codec encrypts and decrypts private note content with one x25519
// identity. The identity never leaves this process.
type Codec struct {
	identity  *age.X25519Identity
	recipient *age.X25519Recipient
}

// LoadCodec reads an age identity file (AGE-SECRET-KEY-1... lines,
// comments allowed) and returns a codec for it.
func LoadCodec(identityFile string) (*Codec, error) {
	raw, err := os.ReadFile(identityFile)
	if err != nil {
		return nil, fmt.Errorf("read identity file: %w", err)
	}
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		identity, err := age.ParseX25519Identity(line)
		if err != nil {
			return nil, fmt.Errorf("parse identity: %w", err)
		}
		return &Codec{identity: identity, recipient: identity.Recipient()}, nil
	}
	return nil, fmt.Errorf("no identity found in %s", identityFile)
}

// GenerateIdentity creates a fresh x25519 identity and writes it to path
// with owner-only permissions. Returns the public recipient string.
func GenerateIdentity(path string) (string, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return "", fmt.Errorf("generate identity: %w", err)
	}
	content := fmt.Sprintf("# created by qm\n# public key: %s\n%s\n",
		identity.Recipient(), identity)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return "", fmt.Errorf("write identity file: %w", err)
	}
	return identity.Recipient().String(), nil
}

// Encrypt seals plaintext into an age envelope for the codec's recipient.
func (c *Codec) Encrypt(plaintext []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, c.recipient)
	if err != nil {
		return nil, fmt.Errorf("create encryptor: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("write plaintext: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalize envelope: %w", err)
	}
	return buf.Bytes(), nil
}

// Decrypt opens an age envelope with the codec's identity.
func (c *Codec) Decrypt(ciphertext []byte) ([]byte, error) {
	r, err := age.Decrypt(bytes.NewReader(ciphertext), c.identity)
	if err != nil {
		return nil, fmt.Errorf("decrypt envelope: %w", err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read decrypted content: %w", err)
	}
	return plaintext, nil
}

// Open returns the plaintext for stored note content. Plaintext content
// passes through unchanged. Envelopes are decrypted with the codec; a nil
// codec yields ErrNoIdentity so the caller can apply its fallback policy.
func Open(data []byte, codec *Codec) ([]byte, error) {
	if !IsEnvelope(data) {
		return data, nil
	}
	if codec == nil {
		return nil, ErrNoIdentity
	}
	return codec.Decrypt(data)
}
