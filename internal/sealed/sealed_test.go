package sealed

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGenerateAndLoadIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.age")

	recipient, err := GenerateIdentity(path)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.HasPrefix(recipient, "age1") {
		t.Errorf("recipient = %q, want age1 prefix", recipient)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("identity file mode = %o, want 600", info.Mode().Perm())
	}

	codec, err := LoadCodec(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if codec == nil {
		t.Fatal("nil codec")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.age")
	if _, err := GenerateIdentity(path); err != nil {
		t.Fatal(err)
	}
	codec, err := LoadCodec(path)
	if err != nil {
		t.Fatal(err)
	}

	plaintext := []byte("# Engines\n\nWarp core nominal.\n")
	envelope, err := codec.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if !IsEnvelope(envelope) {
		t.Error("ciphertext not detected as envelope")
	}
	if strings.Contains(string(envelope), "Warp core") {
		t.Error("plaintext leaked into envelope")
	}

	got, err := codec.Decrypt(envelope)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if string(got) != string(plaintext) {
		t.Errorf("round trip mismatch: %q", got)
	}
}

func TestOpenPassesPlaintextThrough(t *testing.T) {
	data := []byte("plain markdown")
	got, err := Open(data, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "plain markdown" {
		t.Errorf("Open altered plaintext: %q", got)
	}
}

func TestOpenEnvelopeWithoutCodec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.age")
	if _, err := GenerateIdentity(path); err != nil {
		t.Fatal(err)
	}
	codec, err := LoadCodec(path)
	if err != nil {
		t.Fatal(err)
	}
	envelope, err := codec.Encrypt([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}

	_, err = Open(envelope, nil)
	if !errors.Is(err, ErrNoIdentity) {
		t.Errorf("expected ErrNoIdentity, got %v", err)
	}

	got, err := Open(envelope, codec)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "secret" {
		t.Errorf("Open = %q", got)
	}
}

func TestLoadCodecSkipsComments(t *testing.T) {
	// A generated file carries comment lines before the secret key.
	path := filepath.Join(t.TempDir(), "identity.age")
	if _, err := GenerateIdentity(path); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(raw), "#") {
		t.Fatal("expected leading comment lines")
	}
	if _, err := LoadCodec(path); err != nil {
		t.Errorf("load with comments: %v", err)
	}
}

func TestLoadCodecEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.age")
	if err := os.WriteFile(path, []byte("# nothing here\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCodec(path); err == nil {
		t.Error("expected error for identity-free file")
	}
}
