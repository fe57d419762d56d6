package signer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCanonicalJSONSortsKeys(t *testing.T) {
	type payload struct {
		Zebra string `json:"zebra"`
		Alpha string `json:"alpha"`
		Mid   int    `json:"mid"`
	}
	got, err := CanonicalJSON(payload{Zebra: "z", Alpha: "a", Mid: 7})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"alpha":"a","mid":7,"zebra":"z"}`
	if string(got) != want {
		t.Errorf("canonical = %s, want %s", got, want)
	}
}

func TestCanonicalJSONStripsNulls(t *testing.T) {
	type payload struct {
		Keep string  `json:"keep"`
		Gone *string `json:"gone"`
		Meta struct {
			Inner *int `json:"inner"`
		} `json:"meta"`
	}
	got, err := CanonicalJSON(payload{Keep: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(got), "gone") || strings.Contains(string(got), "inner") {
		t.Errorf("null fields not stripped: %s", got)
	}
}

func TestCanonicalJSONNoHTMLEscaping(t *testing.T) {
	got, err := CanonicalJSON(map[string]string{"q": "a < b && c > d"})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(got), `\u003c`) {
		t.Errorf("HTML escaping applied: %s", got)
	}
	if strings.HasSuffix(string(got), "\n") {
		t.Error("canonical bytes carry a trailing newline")
	}
}

func TestCanonicalJSONDeterministic(t *testing.T) {
	v := map[string]any{
		"b": []any{1, 2, 3},
		"a": map[string]any{"y": "1", "x": "2"},
	}
	first, err := CanonicalJSON(v)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20; i++ {
		again, err := CanonicalJSON(v)
		if err != nil {
			t.Fatal(err)
		}
		if string(again) != string(first) {
			t.Fatalf("non-deterministic canonical form: %s vs %s", again, first)
		}
	}
}

func TestVerifyPayloadHash(t *testing.T) {
	payload := []byte(`{"a":1}`)
	sig := Signature{PayloadHash: PayloadHash(payload)}
	if err := sig.VerifyPayloadHash(payload); err != nil {
		t.Errorf("matching hash rejected: %v", err)
	}
	if err := sig.VerifyPayloadHash([]byte(`{"a":2}`)); err == nil {
		t.Error("tampered payload accepted")
	}
}

func TestSignMessagePayloadRejectsHashMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Signature{
			Signature:   "0xsig",
			PayloadHash: "deadbeef",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	_, err := c.SignMessagePayload(context.Background(), SignRequest{
		KeyRef:  "usr_mem:u1",
		Payload: `{"a":1}`,
	})
	if err == nil {
		t.Fatal("expected hash mismatch error")
	}
	if !strings.Contains(err.Error(), "payload hash mismatch") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSignMessagePayloadFillsSignedAt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req SignRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(Signature{
			Signature:   "0xsig",
			PayloadHash: PayloadHash([]byte(req.Payload)),
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	sig, err := c.SignMessagePayload(context.Background(), SignRequest{
		KeyRef:  "usr_mem:u1",
		Payload: `{"a":1}`,
	})
	if err != nil {
		t.Fatal(err)
	}
	if sig.SignedAt == "" {
		t.Error("SignedAt not defaulted")
	}
}

func TestEnclaveErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"error": "key not provisioned"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	_, err := c.GetWalletAddress(context.Background(), "usr_mem:u1")
	if err == nil || !strings.Contains(err.Error(), "key not provisioned") {
		t.Errorf("remote error not propagated: %v", err)
	}
}
