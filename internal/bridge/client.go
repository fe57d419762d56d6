// Package bridge is the client for the shared knowledge service. It turns
// write intents into signed, idempotent, strictly-ordered envelopes and
// performs unsigned reads and queries.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/fleetworks/quartermaster/internal/signer"
	"github.com/fleetworks/quartermaster/internal/store"
)

// Client talks to the shared knowledge service. One instance per process
// owns the sequence generator; construct it once at the composition root.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	coreID     string
	policy     signer.Policy
	enclave    *signer.Client
	db         *store.DB
	seq        *SeqGen
	provision  singleflight.Group
}

// Options configures a Client. Enclave may be nil when the deployment
// runs unsigned; with PolicyRequired that makes every write fail.
type Options struct {
	BaseURL string
	APIKey  string
	CoreID  string
	Policy  signer.Policy
	Enclave *signer.Client
	DB      *store.DB
	Timeout time.Duration
}

func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    opts.BaseURL,
		apiKey:     opts.APIKey,
		coreID:     opts.CoreID,
		policy:     opts.Policy,
		enclave:    opts.Enclave,
		db:         opts.DB,
		seq:        NewSeqGen(),
	}
}

// userKeyRef is the deterministic enclave key reference for a user's
// memory-writing key.
func userKeyRef(userID string) string {
	return "usr_mem:" + userID
}

// ResolveWriter returns the persisted signer identity for a user,
// provisioning one through the enclave on first use. Concurrent first use
// is collapsed in-process and deduplicated at the store, so two racing
// writers converge on one row.
func (c *Client) ResolveWriter(ctx context.Context, userID string) (*WriterIdentity, error) {
	if row, err := c.db.GetSigner(userID); err != nil {
		return nil, err
	} else if row != nil {
		return &WriterIdentity{
			WriterType: WriterUser,
			WriterID:   userID,
			KeyRef:     row.KeyRef,
			Address:    row.Address,
			Key:        row.Key,
		}, nil
	}

	v, err, _ := c.provision.Do(userID, func() (any, error) {
		if row, err := c.db.GetSigner(userID); err != nil {
			return nil, err
		} else if row != nil {
			return row, nil
		}
		if c.enclave == nil {
			return nil, fmt.Errorf("no signer for %s and no enclave configured", userID)
		}
		keyRef := userKeyRef(userID)
		address, err := c.enclave.GetWalletAddress(ctx, keyRef)
		if err != nil {
			return nil, fmt.Errorf("provision signer for %s: %w", userID, err)
		}
		if err := c.db.PutSigner(&store.SignerRow{UserID: userID, KeyRef: keyRef, Address: address}); err != nil {
			return nil, err
		}
		// Re-read so concurrent provisioners all observe the row that won.
		row, err := c.db.GetSigner(userID)
		if err != nil {
			return nil, err
		}
		if row == nil {
			return nil, fmt.Errorf("signer for %s vanished after provisioning", userID)
		}
		return row, nil
	})
	if err != nil {
		return nil, err
	}
	row := v.(*store.SignerRow)
	return &WriterIdentity{
		WriterType: WriterUser,
		WriterID:   userID,
		KeyRef:     row.KeyRef,
		Address:    row.Address,
		Key:        row.Key,
	}, nil
}

// WriteOptions carries per-write metadata and identity overrides.
type WriteOptions struct {
	// Writer, when set, is used as-is instead of resolving by UserID.
	Writer *WriterIdentity
	UserID string

	Tags           []string
	Citations      []string
	Source         string
	IdempotencyKey string
}

// UpsertMemory writes or replaces a document at a canonical path.
func (c *Client) UpsertMemory(ctx context.Context, domain, canonicalPath, contentMarkdown string, opts WriteOptions) (*WriteResult, error) {
	env, err := c.buildEnvelope(ctx, OpUpsert, domain, canonicalPath, contentMarkdown, "", opts)
	if err != nil {
		return nil, err
	}
	return c.sendEnvelope(ctx, "/v1/memory/upsert", env)
}

// DeleteMemory removes the document at a canonical path.
func (c *Client) DeleteMemory(ctx context.Context, domain, canonicalPath string, opts WriteOptions) (*WriteResult, error) {
	env, err := c.buildEnvelope(ctx, OpDelete, domain, canonicalPath, "", "", opts)
	if err != nil {
		return nil, err
	}
	return c.sendEnvelope(ctx, "/v1/memory/delete", env)
}

// MoveMemory relocates a document inside one domain. The source path
// travels in metadata so the service can validate provenance.
func (c *Client) MoveMemory(ctx context.Context, domain, fromCanonicalPath, toCanonicalPath string, opts WriteOptions) (*WriteResult, error) {
	env, err := c.buildEnvelope(ctx, OpMove, domain, toCanonicalPath, "", fromCanonicalPath, opts)
	if err != nil {
		return nil, err
	}
	return c.sendEnvelope(ctx, "/v1/memory/move", env)
}

func (c *Client) buildEnvelope(ctx context.Context, operation, domain, canonicalPath, contentMarkdown, fromCanonicalPath string, opts WriteOptions) (*Envelope, error) {
	writer := opts.Writer
	if writer == nil && opts.UserID != "" {
		resolved, err := c.ResolveWriter(ctx, opts.UserID)
		if err != nil {
			if c.policy == signer.PolicyRequired {
				return nil, err
			}
			fmt.Fprintf(os.Stderr, "qm: warning: writer resolution failed, sending unsigned: %v\n", err)
			writer = &WriterIdentity{WriterType: WriterUser, WriterID: opts.UserID}
		} else {
			writer = resolved
		}
	}
	if writer == nil {
		writer = &WriterIdentity{WriterType: WriterSystem, WriterID: c.coreID}
	}

	idem := opts.IdempotencyKey
	if idem == "" {
		idem = uuid.NewString()
	}
	env := &Envelope{
		Operation:       operation,
		Domain:          domain,
		CanonicalPath:   canonicalPath,
		ContentMarkdown: contentMarkdown,
		Metadata: Metadata{
			Tags:              opts.Tags,
			Citations:         opts.Citations,
			Source:            opts.Source,
			WriterType:        writer.WriterType,
			WriterID:          writer.WriterID,
			FromCanonicalPath: fromCanonicalPath,
		},
		Event: Event{
			SourceCoreID:   c.coreID,
			SourceSeq:      c.seq.Next(),
			OccurredAt:     time.Now().UTC().Format(time.RFC3339),
			IdempotencyKey: idem,
		},
	}

	if err := c.signEnvelope(ctx, env, writer); err != nil {
		return nil, err
	}
	if env.Signature != nil {
		if err := c.upsertSignerRegistry(ctx, writer); err != nil {
			return nil, fmt.Errorf("signer registry upsert: %w", err)
		}
	}
	return env, nil
}

// signEnvelope attaches a signature bundle per the configured policy.
// With PolicyBestEffort any failure leaves the envelope unsigned; with
// PolicyRequired it is fatal.
func (c *Client) signEnvelope(ctx context.Context, env *Envelope, writer *WriterIdentity) error {
	fail := func(err error) error {
		if c.policy == signer.PolicyRequired {
			return err
		}
		fmt.Fprintf(os.Stderr, "qm: warning: envelope signing failed, sending unsigned: %v\n", err)
		return nil
	}

	if c.enclave == nil {
		return fail(fmt.Errorf("no signing enclave configured"))
	}
	if writer.KeyRef == "" {
		return fail(fmt.Errorf("writer %s has no key reference", writer.WriterID))
	}

	payload, err := env.SignablePayload()
	if err != nil {
		return fmt.Errorf("serialize envelope: %w", err)
	}
	sig, err := c.enclave.SignMessagePayload(ctx, signer.SignRequest{
		KeyRef:         writer.KeyRef,
		Payload:        string(payload),
		Address:        writer.Address,
		IdempotencyKey: env.Event.IdempotencyKey,
	})
	if err != nil {
		return fail(err)
	}
	env.Signature = sig
	return nil
}

// upsertSignerRegistry publishes the writer's key material to the shared
// service so it can verify signatures independently. Idempotent on the
// remote side; failures propagate rather than silently shipping a write
// the service cannot verify.
func (c *Client) upsertSignerRegistry(ctx context.Context, writer *WriterIdentity) error {
	var ack struct {
		OK bool `json:"ok"`
	}
	return c.do(ctx, http.MethodPost, "/v1/signer/upsert", nil, writer, &ack)
}

// LookupSigner fetches a writer's registered key material from the shared
// service's signer registry.
func (c *Client) LookupSigner(ctx context.Context, writerType, writerID string) (*WriterIdentity, error) {
	var w WriterIdentity
	path := "/v1/signer/" + url.PathEscape(writerType) + "/" + url.PathEscape(writerID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

func (c *Client) sendEnvelope(ctx context.Context, path string, env *Envelope) (*WriteResult, error) {
	var res WriteResult
	if err := c.do(ctx, http.MethodPost, path, nil, env, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// QueryMemory runs a full-text query against the shared service.
func (c *Client) QueryMemory(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	var resp QueryResponse
	if err := c.do(ctx, http.MethodPost, "/v1/memory/query", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetTree fetches the folder/file listing for a domain, optionally
// scoped to a canonical-path prefix.
func (c *Client) GetTree(ctx context.Context, domain, prefix string) ([]TreeNode, error) {
	q := url.Values{"domain": {domain}}
	if prefix != "" {
		q.Set("prefix", prefix)
	}
	var resp struct {
		Tree []TreeNode `json:"tree"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/memory/tree", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tree, nil
}

// GetFile fetches one document plus its outgoing links and backlinks.
func (c *Client) GetFile(ctx context.Context, domain, canonicalPath string) (*FileDoc, error) {
	q := url.Values{"domain": {domain}, "canonicalPath": {canonicalPath}}
	var doc FileDoc
	if err := c.do(ctx, http.MethodGet, "/v1/memory/file", q, nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetGraph fetches the note/ghost graph for a domain.
func (c *Client) GetGraph(ctx context.Context, domain, prefix string, includeUnresolved bool) (*Graph, error) {
	q := url.Values{"domain": {domain}}
	if prefix != "" {
		q.Set("prefix", prefix)
	}
	if includeUnresolved {
		q.Set("includeUnresolved", "true")
	}
	var g Graph
	if err := c.do(ctx, http.MethodGet, "/v1/memory/graph", q, nil, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// ListSyncEvents tails the shared event log. afterCursor is exclusive and
// monotonic; pass the returned NextCursor to continue.
func (c *Client) ListSyncEvents(ctx context.Context, afterCursor int64, limit int) (*SyncEventsPage, error) {
	q := url.Values{
		"afterCursor": {strconv.FormatInt(afterCursor, 10)},
		"limit":       {strconv.Itoa(limit)},
	}
	var page SyncEventsPage
	if err := c.do(ctx, http.MethodGet, "/v1/sync/events", q, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// RunSyncReconcile asks the shared service to process queued merges.
func (c *Client) RunSyncReconcile(ctx context.Context) (*ReconcileResult, error) {
	var res ReconcileResult
	if err := c.do(ctx, http.MethodPost, "/v1/sync/reconcile", nil, struct{}{}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("bridge request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		var remote struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &remote) == nil && remote.Error != "" {
			return fmt.Errorf("bridge: %s", remote.Error)
		}
		return fmt.Errorf("request failed (%d)", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode bridge response: %w", err)
	}
	return nil
}
