package bridge

// Operation names for write envelopes.
const (
	OpUpsert = "upsert"
	OpDelete = "delete"
	OpMove   = "move"
	OpMerge  = "merge"
)

// Writer types recorded in envelope metadata.
const (
	WriterAgent  = "agent"
	WriterUser   = "user"
	WriterSystem = "system"
)

// WriterIdentity names the signer behind a write. Provisioned once per
// (writerType, writerId) pair and reused afterwards.
type WriterIdentity struct {
	WriterType string `json:"writerType"`
	WriterID   string `json:"writerId"`
	KeyRef     string `json:"keyRef"`
	Address    string `json:"address"`
	Key        string `json:"key,omitempty"`
}

// Metadata is the envelope metadata block.
type Metadata struct {
	Tags              []string `json:"tags,omitempty"`
	Citations         []string `json:"citations,omitempty"`
	Source            string   `json:"source,omitempty"`
	WriterType        string   `json:"writerType"`
	WriterID          string   `json:"writerId"`
	FromCanonicalPath string   `json:"fromCanonicalPath,omitempty"`
}

// Event carries per-envelope ordering and idempotency state.
type Event struct {
	SourceCoreID   string `json:"sourceCoreId"`
	SourceSeq      int64  `json:"sourceSeq"`
	OccurredAt     string `json:"occurredAt"`
	IdempotencyKey string `json:"idempotencyKey"`
}

// WriteResult is the remote service's acknowledgment of one envelope.
// Duplicate means the idempotency key was already seen and the write
// short-circuited; callers treat it as success. MergeQueued means a
// conflict was deferred to async reconciliation.
type WriteResult struct {
	EventID     string `json:"eventId"`
	Duplicate   bool   `json:"duplicate"`
	MergeQueued bool   `json:"mergeQueued"`
}

// RemoteCitation is one ranked hit from the shared service. Paths are
// canonical; the retrieval layer maps them back to joined paths.
type RemoteCitation struct {
	ID            string  `json:"id"`
	CanonicalPath string  `json:"canonicalPath"`
	Title         string  `json:"title"`
	Excerpt       string  `json:"excerpt"`
	Score         float64 `json:"score"`
	LexicalScore  float64 `json:"lexicalScore"`
	SemanticScore float64 `json:"semanticScore"`
}

// RemoteResult is a per-document hit carrying its chunk sub-citations.
type RemoteResult struct {
	RemoteCitation
	Citations []RemoteCitation `json:"citations,omitempty"`
}

// QueryRequest scopes a full-text query against the shared service.
type QueryRequest struct {
	Query  string `json:"query"`
	Domain string `json:"domain,omitempty"`
	Prefix string `json:"prefix,omitempty"`
	K      int    `json:"k,omitempty"`
	Mode   string `json:"mode,omitempty"`
}

// QueryResponse carries ranked results plus degradation flags.
type QueryResponse struct {
	Results      []RemoteResult `json:"results"`
	Mode         string         `json:"mode"`
	FallbackUsed bool           `json:"fallbackUsed"`
}

// TreeNode is one node of a domain's folder/file listing.
type TreeNode struct {
	Type          string     `json:"type"`
	Name          string     `json:"name"`
	CanonicalPath string     `json:"canonicalPath,omitempty"`
	Children      []TreeNode `json:"children,omitempty"`
}

// FileDoc is a single document with its resolved link sets.
type FileDoc struct {
	CanonicalPath   string   `json:"canonicalPath"`
	Title           string   `json:"title"`
	ContentMarkdown string   `json:"contentMarkdown"`
	Links           []string `json:"links,omitempty"`
	Backlinks       []string `json:"backlinks,omitempty"`
}

// GraphNode is a note or ghost node in the link graph. Ghost nodes are
// link targets with no backing document.
type GraphNode struct {
	ID            string `json:"id"`
	CanonicalPath string `json:"canonicalPath"`
	Title         string `json:"title"`
	Ghost         bool   `json:"ghost"`
}

// GraphEdge is a directed link between two nodes.
type GraphEdge struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Resolved bool   `json:"resolved"`
}

// GraphStats aggregates a graph's node and edge counts.
type GraphStats struct {
	Notes      int `json:"notes"`
	Ghosts     int `json:"ghosts"`
	Edges      int `json:"edges"`
	Unresolved int `json:"unresolved"`
}

// Graph is a domain's note/ghost graph.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
	Stats GraphStats  `json:"stats"`
}

// SyncEvent is one entry from the shared service's event log.
type SyncEvent struct {
	Cursor        int64  `json:"cursor"`
	EventID       string `json:"eventId"`
	Operation     string `json:"operation"`
	Domain        string `json:"domain"`
	CanonicalPath string `json:"canonicalPath"`
	OccurredAt    string `json:"occurredAt"`
}

// SyncEventsPage is one page of the event log. NextCursor is monotonic
// and feeds the next call's afterCursor.
type SyncEventsPage struct {
	Events     []SyncEvent `json:"events"`
	NextCursor int64       `json:"nextCursor"`
}

// ReconcileResult summarizes one reconciliation pass over queued merges.
type ReconcileResult struct {
	Applied   int `json:"applied"`
	Remaining int `json:"remaining"`
}
