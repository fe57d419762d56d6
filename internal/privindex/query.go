package privindex

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/fleetworks/quartermaster/internal/config"
	"github.com/fleetworks/quartermaster/internal/embedding"
)

// Mode selects the ranking strategy for a query.
type Mode string

const (
	ModeHybrid  Mode = "hybrid"
	ModeLexical Mode = "lexical"
)

// Citation is one ranked chunk hit. ID is a rank label reassigned on
// every response, not a stable identity.
type Citation struct {
	ID            string  `json:"id"`
	Path          string  `json:"path"`
	Title         string  `json:"title"`
	Excerpt       string  `json:"excerpt"`
	Score         float64 `json:"score"`
	LexicalScore  float64 `json:"lexicalScore"`
	SemanticScore float64 `json:"semanticScore"`
}

// QueryResult carries ranked citations plus the mode that actually ran.
// FallbackUsed reports that semantic ranking silently degraded.
type QueryResult struct {
	Citations    []Citation `json:"citations"`
	Mode         Mode       `json:"mode"`
	FallbackUsed bool       `json:"fallbackUsed"`
}

// Ranking weights. Exact values are kept for compatibility with prior
// indexes and are tunable policy, not structural.
const (
	hybridLexicalWeight  = 0.44
	hybridSemanticWeight = 0.44
	lexicalOnlyWeight    = 0.92
	pathBonus            = 0.12
	titleBonus           = 0.10
)

// ClampTopK bounds a requested result count, applying the default when
// the caller passes zero or less.
func ClampTopK(k int) int {
	if k <= 0 {
		return config.DefaultTopK
	}
	if k > config.MaxTopK {
		return config.MaxTopK
	}
	return k
}

// Query ranks chunks from a recent-first candidate window against the
// query. Hybrid mode embeds the query and blends cosine similarity with
// lexical token matching; if embedding is unavailable it falls back to
// lexical scoring and sets FallbackUsed.
func (ix *Index) Query(ctx context.Context, query string, k int, mode Mode) (QueryResult, error) {
	k = ClampTopK(k)
	if mode != ModeLexical {
		mode = ModeHybrid
	}

	tokens := tokenize(query)
	if len(tokens) == 0 {
		return QueryResult{
			Citations:    []Citation{},
			Mode:         modeRun(mode, mode == ModeHybrid),
			FallbackUsed: mode == ModeHybrid,
		}, nil
	}

	var queryVec []float32
	fallback := false
	if mode == ModeHybrid {
		if ix.cfg.Provider == nil {
			fallback = true
		} else {
			vec, err := ix.cfg.Provider.EmbedQuery(ctx, query)
			if err != nil {
				fallback = true
			} else {
				queryVec = vec
			}
		}
	}

	chunks, err := ix.cfg.DB.RecentChunks(config.CandidateWindow)
	if err != nil {
		return QueryResult{}, err
	}

	queryLower := strings.ToLower(query)
	scored := make([]Citation, 0, len(chunks))
	for _, c := range chunks {
		lex := lexicalScore(tokens, c.NormalizedContent)

		var sem float64
		if queryVec != nil && len(c.Embedding) > 0 {
			sem = embedding.Cosine(queryVec, c.Embedding)
		}

		bonus := 0.0
		if strings.Contains(strings.ToLower(c.JoinedPath), queryLower) {
			bonus = pathBonus
		} else if strings.Contains(strings.ToLower(c.DocTitle), queryLower) {
			bonus = titleBonus
		}

		var score float64
		if queryVec != nil && len(c.Embedding) > 0 {
			score = lex*hybridLexicalWeight + sem*hybridSemanticWeight + bonus
		} else {
			score = lex*lexicalOnlyWeight + bonus
		}
		if score <= 0 {
			continue
		}

		scored = append(scored, Citation{
			Path:          c.JoinedPath,
			Title:         c.DocTitle,
			Excerpt:       excerpt(c.Content),
			Score:         score,
			LexicalScore:  lex,
			SemanticScore: sem,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > k {
		scored = scored[:k]
	}
	RelabelCitations(scored)

	return QueryResult{
		Citations:    scored,
		Mode:         modeRun(mode, fallback),
		FallbackUsed: fallback,
	}, nil
}

// SearchResult is a per-document hit with its best excerpt and the
// chunk-level citations that produced it.
type SearchResult struct {
	Path      string     `json:"path"`
	Title     string     `json:"title"`
	Excerpt   string     `json:"excerpt"`
	Score     float64    `json:"score"`
	Citations []Citation `json:"citations"`
}

// Search groups chunk citations by document, keeps the best excerpt per
// document, re-sorts by best score, and truncates to k documents.
func (ix *Index) Search(ctx context.Context, query string, k int, mode Mode) ([]SearchResult, QueryResult, error) {
	k = ClampTopK(k)
	res, err := ix.Query(ctx, query, config.MaxTopK, mode)
	if err != nil {
		return nil, QueryResult{}, err
	}

	byPath := make(map[string]*SearchResult)
	var order []string
	for _, c := range res.Citations {
		sr, ok := byPath[c.Path]
		if !ok {
			sr = &SearchResult{Path: c.Path, Title: c.Title, Excerpt: c.Excerpt, Score: c.Score}
			byPath[c.Path] = sr
			order = append(order, c.Path)
		}
		if c.Score > sr.Score {
			sr.Score = c.Score
			sr.Excerpt = c.Excerpt
		}
		sr.Citations = append(sr.Citations, c)
	}

	out := make([]SearchResult, 0, len(order))
	for _, p := range order {
		out = append(out, *byPath[p])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > k {
		out = out[:k]
	}
	return out, res, nil
}

// RelabelCitations reassigns rank labels S1..Sn in slice order.
func RelabelCitations(cits []Citation) {
	for i := range cits {
		cits[i].ID = "S" + strconv.Itoa(i+1)
	}
}

// lexicalScore is the fraction of query tokens present as substrings in
// normalized chunk content.
func lexicalScore(tokens []string, normalized string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	matched := 0
	for _, t := range tokens {
		if strings.Contains(normalized, t) {
			matched++
		}
	}
	return float64(matched) / float64(len(tokens))
}

func excerpt(content string) string {
	content = strings.TrimSpace(content)
	if len(content) <= config.MaxExcerptLength {
		return content
	}
	cut := config.MaxExcerptLength
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut] + "…"
}

func modeRun(requested Mode, fallback bool) Mode {
	if requested == ModeLexical || fallback {
		return ModeLexical
	}
	return ModeHybrid
}
