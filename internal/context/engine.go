package context

import (
	"context"
	"fmt"

	"github.com/scrypster/mnemex/internal/apperr"
	"github.com/scrypster/mnemex/internal/embedcache"
	"github.com/scrypster/mnemex/internal/llm"
	"github.com/scrypster/mnemex/internal/storage"
	"github.com/scrypster/mnemex/pkg/types"
)

// DefaultRanker is the name every Engine registers its default RankWeights
// under; like DefaultTemplate, it is reserved and cannot be re-registered.
const DefaultRanker = "default"

// SearchOptions tunes Search and SearchByVector (§4.14).
type SearchOptions struct {
	Limit           int
	Types           []string
	MinConfidence   float64
	ExpandDepth     int
	IncludeArchived bool
	RankerName      string
	RankWeights     *RankWeights
}

// BuildContextOptions layers token-budget and template selection on top of
// a search.
type BuildContextOptions struct {
	SearchOptions
	TokenBudget  int
	TemplateName string
}

// ContextResult is BuildContext's envelope (§4.14 buildContext).
type ContextResult struct {
	Context    string
	Memories   []types.Memory
	TokenCount int
	Truncated  bool
	Template   string
}

// Engine is the Context Engine façade: embedding (via cache) + vector
// search + store hydration + relationship expansion + ranking + formatting.
// Grounded on the teacher's search_orchestrator.go, which wires the same
// chain of collaborators behind a single entry point.
type Engine struct {
	store        storage.MemoryStore
	embedder     llm.EmbeddingGenerator
	cache        *embedcache.Cache
	embeddingDim int
	defaultBudget int
	formatter    *Formatter

	templates map[string]Template
	rankers   map[string]*Ranker
}

// NewEngine builds a Context Engine. embedder may be nil for deployments
// that only ever call SearchByVector directly, and cache may be nil, in
// which case every query is embedded afresh; store is required. Constructor validation mirrors §4.14's error taxonomy: store
// presence, a positive embedding dimension (used to validate query vectors
// later), a positive default token budget, and the default template/ranker
// being present (they always are, immediately after construction).
func NewEngine(store storage.MemoryStore, embedder llm.EmbeddingGenerator, cache *embedcache.Cache, embeddingDim, defaultTokenBudget int) (*Engine, error) {
	const op = "context.NewEngine"
	if store == nil {
		return nil, apperr.New(apperr.KindValidation, op, "store is required")
	}
	if embeddingDim <= 0 {
		return nil, apperr.New(apperr.KindValidation, op, "embeddingDim must be positive")
	}
	if defaultTokenBudget <= 0 {
		return nil, apperr.New(apperr.KindValidation, op, "defaultTokenBudget must be positive")
	}

	tokenizer := ApproxTokenizer{}
	e := &Engine{
		store:         store,
		embedder:      embedder,
		cache:         cache,
		embeddingDim:  embeddingDim,
		defaultBudget: defaultTokenBudget,
		formatter:     NewFormatter(tokenizer),
		templates:     map[string]Template{DefaultTemplate: NewDefaultTemplate()},
		rankers:       map[string]*Ranker{DefaultRanker: NewRanker(DefaultRankWeights)},
	}
	return e, nil
}

// RegisterTemplate adds a named template. The default name is reserved and
// names must be unique.
func (e *Engine) RegisterTemplate(name string, tmpl Template) error {
	const op = "context.RegisterTemplate"
	if name == "" {
		return apperr.New(apperr.KindValidation, op, "name is required")
	}
	if name == DefaultTemplate {
		return apperr.New(apperr.KindValidation, op, "template name \"default\" is reserved")
	}
	if _, exists := e.templates[name]; exists {
		return apperr.New(apperr.KindConflict, op, fmt.Sprintf("template %q already registered", name))
	}
	tmpl.Name = name
	e.templates[name] = tmpl
	return nil
}

// RegisterRanker adds a named ranker built from weights. The default name
// is reserved and names must be unique.
func (e *Engine) RegisterRanker(name string, weights RankWeights) error {
	const op = "context.RegisterRanker"
	if name == "" {
		return apperr.New(apperr.KindValidation, op, "name is required")
	}
	if name == DefaultRanker {
		return apperr.New(apperr.KindValidation, op, "ranker name \"default\" is reserved")
	}
	if _, exists := e.rankers[name]; exists {
		return apperr.New(apperr.KindConflict, op, fmt.Sprintf("ranker %q already registered", name))
	}
	e.rankers[name] = NewRanker(weights)
	return nil
}

// Search embeds queryText (via the embedding cache) and delegates to
// SearchByVector.
func (e *Engine) Search(ctx context.Context, queryText, workspaceID string, opts SearchOptions) ([]Ranked, error) {
	const op = "context.Search"
	if queryText == "" {
		return nil, apperr.New(apperr.KindValidation, op, "queryText is required")
	}
	if workspaceID == "" {
		return nil, apperr.New(apperr.KindValidation, op, "workspaceID is required")
	}
	if e.embedder == nil {
		return nil, apperr.New(apperr.KindValidation, op, "no embedding generator configured")
	}

	vector, err := e.embed(ctx, queryText)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindEmbedding, op, err)
	}
	return e.SearchByVector(ctx, vector, workspaceID, opts)
}

func (e *Engine) embed(ctx context.Context, text string) ([]float32, error) {
	model := e.embedder.GetModel()
	if e.cache != nil {
		if v, ok := e.cache.Get(model, text); ok {
			return v, nil
		}
	}
	v, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Put(model, text, v)
	}
	return v, nil
}

// SearchByVector runs the vector search directly, skipping the embedding
// step; useful when the caller already holds a query vector (e.g. a
// similar-memories lookup seeded from an existing memory's own embedding).
func (e *Engine) SearchByVector(ctx context.Context, vector []float32, workspaceID string, opts SearchOptions) ([]Ranked, error) {
	const op = "context.SearchByVector"
	if workspaceID == "" {
		return nil, apperr.New(apperr.KindValidation, op, "workspaceID is required")
	}
	if len(vector) == 0 {
		return nil, apperr.New(apperr.KindValidation, op, "vector must be non-empty")
	}
	if len(vector) != e.embeddingDim {
		return nil, apperr.New(apperr.KindValidation, op, fmt.Sprintf("vector has dimension %d, want %d", len(vector), e.embeddingDim))
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	hits, err := e.store.SearchMemories(ctx, workspaceID, storage.SearchParams{
		Vector:          vector,
		Limit:           limit,
		Types:           opts.Types,
		IncludeArchived: opts.IncludeArchived,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, op, err)
	}

	seen := make(map[string]bool, len(hits))
	var candidates []Candidate
	for _, h := range hits {
		if h.Memory.Confidence < opts.MinConfidence {
			continue
		}
		if seen[h.Memory.ID] {
			continue
		}
		seen[h.Memory.ID] = true
		candidates = append(candidates, Candidate{Memory: h.Memory, Similarity: h.Similarity})
	}

	if opts.ExpandDepth > 0 && len(candidates) > 0 {
		seeds := make([]string, len(candidates))
		for i, c := range candidates {
			seeds[i] = c.Memory.ID
		}
		expanded, err := expandRelationships(ctx, e.store, seeds, opts.ExpandDepth)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindStorage, op, err)
		}
		for _, id := range expanded {
			if seen[id] {
				continue
			}
			seen[id] = true
			mem, err := e.store.GetMemory(ctx, id, workspaceID)
			if err != nil || mem == nil {
				continue
			}
			candidates = append(candidates, Candidate{Memory: *mem, Similarity: 0})
		}
	}

	ranker := e.rankers[DefaultRanker]
	if opts.RankerName != "" {
		r, ok := e.rankers[opts.RankerName]
		if !ok {
			return nil, apperr.New(apperr.KindValidation, op, fmt.Sprintf("unknown ranker %q", opts.RankerName))
		}
		ranker = r
	}
	if opts.RankWeights != nil {
		ranker = NewRanker(*opts.RankWeights)
	}

	return ranker.Rank(candidates), nil
}

// BuildContext searches, then formats the ranked results into a
// token-budgeted text block (§4.14 buildContext).
func (e *Engine) BuildContext(ctx context.Context, queryText, workspaceID string, opts BuildContextOptions) (*ContextResult, error) {
	const op = "context.BuildContext"
	ranked, err := e.Search(ctx, queryText, workspaceID, opts.SearchOptions)
	if err != nil {
		return nil, err
	}

	tmplName := opts.TemplateName
	if tmplName == "" {
		tmplName = DefaultTemplate
	}
	tmpl, ok := e.templates[tmplName]
	if !ok {
		return nil, apperr.New(apperr.KindTemplateMissing, op, fmt.Sprintf("template %q not registered", tmplName))
	}

	budget := opts.TokenBudget
	if budget <= 0 {
		budget = e.defaultBudget
	}

	memories := make([]types.Memory, len(ranked))
	scores := make([]float64, len(ranked))
	for i, r := range ranked {
		memories[i] = r.Memory
		scores[i] = r.Rank
	}

	result := e.formatter.Format(memories, scores, tmpl, budget)
	return &ContextResult{
		Context:    result.Context,
		Memories:   result.Memories,
		TokenCount: result.TokenCount,
		Truncated:  result.Truncated,
		Template:   result.Template,
	}, nil
}
