// Command mnemex-api exposes a thin HTTP surface over the Context Engine
// (§4.14) and the Memory Extractor ingestion pipeline (§4.16). Routing,
// auth, and workspace CRUD are explicit non-goals (§6) and are expected
// to live in front of this process; the bearer-token check and rate
// limiter here are the same shared-secret hook and golang.org/x/time/rate
// wrapper the teacher's web/handlers/middleware.go uses, not a general
// auth layer.
package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/scrypster/mnemex/internal/apperr"
	"github.com/scrypster/mnemex/internal/chunking"
	mnemexcontext "github.com/scrypster/mnemex/internal/config"
	enginectx "github.com/scrypster/mnemex/internal/context"
	"github.com/scrypster/mnemex/internal/embedcache"
	"github.com/scrypster/mnemex/internal/extraction"
	"github.com/scrypster/mnemex/internal/llm"
	"github.com/scrypster/mnemex/internal/storage"
	"github.com/scrypster/mnemex/internal/storage/postgres"
	"github.com/scrypster/mnemex/internal/storage/sqlite"
	"github.com/scrypster/mnemex/internal/vectorindex/pgvectorindex"
	"github.com/scrypster/mnemex/internal/vectorindex/sqlitevec"
	"github.com/scrypster/mnemex/pkg/types"
)

func main() {
	cfg, err := mnemexcontext.LoadConfig()
	if err != nil {
		log.Fatalf("mnemex-api: loading configuration: %v", err)
	}

	ctx := context.Background()
	store, closeFn, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("mnemex-api: opening store: %v", err)
	}
	defer closeFn()

	embedder, err := llm.NewEmbeddingGenerator(cfg.LLM)
	if err != nil {
		log.Fatalf("mnemex-api: building embedding generator: %v", err)
	}
	textGen, err := llm.NewTextGenerator(cfg.LLM)
	if err != nil {
		log.Fatalf("mnemex-api: building text generator: %v", err)
	}

	cache := embedcache.New(4096, 10*time.Minute)
	engine, err := enginectx.NewEngine(store, embedder, cache, cfg.Database.Dimension, 4000)
	if err != nil {
		log.Fatalf("mnemex-api: building context engine: %v", err)
	}

	profiles, err := extraction.LoadProfiles(cfg.Extraction.ProfilesPath)
	if err != nil {
		log.Fatalf("mnemex-api: loading extraction profiles: %v", err)
	}

	extractor := extraction.New(textGen, extraction.Config{
		MaxTokensPerChunk: cfg.Extraction.MaxTokensPerChunk,
		Strategy:          types.ExtractionStrategy(cfg.Extraction.Strategy),
		OverlapPercentage: cfg.Extraction.OverlapPercentage,
		FailureMode:       types.FailureMode(cfg.Extraction.FailureMode),
		MinConfidence:     cfg.Extraction.MinConfidence,
	})
	ingester := &extraction.Ingester{Extractor: extractor, Embedder: embedder, Store: store}

	srv := &server{
		cfg:      cfg,
		engine:   engine,
		ingester: ingester,
		profiles: profiles,
		limiter:  rate.NewLimiter(rate.Limit(20), 40),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/context", srv.withMiddleware(srv.handleBuildContext))
	mux.HandleFunc("/v1/ingest", srv.withMiddleware(srv.handleIngest))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("mnemex-api listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("mnemex-api: %v", err)
	}
}

type server struct {
	cfg      *mnemexcontext.Config
	engine   *enginectx.Engine
	ingester *extraction.Ingester
	profiles map[string]types.ExtractionProfile
	limiter  *rate.Limiter
}

// withMiddleware applies the shared-secret check and the rate limiter
// ahead of next, mirroring the teacher's RequireAuth/RateLimitMiddleware
// pair without pulling in a routing framework.
func (s *server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Security.SecurityMode != "development" {
			expected := s.cfg.Security.APIToken
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if expected == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r)
	}
}

type buildContextRequest struct {
	Query       string `json:"query"`
	WorkspaceID string `json:"workspace_id"`
	TokenBudget int    `json:"token_budget"`
}

func (s *server) handleBuildContext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req buildContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.engine.BuildContext(r.Context(), req.Query, req.WorkspaceID, enginectx.BuildContextOptions{
		TokenBudget: req.TokenBudget,
	})
	if err != nil {
		writeAppErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type ingestRequest struct {
	WorkspaceID string              `json:"workspace_id"`
	Profile     string              `json:"profile"`
	Conversation conversationPayload `json:"conversation"`
}

type conversationPayload struct {
	ID       string           `json:"id"`
	Messages []messagePayload `json:"messages"`
}

type messagePayload struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var profile *types.ExtractionProfile
	if req.Profile != "" {
		if p, ok := s.profiles[req.Profile]; ok {
			profile = &p
		}
	}

	conv := chunking.Conversation{ID: req.Conversation.ID}
	for _, m := range req.Conversation.Messages {
		conv.Messages = append(conv.Messages, chunking.Message{
			ID: m.ID, Role: m.Role, Content: m.Content, Timestamp: m.Timestamp,
		})
	}

	result, err := s.ingester.IngestConversation(r.Context(), req.WorkspaceID, conv, profile)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeAppErr(w http.ResponseWriter, err error) {
	status := 500
	if ae, ok := err.(*apperr.Error); ok {
		status = apperr.HTTPStatus(ae.Kind)
	}
	writeError(w, status, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// openStore mirrors cmd/mnemex-lifecycled's backend selection.
func openStore(ctx context.Context, cfg *mnemexcontext.Config) (storage.MemoryStore, func(), error) {
	if cfg.Database.Engine == "postgres" {
		adapter, err := postgres.Open(ctx, cfg.Database.DSN, cfg.Database.Dimension)
		if err != nil {
			return nil, nil, err
		}
		var index *pgvectorindex.Index
		if adapter.PgvectorAvailable {
			index = pgvectorindex.New(adapter.DB(), cfg.Database.Dimension)
		}
		return postgres.NewMemoryStore(adapter, index), func() { adapter.Close() }, nil
	}

	adapter, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		return nil, nil, err
	}
	index, err := sqlitevec.New(ctx, adapter.DB(), cfg.Database.Dimension)
	if err != nil {
		log.Printf("mnemex-api: sqlite-vec unavailable, continuing without vector search: %v", err)
		index = nil
	}
	return sqlite.NewMemoryStore(adapter, index), func() { adapter.Close() }, nil
}
