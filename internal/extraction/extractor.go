// Package extraction implements the Memory Extractor (§4.16) and the MAKER
// reliability layer (§4.17). Grounded on the teacher's
// internal/engine/enrichment_service.go + enrichment_pipeline.go per-chunk
// extraction-then-merge shape, adapted from a fixed two-call
// entity/relationship pipeline per memory into a generic N-chunk
// memory+relationship pipeline per conversation, with the teacher's
// DeduplicateChunks content-identity idiom generalized to similarity-
// threshold identity across chunks.
package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/scrypster/mnemex/internal/chunking"
	"github.com/scrypster/mnemex/internal/llm"
	"github.com/scrypster/mnemex/pkg/types"
)

// ExtractedMemory is one memory surfaced from a chunk, keyed by a temp ID
// local to that chunk until cross-chunk dedup assigns it a surviving ID.
type ExtractedMemory struct {
	TempID       string
	Type         string
	Content      string
	Confidence   float64
	SourceChunks []int
}

// ExtractedRelationship references two ExtractedMemory temp IDs, rewritten
// to surviving IDs (or dropped) during dedup.
type ExtractedRelationship struct {
	FromTempID       string
	ToTempID         string
	RelationshipType string
	Confidence       float64
}

// ChunkError records a single chunk's extraction failure; surfaced when
// FailureMode is continue-on-error.
type ChunkError struct {
	ChunkIndex int
	Err        error
}

func (e ChunkError) Error() string {
	return fmt.Sprintf("chunk %d: %v", e.ChunkIndex, e.Err)
}

// Result is the outcome of one Extract call across every chunk of a
// conversation.
type Result struct {
	Status        types.ExtractionStatus
	Memories      []ExtractedMemory
	Relationships []ExtractedRelationship
	ChunkErrors   []ChunkError
}

// Config carries the Memory Extractor's tunables, sourced from
// config.ExtractionConfig and overridable per call by an
// types.ExtractionProfile (§4.16 step 6).
type Config struct {
	MaxTokensPerChunk int
	Strategy          types.ExtractionStrategy
	OverlapPercentage float64
	FailureMode       types.FailureMode
	MinConfidence     float64
	MemoryTypes       []string // restrict extraction to these types, if set
}

// dedupSimilarityThreshold is the Jaccard word-overlap bar two same-typed
// memories from different chunks must clear to be considered the same
// underlying fact (§4.16 step 4).
const dedupSimilarityThreshold = 0.8

// Extractor runs the Conversation Chunker, then the chosen extraction
// strategy per chunk, then cross-chunk dedup.
type Extractor struct {
	LLM    llm.TextGenerator
	Config Config
}

// New builds an Extractor, filling in documented defaults for zero fields.
func New(gen llm.TextGenerator, cfg Config) *Extractor {
	if cfg.MaxTokensPerChunk <= 0 {
		cfg.MaxTokensPerChunk = 2000
	}
	if cfg.Strategy == "" {
		cfg.Strategy = types.StrategySlidingWindow
	}
	if cfg.OverlapPercentage <= 0 {
		cfg.OverlapPercentage = 0.15
	}
	if cfg.FailureMode == "" {
		cfg.FailureMode = types.FailureModeContinueOnError
	}
	return &Extractor{LLM: gen, Config: cfg}
}

// Extract runs the full pipeline: chunk, per-chunk extraction, cross-chunk
// dedup. profile, if non-nil, overrides Config for this call only (§4.16
// step 6); callers apply call-time options on top of profile themselves
// before invoking Extract.
func (e *Extractor) Extract(ctx context.Context, conv chunking.Conversation, profile *types.ExtractionProfile) (*Result, error) {
	cfg := e.Config
	if profile != nil {
		if profile.Strategy != "" {
			cfg.Strategy = profile.Strategy
		}
		if profile.MinConfidence > 0 {
			cfg.MinConfidence = profile.MinConfidence
		}
		if len(profile.MemoryTypes) > 0 {
			cfg.MemoryTypes = profile.MemoryTypes
		}
	}

	chunker := chunking.New(chunking.Config{
		Enabled:           true,
		MaxTokensPerChunk: cfg.MaxTokensPerChunk,
		Strategy:          cfg.Strategy,
		OverlapPercentage: cfg.OverlapPercentage,
	})
	chunks, err := chunker.Chunk(conv)
	if err != nil {
		return nil, fmt.Errorf("extraction: chunking failed: %w", err)
	}

	var allMemories []ExtractedMemory
	var allRelationships []ExtractedRelationship
	var chunkErrors []ChunkError
	chunksSucceeded := 0

	for _, chunk := range chunks {
		mems, rels, err := e.extractChunk(ctx, chunk, cfg)
		if err != nil {
			chunkErrors = append(chunkErrors, ChunkError{ChunkIndex: chunk.Index, Err: err})
			if cfg.FailureMode == types.FailureModeFailFast {
				break
			}
			continue
		}
		chunksSucceeded++
		allMemories = append(allMemories, mems...)
		allRelationships = append(allRelationships, rels...)
	}

	memories, relationships := deduplicate(allMemories, allRelationships)

	var status types.ExtractionStatus
	switch {
	case len(chunkErrors) == 0:
		status = types.ExtractionSuccess
	case chunksSucceeded == 0:
		status = types.ExtractionFailed
	default:
		status = types.ExtractionPartial
	}

	return &Result{
		Status:        status,
		Memories:      memories,
		Relationships: relationships,
		ChunkErrors:   chunkErrors,
	}, nil
}

// chunkExtraction mirrors the LLM's raw JSON response shape for one chunk.
type chunkExtraction struct {
	Memories []struct {
		ID         string  `json:"id"`
		Type       string  `json:"type"`
		Content    string  `json:"content"`
		Confidence float64 `json:"confidence"`
	} `json:"memories"`
	Relationships []struct {
		From       string  `json:"from"`
		To         string  `json:"to"`
		Type       string  `json:"type"`
		Confidence float64 `json:"confidence"`
	} `json:"relationships"`
}

func (e *Extractor) extractChunk(ctx context.Context, chunk chunking.Chunk, cfg Config) ([]ExtractedMemory, []ExtractedRelationship, error) {
	var content strings.Builder
	for _, m := range chunk.Messages {
		fmt.Fprintf(&content, "%s: %s\n", m.Role, m.Content)
	}

	response, err := e.LLM.Complete(ctx, extractionPrompt(content.String(), cfg.MemoryTypes))
	if err != nil {
		return nil, nil, fmt.Errorf("llm completion failed: %w", err)
	}

	var parsed chunkExtraction
	if err := json.Unmarshal([]byte(extractJSON(response)), &parsed); err != nil {
		return nil, nil, fmt.Errorf("failed to parse extraction response: %w", err)
	}

	var memories []ExtractedMemory
	for _, m := range parsed.Memories {
		if m.Confidence < cfg.MinConfidence {
			continue
		}
		if !types.IsValidMemoryType(m.Type) {
			continue
		}
		memories = append(memories, ExtractedMemory{
			TempID:       chunkLocalID(chunk.Index, m.ID),
			Type:         m.Type,
			Content:      strings.TrimSpace(m.Content),
			Confidence:   m.Confidence,
			SourceChunks: []int{chunk.Index},
		})
	}

	var relationships []ExtractedRelationship
	for _, r := range parsed.Relationships {
		relationships = append(relationships, ExtractedRelationship{
			FromTempID:       chunkLocalID(chunk.Index, r.From),
			ToTempID:         chunkLocalID(chunk.Index, r.To),
			RelationshipType: r.Type,
			Confidence:       r.Confidence,
		})
	}

	return memories, relationships, nil
}

func chunkLocalID(chunkIndex int, localID string) string {
	return fmt.Sprintf("c%d:%s", chunkIndex, localID)
}
