package extraction

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/mnemex/internal/chunking"
	"github.com/scrypster/mnemex/internal/llm"
	"github.com/scrypster/mnemex/internal/storage"
	"github.com/scrypster/mnemex/pkg/types"
)

// Ingester turns a conversation into stored memories and relationships: it
// runs the Extractor, assigns each surviving ExtractedMemory a real memory
// ID and embedding, and persists everything through the MemoryStore façade.
// Grounded on the teacher's EnrichmentService.EnrichMemory orchestration
// (extract, then embed, then persist), generalized from one memory at a
// time to a whole conversation's worth at once.
type Ingester struct {
	Extractor *Extractor
	Embedder  llm.EmbeddingGenerator // nil skips embedding generation
	Store     storage.MemoryStore
}

// IngestResult reports what an IngestConversation call produced.
type IngestResult struct {
	ExtractionStatus types.ExtractionStatus
	MemoriesCreated  int
	RelationshipsMade int
	ChunkErrors      []ChunkError
}

// IngestConversation extracts memories and relationships from conv, stores
// each memory with its embedding (if an Embedder is configured), and links
// the relationships between them.
func (in *Ingester) IngestConversation(ctx context.Context, workspaceID string, conv chunking.Conversation, profile *types.ExtractionProfile) (*IngestResult, error) {
	result, err := in.Extractor.Extract(ctx, conv, profile)
	if err != nil {
		return nil, fmt.Errorf("ingest: extraction failed: %w", err)
	}

	idMap := make(map[string]string, len(result.Memories))
	created := 0
	for _, em := range result.Memories {
		mem := types.DefaultMemory()
		mem.ID = uuid.NewString()
		mem.WorkspaceID = workspaceID
		mem.ConversationID = conv.ID
		mem.Type = em.Type
		mem.Content = em.Content
		mem.Confidence = em.Confidence

		var embedding []float32
		if in.Embedder != nil {
			embedding, err = in.Embedder.Embed(ctx, em.Content)
			if err != nil {
				result.ChunkErrors = append(result.ChunkErrors, ChunkError{Err: fmt.Errorf("embedding memory %q: %w", em.TempID, err)})
				continue
			}
		}

		if err := in.Store.CreateMemory(ctx, &mem, embedding); err != nil {
			result.ChunkErrors = append(result.ChunkErrors, ChunkError{Err: fmt.Errorf("storing memory %q: %w", em.TempID, err)})
			continue
		}
		idMap[em.TempID] = mem.ID
		created++
	}

	linked := 0
	for _, rel := range result.Relationships {
		fromID, fromOK := idMap[rel.FromTempID]
		toID, toOK := idMap[rel.ToTempID]
		if !fromOK || !toOK {
			continue
		}
		r := types.Relationship{
			ID:               uuid.NewString(),
			FromMemoryID:     fromID,
			ToMemoryID:       toID,
			RelationshipType: rel.RelationshipType,
			Confidence:       rel.Confidence,
			CreatedAt:        time.Now(),
		}
		if err := in.Store.CreateRelationship(ctx, &r); err != nil {
			result.ChunkErrors = append(result.ChunkErrors, ChunkError{Err: fmt.Errorf("storing relationship %s->%s: %w", fromID, toID, err)})
			continue
		}
		linked++
	}

	return &IngestResult{
		ExtractionStatus:  result.Status,
		MemoriesCreated:   created,
		RelationshipsMade: linked,
		ChunkErrors:       result.ChunkErrors,
	}, nil
}
