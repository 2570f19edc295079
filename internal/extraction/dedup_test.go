package extraction

import "testing"

func TestDeduplicate_MergesSimilarSameTypedMemories(t *testing.T) {
	memories := []ExtractedMemory{
		{TempID: "c0:m1", Type: "decision", Content: "we will use postgres for storage", Confidence: 0.7, SourceChunks: []int{0}},
		{TempID: "c1:m1", Type: "decision", Content: "we will use postgres for storage", Confidence: 0.9, SourceChunks: []int{1}},
	}

	survivors, _ := deduplicate(memories, nil)
	if len(survivors) != 1 {
		t.Fatalf("expected identical memories to merge into 1, got %d", len(survivors))
	}
	if survivors[0].Confidence != 0.9 {
		t.Errorf("surviving memory must keep the highest confidence, got %v", survivors[0].Confidence)
	}
	if len(survivors[0].SourceChunks) != 2 {
		t.Errorf("surviving memory must record both source chunks, got %v", survivors[0].SourceChunks)
	}
}

func TestDeduplicate_KeepsDifferentTypesSeparate(t *testing.T) {
	memories := []ExtractedMemory{
		{TempID: "c0:m1", Type: "decision", Content: "use postgres", Confidence: 0.9, SourceChunks: []int{0}},
		{TempID: "c0:m2", Type: "concept", Content: "use postgres", Confidence: 0.9, SourceChunks: []int{0}},
	}

	survivors, _ := deduplicate(memories, nil)
	if len(survivors) != 2 {
		t.Errorf("memories of different types must never merge, got %d survivors", len(survivors))
	}
}

func TestDeduplicate_RewritesRelationshipsAndDropsOrphans(t *testing.T) {
	memories := []ExtractedMemory{
		{TempID: "c0:m1", Type: "decision", Content: "use postgres for storage", Confidence: 0.9, SourceChunks: []int{0}},
		{TempID: "c1:m1", Type: "decision", Content: "use postgres for storage", Confidence: 0.8, SourceChunks: []int{1}},
		{TempID: "c0:m2", Type: "concept", Content: "storage layer", Confidence: 0.9, SourceChunks: []int{0}},
	}
	relationships := []ExtractedRelationship{
		{FromTempID: "c1:m1", ToTempID: "c0:m2", RelationshipType: "relates_to", Confidence: 0.8},
		{FromTempID: "c0:m1", ToTempID: "c9:missing", RelationshipType: "relates_to", Confidence: 0.5},
	}

	survivors, rewritten := deduplicate(memories, relationships)
	if len(survivors) != 2 {
		t.Fatalf("expected 2 surviving memories, got %d", len(survivors))
	}
	if len(rewritten) != 1 {
		t.Fatalf("expected 1 surviving relationship (orphan dropped), got %d", len(rewritten))
	}
	if rewritten[0].FromTempID != "c0:m1" {
		t.Errorf("relationship must be rewritten onto the surviving memory's temp ID, got %s", rewritten[0].FromTempID)
	}
}

func TestJaccard_EmptySetsAreIdentical(t *testing.T) {
	if jaccard(map[string]struct{}{}, map[string]struct{}{}) != 1 {
		t.Error("two empty sets must have similarity 1")
	}
}

func TestJaccard_Disjoint(t *testing.T) {
	a := wordSet("alpha beta")
	b := wordSet("gamma delta")
	if jaccard(a, b) != 0 {
		t.Error("disjoint sets must have similarity 0")
	}
}
