package extraction

import "strings"

// deduplicate collapses same-typed memories across chunks whose normalized
// content matches within dedupSimilarityThreshold, keeps the highest
// confidence survivor, records every contributing chunk, and rewrites
// relationships onto the surviving temp IDs, dropping any relationship
// whose endpoint didn't survive (§4.16 step 4).
func deduplicate(memories []ExtractedMemory, relationships []ExtractedRelationship) ([]ExtractedMemory, []ExtractedRelationship) {
	remap := make(map[string]string, len(memories))
	var survivors []ExtractedMemory

	for _, m := range memories {
		merged := false
		for i := range survivors {
			if survivors[i].Type != m.Type {
				continue
			}
			if jaccardWords(survivors[i].Content, m.Content) < dedupSimilarityThreshold {
				continue
			}
			survivors[i].SourceChunks = append(survivors[i].SourceChunks, m.SourceChunks...)
			if m.Confidence > survivors[i].Confidence {
				survivors[i].Content = m.Content
				survivors[i].Confidence = m.Confidence
			}
			remap[m.TempID] = survivors[i].TempID
			merged = true
			break
		}
		if !merged {
			remap[m.TempID] = m.TempID
			survivors = append(survivors, m)
		}
	}

	var rewritten []ExtractedRelationship
	for _, r := range relationships {
		from, fromOK := remap[r.FromTempID]
		to, toOK := remap[r.ToTempID]
		if !fromOK || !toOK {
			continue
		}
		r.FromTempID = from
		r.ToTempID = to
		rewritten = append(rewritten, r)
	}

	return survivors, rewritten
}

func normalizeContent(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// jaccardWords computes the Jaccard similarity of a's and b's normalized
// word sets.
func jaccardWords(a, b string) float64 {
	setA := wordSet(normalizeContent(a))
	setB := wordSet(normalizeContent(b))
	return jaccard(setA, setB)
}

func wordSet(s string) map[string]struct{} {
	words := strings.Fields(s)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// jaccard computes |a ∩ b| / |a ∪ b|, treating two empty sets as identical.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
