package extraction

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/scrypster/mnemex/internal/llm"
)

// MakerConfig tunes the N-way voting fan-out (§4.17).
type MakerConfig struct {
	VoterCount  int           // default 3
	Temperature float64       // default 0.4
	CallTimeout time.Duration // default 20s, per call
}

// Candidate is one microagent's structured response, whether or not it
// passed red-flagging validation.
type Candidate struct {
	Summary   string
	Decisions []string
	Todos     []string
}

// MakerResult is the outcome of one voting round. Candidate is nil when no
// voter produced a valid response (§4.17: "if none, return a null result").
type MakerResult struct {
	Candidate  *Candidate
	ValidCount int
	TotalCount int
}

// rawCandidate is the wire shape a voter call must return.
type rawCandidate struct {
	Summary   string   `json:"summary"`
	Decisions []string `json:"decisions"`
	Todos     []string `json:"todos"`
}

// Run fans out cfg.VoterCount independent calls against sourceText with
// identical prompts and sampling temperature, validates each response, and
// returns the consensus candidate by pairwise overlap voting.
func Run(ctx context.Context, gen llm.TextGenerator, sourceText string, cfg MakerConfig) (*MakerResult, error) {
	if cfg.VoterCount <= 0 {
		cfg.VoterCount = 3
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.4
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 20 * time.Second
	}

	prompt := makerPrompt(sourceText)

	raw := make([]string, cfg.VoterCount)
	errs := make([]error, cfg.VoterCount)
	var wg sync.WaitGroup
	for i := 0; i < cfg.VoterCount; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(ctx, cfg.CallTimeout)
			defer cancel()
			raw[idx], errs[idx] = callVoter(callCtx, gen, prompt, cfg.Temperature)
		}(i)
	}
	wg.Wait()

	var valid []Candidate
	for i, r := range raw {
		if errs[i] != nil {
			continue
		}
		if c, ok := validateCandidate(r); ok {
			valid = append(valid, c)
		}
	}

	result := &MakerResult{ValidCount: len(valid), TotalCount: cfg.VoterCount}
	switch len(valid) {
	case 0:
		return result, nil
	case 1:
		result.Candidate = &valid[0]
		return result, nil
	default:
		winner := vote(valid)
		result.Candidate = &winner
		return result, nil
	}
}

func callVoter(ctx context.Context, gen llm.TextGenerator, prompt string, temperature float64) (string, error) {
	if tg, ok := gen.(llm.TemperatureGenerator); ok {
		return tg.CompleteWithTemperature(ctx, prompt, temperature)
	}
	return gen.Complete(ctx, prompt)
}

// validateCandidate applies the §4.17 red-flagging rules: strip fences,
// parse JSON, bound the summary length, require string arrays, and reject
// responses that are both short and empty of any structured content.
func validateCandidate(response string) (Candidate, bool) {
	var raw rawCandidate
	if err := json.Unmarshal([]byte(extractJSON(response)), &raw); err != nil {
		return Candidate{}, false
	}
	if len(raw.Summary) < 20 || len(raw.Summary) > 1500 {
		return Candidate{}, false
	}
	if len(raw.Summary) < 50 && len(raw.Decisions) == 0 && len(raw.Todos) == 0 {
		return Candidate{}, false
	}
	return Candidate{Summary: raw.Summary, Decisions: raw.Decisions, Todos: raw.Todos}, true
}

// vote selects the candidate with the highest sum of pairwise overlap
// scores against every other valid candidate (§4.17 consensus selection).
func vote(candidates []Candidate) Candidate {
	best := 0
	bestScore := -1.0
	for i := range candidates {
		score := 0.0
		for j := range candidates {
			if i == j {
				continue
			}
			score += overlapScore(candidates[i], candidates[j])
		}
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	return candidates[best]
}

// overlapScore sums Jaccard overlap across decisions, todos, and summary
// tokens for a pair of candidates.
func overlapScore(a, b Candidate) float64 {
	return jaccard(normalizedSet(a.Decisions), normalizedSet(b.Decisions)) +
		jaccard(normalizedSet(a.Todos), normalizedSet(b.Todos)) +
		jaccard(wordSet(normalizeContent(a.Summary)), wordSet(normalizeContent(b.Summary)))
}

func normalizedSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[normalizeContent(it)] = struct{}{}
	}
	return set
}
