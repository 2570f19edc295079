package extraction

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fanOutMock returns a fixed response per call index, grounded on the
// teacher's multi_call_test.go same-payload fan-out idiom, generalized from
// prompt-variation fan-out to independent-call fan-out.
type fanOutMock struct {
	mu        sync.Mutex
	responses []string
	next      int32
	model     string
}

func (m *fanOutMock) Complete(ctx context.Context, prompt string) (string, error) {
	return m.CompleteWithTemperature(ctx, prompt, 0)
}

func (m *fanOutMock) CompleteWithTemperature(ctx context.Context, prompt string, temperature float64) (string, error) {
	idx := int(atomic.AddInt32(&m.next, 1) - 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if idx >= len(m.responses) {
		return "", nil
	}
	return m.responses[idx], nil
}

func (m *fanOutMock) GetModel() string { return m.model }

const validJSON1 = `{"summary":"The team decided to migrate the auth service to OAuth2 for better security.","decisions":["migrate to oauth2"],"todos":["update docs"]}`
const validJSON2 = `{"summary":"Team decided migrating the auth service to OAuth2 improves security posture.","decisions":["migrate to oauth2"],"todos":["update docs","notify clients"]}`
const validJSON3Outlier = `{"summary":"Unrelated discussion about lunch plans for Friday afternoon in the office kitchen.","decisions":[],"todos":["order pizza"]}`

func TestMaker_PicksConsensusOverOutlier(t *testing.T) {
	mock := &fanOutMock{responses: []string{validJSON1, validJSON2, validJSON3Outlier}}
	result, err := Run(context.Background(), mock, "source text", MakerConfig{VoterCount: 3, CallTimeout: time.Second})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if result.ValidCount != 3 {
		t.Fatalf("expected all 3 candidates to validate, got %d", result.ValidCount)
	}
	if result.Candidate == nil {
		t.Fatal("expected a consensus candidate")
	}
	if !sameSummaryFamily(result.Candidate.Summary) {
		t.Errorf("expected the consensus winner to be one of the two overlapping candidates, got %q", result.Candidate.Summary)
	}
}

func sameSummaryFamily(s string) bool {
	return s == "The team decided to migrate the auth service to OAuth2 for better security." ||
		s == "Team decided migrating the auth service to OAuth2 improves security posture."
}

func TestMaker_ReturnsNullWhenAllInvalid(t *testing.T) {
	mock := &fanOutMock{responses: []string{"not json", "still not json", ""}}
	result, err := Run(context.Background(), mock, "source text", MakerConfig{VoterCount: 3, CallTimeout: time.Second})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if result.Candidate != nil {
		t.Error("expected a nil candidate when no voter produces a valid response")
	}
	if result.ValidCount != 0 {
		t.Errorf("expected 0 valid candidates, got %d", result.ValidCount)
	}
}

func TestMaker_SingleValidSurvivesAlone(t *testing.T) {
	mock := &fanOutMock{responses: []string{validJSON1, "garbage", "{}"}}
	result, err := Run(context.Background(), mock, "source text", MakerConfig{VoterCount: 3, CallTimeout: time.Second})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if result.ValidCount != 1 {
		t.Fatalf("expected exactly 1 valid candidate, got %d", result.ValidCount)
	}
	if result.Candidate == nil {
		t.Fatal("expected the lone valid candidate to survive")
	}
}

func TestValidateCandidate_RejectsShortEmptyResponse(t *testing.T) {
	_, ok := validateCandidate(`{"summary":"too short","decisions":[],"todos":[]}`)
	if ok {
		t.Error("a short summary with no decisions or todos must be rejected")
	}
}

func TestValidateCandidate_AcceptsShortSummaryWithContent(t *testing.T) {
	_, ok := validateCandidate(`{"summary":"short but has content here","decisions":["do the thing"],"todos":[]}`)
	if !ok {
		t.Error("a short summary backed by a decision should still validate")
	}
}

func TestValidateCandidate_RejectsOverlongSummary(t *testing.T) {
	long := make([]byte, 1600)
	for i := range long {
		long[i] = 'a'
	}
	_, ok := validateCandidate(`{"summary":"` + string(long) + `","decisions":[],"todos":[]}`)
	if ok {
		t.Error("a summary over 1500 characters must be rejected")
	}
}

func TestOverlapScore_IdenticalCandidatesScoreMax(t *testing.T) {
	c := Candidate{Summary: "alpha beta gamma", Decisions: []string{"ship it"}, Todos: []string{"review"}}
	if overlapScore(c, c) != 3 {
		t.Errorf("identical candidates must score 3 (1.0 per dimension), got %v", overlapScore(c, c))
	}
}
