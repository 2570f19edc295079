package extraction

import (
	"context"
	"errors"
	"testing"

	"github.com/scrypster/mnemex/internal/chunking"
	"github.com/scrypster/mnemex/pkg/types"
)

// mockLLMClient is a mock implementation of llm.TextGenerator for testing,
// grounded on the teacher's enrichment_pipeline_unit_test.go mock shape.
type mockLLMClient struct {
	responses []string
	errors    []error
	callCount int
	model     string
}

func (m *mockLLMClient) Complete(ctx context.Context, prompt string) (string, error) {
	defer func() { m.callCount++ }()
	if m.callCount < len(m.errors) && m.errors[m.callCount] != nil {
		return "", m.errors[m.callCount]
	}
	if m.callCount < len(m.responses) {
		return m.responses[m.callCount], nil
	}
	return "", errors.New("mock LLM: no more responses configured")
}

func (m *mockLLMClient) GetModel() string { return m.model }

func conv(messages ...string) chunking.Conversation {
	var msgs []chunking.Message
	for _, c := range messages {
		msgs = append(msgs, chunking.Message{Role: "user", Content: c})
	}
	return chunking.Conversation{ID: "conv1", Messages: msgs}
}

func TestExtract_SingleChunkSuccess(t *testing.T) {
	mock := &mockLLMClient{responses: []string{
		`{"memories":[{"id":"m1","type":"decision","content":"use postgres","confidence":0.9}],"relationships":[]}`,
	}}
	e := New(mock, Config{MinConfidence: 0.5})

	result, err := e.Extract(context.Background(), conv("we decided to use postgres"), nil)
	if err != nil {
		t.Fatalf("Extract() failed: %v", err)
	}
	if result.Status != types.ExtractionSuccess {
		t.Errorf("expected success status, got %s", result.Status)
	}
	if len(result.Memories) != 1 {
		t.Fatalf("expected 1 memory, got %d", len(result.Memories))
	}
	if result.Memories[0].Type != "decision" {
		t.Errorf("expected decision type, got %s", result.Memories[0].Type)
	}
}

func TestExtract_FiltersLowConfidence(t *testing.T) {
	mock := &mockLLMClient{responses: []string{
		`{"memories":[{"id":"m1","type":"decision","content":"maybe use postgres","confidence":0.2}],"relationships":[]}`,
	}}
	e := New(mock, Config{MinConfidence: 0.5})

	result, err := e.Extract(context.Background(), conv("maybe postgres"), nil)
	if err != nil {
		t.Fatalf("Extract() failed: %v", err)
	}
	if len(result.Memories) != 0 {
		t.Errorf("expected low-confidence memory to be filtered, got %d", len(result.Memories))
	}
}

func TestExtract_ContinueOnErrorAccumulatesChunkErrors(t *testing.T) {
	mock := &mockLLMClient{
		responses: []string{"", `{"memories":[{"id":"m1","type":"concept","content":"retry queue","confidence":0.9}],"relationships":[]}`},
		errors:    []error{errors.New("llm timeout"), nil},
	}
	e := New(mock, Config{
		MaxTokensPerChunk: 5,
		FailureMode:       types.FailureModeContinueOnError,
		MinConfidence:     0.5,
	})

	// Force multiple chunks so both mock responses get consumed.
	c := conv(
		"first message with enough words to fill a tiny chunk window",
		"second message also padded out with extra words here",
	)

	result, err := e.Extract(context.Background(), c, nil)
	if err != nil {
		t.Fatalf("Extract() failed: %v", err)
	}
	if result.Status != types.ExtractionPartial {
		t.Errorf("expected partial status with one failed and one succeeded chunk, got %s", result.Status)
	}
	if len(result.ChunkErrors) != 1 {
		t.Errorf("expected 1 recorded chunk error, got %d", len(result.ChunkErrors))
	}
}

func TestExtract_FailFastStopsOnFirstError(t *testing.T) {
	mock := &mockLLMClient{
		errors: []error{errors.New("boom"), errors.New("should not be called")},
	}
	e := New(mock, Config{
		MaxTokensPerChunk: 5,
		FailureMode:       types.FailureModeFailFast,
	})
	c := conv(
		"first message with enough words to fill a tiny chunk window",
		"second message also padded out with extra words here",
	)

	result, err := e.Extract(context.Background(), c, nil)
	if err != nil {
		t.Fatalf("Extract() failed: %v", err)
	}
	if mock.callCount != 1 {
		t.Errorf("fail-fast must stop after the first chunk error, got %d calls", mock.callCount)
	}
	if result.Status != types.ExtractionFailed {
		t.Errorf("expected failed status, got %s", result.Status)
	}
}

func TestExtract_ProfileOverridesMinConfidence(t *testing.T) {
	mock := &mockLLMClient{responses: []string{
		`{"memories":[{"id":"m1","type":"decision","content":"use redis for caching","confidence":0.6}],"relationships":[]}`,
	}}
	e := New(mock, Config{MinConfidence: 0.9})
	profile := &types.ExtractionProfile{MinConfidence: 0.5}

	result, err := e.Extract(context.Background(), conv("use redis"), profile)
	if err != nil {
		t.Fatalf("Extract() failed: %v", err)
	}
	if len(result.Memories) != 1 {
		t.Errorf("profile MinConfidence override should have let the memory through, got %d", len(result.Memories))
	}
}

func TestExtract_MalformedJSONIsAChunkError(t *testing.T) {
	mock := &mockLLMClient{responses: []string{"not json at all"}}
	e := New(mock, Config{FailureMode: types.FailureModeContinueOnError})

	result, err := e.Extract(context.Background(), conv("garbled response"), nil)
	if err != nil {
		t.Fatalf("Extract() failed: %v", err)
	}
	if len(result.ChunkErrors) != 1 {
		t.Errorf("expected malformed JSON to surface as a chunk error, got %d", len(result.ChunkErrors))
	}
	if result.Status != types.ExtractionFailed {
		t.Errorf("a single chunk that fails entirely must report failed status, got %s", result.Status)
	}
}
