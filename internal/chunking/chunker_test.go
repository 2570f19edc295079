package chunking

import (
	"strings"
	"testing"
	"time"

	"github.com/scrypster/mnemex/pkg/types"
)

func msg(role, content string, offset time.Duration) Message {
	return Message{Role: role, Content: content, Timestamp: time.Time{}.Add(offset)}
}

func TestChunk_SkipsWhenDisabled(t *testing.T) {
	c := New(Config{Enabled: false, MaxTokensPerChunk: 10})
	conv := Conversation{ID: "c1", Messages: []Message{
		msg("user", strings.Repeat("word ", 500), 0),
	}}

	chunks, err := c.Chunk(conv)
	if err != nil {
		t.Fatalf("Chunk() failed: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk when chunking disabled, got %d", len(chunks))
	}
	if chunks[0].OverlapWithPrev != 0 {
		t.Errorf("single chunk must report no overlap")
	}
}

func TestChunk_SkipsWhenConversationFits(t *testing.T) {
	c := New(Config{Enabled: true, MaxTokensPerChunk: 5000, Strategy: types.StrategySlidingWindow})
	conv := Conversation{ID: "c1", Messages: []Message{
		msg("user", "hello there", 0),
		msg("assistant", "hi, how can I help", time.Minute),
	}}

	chunks, err := c.Chunk(conv)
	if err != nil {
		t.Fatalf("Chunk() failed: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk for small conversation, got %d", len(chunks))
	}
	if chunks[0].StartMessageIndex != 0 || chunks[0].EndMessageIndex != 1 {
		t.Errorf("single chunk must span the whole conversation")
	}
}

func TestChunk_SlidingWindowCoversAllMessages(t *testing.T) {
	c := New(Config{Enabled: true, MaxTokensPerChunk: 50, OverlapPercentage: 0.2, Strategy: types.StrategySlidingWindow})
	var msgs []Message
	for i := 0; i < 40; i++ {
		msgs = append(msgs, msg("user", "this is message content padding text", time.Duration(i)*time.Minute))
	}
	conv := Conversation{ID: "c1", Messages: msgs}

	chunks, err := c.Chunk(conv)
	if err != nil {
		t.Fatalf("Chunk() failed: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if ch.TokenCount > c.Config.MaxTokensPerChunk && len(ch.Messages) > 1 {
			t.Errorf("chunk %d exceeds max tokens: %d", i, ch.TokenCount)
		}
		if ch.Index != i {
			t.Errorf("chunk index must be stable: got %d at position %d", ch.Index, i)
		}
	}
	// union must cover the first and last message
	if chunks[0].StartMessageIndex != 0 {
		t.Errorf("first chunk must start at message 0")
	}
	if chunks[len(chunks)-1].EndMessageIndex != len(msgs)-1 {
		t.Errorf("last chunk must end at the final message")
	}
	// every chunk after the first should report some overlap
	for i := 1; i < len(chunks); i++ {
		if chunks[i].OverlapWithPrev == 0 {
			t.Errorf("chunk %d should carry overlap from the previous window", i)
		}
	}
}

func TestChunk_ConversationBoundaryRespectsMinChunkSize(t *testing.T) {
	c := New(Config{
		Enabled:           true,
		MaxTokensPerChunk: 100,
		MinChunkSize:      5,
		Strategy:          types.StrategyConversationBoundary,
	})
	var msgs []Message
	for i := 0; i < 30; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		msgs = append(msgs, msg(role, "short reply text here", time.Duration(i)*time.Minute))
	}
	conv := Conversation{ID: "c1", Messages: msgs}

	chunks, err := c.Chunk(conv)
	if err != nil {
		t.Fatalf("Chunk() failed: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected role-transition splitting to produce multiple chunks, got %d", len(chunks))
	}
}

func TestChunk_SemanticSplitsOnCuePhrase(t *testing.T) {
	c := New(Config{Enabled: true, MaxTokensPerChunk: 30, Strategy: types.StrategySemantic})
	msgs := []Message{
		msg("user", "let's talk about the database schema", 0),
		msg("assistant", "sure, here is the schema design", time.Minute),
		msg("user", "on a different note, what about deployment", 2*time.Minute),
		msg("assistant", "deployment uses a blue-green rollout", 3*time.Minute),
	}
	conv := Conversation{ID: "c1", Messages: msgs}

	chunks, err := c.Chunk(conv)
	if err != nil {
		t.Fatalf("Chunk() failed: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected a cue-phrase topic shift to produce 2 chunks, got %d", len(chunks))
	}
	if chunks[1].StartMessageIndex != 2 {
		t.Errorf("second chunk should start at the cue-phrase message, got index %d", chunks[1].StartMessageIndex)
	}
}

func TestChunk_EmptyConversation(t *testing.T) {
	c := New(Config{Enabled: true})
	chunks, err := c.Chunk(Conversation{ID: "c1"})
	if err != nil {
		t.Fatalf("Chunk() failed: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no chunks for an empty conversation, got %d", len(chunks))
	}
}

func TestChunk_UnknownStrategy(t *testing.T) {
	c := New(Config{Enabled: true, MaxTokensPerChunk: 1, Strategy: "bogus"})
	_, err := c.Chunk(Conversation{ID: "c1", Messages: []Message{
		msg("user", "one two three four five", 0),
	}})
	if err == nil {
		t.Fatal("expected an error for an unknown chunking strategy")
	}
}
