// Package chunking splits a conversation into LLM-processable chunks ahead
// of extraction (§4.15). Grounded on the teacher's internal/llm/chunker.go
// sentence-aware sliding-window-with-overlap shape, generalized from a flat
// content string to a message-indexed conversation and extended with the
// conversation-boundary and semantic strategies the teacher never needed.
package chunking

import (
	"fmt"
	"strings"
	"time"

	mnemexcontext "github.com/scrypster/mnemex/internal/context"
	"github.com/scrypster/mnemex/pkg/types"
)

// Message is one normalized turn of a conversation.
type Message struct {
	ID        string
	Role      string
	Content   string
	Timestamp time.Time
}

// Conversation is the Chunker's input: an ordered list of messages.
type Conversation struct {
	ID       string
	Messages []Message
}

// Config configures a Chunker. Zero values take the defaults noted below.
type Config struct {
	Enabled           bool
	MaxTokensPerChunk int                     // default 2000
	Strategy          types.ExtractionStrategy // default sliding_window
	OverlapPercentage float64                 // default 0.15, sliding_window only
	MinChunkSize      int                     // default 200, conversation_boundary only
}

// Chunk is one contiguous, stable-indexed slice of a conversation.
type Chunk struct {
	Index              int
	Messages           []Message
	StartMessageIndex  int
	EndMessageIndex    int // inclusive
	TokenCount         int
	OverlapWithPrev    int // tokens shared with the previous chunk
}

// Chunker splits a Conversation into Chunks per Config.Strategy.
type Chunker struct {
	Tokenizer mnemexcontext.Tokenizer
	Config    Config
}

// New builds a Chunker, filling in the documented defaults for zero fields.
func New(cfg Config) *Chunker {
	if cfg.MaxTokensPerChunk <= 0 {
		cfg.MaxTokensPerChunk = 2000
	}
	if cfg.Strategy == "" {
		cfg.Strategy = types.StrategySlidingWindow
	}
	if cfg.OverlapPercentage <= 0 {
		cfg.OverlapPercentage = 0.15
	}
	if cfg.MinChunkSize <= 0 {
		cfg.MinChunkSize = 200
	}
	return &Chunker{Tokenizer: mnemexcontext.ApproxTokenizer{}, Config: cfg}
}

// Chunk splits conv per the configured strategy. If chunking is disabled or
// the whole conversation already fits in one chunk, it returns a single
// Chunk with no overlap and no further chunking metadata (§4.15
// post-conditions).
func (c *Chunker) Chunk(conv Conversation) ([]Chunk, error) {
	if len(conv.Messages) == 0 {
		return nil, nil
	}

	total := c.countMessages(conv.Messages)
	if !c.Config.Enabled || total <= c.Config.MaxTokensPerChunk {
		return []Chunk{{
			Index:             0,
			Messages:          conv.Messages,
			StartMessageIndex: 0,
			EndMessageIndex:   len(conv.Messages) - 1,
			TokenCount:        total,
		}}, nil
	}

	switch c.Config.Strategy {
	case types.StrategySlidingWindow:
		return c.slidingWindow(conv.Messages), nil
	case types.StrategyConversationBoundary:
		return c.conversationBoundary(conv.Messages), nil
	case types.StrategySemantic:
		return c.semantic(conv.Messages), nil
	default:
		return nil, fmt.Errorf("chunking: unknown strategy %q", c.Config.Strategy)
	}
}

func (c *Chunker) countMessages(msgs []Message) int {
	total := 0
	for _, m := range msgs {
		total += c.Tokenizer.CountTokens(m.Content)
	}
	return total
}

// slidingWindow packs messages into fixed maxTokensPerChunk windows, carrying
// the trailing messages of each window forward as overlap. The overlap size
// is a deterministic fraction of the chunk's own token count, per §4.15.
func (c *Chunker) slidingWindow(msgs []Message) []Chunk {
	var chunks []Chunk
	i := 0
	prevOverlapTokens := 0

	for i < len(msgs) {
		start := i
		var cur []Message
		tokens := 0
		for i < len(msgs) {
			mt := c.Tokenizer.CountTokens(msgs[i].Content)
			if tokens > 0 && tokens+mt > c.Config.MaxTokensPerChunk {
				break
			}
			cur = append(cur, msgs[i])
			tokens += mt
			i++
		}
		if len(cur) == 0 {
			// A single message exceeds the window; take it alone rather than spin.
			cur = append(cur, msgs[i])
			tokens = c.Tokenizer.CountTokens(msgs[i].Content)
			i++
		}

		chunks = append(chunks, Chunk{
			Index:             len(chunks),
			Messages:          cur,
			StartMessageIndex: start,
			EndMessageIndex:   start + len(cur) - 1,
			TokenCount:        tokens,
			OverlapWithPrev:   prevOverlapTokens,
		})

		if i >= len(msgs) {
			break
		}

		// Compute how many trailing messages of this chunk become the next
		// chunk's lead-in, bounded by overlapPercentage of this chunk's tokens.
		overlapBudget := int(float64(tokens) * c.Config.OverlapPercentage)
		overlapTokens := 0
		back := 0
		for j := len(cur) - 1; j >= 0; j-- {
			mt := c.Tokenizer.CountTokens(cur[j].Content)
			if overlapTokens+mt > overlapBudget {
				break
			}
			overlapTokens += mt
			back++
		}
		if back > 0 {
			i -= back
			prevOverlapTokens = overlapTokens
		} else {
			prevOverlapTokens = 0
		}
	}
	return chunks
}

// conversationBoundary cuts at role transitions once the accumulated chunk
// has reached MinChunkSize, using a small fixed overlap rather than the
// sliding window's percentage-based one.
func (c *Chunker) conversationBoundary(msgs []Message) []Chunk {
	const fixedOverlapTokens = 300
	var chunks []Chunk
	start := 0
	tokens := 0
	prevOverlap := 0

	flush := func(end int) {
		cur := msgs[start : end+1]
		chunks = append(chunks, Chunk{
			Index:             len(chunks),
			Messages:          cur,
			StartMessageIndex: start,
			EndMessageIndex:   end,
			TokenCount:        tokens,
			OverlapWithPrev:   prevOverlap,
		})
	}

	for i := range msgs {
		mt := c.Tokenizer.CountTokens(msgs[i].Content)
		atBoundary := i > start && msgs[i].Role != msgs[i-1].Role
		overLimit := tokens+mt > c.Config.MaxTokensPerChunk

		if (atBoundary && tokens >= c.Config.MinChunkSize) || overLimit {
			flush(i - 1)
			overlapStart := i - 1
			overlapTokens := 0
			for overlapStart >= start && overlapTokens < fixedOverlapTokens {
				overlapTokens += c.Tokenizer.CountTokens(msgs[overlapStart].Content)
				overlapStart--
			}
			start = overlapStart + 1
			if start > i {
				start = i
			}
			prevOverlap = overlapTokens
			tokens = c.countMessages(msgs[start:i])
		}
		tokens += mt
	}
	if start < len(msgs) {
		flush(len(msgs) - 1)
	}
	return chunks
}

// topicShiftCues are the cue phrases the semantic strategy treats as
// evidence of a topic change: agenda markers and strong topic-change verbs.
var topicShiftCues = []string{
	"let's move on", "moving on", "next topic", "switching gears",
	"on a different note", "new topic", "changing subject", "anyway,",
	"separately,", "unrelated,", "speaking of something else",
}

// longGap is the inter-message pause duration treated as a topic boundary
// when timestamps are present.
const longGap = 15 * time.Minute

// semantic cuts at cue-phrase-detected topic shifts or long timestamp gaps,
// falling back to the sliding window's fixed-size cut when a window grows
// past MaxTokensPerChunk without a detected shift.
func (c *Chunker) semantic(msgs []Message) []Chunk {
	var chunks []Chunk
	start := 0
	tokens := 0
	prevOverlap := 0

	flush := func(end int, overlap int) {
		chunks = append(chunks, Chunk{
			Index:             len(chunks),
			Messages:          msgs[start : end+1],
			StartMessageIndex: start,
			EndMessageIndex:   end,
			TokenCount:        tokens,
			OverlapWithPrev:   overlap,
		})
	}

	for i := range msgs {
		mt := c.Tokenizer.CountTokens(msgs[i].Content)
		shift := i > start && (hasTopicShiftCue(msgs[i].Content) || longTimeGap(msgs[i-1], msgs[i]))
		overLimit := tokens+mt > c.Config.MaxTokensPerChunk

		if shift || overLimit {
			flush(i-1, prevOverlap)
			start = i
			tokens = 0
			prevOverlap = 0
		}
		tokens += mt
	}
	if start < len(msgs) {
		flush(len(msgs)-1, prevOverlap)
	}
	return chunks
}

func hasTopicShiftCue(content string) bool {
	lower := strings.ToLower(content)
	for _, cue := range topicShiftCues {
		if strings.Contains(lower, cue) {
			return true
		}
	}
	return false
}

func longTimeGap(prev, cur Message) bool {
	if prev.Timestamp.IsZero() || cur.Timestamp.IsZero() {
		return false
	}
	return cur.Timestamp.Sub(prev.Timestamp) >= longGap
}
