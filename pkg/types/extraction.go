package types

// ExtractionStrategy names which chunking/extraction shape the Conversation
// Chunker (§4.15) and Memory Extractor (§4.16) use.
type ExtractionStrategy string

const (
	StrategySlidingWindow          ExtractionStrategy = "sliding_window"
	StrategyConversationBoundary   ExtractionStrategy = "conversation_boundary"
	StrategySemantic               ExtractionStrategy = "semantic"
)

// FailureMode controls how the Memory Extractor (§4.16) reacts to a
// per-chunk extraction error.
type FailureMode string

const (
	FailureModeFailFast          FailureMode = "fail-fast"
	FailureModeContinueOnError   FailureMode = "continue-on-error"
)

// ExtractionStatus is the overall outcome of an extraction run across all
// chunks of a conversation (§4.16 step 5).
type ExtractionStatus string

const (
	ExtractionSuccess ExtractionStatus = "success"
	ExtractionPartial ExtractionStatus = "partial"
	ExtractionFailed  ExtractionStatus = "failed"
)

// ExtractionProfile is a named bundle of extraction defaults that can
// override the extractor's baseline configuration per call (§4.16 step 6).
type ExtractionProfile struct {
	Name          string             `yaml:"name"`
	Provider      string             `yaml:"provider"`
	Strategy      ExtractionStrategy `yaml:"strategy"`
	ModelParams   map[string]string  `yaml:"model_params,omitempty"`
	MemoryTypes   []string           `yaml:"memory_types,omitempty"`
	MinConfidence float64            `yaml:"min_confidence"`
}
