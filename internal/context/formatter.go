package context

import (
	"fmt"
	"strings"

	"github.com/scrypster/mnemex/pkg/types"
)

// Template controls how a set of memories is rendered into one text
// block (§4.13). memoryFormat supports {{content}}, {{type}},
// {{confidence}}, {{timestamp}}, {{score}}; when IncludeMetadata is
// false every variable but {{content}} is replaced with the empty
// string.
type Template struct {
	Name            string
	Header          string
	MemoryFormat    string
	Separator       string
	Footer          string
	IncludeMetadata bool
}

// DefaultTemplate is the name reserved for the built-in template every
// Context Engine registers at construction.
const DefaultTemplate = "default"

// NewDefaultTemplate returns the template registered under DefaultTemplate.
func NewDefaultTemplate() Template {
	return Template{
		Name:            DefaultTemplate,
		Header:          "# Retrieved memories\n",
		MemoryFormat:    "- ({{score}}, {{type}}) {{content}}",
		Separator:       "\n",
		Footer:          "",
		IncludeMetadata: true,
	}
}

// FormatResult is the Formatter's envelope (§4.13).
type FormatResult struct {
	Context    string
	Memories   []types.Memory
	TokenCount int
	Template   string
	Truncated  bool
}

// Formatter renders a ranked memory list into a token-budgeted block.
type Formatter struct {
	tokenizer Tokenizer
}

func NewFormatter(tokenizer Tokenizer) *Formatter {
	if tokenizer == nil {
		tokenizer = ApproxTokenizer{}
	}
	return &Formatter{tokenizer: tokenizer}
}

// Format renders memories (already in the order they should appear)
// against tmpl within tokenBudget, truncating greedily once the budget
// would be exceeded.
func (f *Formatter) Format(memories []types.Memory, scores []float64, tmpl Template, tokenBudget int) FormatResult {
	header := tmpl.Header
	footer := tmpl.Footer
	overhead := f.tokenizer.CountTokens(header) + f.tokenizer.CountTokens(footer)

	if overhead > tokenBudget {
		return FormatResult{
			Context:    "",
			Memories:   nil,
			TokenCount: 0,
			Template:   tmpl.Name,
			Truncated:  true,
		}
	}

	var body strings.Builder
	kept := make([]types.Memory, 0, len(memories))
	total := overhead
	truncated := false

	for i, m := range memories {
		score := 0.0
		if i < len(scores) {
			score = scores[i]
		}
		rendered := renderMemory(tmpl, m, score)

		sepTokens := 0
		if len(kept) > 0 {
			sepTokens = f.tokenizer.CountTokens(tmpl.Separator)
		}
		cost := sepTokens + f.tokenizer.CountTokens(rendered)

		if total+cost > tokenBudget {
			truncated = true
			break
		}

		if len(kept) > 0 {
			body.WriteString(tmpl.Separator)
		}
		body.WriteString(rendered)
		total += cost
		kept = append(kept, m)
	}

	if len(kept) < len(memories) {
		truncated = true
	}

	var out strings.Builder
	out.WriteString(header)
	out.WriteString(body.String())
	out.WriteString(footer)

	return FormatResult{
		Context:    out.String(),
		Memories:   kept,
		TokenCount: total,
		Template:   tmpl.Name,
		Truncated:  truncated,
	}
}

// renderMemory substitutes memoryFormat's variables for one memory.
func renderMemory(tmpl Template, m types.Memory, score float64) string {
	vars := map[string]string{
		"content": m.Content,
	}
	if tmpl.IncludeMetadata {
		vars["type"] = m.Type
		vars["confidence"] = fmt.Sprintf("%.3f", m.Confidence)
		vars["timestamp"] = m.CreatedAt.Format("2006-01-02")
		vars["score"] = fmt.Sprintf("%.3f", score)
	} else {
		vars["type"] = ""
		vars["confidence"] = ""
		vars["timestamp"] = ""
		vars["score"] = ""
	}

	out := tmpl.MemoryFormat
	for key, val := range vars {
		out = strings.ReplaceAll(out, "{{"+key+"}}", val)
	}
	return out
}
