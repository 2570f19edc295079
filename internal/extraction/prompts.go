package extraction

import "fmt"

// extractionPrompt asks the LLM to pull candidate memories and
// relationships out of a single chunk of conversation. Grounded on the
// teacher's EntityExtractionPrompt/RelationshipExtractionPrompt strict-JSON
// style, merged into one call per chunk rather than two.
func extractionPrompt(content string, memoryTypes []string) string {
	typeHint := "any of: decision, process, concept, event, person, system, rule, project, epic, phase, milestone, task, step"
	if len(memoryTypes) > 0 {
		typeHint = "ONLY these types: "
		for i, t := range memoryTypes {
			if i > 0 {
				typeHint += ", "
			}
			typeHint += t
		}
	}

	return fmt.Sprintf(`TASK: Extract durable memories and their relationships from a conversation chunk.
OUTPUT: ONLY valid JSON. NO markdown. NO code blocks. NO backticks.

Each memory is a standalone fact, decision, or piece of context worth remembering beyond this
conversation. Use a short local id (like "m1", "m2") to reference memories from relationships
within THIS chunk only; those ids do not need to be globally unique.

MEMORY TYPES: %s

REQUIRED JSON STRUCTURE:
{
  "memories": [
    {"id":"m1","type":"decision","content":"...","confidence":0.9}
  ],
  "relationships": [
    {"from":"m1","to":"m2","type":"relates_to","confidence":0.8}
  ]
}

VALIDATION (STRICT):
1. Start with { - End with }
2. "memories" and "relationships" keys must both be present (use [] if none found)
3. confidence is a number in [0,1]
4. No extra fields, no null values, no trailing commas

CONVERSATION CHUNK:
%s

RESPOND WITH ONLY THIS JSON STRUCTURE (nothing else).`, typeHint, content)
}

// makerPrompt wraps the source text the same way for every MAKER voter
// call; the diversity across voters comes from sampling temperature, not
// prompt variation (§4.17).
func makerPrompt(sourceText string) string {
	return fmt.Sprintf(`TASK: Summarize this text into a structured memory candidate.
OUTPUT: ONLY valid JSON. NO markdown. NO code blocks. NO backticks.

{
  "summary": "20 to 1500 characters describing what happened and why it matters",
  "decisions": ["decisions made, if any"],
  "todos": ["follow-up actions, if any"]
}

TEXT:
%s

RESPOND WITH ONLY THIS JSON STRUCTURE (nothing else).`, sourceText)
}
