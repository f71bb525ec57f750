// Package extractor mines machine-readable instructions out of free-form LLM
// replies. Its heuristics are deliberately confined here: the executor only
// ever sees well-typed Instruction values.
package extractor

import (
	"encoding/json"
	"log"
	"regexp"
	"strings"

	"planpilot/internal/models"
)

var fencedJSONRe = regexp.MustCompile("(?s)```json\\s*\\n(.*?)\\n\\s*```")

// Extract parses raw LLM text into an ordered list of instructions.
//
// Fenced ```json blocks are tried first, in document order; a decoded array is
// flattened, a decoded object becomes one instruction. Blocks that fail strict
// decoding are logged and skipped. If no fenced block decodes, the text is
// scanned for bare {"intent": ...}-shaped objects with a brace-matching
// heuristic. If nothing parses at all, a single sentinel instruction with an
// empty intent is returned (never an empty list) so callers can treat "no
// instruction" as one iteration.
func Extract(text string) []models.Instruction {
	var instructions []models.Instruction

	for _, match := range fencedJSONRe.FindAllStringSubmatch(text, -1) {
		block := cleanJSONBlock(match[1])
		decoded, err := decodeBlock(block)
		if err != nil {
			log.Printf("⚠️ [EXTRACTOR] Skipping malformed JSON block: %v", err)
			continue
		}
		instructions = append(instructions, decoded...)
	}

	if len(instructions) == 0 {
		instructions = scanBareObjects(text)
	}

	if len(instructions) == 0 {
		return []models.Instruction{{Intent: models.IntentNone}}
	}
	return instructions
}

// ExtractSingle returns the first instruction with a non-empty intent,
// defaulting to the sentinel. Kept for callers that predate multi-instruction
// replies.
func ExtractSingle(text string) models.Instruction {
	for _, in := range Extract(text) {
		if in.Intent != models.IntentNone {
			return in
		}
	}
	return models.Instruction{Intent: models.IntentNone}
}

// cleanJSONBlock strips whitespace and a stray leading "json" token that some
// models emit inside the fence.
func cleanJSONBlock(block string) string {
	block = strings.TrimSpace(block)
	if strings.HasPrefix(block, "json") {
		block = strings.TrimSpace(strings.TrimPrefix(block, "json"))
	}
	return block
}

// decodeBlock strictly decodes one JSON block into instructions. Arrays are
// flattened; an object carrying a nested "instructions" array is expanded.
func decodeBlock(block string) ([]models.Instruction, error) {
	var raw interface{}
	if err := json.Unmarshal([]byte(block), &raw); err != nil {
		return nil, err
	}
	return flatten(raw), nil
}

func flatten(raw interface{}) []models.Instruction {
	switch v := raw.(type) {
	case []interface{}:
		var out []models.Instruction
		for _, item := range v {
			out = append(out, flatten(item)...)
		}
		return out
	case map[string]interface{}:
		if nested, ok := v["instructions"].([]interface{}); ok {
			var out []models.Instruction
			for _, item := range nested {
				out = append(out, flatten(item)...)
			}
			return out
		}
		return []models.Instruction{fromMap(v)}
	default:
		return nil
	}
}

// fromMap converts a decoded JSON object into an Instruction.
func fromMap(obj map[string]interface{}) models.Instruction {
	in := models.Instruction{Intent: models.IntentNone}

	if intent, ok := obj["intent"].(string); ok {
		in.Intent = intent
	}
	if content, ok := obj["content"].(string); ok {
		in.Content = content
	}
	if rc, ok := obj["requires_confirmation"].(bool); ok {
		in.RequiresConfirmation = &rc
	}
	if data, ok := obj["data"].(map[string]interface{}); ok {
		in.Data = data
	} else {
		// Some models put payload fields at the top level instead of under
		// "data"; promote everything that is not a reserved key.
		data := make(map[string]interface{})
		for k, v := range obj {
			switch k {
			case "intent", "content", "requires_confirmation", "data":
			default:
				data[k] = v
			}
		}
		if len(data) > 0 {
			in.Data = data
		}
	}
	return in
}

// scanBareObjects finds {"intent": ...}-shaped substrings outside code fences
// using a brace-matching scan that respects JSON string literals.
func scanBareObjects(text string) []models.Instruction {
	var out []models.Instruction

	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		end := matchBraces(text, i)
		if end < 0 {
			continue
		}
		candidate := text[i : end+1]
		if !strings.Contains(candidate, `"intent"`) {
			continue
		}
		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
			continue
		}
		if _, ok := obj["intent"]; !ok {
			continue
		}
		out = append(out, fromMap(obj))
		i = end
	}
	return out
}

// matchBraces returns the index of the brace closing the one at start, or -1.
func matchBraces(text string, start int) int {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
