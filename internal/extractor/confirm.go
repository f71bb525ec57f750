package extractor

import (
	"encoding/json"
	"strings"

	"planpilot/internal/models"
)

// confirmationPhrases are the natural-language prompts the assistant uses when
// it proposes an action and waits for the user to approve it. Matching is
// case-insensitive and only consulted when no structured flag is present.
var confirmationPhrases = []string{
	"confirm to proceed",
	"do you confirm",
	"shall i proceed",
	"please confirm",
	"would you like me to proceed",
	"confirm execution",
	"确认执行",
	"是否确认",
	"请确认",
	"确认后执行",
}

// RequiresConfirmation decides whether a reply is a proposal awaiting user
// confirmation rather than an authorization to act.
//
// Precedence, first match wins: an explicit boolean flag on any extracted
// instruction; the same flag found by re-scanning the raw text's JSON (the
// flag may sit outside the data the extractor populated); a confirmation
// phrase in the raw text. Structured signals must win over keyword heuristics
// so text that merely describes a completed action is not misread as a
// proposal.
func RequiresConfirmation(instructions []models.Instruction, rawText string) bool {
	for _, in := range instructions {
		if in.RequiresConfirmation != nil {
			return *in.RequiresConfirmation
		}
	}

	if flag := scanConfirmationFlag(rawText); flag != nil {
		return *flag
	}

	lower := strings.ToLower(rawText)
	for _, phrase := range confirmationPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// scanConfirmationFlag looks for a requires_confirmation boolean in any JSON
// found in the raw text: fenced blocks first, then bare objects.
func scanConfirmationFlag(text string) *bool {
	for _, match := range fencedJSONRe.FindAllStringSubmatch(text, -1) {
		if flag := flagFromJSON(cleanJSONBlock(match[1])); flag != nil {
			return flag
		}
	}

	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		end := matchBraces(text, i)
		if end < 0 {
			continue
		}
		if flag := flagFromJSON(text[i : end+1]); flag != nil {
			return flag
		}
		i = end
	}
	return nil
}

func flagFromJSON(block string) *bool {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(block), &obj); err != nil {
		return nil
	}
	if rc, ok := obj["requires_confirmation"].(bool); ok {
		return &rc
	}
	return nil
}
