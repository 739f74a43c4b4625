package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/planner.txt
	plannerRaw string

	//go:embed template/narrator.txt
	narratorRaw string

	//go:embed template/selector.txt
	selectorRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Planner  string
	Narrator string
	Selector string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings. Safe to call
// concurrently; the embed is compile-time and trimming is cheap.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Planner:  strings.TrimSpace(plannerRaw),
		Narrator: strings.TrimSpace(narratorRaw),
		Selector: strings.TrimSpace(selectorRaw),
	}
}
