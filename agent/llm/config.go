// Package llm maps orchestration roles to model settings. The planner,
// narrator and per-agent tool selector may run on different models; all fall
// back to the shared default.
package llm

import (
	"fmt"
	"strings"

	contractx "github.com/casavia/concierge/agent/contract"
	openrouterx "github.com/casavia/concierge/pkg/openrouter"
)

// Role names one LLM call site inside the orchestrator.
type Role string

const (
	RolePlanner  Role = "planner"
	RoleNarrator Role = "narrator"
	RoleSelector Role = "selector"
)

type Config struct {
	Model       string  `envconfig:"MODEL" split_words:"true" required:"true"`
	Temperature float64 `envconfig:"TEMPERATURE" split_words:"true" default:"0.3"`
	MaxTokens   int64   `envconfig:"MAX_TOKENS" split_words:"true" default:"2000"`

	PlannerModel        string  `envconfig:"PLANNER_MODEL" split_words:"true"`
	NarratorModel       string  `envconfig:"NARRATOR_MODEL" split_words:"true"`
	SelectorModel       string  `envconfig:"SELECTOR_MODEL" split_words:"true"`
	PlannerTemperature  float64 `envconfig:"PLANNER_TEMPERATURE" split_words:"true" default:"-1"`
	NarratorTemperature float64 `envconfig:"NARRATOR_TEMPERATURE" split_words:"true" default:"-1"`
	SelectorTemperature float64 `envconfig:"SELECTOR_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

// RequestFor returns the completion request scaffold for one role; callers
// fill in System and User.
func (c Config) RequestFor(role Role) openrouterx.CompletionRequest {
	model := strings.TrimSpace(c.Model)
	temp := c.Temperature

	switch role {
	case RolePlanner:
		if v := strings.TrimSpace(c.PlannerModel); v != "" {
			model = v
		}
		if c.PlannerTemperature >= 0 {
			temp = c.PlannerTemperature
		}
	case RoleNarrator:
		if v := strings.TrimSpace(c.NarratorModel); v != "" {
			model = v
		}
		if c.NarratorTemperature >= 0 {
			temp = c.NarratorTemperature
		}
	case RoleSelector:
		if v := strings.TrimSpace(c.SelectorModel); v != "" {
			model = v
		}
		if c.SelectorTemperature >= 0 {
			temp = c.SelectorTemperature
		}
	}

	return openrouterx.CompletionRequest{
		Model:       model,
		Temperature: temp,
		MaxTokens:   c.MaxTokens,
	}
}
