// Package tool declares the tool catalog: tool names, per-tool parameter
// schemas, and the validating adapter in front of the domain gateway.
package tool

import (
	"fmt"
	"strings"

	contractx "github.com/casavia/concierge/agent/contract"
)

const (
	ToolCheckAvailability      = "check_availability"
	ToolGetMenu                = "get_menu"
	ToolGetCelebrationPackages = "get_celebration_packages"
	ToolCollectReservation     = "collect_reservation"
	ToolGetRestaurantInfo      = "get_restaurant_info"
	ToolGeneralInquiry         = "general_inquiry"
	ToolAskClarification       = "ask_clarification"
)

// ParamType is the accepted JSON type of one parameter.
type ParamType string

const (
	TypeString ParamType = "string"
	TypeNumber ParamType = "number"
)

// Param declares one schema field.
type Param struct {
	Type     ParamType
	Desc     string
	Required bool
}

// Schema is the declared parameter set of one tool.
type Schema struct {
	Params map[string]Param
}

var schemas = map[string]Schema{
	ToolCheckAvailability: {Params: map[string]Param{
		"date":       {Type: TypeString, Desc: "Requested date", Required: true},
		"time":       {Type: TypeString, Desc: "Requested time", Required: true},
		"party_size": {Type: TypeNumber, Desc: "Number of guests", Required: true},
	}},
	ToolGetMenu: {Params: map[string]Param{
		"category": {Type: TypeString, Desc: "Menu category filter"},
	}},
	ToolGetCelebrationPackages: {Params: map[string]Param{
		"occasion": {Type: TypeString, Desc: "Occasion being celebrated"},
	}},
	ToolCollectReservation: {Params: map[string]Param{
		"date":             {Type: TypeString, Desc: "Booking date"},
		"time":             {Type: TypeString, Desc: "Booking time"},
		"party_size":       {Type: TypeNumber, Desc: "Number of guests"},
		"name":             {Type: TypeString, Desc: "Guest name"},
		"phone":            {Type: TypeString, Desc: "Contact phone"},
		"special_requests": {Type: TypeString, Desc: "Free-form special requests"},
	}},
	ToolGetRestaurantInfo: {Params: map[string]Param{
		"topic": {Type: TypeString, Desc: "Info topic, e.g. hours or location"},
	}},
	ToolGeneralInquiry: {Params: map[string]Param{
		"query": {Type: TypeString, Desc: "The user's question", Required: true},
	}},
	ToolAskClarification: {Params: map[string]Param{
		"question": {Type: TypeString, Desc: "Question to ask the user", Required: true},
	}},
}

// SchemaFor returns the declared schema of a tool.
func SchemaFor(tool string) (Schema, bool) {
	s, ok := schemas[tool]
	return s, ok
}

// Known reports whether the tool name exists in the catalog.
func Known(tool string) bool {
	_, ok := schemas[tool]
	return ok
}

// Validate checks params against the tool's declared schema. A violation is
// reported as an error wrapping contract.ErrToolValidation; callers convert
// it into a failure-variant result, never an exception.
func Validate(tool string, params map[string]any) error {
	schema, ok := schemas[tool]
	if !ok {
		return fmt.Errorf("%w: unknown tool %q", contractx.ErrToolValidation, tool)
	}

	for name, p := range schema.Params {
		raw, present := params[name]
		if !present || raw == nil {
			if p.Required {
				return fmt.Errorf("%w: tool=%s missing required parameter %q", contractx.ErrToolValidation, tool, name)
			}
			continue
		}
		switch p.Type {
		case TypeString:
			s, ok := raw.(string)
			if !ok {
				return fmt.Errorf("%w: tool=%s parameter %q must be a string", contractx.ErrToolValidation, tool, name)
			}
			if p.Required && strings.TrimSpace(s) == "" {
				return fmt.Errorf("%w: tool=%s required parameter %q is empty", contractx.ErrToolValidation, tool, name)
			}
		case TypeNumber:
			if !isNumber(raw) {
				return fmt.Errorf("%w: tool=%s parameter %q must be a number", contractx.ErrToolValidation, tool, name)
			}
		}
	}

	for name := range params {
		if _, declared := schema.Params[name]; !declared {
			return fmt.Errorf("%w: tool=%s unexpected parameter %q", contractx.ErrToolValidation, tool, name)
		}
	}
	return nil
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int32, int64, float32, float64:
		return true
	default:
		return false
	}
}

// NumberParam extracts a numeric parameter as int, tolerating the float64
// that JSON decoding produces.
func NumberParam(params map[string]any, name string) (int, bool) {
	switch v := params[name].(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float32:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// StringParam extracts a trimmed string parameter.
func StringParam(params map[string]any, name string) string {
	s, _ := params[name].(string)
	return strings.TrimSpace(s)
}
