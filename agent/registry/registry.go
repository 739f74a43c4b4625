// Package registry holds the static table of domain agents: capability tags
// and the finite set of tools each agent may invoke.
package registry

import (
	"fmt"
	"sort"
	"strings"

	contractx "github.com/casavia/concierge/agent/contract"
	toolx "github.com/casavia/concierge/agent/tool"
)

// Entry describes one registered agent.
type Entry struct {
	Name         contractx.AgentName
	Description  string
	Capabilities []string
	AllowedTools []string
}

// AllowsTool reports whether the agent may invoke the named tool.
func (e Entry) AllowsTool(tool string) bool {
	for _, t := range e.AllowedTools {
		if t == tool {
			return true
		}
	}
	return false
}

var entries = map[contractx.AgentName]Entry{
	contractx.AgentTableAvailability: {
		Name:         contractx.AgentTableAvailability,
		Description:  "Checks table availability for a given date, time and party size.",
		Capabilities: []string{"availability", "tables", "seating"},
		AllowedTools: []string{toolx.ToolCheckAvailability, toolx.ToolAskClarification},
	},
	contractx.AgentMenuPricing: {
		Name:         contractx.AgentMenuPricing,
		Description:  "Answers questions about menu items, categories and prices.",
		Capabilities: []string{"menu", "pricing", "dishes"},
		AllowedTools: []string{toolx.ToolGetMenu, toolx.ToolAskClarification},
	},
	contractx.AgentCelebration: {
		Name:         contractx.AgentCelebration,
		Description:  "Recommends celebration packages for birthdays, anniversaries and other occasions.",
		Capabilities: []string{"celebration", "occasions", "packages"},
		AllowedTools: []string{toolx.ToolGetCelebrationPackages, toolx.ToolAskClarification},
	},
	contractx.AgentReservation: {
		Name:         contractx.AgentReservation,
		Description:  "Runs the booking flow: collects date, time, party size, name and phone.",
		Capabilities: []string{"reservation", "booking", "slot-filling"},
		AllowedTools: []string{toolx.ToolCollectReservation, toolx.ToolAskClarification},
	},
	contractx.AgentRestaurantInfo: {
		Name:         contractx.AgentRestaurantInfo,
		Description:  "Answers general venue questions: opening hours, location, contact details.",
		Capabilities: []string{"info", "hours", "location"},
		AllowedTools: []string{toolx.ToolGetRestaurantInfo, toolx.ToolAskClarification},
	},
	contractx.AgentCustomerSupport: {
		Name:         contractx.AgentCustomerSupport,
		Description:  "Catch-all support for anything outside the other agents' domains.",
		Capabilities: []string{"support", "general"},
		AllowedTools: []string{toolx.ToolGeneralInquiry, toolx.ToolAskClarification},
	},
}

// Lookup returns the registry entry for an agent.
func Lookup(name contractx.AgentName) (Entry, bool) {
	e, ok := entries[name]
	return e, ok
}

// IsRegistered reports whether the agent name exists in the registry.
func IsRegistered(name contractx.AgentName) bool {
	_, ok := entries[name]
	return ok
}

// Resolve trims and matches an arbitrary string against the registry,
// case-insensitively. Planner output is not trusted to preserve casing.
func Resolve(raw string) (contractx.AgentName, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	if _, ok := entries[contractx.AgentName(trimmed)]; ok {
		return contractx.AgentName(trimmed), true
	}
	for name := range entries {
		if strings.EqualFold(string(name), trimmed) {
			return name, true
		}
	}
	return "", false
}

// Names returns all registered agent names in stable order.
func Names() []contractx.AgentName {
	names := make([]contractx.AgentName, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// ResponsibilitySheet renders one "name: responsibility" line per agent, used
// in the planner prompt.
func ResponsibilitySheet() string {
	var b strings.Builder
	for _, name := range Names() {
		e := entries[name]
		fmt.Fprintf(&b, "- %s: %s\n", e.Name, e.Description)
	}
	return strings.TrimSpace(b.String())
}
