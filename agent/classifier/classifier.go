// Package classifier provides the deterministic routing rules: keyword intent
// mapping, resume-phrase detection, and the affirmative set. The keyword
// tables are versioned so rule tuning stays observable in turn metadata.
package classifier

import (
	"strings"

	contractx "github.com/casavia/concierge/agent/contract"
)

// Version identifies the active rule tables.
const Version = "rules/v1"

// Keyword containment is intentionally simple; ordering encodes precedence.
// A booking-shaped message beats an availability-shaped one because the
// booking flow subsumes the availability check.
var intentRules = []struct {
	agent    contractx.AgentName
	keywords []string
}{
	{contractx.AgentReservation, []string{
		"book a table", "make a reservation", "reserve", "booking",
	}},
	{contractx.AgentTableAvailability, []string{
		"availability", "available", "table for", "free table", "seats",
	}},
	{contractx.AgentMenuPricing, []string{
		"menu", "dish", "dishes", "price", "prices", "vegetarian", "vegan", "wine list",
	}},
	{contractx.AgentCelebration, []string{
		"birthday", "anniversary", "celebration", "celebrate", "party package", "proposal",
	}},
	{contractx.AgentRestaurantInfo, []string{
		"open", "opening", "hours", "close", "closing", "where", "location", "address", "phone number", "parking",
	}},
}

var resumePhrases = []string{
	"continue the reservation",
	"continue my booking",
	"back to the booking",
	"back to my reservation",
	"finish the booking",
	"finish my reservation",
	"resume",
	"where were we",
}

// Affirmatives are matched by strict equality after trimming and lowercasing,
// never by substring, to avoid false positives like "yesterday".
var affirmatives = map[string]struct{}{
	"yes":        {},
	"yes please": {},
	"yeah":       {},
	"yep":        {},
	"sure":       {},
	"ok":         {},
	"okay":       {},
	"continue":   {},
	"go ahead":   {},
	"please do":  {},
}

// Rule is the deterministic contract.Classifier implementation.
type Rule struct{}

// NewRule returns the rule-based classifier.
func NewRule() *Rule { return &Rule{} }

var _ contractx.Classifier = (*Rule)(nil)

// Intent maps a message to exactly one agent. Unmatched messages fall through
// to the catch-all support agent.
func (*Rule) Intent(message string) contractx.AgentName {
	normalized := normalize(message)
	for _, rule := range intentRules {
		for _, kw := range rule.keywords {
			if strings.Contains(normalized, kw) {
				return rule.agent
			}
		}
	}
	return contractx.AgentCustomerSupport
}

// IsResumeRequest reports whether the message asks to resume an interrupted
// flow: either an explicit resume phrase or a bare affirmative.
func (*Rule) IsResumeRequest(message string) bool {
	normalized := normalize(message)
	if normalized == "" {
		return false
	}
	if _, ok := affirmatives[normalized]; ok {
		return true
	}
	for _, phrase := range resumePhrases {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	return false
}

// RulesVersion returns the active rule table version.
func (*Rule) RulesVersion() string { return Version }

func normalize(message string) string {
	normalized := strings.ToLower(strings.TrimSpace(message))
	normalized = strings.TrimRight(normalized, ".!?, ")
	return normalized
}
