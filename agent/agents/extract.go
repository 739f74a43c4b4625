package agents

import (
	"regexp"
	"strconv"
	"strings"
)

// Deterministic slot extraction for the rule-selection path. Deliberately
// narrow: it only recognizes the common, unambiguous phrasings; anything
// else becomes a clarification question.

var (
	partySizePattern = regexp.MustCompile(`(?i)(?:for|party of|table of|group of)\s+(\d{1,2})\b`)
	timePattern      = regexp.MustCompile(`(?i)\b(\d{1,2}:\d{2}\s*(?:am|pm)?|\d{1,2}\s*(?:am|pm))\b`)
	dayPattern       = regexp.MustCompile(`(?i)\b(today|tomorrow|tonight|monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)
	datePattern      = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}(?:/\d{2,4})?)\b`)
	numberPattern    = regexp.MustCompile(`\b(\d{1,2})\b`)
)

type bookingSlots struct {
	date      string
	time      string
	partySize int
}

func extractBookingSlots(subtask string) bookingSlots {
	var slots bookingSlots

	if m := partySizePattern.FindStringSubmatch(subtask); len(m) == 2 {
		if n, err := strconv.Atoi(m[1]); err == nil {
			slots.partySize = n
		}
	}
	if m := timePattern.FindStringSubmatch(subtask); len(m) == 2 {
		slots.time = strings.ToLower(strings.ReplaceAll(m[1], " ", ""))
	}
	if m := datePattern.FindStringSubmatch(subtask); len(m) == 2 {
		slots.date = m[1]
	} else if m := dayPattern.FindStringSubmatch(subtask); len(m) == 2 {
		slots.date = strings.ToLower(m[1])
	}
	return slots
}

func parseLeadingInt(s string) (int, bool) {
	if m := numberPattern.FindStringSubmatch(s); len(m) == 2 {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n, true
		}
	}
	return 0, false
}

var menuCategories = []string{"starters", "mains", "desserts", "drinks", "wine", "vegetarian", "vegan"}

func extractMenuCategory(subtask string) string {
	lower := strings.ToLower(subtask)
	for _, category := range menuCategories {
		if strings.Contains(lower, category) {
			return category
		}
	}
	return ""
}

var occasions = []string{"birthday", "anniversary", "proposal", "graduation"}

func extractOccasion(subtask string) string {
	lower := strings.ToLower(subtask)
	for _, occasion := range occasions {
		if strings.Contains(lower, occasion) {
			return occasion
		}
	}
	return ""
}

var infoTopics = []struct {
	needle string
	topic  string
}{
	{"hour", "hours"},
	{"open", "hours"},
	{"close", "hours"},
	{"where", "location"},
	{"location", "location"},
	{"address", "location"},
	{"phone", "contact"},
	{"contact", "contact"},
	{"parking", "parking"},
}

func extractInfoTopic(subtask string) string {
	lower := strings.ToLower(subtask)
	for _, rule := range infoTopics {
		if strings.Contains(lower, rule.needle) {
			return rule.topic
		}
	}
	return ""
}
