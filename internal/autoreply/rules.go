// Package autoreply picks a canned response for an inbound customer message
// and delivers it through the owning connection.
package autoreply

import "strings"

// Rule kinds, in match priority order. Template overrides in config are keyed
// by these names.
const (
	RuleGreeting = "greeting"
	RulePrice    = "price"
	RuleOrder    = "order"
	RuleDelivery = "delivery"
	RuleDefault  = "default"
)

type rule struct {
	name     string
	keywords []string
	reply    string
}

var defaultRules = []rule{
	{
		name:     RuleGreeting,
		keywords: []string{"hello", "hi", "hey", "good morning", "good afternoon", "good evening"},
		reply:    "Hi there! Thanks for reaching out. How can we help you today?",
	},
	{
		name:     RulePrice,
		keywords: []string{"price", "cost", "how much"},
		reply:    "Thanks for asking! Please let us know which item you are interested in and we will send you the price right away.",
	},
	{
		name:     RuleOrder,
		keywords: []string{"order", "buy", "purchase"},
		reply:    "Great! To place an order, just tell us the item and quantity and we will confirm availability.",
	},
	{
		name:     RuleDelivery,
		keywords: []string{"delivery", "ship", "shipping"},
		reply:    "We deliver! Share your location and we will confirm the delivery time and fee.",
	},
}

const defaultReply = "Thanks for your message! We will get back to you as soon as possible."

// Rules matches inbound text against ordered keyword buckets. Matching is
// case-insensitive substring containment; the first bucket with a hit wins,
// and everything else falls through to the default reply.
type Rules struct {
	rules    []rule
	fallback string
}

// NewRules builds the rule set, applying per-rule template overrides. An
// override keyed "default" replaces the fallback reply.
func NewRules(templates map[string]string) *Rules {
	rules := make([]rule, len(defaultRules))
	copy(rules, defaultRules)
	fallback := defaultReply
	for i := range rules {
		if override, ok := templates[rules[i].name]; ok && strings.TrimSpace(override) != "" {
			rules[i].reply = strings.TrimSpace(override)
		}
	}
	if override, ok := templates[RuleDefault]; ok && strings.TrimSpace(override) != "" {
		fallback = strings.TrimSpace(override)
	}
	return &Rules{rules: rules, fallback: fallback}
}

// Reply returns the canned response for the given customer text and the name
// of the rule that produced it.
func (r *Rules) Reply(text string) (string, string) {
	lowered := strings.ToLower(text)
	for _, candidate := range r.rules {
		for _, keyword := range candidate.keywords {
			if strings.Contains(lowered, keyword) {
				return candidate.reply, candidate.name
			}
		}
	}
	return r.fallback, RuleDefault
}
