package autoreply

import "testing"

func TestReplyMatchesKeywordBuckets(t *testing.T) {
	t.Parallel()

	rules := NewRules(nil)

	cases := []struct {
		text string
		rule string
	}{
		{"Hello, is anyone there?", RuleGreeting},
		{"HI!", RuleGreeting},
		{"how much is the blue one?", RulePrice},
		{"What does it cost?", RulePrice},
		{"I want to buy two", RuleOrder},
		{"can you ship to Nairobi?", RuleDelivery},
		{"asdf qwerty", RuleDefault},
	}
	for _, tc := range cases {
		_, rule := rules.Reply(tc.text)
		if rule != tc.rule {
			t.Errorf("Reply(%q) matched rule %q, want %q", tc.text, rule, tc.rule)
		}
	}
}

func TestReplyPriorityGreetingBeforePrice(t *testing.T) {
	t.Parallel()

	rules := NewRules(nil)
	_, rule := rules.Reply("hello, how much is it?")
	if rule != RuleGreeting {
		t.Errorf("matched rule %q, want greeting to win by order", rule)
	}
}

func TestTemplateOverrides(t *testing.T) {
	t.Parallel()

	rules := NewRules(map[string]string{
		"greeting": "Karibu! How can we help?",
		"default":  "We will reply soon.",
	})

	reply, _ := rules.Reply("hi")
	if reply != "Karibu! How can we help?" {
		t.Errorf("greeting reply = %q", reply)
	}
	reply, _ = rules.Reply("zzz")
	if reply != "We will reply soon." {
		t.Errorf("default reply = %q", reply)
	}
}
