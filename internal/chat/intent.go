// Package chat is the clinic website's assistant: a rule-based intent
// matcher with canned replies, served over HTTP and WebSocket.
package chat

import (
	"regexp"
	"strings"
)

// Intent is what a visitor message is asking for.
type Intent string

const (
	IntentGreeting      Intent = "greeting"
	IntentConfusion     Intent = "confusion"
	IntentClarification Intent = "clarification"
	IntentUnmatched     Intent = "unmatched"
)

// Rules are checked in order; the first match wins.
var rules = []struct {
	intent  Intent
	pattern *regexp.Regexp
}{
	{IntentClarification, regexp.MustCompile(`(?i)\b(what do you mean|can you explain|explain that|clarify|more detail(s)?|elaborate)\b`)},
	{IntentConfusion, regexp.MustCompile(`(?i)\b(confused|confusing|don'?t understand|do not understand|not sure|lost|help)\b`)},
	{IntentGreeting, regexp.MustCompile(`(?i)^\s*(hi|hello|hey|hiya|greetings|good (morning|afternoon|evening))\b`)},
}

// Classify maps free text to an Intent. Empty input is Unmatched.
func Classify(text string) Intent {
	text = strings.TrimSpace(text)
	if text == "" {
		return IntentUnmatched
	}
	for _, r := range rules {
		if r.pattern.MatchString(text) {
			return r.intent
		}
	}
	return IntentUnmatched
}

var replies = map[Intent]string{
	IntentGreeting: "Hello! Welcome to RehabCare. I can help you book an appointment, " +
		"find the right department or get in touch with our team.",
	IntentConfusion: "No problem, let's take it one step at a time. To book, pick a department, " +
		"then a doctor, then fill in your details and choose a time.",
	IntentClarification: "Sure. Each department has its own specialists. Once you choose a doctor " +
		"we show the next available morning and afternoon times over the coming days.",
	IntentUnmatched: "I'm not sure I can answer that here. You can book an appointment online " +
		"or send us a message through the contact form and our staff will reply.",
}

// Reply returns the canned answer for an intent.
func Reply(intent Intent) string {
	if r, ok := replies[intent]; ok {
		return r
	}
	return replies[IntentUnmatched]
}
