package chat

import (
	"fmt"
	"strings"

	"github.com/agentdeck/agentdeck/internal/agent"
)

// fallbackReply produces a canned answer when the completion provider
// is unavailable or returns nothing. The reply is picked by the opening
// words of the message so simple social turns still feel natural.
func fallbackReply(a *agent.Agent, message string) string {
	expertise := a.TopicExpertise
	if expertise == "" {
		expertise = "general knowledge"
	}

	text := strings.ToLower(strings.TrimSpace(message))
	switch {
	case hasAnyPrefix(text, "hi", "hello", "hey", "greetings", "howdy"):
		return fmt.Sprintf("Hi! I'm %s, your %s expert. How can I help you today?", a.Name, expertise)
	case hasAnyPrefix(text, "bye", "goodbye", "see you", "farewell"):
		return fmt.Sprintf("Goodbye! Feel free to come back if you need any more help with %s!", expertise)
	case hasAnyPrefix(text, "thanks", "thank you", "thx"):
		return fmt.Sprintf("You're welcome! Let me know if you need anything else related to %s.", expertise)
	default:
		return fmt.Sprintf("I'll help you with %q from a %s perspective. What specific aspects would you like me to address?", message, expertise)
	}
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// titleMaxLength caps session titles from both generation and truncation.
const titleMaxLength = 50

// titleFromMessage derives a session title from the first user message,
// truncated at a word boundary. Used when title generation fails.
func titleFromMessage(message string) string {
	title := strings.Join(strings.Fields(message), " ")
	if title == "" {
		return "New Conversation"
	}
	if len(title) <= titleMaxLength {
		return title
	}
	cut := title[:titleMaxLength]
	if i := strings.LastIndexByte(cut, ' '); i > titleMaxLength/2 {
		cut = cut[:i]
	}
	return cut + "..."
}
