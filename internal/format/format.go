// Package format renders a reply body into its channel-specific final form:
// formal and self-contained for email, short and conversational for chat and
// WhatsApp, semi-formal with a ticket reference for the web form. Empathy
// openers are selected from a fixed matrix keyed on escalation state and
// sentiment bucket.
package format

import (
	"fmt"
	"strings"
)

// Channel names accepted by Format. Unknown channels fall back to the web
// form template, the most neutral of the three.
const (
	ChannelEmail    = "email"
	ChannelChat     = "chat"
	ChannelWhatsApp = "whatsapp"
	ChannelForm     = "form"
)

// Sentiment buckets for empathy selection.
const (
	bucketNegative = "negative"
	bucketNeutral  = "neutral"
	bucketPositive = "positive"
)

// Conversational replies stay under this many characters; anything longer is
// cut at a sentence boundary with an offer to continue.
const shortChannelMax = 280

type empathyKey struct {
	escalation bool
	bucket     string
}

var empathyMatrix = map[empathyKey]map[string]string{
	{true, bucketNegative}: {
		ChannelEmail: "I completely understand your frustration, and I'm sorry " +
			"for the trouble you've been experiencing. ",
		ChannelWhatsApp: "I completely understand your frustration and I'm sorry " +
			"for the trouble. ",
		ChannelForm: "I understand your concern and I want to make sure this " +
			"gets the attention it deserves. ",
	},
	{true, bucketNeutral}: {
		ChannelEmail: "Thanks for reaching out. I want to make sure you get " +
			"the best help on this. ",
		ChannelForm: "I've reviewed your request and want to make sure you " +
			"get the most accurate help. ",
	},
	{false, bucketNegative}: {
		ChannelEmail: "I understand how frustrating this must be, and I appreciate " +
			"your patience. ",
	},
	{false, bucketPositive}: {
		ChannelEmail: "Thanks for reaching out! ",
	},
	{false, bucketNeutral}: {
		ChannelEmail: "Thanks for contacting TaskFlow Support! ",
	},
}

func sentimentBucket(score float64) string {
	switch {
	case score < -0.2:
		return bucketNegative
	case score > 0.3:
		return bucketPositive
	}
	return bucketNeutral
}

func empathyPhrase(channel string, escalation bool, sentiment float64) string {
	phrases, ok := empathyMatrix[empathyKey{escalation, sentimentBucket(sentiment)}]
	if !ok {
		phrases = empathyMatrix[empathyKey{false, bucketNeutral}]
	}
	return phrases[channel]
}

// Format renders body for delivery on channel. customerName appears in the
// greeting; reference (a ticket or conversation id) appears where the channel
// template carries one. isEscalation and sentiment drive the empathy opener.
func Format(body, channel, customerName, reference string, isEscalation bool, sentiment float64) string {
	switch strings.ToLower(channel) {
	case "gmail":
		channel = ChannelEmail
	case "web-form", "web_form":
		channel = ChannelForm
	case ChannelEmail, ChannelChat, ChannelWhatsApp, ChannelForm:
		channel = strings.ToLower(channel)
	default:
		channel = ChannelForm
	}

	name := strings.TrimSpace(customerName)
	if name == "" || name == "Unknown" || name == "None" {
		name = "there"
	}

	switch channel {
	case ChannelEmail:
		return formatEmail(body, name, reference, isEscalation, sentiment)
	case ChannelChat, ChannelWhatsApp:
		return formatConversational(body, name, isEscalation, sentiment)
	default:
		return formatWebForm(body, name, reference, isEscalation, sentiment)
	}
}

func formatEmail(body, name, reference string, isEscalation bool, sentiment float64) string {
	empathy := empathyPhrase(ChannelEmail, isEscalation, sentiment)
	// skip the opener when the body already says it
	if e := strings.TrimRight(strings.TrimSpace(empathy), ". "); e != "" && strings.Contains(body, e) {
		empathy = ""
	}

	ref := ""
	if reference != "" {
		ref = fmt.Sprintf("\n\nReference: %s", reference)
	}
	return fmt.Sprintf("Dear %s,\n\n%s%s%s\n\nBest regards,\nTaskFlow Support Team\nsupport@techcorp.io",
		name, empathy, body, ref)
}

func formatConversational(body, name string, isEscalation bool, sentiment float64) string {
	if isEscalation {
		if sentiment < -0.3 {
			return fmt.Sprintf("Hi %s, I completely understand your frustration "+
				"and I'm sorry for the trouble. I'm connecting you with our "+
				"support team right now. They'll follow up shortly.", name)
		}
		return fmt.Sprintf("Hi %s! I'm connecting you with our support team "+
			"right now. They'll follow up shortly. Is there anything "+
			"quick I can help with in the meantime?", name)
	}
	return fmt.Sprintf("Hi %s!\n\n%s", name, TruncateShort(body, shortChannelMax))
}

func formatWebForm(body, name, reference string, isEscalation bool, sentiment float64) string {
	empathy := empathyPhrase(ChannelForm, isEscalation, sentiment)
	if e := strings.TrimRight(strings.TrimSpace(empathy), ". "); e != "" && strings.Contains(body, e) {
		empathy = ""
	}

	ref := ""
	if reference != "" {
		ref = fmt.Sprintf("\n\n**Ticket ID:** %s", reference)
	}
	return fmt.Sprintf("Hi %s,\n\n"+
		"Thank you for contacting TaskFlow Support. We've received your request.%s\n\n"+
		"%s%s\n\n"+
		"If you need further assistance, you can reply to this message "+
		"or reach us at support@techcorp.io."+
		"\n\n-- TaskFlow Support Team",
		name, ref, empathy, body)
}

// TruncateShort cuts text at sentence boundaries so it fits maxChars, never
// splitting mid-word or after a numbered list marker, and appends an offer to
// continue when anything was dropped.
func TruncateShort(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}

	var chunks []string
	for _, s := range splitSentences(text) {
		for _, part := range strings.Split(s, "\n") {
			if part = strings.TrimSpace(part); part != "" {
				chunks = append(chunks, part)
			}
		}
	}

	var kept []string
	length := 0
	for _, chunk := range chunks {
		n := length + len(chunk)
		if len(kept) > 0 {
			n++
		}
		if n > maxChars {
			break
		}
		kept = append(kept, chunk)
		length = n
	}

	if len(kept) > 0 {
		out := strings.Join(kept, "\n")
		if out != text {
			out += "\n\nWant me to explain more?"
		}
		return out
	}

	// no sentence fits, fall back to a word boundary
	var words []string
	length = 0
	for _, w := range strings.Fields(text) {
		n := length + len(w)
		if len(words) > 0 {
			n++
		}
		if n > maxChars-25 { // room for the suffix
			break
		}
		words = append(words, w)
		length = n
	}
	if len(words) > 0 {
		return strings.Join(words, " ") + "...\n\nWant me to explain more?"
	}
	return text[:maxChars]
}

// splitSentences breaks text after ., ! or ? followed by whitespace, except
// when the period terminates a one- or two-digit list marker like "2.".
func splitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		if i+1 >= len(text) || !isSpace(text[i+1]) {
			continue
		}
		if c == '.' && isListMarker(text, i) {
			continue
		}
		out = append(out, text[start:i+1])
		j := i + 1
		for j < len(text) && isSpace(text[j]) {
			j++
		}
		start = j
		i = j - 1
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

// isListMarker reports whether the period at text[dot] terminates a bare
// one- or two-digit number at the start of a line or the text.
func isListMarker(text string, dot int) bool {
	i := dot
	digits := 0
	for i > 0 && digits < 2 && isDigit(text[i-1]) {
		i--
		digits++
	}
	if digits == 0 {
		return false
	}
	return i == 0 || isSpace(text[i-1])
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
