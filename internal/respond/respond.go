// Package respond turns a classified inbound message into the body of an
// autonomous reply. Bodies are plain text; channel-specific dressing
// (greetings, signatures, length limits) is applied by the format package.
package respond

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/techcorp/taskflow-support/internal/classify"
	"github.com/techcorp/taskflow-support/internal/search"
)

// Documentation excerpts are longer on email, where walls of text are
// expected, than on conversational channels.
const (
	emailExcerptChars = 600
	shortExcerptChars = 350
)

const helpCenterFallback = "I want to make sure I give you the right answer. " +
	"Could you provide a few more details about what you're trying to do? " +
	"In the meantime, you can check our help center at app.taskflow.io/help."

// Greeting answers a message that is only a salutation.
func Greeting(channel string) string {
	if channel == "whatsapp" {
		return "How can I help you today? \U0001F44B"
	}
	return "How can I help you today?"
}

var letterRE = regexp.MustCompile(`[a-zA-Z]`)

// Unclear answers messages too short or garbled to act on.
func Unclear(message, channel string) string {
	msg := strings.TrimSpace(message)
	if len(msg) <= 4 || !letterRE.MatchString(msg) {
		if channel == "whatsapp" {
			return "Is there anything I can help you with today? \U0001F60A"
		}
		return "Is there anything I can help you with today?"
	}
	if channel == "whatsapp" {
		return "Could you tell me a bit more about what you need help with?"
	}
	return "Could you tell me a bit more about what you need help with? " +
		"I'm happy to assist with any TaskFlow questions!"
}

// Answer builds the reply body for an autonomously handled message from the
// best matching documentation section.
func Answer(intent, channel string, docs []search.Result) string {
	switch intent {
	case classify.IntentGreeting:
		return Greeting(channel)
	case classify.IntentUnclear:
		return Unclear("", channel)
	case classify.IntentFeatureRequest:
		return "That's a great suggestion, thanks for sharing it! " +
			"I've logged this feedback for our product team. While I can't " +
			"share specific timeline commitments, this is the kind of input " +
			"that helps shape our roadmap. Is there anything else I can help with?"
	case classify.IntentDataConcern:
		return "I've received your request regarding data handling. " +
			"This is being forwarded to our compliance team who will " +
			"respond within the required timeframe. You'll receive a " +
			"confirmation shortly."
	}

	if len(docs) == 0 {
		return helpCenterFallback
	}

	maxChars := shortExcerptChars
	if channel == "email" {
		maxChars = emailExcerptChars
	}
	excerpt := search.Excerpt(docs[0].Section.Body, maxChars)

	switch intent {
	case classify.IntentHowTo:
		return fmt.Sprintf("Great question! Here's how you can do this:\n\n%s\n\n"+
			"Let me know if you need any clarification on these steps.", excerpt)
	case classify.IntentBillingInquiry:
		return fmt.Sprintf("I understand billing questions are important. "+
			"Here's the relevant information:\n\n%s\n\n"+
			"If you need further assistance with billing, our team at "+
			"billing@techcorp.io can help.", excerpt)
	case classify.IntentBugReport:
		return fmt.Sprintf("I'm sorry you're running into this issue. Here are some "+
			"troubleshooting steps that may help:\n\n%s\n\n"+
			"If the problem persists after trying these steps, please "+
			"let me know and I'll look into it further.", excerpt)
	case classify.IntentSyncProblem, classify.IntentMobileIssue:
		return fmt.Sprintf("I understand how frustrating sync issues can be. "+
			"Let's try these steps:\n\n%s\n\n"+
			"If the issue continues, please let me know your app version "+
			"and device details so I can investigate further.", excerpt)
	case classify.IntentIntegrationIssue:
		return fmt.Sprintf("Let me help you with that integration issue. "+
			"Here's what I'd recommend:\n\n%s\n\n"+
			"If reconnecting doesn't resolve the issue, please let me "+
			"know and I'll dig deeper.", excerpt)
	case classify.IntentPasswordReset:
		return fmt.Sprintf("I understand how frustrating it is to be locked out. "+
			"Here's how to regain access:\n\n%s\n\n"+
			"If you're still having trouble after these steps, let me "+
			"know and I'll help further.", excerpt)
	case classify.IntentNotificationIssue:
		return fmt.Sprintf("Let's get your notifications sorted out. "+
			"Here's what to check:\n\n%s\n\n"+
			"Let me know if any of these steps help!", excerpt)
	default:
		return fmt.Sprintf("Thanks for reaching out! Based on your question, here's "+
			"the relevant information:\n\n%s\n\n"+
			"Is there anything else I can help with?", excerpt)
	}
}

// EscalationAck acknowledges an escalated message: it names the follow-up
// window and carries a reference the customer can quote back.
func EscalationAck(reason, sla, reference string) string {
	r := strings.ToLower(reason)
	switch {
	case strings.Contains(r, "billing") || strings.Contains(r, "refund"):
		return fmt.Sprintf("I understand how important billing matters are, and I want to "+
			"make sure this is handled properly. I've forwarded your request "+
			"to our billing team, who will review it and get back to you "+
			"within %s. Your reference number is %s.", sla, reference)
	case containsAny(r, "legal", "gdpr", "compliance", "soc", "dpa"):
		return fmt.Sprintf("I've received your request and it's being forwarded to our "+
			"compliance team immediately. You'll receive a confirmation "+
			"within 72 hours, and the request will be fulfilled within the "+
			"required timeframe. Your reference number is %s.", reference)
	case strings.Contains(r, "human"):
		return fmt.Sprintf("Of course! I'm connecting you with a member of our support "+
			"team right now. They'll follow up within %s.", sla)
	case containsAny(r, "sentiment", "anger", "all caps"):
		return fmt.Sprintf("I completely understand your frustration, and I'm sorry for "+
			"the trouble you've been experiencing. I want to make sure this "+
			"gets the attention it deserves. I'm connecting you with a "+
			"senior member of our support team who will personally follow "+
			"up within %s. Your reference number is %s.", sla, reference)
	case strings.Contains(r, "data_loss") || strings.Contains(r, "disappeared"):
		return fmt.Sprintf("I understand how concerning it is when data appears to be "+
			"missing. I'm treating this as a high priority and connecting "+
			"you with our engineering team who will investigate immediately. "+
			"They'll follow up within %s. Your reference number is %s.", sla, reference)
	case strings.Contains(r, "lockout") || strings.Contains(r, "2fa"):
		return fmt.Sprintf("I understand being locked out of your account is urgent. "+
			"I'm escalating this to our support team who can verify your "+
			"identity and help you regain access. They'll reach out within "+
			"%s. Your reference number is %s.", sla, reference)
	case strings.Contains(r, "stuck") || strings.Contains(r, "export"):
		return fmt.Sprintf("I can see this operation is taking longer than expected. "+
			"I'm escalating this to our engineering team to investigate "+
			"and resolve the issue. They'll follow up within %s. "+
			"Your reference number is %s.", sla, reference)
	default:
		return fmt.Sprintf("I want to make sure you get the most accurate help on this. "+
			"I'm connecting you with a specialist on our team who will "+
			"follow up within %s. Your reference number is %s.", sla, reference)
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
