package conversation

import "strings"

// Intent is the fixed set of things a user can ask for. Channels resolve
// raw text into an Intent exactly once, at their boundary; free text that
// resolves to IntentNone while a session is active is treated as a field
// token instead.
type Intent int

const (
	IntentNone Intent = iota
	IntentStart
	IntentHelp
	IntentSetDate
	IntentHoroscope
	IntentLifePath
	IntentCompatibility
	IntentLucky
	IntentFact
	IntentSubscribe
	IntentUnsubscribe
	IntentCancel
	IntentStats
	IntentBroadcast
)

// phraseIntents maps free-text fragments to intents, checked in order so
// the more specific phrase wins: "unsubscribe" must match before
// "subscribe" gets a chance to.
var phraseIntents = []struct {
	phrase string
	intent Intent
}{
	{"unsubscribe", IntentUnsubscribe},
	{"subscribe", IntentSubscribe},
	{"set date", IntentSetDate},
	{"set dob", IntentSetDate},
	{"birthday", IntentSetDate},
	{"birth", IntentSetDate},
	{"horoscope", IntentHoroscope},
	{"reading", IntentHoroscope},
	{"today", IntentHoroscope},
	{"life path", IntentLifePath},
	{"numerology", IntentLifePath},
	{"compatibility", IntentCompatibility},
	{"lucky", IntentLucky},
	{"secret", IntentFact},
	{"fact", IntentFact},
	{"cancel", IntentCancel},
	{"stop", IntentCancel},
	{"quit", IntentCancel},
	{"commands", IntentHelp},
	{"help", IntentHelp},
}

// commandIntents maps slash commands (without the slash) to intents.
var commandIntents = map[string]Intent{
	"start":         IntentStart,
	"help":          IntentHelp,
	"setdate":       IntentSetDate,
	"setdob":        IntentSetDate,
	"horoscope":     IntentHoroscope,
	"today":         IntentHoroscope,
	"lifepath":      IntentLifePath,
	"numerology":    IntentLifePath,
	"compatibility": IntentCompatibility,
	"lucky":         IntentLucky,
	"fact":          IntentFact,
	"zodiacsecret":  IntentFact,
	"subscribe":     IntentSubscribe,
	"unsubscribe":   IntentUnsubscribe,
	"cancel":        IntentCancel,
	"stats":         IntentStats,
	"broadcast":     IntentBroadcast,
}

// ResolveCommand maps a slash command name (case-insensitive, with or
// without the leading slash) to an intent.
func ResolveCommand(command string) Intent {
	command = strings.ToLower(strings.TrimSpace(command))
	command = strings.TrimPrefix(command, "/")
	return commandIntents[command]
}

// ResolvePhrase maps free text to an intent by substring, the way the chat
// channels accept "my horoscope" or "check compatibility" without a slash
// command. Unrecognized text resolves to IntentNone.
func ResolvePhrase(text string) Intent {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return IntentNone
	}
	for _, pi := range phraseIntents {
		if strings.Contains(text, pi.phrase) {
			return pi.intent
		}
	}
	return IntentNone
}

// CancelPhrase reports whether the text is one of the bare cancel words a
// user can send mid-flow. Substring matching is deliberately avoided here:
// "1990" should never cancel a flow because a phrase happened to contain a
// cancel word.
func CancelPhrase(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "cancel", "stop", "quit", "/cancel":
		return true
	}
	return false
}
