package prompts

import "github.com/wave/molly/internal/command"

// Persona returns the session instructions, including the search command protocol.
func Persona() string {
	return MustRender(Conversation, "persona", map[string]string{"Sentinel": command.Sentinel})
}

// Greeting is the instruction sent when a conversation opens.
func Greeting() string {
	return MustGet(Conversation, "greeting")
}

// SummariseResults asks the agent to present the raw results JSON.
func SummariseResults(resultsJSON string) string {
	return MustRender(Conversation, "summarise-results", map[string]string{"Results": resultsJSON})
}

// SearchFailed asks the agent to tell the user a search could not run.
func SearchFailed() string {
	return MustGet(Conversation, "search-failed")
}

// NotConnected asks the agent to tell the user the backend is not connected.
func NotConnected() string {
	return MustGet(Conversation, "not-connected")
}

// SearchFailedWarning is the transcript warning for a failed search.
func SearchFailedWarning(reason string) string {
	return MustRender(Conversation, "warning-search-failed", map[string]string{"Reason": reason})
}

// NotConnectedWarning is the transcript warning for a search without credentials.
func NotConnectedWarning() string {
	return MustGet(Conversation, "warning-not-connected")
}

// MalformedWarning is the transcript warning for an unusable command line.
func MalformedWarning(reason string) string {
	return MustRender(Conversation, "warning-malformed", map[string]string{
		"Sentinel": command.Sentinel,
		"Reason":   reason,
	})
}

// TTSPreview is the default text for the speech preview endpoint.
func TTSPreview() string {
	return MustGet(Conversation, "tts-preview")
}
