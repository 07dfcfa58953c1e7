package telegram

import (
	"context"
	"sync"
)

// MessengerCall records a single outbound send.
type MessengerCall struct {
	ChatID int64
	Text   string
}

// RecordingMessenger implements Messenger by recording outbound sends for
// later assertion in tests.
type RecordingMessenger struct {
	mu    sync.Mutex
	calls []MessengerCall

	// NextError, when set, is returned by the next SendText and then cleared.
	NextError error
	// FailAll, when set, makes every SendText fail with it.
	FailAll error
}

// NewRecordingMessenger creates an empty recorder.
func NewRecordingMessenger() *RecordingMessenger {
	return &RecordingMessenger{}
}

func (r *RecordingMessenger) SendText(_ context.Context, chatID int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailAll != nil {
		return r.FailAll
	}
	if r.NextError != nil {
		err := r.NextError
		r.NextError = nil
		return err
	}
	r.calls = append(r.calls, MessengerCall{ChatID: chatID, Text: text})
	return nil
}

// Calls returns a copy of everything sent so far.
func (r *RecordingMessenger) Calls() []MessengerCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]MessengerCall, len(r.calls))
	copy(out, r.calls)
	return out
}

// LastText returns the most recent sent text, or "" when nothing was sent.
func (r *RecordingMessenger) LastText() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return ""
	}
	return r.calls[len(r.calls)-1].Text
}

// Reset clears recorded calls.
func (r *RecordingMessenger) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}
