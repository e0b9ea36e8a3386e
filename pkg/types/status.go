// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// StatusMessage is one unit handed from background work to the console.
// It is either human-readable text or the ready sentinel that moves the
// console into its operational state.
type StatusMessage struct {
	Text  string
	Ready bool
}

// ReadyMessage returns the ready sentinel.
func ReadyMessage() StatusMessage {
	return StatusMessage{Ready: true}
}

// TextMessage returns a plain status line.
func TextMessage(text string) StatusMessage {
	return StatusMessage{Text: text}
}

func (m StatusMessage) String() string {
	if m.Ready {
		return "<ready>"
	}
	return m.Text
}
