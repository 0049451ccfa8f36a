package console

import (
	"fmt"
	"time"
)

type (
	// Message is one line of the console log shown to the user.
	Message struct {
		Kind MessageKind
		Text string
		Time time.Time
	}

	MessageKind int
)

const (
	User    MessageKind = iota // echo of what the user typed or did
	Console                    // results and notices
	Error                      // failures, e.g. of backend calls
)

const maxMessages = 256

func (k MessageKind) String() string {
	switch k {
	case User:
		return "user"
	case Console:
		return "console"
	case Error:
		return "error"
	}
	return fmt.Sprintf("MessageKind(%d)", int(k))
}

// AddMessage appends a message to the console log. Only the latest 256
// messages are kept.
func (m *Model) AddMessage(kind MessageKind, text string) {
	m.messages = append(m.messages, Message{Kind: kind, Text: text, Time: time.Now()})
	if over := len(m.messages) - maxMessages; over > 0 {
		m.messages = append(m.messages[:0], m.messages[over:]...)
	}
	if kind == Error {
		m.logger.Error(text)
	}
}

// Messages returns the console log, oldest first.
func (m *Model) Messages() []Message {
	return append([]Message(nil), m.messages...)
}

func (m *Model) ClearMessages() { m.messages = nil }
