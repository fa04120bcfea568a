package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sender tags who produced a message
type Sender string

const (
	SenderUser   Sender = "user"
	SenderBot    Sender = "bot"
	SenderSystem Sender = "system"
)

// TimeLayout is the display format of message timestamps.
const TimeLayout = "15:04"

// Message represents a single chat message
type Message struct {
	ID     string    `json:"id"`
	Sender Sender    `json:"sender"`
	Text   string    `json:"text"`
	Time   time.Time `json:"time"`
}

// Timestamp returns the display time, or "" when the message carries none.
func (m Message) Timestamp() string {
	if m.Time.IsZero() {
		return ""
	}
	return m.Time.Format(TimeLayout)
}

// Log is an append-only message sequence. Entries are never edited or removed.
type Log struct {
	mu       sync.RWMutex
	messages []Message
	now      func() time.Time
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{
		messages: make([]Message, 0, 16),
		now:      time.Now,
	}
}

// Append stamps and stores a message, returning the stored entry.
func (l *Log) Append(sender Sender, text string) Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := Message{
		ID:     uuid.NewString(),
		Sender: sender,
		Text:   text,
		Time:   l.now(),
	}
	l.messages = append(l.messages, msg)
	return msg
}

// Messages returns a copy of all entries in append order.
func (l *Log) Messages() []Message {
	return l.Since(0)
}

// Since returns the entries after the first n.
func (l *Log) Since(n int) []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n < 0 {
		n = 0
	}
	if n >= len(l.messages) {
		return []Message{}
	}
	copied := make([]Message, len(l.messages)-n)
	copy(copied, l.messages[n:])
	return copied
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// Session represents a chat session
type Session struct {
	ID        string    `json:"id"`
	StartTime time.Time `json:"start_time"`
	Log       *Log      `json:"-"`
}

// New starts a session with an empty log.
func New() *Session {
	return &Session{
		ID:        uuid.NewString(),
		StartTime: time.Now(),
		Log:       NewLog(),
	}
}
