package session

import (
	"sync"
	"testing"
	"time"
)

func TestLogAppendPreservesOrder(t *testing.T) {
	log := NewLog()
	log.Append(SenderUser, "What is the refund policy?")
	log.Append(SenderBot, "30 days.")
	log.Append(SenderSystem, "File uploaded successfully!")

	msgs := log.Messages()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	want := []Sender{SenderUser, SenderBot, SenderSystem}
	for i, msg := range msgs {
		if msg.Sender != want[i] {
			t.Fatalf("message %d: expected sender %s, got %s", i, want[i], msg.Sender)
		}
		if msg.ID == "" {
			t.Fatalf("message %d: missing ID", i)
		}
	}
}

func TestLogMessagesReturnsCopy(t *testing.T) {
	log := NewLog()
	log.Append(SenderUser, "hello")

	msgs := log.Messages()
	msgs[0].Text = "mutated"

	if got := log.Messages()[0].Text; got != "hello" {
		t.Fatalf("log entry was mutated through copy: %q", got)
	}
}

func TestLogSince(t *testing.T) {
	log := NewLog()
	log.Append(SenderUser, "one")
	log.Append(SenderBot, "two")
	log.Append(SenderUser, "three")

	if got := log.Since(1); len(got) != 2 || got[0].Text != "two" {
		t.Fatalf("unexpected Since(1): %+v", got)
	}
	if got := log.Since(3); len(got) != 0 {
		t.Fatalf("expected nothing after last entry, got %d", len(got))
	}
	if got := log.Since(-5); len(got) != 3 {
		t.Fatalf("expected all entries for negative offset, got %d", len(got))
	}
}

func TestLogConcurrentAppend(t *testing.T) {
	log := NewLog()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Append(SenderUser, "q")
		}()
	}
	wg.Wait()

	if log.Len() != 50 {
		t.Fatalf("expected 50 messages, got %d", log.Len())
	}
}

func TestMessageTimestamp(t *testing.T) {
	msg := Message{Time: time.Date(2024, 5, 1, 9, 7, 0, 0, time.UTC)}
	if got := msg.Timestamp(); got != "09:07" {
		t.Fatalf("unexpected timestamp: %s", got)
	}
	if got := (Message{}).Timestamp(); got != "" {
		t.Fatalf("expected empty timestamp, got %s", got)
	}
}

func TestNewSession(t *testing.T) {
	a, b := New(), New()
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("expected distinct session IDs, got %q and %q", a.ID, b.ID)
	}
	if a.Log == nil || a.Log.Len() != 0 {
		t.Fatal("expected empty log")
	}
}
