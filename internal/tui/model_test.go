package tui

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"DocChat/internal/backend"
	"DocChat/internal/chatclient"
	"DocChat/internal/document"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

type stubBackend struct {
	answer  string
	uploads int
	asks    int

	mu        sync.Mutex
	questions []string
	block     chan struct{}
}

func (s *stubBackend) Upload(context.Context, document.File) (backend.UploadResponse, error) {
	s.uploads++
	return backend.UploadResponse{Status: "ok"}, nil
}

func (s *stubBackend) Ask(_ context.Context, question string) (string, error) {
	s.mu.Lock()
	s.asks++
	s.questions = append(s.questions, question)
	s.mu.Unlock()
	if s.block != nil {
		<-s.block
	}
	return s.answer, nil
}

func newModel(t *testing.T, b chatclient.Backend) (Model, *chatclient.ChatClient) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := chatclient.New(b, logger)
	m := New(context.Background(), client, logger)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return updated.(Model), client
}

// runCmd executes cmd and any batched commands, feeding resulting action
// messages back into the model.
func runCmd(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		return m
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			m = runCmd(t, m, c)
		}
		return m
	}
	if done, ok := msg.(actionDoneMsg); ok {
		updated, _ := m.Update(done)
		return updated.(Model)
	}
	return m
}

func submit(t *testing.T, m Model, text string) Model {
	t.Helper()
	m.textinput.SetValue(text)
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return runCmd(t, updated.(Model), cmd)
}

func TestSubmitQuestionShowsAnswer(t *testing.T) {
	b := &stubBackend{answer: "Refunds within thirty days"}
	m, client := newModel(t, b)

	m = submit(t, m, "What is the refund policy?")

	if b.asks != 1 {
		t.Fatalf("expected 1 ask, got %d", b.asks)
	}
	if len(client.Messages()) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(client.Messages()))
	}
	view := m.View()
	if !strings.Contains(view, "What is the refund policy?") || !strings.Contains(view, "thirty") {
		t.Fatalf("expected question and answer in view:\n%s", view)
	}
	if m.textinput.Value() != "" {
		t.Fatalf("expected input cleared, got %q", m.textinput.Value())
	}
}

func TestSubmitBlankDoesNothing(t *testing.T) {
	b := &stubBackend{}
	m, client := newModel(t, b)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Fatal("expected no command for blank input")
	}
	if b.asks != 0 || len(client.Messages()) != 0 {
		t.Fatal("expected no request and no message")
	}
}

func TestUploadWithoutFileShowsNotice(t *testing.T) {
	b := &stubBackend{}
	m, client := newModel(t, b)

	m = submit(t, m, "/upload")

	if b.uploads != 0 || len(client.Messages()) != 0 {
		t.Fatal("expected no upload and no log entry")
	}
	if !strings.Contains(m.View(), "Please select a file!") {
		t.Fatalf("expected notice in view:\n%s", m.View())
	}
}

func TestFileThenUpload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.txt")
	if err := os.WriteFile(path, []byte("policy"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	b := &stubBackend{}
	m, client := newModel(t, b)

	m = submit(t, m, "/file "+path)
	if b.uploads != 0 {
		t.Fatal("selecting must not upload")
	}
	if !strings.Contains(m.View(), "policy.txt") {
		t.Fatalf("expected file name in header:\n%s", m.View())
	}

	m = submit(t, m, "/upload")
	if b.uploads != 1 {
		t.Fatalf("expected 1 upload, got %d", b.uploads)
	}
	msgs := client.Messages()
	if len(msgs) != 1 || msgs[0].Text != chatclient.UploadSucceeded {
		t.Fatalf("unexpected log: %+v", msgs)
	}
	if !strings.Contains(m.View(), chatclient.UploadSucceeded) {
		t.Fatalf("expected upload message in view:\n%s", m.View())
	}
}

func TestQuitCommand(t *testing.T) {
	m, _ := newModel(t, &stubBackend{})
	m.textinput.SetValue("/quit")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected tea.QuitMsg")
	}
}

func TestSubmitSendsTextCapturedOnEnter(t *testing.T) {
	b := &stubBackend{answer: "ok"}
	m, client := newModel(t, b)

	m.textinput.SetValue("first")
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)

	// The draft changes before the dispatched command runs.
	client.SetDraft("second")
	m = runCmd(t, m, cmd)

	if len(b.questions) != 1 || b.questions[0] != "first" {
		t.Fatalf("unexpected questions: %v", b.questions)
	}
	if msgs := client.Messages(); len(msgs) == 0 || msgs[0].Text != "first" {
		t.Fatalf("unexpected log: %+v", msgs)
	}
}

func TestEnterIgnoredWhileDispatched(t *testing.T) {
	b := &stubBackend{answer: "ok"}
	m, _ := newModel(t, b)

	m.textinput.SetValue("first")
	updated, first := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)
	if first == nil {
		t.Fatal("expected a command for the first question")
	}

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	m = updated.(Model)
	if m.textinput.Value() != "first" {
		t.Fatalf("typing should be held back, got %q", m.textinput.Value())
	}

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)
	if cmd != nil {
		t.Fatal("expected Enter to be ignored while a request is pending")
	}
	if !strings.Contains(m.View(), "Typing...") {
		t.Fatalf("expected typing indicator:\n%s", m.View())
	}

	runCmd(t, m, first)
	if b.asks != 1 {
		t.Fatalf("expected 1 ask, got %d", b.asks)
	}
}

func TestEnterIgnoredWhileClientLoading(t *testing.T) {
	b := &stubBackend{answer: "ok", block: make(chan struct{})}
	m, client := newModel(t, b)

	done := make(chan error, 1)
	go func() { done <- client.SubmitQuestion(context.Background(), "first") }()

	deadline := time.Now().Add(2 * time.Second)
	for !client.Loading() {
		if time.Now().After(deadline) {
			t.Fatal("client never started loading")
		}
		time.Sleep(5 * time.Millisecond)
	}

	m.textinput.SetValue("second")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Fatal("expected Enter to be ignored while loading")
	}

	close(b.block)
	if err := <-done; err != nil {
		t.Fatalf("SubmitQuestion err: %v", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.questions) != 1 || b.questions[0] != "first" {
		t.Fatalf("unexpected questions: %v", b.questions)
	}
}

func TestBusyResultKeepsInput(t *testing.T) {
	m, _ := newModel(t, &stubBackend{})
	m.textinput.SetValue("still here")
	m.pending = true

	updated, _ := m.Update(actionDoneMsg{ask: true, err: chatclient.ErrBusy})
	m = updated.(Model)

	if m.textinput.Value() != "still here" {
		t.Fatalf("expected input kept, got %q", m.textinput.Value())
	}
	if !strings.Contains(m.View(), "Please wait") {
		t.Fatalf("expected busy notice:\n%s", m.View())
	}
	if m.pending {
		t.Fatal("expected pending cleared")
	}
}

func TestLoadingRestartsSpinner(t *testing.T) {
	m, _ := newModel(t, &stubBackend{})

	_, cmd := m.Update(loadingMsg{loading: true})
	if cmd == nil {
		t.Fatal("expected a spinner tick when loading starts")
	}
	if _, ok := cmd().(spinner.TickMsg); !ok {
		t.Fatal("expected spinner.TickMsg")
	}

	if _, cmd := m.Update(loadingMsg{loading: false}); cmd != nil {
		t.Fatal("expected no tick when loading ends")
	}
}
