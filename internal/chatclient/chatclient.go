// Package chatclient holds the state of one document chat and drives the
// upload and ask actions against the QA service.
package chatclient

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"DocChat/internal/backend"
	"DocChat/internal/document"
	"DocChat/internal/session"
)

// Texts appended to the log for action outcomes.
const (
	UploadSucceeded = "File uploaded successfully!"
	UploadFailed    = "Failed to upload file."
	AskFailed       = "Error fetching answer."
)

var (
	// ErrNoFileSelected is returned by Upload before any file is selected.
	ErrNoFileSelected = errors.New("please select a file first")

	// ErrBusy is returned when an action starts while another is in flight.
	ErrBusy = errors.New("another request is still in progress")
)

// Backend is the QA service as seen by the client.
type Backend interface {
	Upload(ctx context.Context, doc document.File) (backend.UploadResponse, error)
	Ask(ctx context.Context, question string) (string, error)
}

// EventKind distinguishes state changes reported to observers.
type EventKind int

const (
	MessageAppended EventKind = iota
	LoadingChanged
)

// Event is delivered to OnChange observers after the state has changed.
type Event struct {
	Kind    EventKind
	Message session.Message
	Loading bool
}

// ChatClient owns the session state. At most one action is in flight at a
// time; a second Upload or SubmitQuestion while loading returns ErrBusy.
type ChatClient struct {
	backend Backend
	session *session.Session
	logger  *slog.Logger

	mu        sync.Mutex
	file      *document.File
	uploaded  string // digest of the last successfully uploaded content
	draft     string
	loading   bool
	observers []func(Event)
}

// New creates a client with a fresh session.
func New(b Backend, logger *slog.Logger) *ChatClient {
	if logger == nil {
		logger = slog.Default()
	}
	sess := session.New()
	return &ChatClient{
		backend: b,
		session: sess,
		logger:  logger.With("session_id", sess.ID),
	}
}

// OnChange registers an observer. Observers run on the goroutine that made
// the change and must not block.
func (c *ChatClient) OnChange(fn func(Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// SelectFile stores the document for a later Upload.
func (c *ChatClient) SelectFile(path string) (document.File, error) {
	doc, err := document.Open(path)
	if err != nil {
		return document.File{}, err
	}

	c.mu.Lock()
	c.file = &doc
	c.mu.Unlock()

	c.logger.Info("file selected", "file", doc.Name, "size", doc.Size)
	return doc, nil
}

// File returns the selected document, if any.
func (c *ChatClient) File() (document.File, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return document.File{}, false
	}
	return *c.file, true
}

// Upload sends the selected document. Without a selection it returns
// ErrNoFileSelected and makes no request. Network and server failures are
// reported in the log, not returned.
func (c *ChatClient) Upload(ctx context.Context) error {
	c.mu.Lock()
	if c.file == nil {
		c.mu.Unlock()
		return ErrNoFileSelected
	}
	doc := *c.file
	c.mu.Unlock()

	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	if _, err := c.backend.Upload(ctx, doc); err != nil {
		c.logger.Error("upload failed", "file", doc.Name, "error", err)
		c.append(session.SenderSystem, UploadFailed)
		return nil
	}

	c.mu.Lock()
	c.uploaded = doc.Digest
	c.mu.Unlock()

	c.append(session.SenderSystem, UploadSucceeded)
	return nil
}

// UploadIfChanged re-reads the selected file and uploads it unless its
// content matches the last successful upload. It reports whether an upload
// was attempted.
func (c *ChatClient) UploadIfChanged(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.file == nil {
		c.mu.Unlock()
		return false, ErrNoFileSelected
	}
	current := *c.file
	last := c.uploaded
	c.mu.Unlock()

	fresh, err := current.Refresh()
	if err != nil {
		return false, err
	}
	if last != "" && fresh.Digest == last {
		return false, nil
	}

	c.mu.Lock()
	c.file = &fresh
	c.mu.Unlock()

	if err := c.Upload(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// SubmitQuestion appends the question, asks the service and appends exactly
// one reply: the answer, or AskFailed. Blank text is ignored.
func (c *ChatClient) SubmitQuestion(ctx context.Context, text string) error {
	question := strings.TrimSpace(text)
	if question == "" {
		return nil
	}

	if err := c.begin(); err != nil {
		return err
	}
	defer func() {
		c.SetDraft("")
		c.end()
	}()

	c.append(session.SenderUser, question)

	answer, err := c.backend.Ask(ctx, question)
	if err != nil {
		c.logger.Error("ask failed", "error", err)
		c.append(session.SenderSystem, AskFailed)
		return nil
	}

	c.append(session.SenderBot, answer)
	return nil
}

// SubmitDraft submits the current draft.
func (c *ChatClient) SubmitDraft(ctx context.Context) error {
	return c.SubmitQuestion(ctx, c.Draft())
}

// SetDraft replaces the input draft.
func (c *ChatClient) SetDraft(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = text
}

// Draft returns the input draft.
func (c *ChatClient) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Loading reports whether a request is outstanding.
func (c *ChatClient) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Messages returns the log in append order.
func (c *ChatClient) Messages() []session.Message {
	return c.session.Log.Messages()
}

// Session returns the underlying session.
func (c *ChatClient) Session() *session.Session {
	return c.session
}

func (c *ChatClient) begin() error {
	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return ErrBusy
	}
	c.loading = true
	c.mu.Unlock()

	c.notify(Event{Kind: LoadingChanged, Loading: true})
	return nil
}

func (c *ChatClient) end() {
	c.mu.Lock()
	c.loading = false
	c.mu.Unlock()

	c.notify(Event{Kind: LoadingChanged, Loading: false})
}

func (c *ChatClient) append(sender session.Sender, text string) {
	msg := c.session.Log.Append(sender, text)
	c.logger.Debug("message appended", "sender", sender, "id", msg.ID)
	c.notify(Event{Kind: MessageAppended, Message: msg})
}

func (c *ChatClient) notify(ev Event) {
	c.mu.Lock()
	observers := make([]func(Event), len(c.observers))
	copy(observers, c.observers)
	c.mu.Unlock()

	for _, fn := range observers {
		fn(ev)
	}
}
