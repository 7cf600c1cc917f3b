package orchestrator

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/local/editorialbrief/internal/imagerender"
)

// State is a step of the upload and manual-selection state machine.
type State string

const (
	StateIdle                State = "idle"
	StateDownloading         State = "downloading"
	StateDetecting           State = "detecting"
	StateAnalyzing           State = "analyzing"
	StateAwaitingManualPages State = "awaiting_manual_pages"
	StateDone                State = "done"
	StateError               State = "error"
)

// ErrNotPDF rejects uploads whose declared or sniffed type is not PDF.
var ErrNotPDF = errors.New("upload is not a PDF")

// User-visible texts.
const (
	MsgNotPDF         = "Please send a PDF file."
	MsgProcessing     = "Processing PDF... generating thumbnails."
	MsgScanning       = "Scanning for editorial pages..."
	MsgFoundFmt       = "Found editorials on pages %s. Analyzing..."
	MsgBriefHeader    = "Here is your Decision-Maker's Brief:"
	MsgErrorFmt       = "An error occurred: %s"
	MsgNoArgs         = "Please provide page numbers. Example: /pages 6 7"
	MsgNoRecent       = "No recent PDF found. Please upload the newspaper again."
	MsgInvalidPages   = "Invalid page numbers. Please use format: /pages 6 7"
	MsgAnalyzingFmt   = "Analyzing pages %s..."
	MsgManualFallback = "Could not automatically locate editorials. Please reply with the page numbers manually using the /pages command.\nExample: `/pages 6 7`"
)

// Source yields the raw bytes of an uploaded document.
type Source interface {
	Download(ctx context.Context, w io.Writer) error
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, w io.Writer) error

func (f SourceFunc) Download(ctx context.Context, w io.Writer) error { return f(ctx, w) }

// Upload is one inbound document message.
type Upload struct {
	UserID      string
	DocumentID  string
	ContentType string
	Source      Source
}

// Reporter delivers user-visible output. Status updates a single progress
// line in place; Reply sends a new message.
type Reporter interface {
	Status(ctx context.Context, text string, markdown bool) error
	Reply(ctx context.Context, text string, markdown bool) error
}

// Result is the outcome of one handled event.
type Result struct {
	State State
	Pages []int
	Brief string
	Err   error
}

type Renderer interface {
	RenderLow(ctx context.Context, pdfPath string, pageCap int) ([]imagerender.PageImage, int, error)
	RenderHigh(ctx context.Context, pdfPath string, pages []int) ([]imagerender.PageImage, int, error)
}

type Classifier interface {
	Detect(ctx context.Context, images []imagerender.PageImage) []int
}

type Analyzer interface {
	Analyze(ctx context.Context, images []imagerender.PageImage) string
}

// Executor runs slow calls off the caller's goroutine. dispatcher.Pool
// satisfies it.
type Executor interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// Message is one recorded Reporter call.
type Message struct {
	Kind     string `json:"kind"`
	Text     string `json:"text"`
	Markdown bool   `json:"markdown,omitempty"`
}

// Transcript is a Reporter that records every message in order.
type Transcript struct {
	mu       sync.Mutex
	messages []Message
}

func (t *Transcript) Status(ctx context.Context, text string, markdown bool) error {
	t.add(Message{Kind: "status", Text: text, Markdown: markdown})
	return nil
}

func (t *Transcript) Reply(ctx context.Context, text string, markdown bool) error {
	t.add(Message{Kind: "reply", Text: text, Markdown: markdown})
	return nil
}

func (t *Transcript) add(m Message) {
	t.mu.Lock()
	t.messages = append(t.messages, m)
	t.mu.Unlock()
}

// Messages returns a copy of everything recorded so far.
func (t *Transcript) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Texts returns just the message texts.
func (t *Transcript) Texts() []string {
	msgs := t.Messages()
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Text
	}
	return out
}
