package telegram

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/editorialbrief/internal/orchestrator"
)

type fakeAPI struct {
	mu          sync.Mutex
	sent        []tgbotapi.Chattable
	nextID      int
	fileURL     string
	rejectParse bool
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rejectParse {
		if m, ok := c.(tgbotapi.MessageConfig); ok && m.ParseMode != "" {
			return tgbotapi.Message{}, errors.New("Bad Request: can't parse entities")
		}
	}
	f.sent = append(f.sent, c)
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeAPI) GetFileDirectURL(fileID string) (string, error) {
	return f.fileURL + "/" + fileID, nil
}

type recordingPipeline struct {
	upload  orchestrator.Upload
	payload string
	userID  string
	args    []string
}

func (p *recordingPipeline) HandleUpload(ctx context.Context, up orchestrator.Upload, rep orchestrator.Reporter) orchestrator.Result {
	p.upload = up
	var buf bytes.Buffer
	if err := up.Source.Download(ctx, &buf); err != nil {
		return orchestrator.Result{State: orchestrator.StateError, Err: err}
	}
	p.payload = buf.String()
	_ = rep.Status(ctx, orchestrator.MsgProcessing, false)
	_ = rep.Status(ctx, orchestrator.MsgScanning, false)
	_ = rep.Reply(ctx, "### brief", true)
	return orchestrator.Result{State: orchestrator.StateDone}
}

func (p *recordingPipeline) HandleManualPages(ctx context.Context, userID string, args []string, rep orchestrator.Reporter) orchestrator.Result {
	p.userID = userID
	p.args = args
	return orchestrator.Result{State: orchestrator.StateDone}
}

func command(text string) *tgbotapi.Message {
	cmd := strings.Fields(text)[0]
	return &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: 10},
		From:     &tgbotapi.User{ID: 42},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}
}

func TestHandleUpdate_Document(t *testing.T) {
	files := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/file-abc", r.URL.Path)
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	defer files.Close()

	api := &fakeAPI{fileURL: files.URL}
	p := &recordingPipeline{}
	b := NewWithAPI(api, p)

	b.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: 10},
		From:     &tgbotapi.User{ID: 42},
		Document: &tgbotapi.Document{FileID: "file-abc", MimeType: "application/pdf"},
	}})

	assert.Equal(t, "42", p.upload.UserID)
	assert.Equal(t, "file-abc", p.upload.DocumentID)
	assert.Equal(t, "application/pdf", p.upload.ContentType)
	assert.Equal(t, "%PDF-1.4", p.payload)

	require.Len(t, api.sent, 3)
	first, ok := api.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, orchestrator.MsgProcessing, first.Text)

	edit, ok := api.sent[1].(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	assert.Equal(t, 1, edit.MessageID)
	assert.Equal(t, orchestrator.MsgScanning, edit.Text)

	brief, ok := api.sent[2].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, tgbotapi.ModeMarkdown, brief.ParseMode)
}

func TestHandleUpdate_PagesCommand(t *testing.T) {
	p := &recordingPipeline{}
	b := NewWithAPI(&fakeAPI{}, p)

	b.HandleUpdate(context.Background(), tgbotapi.Update{Message: command("/pages 6 7")})
	assert.Equal(t, "42", p.userID)
	assert.Equal(t, []string{"6", "7"}, p.args)

	b.HandleUpdate(context.Background(), tgbotapi.Update{Message: command("/pages")})
	assert.Empty(t, p.args)
}

func TestHandleUpdate_Start(t *testing.T) {
	api := &fakeAPI{}
	b := NewWithAPI(api, &recordingPipeline{})
	b.HandleUpdate(context.Background(), tgbotapi.Update{Message: command("/start")})

	require.Len(t, api.sent, 1)
	assert.Equal(t, welcome, api.sent[0].(tgbotapi.MessageConfig).Text)
}

func TestHandleUpdate_IgnoresEmpty(t *testing.T) {
	api := &fakeAPI{}
	b := NewWithAPI(api, &recordingPipeline{})
	b.HandleUpdate(context.Background(), tgbotapi.Update{})
	assert.Empty(t, api.sent)
}

func TestServe_StopsWhenChannelCloses(t *testing.T) {
	api := &fakeAPI{}
	b := NewWithAPI(api, &recordingPipeline{})
	updates := make(chan tgbotapi.Update, 2)
	updates <- tgbotapi.Update{Message: command("/start")}
	updates <- tgbotapi.Update{Message: command("/start")}
	close(updates)

	b.Serve(context.Background(), updates)
	assert.Len(t, api.sent, 2)
}

func TestReporter_MarkdownFallback(t *testing.T) {
	api := &fakeAPI{rejectParse: true}
	rep := newChatReporter(api, 10)

	require.NoError(t, rep.Reply(context.Background(), "*unbalanced", true))
	require.Len(t, api.sent, 1)
	m := api.sent[0].(tgbotapi.MessageConfig)
	assert.Empty(t, m.ParseMode)
	assert.Equal(t, "*unbalanced", m.Text)
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitMessage("short", 10))

	chunks := splitMessage("aaaa\nbbbb\ncccc", 10)
	assert.Equal(t, []string{"aaaa\nbbbb", "cccc"}, chunks)

	chunks = splitMessage(strings.Repeat("x", 25), 10)
	assert.Equal(t, []string{strings.Repeat("x", 10), strings.Repeat("x", 10), strings.Repeat("x", 5)}, chunks)
}

func TestSplitMessage_NonASCIIWithoutNewlines(t *testing.T) {
	text := strings.Repeat("संपादकीय ", 1000)
	chunks := splitMessage(text, maxMessageLen)

	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.True(t, utf8.ValidString(c), "chunk %d is not valid UTF-8", i)
		assert.LessOrEqual(t, utf16Len(c), maxMessageLen)
	}
	assert.Equal(t, text, strings.Join(chunks, ""))
	// measured in characters, so the first chunk is filled to the limit
	assert.Equal(t, maxMessageLen, utf16Len(chunks[0]))
}

func TestSplitMessage_SurrogatePairs(t *testing.T) {
	chunks := splitMessage(strings.Repeat("😀", 5), 3)
	assert.Equal(t, []string{"😀", "😀", "😀", "😀", "😀"}, chunks)
}
