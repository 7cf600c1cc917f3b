package telegram

import (
	"context"
	"strings"
	"sync"
	"unicode/utf16"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// maxMessageLen is the Bot API limit for one text message.
const maxMessageLen = 4096

// chatReporter keeps one status message per event and edits it in place.
type chatReporter struct {
	api    API
	chatID int64

	mu       sync.Mutex
	statusID int
}

func newChatReporter(api API, chatID int64) *chatReporter {
	return &chatReporter{api: api, chatID: chatID}
}

func (r *chatReporter) Status(ctx context.Context, text string, markdown bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.statusID == 0 {
		sent, err := r.send(newText(r.chatID, text, markdown), newText(r.chatID, text, false), markdown)
		if err != nil {
			return err
		}
		r.statusID = sent.MessageID
		return nil
	}
	edit := tgbotapi.NewEditMessageText(r.chatID, r.statusID, text)
	plain := edit
	if markdown {
		edit.ParseMode = tgbotapi.ModeMarkdown
	}
	_, err := r.send(edit, plain, markdown)
	return err
}

func (r *chatReporter) Reply(ctx context.Context, text string, markdown bool) error {
	for _, chunk := range splitMessage(text, maxMessageLen) {
		if _, err := r.send(newText(r.chatID, chunk, markdown), newText(r.chatID, chunk, false), markdown); err != nil {
			return err
		}
	}
	return nil
}

// send retries without parse mode when Telegram rejects the markup, which
// happens with unbalanced model output.
func (r *chatReporter) send(c, plain tgbotapi.Chattable, markdown bool) (tgbotapi.Message, error) {
	m, err := r.api.Send(c)
	if err != nil && markdown {
		log.Warn().Err(err).Int64("chat_id", r.chatID).Msg("markdown rejected, resending as plain text")
		return r.api.Send(plain)
	}
	return m, err
}

func newText(chatID int64, text string, markdown bool) tgbotapi.MessageConfig {
	m := tgbotapi.NewMessage(chatID, text)
	if markdown {
		m.ParseMode = tgbotapi.ModeMarkdown
	}
	return m
}

// splitMessage cuts text into chunks of at most limit UTF-16 code units,
// the unit Telegram counts in, preferring line boundaries. Cuts always fall
// on rune boundaries.
func splitMessage(text string, limit int) []string {
	if utf16Len(text) <= limit {
		return []string{text}
	}
	var out []string
	for utf16Len(text) > limit {
		end := prefixWithin(text, limit)
		cut := strings.LastIndex(text[:end], "\n")
		if cut <= 0 {
			cut = end
		}
		out = append(out, text[:cut])
		text = strings.TrimPrefix(text[cut:], "\n")
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}

// prefixWithin returns the byte length of the longest prefix of text that
// fits in limit UTF-16 code units. It is at least one rune.
func prefixWithin(text string, limit int) int {
	units := 0
	for i, r := range text {
		units += utf16.RuneLen(r)
		if units > limit {
			if i == 0 {
				_, size := utf8.DecodeRuneInString(text)
				return size
			}
			return i
		}
	}
	return len(text)
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}
