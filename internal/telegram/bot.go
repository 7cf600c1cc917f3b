// Package telegram is the chat transport: it turns bot updates into
// pipeline calls and pipeline output into chat messages.
package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	cfgpkg "github.com/local/editorialbrief/internal/config"
	"github.com/local/editorialbrief/internal/orchestrator"
)

const welcome = "Welcome! Send me a newspaper PDF, and I'll extract and summarize the editorials for you."

// API is the subset of *tgbotapi.BotAPI the handlers use.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Pipeline is the part of orchestrator.Pipeline the bot drives.
type Pipeline interface {
	HandleUpload(ctx context.Context, up orchestrator.Upload, rep orchestrator.Reporter) orchestrator.Result
	HandleManualPages(ctx context.Context, userID string, args []string, rep orchestrator.Reporter) orchestrator.Result
}

type Bot struct {
	api         API
	bot         *tgbotapi.BotAPI
	pipeline    Pipeline
	http        *http.Client
	pollTimeout int
	wg          sync.WaitGroup
}

// New connects to the Bot API with the configured token.
func New(cfg cfgpkg.TelegramConfig, p Pipeline) (*Bot, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram: TELEGRAM_BOT_TOKEN is not set")
	}
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	api.Debug = cfg.Debug
	log.Info().Str("bot", api.Self.UserName).Msg("telegram bot authorized")

	b := NewWithAPI(api, p)
	b.bot = api
	if cfg.PollTimeout > 0 {
		b.pollTimeout = cfg.PollTimeout
	}
	return b, nil
}

// NewWithAPI builds a Bot around any API implementation.
func NewWithAPI(api API, p Pipeline) *Bot {
	return &Bot{
		api:         api,
		pipeline:    p,
		http:        &http.Client{Timeout: 2 * time.Minute},
		pollTimeout: 60,
	}
}

// Run long-polls until ctx is cancelled, then waits for in-flight updates.
func (b *Bot) Run(ctx context.Context) error {
	if b.bot == nil {
		return fmt.Errorf("telegram: no bot connection")
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout
	updates := b.bot.GetUpdatesChan(u)
	go func() {
		<-ctx.Done()
		b.bot.StopReceivingUpdates()
	}()
	log.Info().Msg("Bot is running...")
	b.Serve(ctx, updates)
	return nil
}

// Serve handles each update on its own goroutine until updates closes or
// ctx ends.
func (b *Bot) Serve(ctx context.Context, updates <-chan tgbotapi.Update) {
	defer b.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			b.wg.Add(1)
			go func(upd tgbotapi.Update) {
				defer b.wg.Done()
				b.HandleUpdate(ctx, upd)
			}(upd)
		}
	}
}

// HandleUpdate dispatches one update synchronously.
func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	rep := newChatReporter(b.api, msg.Chat.ID)
	userID := strconv.FormatInt(msg.Chat.ID, 10)
	if msg.From != nil {
		userID = strconv.FormatInt(msg.From.ID, 10)
	}

	switch {
	case msg.IsCommand() && msg.Command() == "start":
		_ = rep.Reply(ctx, welcome, false)
	case msg.IsCommand() && msg.Command() == "pages":
		args := strings.Fields(msg.CommandArguments())
		b.pipeline.HandleManualPages(ctx, userID, args, rep)
	case msg.Document != nil:
		doc := msg.Document
		log.Info().Str("user_id", userID).Str("file_id", doc.FileID).Str("mime", doc.MimeType).Int("size", doc.FileSize).Msg("Downloading file")
		b.pipeline.HandleUpload(ctx, orchestrator.Upload{
			UserID:      userID,
			DocumentID:  doc.FileID,
			ContentType: doc.MimeType,
			Source:      b.fileSource(doc.FileID),
		}, rep)
	}
}

func (b *Bot) fileSource(fileID string) orchestrator.Source {
	return orchestrator.SourceFunc(func(ctx context.Context, w io.Writer) error {
		url, err := b.api.GetFileDirectURL(fileID)
		if err != nil {
			return fmt.Errorf("get file: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := b.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("file download: http %d", resp.StatusCode)
		}
		_, err = io.Copy(w, resp.Body)
		return err
	})
}
