package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"figscan/api/internal/scan"
)

// Bot is the subset of *tgbotapi.BotAPI the router uses.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

type Router struct {
	Bot      Bot
	Sessions *scan.Registry
	Log      zerolog.Logger

	// Timeout bounds one scan or one explanation.
	Timeout        time.Duration
	MaxUploadBytes int64
	// Download fetches a Telegram file URL; nil uses an HTTP client.
	Download func(ctx context.Context, url string) ([]byte, error)

	wg sync.WaitGroup
}

// HandleUpdate dispatches one update. Scans and explanations run in the
// background so a reset can arrive while they are in flight.
func (r *Router) HandleUpdate(upd tgbotapi.Update) {
	if upd.CallbackQuery != nil {
		r.handleCallback(*upd.CallbackQuery)
		return
	}
	if upd.Message == nil {
		return
	}
	msg := upd.Message
	cid := msg.Chat.ID

	if msg.IsCommand() {
		r.handleCommand(cid, msg.Command())
		return
	}

	switch {
	case len(msg.Photo) > 0:
		ph := msg.Photo[len(msg.Photo)-1]
		r.goUpload(upload{
			chatID: cid,
			fileID: ph.FileID,
			name:   "photo.jpg",
			size:   int64(ph.FileSize),
			page:   pageFromCaption(msg.Caption),
		})
	case msg.Document != nil:
		doc := msg.Document
		if !acceptedDocument(doc.MimeType, doc.FileName) {
			r.send(cid, textUnsupported)
			return
		}
		r.goUpload(upload{
			chatID: cid,
			fileID: doc.FileID,
			name:   doc.FileName,
			size:   int64(doc.FileSize),
			page:   pageFromCaption(msg.Caption),
		})
	default:
		r.send(cid, textHelp)
	}
}

// Wait blocks until background scans and explanations finish.
func (r *Router) Wait() { r.wg.Wait() }

func (r *Router) handleCommand(cid int64, cmd string) {
	switch cmd {
	case "start", "help":
		r.send(cid, textHelp)
	case "reset":
		r.reset(cid)
	case "health":
		r.send(cid, "OK")
	default:
		r.send(cid, "Unknown command. "+textHelp)
	}
}

func (r *Router) reset(cid int64) {
	r.session(cid).Reset()
	r.send(cid, textReset)
}

func (r *Router) session(cid int64) *scan.Session {
	return r.Sessions.GetOrCreate(chatKey(cid))
}

func (r *Router) goUpload(u upload) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.processUpload(u)
	}()
}

func (r *Router) goExplain(cid int64, itemID string) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.explain(cid, itemID)
	}()
}

func (r *Router) context() (context.Context, context.CancelFunc) {
	t := r.Timeout
	if t <= 0 {
		t = 180 * time.Second
	}
	return context.WithTimeout(context.Background(), t)
}

func (r *Router) send(chatID int64, text string) {
	if _, err := r.Bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		r.Log.Warn().Err(err).Int64("chat", chatID).Msg("telegram send failed")
	}
}

// sendMarkdown tries Markdown first and falls back to plain text when
// Telegram rejects the entities.
func (r *Router) sendMarkdown(chatID int64, text string) {
	for _, chunk := range splitMessage(text, maxMessageLen) {
		msg := tgbotapi.NewMessage(chatID, chunk)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if _, err := r.Bot.Send(msg); err != nil {
			var tgErr *tgbotapi.Error
			if errors.As(err, &tgErr) || strings.Contains(err.Error(), "parse entities") {
				r.send(chatID, chunk)
				continue
			}
			r.Log.Warn().Err(err).Int64("chat", chatID).Msg("telegram send failed")
		}
	}
}
