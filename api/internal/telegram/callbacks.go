package telegram

import (
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"figscan/api/internal/scan"
)

func (r *Router) handleCallback(cb tgbotapi.CallbackQuery) {
	_, _ = r.Bot.Request(tgbotapi.NewCallback(cb.ID, "")) // ack
	if cb.Message == nil {
		return
	}
	cid := cb.Message.Chat.ID

	switch {
	case cb.Data == cbReset:
		r.reset(cid)
	case strings.HasPrefix(cb.Data, cbExplain):
		r.goExplain(cid, strings.TrimPrefix(cb.Data, cbExplain))
	}
}

func (r *Router) explain(cid int64, itemID string) {
	ctx, cancel := r.context()
	defer cancel()

	_, _ = r.Bot.Request(tgbotapi.NewChatAction(cid, tgbotapi.ChatTyping))

	s := r.session(cid)
	item, err := s.Item(itemID)
	if err != nil {
		r.send(cid, textGone)
		return
	}
	txt, err := s.Explain(ctx, itemID)
	switch {
	case errors.Is(err, scan.ErrStaleScan):
		return
	case err != nil:
		r.send(cid, textGone)
		return
	}
	r.sendMarkdown(cid, "*"+escape(item.Label)+"*\n\n"+txt)
}

func escape(s string) string {
	s = strings.ReplaceAll(s, "`", "'")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "[", "\\[")
	return s
}
