package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"figscan/api/internal/raster"
	"figscan/api/internal/scan"
)

type upload struct {
	chatID int64
	fileID string
	name   string
	size   int64
	page   int
}

func (r *Router) processUpload(u upload) {
	cid := u.chatID
	if r.MaxUploadBytes > 0 && u.size > r.MaxUploadBytes {
		r.send(cid, textTooLarge)
		return
	}

	ctx, cancel := r.context()
	defer cancel()

	data, err := r.fetch(ctx, u.fileID)
	if err != nil {
		r.Log.Error().Err(err).Int64("chat", cid).Msg("telegram download failed")
		r.send(cid, textFailed)
		return
	}
	if r.MaxUploadBytes > 0 && int64(len(data)) > r.MaxUploadBytes {
		r.send(cid, textTooLarge)
		return
	}

	r.send(cid, textScanning)
	snap, err := r.session(cid).Scan(ctx, raster.NewSource(u.name, data), u.page)
	switch {
	case errors.Is(err, scan.ErrStaleScan):
		return
	case errors.Is(err, raster.ErrUnsupportedFormat):
		r.send(cid, textUnsupported)
		return
	case err != nil:
		r.send(cid, textFailed)
		return
	}
	r.sendResult(cid, snap)
}

func (r *Router) sendResult(cid int64, snap scan.Snapshot) {
	page := tgbotapi.NewPhoto(cid, tgbotapi.FileBytes{Name: "page.jpg", Bytes: snap.PageJPEG})
	page.Caption = pageCaption(snap)
	if len(snap.Items) == 0 {
		page.Caption += "\n" + textNoElements
	}
	page.ReplyMarkup = resetKeyboard()
	if _, err := r.Bot.Send(page); err != nil {
		r.Log.Warn().Err(err).Int64("chat", cid).Msg("send page preview failed")
	}

	for i, it := range snap.Items {
		if it.Empty() {
			msg := tgbotapi.NewMessage(cid, itemCaption(i, it))
			msg.ReplyMarkup = itemKeyboard(it.ID)
			_, _ = r.Bot.Send(msg)
			continue
		}
		ph := tgbotapi.NewPhoto(cid, tgbotapi.FileBytes{Name: fmt.Sprintf("item-%02d.jpg", i+1), Bytes: it.Image})
		ph.Caption = itemCaption(i, it)
		ph.ReplyMarkup = itemKeyboard(it.ID)
		if _, err := r.Bot.Send(ph); err != nil {
			r.Log.Warn().Err(err).Int64("chat", cid).Str("item", it.ID).Msg("send item failed")
		}
	}
}

func (r *Router) fetch(ctx context.Context, fileID string) ([]byte, error) {
	url, err := r.Bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, err
	}
	if r.Download != nil {
		return r.Download(ctx, url)
	}
	return download(ctx, url)
}

func download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	return io.ReadAll(resp.Body)
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 60 * time.Second}
}
