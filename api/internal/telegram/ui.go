package telegram

import (
	"fmt"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"figscan/api/internal/scan"
)

const (
	maxMessageLen = 4000
	maxCaptionLen = 1000

	cbExplain = "explain:"
	cbReset   = "reset"
)

const (
	textHelp = "Send a page as a photo or as a document (image or PDF). " +
		"For a PDF put the page number in the caption. /reset clears the current page."
	textScanning    = "Scanning the page for diagrams, charts, photos and maps…"
	textUnsupported = "Unsupported format: send an image or a PDF."
	textFailed      = "Extraction failed. Please try another file."
	textNoElements  = "No visual elements found on this page."
	textReset       = "Cleared. Send another page."
	textGone        = "This element is no longer available. Send the page again."
	textTooLarge    = "The file is too large."
)

func itemKeyboard(itemID string) tgbotapi.InlineKeyboardMarkup {
	explain := tgbotapi.NewInlineKeyboardButtonData("Explain", cbExplain+itemID)
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(explain))
}

func resetKeyboard() tgbotapi.InlineKeyboardMarkup {
	reset := tgbotapi.NewInlineKeyboardButtonData("Reset", cbReset)
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(reset))
}

func pageCaption(snap scan.Snapshot) string {
	n := len(snap.Items)
	noun := "elements"
	if n == 1 {
		noun = "element"
	}
	if snap.Page != nil && snap.Page.Count > 1 {
		return fmt.Sprintf("Page %d of %d: %d %s", snap.Page.Index, snap.Page.Count, n, noun)
	}
	return fmt.Sprintf("%d %s found", n, noun)
}

func itemCaption(i int, it scan.ItemView) string {
	c := fmt.Sprintf("%d. %s", i+1, it.Label)
	if d := strings.TrimSpace(it.Description); d != "" {
		c += "\n" + d
	}
	if it.Empty() {
		c += "\n(empty region)"
	}
	return truncate(c, maxCaptionLen)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

// splitMessage cuts s into chunks of at most n runes, preferring line breaks.
func splitMessage(s string, n int) []string {
	var out []string
	r := []rune(s)
	for len(r) > n {
		cut := n
		for i := n; i > n/2; i-- {
			if r[i-1] == '\n' {
				cut = i
				break
			}
		}
		out = append(out, string(r[:cut]))
		r = r[cut:]
	}
	if len(r) > 0 || len(out) == 0 {
		out = append(out, string(r))
	}
	return out
}
