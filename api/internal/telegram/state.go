package telegram

import (
	"regexp"
	"strconv"
	"strings"
)

// chatKey maps a chat to its registry key; each chat has exactly one session.
func chatKey(chatID int64) string {
	return "chat:" + strconv.FormatInt(chatID, 10)
}

var rePage = regexp.MustCompile(`\d+`)

// pageFromCaption reads the first number in a caption ("page 3", "3"); default 1.
func pageFromCaption(caption string) int {
	m := rePage.FindString(caption)
	if m == "" {
		return 1
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 1
	}
	return n
}

func acceptedDocument(mime, name string) bool {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if strings.HasPrefix(mime, "image/") || mime == "application/pdf" {
		return true
	}
	name = strings.ToLower(name)
	for _, ext := range []string{".pdf", ".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tif", ".tiff"} {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
