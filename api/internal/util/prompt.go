package util

import (
	"os"
	"path/filepath"
	"strings"
)

// LoadPrompt returns the instruction text stored in $PROMPT_DIR/<name>.txt.
// When the directory is unset or the file is missing/empty, fallback is returned.
func LoadPrompt(name, fallback string) string {
	dir := strings.TrimSpace(os.Getenv("PROMPT_DIR"))
	if dir == "" {
		return fallback
	}
	b, err := os.ReadFile(filepath.Join(dir, name+".txt"))
	if err != nil {
		return fallback
	}
	if s := strings.TrimSpace(string(b)); s != "" {
		return s
	}
	return fallback
}
