package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
)

// ui prints progress to stderr and results to out. quiet disables the
// spinner and progress bar.
type ui struct {
	out   io.Writer
	quiet bool
}

func newUI(out io.Writer, quiet bool) *ui {
	return &ui{out: out, quiet: quiet}
}

// spin shows a spinner until the returned stop func is called.
func (u *ui) spin(message string) (stop func()) {
	if u.quiet {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " " + message
	s.Start()
	return s.Stop
}

func (u *ui) bar(total int, description string) *progressbar.ProgressBar {
	if u.quiet {
		return progressbar.DefaultSilent(int64(total), description)
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)
}

func (u *ui) success(format string, args ...any) {
	color.New(color.FgGreen).Fprintf(u.out, "✓ %s\n", fmt.Sprintf(format, args...))
}

func (u *ui) warn(format string, args ...any) {
	color.New(color.FgYellow).Fprintf(u.out, "⚠ %s\n", fmt.Sprintf(format, args...))
}

func (u *ui) item(i int, label, file string) {
	if file == "" {
		file = "(empty region)"
	}
	fmt.Fprintf(u.out, "  %s %s  %s\n", color.CyanString("%02d", i+1), label, color.New(color.Faint).Sprint(file))
}
