package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/sakif/jsmemes/internal/executor"
)

const (
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiGreen  = "\x1b[32m"
	ansiDim    = "\x1b[2m"
	ansiReset  = "\x1b[0m"
)

// Render writes a run the way the playground page shows it: one line per
// console call, then the failure or the return value. A run that wrote
// nothing gets a single confirmation line so the output is never empty.
func Render(w io.Writer, res *executor.ExecutionResult, tint bool) error {
	p := &printer{w: w, tint: tint}

	for _, ev := range res.Events {
		p.event(ev)
	}

	switch {
	case !res.Succeeded:
		p.line(ansiRed, "✗ "+res.Error)
	case res.ReturnValue != "" && res.ReturnValue != "undefined":
		p.line(ansiGreen, "← "+res.ReturnValue)
	case len(res.Events) == 0:
		p.line(ansiDim, "✓ execution completed, no output")
	}
	return p.err
}

// RenderEvents writes console lines only, for output that arrives after the
// result has been rendered.
func RenderEvents(w io.Writer, events []executor.CapturedEvent, tint bool) error {
	p := &printer{w: w, tint: tint}
	for _, ev := range events {
		p.event(ev)
	}
	return p.err
}

// printer remembers the first write error so callers check once at the end.
type printer struct {
	w    io.Writer
	tint bool
	err  error
}

func (p *printer) event(ev executor.CapturedEvent) {
	color := ""
	switch ev.Channel {
	case executor.ChannelError:
		color = ansiRed
	case executor.ChannelWarn:
		color = ansiYellow
	}
	p.line(color, fmt.Sprintf("[%s] %s", ev.Channel, strings.Join(ev.Args, " ")))
}

func (p *printer) line(color, text string) {
	if p.err != nil {
		return
	}
	if p.tint && color != "" {
		text = color + text + ansiReset
	}
	_, p.err = fmt.Fprintln(p.w, text)
}

// shouldTint reports whether w is a terminal that wants color. NO_COLOR
// turns it off regardless.
func shouldTint(w io.Writer) bool {
	if _, off := os.LookupEnv("NO_COLOR"); off {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
