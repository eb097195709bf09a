package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ZanzyTHEbar/dupescan/dupe/filesystem/types"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
)

// terminal is the interactive console side of the CLI
type terminal struct {
	in  *bufio.Reader
	out io.Writer
	err io.Writer
}

func newTerminal(in io.Reader, out, errOut io.Writer) *terminal {
	return &terminal{in: bufio.NewReader(in), out: out, err: errOut}
}

func (t *terminal) Output(message string) {
	fmt.Fprintln(t.out, message)
}

func (t *terminal) Warning(message string) {
	fmt.Fprintln(t.err, color.YellowString("Warning: %s", message))
}

func (t *terminal) Error(message string, err error) {
	if err != nil {
		fmt.Fprintln(t.err, color.RedString("Error: %s: %v", message, err))
		return
	}
	fmt.Fprintln(t.err, color.RedString("Error: %s", message))
}

// Prompt reads one line. End of input with nothing typed reads as an empty reply.
func (t *terminal) Prompt(question string) (string, error) {
	fmt.Fprint(t.out, question)
	line, err := t.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// barReporter drives a progress bar from engine progress updates
type barReporter struct {
	bar *progressbar.ProgressBar
}

func newBarReporter(w io.Writer) *barReporter {
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Starting..."),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)
	return &barReporter{bar: bar}
}

func (r *barReporter) Report(percent int, message string) {
	r.bar.Describe(message)
	_ = r.bar.Set(percent)
}

// follow renders events until the channel is closed. The returned channel is
// closed once the last event has been drawn.
func (r *barReporter) follow(events <-chan types.ProgressEvent) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			r.Report(ev.Percent, ev.Message)
		}
	}()
	return done
}

func (r *barReporter) Finish() {
	_ = r.bar.Finish()
}

var _ types.ProgressReporter = (*barReporter)(nil)
