package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ergochat/readline"
	"golang.org/x/term"
)

const (
	historyFileName = ".cncline_history"
	historySize     = 500
)

// LineEditor reads controller lines for the decode REPL. On a terminal it
// uses readline with persistent history; otherwise it scans the input
// line by line, so output can be piped through.
type LineEditor struct {
	interactive bool
	rl          *readline.Instance
	scanner     *bufio.Scanner
	out         io.Writer
}

// NewLineEditor returns an editor reading from in. historyPath is used
// only in interactive mode; empty means ~/.cncline_history.
func NewLineEditor(in *os.File, out io.Writer, historyPath string) *LineEditor {
	if !term.IsTerminal(int(in.Fd())) || os.Getenv("INSIDE_EMACS") != "" {
		return newScanningEditor(in, out)
	}

	if historyPath == "" {
		historyPath = filepath.Join(homeDir(), historyFileName)
	}
	rl, err := readline.NewFromConfig(&readline.Config{
		HistoryFile:            historyPath,
		HistoryLimit:           historySize,
		DisableAutoSaveHistory: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline init failed (%v), using basic input\n", err)
		return newScanningEditor(in, out)
	}
	return &LineEditor{interactive: true, rl: rl, out: out}
}

func newScanningEditor(in io.Reader, out io.Writer) *LineEditor {
	return &LineEditor{scanner: bufio.NewScanner(in), out: out}
}

// GetLine shows prompt and returns the next line. It returns io.EOF at
// end of input and on Ctrl-C.
func (le *LineEditor) GetLine(prompt string) (string, error) {
	if le.interactive {
		le.rl.SetPrompt(prompt)
		line, err := le.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				return "", io.EOF
			}
			return "", err
		}
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			le.rl.SaveToHistory(trimmed)
		}
		return line, nil
	}

	if prompt != "" {
		fmt.Fprint(le.out, prompt)
	}
	if !le.scanner.Scan() {
		if err := le.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return le.scanner.Text(), nil
}

// IsInteractive reports whether the editor is backed by readline.
func (le *LineEditor) IsInteractive() bool {
	return le.interactive
}

func (le *LineEditor) Close() {
	if le.rl != nil {
		le.rl.Close()
		le.rl = nil
	}
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}
