package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/peterh/liner"
)

// errAborted reports that the user aborted the prompt with Ctrl-C.
var errAborted = errors.New("prompt aborted")

// lineReader reads one line of user input per call.
type lineReader interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

// newLineReader returns a line editor with history when in is an interactive
// terminal, and a plain scanner otherwise.
func newLineReader(in io.Reader, out io.Writer) lineReader {
	if f, ok := in.(*os.File); ok && isTerminal(f) && liner.TerminalSupported() {
		state := liner.NewLiner()
		state.SetCtrlCAborts(true)

		return &linerReader{state: state}
	}

	return &scanReader{scanner: bufio.NewScanner(in), out: out}
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}

	return fi.Mode()&os.ModeCharDevice != 0
}

type linerReader struct {
	state *liner.State
}

func (r *linerReader) ReadLine(prompt string) (string, error) {
	line, err := r.state.Prompt(prompt)
	if err != nil {
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", errAborted
		}
		return "", err
	}

	if line != "" {
		r.state.AppendHistory(line)
	}

	return line, nil
}

func (r *linerReader) Close() error { return r.state.Close() }

type scanReader struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func (r *scanReader) ReadLine(prompt string) (string, error) {
	fmt.Fprint(r.out, prompt)

	if !r.scanner.Scan() {
		fmt.Fprintln(r.out)

		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}

	return r.scanner.Text(), nil
}

func (r *scanReader) Close() error { return nil }
