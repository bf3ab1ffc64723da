// Package prompt is the interactive surface of the bootstrap driver. Core
// packages never prompt; the driver asks through a Prompter.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

var (
	ErrNoInput      = errors.New("no answer available")
	ErrNoOptions    = errors.New("nothing to choose from")
	ErrTooManyTries = errors.New("too many invalid answers")
)

const maxInvalidAnswers = 3

type Prompter interface {
	Confirm(prompt string) (bool, error)
	// Select returns the index of the chosen option.
	Select(prompt string, options []string) (int, error)
	Input(prompt, defaultValue string) (string, error)
	Password(prompt string) (string, error)
}

// Terminal prompts on a line-oriented reader and writer. Passwords are read
// without echo when the input is a terminal.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
	fd  int
}

// NewTerminal prompts on stdin and writes prompts to out.
func NewTerminal(out io.Writer) *Terminal {
	t := NewReaderTerminal(os.Stdin, out)
	t.fd = int(os.Stdin.Fd())
	return t
}

// NewReaderTerminal prompts on in, which is never treated as a terminal.
func NewReaderTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out, fd: -1}
}

func (t *Terminal) readLine() (string, error) {
	line, err := t.in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		if errors.Is(err, io.EOF) {
			return "", ErrNoInput
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (t *Terminal) Confirm(prompt string) (bool, error) {
	for i := 0; i < maxInvalidAnswers; i++ {
		fmt.Fprintf(t.out, "❓ %s [y/N]: ", prompt)
		line, err := t.readLine()
		if err != nil {
			return false, err
		}
		if answer, ok := parseYesNo(line); ok {
			return answer, nil
		}
		fmt.Fprintln(t.out, "Please answer y or n.")
	}
	return false, ErrTooManyTries
}

func (t *Terminal) Select(prompt string, options []string) (int, error) {
	if len(options) == 0 {
		return 0, ErrNoOptions
	}
	for i := 0; i < maxInvalidAnswers; i++ {
		fmt.Fprintf(t.out, "❓ %s\n", prompt)
		for n, opt := range options {
			fmt.Fprintf(t.out, "  %d) %s\n", n+1, opt)
		}
		fmt.Fprintf(t.out, "Choice [1-%d]: ", len(options))
		line, err := t.readLine()
		if err != nil {
			return 0, err
		}
		if idx, ok := parseChoice(line, options); ok {
			return idx, nil
		}
		fmt.Fprintln(t.out, "Invalid choice.")
	}
	return 0, ErrTooManyTries
}

func (t *Terminal) Input(prompt, defaultValue string) (string, error) {
	if defaultValue != "" {
		fmt.Fprintf(t.out, "❓ %s [%s]: ", prompt, defaultValue)
	} else {
		fmt.Fprintf(t.out, "❓ %s: ", prompt)
	}
	line, err := t.readLine()
	if err != nil {
		return "", err
	}
	if line == "" {
		return defaultValue, nil
	}
	return line, nil
}

func (t *Terminal) Password(prompt string) (string, error) {
	fmt.Fprintf(t.out, "🔒 %s: ", prompt)
	if t.fd >= 0 && term.IsTerminal(t.fd) {
		bytePassword, err := term.ReadPassword(t.fd)
		fmt.Fprintln(t.out)
		if err != nil {
			return "", err
		}
		return string(bytePassword), nil
	}
	return t.readLine()
}

func parseYesNo(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes":
		return true, true
	case "n", "no", "":
		return false, true
	}
	return false, false
}

// parseChoice accepts a 1-based number or the exact option text.
func parseChoice(s string, options []string) (int, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil && n >= 1 && n <= len(options) {
		return n - 1, true
	}
	for i, opt := range options {
		if opt == s {
			return i, true
		}
	}
	return 0, false
}
