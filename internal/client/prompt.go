package client

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

// Prompter reads answers line by line and passwords without echo.
type Prompter struct {
	in  *bufio.Scanner
	out io.Writer
	fd  int
}

// NewPrompter reads from in and prints labels to out. Passwords are read
// without echo when in is a terminal.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	fd := -1
	if f, ok := in.(*os.File); ok {
		fd = int(f.Fd())
	}
	return &Prompter{in: bufio.NewScanner(in), out: out, fd: fd}
}

// Ask prints label and returns the trimmed next line. It returns io.EOF
// when the input is exhausted.
func (p *Prompter) Ask(label string) (string, error) {
	fmt.Fprint(p.out, label)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(p.in.Text()), nil
}

// Password prints label and reads a line without echoing it.
func (p *Prompter) Password(label string) (string, error) {
	if p.fd < 0 || !isTerminal(p.fd) {
		return p.Ask(label)
	}
	fmt.Fprint(p.out, label)
	b, err := readPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}
