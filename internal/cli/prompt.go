package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter asks the operator for input. Secrets are read without echo when
// the input is a terminal.
type Prompter struct {
	reader *bufio.Reader
	out    io.Writer
	fd     int
	tty    bool
}

// NewPrompter reads from in and writes prompts to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	p := &Prompter{reader: bufio.NewReader(in), out: out, fd: -1}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
		p.tty = true
	}
	return p
}

// Line prompts with label and returns the trimmed answer.
func (p *Prompter) Line(label string) (string, error) {
	fmt.Fprint(p.out, label)
	s, err := p.reader.ReadString('\n')
	s = strings.TrimSpace(s)
	if err != nil && (err != io.EOF || s == "") {
		if err == io.EOF {
			return "", ErrEmptyInput
		}
		return "", err
	}
	return s, nil
}

// Secret prompts with label and reads a value without echoing it.
func (p *Prompter) Secret(label string) (string, error) {
	if !p.tty {
		return p.Line(label)
	}
	fmt.Fprint(p.out, label)
	b, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return string(b), nil
}

// LineOr returns preset when it is non-empty and prompts otherwise.
func (p *Prompter) LineOr(preset, label string) (string, error) {
	if preset != "" {
		return preset, nil
	}
	return p.Line(label)
}

// SecretOr returns the named environment variable when set and prompts
// otherwise.
func (p *Prompter) SecretOr(envKey, label string) (string, error) {
	if v := os.Getenv(envKey); v != "" {
		return v, nil
	}
	return p.Secret(label)
}
