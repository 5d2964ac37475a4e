// Package prompt asks the operator yes/no and free-text questions during an
// interactive update.
package prompt

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
)

// ErrAborted is returned when the operator interrupts a prompt.
var ErrAborted = errors.New("prompt aborted")

// Prompter asks questions.
type Prompter interface {
	// Confirm asks a yes/no question. An empty answer selects def.
	Confirm(question string, def bool) (bool, error)
	// Ask reads one line of free text.
	Ask(question string) (string, error)
}

// Terminal is a readline-backed Prompter.
type Terminal struct {
	rl *readline.Instance
}

// NewTerminal opens a line editor on stdin/stdout, or on in/out when given.
func NewTerminal(in io.ReadCloser, out io.Writer) (*Terminal, error) {
	cfg := &readline.Config{
		InterruptPrompt: "^C",
		EOFPrompt:       "",
	}
	if in != nil {
		cfg.Stdin = in
	}
	if out != nil {
		cfg.Stdout = out
	}
	rl, err := readline.NewEx(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening terminal: %w", err)
	}
	return &Terminal{rl: rl}, nil
}

// Close releases the terminal.
func (t *Terminal) Close() error { return t.rl.Close() }

func (t *Terminal) readLine(prompt string) (string, error) {
	t.rl.SetPrompt(prompt)
	line, err := t.rl.Readline()
	switch {
	case errors.Is(err, readline.ErrInterrupt):
		return "", ErrAborted
	case errors.Is(err, io.EOF):
		return "", nil
	case err != nil:
		return "", fmt.Errorf("reading answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// Confirm implements Prompter. Unrecognised answers are asked again.
func (t *Terminal) Confirm(question string, def bool) (bool, error) {
	hint := "[y/N]"
	if def {
		hint = "[Y/n]"
	}
	for {
		line, err := t.readLine(fmt.Sprintf("%s %s ", question, hint))
		if err != nil {
			return false, err
		}
		if yes, ok := ParseYesNo(line, def); ok {
			return yes, nil
		}
		fmt.Fprintln(t.rl.Stdout(), "Please answer y or n.")
	}
}

// Ask implements Prompter.
func (t *Terminal) Ask(question string) (string, error) {
	return t.readLine(question + " ")
}

// ParseYesNo interprets a yes/no answer. ok is false for anything that is
// neither empty nor a recognised answer.
func ParseYesNo(answer string, def bool) (yes, ok bool) {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "":
		return def, true
	case "y", "yes":
		return true, true
	case "n", "no":
		return false, true
	}
	return false, false
}

// SplitList splits a comma or whitespace separated answer, dropping blanks.
func SplitList(answer string) []string {
	fields := strings.FieldsFunc(answer, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// Scripted replays canned answers in order. It never blocks; running out of
// answers yields defaults.
type Scripted struct {
	Answers []string
	// Asked records every question, in order.
	Asked []string
}

// Confirm implements Prompter.
func (s *Scripted) Confirm(question string, def bool) (bool, error) {
	ans := s.next(question)
	yes, ok := ParseYesNo(ans, def)
	if !ok {
		return false, fmt.Errorf("unrecognised answer %q to %q", ans, question)
	}
	return yes, nil
}

// Ask implements Prompter.
func (s *Scripted) Ask(question string) (string, error) {
	return s.next(question), nil
}

func (s *Scripted) next(question string) string {
	s.Asked = append(s.Asked, question)
	if len(s.Answers) == 0 {
		return ""
	}
	ans := s.Answers[0]
	s.Answers = s.Answers[1:]
	return ans
}
