package selector

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Prompter asks the user questions and returns their raw answers.
// Implementations return io.EOF when no more input is available.
type Prompter interface {
	Ask(ctx context.Context, question string) (string, error)
}

// ConsolePrompter reads answers line by line from a reader, typically stdin.
type ConsolePrompter struct {
	out   io.Writer
	lines chan line
	once  sync.Once
	in    *bufio.Scanner
}

type line struct {
	text string
	err  error
}

// NewConsolePrompter creates a prompter that writes questions to out and
// reads answers from in.
func NewConsolePrompter(in io.Reader, out io.Writer) *ConsolePrompter {
	return &ConsolePrompter{out: out, in: bufio.NewScanner(in), lines: make(chan line)}
}

// read feeds lines to Ask. It exits at end of input.
func (p *ConsolePrompter) read() {
	for p.in.Scan() {
		p.lines <- line{text: p.in.Text()}
	}
	err := p.in.Err()
	if err == nil {
		err = io.EOF
	} else {
		err = fmt.Errorf("read answer: %w", err)
	}
	for {
		p.lines <- line{err: err}
	}
}

// Ask writes the question and blocks until a line is read or ctx is done.
func (p *ConsolePrompter) Ask(ctx context.Context, question string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := fmt.Fprint(p.out, question); err != nil {
		return "", fmt.Errorf("write prompt: %w", err)
	}
	p.once.Do(func() { go p.read() })

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case l := <-p.lines:
		return l.text, l.err
	}
}

// QueuePrompter answers questions from a pre-supplied queue. It records every
// question it was asked.
type QueuePrompter struct {
	mu        sync.Mutex
	answers   []string
	questions []string
}

// NewQueuePrompter creates a prompter that returns answers in order and
// io.EOF once they run out.
func NewQueuePrompter(answers ...string) *QueuePrompter {
	return &QueuePrompter{answers: answers}
}

// Ask pops the next answer.
func (p *QueuePrompter) Ask(_ context.Context, question string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.questions = append(p.questions, question)
	if len(p.answers) == 0 {
		return "", io.EOF
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return a, nil
}

// Questions returns the questions asked so far.
func (p *QueuePrompter) Questions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.questions...)
}

// Remaining returns how many answers have not been consumed.
func (p *QueuePrompter) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.answers)
}

var (
	_ Prompter = (*ConsolePrompter)(nil)
	_ Prompter = (*QueuePrompter)(nil)
)

func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}

func normalize(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}
