package main

import (
	"errors"
	"fmt"
	"io"
	"lox-lang/internal/driver"
	"lox-lang/internal/token"
	"strings"

	"github.com/chzyer/readline"
	"github.com/urfave/cli/v2"
)

// ---- ANSI colors ----

const (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorCyan  = "\033[36m"
	colorGray  = "\033[90m"
	colorBold  = "\033[1m"
)

// palette applies colors only when the config enables them.
type palette bool

func (p palette) paint(color, s string) string {
	if !p {
		return s
	}
	return color + s + colorReset
}

// colorWriter wraps everything written to w in one color.
type colorWriter struct {
	w     io.Writer
	color string
}

func (c colorWriter) Write(b []byte) (int, error) {
	if _, err := io.WriteString(c.w, c.color); err != nil {
		return 0, err
	}
	n, err := c.w.Write(b)
	if err != nil {
		return n, err
	}
	_, err = io.WriteString(c.w, colorReset)
	return n, err
}

// ---- repl command ----

func cmdRepl(opts *options) error {
	cfg := opts.cfg.REPL
	colors := palette(cfg.Color)
	prompt := colors.paint(colorGreen, cfg.Prompt)
	continuation := colors.paint(colorGray, cfg.ContinuationPrompt)

	complete := &completer{}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            prompt,
		AutoComplete:      complete,
		HistoryFile:       cfg.HistoryFile,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("readline init failed: %v", err), 1)
	}
	defer rl.Close()

	var stderr io.Writer = rl.Stderr()
	if cfg.Color {
		stderr = colorWriter{w: rl.Stderr(), color: colorRed}
	}
	session := driver.NewSession(rl.Stdout(), stderr, opts.logger,
		runtimeOptions(opts)...)
	complete.session = session

	fmt.Fprintf(rl.Stdout(), "%s %s\n\n",
		colors.paint(colorBold+colorCyan, "Lox REPL"),
		colors.paint(colorGray, "(type 'exit' or Ctrl+D to quit)"))

	var accumulated strings.Builder
	braceDepth := 0

	for {
		if braceDepth > 0 {
			rl.SetPrompt(continuation)
		} else {
			rl.SetPrompt(prompt)
		}

		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if braceDepth > 0 {
					// Cancel multi-line input
					accumulated.Reset()
					braceDepth = 0
					continue
				}
				fmt.Fprintln(rl.Stdout(), colors.paint(colorGray, "(use 'exit' or Ctrl+D to quit)"))
				continue
			}
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(rl.Stdout())
			}
			break
		}

		if braceDepth == 0 && strings.TrimSpace(line) == "exit" {
			break
		}

		braceDepth += strings.Count(line, "{") - strings.Count(line, "}")
		accumulated.WriteString(line)
		accumulated.WriteString("\n")
		if braceDepth > 0 {
			continue
		}
		braceDepth = 0

		source := accumulated.String()
		accumulated.Reset()
		if strings.TrimSpace(source) == "" {
			continue
		}

		if value, status := session.Eval(source); status == driver.StatusOK && value != "" {
			fmt.Fprintf(rl.Stdout(), "= %s\n", value)
		}
	}
	return nil
}

// completer offers keywords and global names for the identifier under the
// cursor.
type completer struct {
	session *driver.Session
}

func (c *completer) Do(line []rune, pos int) ([][]rune, int) {
	start := pos
	for start > 0 && isIdentRune(line[start-1]) {
		start--
	}
	prefix := string(line[start:pos])
	if prefix == "" || c.session == nil {
		return nil, 0
	}

	var candidates [][]rune
	for _, names := range [][]string{token.Keywords(), c.session.Globals()} {
		for _, name := range names {
			if len(name) > len(prefix) && strings.HasPrefix(name, prefix) {
				candidates = append(candidates, []rune(name[len(prefix):]))
			}
		}
	}
	return candidates, len([]rune(prefix))
}

func isIdentRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
