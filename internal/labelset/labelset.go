// Package labelset maps category tokens (class names, file names) to integer
// label codes read from a small side file.
package labelset

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fiapx/fiapx-video-datasets/internal/domain/entity"
	"go.uber.org/zap"
)

// LabelSet resolves a token to its label code.
type LabelSet interface {
	Lookup(token string) (int, error)
}

// Categories is a LabelSet read from a `token,code` file. It is immutable after
// construction and safe for concurrent lookups.
type Categories struct {
	codes  map[string]int
	tokens []string
}

type options struct {
	lastWriteWins bool
	logger        *zap.Logger
}

type Option func(*options)

// WithLastWriteWins accepts a token redefined with a different code, keeping
// the last one. Every override is logged as a warning.
func WithLastWriteWins() Option {
	return func(o *options) { o.lastWriteWins = true }
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Load reads a category file with one `token,code` pair per line. Blank lines
// are skipped. A token repeated with a different code fails unless
// WithLastWriteWins is given.
func Load(path string, opts ...Option) (*Categories, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open category file: %w", err)
	}
	defer f.Close()

	c := &Categories{codes: make(map[string]int)}
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		token, code, err := parseLine(line)
		if err != nil {
			return nil, &entity.ParseError{File: path, Line: lineNo, Text: line, Err: err}
		}

		prev, seen := c.codes[token]
		switch {
		case !seen:
			c.tokens = append(c.tokens, token)
		case prev == code:
			continue
		case !o.lastWriteWins:
			return nil, &entity.ParseError{
				File: path, Line: lineNo, Text: line,
				Err: fmt.Errorf("token %q redefined: code %d, previously %d", token, code, prev),
			}
		default:
			o.logger.Warn("category token redefined, keeping last code",
				zap.String("file", path),
				zap.Int("line", lineNo),
				zap.String("token", token),
				zap.Int("previous_code", prev),
				zap.Int("code", code),
			)
		}
		c.codes[token] = code
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read category file: %w", err)
	}
	return c, nil
}

func parseLine(line string) (string, int, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 2 {
		return "", 0, fmt.Errorf("expected 2 comma-separated fields, got %d", len(fields))
	}
	token := strings.TrimSpace(fields[0])
	if token == "" {
		return "", 0, fmt.Errorf("empty token")
	}
	code, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil {
		return "", 0, fmt.Errorf("non-numeric code: %w", err)
	}
	return token, code, nil
}

// FromMap builds Categories from an in-memory mapping.
func FromMap(m map[string]int) *Categories {
	c := &Categories{codes: make(map[string]int, len(m))}
	for token, code := range m {
		c.codes[token] = code
		c.tokens = append(c.tokens, token)
	}
	return c
}

func (c *Categories) Lookup(token string) (int, error) {
	code, ok := c.codes[token]
	if !ok {
		return 0, fmt.Errorf("%w: unknown category %q", entity.ErrLookup, token)
	}
	return code, nil
}

// Token returns the first token mapped to code, in file order.
func (c *Categories) Token(code int) (string, bool) {
	for _, t := range c.tokens {
		if c.codes[t] == code {
			return t, true
		}
	}
	return "", false
}

func (c *Categories) Len() int { return len(c.codes) }
