// Package parser is an external command-stream facade: an oracle over a
// shared cursor that the worker pool calls under its command mutex to keep
// stream framing intact. Tokenization itself is not the hard part here -
// this package hand-rolls a small line-oriented scanner rather than reaching
// for text/scanner, since the grammar is a handful of fixed verbs.
package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Tag identifies the next command on the stream.
type Tag int

// Command tags, mirroring the `.jobs` grammar.
const (
	TagInvalid Tag = iota
	TagCreate
	TagReserve
	TagShow
	TagList
	TagWait
	TagBarrier
	TagHelp
	TagEmpty
	TagEOC
)

// ErrMalformed is returned by the parse_* helpers when the current line
// does not match the expected shape for the tag already returned by Next.
var ErrMalformed = errors.New("malformed command")

// Parser advances a single shared cursor over a `.jobs` stream, one line
// (one command) at a time. It is not itself concurrency-safe: callers must
// serialize every call - Next and every parse_* - behind one mutex.
type Parser struct {
	s       *bufio.Scanner
	fields  []string
	rawLine string
}

// New wraps r as a command stream.
func New(r io.Reader) *Parser {
	return &Parser{s: bufio.NewScanner(r)}
}

// Next advances to the next non-comment line and classifies it. Blank lines
// and lines starting with '#' are skipped transparently.
func (p *Parser) Next() Tag {
	for p.s.Scan() {
		line := strings.TrimSpace(p.s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		p.rawLine = line
		p.fields = strings.Fields(line)

		if len(p.fields) == 0 {
			return TagEmpty
		}

		switch strings.ToUpper(p.fields[0]) {
		case "CREATE":
			return TagCreate
		case "RESERVE":
			return TagReserve
		case "SHOW":
			return TagShow
		case "LIST":
			return TagList
		case "WAIT":
			return TagWait
		case "BARRIER":
			return TagBarrier
		case "HELP":
			return TagHelp
		default:
			return TagInvalid
		}
	}

	return TagEOC
}

// ParseCreate parses "CREATE <id> <rows> <cols>" from the line Next just
// classified as TagCreate.
func (p *Parser) ParseCreate() (id uint32, rows, cols int, err error) {
	if len(p.fields) != 4 {
		return 0, 0, 0, fmt.Errorf("%w: CREATE wants 3 arguments: %q", ErrMalformed, p.rawLine)
	}

	id64, err := strconv.ParseUint(p.fields[1], 10, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: bad event id: %w", ErrMalformed, err)
	}

	rows, err = strconv.Atoi(p.fields[2])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: bad row count: %w", ErrMalformed, err)
	}

	cols, err = strconv.Atoi(p.fields[3])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: bad column count: %w", ErrMalformed, err)
	}

	return uint32(id64), rows, cols, nil
}

// ParseShow parses "SHOW <id>" from the line Next just classified as
// TagShow.
func (p *Parser) ParseShow() (id uint32, err error) {
	if len(p.fields) != 2 {
		return 0, fmt.Errorf("%w: SHOW wants 1 argument: %q", ErrMalformed, p.rawLine)
	}

	id64, err := strconv.ParseUint(p.fields[1], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: bad event id: %w", ErrMalformed, err)
	}

	return uint32(id64), nil
}

// ParseReserve parses "RESERVE <id> [(x1,y1) (x2,y2) ...]" from the line
// Next just classified as TagReserve. Coordinates are 1-indexed in the
// input and converted to 0-indexed here. maxCoords bounds the accepted
// list length; a longer list is rejected as malformed.
func (p *Parser) ParseReserve(maxCoords int) (id uint32, xs, ys []int, err error) {
	if len(p.fields) < 2 {
		return 0, nil, nil, fmt.Errorf("%w: RESERVE wants an event id: %q", ErrMalformed, p.rawLine)
	}

	id64, err := strconv.ParseUint(p.fields[1], 10, 32)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("%w: bad event id: %w", ErrMalformed, err)
	}

	coordFields := p.fields[2:]
	if len(coordFields) > maxCoords {
		return 0, nil, nil, fmt.Errorf("%w: RESERVE coordinate list exceeds %d entries", ErrMalformed, maxCoords)
	}

	xs = make([]int, 0, len(coordFields))
	ys = make([]int, 0, len(coordFields))

	for _, f := range coordFields {
		x, y, parseErr := parseCoordPair(f)
		if parseErr != nil {
			return 0, nil, nil, parseErr
		}

		xs = append(xs, x-1)
		ys = append(ys, y-1)
	}

	return uint32(id64), xs, ys, nil
}

func parseCoordPair(f string) (x, y int, err error) {
	f = strings.TrimPrefix(f, "(")
	f = strings.TrimSuffix(f, ")")

	parts := strings.SplitN(f, ",", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: bad coordinate %q", ErrMalformed, f)
	}

	x, errX := strconv.Atoi(parts[0])
	if errX != nil {
		return 0, 0, fmt.Errorf("%w: bad coordinate %q: %w", ErrMalformed, f, errX)
	}

	y, errY := strconv.Atoi(parts[1])
	if errY != nil {
		return 0, 0, fmt.Errorf("%w: bad coordinate %q: %w", ErrMalformed, f, errY)
	}

	return x, y, nil
}

// ParseWait parses "WAIT <delay_ms> [<thread_id>]" from the line Next just
// classified as TagWait. hasTarget reports whether a thread id was given.
func (p *Parser) ParseWait() (delayMS uint, target int, hasTarget bool, err error) {
	if len(p.fields) < 2 || len(p.fields) > 3 {
		return 0, 0, false, fmt.Errorf("%w: WAIT wants 1 or 2 arguments: %q", ErrMalformed, p.rawLine)
	}

	delay64, err := strconv.ParseUint(p.fields[1], 10, 32)
	if err != nil {
		return 0, 0, false, fmt.Errorf("%w: bad delay: %w", ErrMalformed, err)
	}

	if len(p.fields) == 2 {
		return uint(delay64), 0, false, nil
	}

	target, err = strconv.Atoi(p.fields[2])
	if err != nil {
		return 0, 0, false, fmt.Errorf("%w: bad target thread id: %w", ErrMalformed, err)
	}

	return uint(delay64), target, true, nil
}

// Err reports the underlying scanner error, if any, once EOC has been
// reached.
func (p *Parser) Err() error {
	return p.s.Err()
}
