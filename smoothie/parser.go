package smoothie

import (
	"log/slog"
	"regexp"
	"strings"
)

var (
	// Build version: edge-3332442, Build date: xxx, MCU: LPC1769, System Clock: 120MHz
	versionPattern = regexp.MustCompile(`^` + LabelBuildVersion + `: (.+), ` + LabelBuildDate + `: (.+), ` +
		LabelMCU + `: (.+), ` + LabelSysClock + `: (.+)$`)

	// G0, G38.2, T0, F2540., S0.
	wordPattern = regexp.MustCompile(`^[A-Za-z][0-9]+(\.[0-9]*)?$`)
)

// Parser decodes single controller lines into events. A Parser holds no
// per-line state and is safe for concurrent use.
type Parser struct {
	logger *slog.Logger
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithLogger sets the logger used to report lines whose decoding failed.
func WithLogger(logger *slog.Logger) ParserOption {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewParser returns a Parser. Without options it logs nothing.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var defaultParser = NewParser()

// Parse decodes line with a default Parser.
func Parse(line string) Event {
	return defaultParser.Parse(line)
}

// Classify returns the kind of event line decodes to.
func Classify(line string) Kind {
	return defaultParser.Parse(line).Kind()
}

// Parse classifies line and decodes it into exactly one event. Surrounding
// whitespace is ignored; the event's raw text is the trimmed line. Lines
// that match no format, or that match one but cannot be decoded, produce
// Others. Parse never panics.
func (p *Parser) Parse(line string) (ev Event) {
	line = strings.TrimSpace(line)

	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("Failed to decode line", "raw", line, "panic", r)
			ev = Others{Raw: line}
		}
	}()

	switch {
	case isEnclosed(line, StatusOpen, StatusClose):
		if st, ok := p.parseStatus(line); ok {
			return st
		}

	case line == Ack:
		return Ok{Raw: line}

	case strings.HasPrefix(line, ErrorPrefix):
		return Error{Raw: line, Message: strings.TrimSpace(line[len(ErrorPrefix):])}

	case strings.HasPrefix(line, AlarmPrefix):
		return Alarm{Raw: line, Message: strings.TrimSpace(line[len(AlarmPrefix):])}

	case versionPattern.MatchString(line):
		return parseVersion(line)

	case isEnclosed(line, BracketOpen, BracketClose):
		body := line[len(BracketOpen) : len(line)-len(BracketClose)]
		if key, value, ok := splitParameter(body); ok {
			if prm, ok := p.parseParameters(line, key, value); ok {
				return prm
			}
			break
		}
		if ps, ok := parseParserState(line, body); ok {
			return ps
		}
	}

	return Others{Raw: line}
}

func isEnclosed(line, opening, closing string) bool {
	return len(line) >= len(opening)+len(closing) &&
		strings.HasPrefix(line, opening) && strings.HasSuffix(line, closing)
}

// statusField is a tagged status report field and the bare tokens that
// followed it.
type statusField struct {
	tag    string
	values []string
}

// parseStatus decodes <State[:sub],Tag:v,v,...,Tag:v>. A malformed tagged
// field is left out of the report; a malformed state makes the whole line
// unrecognized.
func (p *Parser) parseStatus(line string) (Status, bool) {
	body := line[len(StatusOpen) : len(line)-len(StatusClose)]
	tokens := strings.Split(body, ",")

	state, sub, hasSub := strings.Cut(tokens[0], ":")
	if !isWord(state) {
		return Status{}, false
	}
	st := Status{Raw: line, ActiveState: state}
	if hasSub {
		n, err := decodeCounter(sub)
		if err != nil {
			return Status{}, false
		}
		st.SubState = n
	}

	var fields []*statusField
	for _, tok := range tokens[1:] {
		if tag, value, ok := strings.Cut(tok, ":"); ok && isWord(tag) {
			fields = append(fields, &statusField{tag: tag, values: []string{value}})
			continue
		}
		if len(fields) == 0 {
			p.logger.Debug("Stray status token", "raw", line, "token", tok)
			continue
		}
		last := fields[len(fields)-1]
		last.values = append(last.values, tok)
	}

	for _, f := range fields {
		if err := st.apply(f); err != nil {
			p.logger.Debug("Omitting status field", "raw", line, "tag", f.tag, "error", err)
		}
	}
	return st, true
}

// apply decodes one tagged field into the report. Unknown tags are
// skipped.
func (st *Status) apply(f *statusField) error {
	switch f.tag {
	case TagMachinePos:
		c, err := decodeAxes(f.values)
		if err != nil {
			return err
		}
		st.MPos = c

	case TagWorkPos:
		c, err := decodeAxes(f.values)
		if err != nil {
			return err
		}
		st.WPos = c

	case TagPlanner, TagRX:
		if len(f.values) != 1 {
			return ErrNotCounter
		}
		n, err := decodeCounter(f.values[0])
		if err != nil {
			return err
		}
		if st.Buffer == nil {
			st.Buffer = &Buffer{}
		}
		if f.tag == TagPlanner {
			st.Buffer.Planner = n
		} else {
			st.Buffer.RX = n
		}

	case TagLimits:
		if len(f.values) != 1 {
			return ErrPinState
		}
		pins, err := decodePinState(f.values[0])
		if err != nil {
			return err
		}
		st.PinState = &pins
	}
	return nil
}

func (p *Parser) parseParameters(line, key, value string) (Parameters, bool) {
	v, err := decodeParameter(key, value)
	if err != nil {
		p.logger.Debug("Failed to decode parameter", "raw", line, "error", err)
		return Parameters{}, false
	}
	return Parameters{Raw: line, Name: key, Value: v}, true
}

// parseParserState decodes [G0 G54 G17 G21 G90 G94 M0 M5 M9 T0 F2540. S0.].
// Every word must be a letter followed by a number.
func parseParserState(line, body string) (ParserState, bool) {
	words := strings.Fields(body)
	if len(words) == 0 {
		return ParserState{}, false
	}
	for _, w := range words {
		if !wordPattern.MatchString(w) {
			return ParserState{}, false
		}
	}

	ps := ParserState{Raw: line}
	for _, w := range words {
		if g, ok := LookupModal(w); ok {
			ps.Modal.set(g, w)
			continue
		}
		switch w[0] {
		case 'T':
			ps.Tool = w[1:]
		case 'F':
			ps.Feedrate = w[1:]
		case 'S':
			ps.Spindle = w[1:]
		}
	}
	return ps, true
}

func parseVersion(line string) Version {
	m := versionPattern.FindStringSubmatch(line)
	return Version{
		Raw:    line,
		Build:  Build{Version: m[1], Date: m[2]},
		MCU:    m[3],
		Sysclk: m[4],
	}
}

// isWord reports whether s is a non-empty run of ASCII letters.
func isWord(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'A' || c > 'Z') && (c < 'a' || c > 'z') {
			return false
		}
	}
	return true
}
