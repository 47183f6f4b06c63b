package smoothie

import (
	"fmt"
)

// Kind names the classification of a decoded line. Consumers subscribe
// to events by kind.
type Kind int

const (
	KindOthers Kind = iota // Unrecognized text
	KindStatus             // <...> status report
	KindOk                 // Command acknowledgement
	KindError              // error: ...
	KindAlarm              // ALARM: ...
	KindParserState        // [G0 G54 ...] modal state
	KindParameters         // [G54:...], [TLO:...], [PRB:...]
	KindVersion            // Build version banner
)

var kindNames = [...]string{
	KindOthers:      "others",
	KindStatus:      "status",
	KindOk:          "ok",
	KindError:       "error",
	KindAlarm:       "alarm",
	KindParserState: "parserstate",
	KindParameters:  "parameters",
	KindVersion:     "version",
}

// Kinds lists every event kind in declaration order.
func Kinds() []Kind {
	return []Kind{
		KindOthers, KindStatus, KindOk, KindError,
		KindAlarm, KindParserState, KindParameters, KindVersion,
	}
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind returns the Kind whose name is s.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return KindOthers, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Event is one decoded controller line. The set of implementations is
// closed; switch on the concrete type or on Kind().
type Event interface {
	Kind() Kind
	// RawLine is the line text the event was decoded from.
	RawLine() string

	event()
}

// Status is a <...> status report.
type Status struct {
	Raw         string      `json:"raw"`
	ActiveState string      `json:"activeState"`
	SubState    int         `json:"subState"`
	MPos        Coordinates `json:"mpos,omitempty"`
	WPos        Coordinates `json:"wpos,omitempty"`
	Buffer      *Buffer     `json:"buf,omitempty"`
	PinState    *string     `json:"pinState,omitempty"`
}

// Buffer holds the planner and receive buffer counters of a status report.
type Buffer struct {
	Planner int `json:"planner"`
	RX      int `json:"rx"`
}

// Ok acknowledges successful completion of a command.
type Ok struct {
	Raw string `json:"raw"`
}

// Error is an error: response to a command.
type Error struct {
	Raw     string `json:"raw"`
	Message string `json:"message"`
}

// Alarm is an ALARM: notification.
type Alarm struct {
	Raw     string `json:"raw"`
	Message string `json:"message"`
}

// ParserState reports the active modal codes and the current tool, feed
// rate and spindle speed. Feedrate and Spindle keep the firmware's text,
// including a trailing decimal point.
type ParserState struct {
	Raw      string `json:"raw"`
	Modal    Modal  `json:"modal"`
	Tool     string `json:"tool,omitempty"`
	Feedrate string `json:"feedrate,omitempty"`
	Spindle  string `json:"spindle,omitempty"`
}

// Parameters reports a stored coordinate system offset, the tool length
// offset or the last probe result.
type Parameters struct {
	Raw   string         `json:"raw"`
	Name  string         `json:"name"`
	Value ParameterValue `json:"value"`
}

// Version is the firmware version banner.
type Version struct {
	Raw    string `json:"raw"`
	Build  Build  `json:"build"`
	MCU    string `json:"mcu"`
	Sysclk string `json:"sysclk"`
}

// Build identifies the firmware build.
type Build struct {
	Version string `json:"version"`
	Date    string `json:"date"`
}

// Others is a line that matched no known format.
type Others struct {
	Raw string `json:"raw"`
}

func (Status) Kind() Kind      { return KindStatus }
func (Ok) Kind() Kind          { return KindOk }
func (Error) Kind() Kind       { return KindError }
func (Alarm) Kind() Kind       { return KindAlarm }
func (ParserState) Kind() Kind { return KindParserState }
func (Parameters) Kind() Kind  { return KindParameters }
func (Version) Kind() Kind     { return KindVersion }
func (Others) Kind() Kind      { return KindOthers }

func (e Status) RawLine() string      { return e.Raw }
func (e Ok) RawLine() string          { return e.Raw }
func (e Error) RawLine() string       { return e.Raw }
func (e Alarm) RawLine() string       { return e.Raw }
func (e ParserState) RawLine() string { return e.Raw }
func (e Parameters) RawLine() string  { return e.Raw }
func (e Version) RawLine() string     { return e.Raw }
func (e Others) RawLine() string      { return e.Raw }

func (Status) event()      {}
func (Ok) event()          {}
func (Error) event()       {}
func (Alarm) event()       {}
func (ParserState) event() {}
func (Parameters) event()  {}
func (Version) event()     {}
func (Others) event()      {}

// ParameterValue is the value of a Parameters event: Coordinates for the
// coordinate system keys, Scalar for TLO and Probe for PRB.
type ParameterValue interface {
	parameterValue()
}

// Scalar is a single decimal string parameter value.
type Scalar string

// Probe is the result of the last probing cycle.
type Probe struct {
	// Result is 1 when the probe triggered, 0 otherwise.
	Result      int
	Coordinates Coordinates
}

func (Coordinates) parameterValue() {}
func (Scalar) parameterValue()      {}
func (Probe) parameterValue()       {}
