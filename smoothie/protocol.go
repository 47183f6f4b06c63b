// Package smoothie decodes the line protocol a Smoothieware CNC controller
// speaks on its serial link into typed events.
package smoothie

import (
	"bufio"
	"bytes"
)

const (
	// Terminal Control
	LF = "\n"
	CR = "\r"

	// StatusQuery is the realtime byte that asks the controller for a
	// status report. It is not followed by a line terminator.
	StatusQuery = '?'

	// Responses
	Ack          = "ok"
	ErrorPrefix  = "error:"
	AlarmPrefix  = "ALARM:"
	StatusOpen   = "<"
	StatusClose  = ">"
	BracketOpen  = "["
	BracketClose = "]"

	// Status report tags
	TagMachinePos = "MPos"
	TagWorkPos    = "WPos"
	TagPlanner    = "Buf"
	TagRX         = "RX"
	TagLimits     = "Lim"

	// Version banner labels
	LabelBuildVersion = "Build version"
	LabelBuildDate    = "Build date"
	LabelMCU          = "MCU"
	LabelSysClock     = "System Clock"
)

// Splitter tokenizes the controller's output into lines. It uses the
// signature of bufio.SplitFunc so it can be used directly with
// bufio.Scanner.
//
// Lines are terminated by LF. A CR immediately before the LF is dropped,
// so both "\n" and "\r\n" framing produce the same tokens. When atEOF is
// set, any remaining unterminated data is returned as the final token.
func Splitter(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, bytes.TrimSuffix(data[0:i], []byte(CR)), nil
	}

	if atEOF {
		return len(data), bytes.TrimSuffix(data, []byte(CR)), nil
	}
	return 0, nil, nil
}

var _ bufio.SplitFunc = Splitter
