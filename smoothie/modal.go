package smoothie

import (
	"encoding/json"
	"strings"
)

// ModalGroup is a category of G/M code state.
type ModalGroup int

const (
	GroupMotion ModalGroup = iota
	GroupWCS
	GroupPlane
	GroupUnits
	GroupDistance
	GroupFeedrate
	GroupProgram
	GroupSpindle
	GroupCoolant
)

var groupNames = [...]string{
	GroupMotion:   "motion",
	GroupWCS:      "wcs",
	GroupPlane:    "plane",
	GroupUnits:    "units",
	GroupDistance: "distance",
	GroupFeedrate: "feedrate",
	GroupProgram:  "program",
	GroupSpindle:  "spindle",
	GroupCoolant:  "coolant",
}

func (g ModalGroup) String() string {
	if g < 0 || int(g) >= len(groupNames) {
		return "unknown"
	}
	return groupNames[g]
}

// modalCodes maps every modal word the firmware reports in a parser
// state dump to its group.
var modalCodes = map[string]ModalGroup{
	// G0, G1, G2, G3, G38.2, G38.3, G38.4, G38.5, G80
	"G0": GroupMotion, "G1": GroupMotion, "G2": GroupMotion, "G3": GroupMotion,
	"G38.2": GroupMotion, "G38.3": GroupMotion, "G38.4": GroupMotion, "G38.5": GroupMotion,
	"G80": GroupMotion,

	"G54": GroupWCS, "G55": GroupWCS, "G56": GroupWCS,
	"G57": GroupWCS, "G58": GroupWCS, "G59": GroupWCS,

	// G17: xy-plane, G18: xz-plane, G19: yz-plane
	"G17": GroupPlane, "G18": GroupPlane, "G19": GroupPlane,

	// G20: inches, G21: millimeters
	"G20": GroupUnits, "G21": GroupUnits,

	// G90: absolute, G91: relative
	"G90": GroupDistance, "G91": GroupDistance,

	// G93: inverse time, G94: units per minute
	"G93": GroupFeedrate, "G94": GroupFeedrate,

	"M0": GroupProgram, "M1": GroupProgram, "M2": GroupProgram, "M30": GroupProgram,

	"M3": GroupSpindle, "M4": GroupSpindle, "M5": GroupSpindle,

	// M7: mist, M8: flood, M9: off
	"M7": GroupCoolant, "M8": GroupCoolant, "M9": GroupCoolant,
}

// LookupModal returns the modal group of word. Words the table does not
// know report false and are meant to be ignored.
func LookupModal(word string) (ModalGroup, bool) {
	g, ok := modalCodes[word]
	return g, ok
}

// Modal is the set of active modal codes, one per group.
type Modal struct {
	Motion   string  `json:"motion,omitempty"`
	WCS      string  `json:"wcs,omitempty"`
	Plane    string  `json:"plane,omitempty"`
	Units    string  `json:"units,omitempty"`
	Distance string  `json:"distance,omitempty"`
	Feedrate string  `json:"feedrate,omitempty"`
	Program  string  `json:"program,omitempty"`
	Spindle  string  `json:"spindle,omitempty"`
	Coolant  Coolant `json:"coolant,omitzero"`
}

// set records word for its group. Coolant accumulates; every other group
// keeps the last word seen.
func (m *Modal) set(g ModalGroup, word string) {
	switch g {
	case GroupMotion:
		m.Motion = word
	case GroupWCS:
		m.WCS = word
	case GroupPlane:
		m.Plane = word
	case GroupUnits:
		m.Units = word
	case GroupDistance:
		m.Distance = word
	case GroupFeedrate:
		m.Feedrate = word
	case GroupProgram:
		m.Program = word
	case GroupSpindle:
		m.Spindle = word
	case GroupCoolant:
		m.Coolant = m.Coolant.add(word)
	}
}

// Get returns the code for a non-coolant group, or the coolant codes
// joined by a space.
func (m Modal) Get(g ModalGroup) string {
	switch g {
	case GroupMotion:
		return m.Motion
	case GroupWCS:
		return m.WCS
	case GroupPlane:
		return m.Plane
	case GroupUnits:
		return m.Units
	case GroupDistance:
		return m.Distance
	case GroupFeedrate:
		return m.Feedrate
	case GroupProgram:
		return m.Program
	case GroupSpindle:
		return m.Spindle
	case GroupCoolant:
		return m.Coolant.String()
	}
	return ""
}

// Coolant holds the active coolant codes. A single code (e.g. M9) is the
// common case; M7 and M8 may be active together.
type Coolant struct {
	codes []string
}

// One returns a Coolant holding a single code.
func One(code string) Coolant {
	return Coolant{codes: []string{code}}
}

// Many returns a Coolant holding the given codes in order.
func Many(codes ...string) Coolant {
	return Coolant{codes: append([]string(nil), codes...)}
}

func (c Coolant) add(code string) Coolant {
	return Coolant{codes: append(append([]string(nil), c.codes...), code)}
}

// IsZero reports whether no coolant code was present.
func (c Coolant) IsZero() bool { return len(c.codes) == 0 }

// Multiple reports whether more than one coolant code is active.
func (c Coolant) Multiple() bool { return len(c.codes) > 1 }

// Code returns the code when exactly one is present.
func (c Coolant) Code() (string, bool) {
	if len(c.codes) != 1 {
		return "", false
	}
	return c.codes[0], true
}

// Codes returns a copy of every code in the order reported.
func (c Coolant) Codes() []string {
	return append([]string(nil), c.codes...)
}

func (c Coolant) String() string {
	return strings.Join(c.codes, " ")
}

// MarshalJSON encodes a single code as a string and several as an array.
func (c Coolant) MarshalJSON() ([]byte, error) {
	switch len(c.codes) {
	case 0:
		return []byte(`""`), nil
	case 1:
		return json.Marshal(c.codes[0])
	default:
		return json.Marshal(c.codes)
	}
}
