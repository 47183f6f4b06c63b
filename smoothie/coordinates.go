package smoothie

import (
	"bytes"
	"encoding/json"
)

var (
	axes3 = []string{"x", "y", "z"}
	axes6 = []string{"x", "y", "z", "a", "b", "c"}
)

// AxisValue is one labelled coordinate. Value is the decimal text exactly
// as the firmware sent it.
type AxisValue struct {
	Axis  string
	Value string
}

// Coordinates is an ordered axis to value mapping, either x,y,z or
// x,y,z,a,b,c.
type Coordinates []AxisValue

// Value returns the value for the given axis label.
func (c Coordinates) Value(axis string) (string, bool) {
	for _, av := range c {
		if av.Axis == axis {
			return av.Value, true
		}
	}
	return "", false
}

// Axes returns the axis labels in order.
func (c Coordinates) Axes() []string {
	labels := make([]string, len(c))
	for i, av := range c {
		labels[i] = av.Axis
	}
	return labels
}

// MarshalJSON encodes the coordinates as an object whose keys keep axis
// order.
func (c Coordinates) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	c.writeFields(&buf)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (c Coordinates) writeFields(buf *bytes.Buffer) {
	for i, av := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(av.Axis)
		v, _ := json.Marshal(av.Value)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
}

// MarshalJSON encodes the probe result as {"result":n,"x":...}.
func (p Probe) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"result":`)
	r, _ := json.Marshal(p.Result)
	buf.Write(r)
	if len(p.Coordinates) > 0 {
		buf.WriteByte(',')
		p.Coordinates.writeFields(&buf)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// decodeAxes labels a run of decimal tokens. Three tokens are x,y,z and
// six are x,y,z,a,b,c; any other count is ErrAxisCount.
func decodeAxes(tokens []string) (Coordinates, error) {
	var labels []string
	switch len(tokens) {
	case len(axes3):
		labels = axes3
	case len(axes6):
		labels = axes6
	default:
		return nil, ErrAxisCount
	}

	coords := make(Coordinates, len(tokens))
	for i, tok := range tokens {
		if !isDecimal(tok) {
			return nil, ErrNotDecimal
		}
		coords[i] = AxisValue{Axis: labels[i], Value: tok}
	}
	return coords, nil
}

// isDecimal reports whether s is an optionally signed decimal literal
// such as "7.000", "-0.000", "2540." or ".5".
func isDecimal(s string) bool {
	if s != "" && (s[0] == '-' || s[0] == '+') {
		s = s[1:]
	}
	digits, dot := 0, false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			digits++
		case c == '.' && !dot:
			dot = true
		default:
			return false
		}
	}
	return digits > 0
}
