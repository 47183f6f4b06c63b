package smoothie

import (
	"fmt"
	"strconv"
	"strings"
)

var pinAxes = [...]byte{'X', 'Y', 'Z', 'A', 'B', 'C'}

// parameterKeys is the set of keys that introduce a parameter dump
// rather than a parser state line.
var parameterKeys = map[string]parameterShape{
	"G54": shapeCoordinates, "G55": shapeCoordinates, "G56": shapeCoordinates,
	"G57": shapeCoordinates, "G58": shapeCoordinates, "G59": shapeCoordinates,
	"G28": shapeCoordinates, "G30": shapeCoordinates, "G92": shapeCoordinates,
	"TLO": shapeScalar,
	"PRB": shapeProbe,
}

type parameterShape int

const (
	shapeCoordinates parameterShape = iota
	shapeScalar
	shapeProbe
)

// IsParameterKey reports whether key introduces a parameter dump.
func IsParameterKey(key string) bool {
	_, ok := parameterKeys[key]
	return ok
}

// decodeCounter parses a non-negative base 10 integer.
func decodeCounter(tok string) (int, error) {
	if tok == "" || tok[0] == '+' || tok[0] == '-' {
		return 0, fmt.Errorf("%w: %q", ErrNotCounter, tok)
	}
	n, err := strconv.Atoi(tok)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNotCounter, tok)
	}
	return n, nil
}

// decodePinState turns a 0/1 flag token into the letters of the asserted
// pins, first flag X. "000" is the empty string: present, nothing
// asserted.
func decodePinState(tok string) (string, error) {
	if tok == "" || len(tok) > len(pinAxes) {
		return "", fmt.Errorf("%w: %q", ErrPinState, tok)
	}
	var b strings.Builder
	for i := 0; i < len(tok); i++ {
		switch tok[i] {
		case '0':
		case '1':
			b.WriteByte(pinAxes[i])
		default:
			return "", fmt.Errorf("%w: %q", ErrPinState, tok)
		}
	}
	return b.String(), nil
}

// splitParameter splits a bracket body of the form KEY:VALUE. ok is false
// when the body does not start with a parameter key.
func splitParameter(body string) (key, value string, ok bool) {
	key, value, found := strings.Cut(body, ":")
	if !found || !IsParameterKey(key) {
		return "", "", false
	}
	return key, value, true
}

// decodeParameter decodes the value of a parameter dump according to the
// shape of its key.
func decodeParameter(key, value string) (ParameterValue, error) {
	switch parameterKeys[key] {
	case shapeScalar:
		// [TLO:0.000]
		if !isDecimal(value) {
			return nil, fmt.Errorf("%w %s: %w", ErrParameter, key, ErrNotDecimal)
		}
		return Scalar(value), nil

	case shapeProbe:
		// [PRB:0.000,0.000,1.492:1]
		coords, result, found := strings.Cut(value, ":")
		if !found {
			return nil, fmt.Errorf("%w %s: missing result", ErrParameter, key)
		}
		r, err := decodeCounter(result)
		if err != nil || r > 1 {
			return nil, fmt.Errorf("%w %s: result %q", ErrParameter, key, result)
		}
		c, err := decodeAxes(strings.Split(coords, ","))
		if err != nil {
			return nil, fmt.Errorf("%w %s: %w", ErrParameter, key, err)
		}
		return Probe{Result: r, Coordinates: c}, nil

	default:
		// [G54:0.000,0.000,0.000]
		c, err := decodeAxes(strings.Split(value, ","))
		if err != nil {
			return nil, fmt.Errorf("%w %s: %w", ErrParameter, key, err)
		}
		return c, nil
	}
}
