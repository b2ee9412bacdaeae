// Package payload validates event payloads and rewrites them into a canonical
// indented JSON form before they are published.
package payload

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

var (
	// ErrNotContainer is returned for input that is not bracketed as a JSON
	// object or array. Such input is never handed to the parser.
	ErrNotContainer = errors.New("payload must be a JSON object or array")
	// ErrMalformed is returned when bracketed input fails to parse.
	ErrMalformed = errors.New("payload is not valid JSON")
)

const indent = "  "

var codec = sonic.Config{
	SortMapKeys:    true,
	UseNumber:      true,
	ValidateString: true,
}.Froze()

// Canonicalize parses input as a JSON object or array and re-serializes it
// with sorted keys and two-space indentation. Formatting of the input is
// discarded; re-parsing the result yields a value equal to the input's.
func Canonicalize(input string) (string, error) {
	if !LooksLikeJSON(input) {
		return "", ErrNotContainer
	}

	var v any
	if err := codec.UnmarshalFromString(input, &v); err != nil {
		return "", fmt.Errorf("%w: %s", ErrMalformed, describe(err))
	}

	out, err := codec.MarshalIndent(v, "", indent)
	if err != nil {
		return "", fmt.Errorf("failed to serialize payload: %w", err)
	}

	return string(out), nil
}

// describe reduces a parse error to its first line. sonic's syntax errors
// carry a quoted excerpt of the input with a caret under the offending byte.
func describe(err error) string {
	msg := err.Error()
	var syntax interface{ Description() string }
	if errors.As(err, &syntax) {
		msg = syntax.Description()
	}

	line, _, _ := strings.Cut(msg, "\n")
	return strings.TrimSpace(line)
}

// LooksLikeJSON reports whether the trimmed input starts and ends with a
// matching pair of object or array brackets.
func LooksLikeJSON(input string) bool {
	s := strings.TrimSpace(input)
	if len(s) < 2 {
		return false
	}

	first, last := s[0], s[len(s)-1]
	return (first == '{' && last == '}') || (first == '[' && last == ']')
}
