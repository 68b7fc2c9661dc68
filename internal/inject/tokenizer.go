package inject

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/martinhoang/urdf2mjcf/internal/logger"
)

// Pair is one key/value entry of an attribute payload or predicate.
type Pair struct {
	Key   string
	Value string
}

// SyntaxError reports a malformed payload or predicate string together with
// the location of the rule that declared it.
type SyntaxError struct {
	Rule  string // rule path inside the extension block
	Input string
	Pos   int
	Msg   string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("injection syntax error at %s: %s (offset %d in %q)", e.Rule, e.Msg, e.Pos, e.Input)
}

func isKeyChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '-' || c == '.'
}

func isSeparator(c byte) bool {
	return c == ';' || c == ',' || c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// parsePairs tokenizes a payload string of the form
//
//	key='value'; key2="value, with separators"
//
// Keys are word characters, optionally followed by ':' before '='. Values are
// quoted with either quote character and may contain separators and the other
// quote. Pairs are separated by ';', ',' or whitespace. Duplicate keys keep
// the last occurrence.
func parsePairs(rule, input string) ([]Pair, error) {
	var pairs []Pair
	i := 0
	for i < len(input) {
		if isSeparator(input[i]) {
			i++
			continue
		}

		start := i
		for i < len(input) && isKeyChar(input[i]) {
			i++
		}
		if i == start {
			return nil, &SyntaxError{Rule: rule, Input: input, Pos: i, Msg: "expected attribute name"}
		}
		key := input[start:i]

		if i < len(input) && input[i] == ':' {
			i++
		}
		if i >= len(input) || input[i] != '=' {
			return nil, &SyntaxError{Rule: rule, Input: input, Pos: i, Msg: fmt.Sprintf("expected '=' after %q", key)}
		}
		i++

		if i >= len(input) || (input[i] != '\'' && input[i] != '"') {
			return nil, &SyntaxError{Rule: rule, Input: input, Pos: i, Msg: fmt.Sprintf("expected quoted value for %q", key)}
		}
		quote := input[i]
		i++
		end := strings.IndexByte(input[i:], quote)
		if end < 0 {
			return nil, &SyntaxError{Rule: rule, Input: input, Pos: i, Msg: fmt.Sprintf("unterminated value for %q", key)}
		}
		value := input[i : i+end]
		i += end + 1

		pairs = setPair(pairs, key, value)
	}
	return pairs, nil
}

// setPair updates an existing key in place or appends a new pair, keeping
// declaration order for first occurrences and last-wins values.
func setPair(pairs []Pair, key, value string) []Pair {
	for idx := range pairs {
		if pairs[idx].Key == key {
			logger.Warn("duplicate key in injection payload, keeping last value",
				zap.String("key", key))
			pairs[idx].Value = value
			return pairs
		}
	}
	return append(pairs, Pair{Key: key, Value: value})
}
