package schema

import "fmt"

// LexError is a bad token encountered during lexing (unterminated string,
// unknown directive, unexpected character).
type LexError struct {
	Position Position
	Message  string
}

func (e LexError) Error() string {
	return fmt.Sprintf("%s:%d:%d: error: %s", e.Position.Filename, e.Position.Line, e.Position.Column, e.Message)
}
