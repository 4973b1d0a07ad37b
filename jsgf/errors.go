package jsgf

import "fmt"

// SyntaxError reports malformed grammar text.
type SyntaxError struct {
	Line int
	Col  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("jsgf: %d:%d: %s", e.Line, e.Col, e.Msg)
}

// UndefinedRuleError is returned when a rule reference has no definition.
type UndefinedRuleError struct {
	Name string
	Line int
	Col  int
}

func (e *UndefinedRuleError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("jsgf: undefined rule <%s>", e.Name)
	}
	return fmt.Sprintf("jsgf: %d:%d: undefined rule <%s>", e.Line, e.Col, e.Name)
}

// CycleError is returned when a rule compiles to a loop that consumes no
// words, such as [a]* or a rule that refers to itself before any token.
type CycleError struct {
	Rule string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("jsgf: rule <%s> contains a cycle that matches no words", e.Rule)
}

// RecursionError is returned for a recursive reference that is not the last
// element of every enclosing rule. Only such tail recursion has a
// finite-state equivalent.
type RecursionError struct {
	Rule string
	Line int
	Col  int
}

func (e *RecursionError) Error() string {
	return fmt.Sprintf("jsgf: %d:%d: recursive reference to <%s> outside tail position", e.Line, e.Col, e.Rule)
}
