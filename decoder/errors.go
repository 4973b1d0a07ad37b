package decoder

import (
	"errors"
	"fmt"
)

// State is the utterance lifecycle state of a Decoder.
type State int

const (
	Idle State = iota
	InUtterance
	Sealed
)

func (s State) String() string {
	switch s {
	case InUtterance:
		return "in-utterance"
	case Sealed:
		return "sealed"
	}
	return "idle"
}

var (
	// ErrAlreadyInUtterance is returned by StartUtt while an utterance is open.
	ErrAlreadyInUtterance = errors.New("already in an utterance")
	// ErrNotInUtterance is returned when audio arrives outside an utterance.
	ErrNotInUtterance = errors.New("not in an utterance")
	// ErrNoResult is returned when results are read before EndUtt.
	ErrNoResult = errors.New("no finished utterance")
	// ErrStaleResult is returned by iterators after a new utterance started.
	ErrStaleResult = errors.New("result belongs to a previous utterance")
	// ErrNoAcousticData is returned by Align when there are no frames.
	ErrNoAcousticData = errors.New("no acoustic data to align")
	// ErrAlignment is returned when the words cannot be aligned to the audio.
	ErrAlignment = errors.New("alignment failed")
)

// StateError reports an operation attempted in the wrong state.
type StateError struct {
	Op    string
	State State
	Err   error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("decoder: %s in state %s: %v", e.Op, e.State, e.Err)
}

func (e *StateError) Unwrap() error { return e.Err }

// WordNotInDictionaryError names a word with no pronunciation.
type WordNotInDictionaryError struct {
	Word string
}

func (e *WordNotInDictionaryError) Error() string {
	return fmt.Sprintf("decoder: word %q not in dictionary", e.Word)
}

// EngineError wraps a failure of the decoding engine.
type EngineError struct {
	Op  string
	Err error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("decoder: engine %s: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }
