package domain

import (
	"errors"

	"github.com/park285/checkers-server/internal/checkers"
)

// State errors.
var (
	ErrNotYourTurn         = errors.New("not your turn")
	ErrGameAlreadyFinished = errors.New("game already finished")
	ErrNotParticipant      = errors.New("user is not a participant of this game")
	ErrAlreadyQueued       = errors.New("user already queued")
	ErrNotQueued           = errors.New("user not queued")
	ErrInvalidArgs         = errors.New("invalid arguments")
)

// Integrity errors.
var (
	ErrGameNotFound = errors.New("game not found")
	ErrConflict     = errors.New("concurrent update detected")
	ErrTryAgain     = errors.New("try again")

	// ErrStaleEntries is returned by a pairing attempt when either queue
	// entry stopped waiting before the commit.
	ErrStaleEntries = errors.New("queue entries no longer waiting")
)

// Reason codes surfaced to callers.
const (
	ReasonNotYourTurn         = "not_your_turn"
	ReasonGameAlreadyFinished = "game_already_finished"
	ReasonNotParticipant      = "not_participant"
	ReasonAlreadyQueued       = "already_queued"
	ReasonNotQueued           = "not_queued"
	ReasonInvalidArgs         = "invalid_arguments"
	ReasonGameNotFound        = "game_not_found"
	ReasonTryAgain            = "try_again"
	ReasonInternal            = "internal"
)

// ReasonOf classifies err into a stable reason code.
func ReasonOf(err error) string {
	var re *checkers.RuleError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &re):
		return string(re.Reason)
	case errors.Is(err, checkers.ErrOutOfRange):
		return string(checkers.ReasonOutOfBounds)
	case errors.Is(err, ErrNotYourTurn):
		return ReasonNotYourTurn
	case errors.Is(err, ErrGameAlreadyFinished):
		return ReasonGameAlreadyFinished
	case errors.Is(err, ErrNotParticipant):
		return ReasonNotParticipant
	case errors.Is(err, ErrAlreadyQueued):
		return ReasonAlreadyQueued
	case errors.Is(err, ErrNotQueued):
		return ReasonNotQueued
	case errors.Is(err, ErrInvalidArgs):
		return ReasonInvalidArgs
	case errors.Is(err, ErrGameNotFound):
		return ReasonGameNotFound
	case errors.Is(err, ErrTryAgain), errors.Is(err, ErrConflict):
		return ReasonTryAgain
	}
	return ReasonInternal
}

// Recoverable reports whether err is a validation or state error the caller
// can act on, as opposed to an infrastructure failure.
func Recoverable(err error) bool {
	r := ReasonOf(err)
	return r != "" && r != ReasonInternal
}

// RetryOnce runs fn again when the first attempt lost an optimistic-lock
// race. A second conflict is reported as ErrTryAgain.
func RetryOnce[T any](fn func() (T, error)) (T, error) {
	v, err := fn()
	if !errors.Is(err, ErrConflict) {
		return v, err
	}
	v, err = fn()
	if errors.Is(err, ErrConflict) {
		var zero T
		return zero, ErrTryAgain
	}
	return v, err
}
