package services

import (
	"errors"
	"fmt"
)

// Soft errors: user-facing, state is left intact and re-rendered.
var (
	ErrSessionNotFound  = errors.New("this report is no longer active")
	ErrIncompleteGame   = errors.New("finish this game first")
	ErrNavigationBounds = errors.New("no game in that direction")
	ErrOutOfRange       = errors.New("game count out of range")
	ErrUnknownOpponent  = errors.New("unknown opponent")
	ErrIncompleteDraft  = errors.New("select an opponent and the number of games first")
	ErrNotFound         = errors.New("record not found")
	ErrInvalidValue     = errors.New("invalid value")
	ErrForeignHero      = errors.New("hero does not belong to the selected race")
	ErrSessionClosed    = errors.New("report already submitted")
	ErrWrongPhase       = errors.New("action not available at this step")
	ErrNotYourReport    = errors.New("only the player who opened this report can change it")
)

// Collaborator errors: an external dependency failed, the action may be retried.
var (
	ErrPersistence = errors.New("storage unavailable")
	ErrBracketSync = errors.New("bracket service unavailable")
	ErrPublish     = errors.New("report publication failed")
)

// Internal errors.
var (
	ErrSessionExists     = errors.New("session key already in use")
	ErrUnsupportedAction = errors.New("unsupported action")
	ErrSessionPanicked   = errors.New("session handler panicked")
)

var softErrors = []error{
	ErrSessionNotFound,
	ErrIncompleteGame,
	ErrNavigationBounds,
	ErrOutOfRange,
	ErrUnknownOpponent,
	ErrIncompleteDraft,
	ErrNotFound,
	ErrInvalidValue,
	ErrForeignHero,
	ErrSessionClosed,
	ErrWrongPhase,
	ErrNotYourReport,
}

// IsSoft reports whether err should be shown to the user as a plain message.
func IsSoft(err error) bool {
	for _, target := range softErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsCollaborator reports whether err came from storage, the bracket service or publishing.
func IsCollaborator(err error) bool {
	return errors.Is(err, ErrPersistence) || errors.Is(err, ErrBracketSync) || errors.Is(err, ErrPublish)
}

// CommitWarning carries post-commit failures (publication, bracket sync).
// The result is already stored when this is returned.
type CommitWarning struct {
	Err error
}

func (w *CommitWarning) Error() string {
	return fmt.Sprintf("report saved, but follow-up failed: %v", w.Err)
}

func (w *CommitWarning) Unwrap() error { return w.Err }

func persistenceErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}
