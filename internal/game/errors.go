package game

// StepError says why the state machine refused a step. The value is
// exactly the name the wire protocol carries.
type StepError string

const (
	// ErrInvalidPID rejects a step from anyone but the turn holder.
	ErrInvalidPID StepError = "InvalidPID"
	// ErrInvalidStepType rejects a step the current phase does not allow,
	// including drawing from an empty deck.
	ErrInvalidStepType StepError = "InvalidStepType"
	// ErrInvalidCards rejects cards the player does not hold, or a laid
	// set that does not classify as a combination.
	ErrInvalidCards StepError = "InvalidCards"
	// ErrInvalidComb rejects a transfer whose card set does not classify.
	ErrInvalidComb StepError = "InvalidComb"
	// ErrWeakComb rejects a transfer that does not beat the board.
	ErrWeakComb StepError = "WeakComb"
)

func (e StepError) Error() string {
	return string(e)
}

// ParseStepError maps a wire name back to its error value.
func ParseStepError(s string) (StepError, bool) {
	switch StepError(s) {
	case ErrInvalidPID, ErrInvalidStepType, ErrInvalidCards, ErrInvalidComb, ErrWeakComb:
		return StepError(s), true
	}
	return "", false
}
