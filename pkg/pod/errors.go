package pod

// PodError represents a class of codec failure. Callers match classes with
// errors.Is; the returned errors wrap one of the sentinels below with the
// offending offsets and sizes.
type PodError struct {
	Message string
}

func (e *PodError) Error() string {
	return e.Message
}

// Errors
var (
	ErrTruncatedBuffer    = &PodError{"pod: truncated buffer"}
	ErrTypeMismatch       = &PodError{"pod: type mismatch"}
	ErrAlignmentViolation = &PodError{"pod: alignment violation"}
	ErrDepthExceeded      = &PodError{"pod: nesting depth exceeded"}
	ErrUnterminatedString = &PodError{"pod: unterminated string"}
	ErrArithmeticOverflow = &PodError{"pod: size overflows u32"}
	ErrUnbalanced         = &PodError{"pod: unbalanced open/close"}
	ErrInvalidState       = &PodError{"pod: operation not valid here"}
	ErrUnknownType        = &PodError{"pod: unknown type id"}
	ErrNotFound           = &PodError{"pod: property not found"}
)
