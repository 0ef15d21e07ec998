package status

import "errors"

// ErrInvalidTransition — переход статуса запрещён жизненным циклом.
var ErrInvalidTransition = errors.New("invalid status transition")
