package rate

import "errors"

// Message is the human-readable rejection text returned to clients.
const Message = "Too many failed login attempts. Please try again later."

// ErrRateLimited is returned when a key has exhausted its attempts.
var ErrRateLimited = errors.New("rate limited")
