// Package rate implements the failed-login limiter.
//
// # Window semantics
//
// Fixed-window counters: INCR and EXPIRE run together on the first hit, so a
// window starts at the first attempt and lasts Window. Every attempt reserves a
// slot with INCR before credentials are checked; concurrent attempts each see a
// distinct count, so no more than MaxAttempts reach the credential check per
// window. Attempts that do not fail authentication hand their slot back with
// Release, which leaves earlier failures in place. Keys look like:
//
//	rl_login_<normalized ip>:<lower-cased, trimmed identity>
//
// IPv6 origins are collapsed to their /56 network so one host cannot rotate
// through its own address block.
//
// # What this package must NOT do
//
//   - Check credentials. The limiter only answers whether an attempt may proceed.
//   - Fail open: a store fault is returned to the caller.
package rate
