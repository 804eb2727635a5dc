package rate

import "errors"

// ErrRateLimited is returned when an attempt exceeds the configured budget.
var ErrRateLimited = errors.New("rate limited")

// ErrRedisUnavailable marks operational Redis failures during limiter checks.
var ErrRedisUnavailable = errors.New("rate limiter redis unavailable")
