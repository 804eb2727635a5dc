// Package rate implements the optional per-session refresh throttle using
// Redis counters with cooldown TTLs. The throttle runs before any session
// state is read, so a limited request has no side effects on the record.
package rate
