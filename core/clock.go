package core

import "github.com/benbjohnson/clock"

// Clock abstracts wall-clock reads so cooldowns, invite-code expiry, and
// merge bookkeeping can be driven deterministically in tests at literal
// t=0/t=60/t=120 instants. Production code uses clock.New(); tests use
// clock.NewMock() and Add() between calls.
type Clock = clock.Clock

// NewClock returns the real-time clock implementation.
func NewClock() Clock { return clock.New() }

// nowUnix returns the current instant as Unix seconds, the unit used
// throughout (invite expires_at, cooldown timestamps, deleted_at).
func nowUnix(c Clock) int64 { return c.Now().UTC().Unix() }
