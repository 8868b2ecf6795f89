package domain

import "time"

// Timestamp is an unsigned ledger timestamp in seconds since the Unix epoch.
// Escrow release predicates compare against it.
type Timestamp uint64

// TimestampFromTime truncates t to whole seconds. Times before the epoch map
// to zero rather than wrapping.
func TimestampFromTime(t time.Time) Timestamp {
	s := t.Unix()
	if s < 0 {
		return 0
	}
	return Timestamp(s)
}

// Time converts back to a wall-clock time in UTC.
func (ts Timestamp) Time() time.Time {
	return time.Unix(int64(ts), 0).UTC()
}
