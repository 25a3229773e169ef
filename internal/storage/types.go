package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures the attempt journal.
//
// Driver values:
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// AttemptEntry records one firing of the booking task.
// Keep it compact and schema-stable.
type AttemptEntry struct {
	At         time.Time
	Task       string
	TargetDate string // yyyy-MM-dd the task searched for
	ClassTime  string
	ScheduleID int // 0 when no class matched
	Free       int
	Booked     bool
	Error      string
	TookMS     int64
}
