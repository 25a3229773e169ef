package scheduler

import (
	"context"
	"errors"
	"sync"

	"github.com/robfig/cron/v3"
)

// ErrInvalidCron is wrapped by Schedule when the expression does not parse
// as a 5-field cron pattern.
var ErrInvalidCron = errors.New("invalid cron expression")

// ErrInvalidArgument is wrapped by TimeToExpression on out-of-range input
// and by Schedule on an unusable task.
var ErrInvalidArgument = errors.New("invalid argument")

// Config controls the scheduler service.
type Config struct {
	Timezone string // IANA TZ, e.g. "Asia/Jerusalem"
}

// Task is an immutable unit of work. Run must own its resource cleanup; the
// scheduler contains its failures.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// TaskInfo identifies a live registration.
type TaskInfo struct {
	ID   string
	Name string
}

type runState struct {
	mu      sync.Mutex
	running bool
}

type registration struct {
	id      string
	name    string
	expr    string
	run     func(ctx context.Context) error
	entryID cron.EntryID
	state   *runState
}
