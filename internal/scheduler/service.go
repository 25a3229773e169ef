package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	logx "github.com/saar120/arbox-automation-v2/pkg/logx"
)

// Service owns the cron runner and the registration index.
type Service struct {
	log    logx.Logger
	parser cron.Parser
	loc    *time.Location

	mu      sync.Mutex
	c       *cron.Cron
	regs    map[string]*registration
	started bool

	runCtx    context.Context
	runCancel context.CancelFunc
}

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("component", "scheduler"))

	// Strict 5-field parser: no seconds field, no @descriptors.
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

	loc := loadLocation(cfg.Timezone, log)

	return &Service{
		log:    log,
		parser: parser,
		loc:    loc,
		c:      cron.New(cron.WithParser(parser), cron.WithLocation(loc)),
		regs:   make(map[string]*registration),
		runCtx: context.Background(),
	}
}

// Location returns the timezone cron expressions are evaluated in.
func (s *Service) Location() *time.Location { return s.loc }

// Schedule registers a recurring task. It returns a process-unique handle,
// or an error wrapping ErrInvalidCron when the expression does not parse.
// Nothing is registered on failure.
func (s *Service) Schedule(expr string, task Task) (string, error) {
	if strings.TrimSpace(task.Name) == "" || task.Run == nil {
		return "", fmt.Errorf("%w: task needs a name and a run func", ErrInvalidArgument)
	}
	if _, err := s.parser.Parse(expr); err != nil {
		return "", fmt.Errorf("%w %q: %v", ErrInvalidCron, expr, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reg := &registration{
		id:    uuid.NewString(),
		name:  task.Name,
		expr:  expr,
		run:   task.Run,
		state: &runState{},
	}
	entryID, err := s.c.AddFunc(expr, func() { s.fire(reg) })
	if err != nil {
		// Pre-validated above; reaching here means the parser disagrees with itself.
		return "", fmt.Errorf("%w %q: %v", ErrInvalidCron, expr, err)
	}
	reg.entryID = entryID
	s.regs[reg.id] = reg

	s.log.Info("task scheduled",
		logx.String("task", reg.name),
		logx.String("id", reg.id),
		logx.String("cron", expr),
		logx.String("tz", s.loc.String()),
	)
	return reg.id, nil
}

// Cancel stops and removes a registration. Unknown or already-cancelled ids
// return false; that is a no-op, not a failure. An in-flight run is not
// interrupted.
func (s *Service) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.regs[id]
	if !ok {
		return false
	}
	s.c.Remove(reg.entryID)
	delete(s.regs, id)
	s.log.Info("task cancelled", logx.String("task", reg.name), logx.String("id", id))
	return true
}

// List snapshots the live registrations. Order is unspecified.
func (s *Service) List() []TaskInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TaskInfo, 0, len(s.regs))
	for _, reg := range s.regs {
		out = append(out, TaskInfo{ID: reg.id, Name: reg.name})
	}
	return out
}

// Start begins firing registered tasks. Registrations made before Start are
// honored once it runs.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.runCtx, s.runCancel = context.WithCancel(ctx)
	s.c.Start()
	s.log.Info("scheduler started", logx.String("tz", s.loc.String()), logx.Int("tasks", len(s.regs)))
}

// Stop halts future firings and waits for in-flight runs, up to ctx.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel := s.runCancel
	s.runCancel = nil
	c := s.c
	s.mu.Unlock()

	stopped := c.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
	}
	if cancel != nil {
		cancel()
	}
	s.log.Info("scheduler stopped")
}

// fire runs one scheduled firing of reg in isolation. cron dispatches each
// firing on its own goroutine, so firings of different tasks never serialize
// behind each other here.
func (s *Service) fire(reg *registration) {
	reg.state.mu.Lock()
	if reg.state.running {
		reg.state.mu.Unlock()
		s.log.Warn("task skipped, previous run still in progress", logx.String("task", reg.name))
		return
	}
	reg.state.running = true
	reg.state.mu.Unlock()

	defer func() {
		reg.state.mu.Lock()
		reg.state.running = false
		reg.state.mu.Unlock()
	}()

	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()

	start := time.Now()
	s.log.Info("task firing", logx.String("task", reg.name))

	err := s.runContained(ctx, reg)
	dur := time.Since(start)
	if err != nil {
		s.log.Warn("task failed", logx.String("task", reg.name), logx.Err(err), logx.Duration("dur", dur))
		return
	}
	s.log.Info("task completed", logx.String("task", reg.name), logx.Duration("dur", dur))
}

func (s *Service) runContained(ctx context.Context, reg *registration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			s.log.Error("panic in task", logx.String("task", reg.name), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()
	return reg.run(ctx)
}

func loadLocation(tz string, log logx.Logger) *time.Location {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}
