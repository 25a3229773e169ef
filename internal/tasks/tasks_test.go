package tasks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/saar120/arbox-automation-v2/internal/arbox"
	"github.com/saar120/arbox-automation-v2/internal/storage"
	logx "github.com/saar120/arbox-automation-v2/pkg/logx"
)

// fixedNow is a Friday morning; daysFromNow=1 targets Saturday 2026-08-29.
var fixedNow = time.Date(2026, 8, 28, 6, 0, 0, 0, time.UTC)

type memJournal struct {
	mu      sync.Mutex
	entries []storage.AttemptEntry
}

func (j *memJournal) AppendAttempt(_ context.Context, e storage.AttemptEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	return nil
}

func (j *memJournal) Close() error { return nil }

func (j *memJournal) last(t *testing.T) storage.AttemptEntry {
	t.Helper()
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.entries) == 0 {
		t.Fatal("journal is empty")
	}
	return j.entries[len(j.entries)-1]
}

type memNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *memNotifier) Send(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, text)
	return nil
}

type upstream struct {
	scheduleJSON string
	loginHits    atomic.Int32
	insertHits   atomic.Int32
}

func (u *upstream) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/user/login", func(w http.ResponseWriter, r *http.Request) {
		u.loginHits.Add(1)
		_, _ = w.Write([]byte(`{"data":{"id":7,"full_name":"Test User","token":"tok","refreshToken":"ref"}}`))
	})
	mux.HandleFunc("/api/v2/schedule/betweenDates", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(u.scheduleJSON))
	})
	mux.HandleFunc("/api/v2/scheduleUser/insert", func(w http.ResponseWriter, r *http.Request) {
		u.insertHits.Add(1)
		_, _ = w.Write([]byte(`{"data":{"id":1001}}`))
	})
	return mux
}

func newBookingDeps(t *testing.T, u *upstream) (Deps, *memJournal, *memNotifier) {
	t.Helper()
	srv := httptest.NewServer(u.handler())
	t.Cleanup(srv.Close)
	api := arbox.New("user@example.com", "secret", "acme", arbox.Options{
		BaseURL:    srv.URL,
		RatePerSec: 1000,
	})
	journal := &memJournal{}
	notifier := &memNotifier{}
	deps := Deps{
		API:     api,
		Log:     logx.Nop(),
		Journal: journal,
		Notify:  notifier,
		Loc:     time.UTC,
		Now:     func() time.Time { return fixedNow },
	}
	return deps, journal, notifier
}

func params(autoBook bool) BookingParams {
	return BookingParams{
		ClassTime:        "08:00",
		DaysFromNow:      1,
		LocationsBoxID:   3,
		BoxesID:          9,
		MembershipUserID: 17,
		AutoBook:         autoBook,
	}
}

func TestBookClassReportsAvailability(t *testing.T) {
	t.Parallel()
	u := &upstream{scheduleJSON: `{"data":[{"id":42,"time":"08:00","date":"2026-08-29","free":3,"status":"active"}]}`}
	deps, journal, _ := newBookingDeps(t, u)

	task := BookClass(deps, params(false))
	if task.Name != "book-class" {
		t.Fatalf("task name = %q", task.Name)
	}
	if err := task.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := u.loginHits.Load(); got != 1 {
		t.Fatalf("login calls = %d, want 1 (login on demand)", got)
	}
	if got := u.insertHits.Load(); got != 0 {
		t.Fatalf("insert calls = %d, want 0 without auto-book", got)
	}
	e := journal.last(t)
	if e.ScheduleID != 42 || e.Free != 3 || e.Booked || e.Error != "" {
		t.Fatalf("journal entry = %+v", e)
	}
	if e.TargetDate != "2026-08-29" {
		t.Fatalf("target date = %q", e.TargetDate)
	}
}

func TestBookClassNoMatchIsNotAnError(t *testing.T) {
	t.Parallel()
	u := &upstream{scheduleJSON: `{"data":[]}`}
	deps, journal, _ := newBookingDeps(t, u)

	if err := BookClass(deps, params(true)).Run(context.Background()); err != nil {
		t.Fatalf("Run with empty schedule: %v", err)
	}
	if got := u.insertHits.Load(); got != 0 {
		t.Fatalf("insert calls = %d, want 0", got)
	}
	e := journal.last(t)
	if e.ScheduleID != 0 || e.Booked || e.Error != "" {
		t.Fatalf("journal entry = %+v", e)
	}
}

func TestBookClassWrongDateOrTimeIgnored(t *testing.T) {
	t.Parallel()
	u := &upstream{scheduleJSON: `{"data":[
		{"id":40,"time":"08:00","date":"2026-08-28","free":5},
		{"id":41,"time":"19:30","date":"2026-08-29","free":5}
	]}`}
	deps, journal, _ := newBookingDeps(t, u)

	if err := BookClass(deps, params(true)).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := u.insertHits.Load(); got != 0 {
		t.Fatalf("insert calls = %d, want 0", got)
	}
	if e := journal.last(t); e.ScheduleID != 0 {
		t.Fatalf("matched unexpected class: %+v", e)
	}
}

func TestBookClassAutoBooks(t *testing.T) {
	t.Parallel()
	u := &upstream{scheduleJSON: `{"data":[{"id":42,"time":"08:00:00","date":"2026-08-29","free":2}]}`}
	deps, journal, notifier := newBookingDeps(t, u)

	if err := BookClass(deps, params(true)).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := u.insertHits.Load(); got != 1 {
		t.Fatalf("insert calls = %d, want 1", got)
	}
	e := journal.last(t)
	if !e.Booked || e.ScheduleID != 42 {
		t.Fatalf("journal entry = %+v", e)
	}
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.msgs) != 1 {
		t.Fatalf("notifications = %v, want 1", notifier.msgs)
	}
}

func TestBookClassSkipsWhenAlreadyBooked(t *testing.T) {
	t.Parallel()
	u := &upstream{scheduleJSON: `{"data":[{"id":42,"time":"08:00","date":"2026-08-29","free":2,"user_booked":1}]}`}
	deps, _, _ := newBookingDeps(t, u)

	if err := BookClass(deps, params(true)).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := u.insertHits.Load(); got != 0 {
		t.Fatalf("insert calls = %d, want 0 when already booked", got)
	}
}

func TestBookClassSkipsFullClass(t *testing.T) {
	t.Parallel()
	u := &upstream{scheduleJSON: `{"data":[{"id":42,"time":"08:00","date":"2026-08-29","free":0}]}`}
	deps, _, _ := newBookingDeps(t, u)

	if err := BookClass(deps, params(true)).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := u.insertHits.Load(); got != 0 {
		t.Fatalf("insert calls = %d, want 0 for a full class", got)
	}
}

func TestBookClassFirstMatchWins(t *testing.T) {
	t.Parallel()
	u := &upstream{scheduleJSON: `{"data":[
		{"id":42,"time":"08:00","date":"2026-08-29","free":1},
		{"id":43,"time":"08:00","date":"2026-08-29","free":5}
	]}`}
	deps, journal, _ := newBookingDeps(t, u)

	if err := BookClass(deps, params(false)).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if e := journal.last(t); e.ScheduleID != 42 {
		t.Fatalf("matched %d, want first record 42", e.ScheduleID)
	}
}

func TestBookClassPropagatesUpstreamFailure(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/user/login", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"id":7,"full_name":"Test User","token":"tok","refreshToken":"ref"}}`))
	})
	mux.HandleFunc("/api/v2/schedule/betweenDates", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"message":"upstream down"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	api := arbox.New("user@example.com", "secret", "acme", arbox.Options{BaseURL: srv.URL, RatePerSec: 1000})
	journal := &memJournal{}
	deps := Deps{API: api, Log: logx.Nop(), Journal: journal, Loc: time.UTC, Now: func() time.Time { return fixedNow }}

	err := BookClass(deps, params(false)).Run(context.Background())
	if err == nil {
		t.Fatal("expected upstream failure to propagate")
	}
	if e := journal.last(t); e.Error == "" {
		t.Fatalf("journal entry should record the failure, got %+v", e)
	}
}

func TestLoginTaskIsIdempotent(t *testing.T) {
	t.Parallel()
	u := &upstream{scheduleJSON: `{"data":[]}`}
	deps, _, _ := newBookingDeps(t, u)

	task := Login(deps)
	for i := 0; i < 3; i++ {
		if err := task.Run(context.Background()); err != nil {
			t.Fatalf("Run #%d: %v", i, err)
		}
	}
	if got := u.loginHits.Load(); got != 1 {
		t.Fatalf("login calls = %d, want 1 (session reused)", got)
	}
}
