// Package tasks builds the scheduled units of work over the Arbox client.
package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/saar120/arbox-automation-v2/internal/arbox"
	"github.com/saar120/arbox-automation-v2/internal/scheduler"
	"github.com/saar120/arbox-automation-v2/internal/storage"
	logx "github.com/saar120/arbox-automation-v2/pkg/logx"
)

// Notifier is the outbound message hook used for booking outcomes.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Deps bundles the collaborators task actions close over. Journal and Notify
// are optional.
type Deps struct {
	API     *arbox.Client
	Log     logx.Logger
	Journal storage.Store
	Notify  Notifier
	Loc     *time.Location

	// Now is a test seam; defaults to time.Now.
	Now func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d Deps) location() *time.Location {
	if d.Loc != nil {
		return d.Loc
	}
	return time.Local
}

// BookingParams describe which class the booking task chases.
type BookingParams struct {
	ClassTime        string // "HH:MM"
	DaysFromNow      int
	LocationsBoxID   int
	BoxesID          int
	MembershipUserID int
	AutoBook         bool
}

// Login returns a task that ensures the client holds a session.
func Login(deps Deps) scheduler.Task {
	log := deps.Log.With(logx.String("task", "login"))
	return scheduler.Task{
		Name: "login",
		Run: func(ctx context.Context) error {
			if deps.API.IsLoggedIn() {
				log.Debug("already logged in")
				return nil
			}
			profile, err := deps.API.Login(ctx)
			if err != nil {
				return err
			}
			log.Info("logged in", logx.String("user", profile.FullName))
			return nil
		},
	}
}

// BookClass returns the booking task: ensure a session, fetch the schedule
// window, match the requested class by time and date offset, report
// availability and (when enabled) reserve a spot.
//
// Errors from the client propagate out; the scheduler is the recovery
// boundary. A schedule with no matching class is not an error.
func BookClass(deps Deps, p BookingParams) scheduler.Task {
	log := deps.Log.With(logx.String("task", "book-class"))
	return scheduler.Task{
		Name: "book-class",
		Run: func(ctx context.Context) error {
			start := deps.now()
			entry := storage.AttemptEntry{
				At:        start,
				Task:      "book-class",
				ClassTime: p.ClassTime,
			}
			err := bookOnce(ctx, deps, p, log, start, &entry)
			if err != nil {
				entry.Error = err.Error()
			}
			entry.TookMS = time.Since(start).Milliseconds()
			if deps.Journal != nil {
				if jerr := deps.Journal.AppendAttempt(ctx, entry); jerr != nil {
					log.Warn("journal write failed", logx.Err(jerr))
				}
			}
			return err
		},
	}
}

func bookOnce(ctx context.Context, deps Deps, p BookingParams, log logx.Logger, start time.Time, entry *storage.AttemptEntry) error {
	if !deps.API.IsLoggedIn() {
		profile, err := deps.API.Login(ctx)
		if err != nil {
			return err
		}
		log.Info("logged in", logx.String("user", profile.FullName))
	}

	// The target calendar date is "now + 25h per day of offset". The extra
	// hour keeps the target on the next civil day even across the DST fall
	// transition, matching the upstream app's arithmetic.
	loc := deps.location()
	now := start.In(loc)
	target := now.Add(time.Duration(p.DaysFromNow) * 25 * time.Hour)
	targetDate := target.Format("2006-01-02")
	entry.TargetDate = targetDate

	sched, err := deps.API.GetScheduleBetweenDates(ctx, now, target, p.LocationsBoxID, p.BoxesID)
	if err != nil {
		return err
	}

	class, ok := findClass(sched.Data, p.ClassTime, targetDate)
	if !ok {
		log.Info("no class found",
			logx.String("date", targetDate),
			logx.String("time", p.ClassTime),
			logx.Int("records", len(sched.Data)),
		)
		return nil
	}

	entry.ScheduleID = class.ID
	entry.Free = class.Free
	log.Info("class found",
		logx.Int("schedule_id", class.ID),
		logx.String("date", class.Date),
		logx.String("time", class.Time),
		logx.Int("free", class.Free),
		logx.Int("registered", class.Registered),
	)

	if !p.AutoBook {
		return nil
	}
	if class.UserBooked != 0 {
		log.Info("already booked", logx.Int("schedule_id", class.ID))
		return nil
	}
	if class.Free <= 0 {
		log.Warn("class is full", logx.Int("schedule_id", class.ID), logx.Int("stand_by", class.StandBy))
		return nil
	}

	if _, err := deps.API.SignToClass(ctx, class.ID, p.MembershipUserID); err != nil {
		return err
	}
	entry.Booked = true
	log.Info("booked", logx.Int("schedule_id", class.ID), logx.String("date", class.Date), logx.String("time", class.Time))

	if deps.Notify != nil {
		msg := fmt.Sprintf("Booked class on %s at %s (%d spots were free)", class.Date, class.Time, class.Free)
		if err := deps.Notify.Send(ctx, msg); err != nil {
			log.Warn("booking notification failed", logx.Err(err))
		}
	}
	return nil
}

// findClass scans for the first record matching the class time and target
// date. Uniqueness is not enforced upstream: first match wins, no match is
// non-fatal.
func findClass(records []arbox.ClassSchedule, classTime, targetDate string) (arbox.ClassSchedule, bool) {
	for _, rec := range records {
		if rec.Date == targetDate && matchTime(rec.Time, classTime) {
			return rec, true
		}
	}
	return arbox.ClassSchedule{}, false
}

// matchTime compares an upstream time value against the configured "HH:MM",
// tolerating the seconds suffix some tenants return ("08:00:00").
func matchTime(recTime, classTime string) bool {
	if recTime == classTime {
		return true
	}
	return strings.TrimSuffix(recTime, ":00") == classTime
}
