// Package scheduler maintains a registry of named recurring tasks driven by
// 5-field cron expressions evaluated in a configured timezone.
//
// # Expressions
//
// Only plain 5-field patterns are accepted (minute hour dom month dow, with
// the standard *, ranges, lists and step syntax). Descriptors like "@daily"
// are rejected at registration time.
//
// # Execution
//
// Each firing runs the task in its own goroutine. Failures (returned errors
// and panics) are logged with the task name and never cancel the recurring
// registration, affect other tasks, or crash the process. A firing that
// arrives while the previous run of the same task is still executing is
// skipped and logged instead of overlapping.
//
// Cancelling a registration never interrupts an in-flight run; it only
// prevents future firings.
package scheduler
