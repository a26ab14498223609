// Package scheduler is the firing engine: it persists reminder requests,
// keeps an in-memory timer per future reminder, and delivers due reminders
// through the delivery adapter.
//
// # Firing model
//
// Two mechanisms wake the single sweep goroutine:
//
//   - a one-shot timer armed at each reminder's fire-time (precise wake)
//   - a periodic cron entry (catch-up: retries of transient failures and
//     anything that came due while the process was down)
//
// All delivery happens on that one goroutine, so a reminder can never be
// read as "due" twice concurrently and double-sent. The timer index is a
// cache; the store stays the source of truth and is re-read on every sweep.
//
// # Failure policy
//
// Transient send failures leave the row active for the next sweep.
// Permanent failures (recipient not opted in) mark the row failed and it is
// never retried. Fatal failures (credentials, sender config) abort the
// current sweep with an alert log since every remaining send would fail the
// same way; rows stay active and are retried once the operator fixes the
// account.
package scheduler
