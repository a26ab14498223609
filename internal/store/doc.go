package store

// Package store persists reminder rows.
//
// It is the single source of truth for scheduled reminders: the scheduler's
// in-memory timer index is only a cache derived from it. Every mutating call
// commits before returning so a crash never loses an accepted reminder.
