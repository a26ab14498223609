// Package conversation drives the per-recipient dialogue that collects a
// date, a time and a message across several inbound texts and turns them
// into scheduler requests.
//
// Sessions are volatile by design: committed reminders survive restarts in
// the store, a half-finished dialogue does not. Each recipient's session is
// serialized by its own mutex; different recipients never block each other.
package conversation
