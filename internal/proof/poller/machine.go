// Package poller drives a proof's status to a terminal state: one check at
// a time on a timer, until verified, expired or failed.
package poller

import "time"

// Statuses observed by the poller. They match the API's polling statuses.
const (
	StatusPending  = "pending"
	StatusVerified = "verified"
	StatusExpired  = "expired"
	StatusFailed   = "failed"
)

// Result is one status check response.
type Result struct {
	Status     string
	Attributes map[string]string
}

// Update is what the caller sees after each check. Err carries a transport
// error that did not end polling.
type Update struct {
	Status     string
	Attributes map[string]string
	Attempt    int
	Err        error
}

// Terminal reports whether no further checks will follow.
func (u Update) Terminal() bool {
	return isTerminal(u.Status)
}

// Outcome is the result of one Machine step.
type Outcome struct {
	Update Update
	Done   bool
}

// Machine is the pure polling state: it decides from one observation
// whether to stop. It never blocks and holds no timers.
type Machine struct {
	deadline time.Time
	attempts int
}

// NewMachine starts a poll that gives up at start+ttl.
func NewMachine(start time.Time, ttl time.Duration) *Machine {
	return &Machine{deadline: start.Add(ttl)}
}

// Deadline is when the machine reports expired on its own.
func (m *Machine) Deadline() time.Time {
	return m.deadline
}

// Expired reports whether the session lifetime has elapsed at now.
func (m *Machine) Expired(now time.Time) bool {
	return !now.Before(m.deadline)
}

// Tick folds one status check into the machine. Transport errors are
// never terminal; the deadline is.
func (m *Machine) Tick(now time.Time, res Result, err error) Outcome {
	m.attempts++
	u := Update{Status: StatusPending, Attempt: m.attempts, Err: err}

	if err == nil {
		switch res.Status {
		case StatusVerified:
			u.Status = StatusVerified
			u.Attributes = res.Attributes
			return Outcome{Update: u, Done: true}
		case StatusExpired, StatusFailed:
			u.Status = res.Status
			return Outcome{Update: u, Done: true}
		}
	}

	if m.Expired(now) {
		u.Status = StatusExpired
		return Outcome{Update: u, Done: true}
	}
	return Outcome{Update: u}
}

func isTerminal(status string) bool {
	return status == StatusVerified || status == StatusExpired || status == StatusFailed
}
