package models

import "time"

// PollSession describes one outstanding background loop
type PollSession struct {
	TargetKey    string         `json:"targetKey"`
	Kind         PollKind       `json:"kind"`
	State        ReadinessState `json:"state,omitempty"`
	AttemptCount int            `json:"attemptCount"`
	MaxAttempts  int            `json:"maxAttempts"` // 0 means unbounded
	Interval     time.Duration  `json:"interval"`
	Cancelled    bool           `json:"cancelled"`
	StartedAt    time.Time      `json:"startedAt"`
}

// Exhausted reports whether the attempt budget is spent
func (p PollSession) Exhausted() bool {
	return p.MaxAttempts > 0 && p.AttemptCount >= p.MaxAttempts
}
