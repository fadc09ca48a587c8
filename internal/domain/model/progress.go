package model

import (
	"encoding/json"
	"time"
)

// Stage is a step of the attempt lifecycle as seen by observers.
type Stage string

// Lifecycle stages. The string values are part of the wire format.
const (
	StageAttemptStart    Stage = "attempt_start"
	StageAttemptComplete Stage = "attempt_complete"
	StageRetrying        Stage = "retrying"
	StageFinal           Stage = "final"
	StageError           Stage = "error"
	StageClosed          Stage = "closed"
)

// Progress reported alongside each stage.
const (
	ProgressAttemptStart    = 0
	ProgressAttemptComplete = 90
	ProgressRetrying        = 95
	ProgressFinal           = 100
	ProgressError           = 0
)

// Terminal reports whether the stage ends a run (final or error).
func (s Stage) Terminal() bool {
	return s == StageFinal || s == StageError
}

// Valid reports whether s is one of the known stages.
func (s Stage) Valid() bool {
	switch s {
	case StageAttemptStart, StageAttemptComplete, StageRetrying, StageFinal, StageError, StageClosed:
		return true
	}
	return false
}

// ProgressEvent reports one lifecycle transition.
type ProgressEvent struct {
	RunID         string         `json:"run_id,omitempty"`
	Stage         Stage          `json:"stage"`
	Progress      int            `json:"progress"`
	Message       string         `json:"message"`
	Attempt       int            `json:"attempt"`
	UserKnowledge *float64       `json:"user_knowledge"`
	Result        *AttemptResult `json:"result,omitempty"`
	Error         string         `json:"error,omitempty"`
	At            time.Time      `json:"-"`
}

// Closed returns the end-of-stream sentinel.
func Closed() ProgressEvent {
	return ProgressEvent{Stage: StageClosed}
}

// MarshalJSON writes the closed sentinel as {"stage":"closed"} only.
func (e ProgressEvent) MarshalJSON() ([]byte, error) {
	if e.Stage == StageClosed {
		return json.Marshal(struct {
			Stage Stage `json:"stage"`
		}{Stage: StageClosed})
	}
	type plain ProgressEvent
	return json.Marshal(plain(e))
}

// KnowledgePtr is a convenience for filling UserKnowledge.
func KnowledgePtr(v float64) *float64 { return &v }
