// Package event implements the Event Stream Manager: per-task, ordered,
// typed event delivery to subscribers, with bounded per-subscriber buffers
// and a back-pressure policy that protects structural events from being
// dropped when a subscriber falls behind.
package event

import "time"

// Kind identifies an event's payload shape.
type Kind string

const (
	KindStageStart            Kind = "stage_start"
	KindStageProgress         Kind = "stage_progress"
	KindStageEnd              Kind = "stage_end"
	KindStageError            Kind = "stage_error"
	KindThinkingStarted       Kind = "thinking_started"
	KindThinkingInProgress    Kind = "thinking_in_progress"
	KindThinkingCompleted     Kind = "thinking_completed"
	KindThinkingInterrupted   Kind = "thinking_interrupted"
	KindIncrementalProgress   Kind = "incremental_progress"
	KindToolCallStart         Kind = "tool_call_start"
	KindToolCallEnd           Kind = "tool_call_end"
	KindLog                   Kind = "log"
	KindDebateProgress        Kind = "debate_progress"
	KindDebateResult          Kind = "debate_result"
	KindFinalResult           Kind = "final_result"
	KindWorkflowError         Kind = "workflow_error"
)

// structural events are never dropped under back-pressure.
var structuralKinds = map[Kind]bool{
	KindStageStart:          true,
	KindStageEnd:            true,
	KindStageError:          true,
	KindThinkingStarted:     true,
	KindThinkingCompleted:   true,
	KindThinkingInterrupted: true,
	KindIncrementalProgress: true,
	KindToolCallStart:       true,
	KindToolCallEnd:         true,
	KindDebateProgress:      true,
	KindDebateResult:        true,
	KindFinalResult:         true,
	KindWorkflowError:       true,
}

// IsStructural reports whether k must never be dropped by back-pressure.
func IsStructural(k Kind) bool { return structuralKinds[k] }

// IsTerminal reports whether k ends a task's event stream.
func IsTerminal(k Kind) bool { return k == KindFinalResult || k == KindWorkflowError }

// LogLevel mirrors the log event's level field.
type LogLevel string

const (
	LogDebug   LogLevel = "debug"
	LogInfo    LogLevel = "info"
	LogWarning LogLevel = "warning"
	LogError   LogLevel = "error"
)

var logLevelRank = map[LogLevel]int{
	LogDebug:   0,
	LogInfo:    1,
	LogWarning: 2,
	LogError:   3,
}

// Event is one typed, ordered item in a task's stream.
type Event struct {
	Kind      Kind      `json:"kind"`
	TaskID    string    `json:"task_id"`
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// Payload shapes, one per Kind, matching the canonical names.

type StageStartPayload struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

type StageProgressPayload struct {
	Stage    string   `json:"stage"`
	Message  string   `json:"message"`
	Progress *float64 `json:"progress,omitempty"`
}

type StageEndPayload struct {
	Stage  string `json:"stage"`
	Result any    `json:"result"`
}

type StageErrorPayload struct {
	Stage string `json:"stage"`
	Error string `json:"error"`
}

type ThinkingStartedPayload struct {
	Stage string `json:"stage"`
}

type ThinkingInProgressPayload struct {
	Stage      string `json:"stage"`
	Delta      string `json:"delta"`
	TotalChars int    `json:"total_chars"`
	ElapsedMs  int64  `json:"elapsed_ms"`
}

type ThinkingCompletedPayload struct {
	Stage      string `json:"stage"`
	Summary    string `json:"summary"`
	TotalChars int    `json:"total_chars"`
	ElapsedMs  int64  `json:"elapsed_ms"`
}

type ThinkingInterruptedPayload struct {
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

type IncrementalProgressPayload struct {
	Function   string  `json:"function"`
	Status     string  `json:"status"`
	FixAttempt int     `json:"fix_attempts"`
	Progress   float64 `json:"progress"`
}

type ToolCallStartPayload struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Name         string `json:"name"`
	InputPreview string `json:"input_preview"`
}

type ToolCallEndPayload struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	DurationMs    int64  `json:"duration_ms"`
	OutputPreview string `json:"output_preview"`
	TokensIn      *int   `json:"tokens_in,omitempty"`
	TokensOut     *int   `json:"tokens_out,omitempty"`
}

type LogPayload struct {
	Timestamp time.Time `json:"timestamp"`
	Level     LogLevel  `json:"level"`
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
	Details   any       `json:"details,omitempty"`
}

type DebateProgressPayload struct {
	Round     int    `json:"round"`
	MaxRounds int    `json:"max_rounds"`
	Reviewer  string `json:"reviewer"`
	Status    string `json:"status"`
	Issue     any    `json:"issue,omitempty"`
}

type DebateResultPayload struct {
	TotalIssues int  `json:"total_issues"`
	FixedIssues int  `json:"fixed_issues"`
	Rounds      int  `json:"rounds"`
	Consensus   bool `json:"consensus"`
}

type FinalResultPayload struct {
	Results any `json:"results"`
}

type WorkflowErrorPayload struct {
	Error string `json:"error"`
}
