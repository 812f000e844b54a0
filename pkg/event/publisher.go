package event

// Publisher is a per-task convenience wrapper over Manager with one typed
// method per event kind, so stage agents do not have to build payload
// structs inline at every call site.
type Publisher struct {
	mgr    *Manager
	taskID string
}

// For returns a Publisher scoped to taskID.
func (m *Manager) For(taskID string) Publisher {
	return Publisher{mgr: m, taskID: taskID}
}

func (p Publisher) StageStart(stage, message string) {
	p.mgr.Publish(p.taskID, KindStageStart, StageStartPayload{Stage: stage, Message: message})
}

func (p Publisher) StageProgress(stage, message string, progress *float64) {
	p.mgr.Publish(p.taskID, KindStageProgress, StageProgressPayload{Stage: stage, Message: message, Progress: progress})
}

func (p Publisher) StageEnd(stage string, result any) {
	p.mgr.Publish(p.taskID, KindStageEnd, StageEndPayload{Stage: stage, Result: result})
}

func (p Publisher) StageError(stage string, err error) {
	p.mgr.Publish(p.taskID, KindStageError, StageErrorPayload{Stage: stage, Error: err.Error()})
}

func (p Publisher) ThinkingStarted(stage string) {
	p.mgr.Publish(p.taskID, KindThinkingStarted, ThinkingStartedPayload{Stage: stage})
}

func (p Publisher) ThinkingInProgress(stage, delta string, totalChars int, elapsedMs int64) {
	p.mgr.Publish(p.taskID, KindThinkingInProgress, ThinkingInProgressPayload{
		Stage: stage, Delta: delta, TotalChars: totalChars, ElapsedMs: elapsedMs,
	})
}

func (p Publisher) ThinkingCompleted(stage, summary string, totalChars int, elapsedMs int64) {
	p.mgr.Publish(p.taskID, KindThinkingCompleted, ThinkingCompletedPayload{
		Stage: stage, Summary: summary, TotalChars: totalChars, ElapsedMs: elapsedMs,
	})
}

func (p Publisher) ThinkingInterrupted(stage, reason string) {
	p.mgr.Publish(p.taskID, KindThinkingInterrupted, ThinkingInterruptedPayload{Stage: stage, Reason: reason})
}

func (p Publisher) IncrementalProgress(function, status string, fixAttempts int, progress float64) {
	p.mgr.Publish(p.taskID, KindIncrementalProgress, IncrementalProgressPayload{
		Function: function, Status: status, FixAttempt: fixAttempts, Progress: progress,
	})
}

func (p Publisher) ToolCallStart(id, typ, name, inputPreview string) {
	p.mgr.Publish(p.taskID, KindToolCallStart, ToolCallStartPayload{ID: id, Type: typ, Name: name, InputPreview: inputPreview})
}

func (p Publisher) ToolCallEnd(id, status string, durationMs int64, outputPreview string, tokensIn, tokensOut *int) {
	p.mgr.Publish(p.taskID, KindToolCallEnd, ToolCallEndPayload{
		ID: id, Status: status, DurationMs: durationMs, OutputPreview: outputPreview,
		TokensIn: tokensIn, TokensOut: tokensOut,
	})
}

func (p Publisher) Log(level LogLevel, stage, message string, details any) {
	p.mgr.Publish(p.taskID, KindLog, LogPayload{Level: level, Stage: stage, Message: message, Details: details})
}

func (p Publisher) DebateProgress(round, maxRounds int, reviewer, status string, issue any) {
	p.mgr.Publish(p.taskID, KindDebateProgress, DebateProgressPayload{
		Round: round, MaxRounds: maxRounds, Reviewer: reviewer, Status: status, Issue: issue,
	})
}

func (p Publisher) DebateResult(totalIssues, fixedIssues, rounds int, consensus bool) {
	p.mgr.Publish(p.taskID, KindDebateResult, DebateResultPayload{
		TotalIssues: totalIssues, FixedIssues: fixedIssues, Rounds: rounds, Consensus: consensus,
	})
}

func (p Publisher) FinalResult(results any) {
	p.mgr.Publish(p.taskID, KindFinalResult, FinalResultPayload{Results: results})
}

func (p Publisher) WorkflowError(err error) {
	p.mgr.Publish(p.taskID, KindWorkflowError, WorkflowErrorPayload{Error: err.Error()})
}
