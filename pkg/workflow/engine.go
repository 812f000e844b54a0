// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package workflow wires the stage agents, the debate panel, the
// checkpointer, and the event stream manager into the directed stage
// graph that drives one task from intent classification to its terminal
// result. The graph is a handful of conditional branches and two bounded
// loops, so it is expressed as straightforward sequential Go control
// flow rather than a generic node/edge runtime.
package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kforge/codeforge/pkg/astx"
	"github.com/kforge/codeforge/pkg/checkpoint"
	"github.com/kforge/codeforge/pkg/conversation"
	"github.com/kforge/codeforge/pkg/debate"
	"github.com/kforge/codeforge/pkg/event"
	"github.com/kforge/codeforge/pkg/llm"
	"github.com/kforge/codeforge/pkg/logger"
	"github.com/kforge/codeforge/pkg/retrieval"
	"github.com/kforge/codeforge/pkg/stage"
	"github.com/kforge/codeforge/pkg/stageagents"
)

// Config assembles an Engine from its dependencies. Every stage agent is
// built internally from Client/Index/ProjectRoot/Web so callers do not
// have to hand-construct all nine.
type Config struct {
	Client      llm.Client
	Index       *retrieval.Index
	Web         stageagents.WebSearcher
	ProjectRoot string // empty disables AST-facts research and analyze_project

	Checkpoints *checkpoint.Manager
	Memory      *conversation.Memory

	DebateEnabled bool
	Debate        debate.Config
}

// Engine drives tasks through the stage graph described in §4.1: intent
// routing, the complexity-gated coding path, the bounded fix loop, and
// the debate gate.
type Engine struct {
	intent      *stageagents.IntentAgent
	planner     *stageagents.PlannerAgent
	researcher  *stageagents.ResearcherAgent
	testgen     *stageagents.TestGeneratorAgent
	coder       *stageagents.CoderAgent
	incremental *stageagents.IncrementalCoder
	validator   *stageagents.ValidatorAgent
	debugger    *stageagents.DebuggerAgent
	fixer       *stageagents.FixerAgent
	reflection  *stageagents.ReflectionAgent
	debate      *debate.Debate

	debateEnabled bool
	projectRoot   string
	noLocalContext bool

	checkpoints *checkpoint.Manager
	hooks       *checkpoint.Hooks
	events      *event.Manager
	memory      *conversation.Memory

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	paused  map[string]*atomic.Bool
}

// New assembles an Engine. cfg.Checkpoints must be non-nil; a process
// with no durable checkpointing still needs one backed by a throwaway
// directory, since stage-boundary hooks are unconditional.
func New(cfg Config) *Engine {
	e := &Engine{
		intent: stageagents.NewIntentAgent(cfg.Client),
		planner: stageagents.NewPlannerAgent(cfg.Client),
		researcher: stageagents.NewResearcherAgent(stageagents.ResearcherConfig{
			Index:       cfg.Index,
			Web:         cfg.Web,
			ProjectRoot: cfg.ProjectRoot,
		}),
		testgen:     stageagents.NewTestGeneratorAgent(cfg.Client),
		coder:       stageagents.NewCoderAgent(cfg.Client, cfg.Index),
		incremental: stageagents.NewIncrementalCoder(cfg.Client, cfg.Index),
		validator:   stageagents.NewValidatorAgent(),
		debugger:    stageagents.NewDebuggerAgent(cfg.Client),
		fixer:       stageagents.NewFixerAgent(cfg.Client),
		reflection:  stageagents.NewReflectionAgent(cfg.Client),

		debateEnabled:  cfg.DebateEnabled,
		projectRoot:    cfg.ProjectRoot,
		noLocalContext: cfg.Index == nil && cfg.ProjectRoot == "" && cfg.Web == nil,

		checkpoints: cfg.Checkpoints,
		hooks:       checkpoint.NewHooks(cfg.Checkpoints),
		memory:      cfg.Memory,

		cancels: make(map[string]context.CancelFunc),
		paused:  make(map[string]*atomic.Bool),
	}
	e.debate = debate.New(cfg.Client, cfg.Debate)
	e.events = event.NewManager(e.onSubscriberGone)
	return e
}

// StartTask creates a run and drives it in a background goroutine,
// returning immediately with its task id (assigned if the caller left it
// unset). The LLM Adapter's semaphore caps cross-task concurrency, so
// "enqueue" and "spawn now" coincide in this single-process scheduler.
func (e *Engine) StartTask(task stage.Task) (string, error) {
	if task.TaskID == "" {
		task.TaskID = uuid.NewString()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	task.Options.SetDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	pausedFlag := &atomic.Bool{}

	e.mu.Lock()
	e.cancels[task.TaskID] = cancel
	e.paused[task.TaskID] = pausedFlag
	e.mu.Unlock()

	go e.run(ctx, task, pausedFlag)
	return task.TaskID, nil
}

// Stream subscribes to task_id's live event stream.
func (e *Engine) Stream(taskID string) (<-chan event.Event, func()) {
	return e.events.Subscribe(taskID)
}

// Cancel requests cooperative termination: the current stage is allowed
// to finish (or aborts at its next await point via context cancellation)
// and the checkpoint is recorded paused.
func (e *Engine) Cancel(taskID string) {
	e.requestPause(taskID)
}

// onSubscriberGone is registered with the Event Stream Manager as its
// disconnect callback: losing the last subscriber pauses the run exactly
// like an explicit Cancel.
func (e *Engine) onSubscriberGone(taskID string) {
	e.requestPause(taskID)
}

func (e *Engine) requestPause(taskID string) {
	e.mu.Lock()
	flag := e.paused[taskID]
	cancel := e.cancels[taskID]
	e.mu.Unlock()
	if flag != nil {
		flag.Store(true)
	}
	if cancel != nil {
		cancel()
	}
}

func (e *Engine) clearTask(taskID string) {
	e.mu.Lock()
	delete(e.cancels, taskID)
	delete(e.paused, taskID)
	e.mu.Unlock()
}

// Resume replays a non-active task's last recorded checkpoint as a
// synthetic event sequence and, if the checkpoint itself is not
// terminal, continues execution from the next stage. Stages whose output
// the checkpoint records are not re-executed; once the checkpoint holds
// code, research and test generation count as done even if their output
// was empty.
func (e *Engine) Resume(taskID string) (<-chan event.Event, func(), error) {
	cp, ok, err := e.checkpoints.Load(taskID)
	if err != nil {
		return nil, nil, fmt.Errorf("workflow: resume %q: %w", taskID, err)
	}
	if !ok {
		return nil, nil, fmt.Errorf("workflow: resume %q: no checkpoint", taskID)
	}

	ch, unsub := e.events.Subscribe(taskID)
	pub := e.events.For(taskID)
	replayCheckpointEvents(pub, cp)

	if cp.Metadata.Status.IsTerminal() {
		unsub()
		return ch, unsub, nil
	}

	st := stage.Restore(cp.State, time.Now())
	task := stage.Task{
		TaskID:         taskID,
		Prompt:         cp.State.Task,
		Options:        stage.Options{Model: cp.Metadata.Model, MaxIterations: 3},
		CreatedAt:      cp.Metadata.CreatedAt,
		ConversationID: cp.State.ConversationID,
	}
	task.Options.SetDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	pausedFlag := &atomic.Bool{}
	e.mu.Lock()
	e.cancels[taskID] = cancel
	e.paused[taskID] = pausedFlag
	e.mu.Unlock()

	go e.resumeFrom(ctx, task, st, cp.Metadata, pausedFlag)
	return ch, unsub, nil
}

// replayCheckpointEvents reconstructs stage_end events in canonical
// pipeline order from whichever Snapshot fields are non-nil, so a
// resuming subscriber sees the same history a live run would have
// produced.
func replayCheckpointEvents(pub event.Publisher, cp *checkpoint.Checkpoint) {
	snap := cp.State
	if snap.IntentResult != nil {
		pub.StageEnd("intent", *snap.IntentResult)
	}
	if snap.Plan != nil {
		pub.StageEnd("planning", *snap.Plan)
	}
	if snap.Context != "" {
		pub.StageEnd("research", snap.Context)
	}
	if snap.Tests != "" {
		pub.StageEnd("test_generation", snap.Tests)
	}
	if snap.Code != "" {
		pub.StageEnd("coding", snap.Code)
	}
	if snap.ValidationResults != nil {
		pub.StageEnd("validation", *snap.ValidationResults)
	}
	if snap.DebugResult != nil {
		pub.StageEnd("debugging", *snap.DebugResult)
	}
	if snap.Debate != nil {
		pub.StageEnd("debate", *snap.Debate)
	}
	if snap.Reflection != nil {
		pub.StageEnd("reflection", *snap.Reflection)
	}
	if cp.Metadata.Status == checkpoint.StatusCompleted {
		pub.FinalResult(resultsFromSnapshot(snap))
	} else if cp.Metadata.Status == checkpoint.StatusFailed {
		pub.WorkflowError(fmt.Errorf("task %q ended with status=failed at stage %q", cp.Metadata.TaskID, cp.Metadata.LastStage))
	}
}

// ActiveTasks, History, Get, and Delete pass straight through to the
// checkpointer; the engine adds no state of its own beyond the
// in-flight cancellation/pause bookkeeping.

func (e *Engine) ActiveTasks() ([]checkpoint.Metadata, error) { return e.checkpoints.ListActiveTasks() }
func (e *Engine) History() ([]checkpoint.Metadata, error)     { return e.checkpoints.ListHistory() }
func (e *Engine) Get(taskID string) (*checkpoint.Checkpoint, bool, error) {
	return e.checkpoints.Load(taskID)
}
func (e *Engine) Delete(taskID string) error { return e.checkpoints.Delete(taskID) }

// run drives a freshly started task from scratch through the stage
// graph.
func (e *Engine) run(ctx context.Context, task stage.Task, paused *atomic.Bool) {
	defer e.clearTask(task.TaskID)
	logger.StageLogger(task.TaskID).Info("task started", "stage", "intent", "iteration", 0)

	st := stage.NewState(task.Prompt, task.Options.Model, true, task.ConversationID)
	meta := checkpoint.NewMetadata(task.TaskID, task.Prompt, task.Options.Model)
	e.execute(ctx, task, st, meta, paused)
}

// resumeFrom continues a restored run; prior stages are not re-executed,
// restored fields are already marked set on st.
func (e *Engine) resumeFrom(ctx context.Context, task stage.Task, st *stage.State, meta checkpoint.Metadata, paused *atomic.Bool) {
	defer e.clearTask(task.TaskID)
	e.execute(ctx, task, st, meta, paused)
}

// execute runs the stage graph from wherever st currently stands.
func (e *Engine) execute(ctx context.Context, task stage.Task, st *stage.State, meta checkpoint.Metadata, paused *atomic.Bool) {
	pub := e.events.For(task.TaskID)
	ctx = stage.WithOptions(ctx, task.Options)

	if _, ok := st.IntentResult(); !ok {
		meta = e.hooks.OnStageStart(meta, "intent", st.Iteration(), st.Snapshot())
		if err := e.intent.Execute(ctx, st, pub); err != nil {
			if e.bailIfPaused(paused, meta, st, pub) {
				return
			}
			_ = st.SetIntentResult(stage.IntentResult{
				Type: stage.IntentCreate, Confidence: 0.5, Complexity: stage.ComplexityMedium,
				Reasoning: "fallback after stage_error",
			})
		}
		meta = e.hooks.OnStageEnd(meta, "intent", st.Iteration(), st.Snapshot())
	}
	if e.bailIfPaused(paused, meta, st, pub) {
		return
	}

	intent, _ := st.IntentResult()
	effType := intent.Type
	effComplexity := intent.Complexity
	if intent.Confidence < 0.5 {
		effType = stage.IntentCreate
		effComplexity = stage.ComplexityMedium
	}

	switch effType {
	case stage.IntentGreeting, stage.IntentHelp:
		e.runGreeting(st, meta, pub)
		return
	case stage.IntentAnalyze:
		e.runAnalyzeProject(ctx, st, meta, pub)
		return
	}

	if _, ok := st.Plan(); !ok {
		meta = e.hooks.OnStageStart(meta, "planning", st.Iteration(), st.Snapshot())
		if err := e.planner.Execute(ctx, st, pub); err != nil {
			if e.bailIfPaused(paused, meta, st, pub) {
				return
			}
			_ = st.SetPlan(stage.Plan{Text: fallbackPlanText(task.Prompt)})
		}
		meta = e.hooks.OnStageEnd(meta, "planning", st.Iteration(), st.Snapshot())
	}
	if e.bailIfPaused(paused, meta, st, pub) {
		return
	}

	// A plan that came back empty ends up as a one-line plan from the task
	// text: the planner's own "Implement: <task>" synthesis, fallbackPlanText
	// after a planner error, or the ReplacePlan below. Each drops complexity
	// one step.
	if plan, _ := st.Plan(); strings.TrimSpace(plan.Text) == "" {
		st.ReplacePlan(stage.Plan{Text: fallbackPlanText(task.Prompt)})
		effComplexity = effComplexity.Lower()
	} else if plan.Text == "Implement: "+strings.TrimSpace(task.Prompt) || plan.Text == fallbackPlanText(task.Prompt) {
		effComplexity = effComplexity.Lower()
	}

	if _, ok := st.Context(); !ok {
		if !(task.Options.DisableWebSearch && e.noLocalContext) {
			meta = e.hooks.OnStageStart(meta, "research", st.Iteration(), st.Snapshot())
			if err := e.researcher.Execute(ctx, st, pub); err != nil {
				if e.bailIfPaused(paused, meta, st, pub) {
					return
				}
				_ = st.SetContext("")
			}
			meta = e.hooks.OnStageEnd(meta, "research", st.Iteration(), st.Snapshot())
		} else {
			_ = st.SetContext("")
		}
	}
	if e.bailIfPaused(paused, meta, st, pub) {
		return
	}

	if _, ok := st.Tests(); !ok {
		meta = e.hooks.OnStageStart(meta, "test_generation", st.Iteration(), st.Snapshot())
		if err := e.testgen.Execute(ctx, st, pub); err != nil {
			if e.bailIfPaused(paused, meta, st, pub) {
				return
			}
			_ = st.SetTests("")
		}
		meta = e.hooks.OnStageEnd(meta, "test_generation", st.Iteration(), st.Snapshot())
	}
	if e.bailIfPaused(paused, meta, st, pub) {
		return
	}

	if st.Code() == "" {
		meta = e.hooks.OnStageStart(meta, "coding", st.Iteration(), st.Snapshot())
		var err error
		if effComplexity == stage.ComplexityComplex {
			err = e.incremental.Execute(ctx, st, pub)
		} else {
			err = e.coder.Execute(ctx, st, pub)
		}
		if err != nil {
			if e.bailIfPaused(paused, meta, st, pub) {
				return
			}
			st.SetCode("")
		}
		meta = e.hooks.OnStageEnd(meta, "coding", st.Iteration(), st.Snapshot())
	}
	if e.bailIfPaused(paused, meta, st, pub) {
		return
	}

	failed := e.runValidationLoop(ctx, task, st, &meta, pub, paused)
	if e.bailIfPaused(paused, meta, st, pub) {
		return
	}

	if !failed && e.debateEnabled && complexityAtLeast(effComplexity, stage.ComplexityMedium) {
		meta = e.hooks.OnStageStart(meta, "debate", st.Iteration(), st.Snapshot())
		if err := e.debate.Execute(ctx, st, pub); err != nil && !e.bailIfPaused(paused, meta, st, pub) {
			pub.StageError(e.debate.Name(), err)
		}
		meta = e.hooks.OnStageEnd(meta, "debate", st.Iteration(), st.Snapshot())
	}
	if e.bailIfPaused(paused, meta, st, pub) {
		return
	}

	meta = e.hooks.OnStageStart(meta, "reflection", st.Iteration(), st.Snapshot())
	if err := e.reflection.Execute(ctx, st, pub); err != nil {
		pub.StageError(e.reflection.Name(), err)
	}

	if e.memory != nil {
		validation, _ := st.ValidationResults()
		_ = e.memory.OnTaskCompleted(ctx, task.Prompt, st.Code(), validation.AllPassed)
	}

	results := resultsFromState(st)
	results.Failed = failed
	if failed {
		meta = e.hooks.OnError(meta, "reflection", st.Iteration(), st.Snapshot(), fmt.Errorf("validation did not pass within max_iterations"))
		logger.StageLogger(task.TaskID).Warn("task failed", "stage", "reflection", "iteration", st.Iteration())
		pub.WorkflowError(fmt.Errorf("task %q failed: validation did not pass within max_iterations", task.TaskID))
		return
	}
	meta = e.hooks.OnComplete(meta, "reflection", st.Iteration(), st.Snapshot())
	logger.StageLogger(task.TaskID).Info("task completed", "stage", "reflection", "iteration", st.Iteration())
	pub.FinalResult(results)
}

// runValidationLoop runs validation, and on failure, the bounded
// debug/fix cycle, incrementing iteration each pass. It returns whether
// the task ultimately failed (validation never passed within
// max_iterations).
func (e *Engine) runValidationLoop(ctx context.Context, task stage.Task, st *stage.State, meta *checkpoint.Metadata, pub event.Publisher, paused *atomic.Bool) bool {
	maxIterations := task.Options.MaxIterations

	for {
		*meta = e.hooks.OnStageStart(*meta, "validation", st.Iteration(), st.Snapshot())
		if err := e.validator.Execute(ctx, st, pub); err != nil {
			pub.StageError(e.validator.Name(), err)
		}
		*meta = e.hooks.OnStageEnd(*meta, "validation", st.Iteration(), st.Snapshot())
		if e.bailIfPaused(paused, *meta, st, pub) {
			return false
		}

		report, _ := st.ValidationResults()
		if report.AllPassed {
			return false
		}
		if st.Iteration() >= maxIterations {
			return true
		}

		*meta = e.hooks.OnStageStart(*meta, "debugging", st.Iteration(), st.Snapshot())
		if err := e.debugger.Execute(ctx, st, pub); err != nil {
			pub.StageError(e.debugger.Name(), err)
		}
		*meta = e.hooks.OnStageEnd(*meta, "debugging", st.Iteration(), st.Snapshot())
		if e.bailIfPaused(paused, *meta, st, pub) {
			return false
		}

		*meta = e.hooks.OnStageStart(*meta, "fixing", st.Iteration(), st.Snapshot())
		if err := e.fixer.Execute(ctx, st, pub); err != nil {
			pub.StageError(e.fixer.Name(), err)
			st.IncrementIteration()
		}
		*meta = e.hooks.OnIterationEnd(*meta, "fixing", st.Iteration(), st.Snapshot())
		if e.bailIfPaused(paused, *meta, st, pub) {
			return false
		}
	}
}

// bailIfPaused checkpoints status=paused and returns true if a pause was
// requested mid-run (explicit cancel or subscriber disconnect).
func (e *Engine) bailIfPaused(paused *atomic.Bool, meta checkpoint.Metadata, st *stage.State, pub event.Publisher) bool {
	if paused == nil || !paused.Load() {
		return false
	}
	e.hooks.OnPause(meta, meta.LastStage, st.Iteration(), st.Snapshot())
	return true
}

func (e *Engine) runGreeting(st *stage.State, meta checkpoint.Metadata, pub event.Publisher) {
	pub.StageStart("greeting", "responding")
	message := greetingReply(st.Task())
	_ = st.SetGreetingMessage(message)
	pub.StageEnd("greeting", message)
	e.hooks.OnComplete(meta, "greeting", st.Iteration(), st.Snapshot())
	pub.FinalResult(resultsFromState(st))
}

func greetingReply(task string) string {
	lower := strings.ToLower(task)
	if strings.Contains(lower, "help") {
		return "I can create, modify, debug, optimize, explain, test, or refactor Go code, or analyze the current project. What would you like to do?"
	}
	return "Hello! Tell me what you'd like to build or fix and I'll get started."
}

func (e *Engine) runAnalyzeProject(ctx context.Context, st *stage.State, meta checkpoint.Metadata, pub event.Publisher) {
	pub.StageStart("analyze_project", "analyzing project")
	summary := "no project root configured"
	if e.projectRoot != "" {
		analysis, err := astx.AnalyzeProject(e.projectRoot)
		if err != nil {
			pub.StageError("analyze_project", err)
		} else {
			summary = summarizeAnalysis(analysis)
		}
	}
	_ = st.SetContext(summary)
	pub.StageEnd("analyze_project", summary)
	e.hooks.OnComplete(meta, "analyze_project", st.Iteration(), st.Snapshot())
	pub.FinalResult(resultsFromState(st))
}

func summarizeAnalysis(analysis *astx.ProjectAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "analyzed %d Go file(s)", len(analysis.Files))
	errs := 0
	for _, f := range analysis.Files {
		if f.Error != "" {
			errs++
		}
	}
	if errs > 0 {
		fmt.Fprintf(&b, ", %d with parse errors", errs)
	}
	return b.String()
}

func fallbackPlanText(task string) string {
	return "Plan: " + strings.TrimSpace(task)
}

var complexityRank = map[stage.Complexity]int{
	stage.ComplexitySimple:  0,
	stage.ComplexityMedium:  1,
	stage.ComplexityComplex: 2,
}

func complexityAtLeast(c, floor stage.Complexity) bool {
	return complexityRank[c] >= complexityRank[floor]
}
