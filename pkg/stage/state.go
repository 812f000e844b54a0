package stage

import (
	"fmt"
	"sync"
	"time"
)

// State is the evolving record passed between workflow nodes for one task
// run. Once a field is set by its producing stage, later nodes may read it
// but may not overwrite it — except Code (re-written by the fix/debate
// stages), Iteration (monotonically increasing), the validation report and
// debug result (replaced on every fix iteration), and the plan via
// ReplacePlan. The set-once Set* methods return ErrAlreadySet on a second
// call; callers that need to know whether a field is set use the bool
// returned by its getter.
type State struct {
	mu sync.RWMutex

	task            string
	taskSet         bool
	intentResult    *IntentResult
	intentSet       bool
	plan            *Plan
	planSet         bool
	context         string
	contextSet      bool
	tests           string
	testsSet        bool
	code            string // mutable: fix/debate stages rewrite this
	validation      *ValidationReport
	validationSet   bool
	debugResult     *DebugResult
	debugSet        bool
	reflection      *ReflectionResult
	reflectionSet   bool
	debate          *DebateReport
	debateSet       bool
	greetingMessage string
	greetingSet     bool
	iteration       int // mutable: monotonically increasing
	model           string
	modelSet        bool
	startTime       time.Time
	enableSSE       bool
	conversationID  string
}

// NewState creates a fresh AgentState for a task.
func NewState(task, model string, enableSSE bool, conversationID string) *State {
	return &State{
		task:           task,
		taskSet:        true,
		model:          model,
		modelSet:       model != "",
		startTime:      time.Now(),
		enableSSE:      enableSSE,
		conversationID: conversationID,
	}
}

// ErrAlreadySet is returned by a Set* method when the field is owned and
// already has a value.
type ErrAlreadySet struct{ Field string }

func (e *ErrAlreadySet) Error() string {
	return fmt.Sprintf("agent state field %q is already set and cannot be overwritten", e.Field)
}

func (s *State) Task() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.task
}

func (s *State) IntentResult() (IntentResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.intentResult == nil {
		return IntentResult{}, false
	}
	return *s.intentResult, true
}

func (s *State) SetIntentResult(v IntentResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.intentSet {
		return &ErrAlreadySet{"intent_result"}
	}
	s.intentResult = &v
	s.intentSet = true
	return nil
}

func (s *State) Plan() (Plan, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.plan == nil {
		return Plan{}, false
	}
	return *s.plan, true
}

func (s *State) SetPlan(v Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.planSet {
		return &ErrAlreadySet{"plan"}
	}
	s.plan = &v
	s.planSet = true
	return nil
}

// ReplacePlan overwrites a previously set plan. The only caller is the
// Workflow Engine's empty-plan tie-break: when the stored plan's text is
// empty, the engine substitutes a one-line plan derived from the task text
// and downgrades complexity, after SetPlan has already been called once.
func (s *State) ReplacePlan(v Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plan = &v
	s.planSet = true
}

func (s *State) Context() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.context, s.contextSet
}

func (s *State) SetContext(v string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.contextSet {
		return &ErrAlreadySet{"context"}
	}
	s.context = v
	s.contextSet = true
	return nil
}

func (s *State) Tests() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tests, s.testsSet
}

func (s *State) SetTests(v string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.testsSet {
		return &ErrAlreadySet{"tests"}
	}
	s.tests = v
	s.testsSet = true
	return nil
}

// Code is mutable: the coder stage sets it, and fix/debate stages rewrite it.
func (s *State) Code() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.code
}

// SetCode overwrites the generated code. Unlike other output fields this is
// always permitted, per the AgentState ownership invariant (§3).
func (s *State) SetCode(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.code = v
}

func (s *State) ValidationResults() (ValidationReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.validation == nil {
		return ValidationReport{}, false
	}
	return *s.validation, true
}

// SetValidationResults is permitted on every call: the validation stage
// re-runs after each fix cycle, recording a fresh report per iteration.
func (s *State) SetValidationResults(v ValidationReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validation = &v
	s.validationSet = true
}

func (s *State) DebugResult() (DebugResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.debugResult == nil {
		return DebugResult{}, false
	}
	return *s.debugResult, true
}

// SetDebugResult is permitted on every call: each fix iteration produces a
// fresh diagnosis.
func (s *State) SetDebugResult(v DebugResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debugResult = &v
	s.debugSet = true
}

func (s *State) Reflection() (ReflectionResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.reflection == nil {
		return ReflectionResult{}, false
	}
	return *s.reflection, true
}

func (s *State) SetReflection(v ReflectionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reflectionSet {
		return &ErrAlreadySet{"reflection_result"}
	}
	s.reflection = &v
	s.reflectionSet = true
	return nil
}

func (s *State) Debate() (DebateReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.debate == nil {
		return DebateReport{}, false
	}
	return *s.debate, true
}

func (s *State) SetDebate(v DebateReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.debateSet {
		return &ErrAlreadySet{"debate_result"}
	}
	s.debate = &v
	s.debateSet = true
	return nil
}

func (s *State) GreetingMessage() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.greetingMessage, s.greetingSet
}

func (s *State) SetGreetingMessage(v string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.greetingSet {
		return &ErrAlreadySet{"greeting_message"}
	}
	s.greetingMessage = v
	s.greetingSet = true
	return nil
}

// Iteration is mutable and monotonically increasing.
func (s *State) Iteration() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.iteration
}

// IncrementIteration bumps Iteration by one and returns the new value.
func (s *State) IncrementIteration() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.iteration++
	return s.iteration
}

func (s *State) Model() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// SetModel is permitted once, lazily, when the task did not specify a model
// up front (e.g. resolved from config defaults at planning time).
func (s *State) SetModel(v string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.modelSet {
		return &ErrAlreadySet{"model"}
	}
	s.model = v
	s.modelSet = true
	return nil
}

func (s *State) StartTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startTime
}

func (s *State) EnableSSE() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enableSSE
}

func (s *State) ConversationID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conversationID, s.conversationID != ""
}

// Snapshot is a plain, JSON-serializable copy of State for checkpointing.
type Snapshot struct {
	Task            string            `json:"task"`
	IntentResult    *IntentResult     `json:"intent_result,omitempty"`
	Plan            *Plan             `json:"plan,omitempty"`
	Context         string            `json:"context,omitempty"`
	Tests           string            `json:"tests,omitempty"`
	Code            string            `json:"code,omitempty"`
	ValidationResults *ValidationReport `json:"validation_results,omitempty"`
	DebugResult     *DebugResult      `json:"debug_result,omitempty"`
	Reflection      *ReflectionResult `json:"reflection_result,omitempty"`
	Debate          *DebateReport     `json:"debate_result,omitempty"`
	GreetingMessage string            `json:"greeting_message,omitempty"`
	Iteration       int               `json:"iteration"`
	Model           string            `json:"model,omitempty"`
	EnableSSE       bool              `json:"enable_sse"`
	ConversationID  string            `json:"conversation_id,omitempty"`
}

// Snapshot takes a consistent, read-locked copy of the state for persistence.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Task:              s.task,
		IntentResult:      s.intentResult,
		Plan:              s.plan,
		Context:           s.context,
		Tests:             s.tests,
		Code:              s.code,
		ValidationResults: s.validation,
		DebugResult:       s.debugResult,
		Reflection:        s.reflection,
		Debate:            s.debate,
		GreetingMessage:   s.greetingMessage,
		Iteration:         s.iteration,
		Model:             s.model,
		EnableSSE:         s.enableSSE,
		ConversationID:    s.conversationID,
	}
}

// Restore rebuilds a State from a Snapshot, e.g. after loading a checkpoint.
// All "set-once" fields present in the snapshot are marked set so later
// stages cannot overwrite replayed data. Context and Tests are also marked
// set when the snapshot holds code, since both stages run before coding
// and may have produced empty output.
func Restore(snap Snapshot, startTime time.Time) *State {
	s := &State{
		task:            snap.Task,
		taskSet:         true,
		context:         snap.Context,
		contextSet:      snap.Context != "" || snap.Code != "",
		tests:           snap.Tests,
		testsSet:        snap.Tests != "" || snap.Code != "",
		code:            snap.Code,
		greetingMessage: snap.GreetingMessage,
		greetingSet:     snap.GreetingMessage != "",
		iteration:       snap.Iteration,
		model:           snap.Model,
		modelSet:        snap.Model != "",
		startTime:       startTime,
		enableSSE:       snap.EnableSSE,
		conversationID:  snap.ConversationID,
	}
	if snap.IntentResult != nil {
		s.intentResult = snap.IntentResult
		s.intentSet = true
	}
	if snap.Plan != nil {
		s.plan = snap.Plan
		s.planSet = true
	}
	if snap.ValidationResults != nil {
		s.validation = snap.ValidationResults
		s.validationSet = true
	}
	if snap.DebugResult != nil {
		s.debugResult = snap.DebugResult
		s.debugSet = true
	}
	if snap.Reflection != nil {
		s.reflection = snap.Reflection
		s.reflectionSet = true
	}
	if snap.Debate != nil {
		s.debate = snap.Debate
		s.debateSet = true
	}
	return s
}
