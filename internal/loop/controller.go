package loop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/churn-dev/churn/internal/events"
	"github.com/churn-dev/churn/internal/state"
	"github.com/churn-dev/churn/internal/types"
	"github.com/churn-dev/churn/internal/worker"
)

// Config wires a Controller's collaborators.
type Config struct {
	Store  state.Store
	Worker worker.Worker
	Sink   events.Sink // optional, defaults to events.Discard
}

// Controller drives one loop instance. It is single-threaded and fully
// sequential: exactly one Worker invocation is outstanding at any time,
// and state is persisted after every iteration before the next begins.
type Controller struct {
	store  state.Store
	worker worker.Worker
	sink   events.Sink
}

// New creates a Controller.
func New(cfg Config) (*Controller, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("controller requires a state store")
	}
	if cfg.Worker == nil {
		return nil, fmt.Errorf("controller requires a worker")
	}
	if cfg.Sink == nil {
		cfg.Sink = events.Discard
	}
	return &Controller{store: cfg.Store, worker: cfg.Worker, sink: cfg.Sink}, nil
}

// NewLoop builds a fresh running LoopState with a generated id.
func NewLoop(mode types.LoopMode, cfg types.LoopConfig, plan []types.Unit) (*types.LoopState, error) {
	if !mode.IsValid() {
		return nil, fmt.Errorf("invalid mode: %s", mode)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	for i := range plan {
		if plan[i].Status == "" {
			plan[i].Status = types.UnitPending
		}
	}
	now := time.Now().UTC()
	return &types.LoopState{
		ID:        uuid.New().String(),
		Status:    types.StatusRunning,
		Mode:      mode,
		Config:    cfg,
		Plan:      plan,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// RunResult reports how a Run ended.
type RunResult struct {
	Status        types.LoopStatus
	Reason        string
	IterationsRun int
	Summary       string
	StatePath     string
}

// Run drives the loop until it reaches a terminal status, pauses, or
// hits a persistence failure. Persistence failures are fatal: the loop
// must not proceed past an iteration that was never checkpointed, so
// Run returns the error and leaves the stored state at the last
// successful save.
func (c *Controller) Run(ctx context.Context, st *types.LoopState) (*RunResult, error) {
	if st.Status.IsTerminal() {
		return nil, fmt.Errorf("loop %s is %s: %w", st.ID, st.Status, state.ErrAlreadyTerminal)
	}
	if st.Status == types.StatusPaused {
		st.Status = types.StatusRunning
		c.emit(st, events.EventTypeLoopResumed, 0, events.SeverityInfo,
			fmt.Sprintf("resuming at iteration %d", st.CurrentIteration+1), nil)
	}

	firstIteration := st.CurrentIteration
	for {
		// Budget guard: stop before invoking the worker at all.
		if st.CurrentIteration+1 > st.Config.MaxIterations {
			dec := terminal(types.StatusMaxIterations,
				"iteration budget of %d exhausted", st.Config.MaxIterations)
			return c.finish(st, firstIteration, dec)
		}

		// A recovery skip can resolve the last pending unit between
		// evaluations; nothing is left for a worker to do.
		if st.Mode == types.ModeTaskLoop && AllResolved(st.Plan) {
			dec := terminal(types.StatusCompleted,
				"all %d plan units resolved", len(st.Plan))
			return c.finish(st, firstIteration, dec)
		}

		// Aborts are cooperative and observed between iterations only.
		if ctx.Err() != nil {
			return c.pause(st, firstIteration, "run canceled")
		}
		if c.store.AbortRequested(st.ID) {
			if err := c.store.ClearAbort(st.ID); err != nil {
				return nil, fmt.Errorf("failed to clear abort signal for loop %s: %w", st.ID, err)
			}
			c.emit(st, events.EventTypeAbortObserved, 0, events.SeverityWarning,
				"abort requested, pausing", nil)
			return c.pause(st, firstIteration, "abort requested")
		}

		req, trackID, runnable := c.nextRequest(st)
		if !runnable {
			dec := terminal(types.StatusFailed,
				"no runnable unit: %d pending units have unresolved dependencies",
				len(st.PendingUnits()))
			return c.finish(st, firstIteration, dec)
		}

		c.emit(st, events.EventTypeIterationStarted, req.Iteration, events.SeverityInfo,
			fmt.Sprintf("iteration %d: %s %s", req.Iteration, req.Kind, trackID),
			map[string]interface{}{"kind": string(req.Kind), "unit": trackID})

		startedAt := time.Now().UTC()
		report, invokeErr := c.worker.Invoke(ctx, req)
		completedAt := time.Now().UTC()

		// A canceled context mid-call means the worker was interrupted,
		// not that it failed: pause without recording the iteration.
		if invokeErr != nil && ctx.Err() != nil && errors.Is(invokeErr, ctx.Err()) {
			return c.pause(st, firstIteration, "run canceled during worker call")
		}

		rec := c.classify(st, req, trackID, report, invokeErr, startedAt, completedAt)

		dec := Evaluate(st, rec)

		if !dec.Terminal {
			if rec.Outcome == types.OutcomeFailure {
				if !st.Config.AutoRecover {
					c.apply(st, rec)
					return c.pause(st, firstIteration, "failure with auto-recovery disabled")
				}
				if abort := c.recover(st, rec, trackID); abort != nil {
					dec = *abort
				}
			} else {
				c.settle(st, rec, req, trackID)
			}
		}

		c.apply(st, rec)

		if dec.Terminal {
			return c.finish(st, firstIteration, dec)
		}

		if err := c.persist(st); err != nil {
			return nil, err
		}
		c.emit(st, events.EventTypeIterationCompleted, rec.Number, events.SeverityInfo,
			fmt.Sprintf("iteration %d: %s", rec.Number, rec.Outcome),
			map[string]interface{}{"outcome": string(rec.Outcome)})
	}
}

// nextRequest builds the worker request for the upcoming iteration. The
// returned track id is the unit failures are counted against. runnable
// is false when pending units remain but none can run.
func (c *Controller) nextRequest(st *types.LoopState) (worker.Request, string, bool) {
	reqCtx := worker.Context{
		CompletionKeyword: st.Config.CompletionKeyword,
		RemainingWork:     st.PendingUnits(),
	}
	if last := st.LastRecord(); last != nil {
		reqCtx.PriorOutcome = last.Outcome
		reqCtx.LastErrors = last.Signals.Errors
	}

	kind := types.RequestAttempt
	trackID := types.SyntheticLoopUnit

	switch {
	case st.NextRequest != nil:
		d := st.NextRequest
		kind = d.Kind
		trackID = d.Unit
		reqCtx.RecoveryLevel = d.Level
		reqCtx.RecoveryReason = d.Reason
		if u := st.Unit(d.Unit); u != nil {
			unit := *u
			reqCtx.ActiveUnit = &unit
		}
	case st.Mode == types.ModeQACycle:
		// Alternate review and fix rounds: a review that found issues
		// hands them to a fix round; everything else reviews.
		kind = types.RequestReview
		trackID = types.SyntheticReviewUnit
		last := st.LastRecord()
		if last != nil && last.Signals.RequestKind == types.RequestReview &&
			last.Outcome != types.OutcomeFailure && len(st.OpenIssues) > 0 {
			kind = types.RequestAttempt
			trackID = types.SyntheticLoopUnit
			reqCtx.OpenIssues = st.OpenIssues
		}
	default:
		if u := NextUnit(st.Plan); u != nil {
			unit := *u
			reqCtx.ActiveUnit = &unit
			trackID = u.ID
		} else if len(st.PendingUnits()) > 0 {
			return worker.Request{}, "", false
		}
	}

	st.ActiveUnit = trackID
	return worker.Request{
		Kind:      kind,
		LoopID:    st.ID,
		Iteration: st.CurrentIteration + 1,
		Mode:      st.Mode,
		Context:   reqCtx,
	}, trackID, true
}

// classify turns one worker invocation into an IterationRecord, applying
// progress to the plan so the evaluator sees the post-iteration picture.
func (c *Controller) classify(st *types.LoopState, req worker.Request, trackID string,
	report *worker.Report, invokeErr error, startedAt, completedAt time.Time) *types.IterationRecord {

	rec := &types.IterationRecord{
		Number:      st.CurrentIteration + 1,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Signals:     types.Signals{RequestKind: req.Kind},
	}

	if invokeErr == nil && report == nil {
		invokeErr = fmt.Errorf("worker returned no report")
	}
	if invokeErr != nil {
		rec.Outcome = types.OutcomeFailure
		category := worker.CategoryProtocolError
		if errors.Is(invokeErr, worker.ErrTimeout) {
			category = worker.CategoryTimeout
			rec.Signals.Timeout = true
		}
		rec.Signals.Errors = []types.WorkerError{{
			Category: category,
			Location: trackID,
			Message:  invokeErr.Error(),
		}}
		rec.Fingerprint = FailureFingerprint(category, trackID)
		return rec
	}

	rec.Signals.ItemsCompleted = report.ProgressItems
	rec.Signals.Errors = report.Errors

	if kw := st.Config.CompletionKeyword; kw != "" && ContainsKeyword(report.FreeText, kw) {
		rec.Signals.KeywordDetected = true
	}

	progressed := len(MarkDone(st.Plan, report.ProgressItems)) > 0

	if req.Kind == types.RequestReplan && len(report.ReplacementUnits) > 0 && len(report.Errors) == 0 {
		var newPlan []types.Unit
		var err error
		if st.Unit(trackID) != nil {
			newPlan, err = ReplaceUnit(st.Plan, trackID, report.ReplacementUnits)
		} else {
			newPlan, err = AdoptUnits(st.Plan, report.ReplacementUnits)
		}
		if err != nil {
			rec.Outcome = types.OutcomeFailure
			rec.Signals.Errors = []types.WorkerError{{
				Category: worker.CategoryProtocolError,
				Location: trackID,
				Message:  err.Error(),
			}}
			rec.Fingerprint = FailureFingerprint(worker.CategoryProtocolError, trackID)
			return rec
		}
		st.Plan = newPlan
		ClearUnitFailures(st, trackID)
		progressed = true
		c.emit(st, events.EventTypeUnitReplaced, rec.Number, events.SeverityInfo,
			fmt.Sprintf("unit %s replaced by %d units", trackID, len(report.ReplacementUnits)), nil)
	}

	if st.Mode == types.ModeTaskLoop && AllResolved(st.Plan) {
		rec.Signals.AllItemsComplete = true
	}

	if req.Kind == types.RequestReview {
		rec.Signals.IssuesFound = len(report.RawIssues)
		threshold := st.Config.SeverityThreshold()
		for _, issue := range report.RawIssues {
			if issue.Severity.AtLeast(threshold) {
				rec.Signals.IssuesAtOrAbove++
			}
		}
		rec.Signals.PassFingerprint = PassFingerprint(report.RawIssues)
		st.OpenIssues = report.RawIssues
	}

	rec.Outcome = c.outcomeOf(st, req, report, progressed)

	if rec.Outcome == types.OutcomeFailure {
		category := worker.CategoryNoProgress
		if len(rec.Signals.Errors) > 0 {
			category = rec.Signals.Errors[0].Category
		} else {
			rec.Signals.Errors = []types.WorkerError{{
				Category: category,
				Location: trackID,
				Message: fmt.Sprintf("no progress for %d consecutive iterations",
					types.NoProgressLimit),
			}}
		}
		rec.Fingerprint = FailureFingerprint(category, trackID)
	}
	return rec
}

// outcomeOf classifies a decoded report. Success needs at least one unit
// of progress and no errors; the third consecutive idle iteration
// escalates to failure so a silently stuck loop still triggers recovery.
func (c *Controller) outcomeOf(st *types.LoopState, req worker.Request,
	report *worker.Report, progressed bool) types.Outcome {

	if len(report.Errors) > 0 {
		return types.OutcomeFailure
	}

	if req.Kind == types.RequestReview {
		return c.reviewOutcome(st, report)
	}

	switch {
	case progressed || len(report.ProgressItems) > 0:
		return types.OutcomeSuccess
	case report.FreeText != "" || len(report.RawIssues) > 0:
		return types.OutcomePartial
	case st.NoProgressCount+1 >= types.NoProgressLimit:
		return types.OutcomeFailure
	default:
		return types.OutcomeNoProgress
	}
}

// reviewOutcome compares this review pass against the previous one. An
// identical issue set is no progress; a shrinking set is success.
func (c *Controller) reviewOutcome(st *types.LoopState, report *worker.Report) types.Outcome {
	prev := lastReviewRecord(st)
	if prev == nil {
		return types.OutcomeSuccess
	}
	current := PassFingerprint(report.RawIssues)
	if current == prev.Signals.PassFingerprint {
		if st.NoProgressCount+1 >= types.NoProgressLimit {
			return types.OutcomeFailure
		}
		return types.OutcomeNoProgress
	}
	if len(report.RawIssues) < prev.Signals.IssuesFound {
		return types.OutcomeSuccess
	}
	return types.OutcomePartial
}

func lastReviewRecord(st *types.LoopState) *types.IterationRecord {
	for i := len(st.Iterations) - 1; i >= 0; i-- {
		if st.Iterations[i].Signals.RequestKind == types.RequestReview {
			return &st.Iterations[i]
		}
	}
	return nil
}

// recover runs the escalator for a failed iteration that the evaluator
// let continue. It returns a terminal decision when the selected action
// is Abort, nil otherwise.
func (c *Controller) recover(st *types.LoopState, rec *types.IterationRecord, trackID string) *Decision {
	unitCount := RecordUnitFailure(st, trackID)
	loopCount := st.ConsecutiveFailures + 1
	blocking := trackID == types.SyntheticReviewUnit ||
		trackID == types.SyntheticLoopUnit ||
		Blocking(st.Plan, trackID)

	level := SelectRecovery(unitCount, blocking, loopCount)
	rec.RecoveryLevelApplied = level

	c.emit(st, events.EventTypeRecoveryApplied, rec.Number, events.SeverityWarning,
		fmt.Sprintf("unit %s failed %d times, applying %s", trackID, unitCount, level),
		map[string]interface{}{"unit": trackID, "failures": unitCount, "level": level.String()})

	reason := fmt.Sprintf("failure %d on %s", unitCount, trackID)
	if len(rec.Signals.Errors) > 0 {
		reason = rec.Signals.Errors[0].Message
	}

	if kind, ok := requestKindFor(level); ok {
		if kind == types.RequestAttempt {
			kind = retryKind(trackID)
		}
		st.NextRequest = &types.Directive{Kind: kind, Unit: trackID, Level: level, Reason: reason}
		return nil
	}

	st.NextRequest = nil
	switch level {
	case types.RecoverySkipNonBlocking:
		MarkSkipped(st.Plan, trackID)
		ClearUnitFailures(st, trackID)
		c.emit(st, events.EventTypeUnitSkipped, rec.Number, events.SeverityWarning,
			fmt.Sprintf("unit %s skipped after %d failures", trackID, unitCount), nil)
		return nil
	default:
		dec := terminal(types.StatusFailed,
			"recovery aborted: unit %s failed %d times (loop failures %d)",
			trackID, unitCount, loopCount)
		return &dec
	}
}

// settle updates trackers and the next directive after a non-failure
// iteration: completed units clear their failure counts, and a
// successful fix flows back into retrying the same unit.
func (c *Controller) settle(st *types.LoopState, rec *types.IterationRecord, req worker.Request, trackID string) {
	for _, id := range rec.Signals.ItemsCompleted {
		ClearUnitFailures(st, id)
	}

	st.NextRequest = nil
	if req.Kind == types.RequestFix && rec.Outcome == types.OutcomeSuccess {
		u := st.Unit(trackID)
		if (u != nil && u.Status == types.UnitPending) || trackID == types.SyntheticReviewUnit {
			st.NextRequest = &types.Directive{
				Kind:   retryKind(trackID),
				Unit:   trackID,
				Level:  types.RecoveryAutomatedFix,
				Reason: "retry after fix",
			}
		}
	}
}

// retryKind is the request kind that re-attempts a unit: a review pass
// retries as another review, everything else as an attempt.
func retryKind(trackID string) types.RequestKind {
	if trackID == types.SyntheticReviewUnit {
		return types.RequestReview
	}
	return types.RequestAttempt
}

// apply appends the record and rolls the counters and stall window
// forward. The record is immutable from here on.
func (c *Controller) apply(st *types.LoopState, rec *types.IterationRecord) {
	st.Iterations = append(st.Iterations, *rec)
	st.CurrentIteration++

	switch rec.Outcome {
	case types.OutcomeSuccess:
		st.ConsecutiveFailures = 0
		st.NoProgressCount = 0
	case types.OutcomeFailure:
		st.ConsecutiveFailures++
		st.NoProgressCount = 0
	case types.OutcomeNoProgress:
		st.NoProgressCount++
	default:
		st.NoProgressCount = 0
	}

	if fp := stallFingerprint(rec); fp != "" {
		st.FingerprintHistory = PushFingerprint(st.FingerprintHistory, fp)
	}
	st.UpdatedAt = time.Now().UTC()
}

// finish moves the loop to a terminal status, persists, and builds the
// user-facing summary.
func (c *Controller) finish(st *types.LoopState, firstIteration int, dec Decision) (*RunResult, error) {
	if !types.CanTransition(st.Status, dec.Status) {
		return nil, fmt.Errorf("illegal transition %s -> %s for loop %s", st.Status, dec.Status, st.ID)
	}
	st.Status = dec.Status
	st.ActiveUnit = ""
	st.NextRequest = nil
	st.Summary = c.summarize(st, dec)
	st.UpdatedAt = time.Now().UTC()
	if err := c.persist(st); err != nil {
		return nil, err
	}

	severity := events.SeverityInfo
	if dec.Status != types.StatusCompleted {
		severity = events.SeverityError
	}
	if dec.Status == types.StatusStalled {
		c.emit(st, events.EventTypeStallDetected, 0, events.SeverityError, dec.Reason, nil)
	}
	c.emit(st, events.EventTypeLoopTerminal, 0, severity,
		fmt.Sprintf("loop %s: %s", dec.Status, dec.Reason),
		map[string]interface{}{"status": string(dec.Status)})

	return &RunResult{
		Status:        dec.Status,
		Reason:        dec.Reason,
		IterationsRun: st.CurrentIteration - firstIteration,
		Summary:       st.Summary,
		StatePath:     c.store.Path(st.ID),
	}, nil
}

// pause checkpoints the loop for later resume.
func (c *Controller) pause(st *types.LoopState, firstIteration int, reason string) (*RunResult, error) {
	st.Status = types.StatusPaused
	st.Summary = fmt.Sprintf("paused after iteration %d: %s", st.CurrentIteration, reason)
	st.UpdatedAt = time.Now().UTC()
	if err := c.persist(st); err != nil {
		return nil, err
	}
	return &RunResult{
		Status:        types.StatusPaused,
		Reason:        reason,
		IterationsRun: st.CurrentIteration - firstIteration,
		Summary:       st.Summary,
		StatePath:     c.store.Path(st.ID),
	}, nil
}

func (c *Controller) persist(st *types.LoopState) error {
	if err := c.store.Save(st); err != nil {
		return fmt.Errorf("failed to persist loop %s: %w", st.ID, err)
	}
	return nil
}

// summarize builds the human-readable terminal summary: iterations run,
// units completed, the last error, and the repeating signature when
// stalled.
func (c *Controller) summarize(st *types.LoopState, dec Decision) string {
	done := 0
	for i := range st.Plan {
		if st.Plan[i].Status == types.UnitDone {
			done++
		}
	}

	s := fmt.Sprintf("%s after %d iterations (%s)", st.Status, st.CurrentIteration, dec.Reason)
	if len(st.Plan) > 0 {
		s += fmt.Sprintf("; %d/%d units done", done, len(st.Plan))
	}
	if last := lastError(st); last != nil {
		s += fmt.Sprintf("; last error: %s", last.Message)
	}
	if st.Status == types.StatusStalled && len(st.FingerprintHistory) > 0 {
		s += fmt.Sprintf("; repeating signature %s",
			st.FingerprintHistory[len(st.FingerprintHistory)-1])
	}
	return s
}

func lastError(st *types.LoopState) *types.WorkerError {
	for i := len(st.Iterations) - 1; i >= 0; i-- {
		if errs := st.Iterations[i].Signals.Errors; len(errs) > 0 {
			return &errs[0]
		}
	}
	return nil
}

func (c *Controller) emit(st *types.LoopState, t events.EventType, iteration int,
	sev events.EventSeverity, message string, data map[string]interface{}) {
	ev := events.New(t, st.ID, iteration, sev, message, data)
	_ = c.sink.Emit(ev)
}
