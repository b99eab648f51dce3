package executor

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harrison/cadence/internal/config"
	"github.com/harrison/cadence/internal/manifest"
	"github.com/harrison/cadence/internal/models"
	"github.com/harrison/cadence/internal/state"
)

// Phase identifiers. The topology is fixed: plan, then the implement group
// in parallel, then integrate once every group member is terminal, then
// review.
const (
	PhasePlan           = "plan"
	PhaseImplementCore  = "implement-core"
	PhaseImplementTests = "implement-tests"
	PhaseImplementDocs  = "implement-docs"
	PhaseIntegrate      = "integrate"
	PhaseReview         = "review"
)

// ParallelPhases returns the members of the parallel group, fixed at
// orchestration-design time.
func ParallelPhases() []string {
	return []string{PhaseImplementCore, PhaseImplementTests, PhaseImplementDocs}
}

// Exit codes recorded in terminal manifest entries.
const (
	exitOK      = 0
	exitFailed  = 1
	exitTimeout = 124
)

// Logger receives orchestrator progress events.
type Logger interface {
	LogPhaseStart(phase string)
	LogPhaseComplete(result models.PhaseResult)
	LogGroupStart(phases []string)
	LogGroupComplete(duration time.Duration)
	LogSummary(result models.RunResult)
}

// Orchestrator drives a feature through the fixed phase topology. It is
// single-threaded control logic: it launches the parallel group and blocks
// on the fan-in barrier, but never runs concurrently with the phases it
// dispatches. It is also the single writer of the feature's task state;
// parallel phases write only their own manifest entries.
type Orchestrator struct {
	executor PhaseExecutor
	manifest *manifest.Log
	store    *state.Store
	loop     *ValidationLoop
	gates    []Gate
	cfg      *config.Config
	logger   Logger // Optional, may be nil
}

// NewOrchestrator wires an orchestrator. executor, manifestLog, and store
// are required; logger may be nil.
func NewOrchestrator(executor PhaseExecutor, manifestLog *manifest.Log, store *state.Store, loop *ValidationLoop, gates []Gate, cfg *config.Config, logger Logger) (*Orchestrator, error) {
	if executor == nil {
		return nil, fmt.Errorf("phase executor is required")
	}
	if manifestLog == nil {
		return nil, fmt.Errorf("manifest log is required")
	}
	if store == nil {
		return nil, fmt.Errorf("state store is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	return &Orchestrator{
		executor: executor,
		manifest: manifestLog,
		store:    store,
		loop:     loop,
		gates:    gates,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Run executes the full phase sequence for a feature. It returns the
// aggregated run result along with the first fatal error; the result is
// populated even for failed runs so a report can always be rendered.
func (o *Orchestrator) Run(ctx context.Context, feature *models.Feature, workContext string) (*models.RunResult, error) {
	if feature == nil {
		return nil, fmt.Errorf("feature cannot be nil")
	}
	if err := feature.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Graceful shutdown on interrupt.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	startTime := time.Now()
	result := &models.RunResult{Feature: feature.Name, RunID: o.manifest.RunID()}

	if err := o.store.Create(feature.Name); err != nil {
		return result, err
	}
	if err := o.store.Transition(feature.Name, models.StatusDoing); err != nil {
		return result, err
	}

	runErr := o.runPhases(ctx, feature, workContext, result)

	result.Duration = time.Since(startTime)
	result.Completed = runErr == nil
	for _, pr := range result.Phases {
		if pr.Failed() {
			result.FailedPhases = append(result.FailedPhases, pr)
		}
		result.FilesChanged = append(result.FilesChanged, pr.Artifacts...)
	}

	if runErr == nil {
		// The lifecycle never skips straight to done; pass through review
		// when no validated phase already moved the task there.
		doc, err := o.store.Read(feature.Name)
		if err != nil {
			return result, err
		}
		if doc.Status == models.StatusDoing {
			if err := o.store.Transition(feature.Name, models.StatusReview); err != nil {
				return result, err
			}
		}
		if err := o.store.Transition(feature.Name, models.StatusDone); err != nil {
			return result, err
		}
	}

	if o.logger != nil {
		o.logger.LogSummary(*result)
	}
	return result, runErr
}

// runPhases walks the fixed topology: plan, parallel group, integrate,
// review. It appends every phase result to result as it happens so a
// partial run still yields a reportable timeline.
func (o *Orchestrator) runPhases(ctx context.Context, feature *models.Feature, workContext string, result *models.RunResult) error {
	var artifacts []string

	// Initial phase.
	planResult := o.runPhase(ctx, feature, PhasePlan, artifacts, workContext)
	result.Phases = append(result.Phases, planResult)
	if planResult.Failed() {
		return planResult.Err
	}
	artifacts = append(artifacts, planResult.Artifacts...)

	// Fan out the parallel group, then block on the barrier.
	groupResults, err := o.runParallelGroup(ctx, feature, artifacts, workContext)
	result.Phases = append(result.Phases, groupResults...)
	if err != nil {
		return err
	}
	for _, gr := range groupResults {
		artifacts = append(artifacts, gr.Artifacts...)
	}

	// Convergence and final phases.
	for _, phase := range []string{PhaseIntegrate, PhaseReview} {
		phaseResult := o.runPhase(ctx, feature, phase, artifacts, workContext)
		if o.isValidated(phase) && !phaseResult.Failed() {
			phaseResult = o.validatePhase(ctx, feature, phase, phaseResult)
		}
		result.Phases = append(result.Phases, phaseResult)
		if phaseResult.Validation != nil {
			result.Validation = phaseResult.Validation
		}
		if phaseResult.Failed() {
			return phaseResult.Err
		}
		artifacts = append(artifacts, phaseResult.Artifacts...)
	}

	return nil
}

// runPhase executes one phase: started manifest entry, executor
// invocation under the per-phase timeout, terminal manifest entry.
func (o *Orchestrator) runPhase(ctx context.Context, feature *models.Feature, phase string, priorArtifacts []string, workContext string) models.PhaseResult {
	result := models.PhaseResult{Phase: phase}

	// The phase is running only once its started entry is durable.
	if err := o.manifest.Started(phase); err != nil {
		result.Status = models.PhaseFailure
		result.Err = NewPhaseError(phase, "failed to write manifest entry", err)
		return result
	}
	if o.logger != nil {
		o.logger.LogPhaseStart(phase)
	}

	phaseCtx, cancel := context.WithTimeout(ctx, o.cfg.PhaseTimeout)
	defer cancel()

	startTime := time.Now()
	output, err := o.executor.Execute(phaseCtx, WorkDescriptor{
		FeatureName:    feature.Name,
		PhaseID:        phase,
		WorkDir:        feature.WorkDir,
		PriorArtifacts: priorArtifacts,
		Context:        workContext,
	})
	result.Duration = time.Since(startTime)

	switch {
	case err != nil && IsTimeout(err):
		result.Status = models.PhaseFailure
		result.ExitCode = exitTimeout
		result.Err = &TimeoutError{Phase: phase, Timeout: o.cfg.PhaseTimeout}
	case err != nil:
		result.Status = models.PhaseFailure
		result.ExitCode = exitFailed
		result.Err = &ExecutorError{Phase: phase, Err: err}
	case !output.Success:
		result.Status = models.PhaseFailure
		result.ExitCode = exitFailed
		result.Diagnostics = output.Diagnostics
		result.Err = &ExecutorError{Phase: phase, Diagnostics: output.Diagnostics}
	default:
		result.Status = models.PhaseSuccess
		result.ExitCode = exitOK
		result.Artifacts = output.Artifacts
		result.Diagnostics = output.Diagnostics
	}

	if err := o.manifest.Finished(phase, result.Status, result.ExitCode, result.Duration); err != nil && result.Err == nil {
		result.Status = models.PhaseFailure
		result.Err = NewPhaseError(phase, "failed to write manifest entry", err)
	}
	if o.logger != nil {
		o.logger.LogPhaseComplete(result)
	}
	return result
}

type groupExecution struct {
	phase  string
	result models.PhaseResult
}

// runParallelGroup fans out every group member and blocks until all of
// them reach a terminal manifest status. If any member fails, every
// member's outcome is still collected first: the aggregated GroupError
// reports all failures, never just the first.
func (o *Orchestrator) runParallelGroup(ctx context.Context, feature *models.Feature, priorArtifacts []string, workContext string) ([]models.PhaseResult, error) {
	phases := ParallelPhases()
	if o.logger != nil {
		o.logger.LogGroupStart(phases)
	}

	groupStart := time.Now()
	resultsCh := make(chan groupExecution, len(phases))

	for _, phase := range phases {
		go func(phase string) {
			resultsCh <- groupExecution{
				phase:  phase,
				result: o.runPhase(ctx, feature, phase, priorArtifacts, workContext),
			}
		}(phase)
	}

	// Fan-in barrier: every member reaches a terminal state before the
	// orchestrator proceeds. A timed-out member counts as terminal.
	byPhase := make(map[string]models.PhaseResult, len(phases))
	for range phases {
		exec := <-resultsCh
		byPhase[exec.phase] = exec.result
	}

	if o.logger != nil {
		o.logger.LogGroupComplete(time.Since(groupStart))
	}

	results := make([]models.PhaseResult, 0, len(phases))
	groupErr := &GroupError{}
	for _, phase := range phases {
		r := byPhase[phase]
		results = append(results, r)
		if r.Failed() {
			groupErr.Phases = append(groupErr.Phases, NewPhaseError(phase, "parallel phase failed", r.Err))
		}
	}

	if len(groupErr.Phases) > 0 {
		return results, groupErr
	}
	return results, nil
}

// validatePhase wraps a successful phase in the bounded validation loop.
// The feature moves to review while gates run; a pass keeps it there for
// the final transition to done, exhaustion reopens it to doing and fails
// the phase.
func (o *Orchestrator) validatePhase(ctx context.Context, feature *models.Feature, phase string, phaseResult models.PhaseResult) models.PhaseResult {
	if err := o.store.Transition(feature.Name, models.StatusReview); err != nil {
		phaseResult.Status = models.PhaseFailure
		phaseResult.Err = err
		return phaseResult
	}

	artifact := feature.WorkDir
	outcome, err := o.loop.Run(ctx, phase, artifact, o.gates)
	phaseResult.Validation = outcome

	if err != nil {
		phaseResult.Status = models.PhaseFailure
		phaseResult.ExitCode = exitFailed
		phaseResult.Err = err
		// Validation failure reopens the task. A failed reopen must not
		// mask the validation error, so it is attached alongside.
		if terr := o.store.Transition(feature.Name, models.StatusDoing); terr != nil {
			phaseResult.Err = fmt.Errorf("%w (reopening task to doing failed: %v)", err, terr)
		}
	}
	return phaseResult
}

func (o *Orchestrator) isValidated(phase string) bool {
	for _, p := range o.cfg.ValidatedPhases {
		if p == phase {
			return true
		}
	}
	return false
}
