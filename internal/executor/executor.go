// Package executor sequences cadence's fixed phase topology, fans out the
// parallel phase group, and wraps configured phases in the bounded
// validation loop. Phase content is produced by an opaque external
// executor: this package owns sequencing, manifest entries, and state
// transitions only, never what a phase computes.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
)

// WorkDescriptor is what the orchestrator hands the phase executor.
type WorkDescriptor struct {
	FeatureName    string   `json:"feature_name"`
	PhaseID        string   `json:"phase_id"`
	WorkDir        string   `json:"work_dir"`
	PriorArtifacts []string `json:"prior_artifacts"`
	Context        string   `json:"context,omitempty"`
}

// PhaseOutput is what the phase executor returns.
type PhaseOutput struct {
	Success     bool     `json:"success"`
	Artifacts   []string `json:"artifacts"`
	Diagnostics string   `json:"diagnostics"`
}

// PhaseExecutor executes one phase's content work. Implementations are
// opaque to the orchestrator; they are responsible for their own liveness
// within the deadline carried by ctx.
type PhaseExecutor interface {
	Execute(ctx context.Context, work WorkDescriptor) (*PhaseOutput, error)
}

// SubprocessExecutor invokes an external command as the phase executor,
// writing the work descriptor as JSON on stdin and reading a PhaseOutput
// JSON document from stdout. Create once, use for every phase; safe for
// concurrent use.
type SubprocessExecutor struct {
	// Command is the executable and its fixed arguments.
	Command []string
}

// NewSubprocessExecutor creates an executor for the given command line.
func NewSubprocessExecutor(command []string) (*SubprocessExecutor, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("executor command is required")
	}
	return &SubprocessExecutor{Command: command}, nil
}

// Execute runs the external executor for one phase. A non-zero exit with
// parseable output is reported through PhaseOutput.Success, not as an
// error; errors are reserved for infrastructure failures (spawn failure,
// unparseable output, context cancellation).
func (e *SubprocessExecutor) Execute(ctx context.Context, work WorkDescriptor) (*PhaseOutput, error) {
	payload, err := json.Marshal(work)
	if err != nil {
		return nil, fmt.Errorf("failed to encode work descriptor: %w", err)
	}

	cmd := exec.CommandContext(ctx, e.Command[0], e.Command[1:]...)
	cmd.Stdin = bytes.NewReader(payload)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var output PhaseOutput
	if err := json.Unmarshal(stdout.Bytes(), &output); err != nil {
		if runErr != nil {
			return nil, fmt.Errorf("executor exited with %v: %s", runErr, stderr.String())
		}
		return nil, fmt.Errorf("executor produced unparseable output: %w", err)
	}

	if output.Diagnostics == "" && stderr.Len() > 0 {
		output.Diagnostics = stderr.String()
	}
	return &output, nil
}
