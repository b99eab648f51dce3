package executor

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("subprocess tests require a POSIX shell")
	}
}

func TestNewSubprocessExecutorRequiresCommand(t *testing.T) {
	_, err := NewSubprocessExecutor(nil)
	require.Error(t, err)

	exec, err := NewSubprocessExecutor([]string{"my-executor", "--phase-mode"})
	require.NoError(t, err)
	assert.Equal(t, []string{"my-executor", "--phase-mode"}, exec.Command)
}

func TestSubprocessExecutorSuccess(t *testing.T) {
	skipWithoutShell(t)

	exec, err := NewSubprocessExecutor([]string{
		"sh", "-c", `cat >/dev/null; echo '{"success":true,"artifacts":["plan.md"],"diagnostics":"planned"}'`,
	})
	require.NoError(t, err)

	output, err := exec.Execute(context.Background(), WorkDescriptor{
		FeatureName: "test_feature",
		PhaseID:     PhasePlan,
		WorkDir:     t.TempDir(),
	})
	require.NoError(t, err)
	assert.True(t, output.Success)
	assert.Equal(t, []string{"plan.md"}, output.Artifacts)
	assert.Equal(t, "planned", output.Diagnostics)
}

func TestSubprocessExecutorReceivesDescriptorOnStdin(t *testing.T) {
	skipWithoutShell(t)

	// The script echoes back whether the descriptor mentioned the phase.
	exec, err := NewSubprocessExecutor([]string{
		"sh", "-c", `grep -q integrate && echo '{"success":true}' || echo '{"success":false,"diagnostics":"phase missing"}'`,
	})
	require.NoError(t, err)

	output, err := exec.Execute(context.Background(), WorkDescriptor{
		FeatureName: "test_feature",
		PhaseID:     PhaseIntegrate,
	})
	require.NoError(t, err)
	assert.True(t, output.Success)
}

func TestSubprocessExecutorReportedFailureIsNotAnError(t *testing.T) {
	skipWithoutShell(t)

	exec, err := NewSubprocessExecutor([]string{
		"sh", "-c", `cat >/dev/null; echo '{"success":false,"diagnostics":"integration conflict"}'; exit 1`,
	})
	require.NoError(t, err)

	output, err := exec.Execute(context.Background(), WorkDescriptor{PhaseID: PhaseIntegrate})
	require.NoError(t, err, "parseable output with a failing exit is a phase failure, not an infrastructure error")
	assert.False(t, output.Success)
	assert.Equal(t, "integration conflict", output.Diagnostics)
}

func TestSubprocessExecutorUnparseableOutput(t *testing.T) {
	skipWithoutShell(t)

	exec, err := NewSubprocessExecutor([]string{"sh", "-c", `cat >/dev/null; echo "not json"`})
	require.NoError(t, err)

	_, err = exec.Execute(context.Background(), WorkDescriptor{PhaseID: PhasePlan})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unparseable")
}

func TestSubprocessExecutorStderrBecomesDiagnostics(t *testing.T) {
	skipWithoutShell(t)

	exec, err := NewSubprocessExecutor([]string{
		"sh", "-c", `cat >/dev/null; echo "executor warning" >&2; echo '{"success":true}'`,
	})
	require.NoError(t, err)

	output, err := exec.Execute(context.Background(), WorkDescriptor{PhaseID: PhasePlan})
	require.NoError(t, err)
	assert.Contains(t, output.Diagnostics, "executor warning")
}

func TestSubprocessExecutorContextCancellation(t *testing.T) {
	skipWithoutShell(t)

	exec, err := NewSubprocessExecutor([]string{"sh", "-c", "sleep 10"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err = exec.Execute(ctx, WorkDescriptor{PhaseID: PhasePlan})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
