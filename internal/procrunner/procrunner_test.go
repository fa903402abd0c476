package procrunner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunBatchCapturesStdoutAndEchoesStdin(t *testing.T) {
	r := New(nil, "sh", []string{"-c", "cat; echo done-stderr >&2"})
	stdout, stderr, err := r.RunBatch([]byte("hello\n"), 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(stdout))
	assert.Equal(t, "done-stderr\n", string(stderr))
	assert.Equal(t, 0, r.ExitCode())
}

func TestRunBatchCannotBeCalledTwice(t *testing.T) {
	r := New(nil, "sh", []string{"-c", "true"})
	_, _, err := r.RunBatch(nil, time.Second)
	require.NoError(t, err)

	_, _, err = r.RunBatch(nil, time.Second)
	assert.Error(t, err)
}

func TestRunBatchNonZeroExitCode(t *testing.T) {
	r := New(nil, "sh", []string{"-c", "exit 3"})
	_, _, err := r.RunBatch(nil, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 3, r.ExitCode())
}

func TestMergeStderrIntoStdout(t *testing.T) {
	r := New(nil, "sh", []string{"-c", "echo out; echo err >&2"})
	r.MergeStderrIntoStdout()
	stdout, stderr, err := r.RunBatch(nil, 5*time.Second)
	require.NoError(t, err)
	assert.Contains(t, string(stdout), "out")
	assert.Contains(t, string(stdout), "err")
	assert.Empty(t, stderr)
}

func TestStartAsyncWriteAndReadOutputLine(t *testing.T) {
	r := New(nil, "sh", []string{"-c", "cat"})
	require.NoError(t, r.StartAsync())
	assert.True(t, r.IsRunning())

	require.NoError(t, r.Write([]byte("line one\n")))
	line := r.WaitForOutputLine()
	assert.Equal(t, "line one\n", line)

	require.NoError(t, r.CloseInput())
	r.WaitForNotRunning()
	assert.False(t, r.IsRunning())
}

func TestPeekAndConsumeOutputData(t *testing.T) {
	r := New(nil, "sh", []string{"-c", "cat"})
	require.NoError(t, r.StartAsync())
	require.NoError(t, r.Write([]byte("abc")))

	got := r.WaitForOutputData(3)
	assert.Equal(t, "abc", string(got))

	require.NoError(t, r.CloseInput())
	r.WaitForNotRunning()
}

func TestKillStopsARunningProcess(t *testing.T) {
	r := New(nil, "sh", []string{"-c", "sleep 30"})
	require.NoError(t, r.StartAsync())
	assert.True(t, r.IsRunning())

	require.NoError(t, r.KillSync(5*time.Second))
	assert.False(t, r.IsRunning())
}

func TestKillBeforeStartReturnsError(t *testing.T) {
	r := New(nil, "sh", []string{"-c", "true"})
	err := r.Kill()
	assert.Error(t, err)
}
