package spawn

import (
	"bytes"
	"context"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// settleTimeout bounds every Wait in tests so a regression hangs the test,
// not the suite.
const settleTimeout = 10 * time.Second

func waitOrFail(t *testing.T, task *Task) (*Result, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()
	res, err := task.Wait(ctx)
	if err == context.DeadlineExceeded {
		t.Fatal("task did not settle in time")
	}
	return res, err
}

// =============================================================================
// Resolution: clean exits
// =============================================================================

func TestSpawn_EchoResolves(t *testing.T) {
	task := Spawn(context.Background(), "echo", []string{"hi"}, nil)

	res, err := waitOrFail(t, task)
	if err != nil {
		t.Fatalf("Wait = %v, want nil", err)
	}

	if res.Stdout != "hi\n" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "hi\n")
	}
	if res.Stderr != "" {
		t.Errorf("Stderr = %q, want empty", res.Stderr)
	}
	if res.Output[0] != res.Stdout || res.Output[1] != res.Stderr {
		t.Errorf("Output = %v, want mirror of stdout/stderr", res.Output)
	}
	if res.Status != 0 {
		t.Errorf("Status = %d, want 0", res.Status)
	}
	if res.Signal != "" {
		t.Errorf("Signal = %q, want empty", res.Signal)
	}
	if res.Pid <= 0 {
		t.Errorf("Pid = %d, want > 0", res.Pid)
	}
	if res.Duration <= 0 {
		t.Errorf("Duration = %v, want > 0", res.Duration)
	}
}

func TestSpawn_StderrCaptured(t *testing.T) {
	task := Spawn(context.Background(), "sh", []string{"-c", "echo oops 1>&2"}, nil)

	res, err := waitOrFail(t, task)
	if err != nil {
		t.Fatalf("Wait = %v, want nil", err)
	}
	if res.Stderr != "oops\n" {
		t.Errorf("Stderr = %q, want %q", res.Stderr, "oops\n")
	}
	if res.Stdout != "" {
		t.Errorf("Stdout = %q, want empty", res.Stdout)
	}
}

func TestSpawn_OutputArrivalOrder(t *testing.T) {
	task := Spawn(context.Background(), "sh", []string{"-c", "printf a; printf b; printf c"}, nil)

	res, err := waitOrFail(t, task)
	if err != nil {
		t.Fatalf("Wait = %v, want nil", err)
	}
	if res.Stdout != "abc" {
		t.Errorf("Stdout = %q, want %q in arrival order", res.Stdout, "abc")
	}
}

func TestRun_Convenience(t *testing.T) {
	res, err := Run(context.Background(), "echo", []string{"via", "run"}, nil)
	if err != nil {
		t.Fatalf("Run = %v, want nil", err)
	}
	if res.Stdout != "via run\n" {
		t.Errorf("Stdout = %q", res.Stdout)
	}
}

// =============================================================================
// Failure classification
// =============================================================================

func TestSpawn_NonZeroExit(t *testing.T) {
	task := Spawn(context.Background(), "false", nil, nil)

	res, err := waitOrFail(t, task)
	if err == nil {
		t.Fatalf("Wait = %+v, want failure", res)
	}

	e, ok := AsError(err)
	if !ok {
		t.Fatalf("err is %T, want *Error", err)
	}
	if e.Status != 1 {
		t.Errorf("Status = %d, want 1", e.Status)
	}
	if e.Signal != "" {
		t.Errorf("Signal = %q, want empty", e.Signal)
	}
	if e.Pid <= 0 {
		t.Errorf("Pid = %d, want > 0", e.Pid)
	}
	if !IsExitStatus(err, 1) {
		t.Error("IsExitStatus(err, 1) = false")
	}
	if IsLaunchError(err) {
		t.Error("IsLaunchError = true for a process that ran")
	}
}

func TestSpawn_ExitStatusCarriesOutput(t *testing.T) {
	task := Spawn(context.Background(), "sh", []string{"-c", "echo partial; exit 3"}, nil)

	_, err := waitOrFail(t, task)
	e, ok := AsError(err)
	if !ok {
		t.Fatalf("err is %T, want *Error", err)
	}
	if e.Status != 3 {
		t.Errorf("Status = %d, want 3", e.Status)
	}
	if e.Stdout != "partial\n" {
		t.Errorf("failure should carry accumulated stdout, got %q", e.Stdout)
	}
	if e.Output[0] != "partial\n" {
		t.Errorf("Output[0] = %q", e.Output[0])
	}
}

func TestSpawn_SignalTermination(t *testing.T) {
	// The child kills itself, so nothing here races the OS.
	task := Spawn(context.Background(), "sh", []string{"-c", "kill -KILL $$"}, nil)

	_, err := waitOrFail(t, task)
	e, ok := AsError(err)
	if !ok {
		t.Fatalf("err is %T, want *Error", err)
	}
	if e.Signal != "SIGKILL" {
		t.Errorf("Signal = %q, want SIGKILL", e.Signal)
	}
	if e.Status != -1 {
		t.Errorf("Status = %d, want -1 for a signaled process", e.Status)
	}
	if !IsSignal(err, "SIGKILL") {
		t.Error("IsSignal(err, SIGKILL) = false")
	}
	if e.LaunchFailed() {
		t.Error("LaunchFailed = true for a process that ran")
	}
}

func TestSpawn_LaunchFailure(t *testing.T) {
	task := Spawn(context.Background(), "definitely-not-a-real-binary-xyz", nil, nil)

	// The task is settled synchronously in this case.
	if _, err := task.Result(); err == ErrPending {
		t.Fatal("launch failure should settle before Spawn returns")
	}

	_, err := waitOrFail(t, task)
	e, ok := AsError(err)
	if !ok {
		t.Fatalf("err is %T, want *Error", err)
	}
	if e.Code != "ENOENT" {
		t.Errorf("Code = %q, want ENOENT", e.Code)
	}
	if e.Pid != 0 {
		t.Errorf("Pid = %d, want 0 (no process)", e.Pid)
	}
	if e.Status != -1 {
		t.Errorf("Status = %d, want -1", e.Status)
	}
	if e.Signal != "" {
		t.Errorf("Signal = %q, want empty", e.Signal)
	}
	if !IsLaunchError(err) {
		t.Error("IsLaunchError = false")
	}
	if task.Handle.Pid() != 0 {
		t.Errorf("Handle.Pid = %d, want 0", task.Handle.Pid())
	}
}

// =============================================================================
// Stdio policy
// =============================================================================

func TestSpawn_IgnoreStdio(t *testing.T) {
	task := Spawn(context.Background(), "echo", []string{"unseen"}, &Config{IgnoreStdio: true})

	res, err := waitOrFail(t, task)
	if err != nil {
		t.Fatalf("Wait = %v, want nil", err)
	}
	if res.Stdout != "" || res.Stderr != "" {
		t.Errorf("ignored stdio should yield empty output, got %q / %q", res.Stdout, res.Stderr)
	}
	if task.Handle.Stdin != nil {
		t.Error("Handle.Stdin should be nil when stdio is ignored")
	}
}

func TestSpawn_IgnoreStdio_SettlesDespiteHeldDescriptor(t *testing.T) {
	// The background sleep inherits the shell's stdout descriptor and
	// outlives it. Waiting for stream closure would block until the
	// grandchild exits; waiting for exit only must not.
	start := time.Now()
	task := Spawn(context.Background(), "sh", []string{"-c", "sleep 5 & exit 0"}, &Config{IgnoreStdio: true})

	if _, err := waitOrFail(t, task); err != nil {
		t.Fatalf("Wait = %v, want nil", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("settlement took %v; should not have waited for the grandchild", elapsed)
	}
}

func TestSpawn_CaptureWaitsForBufferedOutput(t *testing.T) {
	// Output written just before exit must land in the accumulator even
	// if the pipes still hold it when the process exits.
	task := Spawn(context.Background(), "sh", []string{"-c", "printf %s tail-data"}, nil)

	res, err := waitOrFail(t, task)
	if err != nil {
		t.Fatalf("Wait = %v, want nil", err)
	}
	if res.Stdout != "tail-data" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "tail-data")
	}
}

func TestSpawn_StdinPipe(t *testing.T) {
	task := Spawn(context.Background(), "cat", nil, nil)

	if task.Handle.Stdin == nil {
		t.Fatal("Handle.Stdin is nil in capture mode")
	}
	if _, err := task.Handle.Stdin.Write([]byte("through the pipe")); err != nil {
		t.Fatalf("Stdin.Write = %v", err)
	}
	task.Handle.Stdin.Close()

	res, err := waitOrFail(t, task)
	if err != nil {
		t.Fatalf("Wait = %v, want nil", err)
	}
	if res.Stdout != "through the pipe" {
		t.Errorf("Stdout = %q", res.Stdout)
	}
}

func TestSpawn_ConfigStdin(t *testing.T) {
	cfg := &Config{Stdin: strings.NewReader("from config\n")}
	task := Spawn(context.Background(), "cat", nil, cfg)

	if task.Handle.Stdin != nil {
		t.Error("Handle.Stdin should be nil when Config.Stdin is supplied")
	}

	res, err := waitOrFail(t, task)
	if err != nil {
		t.Fatalf("Wait = %v, want nil", err)
	}
	if res.Stdout != "from config\n" {
		t.Errorf("Stdout = %q", res.Stdout)
	}
}

func TestHandle_Tee(t *testing.T) {
	task := Spawn(context.Background(), "cat", nil, nil)

	var teeOut, teeErr bytes.Buffer
	task.Handle.Tee(&teeOut, &teeErr)

	// Output only starts after the tee is registered.
	task.Handle.Stdin.Write([]byte("live copy"))
	task.Handle.Stdin.Close()

	res, err := waitOrFail(t, task)
	if err != nil {
		t.Fatalf("Wait = %v, want nil", err)
	}
	if res.Stdout != "live copy" {
		t.Errorf("accumulated Stdout = %q", res.Stdout)
	}
	if teeOut.String() != "live copy" {
		t.Errorf("tee saw %q, want %q", teeOut.String(), "live copy")
	}
}

// =============================================================================
// Hot handle / cold task duality
// =============================================================================

func TestSpawn_HandleAvailableSynchronously(t *testing.T) {
	task := Spawn(context.Background(), "sleep", []string{"5"}, nil)
	defer task.Handle.Kill()

	if task.Handle == nil {
		t.Fatal("Handle is nil")
	}
	if task.Handle.Pid() <= 0 {
		t.Errorf("Pid = %d, want > 0 immediately after Spawn", task.Handle.Pid())
	}
	if _, err := task.Result(); err != ErrPending {
		t.Errorf("Result before settlement = %v, want ErrPending", err)
	}
}

func TestHandle_Terminate(t *testing.T) {
	task := Spawn(context.Background(), "sleep", []string{"30"}, nil)

	if err := task.Handle.Terminate(nil); err != nil {
		t.Fatalf("Terminate = %v", err)
	}

	_, err := waitOrFail(t, task)
	e, ok := AsError(err)
	if !ok {
		t.Fatalf("err is %T, want *Error", err)
	}
	if e.Signal != "SIGTERM" {
		t.Errorf("Signal = %q, want SIGTERM", e.Signal)
	}
}

func TestHandle_Terminate_NotStarted(t *testing.T) {
	task := Spawn(context.Background(), "definitely-not-a-real-binary-xyz", nil, nil)

	if err := task.Handle.Terminate(nil); err != ErrNotStarted {
		t.Errorf("Terminate = %v, want ErrNotStarted", err)
	}
}

func TestSpawn_ContextCancelTerminates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	task := Spawn(ctx, "sleep", []string{"30"}, nil)

	cancel()

	_, err := waitOrFail(t, task)
	e, ok := AsError(err)
	if !ok {
		t.Fatalf("err is %T, want *Error", err)
	}
	if e.Signal != "SIGTERM" && e.Signal != "SIGKILL" {
		t.Errorf("Signal = %q, want SIGTERM (or SIGKILL after grace)", e.Signal)
	}
}

func TestTask_WaitRespectsContext(t *testing.T) {
	task := Spawn(context.Background(), "sleep", []string{"5"}, nil)
	defer task.Handle.Kill()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := task.Wait(ctx); err != context.Canceled {
		t.Errorf("Wait with cancelled ctx = %v, want context.Canceled", err)
	}
}

func TestTask_SettlementIsIdempotent(t *testing.T) {
	task := Spawn(context.Background(), "echo", []string{"once"}, nil)

	res1, err1 := waitOrFail(t, task)
	res2, err2 := waitOrFail(t, task)

	if res1 != res2 || err1 != err2 {
		t.Error("repeated Wait calls should observe the same settlement")
	}

	res3, err3 := task.Result()
	if res3 != res1 || err3 != err1 {
		t.Error("Result after settlement should match Wait")
	}
}

func TestTask_Done(t *testing.T) {
	task := Spawn(context.Background(), "echo", []string{"done"}, nil)

	select {
	case <-task.Done():
	case <-time.After(settleTimeout):
		t.Fatal("Done channel never closed")
	}

	if _, err := task.Result(); err != nil {
		t.Errorf("Result after Done = %v, want nil", err)
	}
}

func TestSpawn_ConcurrentCallsAreIndependent(t *testing.T) {
	taskA := Spawn(context.Background(), "echo", []string{"alpha"}, nil)
	taskB := Spawn(context.Background(), "echo", []string{"beta"}, nil)

	resA, errA := waitOrFail(t, taskA)
	resB, errB := waitOrFail(t, taskB)

	if errA != nil || errB != nil {
		t.Fatalf("errs = %v, %v", errA, errB)
	}
	if resA.Stdout != "alpha\n" || resB.Stdout != "beta\n" {
		t.Errorf("outputs crossed: %q / %q", resA.Stdout, resB.Stdout)
	}
	if resA.Pid == resB.Pid {
		t.Error("concurrent spawns shared a pid")
	}
}

// =============================================================================
// Event fan-out
// =============================================================================

func TestHandle_On_ListenersAreAdditive(t *testing.T) {
	task := Spawn(context.Background(), "sh", []string{"-c", "exit 7"}, nil)

	var first, second atomic.Int32
	exitInfo := make(chan EventInfo, 2)

	task.Handle.On(EventExit, func(info EventInfo) {
		first.Add(1)
		exitInfo <- info
	})
	task.Handle.On(EventExit, func(info EventInfo) {
		second.Add(1)
		exitInfo <- info
	})

	waitOrFail(t, task)

	// Both listeners fired exactly once with the same payload
	for i := 0; i < 2; i++ {
		select {
		case info := <-exitInfo:
			if info.Status != 7 {
				t.Errorf("listener saw Status %d, want 7", info.Status)
			}
		case <-time.After(settleTimeout):
			t.Fatal("listener never fired")
		}
	}
	if first.Load() != 1 || second.Load() != 1 {
		t.Errorf("listener counts = %d, %d, want 1, 1", first.Load(), second.Load())
	}
}

func TestHandle_On_CloseFiresAfterExit(t *testing.T) {
	task := Spawn(context.Background(), "echo", []string{"ordered"}, nil)

	order := make(chan Event, 2)
	task.Handle.On(EventExit, func(EventInfo) { order <- EventExit })
	task.Handle.On(EventClose, func(EventInfo) { order <- EventClose })

	waitOrFail(t, task)

	if ev := <-order; ev != EventExit {
		t.Errorf("first event = %q, want exit", ev)
	}
	if ev := <-order; ev != EventClose {
		t.Errorf("second event = %q, want close", ev)
	}
}

func TestHandle_On_StickyReplay(t *testing.T) {
	task := Spawn(context.Background(), "echo", []string{"already done"}, nil)
	waitOrFail(t, task)

	// The events fired before this listener existed; it must still be
	// invoked exactly once.
	var count atomic.Int32
	task.Handle.On(EventClose, func(EventInfo) { count.Add(1) })

	if count.Load() != 1 {
		t.Errorf("late listener fired %d times, want 1", count.Load())
	}
}

func TestHandle_On_ErrorEvent(t *testing.T) {
	task := Spawn(context.Background(), "definitely-not-a-real-binary-xyz", nil, nil)

	got := make(chan EventInfo, 1)
	task.Handle.On(EventError, func(info EventInfo) { got <- info })

	select {
	case info := <-got:
		if info.Err == nil {
			t.Fatal("error event carried nil error")
		}
		if !IsLaunchError(info.Err) {
			t.Errorf("error event err = %v, want launch error", info.Err)
		}
	case <-time.After(settleTimeout):
		t.Fatal("error listener never fired")
	}
}

func TestHandle_On_ExitNotFiredOnLaunchFailure(t *testing.T) {
	task := Spawn(context.Background(), "definitely-not-a-real-binary-xyz", nil, nil)

	fired := make(chan struct{}, 1)
	task.Handle.On(EventExit, func(EventInfo) { fired <- struct{}{} })

	waitOrFail(t, task)

	select {
	case <-fired:
		t.Error("exit event fired for a process that never started")
	case <-time.After(100 * time.Millisecond):
	}
}

// =============================================================================
// Configuration pass-through
// =============================================================================

func TestSpawn_WorkingDirectory(t *testing.T) {
	dir := t.TempDir()

	res, err := Run(context.Background(), "pwd", nil, &Config{Dir: dir})
	if err != nil {
		t.Fatalf("Run = %v", err)
	}

	got := strings.TrimSpace(res.Stdout)
	want, _ := os.Stat(dir)
	gotStat, statErr := os.Stat(got)
	if statErr != nil {
		t.Fatalf("stat %q: %v", got, statErr)
	}
	if !os.SameFile(want, gotStat) {
		t.Errorf("pwd = %q, want %q", got, dir)
	}
}

func TestSpawn_EnvMerged(t *testing.T) {
	cfg := &Config{Env: []string{"SPAWN_TEST_MARKER=42"}}
	res, err := Run(context.Background(), "sh", []string{"-c", "echo $SPAWN_TEST_MARKER"}, cfg)
	if err != nil {
		t.Fatalf("Run = %v", err)
	}
	if strings.TrimSpace(res.Stdout) != "42" {
		t.Errorf("Stdout = %q, want 42", res.Stdout)
	}

	// Parent env is inherited alongside the extras
	if _, err := Run(context.Background(), "sh", []string{"-c", "test -n \"$PATH\""}, cfg); err != nil {
		t.Errorf("PATH not inherited: %v", err)
	}
}

// =============================================================================
// Observer wiring
// =============================================================================

type recordingObserver struct {
	started atomic.Int32
	settled atomic.Int32
	lastErr atomic.Value
}

func (o *recordingObserver) Started(pid int) { o.started.Add(1) }
func (o *recordingObserver) Settled(res *Result, err error) {
	o.settled.Add(1)
	if err != nil {
		o.lastErr.Store(err)
	}
}

func TestSpawn_ObserverNotified(t *testing.T) {
	obs := &recordingObserver{}
	task := Spawn(context.Background(), "echo", []string{"observed"}, &Config{Observer: obs})
	waitOrFail(t, task)

	if obs.started.Load() != 1 {
		t.Errorf("Started fired %d times, want 1", obs.started.Load())
	}
	if obs.settled.Load() != 1 {
		t.Errorf("Settled fired %d times, want 1", obs.settled.Load())
	}
}

func TestSpawn_ObserverLaunchFailure(t *testing.T) {
	obs := &recordingObserver{}
	task := Spawn(context.Background(), "definitely-not-a-real-binary-xyz", nil, &Config{Observer: obs})
	waitOrFail(t, task)

	if obs.started.Load() != 0 {
		t.Error("Started should not fire for launch failures")
	}
	if obs.settled.Load() != 1 {
		t.Errorf("Settled fired %d times, want 1", obs.settled.Load())
	}
	if err, _ := obs.lastErr.Load().(error); !IsLaunchError(err) {
		t.Errorf("observer err = %v, want launch error", err)
	}
}
