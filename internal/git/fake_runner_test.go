package git

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/Akashdeep-Patra/gitstate/internal/result"
	"github.com/Akashdeep-Patra/gitstate/internal/runner"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeRunner answers git invocations from a script keyed on the joined
// argument vector. Each key holds a queue; the last response repeats.
type fakeRunner struct {
	mu    sync.Mutex
	steps map[string][]fakeStep
	calls []string
}

type fakeStep struct {
	stdout string
	fail   *result.Failure
	effect func()
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{steps: map[string][]fakeStep{}}
}

func (f *fakeRunner) push(args string, st fakeStep) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps[args] = append(f.steps[args], st)
}

func (f *fakeRunner) on(args, stdout string) { f.push(args, fakeStep{stdout: stdout}) }

func (f *fakeRunner) onDo(args, stdout string, effect func()) {
	f.push(args, fakeStep{stdout: stdout, effect: effect})
}

// onFail scripts a non-zero exit the way ExecRunner reports it.
func (f *fakeRunner) onFail(args string, code int, stderr string) {
	f.onFailDo(args, code, stderr, nil)
}

func (f *fakeRunner) onFailDo(args string, code int, stderr string, effect func()) {
	msg := strings.TrimSpace(stderr)
	fail := result.NewFailure(result.KindCommandFailure, msg).
		WithDetail(stderr).
		WithCause(&runner.ExitError{Command: "git " + args, ExitCode: code, Stderr: stderr})
	f.push(args, fakeStep{fail: fail, effect: effect})
}

func (f *fakeRunner) Run(_ context.Context, inv runner.Invocation) result.Result[runner.Outcome] {
	key := strings.Join(inv.Args, " ")
	f.mu.Lock()
	f.calls = append(f.calls, key)
	queue := f.steps[key]
	if len(queue) == 0 {
		f.mu.Unlock()
		return result.Failf[runner.Outcome](result.KindCommandFailure, "unscripted command: git %s", key)
	}
	st := queue[0]
	if len(queue) > 1 {
		f.steps[key] = queue[1:]
	}
	f.mu.Unlock()

	if st.effect != nil {
		st.effect()
	}
	if st.fail != nil {
		return result.Fail[runner.Outcome](st.fail)
	}
	return result.Success(runner.Outcome{Stdout: st.stdout})
}

func (f *fakeRunner) called(args string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == args {
			return true
		}
	}
	return false
}

func (f *fakeRunner) history() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// newTestService opens a service over a temp repo layout backed by fr.
func newTestService(t *testing.T, fr *fakeRunner, opts ...func(*Options)) *CLIService {
	t.Helper()
	root := t.TempDir()
	gitDir := filepath.Join(root, ".git")
	require.NoError(t, os.MkdirAll(gitDir, 0o755))
	fr.on("rev-parse --show-toplevel --absolute-git-dir", root+"\n"+gitDir+"\n")

	o := Options{Logger: zaptest.NewLogger(t)}
	for _, fn := range opts {
		fn(&o)
	}
	svc, err := NewCLIService(context.Background(), root, fr, o)
	require.NoError(t, err)
	return svc
}

// writeMarker creates a file under the service's git directory.
func writeMarker(t *testing.T, s *CLIService, name, content string) {
	t.Helper()
	p := filepath.Join(s.GitDir(), name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

// sha returns a deterministic 40-char hash for tests.
func sha(c byte) string { return strings.Repeat(string(c), 40) }

const statusKey = "status --porcelain=v1 -z --untracked-files=normal"
