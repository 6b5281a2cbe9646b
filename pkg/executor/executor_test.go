// Copyright 2025 The kubegate Authors
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

package executor

import (
	"context"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/kubegate/kubegate/pkg/api"
	"github.com/kubegate/kubegate/pkg/catalog"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("test uses unix utilities")
	}
}

func TestExecuteSucceeded(t *testing.T) {
	skipOnWindows(t)
	e := &KubectlExecutor{KubectlBin: "echo"}

	res := e.Execute(context.Background(), &catalog.Command{Args: []string{"get", "pods"}}, time.Minute)

	if res.Outcome != api.OutcomeSucceeded {
		t.Fatalf("outcome = %s, want succeeded (stderr: %s, err: %s)", res.Outcome, res.Stderr, res.Error)
	}
	if got := strings.TrimSpace(res.Stdout); got != "get pods" {
		t.Errorf("stdout = %q, want %q", got, "get pods")
	}
	if res.ExitCode != 0 {
		t.Errorf("exit code = %d, want 0", res.ExitCode)
	}
	if res.Duration <= 0 {
		t.Error("duration not recorded")
	}
	want := []string{"echo", "get", "pods"}
	if len(res.Command) != len(want) {
		t.Fatalf("command = %v, want %v", res.Command, want)
	}
	for i := range want {
		if res.Command[i] != want[i] {
			t.Fatalf("command = %v, want %v", res.Command, want)
		}
	}
}

func TestExecuteFailed(t *testing.T) {
	skipOnWindows(t)
	e := &KubectlExecutor{KubectlBin: "false"}

	res := e.Execute(context.Background(), &catalog.Command{}, time.Minute)

	if res.Outcome != api.OutcomeFailed {
		t.Fatalf("outcome = %s, want failed", res.Outcome)
	}
	if res.ExitCode == 0 {
		t.Error("exit code = 0, want non-zero")
	}
}

func TestExecuteTimedOut(t *testing.T) {
	skipOnWindows(t)
	e := &KubectlExecutor{KubectlBin: "sleep"}

	start := time.Now()
	res := e.Execute(context.Background(), &catalog.Command{Args: []string{"30"}}, 100*time.Millisecond)

	if res.Outcome != api.OutcomeTimedOut {
		t.Fatalf("outcome = %s, want timed_out", res.Outcome)
	}
	if res.Error == "" {
		t.Error("timed-out result carries no error message")
	}
	// the process must actually have been terminated, not waited out
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("execution took %s, process was not killed", elapsed)
	}
}

func TestExecuteSpawnError(t *testing.T) {
	e := &KubectlExecutor{KubectlBin: "definitely-not-a-real-binary-kubegate"}

	res := e.Execute(context.Background(), &catalog.Command{Args: []string{"version"}}, time.Minute)

	if res.Outcome != api.OutcomeSpawnError {
		t.Fatalf("outcome = %s, want spawn_error", res.Outcome)
	}
	if res.Error == "" {
		t.Error("spawn error result carries no error message")
	}
}

func TestExecuteStdin(t *testing.T) {
	skipOnWindows(t)
	e := &KubectlExecutor{KubectlBin: "cat"}

	res := e.Execute(context.Background(), &catalog.Command{
		Args:  []string{"-"},
		Stdin: []byte("kind: Deployment\n"),
	}, time.Minute)

	if res.Outcome != api.OutcomeSucceeded {
		t.Fatalf("outcome = %s, want succeeded", res.Outcome)
	}
	if res.Stdout != "kind: Deployment\n" {
		t.Errorf("stdout = %q", res.Stdout)
	}
}

func TestOutputTruncation(t *testing.T) {
	skipOnWindows(t)
	e := &KubectlExecutor{KubectlBin: "echo", MaxOutputBytes: 16}

	res := e.Execute(context.Background(), &catalog.Command{
		Args: []string{strings.Repeat("x", 100)},
	}, time.Minute)

	if res.Outcome != api.OutcomeSucceeded {
		t.Fatalf("outcome = %s, want succeeded", res.Outcome)
	}
	if !strings.HasSuffix(res.Stdout, truncationMarker) {
		t.Errorf("stdout %q does not end with truncation marker", res.Stdout)
	}
	if len(res.Stdout) > 16+len(truncationMarker) {
		t.Errorf("stdout retained %d bytes, cap is 16", len(res.Stdout))
	}
}

func TestIsStreaming(t *testing.T) {
	grid := []struct {
		args []string
		want bool
	}{
		{args: []string{"logs", "web", "-f"}, want: true},
		{args: []string{"logs", "web", "--follow"}, want: true},
		{args: []string{"get", "pods", "-w"}, want: true},
		{args: []string{"get", "events", "--watch"}, want: true},
		{args: []string{"apply", "--wait=false", "-f", "-"}, want: false},
		{args: []string{"get", "pods"}, want: false},
		{args: nil, want: false},
	}

	for _, tc := range grid {
		if got := isStreaming(tc.args); got != tc.want {
			t.Errorf("isStreaming(%v) = %v, want %v", tc.args, got, tc.want)
		}
	}
}

func TestCappedBuffer(t *testing.T) {
	b := newCappedBuffer(5)

	n, err := b.Write([]byte("abc"))
	if err != nil || n != 3 {
		t.Fatalf("Write = (%d, %v)", n, err)
	}
	n, err = b.Write([]byte("defgh"))
	if err != nil || n != 5 {
		t.Fatalf("Write past cap = (%d, %v), want full length reported", n, err)
	}

	if got := b.String(); got != "abcde"+truncationMarker {
		t.Errorf("String() = %q", got)
	}
}
