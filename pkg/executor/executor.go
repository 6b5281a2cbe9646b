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

// Package executor runs kubectl as a subprocess. Commands are argv vectors,
// never shell strings; manifests travel on stdin.
package executor

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"time"

	"k8s.io/klog/v2"

	"github.com/kubegate/kubegate/pkg/api"
	"github.com/kubegate/kubegate/pkg/catalog"
)

const (
	// DefaultTimeout bounds a kubectl invocation when the caller does not
	// specify one.
	DefaultTimeout = 60 * time.Second

	// StreamingTimeout bounds commands carrying follow/watch flags, which
	// would otherwise run until the outer timeout.
	StreamingTimeout = 15 * time.Second

	// DefaultMaxOutputBytes caps each of stdout and stderr.
	DefaultMaxOutputBytes = 2 * 1024 * 1024

	truncationMarker = "\n... [output truncated]"

	// killGrace is how long the process gets between context cancellation
	// and SIGKILL.
	killGrace = 5 * time.Second
)

// Executor runs a built command and classifies the outcome.
type Executor interface {
	Execute(ctx context.Context, cmd *catalog.Command, timeout time.Duration) *api.ExecutionResult
}

// KubectlExecutor invokes the kubectl binary directly.
type KubectlExecutor struct {
	// KubectlBin is the binary to invoke. Defaults to "kubectl".
	KubectlBin string

	// Kubeconfig, when set, is exported as KUBECONFIG for the subprocess.
	Kubeconfig string

	// MaxOutputBytes caps captured stdout and stderr individually.
	// Zero means DefaultMaxOutputBytes.
	MaxOutputBytes int
}

var _ Executor = &KubectlExecutor{}

func (e *KubectlExecutor) bin() string {
	if e.KubectlBin != "" {
		return e.KubectlBin
	}
	return "kubectl"
}

func (e *KubectlExecutor) maxOutput() int {
	if e.MaxOutputBytes > 0 {
		return e.MaxOutputBytes
	}
	return DefaultMaxOutputBytes
}

// Execute runs cmd and always returns a result; failures are reported as
// outcome classification, not as Go errors.
func (e *KubectlExecutor) Execute(ctx context.Context, cmd *catalog.Command, timeout time.Duration) *api.ExecutionResult {
	log := klog.FromContext(ctx)

	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if isStreaming(cmd.Args) && timeout > StreamingTimeout {
		timeout = StreamingTimeout
	}

	argv := append([]string{e.bin()}, cmd.Args...)
	result := &api.ExecutionResult{Command: argv}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	proc := exec.CommandContext(ctx, argv[0], argv[1:]...)
	proc.Env = os.Environ()
	if e.Kubeconfig != "" {
		proc.Env = append(proc.Env, "KUBECONFIG="+e.Kubeconfig)
	}
	if len(cmd.Stdin) > 0 {
		proc.Stdin = bytes.NewReader(cmd.Stdin)
	}
	proc.WaitDelay = killGrace

	stdout := newCappedBuffer(e.maxOutput())
	stderr := newCappedBuffer(e.maxOutput())
	proc.Stdout = stdout
	proc.Stderr = stderr

	start := time.Now()
	err := proc.Run()
	result.Duration = time.Since(start)
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	switch {
	case err == nil:
		result.Outcome = api.OutcomeSucceeded

	case ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded):
		result.Outcome = api.OutcomeTimedOut
		result.Error = "command timed out after " + timeout.String()

	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.Outcome = api.OutcomeFailed
			result.ExitCode = exitErr.ExitCode()
		} else {
			// The process never started (binary missing, fork failure).
			result.Outcome = api.OutcomeSpawnError
			result.Error = err.Error()
		}
	}

	log.V(2).Info("kubectl finished", "args", cmd.Args, "outcome", result.Outcome, "duration", result.Duration)
	return result
}

func isStreaming(args []string) bool {
	if len(args) == 0 {
		return false
	}
	sub := args[0]
	for _, a := range args[1:] {
		switch a {
		case "--follow", "--watch":
			return true
		case "-f":
			// -f means --filename for apply/create/delete.
			if sub == "logs" {
				return true
			}
		case "-w":
			if sub == "get" || sub == "logs" || sub == "rollout" {
				return true
			}
		}
	}
	return false
}

// cappedBuffer accepts writes up to a byte limit and discards the rest,
// appending a marker once truncation happens.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func newCappedBuffer(limit int) *cappedBuffer {
	return &cappedBuffer{limit: limit}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.limit - b.buf.Len()
	if room > 0 {
		if len(p) <= room {
			b.buf.Write(p)
			return len(p), nil
		}
		b.buf.Write(p[:room])
	}
	b.truncated = true
	// Report the full length so the process keeps writing unimpeded.
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	if b.truncated {
		return b.buf.String() + truncationMarker
	}
	return b.buf.String()
}
