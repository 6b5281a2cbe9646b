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

// Package api holds the types shared between the gateway pipeline, the HTTP
// surface, the MCP surface and the orchestration loop.
package api

import "time"

// Outcome classifies how an execution ended.
type Outcome string

const (
	// OutcomeSucceeded means the process exited with code 0.
	OutcomeSucceeded Outcome = "succeeded"
	// OutcomeFailed means the process exited with a non-zero code.
	OutcomeFailed Outcome = "failed"
	// OutcomeTimedOut means the process exceeded its deadline and was killed.
	OutcomeTimedOut Outcome = "timed_out"
	// OutcomeSpawnError means the process could not be started at all.
	OutcomeSpawnError Outcome = "spawn_error"
)

// ExecutionRequest is one inbound call to the gateway. Parameters arrive as
// strings and are validated against the instruction's declared schema before
// anything downstream sees them.
type ExecutionRequest struct {
	Instruction string            `json:"instruction"`
	Params      map[string]string `json:"params,omitempty"`

	SessionID string `json:"session_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`

	// Confirm authorizes a mutating instruction to actually run.
	Confirm bool `json:"confirm,omitempty"`
	// DryRun asks for a client-side preview instead of a real execution.
	DryRun bool `json:"dry_run,omitempty"`

	// TimeoutSeconds overrides the default execution timeout.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}

// ExecutionResult is the response for an ExecutionRequest.
type ExecutionResult struct {
	RequestID   string  `json:"request_id,omitempty"`
	SessionID   string  `json:"session_id,omitempty"`
	Instruction string  `json:"instruction,omitempty"`
	Outcome     Outcome `json:"outcome,omitempty"`

	// Command is the argument vector that was (or would be) executed,
	// for display purposes only.
	Command []string `json:"command,omitempty"`

	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
	// Error carries the spawn failure reason when Outcome is spawn_error.
	Error string `json:"error,omitempty"`

	// Summary is a compact per-item rendering of structured output,
	// attached when the instruction defines one. The raw output stays in
	// Stdout untouched.
	Summary string `json:"summary,omitempty"`

	Duration time.Duration `json:"duration,omitempty"`

	DryRun bool `json:"dry_run,omitempty"`

	// ConfirmationRequired indicates the instruction mutates cluster state
	// and was not confirmed; Preview holds a dry-run of the intended effect
	// when the instruction supports one. This is a control signal, not a
	// failure: the caller resubmits the identical request with confirm=true.
	ConfirmationRequired bool             `json:"confirmation_required,omitempty"`
	Preview              *ExecutionResult `json:"preview,omitempty"`
	Message              string           `json:"message,omitempty"`

	Context *ClusterContext `json:"context,omitempty"`
}

// ClusterContext is the advisory ambient kubectl context attached to results.
type ClusterContext struct {
	CurrentContext   string `json:"current_context,omitempty"`
	DefaultNamespace string `json:"default_namespace,omitempty"`
}
