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

// Package agent runs a bounded tool-calling loop: the model may invoke
// catalog instructions, the loop enforces iteration and call budgets, and
// mutating instructions are refused outright.
package agent

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"k8s.io/klog/v2"

	"github.com/kubegate/kubegate/pkg/api"
	"github.com/kubegate/kubegate/pkg/catalog"
	"github.com/kubegate/kubegate/pkg/gateway"
	"github.com/kubegate/kubegate/pkg/journal"
	"github.com/kubegate/kubegate/pkg/llm"
)

const (
	// DefaultMaxIterations bounds the number of model exchanges per run.
	DefaultMaxIterations = 5

	// DefaultMaxToolCalls bounds the number of tool invocations per run,
	// across all iterations.
	DefaultMaxToolCalls = 20

	// Transcript truncation limits. Tool output entering the model context
	// is cut much tighter than the executor's own capture cap.
	transcriptStdoutLimit = 2000
	transcriptStderrLimit = 500
)

// Abort reasons reported on Result.Aborted.
const (
	AbortIterationCap = "iteration_cap_reached"
	AbortCallBudget   = "call_budget_reached"
)

// Loop drives one goal to completion against the gateway.
type Loop struct {
	Client  llm.Client
	Model   string
	Gateway *gateway.Gateway

	// Registry provides the tool surface. Defaults to the gateway's.
	Registry *catalog.Registry

	// MaxIterations and MaxToolCalls default to the package constants when
	// zero.
	MaxIterations int
	MaxToolCalls  int

	Recorder journal.Recorder
}

// Step is one transcript entry: either model text or a tool invocation with
// its (truncated) observation.
type Step struct {
	Iteration   int               `json:"iteration"`
	Kind        string            `json:"kind"` // "text" or "tool_call"
	Text        string            `json:"text,omitempty"`
	Instruction string            `json:"instruction,omitempty"`
	Params      map[string]string `json:"params,omitempty"`
	Outcome     api.Outcome       `json:"outcome,omitempty"`
	Stdout      string            `json:"stdout,omitempty"`
	Stderr      string            `json:"stderr,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// Result is what a run produces. Transcript is populated even when the run
// aborts on a budget.
type Result struct {
	Answer     string `json:"answer,omitempty"`
	Transcript []Step `json:"transcript"`
	Aborted    string `json:"aborted,omitempty"`
	Iterations int    `json:"iterations"`
	ToolCalls  int    `json:"tool_calls"`
}

const systemPrompt = `You are a Kubernetes assistant. You answer questions
about the user's cluster by calling the provided tools. The tools are
read-only for you: requests that change cluster state are rejected, so do
not attempt them. When you have enough information, reply with a plain-text
answer and stop calling tools.`

// Run executes the loop for one goal. Budget exhaustion is not an error:
// the result carries the abort reason and the partial transcript.
func (l *Loop) Run(ctx context.Context, goal string) (*Result, error) {
	log := klog.FromContext(ctx)

	maxIterations := l.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	maxToolCalls := l.MaxToolCalls
	if maxToolCalls <= 0 {
		maxToolCalls = DefaultMaxToolCalls
	}
	registry := l.Registry
	if registry == nil {
		registry = l.Gateway.Registry
	}

	chat := llm.NewRetryChat(l.Client.StartChat(systemPrompt, l.Model), llm.DefaultRetryConfig)

	var defs []*llm.FunctionDefinition
	for _, spec := range registry.All() {
		defs = append(defs, spec.FunctionDefinition())
	}
	if err := chat.SetFunctionDefinitions(defs); err != nil {
		return nil, fmt.Errorf("setting function definitions: %w", err)
	}

	result := &Result{}
	l.record(ctx, "loop.started", map[string]any{"goal": goal})

	// Pending content for the next model exchange; starts with the goal,
	// then carries tool results between iterations.
	contents := []any{goal}

	for result.Iterations < maxIterations {
		iteration := result.Iterations
		log.V(1).Info("loop iteration", "iteration", iteration)

		response, err := chat.Send(ctx, contents...)
		if err != nil {
			return result, fmt.Errorf("model exchange failed: %w", err)
		}
		contents = nil
		result.Iterations++

		if text := response.Text(); text != "" {
			result.Transcript = append(result.Transcript, Step{
				Iteration: iteration,
				Kind:      "text",
				Text:      text,
			})
			result.Answer = text
		}

		calls := response.FunctionCalls()
		if len(calls) == 0 {
			// The model is done.
			l.record(ctx, "loop.finished", result)
			return result, nil
		}

		for _, call := range calls {
			// The call budget is a hard bound: it can cut an iteration
			// short even with calls still pending.
			if result.ToolCalls >= maxToolCalls {
				result.Aborted = AbortCallBudget
				l.record(ctx, "loop.aborted", result)
				return result, nil
			}
			result.ToolCalls++

			step := l.invoke(ctx, registry, iteration, call)
			result.Transcript = append(result.Transcript, *step)

			contents = append(contents, llm.FunctionCallResult{
				ID:     call.ID,
				Name:   call.Name,
				Result: observation(step),
			})
		}
	}

	result.Aborted = AbortIterationCap
	l.record(ctx, "loop.aborted", result)
	return result, nil
}

// invoke routes one proposed call through the gateway. Mutating
// instructions never reach the executor: there is no human in this loop to
// confirm them.
func (l *Loop) invoke(ctx context.Context, registry *catalog.Registry, iteration int, call llm.FunctionCall) *Step {
	step := &Step{
		Iteration:   iteration,
		Kind:        "tool_call",
		Instruction: call.Name,
		Params:      stringifyArguments(call.Arguments),
	}

	spec := registry.Lookup(call.Name)
	if spec == nil {
		step.Error = fmt.Sprintf("unknown instruction %q", call.Name)
		return step
	}
	if spec.Mutating {
		step.Error = fmt.Sprintf("instruction %q mutates cluster state and is not available in this session", call.Name)
		return step
	}

	res, err := l.Gateway.Execute(ctx, &api.ExecutionRequest{
		Instruction: call.Name,
		Params:      step.Params,
		SessionID:   "agent-loop",
	})
	if err != nil {
		step.Error = err.Error()
		return step
	}

	step.Outcome = res.Outcome
	step.Stdout = truncate(res.Stdout, transcriptStdoutLimit)
	step.Stderr = truncate(res.Stderr, transcriptStderrLimit)
	step.Error = res.Error
	return step
}

// observation shapes a step into the tool-result payload the model sees.
func observation(step *Step) map[string]any {
	out := map[string]any{}
	if step.Error != "" {
		out["error"] = step.Error
		return out
	}
	out["outcome"] = string(step.Outcome)
	if step.Stdout != "" {
		out["stdout"] = step.Stdout
	}
	if step.Stderr != "" {
		out["stderr"] = step.Stderr
	}
	return out
}

func stringifyArguments(args map[string]any) map[string]string {
	params := make(map[string]string, len(args))
	for k, v := range args {
		switch t := v.(type) {
		case string:
			params[k] = t
		case bool:
			params[k] = strconv.FormatBool(t)
		case float64:
			// JSON numbers decode as float64; instruction parameters are
			// integers.
			params[k] = strconv.FormatInt(int64(t), 10)
		default:
			params[k] = fmt.Sprintf("%v", v)
		}
	}
	return params
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "\n... [truncated]"
}

func (l *Loop) record(ctx context.Context, action string, payload any) {
	recorder := l.Recorder
	if recorder == nil {
		recorder = journal.RecorderFromContext(ctx)
	}
	if err := recorder.Write(ctx, &journal.Event{
		Timestamp: time.Now(),
		Action:    action,
		Payload:   payload,
	}); err != nil {
		klog.FromContext(ctx).Error(err, "writing journal event", "action", action)
	}
}
