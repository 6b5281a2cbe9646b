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

package agent

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubegate/kubegate/pkg/api"
	"github.com/kubegate/kubegate/pkg/catalog"
	"github.com/kubegate/kubegate/pkg/gateway"
	"github.com/kubegate/kubegate/pkg/llm"
)

// scriptedResponse is one canned model turn.
type scriptedResponse struct {
	text  string
	calls []llm.FunctionCall
}

func (r *scriptedResponse) Text() string                     { return r.text }
func (r *scriptedResponse) FunctionCalls() []llm.FunctionCall { return r.calls }

// fakeChat replays a fixed script of responses.
type fakeChat struct {
	script    []*scriptedResponse
	sends     int
	toolInput []any
}

func (c *fakeChat) Send(ctx context.Context, contents ...any) (llm.Response, error) {
	c.toolInput = append(c.toolInput, contents...)
	if c.sends >= len(c.script) {
		return nil, fmt.Errorf("script exhausted after %d sends", c.sends)
	}
	resp := c.script[c.sends]
	c.sends++
	return resp, nil
}

func (c *fakeChat) SetFunctionDefinitions(defs []*llm.FunctionDefinition) error { return nil }
func (c *fakeChat) IsRetryableError(err error) bool                             { return false }

type fakeClient struct {
	chat *fakeChat
}

func (f *fakeClient) Close() error                                { return nil }
func (f *fakeClient) StartChat(systemPrompt, model string) llm.Chat { return f.chat }

// countingExecutor returns canned output and counts invocations.
type countingExecutor struct {
	calls  int
	stdout string
}

func (e *countingExecutor) Execute(ctx context.Context, cmd *catalog.Command, timeout time.Duration) *api.ExecutionResult {
	e.calls++
	return &api.ExecutionResult{
		Outcome: api.OutcomeSucceeded,
		Command: append([]string{"kubectl"}, cmd.Args...),
		Stdout:  e.stdout,
	}
}

func newLoop(chat *fakeChat, exec *countingExecutor) *Loop {
	gw := gateway.New(exec)
	return &Loop{
		Client:  &fakeClient{chat: chat},
		Gateway: gw,
	}
}

func toolCall(id, name string, args map[string]any) llm.FunctionCall {
	return llm.FunctionCall{ID: id, Name: name, Arguments: args}
}

func TestRunAnswersAfterOneTool(t *testing.T) {
	chat := &fakeChat{script: []*scriptedResponse{
		{calls: []llm.FunctionCall{
			toolCall("c1", "get_resources", map[string]any{"resource_type": "pods"}),
		}},
		{text: "There are 3 pods running."},
	}}
	exec := &countingExecutor{stdout: "web-1\nweb-2\nweb-3\n"}

	result, err := newLoop(chat, exec).Run(context.Background(), "how many pods?")
	require.NoError(t, err)

	assert.Equal(t, "There are 3 pods running.", result.Answer)
	assert.Empty(t, result.Aborted)
	assert.Equal(t, 2, result.Iterations)
	assert.Equal(t, 1, result.ToolCalls)
	assert.Equal(t, 1, exec.calls)

	require.Len(t, result.Transcript, 2)
	assert.Equal(t, "tool_call", result.Transcript[0].Kind)
	assert.Equal(t, "get_resources", result.Transcript[0].Instruction)
	assert.Contains(t, result.Transcript[0].Stdout, "web-1")
}

func TestRunStopsAtIterationCap(t *testing.T) {
	// the model asks for another tool call every single turn
	var script []*scriptedResponse
	for i := 0; i < 20; i++ {
		script = append(script, &scriptedResponse{calls: []llm.FunctionCall{
			toolCall(fmt.Sprintf("c%d", i), "list_namespaces", map[string]any{}),
		}})
	}
	chat := &fakeChat{script: script}
	exec := &countingExecutor{}

	loop := newLoop(chat, exec)
	loop.MaxIterations = 3

	result, err := loop.Run(context.Background(), "loop forever")
	require.NoError(t, err)

	assert.Equal(t, AbortIterationCap, result.Aborted)
	assert.Equal(t, 3, result.Iterations)
	assert.Equal(t, 3, chat.sends, "no model exchange past the cap")
	assert.Len(t, result.Transcript, 3, "partial transcript is preserved")
}

func TestRunAbortsMidIterationOnCallBudget(t *testing.T) {
	// one model turn proposing five calls against a budget of three
	var calls []llm.FunctionCall
	for i := 0; i < 5; i++ {
		calls = append(calls, toolCall(fmt.Sprintf("c%d", i), "list_namespaces", map[string]any{}))
	}
	chat := &fakeChat{script: []*scriptedResponse{{calls: calls}}}
	exec := &countingExecutor{}

	loop := newLoop(chat, exec)
	loop.MaxToolCalls = 3

	result, err := loop.Run(context.Background(), "fan out")
	require.NoError(t, err)

	assert.Equal(t, AbortCallBudget, result.Aborted)
	assert.Equal(t, 3, result.ToolCalls)
	assert.Equal(t, 3, exec.calls, "the budget cuts the iteration short")
	assert.Len(t, result.Transcript, 3)
}

func TestRunRefusesMutatingInstructions(t *testing.T) {
	chat := &fakeChat{script: []*scriptedResponse{
		{calls: []llm.FunctionCall{
			toolCall("c1", "delete_pod", map[string]any{"pod_name": "web-1"}),
		}},
		{text: "Understood, I cannot delete pods."},
	}}
	exec := &countingExecutor{}

	result, err := newLoop(chat, exec).Run(context.Background(), "delete web-1")
	require.NoError(t, err)

	assert.Equal(t, 0, exec.calls, "mutating instructions never reach the executor")

	require.NotEmpty(t, result.Transcript)
	refusal := result.Transcript[0]
	assert.Equal(t, "delete_pod", refusal.Instruction)
	assert.Contains(t, refusal.Error, "mutates cluster state")

	// the refusal is fed back to the model as a tool result
	var sawResult bool
	for _, content := range chat.toolInput {
		if fr, ok := content.(llm.FunctionCallResult); ok {
			assert.Equal(t, "delete_pod", fr.Name)
			assert.Contains(t, fmt.Sprintf("%v", fr.Result["error"]), "mutates cluster state")
			sawResult = true
		}
	}
	assert.True(t, sawResult)
}

func TestRunTruncatesToolOutputForTranscript(t *testing.T) {
	bigOutput := make([]byte, 10000)
	for i := range bigOutput {
		bigOutput[i] = 'x'
	}
	chat := &fakeChat{script: []*scriptedResponse{
		{calls: []llm.FunctionCall{
			toolCall("c1", "list_namespaces", map[string]any{}),
		}},
		{text: "done"},
	}}
	exec := &countingExecutor{stdout: string(bigOutput)}

	result, err := newLoop(chat, exec).Run(context.Background(), "list")
	require.NoError(t, err)

	step := result.Transcript[0]
	assert.LessOrEqual(t, len(step.Stdout), transcriptStdoutLimit+32)
	assert.Contains(t, step.Stdout, "[truncated]")
}

func TestStringifyArguments(t *testing.T) {
	got := stringifyArguments(map[string]any{
		"name":     "web",
		"replicas": float64(3),
		"force":    true,
	})
	assert.Equal(t, map[string]string{
		"name":     "web",
		"replicas": "3",
		"force":    "true",
	}, got)
}
