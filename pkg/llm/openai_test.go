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

package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A failed Send must leave the session history exactly as it was, so a
// retried call does not accumulate duplicate user or tool messages.
func TestSendRollsBackHistoryOnFailure(t *testing.T) {
	fail := true
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error": {"message": "upstream unavailable"}}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o",`+
			`"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"two pods"}}]}`)
	}))
	defer ts.Close()

	client := &OpenAIClient{client: openai.NewClient(
		option.WithAPIKey("test"),
		option.WithBaseURL(ts.URL),
		option.WithMaxRetries(0),
	)}
	chat := client.StartChat("you answer cluster questions", "gpt-4o")
	session, ok := chat.(*openAIChatSession)
	require.True(t, ok)
	require.Len(t, session.history, 1, "system prompt only")

	_, err := chat.Send(context.Background(), "how many pods are running?")
	require.Error(t, err)
	assert.Len(t, session.history, 1, "failed send leaves no trace")

	_, err = chat.Send(context.Background(), "how many pods are running?")
	require.Error(t, err)
	assert.Len(t, session.history, 1, "a second attempt does not duplicate messages")

	fail = false
	resp, err := chat.Send(context.Background(), "how many pods are running?")
	require.NoError(t, err)
	assert.Equal(t, "two pods", resp.Text())
	assert.Len(t, session.history, 3, "system, user and assistant messages")
}

func TestSendRollsBackToolResults(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error": {"message": "overloaded"}}`)
	}))
	defer ts.Close()

	client := &OpenAIClient{client: openai.NewClient(
		option.WithAPIKey("test"),
		option.WithBaseURL(ts.URL),
		option.WithMaxRetries(0),
	)}
	chat := client.StartChat("", "gpt-4o")
	session := chat.(*openAIChatSession)

	result := FunctionCallResult{
		ID:     "call_1",
		Name:   "get_resources",
		Result: map[string]any{"stdout": "web-1  1/1"},
	}
	_, err := chat.Send(context.Background(), result)
	require.Error(t, err)
	assert.Empty(t, session.history, "no duplicate tool message for the same call id on retry")
}
