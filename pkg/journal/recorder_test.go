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

package journal

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubegate/kubegate/pkg/redact"
)

func TestFileRecorderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")

	r, err := NewFileRecorder(path)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, r.Write(ctx, &Event{
		Timestamp: time.Now(),
		Action:    "request.received",
		Payload:   map[string]any{"instruction": "get_resources"},
	}))
	require.NoError(t, r.Write(ctx, &Event{
		Timestamp: time.Now(),
		Action:    "request.completed",
	}))
	require.NoError(t, r.Close())

	events, err := ParseEventsFromFile(path)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "request.received", events[0].Action)
	assert.Equal(t, "request.completed", events[1].Action)

	payload, ok := events[0].Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "get_resources", payload["instruction"])
}

func TestFileRecorderRedactsPayloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")

	r, err := NewFileRecorder(path)
	require.NoError(t, err)

	type payload struct {
		APIKey  string `json:"api_key"`
		Command string `json:"command"`
	}
	require.NoError(t, r.Write(context.Background(), &Event{
		Timestamp: time.Now(),
		Action:    "request.received",
		Payload: payload{
			APIKey:  "sk-verysecretvalue123",
			Command: "get pods with header Bearer abc.def",
		},
	}))
	require.NoError(t, r.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	line := string(raw)
	assert.NotContains(t, line, "sk-verysecretvalue123")
	assert.NotContains(t, line, "Bearer abc.def")
	assert.True(t, strings.Contains(line, redact.Marker))
}

func TestNewFileRecorderRejectsEmptyPath(t *testing.T) {
	_, err := NewFileRecorder("")
	require.Error(t, err)
}

func TestParseEventsSkipsBlankLines(t *testing.T) {
	in := strings.NewReader(`{"timestamp":"2025-01-01T00:00:00Z","action":"a"}

{"timestamp":"2025-01-01T00:00:01Z","action":"b"}
`)
	events, err := ParseEvents(in)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].Action)
}
