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

// Package journal records a structured log of every request, subprocess
// invocation and orchestration step. Payloads are redacted before they are
// persisted.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kubegate/kubegate/pkg/redact"
)

// Event is one journal record.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Payload   any       `json:"payload,omitempty"`
}

// Recorder is an interface for recording a structured log of the gateway's
// actions and observations.
type Recorder interface {
	io.Closer

	// Write adds an event to the recorder.
	Write(ctx context.Context, event *Event) error
}

// FileRecorder writes redacted JSON lines to a size-rotated file.
type FileRecorder struct {
	w io.WriteCloser
}

// NewFileRecorder creates a FileRecorder writing to path. The file rotates
// at 5 MiB keeping 3 backups.
func NewFileRecorder(path string) (*FileRecorder, error) {
	if path == "" {
		return nil, fmt.Errorf("journal path is empty")
	}
	return &FileRecorder{
		w: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    5, // megabytes
			MaxBackups: 3,
		},
	}, nil
}

func (r *FileRecorder) Close() error {
	return r.w.Close()
}

func (r *FileRecorder) Write(ctx context.Context, event *Event) error {
	line, err := json.Marshal(&Event{
		Timestamp: event.Timestamp,
		Action:    event.Action,
		Payload:   redactPayload(event.Payload),
	})
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}
	_, err = r.w.Write(append(line, '\n'))
	return err
}

// redactPayload normalizes the payload through JSON so that key-based and
// pattern-based scrubbing both apply, whatever the concrete type.
func redactPayload(payload any) any {
	if payload == nil {
		return nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return redact.String(fmt.Sprintf("%v", payload))
	}
	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return redact.String(string(b))
	}
	return redact.Value(generic)
}
