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

// Package llm abstracts the external reasoning service the orchestration
// loop consults. The loop treats it as a black box: whatever it proposes is
// re-validated against the real catalog before anything runs.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// Client is a client for a language model provider.
type Client interface {
	io.Closer

	// StartChat starts a new multi-turn chat with the model.
	StartChat(systemPrompt, model string) Chat
}

// Chat is an active conversation. Sending automatically updates the chat's
// history; callers never replay earlier messages.
type Chat interface {
	// Send adds user messages or tool results to the chat and returns the
	// model's response. Accepted content types: string, FunctionCallResult.
	Send(ctx context.Context, contents ...any) (Response, error)

	// SetFunctionDefinitions configures the tools the model may call.
	SetFunctionDefinitions(defs []*FunctionDefinition) error

	// IsRetryableError reports whether the error is worth retrying.
	IsRetryableError(error) bool
}

// Response is one model turn: free text, tool calls, or both.
type Response interface {
	// Text returns the textual portion of the response.
	Text() string

	// FunctionCalls returns the tool invocations the model requested,
	// in order. Empty means the model gave a terminal answer.
	FunctionCalls() []FunctionCall
}

// FunctionCall is a single tool invocation requested by the model.
type FunctionCall struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// FunctionCallResult carries a tool's output back to the model.
type FunctionCallResult struct {
	ID     string         `json:"id,omitempty"`
	Name   string         `json:"name,omitempty"`
	Result map[string]any `json:"result,omitempty"`
}

// FunctionDefinition describes one callable tool to the model.
type FunctionDefinition struct {
	Name        string  `json:"name,omitempty"`
	Description string  `json:"description,omitempty"`
	Parameters  *Schema `json:"parameters,omitempty"`
}

// Schema is a JSON-schema subset for function parameters.
type Schema struct {
	Type        SchemaType         `json:"type,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Description string             `json:"description,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// ToRawSchema converts a Schema to a json.RawMessage.
func (s *Schema) ToRawSchema() (json.RawMessage, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("converting schema to json: %w", err)
	}
	return json.RawMessage(b), nil
}

// SchemaType is the type of a field in a Schema.
type SchemaType string

const (
	TypeObject  SchemaType = "object"
	TypeArray   SchemaType = "array"
	TypeString  SchemaType = "string"
	TypeBoolean SchemaType = "boolean"
	TypeNumber  SchemaType = "number"
	TypeInteger SchemaType = "integer"
)
