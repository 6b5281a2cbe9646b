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
	"encoding/json"
	"errors"
	"fmt"
	"os"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"k8s.io/klog/v2"
)

const defaultOpenAIModel = "gpt-4o"

// OpenAIClient implements Client for OpenAI and OpenAI-compatible endpoints.
type OpenAIClient struct {
	client openai.Client
	model  string
}

var _ Client = (*OpenAIClient)(nil)

// NewOpenAIClient builds a client from the environment: OPENAI_API_KEY is
// required, OPENAI_ENDPOINT (or OPENAI_API_BASE) selects a compatible
// endpoint, OPENAI_MODEL sets the default model.
func NewOpenAIClient(ctx context.Context) (*OpenAIClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("OpenAI API key not found; set OPENAI_API_KEY")
	}

	options := []option.RequestOption{option.WithAPIKey(apiKey)}
	baseURL := os.Getenv("OPENAI_ENDPOINT")
	if baseURL == "" {
		baseURL = os.Getenv("OPENAI_API_BASE")
	}
	if baseURL != "" {
		klog.V(1).Infof("Using custom OpenAI base URL: %s", baseURL)
		options = append(options, option.WithBaseURL(baseURL))
	}

	return &OpenAIClient{
		client: openai.NewClient(options...),
		model:  os.Getenv("OPENAI_MODEL"),
	}, nil
}

func (c *OpenAIClient) Close() error {
	return nil
}

// StartChat starts a new chat session with the given system prompt.
func (c *OpenAIClient) StartChat(systemPrompt, model string) Chat {
	if model == "" {
		model = c.model
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	klog.V(1).Infof("Starting OpenAI chat session with model %s", model)

	history := []openai.ChatCompletionMessageParamUnion{}
	if systemPrompt != "" {
		history = append(history, openai.SystemMessage(systemPrompt))
	}
	return &openAIChatSession{
		client:  c.client,
		history: history,
		model:   model,
	}
}

type openAIChatSession struct {
	client  openai.Client
	history []openai.ChatCompletionMessageParamUnion
	model   string
	tools   []openai.ChatCompletionToolParam
}

var _ Chat = (*openAIChatSession)(nil)

func (cs *openAIChatSession) SetFunctionDefinitions(defs []*FunctionDefinition) error {
	cs.tools = nil
	for _, def := range defs {
		var params openai.FunctionParameters
		if def.Parameters != nil {
			raw, err := def.Parameters.ToRawSchema()
			if err != nil {
				return fmt.Errorf("converting parameters for function %s: %w", def.Name, err)
			}
			if err := json.Unmarshal(raw, &params); err != nil {
				return fmt.Errorf("unmarshalling parameters for function %s: %w", def.Name, err)
			}
		}
		cs.tools = append(cs.tools, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        def.Name,
				Description: openai.String(def.Description),
				Parameters:  params,
			},
		})
	}
	return nil
}

func (cs *openAIChatSession) Send(ctx context.Context, contents ...any) (Response, error) {
	// A failed round trip must not leave the new messages behind, or a
	// retried Send would append them to history a second time.
	mark := len(cs.history)
	if err := cs.addContentsToHistory(contents); err != nil {
		cs.history = cs.history[:mark]
		return nil, err
	}

	chatReq := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(cs.model),
		Messages: cs.history,
	}
	if len(cs.tools) > 0 {
		chatReq.Tools = cs.tools
	}

	completion, err := cs.client.Chat.Completions.New(ctx, chatReq)
	if err != nil {
		cs.history = cs.history[:mark]
		return nil, fmt.Errorf("OpenAI chat completion failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		cs.history = cs.history[:mark]
		return nil, errors.New("received empty response from OpenAI (no choices)")
	}

	assistantMsg := completion.Choices[0].Message
	cs.history = append(cs.history, assistantMsg.ToParam())

	return &openAIResponse{message: assistantMsg}, nil
}

func (cs *openAIChatSession) IsRetryableError(err error) bool {
	return DefaultIsRetryableError(err)
}

func (cs *openAIChatSession) addContentsToHistory(contents []any) error {
	for _, content := range contents {
		switch c := content.(type) {
		case string:
			cs.history = append(cs.history, openai.UserMessage(c))
		case FunctionCallResult:
			resultJSON, err := json.Marshal(c.Result)
			if err != nil {
				return fmt.Errorf("marshalling function call result %q: %w", c.Name, err)
			}
			cs.history = append(cs.history, openai.ToolMessage(string(resultJSON), c.ID))
		default:
			return fmt.Errorf("unhandled content type: %T", content)
		}
	}
	return nil
}

type openAIResponse struct {
	message openai.ChatCompletionMessage
}

var _ Response = (*openAIResponse)(nil)

func (r *openAIResponse) Text() string {
	return r.message.Content
}

func (r *openAIResponse) FunctionCalls() []FunctionCall {
	calls := make([]FunctionCall, 0, len(r.message.ToolCalls))
	for _, tc := range r.message.ToolCalls {
		if tc.Function.Name == "" {
			continue
		}
		args := make(map[string]any)
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				klog.V(2).Infof("Error unmarshalling function arguments for %s: %v", tc.Function.Name, err)
				args = make(map[string]any)
			}
		}
		calls = append(calls, FunctionCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return calls
}
