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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"k8s.io/klog/v2"

	"github.com/kubegate/kubegate/pkg/api"
	"github.com/kubegate/kubegate/pkg/gateway"
	"github.com/kubegate/kubegate/pkg/llm"
)

// kubegateMCPServer exposes every catalog instruction as an MCP tool over
// stdio. Calls go through the same gateway pipeline as the HTTP API, so the
// confirmation contract for mutating instructions holds here too.
type kubegateMCPServer struct {
	gateway *gateway.Gateway
	server  *mcpserver.MCPServer
}

func runMCPServer(ctx context.Context, opt Options) error {
	gw, closeJournal, err := buildGateway(opt)
	if err != nil {
		return err
	}
	defer closeJournal()

	s, err := newKubegateMCPServer(gw)
	if err != nil {
		return fmt.Errorf("creating mcp server: %w", err)
	}
	return s.Serve(ctx)
}

func newKubegateMCPServer(gw *gateway.Gateway) (*kubegateMCPServer, error) {
	s := &kubegateMCPServer{
		gateway: gw,
		server: mcpserver.NewMCPServer(
			"kubegate",
			version,
			mcpserver.WithToolCapabilities(true),
		),
	}

	for _, spec := range gw.Registry.All() {
		defn := spec.FunctionDefinition()
		if spec.Mutating {
			defn.Parameters.Properties["confirm"] = &llm.Schema{
				Type:        llm.TypeBoolean,
				Description: "Set true to apply the change. Without it the call returns a dry-run preview only.",
			}
		}
		inputSchema, err := defn.Parameters.ToRawSchema()
		if err != nil {
			return nil, fmt.Errorf("converting tool schema to json.RawMessage: %w", err)
		}
		s.server.AddTool(mcp.NewToolWithRawSchema(
			defn.Name,
			defn.Description,
			inputSchema,
		), s.handleToolCall)
	}
	return s, nil
}

func (s *kubegateMCPServer) Serve(ctx context.Context) error {
	return mcpserver.ServeStdio(s.server)
}

func (s *kubegateMCPServer) handleToolCall(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	log := klog.FromContext(ctx)

	name := request.Params.Name
	args := request.GetArguments()
	log.Info("received tool call", "tool", name)

	execReq := &api.ExecutionRequest{
		Instruction: name,
		Params:      map[string]string{},
		SessionID:   "mcp",
	}
	for k, v := range args {
		if k == "confirm" {
			confirm, _ := v.(bool)
			execReq.Confirm = confirm
			continue
		}
		switch t := v.(type) {
		case string:
			execReq.Params[k] = t
		case bool:
			execReq.Params[k] = strconv.FormatBool(t)
		case float64:
			execReq.Params[k] = strconv.FormatInt(int64(t), 10)
		default:
			execReq.Params[k] = fmt.Sprintf("%v", v)
		}
	}

	result, err := s.gateway.Execute(ctx, execReq)
	if err != nil {
		log.Error(err, "tool call rejected", "tool", name)
		return toolError(err.Error()), nil
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return toolError(fmt.Sprintf("encoding result: %v", err)), nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: string(payload),
			},
		},
	}, nil
}

func toolError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: "Error: " + msg,
			},
		},
		IsError: true,
	}
}
