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

// Package gateway wires the request pipeline: catalog lookup, validation,
// the mutation safety gate, command construction and execution.
package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/kubegate/kubegate/pkg/api"
	"github.com/kubegate/kubegate/pkg/catalog"
	"github.com/kubegate/kubegate/pkg/executor"
	"github.com/kubegate/kubegate/pkg/journal"
	"github.com/kubegate/kubegate/pkg/kube"
	"github.com/kubegate/kubegate/pkg/validate"
)

// Gateway validates requests and runs them through the executor. It holds
// no per-request state; the safety gate is decided from the request alone.
type Gateway struct {
	Registry *catalog.Registry
	Executor executor.Executor

	// RequireConfirm forces mutating instructions through the two-step
	// preview/confirm exchange.
	RequireConfirm bool

	// DefaultTimeout applies when a request does not carry its own.
	DefaultTimeout time.Duration

	// ContextCache, when set, annotates results with advisory cluster
	// context.
	ContextCache *kube.ContextCache

	Recorder journal.Recorder
}

// New builds a Gateway with the default registry and timeout.
func New(exec executor.Executor) *Gateway {
	return &Gateway{
		Registry:       catalog.Default(),
		Executor:       exec,
		RequireConfirm: true,
		DefaultTimeout: executor.DefaultTimeout,
	}
}

// Execute runs one request through the pipeline. Request faults (unknown
// instruction, invalid parameters) come back as errors; execution failures
// are classified on the result.
func (g *Gateway) Execute(ctx context.Context, req *api.ExecutionRequest) (*api.ExecutionResult, error) {
	log := klog.FromContext(ctx)

	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	g.record(ctx, "request.received", req)

	spec, params, err := g.Registry.Validate(req.Instruction, req.Params)
	if err != nil {
		g.record(ctx, "request.rejected", map[string]any{
			"request_id": req.RequestID,
			"error":      err.Error(),
		})
		return nil, err
	}

	if req.DryRun && !spec.SupportsDryRun {
		// A caller fault, reported like any other bad parameter.
		verr := &api.ValidationError{
			Field:  "dry_run",
			Reason: api.ReasonMalformed,
			Detail: fmt.Sprintf("instruction %q does not support dry-run", req.Instruction),
		}
		g.record(ctx, "request.rejected", map[string]any{
			"request_id": req.RequestID,
			"error":      verr.Error(),
		})
		return nil, verr
	}

	timeout := g.DefaultTimeout
	if req.TimeoutSeconds > 0 {
		timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}

	var result *api.ExecutionResult
	switch {
	case spec.Mutating && g.RequireConfirm && !req.Confirm && !req.DryRun:
		// The gate: never run a mutation the caller has not confirmed.
		// Offer a preview instead when the instruction can produce one.
		result = &api.ExecutionResult{
			ConfirmationRequired: true,
			Message:              fmt.Sprintf("%s mutates cluster state; resubmit with confirm=true to apply", req.Instruction),
		}
		if spec.SupportsDryRun {
			preview, err := g.preview(ctx, spec, params, timeout)
			if err != nil {
				return nil, err
			}
			result.Preview = preview
		}

	case req.DryRun:
		preview, err := g.preview(ctx, spec, params, timeout)
		if err != nil {
			return nil, err
		}
		result = preview
		result.DryRun = true

	default:
		cmd, err := spec.Build(params)
		if err != nil {
			return nil, &api.BuildError{Instruction: req.Instruction, Detail: err.Error()}
		}
		result = g.Executor.Execute(ctx, cmd, timeout)
		if result.Outcome == api.OutcomeSucceeded {
			if spec.RefreshesContext && g.ContextCache != nil {
				g.ContextCache.Invalidate()
			}
			if spec.Summarize != nil {
				summary, err := spec.Summarize(params, result.Stdout)
				if err != nil {
					log.V(2).Info("summarizing output failed", "instruction", req.Instruction, "err", err)
				} else {
					result.Summary = summary
				}
			}
		}
	}

	result.RequestID = req.RequestID
	result.SessionID = req.SessionID
	result.Instruction = req.Instruction
	if g.ContextCache != nil {
		result.Context = g.ContextCache.Current(ctx)
	}

	g.record(ctx, "request.completed", result)
	log.V(1).Info("request completed",
		"request_id", req.RequestID,
		"instruction", req.Instruction,
		"outcome", result.Outcome,
		"confirmation_required", result.ConfirmationRequired)
	return result, nil
}

// preview builds and runs the client-side dry-run variant of the command.
func (g *Gateway) preview(ctx context.Context, spec *catalog.InstructionSpec, params validate.Params, timeout time.Duration) (*api.ExecutionResult, error) {
	cmd, err := spec.Build(params)
	if err != nil {
		return nil, &api.BuildError{Instruction: spec.Name, Detail: err.Error()}
	}
	return g.Executor.Execute(ctx, cmd.WithDryRun(), timeout), nil
}

func (g *Gateway) record(ctx context.Context, action string, payload any) {
	recorder := g.Recorder
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
