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

package catalog

import (
	"fmt"

	"github.com/kubegate/kubegate/pkg/validate"
)

func allNamespaces(p validate.Params) bool {
	ns := p.Get("namespace")
	return p.GetBool("all_namespaces") || ns == "all" || ns == "*"
}

func namespaceArgs(p validate.Params) []string {
	if allNamespaces(p) {
		return []string{"-A"}
	}
	return []string{"-n", p.Get("namespace")}
}

func topResourceType(v string) error {
	if v != "pods" && v != "nodes" {
		return fmt.Errorf("%q is not valid here; use pods or nodes", v)
	}
	return nil
}

func sortColumn(v string) error {
	if v != "cpu" && v != "memory" {
		return fmt.Errorf("%q is not a sort column; use cpu or memory", v)
	}
	return nil
}

func init() {
	Register(&InstructionSpec{
		Name:        "get_resources",
		Description: "List one or more Kubernetes resources, optionally filtered by name or label selector.",
		Params: []ParamSpec{
			{Name: "resource_type", Description: "Resource type, e.g. pods, deployments, services.", Required: true, Type: "string", Rule: validate.ResourceType},
			{Name: "resource_name", Description: "Specific resource name.", Type: "string", Rule: validate.DNSLabel},
			{Name: "namespace", Description: "Namespace to query, or 'all'.", Default: "default", Type: "string", Rule: validate.Namespace},
			{Name: "all_namespaces", Description: "Query across all namespaces.", Type: "boolean", Rule: validate.Boolean},
			{Name: "label_selector", Description: "Label selector, e.g. app=myapp,env=prod. Ignored when resource_name is set.", Type: "string", Rule: validate.LabelSelector},
			{Name: "structured_output", Description: "Return JSON output.", Type: "boolean", Rule: validate.Boolean},
		},
		Build: func(p validate.Params) (*Command, error) {
			args := []string{"get", p.Get("resource_type")}
			if name := p.Get("resource_name"); name != "" {
				args = append(args, name)
			}
			args = append(args, namespaceArgs(p)...)
			if sel := p.Get("label_selector"); sel != "" && p.Get("resource_name") == "" {
				args = append(args, "-l", sel)
			}
			if p.GetBool("structured_output") {
				args = append(args, "-o", "json")
			}
			return &Command{Args: args}, nil
		},
		Summarize: structuredSummary,
	})

	Register(&InstructionSpec{
		Name:        "describe_resource",
		Description: "Describe a specific resource, or dump its full definition as YAML/JSON.",
		Params: []ParamSpec{
			{Name: "resource_type", Description: "Resource type.", Required: true, Type: "string", Rule: validate.ResourceType},
			{Name: "resource_name", Description: "Resource name.", Required: true, Type: "string", Rule: validate.DNSLabel},
			{Name: "namespace", Description: "Namespace to query.", Default: "default", Type: "string", Rule: validate.DNSLabel},
			{Name: "full_yaml", Description: "Return the full definition in YAML instead of describe output.", Type: "boolean", Rule: validate.Boolean},
			{Name: "structured_output", Description: "Return JSON output.", Type: "boolean", Rule: validate.Boolean},
		},
		Build: func(p validate.Params) (*Command, error) {
			rt, name, ns := p.Get("resource_type"), p.Get("resource_name"), p.Get("namespace")
			switch {
			case p.GetBool("structured_output"):
				return &Command{Args: []string{"get", rt, name, "-n", ns, "-o", "json"}}, nil
			case p.GetBool("full_yaml"):
				return &Command{Args: []string{"get", rt, name, "-n", ns, "-o", "yaml"}}, nil
			default:
				return &Command{Args: []string{"describe", rt, name, "-n", ns}}, nil
			}
		},
		Summarize: structuredSummary,
	})

	Register(&InstructionSpec{
		Name:        "get_events",
		Description: "List cluster events, newest last.",
		Params: []ParamSpec{
			{Name: "namespace", Description: "Namespace to query, or 'all'.", Default: "default", Type: "string", Rule: validate.Namespace},
			{Name: "sort_by_time", Description: "Sort events by timestamp.", Default: "true", Type: "boolean", Rule: validate.Boolean},
		},
		Build: func(p validate.Params) (*Command, error) {
			args := []string{"get", "events"}
			args = append(args, namespaceArgs(p)...)
			if p.GetBool("sort_by_time") {
				args = append(args, "--sort-by=.lastTimestamp")
			}
			return &Command{Args: args}, nil
		},
	})

	Register(&InstructionSpec{
		Name:        "get_pod_logs",
		Description: "Fetch logs for a pod selected by name or label selector.",
		Params: []ParamSpec{
			{Name: "pod_name", Description: "Pod name. Either this or label_selector is required.", Type: "string", Rule: validate.DNSLabel},
			{Name: "namespace", Description: "Namespace of the pod.", Default: "default", Type: "string", Rule: validate.DNSLabel},
			{Name: "container", Description: "Container name within the pod.", Type: "string", Rule: validate.DNSLabel},
			{Name: "label_selector", Description: "Label selector to pick pods. Ignored when pod_name is set.", Type: "string", Rule: validate.LabelSelector},
			{Name: "previous", Description: "Logs of the previously terminated container instance.", Type: "boolean", Rule: validate.Boolean},
			{Name: "all_containers", Description: "Include all containers of the selected pods.", Type: "boolean", Rule: validate.Boolean},
			{Name: "tail_lines", Description: "Only return this many lines from the end.", Type: "integer", Rule: validate.PositiveInt},
		},
		Build: func(p validate.Params) (*Command, error) {
			pod, sel := p.Get("pod_name"), p.Get("label_selector")
			if pod == "" && sel == "" {
				return nil, fmt.Errorf("either pod_name or label_selector is required")
			}
			args := []string{"logs"}
			if pod != "" {
				args = append(args, pod)
			}
			args = append(args, "-n", p.Get("namespace"))
			if pod == "" {
				args = append(args, "-l", sel)
			}
			if c := p.Get("container"); c != "" && !p.GetBool("all_containers") {
				args = append(args, "-c", c)
			}
			if p.GetBool("all_containers") {
				args = append(args, "--all-containers")
			}
			if p.GetBool("previous") {
				args = append(args, "-p")
			}
			if tail := p.Get("tail_lines"); tail != "" {
				args = append(args, "--tail", tail)
			}
			return &Command{Args: args}, nil
		},
	})

	Register(&InstructionSpec{
		Name:        "get_pod_usage",
		Description: "Current CPU/memory consumption for pods or nodes (requires metrics-server).",
		Params: []ParamSpec{
			{Name: "resource_type", Description: "pods or nodes.", Default: "pods", Type: "string", Rule: topResourceType},
			{Name: "resource_name", Description: "Specific pod or node name.", Type: "string", Rule: validate.DNSLabel},
			{Name: "namespace", Description: "Namespace to query.", Default: "default", Type: "string", Rule: validate.Namespace},
			{Name: "all_namespaces", Description: "Query across all namespaces.", Type: "boolean", Rule: validate.Boolean},
			{Name: "sort_by", Description: "Sort column: cpu or memory.", Type: "string", Rule: sortColumn},
		},
		Build: func(p validate.Params) (*Command, error) {
			rt := p.Get("resource_type")
			args := []string{"top", rt}
			if name := p.Get("resource_name"); name != "" {
				args = append(args, name)
			}
			if rt == "pods" {
				args = append(args, namespaceArgs(p)...)
			}
			if col := p.Get("sort_by"); col != "" {
				args = append(args, "--sort-by", col)
			}
			return &Command{Args: args}, nil
		},
	})

	Register(&InstructionSpec{
		Name:        "get_rollout_history",
		Description: "Rollout history of a deployment.",
		Params: []ParamSpec{
			{Name: "deployment_name", Description: "Deployment name.", Required: true, Type: "string", Rule: validate.DNSLabel},
			{Name: "namespace", Description: "Namespace of the deployment.", Default: "default", Type: "string", Rule: validate.DNSLabel},
		},
		Build: func(p validate.Params) (*Command, error) {
			return &Command{Args: []string{"rollout", "history", "deployment/" + p.Get("deployment_name"), "-n", p.Get("namespace")}}, nil
		},
	})

	Register(&InstructionSpec{
		Name:        "get_service_endpoints",
		Description: "Endpoints backing a service.",
		Params: []ParamSpec{
			{Name: "service_name", Description: "Service name.", Required: true, Type: "string", Rule: validate.DNSLabel},
			{Name: "namespace", Description: "Namespace of the service.", Default: "default", Type: "string", Rule: validate.DNSLabel},
			{Name: "structured_output", Description: "Return JSON output.", Type: "boolean", Rule: validate.Boolean},
		},
		Build: func(p validate.Params) (*Command, error) {
			args := []string{"get", "endpoints", p.Get("service_name"), "-n", p.Get("namespace")}
			if p.GetBool("structured_output") {
				args = append(args, "-o", "json")
			}
			return &Command{Args: args}, nil
		},
		Summarize: structuredSummary,
	})

	Register(&InstructionSpec{
		Name:        "check_hpa_readiness",
		Description: "Report which Deployments in a namespace declare CPU requests, the prerequisite for CPU-based autoscaling.",
		Params: []ParamSpec{
			{Name: "namespace", Description: "Namespace to inspect.", Default: "default", Type: "string", Rule: validate.DNSLabel},
		},
		Build: func(p validate.Params) (*Command, error) {
			return &Command{Args: []string{"get", "deployments", "-n", p.Get("namespace"), "-o", "json"}}, nil
		},
		Summarize: func(p validate.Params, stdout string) (string, error) {
			return summarizeHPAReadiness(p.Get("namespace"), stdout)
		},
	})

	Register(&InstructionSpec{
		Name:        "list_namespaces",
		Description: "List all namespaces in the cluster.",
		Build: func(p validate.Params) (*Command, error) {
			return &Command{Args: []string{"get", "namespaces"}}, nil
		},
	})

	Register(&InstructionSpec{
		Name:        "list_contexts",
		Description: "List kubectl contexts available on this host.",
		Build: func(p validate.Params) (*Command, error) {
			return &Command{Args: []string{"config", "get-contexts"}}, nil
		},
	})

	Register(&InstructionSpec{
		Name:        "get_current_context",
		Description: "Show the kubectl context currently in use.",
		Build: func(p validate.Params) (*Command, error) {
			return &Command{Args: []string{"config", "current-context"}}, nil
		},
	})
}
