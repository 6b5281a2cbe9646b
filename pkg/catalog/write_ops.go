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
	"sort"
	"strconv"
	"strings"

	"github.com/kubegate/kubegate/pkg/validate"
)

func init() {
	Register(&InstructionSpec{
		Name:        "create_deployment",
		Description: "Create or update a Deployment from a generated manifest (kubectl apply).",
		Mutating:    true, SupportsDryRun: true,
		Params: []ParamSpec{
			{Name: "deployment_name", Description: "Deployment name.", Required: true, Type: "string", Rule: validate.DNSLabel},
			{Name: "image", Description: "Container image, e.g. nginx:1.27.", Required: true, Type: "string", Rule: validate.Image},
			{Name: "replicas", Description: "Desired replica count.", Default: "1", Type: "integer", Rule: validate.NonNegativeInt},
			{Name: "namespace", Description: "Target namespace.", Default: "default", Type: "string", Rule: validate.DNSLabel},
			{Name: "container_port", Description: "Port the container listens on.", Default: "80", Type: "integer", Rule: validate.PositiveInt},
			{Name: "cpu_request", Description: "Guaranteed CPU, e.g. 100m.", Default: "100m", Type: "string", Rule: validate.CPUQuantity},
			{Name: "memory_request", Description: "Guaranteed memory, e.g. 128Mi.", Default: "128Mi", Type: "string", Rule: validate.MemoryQuantity},
			{Name: "cpu_limit", Description: "CPU limit, e.g. 500m.", Default: "500m", Type: "string", Rule: validate.CPUQuantity},
			{Name: "memory_limit", Description: "Memory limit, e.g. 512Mi.", Default: "512Mi", Type: "string", Rule: validate.MemoryQuantity},
			{Name: "volume_mount_path", Description: "Mount path for a PVC volume. Requires pvc_claim_name.", Type: "string", Rule: validate.FreeText},
			{Name: "pvc_claim_name", Description: "Existing PersistentVolumeClaim to mount.", Type: "string", Rule: validate.DNSLabel},
		},
		Build: func(p validate.Params) (*Command, error) {
			if (p.Get("pvc_claim_name") == "") != (p.Get("volume_mount_path") == "") {
				return nil, fmt.Errorf("pvc_claim_name and volume_mount_path must be set together")
			}
			manifest, err := deploymentManifest(p)
			if err != nil {
				return nil, err
			}
			// The manifest goes in on stdin: multi-line YAML never
			// belongs in an argument.
			return &Command{
				Args:  []string{"apply", "--wait=false", "-f", "-"},
				Stdin: manifest,
			}, nil
		},
	})

	Register(&InstructionSpec{
		Name:        "delete_deployment",
		Description: "Delete a Deployment, optionally together with its same-named Service and HPA.",
		Mutating:    true, SupportsDryRun: true,
		Params: []ParamSpec{
			{Name: "deployment_name", Description: "Deployment to delete.", Required: true, Type: "string", Rule: validate.DNSLabel},
			{Name: "namespace", Description: "Target namespace.", Default: "default", Type: "string", Rule: validate.DNSLabel},
			{Name: "cleanup_related", Description: "Also delete the Service and HPA sharing the name.", Type: "boolean", Rule: validate.Boolean},
		},
		Build: func(p validate.Params) (*Command, error) {
			kinds := "deployment"
			if p.GetBool("cleanup_related") {
				kinds = "deployment,service,horizontalpodautoscaler"
			}
			return &Command{Args: []string{"delete", kinds, p.Get("deployment_name"), "-n", p.Get("namespace"), "--ignore-not-found"}}, nil
		},
	})

	Register(&InstructionSpec{
		Name:        "scale_deployment",
		Description: "Scale a Deployment to a replica count.",
		Mutating:    true, SupportsDryRun: true,
		Params: []ParamSpec{
			{Name: "deployment_name", Description: "Deployment to scale.", Required: true, Type: "string", Rule: validate.DNSLabel},
			{Name: "replicas", Description: "Desired replica count.", Required: true, Type: "integer", Rule: validate.NonNegativeInt},
			{Name: "namespace", Description: "Target namespace.", Default: "default", Type: "string", Rule: validate.DNSLabel},
		},
		Build: func(p validate.Params) (*Command, error) {
			return &Command{Args: []string{"scale", "deployment", p.Get("deployment_name"), "--replicas", p.Get("replicas"), "-n", p.Get("namespace")}}, nil
		},
	})

	Register(&InstructionSpec{
		Name:        "set_deployment_resources",
		Description: "Update CPU/memory requests and limits of a Deployment's containers.",
		Mutating:    true, SupportsDryRun: true,
		Params: []ParamSpec{
			{Name: "deployment_name", Description: "Deployment to update.", Required: true, Type: "string", Rule: validate.DNSLabel},
			{Name: "namespace", Description: "Target namespace.", Default: "default", Type: "string", Rule: validate.DNSLabel},
			{Name: "cpu_request", Description: "Guaranteed CPU, e.g. 100m.", Type: "string", Rule: validate.CPUQuantity},
			{Name: "memory_request", Description: "Guaranteed memory, e.g. 128Mi.", Type: "string", Rule: validate.MemoryQuantity},
			{Name: "cpu_limit", Description: "CPU limit, e.g. 500m.", Type: "string", Rule: validate.CPUQuantity},
			{Name: "memory_limit", Description: "Memory limit, e.g. 512Mi.", Type: "string", Rule: validate.MemoryQuantity},
		},
		Build: func(p validate.Params) (*Command, error) {
			requests := quantityList(p, "cpu_request", "memory_request")
			limits := quantityList(p, "cpu_limit", "memory_limit")
			if requests == "" && limits == "" {
				return nil, fmt.Errorf("at least one of cpu_request, memory_request, cpu_limit, memory_limit is required")
			}
			args := []string{"set", "resources", "deployment", p.Get("deployment_name"), "-n", p.Get("namespace")}
			if requests != "" {
				args = append(args, "--requests", requests)
			}
			if limits != "" {
				args = append(args, "--limits", limits)
			}
			return &Command{Args: args}, nil
		},
	})

	Register(&InstructionSpec{
		Name:        "undo_rollout",
		Description: "Roll a Deployment back to a previous revision.",
		Mutating:    true,
		Params: []ParamSpec{
			{Name: "deployment_name", Description: "Deployment to roll back.", Required: true, Type: "string", Rule: validate.DNSLabel},
			{Name: "namespace", Description: "Target namespace.", Default: "default", Type: "string", Rule: validate.DNSLabel},
			{Name: "revision", Description: "Revision to roll back to; 0 means the previous one.", Type: "integer", Rule: validate.NonNegativeInt},
		},
		Build: func(p validate.Params) (*Command, error) {
			args := []string{"rollout", "undo", "deployment/" + p.Get("deployment_name"), "-n", p.Get("namespace")}
			if rev := p.GetInt("revision", 0); rev > 0 {
				args = append(args, "--to-revision", strconv.Itoa(rev))
			}
			return &Command{Args: args}, nil
		},
	})

	Register(&InstructionSpec{
		Name:        "expose_deployment",
		Description: "Expose a Deployment as a Service.",
		Mutating:    true, SupportsDryRun: true,
		Params: []ParamSpec{
			{Name: "deployment_name", Description: "Deployment to expose.", Required: true, Type: "string", Rule: validate.DNSLabel},
			{Name: "port", Description: "Service port.", Required: true, Type: "integer", Rule: validate.PositiveInt},
			{Name: "target_port", Description: "Container port the service forwards to.", Type: "integer", Rule: validate.PositiveInt},
			{Name: "service_type", Description: "ClusterIP, NodePort or LoadBalancer.", Default: "ClusterIP", Type: "string", Rule: validate.ServiceType},
			{Name: "namespace", Description: "Target namespace.", Default: "default", Type: "string", Rule: validate.DNSLabel},
		},
		Build: func(p validate.Params) (*Command, error) {
			args := []string{"expose", "deployment", p.Get("deployment_name"),
				"--port", p.Get("port"), "--type", p.Get("service_type"), "-n", p.Get("namespace")}
			if tp := p.Get("target_port"); tp != "" {
				args = append(args, "--target-port", tp)
			}
			return &Command{Args: args}, nil
		},
	})

	Register(&InstructionSpec{
		Name:        "create_hpa",
		Description: "Create a HorizontalPodAutoscaler for a Deployment.",
		Mutating:    true, SupportsDryRun: true,
		Params: []ParamSpec{
			{Name: "deployment_name", Description: "Deployment to autoscale.", Required: true, Type: "string", Rule: validate.DNSLabel},
			{Name: "max_replicas", Description: "Upper replica bound.", Required: true, Type: "integer", Rule: validate.PositiveInt},
			{Name: "min_replicas", Description: "Lower replica bound.", Default: "1", Type: "integer", Rule: validate.PositiveInt},
			{Name: "cpu_utilization", Description: "Target average CPU utilization percent.", Default: "80", Type: "integer", Rule: validate.PositiveInt},
			{Name: "namespace", Description: "Target namespace.", Default: "default", Type: "string", Rule: validate.DNSLabel},
		},
		Build: func(p validate.Params) (*Command, error) {
			if p.GetInt("min_replicas", 1) > p.GetInt("max_replicas", 1) {
				return nil, fmt.Errorf("min_replicas must not exceed max_replicas")
			}
			return &Command{Args: []string{"autoscale", "deployment", p.Get("deployment_name"),
				"--min", p.Get("min_replicas"), "--max", p.Get("max_replicas"),
				"--cpu-percent", p.Get("cpu_utilization"), "-n", p.Get("namespace")}}, nil
		},
	})

	Register(&InstructionSpec{
		Name:        "delete_pod",
		Description: "Delete a single pod by name. Safe to call if the pod is already gone.",
		Mutating:    true,
		Params: []ParamSpec{
			{Name: "pod_name", Description: "Pod to delete.", Required: true, Type: "string", Rule: validate.DNSLabel},
			{Name: "namespace", Description: "Target namespace.", Default: "default", Type: "string", Rule: validate.DNSLabel},
			{Name: "grace_period", Description: "Seconds before the pod is terminated; 0 for immediate.", Default: "0", Type: "integer", Rule: validate.NonNegativeInt},
			{Name: "wait", Description: "Wait for deletion to complete.", Type: "boolean", Rule: validate.Boolean},
			{Name: "force", Description: "Force immediate deletion. Use only when stuck.", Type: "boolean", Rule: validate.Boolean},
		},
		Build: func(p validate.Params) (*Command, error) {
			args := []string{"delete", "pod", p.Get("pod_name"), "-n", p.Get("namespace"),
				"--ignore-not-found", "--grace-period=" + p.Get("grace_period")}
			if !p.GetBool("wait") {
				args = append(args, "--wait=false")
			}
			if p.GetBool("force") {
				args = append(args, "--force")
			}
			return &Command{Args: args}, nil
		},
	})

	Register(&InstructionSpec{
		Name:        "delete_completed_pods",
		Description: "Delete pods in phase Succeeded (typically Completed jobs), optionally scoped by label selector.",
		Mutating:    true,
		Params: []ParamSpec{
			{Name: "namespace", Description: "Target namespace.", Default: "default", Type: "string", Rule: validate.DNSLabel},
			{Name: "label_selector", Description: "Label selector combined with the Succeeded phase filter.", Type: "string", Rule: validate.LabelSelector},
			{Name: "wait", Description: "Wait for deletion to complete.", Type: "boolean", Rule: validate.Boolean},
		},
		Build: func(p validate.Params) (*Command, error) {
			args := []string{"delete", "pod", "-n", p.Get("namespace")}
			if sel := p.Get("label_selector"); sel != "" {
				args = append(args, "-l", sel)
			}
			args = append(args, "--field-selector=status.phase=Succeeded", "--ignore-not-found")
			if !p.GetBool("wait") {
				args = append(args, "--wait=false")
			}
			return &Command{Args: args}, nil
		},
	})

	Register(&InstructionSpec{
		Name:             "use_context",
		Description:      "Switch the kubeconfig context subsequent commands run against.",
		Mutating:         true,
		RefreshesContext: true,
		Params: []ParamSpec{
			{Name: "context_name", Description: "Context to switch to.", Required: true, Type: "string", Rule: validate.FreeText},
		},
		Build: func(p validate.Params) (*Command, error) {
			return &Command{Args: []string{"config", "use-context", p.Get("context_name")}}, nil
		},
	})

	Register(&InstructionSpec{
		Name:        "create_configmap",
		Description: "Create a ConfigMap from literal key=value pairs.",
		Mutating:    true, SupportsDryRun: true,
		Params: []ParamSpec{
			{Name: "configmap_name", Description: "ConfigMap name.", Required: true, Type: "string", Rule: validate.DNSLabel},
			{Name: "data", Description: "Comma-separated key=value pairs.", Required: true, Type: "string", Rule: validate.LabelSelector},
			{Name: "namespace", Description: "Target namespace.", Default: "default", Type: "string", Rule: validate.DNSLabel},
		},
		Build: func(p validate.Params) (*Command, error) {
			args := []string{"create", "configmap", p.Get("configmap_name"), "-n", p.Get("namespace")}
			pairs := strings.Split(p.Get("data"), ",")
			sort.Strings(pairs)
			for _, pair := range pairs {
				args = append(args, "--from-literal", pair)
			}
			return &Command{Args: args}, nil
		},
	})

	Register(&InstructionSpec{
		Name:        "delete_configmap",
		Description: "Delete a ConfigMap by name.",
		Mutating:    true,
		Params: []ParamSpec{
			{Name: "configmap_name", Description: "ConfigMap to delete.", Required: true, Type: "string", Rule: validate.DNSLabel},
			{Name: "namespace", Description: "Target namespace.", Default: "default", Type: "string", Rule: validate.DNSLabel},
		},
		Build: func(p validate.Params) (*Command, error) {
			return &Command{Args: []string{"delete", "configmap", p.Get("configmap_name"), "-n", p.Get("namespace"), "--ignore-not-found"}}, nil
		},
	})
}

func quantityList(p validate.Params, cpuKey, memKey string) string {
	var parts []string
	if v := p.Get(cpuKey); v != "" {
		parts = append(parts, "cpu="+v)
	}
	if v := p.Get(memKey); v != "" {
		parts = append(parts, "memory="+v)
	}
	return strings.Join(parts, ",")
}
