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
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubegate/kubegate/pkg/api"
)

func TestValidateUnknownInstruction(t *testing.T) {
	_, _, err := Default().Validate("drain_node", nil)
	require.Error(t, err)

	var unknown *api.UnknownInstructionError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "drain_node", unknown.Name)
}

func TestValidateMissingVsMalformed(t *testing.T) {
	// missing required parameter
	_, _, err := Default().Validate("describe_resource", map[string]string{
		"resource_type": "pods",
	})
	var verr *api.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "resource_name", verr.Field)
	assert.Equal(t, api.ReasonMissing, verr.Reason)

	// present but malformed
	_, _, err = Default().Validate("describe_resource", map[string]string{
		"resource_type": "pods",
		"resource_name": "Bad_Name",
	})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "resource_name", verr.Field)
	assert.Equal(t, api.ReasonMalformed, verr.Reason)
}

func TestValidateRejectsUndeclaredKeys(t *testing.T) {
	_, _, err := Default().Validate("list_namespaces", map[string]string{
		"extra": "x",
	})
	var verr *api.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "extra", verr.Field)
}

func TestValidateFillsDefaults(t *testing.T) {
	_, params, err := Default().Validate("get_resources", map[string]string{
		"resource_type": "pods",
	})
	require.NoError(t, err)
	assert.Equal(t, "default", params.Get("namespace"))
}

func TestBuildIsDeterministic(t *testing.T) {
	raw := map[string]string{
		"deployment_name": "web",
		"namespace":       "prod",
		"cpu_limit":       "500m",
		"memory_limit":    "256Mi",
	}

	spec, params, err := Default().Validate("set_deployment_resources", raw)
	require.NoError(t, err)

	first, err := spec.Build(params)
	require.NoError(t, err)
	second, err := spec.Build(params)
	require.NoError(t, err)

	assert.Equal(t, first.Args, second.Args)
	assert.Equal(t, first.Stdin, second.Stdin)
}

func TestWithDryRunAppendsPreviewFlags(t *testing.T) {
	spec, params, err := Default().Validate("scale_deployment", map[string]string{
		"deployment_name": "web",
		"replicas":        "3",
	})
	require.NoError(t, err)
	require.True(t, spec.SupportsDryRun)

	cmd, err := spec.Build(params)
	require.NoError(t, err)
	require.False(t, slices.Contains(cmd.Args, "--dry-run=client"))

	preview := cmd.WithDryRun()
	assert.Equal(t, append(slices.Clone(cmd.Args), "--dry-run=client", "-o", "yaml"), preview.Args)
	// the original is untouched
	assert.False(t, slices.Contains(cmd.Args, "--dry-run=client"))
}

func TestGetPodLogsRequiresPodOrSelector(t *testing.T) {
	spec, params, err := Default().Validate("get_pod_logs", nil)
	require.NoError(t, err)

	_, err = spec.Build(params)
	require.Error(t, err)

	_, params, err = Default().Validate("get_pod_logs", map[string]string{
		"label_selector": "app=web",
	})
	require.NoError(t, err)
	cmd, err := spec.Build(params)
	require.NoError(t, err)
	assert.Contains(t, cmd.Args, "-l")
}

func TestCreateDeploymentManifestOnStdin(t *testing.T) {
	spec, params, err := Default().Validate("create_deployment", map[string]string{
		"deployment_name": "web",
		"image":           "nginx:1.27",
		"replicas":        "2",
	})
	require.NoError(t, err)
	require.True(t, spec.Mutating)

	cmd, err := spec.Build(params)
	require.NoError(t, err)

	assert.Equal(t, []string{"apply", "--wait=false", "-f", "-"}, cmd.Args)
	require.NotEmpty(t, cmd.Stdin)

	manifest := string(cmd.Stdin)
	assert.Contains(t, manifest, "kind: Deployment")
	assert.Contains(t, manifest, "image: nginx:1.27")
	// the image value is never part of the argument vector
	for _, arg := range cmd.Args {
		assert.NotContains(t, arg, "nginx")
	}
}

func TestMutatingFlagsAreDeclared(t *testing.T) {
	mutating := map[string]bool{}
	for _, spec := range Default().All() {
		mutating[spec.Name] = spec.Mutating
	}

	for _, name := range []string{
		"create_deployment", "delete_deployment", "scale_deployment",
		"set_deployment_resources", "undo_rollout", "expose_deployment",
		"create_hpa", "delete_pod", "delete_completed_pods", "use_context",
		"create_configmap", "delete_configmap",
	} {
		flag, ok := mutating[name]
		require.True(t, ok, "instruction %s not registered", name)
		assert.True(t, flag, "instruction %s should be mutating", name)
	}
	for _, name := range []string{
		"get_resources", "describe_resource", "get_events", "get_pod_logs",
		"get_pod_usage", "get_rollout_history", "get_service_endpoints",
		"check_hpa_readiness", "list_namespaces", "list_contexts",
		"get_current_context",
	} {
		flag, ok := mutating[name]
		require.True(t, ok, "instruction %s not registered", name)
		assert.False(t, flag, "instruction %s should not be mutating", name)
	}
}

func TestFunctionDefinitionSchema(t *testing.T) {
	spec := Default().Lookup("get_resources")
	require.NotNil(t, spec)

	defn := spec.FunctionDefinition()
	assert.Equal(t, "get_resources", defn.Name)
	assert.Equal(t, []string{"resource_type"}, defn.Parameters.Required)

	ns, ok := defn.Parameters.Properties["namespace"]
	require.True(t, ok)
	assert.True(t, strings.Contains(ns.Description, "default"))
}

func TestRegisterPanicsOnDuplicate(t *testing.T) {
	r := NewRegistry()
	spec := &InstructionSpec{Name: "x"}
	r.Register(spec)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	r.Register(spec)
}

func TestValidateRejectsDangerousValuesEverywhere(t *testing.T) {
	if _, _, err := Default().Validate("get_resources", map[string]string{
		"resource_type": "pods",
		"namespace":     "default;rm -rf /",
	}); !isValidationError(err) {
		t.Errorf("expected validation error, got %v", err)
	}

	if _, _, err := Default().Validate("get_pod_logs", map[string]string{
		"label_selector": "app=web|cat /etc/passwd",
	}); !isValidationError(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func isValidationError(err error) bool {
	var verr *api.ValidationError
	return errors.As(err, &verr)
}

func TestDeleteCompletedPodsCommand(t *testing.T) {
	spec, params, err := Default().Validate("delete_completed_pods", map[string]string{
		"label_selector": "app=batch",
	})
	require.NoError(t, err)
	require.True(t, spec.Mutating)

	cmd, err := spec.Build(params)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"delete", "pod", "-n", "default", "-l", "app=batch",
		"--field-selector=status.phase=Succeeded", "--ignore-not-found", "--wait=false",
	}, cmd.Args)
}

func TestUseContextCommand(t *testing.T) {
	spec, params, err := Default().Validate("use_context", map[string]string{
		"context_name": "kind-dev",
	})
	require.NoError(t, err)
	require.True(t, spec.Mutating)
	assert.True(t, spec.RefreshesContext)

	cmd, err := spec.Build(params)
	require.NoError(t, err)
	assert.Equal(t, []string{"config", "use-context", "kind-dev"}, cmd.Args)
}

func TestCheckHPAReadinessCommand(t *testing.T) {
	spec, params, err := Default().Validate("check_hpa_readiness", map[string]string{
		"namespace": "prod",
	})
	require.NoError(t, err)
	assert.False(t, spec.Mutating)
	require.NotNil(t, spec.Summarize)

	cmd, err := spec.Build(params)
	require.NoError(t, err)
	assert.Equal(t, []string{"get", "deployments", "-n", "prod", "-o", "json"}, cmd.Args)
}
