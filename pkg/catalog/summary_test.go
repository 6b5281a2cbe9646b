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
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var summaryNow = time.Date(2026, 8, 29, 12, 30, 0, 0, time.UTC)

func TestSummarizePodList(t *testing.T) {
	doc := `{
		"kind": "List",
		"items": [{
			"kind": "Pod",
			"metadata": {"name": "web-1", "namespace": "default", "creationTimestamp": "2026-08-29T10:00:00Z"},
			"spec": {"nodeName": "node-a"},
			"status": {
				"phase": "Running",
				"podIP": "10.1.2.3",
				"containerStatuses": [
					{"ready": true, "restartCount": 2},
					{"ready": false, "restartCount": 1}
				]
			}
		}]
	}`

	out, err := summarizeResourceList(doc, summaryNow)
	require.NoError(t, err)
	assert.Equal(t,
		"pod/web-1 ns=default ip=10.1.2.3 node=node-a phase=Running ready=1/2 restarts=3 age=2h30m",
		out)
}

func TestSummarizeDeploymentList(t *testing.T) {
	doc := `{
		"kind": "List",
		"items": [{
			"kind": "Deployment",
			"metadata": {"name": "web", "namespace": "prod", "creationTimestamp": "2026-08-26T08:30:00Z"},
			"spec": {"replicas": 5},
			"status": {"readyReplicas": 4, "updatedReplicas": 5, "availableReplicas": 4}
		}]
	}`

	out, err := summarizeResourceList(doc, summaryNow)
	require.NoError(t, err)
	assert.Equal(t,
		"deployment/web ns=prod replicas=5 ready=4 updated=5 available=4 age=3d4h",
		out)
}

func TestSummarizeService(t *testing.T) {
	doc := `{
		"kind": "Service",
		"metadata": {"name": "web", "namespace": "default", "creationTimestamp": "2026-08-29T12:29:15Z"},
		"spec": {
			"type": "LoadBalancer",
			"clusterIP": "10.96.0.12",
			"ports": [{"port": 80}, {"port": 443}]
		},
		"status": {"loadBalancer": {"ingress": [{"ip": "203.0.113.9"}]}}
	}`

	// a single object works without a List wrapper
	out, err := summarizeResourceList(doc, summaryNow)
	require.NoError(t, err)
	assert.Equal(t,
		"service/web ns=default type=LoadBalancer clusterIP=10.96.0.12 external=[203.0.113.9] ports=[80,443] age=45s",
		out)
}

func TestSummarizeUnknownKindFallsBack(t *testing.T) {
	doc := `{
		"kind": "List",
		"items": [{
			"kind": "ConfigMap",
			"metadata": {"name": "settings", "namespace": "default", "creationTimestamp": "2026-08-29T12:27:00Z"}
		}]
	}`

	out, err := summarizeResourceList(doc, summaryNow)
	require.NoError(t, err)
	assert.Equal(t, "configmap/settings ns=default age=3m0s", out)
}

func TestSummarizeNonJSONOutput(t *testing.T) {
	out, err := summarizeResourceList("NAME   READY\nweb-1  1/1\n", summaryNow)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestFormatAge(t *testing.T) {
	cases := []struct {
		ago  time.Duration
		want string
	}{
		{45 * time.Second, "45s"},
		{3*time.Minute + 20*time.Second, "3m20s"},
		{2*time.Hour + 5*time.Minute, "2h5m"},
		{3*24*time.Hour + 4*time.Hour, "3d4h"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, formatAge(summaryNow.Add(-tc.ago), summaryNow))
	}
}

func TestSummarizeHPAReadiness(t *testing.T) {
	doc := `{
		"kind": "List",
		"items": [
			{
				"kind": "Deployment",
				"metadata": {"name": "web"},
				"spec": {"template": {"spec": {"containers": [
					{"name": "app", "resources": {"requests": {"cpu": "100m"}}}
				]}}}
			},
			{
				"kind": "Deployment",
				"metadata": {"name": "worker"},
				"spec": {"template": {"spec": {"containers": [
					{"name": "app"}
				]}}}
			}
		]
	}`

	out, err := summarizeHPAReadiness("prod", doc)
	require.NoError(t, err)

	var report struct {
		Namespace string `json:"namespace"`
		With      int    `json:"deployments_with_cpu_requests"`
		Missing   int    `json:"deployments_missing_cpu_requests"`
		Deps      []struct {
			Name           string `json:"name"`
			HasCPURequests bool   `json:"has_cpu_requests"`
		} `json:"deployments"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))

	assert.Equal(t, "prod", report.Namespace)
	assert.Equal(t, 1, report.With)
	assert.Equal(t, 1, report.Missing)
	require.Len(t, report.Deps, 2)
	assert.True(t, report.Deps[0].HasCPURequests)
	assert.False(t, report.Deps[1].HasCPURequests)
}

func TestSummarizeHPAReadinessRejectsNonJSON(t *testing.T) {
	_, err := summarizeHPAReadiness("default", "not json")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "parsing"))
}
