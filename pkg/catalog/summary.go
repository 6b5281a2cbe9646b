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
	"fmt"
	"strconv"
	"strings"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"

	"github.com/kubegate/kubegate/pkg/validate"
)

// structuredSummary is the Summarize hook shared by instructions with a
// structured_output parameter.
func structuredSummary(p validate.Params, stdout string) (string, error) {
	if !p.GetBool("structured_output") {
		return "", nil
	}
	return summarizeResourceList(stdout, time.Now())
}

type listEnvelope struct {
	Kind  string            `json:"kind"`
	Items []json.RawMessage `json:"items"`
}

// summarizeResourceList condenses kubectl's JSON output into one line per
// item. Kinds without a dedicated renderer fall back to kind/name/age.
func summarizeResourceList(stdout string, now time.Time) (string, error) {
	doc := strings.TrimSpace(stdout)
	if !strings.HasPrefix(doc, "{") {
		return "", nil
	}

	var envelope listEnvelope
	if err := json.Unmarshal([]byte(doc), &envelope); err != nil {
		return "", fmt.Errorf("parsing resource list: %w", err)
	}
	items := envelope.Items
	if items == nil {
		// A single object rather than a List.
		items = []json.RawMessage{json.RawMessage(doc)}
	}

	lines := make([]string, 0, len(items))
	for _, item := range items {
		if line := summarizeItem(item, now); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}

func summarizeItem(raw json.RawMessage, now time.Time) string {
	var head struct {
		Kind     string `json:"kind"`
		Metadata struct {
			Name              string    `json:"name"`
			Namespace         string    `json:"namespace"`
			CreationTimestamp time.Time `json:"creationTimestamp"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return ""
	}

	age := "-"
	if !head.Metadata.CreationTimestamp.IsZero() {
		age = formatAge(head.Metadata.CreationTimestamp, now)
	}

	switch head.Kind {
	case "Pod":
		var pod corev1.Pod
		if err := json.Unmarshal(raw, &pod); err == nil {
			return summarizePod(&pod, age)
		}
	case "Deployment":
		var dep appsv1.Deployment
		if err := json.Unmarshal(raw, &dep); err == nil {
			return summarizeDeployment(&dep, age)
		}
	case "Service":
		var svc corev1.Service
		if err := json.Unmarshal(raw, &svc); err == nil {
			return summarizeService(&svc, age)
		}
	}
	return fmt.Sprintf("%s/%s ns=%s age=%s",
		strings.ToLower(head.Kind), head.Metadata.Name, head.Metadata.Namespace, age)
}

func summarizePod(pod *corev1.Pod, age string) string {
	ready, restarts := 0, 0
	for _, cs := range pod.Status.ContainerStatuses {
		restarts += int(cs.RestartCount)
		if cs.Ready {
			ready++
		}
	}
	ip, node := pod.Status.PodIP, pod.Spec.NodeName
	if ip == "" {
		ip = "-"
	}
	if node == "" {
		node = "-"
	}
	return fmt.Sprintf("pod/%s ns=%s ip=%s node=%s phase=%s ready=%d/%d restarts=%d age=%s",
		pod.Name, pod.Namespace, ip, node, pod.Status.Phase,
		ready, len(pod.Status.ContainerStatuses), restarts, age)
}

func summarizeDeployment(dep *appsv1.Deployment, age string) string {
	replicas := dep.Status.Replicas
	if dep.Spec.Replicas != nil {
		replicas = *dep.Spec.Replicas
	}
	return fmt.Sprintf("deployment/%s ns=%s replicas=%d ready=%d updated=%d available=%d age=%s",
		dep.Name, dep.Namespace, replicas,
		dep.Status.ReadyReplicas, dep.Status.UpdatedReplicas, dep.Status.AvailableReplicas, age)
}

func summarizeService(svc *corev1.Service, age string) string {
	ports := make([]string, 0, len(svc.Spec.Ports))
	for _, p := range svc.Spec.Ports {
		ports = append(ports, strconv.Itoa(int(p.Port)))
	}

	clusterIPs := svc.Spec.ClusterIPs
	if len(clusterIPs) == 0 && svc.Spec.ClusterIP != "" && svc.Spec.ClusterIP != corev1.ClusterIPNone {
		clusterIPs = []string{svc.Spec.ClusterIP}
	}
	external := append([]string(nil), svc.Spec.ExternalIPs...)
	for _, ing := range svc.Status.LoadBalancer.Ingress {
		if ing.IP != "" {
			external = append(external, ing.IP)
		}
		if ing.Hostname != "" {
			external = append(external, ing.Hostname)
		}
	}

	cip, eip := "-", "-"
	if len(clusterIPs) > 0 {
		cip = strings.Join(clusterIPs, ",")
	}
	if len(external) > 0 {
		eip = strings.Join(external, ",")
	}
	return fmt.Sprintf("service/%s ns=%s type=%s clusterIP=%s external=[%s] ports=[%s] age=%s",
		svc.Name, svc.Namespace, svc.Spec.Type, cip, eip, strings.Join(ports, ","), age)
}

func formatAge(from, now time.Time) string {
	total := int(now.Sub(from).Seconds())
	if total < 0 {
		total = 0
	}
	days := total / 86400
	hours := total % 86400 / 3600
	minutes := total % 3600 / 60
	seconds := total % 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd%dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh%dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

type hpaDeploymentReadiness struct {
	Name           string `json:"name"`
	HasCPURequests bool   `json:"has_cpu_requests"`
}

type hpaReadinessReport struct {
	Namespace                     string                   `json:"namespace"`
	DeploymentsWithCPURequests    int                      `json:"deployments_with_cpu_requests"`
	DeploymentsMissingCPURequests int                      `json:"deployments_missing_cpu_requests"`
	Deployments                   []hpaDeploymentReadiness `json:"deployments"`
}

// summarizeHPAReadiness reports which deployments declare CPU requests,
// the prerequisite for CPU-based autoscaling decisions.
func summarizeHPAReadiness(namespace, stdout string) (string, error) {
	var list appsv1.DeploymentList
	if err := json.Unmarshal([]byte(stdout), &list); err != nil {
		return "", fmt.Errorf("parsing deployment list: %w", err)
	}

	report := hpaReadinessReport{Namespace: namespace, Deployments: []hpaDeploymentReadiness{}}
	for _, dep := range list.Items {
		has := false
		for _, c := range dep.Spec.Template.Spec.Containers {
			if _, ok := c.Resources.Requests[corev1.ResourceCPU]; ok {
				has = true
			}
		}
		if has {
			report.DeploymentsWithCPURequests++
		} else {
			report.DeploymentsMissingCPURequests++
		}
		report.Deployments = append(report.Deployments, hpaDeploymentReadiness{
			Name:           dep.Name,
			HasCPURequests: has,
		})
	}

	out, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("rendering readiness report: %w", err)
	}
	return string(out), nil
}
