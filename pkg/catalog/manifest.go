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

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"

	"github.com/kubegate/kubegate/pkg/validate"
)

// deploymentManifest renders the apps/v1 Deployment for create_deployment.
// Parameter values are already validated; quantities match the resource
// grammar before MustParse sees them.
func deploymentManifest(p validate.Params) ([]byte, error) {
	name := p.Get("deployment_name")
	replicas := int32(p.GetInt("replicas", 1))
	labels := map[string]string{"app": name}

	container := corev1.Container{
		Name:  name,
		Image: p.Get("image"),
		Ports: []corev1.ContainerPort{
			{ContainerPort: int32(p.GetInt("container_port", 80))},
		},
		Resources: corev1.ResourceRequirements{
			Requests: corev1.ResourceList{
				corev1.ResourceCPU:    resource.MustParse(p.Get("cpu_request")),
				corev1.ResourceMemory: resource.MustParse(p.Get("memory_request")),
			},
			Limits: corev1.ResourceList{
				corev1.ResourceCPU:    resource.MustParse(p.Get("cpu_limit")),
				corev1.ResourceMemory: resource.MustParse(p.Get("memory_limit")),
			},
		},
	}

	podSpec := corev1.PodSpec{}
	if claim := p.Get("pvc_claim_name"); claim != "" {
		container.VolumeMounts = []corev1.VolumeMount{
			{Name: "app-storage", MountPath: p.Get("volume_mount_path")},
		}
		podSpec.Volumes = []corev1.Volume{{
			Name: "app-storage",
			VolumeSource: corev1.VolumeSource{
				PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{
					ClaimName: claim,
				},
			},
		}}
	}
	podSpec.Containers = []corev1.Container{container}

	dep := appsv1.Deployment{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "apps/v1",
			Kind:       "Deployment",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: p.Get("namespace"),
			Labels:    labels,
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: &replicas,
			Selector: &metav1.LabelSelector{MatchLabels: labels},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec:       podSpec,
			},
		},
	}

	out, err := yaml.Marshal(dep)
	if err != nil {
		return nil, fmt.Errorf("marshalling deployment manifest: %w", err)
	}
	return out, nil
}
