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

// Package validate holds the pure parameter rules applied at the gateway
// boundary. Every rule rejects before any subprocess is built; rules have no
// side effects.
package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Rule checks a single parameter value and returns a human-actionable error
// when the value is malformed.
type Rule func(value string) error

var (
	dnsLabelRE = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)
	cpuQtyRE   = regexp.MustCompile(`^(\d+(\.\d+)?|\d+m)$`)
	memQtyRE   = regexp.MustCompile(`^\d+(\.\d+)?(Ki|Mi|Gi|Ti|Pi|Ei|K|M|G|T|P|E)?$`)
	memTypoRE  = regexp.MustCompile(`^\d+i$`)
	selectorRE = regexp.MustCompile(`^[A-Za-z0-9._/-]+=[A-Za-z0-9._/-]*(,[A-Za-z0-9._/-]+=[A-Za-z0-9._/-]*)*$`)
	imageRE    = regexp.MustCompile(`^[A-Za-z0-9._/:@-]+$`)
)

// Resource types the gateway will pass to kubectl. Unknown values are
// rejected, not passed through.
var allowedResourceTypes = map[string]bool{
	"pod": true, "pods": true, "po": true,
	"deployment": true, "deployments": true, "deploy": true,
	"service": true, "services": true, "svc": true,
	"endpoint": true, "endpoints": true, "endpointslice": true, "endpointslices": true,
	"node": true, "nodes": true,
	"event": true, "events": true,
	"namespace": true, "namespaces": true, "ns": true,
	"daemonset": true, "daemonsets": true,
	"statefulset": true, "statefulsets": true,
	"job": true, "jobs": true, "cronjob": true, "cronjobs": true,
	"configmap": true, "configmaps": true, "cm": true,
	"secret": true, "secrets": true,
	"persistentvolumeclaim": true, "persistentvolumeclaims": true, "pvc": true,
	"persistentvolume": true, "persistentvolumes": true, "pv": true,
	"ingress": true, "ingresses": true,
	"horizontalpodautoscaler": true, "hpa": true,
}

var allowedServiceTypes = map[string]bool{
	"ClusterIP":    true,
	"NodePort":     true,
	"LoadBalancer": true,
}

// shell control characters rejected everywhere, even though execution never
// goes through a shell
var dangerousChars = []string{";", "&", "|", "`", "$", "\n", "\r", ">", "<"}

func hasDangerousChars(v string) bool {
	for _, ch := range dangerousChars {
		if strings.Contains(v, ch) {
			return true
		}
	}
	return false
}

// DNSLabel accepts RFC 1123 label names: lowercase alphanumerics and hyphens,
// 1-63 characters, no leading or trailing hyphen.
func DNSLabel(v string) error {
	if len(v) == 0 || len(v) > 63 {
		return fmt.Errorf("must be 1-63 characters, got %d", len(v))
	}
	if !dnsLabelRE.MatchString(v) {
		return fmt.Errorf("%q is not a valid DNS label (lowercase alphanumerics and '-', no leading/trailing hyphen)", v)
	}
	return nil
}

// Namespace accepts a DNS label or the special values "all" / "*" which the
// builders translate to --all-namespaces.
func Namespace(v string) error {
	if v == "all" || v == "*" {
		return nil
	}
	return DNSLabel(v)
}

// ResourceType accepts members of the fixed kubectl resource allowlist.
func ResourceType(v string) error {
	if !allowedResourceTypes[strings.ToLower(v)] {
		return fmt.Errorf("%q is not an allowed resource type", v)
	}
	return nil
}

// ServiceType accepts ClusterIP, NodePort or LoadBalancer.
func ServiceType(v string) error {
	if !allowedServiceTypes[v] {
		return fmt.Errorf("%q is not an allowed service type (ClusterIP, NodePort, LoadBalancer)", v)
	}
	return nil
}

// CPUQuantity accepts cores ("0.5", "1") or millicores ("100m").
func CPUQuantity(v string) error {
	if !cpuQtyRE.MatchString(v) {
		return fmt.Errorf("%q is not a CPU quantity; use cores (e.g. 0.5) or millicores (e.g. 100m)", v)
	}
	return nil
}

// MemoryQuantity accepts a number with an optional binary or decimal suffix
// ("128Mi", "1Gi", "512M"). The bare-"i" typo gets a suggestion.
func MemoryQuantity(v string) error {
	if memQtyRE.MatchString(v) {
		return nil
	}
	if memTypoRE.MatchString(v) {
		return fmt.Errorf("%q is not a memory quantity; did you mean %q?", v, v[:len(v)-1]+"Mi")
	}
	return fmt.Errorf("%q is not a memory quantity; use a number with an optional Ki/Mi/Gi/... suffix, e.g. 128Mi", v)
}

// LabelSelector accepts key=value[,key=value]* with keys and values limited
// to alphanumerics, '-', '_', '.', '/'.
func LabelSelector(v string) error {
	if hasDangerousChars(v) || !selectorRE.MatchString(v) {
		return fmt.Errorf("%q is not a valid label selector (key=value[,key=value]*)", v)
	}
	return nil
}

// Image accepts container image references.
func Image(v string) error {
	if v == "" || hasDangerousChars(v) || !imageRE.MatchString(v) {
		return fmt.Errorf("%q is not a valid image reference", v)
	}
	return nil
}

// NonNegativeInt accepts integers >= 0.
func NonNegativeInt(v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%q is not an integer", v)
	}
	if n < 0 {
		return fmt.Errorf("must be >= 0, got %d", n)
	}
	return nil
}

// PositiveInt accepts integers >= 1.
func PositiveInt(v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%q is not an integer", v)
	}
	if n < 1 {
		return fmt.Errorf("must be >= 1, got %d", n)
	}
	return nil
}

// Boolean accepts "true" or "false".
func Boolean(v string) error {
	if v != "true" && v != "false" {
		return fmt.Errorf("%q is not a boolean; use true or false", v)
	}
	return nil
}

// FreeText accepts any string without shell control characters. Used for
// fields such as configmap data where the charset is otherwise open.
func FreeText(v string) error {
	if hasDangerousChars(v) {
		return fmt.Errorf("value contains forbidden control characters")
	}
	return nil
}

// Params is a validated parameter set. Builders consume only this type, never
// the raw request mapping.
type Params map[string]string

// Get returns the value for key, or the empty string.
func (p Params) Get(key string) string {
	return p[key]
}

// GetInt returns the integer value for key, or def if the key is absent.
// Values reach this accessor already validated as integers.
func (p Params) GetInt(key string, def int) int {
	v, ok := p[key]
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// GetBool returns the boolean value for key, false if absent.
func (p Params) GetBool(key string) bool {
	return p[key] == "true"
}
