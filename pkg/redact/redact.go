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

// Package redact scrubs secret-shaped values from structured log payloads
// before they are persisted.
package redact

import (
	"regexp"
	"strings"
)

// Marker replaces every redacted value.
const Marker = "***REDACTED***"

// Keys whose values are always redacted, regardless of shape.
var sensitiveKeys = map[string]bool{
	"api_key":        true,
	"apikey":         true,
	"openai_api_key": true,
	"token":          true,
	"password":       true,
	"secret":         true,
	"credential":     true,
	"authorization":  true,
}

var secretPatterns = []*regexp.Regexp{
	// OpenAI-style API keys
	regexp.MustCompile(`\bsk-[A-Za-z0-9_-]{8,}\b`),
	// Bearer tokens
	regexp.MustCompile(`\b[Bb]earer\s+[A-Za-z0-9._~+/-]+=*`),
	// AWS access key IDs
	regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`),
}

// String replaces secret-shaped substrings of s with the marker.
func String(s string) string {
	for _, re := range secretPatterns {
		s = re.ReplaceAllString(s, Marker)
	}
	return s
}

// Value redacts a structured payload recursively. Maps keyed by a sensitive
// name lose their value entirely; every string is pattern-scrubbed. The
// input is not modified.
func Value(v any) any {
	switch t := v.(type) {
	case string:
		return String(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if sensitiveKeys[strings.ToLower(k)] {
				out[k] = Marker
				continue
			}
			out[k] = Value(val)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, val := range t {
			if sensitiveKeys[strings.ToLower(k)] {
				out[k] = Marker
				continue
			}
			out[k] = String(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Value(val)
		}
		return out
	case []string:
		out := make([]string, len(t))
		for i, val := range t {
			out[i] = String(val)
		}
		return out
	default:
		return v
	}
}
