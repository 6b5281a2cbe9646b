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

package api

import "fmt"

// Validation failure reasons. Missing and malformed are distinct so callers
// can surface actionable messages.
const (
	ReasonMissing   = "missing"
	ReasonMalformed = "malformed"
)

// ValidationError reports a bad or absent request parameter. It is resolved
// at the boundary and never reaches the executor.
type ValidationError struct {
	Field  string
	Reason string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("invalid parameter %q (%s): %s", e.Field, e.Reason, e.Detail)
	}
	return fmt.Sprintf("invalid parameter %q (%s)", e.Field, e.Reason)
}

// UnknownInstructionError reports an instruction name that is not in the
// catalog. No execution is ever attempted for it.
type UnknownInstructionError struct {
	Name string
}

func (e *UnknownInstructionError) Error() string {
	return fmt.Sprintf("unknown instruction %q", e.Name)
}

// BuildError reports that a validated request could not be turned into an
// argument vector.
type BuildError struct {
	Instruction string
	Detail      string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("building command for %q: %s", e.Instruction, e.Detail)
}
