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

package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"k8s.io/klog/v2"
)

// DefaultIsRetryableError classifies transient provider failures based on
// common HTTP codes and network timeouts.
func DefaultIsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusConflict, http.StatusTooManyRequests,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		default:
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// RetryConfig holds the configuration for the retry mechanism.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	Jitter         bool
}

// DefaultRetryConfig provides sensible defaults.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:    3,
	InitialBackoff: 2 * time.Second,
	MaxBackoff:     30 * time.Second,
	BackoffFactor:  2.0,
	Jitter:         true,
}

// NewRetryChat wraps a Chat so transient send failures are retried with
// exponential backoff.
func NewRetryChat(underlying Chat, config RetryConfig) Chat {
	return &retryChat{underlying: underlying, config: config}
}

type retryChat struct {
	underlying Chat
	config     RetryConfig
}

func (rc *retryChat) SetFunctionDefinitions(defs []*FunctionDefinition) error {
	return rc.underlying.SetFunctionDefinitions(defs)
}

func (rc *retryChat) IsRetryableError(err error) bool {
	return rc.underlying.IsRetryableError(err)
}

func (rc *retryChat) Send(ctx context.Context, contents ...any) (Response, error) {
	log := klog.FromContext(ctx)

	var lastErr error
	backoff := rc.config.InitialBackoff

	for attempt := 1; attempt <= rc.config.MaxAttempts; attempt++ {
		resp, err := rc.underlying.Send(ctx, contents...)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !rc.underlying.IsRetryableError(err) {
			return nil, err
		}
		if attempt == rc.config.MaxAttempts {
			break
		}

		waitTime := backoff
		if rc.config.Jitter {
			waitTime += time.Duration(rand.Float64() * float64(backoff) / 2)
		}
		log.Info("Retryable send failure, waiting before next attempt", "attempt", attempt, "waitTime", waitTime, "error", err)

		select {
		case <-time.After(waitTime):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		backoff = time.Duration(float64(backoff) * rc.config.BackoffFactor)
		if backoff > rc.config.MaxBackoff {
			backoff = rc.config.MaxBackoff
		}
	}
	return nil, fmt.Errorf("send failed after %d attempts: %w", rc.config.MaxAttempts, lastErr)
}
