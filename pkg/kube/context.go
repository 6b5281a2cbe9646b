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

// Package kube caches advisory cluster context (current kubectl context and
// default namespace) so every request does not pay for two extra kubectl
// invocations.
package kube

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"k8s.io/klog/v2"

	"github.com/kubegate/kubegate/pkg/api"
	"github.com/kubegate/kubegate/pkg/catalog"
	"github.com/kubegate/kubegate/pkg/executor"
)

// DefaultTTL is how long a fetched cluster context stays fresh.
const DefaultTTL = 60 * time.Second

// RefreshFunc fetches the current cluster context.
type RefreshFunc func(ctx context.Context) (*api.ClusterContext, error)

// ContextCache is a single-slot cache with a freshness window. While one
// caller refreshes a stale entry, the others keep reading the stale value
// rather than blocking behind the kubectl invocations.
type ContextCache struct {
	refresh RefreshFunc
	ttl     time.Duration
	clock   func() time.Time
	group   singleflight.Group

	mu         sync.Mutex
	cached     *api.ClusterContext
	fetchedAt  time.Time
	refreshing bool
}

// NewContextCache builds a cache over refresh. A ttl of zero means
// DefaultTTL.
func NewContextCache(refresh RefreshFunc, ttl time.Duration) *ContextCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ContextCache{
		refresh: refresh,
		ttl:     ttl,
		clock:   time.Now,
	}
}

// Current returns the cached cluster context, refreshing it when stale.
// The information is advisory: on refresh failure the last known value (or
// nil) is returned rather than an error.
func (c *ContextCache) Current(ctx context.Context) *api.ClusterContext {
	c.mu.Lock()
	if c.cached != nil && c.clock().Sub(c.fetchedAt) < c.ttl {
		cached := c.cached
		c.mu.Unlock()
		return cached
	}
	if c.cached != nil && c.refreshing {
		// Another caller is already refreshing; a stale read is fine.
		cached := c.cached
		c.mu.Unlock()
		return cached
	}
	c.refreshing = true
	c.mu.Unlock()

	// The mutex is not held across the refresh, which runs kubectl.
	// Cold-start callers with nothing to serve share a single flight.
	v, err, _ := c.group.Do("refresh", func() (any, error) {
		return c.refresh(ctx)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshing = false
	if err != nil {
		klog.FromContext(ctx).V(2).Info("cluster context refresh failed", "err", err)
		return c.cached
	}
	c.cached = v.(*api.ClusterContext)
	c.fetchedAt = c.clock()
	return c.cached
}

// Invalidate drops the cached value so the next Current refetches.
func (c *ContextCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached = nil
}

// ExecutorRefresher builds a RefreshFunc that asks kubectl for the current
// context and the default namespace of that context.
func ExecutorRefresher(exec executor.Executor) RefreshFunc {
	return func(ctx context.Context) (*api.ClusterContext, error) {
		info := &api.ClusterContext{}

		res := exec.Execute(ctx, &catalog.Command{
			Args: []string{"config", "current-context"},
		}, 10*time.Second)
		if res.Outcome != api.OutcomeSucceeded {
			return nil, contextError(res)
		}
		info.CurrentContext = strings.TrimSpace(res.Stdout)

		res = exec.Execute(ctx, &catalog.Command{
			Args: []string{"config", "view", "--minify", "-o", "jsonpath={..namespace}"},
		}, 10*time.Second)
		if res.Outcome == api.OutcomeSucceeded {
			info.DefaultNamespace = strings.TrimSpace(res.Stdout)
		}
		if info.DefaultNamespace == "" {
			info.DefaultNamespace = "default"
		}

		return info, nil
	}
}

func contextError(res *api.ExecutionResult) error {
	msg := strings.TrimSpace(res.Stderr)
	if msg == "" {
		msg = res.Error
	}
	if msg == "" {
		msg = string(res.Outcome)
	}
	return fmt.Errorf("fetching cluster context: %s", msg)
}
