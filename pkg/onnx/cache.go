/*
 *     Copyright 2025 The DLHub Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package onnx

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/MaxTuecke/dlhub-sdk/internal/cache"
)

// CachingIntrospector wraps an Introspector with a per-file result cache.
// A cache hit is only honored while the file's size and modification time
// are unchanged.
type CachingIntrospector struct {
	inner Introspector
	cache cache.Cache
}

// NewCachingIntrospector creates an introspector that caches topologies
// under dir.
func NewCachingIntrospector(inner Introspector, dir string) (*CachingIntrospector, error) {
	c, err := cache.New(dir)
	if err != nil {
		return nil, err
	}

	return &CachingIntrospector{inner: inner, cache: c}, nil
}

// Introspect returns the cached topology for path when fresh, otherwise
// delegates to the wrapped introspector and records the result. Cache
// failures are logged and swallowed, a broken cache never fails a publish.
func (c *CachingIntrospector) Introspect(path string) (*Topology, error) {
	ctx := context.Background()

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}

	item, err := c.cache.Get(ctx, abs)
	if err == nil && !item.Stale(info) {
		topology := &Topology{}
		if err := json.Unmarshal(item.Payload, topology); err == nil {
			return topology, nil
		}
	} else if err != nil && !errors.Is(err, cache.ErrNotFound) {
		logrus.Warnf("introspection cache read for %s failed: %v", abs, err)
	}

	topology, err := c.inner.Introspect(path)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(topology)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Put(ctx, &cache.Item{
		Path:      abs,
		ModTime:   info.ModTime(),
		Size:      info.Size(),
		Payload:   payload,
		CreatedAt: time.Now(),
	}); err != nil {
		logrus.Warnf("introspection cache write for %s failed: %v", abs, err)
	}

	return topology, nil
}
