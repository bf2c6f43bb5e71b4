// Copyright 2025 Kadir Pekel
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

package engine

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// queryCache is the in-memory tier of the cache: a bounded LRU of
// recent search responses keyed by the normalized query and k. The
// persisted embeddings file is the other tier, owned by pkg/vector.
type queryCache struct {
	lru *lru.Cache[string, *SearchResponse]
}

func newQueryCache(size int) (*queryCache, error) {
	c, err := lru.New[string, *SearchResponse](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create query cache: %w", err)
	}
	return &queryCache{lru: c}, nil
}

// normalizeQuery lowercases and collapses whitespace so trivially
// different spellings of the same query share a cache entry.
func normalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

func cacheKey(query string, k int) string {
	return fmt.Sprintf("%s|k=%d", normalizeQuery(query), k)
}

func (c *queryCache) get(query string, k int) (*SearchResponse, bool) {
	return c.lru.Get(cacheKey(query, k))
}

func (c *queryCache) put(query string, k int, resp *SearchResponse) {
	c.lru.Add(cacheKey(query, k), resp)
}

func (c *queryCache) purge() {
	c.lru.Purge()
}

func (c *queryCache) len() int {
	return c.lru.Len()
}
