// Copyright 2023 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package source

import (
	"context"
	"sort"

	"github.com/redis/go-redis/v9"
)

// SetMembersGetter is the subset of the Redis client API used by
// NewRedisFetcher. *redis.Client and *redis.ClusterClient implement it.
type SetMembersGetter interface {
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
}

// NewRedisFetcher returns a fetcher that reads host URLs from the members
// of a Redis set. Since sets are unordered, the URLs are sorted so that the
// round-robin order does not change between fetches.
//
// Combine it with NewPollingSource to pick up changes to the set.
func NewRedisFetcher(client SetMembersGetter, key string) Fetcher {
	return FetcherFunc(func(ctx context.Context) ([]string, error) {
		members, err := client.SMembers(ctx, key).Result()
		if err != nil {
			return nil, err
		}
		sort.Strings(members)
		return members, nil
	})
}
