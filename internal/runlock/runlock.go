// Copyright (c) 2026 John Earle
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

// Package runlock provides a Redis SET NX run lock so overlapping cron
// invocations of the batch job do not double-process the same queue. The
// TTL bounds how long a crashed run can block the next one.
package runlock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "fps:runlock:"

// releaseScript deletes the lock only if this process still owns it, so a
// run that outlived its TTL cannot release a successor's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock is a single-use run lock.
type Lock struct {
	rdb   *redis.Client
	key   string
	value string
	ttl   time.Duration
}

// New creates a run lock for the given name.
func New(rdb *redis.Client, name string, ttl time.Duration) *Lock {
	return &Lock{
		rdb:   rdb,
		key:   keyPrefix + name,
		value: uuid.New().String(),
		ttl:   ttl,
	}
}

// Acquire tries to take the lock. Returns false when another run holds it.
func (l *Lock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, l.key, l.value, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("runlock SETNX: %w", err)
	}
	return ok, nil
}

// Release gives the lock back if this process still owns it.
func (l *Lock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.rdb, []string{l.key}, l.value).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("runlock release: %w", err)
	}
	return nil
}
