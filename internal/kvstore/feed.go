// Copyright 2026 The FleetSync Authors
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

package kvstore

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Snapshot is one observed state of a key. Present is false when the key
// does not exist, which is a meaningful state (a deleted location sample
// signals that tracking stopped).
type Snapshot struct {
	Value   json.RawMessage
	Present bool
}

// Feed turns the store into a change-notification source by polling and
// diffing whole-value snapshots. Callback latency is bounded by the poll
// interval; a rapid sequence of writes between polls collapses to a single
// visible update. Only the most recent observed write is delivered.
type Feed struct {
	store    Store
	interval time.Duration
}

// NewFeed creates a change feed polling at the given interval.
func NewFeed(store Store, interval time.Duration) *Feed {
	if interval <= 0 {
		interval = time.Second
	}
	return &Feed{store: store, interval: interval}
}

// Subscription is the unsubscribe handle returned by Subscribe.
type Subscription struct {
	stop chan struct{}
	once sync.Once
}

// Unsubscribe stops the watcher. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() { close(s.stop) })
}

// Subscribe registers a poll-and-diff watcher on key. onChange fires with
// the first observed state and then whenever a poll observes a different
// value (or a different presence) than the last delivered snapshot. Poll
// errors are logged and skipped; the last delivered snapshot stands until a
// poll succeeds.
func (f *Feed) Subscribe(ctx context.Context, key string, onChange func(Snapshot)) *Subscription {
	sub := &Subscription{stop: make(chan struct{})}
	go f.watch(ctx, key, onChange, sub.stop)
	return sub
}

func (f *Feed) watch(ctx context.Context, key string, onChange func(Snapshot), stop chan struct{}) {
	var (
		last        json.RawMessage
		lastPresent bool
		seeded      bool
	)

	poll := func() {
		pollCtx, cancel := context.WithTimeout(ctx, f.interval)
		raw, present, err := Raw(pollCtx, f.store, key)
		cancel()
		if err != nil {
			slog.WarnContext(ctx, "feed poll failed",
				slog.String("key", key), slog.String("error", err.Error()))
			return
		}
		if seeded && present == lastPresent && bytes.Equal(raw, last) {
			return
		}
		last, lastPresent, seeded = raw, present, true
		onChange(Snapshot{Value: raw, Present: present})
	}

	poll()

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			poll()
		}
	}
}
