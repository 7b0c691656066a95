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

// Package kvstore abstracts the platform's key-value backend behind an
// injected Store interface so services can be tested against an in-memory
// implementation. Values are whole-document JSON snapshots; there are no
// transactions and no partial updates.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	ErrClosed = errors.New("kvstore: store closed")
)

// Store is the key-value persistence contract. Get reports absence via the
// found flag rather than an error; Set overwrites the whole value.
type Store interface {
	// Get unmarshals the value at key into dst. When the key is absent,
	// dst is left untouched and found is false.
	Get(ctx context.Context, key string, dst any) (found bool, err error)

	// Set marshals value to JSON and overwrites the key.
	Set(ctx context.Context, key string, value any) error

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists all keys with the given prefix, in no particular order.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// GetOr reads key into a value of type T, returning def when the key is
// absent or the read fails. Reads degrade to the default rather than
// surfacing store errors; writes are where failures are reported.
func GetOr[T any](ctx context.Context, s Store, key string, def T) T {
	var v T
	found, err := s.Get(ctx, key, &v)
	if err != nil || !found {
		return def
	}
	return v
}

// Raw fetches the unparsed JSON snapshot at key. Used by the change feed to
// diff successive polls without knowing the value's shape.
func Raw(ctx context.Context, s Store, key string) (json.RawMessage, bool, error) {
	var raw json.RawMessage
	found, err := s.Get(ctx, key, &raw)
	return raw, found, err
}
