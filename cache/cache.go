// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package cache

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog/log"
)

// Cache stores HTTP response bodies on disk so repeated fetches of the same
// document within TTL do not hit the remote API again
type Cache struct {
	db  *badger.DB
	ttl time.Duration
}

// Open creates or opens the cache stored in dir
func Open(dir string, ttl time.Duration) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	opts := badger.DefaultOptions(dir).WithLogger(nil)
	return open(opts, ttl)
}

// OpenInMemory creates a cache that is discarded on Close
func OpenInMemory(ttl time.Duration) (*Cache, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	return open(opts, ttl)
}

func open(opts badger.Options, ttl time.Duration) (*Cache, error) {
	db, err := badger.Open(opts)
	if err != nil {
		log.Error().Err(err).Str("Directory", opts.Dir).Msg("failed to open response cache")
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	return &Cache{
		db:  db,
		ttl: ttl,
	}, nil
}

// Get returns the cached value of key; ok is false when the key is absent or
// expired
func (cache *Cache) Get(key string) (val []byte, ok bool, err error) {
	if cache == nil {
		return nil, false, nil
	}

	err = cache.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}

		val, err = item.ValueCopy(nil)
		return err
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, err
	}

	return val, true, nil
}

// Set stores val under key with the cache TTL; a zero TTL never expires
func (cache *Cache) Set(key string, val []byte) error {
	if cache == nil {
		return nil
	}

	return cache.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), val)
		if cache.ttl > 0 {
			entry = entry.WithTTL(cache.ttl)
		}

		return txn.SetEntry(entry)
	})
}

func (cache *Cache) Close() error {
	if cache == nil {
		return nil
	}

	return cache.db.Close()
}
