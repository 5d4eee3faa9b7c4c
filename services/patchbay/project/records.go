// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// Record is a stored project: a named graph snapshot plus timestamps.
// Snapshot is kept opaque; the store never interprets the graph inside it.
type Record struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Snapshot  json.RawMessage `json:"snapshot"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Info is the listing view of a project, without the snapshot payload.
type Info struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func recordKey(id string) []byte {
	return []byte("project:" + id)
}

func nameKey(normalized string) []byte {
	return []byte("projectname:" + normalized)
}

var recordPrefix = []byte("project:")

// normalizeName produces the collision key for a project name.
func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Save stores a new project and returns its generated id.
//
// Description:
//
//	Validates the name and snapshot, claims the name in the index, and
//	writes the record in a single transaction. CreatedAt and UpdatedAt
//	are both set to now.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	name - Display name. Must be non-empty after trimming.
//	snap - Graph snapshot JSON. Stored verbatim.
//
// Outputs:
//
//	string - The new project id.
//	error - ErrEmptyName, ErrInvalidSnapshot, ErrNameTaken, or a storage error.
//
// Thread Safety: Safe for concurrent use.
func (s *Store) Save(ctx context.Context, name string, snap []byte) (string, error) {
	name = strings.TrimSpace(name)
	norm := normalizeName(name)
	if norm == "" {
		return "", ErrEmptyName
	}
	if !json.Valid(snap) {
		return "", ErrInvalidSnapshot
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	rec := Record{
		ID:        id,
		Name:      name,
		Snapshot:  json.RawMessage(snap),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.withTxn(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(nameKey(norm)); err == nil {
			return fmt.Errorf("%w: %s", ErrNameTaken, name)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check name index: %w", err)
		}
		return s.putRecord(txn, rec, norm)
	})
	if err != nil {
		return "", err
	}

	s.log.Debug("project saved", "id", id, "name", name)
	return id, nil
}

// Update replaces an existing project's name and snapshot.
//
// Description:
//
//	Loads the record, re-checks name ownership, moves the name index
//	entry if the normalized name changed, and writes the updated record
//	in a single transaction. CreatedAt is preserved; UpdatedAt is set
//	to now.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	id - Project id to update.
//	name - New display name. Must be non-empty after trimming.
//	snap - New graph snapshot JSON.
//
// Outputs:
//
//	error - ErrProjectNotFound, ErrEmptyName, ErrInvalidSnapshot,
//	ErrNameTaken, or a storage error.
//
// Thread Safety: Safe for concurrent use.
func (s *Store) Update(ctx context.Context, id, name string, snap []byte) error {
	name = strings.TrimSpace(name)
	norm := normalizeName(name)
	if norm == "" {
		return ErrEmptyName
	}
	if !json.Valid(snap) {
		return ErrInvalidSnapshot
	}

	err := s.withTxn(ctx, func(txn *badger.Txn) error {
		rec, err := getRecord(txn, id)
		if err != nil {
			return err
		}

		oldNorm := normalizeName(rec.Name)
		if norm != oldNorm {
			owner, err := nameOwner(txn, norm)
			if err != nil {
				return err
			}
			if owner != "" && owner != id {
				return fmt.Errorf("%w: %s", ErrNameTaken, name)
			}
			if err := txn.Delete(nameKey(oldNorm)); err != nil {
				return fmt.Errorf("drop name index: %w", err)
			}
		}

		rec.Name = name
		rec.Snapshot = json.RawMessage(snap)
		rec.UpdatedAt = time.Now().UTC()
		return s.putRecord(txn, rec, norm)
	})
	if err != nil {
		return err
	}

	s.log.Debug("project updated", "id", id, "name", name)
	return nil
}

// Load returns the stored record for a project id.
//
// Outputs:
//
//	Record - The stored project, snapshot included.
//	error - ErrProjectNotFound or a storage error.
//
// Thread Safety: Safe for concurrent use.
func (s *Store) Load(ctx context.Context, id string) (Record, error) {
	var rec Record
	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		var err error
		rec, err = getRecord(txn, id)
		return err
	})
	return rec, err
}

// Delete removes a project and releases its name.
//
// Outputs:
//
//	error - ErrProjectNotFound or a storage error.
//
// Thread Safety: Safe for concurrent use.
func (s *Store) Delete(ctx context.Context, id string) error {
	err := s.withTxn(ctx, func(txn *badger.Txn) error {
		rec, err := getRecord(txn, id)
		if err != nil {
			return err
		}
		if err := txn.Delete(recordKey(id)); err != nil {
			return fmt.Errorf("delete record: %w", err)
		}
		if err := txn.Delete(nameKey(normalizeName(rec.Name))); err != nil {
			return fmt.Errorf("drop name index: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Debug("project deleted", "id", id)
	return nil
}

// ListAll returns every project's listing info, most recently updated first.
// Ties are broken by name.
//
// Thread Safety: Safe for concurrent use.
func (s *Store) ListAll(ctx context.Context) ([]Info, error) {
	infos := make([]Info, 0)
	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(recordPrefix); it.ValidForPrefix(recordPrefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var rec Record
				if err := json.Unmarshal(val, &rec); err != nil {
					return fmt.Errorf("decode record %s: %w", it.Item().Key(), err)
				}
				infos = append(infos, Info{ID: rec.ID, Name: rec.Name, UpdatedAt: rec.UpdatedAt})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].UpdatedAt.Equal(infos[j].UpdatedAt) {
			return infos[i].UpdatedAt.After(infos[j].UpdatedAt)
		}
		return infos[i].Name < infos[j].Name
	})
	return infos, nil
}

// NameExists reports whether a project other than excludeID owns the name.
//
// Description:
//
//	Point lookup against the name index. Pass excludeID to ignore a
//	project's own name during save-as and rename flows, or "" to match
//	any owner.
//
// Thread Safety: Safe for concurrent use.
func (s *Store) NameExists(ctx context.Context, name, excludeID string) (bool, error) {
	norm := normalizeName(name)
	if norm == "" {
		return false, nil
	}

	var exists bool
	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		owner, err := nameOwner(txn, norm)
		if err != nil {
			return err
		}
		exists = owner != "" && owner != excludeID
		return nil
	})
	return exists, err
}

// putRecord writes the record and its name index entry.
func (s *Store) putRecord(txn *badger.Txn, rec Record, norm string) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := txn.Set(recordKey(rec.ID), data); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	if err := txn.Set(nameKey(norm), []byte(rec.ID)); err != nil {
		return fmt.Errorf("write name index: %w", err)
	}
	return nil
}

// getRecord reads and decodes a record, mapping missing keys to
// ErrProjectNotFound.
func getRecord(txn *badger.Txn, id string) (Record, error) {
	var rec Record
	item, err := txn.Get(recordKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return rec, errNotFound(id)
	}
	if err != nil {
		return rec, fmt.Errorf("read record: %w", err)
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	if err != nil {
		return rec, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

// nameOwner returns the id owning a normalized name, or "" when unclaimed.
func nameOwner(txn *badger.Txn, norm string) (string, error) {
	item, err := txn.Get(nameKey(norm))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read name index: %w", err)
	}
	var id string
	err = item.Value(func(val []byte) error {
		id = string(val)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("read name index: %w", err)
	}
	return id, nil
}
