// Copyright (C) 2025 sealchat.net <dev@sealchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package postgres

import (
	"context"
	"time"

	"github.com/sealchat/sealcore/backend/models"
)

func (s *Store) AddAllowEntry(ctx context.Context, entry models.AllowListEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO allow_list_entries (owner_aid, other_aid, added_at, note)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner_aid, other_aid) DO UPDATE SET note = $4`,
		entry.OwnerAID, entry.OtherAID, time.Now(), entry.Note)
	return err
}

func (s *Store) RemoveAllowEntry(ctx context.Context, ownerAID, otherAID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM allow_list_entries
		WHERE owner_aid = $1 AND other_aid = $2`, ownerAID, otherAID)
	return err
}

func (s *Store) AddDenyEntry(ctx context.Context, entry models.DenyListEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deny_list_entries (owner_aid, other_aid, added_at, note)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner_aid, other_aid) DO UPDATE SET note = $4`,
		entry.OwnerAID, entry.OtherAID, time.Now(), entry.Note)
	return err
}

func (s *Store) RemoveDenyEntry(ctx context.Context, ownerAID, otherAID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM deny_list_entries
		WHERE owner_aid = $1 AND other_aid = $2`, ownerAID, otherAID)
	return err
}

func (s *Store) GetAllowList(ctx context.Context, ownerAID string) ([]models.AllowListEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT owner_aid, other_aid, added_at, note
		FROM allow_list_entries
		WHERE owner_aid = $1
		ORDER BY other_aid`, ownerAID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.AllowListEntry
	for rows.Next() {
		var entry models.AllowListEntry
		if err := rows.Scan(&entry.OwnerAID, &entry.OtherAID, &entry.AddedAt, &entry.Note); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Store) GetDenyList(ctx context.Context, ownerAID string) ([]models.DenyListEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT owner_aid, other_aid, added_at, note
		FROM deny_list_entries
		WHERE owner_aid = $1
		ORDER BY other_aid`, ownerAID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.DenyListEntry
	for rows.Next() {
		var entry models.DenyListEntry
		if err := rows.Scan(&entry.OwnerAID, &entry.OtherAID, &entry.AddedAt, &entry.Note); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
