// Copyright (C) 2025 sealchat.net <dev@sealchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package models

import "time"

// AllowListEntry is one row of an identity's allow list. A non-empty allow
// list is "active": only listed senders may reach the owner.
type AllowListEntry struct {
	OwnerAID string    `json:"owner_aid" db:"owner_aid"`
	OtherAID string    `json:"other_aid" db:"other_aid"`
	AddedAt  time.Time `json:"added_at" db:"added_at"`
	Note     string    `json:"note,omitempty" db:"note"`
}

// DenyListEntry is one row of an identity's deny list. Deny always wins
// over allow.
type DenyListEntry struct {
	OwnerAID string    `json:"owner_aid" db:"owner_aid"`
	OtherAID string    `json:"other_aid" db:"other_aid"`
	AddedAt  time.Time `json:"added_at" db:"added_at"`
	Note     string    `json:"note,omitempty" db:"note"`
}

// AccessDecision is the outcome of resolving one (owner, sender) pair.
type AccessDecision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}
