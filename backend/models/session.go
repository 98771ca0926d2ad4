// Copyright (C) 2025 sealchat.net <dev@sealchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package models

import "time"

// SessionToken is a short-lived bearer credential minted after a login
// challenge succeeds. It is valid only while KSNAtIssue still matches the
// identity's current KeyState: a key rotation invalidates every outstanding
// token for that identity.
type SessionToken struct {
	Token      string    `json:"token" db:"token"`
	AID        string    `json:"aid" db:"aid"`
	KSNAtIssue int       `json:"ksn_at_issue" db:"ksn_at_issue"`
	Scopes     []string  `json:"scopes" db:"scopes"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	ExpiresAt  time.Time `json:"expires_at" db:"expires_at"`
	UseCount   int64     `json:"use_count" db:"use_count"`
}
