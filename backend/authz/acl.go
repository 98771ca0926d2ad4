// Copyright (C) 2025 sealchat.net <dev@sealchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package authz

import (
	"context"

	"github.com/sealchat/sealcore/backend/models"
	"github.com/sealchat/sealcore/backend/storage"
)

const (
	reasonDenyListed   = "sender is on the owner's deny list"
	reasonNotAllowed   = "owner's allow list is active and does not include the sender"
	reasonDefaultAllow = ""
)

// ACLResolver answers "may sender reach owner" from the owner's allow and
// deny lists. Precedence: deny always wins; a non-empty allow list admits
// only its members; empty lists default to allow.
type ACLResolver struct {
	store storage.ACLStore
}

func NewACLResolver(store storage.ACLStore) *ACLResolver {
	return &ACLResolver{store: store}
}

// Resolve decides a single (owner, sender) pair.
func (r *ACLResolver) Resolve(ctx context.Context, ownerAID, senderAID string) (models.AccessDecision, error) {
	decisions, err := r.ResolveBatch(ctx, ownerAID, []string{senderAID})
	if err != nil {
		return models.AccessDecision{}, err
	}
	return decisions[senderAID], nil
}

// ResolveBatch decides every candidate sender against one owner using a
// bounded number of storage reads: one deny-list read and one allow-list
// read, regardless of the number of senders. This is what gates inbound
// message listing, so per-sender queries would not do.
func (r *ACLResolver) ResolveBatch(ctx context.Context, ownerAID string, senderAIDs []string) (map[string]models.AccessDecision, error) {
	denyEntries, err := r.store.GetDenyList(ctx, ownerAID)
	if err != nil {
		return nil, err
	}
	allowEntries, err := r.store.GetAllowList(ctx, ownerAID)
	if err != nil {
		return nil, err
	}

	denied := make(map[string]bool, len(denyEntries))
	for _, entry := range denyEntries {
		denied[entry.OtherAID] = true
	}
	allowed := make(map[string]bool, len(allowEntries))
	for _, entry := range allowEntries {
		allowed[entry.OtherAID] = true
	}
	allowListActive := len(allowEntries) > 0

	decisions := make(map[string]models.AccessDecision, len(senderAIDs))
	for _, sender := range senderAIDs {
		switch {
		case denied[sender]:
			decisions[sender] = models.AccessDecision{Allowed: false, Reason: reasonDenyListed}
		case allowListActive && !allowed[sender]:
			decisions[sender] = models.AccessDecision{Allowed: false, Reason: reasonNotAllowed}
		default:
			decisions[sender] = models.AccessDecision{Allowed: true, Reason: reasonDefaultAllow}
		}
	}
	return decisions, nil
}
