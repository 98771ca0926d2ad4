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

package apperrors

// Code classifies every failure the trust layer can surface. Clients use
// the code to tell "retry with fresh credentials" apart from "not
// permitted"; raw internal errors are never exposed.
type Code string

const (
	CodeUnknown           Code = "UNKNOWN"
	CodeInvalidArgument   Code = "INVALID_ARGUMENT"
	CodeNotFound          Code = "NOT_FOUND"
	CodeExpired           Code = "EXPIRED"
	CodeAlreadyUsed       Code = "ALREADY_USED"
	CodeSignatureInvalid  Code = "SIGNATURE_INVALID"
	CodePermissionDenied  Code = "PERMISSION_DENIED"
	CodeAccessDenied      Code = "ACCESS_DENIED"
	CodeRecipientNotFound Code = "RECIPIENT_NOT_FOUND"
	CodeInternal          Code = "INTERNAL"
)
