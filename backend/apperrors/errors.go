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

import (
	"errors"
	"fmt"
	"net/http"
)

type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Constructors
func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func InvalidArg(msg string) error {
	return New(CodeInvalidArgument, msg)
}

func NotFound(msg string) error {
	return New(CodeNotFound, msg)
}

func Expired(msg string) error {
	return New(CodeExpired, msg)
}

func AlreadyUsed(msg string) error {
	return New(CodeAlreadyUsed, msg)
}

func SignatureInvalid(msg string) error {
	return New(CodeSignatureInvalid, msg)
}

func PermissionDenied(msg string) error {
	return New(CodePermissionDenied, msg)
}

func AccessDenied(msg string) error {
	return New(CodeAccessDenied, msg)
}

func RecipientNotFound(msg string) error {
	return New(CodeRecipientNotFound, msg)
}

func Internal(msg string) error {
	return New(CodeInternal, msg)
}

// CodeOf extracts the classification of err, or CodeUnknown if err was not
// produced by this package.
func CodeOf(err error) Code {
	var app *AppError
	if errors.As(err, &app) {
		return app.Code
	}
	return CodeUnknown
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// HTTPStatus maps a classified error to the status the handlers return.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeNotFound, CodeRecipientNotFound:
		return http.StatusNotFound
	case CodeExpired, CodeSignatureInvalid:
		return http.StatusUnauthorized
	case CodeAlreadyUsed:
		return http.StatusConflict
	case CodePermissionDenied, CodeAccessDenied:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
