// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package msgpack

import (
	"errors"

	"golang.org/x/xerrors"
)

// ErrKind tags every error surfaced by this package.
type ErrKind int

const (
	// ErrFormat indicates input bytes that are not valid MessagePack, or a
	// type code that disagrees with the decode target.
	ErrFormat ErrKind = iota + 1
	// ErrTruncated indicates the input ended inside a token. Synchronous
	// reads only; the streaming reader refills instead.
	ErrTruncated
	// ErrUnexpectedNil indicates nil on the wire where a non-optional value
	// was required.
	ErrUnexpectedNil
	// ErrDepthExceeded indicates the nesting depth budget went negative.
	ErrDepthExceeded
	// ErrShape indicates an ill-formed type shape (mixed key attributes,
	// duplicate union alias, and similar). Fatal to converter synthesis.
	ErrShape
	// ErrNotSupported indicates an operation the shape cannot support, such
	// as reading into a non-constructible collection or resolving an unknown
	// reference sequence number.
	ErrNotSupported
	// ErrCanceled indicates a streaming operation observed context
	// cancellation.
	ErrCanceled
)

func (k ErrKind) String() string {
	switch k {
	case ErrFormat:
		return "format"
	case ErrTruncated:
		return "truncated"
	case ErrUnexpectedNil:
		return "unexpected nil"
	case ErrDepthExceeded:
		return "depth exceeded"
	case ErrShape:
		return "shape"
	case ErrNotSupported:
		return "not supported"
	case ErrCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Error is the single error type surfaced by the engine.
type Error struct {
	Kind ErrKind
	err  error
}

func (e *Error) Error() string {
	return "msgpack: " + e.Kind.String() + ": " + e.err.Error()
}

func (e *Error) Unwrap() error {
	return e.err
}

// KindOf extracts the ErrKind from err, or 0 if err does not originate here.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func newError(kind ErrKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, err: xerrors.Errorf(format, args...)}
}

func formatErrorf(format string, args ...interface{}) *Error {
	return newError(ErrFormat, format, args...)
}

func truncatedError() *Error {
	return newError(ErrTruncated, "unexpected end of input")
}

func unexpectedNilError(typeName string) *Error {
	return newError(ErrUnexpectedNil, "nil encountered for non-optional %s", typeName)
}

func depthExceededError(limit int) *Error {
	return newError(ErrDepthExceeded, "nesting depth exceeds %d", limit)
}

func shapeErrorf(format string, args ...interface{}) *Error {
	return newError(ErrShape, format, args...)
}

func notSupportedErrorf(format string, args ...interface{}) *Error {
	return newError(ErrNotSupported, format, args...)
}

func canceledError(cause error) *Error {
	return &Error{Kind: ErrCanceled, err: xerrors.Errorf("operation canceled: %w", cause)}
}
