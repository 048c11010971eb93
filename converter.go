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
	"context"
	"reflect"
)

// Converter is the unified interface for all serialization. A converter
// encodes values of one type to MessagePack and decodes them back.
// Converters are immutable once published to the registry and are composed
// by reference.
type Converter interface {
	// Write emits exactly one MessagePack structure for value.
	Write(w *Writer, value reflect.Value, ctx *Context) error

	// Read consumes exactly one MessagePack structure into value, which
	// must be settable.
	Read(r *Reader, value reflect.Value, ctx *Context) error

	// PreferStream reports whether the streaming path should await this
	// converter directly instead of isolating a contiguous structure and
	// decoding it synchronously.
	PreferStream() bool
}

// StreamConverter is the optional streaming capability. Aggregate converters
// implement it to interleave element emission with flush checks on write and
// to refill the input buffer across suspension points on read.
type StreamConverter interface {
	Converter

	// WriteStream emits one structure, cooperatively flushing between
	// elements once the unflushed buffer exceeds the context threshold.
	WriteStream(ctx context.Context, sw *StreamWriter, value reflect.Value, sc *Context) error

	// ReadStream consumes one structure from the streaming reader.
	ReadStream(ctx context.Context, sr *StreamReader, value reflect.Value, sc *Context) error
}

// writeStreamOf dispatches to the converter's streaming write when it has
// one, and otherwise writes synchronously into the stream buffer followed by
// a flush check.
func writeStreamOf(c Converter, ctx context.Context, sw *StreamWriter, value reflect.Value, sc *Context) error {
	if s, ok := c.(StreamConverter); ok && c.PreferStream() {
		return s.WriteStream(ctx, sw, value, sc)
	}
	if err := c.Write(sw.Writer, value, sc); err != nil {
		return err
	}
	return sw.FlushIfNeeded(ctx, sc)
}

// readStreamOf dispatches to the converter's streaming read when it prefers
// one. Otherwise it isolates the next complete structure into a contiguous
// slice and decodes it synchronously; this fallback is the streaming fast
// path and must not be bypassed.
func readStreamOf(c Converter, ctx context.Context, sr *StreamReader, value reflect.Value, sc *Context) error {
	if s, ok := c.(StreamConverter); ok && c.PreferStream() {
		return s.ReadStream(ctx, sr, value, sc)
	}
	data, err := sr.NextStructure(ctx)
	if err != nil {
		return err
	}
	return c.Read(NewReader(data), value, sc)
}
