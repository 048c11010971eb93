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
	"io"
)

// ============================================================================
// StreamWriter - flush-thresholded emission to an io.Writer
// ============================================================================

// StreamWriter buffers MessagePack tokens and hands the buffer to the
// transport once it crosses the context's flush threshold. Aggregate
// converters call FlushIfNeeded between elements so large structures never
// hold the whole encoding in memory.
type StreamWriter struct {
	*Writer
	sink io.Writer
}

// NewStreamWriter creates a StreamWriter over the given transport.
func NewStreamWriter(sink io.Writer) *StreamWriter {
	return &StreamWriter{Writer: NewWriter(), sink: sink}
}

// TimeToFlush reports whether the unflushed buffer exceeds the threshold.
func (sw *StreamWriter) TimeToFlush(sc *Context) bool {
	return sw.Buffer().WriterIndex() > sc.flushThreshold
}

// FlushIfNeeded flushes when the threshold is exceeded. Called at element
// boundaries by aggregate stream writers.
func (sw *StreamWriter) FlushIfNeeded(ctx context.Context, sc *Context) error {
	if !sw.TimeToFlush(sc) {
		return nil
	}
	return sw.Flush(ctx)
}

// Flush hands all buffered bytes to the transport.
func (sw *StreamWriter) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return canceledError(err)
	}
	if sw.Buffer().WriterIndex() == 0 {
		return nil
	}
	if _, err := sw.sink.Write(sw.Bytes()); err != nil {
		return err
	}
	sw.Reset()
	return nil
}

// ============================================================================
// StreamReader - forward-only buffered consumption of an io.Reader
// ============================================================================

const streamReadChunk = 4096

// StreamReader consumes MessagePack tokens from a transport, refilling its
// forward-only buffer whenever a token is incomplete. Views returned by its
// methods are valid only until the next refill.
type StreamReader struct {
	src io.Reader
	r   *Reader
}

// NewStreamReader creates a StreamReader over the given transport.
func NewStreamReader(src io.Reader) *StreamReader {
	return &StreamReader{src: src, r: NewReaderBuffer(NewByteBuffer(nil))}
}

// fill appends one transport read to the buffer. An exhausted transport
// surfaces as truncated input.
func (sr *StreamReader) fill(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return canceledError(err)
	}
	buf := sr.r.Buffer()
	buf.compact()
	var chunk [streamReadChunk]byte
	n, err := sr.src.Read(chunk[:])
	if n > 0 {
		buf.WriteBinary(chunk[:n])
		return nil
	}
	if err == io.EOF || err == nil {
		return truncatedError()
	}
	return err
}

// retry runs a token read, refilling and retrying for as long as the read
// reports truncation. The read cursor is rewound before every retry.
func (sr *StreamReader) retry(ctx context.Context, read func() error) error {
	for {
		mark := sr.r.Buffer().ReaderIndex()
		err := read()
		if err == nil || KindOf(err) != ErrTruncated {
			return err
		}
		sr.r.Buffer().readerIndex = mark
		if err := sr.fill(ctx); err != nil {
			return err
		}
	}
}

// TryReadNil consumes a nil token if one is next.
func (sr *StreamReader) TryReadNil(ctx context.Context) (bool, error) {
	var out bool
	err := sr.retry(ctx, func() error {
		v, err := sr.r.TryReadNil()
		out = v
		return err
	})
	return out, err
}

// ReadArrayHeader reads an array header, suspending for more input as
// needed.
func (sr *StreamReader) ReadArrayHeader(ctx context.Context) (int, error) {
	var out int
	err := sr.retry(ctx, func() error {
		v, err := sr.r.ReadArrayHeader()
		out = v
		return err
	})
	return out, err
}

// ReadMapHeader reads a map header.
func (sr *StreamReader) ReadMapHeader(ctx context.Context) (int, error) {
	var out int
	err := sr.retry(ctx, func() error {
		v, err := sr.r.ReadMapHeader()
		out = v
		return err
	})
	return out, err
}

// ReadStringBytes reads a str token. The returned view is invalidated by
// the next refill; callers use it before reading further.
func (sr *StreamReader) ReadStringBytes(ctx context.Context) ([]byte, error) {
	var out []byte
	err := sr.retry(ctx, func() error {
		v, err := sr.r.ReadStringBytes()
		out = v
		return err
	})
	return out, err
}

// NextStructure isolates one complete structure into a contiguous view and
// advances past it. Element converters that do not prefer the streaming
// path decode synchronously from this view.
func (sr *StreamReader) NextStructure(ctx context.Context) ([]byte, error) {
	var out []byte
	err := sr.retry(ctx, func() error {
		v, err := sr.r.ReadNextStructure()
		out = v
		return err
	})
	return out, err
}

// SkipStructure advances past one structure.
func (sr *StreamReader) SkipStructure(ctx context.Context) error {
	_, err := sr.NextStructure(ctx)
	return err
}
