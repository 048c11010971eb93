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

import "encoding/binary"

// ============================================================================
// ByteBuffer - Growable byte buffer with independent reader/writer cursors
// ============================================================================

// ByteBuffer is the backing store for both the Writer and the Reader. Bytes
// are big-endian, matching the MessagePack wire order.
type ByteBuffer struct {
	data        []byte
	writerIndex int
	readerIndex int
}

// NewByteBuffer creates a buffer. A non-nil data slice is adopted as already
// written content.
func NewByteBuffer(data []byte) *ByteBuffer {
	return &ByteBuffer{data: data, writerIndex: len(data)}
}

// WriterIndex returns the write cursor position.
func (b *ByteBuffer) WriterIndex() int { return b.writerIndex }

// ReaderIndex returns the read cursor position.
func (b *ByteBuffer) ReaderIndex() int { return b.readerIndex }

// Remaining returns the number of unread bytes.
func (b *ByteBuffer) Remaining() int { return b.writerIndex - b.readerIndex }

// Reset rewinds both cursors without releasing capacity.
func (b *ByteBuffer) Reset() {
	b.writerIndex = 0
	b.readerIndex = 0
}

// Bytes returns the written content as a view.
func (b *ByteBuffer) Bytes() []byte {
	return b.data[:b.writerIndex]
}

// Slice returns a view of length n starting at off.
func (b *ByteBuffer) Slice(off, n int) []byte {
	return b.data[off : off+n]
}

func (b *ByteBuffer) grow(n int) {
	need := b.writerIndex + n
	if need <= cap(b.data) {
		b.data = b.data[:need]
		return
	}
	newCap := 2 * cap(b.data)
	if newCap < need {
		newCap = need
	}
	if newCap < 64 {
		newCap = 64
	}
	grown := make([]byte, need, newCap)
	copy(grown, b.data[:b.writerIndex])
	b.data = grown
}

// compact discards consumed bytes, keeping unread content at offset zero.
// Used by the streaming reader's forward-only buffer management.
func (b *ByteBuffer) compact() {
	if b.readerIndex == 0 {
		return
	}
	n := copy(b.data[:cap(b.data)], b.data[b.readerIndex:b.writerIndex])
	b.data = b.data[:n]
	b.writerIndex = n
	b.readerIndex = 0
}

// ---------------------------------------------------------------------------
// Writes
// ---------------------------------------------------------------------------

func (b *ByteBuffer) WriteByte_(v byte) {
	b.grow(1)
	b.data[b.writerIndex] = v
	b.writerIndex++
}

func (b *ByteBuffer) WriteBinary(v []byte) {
	b.grow(len(v))
	copy(b.data[b.writerIndex:], v)
	b.writerIndex += len(v)
}

func (b *ByteBuffer) WriteUint16(v uint16) {
	b.grow(2)
	binary.BigEndian.PutUint16(b.data[b.writerIndex:], v)
	b.writerIndex += 2
}

func (b *ByteBuffer) WriteUint32(v uint32) {
	b.grow(4)
	binary.BigEndian.PutUint32(b.data[b.writerIndex:], v)
	b.writerIndex += 4
}

func (b *ByteBuffer) WriteUint64(v uint64) {
	b.grow(8)
	binary.BigEndian.PutUint64(b.data[b.writerIndex:], v)
	b.writerIndex += 8
}

// WriteVarUint writes v in 7-bit groups, least significant first. The body
// of the reference extension token uses this encoding.
func (b *ByteBuffer) WriteVarUint(v uint64) int {
	n := 0
	for v >= 0x80 {
		b.WriteByte_(byte(v) | 0x80)
		v >>= 7
		n++
	}
	b.WriteByte_(byte(v))
	return n + 1
}

// ---------------------------------------------------------------------------
// Reads - every read is bounds-checked and fails with a truncation error
// ---------------------------------------------------------------------------

func (b *ByteBuffer) ReadByte_() (byte, error) {
	if b.Remaining() < 1 {
		return 0, truncatedError()
	}
	v := b.data[b.readerIndex]
	b.readerIndex++
	return v, nil
}

// PeekByte returns the next byte without consuming it.
func (b *ByteBuffer) PeekByte() (byte, error) {
	if b.Remaining() < 1 {
		return 0, truncatedError()
	}
	return b.data[b.readerIndex], nil
}

// ReadBinary returns a view of the next n bytes. The view aliases the buffer
// and is only valid until the buffer is reset or compacted.
func (b *ByteBuffer) ReadBinary(n int) ([]byte, error) {
	if n < 0 || b.Remaining() < n {
		return nil, truncatedError()
	}
	v := b.data[b.readerIndex : b.readerIndex+n]
	b.readerIndex += n
	return v, nil
}

func (b *ByteBuffer) SkipBytes(n int) error {
	if b.Remaining() < n {
		return truncatedError()
	}
	b.readerIndex += n
	return nil
}

func (b *ByteBuffer) ReadUint16() (uint16, error) {
	v, err := b.ReadBinary(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(v), nil
}

func (b *ByteBuffer) ReadUint32() (uint32, error) {
	v, err := b.ReadBinary(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(v), nil
}

func (b *ByteBuffer) ReadUint64() (uint64, error) {
	v, err := b.ReadBinary(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(v), nil
}

// ReadVarUint reads a 7-bit-group varint written by WriteVarUint.
func (b *ByteBuffer) ReadVarUint() (uint64, error) {
	var v uint64
	var shift uint
	for {
		c, err := b.ReadByte_()
		if err != nil {
			return 0, err
		}
		v |= uint64(c&0x7f) << shift
		if c < 0x80 {
			return v, nil
		}
		shift += 7
		if shift > 63 {
			return 0, formatErrorf("varint overflows uint64")
		}
	}
}
