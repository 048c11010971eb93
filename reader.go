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
	"math"
)

// ============================================================================
// Reader - MessagePack token consumption
// ============================================================================

// Reader consumes MessagePack tokens from a ByteBuffer. Every Read* call
// advances the cursor past exactly one token. A type code that disagrees
// with the requested read fails with a format error; running out of bytes
// fails with a truncation error.
type Reader struct {
	buf *ByteBuffer
}

// NewReader creates a Reader over the given input.
func NewReader(data []byte) *Reader {
	return &Reader{buf: NewByteBuffer(data)}
}

// NewReaderBuffer creates a Reader over an existing buffer.
func NewReaderBuffer(buf *ByteBuffer) *Reader {
	return &Reader{buf: buf}
}

// Buffer returns the backing buffer.
func (r *Reader) Buffer() *ByteBuffer { return r.buf }

// PeekCode returns the next format code without consuming it.
func (r *Reader) PeekCode() (byte, error) {
	return r.buf.PeekByte()
}

// TryReadNil consumes a nil token if one is next and reports whether it did.
func (r *Reader) TryReadNil() (bool, error) {
	c, err := r.buf.PeekByte()
	if err != nil {
		return false, err
	}
	if c != codeNil {
		return false, nil
	}
	_, _ = r.buf.ReadByte_()
	return true, nil
}

func (r *Reader) ReadBool() (bool, error) {
	c, err := r.buf.ReadByte_()
	if err != nil {
		return false, err
	}
	switch c {
	case codeTrue:
		return true, nil
	case codeFalse:
		return false, nil
	default:
		return false, formatErrorf("expected bool, found code 0x%02x", c)
	}
}

// ReadInt64 reads any integer token that fits a signed 64-bit value.
func (r *Reader) ReadInt64() (int64, error) {
	c, err := r.buf.ReadByte_()
	if err != nil {
		return 0, err
	}
	switch {
	case isFixInt(c):
		return int64(c), nil
	case isNegFixInt(c):
		return int64(int8(c)), nil
	}
	switch c {
	case codeInt8:
		v, err := r.buf.ReadByte_()
		return int64(int8(v)), err
	case codeInt16:
		v, err := r.buf.ReadUint16()
		return int64(int16(v)), err
	case codeInt32:
		v, err := r.buf.ReadUint32()
		return int64(int32(v)), err
	case codeInt64:
		v, err := r.buf.ReadUint64()
		return int64(v), err
	case codeUint8:
		v, err := r.buf.ReadByte_()
		return int64(v), err
	case codeUint16:
		v, err := r.buf.ReadUint16()
		return int64(v), err
	case codeUint32:
		v, err := r.buf.ReadUint32()
		return int64(v), err
	case codeUint64:
		v, err := r.buf.ReadUint64()
		if err != nil {
			return 0, err
		}
		if v > math.MaxInt64 {
			return 0, formatErrorf("uint64 %d overflows int64", v)
		}
		return int64(v), nil
	default:
		return 0, formatErrorf("expected integer, found code 0x%02x", c)
	}
}

// ReadUint64 reads any integer token that fits an unsigned 64-bit value.
func (r *Reader) ReadUint64() (uint64, error) {
	c, err := r.buf.PeekByte()
	if err != nil {
		return 0, err
	}
	if c == codeUint64 {
		_, _ = r.buf.ReadByte_()
		return r.buf.ReadUint64()
	}
	v, err := r.ReadInt64()
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, formatErrorf("negative integer %d where unsigned required", v)
	}
	return uint64(v), nil
}

func (r *Reader) ReadFloat32() (float32, error) {
	c, err := r.buf.ReadByte_()
	if err != nil {
		return 0, err
	}
	if c != codeFloat32 {
		return 0, formatErrorf("expected float32, found code 0x%02x", c)
	}
	bits, err := r.buf.ReadUint32()
	return math.Float32frombits(bits), err
}

func (r *Reader) ReadFloat64() (float64, error) {
	c, err := r.buf.ReadByte_()
	if err != nil {
		return 0, err
	}
	switch c {
	case codeFloat64:
		bits, err := r.buf.ReadUint64()
		return math.Float64frombits(bits), err
	case codeFloat32:
		bits, err := r.buf.ReadUint32()
		return float64(math.Float32frombits(bits)), err
	default:
		return 0, formatErrorf("expected float, found code 0x%02x", c)
	}
}

// ReadStringBytes returns the UTF-8 payload of a str token as a view into
// the input.
func (r *Reader) ReadStringBytes() ([]byte, error) {
	c, err := r.buf.ReadByte_()
	if err != nil {
		return nil, err
	}
	var n int
	switch {
	case isFixStr(c):
		n = int(c & maxFixLen)
	case c == codeStr8:
		v, err := r.buf.ReadByte_()
		if err != nil {
			return nil, err
		}
		n = int(v)
	case c == codeStr16:
		v, err := r.buf.ReadUint16()
		if err != nil {
			return nil, err
		}
		n = int(v)
	case c == codeStr32:
		v, err := r.buf.ReadUint32()
		if err != nil {
			return nil, err
		}
		n = int(v)
	default:
		return nil, formatErrorf("expected str, found code 0x%02x", c)
	}
	return r.buf.ReadBinary(n)
}

func (r *Reader) ReadString() (string, error) {
	v, err := r.ReadStringBytes()
	return string(v), err
}

// ReadBin returns the payload of a bin token as a view into the input.
func (r *Reader) ReadBin() ([]byte, error) {
	c, err := r.buf.ReadByte_()
	if err != nil {
		return nil, err
	}
	var n int
	switch c {
	case codeBin8:
		v, err := r.buf.ReadByte_()
		if err != nil {
			return nil, err
		}
		n = int(v)
	case codeBin16:
		v, err := r.buf.ReadUint16()
		if err != nil {
			return nil, err
		}
		n = int(v)
	case codeBin32:
		v, err := r.buf.ReadUint32()
		if err != nil {
			return nil, err
		}
		n = int(v)
	default:
		return nil, formatErrorf("expected bin, found code 0x%02x", c)
	}
	return r.buf.ReadBinary(n)
}

// ReadExt reads an extension token and returns its type code and body view.
func (r *Reader) ReadExt() (int8, []byte, error) {
	c, err := r.buf.ReadByte_()
	if err != nil {
		return 0, nil, err
	}
	var n int
	switch c {
	case codeFixExt1:
		n = 1
	case codeFixExt2:
		n = 2
	case codeFixExt4:
		n = 4
	case codeFixExt8:
		n = 8
	case codeFixExt16:
		n = 16
	case codeExt8:
		v, err := r.buf.ReadByte_()
		if err != nil {
			return 0, nil, err
		}
		n = int(v)
	case codeExt16:
		v, err := r.buf.ReadUint16()
		if err != nil {
			return 0, nil, err
		}
		n = int(v)
	case codeExt32:
		v, err := r.buf.ReadUint32()
		if err != nil {
			return 0, nil, err
		}
		n = int(v)
	default:
		return 0, nil, formatErrorf("expected ext, found code 0x%02x", c)
	}
	typeCode, err := r.buf.ReadByte_()
	if err != nil {
		return 0, nil, err
	}
	body, err := r.buf.ReadBinary(n)
	return int8(typeCode), body, err
}

// PeekExtType reports whether the next token is an extension of the given
// type code, without consuming anything.
func (r *Reader) PeekExtType(typeCode int8) (bool, error) {
	c, err := r.buf.PeekByte()
	if err != nil {
		return false, err
	}
	var off int
	switch c {
	case codeFixExt1, codeFixExt2, codeFixExt4, codeFixExt8, codeFixExt16:
		off = 1
	case codeExt8:
		off = 2
	case codeExt16:
		off = 3
	case codeExt32:
		off = 5
	default:
		return false, nil
	}
	idx := r.buf.ReaderIndex() + off
	if idx >= r.buf.WriterIndex() {
		return false, truncatedError()
	}
	return int8(r.buf.Slice(idx, 1)[0]) == typeCode, nil
}

func (r *Reader) ReadArrayHeader() (int, error) {
	n, ok, err := r.TryReadArrayHeader()
	if err != nil {
		return 0, err
	}
	if !ok {
		c, _ := r.buf.PeekByte()
		return 0, formatErrorf("expected array, found code 0x%02x", c)
	}
	return n, nil
}

// TryReadArrayHeader consumes an array header if one is next.
func (r *Reader) TryReadArrayHeader() (int, bool, error) {
	c, err := r.buf.PeekByte()
	if err != nil {
		return 0, false, err
	}
	switch {
	case isFixArray(c):
		_, _ = r.buf.ReadByte_()
		return int(c & 0x0f), true, nil
	case c == codeArray16:
		_, _ = r.buf.ReadByte_()
		v, err := r.buf.ReadUint16()
		return int(v), true, err
	case c == codeArray32:
		_, _ = r.buf.ReadByte_()
		v, err := r.buf.ReadUint32()
		return int(v), true, err
	default:
		return 0, false, nil
	}
}

func (r *Reader) ReadMapHeader() (int, error) {
	n, ok, err := r.TryReadMapHeader()
	if err != nil {
		return 0, err
	}
	if !ok {
		c, _ := r.buf.PeekByte()
		return 0, formatErrorf("expected map, found code 0x%02x", c)
	}
	return n, nil
}

// TryReadMapHeader consumes a map header if one is next.
func (r *Reader) TryReadMapHeader() (int, bool, error) {
	c, err := r.buf.PeekByte()
	if err != nil {
		return 0, false, err
	}
	switch {
	case isFixMap(c):
		_, _ = r.buf.ReadByte_()
		return int(c & 0x0f), true, nil
	case c == codeMap16:
		_, _ = r.buf.ReadByte_()
		v, err := r.buf.ReadUint16()
		return int(v), true, err
	case c == codeMap32:
		_, _ = r.buf.ReadByte_()
		v, err := r.buf.ReadUint32()
		return int(v), true, err
	default:
		return 0, false, nil
	}
}

// ReadNextStructure scans one complete top-level structure without decoding
// it and returns its raw bytes as a view. Used by the streaming path to
// isolate a structure into a contiguous slice, and by Skip.
func (r *Reader) ReadNextStructure() ([]byte, error) {
	unread := r.buf.Slice(r.buf.ReaderIndex(), r.buf.Remaining())
	n, err := measureStructure(unread)
	if err != nil {
		return nil, err
	}
	return r.buf.ReadBinary(n)
}

// Skip advances past one structure.
func (r *Reader) Skip() error {
	_, err := r.ReadNextStructure()
	return err
}

// measureStructure returns the encoded length of the first complete
// MessagePack structure in data. A truncation error means more bytes are
// required; the streaming reader retries after refilling.
func measureStructure(data []byte) (int, error) {
	pos := 0
	// one slot per value still owed to enclosing structures
	pending := 1
	for pending > 0 {
		if pos >= len(data) {
			return 0, truncatedError()
		}
		c := data[pos]
		pos++
		pending--
		var skip, more int
		switch {
		case isFixInt(c) || isNegFixInt(c) || c == codeNil || c == codeTrue || c == codeFalse:
		case isFixStr(c):
			skip = int(c & maxFixLen)
		case isFixArray(c):
			more = int(c & 0x0f)
		case isFixMap(c):
			more = 2 * int(c&0x0f)
		default:
			switch c {
			case codeUint8, codeInt8:
				skip = 1
			case codeUint16, codeInt16:
				skip = 2
			case codeUint32, codeInt32, codeFloat32:
				skip = 4
			case codeUint64, codeInt64, codeFloat64:
				skip = 8
			case codeFixExt1:
				skip = 2
			case codeFixExt2:
				skip = 3
			case codeFixExt4:
				skip = 5
			case codeFixExt8:
				skip = 9
			case codeFixExt16:
				skip = 17
			case codeBin8, codeStr8, codeExt8:
				n, err := lengthAt(data, pos, 1)
				if err != nil {
					return 0, err
				}
				pos++
				skip = n
				if c == codeExt8 {
					skip++
				}
			case codeBin16, codeStr16, codeExt16:
				n, err := lengthAt(data, pos, 2)
				if err != nil {
					return 0, err
				}
				pos += 2
				skip = n
				if c == codeExt16 {
					skip++
				}
			case codeBin32, codeStr32, codeExt32:
				n, err := lengthAt(data, pos, 4)
				if err != nil {
					return 0, err
				}
				pos += 4
				skip = n
				if c == codeExt32 {
					skip++
				}
			case codeArray16:
				n, err := lengthAt(data, pos, 2)
				if err != nil {
					return 0, err
				}
				pos += 2
				more = n
			case codeArray32:
				n, err := lengthAt(data, pos, 4)
				if err != nil {
					return 0, err
				}
				pos += 4
				more = n
			case codeMap16:
				n, err := lengthAt(data, pos, 2)
				if err != nil {
					return 0, err
				}
				pos += 2
				more = 2 * n
			case codeMap32:
				n, err := lengthAt(data, pos, 4)
				if err != nil {
					return 0, err
				}
				pos += 4
				more = 2 * n
			default:
				return 0, formatErrorf("invalid format code 0x%02x", c)
			}
		}
		if skip > 0 {
			if pos+skip > len(data) {
				return 0, truncatedError()
			}
			pos += skip
		}
		pending += more
	}
	return pos, nil
}

func lengthAt(data []byte, pos, width int) (int, error) {
	if pos+width > len(data) {
		return 0, truncatedError()
	}
	n := 0
	for i := 0; i < width; i++ {
		n = n<<8 | int(data[pos+i])
	}
	return n, nil
}
