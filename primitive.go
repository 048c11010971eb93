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
	"encoding/binary"
	"math/big"
	"net/url"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Char is a single Unicode scalar encoded as a string of length one.
type Char rune

// ============================================================================
// Primitive Converters - one per built-in type
// ============================================================================

type boolConverter struct{}

func (boolConverter) PreferStream() bool { return false }

func (boolConverter) Write(w *Writer, value reflect.Value, ctx *Context) error {
	w.WriteBool(value.Bool())
	return nil
}

func (boolConverter) Read(r *Reader, value reflect.Value, ctx *Context) error {
	v, err := r.ReadBool()
	if err != nil {
		return err
	}
	value.SetBool(v)
	return nil
}

// intConverter covers every signed integer kind, including named types.
type intConverter struct{}

func (intConverter) PreferStream() bool { return false }

func (intConverter) Write(w *Writer, value reflect.Value, ctx *Context) error {
	w.WriteInt(value.Int())
	return nil
}

func (intConverter) Read(r *Reader, value reflect.Value, ctx *Context) error {
	v, err := r.ReadInt64()
	if err != nil {
		return err
	}
	if value.OverflowInt(v) {
		return formatErrorf("integer %d overflows %s", v, value.Type())
	}
	value.SetInt(v)
	return nil
}

// uintConverter covers every unsigned integer kind.
type uintConverter struct{}

func (uintConverter) PreferStream() bool { return false }

func (uintConverter) Write(w *Writer, value reflect.Value, ctx *Context) error {
	w.WriteUint(value.Uint())
	return nil
}

func (uintConverter) Read(r *Reader, value reflect.Value, ctx *Context) error {
	v, err := r.ReadUint64()
	if err != nil {
		return err
	}
	if value.OverflowUint(v) {
		return formatErrorf("integer %d overflows %s", v, value.Type())
	}
	value.SetUint(v)
	return nil
}

type float32Converter struct{}

func (float32Converter) PreferStream() bool { return false }

func (float32Converter) Write(w *Writer, value reflect.Value, ctx *Context) error {
	w.WriteFloat32(float32(value.Float()))
	return nil
}

func (float32Converter) Read(r *Reader, value reflect.Value, ctx *Context) error {
	v, err := r.ReadFloat32()
	if err != nil {
		return err
	}
	value.SetFloat(float64(v))
	return nil
}

type float64Converter struct{}

func (float64Converter) PreferStream() bool { return false }

func (float64Converter) Write(w *Writer, value reflect.Value, ctx *Context) error {
	w.WriteFloat64(value.Float())
	return nil
}

func (float64Converter) Read(r *Reader, value reflect.Value, ctx *Context) error {
	v, err := r.ReadFloat64()
	if err != nil {
		return err
	}
	value.SetFloat(v)
	return nil
}

type stringConverter struct{}

func (stringConverter) PreferStream() bool { return false }

func (stringConverter) Write(w *Writer, value reflect.Value, ctx *Context) error {
	w.WriteString(value.String())
	return nil
}

func (stringConverter) Read(r *Reader, value reflect.Value, ctx *Context) error {
	v, err := r.ReadStringBytes()
	if err != nil {
		return err
	}
	value.SetString(string(v))
	return nil
}

// binConverter handles []byte as the MessagePack bin family.
type binConverter struct{}

func (binConverter) PreferStream() bool { return false }

func (binConverter) Write(w *Writer, value reflect.Value, ctx *Context) error {
	if value.IsNil() {
		w.WriteNil()
		return nil
	}
	w.WriteBin(value.Bytes())
	return nil
}

func (binConverter) Read(r *Reader, value reflect.Value, ctx *Context) error {
	if isNil, err := r.TryReadNil(); err != nil || isNil {
		if isNil {
			value.Set(reflect.Zero(value.Type()))
		}
		return err
	}
	v, err := r.ReadBin()
	if err != nil {
		return err
	}
	out := make([]byte, len(v))
	copy(out, v)
	value.SetBytes(out)
	return nil
}

// timeConverter implements the MessagePack timestamp extension (-1) in its
// 32-, 64-, and 96-bit forms.
type timeConverter struct{}

func (timeConverter) PreferStream() bool { return false }

func (timeConverter) Write(w *Writer, value reflect.Value, ctx *Context) error {
	t := value.Interface().(time.Time)
	sec, nsec := t.Unix(), int64(t.Nanosecond())
	switch {
	case sec >= 0 && sec < (1<<32) && nsec == 0:
		var body [4]byte
		binary.BigEndian.PutUint32(body[:], uint32(sec))
		w.WriteExt(extTimestamp, body[:])
	case sec >= 0 && sec < (1<<34):
		var body [8]byte
		binary.BigEndian.PutUint64(body[:], uint64(nsec)<<34|uint64(sec))
		w.WriteExt(extTimestamp, body[:])
	default:
		var body [12]byte
		binary.BigEndian.PutUint32(body[:4], uint32(nsec))
		binary.BigEndian.PutUint64(body[4:], uint64(sec))
		w.WriteExt(extTimestamp, body[:])
	}
	return nil
}

func (timeConverter) Read(r *Reader, value reflect.Value, ctx *Context) error {
	code, body, err := r.ReadExt()
	if err != nil {
		return err
	}
	if code != extTimestamp {
		return formatErrorf("expected timestamp extension, found type %d", code)
	}
	var sec, nsec int64
	switch len(body) {
	case 4:
		sec = int64(binary.BigEndian.Uint32(body))
	case 8:
		v := binary.BigEndian.Uint64(body)
		sec = int64(v & ((1 << 34) - 1))
		nsec = int64(v >> 34)
	case 12:
		nsec = int64(binary.BigEndian.Uint32(body[:4]))
		sec = int64(binary.BigEndian.Uint64(body[4:]))
	default:
		return formatErrorf("timestamp extension has invalid length %d", len(body))
	}
	value.Set(reflect.ValueOf(time.Unix(sec, nsec).UTC()))
	return nil
}

// durationConverter encodes time.Duration as its nanosecond count.
type durationConverter struct{}

func (durationConverter) PreferStream() bool { return false }

func (durationConverter) Write(w *Writer, value reflect.Value, ctx *Context) error {
	w.WriteInt(value.Int())
	return nil
}

func (durationConverter) Read(r *Reader, value reflect.Value, ctx *Context) error {
	v, err := r.ReadInt64()
	if err != nil {
		return err
	}
	value.SetInt(v)
	return nil
}

// uuidConverter encodes uuid.UUID as a 16-byte extension.
type uuidConverter struct{}

func (uuidConverter) PreferStream() bool { return false }

func (uuidConverter) Write(w *Writer, value reflect.Value, ctx *Context) error {
	id := value.Interface().(uuid.UUID)
	w.WriteExt(ExtGUID, id[:])
	return nil
}

func (uuidConverter) Read(r *Reader, value reflect.Value, ctx *Context) error {
	code, body, err := r.ReadExt()
	if err != nil {
		return err
	}
	if code != ExtGUID || len(body) != 16 {
		return formatErrorf("expected GUID extension of 16 bytes, found type %d length %d", code, len(body))
	}
	var id uuid.UUID
	copy(id[:], body)
	value.Set(reflect.ValueOf(id))
	return nil
}

// bigIntConverter encodes *big.Int as bin: one sign byte then the
// big-endian magnitude.
type bigIntConverter struct{}

func (bigIntConverter) PreferStream() bool { return false }

func (bigIntConverter) Write(w *Writer, value reflect.Value, ctx *Context) error {
	if value.IsNil() {
		w.WriteNil()
		return nil
	}
	b := value.Interface().(*big.Int)
	mag := b.Bytes()
	body := make([]byte, 1+len(mag))
	if b.Sign() < 0 {
		body[0] = 1
	}
	copy(body[1:], mag)
	w.WriteBin(body)
	return nil
}

func (bigIntConverter) Read(r *Reader, value reflect.Value, ctx *Context) error {
	if isNil, err := r.TryReadNil(); err != nil || isNil {
		if isNil {
			value.Set(reflect.Zero(value.Type()))
		}
		return err
	}
	body, err := r.ReadBin()
	if err != nil {
		return err
	}
	if len(body) < 1 {
		return formatErrorf("big integer payload is empty")
	}
	b := new(big.Int).SetBytes(body[1:])
	if body[0] == 1 {
		b.Neg(b)
	}
	value.Set(reflect.ValueOf(b))
	return nil
}

// decimalConverter encodes decimal.Decimal as its canonical string form.
type decimalConverter struct{}

func (decimalConverter) PreferStream() bool { return false }

func (decimalConverter) Write(w *Writer, value reflect.Value, ctx *Context) error {
	d := value.Interface().(decimal.Decimal)
	w.WriteString(d.String())
	return nil
}

func (decimalConverter) Read(r *Reader, value reflect.Value, ctx *Context) error {
	s, err := r.ReadString()
	if err != nil {
		return err
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return formatErrorf("invalid decimal %q: %w", s, err)
	}
	value.Set(reflect.ValueOf(d))
	return nil
}

// urlConverter encodes *url.URL as a string.
type urlConverter struct{}

func (urlConverter) PreferStream() bool { return false }

func (urlConverter) Write(w *Writer, value reflect.Value, ctx *Context) error {
	if value.IsNil() {
		w.WriteNil()
		return nil
	}
	w.WriteString(value.Interface().(*url.URL).String())
	return nil
}

func (urlConverter) Read(r *Reader, value reflect.Value, ctx *Context) error {
	if isNil, err := r.TryReadNil(); err != nil || isNil {
		if isNil {
			value.Set(reflect.Zero(value.Type()))
		}
		return err
	}
	s, err := r.ReadString()
	if err != nil {
		return err
	}
	u, err := url.Parse(s)
	if err != nil {
		return formatErrorf("invalid URL %q: %w", s, err)
	}
	value.Set(reflect.ValueOf(u))
	return nil
}

// charConverter encodes Char as a string of exactly one rune.
type charConverter struct{}

func (charConverter) PreferStream() bool { return false }

func (charConverter) Write(w *Writer, value reflect.Value, ctx *Context) error {
	w.WriteString(string(rune(value.Int())))
	return nil
}

func (charConverter) Read(r *Reader, value reflect.Value, ctx *Context) error {
	s, err := r.ReadString()
	if err != nil {
		return err
	}
	runes := []rune(s)
	if len(runes) != 1 {
		return formatErrorf("expected single-character string, found %d runes", len(runes))
	}
	value.SetInt(int64(runes[0]))
	return nil
}

// builtinConverters maps exact types to their dedicated converters. Checked
// before shape dispatch.
var builtinConverters = map[reflect.Type]Converter{
	reflect.TypeOf(false):              boolConverter{},
	reflect.TypeOf(int(0)):             intConverter{},
	reflect.TypeOf(int8(0)):            intConverter{},
	reflect.TypeOf(int16(0)):           intConverter{},
	reflect.TypeOf(int32(0)):           intConverter{},
	reflect.TypeOf(int64(0)):           intConverter{},
	reflect.TypeOf(uint(0)):            uintConverter{},
	reflect.TypeOf(uint8(0)):           uintConverter{},
	reflect.TypeOf(uint16(0)):          uintConverter{},
	reflect.TypeOf(uint32(0)):          uintConverter{},
	reflect.TypeOf(uint64(0)):          uintConverter{},
	reflect.TypeOf(uintptr(0)):         uintConverter{},
	reflect.TypeOf(float32(0)):         float32Converter{},
	reflect.TypeOf(float64(0)):         float64Converter{},
	reflect.TypeOf(""):                 stringConverter{},
	reflect.TypeOf([]byte(nil)):        binConverter{},
	reflect.TypeOf(time.Time{}):        timeConverter{},
	reflect.TypeOf(time.Duration(0)):   durationConverter{},
	reflect.TypeOf(uuid.UUID{}):        uuidConverter{},
	reflect.TypeOf((*big.Int)(nil)):    bigIntConverter{},
	reflect.TypeOf(decimal.Decimal{}):  decimalConverter{},
	reflect.TypeOf((*url.URL)(nil)):    urlConverter{},
	reflect.TypeOf(Char(0)):            charConverter{},
}

// kindConverters serves named types whose underlying kind is primitive.
var kindConverters = map[reflect.Kind]Converter{
	reflect.Bool:    boolConverter{},
	reflect.Int:     intConverter{},
	reflect.Int8:    intConverter{},
	reflect.Int16:   intConverter{},
	reflect.Int32:   intConverter{},
	reflect.Int64:   intConverter{},
	reflect.Uint:    uintConverter{},
	reflect.Uint8:   uintConverter{},
	reflect.Uint16:  uintConverter{},
	reflect.Uint32:  uintConverter{},
	reflect.Uint64:  uintConverter{},
	reflect.Float32: float32Converter{},
	reflect.Float64: float64Converter{},
	reflect.String:  stringConverter{},
}
