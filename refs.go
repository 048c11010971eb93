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

// ============================================================================
// Reference preservation - identity-deduplicating converter interposer
// ============================================================================

// refConverter intercepts every read and write of the wrapped converter.
// When a value's identity has been seen before in the current operation, it
// emits a reference extension token carrying the previously assigned
// sequence number instead of re-encoding the value. Untrackable kinds pass
// straight through.
type refConverter struct {
	inner Converter
}

func (c *refConverter) PreferStream() bool { return c.inner.PreferStream() }

func (c *refConverter) Write(w *Writer, value reflect.Value, ctx *Context) error {
	if ctx.refs == nil {
		return c.inner.Write(w, value, ctx)
	}
	seq, known, trackable := ctx.refs.TrackWrite(value)
	if !trackable {
		return c.inner.Write(w, value, ctx)
	}
	if known {
		w.WriteExt(ExtReference, appendVarUint(nil, seq))
		return nil
	}
	return c.inner.Write(w, value, ctx)
}

func (c *refConverter) Read(r *Reader, value reflect.Value, ctx *Context) error {
	if ctx.refs == nil {
		return c.inner.Read(r, value, ctx)
	}
	isRef, err := r.PeekExtType(ExtReference)
	if err != nil {
		return err
	}
	if isRef {
		_, body, err := r.ReadExt()
		if err != nil {
			return err
		}
		seq, err := NewByteBuffer(body).ReadVarUint()
		if err != nil {
			return err
		}
		prev, err := ctx.refs.Resolve(seq)
		if err != nil {
			return err
		}
		value.Set(prev)
		return nil
	}
	code, err := r.PeekCode()
	if err != nil {
		return err
	}
	if code == codeNil {
		// nil carries no identity
		return c.inner.Read(r, value, ctx)
	}
	if !trackableKind(value.Kind()) {
		return c.inner.Read(r, value, ctx)
	}
	seq := ctx.refs.Reserve()
	if value.Kind() == reflect.Ptr {
		// register the allocation before descending so cycles back to this
		// object resolve while it is still being filled
		if value.IsNil() {
			value.Set(reflect.New(value.Type().Elem()))
		}
		ctx.refs.Fulfill(seq, reflect.ValueOf(value.Interface()))
		return c.inner.Read(r, value, ctx)
	}
	if err := c.inner.Read(r, value, ctx); err != nil {
		return err
	}
	ctx.refs.Fulfill(seq, reflect.ValueOf(value.Interface()))
	return nil
}

func (c *refConverter) WriteStream(ctx context.Context, sw *StreamWriter, value reflect.Value, sc *Context) error {
	if sc.refs == nil {
		return writeStreamOf(c.inner, ctx, sw, value, sc)
	}
	seq, known, trackable := sc.refs.TrackWrite(value)
	if !trackable {
		return writeStreamOf(c.inner, ctx, sw, value, sc)
	}
	if known {
		sw.WriteExt(ExtReference, appendVarUint(nil, seq))
		return sw.FlushIfNeeded(ctx, sc)
	}
	return writeStreamOf(c.inner, ctx, sw, value, sc)
}

func (c *refConverter) ReadStream(ctx context.Context, sr *StreamReader, value reflect.Value, sc *Context) error {
	// reference bookkeeping requires token peeking; isolate the structure
	// and run the synchronous path over it
	data, err := sr.NextStructure(ctx)
	if err != nil {
		return err
	}
	return c.Read(NewReader(data), value, sc)
}

func trackableKind(k reflect.Kind) bool {
	switch k {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.String:
		return true
	default:
		return false
	}
}

func appendVarUint(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}
