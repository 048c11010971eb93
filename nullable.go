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
// Nullable and enum converters
// ============================================================================

// nullableConverter wraps the element converter of a pointer type. It writes
// nil for absence and delegates otherwise; on decode a nil token
// short-circuits to the zero pointer.
type nullableConverter struct {
	elemType reflect.Type
	elem     Converter
}

func (c *nullableConverter) PreferStream() bool { return c.elem.PreferStream() }

func (c *nullableConverter) Write(w *Writer, value reflect.Value, ctx *Context) error {
	if value.IsNil() {
		w.WriteNil()
		return nil
	}
	return c.elem.Write(w, value.Elem(), ctx)
}

func (c *nullableConverter) Read(r *Reader, value reflect.Value, ctx *Context) error {
	isNil, err := r.TryReadNil()
	if err != nil {
		return err
	}
	if isNil {
		value.Set(reflect.Zero(value.Type()))
		return nil
	}
	// the reference-preservation wrapper may have pre-allocated the pointer
	if value.IsNil() {
		value.Set(reflect.New(c.elemType))
	}
	return c.elem.Read(r, value.Elem(), ctx)
}

func (c *nullableConverter) WriteStream(ctx context.Context, sw *StreamWriter, value reflect.Value, sc *Context) error {
	if value.IsNil() {
		sw.WriteNil()
		return sw.FlushIfNeeded(ctx, sc)
	}
	return writeStreamOf(c.elem, ctx, sw, value.Elem(), sc)
}

func (c *nullableConverter) ReadStream(ctx context.Context, sr *StreamReader, value reflect.Value, sc *Context) error {
	isNil, err := sr.TryReadNil(ctx)
	if err != nil {
		return err
	}
	if isNil {
		value.Set(reflect.Zero(value.Type()))
		return nil
	}
	if value.IsNil() {
		value.Set(reflect.New(c.elemType))
	}
	return readStreamOf(c.elem, ctx, sr, value.Elem(), sc)
}

// enumConverter serializes a named integer type as its underlying integer.
type enumConverter struct {
	signed bool
}

func (enumConverter) PreferStream() bool { return false }

func (c *enumConverter) Write(w *Writer, value reflect.Value, ctx *Context) error {
	if c.signed {
		w.WriteInt(value.Int())
	} else {
		w.WriteUint(value.Uint())
	}
	return nil
}

func (c *enumConverter) Read(r *Reader, value reflect.Value, ctx *Context) error {
	if c.signed {
		v, err := r.ReadInt64()
		if err != nil {
			return err
		}
		if value.OverflowInt(v) {
			return formatErrorf("enum value %d overflows %s", v, value.Type())
		}
		value.SetInt(v)
		return nil
	}
	v, err := r.ReadUint64()
	if err != nil {
		return err
	}
	if value.OverflowUint(v) {
		return formatErrorf("enum value %d overflows %s", v, value.Type())
	}
	value.SetUint(v)
	return nil
}
