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
	"bytes"
	"context"
	"reflect"

	"github.com/spaolacci/murmur3"
)

// ============================================================================
// Property accessors
// ============================================================================

// propertyAccessors holds everything needed to move one property across the
// wire: the pre-encoded serialized name, the property converter, the field
// index path, and the optional should-serialize predicate.
type propertyAccessors struct {
	name string
	// rawName is the bare UTF-8 of the serialized name, for decode-side
	// lookup without string allocation.
	rawName []byte
	// encodedName is the full MessagePack str token (header plus UTF-8),
	// emitted verbatim on the write side.
	encodedName []byte
	fieldType   reflect.Type
	index       []int
	conv        Converter
	// keyIndex is the explicit array slot, or -1 on the named path.
	keyIndex int
	// shouldSerialize, when non-nil, gates emission of the property.
	shouldSerialize func(reflect.Value) bool
	// defaultValue, when valid, pre-fills the field before decode so an
	// absent key yields the declared default.
	defaultValue reflect.Value
	// ctorParam links the property to its constructor parameter, if any.
	ctorParam *paramInfo
}

func (p *propertyAccessors) field(value reflect.Value) reflect.Value {
	return value.FieldByIndex(p.index)
}

// paramInfo describes one constructor parameter of a factory-built type.
type paramInfo struct {
	name  string
	typ   reflect.Type
	index []int
	conv  Converter
	// defaultValue, when valid, seeds the argument state before decode.
	defaultValue reflect.Value
}

// nameTable is the span-keyed lookup from serialized-name bytes to an entry,
// hashed with murmur3 so no string is allocated per decoded field.
type nameTable[T any] struct {
	byHash map[uint64][]nameEntry[T]
}

type nameEntry[T any] struct {
	raw []byte
	val T
}

func newNameTable[T any]() *nameTable[T] {
	return &nameTable[T]{byHash: make(map[uint64][]nameEntry[T])}
}

func (t *nameTable[T]) add(raw []byte, val T) {
	h := murmur3.Sum64(raw)
	t.byHash[h] = append(t.byHash[h], nameEntry[T]{raw: raw, val: val})
}

func (t *nameTable[T]) lookup(key []byte) (T, bool) {
	for _, e := range t.byHash[murmur3.Sum64(key)] {
		if bytes.Equal(e.raw, key) {
			return e.val, true
		}
	}
	var zero T
	return zero, false
}

// ============================================================================
// Map-shaped object converter (default construction)
// ============================================================================

// objectMapConverter encodes an object as a string-keyed map and decodes it
// by assigning fields on a zero value.
type objectMapConverter struct {
	typ   reflect.Type
	props []*propertyAccessors
	table *nameTable[*propertyAccessors]
}

func (c *objectMapConverter) PreferStream() bool { return true }

func (c *objectMapConverter) countProps(value reflect.Value) int {
	n := 0
	for _, p := range c.props {
		if p.shouldSerialize == nil || p.shouldSerialize(p.field(value)) {
			n++
		}
	}
	return n
}

func (c *objectMapConverter) Write(w *Writer, value reflect.Value, ctx *Context) error {
	if err := ctx.DepthStep(); err != nil {
		return err
	}
	defer ctx.DepthPop()
	w.WriteMapHeader(c.countProps(value))
	for _, p := range c.props {
		field := p.field(value)
		if p.shouldSerialize != nil && !p.shouldSerialize(field) {
			continue
		}
		w.WriteRaw(p.encodedName)
		if err := p.conv.Write(w, field, ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *objectMapConverter) Read(r *Reader, value reflect.Value, ctx *Context) error {
	if isNil, err := r.TryReadNil(); err != nil {
		return err
	} else if isNil {
		return unexpectedNilError(c.typ.String())
	}
	if err := ctx.DepthStep(); err != nil {
		return err
	}
	defer ctx.DepthPop()
	n, err := r.ReadMapHeader()
	if err != nil {
		return err
	}
	c.applyDefaults(value)
	for i := 0; i < n; i++ {
		key, err := r.ReadStringBytes()
		if err != nil {
			return err
		}
		p, ok := c.table.lookup(key)
		if !ok {
			if err := r.Skip(); err != nil {
				return err
			}
			continue
		}
		if err := p.conv.Read(r, p.field(value), ctx); err != nil {
			return err
		}
	}
	return nil
}

// applyDefaults seeds declared property defaults so absent keys decode to
// them.
func (c *objectMapConverter) applyDefaults(value reflect.Value) {
	for _, p := range c.props {
		if p.defaultValue.IsValid() {
			p.field(value).Set(p.defaultValue)
		}
	}
}

func (c *objectMapConverter) WriteStream(ctx context.Context, sw *StreamWriter, value reflect.Value, sc *Context) error {
	if err := sc.DepthStep(); err != nil {
		return err
	}
	defer sc.DepthPop()
	sw.WriteMapHeader(c.countProps(value))
	for _, p := range c.props {
		field := p.field(value)
		if p.shouldSerialize != nil && !p.shouldSerialize(field) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return canceledError(err)
		}
		sw.WriteRaw(p.encodedName)
		if err := writeStreamOf(p.conv, ctx, sw, field, sc); err != nil {
			return err
		}
	}
	return nil
}

func (c *objectMapConverter) ReadStream(ctx context.Context, sr *StreamReader, value reflect.Value, sc *Context) error {
	if isNil, err := sr.TryReadNil(ctx); err != nil {
		return err
	} else if isNil {
		return unexpectedNilError(c.typ.String())
	}
	if err := sc.DepthStep(); err != nil {
		return err
	}
	defer sc.DepthPop()
	n, err := sr.ReadMapHeader(ctx)
	if err != nil {
		return err
	}
	c.applyDefaults(value)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return canceledError(err)
		}
		key, err := sr.ReadStringBytes(ctx)
		if err != nil {
			return err
		}
		p, ok := c.table.lookup(key)
		if !ok {
			if err := sr.SkipStructure(ctx); err != nil {
				return err
			}
			continue
		}
		if err := readStreamOf(p.conv, ctx, sr, p.field(value), sc); err != nil {
			return err
		}
	}
	return nil
}

// ============================================================================
// Map-shaped object converter (factory construction)
// ============================================================================

// ctorTarget routes a decoded map entry either into the argument state (a
// constructor parameter) or into a post-construction field assignment.
type ctorTarget struct {
	param *paramInfo
	prop  *propertyAccessors
}

// objectMapCtorConverter decodes into an argument-state value, materializes
// through the factory, then assigns any remaining matched properties.
type objectMapCtorConverter struct {
	typ      reflect.Type
	argState reflect.Type
	factory  reflect.Value
	props    []*propertyAccessors
	table    *nameTable[ctorTarget]
}

func (c *objectMapCtorConverter) PreferStream() bool { return false }

func (c *objectMapCtorConverter) Write(w *Writer, value reflect.Value, ctx *Context) error {
	// write side is identical to the default-construction flow
	if err := ctx.DepthStep(); err != nil {
		return err
	}
	defer ctx.DepthPop()
	count := 0
	for _, p := range c.props {
		if p.shouldSerialize == nil || p.shouldSerialize(p.field(value)) {
			count++
		}
	}
	w.WriteMapHeader(count)
	for _, p := range c.props {
		field := p.field(value)
		if p.shouldSerialize != nil && !p.shouldSerialize(field) {
			continue
		}
		w.WriteRaw(p.encodedName)
		if err := p.conv.Write(w, field, ctx); err != nil {
			return err
		}
	}
	return nil
}

type stashedProp struct {
	prop *propertyAccessors
	val  reflect.Value
}

func (c *objectMapCtorConverter) Read(r *Reader, value reflect.Value, ctx *Context) error {
	if isNil, err := r.TryReadNil(); err != nil {
		return err
	} else if isNil {
		return unexpectedNilError(c.typ.String())
	}
	if err := ctx.DepthStep(); err != nil {
		return err
	}
	defer ctx.DepthPop()
	n, err := r.ReadMapHeader()
	if err != nil {
		return err
	}
	var args reflect.Value
	if c.argState != nil {
		args = reflect.New(c.argState).Elem()
		for _, target := range c.table.byHash {
			for _, e := range target {
				if e.val.param != nil && e.val.param.defaultValue.IsValid() {
					args.FieldByIndex(e.val.param.index).Set(e.val.param.defaultValue)
				}
			}
		}
	}
	var stash []stashedProp
	for i := 0; i < n; i++ {
		key, err := r.ReadStringBytes()
		if err != nil {
			return err
		}
		target, ok := c.table.lookup(key)
		switch {
		case !ok:
			if err := r.Skip(); err != nil {
				return err
			}
		case target.param != nil:
			if err := target.param.conv.Read(r, args.FieldByIndex(target.param.index), ctx); err != nil {
				return err
			}
		default:
			tmp := reflect.New(target.prop.fieldType).Elem()
			if err := target.prop.conv.Read(r, tmp, ctx); err != nil {
				return err
			}
			stash = append(stash, stashedProp{prop: target.prop, val: tmp})
		}
	}
	var out []reflect.Value
	if c.argState != nil {
		out = c.factory.Call([]reflect.Value{args})
	} else {
		out = c.factory.Call(nil)
	}
	value.Set(out[0])
	for _, s := range stash {
		s.prop.field(value).Set(s.val)
	}
	return nil
}

