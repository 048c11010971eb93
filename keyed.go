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
// Array-shaped object converter (explicit key indexes)
// ============================================================================

// objectArrayConverter encodes an object as a positional array with one slot
// per key index. Gaps between declared indexes are padded with nil. The
// header always spans maxIndex+1 slots; trailing nils are not truncated, as
// truncation would observably change the wire format.
type objectArrayConverter struct {
	typ reflect.Type
	// slots is indexed by key; nil entries are absent markers.
	slots []*propertyAccessors
}

func (c *objectArrayConverter) PreferStream() bool { return true }

func (c *objectArrayConverter) Write(w *Writer, value reflect.Value, ctx *Context) error {
	if err := ctx.DepthStep(); err != nil {
		return err
	}
	defer ctx.DepthPop()
	w.WriteArrayHeader(len(c.slots))
	for _, p := range c.slots {
		if p == nil {
			w.WriteNil()
			continue
		}
		field := p.field(value)
		if p.shouldSerialize != nil && !p.shouldSerialize(field) {
			w.WriteNil()
			continue
		}
		if err := p.conv.Write(w, field, ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *objectArrayConverter) Read(r *Reader, value reflect.Value, ctx *Context) error {
	if isNil, err := r.TryReadNil(); err != nil {
		return err
	} else if isNil {
		return unexpectedNilError(c.typ.String())
	}
	if err := ctx.DepthStep(); err != nil {
		return err
	}
	defer ctx.DepthPop()
	n, err := r.ReadArrayHeader()
	if err != nil {
		return err
	}
	for _, p := range c.slots {
		if p != nil && p.defaultValue.IsValid() {
			p.field(value).Set(p.defaultValue)
		}
	}
	for i := 0; i < n; i++ {
		if i >= len(c.slots) || c.slots[i] == nil {
			if err := r.Skip(); err != nil {
				return err
			}
			continue
		}
		p := c.slots[i]
		// nil in a populated slot means the property was suppressed
		if isNil, err := r.TryReadNil(); err != nil {
			return err
		} else if isNil {
			continue
		}
		if err := p.conv.Read(r, p.field(value), ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *objectArrayConverter) WriteStream(ctx context.Context, sw *StreamWriter, value reflect.Value, sc *Context) error {
	if err := sc.DepthStep(); err != nil {
		return err
	}
	defer sc.DepthPop()
	sw.WriteArrayHeader(len(c.slots))
	for _, p := range c.slots {
		if err := ctx.Err(); err != nil {
			return canceledError(err)
		}
		if p == nil {
			sw.WriteNil()
			continue
		}
		field := p.field(value)
		if p.shouldSerialize != nil && !p.shouldSerialize(field) {
			sw.WriteNil()
			continue
		}
		if err := writeStreamOf(p.conv, ctx, sw, field, sc); err != nil {
			return err
		}
	}
	return nil
}

func (c *objectArrayConverter) ReadStream(ctx context.Context, sr *StreamReader, value reflect.Value, sc *Context) error {
	data, err := sr.NextStructure(ctx)
	if err != nil {
		return err
	}
	return c.Read(NewReader(data), value, sc)
}
