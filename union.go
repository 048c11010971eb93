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
	"reflect"
)

// ============================================================================
// Union converter - closed polymorphic dispatch
// ============================================================================

// unionArm binds one subtype to its alias and converter.
type unionArm struct {
	alias int32
	typ   reflect.Type
	conv  Converter
}

// subTypes holds the two frozen dispatch maps of a union: alias to arm for
// decode, runtime type to arm for encode.
type subTypes struct {
	byAlias map[int32]*unionArm
	byType  map[reflect.Type]*unionArm
	// repr is the concrete type written with a nil alias; may be nil when
	// the union has no designated representative.
	repr     reflect.Type
	reprConv Converter
}

// unionConverter implements the [alias|nil, payload] wire form. The declared
// type is usually an interface; a concrete declared type takes the nil-alias
// arm on write when it is the union's representative (the default for a
// concrete base).
type unionConverter struct {
	typ reflect.Type
	st  *subTypes
}

func (c *unionConverter) PreferStream() bool { return false }

func (c *unionConverter) Write(w *Writer, value reflect.Value, ctx *Context) error {
	dyn := value
	if value.Kind() == reflect.Interface {
		if value.IsNil() {
			w.WriteNil()
			return nil
		}
		dyn = value.Elem()
	}
	if err := ctx.DepthStep(); err != nil {
		return err
	}
	defer ctx.DepthPop()
	w.WriteArrayHeader(2)
	if c.st.repr != nil && dyn.Type() == c.st.repr {
		w.WriteNil()
		return c.st.reprConv.Write(w, dyn, ctx)
	}
	arm, ok := c.st.byType[dyn.Type()]
	if !ok {
		return notSupportedErrorf("%s is not a known subtype of %s", dyn.Type(), c.typ)
	}
	w.WriteInt(int64(arm.alias))
	return arm.conv.Write(w, dyn, ctx)
}

func (c *unionConverter) Read(r *Reader, value reflect.Value, ctx *Context) error {
	if value.Kind() == reflect.Interface {
		if isNil, err := r.TryReadNil(); err != nil {
			return err
		} else if isNil {
			value.Set(reflect.Zero(value.Type()))
			return nil
		}
	}
	if err := ctx.DepthStep(); err != nil {
		return err
	}
	defer ctx.DepthPop()
	n, err := r.ReadArrayHeader()
	if err != nil {
		return err
	}
	if n != 2 {
		return formatErrorf("union envelope has %d elements, expected 2", n)
	}
	aliasIsNil, err := r.TryReadNil()
	if err != nil {
		return err
	}
	var arm *unionArm
	if aliasIsNil {
		if c.st.repr == nil {
			return formatErrorf("nil union alias but %s has no representative type", c.typ)
		}
		arm = &unionArm{typ: c.st.repr, conv: c.st.reprConv}
	} else {
		alias, err := r.ReadInt64()
		if err != nil {
			return err
		}
		known, ok := c.st.byAlias[int32(alias)]
		if !ok {
			return formatErrorf("unknown union alias %d for %s", alias, c.typ)
		}
		arm = known
	}
	if value.Kind() != reflect.Interface && value.Type() != arm.typ {
		return notSupportedErrorf("cannot decode subtype %s into declared %s", arm.typ, value.Type())
	}
	out := reflect.New(arm.typ).Elem()
	if err := arm.conv.Read(r, out, ctx); err != nil {
		return err
	}
	value.Set(out)
	return nil
}
