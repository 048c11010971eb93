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
// Enumerable converters
// ============================================================================

// sliceConverter handles slices with arbitrary element types.
type sliceConverter struct {
	sliceType reflect.Type
	elem      Converter
}

func (c *sliceConverter) PreferStream() bool { return true }

func (c *sliceConverter) Write(w *Writer, value reflect.Value, ctx *Context) error {
	if value.IsNil() {
		w.WriteNil()
		return nil
	}
	if err := ctx.DepthStep(); err != nil {
		return err
	}
	defer ctx.DepthPop()
	n := value.Len()
	w.WriteArrayHeader(n)
	for i := 0; i < n; i++ {
		if err := c.elem.Write(w, value.Index(i), ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *sliceConverter) Read(r *Reader, value reflect.Value, ctx *Context) error {
	isNil, err := r.TryReadNil()
	if err != nil {
		return err
	}
	if isNil {
		value.Set(reflect.Zero(c.sliceType))
		return nil
	}
	if err := ctx.DepthStep(); err != nil {
		return err
	}
	defer ctx.DepthPop()
	n, err := r.ReadArrayHeader()
	if err != nil {
		return err
	}
	out := reflect.MakeSlice(c.sliceType, n, n)
	for i := 0; i < n; i++ {
		if err := c.elem.Read(r, out.Index(i), ctx); err != nil {
			return err
		}
	}
	value.Set(out)
	return nil
}

func (c *sliceConverter) WriteStream(ctx context.Context, sw *StreamWriter, value reflect.Value, sc *Context) error {
	if value.IsNil() {
		sw.WriteNil()
		return sw.FlushIfNeeded(ctx, sc)
	}
	if err := sc.DepthStep(); err != nil {
		return err
	}
	defer sc.DepthPop()
	n := value.Len()
	sw.WriteArrayHeader(n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return canceledError(err)
		}
		if err := writeStreamOf(c.elem, ctx, sw, value.Index(i), sc); err != nil {
			return err
		}
	}
	return nil
}

func (c *sliceConverter) ReadStream(ctx context.Context, sr *StreamReader, value reflect.Value, sc *Context) error {
	isNil, err := sr.TryReadNil(ctx)
	if err != nil {
		return err
	}
	if isNil {
		value.Set(reflect.Zero(c.sliceType))
		return nil
	}
	if err := sc.DepthStep(); err != nil {
		return err
	}
	defer sc.DepthPop()
	n, err := sr.ReadArrayHeader(ctx)
	if err != nil {
		return err
	}
	out := reflect.MakeSlice(c.sliceType, n, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return canceledError(err)
		}
		if err := readStreamOf(c.elem, ctx, sr, out.Index(i), sc); err != nil {
			return err
		}
	}
	value.Set(out)
	return nil
}

// fixedArrayConverter handles fixed-size Go arrays, filling in place.
type fixedArrayConverter struct {
	arrayType reflect.Type
	elem      Converter
}

func (c *fixedArrayConverter) PreferStream() bool { return true }

func (c *fixedArrayConverter) Write(w *Writer, value reflect.Value, ctx *Context) error {
	if err := ctx.DepthStep(); err != nil {
		return err
	}
	defer ctx.DepthPop()
	n := value.Len()
	w.WriteArrayHeader(n)
	for i := 0; i < n; i++ {
		if err := c.elem.Write(w, value.Index(i), ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *fixedArrayConverter) Read(r *Reader, value reflect.Value, ctx *Context) error {
	if err := ctx.DepthStep(); err != nil {
		return err
	}
	defer ctx.DepthPop()
	n, err := r.ReadArrayHeader()
	if err != nil {
		return err
	}
	value.Set(reflect.Zero(c.arrayType))
	limit := value.Len()
	for i := 0; i < n; i++ {
		if i < limit {
			if err := c.elem.Read(r, value.Index(i), ctx); err != nil {
				return err
			}
		} else if err := r.Skip(); err != nil {
			return err
		}
	}
	return nil
}

func (c *fixedArrayConverter) WriteStream(ctx context.Context, sw *StreamWriter, value reflect.Value, sc *Context) error {
	if err := sc.DepthStep(); err != nil {
		return err
	}
	defer sc.DepthPop()
	n := value.Len()
	sw.WriteArrayHeader(n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return canceledError(err)
		}
		if err := writeStreamOf(c.elem, ctx, sw, value.Index(i), sc); err != nil {
			return err
		}
	}
	return nil
}

func (c *fixedArrayConverter) ReadStream(ctx context.Context, sr *StreamReader, value reflect.Value, sc *Context) error {
	data, err := sr.NextStructure(ctx)
	if err != nil {
		return err
	}
	return c.Read(NewReader(data), value, sc)
}

// flatArrayConverter encodes multi-dimensional Go arrays as one flat array:
// the dimension sizes followed by every element in row-major order.
type flatArrayConverter struct {
	arrayType reflect.Type
	dims      []int
	elem      Converter
}

func newFlatArrayConverter(t reflect.Type, elem Converter) *flatArrayConverter {
	var dims []int
	e := t
	for e.Kind() == reflect.Array {
		dims = append(dims, e.Len())
		e = e.Elem()
	}
	return &flatArrayConverter{arrayType: t, dims: dims, elem: elem}
}

func (c *flatArrayConverter) PreferStream() bool { return false }

func (c *flatArrayConverter) Write(w *Writer, value reflect.Value, ctx *Context) error {
	if err := ctx.DepthStep(); err != nil {
		return err
	}
	defer ctx.DepthPop()
	total := 1
	for _, d := range c.dims {
		total *= d
	}
	w.WriteArrayHeader(len(c.dims) + total)
	for _, d := range c.dims {
		w.WriteInt(int64(d))
	}
	return c.writeElems(w, value, 0, ctx)
}

func (c *flatArrayConverter) writeElems(w *Writer, value reflect.Value, depth int, ctx *Context) error {
	if depth == len(c.dims) {
		return c.elem.Write(w, value, ctx)
	}
	for i := 0; i < value.Len(); i++ {
		if err := c.writeElems(w, value.Index(i), depth+1, ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *flatArrayConverter) Read(r *Reader, value reflect.Value, ctx *Context) error {
	if err := ctx.DepthStep(); err != nil {
		return err
	}
	defer ctx.DepthPop()
	n, err := r.ReadArrayHeader()
	if err != nil {
		return err
	}
	total := 1
	for _, d := range c.dims {
		total *= d
	}
	if n != len(c.dims)+total {
		return formatErrorf("flat array has %d slots, expected %d", n, len(c.dims)+total)
	}
	for _, d := range c.dims {
		got, err := r.ReadInt64()
		if err != nil {
			return err
		}
		if got != int64(d) {
			return formatErrorf("flat array dimension %d does not match declared %d", got, d)
		}
	}
	value.Set(reflect.Zero(c.arrayType))
	return c.readElems(r, value, 0, ctx)
}

func (c *flatArrayConverter) readElems(r *Reader, value reflect.Value, depth int, ctx *Context) error {
	if depth == len(c.dims) {
		return c.elem.Read(r, value, ctx)
	}
	for i := 0; i < value.Len(); i++ {
		if err := c.readElems(r, value.Index(i), depth+1, ctx); err != nil {
			return err
		}
	}
	return nil
}

// ============================================================================
// Dictionary converters
// ============================================================================

// mapConverter handles Go maps (the Mutable construction strategy).
type mapConverter struct {
	mapType reflect.Type
	key     Converter
	value   Converter
}

func (c *mapConverter) PreferStream() bool { return true }

func (c *mapConverter) Write(w *Writer, value reflect.Value, ctx *Context) error {
	if value.IsNil() {
		w.WriteNil()
		return nil
	}
	if err := ctx.DepthStep(); err != nil {
		return err
	}
	defer ctx.DepthPop()
	w.WriteMapHeader(value.Len())
	iter := value.MapRange()
	for iter.Next() {
		if err := c.key.Write(w, iter.Key(), ctx); err != nil {
			return err
		}
		if err := c.value.Write(w, iter.Value(), ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *mapConverter) Read(r *Reader, value reflect.Value, ctx *Context) error {
	isNil, err := r.TryReadNil()
	if err != nil {
		return err
	}
	if isNil {
		value.Set(reflect.Zero(c.mapType))
		return nil
	}
	if err := ctx.DepthStep(); err != nil {
		return err
	}
	defer ctx.DepthPop()
	n, err := r.ReadMapHeader()
	if err != nil {
		return err
	}
	out := reflect.MakeMapWithSize(c.mapType, n)
	kt, vt := c.mapType.Key(), c.mapType.Elem()
	for i := 0; i < n; i++ {
		k := reflect.New(kt).Elem()
		if err := c.key.Read(r, k, ctx); err != nil {
			return err
		}
		v := reflect.New(vt).Elem()
		if err := c.value.Read(r, v, ctx); err != nil {
			return err
		}
		out.SetMapIndex(k, v)
	}
	value.Set(out)
	return nil
}

func (c *mapConverter) WriteStream(ctx context.Context, sw *StreamWriter, value reflect.Value, sc *Context) error {
	if value.IsNil() {
		sw.WriteNil()
		return sw.FlushIfNeeded(ctx, sc)
	}
	if err := sc.DepthStep(); err != nil {
		return err
	}
	defer sc.DepthPop()
	sw.WriteMapHeader(value.Len())
	iter := value.MapRange()
	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return canceledError(err)
		}
		if err := writeStreamOf(c.key, ctx, sw, iter.Key(), sc); err != nil {
			return err
		}
		if err := writeStreamOf(c.value, ctx, sw, iter.Value(), sc); err != nil {
			return err
		}
	}
	return nil
}

func (c *mapConverter) ReadStream(ctx context.Context, sr *StreamReader, value reflect.Value, sc *Context) error {
	isNil, err := sr.TryReadNil(ctx)
	if err != nil {
		return err
	}
	if isNil {
		value.Set(reflect.Zero(c.mapType))
		return nil
	}
	if err := sc.DepthStep(); err != nil {
		return err
	}
	defer sc.DepthPop()
	n, err := sr.ReadMapHeader(ctx)
	if err != nil {
		return err
	}
	out := reflect.MakeMapWithSize(c.mapType, n)
	kt, vt := c.mapType.Key(), c.mapType.Elem()
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return canceledError(err)
		}
		k := reflect.New(kt).Elem()
		if err := readStreamOf(c.key, ctx, sr, k, sc); err != nil {
			return err
		}
		v := reflect.New(vt).Elem()
		if err := readStreamOf(c.value, ctx, sr, v, sc); err != nil {
			return err
		}
		out.SetMapIndex(k, v)
	}
	value.Set(out)
	return nil
}

// writeOnlyCollectionConverter serves the None construction strategy: the
// collection can be enumerated for writing but there is no handle to build
// one on decode.
type writeOnlyCollectionConverter struct {
	inner Converter
}

func (c *writeOnlyCollectionConverter) PreferStream() bool { return c.inner.PreferStream() }

func (c *writeOnlyCollectionConverter) Write(w *Writer, value reflect.Value, ctx *Context) error {
	return c.inner.Write(w, value, ctx)
}

func (c *writeOnlyCollectionConverter) Read(r *Reader, value reflect.Value, ctx *Context) error {
	return notSupportedErrorf("cannot construct %s during decode", value.Type())
}

// ============================================================================
// Specialized primitive-slice converters
// ============================================================================

// Slices of primitive element types skip per-element converter dispatch.
// They decode from a contiguous structure on the streaming path, so no
// stream variants are needed.

type boolSliceConverter struct{}

func (boolSliceConverter) PreferStream() bool { return false }

func (boolSliceConverter) Write(w *Writer, value reflect.Value, ctx *Context) error {
	if value.IsNil() {
		w.WriteNil()
		return nil
	}
	s := value.Interface().([]bool)
	w.WriteArrayHeader(len(s))
	for _, v := range s {
		w.WriteBool(v)
	}
	return nil
}

func (boolSliceConverter) Read(r *Reader, value reflect.Value, ctx *Context) error {
	isNil, err := r.TryReadNil()
	if err != nil {
		return err
	}
	if isNil {
		value.Set(reflect.Zero(value.Type()))
		return nil
	}
	n, err := r.ReadArrayHeader()
	if err != nil {
		return err
	}
	s := make([]bool, n)
	for i := range s {
		if s[i], err = r.ReadBool(); err != nil {
			return err
		}
	}
	value.Set(reflect.ValueOf(s))
	return nil
}

type intSliceConverter struct{}

func (intSliceConverter) PreferStream() bool { return false }

func (intSliceConverter) Write(w *Writer, value reflect.Value, ctx *Context) error {
	if value.IsNil() {
		w.WriteNil()
		return nil
	}
	s := value.Interface().([]int)
	w.WriteArrayHeader(len(s))
	for _, v := range s {
		w.WriteInt(int64(v))
	}
	return nil
}

func (intSliceConverter) Read(r *Reader, value reflect.Value, ctx *Context) error {
	isNil, err := r.TryReadNil()
	if err != nil {
		return err
	}
	if isNil {
		value.Set(reflect.Zero(value.Type()))
		return nil
	}
	n, err := r.ReadArrayHeader()
	if err != nil {
		return err
	}
	s := make([]int, n)
	for i := range s {
		v, err := r.ReadInt64()
		if err != nil {
			return err
		}
		s[i] = int(v)
	}
	value.Set(reflect.ValueOf(s))
	return nil
}

type int32SliceConverter struct{}

func (int32SliceConverter) PreferStream() bool { return false }

func (int32SliceConverter) Write(w *Writer, value reflect.Value, ctx *Context) error {
	if value.IsNil() {
		w.WriteNil()
		return nil
	}
	s := value.Interface().([]int32)
	w.WriteArrayHeader(len(s))
	for _, v := range s {
		w.WriteInt(int64(v))
	}
	return nil
}

func (int32SliceConverter) Read(r *Reader, value reflect.Value, ctx *Context) error {
	isNil, err := r.TryReadNil()
	if err != nil {
		return err
	}
	if isNil {
		value.Set(reflect.Zero(value.Type()))
		return nil
	}
	n, err := r.ReadArrayHeader()
	if err != nil {
		return err
	}
	s := make([]int32, n)
	for i := range s {
		v, err := r.ReadInt64()
		if err != nil {
			return err
		}
		if v < -1<<31 || v > 1<<31-1 {
			return formatErrorf("integer %d overflows int32", v)
		}
		s[i] = int32(v)
	}
	value.Set(reflect.ValueOf(s))
	return nil
}

type int64SliceConverter struct{}

func (int64SliceConverter) PreferStream() bool { return false }

func (int64SliceConverter) Write(w *Writer, value reflect.Value, ctx *Context) error {
	if value.IsNil() {
		w.WriteNil()
		return nil
	}
	s := value.Interface().([]int64)
	w.WriteArrayHeader(len(s))
	for _, v := range s {
		w.WriteInt(v)
	}
	return nil
}

func (int64SliceConverter) Read(r *Reader, value reflect.Value, ctx *Context) error {
	isNil, err := r.TryReadNil()
	if err != nil {
		return err
	}
	if isNil {
		value.Set(reflect.Zero(value.Type()))
		return nil
	}
	n, err := r.ReadArrayHeader()
	if err != nil {
		return err
	}
	s := make([]int64, n)
	for i := range s {
		if s[i], err = r.ReadInt64(); err != nil {
			return err
		}
	}
	value.Set(reflect.ValueOf(s))
	return nil
}

type float32SliceConverter struct{}

func (float32SliceConverter) PreferStream() bool { return false }

func (float32SliceConverter) Write(w *Writer, value reflect.Value, ctx *Context) error {
	if value.IsNil() {
		w.WriteNil()
		return nil
	}
	s := value.Interface().([]float32)
	w.WriteArrayHeader(len(s))
	for _, v := range s {
		w.WriteFloat32(v)
	}
	return nil
}

func (float32SliceConverter) Read(r *Reader, value reflect.Value, ctx *Context) error {
	isNil, err := r.TryReadNil()
	if err != nil {
		return err
	}
	if isNil {
		value.Set(reflect.Zero(value.Type()))
		return nil
	}
	n, err := r.ReadArrayHeader()
	if err != nil {
		return err
	}
	s := make([]float32, n)
	for i := range s {
		if s[i], err = r.ReadFloat32(); err != nil {
			return err
		}
	}
	value.Set(reflect.ValueOf(s))
	return nil
}

type float64SliceConverter struct{}

func (float64SliceConverter) PreferStream() bool { return false }

func (float64SliceConverter) Write(w *Writer, value reflect.Value, ctx *Context) error {
	if value.IsNil() {
		w.WriteNil()
		return nil
	}
	s := value.Interface().([]float64)
	w.WriteArrayHeader(len(s))
	for _, v := range s {
		w.WriteFloat64(v)
	}
	return nil
}

func (float64SliceConverter) Read(r *Reader, value reflect.Value, ctx *Context) error {
	isNil, err := r.TryReadNil()
	if err != nil {
		return err
	}
	if isNil {
		value.Set(reflect.Zero(value.Type()))
		return nil
	}
	n, err := r.ReadArrayHeader()
	if err != nil {
		return err
	}
	s := make([]float64, n)
	for i := range s {
		if s[i], err = r.ReadFloat64(); err != nil {
			return err
		}
	}
	value.Set(reflect.ValueOf(s))
	return nil
}

type stringSliceConverter struct{}

func (stringSliceConverter) PreferStream() bool { return false }

func (stringSliceConverter) Write(w *Writer, value reflect.Value, ctx *Context) error {
	if value.IsNil() {
		w.WriteNil()
		return nil
	}
	s := value.Interface().([]string)
	w.WriteArrayHeader(len(s))
	for _, v := range s {
		w.WriteString(v)
	}
	return nil
}

func (stringSliceConverter) Read(r *Reader, value reflect.Value, ctx *Context) error {
	isNil, err := r.TryReadNil()
	if err != nil {
		return err
	}
	if isNil {
		value.Set(reflect.Zero(value.Type()))
		return nil
	}
	n, err := r.ReadArrayHeader()
	if err != nil {
		return err
	}
	s := make([]string, n)
	for i := range s {
		if s[i], err = r.ReadString(); err != nil {
			return err
		}
	}
	value.Set(reflect.ValueOf(s))
	return nil
}

// specializedSliceConverters short-circuit the generic slice path for exact
// primitive element types. []byte is handled earlier by the builtin table.
var specializedSliceConverters = map[reflect.Type]Converter{
	reflect.TypeOf([]bool(nil)):    boolSliceConverter{},
	reflect.TypeOf([]int(nil)):     intSliceConverter{},
	reflect.TypeOf([]int32(nil)):   int32SliceConverter{},
	reflect.TypeOf([]int64(nil)):   int64SliceConverter{},
	reflect.TypeOf([]float32(nil)): float32SliceConverter{},
	reflect.TypeOf([]float64(nil)): float64SliceConverter{},
	reflect.TypeOf([]string(nil)):  stringSliceConverter{},
}
