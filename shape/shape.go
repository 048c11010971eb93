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

// Package shape derives structural descriptions of Go types. The serializer
// engine consumes these shapes to synthesize converters; it never inspects
// reflect.StructTag or constructors itself.
package shape

import (
	"reflect"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/xerrors"
)

// Kind classifies a type shape.
type Kind int

const (
	KindPrimitive Kind = iota + 1
	KindObject
	KindEnumerable
	KindDictionary
	KindEnum
	KindOptional
)

// ConstructionStrategy describes how a collection is materialized on decode.
type ConstructionStrategy int

const (
	// StrategyNone - no construction handle; the collection can be written
	// but not read back.
	StrategyNone ConstructionStrategy = iota
	// StrategyMutable - construct empty, then add entries (Go maps).
	StrategyMutable
	// StrategySlice - allocate with exact length, then fill (Go slices).
	StrategySlice
	// StrategyFixed - fill a fixed-size sequence in place (Go arrays).
	StrategyFixed
)

// TypeShape is the structural description of one type. Sub-shapes are
// referenced by reflect.Type, not embedded, so recursive types stay finite;
// callers resolve them through the Provider on demand.
type TypeShape struct {
	Type reflect.Type
	Kind Kind

	// KindObject
	Properties  []PropertyShape
	Constructor *ConstructorShape
	Union       *UnionShape

	// KindEnumerable and KindOptional
	Element reflect.Type

	// KindDictionary
	Key   reflect.Type
	Value reflect.Type

	// KindEnum
	Underlying reflect.Type

	Strategy ConstructionStrategy
}

// PropertyShape describes one serializable property of an object shape.
type PropertyShape struct {
	// Name is the declared field name.
	Name string
	// Type is the declared property type.
	Type reflect.Type
	// Index is the field index path (embedded structs contribute a step).
	Index []int
	// HasGetter and HasSetter are both true for exported Go fields; they
	// exist so the engine keeps distinct serialize/deserialize closures.
	HasGetter bool
	HasSetter bool
	// Nullable reports whether the property type admits nil.
	Nullable bool

	Attrs PropertyAttrs
}

// PropertyAttrs is the attribute surface read from the `msgpack:` struct tag.
type PropertyAttrs struct {
	// NameOverride replaces the serialized name when non-empty.
	NameOverride string
	// KeyIndex is the explicit integer index switching the declaring type to
	// array-shaped encoding; nil when absent.
	KeyIndex *int
	// Default is the declared default value literal, or empty.
	Default string
	// Skip excludes the property entirely.
	Skip bool
}

// ConstructorShape describes a registered factory for a type that is not
// materialized by plain field assignment.
type ConstructorShape struct {
	// ParamCount is the number of argument-state fields (len(Params)).
	ParamCount int
	// Params describes the argument-state fields, in declaration order.
	Params []ParamShape
	// ArgState is the struct type filled during decode; nil when the
	// factory takes no argument.
	ArgState reflect.Type
	// Factory is the registered function. With a nil ArgState it takes no
	// arguments; otherwise it consumes one ArgState value. It returns the
	// constructed value.
	Factory reflect.Value
}

// ParamShape describes one constructor parameter.
type ParamShape struct {
	Name  string
	Type  reflect.Type
	Index []int
	// Default is the parameter's declared default literal from its
	// `msgpack:"...,default=V"` tag, or empty.
	Default string
}

// UnionShape is a closed polymorphic set declared over a base type.
type UnionShape struct {
	// Representative, when non-nil, is the concrete type encoded with a nil
	// alias; it stands in for "runtime type equals declared type".
	Representative reflect.Type
	Entries        []UnionEntry
}

// UnionEntry binds an integer alias to a concrete subtype.
type UnionEntry struct {
	Alias int32
	Type  reflect.Type
}

// ============================================================================
// Provider
// ============================================================================

// Provider derives and memoizes type shapes. Safe for concurrent use.
type Provider struct {
	mu        sync.Mutex
	shapes    map[reflect.Type]*TypeShape
	factories map[reflect.Type]reflect.Value
	unions    map[reflect.Type]*UnionShape
}

// NewProvider creates an empty provider.
func NewProvider() *Provider {
	return &Provider{
		shapes:    make(map[reflect.Type]*TypeShape),
		factories: make(map[reflect.Type]reflect.Value),
		unions:    make(map[reflect.Type]*UnionShape),
	}
}

// RegisterFactory registers a construction function for the type it returns.
// fn must be func() T or func(Args) T where Args is a struct whose exported
// fields are the constructor parameters, matched to properties by name.
func (p *Provider) RegisterFactory(fn interface{}) error {
	rf := reflect.ValueOf(fn)
	ft := rf.Type()
	if ft.Kind() != reflect.Func || ft.NumOut() != 1 || ft.NumIn() > 1 {
		return xerrors.Errorf("factory must be func() T or func(Args) T, got %v", ft)
	}
	if ft.NumIn() == 1 && ft.In(0).Kind() != reflect.Struct {
		return xerrors.Errorf("factory argument must be a struct, got %v", ft.In(0))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.factories[ft.Out(0)] = rf
	delete(p.shapes, ft.Out(0))
	return nil
}

// RegisterUnion declares a closed subtype set for base. base is typically an
// interface type; representative may be nil. Full validation (assignability,
// duplicate aliases) happens at converter construction.
func (p *Provider) RegisterUnion(base, representative reflect.Type, entries ...UnionEntry) error {
	if base == nil {
		return xerrors.New("union base type is nil")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unions[base] = &UnionShape{Representative: representative, Entries: entries}
	delete(p.shapes, base)
	return nil
}

// ShapeOf returns the memoized shape of t, deriving it on first use.
func (p *Provider) ShapeOf(t reflect.Type) (*TypeShape, error) {
	p.mu.Lock()
	if s, ok := p.shapes[t]; ok {
		p.mu.Unlock()
		return s, nil
	}
	union := p.unions[t]
	factory, hasFactory := p.factories[t]
	p.mu.Unlock()

	s, err := derive(t, union, factory, hasFactory)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.shapes[t] = s
	p.mu.Unlock()
	return s, nil
}

func derive(t reflect.Type, union *UnionShape, factory reflect.Value, hasFactory bool) (*TypeShape, error) {
	switch t.Kind() {
	case reflect.Ptr:
		return &TypeShape{Type: t, Kind: KindOptional, Element: t.Elem()}, nil
	case reflect.Map:
		return &TypeShape{Type: t, Kind: KindDictionary, Key: t.Key(), Value: t.Elem(), Strategy: StrategyMutable}, nil
	case reflect.Slice:
		return &TypeShape{Type: t, Kind: KindEnumerable, Element: t.Elem(), Strategy: StrategySlice}, nil
	case reflect.Array:
		return &TypeShape{Type: t, Kind: KindEnumerable, Element: t.Elem(), Strategy: StrategyFixed}, nil
	case reflect.Interface:
		if union == nil {
			return nil, xerrors.Errorf("interface %v has no registered subtype set", t)
		}
		return &TypeShape{Type: t, Kind: KindObject, Union: union}, nil
	case reflect.Struct:
		return deriveObject(t, union, factory, hasFactory)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if t.PkgPath() != "" {
			return &TypeShape{Type: t, Kind: KindEnum, Underlying: underlyingInt(t)}, nil
		}
		return &TypeShape{Type: t, Kind: KindPrimitive}, nil
	case reflect.Bool, reflect.Float32, reflect.Float64, reflect.String:
		return &TypeShape{Type: t, Kind: KindPrimitive}, nil
	default:
		return nil, xerrors.Errorf("type %v has no serializable shape", t)
	}
}

func deriveObject(t reflect.Type, union *UnionShape, factory reflect.Value, hasFactory bool) (*TypeShape, error) {
	s := &TypeShape{Type: t, Kind: KindObject, Union: union}
	for _, f := range reflect.VisibleFields(t) {
		if f.Anonymous && embedsStruct(f.Type) {
			// promoted fields appear individually
			continue
		}
		if f.PkgPath != "" || !settablePath(t, f.Index) {
			continue
		}
		attrs, err := parseTag(f.Tag.Get("msgpack"), t.Name()+"."+f.Name)
		if err != nil {
			return nil, err
		}
		nullable := false
		switch f.Type.Kind() {
		case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
			nullable = true
		}
		s.Properties = append(s.Properties, PropertyShape{
			Name:      f.Name,
			Type:      f.Type,
			Index:     f.Index,
			HasGetter: true,
			HasSetter: true,
			Nullable:  nullable,
			Attrs:     attrs,
		})
	}
	if hasFactory {
		ctor, err := deriveConstructor(factory)
		if err != nil {
			return nil, err
		}
		s.Constructor = ctor
	}
	return s, nil
}

func embedsStruct(t reflect.Type) bool {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}

// settablePath reports whether every step of a promoted field's index path
// goes through exported fields; reflect cannot assign through unexported
// embedded structs.
func settablePath(t reflect.Type, index []int) bool {
	for _, i := range index[:len(index)-1] {
		f := t.Field(i)
		if f.PkgPath != "" {
			return false
		}
		t = f.Type
		for t.Kind() == reflect.Ptr {
			t = t.Elem()
		}
	}
	return true
}

func deriveConstructor(factory reflect.Value) (*ConstructorShape, error) {
	ft := factory.Type()
	ctor := &ConstructorShape{Factory: factory}
	if ft.NumIn() == 0 {
		return ctor, nil
	}
	arg := ft.In(0)
	ctor.ArgState = arg
	for _, f := range reflect.VisibleFields(arg) {
		if f.PkgPath != "" || (f.Anonymous && embedsStruct(f.Type)) {
			continue
		}
		attrs, err := parseTag(f.Tag.Get("msgpack"), arg.Name()+"."+f.Name)
		if err != nil {
			return nil, err
		}
		ctor.Params = append(ctor.Params, ParamShape{
			Name:    f.Name,
			Type:    f.Type,
			Index:   f.Index,
			Default: attrs.Default,
		})
	}
	ctor.ParamCount = len(ctor.Params)
	return ctor, nil
}

func underlyingInt(t reflect.Type) reflect.Type {
	switch t.Kind() {
	case reflect.Int:
		return reflect.TypeOf(int(0))
	case reflect.Int8:
		return reflect.TypeOf(int8(0))
	case reflect.Int16:
		return reflect.TypeOf(int16(0))
	case reflect.Int32:
		return reflect.TypeOf(int32(0))
	case reflect.Int64:
		return reflect.TypeOf(int64(0))
	case reflect.Uint:
		return reflect.TypeOf(uint(0))
	case reflect.Uint8:
		return reflect.TypeOf(uint8(0))
	case reflect.Uint16:
		return reflect.TypeOf(uint16(0))
	case reflect.Uint32:
		return reflect.TypeOf(uint32(0))
	default:
		return reflect.TypeOf(uint64(0))
	}
}

// parseTag reads the `msgpack:` tag grammar: an optional serialized-name
// override, then comma-separated options key=N and default=V. "-" skips the
// field.
func parseTag(tag, where string) (PropertyAttrs, error) {
	var attrs PropertyAttrs
	if tag == "" {
		return attrs, nil
	}
	if tag == "-" {
		attrs.Skip = true
		return attrs, nil
	}
	parts := strings.Split(tag, ",")
	attrs.NameOverride = parts[0]
	for _, opt := range parts[1:] {
		switch {
		case strings.HasPrefix(opt, "key="):
			n, err := strconv.Atoi(opt[len("key="):])
			if err != nil || n < 0 {
				return attrs, xerrors.Errorf("%s: invalid key index %q", where, opt)
			}
			attrs.KeyIndex = &n
		case strings.HasPrefix(opt, "default="):
			attrs.Default = opt[len("default="):]
		case opt == "":
		default:
			return attrs, xerrors.Errorf("%s: unknown tag option %q", where, opt)
		}
	}
	return attrs, nil
}
