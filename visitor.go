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
	"strconv"
	"strings"

	"github.com/typeshape/msgpack/shape"
)

// ============================================================================
// Converter synthesis visitor
// ============================================================================

// synthesize produces a converter for t by structural recursion over its
// shape. Dispatch order on entry: user-supplied converters, the built-in
// primitive table, specialized slices, then the shape-variant methods below.
func (s *Serializer) synthesize(t reflect.Type) (Converter, error) {
	s.logger.Debug().Str("type", t.String()).Msg("synthesizing converter")
	c, err := s.synthesizeCore(t)
	if err != nil {
		return nil, err
	}
	if s.config.PreserveReferences {
		c = &refConverter{inner: c}
	}
	return c, nil
}

func (s *Serializer) synthesizeCore(t reflect.Type) (Converter, error) {
	if c, ok := s.userConverters[t]; ok {
		return c, nil
	}
	if c, ok := builtinConverters[t]; ok {
		return c, nil
	}
	if c, ok := specializedSliceConverters[t]; ok {
		return c, nil
	}

	sh, err := s.provider.ShapeOf(t)
	if err != nil {
		return nil, shapeErrorf("deriving shape of %s: %w", t, err)
	}

	switch sh.Kind {
	case shape.KindOptional:
		elem, err := s.GetConverter(sh.Element)
		if err != nil {
			return nil, err
		}
		return &nullableConverter{elemType: sh.Element, elem: elem}, nil

	case shape.KindEnum:
		return s.visitEnum(sh)

	case shape.KindPrimitive:
		c, ok := kindConverters[t.Kind()]
		if !ok {
			return nil, shapeErrorf("no primitive converter for kind %s", t.Kind())
		}
		return c, nil

	case shape.KindDictionary:
		return s.visitDictionary(sh)

	case shape.KindEnumerable:
		return s.visitEnumerable(sh)

	case shape.KindObject:
		return s.visitObject(sh)

	default:
		return nil, shapeErrorf("unhandled shape kind %d for %s", sh.Kind, t)
	}
}

func (s *Serializer) visitEnum(sh *shape.TypeShape) (Converter, error) {
	switch sh.Underlying.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return &enumConverter{signed: true}, nil
	default:
		return &enumConverter{signed: false}, nil
	}
}

func (s *Serializer) visitDictionary(sh *shape.TypeShape) (Converter, error) {
	key, err := s.GetConverter(sh.Key)
	if err != nil {
		return nil, err
	}
	value, err := s.GetConverter(sh.Value)
	if err != nil {
		return nil, err
	}
	c := &mapConverter{mapType: sh.Type, key: key, value: value}
	if sh.Strategy == shape.StrategyNone {
		return &writeOnlyCollectionConverter{inner: c}, nil
	}
	return c, nil
}

func (s *Serializer) visitEnumerable(sh *shape.TypeShape) (Converter, error) {
	t := sh.Type
	if t.Kind() == reflect.Array && t.Elem().Kind() == reflect.Array &&
		s.config.MultiDimFormat == MultiDimFlat {
		inner := t
		for inner.Kind() == reflect.Array {
			inner = inner.Elem()
		}
		elem, err := s.GetConverter(inner)
		if err != nil {
			return nil, err
		}
		return newFlatArrayConverter(t, elem), nil
	}
	elem, err := s.GetConverter(sh.Element)
	if err != nil {
		return nil, err
	}
	var c Converter
	switch sh.Strategy {
	case shape.StrategyFixed:
		c = &fixedArrayConverter{arrayType: t, elem: elem}
	case shape.StrategyNone:
		c = &writeOnlyCollectionConverter{inner: &sliceConverter{sliceType: t, elem: elem}}
	default:
		c = &sliceConverter{sliceType: t, elem: elem}
	}
	return c, nil
}

// visitObject accepts an object shape: it classifies the keyed versus named
// path, builds property accessors, dispatches on the constructor shape, and
// wraps the result in a union converter when known subtypes are declared.
func (s *Serializer) visitObject(sh *shape.TypeShape) (Converter, error) {
	var st *subTypes
	if sh.Union != nil {
		built, err := s.buildSubTypes(sh)
		if err != nil {
			return nil, err
		}
		st = built
	}

	if sh.Type.Kind() == reflect.Interface {
		if st == nil {
			return nil, shapeErrorf("interface %s has no subtype set", sh.Type)
		}
		return &unionConverter{typ: sh.Type, st: st}, nil
	}

	props, keyed, err := s.buildAccessors(sh)
	if err != nil {
		return nil, err
	}

	var c Converter
	if keyed {
		c, err = buildKeyedConverter(sh.Type, props)
	} else {
		c, err = s.buildNamedConverter(sh, props)
	}
	if err != nil {
		return nil, err
	}

	if st != nil {
		if st.repr == nil {
			st.repr = sh.Type
			st.reprConv = c
		}
		return &unionConverter{typ: sh.Type, st: st}, nil
	}
	return c, nil
}

// buildAccessors iterates the shape's properties once, in declaration order,
// enforcing the all-or-nothing rule for explicit key indexes.
func (s *Serializer) buildAccessors(sh *shape.TypeShape) ([]*propertyAccessors, bool, error) {
	var props []*propertyAccessors
	tagged, untagged := 0, 0
	for i := range sh.Properties {
		p := &sh.Properties[i]
		if p.Attrs.Skip {
			continue
		}
		if p.Attrs.KeyIndex != nil {
			tagged++
		} else {
			untagged++
		}
		acc, err := s.buildAccessor(sh, p)
		if err != nil {
			return nil, false, err
		}
		props = append(props, acc)
	}
	if tagged > 0 && untagged > 0 {
		return nil, false, shapeErrorf("%s mixes key-indexed and named properties", sh.Type)
	}
	return props, tagged > 0, nil
}

func (s *Serializer) buildAccessor(sh *shape.TypeShape, p *shape.PropertyShape) (*propertyAccessors, error) {
	conv, err := s.GetConverter(p.Type)
	if err != nil {
		return nil, err
	}

	name := p.Attrs.NameOverride
	if name == "" {
		name = s.config.Naming(p.Name)
	}
	raw := []byte(name)
	nameWriter := NewWriter()
	nameWriter.WriteString(name)
	encoded := append([]byte(nil), nameWriter.Bytes()...)

	acc := &propertyAccessors{
		name:        name,
		rawName:     raw,
		encodedName: encoded,
		fieldType:   p.Type,
		index:       append([]int(nil), p.Index...),
		conv:        conv,
		keyIndex:    -1,
	}
	if p.Attrs.KeyIndex != nil {
		acc.keyIndex = *p.Attrs.KeyIndex
	}

	if param := matchParam(sh.Constructor, p.Name); param != nil {
		conv, err := s.GetConverter(param.Type)
		if err != nil {
			return nil, err
		}
		acc.ctorParam = &paramInfo{
			name:  param.Name,
			typ:   param.Type,
			index: append([]int(nil), param.Index...),
			conv:  conv,
		}
		if param.Default != "" {
			def, err := parseDefaultLiteral(param.Type, param.Default)
			if err != nil {
				return nil, shapeErrorf("%s.%s: %w", sh.Type, param.Name, err)
			}
			acc.ctorParam.defaultValue = def
		}
	}

	if p.Attrs.Default != "" {
		def, err := parseDefaultLiteral(p.Type, p.Attrs.Default)
		if err != nil {
			return nil, shapeErrorf("%s.%s: %w", sh.Type, p.Name, err)
		}
		acc.defaultValue = def
	}

	if !s.config.SerializeDefaultValues {
		literal := p.Attrs.Default
		if literal == "" {
			if param := matchParam(sh.Constructor, p.Name); param != nil {
				literal = param.Default
			}
		}
		pred, err := defaultPredicate(p.Type, literal)
		if err != nil {
			return nil, shapeErrorf("%s.%s: %w", sh.Type, p.Name, err)
		}
		acc.shouldSerialize = pred
	}
	return acc, nil
}

// matchParam finds the constructor parameter for a property by
// case-insensitive name comparison.
func matchParam(ctor *shape.ConstructorShape, propName string) *shape.ParamShape {
	if ctor == nil {
		return nil
	}
	for i := range ctor.Params {
		if strings.EqualFold(ctor.Params[i].Name, propName) {
			return &ctor.Params[i]
		}
	}
	return nil
}

// defaultPredicate builds the should-serialize gate for a property: emit
// only when the current value differs from its effective default.
func defaultPredicate(t reflect.Type, literal string) (func(reflect.Value) bool, error) {
	if literal == "" {
		return func(v reflect.Value) bool { return !v.IsZero() }, nil
	}
	def, err := parseDefaultLiteral(t, literal)
	if err != nil {
		return nil, err
	}
	want := def.Interface()
	return func(v reflect.Value) bool {
		return !reflect.DeepEqual(v.Interface(), want)
	}, nil
}

func parseDefaultLiteral(t reflect.Type, literal string) (reflect.Value, error) {
	out := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.String:
		out.SetString(literal)
	case reflect.Bool:
		v, err := strconv.ParseBool(literal)
		if err != nil {
			return out, shapeErrorf("invalid bool default %q", literal)
		}
		out.SetBool(v)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v, err := strconv.ParseInt(literal, 10, 64)
		if err != nil {
			return out, shapeErrorf("invalid integer default %q", literal)
		}
		out.SetInt(v)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err := strconv.ParseUint(literal, 10, 64)
		if err != nil {
			return out, shapeErrorf("invalid integer default %q", literal)
		}
		out.SetUint(v)
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(literal, 64)
		if err != nil {
			return out, shapeErrorf("invalid float default %q", literal)
		}
		out.SetFloat(v)
	default:
		return out, shapeErrorf("default literal unsupported for %s", t)
	}
	return out, nil
}

// buildNamedConverter dispatches on the constructor shape: a type without a
// registered factory yields the default-construction map converter; a type
// with one, whether or not the factory takes an argument state, goes through
// the factory flow.
func (s *Serializer) buildNamedConverter(sh *shape.TypeShape, props []*propertyAccessors) (Converter, error) {
	ctor := sh.Constructor
	if ctor == nil {
		table := newNameTable[*propertyAccessors]()
		for _, p := range props {
			table.add(p.rawName, p)
		}
		return &objectMapConverter{typ: sh.Type, props: props, table: table}, nil
	}

	table := newNameTable[ctorTarget]()
	claimed := make(map[string]bool)
	for _, p := range props {
		if p.ctorParam == nil {
			continue
		}
		// parameters answer to both casings of their declared name
		for _, n := range []string{CamelCaseNaming(p.ctorParam.name), PascalCaseNaming(p.ctorParam.name)} {
			if !claimed[n] {
				claimed[n] = true
				table.add([]byte(n), ctorTarget{param: p.ctorParam})
			}
		}
	}
	for _, p := range props {
		if p.ctorParam != nil {
			continue
		}
		if !claimed[p.name] {
			claimed[p.name] = true
			table.add(p.rawName, ctorTarget{prop: p})
		}
	}
	return &objectMapCtorConverter{
		typ:      sh.Type,
		argState: ctor.ArgState,
		factory:  ctor.Factory,
		props:    props,
		table:    table,
	}, nil
}

// buildKeyedConverter places each accessor at its explicit index, padding
// gaps with absent markers.
func buildKeyedConverter(t reflect.Type, props []*propertyAccessors) (Converter, error) {
	maxIndex := -1
	for _, p := range props {
		if p.keyIndex > maxIndex {
			maxIndex = p.keyIndex
		}
	}
	slots := make([]*propertyAccessors, maxIndex+1)
	for _, p := range props {
		if slots[p.keyIndex] != nil {
			return nil, shapeErrorf("%s declares key index %d twice", t, p.keyIndex)
		}
		slots[p.keyIndex] = p
	}
	return &objectArrayConverter{typ: t, slots: slots}, nil
}

// buildSubTypes validates the declared subtype set and freezes the two-way
// alias maps.
func (s *Serializer) buildSubTypes(sh *shape.TypeShape) (*subTypes, error) {
	st := &subTypes{
		byAlias: make(map[int32]*unionArm),
		byType:  make(map[reflect.Type]*unionArm),
	}
	base := sh.Type
	for _, e := range sh.Union.Entries {
		if e.Type == nil {
			return nil, shapeErrorf("%s declares a nil subtype", base)
		}
		if err := checkSubtype(base, e.Type); err != nil {
			return nil, err
		}
		if _, dup := st.byAlias[e.Alias]; dup {
			return nil, shapeErrorf("%s declares alias %d twice", base, e.Alias)
		}
		if _, dup := st.byType[e.Type]; dup {
			return nil, shapeErrorf("%s declares subtype %s twice", base, e.Type)
		}
		conv, err := s.GetConverter(e.Type)
		if err != nil {
			return nil, err
		}
		arm := &unionArm{alias: e.Alias, typ: e.Type, conv: conv}
		st.byAlias[e.Alias] = arm
		st.byType[e.Type] = arm
	}
	if repr := sh.Union.Representative; repr != nil {
		if err := checkSubtype(base, repr); err != nil {
			return nil, err
		}
		conv, err := s.GetConverter(repr)
		if err != nil {
			return nil, err
		}
		st.repr = repr
		st.reprConv = conv
	}
	return st, nil
}

// checkSubtype verifies sub is assignable to the declared base: it must
// implement a base interface, or embed a concrete base.
func checkSubtype(base, sub reflect.Type) error {
	if base.Kind() == reflect.Interface {
		if !sub.Implements(base) {
			return shapeErrorf("%s does not implement %s", sub, base)
		}
		return nil
	}
	if sub == base {
		return nil
	}
	if sub.Kind() == reflect.Struct {
		for i := 0; i < sub.NumField(); i++ {
			f := sub.Field(i)
			if f.Anonymous && f.Type == base {
				return nil
			}
		}
	}
	return shapeErrorf("%s is not derived from %s", sub, base)
}

