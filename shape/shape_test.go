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

package shape

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

type sample struct {
	Name    string `msgpack:"display_name"`
	Indexed int    `msgpack:",key=2"`
	Skipped int    `msgpack:"-"`
	Maybe   *int
	hidden  int
}

func TestShapeOfStruct(t *testing.T) {
	p := NewProvider()
	s, err := p.ShapeOf(reflect.TypeOf(sample{}))
	require.NoError(t, err)
	require.Equal(t, KindObject, s.Kind)
	require.Len(t, s.Properties, 4)

	byName := map[string]PropertyShape{}
	for _, prop := range s.Properties {
		byName[prop.Name] = prop
	}
	require.Equal(t, "display_name", byName["Name"].Attrs.NameOverride)
	require.NotNil(t, byName["Indexed"].Attrs.KeyIndex)
	require.Equal(t, 2, *byName["Indexed"].Attrs.KeyIndex)
	require.True(t, byName["Skipped"].Attrs.Skip)
	require.True(t, byName["Maybe"].Nullable)
	_, hasHidden := byName["hidden"]
	require.False(t, hasHidden)
}

func TestShapeOfKinds(t *testing.T) {
	p := NewProvider()

	t.Run("Pointer", func(t *testing.T) {
		s, err := p.ShapeOf(reflect.TypeOf((*int)(nil)))
		require.NoError(t, err)
		require.Equal(t, KindOptional, s.Kind)
		require.Equal(t, reflect.TypeOf(0), s.Element)
	})

	t.Run("Map", func(t *testing.T) {
		s, err := p.ShapeOf(reflect.TypeOf(map[string]int{}))
		require.NoError(t, err)
		require.Equal(t, KindDictionary, s.Kind)
		require.Equal(t, StrategyMutable, s.Strategy)
	})

	t.Run("Slice", func(t *testing.T) {
		s, err := p.ShapeOf(reflect.TypeOf([]int{}))
		require.NoError(t, err)
		require.Equal(t, KindEnumerable, s.Kind)
		require.Equal(t, StrategySlice, s.Strategy)
	})

	t.Run("Array", func(t *testing.T) {
		s, err := p.ShapeOf(reflect.TypeOf([4]byte{}))
		require.NoError(t, err)
		require.Equal(t, KindEnumerable, s.Kind)
		require.Equal(t, StrategyFixed, s.Strategy)
	})

	t.Run("NamedInt", func(t *testing.T) {
		type mode int8
		s, err := p.ShapeOf(reflect.TypeOf(mode(0)))
		require.NoError(t, err)
		require.Equal(t, KindEnum, s.Kind)
		require.Equal(t, reflect.Int8, s.Underlying.Kind())
	})

	t.Run("PlainInt", func(t *testing.T) {
		s, err := p.ShapeOf(reflect.TypeOf(0))
		require.NoError(t, err)
		require.Equal(t, KindPrimitive, s.Kind)
	})

	t.Run("Chan", func(t *testing.T) {
		_, err := p.ShapeOf(reflect.TypeOf(make(chan int)))
		require.Error(t, err)
	})

	t.Run("UnregisteredInterface", func(t *testing.T) {
		_, err := p.ShapeOf(reflect.TypeOf((*interface{ M() })(nil)).Elem())
		require.Error(t, err)
	})
}

func TestShapeMemoized(t *testing.T) {
	p := NewProvider()
	ty := reflect.TypeOf(sample{})
	s1, err := p.ShapeOf(ty)
	require.NoError(t, err)
	s2, err := p.ShapeOf(ty)
	require.NoError(t, err)
	require.Same(t, s1, s2)
}

type built struct {
	A int
	B string
}

type builtArgs struct {
	A int `msgpack:",default=9"`
}

func TestRegisterFactory(t *testing.T) {
	p := NewProvider()
	require.NoError(t, p.RegisterFactory(func(args builtArgs) built { return built{A: args.A} }))

	s, err := p.ShapeOf(reflect.TypeOf(built{}))
	require.NoError(t, err)
	require.NotNil(t, s.Constructor)
	require.Equal(t, 1, s.Constructor.ParamCount)
	require.Equal(t, "A", s.Constructor.Params[0].Name)
	require.Equal(t, "9", s.Constructor.Params[0].Default)
}

func TestRegisterFactoryRejectsBadSignatures(t *testing.T) {
	p := NewProvider()
	require.Error(t, p.RegisterFactory(42))
	require.Error(t, p.RegisterFactory(func(a, b int) built { return built{} }))
	require.Error(t, p.RegisterFactory(func(n int) built { return built{} }))
}

func TestInvalidTagRejected(t *testing.T) {
	type bad struct {
		A int `msgpack:",key=banana"`
	}
	p := NewProvider()
	_, err := p.ShapeOf(reflect.TypeOf(bad{}))
	require.Error(t, err)
}

func TestEmbeddedPromotion(t *testing.T) {
	type Inner struct{ X int }
	type outer struct {
		Inner
		Y int
	}
	p := NewProvider()
	s, err := p.ShapeOf(reflect.TypeOf(outer{}))
	require.NoError(t, err)
	names := []string{}
	for _, prop := range s.Properties {
		names = append(names, prop.Name)
	}
	require.Equal(t, []string{"X", "Y"}, names)
}
