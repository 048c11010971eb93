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
	"testing"

	"github.com/stretchr/testify/require"
	vmsgpack "github.com/vmihailenco/msgpack/v5"
)

type BaseClass struct {
	BaseClassProperty int
}

type DerivedA struct {
	BaseClass
	DerivedAProperty int
}

type DerivedB struct {
	BaseClass
	DerivedBProperty string
}

func unionSerializer() *Serializer {
	return New(WithUnion(BaseClass{}, nil, SubType[DerivedA](1), SubType[DerivedB](2)))
}

// TestUnionBaseEncoding: a base value encodes as [nil, payload].
func TestUnionBaseEncoding(t *testing.T) {
	s := unionSerializer()
	data, err := Serialize(s, BaseClass{BaseClassProperty: 5})
	require.NoError(t, err)

	var raw []interface{}
	require.NoError(t, vmsgpack.Unmarshal(data, &raw))
	require.Len(t, raw, 2)
	require.Nil(t, raw[0])
	payload, ok := raw[1].(map[string]interface{})
	require.True(t, ok)
	require.EqualValues(t, 5, payload["BaseClassProperty"])

	out, err := Deserialize[BaseClass](s, data)
	require.NoError(t, err)
	require.Equal(t, 5, out.BaseClassProperty)
}

// TestDerivedAsStaticType: a subtype serialized under its own static type is
// a plain map, not a union envelope.
func TestDerivedAsStaticType(t *testing.T) {
	s := unionSerializer()
	d := DerivedA{BaseClass: BaseClass{BaseClassProperty: 5}, DerivedAProperty: 6}
	data, err := Serialize(s, d)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, vmsgpack.Unmarshal(data, &m))
	require.Len(t, m, 2)
	require.EqualValues(t, 5, m["BaseClassProperty"])
	require.EqualValues(t, 6, m["DerivedAProperty"])

	out, err := Deserialize[DerivedA](s, data)
	require.NoError(t, err)
	require.Equal(t, d, out)
}

// Interface-declared unions: the declared type is the interface, the
// runtime type picks the alias.

type Vehicle interface {
	Wheels() int
}

type Car struct {
	Doors int
}

func (Car) Wheels() int { return 4 }

type Bike struct {
	Gears int
}

func (Bike) Wheels() int { return 2 }

func vehicleSerializer() *Serializer {
	return New(WithUnion((*Vehicle)(nil), Car{}, SubType[Bike](1)))
}

func TestUnionInterfaceRoundTrip(t *testing.T) {
	s := vehicleSerializer()

	t.Run("Subtype", func(t *testing.T) {
		data, err := Serialize[Vehicle](s, Bike{Gears: 21})
		require.NoError(t, err)

		var raw []interface{}
		require.NoError(t, vmsgpack.Unmarshal(data, &raw))
		require.Len(t, raw, 2)
		require.EqualValues(t, 1, raw[0])

		out, err := Deserialize[Vehicle](s, data)
		require.NoError(t, err)
		bike, ok := out.(Bike)
		require.True(t, ok)
		require.Equal(t, 21, bike.Gears)
	})

	t.Run("Representative", func(t *testing.T) {
		data, err := Serialize[Vehicle](s, Car{Doors: 3})
		require.NoError(t, err)

		var raw []interface{}
		require.NoError(t, vmsgpack.Unmarshal(data, &raw))
		require.Nil(t, raw[0])

		out, err := Deserialize[Vehicle](s, data)
		require.NoError(t, err)
		car, ok := out.(Car)
		require.True(t, ok)
		require.Equal(t, 3, car.Doors)
	})

	t.Run("NilInterface", func(t *testing.T) {
		data, err := Serialize[Vehicle](s, nil)
		require.NoError(t, err)
		require.Equal(t, []byte{codeNil}, data)

		out, err := Deserialize[Vehicle](s, data)
		require.NoError(t, err)
		require.Nil(t, out)
	})
}

func TestUnionInsideObject(t *testing.T) {
	type Garage struct {
		Primary Vehicle
		Backup  Vehicle
	}
	s := vehicleSerializer()
	g := Garage{Primary: Car{Doors: 5}, Backup: Bike{Gears: 3}}
	data, err := Serialize(s, g)
	require.NoError(t, err)

	out, err := Deserialize[Garage](s, data)
	require.NoError(t, err)
	require.Equal(t, g, out)
}

func TestUnionConstructionErrors(t *testing.T) {
	t.Run("DuplicateAlias", func(t *testing.T) {
		s := New(WithUnion((*Vehicle)(nil), nil, SubType[Bike](1), SubType[Car](1)))
		_, err := Serialize[Vehicle](s, Bike{})
		require.Equal(t, ErrShape, KindOf(err))
	})

	t.Run("DuplicateSubtype", func(t *testing.T) {
		s := New(WithUnion((*Vehicle)(nil), nil, SubType[Bike](1), SubType[Bike](2)))
		_, err := Serialize[Vehicle](s, Bike{})
		require.Equal(t, ErrShape, KindOf(err))
	})

	t.Run("NotDerived", func(t *testing.T) {
		type Unrelated struct{ N int }
		s := New(WithUnion(BaseClass{}, nil, SubType[Unrelated](1)))
		_, err := Serialize(s, BaseClass{})
		require.Equal(t, ErrShape, KindOf(err))
	})

	t.Run("NotImplementing", func(t *testing.T) {
		type Unrelated struct{ N int }
		s := New(WithUnion((*Vehicle)(nil), nil, SubType[Unrelated](1)))
		_, err := Serialize[Vehicle](s, nil)
		require.Equal(t, ErrShape, KindOf(err))
	})
}

func TestUnionUnknownRuntimeType(t *testing.T) {
	s := New(WithUnion((*Vehicle)(nil), nil, SubType[Bike](1)))
	_, err := Serialize[Vehicle](s, Car{})
	require.Equal(t, ErrNotSupported, KindOf(err))
}

func TestUnionUnknownAlias(t *testing.T) {
	s := vehicleSerializer()
	w := NewWriter()
	w.WriteArrayHeader(2)
	w.WriteInt(99)
	w.WriteMapHeader(0)
	_, err := Deserialize[Vehicle](s, w.Bytes())
	require.Equal(t, ErrFormat, KindOf(err))
}

func TestUnionMalformedEnvelope(t *testing.T) {
	s := vehicleSerializer()
	w := NewWriter()
	w.WriteArrayHeader(3)
	w.WriteNil()
	w.WriteMapHeader(0)
	w.WriteNil()
	_, err := Deserialize[Vehicle](s, w.Bytes())
	require.Equal(t, ErrFormat, KindOf(err))
}
