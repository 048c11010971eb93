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
	"testing"

	"github.com/stretchr/testify/require"
	vmsgpack "github.com/vmihailenco/msgpack/v5"
)

func decodeAsMap(t *testing.T, data []byte) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, vmsgpack.Unmarshal(data, &out))
	return out
}

func TestNamingPolicies(t *testing.T) {
	type Account struct {
		UserName string
		Balance  int
	}
	value := Account{UserName: "kim", Balance: 3}

	t.Run("Identity", func(t *testing.T) {
		data, err := Serialize(New(), value)
		require.NoError(t, err)
		m := decodeAsMap(t, data)
		require.Contains(t, m, "UserName")
		require.Contains(t, m, "Balance")
	})

	t.Run("CamelCase", func(t *testing.T) {
		s := New(WithNamingPolicy(CamelCaseNaming))
		data, err := Serialize(s, value)
		require.NoError(t, err)
		m := decodeAsMap(t, data)
		require.Contains(t, m, "userName")
		require.Contains(t, m, "balance")

		out, err := Deserialize[Account](s, data)
		require.NoError(t, err)
		require.Equal(t, value, out)
	})

	t.Run("Custom", func(t *testing.T) {
		s := New(WithNamingPolicy(func(name string) string { return "x_" + name }))
		data, err := Serialize(s, value)
		require.NoError(t, err)
		require.Contains(t, decodeAsMap(t, data), "x_UserName")
	})
}

func TestTagNameOverrideAndSkip(t *testing.T) {
	type Record struct {
		ID     int    `msgpack:"id"`
		Name   string `msgpack:"display_name"`
		Secret string `msgpack:"-"`
	}
	s := New()
	data, err := Serialize(s, Record{ID: 7, Name: "n", Secret: "hide me"})
	require.NoError(t, err)
	m := decodeAsMap(t, data)
	require.Len(t, m, 2)
	require.Contains(t, m, "id")
	require.Contains(t, m, "display_name")

	out, err := Deserialize[Record](s, data)
	require.NoError(t, err)
	require.Equal(t, 7, out.ID)
	require.Equal(t, "n", out.Name)
	require.Empty(t, out.Secret)
}

func TestUnknownFieldsSkipped(t *testing.T) {
	type Small struct{ A int }
	w := NewWriter()
	w.WriteMapHeader(3)
	w.WriteString("Z")
	w.WriteArrayHeader(2)
	w.WriteInt(1)
	w.WriteString("deep")
	w.WriteString("A")
	w.WriteInt(9)
	w.WriteString("Q")
	w.WriteNil()

	out, err := Deserialize[Small](New(), w.Bytes())
	require.NoError(t, err)
	require.Equal(t, 9, out.A)
}

func TestEmbeddedFieldsFlatten(t *testing.T) {
	type Base struct{ BaseProp int }
	type Derived struct {
		Base
		OwnProp int
	}
	s := New()
	data, err := Serialize(s, Derived{Base: Base{BaseProp: 5}, OwnProp: 6})
	require.NoError(t, err)
	m := decodeAsMap(t, data)
	require.Len(t, m, 2)
	require.Contains(t, m, "BaseProp")
	require.Contains(t, m, "OwnProp")

	out, err := Deserialize[Derived](s, data)
	require.NoError(t, err)
	require.Equal(t, 5, out.BaseProp)
	require.Equal(t, 6, out.OwnProp)
}

// ---------------------------------------------------------------------------
// Keyed (array-shaped) objects
// ---------------------------------------------------------------------------

func TestKeyedObject(t *testing.T) {
	type Entry struct {
		ID   int    `msgpack:",key=0"`
		Name string `msgpack:",key=3"`
	}
	s := New()
	data, err := Serialize(s, Entry{ID: 42, Name: "k"})
	require.NoError(t, err)

	// slots 1 and 2 are padded with nil; the header spans maxIndex+1
	var raw []interface{}
	require.NoError(t, vmsgpack.Unmarshal(data, &raw))
	require.Len(t, raw, 4)
	require.Nil(t, raw[1])
	require.Nil(t, raw[2])

	out, err := Deserialize[Entry](s, data)
	require.NoError(t, err)
	require.Equal(t, Entry{ID: 42, Name: "k"}, out)
}

func TestKeyedObjectShortArrayDefaultsTrailing(t *testing.T) {
	type Entry struct {
		ID   int    `msgpack:",key=0"`
		Name string `msgpack:",key=1"`
	}
	w := NewWriter()
	w.WriteArrayHeader(1)
	w.WriteInt(5)

	out, err := Deserialize[Entry](New(), w.Bytes())
	require.NoError(t, err)
	require.Equal(t, Entry{ID: 5}, out)
}

func TestMixedKeyAttributesFatal(t *testing.T) {
	type Broken struct {
		A int `msgpack:",key=0"`
		B int
	}
	_, err := Serialize(New(), Broken{})
	require.Equal(t, ErrShape, KindOf(err))
}

func TestDuplicateKeyIndexFatal(t *testing.T) {
	type Broken struct {
		A int `msgpack:",key=1"`
		B int `msgpack:",key=1"`
	}
	_, err := Serialize(New(), Broken{})
	require.Equal(t, ErrShape, KindOf(err))
}

// ---------------------------------------------------------------------------
// Default-value suppression
// ---------------------------------------------------------------------------

func TestDefaultValueSuppression(t *testing.T) {
	type Options struct {
		Name    string
		Retries int `msgpack:",default=3"`
	}
	s := New(WithSerializeDefaultValues(false))

	t.Run("DefaultsOmitted", func(t *testing.T) {
		data, err := Serialize(s, Options{Name: "", Retries: 3})
		require.NoError(t, err)
		require.Len(t, decodeAsMap(t, data), 0)

		out, err := Deserialize[Options](s, data)
		require.NoError(t, err)
		require.Empty(t, out.Name)
		// the absent field decodes to its declared default
		require.Equal(t, 3, out.Retries)
	})

	t.Run("NonDefaultsKept", func(t *testing.T) {
		data, err := Serialize(s, Options{Name: "x", Retries: 5})
		require.NoError(t, err)
		m := decodeAsMap(t, data)
		require.Len(t, m, 2)
	})

	t.Run("ZeroVersusDeclaredDefault", func(t *testing.T) {
		data, err := Serialize(s, Options{Retries: 0})
		require.NoError(t, err)
		m := decodeAsMap(t, data)
		require.Len(t, m, 1)
		require.Contains(t, m, "Retries")
	})
}

func TestSerializeDefaultValuesOnByDefault(t *testing.T) {
	type Options struct{ Name string }
	data, err := Serialize(New(), Options{})
	require.NoError(t, err)
	require.Len(t, decodeAsMap(t, data), 1)
}

// ---------------------------------------------------------------------------
// Factory (non-default constructor) flow
// ---------------------------------------------------------------------------

type frozenPoint struct {
	X     int
	Y     int
	Label string
}

type frozenPointArgs struct {
	X int
	Y int
}

func newFrozenPoint(args frozenPointArgs) frozenPoint {
	return frozenPoint{X: args.X, Y: args.Y, Label: "built"}
}

func TestFactoryConstruction(t *testing.T) {
	s := New(WithFactory(newFrozenPoint))
	data, err := Serialize(s, frozenPoint{X: 1, Y: 2, Label: "ignored"})
	require.NoError(t, err)

	out, err := Deserialize[frozenPoint](s, data)
	require.NoError(t, err)
	require.Equal(t, 1, out.X)
	require.Equal(t, 2, out.Y)
	// Label is not a constructor parameter: assigned after materialization
	require.Equal(t, "ignored", out.Label)
}

func TestFactoryMatchesBothCasings(t *testing.T) {
	s := New(WithFactory(newFrozenPoint))

	w := NewWriter()
	w.WriteMapHeader(2)
	w.WriteString("x") // camelCase of parameter name
	w.WriteInt(10)
	w.WriteString("Y") // PascalCase
	w.WriteInt(20)

	out, err := Deserialize[frozenPoint](s, w.Bytes())
	require.NoError(t, err)
	require.Equal(t, 10, out.X)
	require.Equal(t, 20, out.Y)
	require.Equal(t, "built", out.Label)
}

func TestZeroArgFactory(t *testing.T) {
	type widget struct{ Size int }
	s := New(WithFactory(func() widget { return widget{Size: -1} }))

	w := NewWriter()
	w.WriteMapHeader(0)
	out, err := Deserialize[widget](s, w.Bytes())
	require.NoError(t, err)
	require.Equal(t, -1, out.Size)
}

// ---------------------------------------------------------------------------
// User-supplied converters
// ---------------------------------------------------------------------------

type celsius float64

// celsiusConverter encodes temperatures as tenths of a degree.
type celsiusConverter struct{}

func (celsiusConverter) PreferStream() bool { return false }

func (celsiusConverter) Write(w *Writer, value reflect.Value, ctx *Context) error {
	w.WriteInt(int64(value.Float() * 10))
	return nil
}

func (celsiusConverter) Read(r *Reader, value reflect.Value, ctx *Context) error {
	v, err := r.ReadInt64()
	if err != nil {
		return err
	}
	value.SetFloat(float64(v) / 10)
	return nil
}

func TestUserConverterTakesPrecedence(t *testing.T) {
	s := New(WithConverter(celsius(0), celsiusConverter{}))
	data, err := Serialize(s, celsius(21.5))
	require.NoError(t, err)
	require.Equal(t, []byte{codeUint8, 215}, data)
	out, err := Deserialize[celsius](s, data)
	require.NoError(t, err)
	require.Equal(t, celsius(21.5), out)
}
