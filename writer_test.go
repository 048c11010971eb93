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
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	vmsgpack "github.com/vmihailenco/msgpack/v5"
)

// refMarshal encodes with the reference implementation in compact-ints mode,
// which matches the shortest-encoding rule this writer implements.
func refMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc := vmsgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)
	require.NoError(t, enc.Encode(v))
	return buf.Bytes()
}

// TestWriteIntMatchesReference checks the shortest-int selection against the
// reference MessagePack implementation.
func TestWriteIntMatchesReference(t *testing.T) {
	values := []int64{
		0, 1, 5, 0x7f, 0x80, 0xff, 0x100, 0xffff, 0x10000, 1 << 31, 1 << 40,
		-1, -31, -32, -33, -128, -129, -32768, -32769, -1 << 31, -1<<31 - 1, -1 << 40,
	}
	for _, v := range values {
		w := NewWriter()
		w.WriteInt(v)
		require.Equal(t, refMarshal(t, v), w.Bytes(), "value %d", v)
	}
}

func TestWriteUintMatchesReference(t *testing.T) {
	values := []uint64{0, 0x7f, 0x80, 0xff, 0x100, 0xffff, 0x10000, 0xffffffff, 0x100000000, ^uint64(0)}
	for _, v := range values {
		w := NewWriter()
		w.WriteUint(v)
		require.Equal(t, refMarshal(t, v), w.Bytes(), "value %d", v)
	}
}

func TestWriteStringMatchesReference(t *testing.T) {
	values := []string{"", "a", "hello", strings.Repeat("x", 31), strings.Repeat("x", 32), strings.Repeat("y", 256), strings.Repeat("z", 70000)}
	for _, v := range values {
		w := NewWriter()
		w.WriteString(v)
		want, err := vmsgpack.Marshal(v)
		require.NoError(t, err)
		require.Equal(t, want, w.Bytes(), "len %d", len(v))
	}
}

func TestWriteScalarsMatchReference(t *testing.T) {
	t.Run("Bool", func(t *testing.T) {
		for _, v := range []bool{true, false} {
			w := NewWriter()
			w.WriteBool(v)
			want, err := vmsgpack.Marshal(v)
			require.NoError(t, err)
			require.Equal(t, want, w.Bytes())
		}
	})

	t.Run("Float64", func(t *testing.T) {
		w := NewWriter()
		w.WriteFloat64(3.14159)
		want, err := vmsgpack.Marshal(3.14159)
		require.NoError(t, err)
		require.Equal(t, want, w.Bytes())
	})

	t.Run("Nil", func(t *testing.T) {
		w := NewWriter()
		w.WriteNil()
		require.Equal(t, []byte{codeNil}, w.Bytes())
	})

	t.Run("Bin", func(t *testing.T) {
		v := []byte{1, 2, 3}
		w := NewWriter()
		w.WriteBin(v)
		want, err := vmsgpack.Marshal(v)
		require.NoError(t, err)
		require.Equal(t, want, w.Bytes())
	})
}

func TestHeaderWidths(t *testing.T) {
	w := NewWriter()
	w.WriteArrayHeader(15)
	require.Equal(t, []byte{0x9f}, w.Bytes())

	w.Reset()
	w.WriteArrayHeader(16)
	require.Equal(t, []byte{codeArray16, 0x00, 0x10}, w.Bytes())

	w.Reset()
	w.WriteMapHeader(15)
	require.Equal(t, []byte{0x8f}, w.Bytes())

	w.Reset()
	w.WriteMapHeader(0x10000)
	require.Equal(t, []byte{codeMap32, 0x00, 0x01, 0x00, 0x00}, w.Bytes())
}
