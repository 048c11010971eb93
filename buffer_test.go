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
)

func TestVarUint(t *testing.T) {
	for i := 1; i <= 32; i++ {
		buf := NewByteBuffer(nil)
		for j := 0; j < i; j++ {
			buf.WriteByte_(1) // make offsets uneven
			_, _ = buf.ReadByte_()
		}
		checkVarUint(t, buf, 1, 1)
		checkVarUint(t, buf, 1<<6, 1)
		checkVarUint(t, buf, 1<<7, 2)
		checkVarUint(t, buf, 1<<13, 2)
		checkVarUint(t, buf, 1<<14, 3)
		checkVarUint(t, buf, 1<<20, 3)
		checkVarUint(t, buf, 1<<21, 4)
		checkVarUint(t, buf, 1<<27, 4)
		checkVarUint(t, buf, 1<<28, 5)
		checkVarUint(t, buf, 1<<62, 9)
		checkVarUint(t, buf, ^uint64(0), 10)
	}
}

func checkVarUint(t *testing.T, buf *ByteBuffer, value uint64, bytesWritten int) {
	t.Helper()
	require.Equal(t, buf.WriterIndex(), buf.ReaderIndex())
	require.Equal(t, bytesWritten, buf.WriteVarUint(value))
	got, err := buf.ReadVarUint()
	require.NoError(t, err)
	require.Equal(t, buf.ReaderIndex(), buf.WriterIndex())
	require.Equal(t, value, got)
}

func TestByteBufferGrowAndCompact(t *testing.T) {
	buf := NewByteBuffer(nil)
	payload := make([]byte, 300)
	for i := range payload {
		payload[i] = byte(i)
	}
	buf.WriteBinary(payload)
	head, err := buf.ReadBinary(100)
	require.NoError(t, err)
	require.Equal(t, payload[:100], head)

	buf.compact()
	require.Equal(t, 0, buf.ReaderIndex())
	require.Equal(t, 200, buf.Remaining())
	rest, err := buf.ReadBinary(200)
	require.NoError(t, err)
	require.Equal(t, payload[100:], rest)
}

func TestByteBufferTruncatedReads(t *testing.T) {
	buf := NewByteBuffer([]byte{1, 2})
	_, err := buf.ReadUint32()
	require.Equal(t, ErrTruncated, KindOf(err))
	_, err = buf.ReadBinary(3)
	require.Equal(t, ErrTruncated, KindOf(err))
}
