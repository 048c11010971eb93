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
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

type countingSink struct {
	buf    bytes.Buffer
	writes int
}

func (c *countingSink) Write(p []byte) (int, error) {
	c.writes++
	return c.buf.Write(p)
}

// oneByteReader forces a refill for every byte consumed.
type oneByteReader struct {
	data []byte
	pos  int
}

func (r *oneByteReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	p[0] = r.data[r.pos]
	r.pos++
	return 1, nil
}

type streamItem struct {
	Name  string
	Count int
}

func TestEncodeDecodeStream(t *testing.T) {
	s := New()
	items := make([]streamItem, 100)
	for i := range items {
		items[i] = streamItem{Name: "item", Count: i}
	}

	var sink countingSink
	require.NoError(t, s.Encode(context.Background(), &sink, items))

	var out []streamItem
	require.NoError(t, s.Decode(context.Background(), bytes.NewReader(sink.buf.Bytes()), &out))
	require.Equal(t, items, out)
}

// TestFlushThresholding: with a tiny threshold the writer hands chunks to
// the transport repeatedly instead of buffering the whole encoding.
func TestFlushThresholding(t *testing.T) {
	s := New(WithFlushThreshold(64))
	items := make([]streamItem, 200)
	for i := range items {
		items[i] = streamItem{Name: "padding-padding-padding", Count: i}
	}

	var sink countingSink
	require.NoError(t, s.Encode(context.Background(), &sink, items))
	require.Greater(t, sink.writes, 10)

	var out []streamItem
	require.NoError(t, s.Decode(context.Background(), bytes.NewReader(sink.buf.Bytes()), &out))
	require.Equal(t, items, out)
}

// TestDecodeFromChunkedReader exercises the refill-and-retry loop on every
// token boundary.
func TestDecodeFromChunkedReader(t *testing.T) {
	s := New()
	items := []streamItem{{Name: "alpha", Count: 1}, {Name: "beta", Count: 2}}
	data, err := Serialize(s, items)
	require.NoError(t, err)

	var out []streamItem
	require.NoError(t, s.Decode(context.Background(), &oneByteReader{data: data}, &out))
	require.Equal(t, items, out)
}

func TestDecodeScalarStream(t *testing.T) {
	s := New()
	data, err := Serialize(s, "stream me")
	require.NoError(t, err)

	var out string
	require.NoError(t, s.Decode(context.Background(), &oneByteReader{data: data}, &out))
	require.Equal(t, "stream me", out)
}

func TestEncodeCancellation(t *testing.T) {
	s := New(WithFlushThreshold(8))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items := make([]streamItem, 50)
	err := s.Encode(ctx, io.Discard, items)
	require.Equal(t, ErrCanceled, KindOf(err))
}

func TestDecodeCancellation(t *testing.T) {
	s := New()
	items := make([]streamItem, 50)
	data, err := Serialize(s, items)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out []streamItem
	err = s.Decode(ctx, &oneByteReader{data: data}, &out)
	require.Equal(t, ErrCanceled, KindOf(err))
}

func TestDecodeTruncatedStream(t *testing.T) {
	s := New()
	data, err := Serialize(s, []streamItem{{Name: "x", Count: 1}})
	require.NoError(t, err)

	var out []streamItem
	err = s.Decode(context.Background(), bytes.NewReader(data[:len(data)-2]), &out)
	require.Equal(t, ErrTruncated, KindOf(err))
}

// TestStreamWholeStructureFallback: primitive-element slices do not prefer
// the streaming path, so the reader isolates the whole structure and decodes
// it synchronously.
func TestStreamWholeStructureFallback(t *testing.T) {
	s := New()
	value := []int{1, 2, 3, 4, 5}
	data, err := Serialize(s, value)
	require.NoError(t, err)

	var out []int
	require.NoError(t, s.Decode(context.Background(), &oneByteReader{data: data}, &out))
	require.Equal(t, value, out)
}

func TestEncodeStreamMatchesMarshal(t *testing.T) {
	s := New()
	items := []streamItem{{Name: "alpha", Count: 1}, {Name: "beta", Count: 2}}

	direct, err := Serialize(s, items)
	require.NoError(t, err)

	var sink countingSink
	require.NoError(t, s.Encode(context.Background(), &sink, items))
	require.Equal(t, direct, sink.buf.Bytes())
}
