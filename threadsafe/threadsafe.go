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

// Package threadsafe provides a thread-safe wrapper around msgpack.Serializer
// using sync.Pool.
package threadsafe

import (
	"context"
	"io"
	"sync"

	"github.com/typeshape/msgpack"
)

// Serializer is a thread-safe wrapper around msgpack.Serializer using
// sync.Pool. It provides the same API but is safe for concurrent use.
type Serializer struct {
	pool sync.Pool
}

// New creates a new thread-safe serializer.
func New(opts ...msgpack.Option) *Serializer {
	s := &Serializer{}
	s.pool = sync.Pool{
		New: func() any {
			return msgpack.New(opts...)
		},
	}
	return s
}

func (s *Serializer) acquire() *msgpack.Serializer {
	return s.pool.Get().(*msgpack.Serializer)
}

func (s *Serializer) release(inner *msgpack.Serializer) {
	s.pool.Put(inner)
}

// Marshal serializes a value using a pooled serializer instance.
func (s *Serializer) Marshal(value interface{}) ([]byte, error) {
	inner := s.acquire()
	defer s.release(inner)
	return inner.Marshal(value)
}

// Unmarshal deserializes data into target using a pooled serializer
// instance.
func (s *Serializer) Unmarshal(data []byte, target interface{}) error {
	inner := s.acquire()
	defer s.release(inner)
	return inner.Unmarshal(data, target)
}

// Encode streams a value to w using a pooled serializer instance.
func (s *Serializer) Encode(ctx context.Context, w io.Writer, value interface{}) error {
	inner := s.acquire()
	defer s.release(inner)
	return inner.Encode(ctx, w, value)
}

// Decode streams one value from r using a pooled serializer instance.
func (s *Serializer) Decode(ctx context.Context, r io.Reader, target interface{}) error {
	inner := s.acquire()
	defer s.release(inner)
	return inner.Decode(ctx, r, target)
}

// Serialize encodes value under its static type T using a pooled instance.
func Serialize[T any](s *Serializer, value T) ([]byte, error) {
	inner := s.acquire()
	defer s.release(inner)
	return msgpack.Serialize(inner, value)
}

// Deserialize decodes data as a value of type T using a pooled instance.
func Deserialize[T any](s *Serializer, data []byte) (T, error) {
	inner := s.acquire()
	defer s.release(inner)
	return msgpack.Deserialize[T](inner, data)
}
