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

// Package msgpack is a type-shape-driven MessagePack serialization engine.
// Converters are synthesized lazily from structural descriptions of user
// types and memoized for the lifetime of a Serializer instance.
package msgpack

import (
	"context"
	"io"
	"reflect"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/typeshape/msgpack/shape"
)

// ============================================================================
// Config
// ============================================================================

// MultiDimFormat selects the wire form of multi-dimensional arrays.
type MultiDimFormat int

const (
	// MultiDimNested encodes nested arrays matching the rank.
	MultiDimNested MultiDimFormat = iota
	// MultiDimFlat encodes one array holding the dimension sizes followed by
	// every element in row-major order.
	MultiDimFlat
)

// NamingPolicy transforms declared property names into serialized names.
type NamingPolicy func(string) string

// IdentityNaming keeps declared names unchanged.
func IdentityNaming(name string) string { return name }

// CamelCaseNaming lower-cases the first rune.
func CamelCaseNaming(name string) string {
	if name == "" {
		return name
	}
	_, size := utf8.DecodeRuneInString(name)
	return strings.ToLower(name[:size]) + name[size:]
}

// PascalCaseNaming upper-cases the first rune.
func PascalCaseNaming(name string) string {
	if name == "" {
		return name
	}
	_, size := utf8.DecodeRuneInString(name)
	return strings.ToUpper(name[:size]) + name[size:]
}

// Config holds the serializer options.
type Config struct {
	PreserveReferences     bool
	SerializeDefaultValues bool
	MultiDimFormat         MultiDimFormat
	Naming                 NamingPolicy
	MaxDepth               int
	FlushThreshold         int
}

func defaultConfig() Config {
	return Config{
		SerializeDefaultValues: true,
		MultiDimFormat:         MultiDimNested,
		Naming:                 IdentityNaming,
		MaxDepth:               DefaultMaxDepth,
		FlushThreshold:         DefaultFlushThreshold,
	}
}

// Option configures a Serializer.
type Option func(*Serializer)

// WithPreserveReferences enables identity deduplication of shared and cyclic
// object graphs via the reference extension.
func WithPreserveReferences(enabled bool) Option {
	return func(s *Serializer) { s.config.PreserveReferences = enabled }
}

// WithSerializeDefaultValues controls whether properties equal to their
// default are emitted. Defaults to true.
func WithSerializeDefaultValues(enabled bool) Option {
	return func(s *Serializer) { s.config.SerializeDefaultValues = enabled }
}

// WithMultiDimFormat selects the multi-dimensional array wire form.
func WithMultiDimFormat(f MultiDimFormat) Option {
	return func(s *Serializer) { s.config.MultiDimFormat = f }
}

// WithNamingPolicy sets the property naming policy.
func WithNamingPolicy(p NamingPolicy) Option {
	return func(s *Serializer) { s.config.Naming = p }
}

// WithMaxDepth overrides the nesting depth budget.
func WithMaxDepth(depth int) Option {
	return func(s *Serializer) { s.config.MaxDepth = depth }
}

// WithFlushThreshold overrides the unflushed-byte threshold of the streaming
// writer.
func WithFlushThreshold(n int) Option {
	return func(s *Serializer) { s.config.FlushThreshold = n }
}

// WithLogger attaches a logger; converter synthesis events are logged at
// debug level.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Serializer) { s.logger = logger }
}

// WithShapeProvider replaces the default shape provider.
func WithShapeProvider(p *shape.Provider) Option {
	return func(s *Serializer) { s.provider = p }
}

// WithConverter registers a user-supplied converter for the exact type of
// prototype (or for the reflect.Type itself when one is passed). It takes
// precedence over every synthesized converter.
func WithConverter(prototype interface{}, c Converter) Option {
	return func(s *Serializer) {
		s.userConverters[resolveType(prototype)] = c
	}
}

// WithFactory registers a construction function with the shape provider.
// fn must be func() T or func(Args) T; see shape.Provider.RegisterFactory.
func WithFactory(fn interface{}) Option {
	return func(s *Serializer) {
		if err := s.provider.RegisterFactory(fn); err != nil && s.initErr == nil {
			s.initErr = shapeErrorf("registering factory: %w", err)
		}
	}
}

// WithUnion declares a closed subtype set for base. base is typically a
// nil pointer to an interface, e.g. (*Vehicle)(nil); representative may be
// nil. Use SubType to build entries.
func WithUnion(base, representative interface{}, entries ...shape.UnionEntry) Option {
	return func(s *Serializer) {
		var repr reflect.Type
		if representative != nil {
			repr = resolveType(representative)
		}
		if err := s.provider.RegisterUnion(resolveType(base), repr, entries...); err != nil && s.initErr == nil {
			s.initErr = shapeErrorf("registering union: %w", err)
		}
	}
}

// SubType builds a union entry binding alias to T.
func SubType[T any](alias int32) shape.UnionEntry {
	return shape.UnionEntry{Alias: alias, Type: reflect.TypeOf((*T)(nil)).Elem()}
}

// resolveType maps a prototype value to its type. A nil pointer to an
// interface resolves to the interface type itself.
func resolveType(prototype interface{}) reflect.Type {
	if t, ok := prototype.(reflect.Type); ok {
		return t
	}
	t := reflect.TypeOf(prototype)
	if t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Interface {
		return t.Elem()
	}
	return t
}

// ============================================================================
// Serializer
// ============================================================================

// Serializer synthesizes and caches converters and performs top-level
// operations. A Serializer is not safe for concurrent use; wrap it with the
// threadsafe package for pooled concurrent access.
type Serializer struct {
	config         Config
	logger         zerolog.Logger
	provider       *shape.Provider
	registry       *registry
	userConverters map[reflect.Type]Converter
	initErr        error

	// writer is reused across Marshal calls to avoid per-call allocation
	writer *Writer
}

// New creates a Serializer with the given options.
func New(opts ...Option) *Serializer {
	s := &Serializer{
		config:         defaultConfig(),
		logger:         zerolog.Nop(),
		provider:       shape.NewProvider(),
		registry:       newRegistry(),
		userConverters: make(map[reflect.Type]Converter),
		writer:         NewWriter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetConverter returns the memoized converter for t, synthesizing it on
// first use. Construction errors propagate out of the first call.
func (s *Serializer) GetConverter(t reflect.Type) (Converter, error) {
	if s.initErr != nil {
		return nil, s.initErr
	}
	return s.registry.getOrAdd(t, s)
}

// Marshal serializes value to MessagePack bytes.
func (s *Serializer) Marshal(value interface{}) ([]byte, error) {
	rv := reflect.ValueOf(value)
	if !rv.IsValid() {
		return []byte{codeNil}, nil
	}
	return s.marshalValue(rv)
}

func (s *Serializer) marshalValue(rv reflect.Value) ([]byte, error) {
	conv, err := s.GetConverter(rv.Type())
	if err != nil {
		return nil, err
	}
	ctx := newContext(s)
	defer ctx.release()
	s.writer.Reset()
	if err := conv.Write(s.writer, rv, ctx); err != nil {
		return nil, err
	}
	out := make([]byte, len(s.writer.Bytes()))
	copy(out, s.writer.Bytes())
	return out, nil
}

// Unmarshal deserializes data into the value pointed to by target.
func (s *Serializer) Unmarshal(data []byte, target interface{}) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return notSupportedErrorf("unmarshal target must be a non-nil pointer")
	}
	return s.unmarshalValue(data, rv.Elem())
}

func (s *Serializer) unmarshalValue(data []byte, rv reflect.Value) error {
	conv, err := s.GetConverter(rv.Type())
	if err != nil {
		return err
	}
	ctx := newContext(s)
	defer ctx.release()
	return conv.Read(NewReader(data), rv, ctx)
}

// Encode streams value to w, flushing whenever the buffered encoding
// crosses the configured threshold. Cancellation of ctx surfaces as a
// Canceled error at the next element boundary or flush point.
func (s *Serializer) Encode(ctx context.Context, w io.Writer, value interface{}) error {
	rv := reflect.ValueOf(value)
	if !rv.IsValid() {
		_, err := w.Write([]byte{codeNil})
		return err
	}
	conv, err := s.GetConverter(rv.Type())
	if err != nil {
		return err
	}
	sc := newContext(s)
	defer sc.release()
	sw := NewStreamWriter(w)
	if err := writeStreamOf(conv, ctx, sw, rv, sc); err != nil {
		return err
	}
	return sw.Flush(ctx)
}

// Decode streams one value from r into the value pointed to by target.
func (s *Serializer) Decode(ctx context.Context, r io.Reader, target interface{}) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return notSupportedErrorf("decode target must be a non-nil pointer")
	}
	conv, err := s.GetConverter(rv.Elem().Type())
	if err != nil {
		return err
	}
	sc := newContext(s)
	defer sc.release()
	return readStreamOf(conv, ctx, NewStreamReader(r), rv.Elem(), sc)
}

// ============================================================================
// Generic API - static types preserved, so interface-typed unions work
// ============================================================================

// Serialize encodes value under its static type T.
func Serialize[T any](s *Serializer, value T) ([]byte, error) {
	rv := reflect.ValueOf(&value).Elem()
	return s.marshalValue(rv)
}

// Deserialize decodes data as a value of type T.
func Deserialize[T any](s *Serializer, data []byte) (T, error) {
	var out T
	rv := reflect.ValueOf(&out).Elem()
	err := s.unmarshalValue(data, rv)
	return out, err
}

// ============================================================================
// Convenience functions over a pooled default serializer
// ============================================================================

var defaultPool = sync.Pool{
	New: func() interface{} { return New() },
}

// Marshal serializes value using a pooled default serializer.
func Marshal[T any](value T) ([]byte, error) {
	s := defaultPool.Get().(*Serializer)
	defer defaultPool.Put(s)
	return Serialize(s, value)
}

// Unmarshal deserializes data using a pooled default serializer.
func Unmarshal[T any](data []byte) (T, error) {
	s := defaultPool.Get().(*Serializer)
	defer defaultPool.Put(s)
	return Deserialize[T](s, data)
}
