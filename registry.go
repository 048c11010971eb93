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
	"context"
	"reflect"
	"sync"
)

// ============================================================================
// Registry - per-serializer converter memoization and cycle resolution
// ============================================================================

// converterSlot is the shared cell behind a delayed converter. It is
// fulfilled exactly once, when the visitor finishes constructing the real
// converter (or fails).
type converterSlot struct {
	done chan struct{}
	c    Converter
	err  error
}

// registry maps type identity to converters. An entry is either ready,
// under construction (a slot exists), or absent. Requests for a type that is
// mid-construction receive a delayed converter forwarding to the slot; this
// breaks unbounded recursion while visiting recursive shapes, and lets
// concurrent goroutines wait for the single constructing goroutine.
type registry struct {
	mu       sync.Mutex
	ready    map[reflect.Type]Converter
	building map[reflect.Type]*converterSlot
}

func newRegistry() *registry {
	return &registry{
		ready:    make(map[reflect.Type]Converter),
		building: make(map[reflect.Type]*converterSlot),
	}
}

// getOrAdd returns the converter for t, synthesizing it on first use.
func (g *registry) getOrAdd(t reflect.Type, s *Serializer) (Converter, error) {
	g.mu.Lock()
	if c, ok := g.ready[t]; ok {
		g.mu.Unlock()
		return c, nil
	}
	if slot, ok := g.building[t]; ok {
		g.mu.Unlock()
		return &delayedConverter{slot: slot}, nil
	}
	slot := &converterSlot{done: make(chan struct{})}
	g.building[t] = slot
	g.mu.Unlock()

	c, err := s.synthesize(t)

	g.mu.Lock()
	delete(g.building, t)
	if err == nil {
		g.ready[t] = c
	}
	g.mu.Unlock()

	slot.c, slot.err = c, err
	close(slot.done)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// delayedConverter defers to its slot's eventual converter. The registry
// guarantees the slot is fulfilled before any top-level read or write
// reaches a value of the delayed type, so the wait below only ever blocks a
// goroutine racing converter construction, never the constructing goroutine
// itself.
type delayedConverter struct {
	slot *converterSlot
}

func (d *delayedConverter) resolve() (Converter, error) {
	<-d.slot.done
	return d.slot.c, d.slot.err
}

func (d *delayedConverter) Write(w *Writer, value reflect.Value, ctx *Context) error {
	c, err := d.resolve()
	if err != nil {
		return err
	}
	return c.Write(w, value, ctx)
}

func (d *delayedConverter) Read(r *Reader, value reflect.Value, ctx *Context) error {
	c, err := d.resolve()
	if err != nil {
		return err
	}
	return c.Read(r, value, ctx)
}

// PreferStream may be queried while the slot is still unfulfilled (the
// visitor asks during construction of an enclosing converter); answering
// false without blocking keeps cyclic construction deadlock-free.
func (d *delayedConverter) PreferStream() bool {
	select {
	case <-d.slot.done:
		if d.slot.err == nil {
			return d.slot.c.PreferStream()
		}
	default:
	}
	return false
}

func (d *delayedConverter) WriteStream(ctx context.Context, sw *StreamWriter, value reflect.Value, sc *Context) error {
	c, err := d.resolve()
	if err != nil {
		return err
	}
	return writeStreamOf(c, ctx, sw, value, sc)
}

func (d *delayedConverter) ReadStream(ctx context.Context, sr *StreamReader, value reflect.Value, sc *Context) error {
	c, err := d.resolve()
	if err != nil {
		return err
	}
	return readStreamOf(c, ctx, sr, value, sc)
}
