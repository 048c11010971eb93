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
	"sync"
	"unsafe"
)

// DefaultMaxDepth bounds converter recursion per top-level operation.
const DefaultMaxDepth = 64

// DefaultFlushThreshold is the unflushed-byte count above which streaming
// writers hand the buffer to the transport.
const DefaultFlushThreshold = 64 * 1024

// ============================================================================
// Context - per-operation state threaded through every converter call
// ============================================================================

// Context carries the depth budget, the owning serializer (for sub-converter
// lookup), the optional reference tracker, and the flush hint. One Context
// lives for exactly one top-level operation.
type Context struct {
	depthRemaining int
	maxDepth       int
	flushThreshold int
	owner          *Serializer
	refs           *RefTracker
}

func newContext(owner *Serializer) *Context {
	c := &Context{
		depthRemaining: owner.config.MaxDepth,
		maxDepth:       owner.config.MaxDepth,
		flushThreshold: owner.config.FlushThreshold,
		owner:          owner,
	}
	if owner.config.PreserveReferences {
		c.refs = acquireTracker()
	}
	return c
}

// release returns the borrowed tracker to the pool. Called exactly once per
// top-level operation, on every exit path.
func (c *Context) release() {
	if c.refs != nil {
		releaseTracker(c.refs)
		c.refs = nil
	}
}

// DepthStep consumes one level of the depth budget. Aggregate converters
// call it on entry and pair it with DepthPop on exit.
func (c *Context) DepthStep() error {
	c.depthRemaining--
	if c.depthRemaining < 0 {
		return depthExceededError(c.maxDepth)
	}
	return nil
}

// DepthPop restores the level consumed by DepthStep.
func (c *Context) DepthPop() {
	c.depthRemaining++
}

// Owner returns the serializer this operation belongs to.
func (c *Context) Owner() *Serializer { return c.owner }

// ============================================================================
// RefTracker - object identity tracking for reference preservation
// ============================================================================

// RefTracker maps object identities to sequence numbers on the write side
// and sequence numbers to decoded values on the read side. Trackers are
// pooled; a Context borrows one per top-level operation.
type RefTracker struct {
	writePtrs    map[uintptr]uint64
	writeStrings map[string]uint64
	nextSeq      uint64
	readValues   []reflect.Value
}

var trackerPool = sync.Pool{
	New: func() interface{} {
		return &RefTracker{
			writePtrs:    make(map[uintptr]uint64),
			writeStrings: make(map[string]uint64),
		}
	},
}

func acquireTracker() *RefTracker {
	return trackerPool.Get().(*RefTracker)
}

func releaseTracker(t *RefTracker) {
	clear(t.writePtrs)
	clear(t.writeStrings)
	t.nextSeq = 0
	t.readValues = t.readValues[:0]
	trackerPool.Put(t)
}

// TrackWrite records the identity of value if it is trackable and unseen,
// assigning it the next sequence number. It returns the previously assigned
// number when the identity is already known.
func (t *RefTracker) TrackWrite(value reflect.Value) (seq uint64, known, trackable bool) {
	switch value.Kind() {
	case reflect.Ptr, reflect.Map:
		if value.IsNil() {
			return 0, false, false
		}
		return t.trackPtr(value.Pointer())
	case reflect.Slice:
		if value.IsNil() {
			return 0, false, false
		}
		return t.trackPtr(value.Pointer())
	case reflect.String:
		s := value.String()
		if seq, ok := t.writeStrings[s]; ok {
			return seq, true, true
		}
		seq := t.nextSeq
		t.nextSeq++
		t.writeStrings[s] = seq
		return seq, false, true
	default:
		return 0, false, false
	}
}

func (t *RefTracker) trackPtr(p uintptr) (uint64, bool, bool) {
	if seq, ok := t.writePtrs[p]; ok {
		return seq, true, true
	}
	seq := t.nextSeq
	t.nextSeq++
	t.writePtrs[p] = seq
	return seq, false, true
}

// Reserve claims the next read-side sequence number before the value is
// decoded, so cyclic graphs can resolve references to an object that is
// still being filled.
func (t *RefTracker) Reserve() int {
	t.readValues = append(t.readValues, reflect.Value{})
	return len(t.readValues) - 1
}

// Fulfill records the decoded value at a reserved sequence number.
func (t *RefTracker) Fulfill(seq int, value reflect.Value) {
	t.readValues[seq] = value
}

// Resolve returns the value previously recorded at seq.
func (t *RefTracker) Resolve(seq uint64) (reflect.Value, error) {
	if seq >= uint64(len(t.readValues)) || !t.readValues[seq].IsValid() {
		return reflect.Value{}, notSupportedErrorf("reference to unknown sequence number %d", seq)
	}
	return t.readValues[seq], nil
}

// stringDataPtr exposes the backing-array word of a string for tests that
// assert decoded strings share storage.
func stringDataPtr(s string) uintptr {
	return uintptr(unsafe.Pointer(unsafe.StringData(s)))
}
