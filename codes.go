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

// MessagePack format codes. Shortest-encoding rules apply per value.
const (
	codeFixIntMax    = 0x7f
	codeFixMapPrefix = 0x80
	codeFixMapMax    = 0x8f
	codeFixArrPrefix = 0x90
	codeFixArrMax    = 0x9f
	codeFixStrPrefix = 0xa0
	codeFixStrMax    = 0xbf

	codeNil   = 0xc0
	codeFalse = 0xc2
	codeTrue  = 0xc3

	codeBin8  = 0xc4
	codeBin16 = 0xc5
	codeBin32 = 0xc6

	codeExt8  = 0xc7
	codeExt16 = 0xc8
	codeExt32 = 0xc9

	codeFloat32 = 0xca
	codeFloat64 = 0xcb

	codeUint8  = 0xcc
	codeUint16 = 0xcd
	codeUint32 = 0xce
	codeUint64 = 0xcf

	codeInt8  = 0xd0
	codeInt16 = 0xd1
	codeInt32 = 0xd2
	codeInt64 = 0xd3

	codeFixExt1  = 0xd4
	codeFixExt2  = 0xd5
	codeFixExt4  = 0xd6
	codeFixExt8  = 0xd7
	codeFixExt16 = 0xd8

	codeStr8  = 0xd9
	codeStr16 = 0xda
	codeStr32 = 0xdb

	codeArray16 = 0xdc
	codeArray32 = 0xdd

	codeMap16 = 0xde
	codeMap32 = 0xdf

	codeNegFixIntMin = 0xe0
)

// Extension type codes used by this engine. These are part of the on-wire
// contract and are fixed across versions.
const (
	// ExtReference carries an unsigned varint sequence number pointing at a
	// previously serialized object. Emitted only with reference preservation
	// enabled.
	ExtReference int8 = 0x01

	// ExtGUID carries the 16 raw bytes of a UUID.
	ExtGUID int8 = 0x02

	// extTimestamp is the MessagePack-reserved timestamp extension.
	extTimestamp int8 = -1
)

const maxFixLen = 31

func isFixInt(c byte) bool {
	return c <= codeFixIntMax
}

func isNegFixInt(c byte) bool {
	return c >= codeNegFixIntMin
}

func isFixMap(c byte) bool {
	return c >= codeFixMapPrefix && c <= codeFixMapMax
}

func isFixArray(c byte) bool {
	return c >= codeFixArrPrefix && c <= codeFixArrMax
}

func isFixStr(c byte) bool {
	return c >= codeFixStrPrefix && c <= codeFixStrMax
}
