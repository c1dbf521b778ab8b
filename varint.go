/*
   Copyright The xzindexer Authors.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package xzindexer

import "fmt"

// maxVarintLen is the longest well-formed encoding: nine 7-bit groups
// cover the 63 bits the format allows for a size field.
const maxVarintLen = 9

// uvarint decodes one little-endian base-128 integer from the start of
// p: low 7 bits of each byte are value bits, the high bit set means
// another byte follows. Returns the value and the number of bytes
// consumed so the caller can advance its own cursor.
//
// Iteration is bounded by len(p); a field that runs off the end of the
// span fails with ErrMalformedVarint rather than reading out of bounds.
// Any byte after the first whose 7 value bits are all zero (0x00 or
// 0x80) also fails: such a byte contributes nothing to the value, so
// it signals corrupt input.
func uvarint(p []byte) (uint64, int, error) {
	if len(p) == 0 {
		return 0, 0, fmt.Errorf("empty span: %w", ErrMalformedVarint)
	}

	x := uint64(p[0] & 0x7f)
	if p[0]&0x80 == 0 {
		return x, 1, nil
	}

	for i := 1; ; i++ {
		if i >= len(p) {
			return 0, 0, fmt.Errorf("unterminated after %d bytes: %w", i, ErrMalformedVarint)
		}
		if i >= maxVarintLen {
			return 0, 0, fmt.Errorf("value exceeds 63 bits: %w", ErrMalformedVarint)
		}

		b := p[i]
		if b&0x7f == 0 {
			return 0, 0, fmt.Errorf("zero byte in size field: %w", ErrMalformedVarint)
		}

		x |= uint64(b&0x7f) << (7 * uint(i))
		if b&0x80 == 0 {
			return x, i + 1, nil
		}
	}
}

// appendUvarint appends the encoding of x that uvarint decodes. Used by
// tests to build synthetic block headers.
func appendUvarint(p []byte, x uint64) []byte {
	for x >= 0x80 {
		p = append(p, byte(x)|0x80)
		x >>= 7
	}
	return append(p, byte(x))
}
