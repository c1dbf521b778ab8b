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

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz/lzma"
)

// The fixtures below assemble byte-exact XZ streams: real header CRCs,
// real LZMA2 payloads, alignment padding, index record and footer.
// Keeping the wire format honest means every parser test also
// exercises the real layout rather than a mock of it.

// encodeStreamHeader builds the 12-byte stream header for the given
// check type.
func encodeStreamHeader(check CheckType) []byte {
	h := make([]byte, streamHeaderLen)
	copy(h, headerMagic)
	h[7] = byte(check)
	binary.LittleEndian.PutUint32(h[8:], crc32.ChecksumIEEE(h[6:8]))
	return h
}

// compressLZMA2 produces the raw LZMA2 chunk stream for payload, as it
// appears inside an XZ block.
func compressLZMA2(t *testing.T, payload []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := lzma.NewWriter2(&buf)
	require.NoError(t, err)
	_, err = w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// encodeBlockHeader builds a block header declaring both sizes and a
// single LZMA2 filter.
func encodeBlockHeader(t *testing.T, compressedSize, uncompressedSize uint64) []byte {
	t.Helper()

	h := []byte{0, compressedSizePresent | uncompressedSizePresent}
	h = appendUvarint(h, compressedSize)
	h = appendUvarint(h, uncompressedSize)
	// Filter flags: LZMA2 id, one property byte, 64 MiB dictionary.
	h = append(h, 0x21, 0x01, 0x1a)

	// Pad so the total length including the CRC is a multiple of four,
	// then backfill the size indicator.
	padded := (len(h) + 4 + 3) &^ 3
	for len(h) < padded-4 {
		h = append(h, 0)
	}
	h[0] = byte(padded/4 - 1)
	return binary.LittleEndian.AppendUint32(h, crc32.ChecksumIEEE(h))
}

// buildStream assembles a complete single-stream XZ file containing
// the given uncompressed block payloads.
func buildStream(t *testing.T, check CheckType, payloads [][]byte) []byte {
	t.Helper()

	checkSize, err := check.Size()
	require.NoError(t, err)

	out := encodeStreamHeader(check)

	type record struct{ unpadded, uncompressed uint64 }
	records := make([]record, 0, len(payloads))

	for _, payload := range payloads {
		compressed := compressLZMA2(t, payload)
		header := encodeBlockHeader(t, uint64(len(compressed)), uint64(len(payload)))

		out = append(out, header...)
		out = append(out, compressed...)
		for len(out)%4 != 0 {
			out = append(out, 0)
		}

		// The check field is located but never verified by the parser;
		// write a real CRC32 where that is cheap, zeros otherwise.
		checkField := make([]byte, checkSize)
		if check == CheckCRC32 {
			binary.LittleEndian.PutUint32(checkField, crc32.ChecksumIEEE(payload))
		}
		out = append(out, checkField...)

		records = append(records, record{
			unpadded:     uint64(len(header)+len(compressed)) + uint64(checkSize),
			uncompressed: uint64(len(payload)),
		})
	}

	// Index record: 0x00 indicator, block count, then one (unpadded
	// size, uncompressed size) pair per block.
	idx := []byte{0}
	idx = appendUvarint(idx, uint64(len(records)))
	for _, r := range records {
		idx = appendUvarint(idx, r.unpadded)
		idx = appendUvarint(idx, r.uncompressed)
	}
	for (len(idx)+4)%4 != 0 {
		idx = append(idx, 0)
	}
	idx = binary.LittleEndian.AppendUint32(idx, crc32.ChecksumIEEE(idx))
	out = append(out, idx...)

	// Footer: CRC32 over backward size and flags, backward size in
	// 4-byte units minus one, stream flags, footer magic.
	footer := make([]byte, 12)
	binary.LittleEndian.PutUint32(footer[4:], uint32(len(idx)/4-1))
	footer[9] = byte(check)
	binary.LittleEndian.PutUint32(footer, crc32.ChecksumIEEE(footer[4:10]))
	footer[10], footer[11] = 'Y', 'Z'
	return append(out, footer...)
}
