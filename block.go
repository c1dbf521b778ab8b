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
	"errors"
	"fmt"
	"io"
)

// isTruncated reports whether a guarded read ended early. A read that
// starts exactly at EOF yields io.EOF rather than io.ErrUnexpectedEOF;
// both mean the source is shorter than the headers claim.
func isTruncated(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// Block header flag bits.
const (
	filterCountMask         = 0x03
	compressedSizePresent   = 0x40
	uncompressedSizePresent = 0x80
)

// Block is one independently framed unit of an XZ stream. Header
// fields are decoded once at construction; the compressed and
// uncompressed payloads are materialized on demand and weakly cached,
// so holding a Block is cheap regardless of block size.
type Block struct {
	src       *source
	offset    int64
	checkSize int

	header           []byte
	flags            byte
	compressedSize   int64
	uncompressedSize int64

	compressed   payloadCell
	uncompressed payloadCell
}

// newBlock decodes the block header at offset. A 0x00 size-indicator
// byte at that position is the stream's index record, reported as
// errIndexMarker so the stream can seal its block index.
func newBlock(src *source, offset int64, checkSize int) (*Block, error) {
	indicator, err := src.readByteAt(offset)
	if err != nil {
		if isTruncated(err) {
			return nil, fmt.Errorf("block header at %d truncated: %w", offset, ErrSizeMismatch)
		}
		return nil, fmt.Errorf("block at %d: %w", offset, err)
	}
	if indicator == 0 {
		return nil, errIndexMarker
	}

	// Header length includes the indicator byte and the trailing CRC32.
	headerLen := int(indicator)*4 + 4
	header := make([]byte, headerLen)
	header[0] = indicator
	if err := src.readAt(header[1:], offset+1); err != nil {
		if isTruncated(err) {
			return nil, fmt.Errorf("block header at %d truncated: %w", offset, ErrSizeMismatch)
		}
		return nil, fmt.Errorf("block header at %d: %w", offset, err)
	}

	b := &Block{
		src:       src,
		offset:    offset,
		checkSize: checkSize,
		header:    header,
		flags:     header[1],
	}

	if b.flags&compressedSizePresent == 0 || b.flags&uncompressedSizePresent == 0 {
		return nil, fmt.Errorf("block at %d: %w", offset, ErrNoEmbeddedSizes)
	}

	// Size fields sit between the flags byte and the filter properties.
	// Bound decoding by the header body: the trailing CRC32 can never be
	// part of a size field.
	body := header[2 : headerLen-4]
	cs, n, err := uvarint(body)
	if err != nil {
		return nil, fmt.Errorf("block at %d compressed size: %w", offset, err)
	}
	us, _, err := uvarint(body[n:])
	if err != nil {
		return nil, fmt.Errorf("block at %d uncompressed size: %w", offset, err)
	}
	b.compressedSize = int64(cs)
	b.uncompressedSize = int64(us)

	return b, nil
}

// Offset returns the block's start offset in the stream.
func (b *Block) Offset() int64 { return b.offset }

// HeaderLength returns the block header size in bytes, including the
// size-indicator byte and the trailing CRC32.
func (b *Block) HeaderLength() int { return len(b.header) }

// Flags returns the raw block flags byte.
func (b *Block) Flags() byte { return b.flags }

// NumFilters returns the number of filters in the block's filter
// chain, between 1 and 4.
func (b *Block) NumFilters() int { return int(b.flags&filterCountMask) + 1 }

// HeaderCRC32 returns the four CRC bytes that terminate the block
// header. They are not verified.
func (b *Block) HeaderCRC32() []byte { return b.header[len(b.header)-4:] }

// CompressedSize returns the exact compressed payload size, excluding
// alignment padding.
func (b *Block) CompressedSize() int64 { return b.compressedSize }

// CompressedSizePadded returns the compressed payload size rounded up
// to the next multiple of four; the padding bytes are zero.
func (b *Block) CompressedSizePadded() int64 {
	return (b.compressedSize + 3) &^ 3
}

// UncompressedSize returns the size the payload decodes to.
func (b *Block) UncompressedSize() int64 { return b.uncompressedSize }

// CheckSize returns the size of the block's integrity-check field.
func (b *Block) CheckSize() int { return b.checkSize }

// EndOffset returns the offset immediately after this block: where the
// next block header, or the stream's index record, begins.
func (b *Block) EndOffset() int64 {
	return b.offset + int64(len(b.header)) + b.CompressedSizePadded() + int64(b.checkSize)
}

// Check reads the block's integrity-check field. The bytes are
// returned as stored, without verification.
func (b *Block) Check() ([]byte, error) {
	check := make([]byte, b.checkSize)
	off := b.offset + int64(len(b.header)) + b.CompressedSizePadded()
	if err := b.src.readAt(check, off); err != nil {
		return nil, fmt.Errorf("block check at %d: %w", off, err)
	}
	return check, nil
}

// CompressedData returns a reference to the block's compressed payload,
// reading it from the source if no live reference exists. The caller
// must Close the returned payload.
func (b *Block) CompressedData() (*Payload, error) {
	return b.compressed.acquire(func() ([]byte, error) {
		data := make([]byte, b.compressedSize)
		off := b.offset + int64(len(b.header))
		if err := b.src.readAt(data, off); err != nil {
			if isTruncated(err) {
				return nil, fmt.Errorf("compressed payload at %d truncated: %w", off, ErrSizeMismatch)
			}
			return nil, fmt.Errorf("compressed payload at %d: %w", off, err)
		}
		return data, nil
	})
}

// UncompressedData returns a reference to the decoded payload,
// decompressing the block if no live reference exists. Decoding runs
// outside the source lock. The caller must Close the returned payload.
func (b *Block) UncompressedData() (*Payload, error) {
	return b.uncompressed.acquire(func() ([]byte, error) {
		compressed, err := b.CompressedData()
		if err != nil {
			return nil, err
		}
		defer compressed.Close()

		data, err := decodeLZMA2(compressed.Bytes(), b.uncompressedSize)
		if err != nil {
			return nil, fmt.Errorf("block at %d: %w", b.offset, err)
		}
		return data, nil
	})
}
