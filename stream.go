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
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/containerd/errdefs"
	"github.com/containerd/log"
)

// streamHeaderLen is the fixed size of the XZ stream header: 6 magic
// bytes, 2 stream-flag bytes and a CRC32 of the flags.
const streamHeaderLen = 12

// headerMagic identifies an XZ stream.
var headerMagic = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}

// CheckType identifies the integrity check used for every block of a
// stream. It occupies the low nibble of the second stream-flag byte.
type CheckType byte

const (
	CheckNone   CheckType = 0x00
	CheckCRC32  CheckType = 0x01
	CheckCRC64  CheckType = 0x04
	CheckSHA256 CheckType = 0x0a
)

// String returns the check type's name as used by the xz tooling.
func (c CheckType) String() string {
	switch c {
	case CheckNone:
		return "none"
	case CheckCRC32:
		return "crc32"
	case CheckCRC64:
		return "crc64"
	case CheckSHA256:
		return "sha256"
	default:
		return fmt.Sprintf("unknown(%#02x)", byte(c))
	}
}

// Size returns the byte count of the check field trailing each block.
// Only CRC32, CRC64 and SHA-256 streams are supported: without a known
// check size, block boundaries cannot be computed.
func (c CheckType) Size() (int, error) {
	switch c {
	case CheckCRC32:
		return 4, nil
	case CheckCRC64:
		return 8, nil
	case CheckSHA256:
		return 32, nil
	default:
		return 0, fmt.Errorf("%v: %w", c, ErrUnsupportedCheck)
	}
}

// Stream indexes the blocks of a single XZ stream. The index grows
// lazily: blocks are discovered front to back by following each
// block's end offset until the stream's index record is reached, at
// which point the block count is fixed.
//
// A Stream and the Blocks it returns may be used from multiple
// goroutines; all access to the shared source handle is serialized
// internally.
type Stream struct {
	src       *source
	header    []byte
	checkType CheckType
	checkSize int

	// mu guards index growth. blocks is append-only; count is -1 until
	// the index marker seals it.
	mu     sync.Mutex
	blocks []*Block
	count  int
}

// Open indexes the XZ stream in the file at path. The returned stream
// owns the file handle and closes it on Close.
func Open(ctx context.Context, path string) (*Stream, error) {
	src, err := openSource(path)
	if err != nil {
		return nil, err
	}
	s, err := newStream(ctx, src)
	if err != nil {
		src.Close()
		return nil, err
	}
	return s, nil
}

// NewStream indexes the XZ stream read from r. The handle is borrowed:
// it stays owned by the caller, and the caller must not reposition or
// close it while the stream is in use.
func NewStream(ctx context.Context, r io.ReadSeeker) (*Stream, error) {
	return newStream(ctx, borrowSource(r))
}

func newStream(ctx context.Context, src *source) (*Stream, error) {
	header := make([]byte, streamHeaderLen)
	if err := src.readAt(header, 0); err != nil {
		return nil, fmt.Errorf("stream header: %w", err)
	}

	if !bytes.Equal(header[:len(headerMagic)], headerMagic) {
		// Tolerated: callers reading damaged files can still walk
		// blocks if the rest of the header is intact. See Header.
		log.G(ctx).WithField("header", fmt.Sprintf("%x", header)).
			Warn("xz stream header magic mismatch")
	}

	checkType := CheckType(header[7] & 0x0f)
	checkSize, err := checkType.Size()
	if err != nil {
		return nil, err
	}

	s := &Stream{
		src:       src,
		header:    header,
		checkType: checkType,
		checkSize: checkSize,
		count:     -1,
	}

	// Seed the index with the block following the stream header. An
	// index record there means a stream with no blocks, which is valid:
	// seal at zero rather than fail.
	first, err := newBlock(src, streamHeaderLen, checkSize)
	switch {
	case err == nil:
		s.blocks = append(s.blocks, first)
	case errors.Is(err, errIndexMarker):
		s.count = 0
	default:
		return nil, err
	}

	return s, nil
}

// Header returns a copy of the raw 12-byte stream header. The magic
// signature is not required to be valid; callers that need strict
// validation can compare the first six bytes themselves.
func (s *Stream) Header() []byte {
	return append([]byte(nil), s.header...)
}

// CheckType returns the stream's integrity-check type.
func (s *Stream) CheckType() CheckType { return s.checkType }

// CheckSize returns the per-block check field size in bytes.
func (s *Stream) CheckSize() int { return s.checkSize }

// Close releases the underlying file if the stream owns it (Open); it
// is a no-op for borrowed handles (NewStream).
func (s *Stream) Close() error { return s.src.Close() }

// GetBlock returns block n, counting from zero. Blocks not yet
// discovered are parsed by walking end offsets forward from the last
// known block. Requests past the final block fail with an error
// matching errdefs.ErrOutOfRange.
func (s *Stream) GetBlock(ctx context.Context, n int) (*Block, error) {
	if n < 0 {
		return nil, fmt.Errorf("block %d: %w", n, errdefs.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.growLocked(ctx, n); err != nil {
		return nil, err
	}
	if n >= len(s.blocks) {
		return nil, fmt.Errorf("block %d of %d: %w", n, len(s.blocks), errdefs.ErrOutOfRange)
	}
	return s.blocks[n], nil
}

// BlockCount discovers all remaining blocks and returns the total.
// The count is computed once; subsequent calls return it without I/O.
func (s *Stream) BlockCount(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.growLocked(ctx, int(^uint(0)>>1)); err != nil {
		return 0, err
	}
	return s.count, nil
}

// growLocked extends the block index until it covers block n or the
// index marker seals it. Called with s.mu held. A failed block parse
// leaves the index unchanged.
func (s *Stream) growLocked(ctx context.Context, n int) error {
	for len(s.blocks) <= n && s.count < 0 {
		frontier := s.blocks[len(s.blocks)-1].EndOffset()
		b, err := newBlock(s.src, frontier, s.checkSize)
		if err != nil {
			if errors.Is(err, errIndexMarker) {
				s.count = len(s.blocks)
				log.G(ctx).WithField("blocks", s.count).
					Debug("xz block index sealed")
				return nil
			}
			return err
		}
		s.blocks = append(s.blocks, b)
	}
	return nil
}
