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
	"fmt"
	"io"

	"github.com/ulikunitz/xz/lzma"
)

// lzma2DictCap is the dictionary capacity handed to the decoder. Blocks
// are decoded with this fixed single-filter configuration; the
// dictionary-size byte in the filter properties is not consulted.
// 64 MiB covers every preset of the reference encoder.
const lzma2DictCap = 1 << 26

// decodeLZMA2 decompresses a raw LZMA2 chunk stream and verifies that
// it produces exactly uncompressedSize bytes. Operates on bytes already
// read from the source, so it runs without the source lock.
func decodeLZMA2(compressed []byte, uncompressedSize int64) ([]byte, error) {
	cfg := lzma.Reader2Config{DictCap: lzma2DictCap}
	r, err := cfg.NewReader2(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("lzma2 decoder: %w", err)
	}

	data := make([]byte, uncompressedSize)
	if _, err := io.ReadFull(r, data); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("lzma2 produced short output: %w", ErrSizeMismatch)
		}
		return nil, fmt.Errorf("lzma2 decode: %w", err)
	}

	// The declared uncompressed size must consume the whole chunk
	// stream; trailing decoded data means the header lied.
	var extra [1]byte
	if n, _ := r.Read(extra[:]); n != 0 {
		return nil, fmt.Errorf("lzma2 produced excess output: %w", ErrSizeMismatch)
	}
	return data, nil
}
