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
	"io"
	"os"
	"sync"
)

// source serializes access to a shared seekable handle. The handle has
// one cursor, so every seek+read pair must execute as a unit; the mutex
// is shared by the stream and every block it produces.
//
// closer is non-nil only when the source was opened from a path; a
// borrowed handle stays owned by the caller.
type source struct {
	mu     sync.Mutex
	r      io.ReadSeeker
	closer io.Closer
}

func openSource(path string) (*source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &source{r: f, closer: f}, nil
}

func borrowSource(r io.ReadSeeker) *source {
	return &source{r: r}
}

// readAt reads len(p) bytes starting at offset. The short-read error
// from io.ReadFull propagates so callers can distinguish truncation
// (io.ErrUnexpectedEOF) from other I/O failures.
func (s *source) readAt(p []byte, offset int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.r.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	_, err := io.ReadFull(s.r, p)
	return err
}

// readByteAt reads the single byte at offset.
func (s *source) readByteAt(offset int64) (byte, error) {
	var b [1]byte
	if err := s.readAt(b[:], offset); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (s *source) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
