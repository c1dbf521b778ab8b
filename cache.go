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

import "sync"

// Payload is a caller-owned reference to a block payload. The bytes
// stay valid until Close; after the last reference to a payload is
// closed the backing buffer is dropped and the next accessor call
// rereads (or re-decodes) it from the source.
type Payload struct {
	entry *payloadEntry
	once  sync.Once
}

// Bytes returns the payload. The slice must not be retained past Close.
func (p *Payload) Bytes() []byte {
	return p.entry.data
}

// Len returns the payload length in bytes.
func (p *Payload) Len() int {
	return len(p.entry.data)
}

// Close releases this reference. Idempotent.
func (p *Payload) Close() error {
	p.once.Do(p.entry.release)
	return nil
}

type payloadEntry struct {
	cell *payloadCell
	data []byte
	refs int
}

func (e *payloadEntry) release() {
	e.cell.mu.Lock()
	defer e.cell.mu.Unlock()

	e.refs--
	if e.refs == 0 && e.cell.entry == e {
		// Last reference gone: forget the buffer so the next acquire
		// recomputes instead of handing out a dead entry.
		e.cell.entry = nil
	}
}

// payloadCell is a weak cache slot for one payload. It never owns the
// buffer: residency only affects performance, never correctness.
type payloadCell struct {
	mu    sync.Mutex
	entry *payloadEntry
}

// acquire returns a reference to the cached payload, calling fill to
// materialize it if no live reference exists. fill runs under the cell
// lock so concurrent acquirers share a single materialization.
func (c *payloadCell) acquire(fill func() ([]byte, error)) (*Payload, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entry == nil {
		data, err := fill()
		if err != nil {
			return nil, err
		}
		c.entry = &payloadEntry{cell: c, data: data}
	}
	c.entry.refs++
	return &Payload{entry: c.entry}, nil
}
