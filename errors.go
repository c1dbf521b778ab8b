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

	"github.com/containerd/errdefs"
)

// Errors returned by stream and block parsing. Each sentinel wraps an
// errdefs category so callers can match either the specific condition
// or the broad class with errors.Is.
var (
	// ErrUnsupportedCheck indicates a stream whose check-type nibble is
	// not CRC32, CRC64 or SHA-256. The check size cannot be determined,
	// so block boundaries cannot be computed.
	ErrUnsupportedCheck = fmt.Errorf("unsupported stream check type: %w", errdefs.ErrNotImplemented)

	// ErrNoEmbeddedSizes indicates a block header without both the
	// compressed-size and uncompressed-size fields. Recovering the sizes
	// from the stream's index record is deliberately not attempted.
	ErrNoEmbeddedSizes = fmt.Errorf("block header lacks embedded sizes: %w", errdefs.ErrNotImplemented)

	// ErrMalformedVarint indicates a corrupt variable-length size field:
	// a zero continuation byte, a field overrunning the header, or a
	// value exceeding 63 bits.
	ErrMalformedVarint = fmt.Errorf("malformed variable-length integer: %w", errdefs.ErrInvalidArgument)

	// ErrSizeMismatch indicates that the bytes actually read or decoded
	// do not match a header-declared length. Treated as data corruption,
	// never retried.
	ErrSizeMismatch = fmt.Errorf("payload size does not match block header: %w", errdefs.ErrDataLoss)
)

// errIndexMarker is the terminal condition of block discovery: the byte
// at an expected block-header position is 0x00, meaning the stream's
// index record starts there. It never escapes the package; GetBlock
// translates it into an out-of-range error.
var errIndexMarker = errors.New("index indicator, not a block")
