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

// Package xzindexer gives random access to the blocks of an XZ stream
// without decompressing it up front.
//
// A Stream validates the 12-byte stream header and walks the block
// sequence lazily: each block header declares its compressed and
// uncompressed sizes, so the next block's offset can be computed
// without touching the payload. Per-block payloads are materialized on
// demand through refcounted handles and recomputed from the source
// once every handle is closed, so indexing a large archive stays cheap
// while repeated reads of a hot block stay fast.
//
// Only single-stream files whose blocks carry embedded size fields and
// a single LZMA2 filter are supported; integrity checks are located
// and exposed but not verified.
package xzindexer
