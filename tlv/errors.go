// Copyright 2025 Edgeo SCADA
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tlv implements the BACnet Clause 20 tag-length-value codec for
// application-tagged primitives and context-tagged constructed data.
package tlv

import (
	"errors"
	"fmt"
)

// Decode-side limits (spec §4.1, §5 resource limits).
const (
	MaxLength       = 1024 * 1024 // 1 MiB cap on any single decoded length field
	MaxNestingDepth = 32
	MaxListCount    = 10000
)

// Sentinel errors for category membership via errors.Is.
var (
	ErrTruncated       = errors.New("tlv: truncated data")
	ErrInvalidTag      = errors.New("tlv: invalid tag")
	ErrInvalidLength   = errors.New("tlv: invalid length (wrong size for the type or over the 1 MiB cap)")
	ErrNestingTooDeep  = errors.New("tlv: nesting depth exceeds 32")
	ErrInvalidCharset  = errors.New("tlv: unsupported character set")
	ErrCountExceeded   = errors.New("tlv: decoded item count exceeds 10000")
)

// UnexpectedTagError reports a tag mismatch during a directed decode.
type UnexpectedTagError struct {
	Expected uint8
	Actual   uint8
}

func (e *UnexpectedTagError) Error() string {
	return fmt.Sprintf("tlv: unexpected tag: expected %d, got %d", e.Expected, e.Actual)
}

func (e *UnexpectedTagError) Is(target error) bool {
	_, ok := target.(*UnexpectedTagError)
	return ok
}
