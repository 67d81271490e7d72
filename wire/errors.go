// Copyright 2025 The framed Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package wire

import (
	"github.com/pkg/errors"
)

func newError(format string, args ...any) error {
	format = "wire/codec: " + format
	return errors.Errorf(format, args...)
}

var (
	// ErrBadOpcode 解码时读取到不在协议集合内的 Opcode
	ErrBadOpcode = newError("bad opcode")

	// ErrFrameTooLarge payload 长度超出 MaxPayloadSize 上限
	ErrFrameTooLarge = newError("frame too large")
)
