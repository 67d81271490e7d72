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
	"encoding/binary"
)

// 编码函数均为纯追加操作 多字节整数统一大端
//
// 每个函数先一次性 grow 出完整 Frame 所需空间 写入完成后才提交 length
// 保证任何时刻 write buffer 中不存在半写状态的 Frame

// appendPing 追加 PING Frame: [op][seq(u32)]
func appendPing(w *writeBuffer, seq uint32) {
	w.grow(5)
	b := w.buf[w.length:]
	b[0] = byte(OpPing)
	binary.BigEndian.PutUint32(b[1:5], seq)
	w.length += 5
}

// appendPong 追加 PONG Frame: [op][seq(u32)]
func appendPong(w *writeBuffer, seq uint32) {
	w.grow(5)
	b := w.buf[w.length:]
	b[0] = byte(OpPong)
	binary.BigEndian.PutUint32(b[1:5], seq)
	w.length += 5
}

// appendRequest 追加 REQUEST Frame: [op][seq(u32)][len(u32)][payload]
func appendRequest(w *writeBuffer, seq uint32, payload []byte) {
	w.grow(9 + len(payload))
	b := w.buf[w.length:]
	b[0] = byte(OpRequest)
	binary.BigEndian.PutUint32(b[1:5], seq)
	binary.BigEndian.PutUint32(b[5:9], uint32(len(payload)))
	copy(b[9:], payload)
	w.length += 9 + len(payload)
}

// appendResponse 追加 RESPONSE Frame: [op][seq(u32)][len(u32)][payload]
func appendResponse(w *writeBuffer, seq uint32, payload []byte) {
	w.grow(9 + len(payload))
	b := w.buf[w.length:]
	b[0] = byte(OpResponse)
	binary.BigEndian.PutUint32(b[1:5], seq)
	binary.BigEndian.PutUint32(b[5:9], uint32(len(payload)))
	copy(b[9:], payload)
	w.length += 9 + len(payload)
}

// appendPush 追加 PUSH Frame: [op][len(u32)][payload]
func appendPush(w *writeBuffer, payload []byte) {
	w.grow(5 + len(payload))
	b := w.buf[w.length:]
	b[0] = byte(OpPush)
	binary.BigEndian.PutUint32(b[1:5], uint32(len(payload)))
	copy(b[5:], payload)
	w.length += 5 + len(payload)
}

// appendError 追加 ERROR Frame: [op][code(u8)][seq(u32)][len(u32)][payload]
func appendError(w *writeBuffer, code uint8, seq uint32, payload []byte) {
	w.grow(10 + len(payload))
	b := w.buf[w.length:]
	b[0] = byte(OpError)
	b[1] = code
	binary.BigEndian.PutUint32(b[2:6], seq)
	binary.BigEndian.PutUint32(b[6:10], uint32(len(payload)))
	copy(b[10:], payload)
	w.length += 10 + len(payload)
}

// appendGoAway 追加 GOAWAY Frame: [op][code(u8)][len(u32)][reason]
func appendGoAway(w *writeBuffer, code uint8, reason []byte) {
	w.grow(6 + len(reason))
	b := w.buf[w.length:]
	b[0] = byte(OpGoAway)
	b[1] = code
	binary.BigEndian.PutUint32(b[2:6], uint32(len(reason)))
	copy(b[6:], reason)
	w.length += 6 + len(reason)
}

// appendHello 追加 HELLO Frame: [op][version(u8)][interval(u32)][len(u32)][payload]
//
// payload 为逗号拼接的编码名列表 由调用方负责拼接
func appendHello(w *writeBuffer, version uint8, pingInterval uint32, payload []byte) {
	w.grow(10 + len(payload))
	b := w.buf[w.length:]
	b[0] = byte(OpHello)
	b[1] = version
	binary.BigEndian.PutUint32(b[2:6], pingInterval)
	binary.BigEndian.PutUint32(b[6:10], uint32(len(payload)))
	copy(b[10:], payload)
	w.length += 10 + len(payload)
}

// appendSelectEncoding 追加 SELECT_ENCODING Frame: [op][len(u32)][encoding]
func appendSelectEncoding(w *writeBuffer, encoding []byte) {
	w.grow(5 + len(encoding))
	b := w.buf[w.length:]
	b[0] = byte(OpSelectEncoding)
	binary.BigEndian.PutUint32(b[1:5], uint32(len(encoding)))
	copy(b[5:], encoding)
	w.length += 5 + len(encoding)
}
