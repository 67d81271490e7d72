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
	"bytes"
)

// Event 一个已解码 Frame 的内存表示 交付给会话层处理
//
// Event 持有的 payload 均为独立拷贝 与解码 buffer 的生命周期无关
type Event interface {
	// Opcode 返回产生该 Event 的 Frame 类型
	Opcode() Opcode
}

// Request 对端发起的请求 携带其分配的 seq
type Request struct {
	Seq     uint32
	Payload []byte
}

// Response 对端对本端请求的应答 seq 与请求一致
type Response struct {
	Seq     uint32
	Payload []byte
}

// Push 对端单向推送 不携带 seq 无应答
type Push struct {
	Payload []byte
}

// Ping 对端心跳探测 本端需以相同 seq 的 PONG 应答
type Ping struct {
	Seq uint32
}

// Pong 对端对本端 PING 的应答
type Pong struct {
	Seq uint32
}

// Hello 对端的握手信息
//
// Encodings 为对端支持的 payload 编码名 按其偏好排序
type Hello struct {
	Version      uint8
	PingInterval uint32
	Encodings    [][]byte
}

// GoAway 对端即将关闭链接的通知 Reason 可为空
type GoAway struct {
	Code   uint8
	Reason []byte
}

// SelectEncoding 对端选定的 payload 编码
type SelectEncoding struct {
	Encoding []byte
}

// Error 对端的错误应答 seq 与出错请求一致
type Error struct {
	Code    uint8
	Seq     uint32
	Payload []byte
}

func (Request) Opcode() Opcode        { return OpRequest }
func (Response) Opcode() Opcode       { return OpResponse }
func (Push) Opcode() Opcode           { return OpPush }
func (Ping) Opcode() Opcode           { return OpPing }
func (Pong) Opcode() Opcode           { return OpPong }
func (Hello) Opcode() Opcode          { return OpHello }
func (GoAway) Opcode() Opcode         { return OpGoAway }
func (SelectEncoding) Opcode() Opcode { return OpSelectEncoding }
func (Error) Opcode() Opcode          { return OpError }

// encodingSep HELLO payload 中编码名之间的分隔符
var encodingSep = []byte{','}

// event 将 decoder 中已就绪的 Frame 物化为 Event
//
// payload 在此处完成拷贝 之后 decoder reset 不会影响返回值
func (d *decoder) event() Event {
	switch d.opcode {
	case OpPing:
		return Ping{Seq: d.seq}

	case OpPong:
		return Pong{Seq: d.seq}

	case OpRequest:
		return Request{Seq: d.seq, Payload: clone(d.payload())}

	case OpResponse:
		return Response{Seq: d.seq, Payload: clone(d.payload())}

	case OpPush:
		return Push{Payload: clone(d.payload())}

	case OpError:
		return Error{Code: d.code, Seq: d.seq, Payload: clone(d.payload())}

	case OpGoAway:
		return GoAway{Code: d.code, Reason: clone(d.payload())}

	case OpSelectEncoding:
		return SelectEncoding{Encoding: clone(d.payload())}

	case OpHello:
		// 按字面语义切分 空 payload 会得到单个空元素
		// 是否过滤由会话层决定
		return Hello{
			Version:      d.version,
			PingInterval: d.pingInterval,
			Encodings:    bytes.Split(clone(d.payload()), encodingSep),
		}
	}
	return nil
}

func clone(p []byte) []byte {
	return append([]byte{}, p...)
}
