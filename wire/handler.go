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

const (
	// ProtocolVersion 本端在 HELLO 中携带的协议版本号
	ProtocolVersion uint8 = 1

	// SeqMax seq 回绕边界 数值 2^32-1 永远不会被分配
	//
	// 0 作为带内哨兵 仅在回绕后作为合法 seq 出现
	SeqMax uint32 = 1<<32 - 2
)

// Options Handler 构造参数
type Options struct {
	// InitialAlloc 两个 buffer 首次分配的长度
	InitialAlloc int

	// BigAllocThreshold buffer 排空或 reset 时的释放阈值
	BigAllocThreshold int

	// MaxPayloadSize 单 Frame payload 上限
	//
	// 0 使用 DefaultMaxPayloadSize 负数表示不设上限
	MaxPayloadSize int
}

// Handler 单条链接一端的 Stream Handler
//
// 由 Frame 编解码 出方向 write buffer 与入方向 decode buffer 三部分组成
// Handler 自身单线程且不可重入 不做任何 IO 不产生任何并发
// 排他访问由上层会话负责保证 两个 Handler 之间相互独立
//
// 数据流向
//
//	transport 收到字节 -> OnBytesReceived -> []Event 交付会话层
//	会话层 Send* -> write buffer -> transport 通过 WriteBufferBytes 排空
type Handler struct {
	seq  uint32
	wbuf writeBuffer
	dec  decoder
}

// NewHandler 创建并返回 Handler 实例
func NewHandler(opt Options) *Handler {
	h := &Handler{}
	h.wbuf.init(opt.InitialAlloc, opt.BigAllocThreshold)
	h.dec.init(opt.InitialAlloc, opt.BigAllocThreshold)

	h.dec.maxPayload = opt.MaxPayloadSize
	if opt.MaxPayloadSize == 0 {
		h.dec.maxPayload = DefaultMaxPayloadSize
	} else if opt.MaxPayloadSize < 0 {
		h.dec.maxPayload = 0
	}
	return h
}

// nextSeq 预自增并在 SeqMax 处回绕
//
// 首个分配的 seq 为 1 回绕后 0 会作为合法 seq 被分配一次
func (h *Handler) nextSeq() uint32 {
	h.seq++
	if h.seq >= SeqMax {
		h.seq = 0
	}
	return h.seq
}

// CurrentSeq 返回最近一次分配的 seq 从未分配过则为 0
func (h *Handler) CurrentSeq() uint32 {
	return h.seq
}

// SendPing 分配新 seq 并编码一个 PING
func (h *Handler) SendPing() uint32 {
	seq := h.nextSeq()
	appendPing(&h.wbuf, seq)
	framesEncodedTotal.WithLabelValues(OpPing.String()).Inc()
	return seq
}

// SendPong 以对端提供的 seq 编码一个 PONG
func (h *Handler) SendPong(seq uint32) {
	appendPong(&h.wbuf, seq)
	framesEncodedTotal.WithLabelValues(OpPong.String()).Inc()
}

// SendRequest 分配新 seq 并编码一个 REQUEST
func (h *Handler) SendRequest(payload []byte) uint32 {
	seq := h.nextSeq()
	appendRequest(&h.wbuf, seq, payload)
	framesEncodedTotal.WithLabelValues(OpRequest.String()).Inc()
	return seq
}

// SendPush 编码一个 PUSH 不携带 seq
func (h *Handler) SendPush(payload []byte) {
	appendPush(&h.wbuf, payload)
	framesEncodedTotal.WithLabelValues(OpPush.String()).Inc()
}

// SendResponse 回显 seq 编码一个 RESPONSE
//
// 不校验 seq 是否真实接收过 配对属于会话层职责
func (h *Handler) SendResponse(seq uint32, payload []byte) {
	appendResponse(&h.wbuf, seq, payload)
	framesEncodedTotal.WithLabelValues(OpResponse.String()).Inc()
}

// SendError 编码一个 ERROR payload 可为 nil
func (h *Handler) SendError(code uint8, seq uint32, payload []byte) {
	appendError(&h.wbuf, code, seq, payload)
	framesEncodedTotal.WithLabelValues(OpError.String()).Inc()
}

// SendHello 编码一个 HELLO
//
// encodings 为按偏好排序的编码名列表 以单字节逗号拼接为 payload
// 空列表产生空 payload
func (h *Handler) SendHello(pingInterval uint32, encodings [][]byte) {
	appendHello(&h.wbuf, ProtocolVersion, pingInterval, bytes.Join(encodings, encodingSep))
	framesEncodedTotal.WithLabelValues(OpHello.String()).Inc()
}

// SendSelectEncoding 编码一个 SELECT_ENCODING
func (h *Handler) SendSelectEncoding(encoding []byte) {
	appendSelectEncoding(&h.wbuf, encoding)
	framesEncodedTotal.WithLabelValues(OpSelectEncoding.String()).Inc()
}

// SendGoAway 编码一个 GOAWAY reason 可为 nil
func (h *Handler) SendGoAway(code uint8, reason []byte) {
	appendGoAway(&h.wbuf, code, reason)
	framesEncodedTotal.WithLabelValues(OpGoAway.String()).Inc()
}

// WriteBufferLen 返回尚未交付 transport 的字节数
func (h *Handler) WriteBufferLen() int {
	return h.wbuf.len()
}

// WriteBufferBytes 拷贝出至多 n 个未发送字节
//
// consume 为 true 时同时推进 position 并可能触发 compact
// 返回值是拷贝 交付后的留存由调用方自行负责
func (h *Handler) WriteBufferBytes(n int, consume bool) []byte {
	p := h.wbuf.peek(n)
	if consume {
		h.wbuf.consume(len(p))
		bytesOutTotal.Add(float64(len(p)))
	}
	return p
}

// ConsumeWriteBuffer 推进 position 至多 n 字节 返回剩余未发送字节数
func (h *Handler) ConsumeWriteBuffer(n int) int {
	if n > h.wbuf.len() {
		n = h.wbuf.len()
	}
	bytesOutTotal.Add(float64(n))
	return h.wbuf.consume(n)
}

// OnBytesReceived 喂入 transport 收到的字节 返回本次完成的全部 Event 按流序排列
//
// 每完成一个 Frame 即提取 Event 并 reset 解码 buffer 随后继续推进
// 直到输入耗尽或解码器要求更多数据
//
// 收到 PING 时 Handler 会自行入队一个相同 seq 的 PONG 其余 Opcode 均无自动应答
//
// 解码出错时先 reset 解码 buffer 再返回错误
// 同一次调用中已拼装的 Event 一并丢弃 需要逐帧错误隔离的调用方应以小块喂入
func (h *Handler) OnBytesReceived(input []byte) ([]Event, error) {
	bytesInTotal.Add(float64(len(input)))

	var events []Event
	for len(input) > 0 {
		n, done, err := h.dec.readData(input)
		if err != nil {
			h.dec.reset()
			decodeErrorsTotal.Inc()
			return nil, err
		}
		input = input[n:]
		if !done {
			break
		}

		ev := h.dec.event()
		h.dec.reset()
		framesDecodedTotal.WithLabelValues(ev.Opcode().String()).Inc()

		if ping, ok := ev.(Ping); ok {
			h.SendPong(ping.Seq)
		}
		events = append(events, ev)
	}
	return events, nil
}
