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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerSeqMonotonic(t *testing.T) {
	h := NewHandler(Options{})
	assert.Equal(t, uint32(0), h.CurrentSeq())

	for i := 1; i <= 100; i++ {
		var seq uint32
		if i%2 == 0 {
			seq = h.SendPing()
		} else {
			seq = h.SendRequest(nil)
		}
		assert.Equal(t, uint32(i), seq)
		assert.Equal(t, uint32(i), h.CurrentSeq())
	}
}

func TestHandlerSeqWrap(t *testing.T) {
	h := NewHandler(Options{})
	h.seq = SeqMax - 2

	assert.Equal(t, SeqMax-1, h.SendPing())

	// 回绕时 0 作为合法 seq 被分配一次
	assert.Equal(t, uint32(0), h.SendPing())
	assert.Equal(t, uint32(1), h.SendPing())
}

func TestHandlerSeqNotAllocatedByEcho(t *testing.T) {
	h := NewHandler(Options{})
	h.SendPong(5)
	h.SendResponse(6, nil)
	h.SendError(1, 7, nil)
	h.SendPush([]byte("p"))
	h.SendGoAway(0, nil)
	assert.Equal(t, uint32(0), h.CurrentSeq())
}

func TestHandlerPingAutoPong(t *testing.T) {
	h := NewHandler(Options{})
	events, err := h.OnBytesReceived([]byte{3, 0, 0, 0, 42})
	require.NoError(t, err)
	assert.Equal(t, []Event{Ping{Seq: 42}}, events)

	// write buffer 中恰好有一个匹配 seq 的 PONG
	assert.Equal(t, []byte{4, 0, 0, 0, 42}, h.WriteBufferBytes(100, true))
	assert.Equal(t, 0, h.WriteBufferLen())
}

func TestHandlerPongNotAutoAnswered(t *testing.T) {
	h := NewHandler(Options{})
	events, err := h.OnBytesReceived([]byte{4, 0, 0, 0, 42})
	require.NoError(t, err)
	assert.Equal(t, []Event{Pong{Seq: 42}}, events)
	assert.Equal(t, 0, h.WriteBufferLen())
}

func TestHandlerWriteBufferOps(t *testing.T) {
	h := NewHandler(Options{})
	h.SendPush([]byte("abc"))
	require.Equal(t, 8, h.WriteBufferLen())

	// 不消费的 peek
	b := h.WriteBufferBytes(3, false)
	assert.Equal(t, []byte{7, 0, 0}, b)
	assert.Equal(t, 8, h.WriteBufferLen())

	// 分段消费
	b = h.WriteBufferBytes(3, true)
	assert.Equal(t, []byte{7, 0, 0}, b)
	assert.Equal(t, 5, h.WriteBufferLen())

	remain := h.ConsumeWriteBuffer(2)
	assert.Equal(t, 3, remain)

	b = h.WriteBufferBytes(100, true)
	assert.Equal(t, []byte{'a', 'b', 'c'}, b)
	assert.Equal(t, 0, h.WriteBufferLen())

	// 空 buffer 返回 nil
	assert.Nil(t, h.WriteBufferBytes(1, true))
}

func TestHandlerMultipleFramesSingleFeed(t *testing.T) {
	sender := NewHandler(Options{})
	seq1 := sender.SendRequest([]byte("one"))
	sender.SendPush([]byte("two"))
	seq2 := sender.SendPing()
	b := sender.WriteBufferBytes(sender.WriteBufferLen(), true)

	receiver := NewHandler(Options{})
	events, err := receiver.OnBytesReceived(b)
	require.NoError(t, err)
	assert.Equal(t, []Event{
		Request{Seq: seq1, Payload: []byte("one")},
		Push{Payload: []byte("two")},
		Ping{Seq: seq2},
	}, events)

	// 自动应答的 PONG 紧随其后可被对端解码
	pong := receiver.WriteBufferBytes(receiver.WriteBufferLen(), true)
	back, err := sender.OnBytesReceived(pong)
	require.NoError(t, err)
	assert.Equal(t, []Event{Pong{Seq: seq2}}, back)
}

func TestHandlerDecodedPayloadOwnership(t *testing.T) {
	sender := NewHandler(Options{})
	sender.SendRequest([]byte("stable"))
	b := sender.WriteBufferBytes(sender.WriteBufferLen(), true)

	receiver := NewHandler(Options{})
	events, err := receiver.OnBytesReceived(b)
	require.NoError(t, err)
	req := events[0].(Request)

	// 继续解码新 Frame 不会影响已交付的 payload
	sender.SendRequest([]byte("XXXXXX"))
	b = sender.WriteBufferBytes(sender.WriteBufferLen(), true)
	_, err = receiver.OnBytesReceived(b)
	require.NoError(t, err)

	assert.Equal(t, []byte("stable"), req.Payload)
}
