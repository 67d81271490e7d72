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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWriteBuffer(initial, big int) *writeBuffer {
	w := &writeBuffer{}
	w.init(initial, big)
	return w
}

func (w *writeBuffer) append(p []byte) {
	w.grow(len(p))
	copy(w.buf[w.length:], p)
	w.length += len(p)
}

func TestBufferGrow(t *testing.T) {
	b := &buffer{}
	b.init(16, 1024)
	assert.Nil(t, b.buf)

	b.grow(1)
	assert.Equal(t, 16, len(b.buf))

	b.length = 16
	b.grow(1)
	assert.Equal(t, 32, len(b.buf))

	// 超出翻倍时按实际需求分配
	b.length = 32
	b.grow(100)
	assert.Equal(t, 132, len(b.buf))
}

func TestWriteBufferConsume(t *testing.T) {
	w := newTestWriteBuffer(16, 1<<20)
	w.append([]byte("abcdef"))
	assert.Equal(t, 6, w.len())

	assert.Equal(t, []byte("ab"), w.peek(2))
	assert.Equal(t, 6, w.len())

	remain := w.consume(2)
	assert.Equal(t, 4, remain)
	assert.Equal(t, []byte("cdef"), w.peek(100))

	// 超量 consume 只推进到尾部
	remain = w.consume(100)
	assert.Equal(t, 0, remain)
	assert.Nil(t, w.peek(1))
}

// TestWriteBufferConservation 任意追加/消费序列后 未读内容始终等于差集
func TestWriteBufferConservation(t *testing.T) {
	w := newTestWriteBuffer(8, 1<<20)

	var outstanding []byte
	feed := [][]byte{
		[]byte("aaaa"), []byte("bb"), []byte("cccccccc"),
		[]byte("d"), []byte("eeeeeeeeeeeeeeee"),
	}
	for i, p := range feed {
		w.append(p)
		outstanding = append(outstanding, p...)

		n := i * 3
		if n > len(outstanding) {
			n = len(outstanding)
		}
		w.consume(n)
		outstanding = outstanding[n:]

		require.Equal(t, len(outstanding), w.len())
		require.True(t, bytes.Equal(outstanding, w.buf[w.position:w.length]))
	}
}

func TestWriteBufferCompaction(t *testing.T) {
	w := newTestWriteBuffer(16, 1<<20)
	w.append(bytes.Repeat([]byte("x"), 10))
	w.append([]byte("tail"))
	require.Equal(t, 16, len(w.buf))

	// position 越过分配长度一半且仍有未读尾部 触发搬移
	w.consume(10)
	assert.Equal(t, 0, w.position)
	assert.Equal(t, 4, w.length)
	assert.Equal(t, []byte("tail"), w.peek(4))
}

func TestWriteBufferNoCompactionBelowMidpoint(t *testing.T) {
	w := newTestWriteBuffer(32, 1<<20)
	w.append(bytes.Repeat([]byte("y"), 20))

	w.consume(4)
	assert.Equal(t, 4, w.position)
	assert.Equal(t, 20, w.length)
}

func TestWriteBufferDrainReleasesBig(t *testing.T) {
	w := newTestWriteBuffer(16, 64)
	w.append(bytes.Repeat([]byte("z"), 100))
	require.GreaterOrEqual(t, len(w.buf), 64)

	w.consume(100)
	assert.Nil(t, w.buf)
	assert.Equal(t, 0, w.len())

	// 排空后可继续使用 惰性重新分配
	w.append([]byte("ok"))
	assert.Equal(t, []byte("ok"), w.peek(2))
}

func TestWriteBufferDrainKeepsSmall(t *testing.T) {
	w := newTestWriteBuffer(16, 1<<20)
	w.append([]byte("small"))
	w.consume(5)

	assert.NotNil(t, w.buf)
	assert.Equal(t, 0, w.length)
	assert.Equal(t, 0, w.position)
}
