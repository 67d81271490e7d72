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

const (
	// DefaultInitialAlloc buffer 首次分配的长度
	DefaultInitialAlloc = 512 << 10

	// DefaultBigAllocThreshold buffer 回收阈值
	//
	// 超过该长度的 buffer 在排空或者 reset 时直接释放 而不是保留复用
	// 避免单次大包将内存水位永久抬高
	DefaultBigAllocThreshold = 2 << 20
)

// buffer 可增长的连续字节区
//
// length 为已写入的字节数 len(buf) 为实际分配长度
// buf 为 nil 当且仅当分配长度为 0 首次写入时才真正分配
type buffer struct {
	buf    []byte
	length int

	initialAlloc int
	bigAlloc     int
}

func (b *buffer) init(initialAlloc, bigAlloc int) {
	if initialAlloc <= 0 {
		initialAlloc = DefaultInitialAlloc
	}
	if bigAlloc <= 0 {
		bigAlloc = DefaultBigAllocThreshold
	}
	b.initialAlloc = initialAlloc
	b.bigAlloc = bigAlloc
}

// grow 确保 buffer 至少还能容纳 needed 字节
//
// 扩容策略为 max(2*allocated, length+needed) 首次分配不低于 initialAlloc
func (b *buffer) grow(needed int) {
	if b.length+needed <= len(b.buf) {
		return
	}

	size := len(b.buf) * 2
	if size < b.length+needed {
		size = b.length + needed
	}
	if size < b.initialAlloc {
		size = b.initialAlloc
	}

	nb := make([]byte, size)
	copy(nb, b.buf[:b.length])
	b.buf = nb
}

// release 释放底层分配 下次写入时再惰性分配
func (b *buffer) release() {
	b.buf = nil
	b.length = 0
	bufferReleasesTotal.Inc()
}

// writeBuffer 出方向 buffer
//
// position 标记已经交付给 transport 的字节偏移 未发送内容为 buf[position:length]
// 游标式消费避免了每次发送都要搬移数据 搬移仅在 resetOrCompact 判定浪费过半时发生
type writeBuffer struct {
	buffer
	position int
}

// len 返回未发送的字节数
func (w *writeBuffer) len() int {
	return w.length - w.position
}

// peek 拷贝至多 n 个未发送字节 不推进 position
func (w *writeBuffer) peek(n int) []byte {
	if n > w.len() {
		n = w.len()
	}
	if n <= 0 {
		return nil
	}
	p := make([]byte, n)
	copy(p, w.buf[w.position:w.position+n])
	return p
}

// consume 推进 position 至多 n 字节 返回剩余未发送字节数
func (w *writeBuffer) consume(n int) int {
	if n > w.len() {
		n = w.len()
	}
	w.position += n
	w.resetOrCompact()
	return w.len()
}

// resetOrCompact 在每次 consume 后执行
//
// - buffer 已排空: 大 buffer 直接释放 否则清零复用 position 归零
// - 未排空但 position 越过分配长度一半: 将未发送内容搬移至头部
//   保证被浪费的前缀不超过分配长度的一半
// - 其余情况不做任何处理
func (w *writeBuffer) resetOrCompact() {
	if w.position == w.length {
		if len(w.buf) >= w.bigAlloc {
			w.release()
		} else {
			w.length = 0
		}
		w.position = 0
		return
	}

	if w.position > len(w.buf)/2 && w.length > w.position {
		copy(w.buf, w.buf[w.position:w.length])
		w.length -= w.position
		w.position = 0
		bufferCompactionsTotal.Inc()
	}
}
