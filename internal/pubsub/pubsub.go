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

package pubsub

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/framed/framed/common"
)

var (
	publishedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "push_published_total",
			Help:      "push payloads published to subscribers total",
		},
	)

	droppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "push_dropped_total",
			Help:      "push payloads dropped on full subscriber queues total",
		},
	)
)

// Queue 单个订阅方持有的 PUSH 队列
//
// 队列元素为对端 PUSH Frame 的 payload 拷贝
type Queue interface {
	// ID 队列唯一标识
	ID() string

	// PopTimeout 弹出一个 payload 操作会 block 直到有元素或者超时
	PopTimeout(timeout time.Duration) ([]byte, bool)

	// Close 关闭并清理队列
	Close()
}

// channel 为 Queue 的一种实现
//
// push 为非阻塞写入 队列满则丢弃 慢订阅方不允许反压会话的 read pump
type channel struct {
	id      string
	ch      chan []byte
	dropped atomic.Uint64
	closed  atomic.Bool
}

func newChannel(size int) *channel {
	if size <= 0 {
		size = 1
	}

	return &channel{
		id: uuid.New().String(),
		ch: make(chan []byte, size),
	}
}

func (ch *channel) ID() string {
	return ch.id
}

func (ch *channel) PopTimeout(timeout time.Duration) ([]byte, bool) {
	if ch.closed.Load() {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	select {
	case payload, ok := <-ch.ch:
		return payload, ok

	case <-ctx.Done():
		return nil, false
	}
}

// Dropped 返回因队列已满被丢弃的 payload 数
func (ch *channel) Dropped() uint64 {
	return ch.dropped.Load()
}

func (ch *channel) push(payload []byte) {
	if ch.closed.Load() {
		return
	}

	select {
	case ch.ch <- payload:
	default:
		ch.dropped.Add(1)
		droppedTotal.Inc()
	}
}

// Close 标记队列关闭
//
// 不真正 close 底层 chan 避免与并发中的 Publish 竞争
// 关闭后 push 直接丢弃 PopTimeout 立即返回 关闭前已在等待的 PopTimeout 在超时后返回
func (ch *channel) Close() {
	ch.closed.Store(true)
}

// PubSub 将单条会话收到的 PUSH 扇出给所有订阅方
//
// queueSize 由会话配置决定 对该会话的所有订阅队列生效
type PubSub struct {
	mut       sync.RWMutex
	queueSize int
	queues    map[string]*channel
}

func New(queueSize int) *PubSub {
	return &PubSub{
		queueSize: queueSize,
		queues:    make(map[string]*channel),
	}
}

func (p *PubSub) Num() int {
	p.mut.RLock()
	defer p.mut.RUnlock()

	return len(p.queues)
}

func (p *PubSub) Subscribe() Queue {
	p.mut.Lock()
	defer p.mut.Unlock()

	ch := newChannel(p.queueSize)
	p.queues[ch.ID()] = ch
	return ch
}

func (p *PubSub) Publish(payload []byte) {
	publishedTotal.Inc()

	p.mut.RLock()
	defer p.mut.RUnlock()

	for _, q := range p.queues {
		q.push(payload)
	}
}

func (p *PubSub) Unsubscribe(q Queue) {
	p.mut.Lock()
	defer p.mut.Unlock()

	delete(p.queues, q.ID())
}
