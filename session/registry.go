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

package session

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const shardNum = 16

// Registry 分片的活跃会话表
//
// 以会话 id 的 xxhash 选择分片 降低高频建链/断链时的锁竞争
type Registry struct {
	shards [shardNum]*shard
}

type shard struct {
	mut      sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	r := &Registry{}
	for i := 0; i < shardNum; i++ {
		r.shards[i] = &shard{sessions: make(map[string]*Session)}
	}
	return r
}

func (r *Registry) shardOf(id string) *shard {
	return r.shards[xxhash.Sum64String(id)%shardNum]
}

// Add 登记会话 并挂载关闭时的自动摘除
func (r *Registry) Add(s *Session) {
	s.OnClose(func(s *Session) {
		r.Remove(s.ID())
	})

	sd := r.shardOf(s.ID())
	sd.mut.Lock()
	sd.sessions[s.ID()] = s
	sd.mut.Unlock()
}

func (r *Registry) Remove(id string) {
	sd := r.shardOf(id)
	sd.mut.Lock()
	delete(sd.sessions, id)
	sd.mut.Unlock()
}

func (r *Registry) Get(id string) (*Session, bool) {
	sd := r.shardOf(id)
	sd.mut.RLock()
	defer sd.mut.RUnlock()

	s, ok := sd.sessions[id]
	return s, ok
}

func (r *Registry) Num() int {
	var n int
	for _, sd := range r.shards {
		sd.mut.RLock()
		n += len(sd.sessions)
		sd.mut.RUnlock()
	}
	return n
}

// Range 遍历全部会话 f 返回 false 时终止
func (r *Registry) Range(f func(s *Session) bool) {
	for _, sd := range r.shards {
		sd.mut.RLock()
		sessions := make([]*Session, 0, len(sd.sessions))
		for _, s := range sd.sessions {
			sessions = append(sessions, s)
		}
		sd.mut.RUnlock()

		for _, s := range sessions {
			if !f(s) {
				return
			}
		}
	}
}

// Close 关闭并摘除全部会话
func (r *Registry) Close() {
	r.Range(func(s *Session) bool {
		s.Close()
		return true
	})
}

// Status 会话快照 用于管理端点展示
type Status struct {
	ID       string    `json:"id"`
	Role     Role      `json:"role"`
	Remote   string    `json:"remote"`
	Codec    string    `json:"codec"`
	ActiveAt time.Time `json:"activeAt"`
}

// Snapshot 导出全部会话的快照
func (r *Registry) Snapshot() []Status {
	var statuses []Status
	r.Range(func(s *Session) bool {
		statuses = append(statuses, Status{
			ID:       s.ID(),
			Role:     s.Role(),
			Remote:   s.RemoteAddr(),
			Codec:    s.Codec(),
			ActiveAt: s.ActiveAt(),
		})
		return true
	})
	return statuses
}
