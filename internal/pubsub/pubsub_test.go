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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPubSubFanOut(t *testing.T) {
	bus := New(10)

	q1 := bus.Subscribe()
	q2 := bus.Subscribe()
	defer bus.Unsubscribe(q1)
	defer bus.Unsubscribe(q2)
	require.Equal(t, 2, bus.Num())

	bus.Publish([]byte("notify"))

	for _, q := range []Queue{q1, q2} {
		payload, ok := q.PopTimeout(time.Second)
		require.True(t, ok)
		assert.Equal(t, []byte("notify"), payload)
	}
}

func TestPubSubDropOnFullQueue(t *testing.T) {
	bus := New(2)

	q := bus.Subscribe()
	defer bus.Unsubscribe(q)

	for i := 0; i < 5; i++ {
		bus.Publish([]byte{byte(i)})
	}

	// 队列容量之外的 payload 被丢弃 不会反压发布方
	var count int
	for {
		_, ok := q.PopTimeout(10 * time.Millisecond)
		if !ok {
			break
		}
		count++
	}
	assert.Equal(t, 2, count)
	assert.Equal(t, uint64(3), q.(*channel).Dropped())
}

func TestPubSubClosedQueue(t *testing.T) {
	bus := New(1)

	q := bus.Subscribe()
	q.Close()

	_, ok := q.PopTimeout(10 * time.Millisecond)
	assert.False(t, ok)

	// 关闭后的队列丢弃后续 payload 不会 panic
	bus.Publish([]byte("late"))
	bus.Unsubscribe(q)
	assert.Equal(t, 0, bus.Num())
}
