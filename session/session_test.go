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
	"context"
	"net"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeConn 将 net.Pipe 适配为 transport.Conn
type pipeConn struct {
	net.Conn
}

func (pipeConn) RemoteAddr() string {
	return "pipe"
}

func newSessionPair(t *testing.T, dispatch DispatchFunc) (*Session, *Session) {
	t.Helper()

	c1, c2 := net.Pipe()
	server := New(pipeConn{c1}, RoleServer, Config{}, dispatch)
	client := New(pipeConn{c2}, RoleClient, Config{}, nil)

	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return server, client
}

func echoDispatch(_ context.Context, payload []byte) ([]byte, error) {
	return payload, nil
}

func TestSessionNegotiation(t *testing.T) {
	server, client := newSessionPair(t, echoDispatch)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, client.waitReady(ctx))

	// Server 偏好顺序的第一个编码胜出
	assert.Equal(t, "json", client.Codec())
	assert.Eventually(t, func() bool {
		return server.Codec() == "json"
	}, 3*time.Second, 10*time.Millisecond)
}

func TestSessionCall(t *testing.T) {
	_, client := newSessionPair(t, echoDispatch)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var out string
	require.NoError(t, client.Call(ctx, "hello", &out))
	assert.Equal(t, "hello", out)

	resp, err := client.CallRaw(ctx, []byte("raw-bytes"))
	require.NoError(t, err)
	assert.Equal(t, []byte("raw-bytes"), resp)
}

func TestSessionCallRemoteError(t *testing.T) {
	_, client := newSessionPair(t, func(_ context.Context, _ []byte) ([]byte, error) {
		return nil, errors.New("boom")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := client.CallRaw(ctx, []byte("x"))
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, ErrCodeInternal, remote.Code)
	assert.Contains(t, string(remote.Payload), "boom")
}

func TestSessionCallNoDispatch(t *testing.T) {
	_, client := newSessionPair(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := client.CallRaw(ctx, []byte("x"))
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, ErrCodeNoDispatch, remote.Code)
}

func TestSessionPush(t *testing.T) {
	server, client := newSessionPair(t, echoDispatch)

	q := server.SubscribePush()
	defer server.UnsubscribePush(q)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, client.PushRaw(ctx, []byte("notify")))

	data, ok := q.PopTimeout(3 * time.Second)
	require.True(t, ok)
	assert.Equal(t, []byte("notify"), data)
}

func TestSessionCallCanceled(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	_, client := newSessionPair(t, func(ctx context.Context, payload []byte) ([]byte, error) {
		<-block
		return payload, nil
	})

	ready, cancelReady := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancelReady()
	require.NoError(t, client.waitReady(ready))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.CallRaw(ctx, []byte("x"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSessionPeerClose(t *testing.T) {
	server, client := newSessionPair(t, echoDispatch)

	registry := NewRegistry()
	registry.Add(server)
	require.Equal(t, 1, registry.Num())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, client.waitReady(ctx))

	client.Close()
	assert.Eventually(t, func() bool {
		return registry.Num() == 0
	}, 3*time.Second, 10*time.Millisecond)
}

func TestSessionPinger(t *testing.T) {
	c1, c2 := net.Pipe()
	server := New(pipeConn{c1}, RoleServer, Config{PingInterval: 30 * time.Millisecond}, nil)
	client := New(pipeConn{c2}, RoleClient, Config{}, nil)
	defer server.Close()
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, client.waitReady(ctx))

	// 心跳被对端自动应答 会话持续存活且 seq 持续分配
	assert.Eventually(t, func() bool {
		return client.Seq() >= 2
	}, 3*time.Second, 10*time.Millisecond)

	select {
	case <-client.done:
		t.Fatal("session closed unexpectedly")
	default:
	}
}

func TestRegistrySnapshot(t *testing.T) {
	server, client := newSessionPair(t, echoDispatch)

	registry := NewRegistry()
	registry.Add(server)
	registry.Add(client)

	got, ok := registry.Get(server.ID())
	require.True(t, ok)
	assert.Equal(t, server.ID(), got.ID())

	snapshot := registry.Snapshot()
	assert.Len(t, snapshot, 2)
	for _, st := range snapshot {
		assert.NotEmpty(t, st.ID)
		assert.Equal(t, "pipe", st.Remote)
	}

	registry.Remove(server.ID())
	assert.Equal(t, 1, registry.Num())
}
