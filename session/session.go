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
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/framed/framed/common"
	"github.com/framed/framed/encoding"
	"github.com/framed/framed/internal/fasttime"
	"github.com/framed/framed/internal/pubsub"
	"github.com/framed/framed/internal/rescue"
	"github.com/framed/framed/internal/tracekit"
	"github.com/framed/framed/logger"
	"github.com/framed/framed/transport"
	"github.com/framed/framed/wire"
)

func newError(format string, args ...any) error {
	format = "session: " + format
	return errors.Errorf(format, args...)
}

var (
	// ErrClosed 会话已经处于 Close 状态
	ErrClosed = newError("closed")

	// ErrNoDispatch 本端未挂载 dispatch 无法处理对端请求
	ErrNoDispatch = newError("no dispatch mounted")
)

// GOAWAY codes
const (
	CodeNormal      uint8 = 0
	CodePingTimeout uint8 = 1
	CodeUnsupported uint8 = 2
	CodeProtocol    uint8 = 3
)

// ERROR frame codes
const (
	ErrCodeInternal   uint8 = 1
	ErrCodeNoDispatch uint8 = 2
)

// RemoteError 对端以 ERROR Frame 应答时 Call 返回的错误
type RemoteError struct {
	Code    uint8
	Payload []byte
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("session: remote error (code=%d): %s", e.Code, e.Payload)
}

// GoAwayError 对端以 GOAWAY 关闭链接时在途请求返回的错误
type GoAwayError struct {
	Code   uint8
	Reason []byte
}

func (e *GoAwayError) Error() string {
	return fmt.Sprintf("session: peer goaway (code=%d): %s", e.Code, e.Reason)
}

// Role 会话角色
//
// Server 在链接建立后主动发送 HELLO 广播支持的编码
// Client 从中选择并以 SELECT_ENCODING 应答 心跳由 Client 按 HELLO 的节奏发起
type Role string

const (
	RoleClient Role = "client"
	RoleServer Role = "server"
)

// Config 会话配置
type Config struct {
	// PingInterval Server 在 HELLO 中广播的心跳周期
	PingInterval time.Duration `config:"pingInterval"`

	// MaxPayloadSize 单 Frame payload 上限 透传至 wire.Handler
	MaxPayloadSize int `config:"maxPayloadSize"`

	// PushQueueSize 每个 PUSH 订阅队列的容量
	PushQueueSize int `config:"pushQueueSize"`
}

func (c Config) normalize() Config {
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.PushQueueSize <= 0 {
		c.PushQueueSize = 128
	}
	return c
}

// DispatchFunc 应用层请求处理函数
//
// 返回的字节作为 RESPONSE payload 返回错误则以 ERROR Frame 应答对端
type DispatchFunc func(ctx context.Context, payload []byte) ([]byte, error)

// result Call 的应答载体
type result struct {
	payload []byte
	err     error
}

// Session 一条链接上的完整会话
//
// Session 持有 wire.Handler 并保证其排他访问
// 负责握手协商 心跳 seq 配对以及 PUSH 分发 即 codec 之上的全部策略
type Session struct {
	id     string
	role   Role
	conn   transport.Conn
	config Config
	log    logger.Logger

	// mut 保护 handler Handler 自身单线程不可重入
	mut sync.Mutex
	h   *wire.Handler

	codecMut sync.RWMutex
	codec    encoding.Codec

	pendingMut sync.Mutex
	pending    map[uint32]chan result

	dispatch DispatchFunc
	pushes   *pubsub.PubSub

	wakeup    chan struct{}
	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}

	closeOnce sync.Once
	closeErr  error
	closeHook func(*Session)

	baseCtx    context.Context
	baseCancel context.CancelFunc

	activeAt        atomic.Int64
	pingOutstanding atomic.Bool
}

// New 创建会话并启动读写泵
//
// Server 角色会立即将 HELLO 入队 Client 角色等待对端 HELLO 后应答
func New(conn transport.Conn, role Role, config Config, dispatch DispatchFunc) *Session {
	config = config.normalize()

	s := &Session{
		id:       uuid.New().String(),
		role:     role,
		conn:     conn,
		config:   config,
		log:      logger.Named("session"),
		h:        wire.NewHandler(wire.Options{MaxPayloadSize: config.MaxPayloadSize}),
		pending:  make(map[uint32]chan result),
		dispatch: dispatch,
		pushes:   pubsub.New(config.PushQueueSize),
		wakeup:   make(chan struct{}, 1),
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
	}
	s.baseCtx, s.baseCancel = context.WithCancel(context.Background())
	s.activeAt.Store(fasttime.UnixTimestamp())

	if role == RoleServer {
		s.mut.Lock()
		s.h.SendHello(uint32(config.PingInterval.Milliseconds()), encoding.Names())
		s.mut.Unlock()
		s.wake()
	}

	sessionsActive.Inc()
	go s.readPump()
	go s.writePump()
	return s
}

// OnClose 注册会话关闭时的回调 用于从 Registry 摘除
func (s *Session) OnClose(f func(*Session)) {
	s.closeHook = f
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Role() Role {
	return s.role
}

func (s *Session) RemoteAddr() string {
	return s.conn.RemoteAddr()
}

// ActiveAt 返回会话最后活跃时间
func (s *Session) ActiveAt() time.Time {
	return time.Unix(s.activeAt.Load(), 0)
}

// Codec 返回协商出的编码名 未完成握手时为空
func (s *Session) Codec() string {
	s.codecMut.RLock()
	defer s.codecMut.RUnlock()

	if s.codec == nil {
		return ""
	}
	return s.codec.Name()
}

// Seq 返回最近一次分配的 seq
func (s *Session) Seq() uint32 {
	s.mut.Lock()
	defer s.mut.Unlock()

	return s.h.CurrentSeq()
}

// wake 通知 write pump 有数据待排空
func (s *Session) wake() {
	select {
	case s.wakeup <- struct{}{}:
	default:
	}
}

// waitReady 等待握手协商完成
func (s *Session) waitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Call 发起一次请求并等待应答 payload 以协商编码序列化
func (s *Session) Call(ctx context.Context, in any, out any) error {
	if err := s.waitReady(ctx); err != nil {
		return err
	}

	s.codecMut.RLock()
	codec := s.codec
	s.codecMut.RUnlock()

	payload, err := codec.Marshal(in)
	if err != nil {
		return err
	}

	resp, err := s.CallRaw(ctx, payload)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return codec.Unmarshal(resp, out)
}

// CallRaw 发起一次请求并等待应答 payload 原样传输
func (s *Session) CallRaw(ctx context.Context, payload []byte) ([]byte, error) {
	if err := s.waitReady(ctx); err != nil {
		return nil, err
	}

	tid := tracekit.RandomTraceID()
	ch := make(chan result, 1)

	s.mut.Lock()
	seq := s.h.SendRequest(payload)
	s.pendingMut.Lock()
	s.pending[seq] = ch
	s.pendingMut.Unlock()
	s.mut.Unlock()
	s.wake()

	callsTotal.Inc()
	s.log.Debugf("call issued, seq=%d traceparent=%s", seq, tracekit.TraceParent(tid, tracekit.RandomSpanID()))

	select {
	case ret := <-ch:
		if ret.err != nil {
			callErrorsTotal.Inc()
		}
		return ret.payload, ret.err

	case <-ctx.Done():
		s.pendingMut.Lock()
		delete(s.pending, seq)
		s.pendingMut.Unlock()
		return nil, ctx.Err()

	case <-s.done:
		return nil, ErrClosed
	}
}

// Push 单向推送 payload 以协商编码序列化 无应答
func (s *Session) Push(ctx context.Context, in any) error {
	if err := s.waitReady(ctx); err != nil {
		return err
	}

	s.codecMut.RLock()
	codec := s.codec
	s.codecMut.RUnlock()

	payload, err := codec.Marshal(in)
	if err != nil {
		return err
	}
	return s.PushRaw(ctx, payload)
}

// PushRaw 单向推送 payload 原样传输
func (s *Session) PushRaw(ctx context.Context, payload []byte) error {
	if err := s.waitReady(ctx); err != nil {
		return err
	}

	s.mut.Lock()
	s.h.SendPush(payload)
	s.mut.Unlock()
	s.wake()

	pushesSentTotal.Inc()
	return nil
}

// Ping 主动发起一次心跳 返回分配的 seq
func (s *Session) Ping() uint32 {
	s.mut.Lock()
	seq := s.h.SendPing()
	s.mut.Unlock()
	s.wake()
	return seq
}

// SubscribePush 订阅对端 PUSH 队列容量由 Config.PushQueueSize 决定
func (s *Session) SubscribePush() pubsub.Queue {
	return s.pushes.Subscribe()
}

// UnsubscribePush 退订 PUSH 队列
func (s *Session) UnsubscribePush(q pubsub.Queue) {
	s.pushes.Unsubscribe(q)
}

// Close 正常关闭会话 尽力发送 GOAWAY 并排空残余数据
func (s *Session) Close() error {
	return s.close(CodeNormal, nil, nil, true)
}

// CloseWithCode 以指定 code/reason 关闭会话
func (s *Session) CloseWithCode(code uint8, reason []byte) error {
	return s.close(code, reason, nil, true)
}

func (s *Session) close(code uint8, reason []byte, cause error, sendGoAway bool) error {
	s.closeOnce.Do(func() {
		if sendGoAway {
			s.mut.Lock()
			s.h.SendGoAway(code, reason)
			s.flushLocked()
			s.mut.Unlock()
		}

		close(s.done)
		s.baseCancel()

		var merr *multierror.Error
		merr = multierror.Append(merr, cause)
		merr = multierror.Append(merr, s.conn.Close())
		s.closeErr = merr.ErrorOrNil()

		s.failPending(cause)
		sessionsActive.Dec()

		if s.closeHook != nil {
			s.closeHook(s)
		}
		s.log.Infof("session %s closed, role=%s remote=%s", s.id, s.role, s.conn.RemoteAddr())
	})
	return s.closeErr
}

// flushLocked 同步排空 write buffer 调用方需持有 mut
func (s *Session) flushLocked() {
	for {
		b := s.h.WriteBufferBytes(common.ReadBlockSize, true)
		if len(b) == 0 {
			return
		}
		if _, err := s.conn.Write(b); err != nil {
			return
		}
	}
}

// failPending 以 cause 终结所有在途请求
func (s *Session) failPending(cause error) {
	if cause == nil {
		cause = ErrClosed
	}

	s.pendingMut.Lock()
	defer s.pendingMut.Unlock()

	for seq, ch := range s.pending {
		ch <- result{err: cause}
		delete(s.pending, seq)
	}
}

// readPump 从 transport 持续读取并喂给解码器
func (s *Session) readPump() {
	defer rescue.HandleCrash("session/readPump")

	buf := make([]byte, common.ReadBlockSize)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			s.mut.Lock()
			events, derr := s.h.OnBytesReceived(buf[:n])
			backlog := s.h.WriteBufferLen()
			s.mut.Unlock()

			if backlog > 0 {
				s.wake()
			}
			if derr != nil {
				s.log.Warnf("session %s decode failed: %v", s.id, derr)
				s.close(CodeProtocol, []byte(derr.Error()), derr, true)
				return
			}

			s.activeAt.Store(fasttime.UnixTimestamp())
			for _, ev := range events {
				s.handleEvent(ev)
			}
		}

		if err != nil {
			s.close(CodeNormal, nil, nil, false)
			return
		}

		select {
		case <-s.done:
			return
		default:
		}
	}
}

// writePump 将 write buffer 分块排空到 transport
func (s *Session) writePump() {
	defer rescue.HandleCrash("session/writePump")

	for {
		select {
		case <-s.wakeup:
		case <-s.done:
			return
		}

		for {
			s.mut.Lock()
			b := s.h.WriteBufferBytes(common.ReadBlockSize, true)
			s.mut.Unlock()

			if len(b) == 0 {
				break
			}
			if _, err := s.conn.Write(b); err != nil {
				s.close(CodeNormal, nil, err, false)
				return
			}
		}
	}
}

// handleEvent 分发解码出的 Event
func (s *Session) handleEvent(ev wire.Event) {
	switch ev := ev.(type) {
	case wire.Ping:
		// Handler 已自动入队 PONG readPump 负责唤醒 write pump

	case wire.Pong:
		s.pingOutstanding.Store(false)

	case wire.Request:
		s.handleRequest(ev)

	case wire.Response:
		s.deliver(ev.Seq, result{payload: ev.Payload})

	case wire.Error:
		s.deliver(ev.Seq, result{err: &RemoteError{Code: ev.Code, Payload: ev.Payload}})

	case wire.Push:
		s.pushes.Publish(ev.Payload)

	case wire.Hello:
		s.handleHello(ev)

	case wire.SelectEncoding:
		s.handleSelectEncoding(ev)

	case wire.GoAway:
		s.log.Infof("session %s peer goaway, code=%d reason=%s", s.id, ev.Code, ev.Reason)
		s.close(CodeNormal, nil, &GoAwayError{Code: ev.Code, Reason: ev.Reason}, false)
	}
}

// handleRequest 将请求交给 dispatch 处理 应答经由 write pump 发出
func (s *Session) handleRequest(req wire.Request) {
	if s.dispatch == nil {
		s.mut.Lock()
		s.h.SendError(ErrCodeNoDispatch, req.Seq, []byte(ErrNoDispatch.Error()))
		s.mut.Unlock()
		s.wake()
		return
	}

	go func() {
		defer rescue.HandleCrash("session/dispatch")

		resp, err := s.dispatch(s.baseCtx, req.Payload)

		s.mut.Lock()
		if err != nil {
			s.h.SendError(ErrCodeInternal, req.Seq, []byte(err.Error()))
		} else {
			s.h.SendResponse(req.Seq, resp)
		}
		s.mut.Unlock()
		s.wake()
	}()
}

// handleHello Client 角色处理对端 HELLO 完成编码协商
func (s *Session) handleHello(hello wire.Hello) {
	if s.role != RoleClient {
		return
	}

	codec, err := encoding.Select(hello.Encodings)
	if err != nil {
		s.log.Warnf("session %s negotiate failed: %v", s.id, err)
		s.close(CodeUnsupported, []byte(err.Error()), err, true)
		return
	}

	s.codecMut.Lock()
	s.codec = codec
	s.codecMut.Unlock()

	s.mut.Lock()
	s.h.SendSelectEncoding([]byte(codec.Name()))
	s.mut.Unlock()
	s.wake()
	s.readyOnce.Do(func() { close(s.ready) })

	interval := time.Duration(hello.PingInterval) * time.Millisecond
	if interval <= 0 {
		interval = s.config.PingInterval
	}
	go s.pinger(interval)

	s.log.Infof("session %s negotiated, codec=%s version=%d interval=%s",
		s.id, codec.Name(), hello.Version, interval)
}

// handleSelectEncoding Server 角色确认对端选择的编码
func (s *Session) handleSelectEncoding(sel wire.SelectEncoding) {
	if s.role != RoleServer {
		return
	}

	codec, ok := encoding.Get(string(sel.Encoding))
	if !ok {
		err := newError("peer selected unknown encoding (%s)", sel.Encoding)
		s.log.Warnf("session %s: %v", s.id, err)
		s.close(CodeUnsupported, []byte(err.Error()), err, true)
		return
	}

	s.codecMut.Lock()
	s.codec = codec
	s.codecMut.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })

	s.log.Infof("session %s negotiated, codec=%s remote=%s", s.id, codec.Name(), s.conn.RemoteAddr())
}

// deliver 将应答交付给在途请求
//
// seq 无人认领时直接丢弃 可能是请求已超时被摘除
func (s *Session) deliver(seq uint32, ret result) {
	s.pendingMut.Lock()
	ch, ok := s.pending[seq]
	if ok {
		delete(s.pending, seq)
	}
	s.pendingMut.Unlock()

	if ok {
		ch <- ret
	}
}

// pinger 按协商周期发送心跳 上一个 PING 未被应答则判定链接失效
func (s *Session) pinger(interval time.Duration) {
	defer rescue.HandleCrash("session/pinger")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return

		case <-ticker.C:
			if s.pingOutstanding.Swap(true) {
				err := newError("ping timeout")
				s.close(CodePingTimeout, []byte(err.Error()), err, true)
				return
			}

			s.mut.Lock()
			s.h.SendPing()
			s.mut.Unlock()
			s.wake()
		}
	}
}
