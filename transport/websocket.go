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

package transport

import (
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/valyala/bytebufferpool"
	"golang.org/x/net/netutil"

	"github.com/framed/framed/common"
	"github.com/framed/framed/internal/mapstructure"
)

const TypeWebsocket = "websocket"

func init() {
	Register(TypeWebsocket, newWSListener, dialWS)
}

// wsOptions Websocket listener / dialer 的细分参数
type wsOptions struct {
	// Path 升级端点路径
	Path string `config:"path"`

	// MaxConns 同时保持的链接上限 0 表示不限制
	MaxConns int `config:"maxConns"`

	// HandshakeTimeout 升级握手超时
	HandshakeTimeout time.Duration `config:"handshakeTimeout"`
}

func decodeWSOptions(opts common.Options) (wsOptions, error) {
	config := wsOptions{}
	if err := mapstructure.Decode(map[string]any(opts), &config); err != nil {
		return config, err
	}
	if config.Path == "" {
		config.Path = "/"
	}
	return config, nil
}

// wsConn 将 websocket 的消息语义适配为字节流
//
// 每条出站 Write 封装为一条 Binary Message 对端以消息为单位接收
// 入站消息超出单次 Read 的部分暂存在 pooled buffer 中
type wsConn struct {
	conn *websocket.Conn

	residual *bytebufferpool.ByteBuffer
	off      int
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn}
}

func (c *wsConn) Read(p []byte) (int, error) {
	if c.residual != nil && c.off < len(c.residual.B) {
		n := copy(p, c.residual.B[c.off:])
		c.off += n
		return n, nil
	}

	for {
		typ, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, io.EOF
			}
			return 0, err
		}
		if typ != websocket.BinaryMessage || len(msg) == 0 {
			continue
		}

		n := copy(p, msg)
		if n < len(msg) {
			if c.residual == nil {
				c.residual = bytebufferpool.Get()
			}
			c.residual.Reset()
			c.residual.Write(msg[n:])
			c.off = 0
		}
		return n, nil
	}
}

func (c *wsConn) Write(p []byte) (int, error) {
	if err := c.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsConn) Close() error {
	if c.residual != nil {
		bytebufferpool.Put(c.residual)
		c.residual = nil
	}
	return c.conn.Close()
}

func (c *wsConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

type wsListener struct {
	server *http.Server
	addr   string
	conns  chan Conn
	closed atomic.Bool
	done   chan struct{}
}

// newWSListener 创建 Websocket Listener
//
// 在配置的路径上提供 HTTP 升级端点 升级成功的链接经由 Accept 交付
func newWSListener(conf Config) (Listener, error) {
	opt, err := decodeWSOptions(conf.Options)
	if err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", conf.Address)
	if err != nil {
		return nil, err
	}
	if opt.MaxConns > 0 {
		ln = netutil.LimitListener(ln, opt.MaxConns)
	}

	upgrader := websocket.Upgrader{
		HandshakeTimeout: opt.HandshakeTimeout,
		CheckOrigin:      func(*http.Request) bool { return true },
	}

	l := &wsListener{
		addr:  ln.Addr().String(),
		conns: make(chan Conn),
		done:  make(chan struct{}),
	}

	handler := http.NewServeMux()
	handler.HandleFunc(opt.Path, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		select {
		case l.conns <- newWSConn(conn):
		case <-l.done:
			conn.Close()
		}
	})

	l.server = &http.Server{Handler: handler}
	go l.server.Serve(ln)
	return l, nil
}

func (l *wsListener) Accept() (Conn, error) {
	select {
	case conn := <-l.conns:
		return conn, nil
	case <-l.done:
		return nil, ErrClosed
	}
}

func (l *wsListener) Addr() string {
	return l.addr
}

func (l *wsListener) Close() error {
	if l.closed.CompareAndSwap(false, true) {
		close(l.done)
		return l.server.Close()
	}
	return nil
}

func dialWS(address string, opts common.Options) (Conn, error) {
	opt, err := decodeWSOptions(opts)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{HandshakeTimeout: opt.HandshakeTimeout}
	conn, _, err := dialer.Dial(address, nil)
	if err != nil {
		return nil, err
	}
	return newWSConn(conn), nil
}
