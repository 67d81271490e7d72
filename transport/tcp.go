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
	"net"
	"time"

	"golang.org/x/net/netutil"

	"github.com/framed/framed/common"
	"github.com/framed/framed/internal/mapstructure"
)

const TypeTCP = "tcp"

func init() {
	Register(TypeTCP, newTCPListener, dialTCP)
}

// tcpOptions TCP listener / dialer 的细分参数
type tcpOptions struct {
	// MaxConns 同时保持的链接上限 0 表示不限制
	MaxConns int `config:"maxConns"`

	// KeepAlivePeriod TCP keepalive 探测周期
	KeepAlivePeriod time.Duration `config:"keepAlivePeriod"`

	// NoDelay 是否关闭 Nagle 算法 默认开启 NoDelay
	NoDelay *bool `config:"noDelay"`
}

func decodeTCPOptions(opts common.Options) (tcpOptions, error) {
	config := tcpOptions{}
	if err := mapstructure.Decode(map[string]any(opts), &config); err != nil {
		return config, err
	}
	return config, nil
}

type tcpConn struct {
	conn net.Conn
}

func (c *tcpConn) Read(p []byte) (int, error) {
	return c.conn.Read(p)
}

func (c *tcpConn) Write(p []byte) (int, error) {
	return c.conn.Write(p)
}

func (c *tcpConn) Close() error {
	return c.conn.Close()
}

func (c *tcpConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func setupTCPConn(conn net.Conn, opt tcpOptions) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}

	if opt.NoDelay == nil || *opt.NoDelay {
		tc.SetNoDelay(true)
	}
	if opt.KeepAlivePeriod > 0 {
		tc.SetKeepAlive(true)
		tc.SetKeepAlivePeriod(opt.KeepAlivePeriod)
	}
}

type tcpListener struct {
	ln  net.Listener
	opt tcpOptions
}

// newTCPListener 创建 TCP Listener
//
// MaxConns > 0 时通过 netutil.LimitListener 限制并发链接数
func newTCPListener(conf Config) (Listener, error) {
	ln, err := net.Listen("tcp", conf.Address)
	if err != nil {
		return nil, err
	}

	opt, err := decodeTCPOptions(conf.Options)
	if err != nil {
		ln.Close()
		return nil, err
	}

	if opt.MaxConns > 0 {
		ln = netutil.LimitListener(ln, opt.MaxConns)
	}
	return &tcpListener{ln: ln, opt: opt}, nil
}

func (l *tcpListener) Accept() (Conn, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	setupTCPConn(conn, l.opt)
	return &tcpConn{conn: conn}, nil
}

func (l *tcpListener) Addr() string {
	return l.ln.Addr().String()
}

func (l *tcpListener) Close() error {
	return l.ln.Close()
}

func dialTCP(address string, opts common.Options) (Conn, error) {
	opt, err := decodeTCPOptions(opts)
	if err != nil {
		return nil, err
	}

	conn, err := net.Dial("tcp", address)
	if err != nil {
		return nil, err
	}
	setupTCPConn(conn, opt)
	return &tcpConn{conn: conn}, nil
}
