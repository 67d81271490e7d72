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

	"github.com/pkg/errors"

	"github.com/framed/framed/common"
)

func newError(format string, args ...any) error {
	format = "transport: " + format
	return errors.Errorf(format, args...)
}

var (
	// ErrClosed transport 已经处于 Close 状态
	ErrClosed = newError("closed")
)

// Conn 一条可靠的字节流链接
//
// 会话层从 Conn 读出字节块喂给解码器 并将 write buffer 排空到 Conn
// Read/Write 的块边界没有任何语义 解码器支持任意粒度
type Conn interface {
	io.ReadWriteCloser

	// RemoteAddr 返回对端地址标识 用于日志与会话快照
	RemoteAddr() string
}

// Listener 接受入站链接
type Listener interface {
	// Accept 阻塞等待下一条入站链接
	Accept() (Conn, error)

	// Addr 返回实际监听地址
	Addr() string

	// Close 停止监听 已建立的链接不受影响
	Close() error
}

// Config 单个 listener 的配置
type Config struct {
	Name    string         `config:"name"`
	Type    string         `config:"type"`
	Address string         `config:"address"`
	Options common.Options `config:"options"`
}

// CreateListenerFunc 定义了创建 Listener 的方法
type CreateListenerFunc func(conf Config) (Listener, error)

// DialFunc 定义了创建出站链接的方法
type DialFunc func(address string, opts common.Options) (Conn, error)

type factory struct {
	listen CreateListenerFunc
	dial   DialFunc
}

var factories = map[string]factory{}

// Register 注册一种 transport 类型
func Register(name string, listen CreateListenerFunc, dial DialFunc) {
	factories[name] = factory{listen: listen, dial: dial}
}

// NewListener 按配置创建 Listener
func NewListener(conf Config) (Listener, error) {
	f, ok := factories[conf.Type]
	if !ok {
		return nil, newError("factory (%s) not found", conf.Type)
	}
	return f.listen(conf)
}

// Dial 按类型创建出站链接
func Dial(typ, address string, opts common.Options) (Conn, error) {
	f, ok := factories[typ]
	if !ok {
		return nil, newError("factory (%s) not found", typ)
	}
	return f.dial(address, opts)
}
