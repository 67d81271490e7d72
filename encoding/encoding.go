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

package encoding

import (
	"github.com/pkg/errors"
)

func newError(format string, args ...any) error {
	format = "encoding/codec: " + format
	return errors.Errorf(format, args...)
}

var (
	// ErrNoCommonEncoding 双方不存在交集编码
	ErrNoCommonEncoding = newError("no common encoding")
)

// Codec payload 编码器定义
//
// 会话双方在握手阶段协商出一个 Codec 之后所有 REQUEST/RESPONSE/PUSH
// 的 payload 均以该编码序列化
type Codec interface {
	// Name 返回编码名 同时也是 HELLO 中广播的协商标识
	Name() string

	// Marshal 将对象序列化为 payload 字节
	Marshal(v any) ([]byte, error)

	// Unmarshal 将 payload 字节反序列化至对象
	Unmarshal(b []byte, v any) error
}

// registry 按注册顺序保存 Codec 注册顺序即本端偏好顺序
var registry []Codec

// Register 注册一个 Codec 重复注册后者覆盖前者
func Register(c Codec) {
	for i, exist := range registry {
		if exist.Name() == c.Name() {
			registry[i] = c
			return
		}
	}
	registry = append(registry, c)
}

// Get 按编码名检索 Codec
func Get(name string) (Codec, bool) {
	for _, c := range registry {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

// Names 返回本端支持的编码名 按偏好排序
func Names() [][]byte {
	names := make([][]byte, 0, len(registry))
	for _, c := range registry {
		names = append(names, []byte(c.Name()))
	}
	return names
}

// Select 从对端广播的编码列表中选出第一个双方共同支持的 Codec
//
// advertised 按对端偏好排序 选择遵循对端偏好
func Select(advertised [][]byte) (Codec, error) {
	for _, name := range advertised {
		if c, ok := Get(string(name)); ok {
			return c, nil
		}
	}
	return nil, ErrNoCommonEncoding
}
