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

package common

const (
	// App 应用程序名称
	App = "framed"

	// Version 应用程序版本
	Version = "v0.0.1"

	// ReadBlockSize transport 单次从 socket 读取的块长度
	//
	// 解码器支持任意粒度的增量喂入 读取块不必覆盖完整 Frame
	// 取一个折中值以平衡单链接内存开销与 syscall 次数
	ReadBlockSize = 32768
)
