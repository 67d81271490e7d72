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

package tracekit

import (
	"crypto/rand"

	"go.opentelemetry.io/otel/trace"
)

// RandomTraceID 随机生成 TraceID
//
// 每次出站请求分配一个 TraceID 写入本端日志 不随 Frame 发送给对端
func RandomTraceID() trace.TraceID {
	var ret trace.TraceID
	rand.Read(ret[:])
	return ret
}

// RandomSpanID 随机生成 SpanID
func RandomSpanID() trace.SpanID {
	var ret trace.SpanID
	rand.Read(ret[:])
	return ret
}

// TraceParent 以 W3C traceparent 格式拼接
//
// 格式样例
// 00-{trace-id}-{parent-id}-01
func TraceParent(tid trace.TraceID, sid trace.SpanID) string {
	return "00-" + tid.String() + "-" + sid.String() + "-01"
}
