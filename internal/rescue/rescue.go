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

package rescue

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/framed/framed/common"
	"github.com/framed/framed/logger"
)

var panicTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: common.App,
		Name:      "panic_total",
		Help:      "program causes panic total",
	},
	[]string{"component"},
)

// HandleCrash 捕获并恢复 panic
//
// component 标识出事的泵或回调 会话的读写泵 dispatch 回调以及
// accept/sweep 循环均以此兜底 单条链接的 panic 不允许放倒整个进程
func HandleCrash(component string) {
	r := recover()
	if r == nil {
		return
	}

	panicTotal.WithLabelValues(component).Inc()

	const size = 64 << 10
	stacktrace := make([]byte, size)
	stacktrace = stacktrace[:runtime.Stack(stacktrace, false)]
	if _, ok := r.(string); ok {
		logger.Errorf("Observed a panic in %s: %s\n%s", component, r, stacktrace)
	} else {
		logger.Errorf("Observed a panic in %s: %#v (%v)\n%s", component, r, r, stacktrace)
	}
}
