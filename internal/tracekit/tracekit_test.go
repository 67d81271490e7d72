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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandomTraceID(t *testing.T) {
	tid := RandomTraceID()
	assert.True(t, tid.IsValid())
	assert.NotEqual(t, tid, RandomTraceID())
}

func TestTraceParent(t *testing.T) {
	tp := TraceParent(RandomTraceID(), RandomSpanID())
	parts := strings.Split(tp, "-")
	assert.Len(t, parts, 4)
	assert.Equal(t, "00", parts[0])
	assert.Len(t, parts[1], 32)
	assert.Len(t, parts[2], 16)
	assert.Equal(t, "01", parts[3])
}
