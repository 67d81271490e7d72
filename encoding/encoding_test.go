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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryNames(t *testing.T) {
	names := Names()
	assert.Equal(t, [][]byte{[]byte("json"), []byte("msgpack")}, names)
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name       string
		advertised [][]byte
		expected   string
		err        error
	}{
		{
			name:       "Peer preference wins",
			advertised: [][]byte{[]byte("msgpack"), []byte("json")},
			expected:   "msgpack",
		},
		{
			name:       "Unknown encodings skipped",
			advertised: [][]byte{[]byte("cbor"), []byte("json")},
			expected:   "json",
		},
		{
			name:       "No common encoding",
			advertised: [][]byte{[]byte("cbor"), []byte("protobuf")},
			err:        ErrNoCommonEncoding,
		},
		{
			name:       "Empty advertisement",
			advertised: [][]byte{{}},
			err:        ErrNoCommonEncoding,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Select(tt.advertised)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, c.Name())
		})
	}
}

func TestCodecRoundTrip(t *testing.T) {
	type sample struct {
		Method string `json:"method" msgpack:"method"`
		Value  int    `json:"value" msgpack:"value"`
	}

	for _, name := range []string{"json", "msgpack"} {
		t.Run(name, func(t *testing.T) {
			c, ok := Get(name)
			require.True(t, ok)

			b, err := c.Marshal(sample{Method: "echo", Value: 42})
			require.NoError(t, err)

			var out sample
			require.NoError(t, c.Unmarshal(b, &out))
			assert.Equal(t, sample{Method: "echo", Value: 42}, out)
		})
	}
}
