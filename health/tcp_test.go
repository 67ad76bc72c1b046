// Copyright 2023 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostPortOf(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		url    string
		expect string
	}{
		{url: "http://10.0.0.1:8080", expect: "10.0.0.1:8080"},
		{url: "http://10.0.0.1", expect: "10.0.0.1:80"},
		{url: "https://example.com", expect: "example.com:443"},
		{url: "https://example.com/path", expect: "example.com:443"},
		{url: "h2c://example.com:9000", expect: "example.com:9000"},
		{url: "10.0.0.1:8080", expect: "10.0.0.1:8080"},
		{url: "localhost:8080", expect: "localhost:8080"},
		{url: "http://[::1]:9090", expect: "[::1]:9090"},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.url, func(t *testing.T) {
			t.Parallel()
			hostPort, err := hostPortOf(testCase.url)
			require.NoError(t, err)
			assert.Equal(t, testCase.expect, hostPort)
		})
	}
}
