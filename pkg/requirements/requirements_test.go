/*
 *     Copyright 2024 The DLHub Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package requirements

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      map[string]string
		expectErr bool
	}{
		{
			name:  "exact pins",
			input: "numpy==1.24.0\nscikit-learn==1.3.2\n",
			want:  map[string]string{"numpy": "1.24.0", "scikit-learn": "1.3.2"},
		},
		{
			name:  "comments and blank lines",
			input: "# training deps\n\nnumpy==1.24.0  # pinned for reproducibility\n",
			want:  map[string]string{"numpy": "1.24.0"},
		},
		{
			name:  "bounded specifier kept verbatim",
			input: "torch>=2.0\npandas~=2.1.0\n",
			want:  map[string]string{"torch": ">=2.0", "pandas": "~=2.1.0"},
		},
		{
			name:  "bare name",
			input: "onnx\n",
			want:  map[string]string{"onnx": ""},
		},
		{
			name:  "extras collapse to the distribution",
			input: "uvicorn[standard]==0.23.0\n",
			want:  map[string]string{"uvicorn": "0.23.0"},
		},
		{
			name:  "environment marker stripped",
			input: "dataclasses==0.8; python_version < \"3.7\"\n",
			want:  map[string]string{"dataclasses": "0.8"},
		},
		{
			name:  "pip options skipped",
			input: "-r base.txt\n--index-url https://pypi.org/simple\nnumpy==1.24.0\n",
			want:  map[string]string{"numpy": "1.24.0"},
		},
		{
			name:      "malformed line",
			input:     "numpy ==\n",
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(strings.NewReader(tt.input))
			if tt.expectErr {
				assert.Error(t, err)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "requirements.txt")
	assert.NoError(t, os.WriteFile(path, []byte("numpy==1.24.0\n"), 0644))

	got, err := ParseFile(path)
	assert.NoError(t, err)
	assert.Equal(t, map[string]string{"numpy": "1.24.0"}, got)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
