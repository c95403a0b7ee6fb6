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

package archiver

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestZip(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "archiver_test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	modelPath := filepath.Join(tmpDir, "model.onnx")
	if err := os.WriteFile(modelPath, []byte("weights"), 0644); err != nil {
		t.Fatalf("write file error: %v", err)
	}
	archPath := filepath.Join(tmpDir, "arch.json")
	if err := os.WriteFile(archPath, []byte("{}"), 0644); err != nil {
		t.Fatalf("write file error: %v", err)
	}

	var buf bytes.Buffer
	files := map[string]string{"model": modelPath, "arch": archPath}
	if err := Zip(files, &buf); err != nil {
		t.Fatalf("Zip error: %v", err)
	}

	reader, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("open zip error: %v", err)
	}

	contents := make(map[string]string)
	for _, f := range reader.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open entry error: %v", err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read entry error: %v", err)
		}
		contents[f.Name] = string(data)
	}

	if len(contents) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(contents))
	}
	if contents["model.onnx"] != "weights" {
		t.Errorf("expected 'weights', got '%s'", contents["model.onnx"])
	}
	if contents["arch.json"] != "{}" {
		t.Errorf("expected '{}', got '%s'", contents["arch.json"])
	}
}

func TestZipCollision(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "archiver_test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	first := filepath.Join(tmpDir, "a", "model.onnx")
	second := filepath.Join(tmpDir, "b", "model.onnx")
	for _, p := range []string{first, second} {
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatalf("write file error: %v", err)
		}
	}

	var buf bytes.Buffer
	files := map[string]string{"model": first, "other": second}
	if err := Zip(files, &buf); err == nil {
		t.Fatal("expected collision error, got nil")
	}
}

func TestZipFile(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "archiver_test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	modelPath := filepath.Join(tmpDir, "model.onnx")
	if err := os.WriteFile(modelPath, []byte("weights"), 0644); err != nil {
		t.Fatalf("write file error: %v", err)
	}

	dest := filepath.Join(tmpDir, "servable.zip")
	if err := ZipFile(map[string]string{"model": modelPath}, dest); err != nil {
		t.Fatalf("ZipFile error: %v", err)
	}

	info, err := os.Stat(dest)
	if err != nil {
		t.Fatalf("stat archive error: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("zip archive is empty")
	}
}
