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

// Package archiver assembles the staging archive a servable's files are
// uploaded in.
package archiver

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Zip writes the referenced files (logical name -> local path) into a zip
// archive. Entries are stored under the basename of their path, matching
// the simplified paths recorded in the published document, so two
// references with colliding basenames are an error.
func Zip(files map[string]string, w io.Writer) error {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	zw := zip.NewWriter(w)
	seen := make(map[string]string, len(files))

	for _, name := range names {
		path := files[name]
		base := filepath.Base(path)

		if prev, ok := seen[base]; ok {
			return fmt.Errorf("file references %q and %q both archive as %s", prev, name, base)
		}
		seen[base] = name

		if err := addFile(zw, base, path); err != nil {
			return fmt.Errorf("failed to archive %s (%s): %w", name, path, err)
		}
	}

	return zw.Close()
}

// ZipFile writes the archive to a file at dest.
func ZipFile(files map[string]string, dest string) error {
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	if err := Zip(files, f); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

func addFile(zw *zip.Writer, entryName, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s is a directory, register its files individually", path)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to create header: %w", err)
	}
	header.Name = entryName
	header.Method = zip.Deflate

	entry, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(entry, file); err != nil {
		return fmt.Errorf("failed to copy file into archive: %w", err)
	}

	return nil
}
