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

// Package requirements parses pip requirement files into the library to
// version mapping recorded under a servable's python dependencies.
package requirements

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// specifiers pip uses to pin or bound a version. Ordered so that two
// character operators are tried before their one character prefixes.
var specifiers = []string{"==", ">=", "<=", "~=", "!=", ">", "<"}

// Parse reads a pip requirements listing and returns library to version
// pairs. Comments, blank lines, and pip options are skipped. An exact pin
// yields the bare version, any other specifier is kept verbatim so the
// constraint survives into the document.
func Parse(reader io.Reader) (map[string]string, error) {
	parsed := make(map[string]string)
	currentLine := 0

	scanner := bufio.NewScanner(reader)
	scanner.Split(bufio.ScanLines)
	for scanner.Scan() {
		currentLine++
		line := strings.TrimSpace(scanner.Text())

		// If the line is empty or a comment, continue to the next line.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Pip options such as -r or --index-url do not name a library.
		if strings.HasPrefix(line, "-") {
			continue
		}

		// Environment markers and trailing comments do not affect the pin.
		if idx := strings.IndexAny(line, ";#"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}

		name, version, err := splitRequirement(line)
		if err != nil {
			return nil, fmt.Errorf("parse error on line %d: %w", currentLine, err)
		}

		parsed[name] = version
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return parsed, nil
}

// ParseFile parses the requirements file at path.
func ParseFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Parse(f)
}

// splitRequirement splits one requirement line into library name and
// version constraint.
func splitRequirement(line string) (string, string, error) {
	for _, spec := range specifiers {
		idx := strings.Index(line, spec)
		if idx < 0 {
			continue
		}

		name := strings.TrimSpace(line[:idx])
		version := strings.TrimSpace(line[idx+len(spec):])
		if name == "" || version == "" {
			return "", "", fmt.Errorf("malformed requirement %q", line)
		}

		// Extras like package[extra] pin the same distribution.
		if bracket := strings.Index(name, "["); bracket >= 0 {
			name = name[:bracket]
		}

		if spec != "==" {
			version = spec + version
		}

		return name, version, nil
	}

	// A bare name means any version is acceptable.
	name := strings.TrimSpace(line)
	if strings.ContainsAny(name, " \t") {
		return "", "", fmt.Errorf("malformed requirement %q", line)
	}
	if bracket := strings.Index(name, "["); bracket >= 0 {
		name = name[:bracket]
	}

	return name, "", nil
}
