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

package version

import (
	"fmt"
	"runtime"
)

// SDK is the version of the dlhub-sdk metadata format. It is recorded in
// every generated document under dlhub.version so the service can parse
// older documents after the format evolves.
const SDK = "1.0.0"

var (
	// GitVersion is semantic version.
	GitVersion = "v1.0.0"

	// GitCommit is the git commit id.
	GitCommit = "unknown"

	// BuildTime is the build time of the binary.
	BuildTime = "unknown"

	// Platform is the os/arch the binary was built for.
	Platform = fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
)
