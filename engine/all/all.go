// (c) Siemens AG 2026
//
// SPDX-License-Identifier: MIT

package all

import (
	_ "github.com/siemens/dockermon/engine/moby"   // dial Docker
	_ "github.com/siemens/dockermon/engine/podman" // dial podman
)
