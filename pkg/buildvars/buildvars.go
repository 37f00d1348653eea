package buildvars

import (
	"strconv"
	"time"
)

// These are set with -ldflags "-X github.com/ccalmels/opengl-player/pkg/buildvars.<Name>=<value>".
var (
	GitCommit       string
	Version         string
	BuildDateString string
	BuildDate       *time.Time

	// ShadersPath is the directory the shader programs are loaded from
	// if it exists and VC_SHADERS_PATH is not set.
	ShadersPath = "/usr/share/opengl-player/shaders"
)

func init() {
	unixTS, err := strconv.ParseInt(BuildDateString, 10, 64)
	if err == nil {
		t := time.Unix(unixTS, 0)
		BuildDate = &t
	}
}
