package main

import (
	"context"
	"encoding/json"
	"runtime/debug"

	"github.com/ccalmels/opengl-player/pkg/buildvars"
	"github.com/facebookincubator/go-belt/tool/logger"
)

type buildVars struct {
	Version     string `json:",omitempty"`
	GitCommit   string `json:",omitempty"`
	BuildDate   string `json:",omitempty"`
	ShadersPath string `json:",omitempty"`
}

type buildInfo struct {
	GoVersion string     `json:",omitempty"`
	Main      string     `json:",omitempty"`
	BuildVars *buildVars `json:",omitempty"`
}

func getBuildInfo() buildInfo {
	result := buildInfo{
		BuildVars: &buildVars{
			Version:     buildvars.Version,
			GitCommit:   buildvars.GitCommit,
			BuildDate:   buildvars.BuildDateString,
			ShadersPath: buildvars.ShadersPath,
		},
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return result
	}

	result.GoVersion = bi.GoVersion
	result.Main = bi.Main.Path + "@" + bi.Main.Version
	return result
}

func logBuildInfo(ctx context.Context) {
	b, err := json.Marshal(getBuildInfo())
	if err != nil {
		logger.Errorf(ctx, "unable to serialize the build info: %v", err)
		return
	}
	logger.Debugf(ctx, "build info: %s", b)
}
