package main

import (
	"os"

	"github.com/arewefastyet/jsbuild/pkg/cli"
	"github.com/arewefastyet/jsbuild/pkg/logger"
)

// set at release time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := cli.ExecuteWithVersion(version); err != nil {
		logger.NewConsoleLogger().Error(err.Error())
		os.Exit(1)
	}
}
