package main

import (
	"os"

	"schedwidget/internal/cli"
	appLog "schedwidget/internal/log"
)

var version = "0.1.0-dev"

func main() {
	appLog.Debug("schedwidget starting", "version", version)

	cmd := cli.NewRootCmd()
	cmd.Version = version
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
