// main.go

package main

import (
	"github.com/rdock-dev/rdockctl/cmd"
	"github.com/rdock-dev/rdockctl/pkg/logger"
	"github.com/rdock-dev/rdockctl/pkg/telemetry"
)

func main() {
	logger.InitializeWithFallback()
	if err := telemetry.Init("rdockctl"); err != nil {
		logger.L().Warn("telemetry disabled: " + err.Error())
	}

	cmd.Execute()
}
