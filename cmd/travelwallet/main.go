package main

import (
	"log"

	corecmd "github.com/m3rciful/travelwallet/core/cmd"
	"github.com/m3rciful/travelwallet/internal/app"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig:        app.LoadConfig,
		Bootstrap:         app.BootstrapApp,
	})
	if err != nil {
		log.Fatal(err)
	}
}
