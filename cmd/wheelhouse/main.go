// Package main is the wheelhouse entrypoint.
package main

import (
	"log"
	"os"

	"github.com/platform-wheels/wheelhouse/internal/cli"
)

func main() {
	app := cli.NewApp()
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
