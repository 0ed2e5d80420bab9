package main

import (
	"os"

	"github.com/datawhisker/boxstat/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
