package main

import (
	"os"

	"github.com/GoSim-25-26J-441/content-writeback/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
