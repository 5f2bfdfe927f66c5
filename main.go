package main

import (
	"os"

	"github.com/smallnest/taskwire/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
