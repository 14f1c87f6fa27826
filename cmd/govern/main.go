package main

import (
	"os"

	"github.com/angeloszaimis/governor/cmd/govern/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
