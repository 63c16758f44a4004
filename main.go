package main

import (
	"os"

	"github.com/entropix/gauntlet/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
