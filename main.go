package main

import (
	"fmt"
	"os"

	cmd "github.com/graphfuse/graphfuse/cmd/graphfuse"
)

var version = "dev"

func main() {
	cmd.SetVersion(version)
	if err := cmd.GetRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
