package main

import (
	"fmt"
	"os"

	"bizadmin.org/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "consolectl:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
