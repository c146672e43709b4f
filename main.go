package main

import (
	"fmt"
	"os"

	"choicegraph/cmd"
)

func main() {
	cli := cmd.NewCLI()
	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
