// ailabctl is a command line client for the AI Lab Partner server.
package main

import (
	"fmt"
	"os"

	"github.com/ashureev/ailab/internal/cli"
)

var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
