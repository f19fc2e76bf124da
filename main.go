package main

import (
	"context"
	"os"

	"github.com/kyleking/gen-console/cmd"
)

func main() {
	if err := cmd.Execute(context.Background(), os.Args); err != nil {
		os.Exit(1)
	}
}
