package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/fileteluss/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "fileteluss: %v\n", err)
		os.Exit(1)
	}
}
