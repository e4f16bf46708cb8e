package main

import (
	"os"

	"github.com/ctxforge/ctxcache/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
