package main

import (
	"os"

	"github.com/zuchengchen/martingrid/cmd/martingrid/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
