package main

import (
	"os"

	"github.com/Car-Role/Whisper-dictation/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
