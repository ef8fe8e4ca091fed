package main

import (
	"os"

	"github.com/MeKo-Tech/cardcrop/cmd/cardcrop/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
