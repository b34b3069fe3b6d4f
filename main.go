package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spigell/scout-responder/cmd"
)

func main() {
	// .env is optional, the real environment always wins.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
