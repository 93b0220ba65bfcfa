package main

import (
	"github.com/joho/godotenv"

	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/cli"
)

func main() {
	// Optional .env for local development; absence is not an error.
	_ = godotenv.Load()
	cli.Execute()
}
