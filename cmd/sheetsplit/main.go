package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/local/sheetsplit/internal/cli"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()
	os.Exit(cli.Execute())
}
