package main

import (
	"os"

	"github.com/joho/godotenv"

	callctxcmder "github.com/papercomputeco/callctx/cmd/callctx"
)

func main() {
	// A .env file is optional; CALLCTX_ variables may come from the shell.
	_ = godotenv.Load()

	cmd := callctxcmder.NewCallctxCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
