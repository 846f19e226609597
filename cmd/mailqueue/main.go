package main

import (
	"context"
	"os"

	"github.com/dmitrymomot/mailqueue/internal/command"
)

func main() {
	if err := command.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}
