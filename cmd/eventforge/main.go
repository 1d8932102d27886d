package main

import (
	"log/slog"

	"eventforge/internal/logging"
)

func main() {
	slog.SetDefault(logging.New())
	Execute()
}
