package main

import (
	"context"
	"fmt"
	"os"

	"github.com/learnsphere/learnsphere-backend/internal/app"
)

func main() {
	ctx := context.Background()

	a, err := app.New(ctx)
	if err != nil {
		fmt.Printf("failed to start: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	a.Start()

	a.Log.Info("server listening", "port", a.Cfg.Port)
	if err := a.Run(); err != nil {
		a.Log.Error("server failed", "error", err)
	}
}
