package main

import (
	"context"
	"log"

	"github.com/examwell/examwell-backend/internal/app"
)

func main() {
	a, err := app.New()
	if err != nil {
		log.Fatalf("failed to initialize app: %v", err)
	}
	defer a.Log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.Start(ctx)

	if err := a.Run(); err != nil {
		a.Log.Fatal("Server exited", "error", err.Error())
	}
}
