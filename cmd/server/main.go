package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"github.com/communityforge/door-access-service/internal/app/bootstrap"
)

func main() {
	// Local development keeps secrets in .env; deployed runs set real env vars.
	_ = godotenv.Load()

	ctx := context.Background()
	runtime, err := bootstrap.NewRuntime(ctx, "configs/default.yaml")
	if err != nil {
		log.Fatalf("bootstrap runtime: %v", err)
	}
	if err := runtime.Run(ctx); err != nil {
		log.Fatalf("run server: %v", err)
	}
}
