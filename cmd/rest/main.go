package main

import (
	"context"
	"log"

	"docchat-be/internal/bootstrap"
	"docchat-be/internal/config"
	"docchat-be/internal/server"
	"docchat-be/pkg/database"
	"docchat-be/pkg/tracer"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Tracer (optional)
	if cfg.Trace.Enabled {
		shutdownTracer := tracer.InitTracer(cfg.Trace.OTLPEndpoint)
		defer shutdownTracer(context.Background())
	}

	// 3. Initialize Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 4. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)

	// 5. Start Background Services
	go func() {
		log.Println("Background: Starting Mail Consumer...")
		if err := container.MailConsumer.Consume(context.Background()); err != nil {
			log.Printf("Background Mail Consumer Error: %v", err)
		}
	}()

	// 6. Initialize Server
	srv := server.New(cfg, container)

	// 7. Run Server
	log.Fatal(srv.Run())
}
