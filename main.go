package main

import (
	"fmt"
	"log"

	"SceneStudio-server/config"
	"SceneStudio-server/models"
	"SceneStudio-server/routers"
	"SceneStudio-server/routers/api"
	"SceneStudio-server/service"
)

func main() {
	cfg, err := config.LoadConfig("config/config.yaml")
	if err != nil {
		log.Fatalf("%v", err)
	}
	fmt.Println("Server starting on port", cfg.Server.Port)

	db, err := models.InitDB(cfg.MySQL.DSN)
	if err != nil {
		log.Fatalf("%v", err)
	}
	fmt.Println("Database initialized")

	storage, err := service.NewStorage(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	fmt.Println("MinIO initialized")

	ai := service.NewOpenAIClient(cfg)
	analyzer := service.NewAnalyzer(ai, cfg.Pipeline.AnalyzeBatchSize)
	gen := service.NewGenerators(cfg, ai, storage)
	packager := service.NewPackager(storage)
	sessions := service.NewSessionRegistry()

	queue := service.NewQueue(cfg)
	fmt.Println("Queue initialized")

	processor := service.NewProcessor(cfg, sessions, packager)
	processor.StartProcessor(5)

	h := api.NewHandler(cfg, db, sessions, queue, analyzer, gen)
	r := routers.InitRouter(h)
	r.Run(cfg.Server.Port)
}
