package main

import (
	"context"
	"encoding/json"
	"flag"
	"math/rand"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/waittime/internal/adapters/database"
	"github.com/zatekoja/waittime/internal/domain/entities"
	"github.com/zatekoja/waittime/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/waittime/internal/infrastructure/clients/redis"
	"github.com/zatekoja/waittime/internal/infrastructure/observability"
	"github.com/zatekoja/waittime/pkg/config"
)

var demoFacilities = []entities.Facility{
	{ID: "WC-Norte-L0-1", Name: "Restrooms North Level 0", FacilityType: entities.FacilityTypeRestroom, NumServers: 8, ServiceRate: 0.5},
	{ID: "WC-Sur-L0-1", Name: "Restrooms South Level 0", FacilityType: entities.FacilityTypeRestroom, NumServers: 6, ServiceRate: 0.5},
	{ID: "WC-Este-L1-1", Name: "Restrooms East Level 1", FacilityType: entities.FacilityTypeRestroom, NumServers: 4, ServiceRate: 0.5},
	{ID: "Bar-Sur-L1", Name: "South Bar Level 1", FacilityType: entities.FacilityTypeBar, NumServers: 3, ServiceRate: 1.0},
	{ID: "Bar-Norte-L2", Name: "North Bar Level 2", FacilityType: entities.FacilityTypeBar, NumServers: 2, ServiceRate: 1.0},
	{ID: "Food-Este-L1", Name: "East Food Court", FacilityType: entities.FacilityTypeFood, NumServers: 4, ServiceRate: 0.8},
	{ID: "Food-Oeste-L1", Name: "West Burger Stand", FacilityType: entities.FacilityTypeFood, NumServers: 2, ServiceRate: 0.8},
	{ID: "Store-Oficial", Name: "Official Store", FacilityType: entities.FacilityTypeStore, NumServers: 2, ServiceRate: 0.6},
}

func main() {
	var events int
	flag.IntVar(&events, "events", 0, "publish this many synthetic entry events per facility after seeding")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	observability.InitLogger("waittime-seed", cfg.Service.Environment, cfg.Service.LogLevel)

	ctx := context.Background()

	pgClient, err := postgres.NewClient(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to DB")
	}
	defer pgClient.Close()

	if err := database.EnsureSchema(ctx, pgClient.DB()); err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare schema")
	}

	if os.Getenv("RESET_DB") == "true" {
		log.Info().Msg("RESET_DB=true detected, truncating tables before seeding")
		if _, err := pgClient.DB().ExecContext(ctx, `TRUNCATE TABLE queue_states, facilities`); err != nil {
			log.Fatal().Err(err).Msg("Failed to reset tables")
		}
	}

	facilityRepo := database.NewFacilityAdapter(pgClient)
	seeded := 0
	for i := range demoFacilities {
		f := demoFacilities[i]
		if err := facilityRepo.Upsert(ctx, &f); err != nil {
			log.Error().Err(err).Str("poi", f.ID).Msg("Failed to seed facility")
			continue
		}
		seeded++
	}
	log.Info().Int("count", seeded).Msg("Seeded facilities")

	if events <= 0 {
		return
	}

	redisClient, err := redis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()

	// spread the burst over the newer half of the arrival window
	now := time.Now().UTC()
	window := cfg.Estimation.Window()
	published := 0
	for _, f := range demoFacilities {
		for i := 0; i < events; i++ {
			offset := time.Duration(rand.Int63n(int64(window / 2)))
			event := entities.NewQueueEvent(f.ID, entities.QueueEventTypeEntry, 1, "seed", now.Add(-offset))
			payload, err := json.Marshal(event)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to encode event")
			}
			if err := redisClient.Client().Publish(ctx, cfg.Broker.QueueEventsChannel, payload).Err(); err != nil {
				log.Fatal().Err(err).Msg("Failed to publish event")
			}
			published++
		}
	}
	log.Info().Int("events", published).Str("channel", cfg.Broker.QueueEventsChannel).Msg("Published synthetic queue events")
}
