package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/waittime/internal/domain/entities"
	"github.com/zatekoja/waittime/internal/estimation"
	"github.com/zatekoja/waittime/internal/evaluation"
	"github.com/zatekoja/waittime/internal/infrastructure/observability"
)

// estimateOutput is one what-if result; infinite values print as null.
type estimateOutput struct {
	ArrivalRate float64             `json:"arrival_rate"`
	ServiceRate float64             `json:"service_rate"`
	Servers     int                 `json:"servers"`
	Samples     int                 `json:"samples"`
	WaitMinutes *float64            `json:"wait_minutes"`
	CILower     float64             `json:"ci_lower"`
	CIUpper     *float64            `json:"ci_upper"`
	Utilization float64             `json:"utilization"`
	Status      entities.WaitStatus `json:"status"`
}

func main() {
	var (
		lambda    float64
		mu        float64
		servers   int
		samples   int
		scenarios string
		alpha     float64
		threshold float64
	)
	flag.Float64Var(&lambda, "lambda", 0, "arrival rate in people per minute")
	flag.Float64Var(&mu, "mu", entities.DefaultServiceRate, "service rate per server in people per minute")
	flag.IntVar(&servers, "servers", entities.DefaultServers, "number of parallel servers")
	flag.IntVar(&samples, "samples", 1, "observations behind the arrival rate")
	flag.StringVar(&scenarios, "scenarios", "", "replay a scenario file instead of a single estimate")
	flag.Float64Var(&alpha, "alpha", estimation.DefaultAlpha, "EMA smoothing factor for scenario replay")
	flag.Float64Var(&threshold, "threshold", estimation.DefaultThresholdPct, "significant change percent for scenario replay")
	flag.Parse()

	// stdout carries the JSON result
	zerolog.SetGlobalLevel(observability.ParseLevel(os.Getenv("LOG_LEVEL")))
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var out interface{}
	if scenarios != "" {
		summary, err := replay(scenarios, alpha, threshold)
		if err != nil {
			log.Fatal().Err(err).Str("path", scenarios).Msg("Scenario replay failed")
		}
		out = summary
	} else {
		result, err := estimation.NewQueueingModel(servers).Estimate(lambda, mu, samples)
		if err != nil {
			log.Fatal().Err(err).Msg("Estimate failed")
		}
		out = estimateOutput{
			ArrivalRate: lambda,
			ServiceRate: mu,
			Servers:     servers,
			Samples:     samples,
			WaitMinutes: entities.FiniteOrNil(result.WaitMinutes),
			CILower:     result.CILower,
			CIUpper:     entities.FiniteOrNil(result.CIUpper),
			Utilization: result.Utilization,
			Status:      result.Status,
		}
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to encode output")
	}
	fmt.Println(string(encoded))
}

func replay(path string, alpha, threshold float64) (*evaluation.Summary, error) {
	loaded, err := evaluation.LoadScenarios(path)
	if err != nil {
		return nil, err
	}
	if err := evaluation.ValidateScenarios(loaded); err != nil {
		return nil, err
	}

	defaults := estimation.DefaultPipelineConfig()
	defaults.Alpha = alpha
	defaults.ThresholdPct = threshold

	summary, results, err := evaluation.NewRunner(defaults).Run(context.Background(), loaded)
	if err != nil {
		return nil, err
	}
	for _, res := range results {
		if res.Passed {
			continue
		}
		for _, step := range res.Steps {
			for _, m := range step.Mismatches {
				log.Warn().Str("scenario", res.ID).Int("step", step.Index).Msg(m)
			}
		}
	}
	return summary, nil
}
