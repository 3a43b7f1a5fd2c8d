package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/atlasbank/mailtriage/internal/config"
	"github.com/atlasbank/mailtriage/internal/core/domain"
)

// Offline scoring tool: feed it a classification JSON file and it prints the
// score derivation and routing decision against the configured catalog.
// Useful for validating catalog/threshold changes before rollout.
//
// Input format:
//
//	{
//	  "factors": {"premium_complaint": true, "angry_tone": true},
//	  "topic_count": 1
//	}
type scoringFile struct {
	Factors    map[string]bool `json:"factors"`
	TopicCount int             `json:"topic_count"`
}

func main() {
	targetFile := flag.String("file", "classification.json", "Path to a classification JSON file")
	threshold := flag.Int("threshold", -1, "Routing threshold override (0-100, default from config)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ invalid configuration: %v", err)
	}

	catalog, err := cfg.BuildCatalog()
	if err != nil {
		log.Fatalf("❌ invalid scoring catalog: %v", err)
	}

	routeThreshold := cfg.Scoring.Threshold
	if *threshold >= 0 {
		routeThreshold = *threshold
	}

	data, err := os.ReadFile(*targetFile)
	if err != nil {
		log.Fatalf("❌ error reading file: %v", err)
	}

	var input scoringFile
	if err := json.Unmarshal(data, &input); err != nil {
		log.Fatalf("❌ error parsing %s: %v", *targetFile, err)
	}

	topicCount := input.TopicCount
	if topicCount < 1 {
		topicCount = 1
	}

	result, err := domain.Score(domain.ScoringInput{
		Indicators: input.Factors,
		TopicCount: topicCount,
	}, catalog)
	if err != nil {
		log.Fatalf("❌ scoring failed: %v", err)
	}

	decision, err := domain.Route(result, routeThreshold)
	if err != nil {
		log.Fatalf("❌ routing failed: %v", err)
	}

	fmt.Printf("🔍 scoring %s against catalog (%d indicators)...\n\n", *targetFile, catalog.Len())

	if len(result.Applied) == 0 {
		fmt.Println("   no impacts applied")
	}
	for _, a := range result.Applied {
		fmt.Printf("   %-20s %+d\n", a.Indicator, a.Points)
	}

	fmt.Println("------------------------------------------------")
	fmt.Printf("score:     %d / %d\n", result.Score, domain.PerfectScore)
	fmt.Printf("threshold: %d\n", decision.Threshold)
	fmt.Printf("derivation: %s\n", result.Explanation)

	if decision.Outcome == domain.AutoRespond {
		fmt.Println("✅ AUTO-RESPOND: confident enough to send automatically.")
		os.Exit(0)
	}

	fmt.Println("📬 AGENT REVIEW: route to a human.")
	os.Exit(1)
}
