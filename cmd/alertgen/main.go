// Command alertgen publishes synthetic credit alerts to the queue for load
// and integration testing. Severities follow a weighted distribution; a
// fixed seed makes a run reproducible.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"creditwatch/internal/alerts"
	"creditwatch/internal/config"
	"creditwatch/internal/queue"
)

var alertTypes = []string{
	"CreditScoreDrop",
	"PaymentOverdue",
	"VoucherIrregularity",
	"CollateralDevaluation",
	"GuarantorDefault",
}

func main() {
	var (
		brokers      = flag.String("kafka-brokers", config.GetEnvOrDefault("KAFKA_BROKERS", "localhost:9092"), "Kafka broker addresses (comma-separated)")
		topic        = flag.String("alerts-topic", "credit-alerts", "Kafka topic for credit alerts")
		dlqTopic     = flag.String("dlq-topic", "credit-alerts.dlq", "Kafka dead-letter topic")
		count        = flag.Int("count", 100, "Number of alerts to publish")
		interval     = flag.Duration("interval", 100*time.Millisecond, "Delay between alerts")
		seed         = flag.Int64("seed", 0, "RNG seed (0 = time-based)")
		accounts     = flag.Int("accounts", 50, "Number of distinct account ids to spread alerts over")
		severityDist = flag.String("severity-dist", "Low:40,Medium:30,High:20,Critical:10", "Weighted severity distribution")
	)
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	dist, err := parseSeverityDist(*severityDist)
	if err != nil {
		slog.Error("Invalid severity distribution", "error", err)
		os.Exit(1)
	}

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(rngSeed))

	client, err := queue.NewKafkaClient(*brokers, *topic, *dlqTopic, "alertgen")
	if err != nil {
		slog.Error("Failed to create queue client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	slog.Info("Publishing synthetic alerts",
		"count", *count,
		"interval", *interval,
		"seed", rngSeed,
		"topic", *topic,
	)

	published := 0
	for i := 0; i < *count; i++ {
		select {
		case <-ctx.Done():
			slog.Info("Interrupted", "published", published)
			return
		default:
		}

		alert := generateAlert(rng, dist, *accounts)
		if err := client.Send(ctx, alert); err != nil {
			slog.Error("Failed to publish alert", "alert_id", alert.ID, "error", err)
			continue
		}
		published++

		if *interval > 0 && i < *count-1 {
			time.Sleep(*interval)
		}
	}

	slog.Info("Done", "published", published)
}

// weightedSeverity is one entry of the severity distribution.
type weightedSeverity struct {
	severity alerts.Severity
	weight   int
}

// parseSeverityDist parses "Low:40,Medium:30,..." into weighted entries.
func parseSeverityDist(s string) ([]weightedSeverity, error) {
	parts := strings.Split(s, ",")
	dist := make([]weightedSeverity, 0, len(parts))
	for _, part := range parts {
		kv := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid distribution entry: %q", part)
		}
		sev, err := alerts.ParseSeverity(kv[0])
		if err != nil {
			return nil, err
		}
		weight, err := strconv.Atoi(kv[1])
		if err != nil || weight <= 0 {
			return nil, fmt.Errorf("invalid weight in entry %q", part)
		}
		dist = append(dist, weightedSeverity{severity: sev, weight: weight})
	}
	if len(dist) == 0 {
		return nil, fmt.Errorf("empty distribution")
	}
	return dist, nil
}

// selectSeverity picks a severity according to the weights.
func selectSeverity(rng *rand.Rand, dist []weightedSeverity) alerts.Severity {
	total := 0
	for _, w := range dist {
		total += w.weight
	}
	n := rng.Intn(total)
	for _, w := range dist {
		n -= w.weight
		if n < 0 {
			return w.severity
		}
	}
	return dist[len(dist)-1].severity
}

// generateAlert builds one synthetic alert with a plausible score drop.
func generateAlert(rng *rand.Rand, dist []weightedSeverity, accountCount int) *alerts.Alert {
	severity := selectSeverity(rng, dist)
	previous := 500 + rng.Intn(300)
	drop := (int(severity) + 1) * (10 + rng.Intn(40))

	alert := &alerts.Alert{
		ID:            uuid.New().String(),
		AccountID:     1 + rng.Intn(accountCount),
		Severity:      severity,
		AlertType:     alertTypes[rng.Intn(len(alertTypes))],
		PreviousScore: previous,
		CurrentScore:  previous - drop,
		CreatedAt:     time.Now().UTC(),
	}
	alert.Description = fmt.Sprintf("%s: credit score dropped from %d to %d",
		alert.AlertType, alert.PreviousScore, alert.CurrentScore)

	if rng.Float64() < 0.3 {
		voucherID := 1000 + rng.Intn(9000)
		alert.VoucherID = &voucherID
	}
	return alert
}
