package main

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"time"
)

func main() {
	addr := getenvDefault("FAKE_STRIPE_ADDR", ":18081")
	publicURL := getenvDefault("FAKE_STRIPE_PUBLIC_URL", "http://localhost:18081")
	perAccount := getenvIntDefault("FAKE_STRIPE_INVOICES", 25)
	failRate := getenvFloatDefault("FAKE_STRIPE_FAIL_RATE", 0)
	latencyMs := getenvIntDefault("FAKE_STRIPE_LATENCY_MS", 0)

	srv := newFakeServer(publicURL, perAccount, time.Now().UTC())
	srv.failRate = failRate
	srv.latency = time.Duration(latencyMs) * time.Millisecond

	log.Printf("fake stripe server listening on %s (%d invoices per key)", addr, perAccount)
	if err := http.ListenAndServe(addr, srv.routes()); err != nil {
		log.Fatal(err)
	}
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
