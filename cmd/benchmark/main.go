package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/punchamoorthee/txnrelay/internal/domain"
)

// Config holds the benchmark settings
var (
	targetURL      string
	concurrency    int
	duration       time.Duration
	duplicateRatio float64
	outputFile     string
)

// Outcome counters
var (
	totalRequests     uint64
	processing        uint64
	duplicate         uint64
	alreadyProcessing uint64
	rateLimited       uint64
	failOther         uint64
)

// sent keeps ids already delivered so that redeliveries can be replayed.
var sent = struct {
	sync.Mutex
	ids []string
}{}

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8000", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.Float64Var(&duplicateRatio, "duplicates", 0.2, "Share of requests that redeliver an already sent transaction id")
	flag.StringVar(&outputFile, "out", "results_webhooks.json", "File for the JSON results, empty to skip")
}

func main() {
	flag.Parse()
	log.Printf("Starting Benchmark: %s | Workers: %d | Duration: %s | Duplicates: %.0f%%", targetURL, concurrency, duration, duplicateRatio*100)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(&wg, start)
	}

	wg.Wait()
	printResults(time.Since(start))
}

func worker(wg *sync.WaitGroup, start time.Time) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	for time.Since(start) < duration {
		payload := map[string]interface{}{
			"transaction_id":      nextTransactionID(),
			"source_account":      "acc_user_bench",
			"destination_account": "acc_merchant_bench",
			"amount":              float64(rand.Intn(100_000)+1) / 100,
			"currency":            domain.DefaultCurrency,
		}
		body, _ := json.Marshal(payload)

		req, _ := http.NewRequest("POST", targetURL+"/v1/webhooks/transactions", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		record(resp)
		resp.Body.Close()
	}
}

func record(resp *http.Response) {
	switch resp.StatusCode {
	case http.StatusAccepted:
	case http.StatusTooManyRequests:
		atomic.AddUint64(&rateLimited, 1)
		return
	default:
		atomic.AddUint64(&failOther, 1)
		return
	}

	var ack domain.WebhookAck
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		atomic.AddUint64(&failOther, 1)
		return
	}
	switch ack.Status {
	case domain.AckProcessing:
		atomic.AddUint64(&processing, 1)
	case domain.AckDuplicate:
		atomic.AddUint64(&duplicate, 1)
	case domain.AckAlreadyProcessing:
		atomic.AddUint64(&alreadyProcessing, 1)
	default:
		atomic.AddUint64(&failOther, 1)
	}
}

func nextTransactionID() string {
	sent.Lock()
	defer sent.Unlock()

	if len(sent.ids) > 0 && rand.Float64() < duplicateRatio {
		return sent.ids[rand.Intn(len(sent.ids))]
	}
	id := domain.NewTransactionID()
	sent.ids = append(sent.ids, id)
	return id
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	results := map[string]interface{}{
		"duration_sec":       d.Seconds(),
		"total_requests":     total,
		"throughput_rps":     float64(total) / d.Seconds(),
		"processing":         atomic.LoadUint64(&processing),
		"duplicate":          atomic.LoadUint64(&duplicate),
		"already_processing": atomic.LoadUint64(&alreadyProcessing),
		"rate_limited":       atomic.LoadUint64(&rateLimited),
		"errors":             atomic.LoadUint64(&failOther),
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Metric", "Value"})
	for _, key := range []string{"duration_sec", "total_requests", "throughput_rps", "processing", "duplicate", "already_processing", "rate_limited", "errors"} {
		table.Append([]string{key, formatValue(results[key])})
	}
	table.Render()

	if outputFile == "" {
		return
	}
	file, err := os.Create(outputFile)
	if err != nil {
		log.Printf("Warning: failed to create results file: %v", err)
		return
	}
	defer file.Close()
	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	enc.Encode(results)
}

func formatValue(v interface{}) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%.2f", f)
	}
	return fmt.Sprint(v)
}
