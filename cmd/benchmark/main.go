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
)

// Config holds the benchmark settings
var (
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
	addressID   string
)

// Metrics
var (
	totalRequests uint64
	settled201    uint64 // Newly settled
	duplicate409  uint64 // AlreadyUsed replays
	rejected      uint64 // Verification rejections (404/422)
	closed403     uint64 // Window closed
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot")
	flag.StringVar(&addressID, "address", "address_a", "Payment address id to claim against")
}

func main() {
	flag.Parse()
	log.Printf("Starting Benchmark: %s | Workers: %d | Duration: %s", workload, concurrency, duration)

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
			"payer_id":   fmt.Sprintf("%d", rand.Intn(1000)+1),
			"tx_hash":    generateTxHash(),
			"address_id": addressID,
		}
		body, _ := json.Marshal(payload)

		req, _ := http.NewRequest("POST", targetURL+"/api/v1/settlements", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch resp.StatusCode {
		case 201, 202:
			atomic.AddUint64(&settled201, 1)
		case 409:
			atomic.AddUint64(&duplicate409, 1)
		case 403:
			atomic.AddUint64(&closed403, 1)
		case 404, 422:
			atomic.AddUint64(&rejected, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()
	}
}

func generateTxHash() string {
	// Hotspot replays a small set of references so the dedupe path gets
	// hammered; uniform makes every claim unique.
	if workload == "hotspot" && rand.Float32() < 0.90 {
		return fmt.Sprintf("%064x", rand.Intn(4)+1)
	}
	return fmt.Sprintf("%048x%016x", rand.Int63(), time.Now().UnixNano())
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	s := atomic.LoadUint64(&settled201)
	dup := atomic.LoadUint64(&duplicate409)
	rej := atomic.LoadUint64(&rejected)
	cls := atomic.LoadUint64(&closed403)
	fErr := atomic.LoadUint64(&failOther)

	tps := float64(total) / d.Seconds()
	dupRate := float64(dup) / float64(total) * 100

	results := map[string]interface{}{
		"workload":        workload,
		"duration_sec":    d.Seconds(),
		"total_requests":  total,
		"throughput_tps":  tps,
		"settled":         s,
		"duplicates":      dup,
		"duplicate_pct":   dupRate,
		"rejected":        rej,
		"window_closed":   cls,
		"errors":          fErr,
	}

	// Print JSON for the plotter to consume
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	// Also save to file
	filename := fmt.Sprintf("results_%s.json", workload)
	file, _ := os.Create(filename)
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
