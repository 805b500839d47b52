// Minimal end-to-end check of a running proposal-bot HTTP API.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	baseURL  = getenv("API_URL", "http://localhost:8080")
	redisURL = getenv("REDIS_URL", "")
	stream   = getenv("EVENT_STREAM", "govproposals.events")
)

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func main() {
	ctx := context.Background()
	checkHealth()

	text := "integration-test " + uuid.NewString()
	reply := command("9001", "integration", "!submit "+text)
	if reply != "Proposal submitted: "+text {
		log.Fatalf("submit: unexpected reply %q", reply)
	}

	id := findProposal(text)
	reply = command("9002", "voter", "!vote "+strconv.FormatInt(id, 10))
	if reply != "You voted for proposal: "+text {
		log.Fatalf("vote: unexpected reply %q", reply)
	}

	if reply := command("9002", "voter", "!view"); !strings.Contains(reply, text) {
		log.Fatalf("view: proposal missing from %q", reply)
	}

	if redisURL != "" {
		checkEvents(ctx, id)
	}

	fmt.Println("✓ all endpoints passed")
}

// ----------------------------- commands

func command(senderID, senderName, text string) string {
	var resp struct{ Reply string }
	doJSON("POST", "/v1/commands", map[string]any{
		"sender_id":       senderID,
		"sender_name":     senderName,
		"conversation_id": "integration",
		"text":            text,
	}, &resp, http.StatusOK)
	return resp.Reply
}

func findProposal(text string) int64 {
	var list []struct {
		ID   int64
		Text string
	}
	doJSON("GET", "/v1/proposals", nil, &list, http.StatusOK)
	for _, p := range list {
		if p.Text == text {
			return p.ID
		}
	}
	log.Fatal("proposals: submitted proposal not listed")
	return 0
}

func checkHealth() {
	doJSON("GET", "/healthz", nil, nil, http.StatusOK)
}

// ----------------------------- events

func checkEvents(ctx context.Context, id int64) {
	rdb := mustRedis()
	defer rdb.Close()

	entries, err := rdb.XRevRangeN(ctx, stream, "+", "-", 50).Result()
	if err != nil {
		log.Fatalf("redis xrevrange: %v", err)
	}
	want := map[string]bool{"proposal.submitted": false, "proposal.voted": false}
	for _, e := range entries {
		if fmt.Sprint(e.Values["proposal_id"]) != strconv.FormatInt(id, 10) {
			continue
		}
		if t, ok := e.Values["type"].(string); ok {
			want[t] = true
		}
	}
	for typ, seen := range want {
		if !seen {
			log.Fatalf("events: no %s entry for proposal %d", typ, id)
		}
	}
}

// ----------------------------- helpers

func mustRedis() *redis.Client {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Fatalf("redis url: %v", err)
	}
	return redis.NewClient(opt)
}

func newJSONRequest(method, url string, body any) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("encode: %w", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func doJSON(method, path string, body, out any, want int) {
	req, err := newJSONRequest(method, baseURL+path, body)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()
	if res.StatusCode != want {
		log.Fatalf("%s %s: want %d got %d", method, path, want, res.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			log.Fatalf("%s %s decode: %v", method, path, err)
		}
	}
}
