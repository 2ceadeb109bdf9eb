package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"creepair.dev/internal/sim/encoding"
	"creepair.dev/internal/sim/world"
)

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	metrics := fs.Bool("metrics", false, "print /metrics instead of the JSON state")
	_ = fs.Parse(args)

	path := "/admin/v1/state"
	if *metrics {
		path = "/metrics"
	}
	u := strings.TrimRight(strings.TrimSpace(*baseURL), "/") + path
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Get(u)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(strings.TrimRight(string(b), "\n"))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}

// chunkCmd fetches one chunk and prints how many of each block it holds.
func chunkCmd(args []string) {
	fs := flag.NewFlagSet("chunk", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	cx := fs.Int("cx", 0, "chunk x")
	cz := fs.Int("cz", 0, "chunk z")
	_ = fs.Parse(args)

	u := fmt.Sprintf("%s/admin/v1/chunk?cx=%d&cz=%d", strings.TrimRight(strings.TrimSpace(*baseURL), "/"), *cx, *cz)
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Get(u)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintln(os.Stderr, strings.TrimSpace(string(b)))
		os.Exit(1)
	}
	var cv world.ChunkView
	if err := json.NewDecoder(resp.Body).Decode(&cv); err != nil {
		fmt.Fprintln(os.Stderr, "decode:", err)
		os.Exit(1)
	}
	counts, err := blockCounts(cv)
	if err != nil {
		fmt.Fprintln(os.Stderr, "decode blocks:", err)
		os.Exit(1)
	}
	fmt.Printf("chunk %d,%d height=%d digest=%s\n", cv.CX, cv.CZ, cv.Height, cv.Digest)
	for _, c := range counts {
		fmt.Printf("%-20s %d\n", c.Block, c.Count)
	}
}

type blockCount struct {
	Block string
	Count int
}

// blockCounts decodes a chunk view into per-block totals, most common first.
func blockCounts(cv world.ChunkView) ([]blockCount, error) {
	ids, err := encoding.DecodeRLE(cv.Blocks, 16*16*cv.Height)
	if err != nil {
		return nil, err
	}
	byID := map[uint16]int{}
	for _, id := range ids {
		byID[id]++
	}
	out := make([]blockCount, 0, len(byID))
	for id, n := range byID {
		name := fmt.Sprintf("#%d", id)
		if int(id) < len(cv.Palette) {
			name = cv.Palette[id]
		}
		out = append(out, blockCount{Block: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Block < out[j].Block
	})
	return out, nil
}
