package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"creepair.dev/internal/persistence/snapshot"
)

type snapshotInfo struct {
	Path     string          `json:"path"`
	Header   snapshot.Header `json:"header"`
	Seed     int64           `json:"seed,omitempty"`
	Height   int             `json:"height,omitempty"`
	Chunks   int             `json:"chunks,omitempty"`
	Creepers int             `json:"creepers,omitempty"`
	Items    int             `json:"items,omitempty"`
	Decay    int             `json:"decay,omitempty"`
}

// snapshotCmd describes a snapshot. Without -full only the header is decoded.
func snapshotCmd(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (used when -path is empty)")
	path := fs.String("path", "", "snapshot path (default: latest for -world)")
	full := fs.Bool("full", false, "decode the whole snapshot")
	_ = fs.Parse(args)

	p := strings.TrimSpace(*path)
	if p == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -path or -world")
			os.Exit(2)
		}
		p = latestSnapshot(worldPath(*dataDir, *worldID, "snapshots"))
		if p == "" {
			fmt.Fprintln(os.Stderr, "no snapshot found")
			os.Exit(2)
		}
	}

	info := snapshotInfo{Path: p}
	if *full {
		snap, err := snapshot.ReadSnapshot(p)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read snapshot:", err)
			os.Exit(1)
		}
		info.Header = snap.Header
		info.Seed = snap.Seed
		info.Height = snap.Height
		info.Chunks = len(snap.Chunks)
		info.Creepers = len(snap.Creepers)
		info.Items = len(snap.Items)
		info.Decay = len(snap.Decay)
	} else {
		h, err := snapshot.ReadHeader(p)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read header:", err)
			os.Exit(1)
		}
		info.Header = h
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(info)
}

func latestSnapshot(dir string) string {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}
