package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"life2gpx/internal/daystore"
	"life2gpx/internal/filter"
	"life2gpx/internal/place"
)

// replayClock makes the filter see the recorded timestamps instead of wall
// time, so historical logs produce the same day files a live run would have.
type replayClock struct{ t time.Time }

func (c *replayClock) Now() time.Time { return c.t }

// Settling is driven by the observed gaps during replay, not real timers.
type noopTimer struct{}

func (noopTimer) Stop() bool { return false }

func main() {
	var (
		inputFile = flag.String("i", "", "Input fix log, one JSON fix per line (- for stdin)")
		dataDir   = flag.String("data", "./data", "Data directory for day files and the place catalog")
		settleGap = flag.Duration("settle-gap", 2*time.Minute, "Gap between fixes that records a stop")
	)
	flag.Parse()

	if *inputFile == "" {
		flag.Usage()
		os.Exit(1)
	}

	in := io.Reader(os.Stdin)
	if *inputFile != "-" {
		f, err := os.Open(*inputFile)
		if err != nil {
			log.Fatalf("open input: %v", err)
		}
		defer f.Close()
		in = f
	}

	n, err := replay(in, *dataDir, *settleGap)
	if err != nil {
		log.Fatalf("replay failed: %v", err)
	}
	fmt.Printf("replayed %d fixes\n", n)
}

// replay runs every fix of the log through a fresh filter in timestamp
// order. A gap of settleGap or more between consecutive fixes triggers the
// settle path the live timer would have fired.
func replay(r io.Reader, dataDir string, settleGap time.Duration) (int, error) {
	days := daystore.NewStore(filepath.Join(dataDir, "days"))
	places := place.NewStore(filepath.Join(dataDir, "places.json"))
	places.Load()

	clock := &replayClock{}
	cfg := filter.DefaultConfig()
	cfg.SettleAfter = settleGap
	f := filter.New(cfg, days, places, filter.Options{
		Clock:     clock,
		NewTimer:  func(time.Duration, func()) filter.Timer { return noopTimer{} },
		StatePath: filepath.Join(dataDir, "filterstate.json"),
	})

	var (
		count int
		last  time.Time
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var fix filter.Fix
		if err := json.Unmarshal(line, &fix); err != nil {
			log.Printf("skipping bad line: %v", err)
			continue
		}

		if !last.IsZero() && fix.Timestamp.Sub(last) >= settleGap {
			clock.t = last.Add(settleGap)
			f.Settle()
		}
		clock.t = fix.Timestamp
		f.Process(fix)
		last = fix.Timestamp
		count++
	}
	if err := sc.Err(); err != nil {
		return count, err
	}

	if !last.IsZero() {
		clock.t = last.Add(settleGap)
		f.Settle()
	}
	return count, nil
}
