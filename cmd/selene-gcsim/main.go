// Package main provides selene-gcsim, a synthetic workload driver for
// the Selene collector. It churns object graphs through a live heap and
// reports pacing behavior, so collector tuning can be evaluated without
// embedding the runtime anywhere.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"

	"github.com/orizon-lang/selene/internal/alloc"
	"github.com/orizon-lang/selene/internal/gc"
)

func main() {
	var (
		rounds     = flag.Int("rounds", 100, "workload rounds to run")
		objects    = flag.Int("objects", 1000, "objects allocated per round")
		liveShare  = flag.Int("live", 20, "percent of each round kept reachable")
		gen        = flag.Bool("gen", false, "run the collector in generational mode")
		limit      = flag.Int64("limit", 0, "heap byte budget (0 = unlimited)")
		httpAddr   = flag.String("http", "", "serve debug endpoints on this address")
		tuningFile = flag.String("tuning", "", "tuning file to apply and watch")
		seed       = flag.Int64("seed", 1, "workload random seed")
		jsonOut    = flag.Bool("json", false, "print the final report as JSON")
	)
	flag.Parse()

	raw := alloc.NewCounting(alloc.NewSystem())
	var backend alloc.Allocator = raw
	if *limit > 0 {
		backend = alloc.NewLimit(raw, uintptr(*limit))
	}

	var opts []gc.Option
	if *gen {
		opts = append(opts, gc.WithGenerational())
	}
	ctx, err := gc.NewContext(backend, gc.Hooks{
		ReportError: func(err error) { log.Printf("finalizer error: %v", err) },
	}, opts...)
	if err != nil {
		log.Fatalf("create heap: %v", err)
	}

	if *tuningFile != "" {
		tw, err := gc.WatchTuning(ctx, *tuningFile)
		if err != nil {
			log.Fatalf("watch tuning file: %v", err)
		}
		defer tw.Close()
		go func() {
			for err := range tw.Errors() {
				log.Printf("tuning reload: %v", err)
			}
		}()
	}
	if *httpAddr != "" {
		shutdown, err := gc.StartDebugHTTP(ctx, *httpAddr)
		if err != nil {
			log.Fatalf("debug server: %v", err)
		}
		defer shutdown(context.Background())
		log.Printf("debug endpoints on http://%s/gc/stats", *httpAddr)
	}

	if err := churn(ctx, *rounds, *objects, *liveShare, *seed); err != nil {
		log.Fatalf("workload: %v", err)
	}

	report(ctx, raw, *jsonOut)
}

// churn allocates linked clumps of objects every round, keeps a random
// fraction reachable through the registry and drops the rest, cycles
// included.
func churn(ctx *gc.Context, rounds, objects, liveShare int, seed int64) error {
	rng := rand.New(rand.NewSource(seed))
	reg := ctx.Registry()
	slot := 0

	for r := 0; r < rounds; r++ {
		var prev *gc.Table
		for i := 0; i < objects; i++ {
			t, err := ctx.NewTable()
			if err != nil {
				return fmt.Errorf("round %d: %w", r, err)
			}
			if prev != nil {
				t.Set(ctx, gc.Number(1), gc.Obj(prev))
				if rng.Intn(8) == 0 {
					prev.Set(ctx, gc.Number(2), gc.Obj(t)) // close a cycle
				}
			}
			if rng.Intn(100) < liveShare {
				slot++
				reg.Set(ctx, gc.Number(float64(slot)), gc.Obj(t))
			}
			if rng.Intn(50) == 0 {
				s, err := ctx.NewString(fmt.Sprintf("round-%d-%d", r, i))
				if err != nil {
					return fmt.Errorf("round %d: %w", r, err)
				}
				t.Set(ctx, gc.Number(3), gc.Obj(s))
			}
			prev = t
		}
		// Retire a slice of the registry so live data turns over too.
		for slot > objects && rng.Intn(4) == 0 {
			reg.Set(ctx, gc.Number(float64(slot)), gc.Nil())
			slot--
		}
		if r%10 == 9 {
			st := ctx.MemoryStats()
			log.Printf("round %3d: live=%dB debt=%d cycles=%d minors=%d freed=%d",
				r+1, st.TotalBytes, st.Debt, st.Cycles, st.MinorCycles, st.ObjectsFreed)
		}
	}
	return nil
}

func report(ctx *gc.Context, raw *alloc.CountingAllocator, jsonOut bool) {
	ctx.FullCollection()
	census := ctx.TakeCensus()
	astats := raw.Stats()

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(struct {
			Census    gc.Census   `json:"census"`
			Allocator alloc.Stats `json:"allocator"`
		}{census, astats}); err != nil {
			log.Fatalf("encode report: %v", err)
		}
		return
	}

	st := census.Stats
	fmt.Printf("collector: %d cycles, %d minor, %d objects freed (%d bytes), %d finalized\n",
		st.Cycles, st.MinorCycles, st.ObjectsFreed, st.BytesFreed, st.Finalized)
	fmt.Printf("heap:      %d objects, %d live bytes, phase %s\n",
		census.Objects, st.TotalBytes, st.Phase)
	for kind, n := range census.Kinds {
		fmt.Printf("  %-14s %d\n", kind, n)
	}
	fmt.Printf("allocator: %d allocs / %d frees, %d bytes in use, %d failures\n",
		astats.AllocCount, astats.FreeCount, astats.BytesInUse, astats.FailCount)
}
