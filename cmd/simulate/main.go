package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lastclick/tntrun/internal/game"
	"github.com/lastclick/tntrun/internal/round"
)

type runResult struct {
	seed         int64
	bots         int
	finishReason string
	totalTicks   uint64
	rounds       []game.SimRound
	err          error
}

func main() {
	var (
		runs     = flag.Int("runs", 200, "number of independent simulations")
		minBots  = flag.Int("min-bots", 2, "fewest bots in a run")
		maxBots  = flag.Int("max-bots", 12, "most bots in a run")
		rounds   = flag.Int("rounds", 3, "rounds per run")
		maxTicks = flag.Int("max-ticks", 40000, "tick cap per run")
		seed     = flag.Int64("seed", 42, "base seed")
		speed    = flag.Float64("speed", 0.2, "bot speed in blocks per tick")
		workers  = flag.Int("workers", runtime.GOMAXPROCS(0), "parallel workers")
	)
	flag.Parse()

	if *minBots < 1 || *maxBots < *minBots || *runs < 1 || *workers < 1 {
		fmt.Fprintln(os.Stderr, "invalid flags")
		os.Exit(2)
	}

	start := time.Now()
	results := make([]runResult, *runs)

	var progress atomic.Int64
	var wg sync.WaitGroup
	jobs := make(chan int)

	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				s := *seed + int64(i)*7919
				bots := *minBots + i%(*maxBots-*minBots+1)
				res, err := game.RunSimulation(game.SimConfig{
					Bots:       bots,
					Seed:       s,
					Rounds:     *rounds,
					MaxTicks:   *maxTicks,
					Speed:      *speed,
					SilentMode: true,
				})
				results[i] = runResult{
					seed:         s,
					bots:         bots,
					finishReason: res.FinishReason,
					totalTicks:   res.TotalTicks,
					rounds:       res.Rounds,
					err:          err,
				}
				if n := progress.Add(1); *runs >= 10 && n%int64(*runs/10) == 0 {
					fmt.Printf("  ... %d/%d runs (%.0f%%)\n", n, *runs, float64(n)/float64(*runs)*100)
				}
			}
		}()
	}
	for i := 0; i < *runs; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	printReport(results, *workers, time.Since(start))
}

func printReport(results []runResult, workers int, elapsed time.Duration) {
	tps := float64(round.DefaultConfig().TicksPerSecond)
	tickToSec := func(t float64) float64 { return t / tps }

	var (
		roundTicks, tiles, tilesPerPlayer []float64
		wins, draws, totalRounds          int
		failed                            int
		finishReasons                     = make(map[string]int)
		winRateByBots                     = make(map[int][2]int)
	)

	for _, r := range results {
		if r.err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "  seed %d: %v\n", r.seed, r.err)
			continue
		}
		finishReasons[r.finishReason]++
		for _, sr := range r.rounds {
			totalRounds++
			roundTicks = append(roundTicks, float64(sr.EndedAt-sr.StartedAt))
			tiles = append(tiles, float64(sr.TilesDropped))
			if sr.Players > 0 {
				tilesPerPlayer = append(tilesPerPlayer, float64(sr.TilesDropped)/float64(sr.Players))
			}
			byBots := winRateByBots[sr.Players]
			byBots[1]++
			if sr.Winner != 0 {
				wins++
				byBots[0]++
			} else {
				draws++
			}
			winRateByBots[sr.Players] = byBots
		}
	}

	sort.Float64s(roundTicks)
	sort.Float64s(tiles)
	sort.Float64s(tilesPerPlayer)

	fmt.Println()
	fmt.Println("─── ARENA SIMULATION REPORT ───────────────────────────────────")
	fmt.Printf("  Runs: %d  |  Rounds: %d  |  Failed: %d\n", len(results), totalRounds, failed)
	fmt.Printf("  Elapsed: %v  |  Workers: %d\n", elapsed.Round(time.Millisecond), workers)

	fmt.Println()
	fmt.Println("─── OUTCOMES ──────────────────────────────────────────────────")
	if totalRounds > 0 {
		fmt.Printf("  Wins:                          %8d  (%5.1f%%)\n", wins, float64(wins)/float64(totalRounds)*100)
		fmt.Printf("  Draws:                         %8d  (%5.1f%%)\n", draws, float64(draws)/float64(totalRounds)*100)
	}
	for reason, count := range finishReasons {
		fmt.Printf("  finish %-20s %8d\n", reason, count)
	}

	fmt.Println()
	fmt.Println("─── ROUND LENGTH ──────────────────────────────────────────────")
	fmt.Printf("  Mean round length:             %7.1fs\n", tickToSec(mean(roundTicks)))
	fmt.Printf("  Median round length:           %7.1fs\n", tickToSec(percentile(roundTicks, 50)))
	fmt.Printf("  10th pctl round length:        %7.1fs\n", tickToSec(percentile(roundTicks, 10)))
	fmt.Printf("  90th pctl round length:        %7.1fs\n", tickToSec(percentile(roundTicks, 90)))

	fmt.Println()
	fmt.Println("─── FLOOR DECAY ───────────────────────────────────────────────")
	fmt.Printf("  Mean tiles dropped/round:      %8.1f\n", mean(tiles))
	fmt.Printf("  90th pctl tiles dropped:       %8.1f\n", percentile(tiles, 90))
	fmt.Printf("  Mean tiles dropped/player:     %8.1f\n", mean(tilesPerPlayer))

	fmt.Println()
	fmt.Println("─── WIN RATE BY ROSTER SIZE ───────────────────────────────────")
	sizes := make([]int, 0, len(winRateByBots))
	for n := range winRateByBots {
		sizes = append(sizes, n)
	}
	sort.Ints(sizes)
	for _, n := range sizes {
		c := winRateByBots[n]
		fmt.Printf("  %3d players  wins: %5d / %5d  (%5.1f%%)\n", n, c[0], c[1], float64(c[0])/float64(c[1])*100)
	}

	fmt.Println()
	fmt.Println("─── DIAGNOSIS ─────────────────────────────────────────────────")
	avg := tickToSec(mean(roundTicks))
	switch {
	case totalRounds == 0:
		fmt.Println("  !! NO ROUNDS FINISHED — check bot count and tick cap")
	case avg < 10:
		fmt.Println("  !! AVG ROUND < 10s — floor decays too fast")
	case avg > 120:
		fmt.Println("  ~~ AVG ROUND > 2min — consider a shorter fall delay")
	default:
		fmt.Printf("  OK AVG ROUND %.1fs\n", avg)
	}
	if totalRounds > 0 && float64(draws)/float64(totalRounds) > 0.25 {
		fmt.Println("  ~~ DRAW RATE > 25% — last players fall on the same tick too often")
	}
	fmt.Println()
}

func mean(s []float64) float64 {
	if len(s) == 0 {
		return 0
	}
	return sum(s) / float64(len(s))
}

func sum(s []float64) float64 {
	t := 0.0
	for _, v := range s {
		t += v
	}
	return t
}

func percentile(sorted []float64, pct float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * pct / 100)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
