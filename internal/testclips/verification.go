package testclips

import (
	"context"
	"fmt"
	"log"
	"sort"
)

// verifyResults checks the invariants every finished job must satisfy.
func verifyResults(_ context.Context, config *Config, jobs map[string]JobResult, stats *Stats) error {
	log.Println("🔍 Verifying results...")

	if len(jobs) == 0 {
		return fmt.Errorf("no finished jobs to verify")
	}

	var problems []string
	for id, job := range jobs {
		if job.Status != "done" {
			if config.Verbose {
				log.Printf("⚠️  job %s failed: %s", id, job.Error)
			}
			continue
		}
		if err := VerifyJob(job); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", id, err))
			continue
		}
		stats.ResultsVerified++
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		for _, p := range problems {
			log.Printf("❌ %s", p)
		}
		return fmt.Errorf("%d results violate invariants", len(problems))
	}

	displayTopPlayers(jobs)
	log.Println("✅ Result verification completed")
	return nil
}

// VerifyJob checks landmark ordering, score range and similarity order.
func VerifyJob(job JobResult) error {
	if job.Result == nil {
		return fmt.Errorf("done without result")
	}
	f := job.Result.Features
	if f.PeakTossIndex < 0 || f.PeakTossIndex > f.ContactIndex || f.ContactIndex > f.FollowThroughIndex {
		return fmt.Errorf("landmarks out of order: %d, %d, %d", f.PeakTossIndex, f.ContactIndex, f.FollowThroughIndex)
	}
	sims := job.Result.Similarities
	if len(sims) == 0 {
		return fmt.Errorf("no similarities")
	}
	for i, s := range sims {
		if s.Score < 0 || s.Score > 100 {
			return fmt.Errorf("score %d of %s outside [0,100]", s.Score, s.Player)
		}
		if i > 0 && s.Score > sims[i-1].Score {
			return fmt.Errorf("similarities not sorted at %d", i)
		}
	}
	return nil
}

// displayTopPlayers shows how often each player was the closest match.
func displayTopPlayers(jobs map[string]JobResult) {
	counts := make(map[string]int)
	for _, job := range jobs {
		if job.Result != nil && len(job.Result.Similarities) > 0 {
			counts[job.Result.Similarities[0].Player]++
		}
	}
	players := make([]string, 0, len(counts))
	for p := range counts {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool { return counts[players[i]] > counts[players[j]] })

	log.Println("🎾 Closest player per clip:")
	for _, p := range players {
		log.Printf("   %s: %d", p, counts[p])
	}
}
