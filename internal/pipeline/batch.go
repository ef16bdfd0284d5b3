package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// Job is one input/output pair of a batch.
type Job struct {
	Input  string
	Output string
}

// NewJobs maps inputs to outputs in dir. Inputs sharing a base name get a
// numeric suffix (x.jpg, x_2.jpg) so no two jobs write the same file.
func NewJobs(inputs []string, dir string) []Job {
	bases := make([]string, len(inputs))
	for i, in := range inputs {
		bases[i] = filepath.Base(in)
	}
	jobs := make([]Job, len(inputs))
	for i, name := range uniqueNames(bases) {
		jobs[i] = Job{Input: inputs[i], Output: filepath.Join(dir, name)}
	}
	return jobs
}

// uniqueNames returns names with later duplicates renamed stem_N.ext. A
// generated name never takes a name that appears in the input.
func uniqueNames(names []string) []string {
	taken := make(map[string]bool, len(names))
	for _, n := range names {
		taken[n] = true
	}
	used := make(map[string]bool, len(names))
	out := make([]string, len(names))
	for i, n := range names {
		name := n
		if used[name] {
			ext := filepath.Ext(n)
			stem := strings.TrimSuffix(n, ext)
			for k := 2; ; k++ {
				name = fmt.Sprintf("%s_%d%s", stem, k, ext)
				if !used[name] && !taken[name] {
					break
				}
			}
		}
		used[name] = true
		out[i] = name
	}
	return out
}

// JobResult pairs a job with its outcome.
type JobResult struct {
	Job
	Result *Result
	Err    error
}

// Batch processes jobs on a pool of workers (runtime.NumCPU() when
// workers <= 0). Results are returned in job order. Each job gets its own
// timeout. With a debug directory configured, each job dumps into a
// sub-directory named after its input, suffixed when names repeat. A job
// whose output is already claimed by an earlier job fails without running.
func (p *Processor) Batch(ctx context.Context, jobs []Job, workers int) []JobResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, len(jobs))

	results := make([]JobResult, len(jobs))
	indices := make(chan int)

	stems := make([]string, len(jobs))
	for i, job := range jobs {
		stems[i] = jobName(job.Input)
	}
	debugNames := uniqueNames(stems)
	owner := make(map[string]int, len(jobs))
	skip := make([]bool, len(jobs))
	for i, job := range jobs {
		key := filepath.Clean(job.Output)
		if first, ok := owner[key]; ok {
			skip[i] = true
			results[i] = JobResult{Job: job, Err: fmt.Errorf("%w: output %s is already written by %s", ErrIOFailure, job.Output, jobs[first].Input)}
			continue
		}
		owner[key] = i
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				job := jobs[i]
				req := Request{Input: job.Input, Output: job.Output}
				if p.cfg.DebugDir != "" {
					req.DebugDir = filepath.Join(p.cfg.DebugDir, debugNames[i])
				}
				res, err := p.Run(ctx, req)
				results[i] = JobResult{Job: job, Result: res, Err: err}
			}
		}()
	}

	for i := range jobs {
		if skip[i] {
			continue
		}
		if ctx.Err() != nil {
			results[i] = JobResult{Job: jobs[i], Err: checkpoint(ctx)}
			continue
		}
		indices <- i
	}
	close(indices)
	wg.Wait()
	return results
}

func jobName(input string) string {
	base := filepath.Base(input)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Summary aggregates a batch.
type Summary struct {
	Total          int            `json:"total"`
	Succeeded      int            `json:"succeeded"`
	Failed         int            `json:"failed"`
	FailureReasons map[string]int `json:"failure_reasons,omitempty"`
	Strategies     map[string]int `json:"strategies,omitempty"`
	MeanIntegrity  float64        `json:"mean_integridad"`
	MeanLuminosity float64        `json:"mean_luminosidad"`
	MeanUniformity float64        `json:"mean_uniformidad"`
}

// Summarize counts outcomes and averages the metrics of successful jobs.
func Summarize(results []JobResult) Summary {
	s := Summary{
		Total:          len(results),
		FailureReasons: map[string]int{},
		Strategies:     map[string]int{},
	}
	var integrity, luminosity, uniformity []float64
	for _, r := range results {
		if r.Err != nil || r.Result == nil {
			s.Failed++
			s.FailureReasons[Reason(r.Err)]++
			continue
		}
		s.Succeeded++
		s.Strategies[r.Result.Strategy]++
		integrity = append(integrity, r.Result.Metrics.Integrity)
		luminosity = append(luminosity, r.Result.Metrics.Luminosity)
		uniformity = append(uniformity, r.Result.Metrics.Uniformity)
	}
	if s.Succeeded > 0 {
		s.MeanIntegrity = stat.Mean(integrity, nil)
		s.MeanLuminosity = stat.Mean(luminosity, nil)
		s.MeanUniformity = stat.Mean(uniformity, nil)
	}
	return s
}
