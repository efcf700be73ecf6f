package pipeline

import "time"

// Stats holds pipeline counters.
type Stats struct {
	Compiles    uint64 // compiles started
	Failures    uint64 // compiles, loads or constructions that failed
	Loads       uint64 // units loaded
	Constructs  uint64 // instances constructed
	CompileTime time.Duration
}

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Compiles:    p.compiles.Load(),
		Failures:    p.failures.Load(),
		Loads:       p.loads.Load(),
		Constructs:  p.constructs.Load(),
		CompileTime: time.Duration(p.compileNanos.Load()),
	}
}
