package simulation

import (
	"sync"

	"spread-strategy-lab/internal/domain"
)

// RunBatch advances all engines through the same ordered sample batch in
// parallel, one goroutine per agent, and blocks until every agent has
// finished. Each agent sees an identical, fully ordered view of the stream.
// Engines share nothing but the read-only samples and their disjoint ledger
// entries, so agent state needs no locking. Faulted agents are skipped.
func RunBatch(engines []*Engine, batch []*domain.SpreadSample) {
	if len(batch) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, e := range engines {
		if e.State().Faulted {
			continue
		}
		wg.Add(1)
		go func(e *Engine) {
			defer wg.Done()
			e.RunBatch(batch)
		}(e)
	}
	wg.Wait()
}
