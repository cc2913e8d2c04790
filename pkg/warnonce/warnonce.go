// Package warnonce deduplicates repeated log lines within a single poll
// iteration. Keys fired in past iterations become eligible again as soon
// as the iteration counter advances, so no explicit reset is needed.
package warnonce

// Deduper tracks which keys already fired in the current iteration.
type Deduper struct {
	iteration uint64
	seen      map[string]uint64
}

// New creates an empty Deduper.
func New() *Deduper {
	return &Deduper{seen: make(map[string]uint64)}
}

// Begin advances the deduper to the given iteration number.
func (d *Deduper) Begin(iteration uint64) {
	d.iteration = iteration
}

// Allow reports whether key has not fired yet in the current iteration
// and marks it as fired.
func (d *Deduper) Allow(key string) bool {
	if last, ok := d.seen[key]; ok && last == d.iteration {
		return false
	}
	d.seen[key] = d.iteration
	return true
}
