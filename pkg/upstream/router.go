package upstream

import "sync/atomic"

// ProjectRouter round-robins over a fixed list of upstream project ids. The
// counter advances on every call regardless of outcome, per spec.md §4.2's
// "does not starve the others" rule; a lost update under concurrent access
// is acceptable, per spec.md §5, so a plain atomic counter suffices without
// a mutex.
type ProjectRouter struct {
	projects []string
	idx      atomic.Uint64
}

// NewProjectRouter builds a ProjectRouter over projects, in order.
func NewProjectRouter(projects []string) *ProjectRouter {
	return &ProjectRouter{projects: projects}
}

// Next returns the next project id and advances the counter. It returns
// false if no projects are configured.
func (p *ProjectRouter) Next() (string, bool) {
	if len(p.projects) == 0 {
		return "", false
	}
	n := p.idx.Add(1) - 1
	return p.projects[n%uint64(len(p.projects))], true
}
