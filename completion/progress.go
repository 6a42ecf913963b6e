package completion

import "sync"

// ProgressHandle is a visible busy indicator owned by a session.
// Finish must be idempotent and safe to call from any goroutine.
type ProgressHandle interface {
	Finish()
}

type noProgress struct{}

func (noProgress) Finish() {}

// NoProgress returns the handle of a session that shows no indicator.
func NoProgress() ProgressHandle {
	return noProgress{}
}

// Progress is a ProgressHandle that runs a release function at most once.
type Progress struct {
	once     sync.Once
	release  func()
	finished chan struct{}
}

// NewProgress returns a handle that calls release on the first Finish.
// A nil release is allowed.
func NewProgress(release func()) *Progress {
	return &Progress{release: release, finished: make(chan struct{})}
}

func (p *Progress) Finish() {
	p.once.Do(func() {
		defer close(p.finished)
		if p.release != nil {
			p.release()
		}
	})
}

// Finished is closed once Finish has run.
func (p *Progress) Finished() <-chan struct{} {
	return p.finished
}
