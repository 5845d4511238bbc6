package listener

// Recorder observes storage activity. Methods may be called with the
// storage lock held and must not call back into the Storage.
type Recorder interface {
	// EventsQueued counts events appended to pollers for a category.
	EventsQueued(category string, n int)
	// EventVetoed counts events discarded by a finish function.
	EventVetoed(category string)
	// IndexChanged tracks category index membership.
	IndexChanged(category string, delta int)
	// CallbackDone counts dispatcher callback invocations.
	CallbackDone(panicked bool)
}

type nopRecorder struct{}

func (nopRecorder) EventsQueued(string, int) {}
func (nopRecorder) EventVetoed(string)       {}
func (nopRecorder) IndexChanged(string, int) {}
func (nopRecorder) CallbackDone(bool)        {}
