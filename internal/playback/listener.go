package playback

import "github.com/mrlokans/autobooks/internal/textlines"

// Listener observes a Controller. Callbacks run outside the controller's
// lock, on the goroutine that triggered them.
type Listener interface {
	LineStarted(index int, r textlines.Range)
	Progress(percent int)
	Finished()
	Error(err error)
}

// NopListener can be embedded to implement only some callbacks.
type NopListener struct{}

func (NopListener) LineStarted(int, textlines.Range) {}
func (NopListener) Progress(int)                     {}
func (NopListener) Finished()                        {}
func (NopListener) Error(error)                      {}
