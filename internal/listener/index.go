package listener

import (
	"iter"
	"maps"

	"github.com/btouchard/tablecast/internal/event"
	"github.com/btouchard/tablecast/internal/handle"
)

type category int

const (
	categoryConnection category = iota
	categoryTopic
	categoryValue
	categoryLog
	numCategories
)

// The log category also covers the per-level bits, so a listener that only
// asked for some severities is still reached by log broadcasts.
var categoryMasks = [numCategories]event.Kind{
	categoryConnection: event.Connection,
	categoryTopic:      event.Topic,
	categoryValue:      event.ValueAll,
	categoryLog:        event.LogMessage | event.LogLevels,
}

var categoryNames = [numCategories]string{
	categoryConnection: "connection",
	categoryTopic:      "topic",
	categoryValue:      "value",
	categoryLog:        "log",
}

func (c category) String() string { return categoryNames[c] }

// categoryIndex holds, per category, the set of listeners whose mask covers
// it. It stores handles only; the listener table owns the listeners.
type categoryIndex struct {
	sets     [numCategories]map[handle.Handle]struct{}
	recorder Recorder
}

func newCategoryIndex(recorder Recorder) *categoryIndex {
	ci := &categoryIndex{recorder: recorder}
	for c := range ci.sets {
		ci.sets[c] = make(map[handle.Handle]struct{})
	}
	return ci
}

// add inserts h into every category that mask touches.
func (ci *categoryIndex) add(h handle.Handle, mask event.Kind) {
	for c := range numCategories {
		if !mask.Has(categoryMasks[c]) {
			continue
		}
		if _, ok := ci.sets[c][h]; ok {
			continue
		}
		ci.sets[c][h] = struct{}{}
		ci.recorder.IndexChanged(c.String(), 1)
	}
}

// remove drops h from every category that mask touches.
func (ci *categoryIndex) remove(h handle.Handle, mask event.Kind) {
	for c := range numCategories {
		if !mask.Has(categoryMasks[c]) {
			continue
		}
		if _, ok := ci.sets[c][h]; !ok {
			continue
		}
		delete(ci.sets[c], h)
		ci.recorder.IndexChanged(c.String(), -1)
	}
}

func (ci *categoryIndex) members(c category) iter.Seq[handle.Handle] {
	return maps.Keys(ci.sets[c])
}

func (ci *categoryIndex) contains(c category, h handle.Handle) bool {
	_, ok := ci.sets[c][h]
	return ok
}

func (ci *categoryIndex) size(c category) int { return len(ci.sets[c]) }

// Categories returns the names of the categories mask touches, in a
// fixed order: connection, topic, value, log.
func Categories(mask event.Kind) []string {
	var names []string
	for c := range numCategories {
		if mask.Has(categoryMasks[c]) {
			names = append(names, c.String())
		}
	}
	return names
}
