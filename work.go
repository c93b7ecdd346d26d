package proactor

import (
	"sync"
	"time"
)

// PermanentCompletionHandler marks a work item that never expires: it is
// invoked on every poll pass until removed explicitly. Any other value is
// a delay after which the item fires once and is discarded.
const PermanentCompletionHandler = time.Duration(-1)

type Work func()

type workItem struct {
	fn          Work
	submittedAt time.Time
	expiry      time.Duration
}

func (w *workItem) due(now time.Time) bool {
	return now.Sub(w.submittedAt) >= w.expiry
}

// workTable holds scheduled work in submission order: one FIFO list of
// temporary items and one of permanent items. Removal operates strictly
// on the front of each list.
type workTable struct {
	lock      *sync.Mutex
	scheduled []*workItem
	permanent []*workItem
}

func newWorkTable() *workTable {
	return &workTable{lock: &sync.Mutex{}}
}

func (wt *workTable) add(fn Work, expiry time.Duration) {
	wt.lock.Lock()
	defer wt.lock.Unlock()
	item := &workItem{fn: fn, submittedAt: time.Now(), expiry: expiry}
	if expiry == PermanentCompletionHandler {
		wt.permanent = append(wt.permanent, item)
	} else {
		wt.scheduled = append(wt.scheduled, item)
	}
}

// runDue invokes permanent items and expired temporary items, FIFO by
// submission. Expired temporary items are removed after their single
// invocation. Functions run outside the table lock so they may submit
// further work. Returns the number of invocations; with handleOne set,
// at most one function is run.
func (wt *workTable) runDue(handleOne bool) int {
	now := time.Now()
	var due []*workItem
	wt.lock.Lock()
	for _, item := range wt.permanent {
		due = append(due, item)
		if handleOne && len(due) == 1 {
			break
		}
	}
	if !handleOne || len(due) == 0 {
		kept := wt.scheduled[:0]
		for _, item := range wt.scheduled {
			if item.due(now) && (!handleOne || len(due) == 0) {
				due = append(due, item)
			} else {
				kept = append(kept, item)
			}
		}
		wt.scheduled = kept
	}
	wt.lock.Unlock()
	for _, item := range due {
		item.fn()
	}
	return len(due)
}

// hasDue reports whether a temporary item's deadline already passed, so
// the wait can return immediately instead of sleeping out the timeout.
// Permanent items do not count: they ride the normal pass cadence,
// otherwise they would spin the loop hot.
func (wt *workTable) hasDue() bool {
	now := time.Now()
	wt.lock.Lock()
	defer wt.lock.Unlock()
	for _, item := range wt.scheduled {
		if item.due(now) {
			return true
		}
	}
	return false
}

func (wt *workTable) scheduledCount() int {
	wt.lock.Lock()
	defer wt.lock.Unlock()
	return len(wt.scheduled)
}

func (wt *workTable) permanentCount() int {
	wt.lock.Lock()
	defer wt.lock.Unlock()
	return len(wt.permanent)
}

// removeScheduled removes count items from the front of the temporary
// list in submission order; count < 0 removes all. Returns the number of
// removed items.
func (wt *workTable) removeScheduled(count int) int {
	wt.lock.Lock()
	defer wt.lock.Unlock()
	removed := trimFront(&wt.scheduled, count)
	return removed
}

func (wt *workTable) removePermanent(count int) int {
	wt.lock.Lock()
	defer wt.lock.Unlock()
	removed := trimFront(&wt.permanent, count)
	return removed
}

func (wt *workTable) removeAll() {
	wt.lock.Lock()
	defer wt.lock.Unlock()
	wt.scheduled = nil
	wt.permanent = nil
}

func trimFront(items *[]*workItem, count int) int {
	if count < 0 || count > len(*items) {
		count = len(*items)
	}
	*items = (*items)[count:]
	return count
}
