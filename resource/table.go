package resource

import (
	"errors"
	"sync"
)

var ErrClosed = errors.New("resource table closed")

type entry struct {
	value   any
	borrows uint32
	doomed  bool
	valid   bool
}

// Table maps handles to host values. Handles are reused after their entry
// is dropped. An entry that is borrowed is never dropped: a Remove while
// borrows are outstanding is deferred to the last Return.
type Table struct {
	entries   []entry
	freeList  []Handle
	observers []Observer
	mu        sync.Mutex
	obsMu     sync.RWMutex
	closed    bool
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		entries:  make([]entry, 0, 64),
		freeList: make([]Handle, 0, 16),
	}
}

func (t *Table) lookup(h Handle) *entry {
	if h == 0 || int(h) > len(t.entries) {
		return nil
	}
	e := &t.entries[h-1]
	if !e.valid {
		return nil
	}
	return e
}

// Insert stores value and returns its handle.
func (t *Table) Insert(value any) (Handle, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0, ErrClosed
	}
	e := entry{value: value, valid: true}
	var h Handle
	if n := len(t.freeList); n > 0 {
		h = t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		t.entries[h-1] = e
	} else {
		t.entries = append(t.entries, e)
		h = Handle(len(t.entries))
	}
	t.mu.Unlock()

	t.notify(Event{Type: EventCreated, Handle: h, Value: value})
	return h, nil
}

// Get retrieves a value by handle. Entries awaiting a deferred drop are
// still visible.
func (t *Table) Get(h Handle) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.lookup(h)
	if e == nil {
		return nil, false
	}
	return e.value, true
}

// Remove drops the entry for h. It returns the value and whether the drop
// happened now; a borrowed entry is marked and dropped on its last Return.
func (t *Table) Remove(h Handle) (any, bool) {
	v, now, _ := t.remove(h, nil)
	return v, now
}

// RemoveValue is Remove restricted to an entry that still holds value.
// found is false, and the table untouched, when h was reused for another
// value. An entry already awaiting a deferred drop counts as found. value
// must be comparable.
func (t *Table) RemoveValue(h Handle, value any) (found, now bool) {
	_, now, found = t.remove(h, func(cur any) bool { return cur == value })
	return found, now
}

func (t *Table) remove(h Handle, match func(any) bool) (any, bool, bool) {
	t.mu.Lock()
	e := t.lookup(h)
	if e == nil || (match != nil && !match(e.value)) {
		t.mu.Unlock()
		return nil, false, false
	}
	if e.doomed {
		t.mu.Unlock()
		return nil, false, true
	}
	if e.borrows > 0 {
		e.doomed = true
		value := e.value
		t.mu.Unlock()
		t.notify(Event{Type: EventDeferred, Handle: h, Value: value})
		return value, false, true
	}
	value := t.release(h, e)
	t.mu.Unlock()

	t.drop(h, value)
	return value, true, true
}

// release clears e and returns its value; t.mu must be held.
func (t *Table) release(h Handle, e *entry) any {
	value := e.value
	*e = entry{}
	t.freeList = append(t.freeList, h)
	return value
}

func (t *Table) drop(h Handle, value any) {
	if d, ok := value.(Dropper); ok {
		d.Drop()
	}
	t.notify(Event{Type: EventDropped, Handle: h, Value: value})
}

// Borrow pins the entry for h until the matching Return.
func (t *Table) Borrow(h Handle) bool {
	t.mu.Lock()
	e := t.lookup(h)
	if e == nil {
		t.mu.Unlock()
		return false
	}
	e.borrows++
	value := e.value
	t.mu.Unlock()

	t.notify(Event{Type: EventBorrowed, Handle: h, Value: value})
	return true
}

// Return releases one borrow of h, completing a deferred drop when it was
// the last one.
func (t *Table) Return(h Handle) bool {
	t.mu.Lock()
	e := t.lookup(h)
	if e == nil || e.borrows == 0 {
		t.mu.Unlock()
		return false
	}
	e.borrows--
	value := e.value
	dropNow := e.borrows == 0 && e.doomed
	if dropNow {
		t.release(h, e)
	}
	t.mu.Unlock()

	t.notify(Event{Type: EventReturned, Handle: h, Value: value})
	if dropNow {
		t.drop(h, value)
	}
	return true
}

// Len returns the number of live entries, including deferred drops.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	count := 0
	for _, e := range t.entries {
		if e.valid {
			count++
		}
	}
	return count
}

// Each iterates over live entries until fn returns false. fn must not call
// back into the table.
func (t *Table) Each(fn func(Handle, any) bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, e := range t.entries {
		if e.valid && !fn(Handle(i+1), e.value) {
			return
		}
	}
}

// Close drops every entry, borrowed or not, and rejects further inserts.
func (t *Table) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	type dropped struct {
		value any
		h     Handle
	}
	var all []dropped
	for i := range t.entries {
		if t.entries[i].valid {
			all = append(all, dropped{h: Handle(i + 1), value: t.entries[i].value})
		}
	}
	t.entries = nil
	t.freeList = nil
	t.mu.Unlock()

	for _, d := range all {
		t.drop(d.h, d.value)
	}
	return nil
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer added with Subscribe.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}
