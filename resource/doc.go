// Package resource provides handle tables for host values referenced from
// native memory.
//
// Native code cannot hold a Go value directly. A Table hands out a small
// integer handle instead, which fits a pointer-sized native slot such as a
// callback's user-data parameter, and maps it back to the value when
// native code passes it in again.
//
//	table := resource.NewTable()
//	h, _ := table.Insert(value)
//	v, ok := table.Get(h)
//	table.Remove(h) // calls Drop on values implementing Dropper
//
// # Borrows
//
// A handle that is in use, for example by a callback currently running,
// is pinned with Borrow. Removing a pinned entry does not drop it; the drop
// is deferred until the last Return:
//
//	table.Borrow(h)
//	table.Remove(h) // deferred, Get still succeeds
//	table.Return(h) // dropped here
//
// # Observers
//
// Observers receive an Event for every insert, drop, borrow, return and
// deferred drop:
//
//	table.Subscribe(resource.ObserverFunc(func(e resource.Event) {
//	    log.Printf("handle %d %s", e.Handle, e.Type)
//	}))
package resource
