package native

import (
	"github.com/wippyai/nativecall"
	"github.com/wippyai/nativecall/errors"
)

// Hash table layout. The header {count u32, head u32} points at a chain of
// entries {key u64, value u64, next u32} kept in insertion order.
const (
	HashHeaderSize = 8
	HashEntrySize  = 24
	HashEntryAlign = 8

	hashCountOff = 0
	hashHeadOff  = 4

	entryKeyOff   = 0
	entryValueOff = 8
	entryNextOff  = 16
)

// HashEntry is one key/value pair of a native hash table.
type HashEntry struct {
	Key   uint64
	Value uint64
}

// NewHashTable allocates an empty table.
func NewHashTable(s nativecall.Space) (uint32, error) {
	return AllocZeroed(s, HashHeaderSize, 4)
}

func keysEqual(mem nativecall.Memory, a, b uint64, stringKeys bool) (bool, error) {
	if a == b || !stringKeys {
		return a == b, nil
	}
	if a == 0 || b == 0 {
		return false, nil
	}
	sa, err := ReadCString(mem, uint32(a))
	if err != nil {
		return false, err
	}
	sb, err := ReadCString(mem, uint32(b))
	if err != nil {
		return false, err
	}
	return sa == sb, nil
}

func hashEntries(mem nativecall.Memory, table uint32) ([]uint32, error) {
	head, err := mem.ReadU32(table + hashHeadOff)
	if err != nil {
		return nil, err
	}
	var entries []uint32
	for e := head; e != 0; {
		if len(entries) >= MaxListLength {
			return nil, errors.Internal(errors.PhaseNative, nil, "hash chain too long or cyclic")
		}
		entries = append(entries, e)
		next, err := mem.ReadU32(e + entryNextOff)
		if err != nil {
			return nil, err
		}
		e = next
	}
	return entries, nil
}

// HashInsert adds or replaces key. String keys compare by content. It
// returns the replaced value, if any.
func HashInsert(s nativecall.Space, table uint32, key, value uint64, stringKeys bool) (uint64, bool, error) {
	entries, err := hashEntries(s, table)
	if err != nil {
		return 0, false, err
	}
	for _, e := range entries {
		k, err := s.ReadU64(e + entryKeyOff)
		if err != nil {
			return 0, false, err
		}
		eq, err := keysEqual(s, k, key, stringKeys)
		if err != nil {
			return 0, false, err
		}
		if eq {
			old, err := s.ReadU64(e + entryValueOff)
			if err != nil {
				return 0, false, err
			}
			return old, true, s.WriteU64(e+entryValueOff, value)
		}
	}

	entry, err := AllocZeroed(s, HashEntrySize, HashEntryAlign)
	if err != nil {
		return 0, false, err
	}
	if err := s.WriteU64(entry+entryKeyOff, key); err != nil {
		s.Free(entry, HashEntrySize, HashEntryAlign)
		return 0, false, err
	}
	if err := s.WriteU64(entry+entryValueOff, value); err != nil {
		s.Free(entry, HashEntrySize, HashEntryAlign)
		return 0, false, err
	}
	if n := len(entries); n == 0 {
		err = s.WriteU32(table+hashHeadOff, entry)
	} else {
		err = s.WriteU32(entries[n-1]+entryNextOff, entry)
	}
	if err != nil {
		s.Free(entry, HashEntrySize, HashEntryAlign)
		return 0, false, err
	}
	return 0, false, s.WriteU32(table+hashCountOff, uint32(len(entries)+1))
}

// HashLookup finds key in the table.
func HashLookup(mem nativecall.Memory, table uint32, key uint64, stringKeys bool) (uint64, bool, error) {
	entries, err := hashEntries(mem, table)
	if err != nil {
		return 0, false, err
	}
	for _, e := range entries {
		k, err := mem.ReadU64(e + entryKeyOff)
		if err != nil {
			return 0, false, err
		}
		eq, err := keysEqual(mem, k, key, stringKeys)
		if err != nil {
			return 0, false, err
		}
		if eq {
			v, err := mem.ReadU64(e + entryValueOff)
			return v, err == nil, err
		}
	}
	return 0, false, nil
}

// HashEntries returns the pairs in insertion order.
func HashEntries(mem nativecall.Memory, table uint32) ([]HashEntry, error) {
	entries, err := hashEntries(mem, table)
	if err != nil {
		return nil, err
	}
	out := make([]HashEntry, len(entries))
	for i, e := range entries {
		k, err := mem.ReadU64(e + entryKeyOff)
		if err != nil {
			return nil, err
		}
		v, err := mem.ReadU64(e + entryValueOff)
		if err != nil {
			return nil, err
		}
		out[i] = HashEntry{Key: k, Value: v}
	}
	return out, nil
}

// HashSize returns the entry count.
func HashSize(mem nativecall.Memory, table uint32) (uint32, error) {
	return mem.ReadU32(table + hashCountOff)
}

// FreeHashTable releases the header and entries, not the keys or values.
func FreeHashTable(s nativecall.Space, table uint32) {
	if table == 0 {
		return
	}
	if entries, err := hashEntries(s, table); err == nil {
		for _, e := range entries {
			s.Free(e, HashEntrySize, HashEntryAlign)
		}
	}
	s.Free(table, HashHeaderSize, 4)
}
