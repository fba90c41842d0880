package native

import (
	"github.com/wippyai/nativecall"
	"github.com/wippyai/nativecall/errors"
)

// List node layout, shared by GList and GSList:
//
//	{data u64, next u32, prev u32}
//
// GSList nodes leave prev zero.
const (
	ListNodeSize  = 16
	ListNodeAlign = 8

	listDataOff = 0
	listNextOff = 8
	listPrevOff = 12
)

// MaxListLength bounds walks over native linked structures.
const MaxListLength = 1 << 27

// BuildList allocates one node per element, in order, and returns the head.
// On failure every node allocated so far is released.
func BuildList(s nativecall.Space, data []uint64, doubly bool) (uint32, error) {
	var head, prev uint32
	for _, d := range data {
		node, err := AllocZeroed(s, ListNodeSize, ListNodeAlign)
		if err != nil {
			FreeListNodes(s, head)
			return 0, err
		}
		if err := s.WriteU64(node+listDataOff, d); err != nil {
			s.Free(node, ListNodeSize, ListNodeAlign)
			FreeListNodes(s, head)
			return 0, err
		}
		if doubly {
			if err := s.WriteU32(node+listPrevOff, prev); err != nil {
				s.Free(node, ListNodeSize, ListNodeAlign)
				FreeListNodes(s, head)
				return 0, err
			}
		}
		if prev == 0 {
			head = node
		} else if err := s.WriteU32(prev+listNextOff, node); err != nil {
			s.Free(node, ListNodeSize, ListNodeAlign)
			FreeListNodes(s, head)
			return 0, err
		}
		prev = node
	}
	return head, nil
}

// ListNodes returns the node addresses reachable from head.
func ListNodes(mem nativecall.Memory, head uint32) ([]uint32, error) {
	var nodes []uint32
	for node := head; node != 0; {
		if len(nodes) >= MaxListLength {
			return nil, errors.Internal(errors.PhaseNative, nil, "list too long or cyclic")
		}
		nodes = append(nodes, node)
		next, err := mem.ReadU32(node + listNextOff)
		if err != nil {
			return nil, err
		}
		node = next
	}
	return nodes, nil
}

// ListValues returns the data words of the list at head.
func ListValues(mem nativecall.Memory, head uint32) ([]uint64, error) {
	nodes, err := ListNodes(mem, head)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, len(nodes))
	for i, node := range nodes {
		v, err := mem.ReadU64(node + listDataOff)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// FreeListNodes releases the nodes of the list at head, not their data.
func FreeListNodes(s nativecall.Space, head uint32) {
	nodes, err := ListNodes(s, head)
	if err != nil {
		return
	}
	for _, node := range nodes {
		s.Free(node, ListNodeSize, ListNodeAlign)
	}
}
