package atom

import (
	"encoding/binary"
	"hash/fnv"
)

// Handle is an atom's stable, content-derived identity within one store.
// It is not required to be cryptographic (spec.md §4.1); FNV-1a gives a
// fast, collision-resistant-enough 64-bit digest and keeps this package
// stdlib-only (see DESIGN.md for why no corpus hashing library applies at
// this narrow point).
type Handle uint64

// hashNode derives a node's handle from (type, name).
func hashNode(t Type, name string) Handle {
	h := fnv.New64a()
	h.Write([]byte("N|"))
	h.Write([]byte(t))
	h.Write([]byte{'|'})
	h.Write([]byte(name))
	return Handle(h.Sum64())
}

// hashLink derives a link's handle from (type, ordered outgoing handles).
func hashLink(t Type, outgoing []Handle) Handle {
	h := fnv.New64a()
	h.Write([]byte("L|"))
	h.Write([]byte(t))
	h.Write([]byte{'|'})
	var buf [8]byte
	for _, o := range outgoing {
		binary.BigEndian.PutUint64(buf[:], uint64(o))
		h.Write(buf[:])
	}
	return Handle(h.Sum64())
}
