// Package chain implements the pointer-linked ordering of content blocks.
// Within one scope (project, company, lifecycle) every block names its
// predecessor; the block with no predecessor is the head. The store keeps
// the rows, this package reconstructs and validates the sequence.
package chain

import "errors"

var (
	ErrNoHead       = errors.New("chain has no head")
	ErrDuplicateRef = errors.New("chain has two blocks with the same predecessor")
	ErrDisconnected = errors.New("chain has unreachable blocks")
	ErrUnknownRef   = errors.New("chain references a block outside its scope")
)

// Link is the pointer structure of one block. Prev is nil for the head.
type Link struct {
	ID   string
	Prev *string
}

// Order walks the chain forward from the head and returns block ids in
// sequence. It fails if the links do not form a single simple path: no
// head, two blocks sharing a predecessor, a cycle, or an orphaned block.
func Order(links []Link) ([]string, error) {
	if len(links) == 0 {
		return nil, nil
	}

	ids := make(map[string]struct{}, len(links))
	for _, link := range links {
		ids[link.ID] = struct{}{}
	}

	// successor[p] is the id of the block whose predecessor is p; the head
	// is keyed by the empty string (ids are UUIDs, never empty).
	successor := make(map[string]string, len(links))
	for _, link := range links {
		key := ""
		if link.Prev != nil {
			key = *link.Prev
			if _, ok := ids[key]; !ok {
				return nil, ErrUnknownRef
			}
		}
		if _, taken := successor[key]; taken {
			return nil, ErrDuplicateRef
		}
		successor[key] = link.ID
	}

	head, ok := successor[""]
	if !ok {
		return nil, ErrNoHead
	}

	ordered := make([]string, 0, len(links))
	for current := head; ; {
		ordered = append(ordered, current)
		next, ok := successor[current]
		if !ok {
			break
		}
		current = next
	}
	if len(ordered) != len(links) {
		return nil, ErrDisconnected
	}
	return ordered, nil
}

// Remap deep-clones a chain: every block gets a fresh id from newID and
// every predecessor pointer is rewritten through the old-to-new mapping,
// so the clone is structurally isomorphic but fully independent. The
// source links must form a valid chain.
func Remap(links []Link, newID func() string) ([]Link, map[string]string, error) {
	if _, err := Order(links); err != nil {
		return nil, nil, err
	}

	mapping := make(map[string]string, len(links))
	for _, link := range links {
		mapping[link.ID] = newID()
	}

	clones := make([]Link, 0, len(links))
	for _, link := range links {
		clone := Link{ID: mapping[link.ID]}
		if link.Prev != nil {
			mapped := mapping[*link.Prev]
			clone.Prev = &mapped
		}
		clones = append(clones, clone)
	}
	return clones, mapping, nil
}
