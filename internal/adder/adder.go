// Package adder implements set-algebra operations between databases:
// add, add_repository, subtract_repository, intersect, intersect_hash,
// subtract, subtract_hash, deduplicate and add_multiple, all streaming
// over one or more scanner.Manager producers and writing through one
// importer.Manager consumer.
package adder

import (
	"bytes"
	"container/heap"
	"fmt"

	"github.com/i5heu/blockhashdb/internal/hashdata"
	"github.com/i5heu/blockhashdb/internal/importer"
	"github.com/i5heu/blockhashdb/internal/scanner"
)

// refFH pairs a source reference with its file hash: the common
// currency the adder compares across two databases whose SIDs are
// otherwise unrelated (a SID is only dense and meaningful within the
// database that assigned it).
type refFH struct {
	fh []byte
	fo uint64
}

func resolveRefs(m *scanner.Manager, refs []hashdata.SourceRef) ([]refFH, error) {
	out := make([]refFH, 0, len(refs))
	for _, r := range refs {
		fh, found, err := m.FindFileHash(r.SID)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		out = append(out, refFH{fh: fh, fo: r.Offset})
	}
	return out, nil
}

func containsRef(set []refFH, candidate refFH) bool {
	for _, r := range set {
		if r.fo == candidate.fo && bytes.Equal(r.fh, candidate.fh) {
			return true
		}
	}
	return false
}

func copyRefs(dst *importer.Manager, h []byte, refs []refFH, meta hashdata.Meta) error {
	for _, r := range refs {
		if _, err := dst.InsertHash(h, r.fh, r.fo, meta.Entropy, meta.Label); err != nil {
			return fmt.Errorf("adder: insert hash: %w", err)
		}
	}
	return nil
}

// forEachHash walks src's hash store in ascending order, calling fn for
// every key that is still populated.
func forEachHash(src *scanner.Manager, fn func(h []byte, meta hashdata.Meta, refs []hashdata.SourceRef) error) error {
	h, found, err := src.HashBegin()
	if err != nil {
		return err
	}
	for found {
		meta, refs, hit, err := src.FindHash(h)
		if err != nil {
			return err
		}
		if hit {
			if err := fn(h, meta, refs); err != nil {
				return err
			}
		}
		next := h
		h, found, err = src.HashNext(next)
		if err != nil {
			return err
		}
	}
	return nil
}

// Add copies every hash in src into dst unchanged.
func Add(src *scanner.Manager, dst *importer.Manager) error {
	return forEachHash(src, func(h []byte, meta hashdata.Meta, refs []hashdata.SourceRef) error {
		resolved, err := resolveRefs(src, refs)
		if err != nil {
			return err
		}
		return copyRefs(dst, h, resolved, meta)
	})
}

// sourceMatchesRepository reports whether any name known for sid in src
// belongs to repository.
func sourceMatchesRepository(src *scanner.Manager, sid uint64, repository string) (bool, error) {
	names, err := src.FindSourceNames(sid)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n.Repository == repository {
			return true, nil
		}
	}
	return false, nil
}

// AddRepository copies only references whose source belongs to
// repository.
func AddRepository(src *scanner.Manager, dst *importer.Manager, repository string) error {
	return forEachHash(src, func(h []byte, meta hashdata.Meta, refs []hashdata.SourceRef) error {
		var keep []hashdata.SourceRef
		for _, r := range refs {
			match, err := sourceMatchesRepository(src, r.SID, repository)
			if err != nil {
				return err
			}
			if match {
				keep = append(keep, r)
			}
		}
		resolved, err := resolveRefs(src, keep)
		if err != nil {
			return err
		}
		return copyRefs(dst, h, resolved, meta)
	})
}

// SubtractRepository copies only references whose source does not
// belong to repository.
func SubtractRepository(src *scanner.Manager, dst *importer.Manager, repository string) error {
	return forEachHash(src, func(h []byte, meta hashdata.Meta, refs []hashdata.SourceRef) error {
		var keep []hashdata.SourceRef
		for _, r := range refs {
			match, err := sourceMatchesRepository(src, r.SID, repository)
			if err != nil {
				return err
			}
			if !match {
				keep = append(keep, r)
			}
		}
		resolved, err := resolveRefs(src, keep)
		if err != nil {
			return err
		}
		return copyRefs(dst, h, resolved, meta)
	})
}

// Intersect emits, for each H present in both a and b, only the
// (FH,FO) references that occur in both producers.
func Intersect(a, b *scanner.Manager, dst *importer.Manager) error {
	return forEachHash(a, func(h []byte, meta hashdata.Meta, refs []hashdata.SourceRef) error {
		count, err := b.FindHashCount(h)
		if err != nil {
			return err
		}
		if count == 0 {
			return nil
		}
		_, bRefs, _, err := b.FindHash(h)
		if err != nil {
			return err
		}
		bResolved, err := resolveRefs(b, bRefs)
		if err != nil {
			return err
		}
		aResolved, err := resolveRefs(a, refs)
		if err != nil {
			return err
		}
		var common []refFH
		for _, r := range aResolved {
			if containsRef(bResolved, r) {
				common = append(common, r)
			}
		}
		return copyRefs(dst, h, common, meta)
	})
}

// IntersectHash emits all of a's references for H whenever H occurs at
// all in b, without filtering individual references.
func IntersectHash(a, b *scanner.Manager, dst *importer.Manager) error {
	return forEachHash(a, func(h []byte, meta hashdata.Meta, refs []hashdata.SourceRef) error {
		count, err := b.FindHashCount(h)
		if err != nil {
			return err
		}
		if count == 0 {
			return nil
		}
		resolved, err := resolveRefs(a, refs)
		if err != nil {
			return err
		}
		return copyRefs(dst, h, resolved, meta)
	})
}

// Subtract emits (H,FH,FO) from a only when the exact triple is absent
// from b.
func Subtract(a, b *scanner.Manager, dst *importer.Manager) error {
	return forEachHash(a, func(h []byte, meta hashdata.Meta, refs []hashdata.SourceRef) error {
		_, bRefs, bFound, err := b.FindHash(h)
		if err != nil {
			return err
		}
		var bResolved []refFH
		if bFound {
			bResolved, err = resolveRefs(b, bRefs)
			if err != nil {
				return err
			}
		}
		aResolved, err := resolveRefs(a, refs)
		if err != nil {
			return err
		}
		var keep []refFH
		for _, r := range aResolved {
			if !containsRef(bResolved, r) {
				keep = append(keep, r)
			}
		}
		return copyRefs(dst, h, keep, meta)
	})
}

// SubtractHash emits all of a's references for H only when H is absent
// from b entirely.
func SubtractHash(a, b *scanner.Manager, dst *importer.Manager) error {
	return forEachHash(a, func(h []byte, meta hashdata.Meta, refs []hashdata.SourceRef) error {
		count, err := b.FindHashCount(h)
		if err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		resolved, err := resolveRefs(a, refs)
		if err != nil {
			return err
		}
		return copyRefs(dst, h, resolved, meta)
	})
}

// Deduplicate copies H into dst iff it has exactly one source
// reference: hashes seen in more than one source are, by definition,
// not unique to a single source.
func Deduplicate(src *scanner.Manager, dst *importer.Manager) error {
	return forEachHash(src, func(h []byte, meta hashdata.Meta, refs []hashdata.SourceRef) error {
		if len(refs) != 1 {
			return nil
		}
		resolved, err := resolveRefs(src, refs)
		if err != nil {
			return err
		}
		return copyRefs(dst, h, resolved, meta)
	})
}

// mergeItem is one live entry in the k-way merge heap: producer index
// producerIdx's current key, ready to be popped when smallest.
type mergeItem struct {
	producerIdx int
	hash        []byte
}

// mergeHeap orders by hash ascending, tie-broken by producer index, so
// add_multiple's k-way merge visits hashes in sorted order regardless
// of how many producers share a given hash.
type mergeHeap []mergeItem

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	c := bytes.Compare(h[i].hash, h[j].hash)
	if c != 0 {
		return c < 0
	}
	return h[i].producerIdx < h[j].producerIdx
}
func (h mergeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x any)        { *h = append(*h, x.(mergeItem)) }
func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// AddMultiple k-way merges producers into dst: an ordered heap keyed by
// each producer's current hash, popping the smallest, copying it, and
// advancing (re-inserting) that producer until exhausted.
func AddMultiple(producers []*scanner.Manager, dst *importer.Manager) error {
	h := &mergeHeap{}
	heap.Init(h)
	for i, p := range producers {
		first, found, err := p.HashBegin()
		if err != nil {
			return err
		}
		if found {
			heap.Push(h, mergeItem{producerIdx: i, hash: first})
		}
	}

	for h.Len() > 0 {
		item := heap.Pop(h).(mergeItem)
		p := producers[item.producerIdx]

		meta, refs, found, err := p.FindHash(item.hash)
		if err != nil {
			return err
		}
		if found {
			resolved, err := resolveRefs(p, refs)
			if err != nil {
				return err
			}
			if err := copyRefs(dst, item.hash, resolved, meta); err != nil {
				return err
			}
		}

		next, found, err := p.HashNext(item.hash)
		if err != nil {
			return err
		}
		if found {
			heap.Push(h, mergeItem{producerIdx: item.producerIdx, hash: next})
		}
	}
	return nil
}
