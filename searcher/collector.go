package searcher

import (
	"container/heap"
	"slices"
)

// Collector keeps the best numWanted matches seen so far, ordered by a
// SortSpec, and counts every match it is offered. Concrete searchers feed
// it while scanning candidates and call TopDocs once at the end.
type Collector struct {
	sort     *SortSpec
	limit    int
	heap     matchHeap
	total    uint32
	distinct func(*MatchDoc) (string, bool)
	best     map[string]MatchDoc
}

// NewCollector creates a Collector keeping at most numWanted matches.
func NewCollector(numWanted uint32, sort *SortSpec) *Collector {
	c := &Collector{sort: sort, limit: int(numWanted)}
	c.heap.sort = sort
	return c
}

// WithDistinct makes the collector keep only the best match per key.
// Matches for which key reports false are never deduplicated.
func (c *Collector) WithDistinct(key func(*MatchDoc) (string, bool)) *Collector {
	c.distinct = key
	c.best = make(map[string]MatchDoc)
	return c
}

// Collect offers one match.
func (c *Collector) Collect(m MatchDoc) {
	if c.distinct != nil {
		if k, ok := c.distinct(&m); ok {
			if prev, seen := c.best[k]; !seen || c.sort.Compare(&m, &prev) < 0 {
				c.best[k] = m
			}
			return
		}
	}
	c.push(m)
}

func (c *Collector) push(m MatchDoc) {
	c.total++
	if c.limit == 0 {
		return
	}
	if len(c.heap.items) < c.limit {
		heap.Push(&c.heap, m)
		return
	}
	// Root is the worst kept match
	if c.sort.Compare(&m, &c.heap.items[0]) < 0 {
		c.heap.items[0] = m
		heap.Fix(&c.heap, 0)
	}
}

// TotalHits returns the number of matches collected so far. With a distinct
// key, matches sharing a key are only counted once TopDocs is called.
func (c *Collector) TotalHits() uint32 { return c.total }

// TopDocs returns the kept matches, best first. The collector must not be
// used afterwards.
func (c *Collector) TopDocs() *TopDocs {
	if c.distinct != nil {
		for _, m := range c.best {
			c.push(m)
		}
		c.best = nil
		c.distinct = nil
	}
	matches := c.heap.items
	c.heap.items = nil
	slices.SortFunc(matches, func(a, b MatchDoc) int { return c.sort.Compare(&a, &b) })
	if matches == nil {
		matches = []MatchDoc{}
	}
	return &TopDocs{MatchDocs: matches, TotalHits: c.total}
}

// matchHeap is a heap with the worst match at the root.
type matchHeap struct {
	items []MatchDoc
	sort  *SortSpec
}

func (h *matchHeap) Len() int           { return len(h.items) }
func (h *matchHeap) Less(i, j int) bool { return h.sort.Compare(&h.items[i], &h.items[j]) > 0 }
func (h *matchHeap) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *matchHeap) Push(x any)         { h.items = append(h.items, x.(MatchDoc)) }
func (h *matchHeap) Pop() any {
	last := h.items[len(h.items)-1]
	h.items = h.items[:len(h.items)-1]
	return last
}
