package expand

type heapItem struct {
	node int32
	dist float64
}

// minHeap orders Dijkstra frontier entries by distance. Stale entries are
// left in place and skipped by the caller.
type minHeap struct {
	items []heapItem
}

func (h *minHeap) Len() int { return len(h.items) }

func (h *minHeap) Reset() { h.items = h.items[:0] }

func (h *minHeap) Push(node int32, dist float64) {
	h.items = append(h.items, heapItem{node: node, dist: dist})
	h.up(len(h.items) - 1)
}

func (h *minHeap) Pop() heapItem {
	last := len(h.items) - 1
	h.items[0], h.items[last] = h.items[last], h.items[0]
	top := h.items[last]
	h.items = h.items[:last]
	h.down(0)
	return top
}

func (h *minHeap) up(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if h.items[p].dist <= h.items[i].dist {
			return
		}
		h.items[p], h.items[i] = h.items[i], h.items[p]
		i = p
	}
}

func (h *minHeap) down(i int) {
	n := len(h.items)
	for {
		least := i
		for _, c := range [2]int{2*i + 1, 2*i + 2} {
			if c < n && h.items[c].dist < h.items[least].dist {
				least = c
			}
		}
		if least == i {
			return
		}
		h.items[i], h.items[least] = h.items[least], h.items[i]
		i = least
	}
}
