package world

import "math"

// bucketQueue is a bounded priority queue of cell indices. Entries are
// grouped into buckets by floor(priority); within a bucket the lowest
// priority wins and ties go to the earliest insertion.
type bucketQueue struct {
	buckets [][]queueEntry
	count   int
	minimum int
}

type queueEntry struct {
	cell     int
	priority float64
}

func newBucketQueue() *bucketQueue {
	return &bucketQueue{minimum: math.MaxInt}
}

func (q *bucketQueue) Len() int {
	return q.count
}

// Enqueue adds a cell. Negative priorities land in bucket zero.
func (q *bucketQueue) Enqueue(cell int, priority float64) {
	if priority < 0 {
		priority = 0
	}
	idx := int(math.Floor(priority))
	for idx >= len(q.buckets) {
		q.buckets = append(q.buckets, nil)
	}
	q.buckets[idx] = append(q.buckets[idx], queueEntry{cell: cell, priority: priority})
	q.count++
	if idx < q.minimum {
		q.minimum = idx
	}
}

// Dequeue removes and returns the cell with the lowest priority.
func (q *bucketQueue) Dequeue() (int, bool) {
	for ; q.minimum < len(q.buckets); q.minimum++ {
		bucket := q.buckets[q.minimum]
		if len(bucket) == 0 {
			continue
		}
		best := 0
		for i := 1; i < len(bucket); i++ {
			if bucket[i].priority < bucket[best].priority {
				best = i
			}
		}
		cell := bucket[best].cell
		q.buckets[q.minimum] = append(bucket[:best], bucket[best+1:]...)
		q.count--
		return cell, true
	}
	return -1, false
}
