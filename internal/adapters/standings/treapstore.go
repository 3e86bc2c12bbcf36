package standings

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/okian/rumble/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: points DESC, then participantID ASC (deterministic). The BST
// comparator's "less" means "ranks earlier", so in-order traversal walks the
// standings from best to worst. Nodes carry subtree sizes, giving O(log n)
// rank queries by descent. Points are exact integers; party scoring never
// produces fractions.

// node is one treap node.
type node struct {
	id     string
	points int
	prio   uint64
	left   *node
	right  *node
	size   int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less reports whether (aPoints, aID) ranks earlier than (bPoints, bID).
func less(aPoints int, aID string, bPoints int, bID string) bool {
	if aPoints != bPoints {
		return aPoints > bPoints // more points ranks earlier
	}
	return aID < bID // tie-breaker by id asc
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

// priority derives a stable pseudo-random heap priority from the
// participant id, keeping the treap balanced independent of point order.
func priority(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64()
}

func insert(n *node, id string, points int) *node {
	if n == nil {
		return &node{id: id, points: points, prio: priority(id), size: 1}
	}
	if less(points, id, n.points, n.id) {
		n.left = insert(n.left, id, points)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, points)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, points int) *node {
	if n == nil {
		return nil
	}
	if points == n.points && id == n.id {
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, points)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, points)
		}
	} else if less(points, id, n.points, n.id) {
		n.left = deleteNode(n.left, id, points)
	} else {
		n.right = deleteNode(n.right, id, points)
	}
	fix(n)
	return n
}

// rankOf returns the 1-based rank of (points, id) by descent, counting the
// nodes that rank earlier.
func rankOf(n *node, id string, points int) int {
	rank := 1
	for n != nil {
		switch {
		case points == n.points && id == n.id:
			return rank + nsize(n.left)
		case less(points, id, n.points, n.id):
			n = n.left
		default:
			rank += nsize(n.left) + 1
			n = n.right
		}
	}
	return 0
}

// collectTopN appends up to limit entries in rank order.
func collectTopN(n *node, limit int, out *[]Entry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, Entry{
			Rank:          len(*out) + 1,
			ParticipantID: n.id,
			Points:        n.points,
		})
	}
	collectTopN(n.right, limit, out)
}

// TreapStore implements Store for one party.
type TreapStore struct {
	mu     sync.RWMutex
	root   *node
	points map[string]int
}

// NewTreapStore creates an empty standings store.
func NewTreapStore(ctx context.Context) *TreapStore {
	return &TreapStore{points: make(map[string]int)}
}

// Apply sets a participant's absolute point total.
func (s *TreapStore) Apply(ctx context.Context, participantID string, points int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.points[participantID]; ok {
		if old == points {
			return nil
		}
		s.root = deleteNode(s.root, participantID, old)
	}
	s.root = insert(s.root, participantID, points)
	s.points[participantID] = points
	metrics.RecordStandingsUpdate()
	return nil
}

// Rank returns the current rank and total for a participant.
func (s *TreapStore) Rank(ctx context.Context, participantID string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points, ok := s.points[participantID]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return Entry{
		Rank:          rankOf(s.root, participantID, points),
		ParticipantID: participantID,
		Points:        points,
	}, nil
}

// TopN returns the top-N entries in rank order.
func (s *TreapStore) TopN(ctx context.Context, n int) ([]Entry, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, n)
	collectTopN(s.root, n, &out)
	return out, nil
}

// Count returns the number of participants tracked.
func (s *TreapStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}
