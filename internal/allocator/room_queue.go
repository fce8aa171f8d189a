package allocator

import "github.com/noah-isme/exam-room-allocator/internal/models"

// QueuedRoom is a room with the seats still free in the current exam slot.
type QueuedRoom struct {
	Room      models.Room
	Remaining int
}

// RoomQueue is a binary min-heap over remaining capacity. Equal capacities pop in room file order.
type RoomQueue struct {
	items []QueuedRoom
}

// NewRoomQueue seeds a queue with every room at full capacity.
func NewRoomQueue(rooms []models.Room) *RoomQueue {
	q := &RoomQueue{items: make([]QueuedRoom, 0, len(rooms))}
	for _, r := range rooms {
		q.Push(QueuedRoom{Room: r, Remaining: r.Capacity})
	}
	return q
}

// Len returns the number of queued rooms.
func (q *RoomQueue) Len() int {
	return len(q.items)
}

// Push adds a room.
func (q *RoomQueue) Push(item QueuedRoom) {
	q.items = append(q.items, item)
	q.up(len(q.items) - 1)
}

// Peek returns the smallest room without removing it.
func (q *RoomQueue) Peek() (QueuedRoom, bool) {
	if len(q.items) == 0 {
		return QueuedRoom{}, false
	}
	return q.items[0], true
}

// Pop removes and returns the smallest room.
func (q *RoomQueue) Pop() (QueuedRoom, bool) {
	n := len(q.items)
	if n == 0 {
		return QueuedRoom{}, false
	}
	top := q.items[0]
	last := n - 1
	q.items[0] = q.items[last]
	q.items = q.items[:last]
	if last > 0 {
		q.down(0)
	}
	return top, true
}

func (q *RoomQueue) less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.Remaining != b.Remaining {
		return a.Remaining < b.Remaining
	}
	return a.Room.Order < b.Room.Order
}

func (q *RoomQueue) up(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !q.less(i, parent) {
			return
		}
		q.items[i], q.items[parent] = q.items[parent], q.items[i]
		i = parent
	}
}

func (q *RoomQueue) down(i int) {
	n := len(q.items)
	for {
		smallest := i
		l, r := 2*i+1, 2*i+2
		if l < n && q.less(l, smallest) {
			smallest = l
		}
		if r < n && q.less(r, smallest) {
			smallest = r
		}
		if smallest == i {
			return
		}
		q.items[i], q.items[smallest] = q.items[smallest], q.items[i]
		i = smallest
	}
}
