package allocator

import (
	"fmt"
	"sort"

	"github.com/noah-isme/exam-room-allocator/internal/models"
)

// CohortOrder decides the order in which active cohorts of a slot are seated.
type CohortOrder string

const (
	// OrderLargestFirst seats bigger cohorts first (first-fit-decreasing). Ties keep roster order.
	OrderLargestFirst CohortOrder = "largest_first"
	// OrderInsertion seats cohorts in the order they first appear in the student roster.
	OrderInsertion CohortOrder = "insertion"
)

// ParseCohortOrder validates a configured ordering policy. Empty input selects the default.
func ParseCohortOrder(raw string) (CohortOrder, error) {
	switch CohortOrder(raw) {
	case "":
		return OrderLargestFirst, nil
	case OrderLargestFirst, OrderInsertion:
		return CohortOrder(raw), nil
	default:
		return "", fmt.Errorf("unknown cohort order %q", raw)
	}
}

// RoomLoad is the number of seats a room gave out in one slot.
type RoomLoad struct {
	Room     models.Room `json:"room"`
	Assigned int         `json:"assigned"`
}

// SlotAllocation is the outcome of seating one exam slot.
type SlotAllocation struct {
	Slot      models.SlotKey
	Rows      []models.AllocationRow
	Usage     []RoomLoad
	Shortages []models.Shortage
}

// AssignedSeats sums the seats handed out in the slot.
func (a SlotAllocation) AssignedSeats() int {
	total := 0
	for _, load := range a.Usage {
		total += load.Assigned
	}
	return total
}

// ActiveCohorts returns the non-empty cohorts sitting an exam in slot, ordered per policy.
func ActiveCohorts(slot *models.ExamSlot, cohorts []*models.Cohort, order CohortOrder) []*models.Cohort {
	active := make([]*models.Cohort, 0, len(cohorts))
	for _, c := range cohorts {
		if c.Size() == 0 || !slot.Activates(c.DeptYear()) {
			continue
		}
		active = append(active, c)
	}
	if order != OrderInsertion {
		sort.SliceStable(active, func(i, j int) bool {
			return active[i].Size() > active[j].Size()
		})
	}
	return active
}

// AllocateSlot seats the active cohorts of one slot using best fit over a fresh room queue:
// every block goes to the room with the fewest seats left. Cohorts that run out of rooms are
// reported as shortages.
func AllocateSlot(slot *models.ExamSlot, cohorts []*models.Cohort, rooms []models.Room, order CohortOrder) SlotAllocation {
	result := SlotAllocation{Slot: slot.SlotKey}
	queue := NewRoomQueue(rooms)
	assigned := make(map[int]int, len(rooms))
	var used []models.Room

	for _, cohort := range ActiveCohorts(slot, cohorts, order) {
		size := cohort.Size()
		idx := 0
		for idx < size {
			room, ok := queue.Pop()
			if !ok {
				break
			}
			take := min(size-idx, room.Remaining)
			first := cohort.Students[idx].RollNo
			last := cohort.Students[idx+take-1].RollNo
			result.Rows = append(result.Rows, models.AllocationRow{
				Department:    cohort.Department,
				Year:          cohort.Year,
				Section:       cohort.Section,
				Room:          room.Room.RoomNo,
				RollRange:     models.FormatRollRange(first, last),
				TotalStudents: take,
				FirstRoll:     first,
				LastRoll:      last,
			})
			if _, seen := assigned[room.Room.Order]; !seen {
				used = append(used, room.Room)
			}
			assigned[room.Room.Order] += take
			room.Remaining -= take
			if room.Remaining > 0 {
				queue.Push(room)
			}
			idx += take
		}
		if idx < size {
			result.Shortages = append(result.Shortages, models.Shortage{
				Department: cohort.Department,
				Year:       cohort.Year,
				Section:    cohort.Section,
				Date:       slot.Date,
				Time:       slot.Time,
				CohortSize: size,
				Seated:     idx,
				Unseated:   size - idx,
			})
		}
	}

	result.Usage = make([]RoomLoad, 0, len(used))
	for _, r := range used {
		result.Usage = append(result.Usage, RoomLoad{Room: r, Assigned: assigned[r.Order]})
	}
	return result
}
