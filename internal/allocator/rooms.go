package allocator

import (
	"math"
	"strconv"
	"strings"

	"github.com/noah-isme/exam-room-allocator/internal/models"
	appErrors "github.com/noah-isme/exam-room-allocator/pkg/errors"
)

var (
	roomNoAliases        = []string{"roomno", "room"}
	benchesAliases       = []string{"noofbenches", "benches"}
	benchCapacityAliases = []string{"benchcapacity", "capacity"}
)

// ResolveRooms converts raw room rows into usable rooms. Rooms without a seat are dropped.
func ResolveRooms(records []models.Record) ([]models.Room, error) {
	rooms := make([]models.Room, 0, len(records))
	for i, rec := range records {
		capacity := roomCapacity(parseCount(rec.Value(benchesAliases...)), parseCount(rec.Value(benchCapacityAliases...)))
		if capacity <= 0 {
			continue
		}
		rooms = append(rooms, models.Room{
			RoomNo:   rec.Value(roomNoAliases...),
			Capacity: capacity,
			Order:    i,
		})
	}
	if len(rooms) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNoUsableRooms, "")
	}
	return rooms, nil
}

// roomCapacity multiplies benches by seats per bench. A product that overflows int is invalid input
// and yields 0.
func roomCapacity(benches, perBench int) int {
	if benches <= 0 || perBench <= 0 {
		return 0
	}
	if perBench > math.MaxInt/benches {
		return 0
	}
	return benches * perBench
}

// parseCount reads the leading integer of raw, returning 0 for missing, invalid or negative input.
func parseCount(raw string) int {
	raw = strings.TrimSpace(raw)
	end := 0
	for end < len(raw) && (raw[end] >= '0' && raw[end] <= '9' || end == 0 && (raw[end] == '-' || raw[end] == '+')) {
		end++
	}
	n, err := strconv.Atoi(raw[:end])
	if err != nil || n < 0 {
		return 0
	}
	return n
}
