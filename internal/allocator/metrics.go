package allocator

import (
	"math"

	"github.com/noah-isme/exam-room-allocator/internal/models"
)

// Utilization returns seats filled as a percentage of the capacity of the rooms that were used.
func Utilization(usage []RoomLoad) float64 {
	var assigned, capacity float64
	for _, load := range usage {
		if load.Assigned <= 0 {
			continue
		}
		assigned += float64(load.Assigned)
		capacity += float64(load.Room.Capacity)
	}
	if capacity == 0 {
		return 0
	}
	return assigned / capacity * 100
}

// FairnessStdDev is the population standard deviation of TotalStudents across rows.
func FairnessStdDev(rows []models.AllocationRow) float64 {
	counts := make([]int, len(rows))
	for i, row := range rows {
		counts[i] = row.TotalStudents
	}
	return PopulationStdDev(counts)
}

// PopulationStdDev returns 0 for an empty sample.
func PopulationStdDev(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	n := float64(len(values))
	sum := 0.0
	for _, v := range values {
		sum += float64(v)
	}
	mean := sum / n
	variance := 0.0
	for _, v := range values {
		d := float64(v) - mean
		variance += d * d
	}
	return math.Sqrt(variance / n)
}

// GroupMetrics builds the metrics row for one output group.
func GroupMetrics(group OutputGroup, utilization float64, timeslots int, runtimeSeconds float64) models.MetricsRow {
	return models.MetricsRow{
		Department:     group.Department,
		Year:           group.Year,
		Date:           group.Slot.Date,
		Time:           group.Slot.Time,
		Conflicts:      0,
		Timeslots:      timeslots,
		AvgUtilization: models.Fixed2(utilization),
		FairnessStdDev: models.Fixed2(FairnessStdDev(group.Rows)),
		Runtime:        models.Fixed2(runtimeSeconds),
	}
}
