package allocator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/exam-room-allocator/internal/models"
)

// Clock returns the current time.
type Clock func() time.Time

// EngineConfig fixes the policies of every run performed by an Engine.
type EngineConfig struct {
	CohortOrder CohortOrder
	Clock       Clock
}

// Input carries the parsed rows of the three datasets.
type Input struct {
	Students []models.Record
	Courses  []models.Record
	Rooms    []models.Record
}

// SlotSummary describes one processed exam slot.
type SlotSummary struct {
	Date          string        `json:"date"`
	Time          string        `json:"time"`
	Cohorts       int           `json:"cohorts"`
	Groups        int           `json:"groups"`
	AssignedSeats int           `json:"assignedSeats"`
	RoomsUsed     int           `json:"roomsUsed"`
	Utilization   models.Fixed2 `json:"utilization"`
	Usage         []RoomLoad    `json:"usage"`
}

// Result is everything produced by one run.
type Result struct {
	Groups    []OutputGroup       `json:"groups"`
	Metrics   []models.MetricsRow `json:"metrics"`
	Slots     []SlotSummary       `json:"slots"`
	Shortages []models.Shortage   `json:"shortages"`
	Warnings  []models.Warning    `json:"warnings"`
	Rooms     []models.Room       `json:"rooms"`
	Students  int                 `json:"students"`
	Cohorts   int                 `json:"cohorts"`
	Courses   int                 `json:"courses"`
}

// Seated sums TotalStudents over every emitted row.
func (r *Result) Seated() int {
	total := 0
	for _, g := range r.Groups {
		total += g.Students()
	}
	return total
}

// Engine runs allocations. It holds no per-run state and is safe for concurrent use.
type Engine struct {
	order  CohortOrder
	clock  Clock
	logger *zap.Logger
}

// NewEngine constructs an Engine.
func NewEngine(cfg EngineConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.CohortOrder == "" {
		cfg.CohortOrder = OrderLargestFirst
	}
	return &Engine{order: cfg.CohortOrder, clock: cfg.Clock, logger: logger}
}

// CohortOrder reports the policy used by the engine.
func (e *Engine) CohortOrder() CohortOrder {
	return e.order
}

// Run allocates every exam slot in turn and hands the output to sink. Slots are processed one
// after another; ctx is checked between slots.
func (e *Engine) Run(ctx context.Context, in Input, sink Sink) (*Result, error) {
	if sink == nil {
		sink = DiscardSink{}
	}
	started := e.clock()

	rooms, err := ResolveRooms(in.Rooms)
	if err != nil {
		return nil, err
	}
	cohorts, studentWarnings := IndexCohorts(in.Students)
	slots, courseWarnings := IndexSlots(in.Courses)

	result := &Result{
		Rooms:    rooms,
		Students: cohorts.Students(),
		Cohorts:  cohorts.Len(),
		Courses:  len(in.Courses),
		Warnings: append(studentWarnings, courseWarnings...),
	}
	for _, w := range result.Warnings {
		e.logger.Warn("data integrity warning",
			zap.String("kind", string(w.Kind)),
			zap.String("dataset", w.Dataset),
			zap.Int("row", w.Row),
		)
	}

	timeslots := slots.Len()
	for _, slot := range slots.Slots() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		alloc := AllocateSlot(slot, cohorts.Cohorts(), rooms, e.order)
		utilization := Utilization(alloc.Usage)
		groups := GroupRows(slot.SlotKey, alloc.Rows)

		var metrics []models.MetricsRow
		for _, group := range groups {
			if err := sink.WriteGroup(ctx, group); err != nil {
				return nil, fmt.Errorf("write group %s: %w", group.FileName(), err)
			}
			elapsed := e.clock().Sub(started).Seconds()
			metrics = append(metrics, GroupMetrics(group, utilization, timeslots, elapsed))
		}

		for _, s := range alloc.Shortages {
			e.logger.Warn("capacity shortage",
				zap.String("department", s.Department),
				zap.String("year", s.Year),
				zap.String("section", s.Section),
				zap.String("slot", slot.String()),
				zap.Int("unseated", s.Unseated),
			)
		}

		result.Groups = append(result.Groups, groups...)
		result.Metrics = append(result.Metrics, metrics...)
		result.Shortages = append(result.Shortages, alloc.Shortages...)
		result.Slots = append(result.Slots, SlotSummary{
			Date:          slot.Date,
			Time:          slot.Time,
			Cohorts:       len(ActiveCohorts(slot, cohorts.Cohorts(), e.order)),
			Groups:        len(groups),
			AssignedSeats: alloc.AssignedSeats(),
			RoomsUsed:     len(alloc.Usage),
			Utilization:   models.Fixed2(utilization),
			Usage:         alloc.Usage,
		})
	}

	if err := sink.WriteMetrics(ctx, result.Metrics); err != nil {
		return nil, fmt.Errorf("write metrics: %w", err)
	}

	e.logger.Info("allocation run completed",
		zap.Int("slots", timeslots),
		zap.Int("groups", len(result.Groups)),
		zap.Int("students", result.Students),
		zap.Int("shortages", len(result.Shortages)),
		zap.Duration("elapsed", e.clock().Sub(started)),
	)
	return result, nil
}
