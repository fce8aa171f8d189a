package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-room-allocator/internal/allocator"
	"github.com/noah-isme/exam-room-allocator/internal/service"
	"github.com/noah-isme/exam-room-allocator/pkg/export"
	"github.com/noah-isme/exam-room-allocator/pkg/storage"
)

func main() {
	var (
		studentsPath string
		coursesPath  string
		roomsPath    string
		outDir       string
		order        string
		formats      string
		verbose      bool
	)

	flag.StringVar(&studentsPath, "students", "students.csv", "Path to students.csv")
	flag.StringVar(&coursesPath, "courses", "courses.csv", "Path to courses.csv")
	flag.StringVar(&roomsPath, "rooms", "rooms.csv", "Path to rooms.csv")
	flag.StringVar(&outDir, "out", "output", "Directory receiving the generated files")
	flag.StringVar(&order, "order", string(allocator.OrderLargestFirst), "Cohort order: largest_first or insertion")
	flag.StringVar(&formats, "formats", "csv", "Comma separated output formats (csv, pdf)")
	flag.BoolVar(&verbose, "v", false, "Log warnings and shortages while allocating")
	flag.Parse()

	logr := zap.NewNop()
	if verbose {
		var err error
		if logr, err = zap.NewDevelopment(); err != nil {
			log.Fatalf("failed to init logger: %v", err)
		}
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, logr, studentsPath, coursesPath, roomsPath, outDir, order, formats); err != nil {
		color.Red("allocation failed: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logr *zap.Logger, studentsPath, coursesPath, roomsPath, outDir, rawOrder, rawFormats string) error {
	cohortOrder, err := allocator.ParseCohortOrder(rawOrder)
	if err != nil {
		return err
	}
	formats, err := export.ParseFormats(strings.Split(rawFormats, ","))
	if err != nil {
		return err
	}

	var datasets [3][]byte
	for i, p := range []string{studentsPath, coursesPath, roomsPath} {
		if datasets[i], err = os.ReadFile(p); err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}
	}
	in, err := service.ParseInput(datasets[0], datasets[1], datasets[2])
	if err != nil {
		return err
	}

	absOut, err := filepath.Abs(outDir)
	if err != nil {
		return err
	}
	store, err := storage.NewObjectStorage(ctx, "file://localhost"+filepath.ToSlash(absOut))
	if err != nil {
		return err
	}
	exporter := service.NewExportService(store, storage.NewSignedURLSigner(uuid.NewString(), time.Hour), nil, service.ExportConfig{}, logr)

	runID := time.Now().UTC().Format("20060102T150405")
	sink := exporter.NewRun(runID, formats)
	engine := allocator.NewEngine(allocator.EngineConfig{CohortOrder: cohortOrder}, logr)
	result, err := engine.Run(ctx, in, sink)
	if err != nil {
		return err
	}
	if err := sink.WriteShortages(ctx, result.Shortages); err != nil {
		return err
	}

	printSlots(result)
	printMetrics(result)
	printShortages(result)

	color.Green("\n%d of %d students seated across %d slot(s)", result.Seated(), result.Students, len(result.Slots))
	if len(result.Warnings) > 0 {
		color.Yellow("%d data warning(s); rerun with -v for details", len(result.Warnings))
	}
	color.Cyan("Files written to %s", filepath.Join(absOut, service.RunPrefix(runID)))
	for _, f := range sink.Files() {
		fmt.Println("  " + f.Name)
	}
	return nil
}

func printSlots(result *allocator.Result) {
	color.Yellow("\nExam Slots")
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Date", "Time", "Cohorts", "Seats", "Rooms Used", "Utilization %"})
	for _, s := range result.Slots {
		table.Append([]string{
			s.Date,
			s.Time,
			strconv.Itoa(s.Cohorts),
			strconv.Itoa(s.AssignedSeats),
			strconv.Itoa(s.RoomsUsed),
			s.Utilization.String(),
		})
	}
	table.Render()
}

func printMetrics(result *allocator.Result) {
	color.Yellow("\nGroup Metrics")
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Department", "Year", "Date", "Time", "Avg Utilization", "Fairness StdDev", "Runtime"})
	for _, m := range result.Metrics {
		table.Append([]string{
			m.Department,
			m.Year,
			m.Date,
			m.Time,
			m.AvgUtilization.String(),
			m.FairnessStdDev.String(),
			m.Runtime.String(),
		})
	}
	table.Render()
}

func printShortages(result *allocator.Result) {
	if len(result.Shortages) == 0 {
		return
	}
	color.Red("\nCapacity Shortages")
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Department", "Year", "Section", "Date", "Time", "Cohort", "Seated", "Unseated"})
	for _, s := range result.Shortages {
		table.Append([]string{
			s.Department,
			s.Year,
			s.Section,
			s.Date,
			s.Time,
			strconv.Itoa(s.CohortSize),
			strconv.Itoa(s.Seated),
			strconv.Itoa(s.Unseated),
		})
	}
	table.Render()
}
