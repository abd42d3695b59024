// Command hours fetches one day's attendance event log from the backend and
// prints per-user worked and outside time, optionally exporting an XLSX
// workbook. It runs the same calculator as the terminal's /v1/hours surface,
// so the numbers cannot drift.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/your-org/kiosk/internal/backend"
	"github.com/your-org/kiosk/internal/config"
	"github.com/your-org/kiosk/internal/hours"
	"github.com/your-org/kiosk/internal/models"
	"github.com/your-org/kiosk/internal/observability"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	date := flag.String("date", "", "day to report, YYYY-MM-DD (default: today)")
	xlsxPath := flag.String("xlsx", "", "write the report to this XLSX file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, "text")

	loc, err := time.LoadLocation(cfg.Presence.Timezone)
	if err != nil {
		slog.Error("load timezone", "timezone", cfg.Presence.Timezone, "error", err)
		os.Exit(1)
	}

	now := time.Now().In(loc)
	day := *date
	if day == "" {
		day = now.Format("2006-01-02")
	} else if _, err := time.ParseInLocation("2006-01-02", day, loc); err != nil {
		fmt.Fprintf(os.Stderr, "invalid date %q, want YYYY-MM-DD\n", day)
		os.Exit(1)
	}

	client := backend.New(cfg.Backend)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	records, err := client.FetchEvents(ctx, day)
	if err != nil {
		slog.Error("fetch event log", "date", day, "error", err)
		os.Exit(1)
	}

	summaries := hours.SummarizeDay(records, day, now)
	if len(summaries) == 0 {
		fmt.Printf("no attendance events for %s\n", day)
		return
	}

	printTable(summaries)

	if *xlsxPath != "" {
		if err := writeXLSX(*xlsxPath, day, summaries); err != nil {
			slog.Error("write xlsx", "path", *xlsxPath, "error", err)
			os.Exit(1)
		}
		fmt.Printf("report written to %s\n", *xlsxPath)
	}
}

func printTable(summaries []models.DayHoursSummary) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tWORKED\tOUTSIDE\tLAST")
	for _, s := range summaries {
		fmt.Fprintf(w, "%d\t%s\t%.2fh\t%.2fh\t%s\n",
			s.IdentityID, s.Name, s.WorkedHours, s.OutsideHours, s.LastStatus)
	}
	_ = w.Flush()
}

func writeXLSX(path, day string, summaries []models.DayHoursSummary) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Hours " + day
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headers := []string{"Identity ID", "Name", "Date", "Worked Hours", "Outside Hours", "Last Status"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	for row, s := range summaries {
		values := []interface{}{s.IdentityID, s.Name, s.Date, s.WorkedHours, s.OutsideHours, string(s.LastStatus)}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("write row %d: %w", row+1, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}
