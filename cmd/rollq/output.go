package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"rollq/internal/queue"
)

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

var entryHeaders = []string{"Pos", "Status", "Student", "Session", "Priority", "Added", "Notes"}

var entryAligns = []columnAlignment{
	alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft,
}

func entryRows(entries []*queue.Entry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, []string{
			strconv.Itoa(entry.Position),
			string(entry.Status),
			entry.StudentID,
			entry.SessionRef,
			string(entry.Priority),
			formatTimestamp(entry.AddedAt),
			truncate(entry.Notes, 40),
		})
	}
	return rows
}

// writeEntries renders a table on terminals and tab-separated lines
// everywhere else so output stays scriptable.
func writeEntries(out io.Writer, entries []*queue.Entry) {
	if isTerminal(out) {
		fmt.Fprintln(out, renderTable(entryHeaders, entryRows(entries), entryAligns))
		return
	}
	for _, row := range entryRows(entries) {
		fmt.Fprintln(out, strings.Join(row, "\t"))
	}
}

func writeEntryDetail(out io.Writer, entry *queue.Entry) {
	fmt.Fprintf(out, "ID:        %s\n", entry.ID)
	fmt.Fprintf(out, "Associate: %s\n", entry.AssociateID)
	fmt.Fprintf(out, "Student:   %s\n", entry.StudentID)
	fmt.Fprintf(out, "Session:   %s\n", entry.SessionRef)
	fmt.Fprintf(out, "Campus:    %s\n", entry.Campus)
	fmt.Fprintf(out, "Position:  %d\n", entry.Position)
	fmt.Fprintf(out, "Status:    %s\n", entry.Status)
	fmt.Fprintf(out, "Priority:  %s\n", entry.Priority)
	fmt.Fprintf(out, "Added:     %s\n", formatTimestamp(entry.AddedAt))
	if entry.StartedAt != nil {
		fmt.Fprintf(out, "Started:   %s\n", formatTimestamp(*entry.StartedAt))
	}
	if entry.CompletedAt != nil {
		fmt.Fprintf(out, "Completed: %s\n", formatTimestamp(*entry.CompletedAt))
	}
	if entry.CancelledAt != nil {
		fmt.Fprintf(out, "Cancelled: %s\n", formatTimestamp(*entry.CancelledAt))
	}
	if entry.Notes != "" {
		fmt.Fprintf(out, "Notes:     %s\n", entry.Notes)
	}
}

func statsRow(stats queue.Stats) []string {
	current := "-"
	if stats.Current != nil {
		current = stats.Current.StudentID
	}
	avgWait := "-"
	if stats.AvgWaitMinutes != nil {
		avgWait = fmt.Sprintf("%dm", *stats.AvgWaitMinutes)
	}
	return []string{
		stats.AssociateID,
		strconv.Itoa(stats.QueueLength),
		strconv.Itoa(stats.Waiting),
		strconv.Itoa(stats.InProgress),
		strconv.Itoa(stats.Completed),
		avgWait,
		current,
	}
}

var statsHeaders = []string{"Associate", "Length", "Waiting", "Active", "Done", "Avg Wait", "Current Student"}

var statsAligns = []columnAlignment{
	alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft,
}

func writeStats(out io.Writer, stats []queue.Stats) {
	rows := make([][]string, 0, len(stats))
	for _, s := range stats {
		rows = append(rows, statsRow(s))
	}
	if isTerminal(out) {
		fmt.Fprintln(out, renderTable(statsHeaders, rows, statsAligns))
		return
	}
	for _, row := range rows {
		fmt.Fprintln(out, strings.Join(row, "\t"))
	}
}

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04")
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	if max <= 3 {
		return value[:max]
	}
	return value[:max-3] + "..."
}
