package main

import (
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/kursadbilgin/outreach-engine/internal/domain"
	"github.com/kursadbilgin/outreach-engine/internal/ledger"
)

type resultRow struct {
	ProfileURL string `json:"profileUrl"`
	Status     string `json:"status"`
	Message    string `json:"message"`
	Timestamp  string `json:"timestamp"`
}

func resultRows(records []domain.MessageAttemptRecord, loc *time.Location) []resultRow {
	rows := make([]resultRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, resultRow{
			ProfileURL: r.Profile.String(),
			Status:     r.Outcome.String(),
			Message:    r.Message,
			Timestamp:  r.Timestamp.In(loc).Format(ledger.TimestampLayout),
		})
	}
	return rows
}

func renderResults(w io.Writer, records []domain.MessageAttemptRecord, loc *time.Location) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"#", "Profile URL", "Status", "Timestamp"})

	counts := map[domain.OutcomeKind]int{}
	for i, row := range resultRows(records, loc) {
		tw.AppendRow(table.Row{i + 1, row.ProfileURL, row.Status, row.Timestamp})
		counts[records[i].Outcome]++
	}
	tw.AppendFooter(table.Row{
		"", "Total", len(records),
		"sent " + strconv.Itoa(counts[domain.OutcomeSuccess]),
	})
	tw.Render()
}

func renderSent(w io.Writer, sent domain.SentSet) {
	profiles := make([]string, 0, sent.Len())
	for p := range sent {
		profiles = append(profiles, p.String())
	}
	sort.Strings(profiles)

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Profile URL"})
	for _, p := range profiles {
		tw.AppendRow(table.Row{p})
	}
	tw.AppendFooter(table.Row{len(profiles)})
	tw.Render()
}
