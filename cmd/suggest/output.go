package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"reup-suggest-backend/internal/suggest"
	"reup-suggest-backend/internal/tasks"
)

var (
	titleColor = color.New(color.Bold)
	kindColor  = color.New(color.FgCyan)
	metaColor  = color.New(color.FgHiBlack)
	okColor    = color.New(color.FgGreen)
	errColor   = color.New(color.FgRed)
)

type snapshotFile struct {
	tasks.Snapshot

	Usage map[string]struct {
		Count    int       `json:"count"`
		LastUsed time.Time `json:"last_used"`
	} `json:"usage"`
	Location string    `json:"location"`
	Now      time.Time `json:"now"`
}

// readSnapshot decodes a snapshot file into a generation request.
func readSnapshot(r io.Reader) (suggest.Request, error) {
	var f snapshotFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return suggest.Request{}, fmt.Errorf("decode snapshot: %w", err)
	}

	req := suggest.Request{Snapshot: f.Snapshot, Location: strings.TrimSpace(f.Location), Now: f.Now}
	if f.Usage != nil {
		req.Usage = make(map[string]suggest.UsageStat, len(f.Usage))
		for id, u := range f.Usage {
			req.Usage[id] = suggest.UsageStat{Count: u.Count, LastUsed: u.LastUsed}
		}
	}
	return req, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSuggestions(w io.Writer, list []suggest.Suggestion) {
	if len(list) == 0 {
		metaColor.Fprintln(w, "no suggestions")
		return
	}

	for i, s := range list {
		fmt.Fprintf(w, "%2d. ", i+1)
		titleColor.Fprint(w, s.Title)
		fmt.Fprint(w, "  ")
		kindColor.Fprintf(w, "[%s %s]", s.Kind, confidence(s.Confidence))
		fmt.Fprintln(w)

		if meta := details(s); meta != "" {
			metaColor.Fprintf(w, "    %s\n", meta)
		}
	}
}

func confidence(c float64) string {
	return fmt.Sprintf("%d%%", int(c*100+0.5))
}

func details(s suggest.Suggestion) string {
	var parts []string
	if s.Category != "" {
		parts = append(parts, s.Category)
	}
	if s.Priority != "" {
		parts = append(parts, string(s.Priority)+" priority")
	}
	if s.Location != "" {
		parts = append(parts, "@"+s.Location)
	}
	if m := s.Metadata; m != nil {
		if m.Pattern != "" {
			parts = append(parts, m.Pattern)
		}
		if m.UsageCount > 0 {
			parts = append(parts, fmt.Sprintf("used %dx", m.UsageCount))
		}
	}
	return strings.Join(parts, " · ")
}
