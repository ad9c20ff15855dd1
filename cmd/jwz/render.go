package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/term"

	"jwz/internal/store"
)

// isTerminal reports whether w is attached to an interactive terminal.
// Commands use this to choose a tree/indented view for humans over a
// flat table suited to piping into other tools.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func senderLabel(s *store.Sender) string {
	if s == nil {
		return "anonymous"
	}
	if s.Name != "" {
		return s.Name
	}
	return s.Identity
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

// renderThreadTree prints messages indented by depth beneath root,
// following each message's children in creation order.
func renderThreadTree(w io.Writer, messages []store.Message, rootID string) {
	byParent := make(map[string][]store.Message)
	byID := make(map[string]store.Message)
	for _, m := range messages {
		byID[m.ID] = m
		byParent[m.ParentID] = append(byParent[m.ParentID], m)
	}

	var walk func(id string, depth int)
	walk = func(id string, depth int) {
		m, ok := byID[id]
		if !ok {
			return
		}
		fmt.Fprintf(w, "%s%s  %-12s  %s\n",
			strings.Repeat("  ", depth), m.ID[:8], senderLabel(m.Sender), truncate(m.Body, 80))
		fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth+1), humanize.Time(m.CreatedAt))
		for _, child := range byParent[id] {
			walk(child.ID, depth+1)
		}
	}
	walk(rootID, 0)
}

// renderMessageTable prints messages as a flat table, for piping.
func renderMessageTable(w io.Writer, messages []store.Message) {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"ID", "Parent", "Sender", "Posted", "Body"})
	for _, m := range messages {
		table.Append([]string{
			m.ID,
			m.ParentID,
			senderLabel(m.Sender),
			humanize.Time(m.CreatedAt),
			truncate(m.Body, 60),
		})
	}
	table.Render()
}
