package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/mmcdole/argus/internal/domain"
)

const timeLayout = "2006-01-02 15:04:05"

// printer writes aligned tables to terminals and JSON everywhere else
type printer struct {
	w    io.Writer
	json bool
}

func newPrinter(w io.Writer, forceJSON bool) *printer {
	asJSON := forceJSON
	if f, ok := w.(*os.File); ok && !forceJSON {
		asJSON = !term.IsTerminal(int(f.Fd()))
	}
	return &printer{w: w, json: asJSON}
}

// print renders v as JSON, or header and rows as a table.
func (p *printer) print(v any, header []string, rows [][]string) error {
	if p.json {
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func (p *printer) printMedia(media []domain.ViewMedia) error {
	rows := make([][]string, 0, len(media))
	for _, m := range media {
		end := "in progress"
		if t, ok := m.EndTime(); ok {
			end = t.Local().Format(timeLayout)
		}
		fav := ""
		if m.Favorite() {
			fav = "*"
		}
		rows = append(rows, []string{
			m.ID(),
			m.CameraID(),
			string(m.MediaType()),
			m.StartTime().Local().Format(timeLayout),
			end,
			fav,
			m.Title(),
		})
	}
	if media == nil {
		media = []domain.ViewMedia{}
	}
	return p.print(media, []string{"ID", "CAMERA", "TYPE", "START", "END", "FAV", "TITLE"}, rows)
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Second).String()
}
