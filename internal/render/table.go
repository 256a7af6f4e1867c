// Package render draws frames for operators.
package render

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gosuri/uitable"

	"github.com/guardvision/guardvision/internal/monitor/core"
	"github.com/guardvision/guardvision/internal/monitor/model"
)

// Empty-state texts.
const (
	NoRecentActivity = "No recent activity to show"
	NoCameras        = "No cameras available"
	NoCameraRecords  = "No records available for this camera."
)

const timeLayout = "2006-01-02 15:04:05"

// Table writes every frame to w as plain-text tables.
type Table struct {
	mu  sync.Mutex
	w   io.Writer
	loc *time.Location
}

var _ core.Renderer = (*Table)(nil)

// NewTable renders to w with timestamps in loc (local time when nil).
func NewTable(w io.Writer, loc *time.Location) *Table {
	if loc == nil {
		loc = time.Local
	}
	return &Table{w: w, loc: loc}
}

func (t *Table) Render(f model.Frame) {
	var b strings.Builder

	fmt.Fprintf(&b, "== %s ==", f.Session.Screen)
	if f.Session.Operator != "" {
		fmt.Fprintf(&b, " (%s)", f.Session.Operator)
	}
	b.WriteByte('\n')
	if f.Message != "" {
		b.WriteString("! " + f.Message + "\n")
	}

	switch f.Session.Screen {
	case model.ScreenLogin:
		b.WriteString("Sign in to monitor camera activity.\n")
	case model.ScreenHome:
		t.writeActivity(&b, f.Fleet)
	case model.ScreenCameraList:
		t.writeCameras(&b, f.Fleet)
	case model.ScreenCameraDetail:
		t.writeRecords(&b, f.Camera)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = io.WriteString(t.w, b.String()+"\n")
}

func (t *Table) writeActivity(b *strings.Builder, v *model.FleetView) {
	if pending(b, v == nil || v.Loading) {
		return
	}
	staleNote(b, v.Stale)

	table := newTable("CAMERA", "TIME", "VIOLENCE", "WEAPON")
	rows := 0
	for _, id := range v.CameraIDs {
		r, ok := v.LatestFor(id)
		if !ok {
			continue
		}
		table.AddRow(id, t.when(r), yesNo(r.ViolenceDetected), r.WeaponLabel)
		rows++
	}
	if rows == 0 {
		b.WriteString(NoRecentActivity + "\n")
		return
	}
	b.WriteString(table.String() + "\n")
}

func (t *Table) writeCameras(b *strings.Builder, v *model.FleetView) {
	if pending(b, v == nil || v.Loading) {
		return
	}
	staleNote(b, v.Stale)

	if len(v.CameraIDs) == 0 {
		b.WriteString(NoCameras + "\n")
		return
	}
	table := newTable("CAMERA", "LAST EVENT")
	for _, id := range v.CameraIDs {
		last := "-"
		if r, ok := v.LatestFor(id); ok {
			last = t.when(r)
		}
		table.AddRow(id, last)
	}
	b.WriteString(table.String() + "\n")
}

func (t *Table) writeRecords(b *strings.Builder, c *model.CameraFeed) {
	if pending(b, c == nil || c.Loading) {
		return
	}
	fmt.Fprintf(b, "Camera %s\n", c.CameraID)
	staleNote(b, c.Stale)

	if len(c.Records) == 0 {
		b.WriteString(NoCameraRecords + "\n")
		return
	}
	table := newTable("KEY", "TIME", "VIOLENCE", "WEAPON")
	for _, r := range c.Records {
		table.AddRow(r.Key, t.when(r), yesNo(r.ViolenceDetected), r.WeaponLabel)
	}
	b.WriteString(table.String() + "\n")
}

func (t *Table) when(r model.DetectionRecord) string {
	return r.Time().In(t.loc).Format(timeLayout)
}

func newTable(header ...any) *uitable.Table {
	table := uitable.New()
	table.MaxColWidth = 48
	table.Wrap = true
	table.AddRow(header...)
	return table
}

func pending(b *strings.Builder, loading bool) bool {
	if loading {
		b.WriteString("Loading...\n")
	}
	return loading
}

func staleNote(b *strings.Builder, stale bool) {
	if stale {
		b.WriteString("(connection lost; showing last known data, refresh to retry)\n")
	}
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
