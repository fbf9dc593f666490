package tui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/francois-poidevin/flightmap/internal/app"
	"github.com/francois-poidevin/flightmap/internal/app/fleet"
	"github.com/francois-poidevin/flightmap/internal/app/tools"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const DefaultRefresh = 200 * time.Millisecond

var _ fleet.Layer = (*Layer)(nil)

// Controller receives the user's search and selection.
type Controller interface {
	SetQuery(q string) []fleet.Row
	Select(id string) bool
}

type marker struct {
	mu       sync.Mutex
	position app.Position
	heading  float64
	details  app.FlightState
}

func (m *marker) SetPosition(p app.Position) {
	m.mu.Lock()
	m.position = p
	m.mu.Unlock()
}

func (m *marker) SetHeading(deg float64) {
	m.mu.Lock()
	m.heading = deg
	m.mu.Unlock()
}

func (m *marker) SetDetails(f app.FlightState) {
	m.mu.Lock()
	m.details = f
	m.mu.Unlock()
}

func (m *marker) view() (app.Position, float64, app.FlightState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position, m.heading, m.details
}

// Layer is a full screen flight list. Layer methods only touch memory, the screen
// is redrawn every refresh.
type Layer struct {
	mu        sync.Mutex
	markers   map[string]*marker
	rows      []fleet.Row
	bounds    tools.Bbox
	hasBounds bool
	focused   string

	refresh  time.Duration
	tviewApp *tview.Application
	table    *tview.Table
	search   *tview.InputField
	detail   *tview.TextView
	status   *tview.TextView
	logs     *tview.TextView
	root     *tview.Flex
}

func New(refresh time.Duration) *Layer {
	if refresh <= 0 {
		refresh = DefaultRefresh
	}
	l := &Layer{
		markers: map[string]*marker{},
		refresh: refresh,
	}
	l.setupUI()
	return l
}

func (l *Layer) setupUI() {
	l.tviewApp = tview.NewApplication()

	l.search = tview.NewInputField().
		SetLabel("Search: ").
		SetFieldWidth(30)

	l.table = tview.NewTable().
		SetSelectable(true, false).
		SetFixed(1, 0)
	l.table.SetBorder(true).SetTitle(" Flights ")

	l.detail = tview.NewTextView().
		SetDynamicColors(true)
	l.detail.SetBorder(true).SetTitle(" Details ")

	l.logs = tview.NewTextView().
		SetDynamicColors(false).
		SetScrollable(true).
		SetMaxLines(200)
	l.logs.SetBorder(true).SetTitle(" Logs ")

	l.status = tview.NewTextView().
		SetDynamicColors(true)

	sidebar := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(l.detail, 0, 1, false).
		AddItem(l.logs, 0, 1, false)

	body := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(l.table, 0, 7, true).
		AddItem(sidebar, 0, 3, false)

	l.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(l.search, 1, 0, false).
		AddItem(body, 0, 1, true).
		AddItem(l.status, 1, 0, false)

	l.tviewApp.SetRoot(l.root, true).SetFocus(l.table)
	l.tviewApp.SetInputCapture(l.handleKeyboard)
}

// Bind wires the search field and row selection to c.
func (l *Layer) Bind(c Controller) {
	l.search.SetChangedFunc(func(text string) {
		c.SetQuery(text)
	})
	l.search.SetDoneFunc(func(key tcell.Key) {
		l.tviewApp.SetFocus(l.table)
	})
	l.table.SetSelectedFunc(func(row, column int) {
		ref := l.table.GetCell(row, 0).GetReference()
		if id, ok := ref.(string); ok {
			c.Select(id)
		}
	})
}

// LogWriter is where log output goes while the UI owns the terminal.
func (l *Layer) LogWriter() io.Writer {
	return l.logs
}

func (l *Layer) handleKeyboard(event *tcell.EventKey) *tcell.EventKey {
	if l.tviewApp.GetFocus() == l.search {
		if event.Key() == tcell.KeyEscape {
			l.tviewApp.SetFocus(l.table)
			return nil
		}
		return event
	}
	switch {
	case event.Key() == tcell.KeyEscape || event.Rune() == 'q':
		l.tviewApp.Stop()
		return nil
	case event.Key() == tcell.KeyTab || event.Rune() == '/':
		l.tviewApp.SetFocus(l.search)
		return nil
	}
	return event
}

// Run owns the terminal until ctx ends or the user quits.
func (l *Layer) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		ticker := time.NewTicker(l.refresh)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				l.tviewApp.Stop()
				return
			case <-ticker.C:
				l.tviewApp.QueueUpdateDraw(l.draw)
			}
		}
	}()

	return l.tviewApp.Run()
}

func (l *Layer) AddMarker(f app.FlightState) fleet.Marker {
	m := &marker{position: f.Position(), heading: f.Heading, details: f}
	l.mu.Lock()
	l.markers[f.ID] = m
	l.mu.Unlock()
	return m
}

func (l *Layer) RemoveMarker(id string, m fleet.Marker) {
	l.mu.Lock()
	delete(l.markers, id)
	if l.focused == id {
		l.focused = ""
	}
	l.mu.Unlock()
}

func (l *Layer) ShowRows(rows []fleet.Row) {
	l.mu.Lock()
	l.rows = rows
	l.mu.Unlock()
}

func (l *Layer) FitBounds(bbox tools.Bbox) {
	l.mu.Lock()
	l.bounds = bbox
	l.hasBounds = true
	l.mu.Unlock()
}

func (l *Layer) Focus(id string, m fleet.Marker) {
	l.mu.Lock()
	l.focused = id
	l.mu.Unlock()
}

// draw copies the in-memory state into the widgets. Runs on the UI goroutine.
func (l *Layer) draw() {
	l.mu.Lock()
	rows := l.rows
	markers := make(map[string]*marker, len(l.markers))
	for id, m := range l.markers {
		markers[id] = m
	}
	focused := l.focused
	bounds, hasBounds := l.bounds, l.hasBounds
	l.mu.Unlock()

	selected, _ := l.table.GetSelection()
	l.table.Clear()
	for col, title := range []string{"Flight", "Lat", "Lon", "Heading"} {
		l.table.SetCell(0, col, tview.NewTableCell(title).
			SetTextColor(tcell.ColorYellow).
			SetSelectable(false))
	}
	for i, row := range rows {
		lat, lon, heading := row.Lat, row.Lon, "-"
		if m, ok := markers[row.ID]; ok {
			p, h, _ := m.view()
			lat, lon, heading = p.Lat, p.Lon, fmt.Sprintf("%.0f°", h)
		}
		l.table.SetCell(i+1, 0, tview.NewTableCell(tview.Escape(row.Label())).SetReference(row.ID).SetExpansion(1))
		l.table.SetCell(i+1, 1, tview.NewTableCell(fmt.Sprintf("%.2f", lat)).SetAlign(tview.AlignRight))
		l.table.SetCell(i+1, 2, tview.NewTableCell(fmt.Sprintf("%.2f", lon)).SetAlign(tview.AlignRight))
		l.table.SetCell(i+1, 3, tview.NewTableCell(heading).SetAlign(tview.AlignRight))
	}
	if selected >= 1 && selected <= len(rows) {
		l.table.Select(selected, 0)
	}

	if m, ok := markers[focused]; ok {
		l.detail.SetText(detailText(m))
	} else {
		l.detail.SetText("[gray]No flight selected[-]")
	}

	status := fmt.Sprintf("[yellow]%d[-] tracked  [yellow]%d[-] listed", len(markers), len(rows))
	if hasBounds {
		c := bounds.Center()
		status += fmt.Sprintf("  bounds %s  center %.2f,%.2f", bounds.String(), c.Lat, c.Lon)
	}
	l.status.SetText(status)
}

func detailText(m *marker) string {
	p, heading, f := m.view()
	text := fmt.Sprintf("[yellow]%s[-] [gray](%s)[-]\n", tview.Escape(f.DisplayCallsign()), tview.Escape(f.ID))
	text += fmt.Sprintf("[gray]Country:[-] %s\n", tview.Escape(f.DisplayCountry()))
	text += fmt.Sprintf("[gray]Pos:[-]     %.4f°, %.4f°\n", p.Lat, p.Lon)
	text += fmt.Sprintf("[gray]Hdg:[-]     %.0f°\n", heading)
	if f.Altitude != nil {
		text += fmt.Sprintf("[gray]Alt:[-]     %.0f m\n", *f.Altitude)
	}
	if f.Velocity != nil {
		text += fmt.Sprintf("[gray]Spd:[-]     %.0f m/s (%.0f km/h)\n", *f.Velocity, *f.Velocity*app.MSKMH)
	}
	if f.VerticalRate != nil {
		text += fmt.Sprintf("[gray]V/S:[-]     %.1f m/s\n", *f.VerticalRate)
	}
	if f.OnGround != nil && *f.OnGround {
		text += "[gray]On ground[-]\n"
	}
	return text
}
