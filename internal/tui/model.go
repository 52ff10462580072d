package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/vitaminmoo/rtrk-tool/internal/protocol"
)

// heatState is where the board is in the life of a heat.
type heatState int

const (
	stateLoading heatState = iota
	stateReady
	stateStarting
	stateRacing
	stateStopping
	stateFinished
)

// lap is one recorded lap.
type lap struct {
	N    int
	Time string
}

// racerRow is one racer on the board.
type racerRow struct {
	Racer   int
	Channel string
	Laps    []lap
	Total   string
}

// bestLap returns the fastest lap time. Gate lap times share one
// fixed-width format, so they order as strings.
func (r *racerRow) bestLap() string {
	best := ""
	for _, l := range r.Laps {
		if best == "" || (len(l.Time) == len(best) && l.Time < best) {
			best = l.Time
		}
	}
	return best
}

// Model is the race board.
type Model struct {
	ctx      context.Context
	tracker  Tracker
	deviceID string
	opts     Options

	state     heatState
	battery   int
	maxRounds int
	racers    map[int]*racerRow
	crossed   bool // flyby: first transmitter passed the gate
	last      *protocol.RaceUpdate
	startedAt time.Time

	statusMsg string
	errorMsg  string

	width   int
	keys    KeyMap
	styles  Styles
	help    help.Model
	spinner spinner.Model
	laps    LapProgress
}

// Messages

type boardLoadedMsg struct {
	battery   int
	maxRounds int
	channels  []protocol.RacerChannel
	err       error
}

type heatStartedMsg struct {
	ready bool
	err   error
}

type heatStoppedMsg struct {
	idle bool
	err  error
}

type raceTickMsg time.Time

type raceUpdateMsg struct {
	update *protocol.RaceUpdate
	err    error
}

// NewModel creates the board. Call Init to load the gate state.
func NewModel(ctx context.Context, t Tracker, deviceID string, opts Options) Model {
	if opts.Style == "" {
		opts.Style = protocol.Flyby
	}
	if opts.Interval <= 0 {
		opts.Interval = 250 * time.Millisecond
	}

	s := spinner.New()
	s.Spinner = spinner.Dot

	return Model{
		ctx:      ctx,
		tracker:  t,
		deviceID: deviceID,
		opts:     opts,
		state:    stateLoading,
		racers:   make(map[int]*racerRow),
		keys:     DefaultKeyMap(),
		styles:   DefaultStyles(),
		help:     help.New(),
		spinner:  s,
		laps:     NewLapProgress(),
	}
}

// Init loads battery, laps per heat and the racer channels.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadBoardCmd(), m.spinner.Tick)
}

// Commands

func (m Model) loadBoardCmd() tea.Cmd {
	ctx, t, id := m.ctx, m.tracker, m.deviceID
	return func() tea.Msg {
		var msg boardLoadedMsg
		if msg.battery, msg.err = t.ReadBatteryLevel(ctx, id); msg.err != nil {
			return msg
		}
		if msg.maxRounds, msg.err = t.ReadMaxRounds(ctx, id); msg.err != nil {
			return msg
		}
		msg.channels, msg.err = t.ReadRacerChannels(ctx, id)
		return msg
	}
}

func (m Model) startHeatCmd() tea.Cmd {
	ctx, t, id, opts := m.ctx, m.tracker, m.deviceID, m.opts
	return func() tea.Msg {
		ready, err := t.StartHeat(ctx, id, opts.Style, opts.HeatID)
		return heatStartedMsg{ready: ready, err: err}
	}
}

func (m Model) stopHeatCmd() tea.Cmd {
	ctx, t, id := m.ctx, m.tracker, m.deviceID
	return func() tea.Msg {
		idle, err := t.StopHeat(ctx, id)
		return heatStoppedMsg{idle: idle, err: err}
	}
}

func (m Model) readUpdateCmd() tea.Cmd {
	ctx, t, id, heat := m.ctx, m.tracker, m.deviceID, m.opts.HeatID
	return func() tea.Msg {
		u, err := t.ReadRaceUpdate(ctx, id, heat)
		return raceUpdateMsg{update: u, err: err}
	}
}

// tickCmd schedules the next lap update read. Only one read is in flight:
// the next tick is scheduled once the previous read has returned.
func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.opts.Interval, func(t time.Time) tea.Msg {
		return raceTickMsg(t)
	})
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case boardLoadedMsg:
		if msg.err != nil {
			m.state = stateReady
			m.errorMsg = fmt.Sprintf("Failed to read gate: %v", msg.err)
			return m, nil
		}
		m.state = stateReady
		m.errorMsg = ""
		m.battery = msg.battery
		m.maxRounds = msg.maxRounds
		m.racers = make(map[int]*racerRow)
		for _, rc := range msg.channels {
			m.racers[rc.Racer] = &racerRow{Racer: rc.Racer, Channel: rc.Channel}
		}
		m.statusMsg = fmt.Sprintf("%d racers, %d laps", len(m.racers), m.maxRounds)
		return m, nil

	case heatStartedMsg:
		if msg.err != nil || !msg.ready {
			m.state = stateReady
			if msg.err != nil {
				m.errorMsg = fmt.Sprintf("Start failed: %v", msg.err)
			} else {
				m.errorMsg = "Gate did not report READY"
			}
			return m, nil
		}
		m.state = stateRacing
		m.startedAt = time.Now()
		m.statusMsg = "Heat " + m.opts.HeatID + " running"
		return m, m.tickCmd()

	case heatStoppedMsg:
		if msg.err != nil {
			m.errorMsg = fmt.Sprintf("Stop failed: %v", msg.err)
			m.state = stateRacing
			return m, m.tickCmd()
		}
		m.state = stateFinished
		if msg.idle {
			m.statusMsg = "Heat finished"
		} else {
			m.statusMsg = "Heat stopped, gate not idle"
		}
		return m, nil

	case raceTickMsg:
		if m.state != stateRacing {
			return m, nil
		}
		return m, m.readUpdateCmd()

	case raceUpdateMsg:
		if m.state != stateRacing {
			return m, nil
		}
		if msg.err != nil {
			// keep polling; a missed read only delays the board
			m.errorMsg = msg.err.Error()
			return m, m.tickCmd()
		}
		m.errorMsg = ""
		m.apply(msg.update)
		if m.allFinished() {
			m.state = stateStopping
			return m, m.stopHeatCmd()
		}
		return m, m.tickCmd()
	}

	return m, nil
}

// apply records a lap update. Repeats of the last update are ignored.
func (m *Model) apply(u *protocol.RaceUpdate) {
	if u == nil || (m.last != nil && *u == *m.last) {
		return
	}
	m.last = u

	if u.Start {
		m.crossed = true
		return
	}
	row, ok := m.racers[u.Racer]
	if !ok {
		row = &racerRow{Racer: u.Racer, Channel: "?"}
		m.racers[u.Racer] = row
	}
	for _, l := range row.Laps {
		if l.N == u.Lap {
			return
		}
	}
	row.Laps = append(row.Laps, lap{N: u.Lap, Time: u.LapTime})
	row.Total = u.TotalTime
}

// allFinished reports whether every racer has completed the heat.
func (m Model) allFinished() bool {
	if m.maxRounds <= 0 || len(m.racers) == 0 {
		return false
	}
	for _, r := range m.racers {
		if len(r.Laps) < m.maxRounds {
			return false
		}
	}
	return true
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.state == stateRacing {
			// leave the gate idle
			return m, tea.Sequence(m.stopHeatCmd(), tea.Quit)
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.Start):
		if m.state != stateReady && m.state != stateFinished {
			return m, nil
		}
		for _, r := range m.racers {
			r.Laps = nil
			r.Total = ""
		}
		m.last = nil
		m.crossed = false
		m.errorMsg = ""
		m.state = stateStarting
		m.statusMsg = "Starting heat..."
		return m, tea.Batch(m.startHeatCmd(), m.spinner.Tick)

	case key.Matches(msg, m.keys.Stop):
		if m.state != stateRacing {
			return m, nil
		}
		m.state = stateStopping
		m.statusMsg = "Stopping heat..."
		return m, m.stopHeatCmd()

	case key.Matches(msg, m.keys.Style):
		if m.state == stateRacing || m.state == stateStarting {
			return m, nil
		}
		if m.opts.Style == protocol.Shotgun {
			m.opts.Style = protocol.Flyby
		} else {
			m.opts.Style = protocol.Shotgun
		}
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		if m.state != stateReady && m.state != stateFinished {
			return m, nil
		}
		m.state = stateLoading
		return m, tea.Batch(m.loadBoardCmd(), m.spinner.Tick)
	}
	return m, nil
}

// View renders the model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.renderTitleBar())
	b.WriteString("\n\n")

	if m.state == stateLoading {
		b.WriteString(m.spinner.View() + " " + m.styles.Warning.Render("Reading gate..."))
		b.WriteString("\n")
	} else {
		b.WriteString(m.viewBoard())
	}

	b.WriteString(m.renderStatusBar())
	helpView := m.styles.Help.Render(m.help.View(m.keys))

	return m.styles.App.Render(b.String() + "\n" + helpView)
}

func (m Model) viewBoard() string {
	var b strings.Builder

	if len(m.racers) == 0 {
		b.WriteString(m.styles.Muted.Render("No racer channels assigned on the gate."))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(m.styles.RacerHeader.Render(
		fmt.Sprintf("%-12s %-8s %-34s %-12s %-12s", "Racer", "Channel", "Laps", "Last", "Best")))
	b.WriteString("\n")

	ids := make([]int, 0, len(m.racers))
	for id := range m.racers {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		r := m.racers[id]
		name := fmt.Sprintf("Racer %d", r.Racer)
		if m.maxRounds > 0 && len(r.Laps) >= m.maxRounds {
			name = m.styles.RacerDone.Render(name)
		} else {
			name = m.styles.RacerName.Render(name)
		}

		last := "-"
		if n := len(r.Laps); n > 0 {
			last = r.Laps[n-1].Time
		}
		best := r.bestLap()
		if best == "" {
			best = "-"
		} else {
			best = m.styles.BestLap.Render(best)
		}

		fmt.Fprintf(&b, "%s %-8s %-34s %-12s %s\n",
			name,
			m.styles.Value.Render(r.Channel),
			m.laps.View(len(r.Laps), m.maxRounds),
			last,
			best,
		)
	}
	return m.styles.Content.Render(b.String())
}

func (m Model) renderTitleBar() string {
	var parts []string
	parts = append(parts, m.styles.Title.Render("RaceTracker"))
	if m.errorMsg != "" {
		parts = append(parts, m.styles.StatusOffline.Render("●"))
	} else {
		parts = append(parts, m.styles.StatusOnline.Render("●"))
	}
	parts = append(parts, m.styles.Muted.Render(m.deviceID))
	if m.battery > 0 {
		parts = append(parts, fmt.Sprintf("🔋 %d%%", m.battery))
	}
	return strings.Join(parts, "  ")
}

func (m Model) renderStatusBar() string {
	var parts []string

	parts = append(parts, m.styles.StatusKey.Render("heat")+m.styles.StatusValue.Render(m.opts.HeatID))
	parts = append(parts, m.styles.StatusKey.Render("start")+m.styles.StatusValue.Render(string(m.opts.Style)))

	switch m.state {
	case stateStarting, stateStopping:
		parts = append(parts, m.spinner.View()+" "+m.styles.Warning.Render(m.statusMsg))
	case stateRacing:
		elapsed := time.Since(m.startedAt).Truncate(time.Second)
		status := m.statusMsg
		if m.opts.Style == protocol.Flyby && !m.crossed {
			status = "Waiting for first pass"
		}
		parts = append(parts, m.styles.Success.Render(status), m.styles.Muted.Render(elapsed.String()))
	default:
		if m.statusMsg != "" {
			parts = append(parts, m.styles.Value.Render(m.statusMsg))
		}
	}

	line := strings.Join(parts, " ")
	if m.errorMsg != "" {
		line += "\n" + m.styles.Error.Render(m.errorMsg)
	}
	return m.styles.StatusBar.Render(line)
}
