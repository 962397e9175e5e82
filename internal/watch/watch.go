// Package watch is a Bubble Tea view of live flow for a set of devices.
package watch

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jrsteele09/go-flume-client/apierror"
	"github.com/jrsteele09/go-flume-client/internal/config"
	"github.com/jrsteele09/go-flume-client/usage"
	"golang.org/x/time/rate"
)

// FlowSource is the subset of flume.Client the view polls.
type FlowSource interface {
	GetCurrentFlow(ctx context.Context, deviceID string) (usage.FlowReading, error)
}

// Options configures the view.
type Options struct {
	Context  context.Context
	Source   FlowSource
	Devices  []string
	PollTick time.Duration

	// Limiter caps upstream calls, including manual refreshes. When nil one is
	// built from CallsPerHour with a burst of one call per device.
	Limiter      *rate.Limiter
	CallsPerHour int
}

type keyMap struct {
	Quit    key.Binding
	Refresh key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q", "esc"),
			key.WithHelp("q", "Quit"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Refresh now"),
		),
	}
}

type deviceState struct {
	reading     usage.FlowReading
	err         error
	updated     time.Time
	pausedUntil time.Time
	pending     bool
	deferred    bool // skipped because the call budget was spent
}

// Model is the watch view state.
type Model struct {
	ctx      context.Context
	source   FlowSource
	devices  []string
	pollTick time.Duration
	limiter  *rate.Limiter
	keys     keyMap
	spinner  spinner.Model
	state    map[string]*deviceState
	width    int
	now      func() time.Time
}

func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	pollTick := opts.PollTick
	if pollTick <= 0 {
		pollTick = 30 * time.Second
	}

	devices := append([]string(nil), opts.Devices...)
	sort.Strings(devices)
	st := make(map[string]*deviceState, len(devices))
	for _, id := range devices {
		st[id] = &deviceState{}
	}

	limiter := opts.Limiter
	if limiter == nil {
		perHour := opts.CallsPerHour
		if perHour <= 0 {
			perHour = config.DefaultCallsPerHour
		}
		limiter = rate.NewLimiter(rate.Every(time.Hour/time.Duration(perHour)), max(1, len(devices)))
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(accentColor)

	return Model{
		ctx:      ctx,
		source:   opts.Source,
		devices:  devices,
		pollTick: pollTick,
		limiter:  limiter,
		keys:     defaultKeyMap(),
		spinner:  sp,
		state:    st,
		now:      time.Now,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, func() tea.Msg { return tickMsg(m.now()) })
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			return m, m.fetchAll(true)
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.fetchAll(false), tickCmd(m.pollTick))

	case flowMsg:
		st, ok := m.state[msg.deviceID]
		if !ok {
			return m, nil
		}
		st.pending = false
		st.updated = m.now()
		st.err = msg.err
		if msg.err == nil {
			st.reading = msg.reading
			st.pausedUntil = time.Time{}
		} else if wait, limited := apierror.RetryAfter(msg.err); limited {
			if wait <= 0 {
				wait = 5 * time.Minute
			}
			st.pausedUntil = st.updated.Add(wait)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// fetchAll starts a poll for every device that is idle and not paused by a
// rate limit, as far as the call budget allows. force ignores the pause but
// not the budget. The least recently updated devices go first.
func (m Model) fetchAll(force bool) tea.Cmd {
	now := m.now()
	due := make([]string, 0, len(m.devices))
	for _, id := range m.devices {
		st := m.state[id]
		if st.pending || (!force && now.Before(st.pausedUntil)) {
			continue
		}
		due = append(due, id)
	}
	slices.SortStableFunc(due, func(a, b string) int {
		return m.state[a].updated.Compare(m.state[b].updated)
	})

	var cmds []tea.Cmd
	for _, id := range due {
		st := m.state[id]
		if !m.limiter.AllowN(now, 1) {
			st.deferred = true
			continue
		}
		st.deferred = false
		st.pending = true
		cmds = append(cmds, fetchFlowCmd(m.ctx, m.source, id))
	}
	return tea.Batch(cmds...)
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Flume live flow"))
	b.WriteString("\n\n")

	if len(m.devices) == 0 {
		b.WriteString(mutedStyle.Render("no devices"))
		b.WriteString("\n")
	}
	for _, id := range m.devices {
		b.WriteString(m.renderDevice(id, m.state[id]))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(fmt.Sprintf("%s  •  %s  •  polling every %s",
		m.keys.Quit.Help().Key+" "+m.keys.Quit.Help().Desc,
		m.keys.Refresh.Help().Key+" "+m.keys.Refresh.Help().Desc,
		m.pollTick)))
	return b.String()
}

func (m Model) renderDevice(id string, st *deviceState) string {
	label := deviceStyle.Render(id)
	deferred := ""
	if st.deferred {
		deferred = " " + mutedStyle.Render("(deferred, call quota reached)")
	}
	switch {
	case st.updated.IsZero():
		return fmt.Sprintf("%s %s waiting for first reading%s", label, m.spinner.View(), deferred)
	case st.err != nil && !st.pausedUntil.IsZero():
		return fmt.Sprintf("%s %s", label, warnStyle.Render("rate limited until "+st.pausedUntil.Format(time.Kitchen)))
	case st.err != nil:
		return fmt.Sprintf("%s %s", label, errorStyle.Render(st.err.Error()))
	}

	status := idleStyle.Render("○ idle")
	if st.reading.Active {
		status = flowingStyle.Render("● flowing")
	}
	at := st.reading.Datetime.Time
	if at.IsZero() {
		at = st.updated
	}
	line := fmt.Sprintf("%s %s %6.2f gpm  %s", label, status, st.reading.GPM, mutedStyle.Render(at.Local().Format("15:04:05")))
	if st.pending {
		line += " " + m.spinner.View()
	}
	return line + deferred
}

// Run starts the program and blocks until the user quits.
func Run(opts Options) error {
	p := tea.NewProgram(New(opts), tea.WithContext(optsContext(opts)))
	_, err := p.Run()
	return err
}

func optsContext(opts Options) context.Context {
	if opts.Context == nil {
		return context.Background()
	}
	return opts.Context
}

type tickMsg time.Time

type flowMsg struct {
	deviceID string
	reading  usage.FlowReading
	err      error
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchFlowCmd(ctx context.Context, source FlowSource, deviceID string) tea.Cmd {
	return func() tea.Msg {
		reading, err := source.GetCurrentFlow(ctx, deviceID)
		return flowMsg{deviceID: deviceID, reading: reading, err: err}
	}
}
