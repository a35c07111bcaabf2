package view

import (
	"errors"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/MrJamesThe3rd/spendtrack/internal/transaction"
)

// Timeframe is one of the ranges offered by the picker.
type Timeframe int

const (
	TimeframeThisWeek Timeframe = iota
	TimeframeLastWeek
	TimeframeThisMonth
	TimeframeLastMonth
	TimeframeAll
	TimeframeCustom
)

// span computes an inclusive range from today's calendar date. A nil span
// covers the whole ledger.
type span func(today time.Time) (from, to time.Time)

var timeframes = [...]struct {
	label string
	span  span
}{
	TimeframeThisWeek: {"This Week", func(today time.Time) (time.Time, time.Time) {
		return today.AddDate(0, 0, -weekdayOffset(today)), today
	}},
	TimeframeLastWeek: {"Last Week", func(today time.Time) (time.Time, time.Time) {
		end := today.AddDate(0, 0, -weekdayOffset(today)-1)
		return end.AddDate(0, 0, -6), end
	}},
	TimeframeThisMonth: {"This Month", func(today time.Time) (time.Time, time.Time) {
		return monthStart(today), today
	}},
	TimeframeLastMonth: {"Last Month", func(today time.Time) (time.Time, time.Time) {
		end := monthStart(today).AddDate(0, 0, -1)
		return monthStart(end), end
	}},
	TimeframeAll:    {"All Time", nil},
	TimeframeCustom: {"Custom Range", nil},
}

func (t Timeframe) String() string {
	if t < 0 || int(t) >= len(timeframes) {
		return "Unknown"
	}

	return timeframes[t].label
}

// dateRange resolves tf relative to now. Both bounds are nil when tf has no
// fixed span.
func dateRange(tf Timeframe, now time.Time) (from, to *time.Time) {
	if tf < 0 || int(tf) >= len(timeframes) || timeframes[tf].span == nil {
		return nil, nil
	}

	start, end := timeframes[tf].span(transaction.DateOf(now))

	return &start, &end
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// weekdayOffset counts days since Monday.
func weekdayOffset(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// TimeframeSelectedMsg carries the chosen range. From and To are nil for
// the whole ledger.
type TimeframeSelectedMsg struct {
	From *time.Time
	To   *time.Time
}

func (m TimeframeSelectedMsg) Label() string {
	if m.From == nil || m.To == nil {
		return "All Time"
	}

	return FormatDate(*m.From) + " .. " + FormatDate(*m.To)
}

type customRange struct {
	Start string
	End   string
}

// TimeframePicker lists the preset ranges from a first entry onwards and
// falls back to a start/end form for a custom range.
type TimeframePicker struct {
	first  Timeframe
	cursor Timeframe

	custom *huh.Form
	values *customRange

	now func() time.Time
	err error
}

func NewTimeframePicker(first Timeframe) TimeframePicker {
	return TimeframePicker{first: first, cursor: first, now: time.Now}
}

func (m TimeframePicker) Init() tea.Cmd {
	return nil
}

func (m TimeframePicker) Update(msg tea.Msg) (TimeframePicker, tea.Cmd) {
	if m.custom != nil {
		return m.updateCustom(msg)
	}

	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "up", "k":
		if m.cursor > m.first {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < TimeframeCustom {
			m.cursor++
		}
	case "enter":
		if m.cursor == TimeframeCustom {
			return m.openCustom()
		}

		from, to := dateRange(m.cursor, m.now())

		return m, selected(from, to)
	}

	return m, nil
}

func (m TimeframePicker) openCustom() (TimeframePicker, tea.Cmd) {
	if m.values == nil {
		m.values = &customRange{}
	}

	m.custom = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Start date").Placeholder("YYYY-MM-DD").Validate(validateDate).Value(&m.values.Start),
			huh.NewInput().Title("End date").Placeholder("YYYY-MM-DD").Validate(validateDate).Value(&m.values.End),
		),
	).WithWidth(40).WithShowHelp(false)

	return m, m.custom.Init()
}

func (m TimeframePicker) updateCustom(msg tea.Msg) (TimeframePicker, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.Type == tea.KeyEsc {
		m.custom = nil
		m.err = nil

		return m, nil
	}

	form, cmd := m.custom.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.custom = f
	}

	if m.custom.State != huh.StateCompleted {
		return m, cmd
	}

	start, end, err := m.values.bounds()
	if err != nil {
		m.err = err
		return m.openCustom()
	}

	m.custom = nil
	m.err = nil

	return m, selected(&start, &end)
}

func (r *customRange) bounds() (start, end time.Time, err error) {
	start, err = time.Parse(time.DateOnly, strings.TrimSpace(r.Start))
	if err != nil {
		return start, end, errors.New("invalid start date")
	}

	end, err = time.Parse(time.DateOnly, strings.TrimSpace(r.End))
	if err != nil {
		return start, end, errors.New("invalid end date")
	}

	if start.After(end) {
		return start, end, errors.New("start date is after end date")
	}

	return start, end, nil
}

func selected(from, to *time.Time) tea.Cmd {
	return func() tea.Msg {
		return TimeframeSelectedMsg{From: from, To: to}
	}
}

func (m TimeframePicker) View() string {
	var b strings.Builder

	if m.custom != nil {
		b.WriteString("Custom range\n\n")
		b.WriteString(m.custom.View())
		b.WriteString(faintStyle.Render("\n(Esc for presets)"))
	} else {
		b.WriteString("Select timeframe\n\n")

		for tf := m.first; tf <= TimeframeCustom; tf++ {
			if tf == m.cursor {
				b.WriteString(activeStyle("> " + tf.String()))
			} else {
				b.WriteString("  " + tf.String())
			}
			b.WriteString("\n")
		}

		b.WriteString(faintStyle.Render("\n(Enter to select, Esc to go back)"))
	}

	if m.err != nil {
		b.WriteString("\n\n" + errorStyle.Render(m.err.Error()))
	}

	return b.String()
}

// IsSelecting reports whether the preset list is showing, so Esc belongs to
// the host screen.
func (m TimeframePicker) IsSelecting() bool {
	return m.custom == nil
}

func (m *TimeframePicker) Reset() {
	m.cursor = m.first
	m.custom = nil
	m.values = nil
	m.err = nil
}
