package view

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/spendtrack/internal/category"
	"github.com/MrJamesThe3rd/spendtrack/internal/export"
	"github.com/MrJamesThe3rd/spendtrack/internal/transaction"
)

const (
	exportTimeout = 2 * time.Minute
	exportDir     = "./exports"
)

type exportStep int

const (
	exportStepRange exportStep = iota
	exportStepOptions
	exportStepRunning
	exportStepDone
)

// exportOptions is bound to the options form.
type exportOptions struct {
	CategoryID uuid.UUID
	Dir        string
}

// ExportModel writes the active transactions of a range, optionally a
// single category, to a dated CSV file.
type ExportModel struct {
	exportService *export.Service
	catService    *category.Service

	step       exportStep
	picker     TimeframePicker
	window     TimeframeSelectedMsg
	categories []*category.Category

	form    *huh.Form
	opts    *exportOptions
	spinner spinner.Model

	result exportResultMsg
	now    func() time.Time
}

func NewExportModel(expSvc *export.Service, catSvc *category.Service) ExportModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = accentStyle

	return ExportModel{
		exportService: expSvc,
		catService:    catSvc,
		picker:        NewTimeframePicker(TimeframeThisMonth),
		spinner:       s,
		now:           time.Now,
	}
}

func (m ExportModel) Title() string { return "Export Transactions" }

func (m ExportModel) ShortHelp() string {
	switch m.step {
	case exportStepRunning:
		return "Exporting..."
	case exportStepDone:
		return "Esc: back to menu"
	}

	return "Esc: back | Enter: confirm"
}

func (m ExportModel) Init() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		cats, err := m.catService.List(ctx)
		return exportCategoriesMsg{categories: cats, err: err}
	}
}

func (m ExportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case exportCategoriesMsg:
		if msg.err != nil {
			m.step = exportStepDone
			m.result = exportResultMsg{err: msg.err}

			return m, nil
		}

		m.categories = msg.categories

		return m, nil

	case TimeframeSelectedMsg:
		m.window = msg
		m.opts = &exportOptions{Dir: exportDir}
		m.form = m.optionsForm()
		m.step = exportStepOptions

		return m, m.form.Init()

	case exportResultMsg:
		m.step = exportStepDone
		m.result = msg

		return m, nil
	}

	key, isKey := msg.(tea.KeyMsg)
	esc := isKey && key.Type == tea.KeyEsc

	switch m.step {
	case exportStepRange:
		if esc && m.picker.IsSelecting() {
			return m, Back
		}

		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)

		return m, cmd

	case exportStepOptions:
		if esc {
			m.step = exportStepRange
			m.picker.Reset()

			return m, nil
		}

		return m.updateOptions(msg)

	case exportStepRunning:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd

	case exportStepDone:
		if esc {
			return m, Back
		}
	}

	return m, nil
}

func (m ExportModel) updateOptions(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	m.step = exportStepRunning

	return m, tea.Batch(m.spinner.Tick, m.runCmd())
}

func (m ExportModel) optionsForm() *huh.Form {
	options := []huh.Option[uuid.UUID]{huh.NewOption("All categories", uuid.Nil)}
	for _, c := range m.categories {
		options = append(options, huh.NewOption(c.Name, c.ID))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[uuid.UUID]().
				Title("Category").
				Options(options...).
				Value(&m.opts.CategoryID),
			huh.NewInput().
				Title("Output directory").
				Description("Created if missing").
				Placeholder(exportDir).
				Value(&m.opts.Dir),
		),
	).WithWidth(50).WithShowHelp(false)
}

func (m ExportModel) View() string {
	switch m.step {
	case exportStepRange:
		return frameStyle.Render(m.picker.View())

	case exportStepOptions:
		return frameStyle.Render(fmt.Sprintf("Exporting %s\n\n%s", m.window.Label(), m.form.View()))

	case exportStepRunning:
		return frameStyle.Render(m.spinner.View() + " Exporting transactions...")

	case exportStepDone:
		if m.result.err != nil {
			return outcome(fmt.Sprintf("Error: %v", m.result.err), m.result.err)
		}

		return outcome("Export complete",
			nil,
			fmt.Sprintf("%d transactions (%s) written to %s", m.result.count, m.window.Label(), m.result.file),
			"",
			m.result.digest,
		)
	}

	return ""
}

type exportCategoriesMsg struct {
	categories []*category.Category
	err        error
}

type exportResultMsg struct {
	file   string
	count  int
	digest string
	err    error
}

func (m ExportModel) filter() export.Filter {
	f := export.Filter{SummaryFilter: transaction.SummaryFilter{
		FromDate: m.window.From,
		ToDate:   m.window.To,
	}}

	if m.opts.CategoryID != uuid.Nil {
		id := m.opts.CategoryID
		f.CategoryID = &id
	}

	return f
}

func (m ExportModel) runCmd() tea.Cmd {
	filter := m.filter()

	dir := strings.TrimSpace(m.opts.Dir)
	if dir == "" {
		dir = exportDir
	}

	path := filepath.Join(dir, fmt.Sprintf("spendtrack_%s.csv", m.now().Format("20060102")))

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(baseCtx, exportTimeout)
		defer cancel()

		count, err := writeExport(ctx, m.exportService, path, filter)
		if err != nil {
			return exportResultMsg{err: err}
		}

		txs, err := m.exportService.Collect(ctx, filter)
		if err != nil {
			return exportResultMsg{err: err}
		}

		return exportResultMsg{file: path, count: count, digest: export.Digest(txs)}
	}
}

func writeExport(ctx context.Context, svc *export.Service, path string, filter export.Filter) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}

	count, err := svc.WriteCSV(ctx, f, filter)
	if cerr := f.Close(); err == nil {
		err = cerr
	}

	return count, err
}
