package view

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/spendtrack/internal/category"
	"github.com/MrJamesThe3rd/spendtrack/internal/importer"
	"github.com/MrJamesThe3rd/spendtrack/internal/transaction"
)

const importTimeout = 2 * time.Minute

type importState int

const (
	importStateDefaultCategory importState = iota
	importStateFilePick
	importStateImporting
	importStatePreview
	importStateResult
)

type ImportModel struct {
	importService *importer.Service
	catService    *category.Service

	state      importState
	form       *huh.Form
	filePicker filepicker.Model
	categories map[uuid.UUID]string

	defaultCategory *uuid.UUID
	path            string
	preview         list.Model

	status string
	err    error
}

func NewImportModel(impSvc *importer.Service, catSvc *category.Service) ImportModel {
	fp := filepicker.New()
	fp.CurrentDirectory, _ = os.Getwd()
	fp.AllowedTypes = []string{".csv", ".txt"}
	fp.ShowHidden = false
	fp.DirAllowed = false
	fp.FileAllowed = true
	fp.SetHeight(15)

	return ImportModel{
		importService: impSvc,
		catService:    catSvc,
		filePicker:    fp,
	}
}

func (m ImportModel) Title() string { return "Import Transactions" }

func (m ImportModel) ShortHelp() string {
	switch m.state {
	case importStatePreview:
		return "Enter: import all | Esc: cancel"
	}

	return "Esc: back | Enter: select"
}

func (m ImportModel) Init() tea.Cmd {
	return m.loadCategoriesCmd()
}

func (m ImportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyEsc {
			return m.handleEsc()
		}

		if m.state == importStatePreview {
			return m.updatePreview(msg)
		}

	case importCategoriesMsg:
		if msg.err != nil {
			m.state = importStateResult
			m.err = msg.err
			m.status = fmt.Sprintf("Error: %v", msg.err)

			return m, nil
		}

		return m.enterDefaultCategory(msg.categories)

	case importPreviewMsg:
		if msg.err != nil {
			m.state = importStateResult
			m.err = msg.err
			m.status = fmt.Sprintf("Error: %v", msg.err)

			return m, nil
		}

		if len(msg.result.Params) == 0 {
			m.state = importStateResult
			m.status = "The file has no transactions."

			return m, nil
		}

		items := make([]list.Item, len(msg.result.Params))
		for i, p := range msg.result.Params {
			items[i] = previewItem{params: p, category: m.categoryLabel(p.CategoryID)}
		}

		m.preview = list.New(items, previewDelegate{}, 80, 20)
		m.preview.Title = fmt.Sprintf("%s file: %d transactions", msg.result.Format, len(items))
		m.preview.SetShowStatusBar(true)
		m.preview.SetFilteringEnabled(false)
		m.preview.SetShowHelp(false)
		m.state = importStatePreview

		return m, nil

	case importDoneMsg:
		m.state = importStateResult
		if msg.err != nil {
			m.err = msg.err
			m.status = fmt.Sprintf("Error: %v", msg.err)

			return m, nil
		}

		m.status = fmt.Sprintf("Imported %d transactions.", msg.count)

		return m, nil
	}

	switch m.state {
	case importStateDefaultCategory:
		return m.updateDefaultCategory(msg)
	case importStateFilePick:
		return m.updateFilePick(msg)
	}

	return m, nil
}

func (m ImportModel) handleEsc() (tea.Model, tea.Cmd) {
	switch m.state {
	case importStateFilePick, importStatePreview, importStateResult:
		m.state = importStateDefaultCategory
		m.err = nil
		m.status = ""

		return m, m.loadCategoriesCmd()
	}

	return m, Back
}

func (m ImportModel) enterDefaultCategory(cats []*category.Category) (tea.Model, tea.Cmd) {
	m.categories = make(map[uuid.UUID]string, len(cats))

	options := []huh.Option[uuid.UUID]{huh.NewOption("(none)", uuid.Nil)}
	for _, c := range cats {
		m.categories[c.ID] = c.Name
		options = append(options, huh.NewOption(c.Name, c.ID))
	}

	m.defaultCategory = new(uuid.UUID)
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[uuid.UUID]().
				Title("Default category").
				Description("Used for rows no category name or rule resolves.").
				Options(options...).
				Value(m.defaultCategory),
		),
	).WithWidth(60).WithShowHelp(false)

	m.state = importStateDefaultCategory

	return m, m.form.Init()
}

func (m ImportModel) updateDefaultCategory(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	m.state = importStateFilePick

	return m, m.filePicker.Init()
}

func (m ImportModel) updateFilePick(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.filePicker, cmd = m.filePicker.Update(msg)

	if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
		m.path = path
		m.state = importStateImporting
		m.status = fmt.Sprintf("Reading %s...", path)

		return m, m.importCmd(true)
	}

	return m, cmd
}

func (m ImportModel) updatePreview(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyEnter {
		m.state = importStateImporting
		m.status = fmt.Sprintf("Importing from %s...", m.path)

		return m, m.importCmd(false)
	}

	var cmd tea.Cmd
	m.preview, cmd = m.preview.Update(msg)

	return m, cmd
}

func (m ImportModel) View() string {
	switch m.state {
	case importStateDefaultCategory:
		if m.form == nil {
			return frameStyle.Render("Loading categories...")
		}
		return frameStyle.Render(m.form.View())
	case importStateFilePick:
		return frameStyle.Render("Select file to import:\n\n" + m.filePicker.View())
	case importStateImporting:
		return frameStyle.Render(m.status)
	case importStatePreview:
		return frameStyle.Render(m.preview.View())
	case importStateResult:
		return outcome(m.status, m.err)
	}

	return ""
}

func (m ImportModel) categoryLabel(id *uuid.UUID) string {
	if id == nil {
		return "-"
	}

	if name, ok := m.categories[*id]; ok {
		return name
	}

	return id.String()
}

// Messages

type importCategoriesMsg struct {
	categories []*category.Category
	err        error
}

type importPreviewMsg struct {
	result *importer.Result
	err    error
}

type importDoneMsg struct {
	count int
	err   error
}

func (m ImportModel) loadCategoriesCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		cats, err := m.catService.List(ctx)
		return importCategoriesMsg{categories: cats, err: err}
	}
}

// importCmd runs the importer against the selected file. A dry run only
// resolves categories so the rows can be reviewed first.
func (m ImportModel) importCmd(dryRun bool) tea.Cmd {
	path := m.path
	opts := importer.Options{DryRun: dryRun}

	if m.defaultCategory != nil && *m.defaultCategory != uuid.Nil {
		id := *m.defaultCategory
		opts.DefaultCategoryID = &id
	}

	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			if dryRun {
				return importPreviewMsg{err: err}
			}
			return importDoneMsg{err: err}
		}
		defer f.Close()

		ctx, cancel := context.WithTimeout(baseCtx, importTimeout)
		defer cancel()

		result, err := m.importService.Import(ctx, f, opts)

		if dryRun {
			return importPreviewMsg{result: result, err: err}
		}

		if err != nil {
			return importDoneMsg{err: err}
		}

		return importDoneMsg{count: len(result.Created)}
	}
}

// Preview list item

type previewItem struct {
	params   transaction.CreateParams
	category string
}

func (i previewItem) Title() string       { return i.params.Description }
func (i previewItem) Description() string { return i.category }
func (i previewItem) FilterValue() string { return i.params.Description }

type previewDelegate struct{}

func (d previewDelegate) Height() int                             { return 1 }
func (d previewDelegate) Spacing() int                            { return 0 }
func (d previewDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d previewDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	item, ok := listItem.(previewItem)
	if !ok {
		return
	}

	cursor := "  "
	if index == m.Index() {
		cursor = "> "
	}

	p := item.params

	fmt.Fprintf(w, "%s%s  %10s  %10s  %-16s %s",
		cursor,
		FormatDate(p.Date),
		FormatAmount(p.Credited),
		FormatAmount(p.Debited),
		item.category,
		p.Description,
	)
}
