package view

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/spendtrack/internal/audit"
	"github.com/MrJamesThe3rd/spendtrack/internal/category"
	"github.com/MrJamesThe3rd/spendtrack/internal/money"
	"github.com/MrJamesThe3rd/spendtrack/internal/transaction"
)

type ledgerState int

const (
	ledgerStateBrowse ledgerState = iota
	ledgerStateForm
	ledgerStateConfirmDelete
	ledgerStateHistory
)

const ledgerPageSize = 20

var dateFilterLabels = []string{"All Time", "This Month", "Last Month"}

type LedgerModel struct {
	txService  *transaction.Service
	catService *category.Service

	state      ledgerState
	table      table.Model
	page       *transaction.Page
	categories []*category.Category
	summary    transaction.Summary

	form    *huh.Form
	fields  *txFields
	editing *transaction.Transaction
	confirm *bool
	history []audit.Entry

	categoryFilterIdx int
	dateFilterIdx     int
	filter            transaction.ListFilter

	loading bool
	err     error
	status  string
	now     func() time.Time
}

func NewLedgerModel(txSvc *transaction.Service, catSvc *category.Service) LedgerModel {
	columns := []table.Column{
		{Title: "Date", Width: 12},
		{Title: "Category", Width: 16},
		{Title: "Description", Width: 36},
		{Title: "Credited", Width: 12},
		{Title: "Debited", Width: 12},
		{Title: "Balance", Width: 14},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return LedgerModel{
		txService:  txSvc,
		catService: catSvc,
		table:      t,
		filter:     transaction.ListFilter{Page: 1, Limit: ledgerPageSize},
		loading:    true,
		now:        time.Now,
	}
}

func (m LedgerModel) Title() string { return "Ledger" }
func (m LedgerModel) ShortHelp() string {
	switch m.state {
	case ledgerStateForm:
		return "Navigate form | Esc: cancel"
	case ledgerStateConfirmDelete, ledgerStateHistory:
		return "Esc: close"
	}

	return "Esc: back | a: add | e: edit | x: delete | h: history | c: category | d: date | n/p: page | r: refresh"
}

func (m LedgerModel) Init() tea.Cmd {
	return tea.Batch(m.loadCategoriesCmd(), m.loadPageCmd())
}

func (m LedgerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ledgerCategoriesMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.categories = msg.categories
		m.refreshTable()
		return m, nil

	case ledgerPageMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.page = msg.page
		m.summary = msg.summary
		m.refreshTable()
		return m, nil

	case ledgerHistoryMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Error loading history: %v", msg.err)
			m.state = ledgerStateBrowse
			m.table.Focus()
			return m, nil
		}
		m.history = msg.entries
		return m, nil

	case ledgerSaveMsg:
		m.status = msg.status
		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
		}
		m.state = ledgerStateBrowse
		m.form = nil
		m.editing = nil
		m.table.Focus()
		return m, m.loadPageCmd()

	case tea.WindowSizeMsg:
		m.table.SetHeight(msg.Height - 12)
		return m, nil
	}

	switch m.state {
	case ledgerStateBrowse:
		return m.updateBrowse(msg)
	case ledgerStateForm:
		return m.updateForm(msg)
	case ledgerStateConfirmDelete:
		return m.updateConfirm(msg)
	case ledgerStateHistory:
		if keyMsg, ok := msg.(tea.KeyMsg); ok && (keyMsg.Type == tea.KeyEsc || keyMsg.String() == "h") {
			m.state = ledgerStateBrowse
			m.history = nil
			m.table.Focus()
		}
	}

	return m, nil
}

func (m LedgerModel) updateBrowse(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if ok {
		switch keyMsg.String() {
		case "esc":
			return m, Back
		case "r":
			m.loading = true
			return m, tea.Batch(m.loadCategoriesCmd(), m.loadPageCmd())
		case "a":
			return m.enterForm(nil)
		case "e":
			if tx := m.selected(); tx != nil {
				return m.enterForm(tx)
			}
		case "x":
			if tx := m.selected(); tx != nil {
				return m.enterConfirm(tx)
			}
		case "h":
			if tx := m.selected(); tx != nil {
				m.state = ledgerStateHistory
				m.editing = tx
				m.table.Blur()
				return m, m.loadHistoryCmd(tx.ID)
			}
		case "c":
			m.categoryFilterIdx = (m.categoryFilterIdx + 1) % (len(m.categories) + 1)
			m.applyFilter()
			return m, m.loadPageCmd()
		case "d":
			m.dateFilterIdx = (m.dateFilterIdx + 1) % len(dateFilterLabels)
			m.applyFilter()
			return m, m.loadPageCmd()
		case "n":
			if m.page != nil && m.filter.Page*m.filter.Limit < m.page.TotalCount {
				m.filter.Page++
				return m, m.loadPageCmd()
			}
		case "p":
			if m.filter.Page > 1 {
				m.filter.Page--
				return m, m.loadPageCmd()
			}
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m LedgerModel) selected() *transaction.Transaction {
	if m.page == nil {
		return nil
	}

	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.page.Transactions) {
		return nil
	}

	return m.page.Transactions[idx]
}

// enterForm opens the add form, or the edit form when tx is set.
func (m LedgerModel) enterForm(tx *transaction.Transaction) (tea.Model, tea.Cmd) {
	if len(m.categories) == 0 {
		m.status = "Create a category first."
		return m, nil
	}

	m.editing = tx
	fields := newTxFields(tx, m.now())
	if fields.CategoryID == uuid.Nil {
		fields.CategoryID = m.categories[0].ID
	}
	m.fields = &fields

	options := make([]huh.Option[uuid.UUID], 0, len(m.categories))
	for _, c := range m.categories {
		options = append(options, huh.NewOption(c.Name, c.ID))
	}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("date").
				Title("Date").
				Placeholder("YYYY-MM-DD").
				Value(&m.fields.Date).
				Validate(validateDate),

			huh.NewSelect[uuid.UUID]().
				Key("category").
				Title("Category").
				Options(options...).
				Value(&m.fields.CategoryID),

			huh.NewInput().
				Key("description").
				Title("Description").
				Value(&m.fields.Description).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("description cannot be empty")
					}
					return nil
				}),

			huh.NewInput().
				Key("credited").
				Title("Credited").
				Placeholder("0.00").
				Value(&m.fields.Credited).
				Validate(validateAmount),

			huh.NewInput().
				Key("debited").
				Title("Debited").
				Placeholder("0.00").
				Value(&m.fields.Debited).
				Validate(validateAmount),

			huh.NewInput().
				Key("tags").
				Title("Tags").
				Placeholder("comma separated").
				Value(&m.fields.Tags),

			huh.NewText().
				Key("notes").
				Title("Notes").
				Lines(3).
				Value(&m.fields.Notes),
		),
	).WithWidth(45).WithShowHelp(false)

	m.state = ledgerStateForm
	m.table.Blur()
	return m, m.form.Init()
}

func (m LedgerModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if keyMsg.Type == tea.KeyEsc {
			m.state = ledgerStateBrowse
			m.form = nil
			m.editing = nil
			m.table.Focus()
			return m, nil
		}
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	return m, m.saveCmd()
}

func (m LedgerModel) enterConfirm(tx *transaction.Transaction) (tea.Model, tea.Cmd) {
	m.editing = tx
	m.confirm = new(bool)
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete %q?", tx.Description)).
				Description("Later balances will be recomputed.").
				Affirmative("Delete").
				Negative("Keep").
				Value(m.confirm),
		),
	).WithWidth(45).WithShowHelp(false)

	m.state = ledgerStateConfirmDelete
	m.table.Blur()
	return m, m.form.Init()
}

func (m LedgerModel) updateConfirm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		m.state = ledgerStateBrowse
		m.form = nil
		m.editing = nil
		m.table.Focus()
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	if !*m.confirm {
		return m, func() tea.Msg { return ledgerSaveMsg{} }
	}

	return m, m.deleteCmd(m.editing.ID)
}

func (m LedgerModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading ledger...")
	}

	if m.err != nil {
		return outcome(fmt.Sprintf("Error: %v", m.err), m.err)
	}

	header := fmt.Sprintf(
		"Filter: [c] Category: %s | [d] Date: %s | Page %d of %d",
		activeStyle(m.categoryLabel()),
		activeStyle(dateFilterLabels[m.dateFilterIdx]),
		m.filter.Page,
		m.pageCount(),
	)

	totals := fmt.Sprintf(
		"%d transactions | Credited %s | Debited %s | Net %s",
		m.summary.Count,
		FormatAmount(m.summary.TotalCredited),
		FormatAmount(m.summary.TotalDebited),
		FormatAmount(m.summary.NetBalance),
	)

	tableView := boxStyle.Render(m.table.View())

	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(header),
		tableView,
		faintStyle.Render(totals),
	)

	if panel := m.panel(); panel != "" {
		content = lipgloss.JoinHorizontal(lipgloss.Top, content, panelStyle.Render(panel))
	}

	if m.status != "" {
		content = faintStyle.Render(m.status) + "\n" + content
	}

	return frameStyle.Render(content)
}

func (m LedgerModel) panel() string {
	switch m.state {
	case ledgerStateForm:
		title := "New Transaction"
		if m.editing != nil {
			title = "Edit Transaction"
		}
		return title + "\n\n" + m.form.View()

	case ledgerStateConfirmDelete:
		return m.form.View()

	case ledgerStateHistory:
		if m.history == nil {
			return "Loading history..."
		}
		return renderHistory(m.editing, m.history)
	}

	return ""
}

func renderHistory(tx *transaction.Transaction, entries []audit.Entry) string {
	var b strings.Builder

	fmt.Fprintf(&b, "History: %s\n\n", tx.Description)

	for _, e := range entries {
		fmt.Fprintf(&b, "%s  %s by %s\n",
			e.CreatedAt.Local().Format(time.DateTime), activeStyle(string(e.Action)), e.Actor)

		if e.Action == audit.ActionUpdate {
			for _, field := range audit.Diff(e.Before, e.After) {
				if field == "updated_at" {
					continue
				}
				fmt.Fprintf(&b, "    %s: %s -> %s\n", field, e.Before.Fields[field], e.After.Fields[field])
			}
		}
	}

	return b.String()
}

func (m LedgerModel) categoryLabel() string {
	if m.categoryFilterIdx == 0 || m.categoryFilterIdx > len(m.categories) {
		return "All"
	}

	return m.categories[m.categoryFilterIdx-1].Name
}

func (m LedgerModel) pageCount() int {
	if m.page == nil || m.page.TotalCount == 0 {
		return 1
	}

	return (m.page.TotalCount + m.filter.Limit - 1) / m.filter.Limit
}

func (m *LedgerModel) applyFilter() {
	m.filter.Page = 1

	m.filter.CategoryID = nil
	if m.categoryFilterIdx > 0 && m.categoryFilterIdx <= len(m.categories) {
		id := m.categories[m.categoryFilterIdx-1].ID
		m.filter.CategoryID = &id
	}

	tf := TimeframeAll
	switch m.dateFilterIdx {
	case 1:
		tf = TimeframeThisMonth
	case 2:
		tf = TimeframeLastMonth
	}

	m.filter.FromDate, m.filter.ToDate = dateRange(tf, m.now())
}

func (m *LedgerModel) refreshTable() {
	if m.page == nil {
		return
	}

	rows := make([]table.Row, 0, len(m.page.Transactions))
	for _, tx := range m.page.Transactions {
		rows = append(rows, table.Row{
			FormatDate(tx.Date),
			categoryName(tx),
			tx.Description,
			FormatAmount(tx.Credited),
			FormatAmount(tx.Debited),
			FormatAmount(tx.Balance),
		})
	}
	m.table.SetRows(rows)
}

func categoryName(tx *transaction.Transaction) string {
	if tx.Category == nil {
		return "-"
	}

	return tx.Category.Name
}

// txFields holds the string-typed form bindings for a transaction.
type txFields struct {
	Date        string
	CategoryID  uuid.UUID
	Description string
	Credited    string
	Debited     string
	Tags        string
	Notes       string
}

func newTxFields(tx *transaction.Transaction, now time.Time) txFields {
	if tx == nil {
		return txFields{Date: FormatDate(now), Credited: "0.00", Debited: "0.00"}
	}

	f := txFields{
		Date:        FormatDate(tx.Date),
		Description: tx.Description,
		Credited:    money.Format(tx.Credited),
		Debited:     money.Format(tx.Debited),
		Tags:        strings.Join(tx.Tags, ", "),
		Notes:       tx.Notes,
	}

	if tx.CategoryID != nil {
		f.CategoryID = *tx.CategoryID
	}

	return f
}

func (f txFields) createParams() (transaction.CreateParams, error) {
	date, err := time.Parse(time.DateOnly, strings.TrimSpace(f.Date))
	if err != nil {
		return transaction.CreateParams{}, fmt.Errorf("date: %w", err)
	}

	credited, err := parseAmount(f.Credited)
	if err != nil {
		return transaction.CreateParams{}, fmt.Errorf("credited: %w", err)
	}

	debited, err := parseAmount(f.Debited)
	if err != nil {
		return transaction.CreateParams{}, fmt.Errorf("debited: %w", err)
	}

	params := transaction.CreateParams{
		Date:        date,
		Description: strings.TrimSpace(f.Description),
		Credited:    credited,
		Debited:     debited,
		Tags:        splitTags(f.Tags),
		Notes:       f.Notes,
	}

	if f.CategoryID != uuid.Nil {
		id := f.CategoryID
		params.CategoryID = &id
	}

	return params, nil
}

// patch returns the changes between orig and the form. An empty patch
// means nothing was edited.
func (f txFields) patch(orig *transaction.Transaction) (transaction.Patch, error) {
	params, err := f.createParams()
	if err != nil {
		return transaction.Patch{}, err
	}

	var p transaction.Patch

	if !params.Date.Equal(orig.Date) {
		p.Date = &params.Date
	}

	if params.CategoryID != nil && (orig.CategoryID == nil || *orig.CategoryID != *params.CategoryID) {
		p.CategoryID = params.CategoryID
	}

	if params.Description != orig.Description {
		p.Description = &params.Description
	}

	if params.Credited != orig.Credited {
		p.Credited = &params.Credited
	}

	if params.Debited != orig.Debited {
		p.Debited = &params.Debited
	}

	if !slices.Equal(params.Tags, orig.Tags) {
		p.Tags = &params.Tags
	}

	if params.Notes != orig.Notes {
		p.Notes = &params.Notes
	}

	return p, nil
}

func parseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	return money.Parse(s)
}

func splitTags(s string) []string {
	var tags []string

	for tag := range strings.SplitSeq(s, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}

	return tags
}

func validateDate(s string) error {
	if _, err := time.Parse(time.DateOnly, strings.TrimSpace(s)); err != nil {
		return errors.New("date must be YYYY-MM-DD")
	}
	return nil
}

func validateAmount(s string) error {
	cents, err := parseAmount(s)
	if err != nil {
		return err
	}
	if cents < 0 {
		return errors.New("amount cannot be negative")
	}
	return nil
}

// Messages

type ledgerCategoriesMsg struct {
	categories []*category.Category
	err        error
}

func (m LedgerModel) loadCategoriesCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		cats, err := m.catService.List(ctx)
		return ledgerCategoriesMsg{categories: cats, err: err}
	}
}

type ledgerPageMsg struct {
	page    *transaction.Page
	summary transaction.Summary
	err     error
}

func (m LedgerModel) loadPageCmd() tea.Cmd {
	filter := m.filter

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		page, err := m.txService.List(ctx, filter)
		if err != nil {
			return ledgerPageMsg{err: err}
		}

		summary, err := m.txService.Summary(ctx, transaction.SummaryFilter{
			CategoryID: filter.CategoryID,
			FromDate:   filter.FromDate,
			ToDate:     filter.ToDate,
		})

		return ledgerPageMsg{page: page, summary: summary, err: err}
	}
}

type ledgerHistoryMsg struct {
	entries []audit.Entry
	err     error
}

func (m LedgerModel) loadHistoryCmd(id uuid.UUID) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		entries, err := m.txService.History(ctx, id)
		return ledgerHistoryMsg{entries: entries, err: err}
	}
}

type ledgerSaveMsg struct {
	status string
	err    error
}

func (m LedgerModel) saveCmd() tea.Cmd {
	fields := *m.fields
	orig := m.editing

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		if orig == nil {
			params, err := fields.createParams()
			if err != nil {
				return ledgerSaveMsg{err: err}
			}

			tx, err := m.txService.Create(ctx, params)
			if err != nil {
				return ledgerSaveMsg{err: err}
			}

			return ledgerSaveMsg{status: "Added, balance " + FormatAmount(tx.Balance)}
		}

		patch, err := fields.patch(orig)
		if err != nil {
			return ledgerSaveMsg{err: err}
		}

		if patch.IsEmpty() {
			return ledgerSaveMsg{status: "Nothing changed"}
		}

		tx, err := m.txService.Update(ctx, orig.ID, patch)
		if err != nil {
			return ledgerSaveMsg{err: err}
		}

		return ledgerSaveMsg{status: "Saved, balance " + FormatAmount(tx.Balance)}
	}
}

func (m LedgerModel) deleteCmd(id uuid.UUID) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		if err := m.txService.SoftDelete(ctx, id); err != nil {
			return ledgerSaveMsg{err: err}
		}

		return ledgerSaveMsg{status: "Deleted"}
	}
}
