package view

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/spendtrack/internal/category"
	"github.com/MrJamesThe3rd/spendtrack/internal/rules"
	"github.com/MrJamesThe3rd/spendtrack/internal/transaction"
)

type categorizeState int

const (
	categorizeStateTimeframe categorizeState = iota
	categorizeStateList
	categorizeStateEditing
)

// txItem wraps a transaction to implement list.Item.
type txItem struct {
	tx *transaction.Transaction
}

func (i txItem) Title() string {
	cat := faintStyle.Render(fmt.Sprintf("[%s]", categoryName(i.tx)))

	return fmt.Sprintf("%s  %10s  %s  %s", FormatDate(i.tx.Date), FormatAmount(i.tx.Net()), cat, i.tx.Description)
}

func (i txItem) Description() string {
	if len(i.tx.Tags) == 0 {
		return ""
	}

	return "Tags: " + strings.Join(i.tx.Tags, ", ")
}

func (i txItem) FilterValue() string {
	return i.tx.Description
}

// CategorizeModel walks the transactions of a timeframe and assigns
// categories, optionally learning a rule from each choice.
type CategorizeModel struct {
	txService    *transaction.Service
	catService   *category.Service
	rulesService *rules.Service

	state           categorizeState
	timeframePicker TimeframePicker
	list            list.Model
	form            *huh.Form
	categories      []*category.Category
	selectedTx      *transaction.Transaction
	rangeMsg        TimeframeSelectedMsg
	suggested       bool

	loading bool
	status  string

	// Shared with the form across model copies.
	fields *categorizeFields
}

type categorizeFields struct {
	Category uuid.UUID
	Learn    bool
	Pattern  string
}

func NewCategorizeModel(txSvc *transaction.Service, catSvc *category.Service, rulesSvc *rules.Service) CategorizeModel {
	l := list.New([]list.Item{}, txItemDelegate{}, 0, 0)
	l.Title = "Transactions"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.SetShowHelp(true)

	return CategorizeModel{
		txService:       txSvc,
		catService:      catSvc,
		rulesService:    rulesSvc,
		timeframePicker: NewTimeframePicker(TimeframeThisWeek),
		list:            l,
	}
}

func (m CategorizeModel) Title() string { return "Categorize Transactions" }

func (m CategorizeModel) ShortHelp() string {
	switch m.state {
	case categorizeStateTimeframe:
		return "Esc: back | Enter: select"
	case categorizeStateList:
		return "Esc: back | Enter: categorize | /: filter"
	case categorizeStateEditing:
		return "Esc: cancel | Enter/Tab: navigate form"
	}

	return ""
}

func (m CategorizeModel) Init() tea.Cmd {
	return nil
}

func (m CategorizeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case TimeframeSelectedMsg:
		m.rangeMsg = msg
		m.loading = true
		m.state = categorizeStateList
		m.list.Title = "Transactions: " + msg.Label()

		return m, m.loadCmd()

	case categorizeLoadMsg:
		m.loading = false
		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
			return m, nil
		}

		m.categories = msg.categories
		m.refreshListItems(msg.txs)

		m.status = ""
		if len(msg.txs) == 0 {
			m.status = "No transactions found."
		}

		return m, nil

	case categorizeSuggestMsg:
		if m.state == categorizeStateEditing && msg.ok && m.fields.Category == uuid.Nil {
			m.fields.Category = msg.categoryID
			m.suggested = true
			return m.buildForm()
		}

		return m, nil

	case categorizeSaveMsg:
		m.state = categorizeStateList
		m.form = nil

		if msg.err != nil {
			m.status = fmt.Sprintf("Error saving: %v", msg.err)
			return m, nil
		}

		m.status = "Saved."
		if msg.learned != "" {
			m.status = fmt.Sprintf("Saved. Learned rule %q.", msg.learned)
		}

		return m, m.loadCmd()

	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width-4, msg.Height-8)
		return m, nil
	}

	switch m.state {
	case categorizeStateTimeframe:
		return m.updateTimeframe(msg)
	case categorizeStateList:
		return m.updateList(msg)
	case categorizeStateEditing:
		return m.updateEditing(msg)
	}

	return m, nil
}

func (m CategorizeModel) updateTimeframe(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if keyMsg.Type == tea.KeyEsc && m.timeframePicker.IsSelecting() {
			return m, Back
		}
	}

	var cmd tea.Cmd
	m.timeframePicker, cmd = m.timeframePicker.Update(msg)

	return m, cmd
}

func (m CategorizeModel) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.Type {
		case tea.KeyEsc:
			if m.list.FilterState() == list.Filtering {
				break // the list closes its filter
			}

			return m, Back
		case tea.KeyEnter:
			if m.list.FilterState() == list.Filtering {
				break // the list confirms its filter
			}

			return m.startEditing()
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)

	return m, cmd
}

func (m CategorizeModel) startEditing() (tea.Model, tea.Cmd) {
	selected, ok := m.list.SelectedItem().(txItem)
	if !ok {
		return m, nil
	}

	if len(m.categories) == 0 {
		m.status = "Create a category first."
		return m, nil
	}

	m.selectedTx = selected.tx
	m.fields = &categorizeFields{Pattern: selected.tx.Description}
	m.suggested = false

	if selected.tx.CategoryID != nil {
		m.fields.Category = *selected.tx.CategoryID
	}

	m.state = categorizeStateEditing

	model, cmd := m.buildForm()
	if m.fields.Category != uuid.Nil {
		return model, cmd
	}

	return model, tea.Batch(cmd, m.suggestCmd(selected.tx.Description))
}

func (m CategorizeModel) buildForm() (CategorizeModel, tea.Cmd) {
	options := make([]huh.Option[uuid.UUID], 0, len(m.categories))
	for _, c := range m.categories {
		options = append(options, huh.NewOption(c.Name, c.ID))
	}

	title := "Category"
	if m.suggested {
		title = "Category (suggested)"
	}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[uuid.UUID]().
				Key("category").
				Title(title).
				Options(options...).
				Value(&m.fields.Category),

			huh.NewConfirm().
				Key("learn").
				Title("Remember for similar descriptions?").
				Affirmative("Yes").
				Negative("No").
				Value(&m.fields.Learn),

			huh.NewInput().
				Key("pattern").
				Title("Rule pattern").
				Description("Descriptions containing this text get the category.").
				Value(&m.fields.Pattern),
		),
	).WithWidth(50).WithShowHelp(false)

	return m, m.form.Init()
}

func (m CategorizeModel) updateEditing(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if keyMsg.Type == tea.KeyEsc {
			m.state = categorizeStateList
			m.form = nil

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

func (m CategorizeModel) View() string {
	switch m.state {
	case categorizeStateTimeframe:
		return frameStyle.Render(m.timeframePicker.View())

	case categorizeStateList:
		if m.loading {
			return lipgloss.NewStyle().Padding(2).Render("Loading transactions...")
		}

		statusLine := ""
		if m.status != "" {
			statusLine = faintStyle.Render(m.status) + "\n"
		}

		return frameStyle.Render(statusLine + m.list.View())

	case categorizeStateEditing:
		if m.form == nil {
			return ""
		}

		return frameStyle.Render(
			m.txInfoView() + "\n" + m.form.View(),
		)
	}

	return ""
}

func (m CategorizeModel) txInfoView() string {
	if m.selectedTx == nil {
		return ""
	}

	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1).
		Render(fmt.Sprintf(
			"Date: %s  |  Credited: %s  |  Debited: %s\n%s",
			FormatDate(m.selectedTx.Date),
			FormatAmount(m.selectedTx.Credited),
			FormatAmount(m.selectedTx.Debited),
			m.selectedTx.Description,
		))
}

func (m *CategorizeModel) refreshListItems(txs []*transaction.Transaction) {
	items := make([]list.Item, len(txs))
	for i, tx := range txs {
		items[i] = txItem{tx: tx}
	}

	m.list.SetItems(items)
}

// Messages

type categorizeLoadMsg struct {
	txs        []*transaction.Transaction
	categories []*category.Category
	err        error
}

func (m CategorizeModel) loadCmd() tea.Cmd {
	filter := transaction.ListFilter{
		FromDate: m.rangeMsg.From,
		ToDate:   m.rangeMsg.To,
		Page:     1,
		Limit:    transaction.MaxLimit,
	}

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		cats, err := m.catService.List(ctx)
		if err != nil {
			return categorizeLoadMsg{err: err}
		}

		page, err := m.txService.List(ctx, filter)
		if err != nil {
			return categorizeLoadMsg{err: err}
		}

		return categorizeLoadMsg{txs: page.Transactions, categories: cats}
	}
}

type categorizeSuggestMsg struct {
	categoryID uuid.UUID
	ok         bool
}

func (m CategorizeModel) suggestCmd(description string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		id, ok, err := m.rulesService.Suggest(ctx, description)
		if err != nil {
			return categorizeSuggestMsg{}
		}

		return categorizeSuggestMsg{categoryID: id, ok: ok}
	}
}

type categorizeSaveMsg struct {
	learned string
	err     error
}

func (m CategorizeModel) saveCmd() tea.Cmd {
	tx := m.selectedTx
	categoryID := m.fields.Category
	learn := m.fields.Learn
	pattern := strings.TrimSpace(m.fields.Pattern)

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		if tx.CategoryID == nil || *tx.CategoryID != categoryID {
			if _, err := m.txService.Update(ctx, tx.ID, transaction.Patch{CategoryID: &categoryID}); err != nil {
				return categorizeSaveMsg{err: err}
			}
		}

		if !learn || pattern == "" {
			return categorizeSaveMsg{}
		}

		if _, err := m.rulesService.Learn(ctx, pattern, categoryID); err != nil {
			return categorizeSaveMsg{err: err}
		}

		return categorizeSaveMsg{learned: pattern}
	}
}

// txItemDelegate renders items in the list.
type txItemDelegate struct{}

func (d txItemDelegate) Height() int                             { return 2 }
func (d txItemDelegate) Spacing() int                            { return 0 }
func (d txItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d txItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	i, ok := item.(txItem)
	if !ok {
		return
	}

	title := i.Title()
	desc := i.Description()

	if index == m.Index() {
		title = accentStyle.Bold(true).Render("> " + title)
	}

	fmt.Fprintf(w, "  %s\n", title)

	if desc == "" {
		fmt.Fprintln(w)
		return
	}

	fmt.Fprintf(w, "    %s\n", faintStyle.Render(desc))
}
