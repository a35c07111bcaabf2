package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/spendtrack/cmd/tui/internal/view"
	"github.com/MrJamesThe3rd/spendtrack/internal/category"
	categoryStore "github.com/MrJamesThe3rd/spendtrack/internal/category/store"
	"github.com/MrJamesThe3rd/spendtrack/internal/config"
	"github.com/MrJamesThe3rd/spendtrack/internal/database"
	"github.com/MrJamesThe3rd/spendtrack/internal/export"
	"github.com/MrJamesThe3rd/spendtrack/internal/importer"
	"github.com/MrJamesThe3rd/spendtrack/internal/importer/cgd"
	"github.com/MrJamesThe3rd/spendtrack/internal/importer/native"
	"github.com/MrJamesThe3rd/spendtrack/internal/rules"
	rulesStore "github.com/MrJamesThe3rd/spendtrack/internal/rules/store"
	"github.com/MrJamesThe3rd/spendtrack/internal/transaction"
	txStore "github.com/MrJamesThe3rd/spendtrack/internal/transaction/store"
)

const logFile = "spendtrack-tui.log"

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	helpStyle  = lipgloss.NewStyle().Faint(true)
)

type services struct {
	transactions *transaction.Service
	categories   *category.Service
	rules        *rules.Service
	importer     *importer.Service
	export       *export.Service
}

func newServices(db *sql.DB) services {
	txSvc := transaction.NewService(txStore.New(db))
	catSvc := category.NewService(categoryStore.New(db))
	rulesSvc := rules.NewService(rulesStore.New(db))

	return services{
		transactions: txSvc,
		categories:   catSvc,
		rules:        rulesSvc,
		importer:     importer.NewService(txSvc, catSvc, rulesSvc, native.NewParser(), cgd.NewParser()),
		export:       export.NewService(txSvc),
	}
}

// menuEntry opens a fresh screen each time it is chosen.
type menuEntry struct {
	key   string
	label string
	open  func(services) view.Screen
}

var menu = []menuEntry{
	{"1", "Import Transactions", func(s services) view.Screen { return view.NewImportModel(s.importer, s.categories) }},
	{"2", "Categorize Transactions", func(s services) view.Screen {
		return view.NewCategorizeModel(s.transactions, s.categories, s.rules)
	}},
	{"3", "Ledger", func(s services) view.Screen { return view.NewLedgerModel(s.transactions, s.categories) }},
	{"4", "Export Transactions", func(s services) view.Screen { return view.NewExportModel(s.export, s.categories) }},
}

// model shows the menu while screen is nil.
type model struct {
	svc    services
	screen view.Screen
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if _, ok := msg.(view.BackMsg); ok {
		m.screen = nil
		return m, nil
	}

	if m.screen == nil {
		key, ok := msg.(tea.KeyMsg)
		if !ok {
			return m, nil
		}

		switch key.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}

		for _, e := range menu {
			if key.String() == e.key {
				m.screen = e.open(m.svc)
				return m, m.screen.Init()
			}
		}

		return m, nil
	}

	next, cmd := m.screen.Update(msg)
	if s, ok := next.(view.Screen); ok {
		m.screen = s
	}

	return m, cmd
}

func (m model) View() string {
	if m.screen == nil {
		var b strings.Builder

		b.WriteString(titleStyle.Render("Spendtrack") + "\n\n")
		for _, e := range menu {
			fmt.Fprintf(&b, "%s. %s\n", e.key, e.label)
		}
		b.WriteString("\nq. Quit")

		return lipgloss.NewStyle().Padding(2).Render(b.String())
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Padding(1, 1, 0).Render(titleStyle.Render(m.screen.Title())),
		m.screen.View(),
		lipgloss.NewStyle().PaddingLeft(1).Render(helpStyle.Render(m.screen.ShortHelp())),
	)
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// The terminal belongs to the program, so logs go to a file.
	f, err := tea.LogToFile(logFile, "tui")
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer f.Close()

	level, _ := cfg.Level()
	slog.SetDefault(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})))

	ctx := context.Background()

	db, err := database.New(ctx, cfg.ConnectionString(), database.PoolConfig{
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if u, err := user.Current(); err == nil {
		view.SetActor(u.Username)
	}

	p := tea.NewProgram(model{svc: newServices(db)})
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running tui: %w", err)
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		slog.Error("tui failed", "error", err)
		os.Exit(1)
	}
}
