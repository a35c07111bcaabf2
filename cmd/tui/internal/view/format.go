package view

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/MrJamesThe3rd/spendtrack/internal/audit"
)

const dbTimeout = 5 * time.Second

var printer = message.NewPrinter(language.English)

// baseCtx carries the audit actor for every write made from the TUI.
var baseCtx = context.Background()

// SetActor names the user recorded in the audit log for TUI changes.
func SetActor(name string) {
	baseCtx = audit.WithActor(context.Background(), name)
}

// FormatAmount renders cents with thousands grouping, e.g. 123456 -> "1,234.56".
func FormatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}

	return sign + printer.Sprintf("%d", cents/100) + fmt.Sprintf(".%02d", cents%100)
}

// FormatDate formats a time.Time into YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}

// DbCtx returns a context with a standard timeout for database operations.
func DbCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(baseCtx, dbTimeout)
}
