package transaction

import (
	"strings"
	"time"

	"github.com/MrJamesThe3rd/spendtrack/internal/money"
)

func (p CreateParams) validate() *ValidationError {
	if p.Date.IsZero() {
		return &ValidationError{Field: "transaction_date", Reason: "is required"}
	}

	if p.CategoryID == nil {
		return &ValidationError{Field: "category_id", Reason: "is required"}
	}

	if strings.TrimSpace(p.Description) == "" {
		return &ValidationError{Field: "description", Reason: "is required"}
	}

	return validateAmounts(p.Credited, p.Debited)
}

func (p Patch) validate() *ValidationError {
	if p.IsEmpty() {
		return &ValidationError{Reason: "no fields to update"}
	}

	if p.Date != nil && p.Date.IsZero() {
		return &ValidationError{Field: "transaction_date", Reason: "must not be empty"}
	}

	if p.Description != nil && strings.TrimSpace(*p.Description) == "" {
		return &ValidationError{Field: "description", Reason: "must not be empty"}
	}

	if p.Credited != nil && *p.Credited < 0 {
		return &ValidationError{Field: "credited", Reason: "must not be negative"}
	}

	if p.Debited != nil && *p.Debited < 0 {
		return &ValidationError{Field: "debited", Reason: "must not be negative"}
	}

	return nil
}

// validateAmounts enforces non-negative sides with at least one strictly positive.
func validateAmounts(credited, debited int64) *ValidationError {
	if credited < 0 {
		return &ValidationError{Field: "credited", Reason: "must not be negative"}
	}

	if debited < 0 {
		return &ValidationError{Field: "debited", Reason: "must not be negative"}
	}

	if credited > money.MaxCents {
		return &ValidationError{Field: "credited", Reason: "exceeds " + money.Format(money.MaxCents)}
	}

	if debited > money.MaxCents {
		return &ValidationError{Field: "debited", Reason: "exceeds " + money.Format(money.MaxCents)}
	}

	if credited == 0 && debited == 0 {
		return &ValidationError{Field: "amount", Reason: "credited or debited must be positive"}
	}

	return nil
}

func validateRange(from, to *time.Time) *ValidationError {
	if from != nil && to != nil && from.After(*to) {
		return &ValidationError{Field: "from_date", Reason: "must not be after to_date"}
	}

	return nil
}

func (f ListFilter) normalized() (ListFilter, error) {
	if err := validateRange(f.FromDate, f.ToDate); err != nil {
		return f, err
	}

	if f.Page == 0 {
		f.Page = 1
	}

	if f.Page < 0 {
		return f, &ValidationError{Field: "page", Reason: "must be positive"}
	}

	if f.Limit < 0 {
		return f, &ValidationError{Field: "limit", Reason: "must not be negative"}
	}

	if f.Limit == 0 {
		f.Limit = DefaultLimit
	}

	f.Limit = min(f.Limit, MaxLimit)

	return f, nil
}

// normalizeTags trims tags and drops blanks and duplicates, keeping order.
func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))

	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}

		if _, dup := seen[tag]; dup {
			continue
		}

		seen[tag] = struct{}{}
		out = append(out, tag)
	}

	if len(out) == 0 {
		return nil
	}

	return out
}
