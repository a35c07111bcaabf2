// Package rules learns which category a bank description belongs to.
//
// A rule maps a pattern to a category. A description matches a rule when it
// contains the pattern, ignoring case; the longest matching pattern wins.
package rules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNoMatch      = errors.New("no rule matches description")
	ErrEmptyPattern = errors.New("rule pattern must not be empty")

	ErrUnknownCategory = errors.New("rule references an unknown category")
)

type Rule struct {
	ID         uuid.UUID
	Pattern    string
	CategoryID uuid.UUID
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

//go:generate mockgen -source=rules.go -destination=repository_mock.go -package=rules
type Repository interface {
	FindMatch(ctx context.Context, description string) (*Rule, error)
	Upsert(ctx context.Context, r *Rule) error
	List(ctx context.Context) ([]*Rule, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Suggest returns the category of the best rule for description.
// ok is false when no rule matches.
func (s *Service) Suggest(ctx context.Context, description string) (categoryID uuid.UUID, ok bool, err error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return uuid.Nil, false, nil
	}

	r, err := s.repo.FindMatch(ctx, description)
	if errors.Is(err, ErrNoMatch) {
		return uuid.Nil, false, nil
	}

	if err != nil {
		return uuid.Nil, false, err
	}

	return r.CategoryID, true, nil
}

// Learn remembers that descriptions containing pattern belong to categoryID.
// Learning an existing pattern again moves it to the new category.
func (s *Service) Learn(ctx context.Context, pattern string, categoryID uuid.UUID) (*Rule, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil, ErrEmptyPattern
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating rule id: %w", err)
	}

	r := &Rule{ID: id, Pattern: pattern, CategoryID: categoryID}
	if err := s.repo.Upsert(ctx, r); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "category rule learned", "pattern", r.Pattern, "category_id", r.CategoryID)

	return r, nil
}

func (s *Service) List(ctx context.Context) ([]*Rule, error) {
	return s.repo.List(ctx)
}
