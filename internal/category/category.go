package category

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultColor  = "#6366f1"
	MaxNameLength = 100
)

var (
	ErrNotFound     = errors.New("category not found")
	ErrInvalidName  = errors.New("category name must be 1 to 100 characters")
	ErrInvalidColor = errors.New("category color must be a #rrggbb hex value")
	ErrDuplicate    = errors.New("an active category with that name already exists")
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type Category struct {
	ID        uuid.UUID
	Name      string
	Color     string
	Active    bool
	CreatedAt time.Time
}

//go:generate mockgen -source=category.go -destination=repository_mock.go -package=category
type Repository interface {
	ListActive(ctx context.Context) ([]*Category, error)
	Get(ctx context.Context, id uuid.UUID) (*Category, error)
	FindByName(ctx context.Context, name string) (*Category, error)
	Create(ctx context.Context, c *Category) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

type CreateParams struct {
	Name  string
	Color string
}

// List returns active categories ordered by name.
func (s *Service) List(ctx context.Context) ([]*Category, error) {
	return s.repo.ListActive(ctx)
}

// Get returns an active category.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Category, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !c.Active {
		return nil, ErrNotFound
	}

	return c, nil
}

// FindByName looks up an active category ignoring case and surrounding space.
func (s *Service) FindByName(ctx context.Context, name string) (*Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNotFound
	}

	return s.repo.FindByName(ctx, name)
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*Category, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" || len([]rune(name)) > MaxNameLength {
		return nil, ErrInvalidName
	}

	color := strings.TrimSpace(params.Color)
	if color == "" {
		color = DefaultColor
	}

	if !colorPattern.MatchString(color) {
		return nil, ErrInvalidColor
	}

	if _, err := s.repo.FindByName(ctx, name); err == nil {
		return nil, ErrDuplicate
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("checking category name: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating category id: %w", err)
	}

	c := &Category{
		ID:     id,
		Name:   name,
		Color:  strings.ToLower(color),
		Active: true,
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "category created", "id", c.ID, "name", c.Name)

	return c, nil
}

// Delete soft-deletes a category. Transactions keep their reference.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	if err := s.repo.Deactivate(ctx, id); err != nil {
		return err
	}

	slog.InfoContext(ctx, "category deleted", "id", id)

	return nil
}
