package repository

import (
	"context"
	"database/sql"
	"time"

	"stove_control/internal/models"
)

type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*models.Operator, error)
}

// EventRepo is the append-only safety journal.
type EventRepo interface {
	Append(ctx context.Context, e models.SafetyEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.SafetyEvent, error)
}

type Repository struct {
	EventRepo EventRepo
	Auth      Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		EventRepo: NewEventSQLite(db),
		Auth:      NewOperatorRepository(db),
	}
}
