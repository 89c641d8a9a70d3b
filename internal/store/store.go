package store

import (
	"context"
	"errors"

	"carbonroute/internal/model"
)

// Store persists the supplier catalog and the agent action log. The agent
// loop is the only writer for actions; deploying multiple processes against
// one catalog requires moving that single-writer discipline into the store.
type Store interface {
	// Suppliers
	UpsertSuppliers(ctx context.Context, suppliers []model.Supplier) (int, error)
	ListSuppliers(ctx context.Context) ([]model.Supplier, error)
	GetSupplier(ctx context.Context, id string) (model.Supplier, error)

	// Agent actions
	InsertAction(ctx context.Context, a model.AgentAction) error
	UpdateAction(ctx context.Context, a model.AgentAction) error
	GetAction(ctx context.Context, id string) (model.AgentAction, error)
	ListPendingActions(ctx context.Context) ([]model.AgentAction, error)

	// Execution history (append-only; terminal actions land here)
	AppendHistory(ctx context.Context, a model.AgentAction) error
	ListHistory(ctx context.Context, limit int) ([]model.AgentAction, error)
}

var ErrNotFound = errors.New("not found")
