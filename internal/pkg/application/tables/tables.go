// Package tables implements the application layer of the table API
// simulator: an in-memory store of named tables holding records, with
// the subset of query semantics the client exercises.
package tables

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/lewisgf/snowclient/pkg/servicenow"
	"github.com/lewisgf/snowclient/pkg/servicenow/errors"
	"github.com/lewisgf/snowclient/pkg/servicenow/types"

	"github.com/google/uuid"
)

type RecordRetriever interface {
	RetrieveRecord(ctx context.Context, table, sysID string) (servicenow.Record, error)
}

type RecordCreator interface {
	CreateRecord(ctx context.Context, table string, record servicenow.Record) (servicenow.Record, error)
}

type RecordUpdater interface {
	UpdateRecord(ctx context.Context, table, sysID string, values servicenow.Record) (servicenow.Record, error)
}

type RecordDeleter interface {
	DeleteRecord(ctx context.Context, table, sysID string) error
}

type RecordQuerier interface {
	QueryRecords(ctx context.Context, table, filter string, limit int) (servicenow.RecordSet, error)
}

type TableManager interface {
	RecordRetriever
	RecordCreator
	RecordUpdater
	RecordDeleter
	RecordQuerier
}

type tableManager struct {
	mu     sync.RWMutex
	tables map[string][]servicenow.Record
}

// New creates an empty table manager, optionally seeded from a
// configuration.
func New(cfg *Config) TableManager {
	mgr := &tableManager{
		tables: map[string][]servicenow.Record{},
	}

	if cfg != nil {
		for _, seed := range cfg.Tables {
			for _, fields := range seed.Records {
				rec := servicenow.Record{}
				for field, value := range fields {
					rec[field] = value
				}
				mgr.insert(seed.Name, rec)
			}
		}
	}

	return mgr
}

func (m *tableManager) RetrieveRecord(ctx context.Context, table, sysID string) (servicenow.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, _, err := m.find(table, sysID)
	if err != nil {
		return nil, err
	}

	return clone(rec), nil
}

func (m *tableManager) CreateRecord(ctx context.Context, table string, record servicenow.Record) (servicenow.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return clone(m.insert(table, clone(record))), nil
}

func (m *tableManager) UpdateRecord(ctx context.Context, table, sysID string, values servicenow.Record) (servicenow.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, _, err := m.find(table, sysID)
	if err != nil {
		return nil, err
	}

	for field, value := range values {
		if field == servicenow.FieldSysID {
			continue
		}
		rec[field] = value
	}
	rec[servicenow.FieldUpdatedOn] = types.Now().AsUTC()

	return clone(rec), nil
}

func (m *tableManager) DeleteRecord(ctx context.Context, table, sysID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, idx, err := m.find(table, sysID)
	if err != nil {
		return err
	}

	m.tables[table] = append(m.tables[table][:idx], m.tables[table][idx+1:]...)
	return nil
}

func (m *tableManager) QueryRecords(ctx context.Context, table, filter string, limit int) (servicenow.RecordSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matches, err := parseFilter(filter)
	if err != nil {
		return nil, err
	}

	result := servicenow.RecordSet{}
	for _, rec := range m.tables[table] {
		if !matches(rec) {
			continue
		}
		result = append(result, clone(rec))
		if limit > 0 && len(result) == limit {
			break
		}
	}

	return result, nil
}

// insert assigns identity and bookkeeping fields. Callers hold the
// write lock.
func (m *tableManager) insert(table string, rec servicenow.Record) servicenow.Record {
	if rec.SysID() == "" {
		rec[servicenow.FieldSysID] = newSysID()
	}
	if rec.ClassName() == "" {
		rec[servicenow.FieldClassName] = table
	}

	now := types.Now().AsUTC()
	if rec.StringValue(servicenow.FieldCreatedOn) == "" {
		rec[servicenow.FieldCreatedOn] = now
	}
	rec[servicenow.FieldUpdatedOn] = now

	m.tables[table] = append(m.tables[table], rec)
	return rec
}

func (m *tableManager) find(table, sysID string) (servicenow.Record, int, error) {
	for idx, rec := range m.tables[table] {
		if rec.SysID() == sysID {
			return rec, idx, nil
		}
	}

	return nil, -1, errors.NewNotFoundError(
		fmt.Sprintf("no record %s in table %s", sysID, table),
	)
}

// parseFilter compiles an encoded query expression into a predicate.
// Supported syntax is equality terms joined by '^'. An empty
// expression matches everything.
func parseFilter(filter string) (func(servicenow.Record) bool, error) {
	if filter == "" {
		return func(servicenow.Record) bool { return true }, nil
	}

	type term struct {
		field string
		value string
	}

	terms := []term{}
	for _, expr := range strings.Split(filter, "^") {
		field, value, found := strings.Cut(expr, "=")
		if !found || field == "" {
			return nil, errors.NewBadRequestError(fmt.Sprintf("unsupported query term %q", expr))
		}
		terms = append(terms, term{field: field, value: value})
	}

	return func(rec servicenow.Record) bool {
		for _, t := range terms {
			if rec.StringValue(t.field) != t.value {
				return false
			}
		}
		return true
	}, nil
}

// sys_id values are 32 hex characters on the real service
func newSysID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func clone(rec servicenow.Record) servicenow.Record {
	copied := make(servicenow.Record, len(rec))
	for field, value := range rec {
		copied[field] = value
	}
	return copied
}
