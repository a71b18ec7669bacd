// Package catalog holds the rules of the game catalog: what a valid entry is,
// when a create is a duplicate, how pages are cut and which fields a partial
// update may touch.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"gamecatalog/store"
)

var (
	ErrInvalidEntry = errors.New("creatorName, gameName and releaseDate must not be empty")
	ErrDuplicate    = errors.New("this game is already registered")
	ErrInvalidPage  = errors.New("page and limit must be at least 1")
	ErrEmptyCatalog = errors.New("no games registered yet")
	ErrNotFound     = errors.New("game not found")
)

type Service struct {
	store store.Store
}

func NewService(store store.Store) *Service {
	return &Service{store: store}
}

// Create registers a new entry unless an entry with the same creator, name
// and release date already exists. The lookup and the insert share one
// immediate transaction, so two identical concurrent creates yield one row.
func (s *Service) Create(ctx context.Context, req NewEntry) (*Entry, error) {
	if isBlank(req.CreatorName) || isBlank(req.GameName) || isBlank(req.ReleaseDate) {
		return nil, ErrInvalidEntry
	}

	fields := store.EntryFields{
		CreatorName: req.CreatorName,
		GameName:    req.GameName,
		ReleaseDate: req.ReleaseDate,
	}

	var created *Entry
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		existing, err := tx.FindByTriple(ctx, fields)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrDuplicate
		}

		id, err := tx.InsertEntry(ctx, fields)
		if err != nil {
			return err
		}
		created = fromStore(&store.Entry{ID: id, EntryFields: fields})
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, err
		}
		return nil, fmt.Errorf("create entry: %w", err)
	}
	return created, nil
}

// List returns one page of the catalog ordered by id. An empty catalog is an
// error; a page past the end of a non-empty catalog is not.
func (s *Service) List(ctx context.Context, page, limit int) (*Page, error) {
	if page < 1 || limit < 1 {
		return nil, ErrInvalidPage
	}

	result := &Page{Page: page, Limit: limit, Entries: []*Entry{}}
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		total, err := tx.CountEntries(ctx)
		if err != nil {
			return err
		}
		if total == 0 {
			return ErrEmptyCatalog
		}
		result.TotalCount = total

		offset, ok := pageOffset(page, limit)
		if !ok || offset >= total {
			return nil
		}

		entries, err := tx.ListEntries(ctx, offset, limit)
		if err != nil {
			return err
		}
		for _, e := range entries {
			result.Entries = append(result.Entries, fromStore(e))
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrEmptyCatalog) {
			return nil, err
		}
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return result, nil
}

// isBlank reports whether s is empty or whitespace only. Any other value,
// markup included, is a valid field and is stored as sent.
func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// pageOffset computes (page-1)*limit, reporting false on overflow.
func pageOffset(page, limit int) (int, bool) {
	if page-1 > math.MaxInt/limit {
		return 0, false
	}
	return (page - 1) * limit, true
}

// Update overwrites the fields present in patch. The duplicate rule of Create
// is not re-checked, so an update may leave two entries with the same triple.
func (s *Service) Update(ctx context.Context, id int64, patch EntryPatch) (*Entry, error) {
	for _, v := range []*string{patch.CreatorName, patch.GameName, patch.ReleaseDate} {
		if v != nil && isBlank(*v) {
			return nil, ErrInvalidEntry
		}
	}

	var updated *Entry
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		entry, err := tx.GetEntry(ctx, id)
		if err != nil {
			return err
		}
		if entry == nil {
			return ErrNotFound
		}

		if patch.CreatorName != nil {
			entry.CreatorName = *patch.CreatorName
		}
		if patch.GameName != nil {
			entry.GameName = *patch.GameName
		}
		if patch.ReleaseDate != nil {
			entry.ReleaseDate = *patch.ReleaseDate
		}

		if err := tx.UpdateEntry(ctx, entry); err != nil {
			return err
		}
		updated = fromStore(entry)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update entry %d: %w", id, err)
	}
	return updated, nil
}

// Delete removes the entry and returns it as it was before deletion.
func (s *Service) Delete(ctx context.Context, id int64) (*Entry, error) {
	var deleted *Entry
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		entry, err := tx.GetEntry(ctx, id)
		if err != nil {
			return err
		}
		if entry == nil {
			return ErrNotFound
		}
		if err := tx.DeleteEntry(ctx, id); err != nil {
			return err
		}
		deleted = fromStore(entry)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("delete entry %d: %w", id, err)
	}
	return deleted, nil
}

// Healthy reports whether the store answers.
func (s *Service) Healthy(ctx context.Context) error {
	return s.store.Ping(ctx)
}
