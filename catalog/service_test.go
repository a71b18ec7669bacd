package catalog

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"gamecatalog/store"
)

func setupService(t *testing.T) *Service {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "jogos.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return NewService(s)
}

// untouchedStore fails the test if any transaction is opened.
type untouchedStore struct{ t *testing.T }

func (u untouchedStore) WithTx(context.Context, func(store.Tx) error) error {
	u.t.Error("store was accessed")
	return nil
}
func (u untouchedStore) Ping(context.Context) error { return nil }
func (u untouchedStore) Close() error               { return nil }

func ptr(s string) *string { return &s }

func mustCreate(t *testing.T, svc *Service, creator, game, date string) *Entry {
	t.Helper()
	e, err := svc.Create(context.Background(), NewEntry{CreatorName: creator, GameName: game, ReleaseDate: date})
	if err != nil {
		t.Fatalf("Create(%s) error = %v", game, err)
	}
	return e
}

func TestCreateThenList(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	created := mustCreate(t, svc, "Ana", "Orbit", "2024-01-01")
	if created.ID == 0 {
		t.Fatal("Create() returned id 0")
	}
	if created.GameName != "Orbit" {
		t.Errorf("Create() GameName = %q, want Orbit", created.GameName)
	}

	page, err := svc.List(ctx, 1, 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.Page != 1 || page.Limit != 10 || page.TotalCount != 1 {
		t.Errorf("List() = page %d limit %d total %d, want 1/10/1", page.Page, page.Limit, page.TotalCount)
	}
	if len(page.Entries) != 1 {
		t.Fatalf("List() entries = %d, want 1", len(page.Entries))
	}
	if *page.Entries[0] != *created {
		t.Errorf("List() entry = %+v, want %+v", page.Entries[0], created)
	}
}

func TestCreateDuplicate(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	mustCreate(t, svc, "Ana", "Orbit", "2024-01-01")
	_, err := svc.Create(ctx, NewEntry{CreatorName: "Ana", GameName: "Orbit", ReleaseDate: "2024-01-01"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second Create() error = %v, want ErrDuplicate", err)
	}

	page, err := svc.List(ctx, 1, 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.TotalCount != 1 {
		t.Errorf("TotalCount = %d, want 1", page.TotalCount)
	}
}

func TestCreateMatchesExactly(t *testing.T) {
	svc := setupService(t)

	mustCreate(t, svc, "Ana", "Orbit", "2024-01-01")
	mustCreate(t, svc, "ana", "Orbit", "2024-01-01")
	mustCreate(t, svc, "Ana", " Orbit", "2024-01-01")
	mustCreate(t, svc, "Ana", "Orbit", "01/01/2024")
}

func TestCreateConcurrentDuplicates(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		dups      int
		others    []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(ctx, NewEntry{CreatorName: "Ana", GameName: "Orbit", ReleaseDate: "2024-01-01"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrDuplicate):
				dups++
			default:
				others = append(others, err)
			}
		}()
	}
	wg.Wait()

	if len(others) > 0 {
		t.Fatalf("unexpected errors: %v", others)
	}
	if successes != 1 || dups != workers-1 {
		t.Errorf("successes = %d, duplicates = %d; want 1 and %d", successes, dups, workers-1)
	}

	page, err := svc.List(ctx, 1, 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.TotalCount != 1 {
		t.Errorf("TotalCount = %d, want 1", page.TotalCount)
	}
}

func TestCreateRejectsBlankFields(t *testing.T) {
	svc := NewService(untouchedStore{t})

	tests := []struct {
		name string
		req  NewEntry
	}{
		{"missing creator", NewEntry{GameName: "Orbit", ReleaseDate: "2024"}},
		{"missing game", NewEntry{CreatorName: "Ana", ReleaseDate: "2024"}},
		{"missing date", NewEntry{CreatorName: "Ana", GameName: "Orbit"}},
		{"whitespace game", NewEntry{CreatorName: "Ana", GameName: "   ", ReleaseDate: "2024"}},
		{"tab and newline date", NewEntry{CreatorName: "Ana", GameName: "Orbit", ReleaseDate: "\t\n"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), tt.req); !errors.Is(err, ErrInvalidEntry) {
				t.Errorf("Create() error = %v, want ErrInvalidEntry", err)
			}
		})
	}
}

func TestCreateKeepsValuesVerbatim(t *testing.T) {
	svc := setupService(t)

	e := mustCreate(t, svc, "Tom & Jerry <Studio>", "  Orbit  ", "2024-01-01")
	page, err := svc.List(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	got := page.Entries[0]
	if got.CreatorName != "Tom & Jerry <Studio>" || got.GameName != "  Orbit  " {
		t.Errorf("stored entry = %+v, want values as submitted (%+v)", got, e)
	}
}

func TestCreateAcceptsTagLikeValues(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	names := []string{"<Untitled>", "<Game>", "<br>", "<b></b>"}
	for _, name := range names {
		if _, err := svc.Create(ctx, NewEntry{CreatorName: "Ana", GameName: name, ReleaseDate: "2024"}); err != nil {
			t.Fatalf("Create(%q) error = %v", name, err)
		}
	}

	page, err := svc.List(ctx, 1, 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(page.Entries) != len(names) {
		t.Fatalf("len(Entries) = %d, want %d", len(page.Entries), len(names))
	}
	for i, name := range names {
		if page.Entries[i].GameName != name {
			t.Errorf("Entries[%d].GameName = %q, want %q", i, page.Entries[i].GameName, name)
		}
	}
}

func TestUpdateAcceptsTagLikeValue(t *testing.T) {
	svc := setupService(t)
	e := mustCreate(t, svc, "Ana", "Orbit", "2024-01-01")

	updated, err := svc.Update(context.Background(), e.ID, EntryPatch{ReleaseDate: ptr("<TBA>")})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.ReleaseDate != "<TBA>" {
		t.Errorf("ReleaseDate = %q, want %q", updated.ReleaseDate, "<TBA>")
	}
}

func TestListRejectsInvalidPaging(t *testing.T) {
	svc := NewService(untouchedStore{t})

	for _, tc := range []struct{ page, limit int }{{0, 10}, {-1, 10}, {1, 0}, {1, -5}} {
		if _, err := svc.List(context.Background(), tc.page, tc.limit); !errors.Is(err, ErrInvalidPage) {
			t.Errorf("List(%d, %d) error = %v, want ErrInvalidPage", tc.page, tc.limit, err)
		}
	}
}

func TestListEmptyCatalog(t *testing.T) {
	svc := setupService(t)

	if _, err := svc.List(context.Background(), 1, 10); !errors.Is(err, ErrEmptyCatalog) {
		t.Fatalf("List() error = %v, want ErrEmptyCatalog", err)
	}
}

func TestListPagination(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	var ids []int64
	for _, g := range []string{"A", "B", "C", "D", "E"} {
		ids = append(ids, mustCreate(t, svc, "Ana", g, "2024").ID)
	}

	tests := []struct {
		page, limit int
		want        []int64
	}{
		{1, 2, ids[0:2]},
		{2, 2, ids[2:4]},
		{3, 2, ids[4:5]},
		{4, 2, nil},
		{1, 100, ids},
		{math.MaxInt, math.MaxInt, nil},
	}

	for _, tt := range tests {
		page, err := svc.List(ctx, tt.page, tt.limit)
		if err != nil {
			t.Fatalf("List(%d, %d) error = %v", tt.page, tt.limit, err)
		}
		if page.TotalCount != 5 {
			t.Errorf("List(%d, %d) TotalCount = %d, want 5", tt.page, tt.limit, page.TotalCount)
		}
		if page.Entries == nil {
			t.Errorf("List(%d, %d) Entries = nil, want non-nil", tt.page, tt.limit)
		}
		var got []int64
		for _, e := range page.Entries {
			got = append(got, e.ID)
		}
		if len(got) != len(tt.want) {
			t.Errorf("List(%d, %d) ids = %v, want %v", tt.page, tt.limit, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("List(%d, %d) ids = %v, want %v", tt.page, tt.limit, got, tt.want)
				break
			}
		}
	}
}

func TestUpdatePartial(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	e := mustCreate(t, svc, "Ana", "Orbit", "2024-01-01")

	updated, err := svc.Update(ctx, e.ID, EntryPatch{GameName: ptr("Orbit II")})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	want := Entry{ID: e.ID, GameName: "Orbit II", CreatorName: "Ana", ReleaseDate: "2024-01-01"}
	if *updated != want {
		t.Errorf("Update() = %+v, want %+v", updated, want)
	}

	page, err := svc.List(ctx, 1, 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if *page.Entries[0] != want {
		t.Errorf("stored = %+v, want %+v", page.Entries[0], want)
	}
}

func TestUpdateEmptyPatchIsNoop(t *testing.T) {
	svc := setupService(t)
	e := mustCreate(t, svc, "Ana", "Orbit", "2024-01-01")

	updated, err := svc.Update(context.Background(), e.ID, EntryPatch{})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if *updated != *e {
		t.Errorf("Update() = %+v, want unchanged %+v", updated, e)
	}
}

func TestUpdateAllFields(t *testing.T) {
	svc := setupService(t)
	e := mustCreate(t, svc, "Ana", "Orbit", "2024-01-01")

	updated, err := svc.Update(context.Background(), e.ID, EntryPatch{
		CreatorName: ptr("Bia"),
		GameName:    ptr("Comet"),
		ReleaseDate: ptr("2025"),
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	want := Entry{ID: e.ID, CreatorName: "Bia", GameName: "Comet", ReleaseDate: "2025"}
	if *updated != want {
		t.Errorf("Update() = %+v, want %+v", updated, want)
	}
}

func TestUpdateNotFound(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	e := mustCreate(t, svc, "Ana", "Orbit", "2024-01-01")

	if _, err := svc.Update(ctx, e.ID+1, EntryPatch{GameName: ptr("X")}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Update() error = %v, want ErrNotFound", err)
	}

	page, _ := svc.List(ctx, 1, 10)
	if page.Entries[0].GameName != "Orbit" {
		t.Errorf("store changed: %+v", page.Entries[0])
	}
}

func TestUpdateRejectsBlankValue(t *testing.T) {
	svc := NewService(untouchedStore{t})

	if _, err := svc.Update(context.Background(), 1, EntryPatch{ReleaseDate: ptr("")}); !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("Update() error = %v, want ErrInvalidEntry", err)
	}
}

// Update does not re-check the duplicate rule, so two entries can end up
// with the same triple.
func TestUpdateMayProduceDuplicateTriple(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	mustCreate(t, svc, "Ana", "Orbit", "2024")
	second := mustCreate(t, svc, "Ana", "Comet", "2024")

	if _, err := svc.Update(ctx, second.ID, EntryPatch{GameName: ptr("Orbit")}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	page, err := svc.List(ctx, 1, 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.TotalCount != 2 || page.Entries[0].GameName != "Orbit" || page.Entries[1].GameName != "Orbit" {
		t.Errorf("entries = %+v %+v, want two Orbit entries", page.Entries[0], page.Entries[1])
	}

	if _, err := svc.Create(ctx, NewEntry{CreatorName: "Ana", GameName: "Orbit", ReleaseDate: "2024"}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("Create() error = %v, want ErrDuplicate", err)
	}
}

func TestDelete(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	keep := mustCreate(t, svc, "Ana", "Orbit", "2024")
	drop := mustCreate(t, svc, "Bia", "Comet", "2025")

	deleted, err := svc.Delete(ctx, drop.ID)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if deleted.GameName != "Comet" {
		t.Errorf("Delete() GameName = %q, want Comet", deleted.GameName)
	}

	page, err := svc.List(ctx, 1, 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.TotalCount != 1 || page.Entries[0].ID != keep.ID {
		t.Errorf("after delete = %+v, want only %d", page.Entries, keep.ID)
	}

	if _, err := svc.Delete(ctx, drop.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestDeleteLastEntryEmptiesCatalog(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	e := mustCreate(t, svc, "Ana", "Orbit", "2024")

	if _, err := svc.Delete(ctx, e.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := svc.List(ctx, 1, 10); !errors.Is(err, ErrEmptyCatalog) {
		t.Errorf("List() error = %v, want ErrEmptyCatalog", err)
	}
}

func TestHealthy(t *testing.T) {
	svc := setupService(t)
	if err := svc.Healthy(context.Background()); err != nil {
		t.Errorf("Healthy() error = %v", err)
	}
}
