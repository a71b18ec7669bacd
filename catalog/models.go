package catalog

import "gamecatalog/store"

const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// Entry is the public shape of one catalog record.
type Entry struct {
	ID          int64  `json:"id"`
	GameName    string `json:"gameName"`
	CreatorName string `json:"creatorName"`
	ReleaseDate string `json:"releaseDate"`
}

// NewEntry is the body of a create request. All fields are required.
type NewEntry struct {
	CreatorName string `json:"creatorName"`
	GameName    string `json:"gameName"`
	ReleaseDate string `json:"releaseDate"`
}

// EntryPatch is the body of an update request. Nil fields are left untouched.
type EntryPatch struct {
	CreatorName *string `json:"creatorName"`
	GameName    *string `json:"gameName"`
	ReleaseDate *string `json:"releaseDate"`
}

type Page struct {
	Page       int      `json:"page"`
	Limit      int      `json:"limit"`
	TotalCount int      `json:"totalCount"`
	Entries    []*Entry `json:"entries"`
}

func fromStore(e *store.Entry) *Entry {
	return &Entry{
		ID:          e.ID,
		GameName:    e.GameName,
		CreatorName: e.CreatorName,
		ReleaseDate: e.ReleaseDate,
	}
}
