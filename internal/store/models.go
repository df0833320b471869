package store

import "time"

type User struct {
	ID                    string
	DisplayName           string
	Email                 string
	PasswordHash          string
	Role                  string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	DeactivatedAt         *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Tree is one imported family tree. The parsed graph itself lives in
// the tree's git repository as a GEDCOM snapshot; the row keeps the
// metadata and denormalized counts the listing endpoints need.
type Tree struct {
	ID           string
	OwnerID      string
	Name         string
	Description  string
	SourceKey    string // object key of the uploaded file in media storage
	PersonCount  int
	FamilyCount  int
	RootCount    int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PersonRow is the queryable projection of one person in a tree,
// refreshed from the graph on every import or filter commit.
type PersonRow struct {
	TreeID     string
	PersonID   string
	Name       string
	Surname    string
	Sex        string
	BirthDate  string
	BirthPlace string
	DeathDate  string
	DeathPlace string
	Occupation string
	FamC       string
	UpdatedAt  time.Time
}

type FamilyRow struct {
	TreeID        string
	FamilyID      string
	Husband       string
	Wife          string
	MarriageDate  string
	MarriagePlace string
	ChildCount    int
}

// Note is a free-text research annotation attached to a person.
type Note struct {
	ID        string
	TreeID    string
	PersonID  string
	Author    string
	AuthorID  string
	Body      string
	CreatedAt time.Time
}

// TreeMember grants a user a role on one tree.
type TreeMember struct {
	TreeID    string
	UserID    string
	Role      string
	GrantedBy string
	GrantedAt time.Time
	// Joined for API responses.
	UserEmail string
	UserName  string
}

// TreeVersion names a committed snapshot, e.g. a generation-filtered
// export.
type TreeVersion struct {
	TreeID    string
	Name      string
	Hash      string
	CreatedBy string
	CreatedAt time.Time
}

type CommitInfo struct {
	Hash      string
	Message   string
	Author    string
	CreatedAt time.Time
	Added     int
	Removed   int
}
