package app

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"arbor/api/internal/config"
	"arbor/api/internal/export"
	"arbor/api/internal/search"
	"arbor/api/internal/store"
)

type fakeStore struct {
	users    map[string]store.User
	trees    map[string]store.Tree
	persons  map[string][]store.PersonRow
	families map[string][]store.FamilyRow
	notes    map[string]store.Note
	members  map[string]map[string]string
	versions map[string]map[string]store.TreeVersion
	pingFn   func(context.Context) error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[string]store.User),
		trees:    make(map[string]store.Tree),
		persons:  make(map[string][]store.PersonRow),
		families: make(map[string][]store.FamilyRow),
		notes:    make(map[string]store.Note),
		members:  make(map[string]map[string]string),
		versions: make(map[string]map[string]store.TreeVersion),
	}
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (store.User, error) {
	user, ok := f.users[id]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	for _, user := range f.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) CreateTree(_ context.Context, tree store.Tree) error {
	f.trees[tree.ID] = tree
	return nil
}

func (f *fakeStore) GetTree(_ context.Context, treeID string) (store.Tree, error) {
	tree, ok := f.trees[treeID]
	if !ok {
		return store.Tree{}, sql.ErrNoRows
	}
	return tree, nil
}

func (f *fakeStore) ListTreesForUser(_ context.Context, userID string) ([]store.Tree, error) {
	var out []store.Tree
	for _, tree := range f.trees {
		if tree.OwnerID == userID {
			out = append(out, tree)
			continue
		}
		if roles, ok := f.members[tree.ID]; ok {
			if _, ok := roles[userID]; ok {
				out = append(out, tree)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) UpdateTreeCounts(_ context.Context, treeID string, persons, families, roots int) error {
	tree, ok := f.trees[treeID]
	if !ok {
		return sql.ErrNoRows
	}
	tree.PersonCount = persons
	tree.FamilyCount = families
	tree.RootCount = roots
	f.trees[treeID] = tree
	return nil
}

func (f *fakeStore) UpdateTreeSource(_ context.Context, treeID, sourceKey string) error {
	tree, ok := f.trees[treeID]
	if !ok {
		return sql.ErrNoRows
	}
	tree.SourceKey = sourceKey
	f.trees[treeID] = tree
	return nil
}

func (f *fakeStore) DeleteTree(_ context.Context, treeID string) error {
	if _, ok := f.trees[treeID]; !ok {
		return sql.ErrNoRows
	}
	delete(f.trees, treeID)
	delete(f.persons, treeID)
	delete(f.families, treeID)
	return nil
}

func (f *fakeStore) ReplaceTreeRows(_ context.Context, treeID string, persons []store.PersonRow, families []store.FamilyRow) error {
	f.persons[treeID] = persons
	f.families[treeID] = families
	return nil
}

func (f *fakeStore) ListPersons(_ context.Context, treeID, surname string, limit, offset int) ([]store.PersonRow, error) {
	var out []store.PersonRow
	for _, row := range f.persons[treeID] {
		if surname != "" && !strings.EqualFold(row.Surname, surname) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (f *fakeStore) GetPerson(_ context.Context, treeID, personID string) (store.PersonRow, error) {
	for _, row := range f.persons[treeID] {
		if row.PersonID == personID {
			return row, nil
		}
	}
	return store.PersonRow{}, sql.ErrNoRows
}

func (f *fakeStore) CreateNote(_ context.Context, note store.Note) error {
	f.notes[note.ID] = note
	return nil
}

func (f *fakeStore) ListNotes(_ context.Context, treeID, personID string) ([]store.Note, error) {
	var out []store.Note
	for _, note := range f.notes {
		if note.TreeID == treeID && note.PersonID == personID {
			out = append(out, note)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) GetNote(_ context.Context, noteID string) (store.Note, error) {
	note, ok := f.notes[noteID]
	if !ok {
		return store.Note{}, sql.ErrNoRows
	}
	return note, nil
}

func (f *fakeStore) DeleteNote(_ context.Context, noteID string) error {
	if _, ok := f.notes[noteID]; !ok {
		return sql.ErrNoRows
	}
	delete(f.notes, noteID)
	return nil
}

func (f *fakeStore) UpsertTreeMember(_ context.Context, member store.TreeMember) error {
	if f.members[member.TreeID] == nil {
		f.members[member.TreeID] = make(map[string]string)
	}
	f.members[member.TreeID][member.UserID] = member.Role
	return nil
}

func (f *fakeStore) ListTreeMembers(_ context.Context, treeID string) ([]store.TreeMember, error) {
	var out []store.TreeMember
	for userID, role := range f.members[treeID] {
		out = append(out, store.TreeMember{TreeID: treeID, UserID: userID, Role: role})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (f *fakeStore) RemoveTreeMember(_ context.Context, treeID, userID string) error {
	delete(f.members[treeID], userID)
	return nil
}

func (f *fakeStore) GetTreeRole(_ context.Context, treeID, userID string) (string, error) {
	tree, ok := f.trees[treeID]
	if !ok {
		return "", nil
	}
	if tree.OwnerID == userID {
		return "admin", nil
	}
	if roles, ok := f.members[treeID]; ok {
		return roles[userID], nil
	}
	return "", nil
}

func (f *fakeStore) SaveTreeVersion(_ context.Context, v store.TreeVersion) error {
	if f.versions[v.TreeID] == nil {
		f.versions[v.TreeID] = make(map[string]store.TreeVersion)
	}
	f.versions[v.TreeID][v.Name] = v
	return nil
}

func (f *fakeStore) ListTreeVersions(_ context.Context, treeID string) ([]store.TreeVersion, error) {
	var out []store.TreeVersion
	for _, v := range f.versions[treeID] {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeStore) GetTreeVersion(_ context.Context, treeID, name string) (store.TreeVersion, error) {
	if v, ok := f.versions[treeID][name]; ok {
		return v, nil
	}
	return store.TreeVersion{}, sql.ErrNoRows
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

type fakeRepo struct {
	snapshots map[string][]string
	commits   map[string][]store.CommitInfo
	removed   []string
	tags      map[string]map[string]string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		snapshots: make(map[string][]string),
		commits:   make(map[string][]store.CommitInfo),
		tags:      make(map[string]map[string]string),
	}
}

func (f *fakeRepo) commit(treeID, text, author, message string) store.CommitInfo {
	f.snapshots[treeID] = append(f.snapshots[treeID], text)
	info := store.CommitInfo{
		Hash:      fmt.Sprintf("%s-c%d", treeID, len(f.snapshots[treeID])),
		Message:   message,
		Author:    author,
		CreatedAt: time.Now(),
	}
	f.commits[treeID] = append(f.commits[treeID], info)
	return info
}

func (f *fakeRepo) EnsureRepo(treeID, text, author string) (store.CommitInfo, error) {
	if len(f.snapshots[treeID]) > 0 {
		return f.commits[treeID][len(f.commits[treeID])-1], nil
	}
	return f.commit(treeID, text, author, "Import tree"), nil
}

func (f *fakeRepo) CommitSnapshot(treeID, text, author, message string) (store.CommitInfo, error) {
	if len(f.snapshots[treeID]) == 0 {
		return store.CommitInfo{}, fmt.Errorf("repo %s not initialized", treeID)
	}
	return f.commit(treeID, text, author, message), nil
}

func (f *fakeRepo) HeadSnapshot(treeID string) (string, store.CommitInfo, error) {
	snaps := f.snapshots[treeID]
	if len(snaps) == 0 {
		return "", store.CommitInfo{}, fmt.Errorf("repo %s not initialized", treeID)
	}
	return snaps[len(snaps)-1], f.commits[treeID][len(f.commits[treeID])-1], nil
}

func (f *fakeRepo) SnapshotByHash(treeID, hash string) (string, error) {
	for i, info := range f.commits[treeID] {
		if info.Hash == hash {
			return f.snapshots[treeID][i], nil
		}
	}
	return "", fmt.Errorf("unknown hash %s", hash)
}

func (f *fakeRepo) History(treeID string, limit int) ([]store.CommitInfo, error) {
	commits := f.commits[treeID]
	out := make([]store.CommitInfo, 0, len(commits))
	for i := len(commits) - 1; i >= 0; i-- {
		out = append(out, commits[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeRepo) Tag(treeID, hash, name string) error {
	if f.tags[treeID] == nil {
		f.tags[treeID] = make(map[string]string)
	}
	f.tags[treeID][name] = hash
	return nil
}

func (f *fakeRepo) Remove(treeID string) error {
	f.removed = append(f.removed, treeID)
	delete(f.snapshots, treeID)
	delete(f.commits, treeID)
	return nil
}

type fakeSessions struct {
	sessions map[string]store.User
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: make(map[string]store.User)}
}

func (f *fakeSessions) SaveRefreshSession(_ context.Context, tokenHash string, user store.User, _ time.Time) error {
	f.sessions[tokenHash] = user
	return nil
}

func (f *fakeSessions) LookupRefreshSession(_ context.Context, tokenHash string) (store.User, error) {
	user, ok := f.sessions[tokenHash]
	if !ok {
		return store.User{}, fmt.Errorf("refresh session not found")
	}
	return user, nil
}

func (f *fakeSessions) RevokeRefreshSession(_ context.Context, tokenHash string) error {
	delete(f.sessions, tokenHash)
	return nil
}

type fakeSearch struct {
	indexedPersons []search.PersonRecord
	indexedPlaces  []search.PlaceRecord
	indexedNotes   []search.NoteRecord
	deletedNotes   []string
	deletedTrees   []string
	reindexed      []string
}

func (f *fakeSearch) Search(q search.Query) search.Response {
	return search.Response{Results: []search.Result{}, Query: q.Text}
}

func (f *fakeSearch) IndexNote(n search.NoteRecord) {
	f.indexedNotes = append(f.indexedNotes, n)
}

func (f *fakeSearch) DeleteNote(id string) {
	f.deletedNotes = append(f.deletedNotes, id)
}

func (f *fakeSearch) DeleteTree(treeID string) {
	f.deletedTrees = append(f.deletedTrees, treeID)
}

func (f *fakeSearch) IndexTree(persons []search.PersonRecord, places []search.PlaceRecord, notes []search.NoteRecord) {
	f.indexedPersons = append(f.indexedPersons, persons...)
	f.indexedPlaces = append(f.indexedPlaces, places...)
	f.indexedNotes = append(f.indexedNotes, notes...)
}

func (f *fakeSearch) ReindexTreeFromPG(_ context.Context, treeID string) {
	f.reindexed = append(f.reindexed, treeID)
}

func newTestService(fs *fakeStore, fr *fakeRepo, fx *fakeSearch) *Service {
	s := &Service{
		cfg: config.Config{
			JWTSecret:  "test-secret",
			AccessTTL:  time.Minute,
			RefreshTTL: time.Hour,
		},
		store:    fs,
		repos:    fr,
		sessions: newFakeSessions(),
		search:   fx,
	}
	s.exporter = export.NewService(s)
	return s
}
