package app

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"arbor/api/internal/archive"
	"arbor/api/internal/auth"
	"arbor/api/internal/authpw"
	"arbor/api/internal/cleanup"
	"arbor/api/internal/config"
	"arbor/api/internal/email"
	"arbor/api/internal/export"
	"arbor/api/internal/gedcom"
	"arbor/api/internal/media"
	"arbor/api/internal/rbac"
	"arbor/api/internal/search"
	"arbor/api/internal/session"
	"arbor/api/internal/store"
	"arbor/api/internal/treerepo"
	"arbor/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

type FilterInput struct {
	MaxGenerations int    `json:"maxGenerations"`
	ReferenceYear  int    `json:"referenceYear"`
	VersionName    string `json:"versionName"`
}

type dataStore interface {
	GetUserByID(context.Context, string) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	CreateTree(context.Context, store.Tree) error
	GetTree(context.Context, string) (store.Tree, error)
	ListTreesForUser(context.Context, string) ([]store.Tree, error)
	UpdateTreeCounts(ctx context.Context, treeID string, persons, families, roots int) error
	UpdateTreeSource(ctx context.Context, treeID, sourceKey string) error
	DeleteTree(context.Context, string) error
	ReplaceTreeRows(ctx context.Context, treeID string, persons []store.PersonRow, families []store.FamilyRow) error
	ListPersons(ctx context.Context, treeID, surname string, limit, offset int) ([]store.PersonRow, error)
	GetPerson(ctx context.Context, treeID, personID string) (store.PersonRow, error)
	CreateNote(context.Context, store.Note) error
	ListNotes(ctx context.Context, treeID, personID string) ([]store.Note, error)
	GetNote(context.Context, string) (store.Note, error)
	DeleteNote(context.Context, string) error
	UpsertTreeMember(context.Context, store.TreeMember) error
	ListTreeMembers(context.Context, string) ([]store.TreeMember, error)
	RemoveTreeMember(ctx context.Context, treeID, userID string) error
	GetTreeRole(ctx context.Context, treeID, userID string) (string, error)
	SaveTreeVersion(context.Context, store.TreeVersion) error
	ListTreeVersions(context.Context, string) ([]store.TreeVersion, error)
	GetTreeVersion(ctx context.Context, treeID, name string) (store.TreeVersion, error)
	Ping(ctx context.Context) error
}

type treeRepo interface {
	EnsureRepo(treeID, gedcomText, author string) (store.CommitInfo, error)
	CommitSnapshot(treeID, gedcomText, author, message string) (store.CommitInfo, error)
	HeadSnapshot(treeID string) (string, store.CommitInfo, error)
	SnapshotByHash(treeID, hash string) (string, error)
	History(treeID string, limit int) ([]store.CommitInfo, error)
	Tag(treeID, hash, name string) error
	Remove(treeID string) error
}

type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type searchService interface {
	Search(q search.Query) search.Response
	IndexNote(n search.NoteRecord)
	DeleteNote(id string)
	DeleteTree(treeID string)
	IndexTree(persons []search.PersonRecord, places []search.PlaceRecord, notes []search.NoteRecord)
	ReindexTreeFromPG(ctx context.Context, treeID string)
}

type mediaStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	Remove(ctx context.Context, key string) error
}

type Service struct {
	cfg      config.Config
	store    dataStore
	repos    treeRepo
	sessions sessionStore
	search   searchService
	media    mediaStore
	authpw   *authpw.Service
	mailer   *email.Service
	exporter *export.Service
}

func New(
	cfg config.Config,
	dataStore *store.PostgresStore,
	repos *treerepo.Service,
	sessions *session.RedisStore,
	searchSvc *search.Service,
	mediaSvc *media.Service,
	authSvc *authpw.Service,
	mailer *email.Service,
) *Service {
	s := &Service{
		cfg:      cfg,
		store:    dataStore,
		repos:    repos,
		sessions: sessions,
		search:   searchSvc,
		authpw:   authSvc,
		mailer:   mailer,
	}
	if mediaSvc != nil {
		s.media = mediaSvc
	}
	s.exporter = export.NewService(s)
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authpw
}

func (s *Service) SMTPConfigured() bool {
	return s.mailer != nil && s.mailer.IsConfigured()
}

// SendVerificationEmail mails the signup verification link. Failures are
// logged rather than surfaced so a flaky SMTP relay cannot block signup.
func (s *Service) SendVerificationEmail(to, displayName, token string) {
	if !s.SMTPConfigured() {
		return
	}
	url := strings.TrimRight(s.cfg.AppBaseURL, "/") + "/verify-email?token=" + token
	if err := s.mailer.SendVerificationEmail(to, displayName, url); err != nil {
		log.Printf("send verification email to %s: %v", to, err)
	}
}

func (s *Service) SendPasswordResetEmail(to, displayName, token string) {
	if !s.SMTPConfigured() {
		return
	}
	url := strings.TrimRight(s.cfg.AppBaseURL, "/") + "/reset-password?token=" + token
	if err := s.mailer.SendPasswordResetEmail(to, displayName, url); err != nil {
		log.Printf("send password reset email to %s: %v", to, err)
	}
}

// ---- sessions ----

func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	// Rotate: the presented refresh token is single-use.
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		Role: user.Role,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

// SessionFromToken validates an access token. Identity comes from the
// claims so no storage round trip is needed per request.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    claims.Sub,
		UserName:  claims.Name,
		Role:      claims.Role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken != "" {
		return s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// ---- per-tree access control ----

// RoleOnTree resolves the caller's effective role for one tree. Owners
// act as admins regardless of the membership table.
func (s *Service) RoleOnTree(ctx context.Context, sess Session, treeID string) (rbac.Role, error) {
	role, err := s.store.GetTreeRole(ctx, treeID, sess.UserID)
	if err != nil {
		return "", err
	}
	if role == "" {
		return "", nil
	}
	return rbac.Normalize(role), nil
}

func (s *Service) CanOnTree(ctx context.Context, sess Session, treeID string, action rbac.Action) (bool, error) {
	role, err := s.RoleOnTree(ctx, sess, treeID)
	if err != nil {
		return false, err
	}
	if role == "" {
		return false, nil
	}
	return rbac.Can(role, action), nil
}

// ---- trees ----

func (s *Service) ImportTree(ctx context.Context, sess Session, name, description, filename string, data []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "uploaded file is empty", nil)
	}

	if archive.IsZip(data) {
		extracted, innerName, err := archive.ExtractGedcom(data)
		if err != nil {
			if errors.Is(err, archive.ErrNoGedcom) {
				return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "archive contains no GEDCOM file", nil)
			}
			return nil, fmt.Errorf("extract archive: %w", err)
		}
		data = extracted
		filename = innerName
	}

	graph := gedcom.Parse(string(data))
	if len(graph.People) == 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "EMPTY_TREE", "no individuals found in the uploaded file", nil)
	}

	treeID := util.NewID("tree")
	if strings.TrimSpace(name) == "" {
		name = strings.TrimSuffix(filename, ".ged")
		name = strings.TrimSuffix(name, ".gedcom")
		if name == "" {
			name = "Imported tree"
		}
	}

	sourceKey := ""
	if s.media != nil {
		sourceKey = media.SourceKey(treeID, filename)
		if err := s.media.Put(ctx, sourceKey, bytes.NewReader(data), int64(len(data)), "text/plain"); err != nil {
			log.Printf("import: store source for tree %s: %v", treeID, err)
			sourceKey = ""
		}
	}

	tree := store.Tree{
		ID:          treeID,
		OwnerID:     sess.UserID,
		Name:        name,
		Description: description,
		SourceKey:   sourceKey,
		PersonCount: len(graph.People),
		FamilyCount: len(graph.Families),
		RootCount:   len(graph.Roots),
	}
	if err := s.store.CreateTree(ctx, tree); err != nil {
		return nil, fmt.Errorf("create tree: %w", err)
	}

	persons, families := rowsFromGraph(treeID, graph)
	if err := s.store.ReplaceTreeRows(ctx, treeID, persons, families); err != nil {
		return nil, fmt.Errorf("store tree rows: %w", err)
	}

	// Re-encode so the repo snapshot is canonical regardless of how
	// messy the upload was.
	commit, err := s.repos.EnsureRepo(treeID, gedcom.Encode(graph), sess.UserName)
	if err != nil {
		return nil, fmt.Errorf("init tree repo: %w", err)
	}

	s.indexGraph(treeID, graph)

	payload := treeSummary(tree)
	payload["commit"] = commitPayload(commit)
	return payload, nil
}

// ReimportTree replaces a tree's graph with a fresh upload. The old
// snapshot stays reachable through history; rows and search records are
// rebuilt from the new graph.
func (s *Service) ReimportTree(ctx context.Context, sess Session, treeID, filename string, data []byte) (map[string]any, error) {
	tree, err := s.store.GetTree(ctx, treeID)
	if err != nil {
		return nil, err
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "uploaded file is empty", nil)
	}

	if archive.IsZip(data) {
		extracted, innerName, err := archive.ExtractGedcom(data)
		if err != nil {
			if errors.Is(err, archive.ErrNoGedcom) {
				return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "archive contains no GEDCOM file", nil)
			}
			return nil, fmt.Errorf("extract archive: %w", err)
		}
		data = extracted
		filename = innerName
	}

	graph := gedcom.Parse(string(data))
	if len(graph.People) == 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "EMPTY_TREE", "no individuals found in the uploaded file", nil)
	}

	if s.media != nil {
		sourceKey := media.SourceKey(treeID, filename)
		if err := s.media.Put(ctx, sourceKey, bytes.NewReader(data), int64(len(data)), "text/plain"); err != nil {
			log.Printf("reimport: store source for tree %s: %v", treeID, err)
		} else {
			if tree.SourceKey != "" && tree.SourceKey != sourceKey {
				if err := s.media.Remove(ctx, tree.SourceKey); err != nil {
					log.Printf("reimport: remove old source %s: %v", tree.SourceKey, err)
				}
			}
			if err := s.store.UpdateTreeSource(ctx, treeID, sourceKey); err != nil {
				return nil, fmt.Errorf("update tree source: %w", err)
			}
			tree.SourceKey = sourceKey
		}
	}

	commit, err := s.repos.CommitSnapshot(treeID, gedcom.Encode(graph), sess.UserName,
		fmt.Sprintf("Re-import from %s", filename))
	if err != nil {
		return nil, fmt.Errorf("commit reimport: %w", err)
	}

	persons, families := rowsFromGraph(treeID, graph)
	if err := s.store.ReplaceTreeRows(ctx, treeID, persons, families); err != nil {
		return nil, fmt.Errorf("store tree rows: %w", err)
	}
	if err := s.store.UpdateTreeCounts(ctx, treeID, len(graph.People), len(graph.Families), len(graph.Roots)); err != nil {
		return nil, fmt.Errorf("update tree counts: %w", err)
	}
	tree.PersonCount = len(graph.People)
	tree.FamilyCount = len(graph.Families)
	tree.RootCount = len(graph.Roots)

	s.search.DeleteTree(treeID)
	s.indexGraph(treeID, graph)

	payload := treeSummary(tree)
	payload["commit"] = commitPayload(commit)
	return payload, nil
}

func (s *Service) ListTrees(ctx context.Context, sess Session) ([]map[string]any, error) {
	trees, err := s.store.ListTreesForUser(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(trees))
	for _, t := range trees {
		items = append(items, treeSummary(t))
	}
	return items, nil
}

func (s *Service) GetTree(ctx context.Context, treeID string) (map[string]any, error) {
	tree, err := s.store.GetTree(ctx, treeID)
	if err != nil {
		return nil, err
	}
	versions, err := s.store.ListTreeVersions(ctx, treeID)
	if err != nil {
		return nil, err
	}

	payload := treeSummary(tree)
	versionItems := make([]map[string]any, 0, len(versions))
	for _, v := range versions {
		versionItems = append(versionItems, map[string]any{
			"name":      v.Name,
			"hash":      v.Hash,
			"createdBy": v.CreatedBy,
			"createdAt": v.CreatedAt,
		})
	}
	payload["versions"] = versionItems
	return payload, nil
}

func (s *Service) DeleteTree(ctx context.Context, treeID string) error {
	tree, err := s.store.GetTree(ctx, treeID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTree(ctx, treeID); err != nil {
		return err
	}
	if err := s.repos.Remove(treeID); err != nil {
		log.Printf("delete tree %s: remove repo: %v", treeID, err)
	}
	if s.media != nil && tree.SourceKey != "" {
		if err := s.media.Remove(ctx, tree.SourceKey); err != nil {
			log.Printf("delete tree %s: remove source: %v", treeID, err)
		}
	}
	s.search.DeleteTree(treeID)
	return nil
}

// SourceDownloadURL returns a presigned link to the originally
// uploaded file.
func (s *Service) SourceDownloadURL(ctx context.Context, treeID string) (string, error) {
	tree, err := s.store.GetTree(ctx, treeID)
	if err != nil {
		return "", err
	}
	if s.media == nil || tree.SourceKey == "" {
		return "", domainError(http.StatusNotFound, "NO_SOURCE", "no source file stored for this tree", nil)
	}
	return s.media.PresignedURL(ctx, tree.SourceKey, 15*time.Minute)
}

// ---- people ----

func (s *Service) ListPersons(ctx context.Context, treeID, surname string, limit, offset int) (map[string]any, error) {
	rows, err := s.store.ListPersons(ctx, treeID, surname, limit, offset)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		items = append(items, personPayload(row))
	}
	return map[string]any{"persons": items}, nil
}

func (s *Service) GetPerson(ctx context.Context, treeID, personID string) (map[string]any, error) {
	row, err := s.store.GetPerson(ctx, treeID, personID)
	if err != nil {
		return nil, err
	}
	notes, err := s.store.ListNotes(ctx, treeID, personID)
	if err != nil {
		return nil, err
	}

	payload := personPayload(row)
	noteItems := make([]map[string]any, 0, len(notes))
	for _, n := range notes {
		noteItems = append(noteItems, notePayload(n))
	}
	payload["notes"] = noteItems

	// Relations come from the graph snapshot, not the row projection.
	if graph, err := s.loadHeadGraph(treeID); err == nil {
		payload["parents"] = relationList(graph, graph.Parents(personID))
		payload["spouses"] = relationList(graph, spouseIDs(graph, personID))
		payload["children"] = relationList(graph, childIDs(graph, personID))
	}
	return payload, nil
}

// spouseIDs collects the other spouse in every family the person
// appears in as husband or wife. Families are scanned directly rather
// than through FAMS tags, which source files often omit.
func spouseIDs(graph *gedcom.Graph, personID string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, famID := range graph.SortedFamilyIDs() {
		family := graph.Families[famID]
		if family.Husband != personID && family.Wife != personID {
			continue
		}
		for _, other := range []string{family.Husband, family.Wife} {
			if other != "" && other != personID && !seen[other] {
				seen[other] = true
				out = append(out, other)
			}
		}
	}
	return out
}

func childIDs(graph *gedcom.Graph, personID string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, famID := range graph.SortedFamilyIDs() {
		family := graph.Families[famID]
		if family.Husband != personID && family.Wife != personID {
			continue
		}
		for _, child := range family.Children {
			if !seen[child] {
				seen[child] = true
				out = append(out, child)
			}
		}
	}
	return out
}

func relationList(graph *gedcom.Graph, ids []string) []map[string]any {
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		p := graph.People[id]
		if p == nil {
			continue
		}
		out = append(out, map[string]any{
			"personId":  id,
			"name":      p.Name,
			"birthDate": p.BirthDate,
			"deathDate": p.DeathDate,
		})
	}
	return out
}

// ---- notes ----

func (s *Service) CreateNote(ctx context.Context, sess Session, treeID, personID, body string) (map[string]any, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "note body is required", nil)
	}
	if _, err := s.store.GetPerson(ctx, treeID, personID); err != nil {
		return nil, err
	}

	note := store.Note{
		ID:       util.NewID("note"),
		TreeID:   treeID,
		PersonID: personID,
		Author:   sess.UserName,
		AuthorID: sess.UserID,
		Body:     body,
	}
	if err := s.store.CreateNote(ctx, note); err != nil {
		return nil, err
	}

	s.search.IndexNote(search.NoteRecord{
		ID:       note.ID,
		TreeID:   note.TreeID,
		PersonID: note.PersonID,
		Body:     note.Body,
	})
	return notePayload(note), nil
}

func (s *Service) ListNotes(ctx context.Context, treeID, personID string) (map[string]any, error) {
	notes, err := s.store.ListNotes(ctx, treeID, personID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(notes))
	for _, n := range notes {
		items = append(items, notePayload(n))
	}
	return map[string]any{"notes": items}, nil
}

func (s *Service) DeleteNote(ctx context.Context, sess Session, noteID string) error {
	note, err := s.store.GetNote(ctx, noteID)
	if err != nil {
		return err
	}
	if note.AuthorID != sess.UserID {
		allowed, err := s.CanOnTree(ctx, sess, note.TreeID, rbac.ActionAdmin)
		if err != nil {
			return err
		}
		if !allowed {
			return domainError(http.StatusForbidden, "FORBIDDEN", "only the author or a tree admin may delete a note", nil)
		}
	}
	if err := s.store.DeleteNote(ctx, noteID); err != nil {
		return err
	}
	s.search.DeleteNote(noteID)
	return nil
}

// NoteTreeID resolves which tree a note belongs to, for access checks.
func (s *Service) NoteTreeID(ctx context.Context, noteID string) (string, error) {
	note, err := s.store.GetNote(ctx, noteID)
	if err != nil {
		return "", err
	}
	return note.TreeID, nil
}

// ---- locations ----

func (s *Service) Locations(ctx context.Context, treeID string) (map[string]any, error) {
	graph, err := s.loadHeadGraph(treeID)
	if err != nil {
		return nil, err
	}
	summaries, _ := cleanup.Analyze(graph.People)

	raws := make([]string, 0, len(summaries))
	for raw := range summaries {
		raws = append(raws, raw)
	}
	sort.Strings(raws)

	items := make([]map[string]any, 0, len(raws))
	for _, raw := range raws {
		items = append(items, locationPayload(summaries[raw]))
	}
	return map[string]any{"locations": items}, nil
}

func (s *Service) CleanupReport(ctx context.Context, treeID string) (*cleanup.Report, error) {
	graph, err := s.loadHeadGraph(treeID)
	if err != nil {
		return nil, err
	}
	_, report := cleanup.Analyze(graph.People)
	return report, nil
}

// ---- filtering and versions ----

func (s *Service) FilterTree(ctx context.Context, sess Session, treeID string, input FilterInput) (map[string]any, error) {
	if input.MaxGenerations < 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "maxGenerations must not be negative", nil)
	}
	refYear := input.ReferenceYear
	if refYear <= 0 {
		refYear = time.Now().Year()
	}

	graph, err := s.loadHeadGraph(treeID)
	if err != nil {
		return nil, err
	}

	filtered := graph.FilterGenerations(input.MaxGenerations, refYear)
	if len(filtered.People) == 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "EMPTY_RESULT", "filter produced an empty tree; try a larger generation count", nil)
	}

	message := fmt.Sprintf("Filter to %d generations from reference year %d", input.MaxGenerations, refYear)
	commit, err := s.repos.CommitSnapshot(treeID, gedcom.Encode(filtered), sess.UserName, message)
	if err != nil {
		return nil, fmt.Errorf("commit filtered snapshot: %w", err)
	}

	versionName := strings.TrimSpace(input.VersionName)
	if versionName != "" {
		if err := s.repos.Tag(treeID, commit.Hash, versionName); err != nil {
			return nil, fmt.Errorf("tag version: %w", err)
		}
		if err := s.store.SaveTreeVersion(ctx, store.TreeVersion{
			TreeID:    treeID,
			Name:      versionName,
			Hash:      commit.Hash,
			CreatedBy: sess.UserName,
		}); err != nil {
			return nil, fmt.Errorf("save version: %w", err)
		}
	}

	persons, families := rowsFromGraph(treeID, filtered)
	if err := s.store.ReplaceTreeRows(ctx, treeID, persons, families); err != nil {
		return nil, fmt.Errorf("store filtered rows: %w", err)
	}
	if err := s.store.UpdateTreeCounts(ctx, treeID, len(filtered.People), len(filtered.Families), len(filtered.Roots)); err != nil {
		return nil, fmt.Errorf("update counts: %w", err)
	}

	s.search.DeleteTree(treeID)
	s.indexGraph(treeID, filtered)

	return map[string]any{
		"commit":      commitPayload(commit),
		"versionName": versionName,
		"persons":     len(filtered.People),
		"families":    len(filtered.Families),
		"roots":       len(filtered.Roots),
	}, nil
}

// ExportGEDCOM returns the GEDCOM text for the head snapshot, a named
// version, or a raw commit hash.
func (s *Service) ExportGEDCOM(ctx context.Context, treeID, version string) (string, string, error) {
	tree, err := s.store.GetTree(ctx, treeID)
	if err != nil {
		return "", "", err
	}

	filename := exportFilename(tree.Name, version)
	if version == "" || version == "latest" {
		text, _, err := s.repos.HeadSnapshot(treeID)
		if err != nil {
			return "", "", err
		}
		return text, filename, nil
	}

	hash := version
	if v, err := s.store.GetTreeVersion(ctx, treeID, version); err == nil {
		hash = v.Hash
	}
	text, err := s.repos.SnapshotByHash(treeID, hash)
	if err != nil {
		return "", "", domainError(http.StatusNotFound, "VERSION_NOT_FOUND", "unknown version or commit", nil)
	}
	return text, filename, nil
}

func (s *Service) History(ctx context.Context, treeID string, limit int) (map[string]any, error) {
	commits, err := s.repos.History(treeID, limit)
	if err != nil {
		return nil, err
	}
	versions, err := s.store.ListTreeVersions(ctx, treeID)
	if err != nil {
		return nil, err
	}

	versionByHash := make(map[string]string, len(versions))
	for _, v := range versions {
		versionByHash[v.Hash] = v.Name
	}

	items := make([]map[string]any, 0, len(commits))
	for _, c := range commits {
		item := commitPayload(c)
		if name, ok := versionByHash[c.Hash]; ok {
			item["versionName"] = name
		}
		items = append(items, item)
	}
	return map[string]any{"commits": items}, nil
}

// ---- members ----

func (s *Service) ShareTree(ctx context.Context, sess Session, treeID, email, role string) (map[string]any, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, domainError(http.StatusNotFound, "USER_NOT_FOUND", "no account with that email", nil)
	}
	tree, err := s.store.GetTree(ctx, treeID)
	if err != nil {
		return nil, err
	}
	if user.ID == tree.OwnerID {
		return nil, domainError(http.StatusConflict, "ALREADY_OWNER", "that user owns this tree", nil)
	}

	member := store.TreeMember{
		TreeID:    treeID,
		UserID:    user.ID,
		Role:      string(rbac.Normalize(role)),
		GrantedBy: sess.UserID,
	}
	if err := s.store.UpsertTreeMember(ctx, member); err != nil {
		return nil, err
	}
	return map[string]any{
		"treeId":   treeID,
		"userId":   user.ID,
		"userName": user.DisplayName,
		"role":     member.Role,
	}, nil
}

func (s *Service) ListMembers(ctx context.Context, treeID string) (map[string]any, error) {
	members, err := s.store.ListTreeMembers(ctx, treeID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(members))
	for _, m := range members {
		items = append(items, map[string]any{
			"userId":    m.UserID,
			"userName":  m.UserName,
			"userEmail": m.UserEmail,
			"role":      m.Role,
			"grantedAt": m.GrantedAt,
		})
	}
	return map[string]any{"members": items}, nil
}

func (s *Service) RemoveMember(ctx context.Context, treeID, userID string) error {
	return s.store.RemoveTreeMember(ctx, treeID, userID)
}

// ---- search ----

func (s *Service) Search(ctx context.Context, sess Session, text, filterType, treeID string, limit, offset int) (search.Response, error) {
	if strings.TrimSpace(treeID) == "" {
		return search.Response{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "treeId is required", nil)
	}
	allowed, err := s.CanOnTree(ctx, sess, treeID, rbac.ActionRead)
	if err != nil {
		return search.Response{}, err
	}
	if !allowed {
		return search.Response{}, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}

	return s.search.Search(search.Query{
		Text:         text,
		FilterType:   search.ResultType(filterType),
		FilterTreeID: treeID,
		Limit:        limit,
		Offset:       offset,
	}), nil
}

// ReindexSearch rebuilds one tree's search index from the PostgreSQL
// projection, for when Meilisearch has drifted or been wiped.
func (s *Service) ReindexSearch(ctx context.Context, treeID string) error {
	if _, err := s.store.GetTree(ctx, treeID); err != nil {
		return err
	}
	s.search.DeleteTree(treeID)
	s.search.ReindexTreeFromPG(ctx, treeID)
	return nil
}

// ---- reports ----

func (s *Service) Report(ctx context.Context, treeID string, format export.Format) (*export.Result, error) {
	return s.exporter.Export(ctx, export.Request{
		TreeID:          treeID,
		Format:          format,
		IncludePeople:   true,
		IncludeCleanup:  true,
		MaxPeopleListed: 200,
	})
}

// ReportData implements export.DataSource.
func (s *Service) ReportData(ctx context.Context, req export.Request) (export.TemplateData, error) {
	tree, err := s.store.GetTree(ctx, req.TreeID)
	if err != nil {
		return export.TemplateData{}, err
	}

	data := export.TemplateData{
		Tree: export.TreeStats{
			Name:        tree.Name,
			Description: tree.Description,
			PersonCount: tree.PersonCount,
			FamilyCount: tree.FamilyCount,
			RootCount:   tree.RootCount,
			UpdatedAt:   tree.UpdatedAt,
		},
	}
	if owner, err := s.store.GetUserByID(ctx, tree.OwnerID); err == nil {
		data.Tree.Owner = owner.DisplayName
	}

	graph, err := s.loadHeadGraph(req.TreeID)
	if err != nil {
		return export.TemplateData{}, err
	}

	summaries, report := cleanup.Analyze(graph.People)
	data.Regions = regionCounts(summaries)

	if req.IncludeCleanup {
		for _, summary := range report.TopFlagged {
			if len(summary.Issues) == 0 {
				continue
			}
			issue := summary.Issues[0]
			data.Locations = append(data.Locations, export.LocationLine{
				Raw:      summary.Raw,
				Count:    summary.Count,
				Severity: string(issue.Severity),
				Issue:    issue.Message,
			})
		}
	}

	if req.IncludePeople {
		limit := req.MaxPeopleListed
		if limit <= 0 {
			limit = 200
		}
		ids := graph.SortedPersonIDs()
		for i, id := range ids {
			if i >= limit {
				data.PeopleNote = fmt.Sprintf("Showing first %d of %d people.", limit, len(ids))
				break
			}
			p := graph.People[id]
			data.People = append(data.People, export.PersonLine{
				Name:       p.Name,
				BirthDate:  p.BirthDate,
				BirthPlace: p.BirthPlace,
				DeathDate:  p.DeathDate,
				DeathPlace: p.DeathPlace,
			})
		}
	}

	return data, nil
}

// ---- helpers ----

func (s *Service) loadHeadGraph(treeID string) (*gedcom.Graph, error) {
	text, _, err := s.repos.HeadSnapshot(treeID)
	if err != nil {
		return nil, fmt.Errorf("load tree snapshot: %w", err)
	}
	return gedcom.Parse(text), nil
}

func (s *Service) indexGraph(treeID string, graph *gedcom.Graph) {
	persons := make([]search.PersonRecord, 0, len(graph.People))
	for _, id := range graph.SortedPersonIDs() {
		p := graph.People[id]
		persons = append(persons, search.PersonRecord{
			ID:         treeID + ":" + p.ID,
			TreeID:     treeID,
			PersonID:   p.ID,
			Name:       p.Name,
			Surname:    p.Surname,
			BirthPlace: p.BirthPlace,
			DeathPlace: p.DeathPlace,
			Occupation: p.Occupation,
		})
	}

	summaries, _ := cleanup.Analyze(graph.People)
	places := make([]search.PlaceRecord, 0, len(summaries))
	for raw, summary := range summaries {
		places = append(places, search.PlaceRecord{
			ID:     treeID + ":" + shortHash(raw),
			TreeID: treeID,
			Raw:    raw,
			Region: summary.Region,
			Count:  summary.Count,
		})
	}
	sort.Slice(places, func(i, j int) bool { return places[i].ID < places[j].ID })

	s.search.IndexTree(persons, places, nil)
}

func rowsFromGraph(treeID string, graph *gedcom.Graph) ([]store.PersonRow, []store.FamilyRow) {
	persons := make([]store.PersonRow, 0, len(graph.People))
	for _, id := range graph.SortedPersonIDs() {
		p := graph.People[id]
		persons = append(persons, store.PersonRow{
			TreeID:     treeID,
			PersonID:   p.ID,
			Name:       p.Name,
			Surname:    p.Surname,
			Sex:        p.Sex,
			BirthDate:  p.BirthDate,
			BirthPlace: p.BirthPlace,
			DeathDate:  p.DeathDate,
			DeathPlace: p.DeathPlace,
			Occupation: p.Occupation,
			FamC:       p.FamC,
		})
	}

	families := make([]store.FamilyRow, 0, len(graph.Families))
	for _, id := range graph.SortedFamilyIDs() {
		f := graph.Families[id]
		families = append(families, store.FamilyRow{
			TreeID:        treeID,
			FamilyID:      f.ID,
			Husband:       f.Husband,
			Wife:          f.Wife,
			MarriageDate:  f.MarriageDate,
			MarriagePlace: f.MarriagePlace,
			ChildCount:    len(f.Children),
		})
	}
	return persons, families
}

func regionCounts(summaries map[string]*cleanup.Summary) []export.RegionCount {
	counts := make(map[string]int)
	for _, summary := range summaries {
		region := summary.Region
		if region == "" {
			region = "Unknown"
		}
		counts[region] += summary.Count
	}

	out := make([]export.RegionCount, 0, len(counts))
	for region, count := range counts {
		out = append(out, export.RegionCount{Region: region, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Region < out[j].Region
	})
	return out
}

func treeSummary(t store.Tree) map[string]any {
	return map[string]any{
		"id":          t.ID,
		"ownerId":     t.OwnerID,
		"name":        t.Name,
		"description": t.Description,
		"persons":     t.PersonCount,
		"families":    t.FamilyCount,
		"roots":       t.RootCount,
		"hasSource":   t.SourceKey != "",
		"createdAt":   t.CreatedAt,
		"updatedAt":   t.UpdatedAt,
	}
}

func personPayload(row store.PersonRow) map[string]any {
	return map[string]any{
		"treeId":     row.TreeID,
		"personId":   row.PersonID,
		"name":       row.Name,
		"surname":    row.Surname,
		"sex":        row.Sex,
		"birthDate":  row.BirthDate,
		"birthPlace": row.BirthPlace,
		"deathDate":  row.DeathDate,
		"deathPlace": row.DeathPlace,
		"occupation": row.Occupation,
	}
}

func notePayload(n store.Note) map[string]any {
	return map[string]any{
		"id":        n.ID,
		"treeId":    n.TreeID,
		"personId":  n.PersonID,
		"author":    n.Author,
		"body":      n.Body,
		"createdAt": n.CreatedAt,
	}
}

func locationPayload(s *cleanup.Summary) map[string]any {
	issues := make([]map[string]any, 0, len(s.Issues))
	for _, issue := range s.Issues {
		item := map[string]any{
			"type":     string(issue.Type),
			"severity": string(issue.Severity),
			"message":  issue.Message,
		}
		if issue.Suggestion != "" {
			item["suggestion"] = issue.Suggestion
		}
		if len(issue.Related) > 0 {
			item["related"] = issue.Related
		}
		issues = append(issues, item)
	}

	payload := map[string]any{
		"raw":        s.Raw,
		"region":     s.Region,
		"count":      s.Count,
		"births":     s.BirthCount,
		"deaths":     s.DeathCount,
		"other":      s.OtherCount,
		"issues":     issues,
		"normalized": s.Hierarchy,
	}
	if s.MinYear != 0 {
		payload["minYear"] = s.MinYear
	}
	if s.MaxYear != 0 {
		payload["maxYear"] = s.MaxYear
	}
	return payload
}

func commitPayload(c store.CommitInfo) map[string]any {
	return map[string]any{
		"hash":      c.Hash,
		"message":   c.Message,
		"author":    c.Author,
		"createdAt": c.CreatedAt,
		"added":     c.Added,
		"removed":   c.Removed,
	}
}

func exportFilename(treeName, version string) string {
	base := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '-'
		default:
			return -1
		}
	}, treeName)
	if base == "" {
		base = "tree"
	}
	if version != "" && version != "latest" {
		base += "-" + version
	}
	return base + ".ged"
}

func shortHash(input string) string {
	sum := sha1.Sum([]byte(strings.ToLower(input)))
	return hex.EncodeToString(sum[:])[:12]
}
