package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ---- users / auth ----

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	const query = `
		SELECT id, display_name, email, password_hash, role, is_email_verified
		FROM users
		WHERE LOWER(email) = LOWER($1) AND deactivated_at IS NULL
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role, &user.IsEmailVerified)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	const query = `
		SELECT id, display_name, email, password_hash, role, is_email_verified
		FROM users
		WHERE id = $1 AND deactivated_at IS NULL
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role, &user.IsEmailVerified)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash, role, is_email_verified, verification_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, user.ID, user.DisplayName, user.Email, user.PasswordHash, user.Role, user.IsEmailVerified, user.VerificationToken)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateUserVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET verification_token=$2, verification_expires_at=$3, updated_at=NOW()
		WHERE id=$1
	`, userID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("update verification token: %w", err)
	}
	return nil
}

func (s *PostgresStore) VerifyUserEmail(ctx context.Context, token string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET is_email_verified=TRUE, verification_token='', verification_expires_at=NULL, updated_at=NOW()
		WHERE verification_token=$1
			AND verification_token <> ''
			AND (verification_expires_at IS NULL OR verification_expires_at > NOW())
	`, token)
	if err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("verify email result: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1
	`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_resets (token, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, used_at=NULL
	`, token, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("create password reset: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPasswordReset(ctx context.Context, token string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id FROM password_resets
		WHERE token=$1 AND used_at IS NULL AND expires_at > NOW()
	`, token).Scan(&userID)
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *PostgresStore) MarkPasswordResetUsed(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE password_resets SET used_at=NOW() WHERE token=$1`, token)
	if err != nil {
		return fmt.Errorf("mark password reset used: %w", err)
	}
	return nil
}

// ---- trees ----

func (s *PostgresStore) CreateTree(ctx context.Context, tree Tree) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trees (id, owner_id, name, description, source_key, person_count, family_count, root_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, tree.ID, tree.OwnerID, tree.Name, tree.Description, tree.SourceKey,
		tree.PersonCount, tree.FamilyCount, tree.RootCount)
	if err != nil {
		return fmt.Errorf("create tree: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTree(ctx context.Context, treeID string) (Tree, error) {
	const query = `
		SELECT id, owner_id, name, description, source_key, person_count, family_count, root_count, created_at, updated_at
		FROM trees WHERE id=$1
	`
	var t Tree
	err := s.db.QueryRowContext(ctx, query, treeID).Scan(
		&t.ID, &t.OwnerID, &t.Name, &t.Description, &t.SourceKey,
		&t.PersonCount, &t.FamilyCount, &t.RootCount, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Tree{}, err
	}
	return t, nil
}

func (s *PostgresStore) ListTreesForUser(ctx context.Context, userID string) ([]Tree, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT t.id, t.owner_id, t.name, t.description, t.source_key,
			t.person_count, t.family_count, t.root_count, t.created_at, t.updated_at
		FROM trees t
		LEFT JOIN tree_members tm ON tm.tree_id = t.id
		WHERE t.owner_id = $1 OR tm.user_id = $1
		ORDER BY t.updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list trees: %w", err)
	}
	defer rows.Close()

	items := make([]Tree, 0)
	for rows.Next() {
		var t Tree
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Name, &t.Description, &t.SourceKey,
			&t.PersonCount, &t.FamilyCount, &t.RootCount, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan tree: %w", err)
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

func (s *PostgresStore) UpdateTreeCounts(ctx context.Context, treeID string, persons, families, roots int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE trees SET person_count=$2, family_count=$3, root_count=$4, updated_at=NOW()
		WHERE id=$1
	`, treeID, persons, families, roots)
	if err != nil {
		return fmt.Errorf("update tree counts: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateTreeSource(ctx context.Context, treeID, sourceKey string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE trees SET source_key=$2, updated_at=NOW()
		WHERE id=$1
	`, treeID, sourceKey)
	if err != nil {
		return fmt.Errorf("update tree source: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteTree(ctx context.Context, treeID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM trees WHERE id=$1`, treeID)
	if err != nil {
		return fmt.Errorf("delete tree: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete tree result: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ---- person / family projections ----

// ReplaceTreeRows swaps the queryable projection of a tree in one
// transaction. Called after every import or filter commit so the
// tables always mirror the latest graph snapshot.
func (s *PostgresStore) ReplaceTreeRows(ctx context.Context, treeID string, persons []PersonRow, families []FamilyRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace rows: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM persons WHERE tree_id=$1`, treeID); err != nil {
		return fmt.Errorf("clear persons: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM families WHERE tree_id=$1`, treeID); err != nil {
		return fmt.Errorf("clear families: %w", err)
	}

	const insertPerson = `
		INSERT INTO persons (tree_id, person_id, name, surname, sex, birth_date, birth_place, death_date, death_place, occupation, famc)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	for _, p := range persons {
		if _, err := tx.ExecContext(ctx, insertPerson, treeID, p.PersonID, p.Name, p.Surname,
			p.Sex, p.BirthDate, p.BirthPlace, p.DeathDate, p.DeathPlace, p.Occupation, p.FamC); err != nil {
			return fmt.Errorf("insert person %s: %w", p.PersonID, err)
		}
	}

	const insertFamily = `
		INSERT INTO families (tree_id, family_id, husband, wife, marriage_date, marriage_place, child_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, f := range families {
		if _, err := tx.ExecContext(ctx, insertFamily, treeID, f.FamilyID, f.Husband, f.Wife,
			f.MarriageDate, f.MarriagePlace, f.ChildCount); err != nil {
			return fmt.Errorf("insert family %s: %w", f.FamilyID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace rows: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListPersons(ctx context.Context, treeID, surname string, limit, offset int) ([]PersonRow, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT tree_id, person_id, name, surname, sex, birth_date, birth_place, death_date, death_place, occupation, famc
		FROM persons
		WHERE tree_id = $1 AND ($2 = '' OR LOWER(surname) = LOWER($2))
		ORDER BY surname, name, person_id
		LIMIT $3 OFFSET $4
	`, treeID, surname, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	defer rows.Close()

	items := make([]PersonRow, 0)
	for rows.Next() {
		var p PersonRow
		if err := rows.Scan(&p.TreeID, &p.PersonID, &p.Name, &p.Surname, &p.Sex,
			&p.BirthDate, &p.BirthPlace, &p.DeathDate, &p.DeathPlace, &p.Occupation, &p.FamC); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (s *PostgresStore) GetPerson(ctx context.Context, treeID, personID string) (PersonRow, error) {
	const query = `
		SELECT tree_id, person_id, name, surname, sex, birth_date, birth_place, death_date, death_place, occupation, famc
		FROM persons WHERE tree_id=$1 AND person_id=$2
	`
	var p PersonRow
	err := s.db.QueryRowContext(ctx, query, treeID, personID).Scan(
		&p.TreeID, &p.PersonID, &p.Name, &p.Surname, &p.Sex,
		&p.BirthDate, &p.BirthPlace, &p.DeathDate, &p.DeathPlace, &p.Occupation, &p.FamC)
	if err != nil {
		return PersonRow{}, err
	}
	return p, nil
}

// ---- notes ----

func (s *PostgresStore) CreateNote(ctx context.Context, note Note) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notes (id, tree_id, person_id, author_id, author_name, body)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, note.ID, note.TreeID, note.PersonID, note.AuthorID, note.Author, note.Body)
	if err != nil {
		return fmt.Errorf("create note: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListNotes(ctx context.Context, treeID, personID string) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tree_id, person_id, author_id, author_name, body, created_at
		FROM notes
		WHERE tree_id=$1 AND person_id=$2
		ORDER BY created_at ASC
	`, treeID, personID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	items := make([]Note, 0)
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.TreeID, &n.PersonID, &n.AuthorID, &n.Author, &n.Body, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

func (s *PostgresStore) GetNote(ctx context.Context, noteID string) (Note, error) {
	const query = `
		SELECT id, tree_id, person_id, author_id, author_name, body, created_at
		FROM notes WHERE id=$1
	`
	var n Note
	err := s.db.QueryRowContext(ctx, query, noteID).Scan(
		&n.ID, &n.TreeID, &n.PersonID, &n.AuthorID, &n.Author, &n.Body, &n.CreatedAt)
	if err != nil {
		return Note{}, err
	}
	return n, nil
}

func (s *PostgresStore) DeleteNote(ctx context.Context, noteID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id=$1`, noteID)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete note result: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ---- tree members ----

func (s *PostgresStore) UpsertTreeMember(ctx context.Context, member TreeMember) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tree_members (tree_id, user_id, role, granted_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tree_id, user_id) DO UPDATE SET role=EXCLUDED.role, granted_by=EXCLUDED.granted_by, granted_at=NOW()
	`, member.TreeID, member.UserID, member.Role, member.GrantedBy)
	if err != nil {
		return fmt.Errorf("upsert tree member: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListTreeMembers(ctx context.Context, treeID string) ([]TreeMember, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tm.tree_id, tm.user_id, tm.role, tm.granted_by, tm.granted_at, u.email, u.display_name
		FROM tree_members tm
		JOIN users u ON u.id = tm.user_id
		WHERE tm.tree_id = $1
		ORDER BY tm.granted_at ASC
	`, treeID)
	if err != nil {
		return nil, fmt.Errorf("list tree members: %w", err)
	}
	defer rows.Close()

	items := make([]TreeMember, 0)
	for rows.Next() {
		var m TreeMember
		if err := rows.Scan(&m.TreeID, &m.UserID, &m.Role, &m.GrantedBy, &m.GrantedAt, &m.UserEmail, &m.UserName); err != nil {
			return nil, fmt.Errorf("scan tree member: %w", err)
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

func (s *PostgresStore) RemoveTreeMember(ctx context.Context, treeID, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tree_members WHERE tree_id=$1 AND user_id=$2`, treeID, userID)
	if err != nil {
		return fmt.Errorf("remove tree member: %w", err)
	}
	return nil
}

// GetTreeRole resolves a user's effective role on a tree: owners are
// admins, members carry their granted role, everyone else gets "".
func (s *PostgresStore) GetTreeRole(ctx context.Context, treeID, userID string) (string, error) {
	var ownerID string
	err := s.db.QueryRowContext(ctx, `SELECT owner_id FROM trees WHERE id=$1`, treeID).Scan(&ownerID)
	if err != nil {
		return "", err
	}
	if ownerID == userID {
		return "admin", nil
	}

	var role string
	err = s.db.QueryRowContext(ctx, `SELECT role FROM tree_members WHERE tree_id=$1 AND user_id=$2`, treeID, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read tree role: %w", err)
	}
	return role, nil
}

// ---- named versions ----

func (s *PostgresStore) SaveTreeVersion(ctx context.Context, v TreeVersion) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tree_versions (tree_id, name, hash, created_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tree_id, name) DO UPDATE SET hash=EXCLUDED.hash, created_by=EXCLUDED.created_by, created_at=NOW()
	`, v.TreeID, v.Name, v.Hash, v.CreatedBy)
	if err != nil {
		return fmt.Errorf("save tree version: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListTreeVersions(ctx context.Context, treeID string) ([]TreeVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tree_id, name, hash, created_by, created_at
		FROM tree_versions
		WHERE tree_id = $1
		ORDER BY created_at DESC
	`, treeID)
	if err != nil {
		return nil, fmt.Errorf("list tree versions: %w", err)
	}
	defer rows.Close()

	items := make([]TreeVersion, 0)
	for rows.Next() {
		var v TreeVersion
		if err := rows.Scan(&v.TreeID, &v.Name, &v.Hash, &v.CreatedBy, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tree version: %w", err)
		}
		items = append(items, v)
	}
	return items, rows.Err()
}

func (s *PostgresStore) GetTreeVersion(ctx context.Context, treeID, name string) (TreeVersion, error) {
	const query = `
		SELECT tree_id, name, hash, created_by, created_at
		FROM tree_versions WHERE tree_id=$1 AND name=$2
	`
	var v TreeVersion
	err := s.db.QueryRowContext(ctx, query, treeID, name).Scan(&v.TreeID, &v.Name, &v.Hash, &v.CreatedBy, &v.CreatedAt)
	if err != nil {
		return TreeVersion{}, err
	}
	return v, nil
}
