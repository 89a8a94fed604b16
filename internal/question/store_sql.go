package question

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

func (s *SQLStore) PutQuestion(ctx context.Context, q Question) (Question, error) {
	if q.ID == "" {
		q.ID = NewID()
	}
	if q.CreatedAt == 0 {
		q.CreatedAt = time.Now().Unix()
	}
	data := "null"
	if len(q.Data) > 0 {
		data = string(q.Data)
	}
	imgs, err := json.Marshal(q.Images)
	if err != nil {
		return Question{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Question{}, err
	}
	defer tx.Rollback()

	var parent interface{}
	_, err = tx.ExecContext(ctx, `INSERT INTO questions
		(id, parent_id, presentation_order, user_id, text, type, data_json, images_json, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE SET
			text=EXCLUDED.text, type=EXCLUDED.type,
			data_json=EXCLUDED.data_json, images_json=EXCLUDED.images_json`,
		q.ID, parent, q.PresentationOrder, q.UserID, q.Text, string(q.Type), data, string(imgs), q.CreatedAt)
	if err != nil {
		return Question{}, mapConstraintErr(err)
	}

	for kind, names := range map[string][]string{
		"category": q.Categories, "keyword": q.Keywords, "subject": q.Subjects,
	} {
		if err := s.linkTaxons(ctx, tx, q.ID, kind, names); err != nil {
			return Question{}, err
		}
	}

	for i, child := range q.Children {
		child.PresentationOrder = i
		if child.ID == "" {
			child.ID = NewID()
		}
		if child.CreatedAt == 0 {
			child.CreatedAt = q.CreatedAt
		}
		cdata := "null"
		if len(child.Data) > 0 {
			cdata = string(child.Data)
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO questions
			(id, parent_id, presentation_order, user_id, text, type, data_json, images_json, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			ON CONFLICT (id) DO UPDATE SET
				presentation_order=EXCLUDED.presentation_order,
				text=EXCLUDED.text, type=EXCLUDED.type, data_json=EXCLUDED.data_json`,
			child.ID, q.ID, i, child.UserID, child.Text, string(child.Type), cdata, "[]", child.CreatedAt)
		if err != nil {
			return Question{}, mapConstraintErr(err)
		}
		q.Children[i] = child
	}

	if err := tx.Commit(); err != nil {
		return Question{}, mapConstraintErr(err)
	}
	return q, nil
}

// linkTaxons upserts name-unique taxonomy rows and links them to the
// question. ON CONFLICT DO NOTHING absorbs create races; the follow-up
// SELECT resolves whichever row won.
func (s *SQLStore) linkTaxons(ctx context.Context, tx *sql.Tx, questionID, kind string, names []string) error {
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO taxons (kind, name) VALUES ($1,$2) ON CONFLICT (kind, name) DO NOTHING`,
			kind, name); err != nil {
			return mapConstraintErr(err)
		}
		var id int64
		if err := tx.QueryRowContext(ctx,
			`SELECT id FROM taxons WHERE kind=$1 AND name=$2`, kind, name).Scan(&id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO question_taxons (question_id, taxon_id) VALUES ($1,$2) ON CONFLICT DO NOTHING`,
			questionID, id); err != nil {
			return mapConstraintErr(err)
		}
	}
	return nil
}

func (s *SQLStore) GetQuestion(ctx context.Context, id string) (Question, error) {
	q, err := s.getOne(ctx, id)
	if err != nil {
		return Question{}, err
	}
	children, err := s.childrenOf(ctx, id)
	if err != nil {
		return Question{}, err
	}
	q.Children = children
	return q, nil
}

func (s *SQLStore) getOne(ctx context.Context, id string) (Question, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, text, type, data_json, images_json, presentation_order, created_at
		 FROM questions WHERE id=$1`, id)
	q, err := scanQuestion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Question{}, ErrNotFound
		}
		return Question{}, err
	}
	if err := s.loadTaxons(ctx, &q); err != nil {
		return Question{}, err
	}
	return q, nil
}

func (s *SQLStore) childrenOf(ctx context.Context, id string) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, text, type, data_json, images_json, presentation_order, created_at
		 FROM questions WHERE parent_id=$1 ORDER BY presentation_order`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

type rowScanner interface{ Scan(dest ...interface{}) error }

func scanQuestion(r rowScanner) (Question, error) {
	var q Question
	var typ, data, imgs string
	if err := r.Scan(&q.ID, &q.UserID, &q.Text, &typ, &data, &imgs, &q.PresentationOrder, &q.CreatedAt); err != nil {
		return Question{}, err
	}
	q.Type = Type(typ)
	if data != "" && data != "null" {
		q.Data = json.RawMessage(data)
	}
	if imgs != "" {
		_ = json.Unmarshal([]byte(imgs), &q.Images)
	}
	return q, nil
}

func (s *SQLStore) loadTaxons(ctx context.Context, q *Question) error {
	rows, err := s.db.QueryContext(ctx, `SELECT t.kind, t.name
		FROM taxons t JOIN question_taxons qt ON qt.taxon_id = t.id
		WHERE qt.question_id=$1 ORDER BY t.name`, q.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var kind, name string
		if err := rows.Scan(&kind, &name); err != nil {
			return err
		}
		switch kind {
		case "category":
			q.Categories = append(q.Categories, name)
		case "keyword":
			q.Keywords = append(q.Keywords, name)
		case "subject":
			q.Subjects = append(q.Subjects, name)
		}
	}
	return rows.Err()
}

func (s *SQLStore) ListQuestions(ctx context.Context, f Filter) ([]Question, error) {
	query := `SELECT id, user_id, text, type, data_json, images_json, presentation_order, created_at
		FROM questions WHERE parent_id IS NULL`
	args := []interface{}{}
	n := 1
	if f.Type != "" {
		query += fmt.Sprintf(" AND type=$%d", n)
		args = append(args, string(f.Type))
		n++
	}
	if f.UserID != "" {
		query += fmt.Sprintf(" AND user_id=$%d", n)
		args = append(args, f.UserID)
		n++
	}
	query += " ORDER BY created_at, id"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", n)
		args = append(args, f.Limit)
		n++
	}
	if f.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", n)
		args = append(args, f.Offset)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *SQLStore) DeleteQuestion(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) UserExists(ctx context.Context, userID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id=$1`, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// EnsureUser inserts a user row if missing. Used at startup to seed the
// admin identity.
func (s *SQLStore) EnsureUser(ctx context.Context, id, username, role string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO users (id, username, role, created_at)
		VALUES ($1,$2,$3,$4) ON CONFLICT (id) DO NOTHING`,
		id, username, role, time.Now().Unix())
	return err
}

// mapConstraintErr turns driver-specific unique violations into
// ErrDuplicate so a racing duplicate-create is retryable at the row level.
func mapConstraintErr(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key") {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}
