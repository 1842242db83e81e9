package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/blogcore/internal/model"
)

// PostgresCommentRepo はPostgreSQLを使用したコメントリポジトリ。
type PostgresCommentRepo struct {
	db *sql.DB
}

// NewPostgresCommentRepo はPostgresCommentRepoを生成する。
func NewPostgresCommentRepo(db *sql.DB) *PostgresCommentRepo {
	return &PostgresCommentRepo{db: db}
}

// ListByPostID は記事のコメントを作成日時の昇順で返す。
func (r *PostgresCommentRepo) ListByPostID(ctx context.Context, postID int64) ([]*model.Comment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, post_id, author, content, created_at
		 FROM comments
		 WHERE post_id = $1
		 ORDER BY created_at, id`,
		postID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	var comments []*model.Comment
	for rows.Next() {
		c := &model.Comment{}
		if err := rows.Scan(&c.ID, &c.PostID, &c.Author, &c.Content, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate comments: %w", err)
	}
	return comments, nil
}

// Create はコメントを作成する。記事が存在しない場合は ErrNotFound を返す。
func (r *PostgresCommentRepo) Create(ctx context.Context, comment *model.Comment) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO comments (post_id, author, content)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		comment.PostID, comment.Author, comment.Content,
	).Scan(&comment.ID, &comment.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのコメントを削除する。
func (r *PostgresCommentRepo) DeleteByID(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// compile-time interface check
var _ CommentRepository = (*PostgresCommentRepo)(nil)
