package store

import (
	"context"
	"fmt"

	"github.com/georgemblack/feed-sync/pkg/remote"
	"github.com/georgemblack/feed-sync/pkg/util"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `CREATE TABLE IF NOT EXISTS feed_posts (
	id      BIGINT PRIMARY KEY,
	user_id BIGINT NOT NULL,
	title   TEXT NOT NULL,
	body    TEXT NOT NULL,
	liked   BOOLEAN NOT NULL DEFAULT FALSE
)`

var postColumns = []string{"id", "user_id", "title", "body", "liked"}

// Postgres keeps posts in a single table. ReplaceAll runs in one transaction.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

func NewPostgres(ctx context.Context, connStr string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, util.WrapErr("failed to parse database url", err)
	}
	cfg.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, util.WrapErr("failed to connect to database", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, util.WrapErr("failed to init schema", err)
	}

	return &Postgres{pool: pool}, nil
}

func (p *Postgres) ReplaceAll(ctx context.Context, posts []remote.Post) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return util.WrapErr("failed to begin transaction", err)
	}
	defer tx.Rollback(ctx) // no-op after commit

	if _, err := tx.Exec(ctx, "DELETE FROM feed_posts"); err != nil {
		return util.WrapErr("failed to delete posts", err)
	}

	rows := make([][]any, 0, len(posts))
	for _, post := range posts {
		rows = append(rows, []any{post.ID, post.UserID, post.Title, post.Body, false})
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"feed_posts"}, postColumns, pgx.CopyFromRows(rows)); err != nil {
		return util.WrapErr("failed to copy posts", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return util.WrapErr("failed to commit posts", err)
	}
	return nil
}

func (p *Postgres) FetchAll(ctx context.Context) ([]StoredPost, error) {
	rows, err := p.pool.Query(ctx, "SELECT id, user_id, title, body, liked FROM feed_posts")
	if err != nil {
		return nil, util.WrapErr("failed to query posts", err)
	}
	defer rows.Close()

	result := make([]StoredPost, 0)
	for rows.Next() {
		var post StoredPost
		if err := rows.Scan(&post.ID, &post.UserID, &post.Title, &post.Body, &post.Liked); err != nil {
			return nil, util.WrapErr("failed to scan post", err)
		}
		result = append(result, post)
	}
	if err := rows.Err(); err != nil {
		return nil, util.WrapErr("failed to read posts", err)
	}
	return result, nil
}

func (p *Postgres) ToggleLiked(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, "UPDATE feed_posts SET liked = NOT liked WHERE id = $1", id)
	if err != nil {
		return util.WrapErr(fmt.Sprintf("failed to toggle post %d", id), err)
	}
	if tag.RowsAffected() == 0 {
		return util.WrapErr(fmt.Sprintf("failed to toggle post %d", id), ErrNotFound)
	}
	return nil
}

func (p *Postgres) Clear(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, "DELETE FROM feed_posts"); err != nil {
		return util.WrapErr("failed to clear posts", err)
	}
	return nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}
