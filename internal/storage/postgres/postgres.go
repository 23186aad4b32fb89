package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/hirelens/resume-video-service/internal/config"
	"github.com/hirelens/resume-video-service/internal/storage"
	"github.com/hirelens/resume-video-service/internal/types"
	"github.com/hirelens/resume-video-service/internal/types/users"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Postgres struct {
	Db *sql.DB
}

// New wraps an already opened database handle.
func New(db *sql.DB) *Postgres {
	return &Postgres{Db: db}
}

// NewPostgres opens the configured database, verifies connectivity and
// applies pending migrations.
func NewPostgres(ctx context.Context, cfg *config.Config) (*Postgres, error) {
	driver := cfg.PGSQL.Driver
	if driver == "" {
		driver = "postgres"
	}
	if driver != "postgres" && driver != "pgx" {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, cfg.PGSQL.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	pg := New(db)
	if err := pg.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("Connected to Postgres database", slog.String("driver", driver))

	return pg, nil
}

// Migrate applies the embedded goose migrations.
func (p *Postgres) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, p.Db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	return p.Db.Close()
}

// pgErrorCode extracts the SQLSTATE from either driver's error type.
func pgErrorCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func mapWriteError(err error, op string) error {
	switch pgErrorCode(err) {
	case "23505":
		return storage.ErrConflict
	case "23503":
		return storage.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (p *Postgres) CreateUser(ctx context.Context, email, password string, role types.Role) (string, error) {
	userID := uuid.NewString()
	query := `
	INSERT INTO users (id, email, password, role)
	VALUES ($1, $2, $3, $4)
	`

	if _, err := p.Db.ExecContext(ctx, query, userID, email, password, role); err != nil {
		return "", mapWriteError(err, "insert user")
	}

	return userID, nil
}

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (users.User, error) {
	return p.getUser(ctx, `SELECT id, email, password, role, created_at FROM users WHERE email = $1`, email)
}

func (p *Postgres) GetUserByID(ctx context.Context, id string) (users.User, error) {
	return p.getUser(ctx, `SELECT id, email, password, role, created_at FROM users WHERE id = $1`, id)
}

func (p *Postgres) getUser(ctx context.Context, query string, arg string) (users.User, error) {
	var (
		user      users.User
		createdAt time.Time
	)
	err := p.Db.QueryRowContext(ctx, query, arg).Scan(&user.ID, &user.Email, &user.Password, &user.Role, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return users.User{}, storage.ErrNotFound
		}
		return users.User{}, fmt.Errorf("select user: %w", err)
	}
	user.CreatedAt = createdAt.UTC().Format(time.RFC3339)
	return user, nil
}

const videoColumns = `id, media_id, job_seeker_id, kind, title, is_public, download_protected, status,
	playback_url, stream_url, thumbnail_url, duration_seconds, created_at, updated_at`

func scanVideo(row interface{ Scan(...any) error }) (types.Video, error) {
	var v types.Video
	err := row.Scan(&v.ID, &v.MediaID, &v.JobSeekerID, &v.Kind, &v.Title, &v.IsPublic, &v.DownloadProtected, &v.Status,
		&v.PlaybackURL, &v.StreamURL, &v.ThumbnailURL, &v.DurationSeconds, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}

func (p *Postgres) CreateVideo(ctx context.Context, v types.Video) error {
	query := `
	INSERT INTO videos (` + videoColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := p.Db.ExecContext(ctx, query, v.ID, v.MediaID, v.JobSeekerID, v.Kind, v.Title, v.IsPublic, v.DownloadProtected,
		v.Status, v.PlaybackURL, v.StreamURL, v.ThumbnailURL, v.DurationSeconds, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "insert video")
	}
	return nil
}

func (p *Postgres) GetVideo(ctx context.Context, id string) (types.Video, error) {
	row := p.Db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id)
	v, err := scanVideo(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Video{}, storage.ErrNotFound
		}
		return types.Video{}, fmt.Errorf("select video: %w", err)
	}
	return v, nil
}

func (p *Postgres) UpdateVideoMetadata(ctx context.Context, id string, update types.VideoMetadataUpdate) (types.Video, error) {
	query := `
	UPDATE videos
	SET title = COALESCE($2, title),
	    thumbnail_url = COALESCE($3, thumbnail_url),
	    duration_seconds = COALESCE($4, duration_seconds),
	    updated_at = NOW()
	WHERE id = $1
	RETURNING ` + videoColumns

	row := p.Db.QueryRowContext(ctx, query, id, nullString(update.Title), nullString(update.ThumbnailURL), nullInt(update.DurationSeconds))
	v, err := scanVideo(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Video{}, storage.ErrNotFound
		}
		return types.Video{}, fmt.Errorf("update video metadata: %w", err)
	}
	return v, nil
}

func (p *Postgres) DeleteVideo(ctx context.Context, id string) error {
	tx, err := p.Db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete video: %w", err)
	}
	defer tx.Rollback()

	if err := deleteVideoTx(ctx, tx, id); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete video: %w", err)
	}
	return nil
}

// deleteVideoTx clears résumé references and deletes the video row. View
// records cascade and applications keep a NULL video_id.
func deleteVideoTx(ctx context.Context, tx *sql.Tx, id string) error {
	if _, err := tx.ExecContext(ctx, `UPDATE resumes SET video_id = NULL WHERE video_id = $1`, id); err != nil {
		return fmt.Errorf("clear resume video reference: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM videos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete video rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (p *Postgres) CreateResume(ctx context.Context, r types.Resume) error {
	query := `
	INSERT INTO resumes (id, job_seeker_id, title, video_id, created_at)
	VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := p.Db.ExecContext(ctx, query, r.ID, r.JobSeekerID, r.Title, emptyAsNull(r.VideoID), r.CreatedAt); err != nil {
		return mapWriteError(err, "insert resume")
	}
	return nil
}

func (p *Postgres) GetResume(ctx context.Context, id string) (types.Resume, error) {
	var (
		r       types.Resume
		videoID sql.NullString
	)
	err := p.Db.QueryRowContext(ctx, `SELECT id, job_seeker_id, title, video_id, created_at FROM resumes WHERE id = $1`, id).
		Scan(&r.ID, &r.JobSeekerID, &r.Title, &videoID, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Resume{}, storage.ErrNotFound
		}
		return types.Resume{}, fmt.Errorf("select resume: %w", err)
	}
	r.VideoID = videoID.String
	return r, nil
}

func (p *Postgres) AttachResumeVideo(ctx context.Context, resumeID, videoID string) error {
	res, err := p.Db.ExecContext(ctx, `UPDATE resumes SET video_id = $2 WHERE id = $1`, resumeID, emptyAsNull(videoID))
	if err != nil {
		return mapWriteError(err, "attach resume video")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("attach resume video rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (p *Postgres) CreateApplication(ctx context.Context, a types.Application) error {
	query := `
	INSERT INTO applications (id, job_seeker_id, employer_id, resume_id, video_id, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := p.Db.ExecContext(ctx, query, a.ID, a.JobSeekerID, a.EmployerID, a.ResumeID, emptyAsNull(a.VideoID), a.CreatedAt)
	if err != nil {
		return mapWriteError(err, "insert application")
	}
	return nil
}

func (p *Postgres) GetApplication(ctx context.Context, id string) (types.Application, error) {
	var (
		a       types.Application
		videoID sql.NullString
	)
	err := p.Db.QueryRowContext(ctx, `
	SELECT id, job_seeker_id, employer_id, resume_id, video_id, created_at
	FROM applications
	WHERE id = $1
	`, id).Scan(&a.ID, &a.JobSeekerID, &a.EmployerID, &a.ResumeID, &videoID, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Application{}, storage.ErrNotFound
		}
		return types.Application{}, fmt.Errorf("select application: %w", err)
	}
	a.VideoID = videoID.String
	return a, nil
}

func (p *Postgres) GetViewCount(ctx context.Context, videoID, applicationID string) (int, error) {
	var count int
	err := p.Db.QueryRowContext(ctx, `
	SELECT view_count FROM video_view_records
	WHERE video_id = $1 AND application_id = $2
	`, videoID, applicationID).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("select view count: %w", err)
	}
	return count, nil
}

func (p *Postgres) IncrementView(ctx context.Context, videoID, applicationID, employerID string, maxViews int) (types.IncrementResult, error) {
	var res types.IncrementResult
	err := p.Db.QueryRowContext(ctx, `
	SELECT success, new_view_count FROM increment_video_view($1, $2, $3, $4)
	`, videoID, applicationID, employerID, maxViews).Scan(&res.Success, &res.NewViewCount)
	if err != nil {
		if pgErrorCode(err) == "23503" {
			return types.IncrementResult{}, storage.ErrNotFound
		}
		return types.IncrementResult{}, fmt.Errorf("increment video view: %w", err)
	}
	return res, nil
}

// reclaimablePredicate filters videos v with $1 = max views and
// $2 = settled-before timestamp.
const reclaimablePredicate = `
	v.kind = 'resume'
	  AND v.is_public = FALSE
	  AND v.status <> 'deleted'
	  AND EXISTS (SELECT 1 FROM applications a WHERE a.video_id = v.id)
	  AND NOT EXISTS (
		SELECT 1
		FROM applications a
		LEFT JOIN video_view_records r ON r.application_id = a.id AND r.video_id = v.id
		WHERE a.video_id = v.id AND COALESCE(r.view_count, 0) < $1
	  )
	  AND NOT EXISTS (
		SELECT 1
		FROM video_view_records r
		WHERE r.video_id = v.id AND r.last_viewed_at > $2
	  )`

func (p *Postgres) ListReclaimable(ctx context.Context, maxViews int, settledBefore time.Time, limit int) ([]types.ReclaimCandidate, error) {
	rows, err := p.Db.QueryContext(ctx, `
	SELECT v.id, v.media_id, v.job_seeker_id
	FROM videos v
	WHERE `+reclaimablePredicate+`
	ORDER BY v.created_at
	LIMIT NULLIF($3, 0)
	`, maxViews, settledBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("query reclaimable videos: %w", err)
	}
	defer rows.Close()

	var candidates []types.ReclaimCandidate
	for rows.Next() {
		var c types.ReclaimCandidate
		if err := rows.Scan(&c.VideoID, &c.MediaID, &c.JobSeekerID); err != nil {
			return nil, fmt.Errorf("scan reclaimable video: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reclaimable videos: %w", err)
	}

	return candidates, nil
}

// ReclaimVideo holds FOR UPDATE on the video row for the whole transaction.
// Inserting a view record or an application referencing the video needs a
// KEY SHARE lock on that row, so both wait until the delete commits.
func (p *Postgres) ReclaimVideo(ctx context.Context, videoID string, maxViews int, settledBefore time.Time, removeRemote func(ctx context.Context) error) (bool, error) {
	tx, err := p.Db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin reclaim video: %w", err)
	}
	defer tx.Rollback()

	var locked string
	err = tx.QueryRowContext(ctx, `SELECT id FROM videos WHERE id = $1 FOR UPDATE`, videoID).Scan(&locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("lock video: %w", err)
	}

	var reclaimable bool
	err = tx.QueryRowContext(ctx, `
	SELECT EXISTS (
		SELECT 1 FROM videos v WHERE v.id = $3 AND `+reclaimablePredicate+`
	)
	`, maxViews, settledBefore, videoID).Scan(&reclaimable)
	if err != nil {
		return false, fmt.Errorf("recheck reclaimable video: %w", err)
	}
	if !reclaimable {
		return false, nil
	}

	if err := removeRemote(ctx); err != nil {
		return false, err
	}

	if err := deleteVideoTx(ctx, tx, videoID); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit reclaim video: %w", err)
	}
	return true, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func emptyAsNull(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ storage.Storage = (*Postgres)(nil)
