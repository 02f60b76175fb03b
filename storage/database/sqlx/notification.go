package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/notification"
	"github.com/trezcool/ratiba/core/routine"
)

const notificationColumns = "id, user_id, type, description, ref_id, is_read, created_at"

type notificationRow struct {
	ID          string    `db:"id"`
	UserID      string    `db:"user_id"`
	Type        string    `db:"type"`
	Description string    `db:"description"`
	RefID       string    `db:"ref_id"`
	IsRead      bool      `db:"is_read"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r notificationRow) toNotification() notification.Notification {
	return notification.Notification{
		ID:          r.ID,
		UserID:      r.UserID,
		Type:        notification.Type(r.Type),
		Description: r.Description,
		RefID:       r.RefID,
		IsRead:      r.IsRead,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

type notificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) notification.Repository {
	return &notificationRepository{db: db}
}

func (repo notificationRepository) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	n.ID = uuid.NewString()
	_, err := executor(ctx, repo.db).ExecContext(ctx,
		`INSERT INTO notifications (`+notificationColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.UserID, string(n.Type), n.Description, n.RefID, n.IsRead, n.CreatedAt,
	)
	if err != nil {
		return notification.Notification{}, core.NewStorageError("creating notification", err)
	}
	return n, nil
}

func (repo notificationRepository) GetNotificationByID(ctx context.Context, id string) (notification.Notification, error) {
	var row notificationRow
	err := sqlx.GetContext(ctx, executor(ctx, repo.db), &row,
		"SELECT "+notificationColumns+" FROM notifications WHERE id = $1", routine.NormalizeID(id))
	if isNoRows(err) {
		return notification.Notification{}, notification.ErrNotFound
	}
	if err != nil {
		return notification.Notification{}, core.NewStorageError("getting notification", err)
	}
	return row.toNotification(), nil
}

func (repo notificationRepository) QueryNotifications(ctx context.Context, userID string, unreadOnly bool) ([]notification.Notification, error) {
	q := "SELECT " + notificationColumns + " FROM notifications WHERE user_id = $1"
	if unreadOnly {
		q += " AND NOT is_read"
	}
	var rows []notificationRow
	if err := sqlx.SelectContext(ctx, executor(ctx, repo.db), &rows, q+" ORDER BY created_at DESC", userID); err != nil {
		return nil, core.NewStorageError("querying notifications", err)
	}

	notifs := make([]notification.Notification, 0, len(rows))
	for _, r := range rows {
		notifs = append(notifs, r.toNotification())
	}
	return notifs, nil
}

func (repo notificationRepository) MarkNotificationRead(ctx context.Context, id string) error {
	res, err := executor(ctx, repo.db).ExecContext(ctx, "UPDATE notifications SET is_read = TRUE WHERE id = $1", id)
	if err != nil {
		return core.NewStorageError("marking notification read", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notification.ErrNotFound
	}
	return nil
}
