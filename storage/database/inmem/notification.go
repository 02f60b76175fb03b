package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/ratiba/core/notification"
	"github.com/trezcool/ratiba/core/routine"
)

type notificationRepository struct {
	db *notificationTable
}

func NewNotificationRepository(db *DB) notification.Repository {
	return &notificationRepository{db: db.notification}
}

func (repo *notificationRepository) CreateNotification(_ context.Context, n notification.Notification) (notification.Notification, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	n.ID = newID()
	repo.db.table[n.ID] = &n
	return n, nil
}

func (repo *notificationRepository) GetNotificationByID(_ context.Context, id string) (notification.Notification, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if n, ok := repo.db.table[routine.NormalizeID(id)]; ok {
		return *n, nil
	}
	return notification.Notification{}, notification.ErrNotFound
}

func (repo *notificationRepository) QueryNotifications(_ context.Context, userID string, unreadOnly bool) ([]notification.Notification, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	notifs := make([]notification.Notification, 0)
	for _, n := range repo.db.table {
		if n.UserID == userID && (!unreadOnly || !n.IsRead) {
			notifs = append(notifs, *n)
		}
	}
	sort.Slice(notifs, func(i, j int) bool { return notifs[i].CreatedAt.After(notifs[j].CreatedAt) })
	return notifs, nil
}

func (repo *notificationRepository) MarkNotificationRead(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	n, ok := repo.db.table[id]
	if !ok {
		return notification.ErrNotFound
	}
	n.IsRead = true
	return nil
}
