package mongorepos

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/notification"
)

type notificationDoc struct {
	ID          primitive.ObjectID `bson:"_id"`
	UserID      string             `bson:"user_id"`
	Type        notification.Type  `bson:"type"`
	Description string             `bson:"description"`
	RefID       string             `bson:"ref_id"`
	IsRead      bool               `bson:"is_read"`
	CreatedAt   time.Time          `bson:"created_at"`
}

func (d notificationDoc) toNotification() notification.Notification {
	return notification.Notification{
		ID:          d.ID.Hex(),
		UserID:      d.UserID,
		Type:        d.Type,
		Description: d.Description,
		RefID:       d.RefID,
		IsRead:      d.IsRead,
		CreatedAt:   d.CreatedAt.UTC(),
	}
}

type notificationRepository struct {
	db   *DB
	coll *mongo.Collection
}

func NewNotificationRepository(db *DB) notification.Repository {
	return &notificationRepository{db: db, coll: db.collection(notificationCollection)}
}

func (repo notificationRepository) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	ctx, cancel := repo.db.withTimeout(ctx)
	defer cancel()

	doc := notificationDoc{
		ID:          primitive.NewObjectID(),
		UserID:      n.UserID,
		Type:        n.Type,
		Description: n.Description,
		RefID:       n.RefID,
		IsRead:      n.IsRead,
		CreatedAt:   n.CreatedAt,
	}
	if _, err := repo.coll.InsertOne(ctx, doc); err != nil {
		return notification.Notification{}, core.NewStorageError("creating notification", err)
	}
	return doc.toNotification(), nil
}

func (repo notificationRepository) GetNotificationByID(ctx context.Context, id string) (notification.Notification, error) {
	oid, ok := objectID(id)
	if !ok {
		return notification.Notification{}, notification.ErrNotFound
	}
	ctx, cancel := repo.db.withTimeout(ctx)
	defer cancel()

	var doc notificationDoc
	err := repo.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if isNoDocuments(err) {
		return notification.Notification{}, notification.ErrNotFound
	}
	if err != nil {
		return notification.Notification{}, core.NewStorageError("getting notification", err)
	}
	return doc.toNotification(), nil
}

func (repo notificationRepository) QueryNotifications(ctx context.Context, userID string, unreadOnly bool) ([]notification.Notification, error) {
	ctx, cancel := repo.db.withTimeout(ctx)
	defer cancel()

	query := bson.M{"user_id": userID}
	if unreadOnly {
		query["is_read"] = false
	}
	cur, err := repo.coll.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, core.NewStorageError("querying notifications", err)
	}
	var docs []notificationDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, core.NewStorageError("decoding notifications", err)
	}

	notifs := make([]notification.Notification, 0, len(docs))
	for _, d := range docs {
		notifs = append(notifs, d.toNotification())
	}
	return notifs, nil
}

func (repo notificationRepository) MarkNotificationRead(ctx context.Context, id string) error {
	oid, ok := objectID(id)
	if !ok {
		return notification.ErrNotFound
	}
	ctx, cancel := repo.db.withTimeout(ctx)
	defer cancel()

	res, err := repo.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"is_read": true}})
	if err != nil {
		return core.NewStorageError("marking notification read", err)
	}
	if res.MatchedCount == 0 {
		return notification.ErrNotFound
	}
	return nil
}
