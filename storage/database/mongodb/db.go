package mongorepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/routine"
)

const (
	facultyCollection      = "faculty"
	routineCollection      = "routines"
	handoverCollection     = "handovers"
	eventCollection        = "attendance_events"
	absenceCollection      = "absences"
	notificationCollection = "notifications"
)

// DB is a mongodb database holding every collection.
type DB struct {
	client     *mongo.Client
	db         *mongo.Database
	timeout    time.Duration
	replicaSet bool
}

var _ core.Transactor = (*DB)(nil)

// Open connects to mongodb and makes sure the indexes exist.
func Open(ctx context.Context, conf *core.Config) (*DB, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(conf.Database.MongoURI()))
	if err != nil {
		return nil, errors.Wrap(err, "connecting to mongodb")
	}
	db := &DB{
		client:     client,
		db:         client.Database(conf.Database.Name),
		timeout:    conf.Database.QueryTimeout,
		replicaSet: conf.Database.ReplicaSet,
	}
	if db.timeout <= 0 {
		db.timeout = 10 * time.Second
	}

	pingCtx, cancel := db.withTimeout(ctx)
	defer cancel()
	if err = client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(err, "pinging mongodb")
	}
	if err = db.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return db, nil
}

func (db *DB) Close(ctx context.Context) error {
	return db.client.Disconnect(ctx)
}

// Drop deletes the database with every collection.
func (db *DB) Drop(ctx context.Context) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()
	return db.db.Drop(ctx)
}

func (db *DB) collection(name string) *mongo.Collection {
	return db.db.Collection(name)
}

func (db *DB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, db.timeout)
}

// EnsureIndexes creates the unique keys the repositories rely on.
func (db *DB) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		facultyCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		routineCollection: {
			{Keys: bson.D{{Key: "faculty_id", Value: 1}, {Key: "revision", Value: -1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "faculty_id", Value: 1}, {Key: "start_date", Value: 1}, {Key: "end_date", Value: 1}}},
		},
		handoverCollection: {
			{Keys: bson.D{{Key: "substitute_id", Value: 1}, {Key: "date_of_class", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "faculty_id", Value: 1}}},
		},
		eventCollection: {
			{Keys: bson.D{{Key: "entry_id", Value: 1}, {Key: "date", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "faculty_id", Value: 1}, {Key: "date", Value: 1}}},
		},
		notificationCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}
	for name, models := range indexes {
		idxCtx, cancel := db.withTimeout(ctx)
		_, err := db.collection(name).Indexes().CreateMany(idxCtx, models)
		cancel()
		if err != nil {
			return errors.Wrapf(err, "creating %s indexes", name)
		}
	}
	return nil
}

// WithinTx runs fn in a multi-document transaction when the deployment is a replica set.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if !db.replicaSet || mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}
	sess, err := db.client.StartSession()
	if err != nil {
		return core.NewStorageError("starting session", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// objectID parses a hex id, tolerating ObjectId("...") wrappers.
func objectID(id string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(routine.NormalizeID(id))
	return oid, err == nil
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

func emptyIfNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
