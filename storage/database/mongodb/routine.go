package mongorepos

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/routine"
)

// attempts at taking the next revision number when creations race
const maxRevisionAttempts = 3

type routineDoc struct {
	ID          primitive.ObjectID `bson:"_id"`
	FacultyID   string             `bson:"faculty_id"`
	FacultyName string             `bson:"faculty_name"`
	StartDate   time.Time          `bson:"start_date"`
	EndDate     *time.Time         `bson:"end_date"`
	Revision    int64              `bson:"revision"`
	Version     int64              `bson:"version"`
	Entries     []routine.Entry    `bson:"entries"`
	CreatedAt   time.Time          `bson:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at"`
}

func (d routineDoc) toRoutine() routine.Routine {
	rtn := routine.Routine{
		ID:          d.ID.Hex(),
		FacultyID:   d.FacultyID,
		FacultyName: d.FacultyName,
		StartDate:   routine.CalendarDay(d.StartDate),
		Revision:    d.Revision,
		Version:     d.Version,
		Entries:     d.Entries,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
	if rtn.Entries == nil {
		rtn.Entries = []routine.Entry{}
	}
	if d.EndDate != nil {
		end := routine.CalendarDay(*d.EndDate)
		rtn.EndDate = &end
	}
	return rtn
}

func withEntryIDs(entries []routine.Entry) []routine.Entry {
	out := make([]routine.Entry, len(entries))
	for i, e := range entries {
		if e.ID == "" {
			e.ID = primitive.NewObjectID().Hex()
		}
		out[i] = e
	}
	return out
}

func endDate(rtn routine.Routine) *time.Time {
	if rtn.EndDate == nil {
		return nil
	}
	end := routine.CalendarDay(*rtn.EndDate)
	return &end
}

type routineRepository struct {
	db   *DB
	coll *mongo.Collection
}

func NewRoutineRepository(db *DB) routine.Repository {
	return &routineRepository{db: db, coll: db.collection(routineCollection)}
}

func (repo routineRepository) nextRevision(ctx context.Context, facultyID string) (int64, error) {
	var last struct {
		Revision int64 `bson:"revision"`
	}
	err := repo.coll.FindOne(ctx,
		bson.M{"faculty_id": facultyID},
		options.FindOne().SetSort(bson.D{{Key: "revision", Value: -1}}).SetProjection(bson.M{"revision": 1}),
	).Decode(&last)
	if isNoDocuments(err) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return last.Revision + 1, nil
}

func (repo routineRepository) CreateRoutine(ctx context.Context, rtn routine.Routine) (routine.Routine, error) {
	ctx, cancel := repo.db.withTimeout(ctx)
	defer cancel()

	doc := routineDoc{
		ID:          primitive.NewObjectID(),
		FacultyID:   rtn.FacultyID,
		FacultyName: rtn.FacultyName,
		StartDate:   routine.CalendarDay(rtn.StartDate),
		EndDate:     endDate(rtn),
		Version:     1,
		Entries:     withEntryIDs(rtn.Entries),
		CreatedAt:   rtn.CreatedAt,
		UpdatedAt:   rtn.UpdatedAt,
	}
	for attempt := 1; ; attempt++ {
		rev, err := repo.nextRevision(ctx, rtn.FacultyID)
		if err != nil {
			return routine.Routine{}, core.NewStorageError("finding last revision", err)
		}
		doc.Revision = rev

		_, err = repo.coll.InsertOne(ctx, doc)
		if mongo.IsDuplicateKeyError(err) && attempt < maxRevisionAttempts {
			continue
		}
		if err != nil {
			return routine.Routine{}, core.NewStorageError("creating routine", err)
		}
		return doc.toRoutine(), nil
	}
}

func (repo routineRepository) GetRoutineByID(ctx context.Context, id string) (routine.Routine, error) {
	oid, ok := objectID(id)
	if !ok {
		return routine.Routine{}, routine.ErrNotFound
	}
	ctx, cancel := repo.db.withTimeout(ctx)
	defer cancel()

	var doc routineDoc
	err := repo.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if isNoDocuments(err) {
		return routine.Routine{}, routine.ErrNotFound
	}
	if err != nil {
		return routine.Routine{}, core.NewStorageError("getting routine", err)
	}
	return doc.toRoutine(), nil
}

func (repo routineRepository) QueryRoutines(ctx context.Context, filter routine.QueryFilter) ([]routine.Routine, error) {
	ctx, cancel := repo.db.withTimeout(ctx)
	defer cancel()

	query := bson.M{}
	if filter.FacultyID != "" {
		query["faculty_id"] = filter.FacultyID
	}
	if !filter.From.IsZero() && !filter.To.IsZero() {
		query["start_date"] = bson.M{"$lte": routine.CalendarDay(filter.To)}
		query["$or"] = bson.A{
			bson.M{"end_date": nil},
			bson.M{"end_date": bson.M{"$gte": routine.CalendarDay(filter.From)}},
		}
	}

	cur, err := repo.coll.Find(ctx, query,
		options.Find().SetSort(bson.D{{Key: "revision", Value: -1}, {Key: "updated_at", Value: -1}}))
	if err != nil {
		return nil, core.NewStorageError("querying routines", err)
	}
	var docs []routineDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, core.NewStorageError("decoding routines", err)
	}

	routines := make([]routine.Routine, 0, len(docs))
	for _, d := range docs {
		routines = append(routines, d.toRoutine())
	}
	return routines, nil
}

func (repo routineRepository) UpdateRoutine(ctx context.Context, rtn routine.Routine) (routine.Routine, error) {
	oid, ok := objectID(rtn.ID)
	if !ok {
		return routine.Routine{}, routine.ErrNotFound
	}
	ctx, cancel := repo.db.withTimeout(ctx)
	defer cancel()

	var doc routineDoc
	err := repo.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "version": rtn.Version},
		bson.M{
			"$set": bson.M{
				"faculty_name": rtn.FacultyName,
				"start_date":   routine.CalendarDay(rtn.StartDate),
				"end_date":     endDate(rtn),
				"entries":      withEntryIDs(rtn.Entries),
				"updated_at":   rtn.UpdatedAt,
			},
			"$inc": bson.M{"version": 1},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if isNoDocuments(err) {
		if _, getErr := repo.GetRoutineByID(ctx, rtn.ID); getErr != nil {
			return routine.Routine{}, getErr
		}
		return routine.Routine{}, routine.ErrVersionConflict
	}
	if err != nil {
		return routine.Routine{}, core.NewStorageError("updating routine", err)
	}
	return doc.toRoutine(), nil
}
