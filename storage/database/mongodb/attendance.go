package mongorepos

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/attendance"
	"github.com/trezcool/ratiba/core/routine"
)

type eventDoc struct {
	ID             primitive.ObjectID `bson:"_id"`
	EntryID        string             `bson:"entry_id"`
	RoutineID      string             `bson:"routine_id"`
	FacultyID      string             `bson:"faculty_id"`
	Date           time.Time          `bson:"date"`
	Status         routine.Status     `bson:"status"`
	MarkedBy       string             `bson:"marked_by"`
	Auto           bool               `bson:"auto"`
	AbsentStudents []string           `bson:"absent_students"`
	CreatedAt      time.Time          `bson:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at"`
}

func (d eventDoc) toEvent() attendance.Event {
	return attendance.Event{
		ID:             d.ID.Hex(),
		EntryID:        d.EntryID,
		RoutineID:      d.RoutineID,
		FacultyID:      d.FacultyID,
		Date:           routine.CalendarDay(d.Date),
		Status:         d.Status,
		MarkedBy:       d.MarkedBy,
		Auto:           d.Auto,
		AbsentStudents: d.AbsentStudents,
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}
}

type absenceDoc struct {
	ID         primitive.ObjectID `bson:"_id"`
	Date       time.Time          `bson:"date"`
	EntryID    string             `bson:"entry_id"`
	RoutineID  string             `bson:"routine_id"`
	FacultyID  string             `bson:"faculty_id"`
	Subject    string             `bson:"subject"`
	Students   []string           `bson:"students"`
	RecordedBy string             `bson:"recorded_by"`
	CreatedAt  time.Time          `bson:"created_at"`
}

type attendanceRepository struct {
	db       *DB
	events   *mongo.Collection
	absences *mongo.Collection
}

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{
		db:       db,
		events:   db.collection(eventCollection),
		absences: db.collection(absenceCollection),
	}
}

func eventKey(entryID string, date time.Time) bson.M {
	return bson.M{"entry_id": routine.NormalizeID(entryID), "date": routine.CalendarDay(date)}
}

func (repo attendanceRepository) GetEvent(ctx context.Context, entryID string, date time.Time) (attendance.Event, error) {
	ctx, cancel := repo.db.withTimeout(ctx)
	defer cancel()

	var doc eventDoc
	err := repo.events.FindOne(ctx, eventKey(entryID, date)).Decode(&doc)
	if isNoDocuments(err) {
		return attendance.Event{}, attendance.ErrEventNotFound
	}
	if err != nil {
		return attendance.Event{}, core.NewStorageError("getting attendance event", err)
	}
	return doc.toEvent(), nil
}

func (repo attendanceRepository) QueryEvents(ctx context.Context, facultyID string, start, end time.Time) ([]attendance.Event, error) {
	ctx, cancel := repo.db.withTimeout(ctx)
	defer cancel()

	cur, err := repo.events.Find(ctx,
		bson.M{
			"faculty_id": facultyID,
			"date":       bson.M{"$gte": routine.CalendarDay(start), "$lte": routine.CalendarDay(end)},
		},
		options.Find().SetSort(bson.D{{Key: "date", Value: 1}}),
	)
	if err != nil {
		return nil, core.NewStorageError("querying attendance events", err)
	}
	var docs []eventDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, core.NewStorageError("decoding attendance events", err)
	}

	events := make([]attendance.Event, 0, len(docs))
	for _, d := range docs {
		events = append(events, d.toEvent())
	}
	return events, nil
}

func (repo attendanceRepository) UpsertEvent(ctx context.Context, e attendance.Event) (attendance.Event, error) {
	ctx, cancel := repo.db.withTimeout(ctx)
	defer cancel()

	var doc eventDoc
	err := repo.events.FindOneAndUpdate(ctx,
		eventKey(e.EntryID, e.Date),
		bson.M{
			"$set": bson.M{
				"routine_id":      e.RoutineID,
				"faculty_id":      e.FacultyID,
				"status":          e.Status,
				"marked_by":       e.MarkedBy,
				"auto":            e.Auto,
				"absent_students": emptyIfNil(e.AbsentStudents),
				"updated_at":      e.UpdatedAt,
			},
			"$setOnInsert": bson.M{
				"_id":        primitive.NewObjectID(),
				"created_at": e.CreatedAt,
			},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return attendance.Event{}, core.NewStorageError("saving attendance event", err)
	}
	return doc.toEvent(), nil
}

func (repo attendanceRepository) InsertEventIfAbsent(ctx context.Context, e attendance.Event) (attendance.Event, bool, error) {
	updCtx, cancel := repo.db.withTimeout(ctx)
	defer cancel()

	res, err := repo.events.UpdateOne(updCtx,
		eventKey(e.EntryID, e.Date),
		bson.M{"$setOnInsert": bson.M{
			"_id":             primitive.NewObjectID(),
			"routine_id":      e.RoutineID,
			"faculty_id":      e.FacultyID,
			"status":          e.Status,
			"marked_by":       e.MarkedBy,
			"auto":            e.Auto,
			"absent_students": emptyIfNil(e.AbsentStudents),
			"created_at":      e.CreatedAt,
			"updated_at":      e.UpdatedAt,
		}},
		options.Update().SetUpsert(true),
	)
	// a concurrent insert of the same key loses the race on the unique index
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return attendance.Event{}, false, core.NewStorageError("inserting attendance event", err)
	}
	created := err == nil && res.UpsertedCount == 1

	stored, err := repo.GetEvent(ctx, e.EntryID, e.Date)
	return stored, created, err
}

func (repo attendanceRepository) CreateAbsence(ctx context.Context, a attendance.Absence) (attendance.Absence, error) {
	ctx, cancel := repo.db.withTimeout(ctx)
	defer cancel()

	doc := absenceDoc{
		ID:         primitive.NewObjectID(),
		Date:       routine.CalendarDay(a.Date),
		EntryID:    a.EntryID,
		RoutineID:  a.RoutineID,
		FacultyID:  a.FacultyID,
		Subject:    a.Subject,
		Students:   emptyIfNil(a.Students),
		RecordedBy: a.RecordedBy,
		CreatedAt:  a.CreatedAt,
	}
	if _, err := repo.absences.InsertOne(ctx, doc); err != nil {
		return attendance.Absence{}, core.NewStorageError("recording absence", err)
	}
	a.ID = doc.ID.Hex()
	a.Date = doc.Date
	return a, nil
}
