package mongorepos

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/handover"
	"github.com/trezcool/ratiba/core/routine"
)

type handoverDoc struct {
	ID             primitive.ObjectID `bson:"_id"`
	FacultyID      string             `bson:"faculty_id"`
	FacultyName    string             `bson:"faculty_name"`
	SubstituteID   string             `bson:"substitute_id"`
	SubstituteName string             `bson:"substitute_name"`
	RoutineID      string             `bson:"routine_id"`
	ClassID        string             `bson:"class_id"`
	DateOfClass    time.Time          `bson:"date_of_class"`
	TimeSlot       string             `bson:"time_slot"`
	Subject        string             `bson:"subject"`
	Course         string             `bson:"course"`
	RoomNo         string             `bson:"room_no"`
	Reason         string             `bson:"reason"`
	Status         handover.Status    `bson:"status"`
	Remarks        string             `bson:"remarks"`
	DecidedBy      string             `bson:"decided_by"`
	DecidedByName  string             `bson:"decided_by_name"`
	DecidedAt      *time.Time         `bson:"decided_at"`
	PropagatedAt   *time.Time         `bson:"propagated_at"`
	CreatedAt      time.Time          `bson:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at"`
}

func newHandoverDoc(r handover.Request, id primitive.ObjectID) handoverDoc {
	return handoverDoc{
		ID:             id,
		FacultyID:      r.FacultyID,
		FacultyName:    r.FacultyName,
		SubstituteID:   r.SubstituteID,
		SubstituteName: r.SubstituteName,
		RoutineID:      r.RoutineID,
		ClassID:        r.ClassID,
		DateOfClass:    routine.CalendarDay(r.DateOfClass),
		TimeSlot:       r.TimeSlot,
		Subject:        r.Subject,
		Course:         r.Course,
		RoomNo:         r.RoomNo,
		Reason:         r.Reason,
		Status:         r.Status,
		Remarks:        r.Remarks,
		DecidedBy:      r.DecidedBy,
		DecidedByName:  r.DecidedByName,
		DecidedAt:      r.DecidedAt,
		PropagatedAt:   r.PropagatedAt,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func (d handoverDoc) toRequest() handover.Request {
	return handover.Request{
		ID:             d.ID.Hex(),
		FacultyID:      d.FacultyID,
		FacultyName:    d.FacultyName,
		SubstituteID:   d.SubstituteID,
		SubstituteName: d.SubstituteName,
		RoutineID:      d.RoutineID,
		ClassID:        d.ClassID,
		DateOfClass:    routine.CalendarDay(d.DateOfClass),
		TimeSlot:       d.TimeSlot,
		Subject:        d.Subject,
		Course:         d.Course,
		RoomNo:         d.RoomNo,
		Reason:         d.Reason,
		Status:         d.Status,
		Remarks:        d.Remarks,
		DecidedBy:      d.DecidedBy,
		DecidedByName:  d.DecidedByName,
		DecidedAt:      utcPtr(d.DecidedAt),
		PropagatedAt:   utcPtr(d.PropagatedAt),
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}
}

type handoverRepository struct {
	db   *DB
	coll *mongo.Collection
}

func NewHandoverRepository(db *DB) handover.Repository {
	return &handoverRepository{db: db, coll: db.collection(handoverCollection)}
}

func (repo handoverRepository) CreateHandover(ctx context.Context, req handover.Request) (handover.Request, error) {
	ctx, cancel := repo.db.withTimeout(ctx)
	defer cancel()

	doc := newHandoverDoc(req, primitive.NewObjectID())
	if _, err := repo.coll.InsertOne(ctx, doc); err != nil {
		return handover.Request{}, core.NewStorageError("creating handover", err)
	}
	return doc.toRequest(), nil
}

func (repo handoverRepository) GetHandoverByID(ctx context.Context, id string) (handover.Request, error) {
	oid, ok := objectID(id)
	if !ok {
		return handover.Request{}, handover.ErrNotFound
	}
	ctx, cancel := repo.db.withTimeout(ctx)
	defer cancel()

	var doc handoverDoc
	err := repo.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if isNoDocuments(err) {
		return handover.Request{}, handover.ErrNotFound
	}
	if err != nil {
		return handover.Request{}, core.NewStorageError("getting handover", err)
	}
	return doc.toRequest(), nil
}

func (repo handoverRepository) QueryHandovers(ctx context.Context, filter handover.QueryFilter) ([]handover.Request, error) {
	ctx, cancel := repo.db.withTimeout(ctx)
	defer cancel()

	query := bson.M{}
	if filter.FacultyID != "" {
		query["faculty_id"] = filter.FacultyID
	}
	if filter.SubstituteID != "" {
		query["substitute_id"] = filter.SubstituteID
	}
	if filter.Party != "" {
		query["$or"] = bson.A{
			bson.M{"faculty_id": filter.Party},
			bson.M{"substitute_id": filter.Party},
		}
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if !filter.Date.IsZero() {
		query["date_of_class"] = routine.CalendarDay(filter.Date)
	}
	if filter.Unpropagated {
		query["propagated_at"] = nil
	}

	cur, err := repo.coll.Find(ctx, query,
		options.Find().SetSort(bson.D{{Key: "date_of_class", Value: -1}, {Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, core.NewStorageError("querying handovers", err)
	}
	var docs []handoverDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, core.NewStorageError("decoding handovers", err)
	}

	reqs := make([]handover.Request, 0, len(docs))
	for _, d := range docs {
		reqs = append(reqs, d.toRequest())
	}
	return reqs, nil
}

func (repo handoverRepository) UpdateHandover(ctx context.Context, req handover.Request) (handover.Request, error) {
	oid, ok := objectID(req.ID)
	if !ok {
		return handover.Request{}, handover.ErrNotFound
	}
	ctx, cancel := repo.db.withTimeout(ctx)
	defer cancel()

	var doc handoverDoc
	err := repo.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{
			"status":          req.Status,
			"remarks":         req.Remarks,
			"decided_by":      req.DecidedBy,
			"decided_by_name": req.DecidedByName,
			"decided_at":      req.DecidedAt,
			"propagated_at":   req.PropagatedAt,
			"updated_at":      req.UpdatedAt,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if isNoDocuments(err) {
		return handover.Request{}, handover.ErrNotFound
	}
	if err != nil {
		return handover.Request{}, core.NewStorageError("updating handover", err)
	}
	return doc.toRequest(), nil
}
