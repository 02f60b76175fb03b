package mongorepos

import (
	"context"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/faculty"
)

type facultyDoc struct {
	ID         primitive.ObjectID `bson:"_id"`
	Name       string             `bson:"name"`
	Email      string             `bson:"email"`
	Department string             `bson:"department"`
	Subjects   []string           `bson:"subjects"`
	Roles      []string           `bson:"roles"`
	IsActive   bool               `bson:"is_active"`
	CreatedAt  time.Time          `bson:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at"`
}

func newFacultyDoc(fac faculty.Faculty, id primitive.ObjectID) facultyDoc {
	return facultyDoc{
		ID:         id,
		Name:       fac.Name,
		Email:      fac.Email,
		Department: fac.Department,
		Subjects:   emptyIfNil(fac.Subjects),
		Roles:      emptyIfNil(fac.Roles),
		IsActive:   fac.IsActive,
		CreatedAt:  fac.CreatedAt,
		UpdatedAt:  fac.UpdatedAt,
	}
}

func (d facultyDoc) toFaculty() faculty.Faculty {
	return faculty.Faculty{
		ID:         d.ID.Hex(),
		Name:       d.Name,
		Email:      d.Email,
		Department: d.Department,
		Subjects:   d.Subjects,
		Roles:      d.Roles,
		IsActive:   d.IsActive,
		CreatedAt:  d.CreatedAt.UTC(),
		UpdatedAt:  d.UpdatedAt.UTC(),
	}
}

type facultyRepository struct {
	db   *DB
	coll *mongo.Collection
}

func NewFacultyRepository(db *DB) faculty.Repository {
	return &facultyRepository{db: db, coll: db.collection(facultyCollection)}
}

func (repo facultyRepository) findOne(ctx context.Context, filter bson.M) (faculty.Faculty, error) {
	ctx, cancel := repo.db.withTimeout(ctx)
	defer cancel()

	var doc facultyDoc
	err := repo.coll.FindOne(ctx, filter).Decode(&doc)
	if isNoDocuments(err) {
		return faculty.Faculty{}, faculty.ErrNotFound
	}
	if err != nil {
		return faculty.Faculty{}, core.NewStorageError("getting faculty", err)
	}
	return doc.toFaculty(), nil
}

func (repo facultyRepository) CreateFaculty(ctx context.Context, fac faculty.Faculty) (faculty.Faculty, error) {
	ctx, cancel := repo.db.withTimeout(ctx)
	defer cancel()

	doc := newFacultyDoc(fac, primitive.NewObjectID())
	if _, err := repo.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return faculty.Faculty{}, faculty.ErrEmailExists
		}
		return faculty.Faculty{}, core.NewStorageError("creating faculty", err)
	}
	return doc.toFaculty(), nil
}

func (repo facultyRepository) GetFacultyByID(ctx context.Context, id string) (faculty.Faculty, error) {
	oid, ok := objectID(id)
	if !ok {
		return faculty.Faculty{}, faculty.ErrNotFound
	}
	return repo.findOne(ctx, bson.M{"_id": oid})
}

func (repo facultyRepository) GetFacultyByEmail(ctx context.Context, email string) (faculty.Faculty, error) {
	return repo.findOne(ctx, bson.M{"email": primitive.Regex{Pattern: "^" + regexp.QuoteMeta(email) + "$", Options: "i"}})
}

func (repo facultyRepository) QueryFaculty(ctx context.Context, filter faculty.QueryFilter) ([]faculty.Faculty, error) {
	ctx, cancel := repo.db.withTimeout(ctx)
	defer cancel()

	query := bson.M{}
	if filter.ActiveOnly {
		query["is_active"] = true
	}
	if filter.Role != "" {
		query["roles"] = filter.Role
	}
	if filter.Subject != "" {
		query["subjects"] = primitive.Regex{Pattern: "^" + regexp.QuoteMeta(filter.Subject) + "$", Options: "i"}
	}
	if filter.Department != "" {
		query["department"] = primitive.Regex{Pattern: "^" + regexp.QuoteMeta(filter.Department) + "$", Options: "i"}
	}

	cur, err := repo.coll.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, core.NewStorageError("querying faculty", err)
	}
	var docs []facultyDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, core.NewStorageError("decoding faculty", err)
	}

	members := make([]faculty.Faculty, 0, len(docs))
	for _, d := range docs {
		members = append(members, d.toFaculty())
	}
	return members, nil
}

func (repo facultyRepository) UpdateFaculty(ctx context.Context, fac faculty.Faculty) (faculty.Faculty, error) {
	oid, ok := objectID(fac.ID)
	if !ok {
		return faculty.Faculty{}, faculty.ErrNotFound
	}
	ctx, cancel := repo.db.withTimeout(ctx)
	defer cancel()

	var doc facultyDoc
	err := repo.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{
			"name":       fac.Name,
			"email":      fac.Email,
			"department": fac.Department,
			"subjects":   emptyIfNil(fac.Subjects),
			"roles":      emptyIfNil(fac.Roles),
			"is_active":  fac.IsActive,
			"updated_at": fac.UpdatedAt,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	switch {
	case isNoDocuments(err):
		return faculty.Faculty{}, faculty.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return faculty.Faculty{}, faculty.ErrEmailExists
	case err != nil:
		return faculty.Faculty{}, core.NewStorageError("updating faculty", err)
	}
	return doc.toFaculty(), nil
}
