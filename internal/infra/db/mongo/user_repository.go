package mongo

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainuser "tradepost/internal/domain/user"
)

type UserRepository struct {
	col *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{col: db.Collection("users")}
}

func (r *UserRepository) ByID(ctx context.Context, id domainuser.ID) (*domainuser.User, error) {
	var doc userDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		return nil, mapStoreError(err)
	}
	return doc.toDomain(), nil
}

func (r *UserRepository) Save(ctx context.Context, u *domainuser.User) error {
	doc := newUserDocument(u)
	opts := options.Replace().SetUpsert(true)
	if _, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts); err != nil {
		return mapStoreError(err)
	}
	return nil
}

func (r *UserRepository) List(ctx context.Context, params domainuser.ListParams) ([]*domainuser.User, int64, error) {
	filter := bson.M{}
	if query := strings.TrimSpace(params.Query); query != "" {
		pattern := primitive.Regex{Pattern: query, Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"email": pattern},
			bson.M{"name": pattern},
		}
	}
	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, mapStoreError(err)
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(params.Offset)).
		SetLimit(int64(limit))
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, mapStoreError(err)
	}
	defer cursor.Close(ctx)

	var out []*domainuser.User
	for cursor.Next(ctx) {
		var doc userDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, 0, mapStoreError(err)
		}
		out = append(out, doc.toDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, mapStoreError(err)
	}
	return out, total, nil
}

type userDocument struct {
	ID        string `bson:"_id"`
	Email     string `bson:"email"`
	Name      string `bson:"name,omitempty"`
	Admin     bool   `bson:"admin"`
	CreatedAt int64  `bson:"created_at"`
	UpdatedAt int64  `bson:"updated_at"`
}

func newUserDocument(u *domainuser.User) userDocument {
	return userDocument{
		ID:        string(u.ID),
		Email:     u.Email,
		Name:      u.Name,
		Admin:     u.Admin,
		CreatedAt: timeToMillis(u.CreatedAt),
		UpdatedAt: timeToMillis(u.UpdatedAt),
	}
}

func (d userDocument) toDomain() *domainuser.User {
	return &domainuser.User{
		ID:        domainuser.ID(d.ID),
		Email:     d.Email,
		Name:      d.Name,
		Admin:     d.Admin,
		CreatedAt: millisToTime(d.CreatedAt),
		UpdatedAt: millisToTime(d.UpdatedAt),
	}
}

var _ domainuser.Repository = (*UserRepository)(nil)
