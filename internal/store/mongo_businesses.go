package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"business-directory/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoBusinesses stores published businesses in a MongoDB collection.
type MongoBusinesses struct {
	coll *mongo.Collection
}

func NewMongoBusinesses(db *mongo.Database, collection string) *MongoBusinesses {
	return &MongoBusinesses{coll: db.Collection(collection)}
}

func (m *MongoBusinesses) Insert(ctx context.Context, b *models.Business) error {
	if b.ID.IsZero() {
		b.ID = primitive.NewObjectID()
	}
	if _, err := m.coll.InsertOne(ctx, b); err != nil {
		return fmt.Errorf("insert business: %w", err)
	}
	return nil
}

func (m *MongoBusinesses) Update(ctx context.Context, b *models.Business) error {
	res, err := m.coll.ReplaceOne(ctx, bson.M{"_id": b.ID}, b)
	if err != nil {
		return fmt.Errorf("update business: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoBusinesses) GetByAnyID(ctx context.Context, id string) (*models.Business, error) {
	filter := bson.M{"businessId": id}
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		filter = bson.M{"$or": bson.A{bson.M{"_id": oid}, bson.M{"businessId": id}}}
	}

	var b models.Business
	if err := m.coll.FindOne(ctx, filter).Decode(&b); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find business: %w", err)
	}
	return &b, nil
}

func (m *MongoBusinesses) FindByNameExact(ctx context.Context, name string) ([]models.Business, error) {
	return m.find(ctx, bson.M{"businessName": bson.M{
		"$regex":   "^" + regexp.QuoteMeta(name) + "$",
		"$options": "i",
	}}, nil)
}

func (m *MongoBusinesses) FindByMobile(ctx context.Context, mobile string) ([]models.Business, error) {
	return m.find(ctx, bson.M{"mobile": mobile}, nil)
}

func (m *MongoBusinesses) FindByEmail(ctx context.Context, email string) ([]models.Business, error) {
	return m.find(ctx, bson.M{"email": email}, nil)
}

func (m *MongoBusinesses) FindBySocialContains(ctx context.Context, platform, fragment string) ([]models.Business, error) {
	return m.find(ctx, bson.M{"socialLinks." + platform: bson.M{
		"$regex":   regexp.QuoteMeta(fragment),
		"$options": "i",
	}}, nil)
}

func (m *MongoBusinesses) List(ctx context.Context, f BusinessFilter) (BusinessPage, error) {
	page, limit := NormalizePage(f.Page, f.Limit)
	filter := listFilter(f)

	total, err := m.coll.CountDocuments(ctx, filter)
	if err != nil {
		return BusinessPage{}, fmt.Errorf("count businesses: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "verified", Value: -1}, {Key: "createdAt", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	items, err := m.find(ctx, filter, opts)
	if err != nil {
		return BusinessPage{}, err
	}
	return BusinessPage{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// listFilter builds the public listing query. A business serving all of Georgia
// shows up under every city filter.
func listFilter(f BusinessFilter) bson.M {
	filter := bson.M{}
	if len(f.Categories) > 0 {
		filter["categories"] = bson.M{"$in": f.Categories}
	}
	if len(f.Cities) > 0 {
		cities := append(append([]string{}, f.Cities...), models.AllGeorgia)
		filter["cities"] = bson.M{"$in": cities}
	}
	if len(f.BusinessTypes) > 0 {
		filter["businessType"] = bson.M{"$in": f.BusinessTypes}
	}
	if f.Verified != nil {
		filter["verified"] = *f.Verified
	}
	if f.Search != "" {
		pattern := bson.M{"$regex": regexp.QuoteMeta(f.Search), "$options": "i"}
		filter["$or"] = bson.A{
			bson.M{"businessName": pattern},
			bson.M{"shortDescription": pattern},
		}
	}
	return filter
}

func (m *MongoBusinesses) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Business, error) {
	if opts == nil {
		opts = options.Find()
	}
	cur, err := m.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find businesses: %w", err)
	}
	defer cur.Close(ctx)

	items := []models.Business{}
	if err := cur.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("decode businesses: %w", err)
	}
	return items, nil
}
