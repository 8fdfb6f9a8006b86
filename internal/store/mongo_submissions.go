package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"business-directory/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSubmissions stores submissions in a MongoDB collection.
type MongoSubmissions struct {
	coll *mongo.Collection
}

func NewMongoSubmissions(db *mongo.Database, collection string) *MongoSubmissions {
	return &MongoSubmissions{coll: db.Collection(collection)}
}

func (m *MongoSubmissions) Insert(ctx context.Context, s *models.BusinessSubmission) error {
	if s.ID.IsZero() {
		s.ID = primitive.NewObjectID()
	}
	if _, err := m.coll.InsertOne(ctx, s); err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (m *MongoSubmissions) GetByID(ctx context.Context, id string) (*models.BusinessSubmission, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return m.findOne(ctx, bson.M{"_id": oid})
}

func (m *MongoSubmissions) GetByTrackingID(ctx context.Context, trackingID string) (*models.BusinessSubmission, error) {
	return m.findOne(ctx, bson.M{"trackingId": trackingID})
}

func (m *MongoSubmissions) findOne(ctx context.Context, filter bson.M) (*models.BusinessSubmission, error) {
	var s models.BusinessSubmission
	if err := m.coll.FindOne(ctx, filter).Decode(&s); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find submission: %w", err)
	}
	return &s, nil
}

func (m *MongoSubmissions) List(ctx context.Context, f SubmissionFilter) (SubmissionPage, error) {
	page, limit := NormalizePage(f.Page, f.Limit)
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}

	total, err := m.coll.CountDocuments(ctx, filter)
	if err != nil {
		return SubmissionPage{}, fmt.Errorf("count submissions: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	items, err := m.find(ctx, filter, opts)
	if err != nil {
		return SubmissionPage{}, err
	}
	return SubmissionPage{Items: items, Total: total, Page: page, Limit: limit}, nil
}

func (m *MongoSubmissions) ListCreatedSince(ctx context.Context, since time.Time, limit int) ([]models.BusinessSubmission, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit))
	return m.find(ctx, bson.M{"createdAt": bson.M{"$gte": since}}, opts)
}

func (m *MongoSubmissions) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.BusinessSubmission, error) {
	cur, err := m.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find submissions: %w", err)
	}
	defer cur.Close(ctx)

	items := []models.BusinessSubmission{}
	if err := cur.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("decode submissions: %w", err)
	}
	return items, nil
}

func (m *MongoSubmissions) UpdateDecision(ctx context.Context, id, expectedStatus string, upd DecisionUpdate) (*models.BusinessSubmission, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	res := m.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "status": expectedStatus},
		decisionUpdateDoc(upd),
		opts,
	)

	var s models.BusinessSubmission
	if err := res.Decode(&s); err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("update submission decision: %w", err)
		}
		// Nothing matched: either the id is unknown or the status already moved.
		if _, getErr := m.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrStatusConflict
	}
	return &s, nil
}

func decisionUpdateDoc(upd DecisionUpdate) bson.M {
	now := time.Now().UTC()
	if upd.Status == models.StatusPending {
		return bson.M{
			"$set": bson.M{"status": upd.Status, "updatedAt": now},
			"$unset": bson.M{
				"reviewedBy":          "",
				"reviewedAt":          "",
				"rejectionReason":     "",
				"publishedBusinessId": "",
			},
		}
	}

	set := bson.M{
		"status":     upd.Status,
		"reviewedBy": upd.ReviewedBy,
		"reviewedAt": upd.ReviewedAt,
		"updatedAt":  now,
	}
	if upd.RejectionReason != "" {
		set["rejectionReason"] = upd.RejectionReason
	}
	if upd.PublishedBusinessID != "" {
		set["publishedBusinessId"] = upd.PublishedBusinessID
	}
	return bson.M{"$set": set}
}
