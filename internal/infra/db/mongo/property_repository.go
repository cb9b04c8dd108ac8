package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"staybook/internal/app/uow"
	domainproperty "staybook/internal/domain/property"
	domainreviews "staybook/internal/domain/reviews"
)

const propertiesCollection = "agg_property"

type PropertyRepository struct {
	col *mongo.Collection
}

func NewPropertyRepository(db *mongo.Database) *PropertyRepository {
	return &PropertyRepository{col: db.Collection(propertiesCollection)}
}

func (r *PropertyRepository) ByID(ctx context.Context, id domainproperty.ID) (*domainproperty.Property, error) {
	var doc propertyDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainproperty.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

// Save inserts new properties and otherwise updates only the owner-managed
// fields under a version check. Reviews and the rating are written solely by
// AppendReview.
func (r *PropertyRepository) Save(ctx context.Context, p *domainproperty.Property) error {
	if p.Version == 0 {
		doc := newPropertyDocument(p)
		doc.Version = 1
		if _, err := r.col.InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return uow.ErrConcurrentUpdate
			}
			return err
		}
		p.Version = 1
		return nil
	}

	next := p.Version + 1
	update := bson.M{"$set": bson.M{
		"owner_id":      p.OwnerID,
		"title":         p.Title,
		"is_active":     p.Active,
		"blocked_dates": daysToMillis(p.BlockedDates),
		"photos":        nonNil(p.Photos),
		"updated_at":    p.UpdatedAt.UnixMilli(),
		"version":       next,
	}}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": string(p.ID), "version": p.Version}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return uow.ErrConcurrentUpdate
	}
	p.Version = next
	return nil
}

func (r *PropertyRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domainproperty.Property, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetProjection(bson.M{"reviews": 0})
	cur, err := r.col.Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var docs []propertyDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domainproperty.Property, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toAggregate())
	}
	return out, nil
}

// AppendReview stores the review and updates sum, count and average in one
// pipeline update. The filter excludes properties the guest already reviewed,
// so concurrent duplicates lose at the storage layer.
func (r *PropertyRepository) AppendReview(ctx context.Context, id domainproperty.ID, review domainreviews.Review) (domainreviews.Rating, error) {
	filter := bson.M{"_id": string(id), "reviews.guest_id": bson.M{"$ne": review.GuestID}}
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"reviews": bson.M{"$concatArrays": bson.A{
				bson.M{"$ifNull": bson.A{"$reviews", bson.A{}}},
				bson.A{bson.M{"$literal": newReviewDocument(review)}},
			}},
			"rating_sum":    bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$rating_sum", 0}}, review.Rating}},
			"total_reviews": bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$total_reviews", 0}}, 1}},
		}}},
		{{Key: "$set", Value: bson.M{
			"average_rating": bson.M{"$divide": bson.A{"$rating_sum", "$total_reviews"}},
		}}},
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"rating_sum": 1, "total_reviews": 1})

	var doc struct {
		Sum   int `bson:"rating_sum"`
		Total int `bson:"total_reviews"`
	}
	err := r.col.FindOneAndUpdate(ctx, filter, pipeline, opts).Decode(&doc)
	if err == nil {
		return domainreviews.Rating{Sum: doc.Sum, Total: doc.Total}, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return domainreviews.Rating{}, err
	}
	n, countErr := r.col.CountDocuments(ctx, bson.M{"_id": string(id)})
	if countErr != nil {
		return domainreviews.Rating{}, countErr
	}
	if n == 0 {
		return domainreviews.Rating{}, domainproperty.ErrNotFound
	}
	return domainreviews.Rating{}, domainreviews.ErrDuplicateReview
}

func propertyIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "_id", Value: 1}, {Key: "reviews.guest_id", Value: 1}}},
	}
}

type propertyDocument struct {
	ID            string           `bson:"_id"`
	OwnerID       string           `bson:"owner_id"`
	Title         string           `bson:"title"`
	Active        bool             `bson:"is_active"`
	BlockedDates  []int64          `bson:"blocked_dates"`
	Photos        []string         `bson:"photos"`
	Reviews       []reviewDocument `bson:"reviews"`
	RatingSum     int              `bson:"rating_sum"`
	TotalReviews  int              `bson:"total_reviews"`
	AverageRating float64          `bson:"average_rating"`
	CreatedAt     int64            `bson:"created_at"`
	UpdatedAt     int64            `bson:"updated_at"`
	Version       int64            `bson:"version"`
}

type reviewDocument struct {
	ID        string `bson:"id"`
	GuestID   string `bson:"guest_id"`
	Rating    int    `bson:"rating"`
	Comment   string `bson:"comment"`
	CreatedAt int64  `bson:"created_at"`
}

func newPropertyDocument(p *domainproperty.Property) propertyDocument {
	reviews := make([]reviewDocument, 0, len(p.Reviews))
	for _, rv := range p.Reviews {
		reviews = append(reviews, newReviewDocument(rv))
	}
	return propertyDocument{
		ID:            string(p.ID),
		OwnerID:       p.OwnerID,
		Title:         p.Title,
		Active:        p.Active,
		BlockedDates:  daysToMillis(p.BlockedDates),
		Photos:        nonNil(p.Photos),
		Reviews:       reviews,
		RatingSum:     p.Rating.Sum,
		TotalReviews:  p.Rating.Total,
		AverageRating: p.Rating.Average(),
		CreatedAt:     p.CreatedAt.UnixMilli(),
		UpdatedAt:     p.UpdatedAt.UnixMilli(),
		Version:       p.Version,
	}
}

func newReviewDocument(r domainreviews.Review) reviewDocument {
	return reviewDocument{
		ID:        string(r.ID),
		GuestID:   r.GuestID,
		Rating:    r.Rating,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt.UnixMilli(),
	}
}

func (d propertyDocument) toAggregate() *domainproperty.Property {
	days := make([]time.Time, 0, len(d.BlockedDates))
	for _, ms := range d.BlockedDates {
		days = append(days, timestampToTime(ms))
	}
	reviews := make([]domainreviews.Review, 0, len(d.Reviews))
	for _, rv := range d.Reviews {
		reviews = append(reviews, domainreviews.Review{
			ID:         domainreviews.ReviewID(rv.ID),
			PropertyID: d.ID,
			GuestID:    rv.GuestID,
			Rating:     rv.Rating,
			Comment:    rv.Comment,
			CreatedAt:  timestampToTime(rv.CreatedAt),
		})
	}
	return &domainproperty.Property{
		ID:           domainproperty.ID(d.ID),
		OwnerID:      d.OwnerID,
		Title:        d.Title,
		Active:       d.Active,
		BlockedDates: days,
		Photos:       nonNil(d.Photos),
		Reviews:      reviews,
		Rating:       domainreviews.Rating{Sum: d.RatingSum, Total: d.TotalReviews},
		CreatedAt:    timestampToTime(d.CreatedAt),
		UpdatedAt:    timestampToTime(d.UpdatedAt),
		Version:      d.Version,
	}
}

func daysToMillis(days []time.Time) []int64 {
	out := make([]int64, 0, len(days))
	for _, d := range days {
		out = append(out, d.UnixMilli())
	}
	return out
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
