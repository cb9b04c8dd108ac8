package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	domainproperty "staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

const bookingsCollection = "agg_booking"

type BookingRepository struct {
	col *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	return &BookingRepository{col: db.Collection(bookingsCollection)}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.ID) (*domainbooking.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainbooking.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

// Save upserts the booking guarded by its version; a stale version surfaces
// as uow.ErrConcurrentUpdate.
func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	doc := newBookingDocument(b)
	filter := bson.M{"_id": doc.ID, "version": b.Version}
	doc.Version = b.Version + 1
	update := bson.M{"$set": doc}
	res, err := r.col.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return uow.ErrConcurrentUpdate
		}
		return err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return uow.ErrConcurrentUpdate
	}
	b.Version = doc.Version
	return nil
}

func (r *BookingRepository) ListByProperty(ctx context.Context, propertyID domainproperty.ID) ([]*domainbooking.Booking, error) {
	return r.find(ctx, bson.M{"property_id": string(propertyID)})
}

func (r *BookingRepository) ListByGuest(ctx context.Context, guestID string) ([]*domainbooking.Booking, error) {
	return r.find(ctx, bson.M{"guest_id": guestID})
}

func (r *BookingRepository) find(ctx context.Context, filter bson.M) ([]*domainbooking.Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var docs []bookingDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domainbooking.Booking, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toAggregate())
	}
	return out, nil
}

func bookingIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "property_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "guest_id", Value: 1}, {Key: "created_at", Value: -1}}},
	}
}

type bookingDocument struct {
	ID              string          `bson:"_id"`
	PropertyID      string          `bson:"property_id"`
	GuestID         string          `bson:"guest_id"`
	Range           rangeDocument   `bson:"range"`
	Adults          int             `bson:"adults"`
	Children        int             `bson:"children"`
	Price           priceDocument   `bson:"price"`
	Status          string          `bson:"status"`
	PaymentMethod   string          `bson:"payment_method"`
	PaymentStatus   string          `bson:"payment_status"`
	Contact         contactDocument `bson:"guest_contact"`
	SpecialRequests string          `bson:"special_requests,omitempty"`
	ArrivalTime     string          `bson:"arrival_time,omitempty"`
	CreatedAt       int64           `bson:"created_at"`
	UpdatedAt       int64           `bson:"updated_at"`
	Version         int64           `bson:"version"`
}

type rangeDocument struct {
	CheckIn  int64 `bson:"check_in"`
	CheckOut int64 `bson:"check_out"`
}

type priceDocument struct {
	Currency string `bson:"currency"`
	Nightly  int64  `bson:"nightly"`
	Base     int64  `bson:"base"`
	Total    int64  `bson:"total"`
}

type contactDocument struct {
	Name  string `bson:"name,omitempty"`
	Email string `bson:"email,omitempty"`
	Phone string `bson:"phone,omitempty"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	return bookingDocument{
		ID:         string(b.ID),
		PropertyID: string(b.PropertyID),
		GuestID:    b.GuestID,
		Range:      rangeDocument{CheckIn: b.Range.CheckIn.UnixMilli(), CheckOut: b.Range.CheckOut.UnixMilli()},
		Adults:     b.Party.Adults,
		Children:   b.Party.Children,
		Price: priceDocument{
			Currency: b.Price.Total.Currency,
			Nightly:  b.Price.Nightly.Amount,
			Base:     b.Price.Base.Amount,
			Total:    b.Price.Total.Amount,
		},
		Status:          string(b.Status),
		PaymentMethod:   string(b.Payment.Method),
		PaymentStatus:   string(b.Payment.Status),
		Contact:         contactDocument{Name: b.Contact.Name, Email: b.Contact.Email, Phone: b.Contact.Phone},
		SpecialRequests: b.SpecialRequests,
		ArrivalTime:     b.ArrivalTime,
		CreatedAt:       b.CreatedAt.UnixMilli(),
		UpdatedAt:       b.UpdatedAt.UnixMilli(),
		Version:         b.Version,
	}
}

func (d bookingDocument) toAggregate() *domainbooking.Booking {
	return &domainbooking.Booking{
		ID:         domainbooking.ID(d.ID),
		PropertyID: domainproperty.ID(d.PropertyID),
		GuestID:    d.GuestID,
		Range:      daterange.DateRange{CheckIn: timestampToTime(d.Range.CheckIn), CheckOut: timestampToTime(d.Range.CheckOut)},
		Party:      domainbooking.Party{Adults: d.Adults, Children: d.Children},
		Price: domainbooking.Price{
			Nightly: money.Money{Amount: d.Price.Nightly, Currency: d.Price.Currency},
			Base:    money.Money{Amount: d.Price.Base, Currency: d.Price.Currency},
			Total:   money.Money{Amount: d.Price.Total, Currency: d.Price.Currency},
		},
		Status:          domainbooking.Status(d.Status),
		Payment:         domainbooking.Payment{Method: domainbooking.PaymentMethod(d.PaymentMethod), Status: domainbooking.PaymentStatus(d.PaymentStatus)},
		Contact:         domainbooking.Contact{Name: d.Contact.Name, Email: d.Contact.Email, Phone: d.Contact.Phone},
		SpecialRequests: d.SpecialRequests,
		ArrivalTime:     d.ArrivalTime,
		CreatedAt:       timestampToTime(d.CreatedAt),
		UpdatedAt:       timestampToTime(d.UpdatedAt),
		Version:         d.Version,
	}
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
