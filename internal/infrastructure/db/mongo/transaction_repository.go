package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/expense-tracker/graphql-api/internal/core/domain"
	"github.com/expense-tracker/graphql-api/internal/core/ports"
)

type TransactionRepository struct {
	col *mongo.Collection
}

func NewTransactionRepository(db *mongo.Database) *TransactionRepository {
	return &TransactionRepository{col: db.Collection(collectionTransactions)}
}

// mongoTransaction stores userId as an ObjectID reference to users._id.
type mongoTransaction struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	UserID      primitive.ObjectID `bson:"userId"`
	Description string             `bson:"description"`
	PaymentType string             `bson:"paymentType"`
	Category    string             `bson:"category"`
	Amount      float64            `bson:"amount"`
	Location    string             `bson:"location"`
	Date        time.Time          `bson:"date"`
}

func (m mongoTransaction) toDomain() *domain.Transaction {
	return &domain.Transaction{
		ID:          m.ID.Hex(),
		UserID:      m.UserID.Hex(),
		Description: m.Description,
		PaymentType: domain.PaymentType(m.PaymentType),
		Category:    domain.Category(m.Category),
		Amount:      m.Amount,
		Location:    m.Location,
		Date:        m.Date.UTC(),
	}
}

// Create inserts a new transaction document.
func (r *TransactionRepository) Create(ctx context.Context, t *domain.Transaction) (*domain.Transaction, error) {
	owner, err := primitive.ObjectIDFromHex(t.UserID)
	if err != nil {
		return nil, fmt.Errorf("insert transaction: invalid owner id %q", t.UserID)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := mongoTransaction{
		ID:          primitive.NewObjectID(),
		UserID:      owner,
		Description: t.Description,
		PaymentType: string(t.PaymentType),
		Category:    string(t.Category),
		Amount:      t.Amount,
		Location:    t.Location,
		Date:        t.Date.UTC(),
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *TransactionRepository) FindByID(ctx context.Context, id string) (*domain.Transaction, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrTransactionNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mt mongoTransaction
	if err := r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&mt); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("find transaction: %w", err)
	}
	return mt.toDomain(), nil
}

// ListByUser returns the user's transactions ordered by date, newest first.
// Ties are broken by _id so the order is stable between calls.
func (r *TransactionRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Transaction, error) {
	owner, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return []*domain.Transaction{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := r.col.Find(ctx, bson.M{"userId": owner}, opts)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer cur.Close(ctx)

	var docs []mongoTransaction
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}

	out := make([]*domain.Transaction, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

// Update atomically applies patch when the transaction belongs to ownerID.
func (r *TransactionRepository) Update(ctx context.Context, id, ownerID string, patch ports.TransactionPatch) (*domain.Transaction, error) {
	filter, ok := ownedFilter(id, ownerID)
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var mt mongoTransaction
	err := r.col.FindOneAndUpdate(ctx, filter, bson.M{"$set": patchToSet(patch)}, opts).Decode(&mt)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("update transaction: %w", err)
	}
	return mt.toDomain(), nil
}

// Delete atomically removes the transaction when it belongs to ownerID.
func (r *TransactionRepository) Delete(ctx context.Context, id, ownerID string) (*domain.Transaction, error) {
	filter, ok := ownedFilter(id, ownerID)
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mt mongoTransaction
	if err := r.col.FindOneAndDelete(ctx, filter).Decode(&mt); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("delete transaction: %w", err)
	}
	return mt.toDomain(), nil
}

func ownedFilter(id, ownerID string) (bson.M, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, false
	}
	owner, err := primitive.ObjectIDFromHex(ownerID)
	if err != nil {
		return nil, false
	}
	return bson.M{"_id": oid, "userId": owner}, true
}

func patchToSet(p ports.TransactionPatch) bson.M {
	set := bson.M{}
	if p.Description != nil {
		set["description"] = *p.Description
	}
	if p.PaymentType != nil {
		set["paymentType"] = string(*p.PaymentType)
	}
	if p.Category != nil {
		set["category"] = string(*p.Category)
	}
	if p.Amount != nil {
		set["amount"] = *p.Amount
	}
	if p.Location != nil {
		set["location"] = *p.Location
	}
	if p.Date != nil {
		set["date"] = p.Date.UTC()
	}
	return set
}
