package db

import (
	"context"
	"fmt"
	"time"

	"github.com/abkawan/atm-teller/internal/models"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDB archives committed history entries. Accounts keep only their last
// ten entries; the journal keeps all of them.
type MongoDB struct {
	client     *mongo.Client
	collection *mongo.Collection
}

type journalDocument struct {
	ID               string               `bson:"_id"`
	AccountNumber    string               `bson:"account_number"`
	Kind             string               `bson:"kind"`
	Amount           primitive.Decimal128 `bson:"amount"`
	ResultingBalance primitive.Decimal128 `bson:"resulting_balance"`
	Timestamp        time.Time            `bson:"timestamp"`
	ArchivedAt       time.Time            `bson:"archived_at"`
}

// creates a new MongoDB instance
func NewMongoDB(uri, dbName string) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Mongodb: %w", err)
	}

	// pinging the database
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping Mongodb: %w", err)
	}

	collection := client.Database(dbName).Collection("journal")

	indexModels := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "account_number", Value: 1}, {Key: "timestamp", Value: -1}},
		},
	}

	_, err = collection.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return &MongoDB{
		client:     client,
		collection: collection,
	}, nil
}

// closes the mongoDB connection
func (m *MongoDB) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// InsertEntry archives one event. Redelivered events are ignored.
func (m *MongoDB) InsertEntry(ctx context.Context, ev models.EntryEvent) error {
	doc, err := toJournalDocument(ev)
	if err != nil {
		return err
	}
	doc.ArchivedAt = time.Now()

	_, err = m.collection.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("failed to insert journal entry: %w", err)
	}

	return nil
}

// retrieves archived entries for an account, newest first
func (m *MongoDB) GetEntriesByAccount(ctx context.Context, accountNumber string, limit, offset int) ([]models.TransactionEntry, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := m.collection.Find(ctx, bson.M{"account_number": accountNumber}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find journal entries: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []journalDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode journal entries: %w", err)
	}

	entries := make([]models.TransactionEntry, 0, len(docs))
	for _, doc := range docs {
		e, err := fromJournalDocument(doc)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, nil
}

func toJournalDocument(ev models.EntryEvent) (journalDocument, error) {
	amount, err := primitive.ParseDecimal128(ev.Entry.Amount.String())
	if err != nil {
		return journalDocument{}, fmt.Errorf("failed to convert amount: %w", err)
	}

	balance, err := primitive.ParseDecimal128(ev.Entry.ResultingBalance.String())
	if err != nil {
		return journalDocument{}, fmt.Errorf("failed to convert balance: %w", err)
	}

	return journalDocument{
		ID:               ev.Entry.ID,
		AccountNumber:    ev.AccountNumber,
		Kind:             string(ev.Entry.Kind),
		Amount:           amount,
		ResultingBalance: balance,
		Timestamp:        ev.Entry.Timestamp,
	}, nil
}

func fromJournalDocument(doc journalDocument) (models.TransactionEntry, error) {
	amount, err := decimal.NewFromString(doc.Amount.String())
	if err != nil {
		return models.TransactionEntry{}, fmt.Errorf("failed to convert amount: %w", err)
	}

	balance, err := decimal.NewFromString(doc.ResultingBalance.String())
	if err != nil {
		return models.TransactionEntry{}, fmt.Errorf("failed to convert balance: %w", err)
	}

	return models.TransactionEntry{
		ID:               doc.ID,
		Timestamp:        doc.Timestamp,
		Kind:             models.TransactionKind(doc.Kind),
		Amount:           amount,
		ResultingBalance: balance,
	}, nil
}
