// Package mongo provides a MongoDB-backed implementation of the
// storage.Store interface, the primary backend for hosted deployments.
//
// The one invariant the flow depends on, at most one RSVP per invite code,
// maps directly onto MongoDB's unique _id: CreateRSVP is a bare InsertOne
// and a duplicate key error surfaces as storage.ErrAlreadyExists.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readconcern"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.mongodb.org/mongo-driver/v2/mongo/writeconcern"

	"github.com/ldelange/invitation/internal/models"
	"github.com/ldelange/invitation/internal/storage"
)

// Collection names match the original document layout so an existing
// dataset keeps working: guests/{code}, rsvps/{code}, mail/{id}.
const (
	guestsCollection = "guests"
	rsvpsCollection  = "rsvps"
	mailCollection   = "mail"
)

// Ensure MongoStore implements storage.Store
var _ storage.Store = (*MongoStore)(nil)

// MongoStore implements storage.Store using MongoDB.
type MongoStore struct {
	client *mongo.Client
	guests *mongo.Collection
	rsvps  *mongo.Collection
	mail   *mongo.Collection
}

// New creates a new MongoStore with a MongoDB URI: `mongodb://hostname`.
// Writes use majority concern so a committed RSVP survives a primary
// failover.
func New(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	opts := options.Client().ApplyURI(uri)
	opts.SetWriteConcern(writeconcern.Majority())
	opts.SetReadConcern(readconcern.Majority())
	opts.SetReadPreference(readpref.Primary())

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("could not connect to DB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("could not connect to MongoDB: %w", err)
	}

	db := client.Database(dbName)
	return &MongoStore{
		client: client,
		guests: db.Collection(guestsCollection),
		rsvps:  db.Collection(rsvpsCollection),
		mail:   db.Collection(mailCollection),
	}, nil
}

// Close disconnects the underlying client.
func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}

// GetGuest retrieves a guest record by invite code.
func (s *MongoStore) GetGuest(ctx context.Context, code string) (*models.Guest, error) {
	g := &models.Guest{}
	if err := s.guests.FindOne(ctx, bson.M{"_id": code}).Decode(g); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get guest: %w", err)
	}
	return g, nil
}

// UpsertGuest creates or replaces a guest record.
func (s *MongoStore) UpsertGuest(ctx context.Context, guest *models.Guest) error {
	_, err := s.guests.ReplaceOne(ctx,
		bson.M{"_id": guest.Code},
		guest,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert guest: %w", err)
	}
	return nil
}

// GetRSVP retrieves a response by its key.
func (s *MongoStore) GetRSVP(ctx context.Context, code string) (*models.RSVP, error) {
	r := &models.RSVP{}
	if err := s.rsvps.FindOne(ctx, bson.M{"_id": code}).Decode(r); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get rsvp: %w", err)
	}
	return r, nil
}

// CreateRSVP persists a response. The insert is atomic on _id, so two
// sessions racing on the same code cannot both succeed; the loser gets
// ErrAlreadyExists.
func (s *MongoStore) CreateRSVP(ctx context.Context, rsvp *models.RSVP) error {
	if rsvp.CreatedAt.IsZero() {
		rsvp.CreatedAt = time.Now().UTC()
	}
	if _, err := s.rsvps.InsertOne(ctx, rsvp); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert rsvp: %w", err)
	}
	return nil
}

// EnqueueMail inserts a mail request in the pending state.
func (s *MongoStore) EnqueueMail(ctx context.Context, req *models.MailRequest) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	req.Status = models.MailPending

	if _, err := s.mail.InsertOne(ctx, req); err != nil {
		return fmt.Errorf("failed to enqueue mail: %w", err)
	}
	return nil
}

// ClaimMail claims the oldest claimable mail request with a single
// find-and-modify, so concurrent dispatchers never double-send. Claimable
// covers pending requests and sending ones whose claim is older than
// storage.MailReclaimAge, so a dispatcher crash cannot strand a request.
func (s *MongoStore) ClaimMail(ctx context.Context) (*models.MailRequest, error) {
	now := time.Now().UTC()
	req := &models.MailRequest{}
	err := s.mail.FindOneAndUpdate(ctx,
		bson.M{"$or": bson.A{
			bson.M{"status": models.MailPending},
			bson.M{
				"status":    models.MailSending,
				"claimedAt": bson.M{"$lte": now.Add(-storage.MailReclaimAge)},
			},
		}},
		bson.M{
			"$set": bson.M{"status": models.MailSending, "claimedAt": now},
			"$inc": bson.M{"attempts": 1},
		},
		options.FindOneAndUpdate().
			SetSort(bson.D{{Key: "createdAt", Value: 1}}).
			SetReturnDocument(options.After),
	).Decode(req)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to claim mail: %w", err)
	}
	return req, nil
}

// MarkMailSent records a successful dispatch.
func (s *MongoStore) MarkMailSent(ctx context.Context, id string) error {
	_, err := s.mail.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"status": models.MailSent,
			"sentAt": time.Now().UTC(),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark mail sent: %w", err)
	}
	return nil
}

// MarkMailFailed records a dispatch error, returning the request to pending
// unless final is set.
func (s *MongoStore) MarkMailFailed(ctx context.Context, id string, sendErr string, final bool) error {
	status := models.MailPending
	if final {
		status = models.MailFailed
	}
	_, err := s.mail.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"status":    status,
			"lastError": sendErr,
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark mail failed: %w", err)
	}
	return nil
}
