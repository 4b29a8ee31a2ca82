package models

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/supabase-community/supabase-go"
	"go.mongodb.org/mongo-driver/mongo"
)

var Validate = newValidator()

// ErrNotFound is returned by repositories when a row does not exist.
var ErrNotFound = errors.New("not found")

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("featurebits", func(fl validator.FieldLevel) bool {
		return IsFeatureBits(fl.Field().String())
	})
	return v
}

type EventRepo interface {
	Create(ctx context.Context, event *Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*Event, error)
	// GetForUpdate locks the event row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Event, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status EventStatus, approverID *uuid.UUID, at time.Time) error
	// FindOverlapping returns events in the given statuses overlapping iv.
	// A nil venueID searches every venue.
	FindOverlapping(ctx context.Context, venueID *uuid.UUID, iv Interval, statuses []EventStatus, excludeID uuid.UUID) ([]Event, error)
	ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]Event, error)
	GetCompletionView(ctx context.Context, id uuid.UUID) (*CompletionView, error)
	// MarkCompleted flips approved to completed when the end time is before now.
	MarkCompleted(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	ListCompletable(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

type HistoryRepo interface {
	Append(ctx context.Context, entry *EventHistory) error
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]EventHistory, error)
}

type VenueRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Venue, error)
	List(ctx context.Context) ([]Venue, error)
	GetByCode(ctx context.Context, code string) (*Venue, error)
	// UpsertByCode inserts or updates by code. CreatedAt is only written on
	// insert; ID and both timestamps are read back from the stored row.
	UpsertByCode(ctx context.Context, venue *Venue) error
	// ReplaceAvailability swaps every weekly window of the venue and bumps
	// its updated_at.
	ReplaceAvailability(ctx context.Context, venueID uuid.UUID, windows []VenueAvailability, at time.Time) error
	Count(ctx context.Context) (int, error)
}

type DepartmentRepo interface {
	GetByName(ctx context.Context, name string) (*Department, error)
}

type DocumentRepo interface {
	Add(ctx context.Context, doc *EventDocument) error
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]EventDocument, error)
}

type TxRepositories struct {
	Events      EventRepo
	History     HistoryRepo
	Venues      VenueRepo
	Departments DepartmentRepo
	Documents   DocumentRepo
}

// Store hands out repositories bound to the pool or to a transaction.
type Store interface {
	Repos() TxRepositories
	WithTx(ctx context.Context, fn func(ctx context.Context, repos TxRepositories) error) error
	// ReadOnly runs fn in a read-only repeatable-read snapshot.
	ReadOnly(ctx context.Context, fn func(ctx context.Context, repos TxRepositories) error) error
}

// Directory resolves profiles and role holders.
type Directory interface {
	GetUser(ctx context.Context, id uuid.UUID, accessToken string) (*User, error)
	ListUsersByRole(ctx context.Context, role Role, departmentID *uuid.UUID) ([]User, error)
	FindUserByEmail(ctx context.Context, email string) (*User, error)
}

type SupabaseRepo struct {
	supabaseClient *supabase.Client
	serviceClient  *supabase.Client
	url            string
	key            string
}

// SupabaseNewRepo takes the anon client and an optional service-role client
// used for directory lookups outside a user session.
func SupabaseNewRepo(supabaseClient, serviceClient *supabase.Client, url, key string) *SupabaseRepo {
	if serviceClient == nil {
		serviceClient = supabaseClient
	}
	return &SupabaseRepo{
		supabaseClient: supabaseClient,
		serviceClient:  serviceClient,
		url:            url,
		key:            key,
	}
}

// GetAuthenticatedClient returns a Supabase client with the given access token
func (su *SupabaseRepo) GetAuthenticatedClient(accessToken string) (*supabase.Client, error) {
	if su.url == "" || su.key == "" {
		return su.supabaseClient, nil
	}

	options := &supabase.ClientOptions{
		Headers: map[string]string{
			"Authorization": "Bearer " + accessToken,
		},
	}

	return supabase.NewClient(su.url, su.key, options)
}

type MongodbRepo struct {
	mongodbClient *mongo.Client
	dbName        string
}

func MongodbNewRepo(mongodbClient *mongo.Client, dbName string) *MongodbRepo {
	return &MongodbRepo{
		mongodbClient: mongodbClient,
		dbName:        dbName,
	}
}

func (mdb *MongodbRepo) GetCollection(ctx context.Context, colName string) (*mongo.Collection, error) {
	if mdb.mongodbClient == nil {
		return nil, errors.New("mongodb client is not initialized")
	}
	return mdb.mongodbClient.Database(mdb.dbName).Collection(colName), nil
}
