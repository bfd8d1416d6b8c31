package registrationrepo

import (
	"context"
	"errors"
	"time"

	"github.com/anyproto/any-sync/app"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/azydesilva/ecorporate-server/db"
	"github.com/azydesilva/ecorporate-server/domain"
)

const CName = "registration.repo"

var (
	ErrNotFound = errors.New("registration not found")
	// ErrConcurrentUpdate is reported when the record changed since the
	// working copy was read (updatedAt mismatch on replace).
	ErrConcurrentUpdate = errors.New("registration concurrently updated")
)

func New() RegistrationRepo {
	return new(registrationRepo)
}

type RegistrationRepo interface {
	Create(ctx context.Context, reg domain.Registration) (created domain.Registration, err error)
	Get(ctx context.Context, id string) (reg domain.Registration, err error)
	// Update replaces the whole document. The replace is conditional on the
	// updatedAt the working copy was read with.
	Update(ctx context.Context, reg domain.Registration) (updated domain.Registration, err error)
	List(ctx context.Context, status domain.RegistrationStatus) ([]domain.Registration, error)
	Delete(ctx context.Context, id string) (err error)
	app.ComponentRunnable
}

var registrationIndexes = []mongo.IndexModel{
	{
		Keys: bson.D{
			{Key: "status", Value: 1},
		},
	},
	{
		Keys: bson.D{
			{Key: "identity", Value: 1},
		},
	},
	{
		Keys: bson.D{
			{Key: "details.companyNumber", Value: 1},
		},
	},
}

type registrationRepo struct {
	db   db.Database
	coll *mongo.Collection
}

func (r *registrationRepo) Name() (name string) {
	return CName
}

func (r *registrationRepo) Init(a *app.App) (err error) {
	r.db = a.MustComponent(db.CName).(db.Database)
	r.coll = r.db.Db().Collection("registration")
	return
}

func (r *registrationRepo) Run(ctx context.Context) (err error) {
	return ensureIndexes(ctx, r.coll, registrationIndexes...)
}

func ensureIndexes(ctx context.Context, coll *mongo.Collection, indexes ...mongo.IndexModel) (err error) {
	existingIndexes, err := coll.Indexes().ListSpecifications(ctx)
	if err != nil {
		return
	}
	if len(existingIndexes) <= 1 {
		_, err = coll.Indexes().CreateMany(ctx, indexes)
	}
	return
}

func (r *registrationRepo) Create(ctx context.Context, reg domain.Registration) (created domain.Registration, err error) {
	if reg.Id == "" {
		reg.Id = uuid.New().String()
	}
	if reg.Status == "" {
		reg.Status = domain.StatusPaymentProcessing
	}
	now := time.Now().Unix()
	reg.CreatedAt = now
	reg.UpdatedAt = now
	if _, err = r.coll.InsertOne(ctx, reg); err != nil {
		return
	}
	return reg, nil
}

func (r *registrationRepo) Get(ctx context.Context, id string) (reg domain.Registration, err error) {
	if err = r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&reg); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Registration{}, ErrNotFound
		}
		return
	}
	return
}

func (r *registrationRepo) Update(ctx context.Context, reg domain.Registration) (updated domain.Registration, err error) {
	readAt := reg.UpdatedAt
	now := time.Now().Unix()
	if now <= readAt {
		now = readAt + 1
	}
	reg.UpdatedAt = now
	res, err := r.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: reg.Id}, {Key: "updatedAt", Value: readAt}}, reg)
	if err != nil {
		return
	}
	if res.MatchedCount == 0 {
		if _, getErr := r.Get(ctx, reg.Id); getErr != nil {
			return domain.Registration{}, getErr
		}
		return domain.Registration{}, ErrConcurrentUpdate
	}
	return reg, nil
}

func (r *registrationRepo) List(ctx context.Context, status domain.RegistrationStatus) ([]domain.Registration, error) {
	filter := bson.D{}
	if status != "" {
		filter = append(filter, bson.E{Key: "status", Value: status})
	}
	cur, err := r.coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cur.Close(ctx)
	}()
	var regs []domain.Registration
	for cur.Next(ctx) {
		var reg domain.Registration
		if err = cur.Decode(&reg); err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	return regs, nil
}

func (r *registrationRepo) Delete(ctx context.Context, id string) (err error) {
	res, err := r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return
}

func (r *registrationRepo) Close(ctx context.Context) (err error) {
	return
}
