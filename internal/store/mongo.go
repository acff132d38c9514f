package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"nodebucket/internal/models"
)

const employeesCollection = "employees"

var taskFieldsProjection = bson.D{
	{Key: "_id", Value: 0},
	{Key: "empId", Value: 1},
	{Key: "todo", Value: 1},
	{Key: "done", Value: 1},
}

// MongoStore implements the Store interface on a MongoDB employees
// collection. Every mutation is a single-document update, so the server's
// per-document atomicity is all the consistency it relies on.
type MongoStore struct {
	client    *mongo.Client
	employees *mongo.Collection
}

// NewMongoStore connects to MongoDB and makes sure the empId index exists.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	s := newMongoStore(client.Database(database).Collection(employeesCollection))
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return s, nil
}

func newMongoStore(coll *mongo.Collection) *MongoStore {
	return &MongoStore{
		client:    coll.Database().Client(),
		employees: coll,
	}
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.employees.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "empId", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("empId_unique"),
	})
	if err != nil {
		return fmt.Errorf("failed to create empId index: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Ping checks that the primary is reachable.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// NewTaskID returns the hex form of a fresh ObjectID.
func (s *MongoStore) NewTaskID() string {
	return primitive.NewObjectID().Hex()
}

// FindEmployee retrieves an employee by empId.
func (s *MongoStore) FindEmployee(ctx context.Context, empID int64, proj Projection) (*models.Employee, error) {
	opts := options.FindOne()
	if proj == TaskFields {
		opts.SetProjection(taskFieldsProjection)
	}

	var employee models.Employee
	err := s.employees.FindOne(ctx, bson.M{"empId": empID}, opts).Decode(&employee)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrEmployeeNotFound
		}
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}

	return &employee, nil
}

// PushTask appends a task to the employee's todo array.
func (s *MongoStore) PushTask(ctx context.Context, empID int64, task models.Task) (UpdateResult, error) {
	res, err := s.employees.UpdateOne(ctx,
		bson.M{"empId": empID},
		bson.M{"$push": bson.M{"todo": task}},
	)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("failed to push task: %w", err)
	}
	return UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

// ReplaceTasks sets both task arrays in one update.
func (s *MongoStore) ReplaceTasks(ctx context.Context, empID int64, todo, done []models.Task) (UpdateResult, error) {
	if todo == nil {
		todo = []models.Task{}
	}
	if done == nil {
		done = []models.Task{}
	}

	res, err := s.employees.UpdateOne(ctx,
		bson.M{"empId": empID},
		bson.M{"$set": bson.M{"todo": todo, "done": done}},
	)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("failed to replace tasks: %w", err)
	}
	return UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

// SeedEmployees upserts employees with $setOnInsert so existing documents
// keep their task lists.
func (s *MongoStore) SeedEmployees(ctx context.Context, employees []models.Employee) (int, error) {
	if len(employees) == 0 {
		return 0, nil
	}

	writes := make([]mongo.WriteModel, 0, len(employees))
	for _, e := range employees {
		e.Normalize()
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"empId": e.EmpID}).
			SetUpdate(bson.M{"$setOnInsert": e}).
			SetUpsert(true))
	}

	res, err := s.employees.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return 0, fmt.Errorf("failed to seed employees: %w", err)
	}
	return int(res.UpsertedCount), nil
}
