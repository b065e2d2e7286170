package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/99minutos/messaging-system/internal/core/domain"
)

const roomCollection = "room"

// RoomRepository implements ports.RoomRepository on the room collection.
type RoomRepository struct {
	col *mongo.Collection
}

func NewRoomRepository(db *mongo.Database) *RoomRepository {
	return &RoomRepository{col: db.Collection(roomCollection)}
}

type mongoRoom struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	OwnerID     primitive.ObjectID `bson:"ownerId"`
	Name        string             `bson:"name"`
	Description string             `bson:"description,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

func (mr *mongoRoom) toDomain() *domain.Room {
	return &domain.Room{
		ID:          mr.ID.Hex(),
		OwnerID:     mr.OwnerID.Hex(),
		Name:        mr.Name,
		Description: mr.Description,
		CreatedAt:   mr.CreatedAt.UTC(),
		UpdatedAt:   mr.UpdatedAt.UTC(),
	}
}

// Create inserts a new room document.
func (r *RoomRepository) Create(ctx context.Context, room *domain.Room) (*domain.Room, error) {
	owner, err := parseID(room.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("room owner: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := mongoRoom{
		ID:          primitive.NewObjectID(),
		OwnerID:     owner,
		Name:        room.Name,
		Description: room.Description,
		CreatedAt:   room.CreatedAt,
		UpdatedAt:   room.UpdatedAt,
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}
	return doc.toDomain(), nil
}

// FindByID retrieves a room. Malformed ids are reported as not found.
func (r *RoomRepository) FindByID(ctx context.Context, id string) (*domain.Room, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, domain.ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mr mongoRoom
	if err := r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&mr); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find room: %w", err)
	}
	return mr.toDomain(), nil
}

// List returns one cursor page of rooms.
func (r *RoomRepository) List(ctx context.Context, page domain.Page) ([]*domain.Room, error) {
	filter, opts, err := pageQuery(nil, page)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []mongoRoom
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode rooms: %w", err)
	}

	rooms := make([]*domain.Room, 0, len(docs))
	for i := range docs {
		rooms = append(rooms, docs[i].toDomain())
	}
	return rooms, nil
}

// Update applies the non-nil fields of update and bumps updatedAt.
func (r *RoomRepository) Update(ctx context.Context, id string, update domain.RoomUpdate) error {
	oid, err := parseID(id)
	if err != nil {
		return domain.ErrNotFound
	}

	set := bson.M{"updatedAt": time.Now().UTC()}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Description != nil {
		set["description"] = *update.Description
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update room: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *RoomRepository) Delete(ctx context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return domain.ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// EnsureIndexes creates necessary indexes on the room collection.
func (r *RoomRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "ownerId", Value: 1}}},
	})
	return err
}
