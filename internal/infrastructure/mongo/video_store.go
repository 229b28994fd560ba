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
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/hszk-dev/vidproxy/internal/domain/model"
	"github.com/hszk-dev/vidproxy/internal/domain/repository"
	"github.com/hszk-dev/vidproxy/internal/infrastructure/metrics"
)

// videoDoc is the stored shape of a resolution record.
type videoDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Filename    string             `bson:"filename"`
	SourceURL   string             `bson:"user_input_url"`
	DownloadURL string             `bson:"video_download"`
	VideoInfo   bson.D             `bson:"video_info,omitempty"`
	CreatedAt   time.Time          `bson:"created_at"`
}

// VideoStore implements repository.VideoStore on a single collection.
type VideoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewVideoStore creates a store over dbName.collectionName.
func NewVideoStore(client *mongo.Client, dbName, collectionName string) *VideoStore {
	return &VideoStore{
		client:     client,
		collection: client.Database(dbName).Collection(collectionName),
	}
}

// EnsureIndexes creates the unique filename index the dedup check relies on.
func (s *VideoStore) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "filename", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}
	if _, err := s.collection.Indexes().CreateMany(ctx, models); err != nil {
		return unavailable("create indexes", err)
	}
	return nil
}

func (s *VideoStore) FindByFilename(ctx context.Context, filename string) (*model.StoredVideo, error) {
	metrics.StoreQueriesTotal.WithLabelValues(metrics.StoreQuerySelect, metrics.DriverMongo).Inc()

	var doc videoDoc
	if err := s.collection.FindOne(ctx, bson.M{"filename": filename}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrVideoNotFound
		}
		return nil, unavailable("find video", err)
	}

	video, err := fromDoc(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: decode video %q: %v", model.ErrInternal, filename, err)
	}
	return video, nil
}

func (s *VideoStore) InsertIfAbsent(ctx context.Context, video *model.StoredVideo) (bool, error) {
	metrics.StoreQueriesTotal.WithLabelValues(metrics.StoreQueryInsert, metrics.DriverMongo).Inc()

	doc, err := toDoc(video)
	if err != nil {
		return false, fmt.Errorf("%w: encode video %q: %v", model.ErrInternal, video.Filename, err)
	}

	res, err := s.collection.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, unavailable("insert video", err)
	}

	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		video.ID = oid.Hex()
	}
	return true, nil
}

func (s *VideoStore) Count(ctx context.Context) (int64, error) {
	metrics.StoreQueriesTotal.WithLabelValues(metrics.StoreQueryCount, metrics.DriverMongo).Inc()

	n, err := s.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, unavailable("count videos", err)
	}
	return n, nil
}

func (s *VideoStore) TotalPayloadSize(ctx context.Context) (int64, error) {
	metrics.StoreQueriesTotal.WithLabelValues(metrics.StoreQueryAggregate, metrics.DriverMongo).Inc()

	cursor, err := s.collection.Aggregate(ctx, totalSizePipeline())
	if err != nil {
		return 0, unavailable("aggregate size", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Total int64 `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return 0, unavailable("aggregate size", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Total, nil
}

// totalSizePipeline sums the code-point length of every string video_download.
func totalSizePipeline() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: bson.D{
				{Key: "$cond", Value: bson.A{
					bson.D{{Key: "$eq", Value: bson.A{bson.D{{Key: "$type", Value: "$video_download"}}, "string"}}},
					bson.D{{Key: "$strLenCP", Value: "$video_download"}},
					0,
				}},
			}}}},
		}}},
	}
}

func (s *VideoStore) List(ctx context.Context, limit int) ([]model.VideoSummary, error) {
	metrics.StoreQueriesTotal.WithLabelValues(metrics.StoreQuerySelect, metrics.DriverMongo).Inc()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetProjection(bson.D{{Key: "video_info", Value: 0}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, unavailable("list videos", err)
	}
	defer cursor.Close(ctx)

	var docs []videoDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, unavailable("list videos", err)
	}

	out := make([]model.VideoSummary, 0, len(docs))
	for _, d := range docs {
		out = append(out, model.VideoSummary{
			ID:        d.ID.Hex(),
			Filename:  d.Filename,
			SourceURL: d.SourceURL,
			CreatedAt: d.CreatedAt.UTC(),
		})
	}
	return out, nil
}

func (s *VideoStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func toDoc(v *model.StoredVideo) (videoDoc, error) {
	doc := videoDoc{
		Filename:    v.Filename,
		SourceURL:   v.SourceURL,
		DownloadURL: v.DownloadURL,
		CreatedAt:   v.CreatedAt.UTC(),
	}
	if v.ID != "" {
		oid, err := primitive.ObjectIDFromHex(v.ID)
		if err != nil {
			return videoDoc{}, fmt.Errorf("parse id: %w", err)
		}
		doc.ID = oid
	}
	if len(v.Payload) > 0 {
		if err := bson.UnmarshalExtJSON(v.Payload, false, &doc.VideoInfo); err != nil {
			return videoDoc{}, fmt.Errorf("convert payload: %w", err)
		}
	}
	return doc, nil
}

func fromDoc(d videoDoc) (*model.StoredVideo, error) {
	v := &model.StoredVideo{
		Filename:    d.Filename,
		SourceURL:   d.SourceURL,
		DownloadURL: d.DownloadURL,
		CreatedAt:   d.CreatedAt.UTC(),
	}
	if !d.ID.IsZero() {
		v.ID = d.ID.Hex()
	}
	if d.VideoInfo != nil {
		payload, err := bson.MarshalExtJSON(d.VideoInfo, false, false)
		if err != nil {
			return nil, fmt.Errorf("convert payload: %w", err)
		}
		v.Payload = payload
	}
	return v, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: mongo %s: %v", model.ErrStorageUnavailable, op, err)
}
