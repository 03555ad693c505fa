package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"answer-engine/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// QdrantStore keeps answered queries as vectors for the semantic cache.
type QdrantStore struct {
	client         *qdrant.Client
	collectionName string
	logger         *slog.Logger
}

func NewQdrantStore(client *qdrant.Client, collectionName string) *QdrantStore {
	return &QdrantStore{
		client:         client,
		collectionName: collectionName,
		logger:         slog.Default().With("component", "qdrant"),
	}
}

func (s *QdrantStore) InitCollection(ctx context.Context, dim uint64) error {
	_, err := s.client.GetCollectionInfo(ctx, s.collectionName)
	if err != nil {
		st, ok := status.FromError(err)
		if ok && st.Code() == codes.NotFound {
			err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
				CollectionName: s.collectionName,
				VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
					Size:     dim,
					Distance: qdrant.Distance_Cosine,
				}),
			})
			if err != nil {
				return fmt.Errorf("failed to create collection: %w", err)
			}
		} else {
			return err
		}
	}

	// Range queries on created_at back the freshness filter.
	_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: s.collectionName,
		FieldName:      "created_at",
		FieldType:      qdrant.FieldType_FieldTypeInteger.Enum(),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		s.logger.Warn("could not create created_at index (might already exist)", "err", err)
	}

	return nil
}

// Search returns the closest cached query scoring at least threshold and
// younger than maxAge, or nil when there is none.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, threshold float32, maxAge time.Duration) (*repository.SemanticHit, error) {
	oldest := time.Now().Add(-maxAge).Unix()
	freshness := &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key: "created_at",
				Range: &qdrant.Range{
					Gte: qdrant.PtrOf(float64(oldest)),
				},
			},
		},
	}

	res, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collectionName,
		Query:          qdrant.NewQuery(vector...),
		Filter:         &qdrant.Filter{Must: []*qdrant.Condition{freshness}},
		Limit:          qdrant.PtrOf(uint64(1)),
		WithPayload:    qdrant.NewWithPayload(true),
		ScoreThreshold: &threshold,
	})
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, nil
	}

	hit := res[0]
	return &repository.SemanticHit{
		Query:   hit.Payload["query"].GetStringValue(),
		Payload: []byte(hit.Payload["answer"].GetStringValue()),
		Score:   hit.Score,
	}, nil
}

func (s *QdrantStore) Save(ctx context.Context, query string, payload []byte, vector []float32) error {
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collectionName,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewIDUUID(uuid.NewString()),
				Vectors: qdrant.NewVectors(vector...),
				Payload: qdrant.NewValueMap(map[string]any{
					"query":      query,
					"answer":     string(payload),
					"created_at": time.Now().Unix(),
				}),
			},
		},
	})
	return err
}
