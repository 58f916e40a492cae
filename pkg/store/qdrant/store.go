package qdrant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/graphfuse/graphfuse/pkg/config"
	"github.com/graphfuse/graphfuse/pkg/domain"
	"github.com/graphfuse/graphfuse/pkg/log"
)

const dialTimeout = 30 * time.Second

var waitTrue = true

// Store keeps embedded chunks in a Qdrant collection over grpc.
type Store struct {
	points      pb.PointsClient
	collections pb.CollectionsClient
	conn        *grpc.ClientConn
	collection  string
	vectorSize  uint64
}

// New connects and makes sure the collection exists with the given
// vector width. A width mismatch against an existing collection is an
// error; the caller decides whether to reset.
func New(cfg config.QdrantConfig, vectorSize int) (*Store, error) {
	url := strings.TrimPrefix(strings.TrimPrefix(cfg.URL, "http://"), "https://")

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	conn, err := grpc.DialContext(ctx, url, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to qdrant: %v", domain.ErrBackendIO, err)
	}

	s := &Store{
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		conn:        conn,
		collection:  cfg.Collection,
		vectorSize:  uint64(vectorSize),
	}
	if err := s.ensureCollection(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureCollection(ctx context.Context) error {
	listResp, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("%w: listing collections: %v", domain.ErrBackendIO, err)
	}

	for _, col := range listResp.Collections {
		if col.Name != s.collection {
			continue
		}
		info, err := s.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: s.collection})
		if err != nil {
			return fmt.Errorf("%w: inspecting collection: %v", domain.ErrBackendIO, err)
		}
		if params := info.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams(); params != nil {
			if params.Size != s.vectorSize {
				return fmt.Errorf("%w: collection %s has vector size %d, embedder produces %d",
					domain.ErrConfig, s.collection, params.Size, s.vectorSize)
			}
		}
		return nil
	}

	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     s.vectorSize,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: creating collection: %v", domain.ErrBackendIO, err)
	}
	log.Infof("created qdrant collection %s (dim %d)", s.collection, s.vectorSize)
	return nil
}

func (s *Store) Store(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, 0, len(chunks))
	for _, chunk := range chunks {
		pointID := chunk.ID
		if _, err := uuid.Parse(pointID); err != nil {
			pointID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunk.ID)).String()
		}

		vector := make([]float32, len(chunk.Vector))
		for i, v := range chunk.Vector {
			vector[i] = float32(v)
		}

		payload := map[string]*pb.Value{
			"content":  {Kind: &pb.Value_StringValue{StringValue: chunk.Content}},
			"doc_id":   {Kind: &pb.Value_StringValue{StringValue: chunk.DocumentID}},
			"chunk_id": {Kind: &pb.Value_StringValue{StringValue: chunk.ID}},
		}
		for k, v := range chunk.Metadata {
			if str, ok := v.(string); ok {
				payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: str}}
			}
		}

		points = append(points, &pb.PointStruct{
			Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: pointID}},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: vector}},
			},
			Payload: payload,
		})
	}

	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
		Wait:           &waitTrue,
	})
	if err != nil {
		return fmt.Errorf("%w: upserting points: %v", domain.ErrBackendIO, err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, vector []float64, topK int) ([]domain.Chunk, error) {
	query := make([]float32, len(vector))
	for i, v := range vector {
		query[i] = float32(v)
	}

	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         query,
		Limit:          uint64(topK),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: qdrant search: %v", domain.ErrBackendIO, err)
	}

	chunks := make([]domain.Chunk, 0, len(resp.Result))
	for _, point := range resp.Result {
		chunk := domain.Chunk{
			ID:       point.Id.GetUuid(),
			Score:    float64(point.Score),
			Metadata: make(map[string]interface{}),
		}
		for k, v := range point.Payload {
			switch k {
			case "content":
				chunk.Content = v.GetStringValue()
			case "doc_id":
				chunk.DocumentID = v.GetStringValue()
			case "chunk_id":
				chunk.ID = v.GetStringValue()
			default:
				chunk.Metadata[k] = v.GetStringValue()
			}
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

func (s *Store) HasIndex(ctx context.Context) (bool, error) {
	resp, err := s.points.Count(ctx, &pb.CountPoints{CollectionName: s.collection})
	if err != nil {
		return false, fmt.Errorf("%w: counting points: %v", domain.ErrBackendIO, err)
	}
	return resp.GetResult().GetCount() > 0, nil
}

// Reset drops and recreates the collection.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: s.collection}); err != nil {
		return fmt.Errorf("%w: deleting collection: %v", domain.ErrBackendIO, err)
	}
	return s.ensureCollection(ctx)
}

func (s *Store) Close() error {
	return s.conn.Close()
}
