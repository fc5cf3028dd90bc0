package repository

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/timmy/docqueue/internal/logger"
)

const (
	defaultVectorSize        = 1536
	defaultSegmentCount      = 2
	defaultMemmapThreshold   = 20000
	defaultReplicationFactor = 2
)

var (
	// ErrAuthentication means Qdrant rejected the configured API key.
	ErrAuthentication = errors.New("failed to authenticate with Qdrant, check QDRANT_API_KEY")
	// ErrConnectivity means Qdrant could not be reached.
	ErrConnectivity = errors.New("failed to connect to Qdrant, check QDRANT_URL")
	// ErrInitialization covers every other collection bootstrap failure.
	ErrInitialization = errors.New("failed to initialize Qdrant collection")
)

// CollectionConfig is the schema a collection is created with. It is only
// applied on creation; an existing collection is never compared or altered.
type CollectionConfig struct {
	Name              string
	VectorSize        uint64
	Distance          pb.Distance
	SegmentCount      uint64
	MemmapThreshold   uint64
	ReplicationFactor uint32
}

// DefaultCollectionConfig returns the schema for ada-002 sized vectors.
func DefaultCollectionConfig(name string) CollectionConfig {
	return CollectionConfig{
		Name:              name,
		VectorSize:        defaultVectorSize,
		Distance:          pb.Distance_Cosine,
		SegmentCount:      defaultSegmentCount,
		MemmapThreshold:   defaultMemmapThreshold,
		ReplicationFactor: defaultReplicationFactor,
	}
}

// QdrantConnectionConfig holds configuration for the Qdrant gRPC connection.
type QdrantConnectionConfig struct {
	Address string // host:port of the gRPC endpoint
	APIKey  string
	UseTLS  bool
}

// collectionsAPI and pointsAPI are the parts of the generated clients in use.
type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
}

// apiKeyInterceptor adds the api-key header to every unary call.
func apiKeyInterceptor(apiKey string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", apiKey)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// QdrantRepository handles collection bootstrap and point writes.
type QdrantRepository struct {
	conn        *grpc.ClientConn
	collections collectionsAPI
	points      pointsAPI
}

// NewQdrantRepository dials Qdrant lazily; no RPC is made until first use.
func NewQdrantRepository(cfg *QdrantConnectionConfig) (*QdrantRepository, error) {
	var opts []grpc.DialOption

	if cfg.UseTLS {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{
			MinVersion: tls.VersionTLS12,
		})))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	if cfg.APIKey != "" {
		opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
	}

	conn, err := grpc.NewClient(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectivity, err)
	}

	return &QdrantRepository{
		conn:        conn,
		collections: pb.NewCollectionsClient(conn),
		points:      pb.NewPointsClient(conn),
	}, nil
}

// Close closes the gRPC connection.
func (r *QdrantRepository) Close() error {
	if r.conn == nil {
		return nil
	}
	return r.conn.Close()
}

// EnsureCollection creates the collection when no collection with cfg.Name
// exists. Calling it again is a no-op. Failures are classified as
// ErrAuthentication, ErrConnectivity or ErrInitialization.
func (r *QdrantRepository) EnsureCollection(ctx context.Context, cfg CollectionConfig) error {
	resp, err := r.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return classifyBootstrapError(cfg.Name, err)
	}
	for _, c := range resp.GetCollections() {
		if c.GetName() == cfg.Name {
			logger.CtxDebug(ctx, "Collection already exists: name=%s", cfg.Name)
			return nil
		}
	}

	_, err = r.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: cfg.Name,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     cfg.VectorSize,
					Distance: cfg.Distance,
				},
			},
		},
		OptimizersConfig: &pb.OptimizersConfigDiff{
			DefaultSegmentNumber: optionalUint64(cfg.SegmentCount),
			MemmapThreshold:      optionalUint64(cfg.MemmapThreshold),
		},
		ReplicationFactor: optionalUint32(cfg.ReplicationFactor),
	})
	if err != nil {
		return classifyBootstrapError(cfg.Name, err)
	}

	logger.CtxInfo(ctx, "Created collection: name=%s, size=%d, distance=%s, replication=%d",
		cfg.Name, cfg.VectorSize, cfg.Distance, cfg.ReplicationFactor)
	return nil
}

func classifyBootstrapError(collection string, err error) error {
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unauthenticated, codes.PermissionDenied:
			return fmt.Errorf("%w: %w", ErrAuthentication, err)
		case codes.Unavailable, codes.DeadlineExceeded:
			return fmt.Errorf("%w: %w", ErrConnectivity, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrConnectivity, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unauthorized"), strings.Contains(msg, "unauthenticated"):
		return fmt.Errorf("%w: %w", ErrAuthentication, err)
	case strings.Contains(msg, "econnrefused"), strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "etimedout"), strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return fmt.Errorf("%w: %w", ErrConnectivity, err)
	}
	return fmt.Errorf("%w %s: %w", ErrInitialization, collection, err)
}

func optionalUint64(v uint64) *uint64 {
	return &v
}

func optionalUint32(v uint32) *uint32 {
	return &v
}

// ChunkPayload is stored with every chunk vector.
type ChunkPayload struct {
	URL        string
	Title      string
	Text       string
	ChunkIndex int
	ChunkCount int
	IngestedAt string // RFC 3339
}

// ChunkPoint is one vector to upsert.
type ChunkPoint struct {
	ID      string // UUID
	Vector  []float32
	Payload ChunkPayload
}

// UpsertChunks writes points into collection and waits for the write to apply.
func (r *QdrantRepository) UpsertChunks(ctx context.Context, collection string, chunks []ChunkPoint) error {
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, 0, len(chunks))
	for _, chunk := range chunks {
		uid, err := uuid.Parse(chunk.ID)
		if err != nil {
			return fmt.Errorf("invalid point ID: %w", err)
		}
		points = append(points, &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: uid.String()},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: chunk.Vector},
				},
			},
			Payload: payloadToValues(chunk.Payload),
		})
	}

	wait := true
	_, err := r.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

func payloadToValues(p ChunkPayload) map[string]*pb.Value {
	return map[string]*pb.Value{
		"url":         {Kind: &pb.Value_StringValue{StringValue: p.URL}},
		"title":       {Kind: &pb.Value_StringValue{StringValue: p.Title}},
		"text":        {Kind: &pb.Value_StringValue{StringValue: p.Text}},
		"chunk_index": {Kind: &pb.Value_IntegerValue{IntegerValue: int64(p.ChunkIndex)}},
		"chunk_count": {Kind: &pb.Value_IntegerValue{IntegerValue: int64(p.ChunkCount)}},
		"ingested_at": {Kind: &pb.Value_StringValue{StringValue: p.IngestedAt}},
	}
}

// ChunkPointID derives a stable point ID for chunk index of url, so
// re-ingesting a page overwrites its previous points.
func ChunkPointID(url string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s#%d", url, index))).String()
}
