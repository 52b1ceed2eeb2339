package vectorindex

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

// fakeIndex keeps records in memory and scores queries by shared words.
type fakeIndex struct {
	mu         sync.Mutex
	namespaces map[string]map[string]string
}

func (f *fakeIndex) upsert(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ns := in.GetFields()["namespace"].GetStringValue()
	if f.namespaces[ns] == nil {
		f.namespaces[ns] = map[string]string{}
	}
	for _, v := range in.GetFields()["records"].GetListValue().GetValues() {
		rec := v.GetStructValue().GetFields()
		f.namespaces[ns][rec["id"].GetStringValue()] = rec["text"].GetStringValue()
	}
	return &structpb.Struct{}, nil
}

func (f *fakeIndex) query(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ns := in.GetFields()["namespace"].GetStringValue()
	words := strings.Fields(strings.ToLower(in.GetFields()["text"].GetStringValue()))

	var matches []any
	for id, text := range f.namespaces[ns] {
		hits := 0
		for _, w := range words {
			if strings.Contains(strings.ToLower(text), w) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		matches = append(matches, map[string]any{
			"id":    id,
			"text":  text,
			"score": float64(hits) / float64(len(words)),
		})
	}
	return structpb.NewStruct(map[string]any{"matches": matches})
}

func (f *fakeIndex) deleteNamespace(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.namespaces, in.GetFields()["namespace"].GetStringValue())
	return &structpb.Struct{}, nil
}

func structHandler(method string, fn func(*fakeIndex, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := &structpb.Struct{}
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return fn(srv.(*fakeIndex), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return fn(srv.(*fakeIndex), ctx, req.(*structpb.Struct))
		})
	}
}

var fakeIndexDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Upsert", Handler: structHandler(methodUpsert, (*fakeIndex).upsert)},
		{MethodName: "Query", Handler: structHandler(methodQuery, (*fakeIndex).query)},
		{MethodName: "DeleteNamespace", Handler: structHandler(methodDeleteNamespace, (*fakeIndex).deleteNamespace)},
	},
}

func startFakeIndex(t *testing.T, status healthpb.HealthCheckResponse_ServingStatus) (*GrpcClient, *fakeIndex) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	idx := &fakeIndex{namespaces: map[string]map[string]string{}}
	srv.RegisterService(&fakeIndexDesc, idx)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, status)
	healthpb.RegisterHealthServer(srv, hs)

	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	client := newGrpcClient(conn, 5*time.Second, testLogger())
	t.Cleanup(client.Close)
	return client, idx
}

func TestGrpcClient_UpsertQueryDelete(t *testing.T) {
	client, idx := startFakeIndex(t, healthpb.HealthCheckResponse_SERVING)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, client.waitReady(ctx))

	err := client.Upsert(ctx, "guest-1", []Chunk{
		{ID: "c0", Text: "Built Go microservices with gRPC", Metadata: map[string]string{"chunk": "0"}},
		{ID: "c1", Text: "Managed PostgreSQL clusters"},
	})
	require.NoError(t, err)

	matches, err := client.Query(ctx, "guest-1", "go grpc", 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "c0", matches[0].ID)
	assert.InDelta(t, 1.0, matches[0].Score, 0.0001)

	require.NoError(t, client.DeleteNamespace(ctx, "guest-1"))
	idx.mu.Lock()
	_, exists := idx.namespaces["guest-1"]
	idx.mu.Unlock()
	assert.False(t, exists)

	matches, err = client.Query(ctx, "guest-1", "go grpc", 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestGrpcClient_HealthNotServing(t *testing.T) {
	client, _ := startFakeIndex(t, healthpb.HealthCheckResponse_NOT_SERVING)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := client.waitReady(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, errNotServing)
}

func TestGrpcClient_UpsertEmptyIsNoop(t *testing.T) {
	client, _ := startFakeIndex(t, healthpb.HealthCheckResponse_SERVING)
	require.NoError(t, client.Upsert(context.Background(), "ns", nil))
}
