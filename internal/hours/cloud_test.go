package hours

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// startGRPC serves register on a loopback port and returns client options
// pointing at it.
func startGRPC(t *testing.T, register func(*grpc.Server)) []option.ClientOption {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := grpc.NewServer()
	register(srv)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	return []option.ClientOption{
		option.WithEndpoint(lis.Addr().String()),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	}
}

func writePNG(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Apr 11 - 17.png")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG fake"), 0o644))
	return path
}

type fakeVision struct {
	visionpb.UnimplementedImageAnnotatorServer
	text string
	err  error
	got  *visionpb.BatchAnnotateImagesRequest
}

func (f *fakeVision) BatchAnnotateImages(_ context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &visionpb.BatchAnnotateImagesResponse{
		Responses: []*visionpb.AnnotateImageResponse{
			{FullTextAnnotation: &visionpb.TextAnnotation{Text: f.text}},
		},
	}, nil
}

func newVisionExtractor(t *testing.T, fake *fakeVision) *VisionExtractor {
	t.Helper()
	opts := startGRPC(t, func(s *grpc.Server) { visionpb.RegisterImageAnnotatorServer(s, fake) })

	client, err := vision.NewImageAnnotatorClient(context.Background(), opts...)
	require.NoError(t, err)
	e := NewVisionExtractorWithClient(client)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestVisionExtractor(t *testing.T) {
	fake := &fakeVision{text: "Mon 8:00\nTue 8:00\nWeekly Total: 38:30\n"}
	e := newVisionExtractor(t, fake)

	hours, err := e.ExtractHours(context.Background(), writePNG(t))
	require.NoError(t, err)
	assert.Equal(t, 38.5, hours)

	require.Len(t, fake.got.Requests, 1)
	req := fake.got.Requests[0]
	assert.Equal(t, []byte("\x89PNG fake"), req.Image.Content)
	assert.Equal(t, visionpb.Feature_DOCUMENT_TEXT_DETECTION, req.Features[0].Type)
}

func TestVisionExtractorNoTotal(t *testing.T) {
	e := newVisionExtractor(t, &fakeVision{text: "nothing useful"})

	_, err := e.ExtractHours(context.Background(), writePNG(t))
	assert.ErrorContains(t, err, "no total hours found")
}

func TestVisionExtractorAPIError(t *testing.T) {
	e := newVisionExtractor(t, &fakeVision{err: status.Error(codes.PermissionDenied, "vision disabled")})

	_, err := e.ExtractHours(context.Background(), writePNG(t))
	assert.ErrorContains(t, err, "Vision API call failed")
}

type fakeDocumentAI struct {
	documentaipb.UnimplementedDocumentProcessorServiceServer
	text string
	got  *documentaipb.ProcessRequest
}

func (f *fakeDocumentAI) ProcessDocument(_ context.Context, req *documentaipb.ProcessRequest) (*documentaipb.ProcessResponse, error) {
	f.got = req
	return &documentaipb.ProcessResponse{Document: &documentaipb.Document{Text: f.text}}, nil
}

func TestDocumentAIExtractor(t *testing.T) {
	fake := &fakeDocumentAI{text: "Total hours 40h 15m"}
	opts := startGRPC(t, func(s *grpc.Server) { documentaipb.RegisterDocumentProcessorServiceServer(s, fake) })

	client, err := documentai.NewDocumentProcessorClient(context.Background(), opts...)
	require.NoError(t, err)
	e := NewDocumentAIExtractorWithClient(DocumentAIConfig{
		ProjectID:   "acme",
		Location:    "us",
		ProcessorID: "ocr-1",
	}, client)
	t.Cleanup(func() { _ = e.Close() })

	hours, err := e.ExtractHours(context.Background(), writePNG(t))
	require.NoError(t, err)
	assert.Equal(t, 40.25, hours)

	assert.Equal(t, "projects/acme/locations/us/processors/ocr-1", fake.got.Name)
	assert.Equal(t, "image/png", fake.got.GetRawDocument().MimeType)
}

func TestReadImage(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.png")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err := readImage(empty)
	assert.ErrorContains(t, err, "is empty")

	_, err = readImage(filepath.Join(dir, "missing.png"))
	assert.ErrorContains(t, err, "failed to read image")

	big := filepath.Join(dir, "big.png")
	f, err := os.Create(big)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(MaxImageSizeBytes+1))
	require.NoError(t, f.Close())
	_, err = readImage(big)
	assert.ErrorContains(t, err, "too large")
}
