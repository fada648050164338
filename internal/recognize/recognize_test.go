package recognize

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkvision-backend/internal/cluster"
	"parkvision-backend/internal/parking"
)

type fakeCropper struct {
	crop  []byte
	found bool
	err   error
}

func (f fakeCropper) Crop([]byte) ([]byte, bool, error) {
	return f.crop, f.found, f.err
}

type fakeReader struct {
	got []byte
}

func (f *fakeReader) ReadText(_ context.Context, image []byte) ([]parking.PlateCandidate, error) {
	f.got = image
	return []parking.PlateCandidate{{Text: "ABC 123", Confidence: 0.8}}, nil
}

func TestLocalizingRecognizer(t *testing.T) {
	ctx := context.Background()

	t.Run("Reads the crop", func(t *testing.T) {
		reader := &fakeReader{}
		r := NewLocalizingRecognizer(fakeCropper{crop: []byte("crop"), found: true}, reader)
		got, err := r.Recognize(ctx, []byte("frame"))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, []byte("crop"), reader.got)
	})

	t.Run("No plate region", func(t *testing.T) {
		reader := &fakeReader{}
		r := NewLocalizingRecognizer(fakeCropper{}, reader)
		got, err := r.Recognize(ctx, []byte("frame"))
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.Nil(t, reader.got, "reader is not called")
	})

	t.Run("Undecodable frame", func(t *testing.T) {
		boom := errors.New("bad image")
		r := NewLocalizingRecognizer(fakeCropper{err: boom}, &fakeReader{})
		_, err := r.Recognize(ctx, []byte("frame"))
		assert.ErrorIs(t, err, boom)
	})
}

type fakeRekognition struct {
	text   *rekognition.DetectTextOutput
	labels *rekognition.DetectCustomLabelsOutput
	err    error

	labelsInput *rekognition.DetectCustomLabelsInput
}

func (f *fakeRekognition) DetectText(_ context.Context, _ *rekognition.DetectTextInput, _ ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error) {
	return f.text, f.err
}

func (f *fakeRekognition) DetectCustomLabels(_ context.Context, in *rekognition.DetectCustomLabelsInput, _ ...func(*rekognition.Options)) (*rekognition.DetectCustomLabelsOutput, error) {
	f.labelsInput = in
	return f.labels, f.err
}

func TestRekognitionText(t *testing.T) {
	client := &fakeRekognition{text: &rekognition.DetectTextOutput{
		TextDetections: []types.TextDetection{
			{Type: types.TextTypesLine, DetectedText: aws.String("ABC 123"), Confidence: aws.Float32(97.5)},
			{Type: types.TextTypesWord, DetectedText: aws.String("ABC"), Confidence: aws.Float32(99)},
			{Type: types.TextTypesLine, DetectedText: aws.String("blurry"), Confidence: aws.Float32(20)},
			{Type: types.TextTypesLine, DetectedText: aws.String("   "), Confidence: aws.Float32(90)},
		},
	}}

	got, err := NewRekognitionText(client, 50).ReadText(context.Background(), []byte("crop"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ABC 123", got[0].Text)
	assert.InDelta(t, 0.975, got[0].Confidence, 1e-6)

	client.err = errors.New("throttled")
	_, err = NewRekognitionText(client, 0).ReadText(context.Background(), []byte("crop"))
	assert.ErrorIs(t, err, client.err)
}

func labelBox(name string, left, top float32, confidence float32) types.CustomLabel {
	return types.CustomLabel{
		Name:       aws.String(name),
		Confidence: aws.Float32(confidence),
		Geometry: &types.Geometry{BoundingBox: &types.BoundingBox{
			Left: aws.Float32(left), Top: aws.Float32(top),
			Width: aws.Float32(0.1), Height: aws.Float32(0.2),
		}},
	}
}

func TestRekognitionSpots(t *testing.T) {
	client := &fakeRekognition{labels: &rekognition.DetectCustomLabelsOutput{
		CustomLabels: []types.CustomLabel{
			labelBox("Car", 0.1, 0.5, 90),
			labelBox("free", 0.3, 0.5, 80),
			labelBox("person", 0.5, 0.5, 99),
			{Name: aws.String("car"), Confidence: aws.Float32(90)},
		},
	}}

	spots := NewRekognitionSpots(client, "arn:aws:rekognition:project/version", 60, []string{"car"}, []string{"free"})
	got, err := spots.Detect(context.Background(), []byte("lot"))
	require.NoError(t, err)

	expected := []cluster.Box{
		{X1: 100, Y1: 500, X2: 200, Y2: 700, Class: cluster.Occupied, Confidence: 0.9},
		{X1: 300, Y1: 500, X2: 400, Y2: 700, Class: cluster.Free, Confidence: 0.8},
	}
	approx := cmp.Comparer(func(a, b float64) bool { return a-b < 1e-3 && b-a < 1e-3 })
	if diff := cmp.Diff(expected, got, approx); diff != "" {
		t.Errorf("Detect() mismatch (-want +got):\n%s", diff)
	}
	require.NotNil(t, client.labelsInput)
	assert.Equal(t, float32(60), aws.ToFloat32(client.labelsInput.MinConfidence))

	_, err = NewRekognitionSpots(client, "", 0, nil, nil).Detect(context.Background(), []byte("lot"))
	assert.Error(t, err)
}

func TestSidecarClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		switch r.URL.Path {
		case "/plates":
			assert.Equal(t, "crop", string(body))
			json.NewEncoder(w).Encode(map[string]any{
				"code": 0,
				"data": map[string]any{"candidates": []map[string]any{{"text": "ABC 123", "confidence": 0.7}}},
			})
		case "/spots":
			json.NewEncoder(w).Encode(map[string]any{
				"code": 0,
				"data": map[string]any{"boxes": []map[string]any{
					{"x1": 0, "y1": 0, "x2": 10, "y2": 10, "class": "free", "confidence": 0.5},
				}},
			})
		case "/broken/spots":
			json.NewEncoder(w).Encode(map[string]any{"code": 3})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	ctx := context.Background()
	client := NewSidecarClient(server.URL+"/", time.Second)

	plates, err := client.ReadText(ctx, []byte("crop"))
	require.NoError(t, err)
	assert.Equal(t, []parking.PlateCandidate{{Text: "ABC 123", Confidence: 0.7}}, plates)

	boxes, err := client.Detect(ctx, []byte("lot"))
	require.NoError(t, err)
	assert.Equal(t, []cluster.Box{{X2: 10, Y2: 10, Class: cluster.Free, Confidence: 0.5}}, boxes)

	_, err = NewSidecarClient(server.URL+"/broken", time.Second).Detect(ctx, []byte("lot"))
	assert.ErrorContains(t, err, "non-zero application code")

	_, err = NewSidecarClient(server.URL+"/missing", time.Second).ReadText(ctx, []byte("crop"))
	assert.ErrorContains(t, err, "non-200")
}
