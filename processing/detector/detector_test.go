package detector_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/matryer/is"
	"github.com/stretchr/testify/require"

	"roadvision/internal/models"
	"roadvision/processing/detector"
)

func grey(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	return img
}

func TestAnnotateDrawsOnCopy(t *testing.T) {
	is := is.New(t)

	src := grey(100, 100)
	dets := []models.DetectionResult{{Label: "pothole", Confidence: 0.9, Box: []float32{0.5, 0.1, 0.9, 0.6}}}

	out := detector.Annotate(src, dets)

	is.Equal(out.Bounds(), src.Bounds())
	is.Equal(src.RGBAAt(10, 90), color.RGBA{0x80, 0x80, 0x80, 0x80})
	is.Equal(out.RGBAAt(10, 90), color.RGBA{0, 255, 0, 255}) // left edge of the box
	is.Equal(out.RGBAAt(99, 0), color.RGBA{0x80, 0x80, 0x80, 0x80})
}

func TestAnnotateSkipsMalformedBoxes(t *testing.T) {
	is := is.New(t)

	src := grey(20, 20)
	out := detector.Annotate(src, []models.DetectionResult{{Label: "x", Box: []float32{0.1, 0.2}}})
	is.Equal(out.Pix, src.Pix)
}

func TestAnnotatingPropagatesErrors(t *testing.T) {
	is := is.New(t)

	boom := errors.New("boom")
	det := detector.Annotating(func(context.Context, image.Image) ([]models.DetectionResult, error) {
		return nil, boom
	})

	_, err := det.Infer(context.Background(), grey(4, 4))
	is.True(errors.Is(err, boom))
}

var upgrader = websocket.Upgrader{}

func detectionServer(t *testing.T, handle func(msg []byte) []byte) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			reply := handle(msg)
			if reply == nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, reply); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestRemoteDetectorRoundTrip(t *testing.T) {
	var frames int
	srv := detectionServer(t, func(msg []byte) []byte {
		img, err := jpeg.Decode(bytes.NewReader(msg))
		require.NoError(t, err)
		require.Equal(t, image.Rect(0, 0, 64, 64), img.Bounds())
		frames++

		out, _ := json.Marshal([]models.DetectionResult{{Label: "crack", Confidence: 0.8, Box: []float32{0, 0, 0.5, 0.5}}})
		return out
	})

	det := detector.NewRemoteDetector(wsURL(srv))
	defer det.Close()

	for i := 0; i < 2; i++ {
		res, err := det.Infer(context.Background(), grey(64, 64))
		require.NoError(t, err)
		require.Len(t, res.Detections, 1)
		require.Equal(t, "crack", res.Detections[0].Label)
		require.Equal(t, image.Rect(0, 0, 64, 64), res.Image.Bounds())
	}
	require.Equal(t, 2, frames)
}

func TestRemoteDetectorBadReply(t *testing.T) {
	srv := detectionServer(t, func([]byte) []byte { return []byte("not json") })

	det := detector.NewRemoteDetector(wsURL(srv))
	defer det.Close()

	_, err := det.Infer(context.Background(), grey(8, 8))
	require.Error(t, err)
}

func TestRemoteDetectorReconnectsAfterDrop(t *testing.T) {
	var calls int
	srv := detectionServer(t, func([]byte) []byte {
		calls++
		if calls == 1 {
			return nil // hang up without answering
		}
		return []byte("[]")
	})

	det := detector.NewRemoteDetector(wsURL(srv))
	defer det.Close()

	_, err := det.Infer(context.Background(), grey(8, 8))
	require.Error(t, err)

	res, err := det.Infer(context.Background(), grey(8, 8))
	require.NoError(t, err)
	require.Empty(t, res.Detections)
}

func TestRemoteDetectorUnreachable(t *testing.T) {
	det := detector.NewRemoteDetector("127.0.0.1:1")
	require.Equal(t, "ws://127.0.0.1:1/ws", det.URL())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := det.Infer(ctx, grey(8, 8))
	require.Error(t, err)
}

func TestRemoteDetectorCancelledContext(t *testing.T) {
	srv := detectionServer(t, func([]byte) []byte {
		time.Sleep(200 * time.Millisecond)
		return []byte("[]")
	})

	det := detector.NewRemoteDetector(wsURL(srv))
	defer det.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := det.Infer(ctx, grey(8, 8))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
