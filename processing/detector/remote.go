package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/jpeg"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"roadvision/internal/logger"
	"roadvision/internal/models"
)

const defaultRemoteTimeout = 10 * time.Second

// RemoteDetector sends each frame as a JPEG binary message to a detection
// server over a websocket and waits for the JSON list of detections that
// answers it. The connection is dialled lazily and re-dialled after any
// failure.
type RemoteDetector struct {
	serverURL string
	dialer    *websocket.Dialer
	timeout   time.Duration
	quality   int

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewRemoteDetector accepts either host:port, which is served on /ws, or a
// full ws:// or wss:// URL.
func NewRemoteDetector(addr string) *RemoteDetector {
	serverURL := addr
	if !strings.HasPrefix(addr, "ws://") && !strings.HasPrefix(addr, "wss://") {
		u := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}
		serverURL = u.String()
	}

	return &RemoteDetector{
		serverURL: serverURL,
		dialer:    websocket.DefaultDialer,
		timeout:   defaultRemoteTimeout,
		quality:   90,
	}
}

func (d *RemoteDetector) URL() string { return d.serverURL }

// SetTimeout bounds one request/response round trip.
func (d *RemoteDetector) SetTimeout(t time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.timeout = t
}

func (d *RemoteDetector) Infer(ctx context.Context, frame image.Image) (Annotated, error) {
	return Annotating(d.Detect).Infer(ctx, frame)
}

func (d *RemoteDetector) Detect(ctx context.Context, frame image.Image) ([]models.DetectionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: d.quality}); err != nil {
		return nil, errors.Wrap(err, "JPEG encode")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	conn, err := d.connect(ctx)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(d.timeout)
	conn.SetWriteDeadline(deadline)
	conn.SetReadDeadline(deadline)

	// A done context unblocks the read below.
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	if err := conn.WriteMessage(websocket.BinaryMessage, buf.Bytes()); err != nil {
		d.dropLocked()
		return nil, errors.Wrap(err, "sending frame")
	}

	_, message, err := conn.ReadMessage()
	if err != nil {
		d.dropLocked()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.Wrap(err, "reading detections")
	}

	var results []models.DetectionResult
	if err := json.Unmarshal(message, &results); err != nil {
		return nil, errors.Wrap(err, "JSON decode")
	}

	return results, nil
}

func (d *RemoteDetector) connect(ctx context.Context) (*websocket.Conn, error) {
	if d.conn != nil {
		return d.conn, nil
	}

	logger.Debug("connecting to detector server... %s", d.serverURL)
	conn, _, err := d.dialer.DialContext(ctx, d.serverURL, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to detector server %s", d.serverURL)
	}
	logger.Debug("connected to detection server!")

	d.conn = conn
	return conn, nil
}

func (d *RemoteDetector) dropLocked() {
	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}
}

func (d *RemoteDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn == nil {
		return nil
	}

	d.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	err := d.conn.Close()
	d.conn = nil
	return err
}
