package camera

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/dudu/droneid/internal/logger"
)

// Tello defaults
const (
	DefaultTelloAddr   = "192.168.10.1:8889"
	DefaultTelloStream = "udp://0.0.0.0:11111"
	defaultReplyWait   = 5 * time.Second
)

// ErrCommandRejected is returned when the drone answers a command with anything
// but "ok".
var ErrCommandRejected = errors.New("tello rejected command")

// TelloOptions configures a Tello source. Empty fields take the defaults.
type TelloOptions struct {
	Addr      string        // SDK command address
	StreamURL string        // where the drone pushes H.264
	ReplyWait time.Duration // per-command reply timeout
}

// Tello drives a DJI Tello through its text SDK and reads the video stream
// it pushes after "streamon".
type Tello struct {
	opts TelloOptions

	mu      sync.Mutex
	conn    *net.UDPConn
	capture *gocv.VideoCapture
}

// NewTello returns an unconnected Tello source.
func NewTello(opts TelloOptions) *Tello {
	if opts.Addr == "" {
		opts.Addr = DefaultTelloAddr
	}
	if opts.StreamURL == "" {
		opts.StreamURL = DefaultTelloStream
	}
	if opts.ReplyWait <= 0 {
		opts.ReplyWait = defaultReplyWait
	}
	return &Tello{opts: opts}
}

// Connect opens the command channel and enters SDK mode.
func (t *Tello) Connect() error {
	raddr, err := net.ResolveUDPAddr("udp", t.opts.Addr)
	if err != nil {
		return fmt.Errorf("invalid tello address %q: %w", t.opts.Addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return fmt.Errorf("failed to dial tello: %w", err)
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()

	if err := t.send("command"); err != nil {
		return err
	}

	fields := []zap.Field{zap.String("addr", t.opts.Addr)}
	if pct, err := t.Battery(); err != nil {
		logger.Log().Warn("tello battery unknown", zap.Error(err))
	} else {
		fields = append(fields, zap.Int("battery", pct))
	}
	logger.Log().Info("tello connected", fields...)
	return nil
}

// Battery returns the remaining charge in percent.
func (t *Tello) Battery() (int, error) {
	reply, err := t.query("battery?")
	if err != nil {
		return 0, err
	}
	pct, err := strconv.Atoi(reply)
	if err != nil {
		return 0, fmt.Errorf("tello battery?: unexpected reply %q", reply)
	}
	return pct, nil
}

// StartStream turns the video stream on and opens it.
func (t *Tello) StartStream() error {
	if err := t.send("streamon"); err != nil {
		return err
	}

	capture, err := gocv.OpenVideoCapture(t.opts.StreamURL)
	if err != nil {
		return fmt.Errorf("failed to open tello stream %s: %w", t.opts.StreamURL, err)
	}

	t.mu.Lock()
	t.capture = capture
	t.mu.Unlock()

	logger.Log().Info("tello streaming", zap.String("stream", t.opts.StreamURL))
	return nil
}

// Read captures the next frame of the stream.
func (t *Tello) Read(frame *gocv.Mat) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.capture == nil {
		return ErrClosed
	}
	if !t.capture.Read(frame) || frame.Empty() {
		return fmt.Errorf("failed to read tello frame")
	}
	return nil
}

// StopStream turns the video stream off and releases it.
func (t *Tello) StopStream() error {
	t.mu.Lock()
	capture := t.capture
	t.capture = nil
	t.mu.Unlock()

	var err error
	if capture != nil {
		err = capture.Close()
	}
	return multierr.Append(err, t.send("streamoff"))
}

// Close releases the stream and the command channel.
func (t *Tello) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var err error
	if t.capture != nil {
		err = multierr.Append(err, t.capture.Close())
		t.capture = nil
	}
	if t.conn != nil {
		err = multierr.Append(err, t.conn.Close())
		t.conn = nil
	}
	return err
}

// send writes one SDK control command and requires an "ok" reply.
func (t *Tello) send(cmd string) error {
	reply, err := t.query(cmd)
	if err != nil {
		return err
	}
	if reply != "ok" {
		return fmt.Errorf("%w: %s: %q", ErrCommandRejected, cmd, reply)
	}
	logger.Log().Debug("tello command", zap.String("cmd", cmd))
	return nil
}

// query writes one SDK command and returns its trimmed reply.
func (t *Tello) query(cmd string) (string, error) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return "", ErrClosed
	}

	if _, err := conn.Write([]byte(cmd)); err != nil {
		return "", fmt.Errorf("tello %s: %w", cmd, err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(t.opts.ReplyWait)); err != nil {
		return "", fmt.Errorf("tello %s: %w", cmd, err)
	}
	buf := make([]byte, 1024)
	n, err := conn.Read(buf)
	if err != nil {
		return "", fmt.Errorf("tello %s: no reply: %w", cmd, err)
	}
	return strings.TrimSpace(string(buf[:n])), nil
}
