package camera

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDrone answers each SDK command with the reply chosen by respond and
// records what it received.
func fakeDrone(t *testing.T, respond func(cmd string) string) (addr string, received <-chan string) {
	t.Helper()

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	ch := make(chan string, 16)
	go func() {
		buf := make([]byte, 1024)
		for {
			n, from, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			cmd := string(buf[:n])
			ch <- cmd
			if reply := respond(cmd); reply != "" {
				_, _ = conn.WriteToUDP([]byte(reply), from)
			}
		}
	}()
	return conn.LocalAddr().String(), ch
}

// sdkReplies answers control commands with "ok" and battery? with battery.
func sdkReplies(battery string) func(string) string {
	return func(cmd string) string {
		if cmd == "battery?" {
			return battery
		}
		return "ok"
	}
}

func TestTello_ConnectAndStop(t *testing.T) {
	addr, received := fakeDrone(t, sdkReplies("87"))

	tello := NewTello(TelloOptions{Addr: addr, ReplyWait: time.Second})
	require.NoError(t, tello.Connect())
	assert.Equal(t, "command", <-received)
	assert.Equal(t, "battery?", <-received)

	require.NoError(t, tello.StopStream())
	assert.Equal(t, "streamoff", <-received)

	require.NoError(t, tello.Close())
	assert.ErrorIs(t, tello.StopStream(), ErrClosed)
}

func TestTello_Battery(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    int
		wantErr bool
	}{
		{name: "percentage", reply: "87", want: 87},
		{name: "trailing newline", reply: "12\r\n", want: 12},
		{name: "not a number", reply: "error", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, _ := fakeDrone(t, sdkReplies(tt.reply))

			tello := NewTello(TelloOptions{Addr: addr, ReplyWait: time.Second})
			defer tello.Close()

			// a bad battery reply must not fail the connection
			require.NoError(t, tello.Connect())

			pct, err := tello.Battery()
			if tt.wantErr {
				assert.Error(t, err)
				assert.NotErrorIs(t, err, ErrCommandRejected)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, pct)
		})
	}
}

func TestTello_BatteryNotConnected(t *testing.T) {
	_, err := NewTello(TelloOptions{}).Battery()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestTello_Rejected(t *testing.T) {
	addr, _ := fakeDrone(t, func(string) string { return "error" })

	tello := NewTello(TelloOptions{Addr: addr, ReplyWait: time.Second})
	defer tello.Close()

	assert.ErrorIs(t, tello.Connect(), ErrCommandRejected)
}

func TestTello_NoReply(t *testing.T) {
	addr, _ := fakeDrone(t, func(string) string { return "" })

	tello := NewTello(TelloOptions{Addr: addr, ReplyWait: 50 * time.Millisecond})
	defer tello.Close()

	err := tello.Connect()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCommandRejected)
}

func TestTello_Defaults(t *testing.T) {
	tello := NewTello(TelloOptions{})
	assert.Equal(t, DefaultTelloAddr, tello.opts.Addr)
	assert.Equal(t, DefaultTelloStream, tello.opts.StreamURL)
	assert.Equal(t, defaultReplyWait, tello.opts.ReplyWait)
}

func TestTello_ReadBeforeStream(t *testing.T) {
	assert.ErrorIs(t, NewTello(TelloOptions{}).Read(nil), ErrClosed)
}
