package main

import (
	"bytes"
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatteryCommand(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer conn.Close()

	go func() {
		buf := make([]byte, 64)
		for {
			n, from, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			reply := "ok"
			if string(buf[:n]) == "battery?" {
				reply = "64"
			}
			_, _ = conn.WriteToUDP([]byte(reply), from)
		}
	}()

	cfgFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, writeFile(cfgFile, "source:\n  telloAddr: "+conn.LocalAddr().String()+"\n"))
	t.Setenv("DRONEID_LOG_LEVEL", "error")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"battery", "--config", cfgFile})

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "Battery life: 64%\n", out.String())
}
