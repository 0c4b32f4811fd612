package transport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/krich11/mls-delivery-service/internal/proto"
)

func TestTCPFrameRoundTrip(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Echo server: decode each request and answer with an ack naming it.
	srv, err := ListenTCP(ctx, "127.0.0.1:0", func(c *Conn) {
		defer c.Close()
		for {
			raw, err := c.ReadFrame()
			if err != nil {
				return
			}
			r, err := proto.DecodeRequest(raw)
			if err != nil {
				_ = c.WriteFrame(proto.ErrorResponse(proto.KindMalformed, err.Error()))
				continue
			}
			_ = c.WriteFrame(proto.Ack("got " + r.Type()))
		}
	})
	req.NoError(err)
	defer srv.Close()

	conn, err := DialTCP(ctx, srv.LocalAddr())
	req.NoError(err)
	defer conn.Close()

	data, err := proto.EncodeRequest(proto.ListKeyPackages{})
	req.NoError(err)
	req.NoError(conn.WriteRawFrame(data))

	raw, err := conn.ReadFrame()
	req.NoError(err)
	resp, err := proto.DecodeResponse(raw)
	req.NoError(err)
	req.True(resp.Success)
	req.Equal("got ListKeyPackages", resp.Message)
}

func TestConnConcurrentWrites(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const frames = 50
	srv, err := ListenTCP(ctx, "127.0.0.1:0", func(c *Conn) {
		defer c.Close()
		var wg sync.WaitGroup
		for i := 0; i < frames; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = c.WriteFrame(proto.Ack("hello"))
			}()
		}
		wg.Wait()
	})
	req.NoError(err)
	defer srv.Close()

	conn, err := DialTCP(ctx, srv.LocalAddr())
	req.NoError(err)
	defer conn.Close()

	// Every frame must come out intact; interleaved writes would corrupt
	// the newline framing.
	deadline := time.After(5 * time.Second)
	for i := 0; i < frames; i++ {
		done := make(chan struct{})
		var raw []byte
		var readErr error
		go func() {
			raw, readErr = conn.ReadFrame()
			close(done)
		}()
		select {
		case <-done:
		case <-deadline:
			t.Fatal("timed out reading frames")
		}
		req.NoError(readErr)
		resp, err := proto.DecodeResponse(raw)
		req.NoError(err)
		req.Equal("hello", resp.Message)
	}
}

func TestDialUnknownTransport(t *testing.T) {
	_, err := Dial(context.Background(), "smoke-signal", "localhost:1")
	require.Error(t, err)
}
