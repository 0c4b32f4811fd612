package relay

import (
	"errors"
	"io"

	"github.com/google/uuid"

	"github.com/krich11/mls-delivery-service/internal/proto"
	"github.com/krich11/mls-delivery-service/internal/transport"
)

// connSink adapts a transport.Conn to the directory's Sink. It carries no
// ownership; the connection handler alone closes the conn.
type connSink struct {
	conn *transport.Conn
}

func (s connSink) Send(resp *proto.Response) error {
	return s.conn.WriteFrame(resp)
}

// HandleConn runs one connection's read/dispatch/write loop until the
// peer disconnects or the transport fails. Oversized and malformed
// frames are answered with an error response and the loop continues;
// only I/O failures end it. Teardown unbinds every directory entry still
// pointing at this connection.
func (s *Service) HandleConn(c *transport.Conn) {
	connID := uuid.NewString()
	log := s.log.With("conn", connID, "remote", c.RemoteAddr())
	sink := connSink{conn: c}

	defer func() {
		s.directory.UnbindConn(connID)
		_ = c.Close()
		log.Info("connection closed")
	}()
	log.Info("connection open")

	for {
		raw, err := c.ReadFrame()
		if errors.Is(err, proto.ErrOversized) {
			log.Warn("oversized frame discarded")
			if werr := c.WriteFrame(proto.ErrorResponse(proto.KindOversized, "frame exceeds maximum size")); werr != nil {
				return
			}
			continue
		}
		if err != nil {
			if err != io.EOF {
				log.Debug("read failed", "err", err)
			}
			return
		}

		var resp *proto.Response
		req, err := proto.DecodeRequest(raw)
		if err != nil {
			log.Warn("malformed request", "err", err)
			resp = proto.ErrorResponse(proto.KindMalformed, err.Error())
		} else {
			resp = s.dispatch(connID, sink, req)
		}
		if err := c.WriteFrame(resp); err != nil {
			log.Debug("write failed", "err", err)
			return
		}
	}
}
