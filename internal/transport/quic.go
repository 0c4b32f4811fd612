package transport

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"math/big"
	"time"

	"github.com/quic-go/quic-go"
)

// ProtoID is the ALPN identifier for the delivery protocol over QUIC.
const ProtoID = "mls-delivery/1"

// Deliveries can sit idle between relays; the QUIC default of 30s would
// drop waiting members.
var defaultQuicConfig = &quic.Config{
	MaxIdleTimeout: 5 * time.Minute,
}

// ListenQUIC starts a QUIC listener on addr with a self-signed
// certificate. QUIC mandates TLS; the certificate is generated per
// process and clients skip verification, so this is framing-level only,
// not an authenticated transport.
func ListenQUIC(ctx context.Context, addr string, handler func(*Conn)) (*Server, error) {
	tlsCfg, err := generateTLSConfig()
	if err != nil {
		return nil, err
	}
	ln, err := quic.ListenAddr(addr, tlsCfg, defaultQuicConfig)
	if err != nil {
		return nil, err
	}
	s := &Server{
		handler: handler,
		addrFn:  func() string { return ln.Addr().String() },
		closeFn: ln.Close,
	}
	go s.acceptQUIC(ctx, ln)
	return s, nil
}

func (s *Server) acceptQUIC(ctx context.Context, ln *quic.Listener) {
	context.AfterFunc(ctx, func() { _ = ln.Close() })
	for {
		sess, err := ln.Accept(ctx)
		if err != nil {
			return
		}
		go func() {
			stream, err := sess.AcceptStream(ctx)
			if err != nil {
				_ = sess.CloseWithError(0, "no stream")
				return
			}
			s.handler(newConn(stream, sess.RemoteAddr().String(), quicCloser{sess}))
		}()
	}
}

// DialQUIC connects to a delivery service over QUIC (skips certificate
// verification; see ListenQUIC).
func DialQUIC(ctx context.Context, addr string) (*Conn, error) {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{ProtoID},
	}
	sess, err := quic.DialAddr(ctx, addr, tlsCfg, defaultQuicConfig)
	if err != nil {
		return nil, err
	}
	stream, err := sess.OpenStreamSync(ctx)
	if err != nil {
		_ = sess.CloseWithError(0, "")
		return nil, err
	}
	return newConn(stream, sess.RemoteAddr().String(), quicCloser{sess}), nil
}

type quicCloser struct {
	sess quic.Connection
}

func (q quicCloser) Close() error {
	return q.sess.CloseWithError(0, "closed")
}

// generateTLSConfig creates a self-signed cert for development use.
func generateTLSConfig() (*tls.Config, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	tlsCert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{tlsCert},
		NextProtos:   []string{ProtoID},
	}, nil
}
