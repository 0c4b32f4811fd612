package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/krich11/mls-delivery-service/internal/proto"
)

func newTestService() *Service {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type recordingSink struct {
	frames []*proto.Response
	fail   bool
}

func (s *recordingSink) Send(resp *proto.Response) error {
	if s.fail {
		return errors.New("sink broken")
	}
	s.frames = append(s.frames, resp)
	return nil
}

func TestDispatchStoreAndFetch(t *testing.T) {
	req := require.New(t)
	svc := newTestService()
	sink := &recordingSink{}
	connID := uuid.NewString()

	resp := svc.dispatch(connID, sink, proto.StoreKeyPackage{ClientID: "alice", KeyPackage: proto.Bytes{1, 2, 3}})
	req.Equal(proto.TypeMessageResponse, resp.Type)
	req.True(resp.Success)

	resp = svc.dispatch(connID, sink, proto.FetchKeyPackage{ClientID: "alice"})
	req.Equal(proto.TypeKeyPackageResponse, resp.Type)
	req.Equal("alice", resp.ClientID)
	req.Equal(proto.Bytes{1, 2, 3}, resp.KeyPackage)

	resp = svc.dispatch(connID, sink, proto.FetchKeyPackage{ClientID: "nobody"})
	req.Equal(proto.TypeError, resp.Type)
	req.Equal(proto.KindNotFound, resp.Error)
}

func TestDispatchList(t *testing.T) {
	req := require.New(t)
	svc := newTestService()
	sink := &recordingSink{}
	connID := uuid.NewString()

	resp := svc.dispatch(connID, sink, proto.ListKeyPackages{})
	req.Equal(proto.TypeKeyPackageListResponse, resp.Type)
	req.Empty(resp.Clients)

	svc.dispatch(connID, sink, proto.StoreKeyPackage{ClientID: "bob", KeyPackage: proto.Bytes{2}})
	svc.dispatch(connID, sink, proto.StoreKeyPackage{ClientID: "alice", KeyPackage: proto.Bytes{1}})

	resp = svc.dispatch(connID, sink, proto.ListKeyPackages{})
	req.Equal([]string{"alice", "bob"}, resp.Clients)
}

func TestDispatchCreateAndJoin(t *testing.T) {
	req := require.New(t)
	svc := newTestService()
	sink := &recordingSink{}
	connID := uuid.NewString()

	resp := svc.dispatch(connID, sink, proto.CreateGroup{GroupID: "g1", CreatorID: "alice"})
	req.Equal(proto.TypeGroupResponse, resp.Type)
	req.Equal("g1", resp.GroupID)
	req.Equal([]string{"alice"}, resp.Members)

	resp = svc.dispatch(connID, sink, proto.CreateGroup{GroupID: "g1", CreatorID: "bob"})
	req.Equal(proto.TypeError, resp.Type)
	req.Equal(proto.KindAlreadyExists, resp.Error)

	resp = svc.dispatch(connID, sink, proto.JoinGroup{GroupID: "g1", ClientID: "bob"})
	req.Equal(proto.TypeGroupResponse, resp.Type)
	req.Equal([]string{"alice", "bob"}, resp.Members)

	resp = svc.dispatch(connID, sink, proto.JoinGroup{GroupID: "nope", ClientID: "dan"})
	req.Equal(proto.TypeError, resp.Type)
	req.Equal(proto.KindNotFound, resp.Error)
}

func TestDispatchBindsActingIdentity(t *testing.T) {
	req := require.New(t)
	svc := newTestService()
	sink := &recordingSink{}

	svc.dispatch(uuid.NewString(), sink, proto.StoreKeyPackage{ClientID: "alice", KeyPackage: proto.Bytes{1}})

	bound, ok := svc.directory.Lookup("alice")
	req.True(ok)
	req.Same(sink, bound.(*recordingSink))
}

func TestRelayFanOut(t *testing.T) {
	req := require.New(t)
	svc := newTestService()

	aliceSink, bobSink := &recordingSink{}, &recordingSink{}
	aliceConn, bobConn := uuid.NewString(), uuid.NewString()

	svc.dispatch(aliceConn, aliceSink, proto.CreateGroup{GroupID: "g1", CreatorID: "alice"})
	svc.dispatch(bobConn, bobSink, proto.JoinGroup{GroupID: "g1", ClientID: "bob"})
	// carol joins and then disconnects, leaving her an offline member.
	carolConn := uuid.NewString()
	svc.dispatch(carolConn, &recordingSink{}, proto.JoinGroup{GroupID: "g1", ClientID: "carol"})
	svc.directory.UnbindConn(carolConn)

	resp := svc.dispatch(aliceConn, aliceSink, proto.RelayMessage{
		GroupID:     "g1",
		SenderID:    "alice",
		Message:     proto.Bytes{9, 9},
		MessageType: proto.MessageApplication,
	})
	req.Equal(proto.TypeMessageResponse, resp.Type)
	req.True(resp.Success)
	req.Equal(1, resp.Delivered)
	req.Equal(2, resp.Recipients)

	// Bob got exactly one delivery; the sender got nothing back.
	req.Len(bobSink.frames, 1)
	delivery := bobSink.frames[0]
	req.Equal(proto.TypeMessageDelivery, delivery.Type)
	req.Equal("alice", delivery.Sender)
	req.Equal(proto.MessageApplication, delivery.MessageType)
	req.Equal(proto.Bytes{9, 9}, delivery.Payload)
	req.Empty(aliceSink.frames)
}

func TestRelayRejectsNonMember(t *testing.T) {
	req := require.New(t)
	svc := newTestService()
	sink := &recordingSink{}
	connID := uuid.NewString()

	svc.dispatch(connID, sink, proto.CreateGroup{GroupID: "g1", CreatorID: "alice"})

	resp := svc.dispatch(connID, sink, proto.RelayMessage{
		GroupID:     "g1",
		SenderID:    "carol",
		Message:     proto.Bytes{1},
		MessageType: proto.MessageCommit,
	})
	req.Equal(proto.TypeError, resp.Type)
	req.Equal(proto.KindNotMember, resp.Error)
}

func TestRelayUnknownGroup(t *testing.T) {
	svc := newTestService()
	resp := svc.dispatch(uuid.NewString(), &recordingSink{}, proto.RelayMessage{
		GroupID:     "nope",
		SenderID:    "alice",
		Message:     proto.Bytes{1},
		MessageType: proto.MessageWelcome,
	})
	require.Equal(t, proto.TypeError, resp.Type)
	require.Equal(t, proto.KindNotFound, resp.Error)
}

func TestRelaySkipsDisconnectedMember(t *testing.T) {
	req := require.New(t)
	svc := newTestService()

	aliceSink, bobSink := &recordingSink{}, &recordingSink{}
	aliceConn, bobConn := uuid.NewString(), uuid.NewString()

	svc.dispatch(aliceConn, aliceSink, proto.CreateGroup{GroupID: "g1", CreatorID: "alice"})
	svc.dispatch(bobConn, bobSink, proto.JoinGroup{GroupID: "g1", ClientID: "bob"})

	// Bob disconnects; his binding disappears and the relay neither
	// delivers to him nor errors.
	svc.directory.UnbindConn(bobConn)

	resp := svc.dispatch(aliceConn, aliceSink, proto.RelayMessage{
		GroupID:     "g1",
		SenderID:    "alice",
		Message:     proto.Bytes{5},
		MessageType: proto.MessageProposal,
	})
	req.True(resp.Success)
	req.Equal(0, resp.Delivered)
	req.Equal(1, resp.Recipients)
	req.Empty(bobSink.frames)
}

func TestRelaySurvivesFailingSink(t *testing.T) {
	req := require.New(t)
	svc := newTestService()

	broken := &recordingSink{fail: true}
	healthy := &recordingSink{}
	aliceConn := uuid.NewString()

	svc.dispatch(aliceConn, &recordingSink{}, proto.CreateGroup{GroupID: "g1", CreatorID: "alice"})
	svc.dispatch(uuid.NewString(), broken, proto.JoinGroup{GroupID: "g1", ClientID: "bob"})
	svc.dispatch(uuid.NewString(), healthy, proto.JoinGroup{GroupID: "g1", ClientID: "carol"})

	resp := svc.dispatch(aliceConn, &recordingSink{}, proto.RelayMessage{
		GroupID:     "g1",
		SenderID:    "alice",
		Message:     proto.Bytes{7},
		MessageType: proto.MessageAdd,
	})
	req.True(resp.Success)
	req.Equal(1, resp.Delivered)
	req.Equal(2, resp.Recipients)
	req.Len(healthy.frames, 1)
}

func TestStartHealth(t *testing.T) {
	req := require.New(t)
	svc := newTestService()
	svc.dispatch(uuid.NewString(), &recordingSink{}, proto.CreateGroup{GroupID: "g1", CreatorID: "alice"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr, err := svc.StartHealth(ctx, "127.0.0.1:0")
	req.NoError(err)

	resp, err := http.Get("http://" + addr + "/health")
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)
}
