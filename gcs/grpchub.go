package gcs

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/reflection"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/sheepdog/clusterdrv/wire"
)

// streamMsg tags are the only framing the gRPC stream needs beyond what
// wrapperspb.BytesValue already gives it for free.
const (
	tagFrame byte = iota
	tagConfChg
	tagWelcome // server->client only: assigns the connecting client's NodeID
)

func encodeIDs(ids []wire.NodeID) []byte {
	buf := make([]byte, 4+len(ids)*8)
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(ids)))
	off := 4
	for _, id := range ids {
		binary.BigEndian.PutUint32(buf[off:off+4], id.NodeID)
		binary.BigEndian.PutUint32(buf[off+4:off+8], id.PID)
		off += 8
	}
	return buf
}

func decodeIDs(buf []byte) ([]wire.NodeID, []byte, error) {
	if len(buf) < 4 {
		return nil, nil, fmt.Errorf("gcs: truncated id list")
	}
	n := binary.BigEndian.Uint32(buf[0:4])
	buf = buf[4:]
	if uint64(len(buf)) < uint64(n)*8 {
		return nil, nil, fmt.Errorf("gcs: id list shorter than declared")
	}
	ids := make([]wire.NodeID, n)
	for i := range ids {
		ids[i] = wire.NodeID{
			NodeID: binary.BigEndian.Uint32(buf[0:4]),
			PID:    binary.BigEndian.Uint32(buf[4:8]),
		}
		buf = buf[8:]
	}
	return ids, buf, nil
}

func encodeConfChg(cc ConfChg) []byte {
	out := append([]byte{tagConfChg}, encodeIDs(cc.Member)...)
	out = append(out, encodeIDs(cc.Left)...)
	out = append(out, encodeIDs(cc.Joined)...)
	return out
}

func decodeConfChg(buf []byte) (ConfChg, error) {
	member, rest, err := decodeIDs(buf)
	if err != nil {
		return ConfChg{}, err
	}
	left, rest, err := decodeIDs(rest)
	if err != nil {
		return ConfChg{}, err
	}
	joined, _, err := decodeIDs(rest)
	if err != nil {
		return ConfChg{}, err
	}
	return ConfChg{Member: member, Left: left, Joined: joined}, nil
}

func encodeWelcome(self wire.NodeID, initial ConfChg) []byte {
	out := append([]byte{tagWelcome}, encodeIDs([]wire.NodeID{self})...)
	out = append(out, encodeConfChg(initial)[1:]...) // drop the nested tag byte
	return out
}

func decodeWelcome(buf []byte) (wire.NodeID, ConfChg, error) {
	if len(buf) == 0 || buf[0] != tagWelcome {
		return wire.NodeID{}, ConfChg{}, fmt.Errorf("gcs: expected welcome message")
	}
	ids, rest, err := decodeIDs(buf[1:])
	if err != nil || len(ids) != 1 {
		return wire.NodeID{}, ConfChg{}, fmt.Errorf("gcs: malformed welcome message")
	}
	cc, err := decodeConfChg(rest)
	return ids[0], cc, err
}

// GRPCServer exposes a Hub over the network: every connecting GRPCClient
// becomes a member of the same Hub used by LocalHub, so membership and
// ordering semantics are identical whether a node talks to the hub
// in-process or over gRPC (SPEC_FULL.md §4.7).
type GRPCServer struct {
	addr  string
	hub   *Hub
	srv   *grpc.Server
	lis   net.Listener
	ready chan struct{}
}

// NewGRPCServer returns a server that will listen on addr and back every
// connection with hub. addr may be "host:0" to bind an ephemeral port,
// in which case Addr reports the port actually chosen once Serve has
// bound its listener.
func NewGRPCServer(addr string, hub *Hub) *GRPCServer {
	return &GRPCServer{addr: addr, hub: hub, srv: grpc.NewServer(), ready: make(chan struct{})}
}

// Serve listens on Addr and blocks serving the Hub RPC until the server
// is stopped or listening fails.
func (s *GRPCServer) Serve() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("gcs: listen on %s: %w", s.addr, err)
	}
	s.lis = lis
	close(s.ready)
	RegisterHubServer(s.srv, s)
	reflection.Register(s.srv)
	return s.srv.Serve(lis)
}

// Addr blocks until Serve has bound its listener, then returns its
// address. Intended for tests that bind an ephemeral port.
func (s *GRPCServer) Addr() string {
	<-s.ready
	return s.lis.Addr().String()
}

// Stop gracefully shuts the server down.
func (s *GRPCServer) Stop() { s.srv.GracefulStop() }

// Stream implements hubServer: it registers the connecting peer as a new
// Hub member for the stream's lifetime, pumping member traffic onto the
// wire and wire traffic into the Hub.
func (s *GRPCServer) Stream(stream HubStreamServer) error {
	peerAddr := "unknown"
	if p, ok := peerAddrFromContext(stream.Context()); ok {
		peerAddr = p
	}
	member := s.hub.NewClient(peerAddr)
	self, initial, err := member.Init(stream.Context(), wire.GroupName)
	if err != nil {
		return err
	}
	// Leaving the Hub when the stream ends is what delivers the departure
	// confchg to every other member.
	defer member.Leave(context.Background())
	if err := stream.Send(wrapperspb.Bytes(encodeWelcome(self, initial))); err != nil {
		return err
	}

	errCh := make(chan error, 2)
	go func() {
		for {
			select {
			case f, ok := <-member.Frames():
				if !ok {
					errCh <- nil
					return
				}
				if err := stream.Send(wrapperspb.Bytes(append([]byte{tagFrame}, f.Data...))); err != nil {
					errCh <- err
					return
				}
			case cc, ok := <-member.Confchg():
				if !ok {
					errCh <- nil
					return
				}
				if err := stream.Send(wrapperspb.Bytes(encodeConfChg(cc))); err != nil {
					errCh <- err
					return
				}
			}
		}
	}()
	go func() {
		for {
			msg, err := stream.Recv()
			if err != nil {
				errCh <- err
				return
			}
			if len(msg.Value) == 0 || msg.Value[0] != tagFrame {
				continue
			}
			if err := member.Send(stream.Context(), msg.Value[1:]); err != nil {
				errCh <- err
				return
			}
		}
	}()
	return <-errCh
}

// GRPCClient is a Client that reaches a GRPCServer's Hub over the
// network. It implements gcs.Client.
type GRPCClient struct {
	target string
	conn   *grpc.ClientConn
	stream HubStreamClient

	self wire.NodeID

	localAddrMu sync.Mutex
	localAddr   string // this end of the dialed TCP connection, set by Init's dialer

	frames  chan Frame
	confchg chan ConfChg
}

// NewGRPCClient returns a client that will dial target (host:port) on
// Init.
func NewGRPCClient(target string) *GRPCClient {
	return &GRPCClient{
		target:  target,
		frames:  make(chan Frame, 64),
		confchg: make(chan ConfChg, 64),
	}
}

func (g *GRPCClient) Init(ctx context.Context, group string) (wire.NodeID, ConfChg, error) {
	dialer := func(ctx context.Context, addr string) (net.Conn, error) {
		nc, err := (&net.Dialer{}).DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, err
		}
		g.localAddrMu.Lock()
		g.localAddr = nc.LocalAddr().String()
		g.localAddrMu.Unlock()
		return nc, nil
	}
	conn, err := grpc.NewClient(g.target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(dialer))
	if err != nil {
		return wire.NodeID{}, ConfChg{}, fmt.Errorf("gcs: dial %s: %w", g.target, err)
	}
	stream, err := newHubStreamClient(ctx, conn)
	if err != nil {
		conn.Close()
		return wire.NodeID{}, ConfChg{}, fmt.Errorf("gcs: open stream: %w", err)
	}
	welcome, err := stream.Recv()
	if err != nil {
		conn.Close()
		return wire.NodeID{}, ConfChg{}, fmt.Errorf("gcs: awaiting welcome: %w", err)
	}
	self, initial, err := decodeWelcome(welcome.Value)
	if err != nil {
		conn.Close()
		return wire.NodeID{}, ConfChg{}, err
	}

	g.conn = conn
	g.stream = stream
	g.self = self
	go g.pump()

	return self, initial, nil
}

func (g *GRPCClient) pump() {
	for {
		msg, err := g.stream.Recv()
		if err != nil {
			close(g.frames)
			close(g.confchg)
			return
		}
		if len(msg.Value) == 0 {
			continue
		}
		switch msg.Value[0] {
		case tagFrame:
			g.frames <- Frame{Data: append([]byte(nil), msg.Value[1:]...)}
		case tagConfChg:
			if cc, err := decodeConfChg(msg.Value[1:]); err == nil {
				g.confchg <- cc
			}
		}
	}
}

func (g *GRPCClient) Leave(ctx context.Context) error {
	if g.conn == nil {
		return nil
	}
	return g.conn.Close()
}

func (g *GRPCClient) Send(ctx context.Context, data []byte) error {
	if g.stream == nil {
		return fmt.Errorf("gcs: client not initialized")
	}
	if err := g.stream.Send(wrapperspb.Bytes(append([]byte{tagFrame}, data...))); err != nil {
		return fmt.Errorf("gcs: send: %w", err)
	}
	return nil
}

func (g *GRPCClient) Frames() <-chan Frame    { return g.frames }
func (g *GRPCClient) Confchg() <-chan ConfChg { return g.confchg }

// Descriptor returns this client's own end of the dialed TCP connection
// ("ip:port"), captured by Init's dialer. Empty until Init completes.
func (g *GRPCClient) Descriptor() string {
	g.localAddrMu.Lock()
	defer g.localAddrMu.Unlock()
	return g.localAddr
}

// LocalAddr is Descriptor rendered as the 16-byte IPv4-mapped form
// gcs.Client.LocalAddr specifies.
func (g *GRPCClient) LocalAddr() [16]byte { return localAddrBytes(g.Descriptor()) }

// Ready reports whether the next receive on either channel would return
// immediately. Since both channels are filled by the same pump
// goroutine from one network stream, this is necessarily an
// approximation of "more input already buffered" rather than a true
// poll on the socket, but it serves the same purpose: telling the
// dispatcher whether this batch is still arriving.
func (g *GRPCClient) Ready() bool {
	return len(g.frames) > 0 || len(g.confchg) > 0
}

func peerAddrFromContext(ctx context.Context) (string, bool) {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "", false
	}
	return p.Addr.String(), true
}
