package gcs

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// The Hub gRPC service is hand-registered rather than generated by
// protoc-gen-go-grpc: no .proto file backs it. A single bidirectional
// stream of wrapperspb.BytesValue carries this package's own compact
// control framing (see streamMsg in grpchub.go); wrapperspb.BytesValue
// is a real, already-compiled proto.Message, so this needs no generated
// code at all while still being genuine protobuf-over-gRPC traffic
// (SPEC_FULL.md §4.7).
const hubServiceName = "clusterdrv.gcs.Hub"

// hubServer is the interface a Stream handler satisfies — the
// hand-written analogue of what protoc-gen-go-grpc would emit for a
// service with one bidi-streaming RPC named Stream.
type hubServer interface {
	Stream(HubStreamServer) error
}

// HubStreamServer is the server side of the Stream RPC.
type HubStreamServer interface {
	Send(*wrapperspb.BytesValue) error
	Recv() (*wrapperspb.BytesValue, error)
	grpc.ServerStream
}

type hubStreamServer struct {
	grpc.ServerStream
}

func (x *hubStreamServer) Send(m *wrapperspb.BytesValue) error { return x.ServerStream.SendMsg(m) }

func (x *hubStreamServer) Recv() (*wrapperspb.BytesValue, error) {
	m := new(wrapperspb.BytesValue)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func _Hub_Stream_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(hubServer).Stream(&hubStreamServer{stream})
}

var hubServiceDesc = grpc.ServiceDesc{
	ServiceName: hubServiceName,
	HandlerType: (*hubServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Stream",
			Handler:       _Hub_Stream_Handler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "clusterdrv/gcs/hub.proto",
}

// RegisterHubServer registers srv's Stream handler on s, the hand-rolled
// equivalent of a generated RegisterHubServer function.
func RegisterHubServer(s grpc.ServiceRegistrar, srv hubServer) {
	s.RegisterService(&hubServiceDesc, srv)
}

// HubStreamClient is the client side of the Stream RPC.
type HubStreamClient interface {
	Send(*wrapperspb.BytesValue) error
	Recv() (*wrapperspb.BytesValue, error)
	grpc.ClientStream
}

type hubStreamClient struct {
	grpc.ClientStream
}

func (x *hubStreamClient) Send(m *wrapperspb.BytesValue) error { return x.ClientStream.SendMsg(m) }

func (x *hubStreamClient) Recv() (*wrapperspb.BytesValue, error) {
	m := new(wrapperspb.BytesValue)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func newHubStreamClient(ctx context.Context, cc grpc.ClientConnInterface) (HubStreamClient, error) {
	stream, err := cc.NewStream(ctx, &hubServiceDesc.Streams[0], "/"+hubServiceName+"/Stream")
	if err != nil {
		return nil, err
	}
	return &hubStreamClient{stream}, nil
}
