package grpccomm

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// The message service is declared by hand. Both directions carry a
// google.protobuf.Struct envelope, so no generated stubs are needed.
const (
	serviceName       = "fscheck.communication.MessageService"
	sendMessageMethod = "/" + serviceName + "/SendMessage"
)

type messageServiceServer interface {
	SendMessage(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var messageServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*messageServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SendMessage", Handler: sendMessageHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "fscheck/communication.proto",
}

func sendMessageHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(messageServiceServer).SendMessage(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: sendMessageMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(messageServiceServer).SendMessage(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

type messageServiceClient struct {
	cc grpc.ClientConnInterface
}

func (c *messageServiceClient) SendMessage(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, sendMessageMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
