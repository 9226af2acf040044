package grpccomm

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"reflect"
	"sync"

	"go.uber.org/multierr"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/AnishMulay/fscheck/internal/communication"
	"github.com/AnishMulay/fscheck/internal/log_service"
)

type GRPCCommunicator struct {
	listenAddress string
	maxMsgBytes   int
	handler       communication.MessageHandler
	grpcServer    *grpc.Server
	ls            log_service.LogService

	clientLock   sync.RWMutex
	clients      map[string]*grpc.ClientConn
	payloadLock  sync.RWMutex
	payloadTypes map[string]reflect.Type
	stopped      bool
	stopMutex    sync.Mutex
}

// NewGRPCCommunicator creates a communicator listening on addr once started.
// maxMsgBytes bounds both sent and received envelopes; zero keeps the grpc
// default.
func NewGRPCCommunicator(addr string, maxMsgBytes int, ls log_service.LogService) *GRPCCommunicator {
	return &GRPCCommunicator{
		listenAddress: addr,
		maxMsgBytes:   maxMsgBytes,
		ls:            ls,
		clients:       make(map[string]*grpc.ClientConn),
		payloadTypes:  make(map[string]reflect.Type),
	}
}

// RegisterPayloadType tells the receiving side which struct a message
// type's payload decodes into.
func (c *GRPCCommunicator) RegisterPayloadType(msgType string, t reflect.Type) {
	c.payloadLock.Lock()
	defer c.payloadLock.Unlock()
	c.payloadTypes[msgType] = t
}

func (c *GRPCCommunicator) Address() string {
	return c.listenAddress
}

func (c *GRPCCommunicator) Start(handler communication.MessageHandler) error {
	c.ls.Info(log_service.LogEvent{
		Message:  "Starting GRPC communicator",
		Metadata: map[string]any{"address": c.listenAddress},
	})

	lis, err := net.Listen("tcp", c.listenAddress)
	if err != nil {
		c.ls.Error(log_service.LogEvent{
			Message:  "Failed to listen on address",
			Metadata: map[string]any{"address": c.listenAddress, "error": err.Error()},
		})
		return fmt.Errorf("%w: %w", communication.ErrGRPCListenFailed, err)
	}
	// resolves ":0" to the port actually bound
	c.listenAddress = lis.Addr().String()

	var opts []grpc.ServerOption
	if c.maxMsgBytes > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(c.maxMsgBytes), grpc.MaxSendMsgSize(c.maxMsgBytes))
	}
	c.handler = handler
	c.grpcServer = grpc.NewServer(opts...)
	c.grpcServer.RegisterService(&messageServiceDesc, &grpcServer{comm: c})

	c.ls.Info(log_service.LogEvent{
		Message:  "GRPC communicator started successfully",
		Metadata: map[string]any{"address": c.listenAddress},
	})

	go func() {
		if err := c.grpcServer.Serve(lis); err != nil {
			c.ls.Error(log_service.LogEvent{
				Message:  "GRPC server error",
				Metadata: map[string]any{"address": c.listenAddress, "error": err.Error()},
			})
		}
	}()
	return nil
}

func (c *GRPCCommunicator) Stop() error {
	c.stopMutex.Lock()
	defer c.stopMutex.Unlock()

	if c.stopped {
		c.ls.Debug(log_service.LogEvent{
			Message:  "GRPC communicator already stopped, skipping",
			Metadata: map[string]any{"address": c.listenAddress},
		})
		return nil
	}

	c.ls.Info(log_service.LogEvent{
		Message:  "Stopping GRPC communicator",
		Metadata: map[string]any{"address": c.listenAddress},
	})

	if c.grpcServer != nil {
		c.grpcServer.GracefulStop()
	}

	var err error
	c.clientLock.Lock()
	for addr, conn := range c.clients {
		err = multierr.Append(err, conn.Close())
		delete(c.clients, addr)
	}
	c.clientLock.Unlock()

	c.stopped = true
	if err != nil {
		c.ls.Error(log_service.LogEvent{
			Message:  "Failed to close GRPC clients",
			Metadata: map[string]any{"address": c.listenAddress, "error": err.Error()},
		})
		return fmt.Errorf("%w: %w", communication.ErrServerStopFailed, err)
	}

	c.ls.Info(log_service.LogEvent{
		Message:  "GRPC communicator stopped successfully",
		Metadata: map[string]any{"address": c.listenAddress},
	})
	return nil
}

func (c *GRPCCommunicator) client(to string) (*messageServiceClient, error) {
	c.clientLock.RLock()
	conn, ok := c.clients[to]
	c.clientLock.RUnlock()
	if ok {
		return &messageServiceClient{cc: conn}, nil
	}

	c.ls.Debug(log_service.LogEvent{
		Message:  "Creating new GRPC client",
		Metadata: map[string]any{"to": to},
	})

	opts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if c.maxMsgBytes > 0 {
		opts = append(opts, grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(c.maxMsgBytes),
			grpc.MaxCallSendMsgSize(c.maxMsgBytes),
		))
	}
	conn, err := grpc.NewClient(to, opts...)
	if err != nil {
		c.ls.Error(log_service.LogEvent{
			Message:  "Failed to create GRPC client",
			Metadata: map[string]any{"to": to, "error": err.Error()},
		})
		return nil, fmt.Errorf("%w: %w", communication.ErrClientCreateFailed, err)
	}

	c.clientLock.Lock()
	if existing, ok := c.clients[to]; ok {
		c.clientLock.Unlock()
		conn.Close()
		return &messageServiceClient{cc: existing}, nil
	}
	c.clients[to] = conn
	c.clientLock.Unlock()
	return &messageServiceClient{cc: conn}, nil
}

func (c *GRPCCommunicator) Send(ctx context.Context, to string, msg communication.Message) (*communication.Response, error) {
	c.ls.Debug(log_service.LogEvent{
		Message:  "Sending GRPC message",
		Metadata: map[string]any{"to": to, "type": msg.Type, "from": msg.From},
	})

	client, err := c.client(to)
	if err != nil {
		return nil, err
	}

	var payloadBytes []byte
	if msg.Payload != nil {
		payloadBytes, err = json.Marshal(msg.Payload)
		if err != nil {
			c.ls.Error(log_service.LogEvent{
				Message:  "Failed to marshal payload",
				Metadata: map[string]any{"to": to, "type": msg.Type, "error": err.Error()},
			})
			return nil, fmt.Errorf("%w: %w", communication.ErrPayloadMarshalFailed, err)
		}
	}

	req, err := encodeRequest(msg.From, msg.Type, payloadBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", communication.ErrPayloadMarshalFailed, err)
	}

	out, err := client.SendMessage(ctx, req)
	if err != nil {
		c.ls.Error(log_service.LogEvent{
			Message:  "Failed to send GRPC message",
			Metadata: map[string]any{"to": to, "type": msg.Type, "error": err.Error()},
		})
		return nil, fmt.Errorf("%w: %w", communication.ErrMessageSendFailed, err)
	}

	resp, err := decodeResponse(out)
	if err != nil {
		return nil, err
	}

	c.ls.Debug(log_service.LogEvent{
		Message:  "GRPC message sent successfully",
		Metadata: map[string]any{"to": to, "type": msg.Type, "responseCode": string(resp.Code)},
	})
	return resp, nil
}

type grpcServer struct {
	comm *GRPCCommunicator
}

func (s *grpcServer) SendMessage(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.comm.handler == nil {
		return nil, communication.ErrHandlerNotSet
	}

	from, msgType, payload, err := decodeRequest(req)
	if err != nil {
		return encodeResponse(communication.CodeBadRequest, []byte(err.Error())), nil
	}
	msg := communication.Message{From: from, Type: msgType}

	// Deserialize payload based on registered type
	s.comm.payloadLock.RLock()
	payloadType, ok := s.comm.payloadTypes[msgType]
	s.comm.payloadLock.RUnlock()
	if !ok {
		s.comm.ls.Warn(log_service.LogEvent{
			Message:  "Received message of unregistered type",
			Metadata: map[string]any{"type": msgType, "from": from},
		})
		return encodeResponse(communication.CodeBadRequest, []byte(fmt.Sprintf("%s: %q", communication.ErrUnknownType, msgType))), nil
	}
	if len(payload) > 0 {
		v := reflect.New(payloadType).Interface()
		if err := json.Unmarshal(payload, v); err != nil {
			return encodeResponse(communication.CodeBadRequest, []byte(fmt.Sprintf("%s: %v", communication.ErrPayloadUnmarshalFailed, err))), nil
		}
		msg.Payload = reflect.ValueOf(v).Elem().Interface()
	} else {
		msg.Payload = reflect.Zero(payloadType).Interface()
	}

	resp, err := s.comm.handler(ctx, msg)
	if err != nil {
		s.comm.ls.Error(log_service.LogEvent{
			Message:  "Message handler failed",
			Metadata: map[string]any{"type": msgType, "error": err.Error()},
		})
		return encodeResponse(communication.CodeInternal, []byte(err.Error())), nil
	}
	if resp == nil {
		return encodeResponse(communication.CodeInternal, []byte("handler returned nil response")), nil
	}
	return encodeResponse(resp.Code, resp.Body), nil
}

var _ communication.Communicator = (*GRPCCommunicator)(nil)
