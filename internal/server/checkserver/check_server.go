package checkserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/AnishMulay/fscheck/internal/check_service"
	"github.com/AnishMulay/fscheck/internal/communication"
	grpccomm "github.com/AnishMulay/fscheck/internal/communication/grpc"
	"github.com/AnishMulay/fscheck/internal/image_service"
	"github.com/AnishMulay/fscheck/internal/log_service"
	ps "github.com/AnishMulay/fscheck/internal/server"
)

// CheckServer answers check requests over a communicator. It holds no state
// between requests.
type CheckServer struct {
	comm   *grpccomm.GRPCCommunicator
	cs     check_service.CheckService
	loader image_service.ImageLoader
	ls     log_service.LogService
}

func NewCheckServer(
	comm *grpccomm.GRPCCommunicator,
	cs check_service.CheckService,
	loader image_service.ImageLoader,
	ls log_service.LogService,
) *CheckServer {
	return &CheckServer{comm: comm, cs: cs, loader: loader, ls: ls}
}

func (s *CheckServer) Start() error {
	s.ls.Info(log_service.LogEvent{Message: "Starting check server"})

	s.comm.RegisterPayloadType(ps.MsgCheckImage, reflect.TypeOf(ps.CheckImageRequest{}))
	s.comm.RegisterPayloadType(ps.MsgCheckPath, reflect.TypeOf(ps.CheckPathRequest{}))

	if err := s.comm.Start(s.HandleMessage); err != nil {
		return fmt.Errorf("%w: %w", ps.ErrServerStartFailed, err)
	}
	return nil
}

func (s *CheckServer) Stop() error {
	s.ls.Info(log_service.LogEvent{Message: "Stopping check server"})
	if err := s.comm.Stop(); err != nil {
		return fmt.Errorf("%w: %w", ps.ErrServerStopFailed, err)
	}
	return nil
}

func (s *CheckServer) Address() string {
	return s.comm.Address()
}

// HandleMessage routes one incoming message.
func (s *CheckServer) HandleMessage(ctx context.Context, msg communication.Message) (*communication.Response, error) {
	s.ls.Debug(log_service.LogEvent{
		Message:  "Received message",
		Metadata: map[string]any{"type": msg.Type, "from": msg.From},
	})

	switch msg.Type {
	case ps.MsgCheckImage:
		req, ok := msg.Payload.(ps.CheckImageRequest)
		if !ok {
			return badRequest(ps.ErrInvalidPayloadType), nil
		}
		if len(req.Image) == 0 {
			return badRequest(ps.ErrEmptyImage), nil
		}
		return s.check(ctx, req.Image)

	case ps.MsgCheckPath:
		req, ok := msg.Payload.(ps.CheckPathRequest)
		if !ok {
			return badRequest(ps.ErrInvalidPayloadType), nil
		}
		img, err := s.loader.Load(req.Path)
		if err != nil {
			return badRequest(err), nil
		}
		defer img.Close()
		return s.check(ctx, img.Data)

	default:
		s.ls.Warn(log_service.LogEvent{
			Message:  "No handler for message type",
			Metadata: map[string]any{"type": msg.Type},
		})
		return badRequest(fmt.Errorf("%w: %s", ps.ErrHandlerNotRegistered, msg.Type)), nil
	}
}

func (s *CheckServer) check(ctx context.Context, image []byte) (*communication.Response, error) {
	report, err := s.cs.Check(ctx, image)
	v, isViolation := check_service.AsViolation(err)
	if err != nil && !isViolation {
		if errors.Is(err, check_service.ErrCheckCancelled) {
			return nil, err
		}
		return badRequest(err), nil
	}

	body := ps.CheckImageResponse{
		RunID:    report.RunID,
		OK:       report.OK(),
		Geometry: report.Geometry.String(),
	}
	if v != nil {
		body.Check = v.Check()
		body.Code = v.Code.String()
		body.Message = v.Error()
	}
	return respond(body)
}

func respond(body any) (*communication.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return &communication.Response{Code: communication.CodeOK, Body: data}, nil
}

func badRequest(err error) *communication.Response {
	return &communication.Response{Code: communication.CodeBadRequest, Body: []byte(err.Error())}
}

var _ ps.Server = (*CheckServer)(nil)
