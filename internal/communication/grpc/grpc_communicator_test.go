package grpccomm

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/AnishMulay/fscheck/internal/communication"
	"github.com/AnishMulay/fscheck/internal/log_service/zaplog"
)

type echoRequest struct {
	Data []byte `json:"data"`
}

func startEcho(t *testing.T, maxMsgBytes int) *GRPCCommunicator {
	t.Helper()
	srv := NewGRPCCommunicator("127.0.0.1:0", maxMsgBytes, zaplog.NewNopLogService())
	srv.RegisterPayloadType("echo", reflect.TypeOf(echoRequest{}))
	srv.RegisterPayloadType("fail", reflect.TypeOf(echoRequest{}))

	err := srv.Start(func(ctx context.Context, msg communication.Message) (*communication.Response, error) {
		switch msg.Type {
		case "echo":
			req := msg.Payload.(echoRequest)
			return &communication.Response{Code: communication.CodeOK, Body: req.Data}, nil
		default:
			return nil, errors.New("boom")
		}
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { srv.Stop() })
	return srv
}

func TestGRPCCommunicator_RoundTrip(t *testing.T) {
	srv := startEcho(t, 0)
	cli := NewGRPCCommunicator("", 0, zaplog.NewNopLogService())
	t.Cleanup(func() { cli.Stop() })

	big := bytes.Repeat([]byte{0, 1, 2, 0xff}, 4096)

	tests := []struct {
		name     string
		msg      communication.Message
		wantCode communication.Code
		wantBody []byte
	}{
		{
			name:     "echo",
			msg:      communication.Message{From: "t", Type: "echo", Payload: echoRequest{Data: []byte("hello")}},
			wantCode: communication.CodeOK,
			wantBody: []byte("hello"),
		},
		{
			name:     "binary payload",
			msg:      communication.Message{From: "t", Type: "echo", Payload: echoRequest{Data: big}},
			wantCode: communication.CodeOK,
			wantBody: big,
		},
		{
			name:     "no payload",
			msg:      communication.Message{From: "t", Type: "echo"},
			wantCode: communication.CodeOK,
		},
		{
			name:     "handler error",
			msg:      communication.Message{From: "t", Type: "fail", Payload: echoRequest{}},
			wantCode: communication.CodeInternal,
			wantBody: []byte("boom"),
		},
		{
			name:     "unregistered type",
			msg:      communication.Message{From: "t", Type: "nope"},
			wantCode: communication.CodeBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			resp, err := cli.Send(ctx, srv.Address(), tt.msg)
			if err != nil {
				t.Fatalf("Send() error = %v", err)
			}
			if resp.Code != tt.wantCode {
				t.Errorf("Code = %s, want %s (body %q)", resp.Code, tt.wantCode, resp.Body)
			}
			if tt.wantBody != nil && !bytes.Equal(resp.Body, tt.wantBody) {
				t.Errorf("Body has %d bytes, want %d", len(resp.Body), len(tt.wantBody))
			}
		})
	}
}

func TestGRPCCommunicator_MessageTooLarge(t *testing.T) {
	srv := startEcho(t, 1024)
	cli := NewGRPCCommunicator("", 0, zaplog.NewNopLogService())
	t.Cleanup(func() { cli.Stop() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msg := communication.Message{Type: "echo", Payload: echoRequest{Data: make([]byte, 4096)}}
	_, err := cli.Send(ctx, srv.Address(), msg)
	if !errors.Is(err, communication.ErrMessageSendFailed) {
		t.Fatalf("Send() error = %v, want %v", err, communication.ErrMessageSendFailed)
	}
}

func TestGRPCCommunicator_StopIdempotent(t *testing.T) {
	srv := NewGRPCCommunicator("127.0.0.1:0", 0, zaplog.NewNopLogService())
	if err := srv.Start(func(context.Context, communication.Message) (*communication.Response, error) {
		return &communication.Response{Code: communication.CodeOK}, nil
	}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := srv.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := srv.Stop(); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}
}

func TestEnvelope_Malformed(t *testing.T) {
	req, err := encodeRequest("a", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := decodeRequest(req); !errors.Is(err, communication.ErrEnvelopeMalformed) {
		t.Errorf("decodeRequest() error = %v", err)
	}

	resp := encodeResponse(communication.CodeOK, []byte{1, 2, 3})
	got, err := decodeResponse(resp)
	if err != nil || got.Code != communication.CodeOK || !bytes.Equal(got.Body, []byte{1, 2, 3}) {
		t.Errorf("decodeResponse() = %+v, %v", got, err)
	}
	if _, err := decodeResponse(encodeResponse("", nil)); !errors.Is(err, communication.ErrEnvelopeMalformed) {
		t.Errorf("decodeResponse() without code error = %v", err)
	}
}
