package grpccomm

import (
	"encoding/base64"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/AnishMulay/fscheck/internal/communication"
)

const (
	fieldFrom    = "from"
	fieldType    = "type"
	fieldPayload = "payload"
	fieldCode    = "code"
	fieldBody    = "body"
)

func encodeRequest(from, msgType string, payload []byte) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		fieldFrom:    from,
		fieldType:    msgType,
		fieldPayload: base64.StdEncoding.EncodeToString(payload),
	})
}

func decodeRequest(s *structpb.Struct) (from, msgType string, payload []byte, err error) {
	fields := s.GetFields()
	msgType = fields[fieldType].GetStringValue()
	if msgType == "" {
		return "", "", nil, fmt.Errorf("%w: missing %q", communication.ErrEnvelopeMalformed, fieldType)
	}
	from = fields[fieldFrom].GetStringValue()
	payload, err = base64.StdEncoding.DecodeString(fields[fieldPayload].GetStringValue())
	if err != nil {
		return "", "", nil, fmt.Errorf("%w: %w", communication.ErrEnvelopeMalformed, err)
	}
	return from, msgType, payload, nil
}

func encodeResponse(code communication.Code, body []byte) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldCode: structpb.NewStringValue(string(code)),
		fieldBody: structpb.NewStringValue(base64.StdEncoding.EncodeToString(body)),
	}}
}

func decodeResponse(s *structpb.Struct) (*communication.Response, error) {
	fields := s.GetFields()
	code := fields[fieldCode].GetStringValue()
	if code == "" {
		return nil, fmt.Errorf("%w: missing %q", communication.ErrEnvelopeMalformed, fieldCode)
	}
	body, err := base64.StdEncoding.DecodeString(fields[fieldBody].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", communication.ErrEnvelopeMalformed, err)
	}
	return &communication.Response{Code: communication.Code(code), Body: body}, nil
}
