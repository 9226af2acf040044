package communication

import "context"

// Message is one request between nodes. Payload is a typed request struct;
// the transport serializes it and the receiver restores the registered type.
type Message struct {
	From    string
	Type    string
	Payload any
}

type Code string

const (
	CodeOK         Code = "OK"
	CodeBadRequest Code = "BAD_REQUEST"
	CodeInternal   Code = "INTERNAL"
)

type Response struct {
	Code Code
	Body []byte
}

type Communicator interface {
	Start(handler MessageHandler) error
	Stop() error
	Send(ctx context.Context, to string, msg Message) (*Response, error)
	Address() string
}
