package communication

import "errors"

var (
	// Server startup/shutdown errors
	ErrServerStartFailed = errors.New("failed to start server")
	ErrServerStopFailed  = errors.New("failed to stop server")

	// Client connection errors
	ErrClientCreateFailed = errors.New("failed to create client")

	// Message handling errors
	ErrHandlerNotSet     = errors.New("message handler not set")
	ErrMessageSendFailed = errors.New("failed to send message")
	ErrUnknownType       = errors.New("no payload type registered for message")

	// Serialization/deserialization errors
	ErrPayloadMarshalFailed   = errors.New("failed to marshal payload")
	ErrPayloadUnmarshalFailed = errors.New("failed to unmarshal payload")
	ErrEnvelopeMalformed      = errors.New("malformed message envelope")

	// GRPC specific errors
	ErrGRPCListenFailed = errors.New("failed to listen on address")
)
