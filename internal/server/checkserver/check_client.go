package checkserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/AnishMulay/fscheck/internal/communication"
	ps "github.com/AnishMulay/fscheck/internal/server"
)

// Client sends check requests to a remote CheckServer.
type Client struct {
	comm communication.Communicator
	from string
}

func NewClient(comm communication.Communicator, from string) *Client {
	return &Client{comm: comm, from: from}
}

func (c *Client) CheckImage(ctx context.Context, addr string, image []byte) (*ps.CheckImageResponse, error) {
	return c.send(ctx, addr, ps.MsgCheckImage, ps.CheckImageRequest{Image: image})
}

func (c *Client) CheckPath(ctx context.Context, addr, path string) (*ps.CheckImageResponse, error) {
	return c.send(ctx, addr, ps.MsgCheckPath, ps.CheckPathRequest{Path: path})
}

func (c *Client) send(ctx context.Context, addr, msgType string, payload any) (*ps.CheckImageResponse, error) {
	resp, err := c.comm.Send(ctx, addr, communication.Message{
		From:    c.from,
		Type:    msgType,
		Payload: payload,
	})
	if err != nil {
		return nil, err
	}
	if resp.Code != communication.CodeOK {
		return nil, fmt.Errorf("%w: %s: %s", ps.ErrRemoteRejected, resp.Code, resp.Body)
	}

	var out ps.CheckImageResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("%w: %w", ps.ErrBadResponse, err)
	}
	return &out, nil
}
