package ipc

import (
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"syscall"
	"time"
)

// ErrDaemonUnavailable marks dial failures meaning no daemon is listening:
// the socket file is missing or nothing accepts on it.
var ErrDaemonUnavailable = errors.New("daemon not listening")

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED) {
			return nil, fmt.Errorf("%w at %s: %w", ErrDaemonUnavailable, path, err)
		}
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Start requests the daemon to start recording.
func (c *Client) Start() (*StartResponse, error) {
	var resp StartResponse
	if err := c.client.Call("Blackbox.Start", StartRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to stop recording.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Blackbox.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Blackbox.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Audit runs a storage audit in the daemon.
func (c *Client) Audit() (*AuditResponse, error) {
	var resp AuditResponse
	if err := c.client.Call("Blackbox.Audit", AuditRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Events lists motion events.
func (c *Client) Events(req EventsRequest) (*EventsResponse, error) {
	var resp EventsResponse
	if err := c.client.Call("Blackbox.Events", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Jobs lists recording jobs.
func (c *Client) Jobs(req JobsRequest) (*JobsResponse, error) {
	var resp JobsResponse
	if err := c.client.Call("Blackbox.Jobs", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MarkImportant flags a clip for extended retention.
func (c *Client) MarkImportant(path string, important bool) (*MarkImportantResponse, error) {
	var resp MarkImportantResponse
	if err := c.client.Call("Blackbox.MarkImportant", MarkImportantRequest{Path: path, Important: important}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Kick asks a camera to retry its start immediately.
func (c *Client) Kick(cameraID int) (*KickResponse, error) {
	var resp KickResponse
	if err := c.client.Call("Blackbox.Kick", KickRequest{CameraID: cameraID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
