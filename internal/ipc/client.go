package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) call(method string, req, resp any) error {
	return c.client.Call(ServiceName+"."+method, req, resp)
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call("Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// BundleList returns the loaded bundles.
func (c *Client) BundleList() (*BundleListResponse, error) {
	var resp BundleListResponse
	if err := c.call("BundleList", BundleListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// BundleRefresh reloads a bundle and asks its pages to reload.
func (c *Client) BundleRefresh(name string) (*BundleRefreshResponse, error) {
	var resp BundleRefreshResponse
	if err := c.call("BundleRefresh", BundleRefreshRequest{Name: name}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AssetList returns asset categories, and records when both filters are set.
func (c *Client) AssetList(namespace, category string) (*AssetListResponse, error) {
	var resp AssetListResponse
	req := AssetListRequest{Namespace: namespace, Category: category}
	if err := c.call("AssetList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GraphicInstances returns graphic registrations.
func (c *Client) GraphicInstances() (*GraphicInstancesResponse, error) {
	var resp GraphicInstancesResponse
	if err := c.call("GraphicInstances", GraphicInstancesRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GraphicRefresh asks graphics to reload.
func (c *Client) GraphicRefresh(target string, all bool) (*GraphicRefreshResponse, error) {
	var resp GraphicRefreshResponse
	if err := c.call("GraphicRefresh", GraphicRefreshRequest{Target: target, All: all}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GraphicKill asks one graphic instance to close.
func (c *Client) GraphicKill(socketID string) (*GraphicKillResponse, error) {
	var resp GraphicKillResponse
	if err := c.call("GraphicKill", GraphicKillRequest{SocketID: socketID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SoundCueList returns the sound cues of one bundle, or of all bundles.
func (c *Client) SoundCueList(namespace string) (*SoundCueListResponse, error) {
	var resp SoundCueListResponse
	if err := c.call("SoundCueList", SoundCueListRequest{Namespace: namespace}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SoundCueUpdate assigns a file to a cue or changes its volume.
func (c *Client) SoundCueUpdate(req SoundCueUpdateRequest) (*SoundCueUpdateResponse, error) {
	var resp SoundCueUpdateResponse
	if err := c.call("SoundCueUpdate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
