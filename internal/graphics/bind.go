package graphics

import (
	"context"
	"encoding/json"
	"fmt"

	"stagehand/internal/socket"
)

// Incoming socket events.
const (
	EventRegisterSocket       = "graphic:registerSocket"
	EventQueryAvailability    = "graphic:queryAvailability"
	EventRequestBundleRefresh = "graphic:requestBundleRefresh"
	EventRequestRefreshAll    = "graphic:requestRefreshAll"
	EventRequestRefresh       = "graphic:requestRefresh"
	EventRequestKill          = "graphic:requestKill"
)

// Bind serves the graphic events on hub and closes a connection's
// registration when it disconnects.
func Bind(hub *socket.Hub, r *Registry) {
	hub.Handle(EventRegisterSocket, func(_ context.Context, c *socket.Conn, data json.RawMessage) (any, error) {
		var req RegisterRequest
		if err := decode(data, &req); err != nil {
			return false, err
		}
		return r.RegisterSocket(req, c.ID(), c.RemoteIP()), nil
	})
	hub.Handle(EventQueryAvailability, func(_ context.Context, _ *socket.Conn, data json.RawMessage) (any, error) {
		var pathName string
		if err := decode(data, &pathName); err != nil {
			return false, err
		}
		return r.QueryAvailability(pathName), nil
	})
	hub.Handle(EventRequestBundleRefresh, func(_ context.Context, _ *socket.Conn, data json.RawMessage) (any, error) {
		var bundleName string
		if err := decode(data, &bundleName); err != nil {
			return nil, err
		}
		r.RequestBundleRefresh(bundleName)
		return nil, nil
	})
	hub.Handle(EventRequestRefreshAll, func(_ context.Context, _ *socket.Conn, data json.RawMessage) (any, error) {
		var pathName string
		if err := decode(data, &pathName); err != nil {
			return nil, err
		}
		r.RequestRefreshAll(pathName)
		return nil, nil
	})
	hub.Handle(EventRequestRefresh, func(_ context.Context, _ *socket.Conn, data json.RawMessage) (any, error) {
		var inst Instance
		if err := decode(data, &inst); err != nil {
			return nil, err
		}
		r.RequestRefresh(inst)
		return nil, nil
	})
	hub.Handle(EventRequestKill, func(_ context.Context, _ *socket.Conn, data json.RawMessage) (any, error) {
		var inst Instance
		if err := decode(data, &inst); err != nil {
			return nil, err
		}
		r.RequestKill(inst)
		return nil, nil
	})
	hub.OnDisconnect(func(c *socket.Conn) {
		r.Disconnect(c.ID())
	})
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("missing payload")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
