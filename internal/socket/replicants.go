package socket

import (
	"context"
	"encoding/json"
	"fmt"

	"stagehand/internal/replicant"
)

const (
	EventReplicantRead       = "replicant:read"
	EventReplicantOperations = "replicant:operations"
)

// ReadRequest names a replicant.
type ReadRequest struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
}

// ReadResponse carries a replicant's current value.
type ReadResponse struct {
	Value    json.RawMessage `json:"value"`
	Revision int64           `json:"revision"`
}

// BindReplicants serves replicant reads and pushes every change to all
// clients. The returned function stops the push.
func BindReplicants(h *Hub, reg *replicant.Registry) func() {
	h.Handle(EventReplicantRead, func(_ context.Context, _ *Conn, data json.RawMessage) (any, error) {
		var req ReadRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("decode replicant read: %w", err)
		}
		value, revision, ok, err := reg.Read(req.Namespace, req.Name)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("replicant %s:%s is not declared", req.Namespace, req.Name)
		}
		return ReadResponse{Value: value, Revision: revision}, nil
	})
	return reg.Subscribe(func(env replicant.Envelope) {
		h.Broadcast(EventReplicantOperations, env)
	})
}
