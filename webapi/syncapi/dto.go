package syncapi

import "github.com/amirasaad/splitsync/pkg/orchestrator"

// StartRequest is the body of POST /api/sync.
type StartRequest struct {
	Force bool `json:"force"`
}

// StateResponse is the JSON form of an orchestrator.State.
type StateResponse struct {
	State     string `json:"state"`
	StartedAt int64  `json:"started_at,omitempty"`
	Forced    bool   `json:"forced,omitempty"`
	At        int64  `json:"at,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Offline   bool   `json:"offline,omitempty"`
}

// ToStateResponse flattens s.
func ToStateResponse(s orchestrator.State) StateResponse {
	switch v := s.(type) {
	case orchestrator.InProgress:
		return StateResponse{State: "in_progress", StartedAt: v.StartedAt, Forced: v.Forced}
	case orchestrator.Completed:
		return StateResponse{State: "completed", At: v.At}
	case orchestrator.Failed:
		return StateResponse{State: "failed", At: v.At, Reason: v.Reason, Offline: v.Offline}
	default:
		return StateResponse{State: "idle"}
	}
}
