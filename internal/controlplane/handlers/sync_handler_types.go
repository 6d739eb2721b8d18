package handlers

const (
	StrategyPropose      = "propose"
	StrategyAcceptRemote = "accept-remote"
)

type ResolveRequest struct {
	Strategy string `json:"strategy" binding:"required,oneof=propose accept-remote"`
	// Confirm must be true for accept-remote, which discards local bottles.
	Confirm bool `json:"confirm"`
}

type ConnectionResponse struct {
	OK            bool   `json:"ok"`
	Message       string `json:"message"`
	Repository    string `json:"repository,omitempty"`
	DefaultBranch string `json:"defaultBranch,omitempty"`
	CanPush       bool   `json:"canPush"`
}
