package handler

type registerSubIdentityRequest struct {
	AppID string `json:"app_id"`
}

type deriveRequest struct {
	AppID string `json:"app_id"`
}

type rootIdentityResponse struct {
	ID        string `json:"id"`
	Owner     string `json:"owner"`
	Version   uint64 `json:"version"`
	CreatedAt string `json:"created_at"`
}

type subIdentityResponse struct {
	RootID         string   `json:"root_id"`
	AppID          string   `json:"app_id"`
	ContextID      string   `json:"context_id"`
	PermissionTags []string `json:"permission_tags"`
	CreatedAt      string   `json:"created_at"`
}

type deriveResponse struct {
	ContextID string `json:"context_id"`
}
