package handler

// decideRequest is the custodian's question: may Requester obtain the key
// identified by KeyID for content owned by Owner.
type decideRequest struct {
	KeyID     string `json:"key_id"`
	Owner     string `json:"owner"`
	Requester string `json:"requester"`
}

type checkResponse struct {
	Allowed bool `json:"allowed"`
}
