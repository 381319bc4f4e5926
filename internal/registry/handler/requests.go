package handler

// Registration requests.
type registerContentRequest struct {
	ContentID string `json:"content_id"`
	// SubIdentityAddr switches registration to the wallet-bound flow.
	SubIdentityAddr string `json:"sub_identity_addr,omitempty"`
}

type registerContextRequest struct {
	ContextID string `json:"context_id"`
	AppID     string `json:"app_id"`
}

type registerSubIdentityInfoRequest struct {
	Addr            string `json:"addr"`
	DerivationIndex uint64 `json:"derivation_index"`
	AppHint         string `json:"app_hint,omitempty"`
}

// Grant requests. Expiry is a Unix timestamp in seconds.
type grantAccessRequest struct {
	Recipient string `json:"recipient"`
	Level     string `json:"level"`
	ExpiresAt int64  `json:"expires_at"`
}

type grantCrossContextRequest struct {
	AppID     string `json:"app_id"`
	Level     string `json:"level"`
	ExpiresAt int64  `json:"expires_at"`
}

type allowlistRequest struct {
	Requester string `json:"requester"`
	Target    string `json:"target"`
	Scope     string `json:"scope"`
	Level     string `json:"level,omitempty"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
}

type cleanupRequest struct {
	ContentID string `json:"content_id"`
	Grantee   string `json:"grantee"`
}
