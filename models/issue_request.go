package models

type IssueRequest struct {
	SessionId string `json:"session_id"`
}

type IssueResponse struct {
	Jwt           string `json:"jwt"`
	IrmaServerURL string `json:"irma_server_url"`
}
