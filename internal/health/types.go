package health

// Status is reported by GET /healthz
type Status struct {
	IsReady bool   `json:"isReady"`
	Message string `json:"message"`
}
