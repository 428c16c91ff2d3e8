package models

// SharedConfig is the durable cross-instance record of the active classifier selection
type SharedConfig struct {
	Category  string `json:"category"`
	ModelPath string `json:"model_path"`
}

// AdminSession is the durable single-slot record naming the current admin
type AdminSession struct {
	SessionID string `json:"session_id"`
	LoginTime string `json:"login_time"`
}
