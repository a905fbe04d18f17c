package dto

// ErrorResponse is the JSON body of every failed API call.
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// ModelStatus describes the detector lifecycle for GET /model.
type ModelStatus struct {
	State     string `json:"state"`
	Backend   string `json:"backend,omitempty"`
	ModelPath string `json:"model_path,omitempty"`
	Workers   int    `json:"workers,omitempty"`
	InUse     int    `json:"in_use"`
	Error     string `json:"error,omitempty"`
}

// CameraStatus is returned by POST /camera/release.
type CameraStatus struct {
	State   string `json:"state"`
	Readers int    `json:"readers"`
}
