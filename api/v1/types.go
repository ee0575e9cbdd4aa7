package v1

type ResultType string

const (
	ResultVideo ResultType = "video"
	ResultImage ResultType = "image"
)

// GenerateRequest is the body accepted by every submit route. Which fields
// matter depends on the route.
type GenerateRequest struct {
	Prompt         string   `json:"prompt"`
	AspectRatio    string   `json:"aspect_ratio,omitempty"`
	ImageBase64    string   `json:"imageBase64,omitempty"`
	Width          int      `json:"width,omitempty"`
	Height         int      `json:"height,omitempty"`
	Strength       *float64 `json:"strength,omitempty"`
	ControlNetType string   `json:"controlnet_type,omitempty"`
}

// PollRequest queries one task. Kind is only read by the video status route,
// where "image-to-video" selects that flow's status query.
type PollRequest struct {
	TaskID string `json:"task_id"`
	Kind   string `json:"kind,omitempty"`
}

type Result struct {
	Type        ResultType `json:"type"`
	URL         string     `json:"url"`
	URLs        []string   `json:"urls,omitempty"`
	Description string     `json:"description,omitempty"`
}

type TaskData struct {
	TaskID         string  `json:"task_id"`
	Status         string  `json:"status"`
	VideoURL       string  `json:"video_url,omitempty"`
	Result         *Result `json:"result,omitempty"`
	StatusMessage  string  `json:"statusMessage,omitempty"`
	ProviderStatus string  `json:"provider_status,omitempty"`
}

// TaskResponse is the envelope every submit and poll route answers with.
type TaskResponse struct {
	Success bool      `json:"success"`
	Data    *TaskData `json:"data,omitempty"`
	Error   string    `json:"error,omitempty"`
	Status  string    `json:"status,omitempty"`
}

type ArchiveRequest struct {
	TaskID      string `json:"task_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
}

type PresignedUrl struct {
	Bucket  string            `json:"bucket"`
	Key     string            `json:"key"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

type ArchiveResponse struct {
	Success bool          `json:"success"`
	Data    *PresignedUrl `json:"data,omitempty"`
	Error   string        `json:"error,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
