package engine

// CreateTaskRequest 创建识别任务请求
type CreateTaskRequest struct {
	AudioURL string `json:"audio_url"`
	Language string `json:"language,omitempty"`
	// Hotwords 热词，逗号分隔
	Hotwords string `json:"hotwords,omitempty"`
}

// createTaskResponse 创建任务响应
type createTaskResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		TaskID string `json:"task_id"`
	} `json:"data"`
}

// GetCode 返回业务码
func (r *createTaskResponse) GetCode() int {
	return r.Code
}

// TaskResult 识别任务结果
type TaskResult struct {
	TaskID   string  `json:"task_id"`
	State    string  `json:"state"` // pending, running, done, failed
	Progress int     `json:"progress"`
	ErrMsg   string  `json:"err_msg,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	Language string  `json:"language,omitempty"`

	Segments []ResultSegment `json:"segments,omitempty"`
	Speakers []ResultSpeaker `json:"speakers,omitempty"`
	FullText string          `json:"full_text,omitempty"`
}

// ResultSegment 引擎返回的片段
type ResultSegment struct {
	SpeakerID string  `json:"speaker_id"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Text      string  `json:"text"`
	Emotion   string  `json:"emotion,omitempty"`
}

// ResultSpeaker 引擎返回的说话人
type ResultSpeaker struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Done 任务是否完成
func (r *TaskResult) Done() bool {
	return r.State == "done"
}

// Failed 任务是否失败
func (r *TaskResult) Failed() bool {
	return r.State == "failed"
}

type getTaskResultResponse struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    TaskResult `json:"data"`
}

// GetCode 返回业务码
func (r *getTaskResultResponse) GetCode() int {
	return r.Code
}

// PollOptions 轮询选项
type PollOptions struct {
	// OnProgress 进度回调（0-100）
	OnProgress func(progress int)
}
