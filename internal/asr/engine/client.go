package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/lk2023060901/asr-studio-backend/internal/pkg/errors"
	"github.com/lk2023060901/asr-studio-backend/internal/pkg/logger"
	"go.uber.org/zap"
)

// Client ASR 引擎 HTTP 客户端
type Client struct {
	config     *Config
	httpClient *http.Client
	logger     *logger.Logger
}

// New 创建引擎客户端
func New(cfg *Config, log *logger.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: log,
	}, nil
}

// doRequest 执行 HTTP 请求并解析响应体
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	url := c.config.BaseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "*/*")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("engine request failed",
			zap.String("method", method),
			zap.String("url", url),
			zap.Error(err),
		)
		return apperrors.Wrap(err, apperrors.ErrEngineUnavailable, url)
	}
	defer resp.Body.Close()

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("engine response",
		zap.Int("status", resp.StatusCode),
		zap.String("body", string(respData)),
	)

	if result != nil && len(respData) > 0 {
		if err := json.Unmarshal(respData, result); err != nil {
			if resp.StatusCode != http.StatusOK {
				return apperrors.Newf(apperrors.ErrEngineFailed, "unexpected status code %d", resp.StatusCode)
			}
			return fmt.Errorf("unmarshal response: %w", err)
		}

		if apiResp, ok := result.(interface{ GetCode() int }); ok {
			if code := apiResp.GetCode(); code != 200 {
				return apperrors.Newf(apperrors.ErrEngineFailed, "engine error code %d", code)
			}
		}
	}

	if resp.StatusCode != http.StatusOK {
		return apperrors.Newf(apperrors.ErrEngineFailed, "unexpected status code %d", resp.StatusCode)
	}

	return nil
}

// CreateTask 创建识别任务
func (c *Client) CreateTask(ctx context.Context, req *CreateTaskRequest) (string, error) {
	if req.Language == "" {
		req.Language = c.config.DefaultLanguage
	}

	var resp createTaskResponse
	if err := c.doRequest(ctx, "POST", "/api/v1/asr/tasks", req, &resp); err != nil {
		return "", err
	}

	if resp.Data.TaskID == "" {
		return "", apperrors.New(apperrors.ErrEngineFailed, "empty task id")
	}

	c.logger.Info("engine task created",
		zap.String("task_id", resp.Data.TaskID),
		zap.String("language", req.Language),
	)

	return resp.Data.TaskID, nil
}

// GetTaskResult 查询任务结果
func (c *Client) GetTaskResult(ctx context.Context, taskID string) (*TaskResult, error) {
	if taskID == "" {
		return nil, fmt.Errorf("task_id is required")
	}

	var resp getTaskResultResponse
	if err := c.doRequest(ctx, "GET", "/api/v1/asr/tasks/"+taskID, nil, &resp); err != nil {
		return nil, err
	}

	return &resp.Data, nil
}

// WaitForTask 轮询等待任务完成
func (c *Client) WaitForTask(ctx context.Context, taskID string, opts *PollOptions) (*TaskResult, error) {
	if opts == nil {
		opts = &PollOptions{}
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.config.PollTimeout)
	defer cancel()

	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-timeoutCtx.Done():
			return nil, apperrors.New(apperrors.ErrTimeout, taskID)
		case <-ticker.C:
			result, err := c.GetTaskResult(timeoutCtx, taskID)
			if err != nil {
				return nil, err
			}

			if opts.OnProgress != nil {
				opts.OnProgress(result.Progress)
			}

			if result.Done() {
				return result, nil
			}
			if result.Failed() {
				return nil, apperrors.New(apperrors.ErrEngineFailed, result.ErrMsg)
			}
		}
	}
}

// Recognize 提交任务并等待完成
func (c *Client) Recognize(ctx context.Context, req *CreateTaskRequest, opts *PollOptions) (*TaskResult, error) {
	taskID, err := c.CreateTask(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.WaitForTask(ctx, taskID, opts)
}

// Languages 返回引擎支持的识别语言
func (c *Client) Languages() []string {
	return []string{"auto", "zh", "en", "ja", "ko"}
}
