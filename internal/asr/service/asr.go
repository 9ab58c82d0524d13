package service

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/lk2023060901/asr-studio-backend/internal/asr/biz"
	filebiz "github.com/lk2023060901/asr-studio-backend/internal/file/biz"
	"github.com/lk2023060901/asr-studio-backend/internal/pkg/response"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 单机部署，前端与后端同源或由反向代理控制
		return true
	},
}

// ASRService 语音识别接口
type ASRService struct {
	tracker *biz.Tracker
	logger  *zap.Logger
}

// NewASRService 创建识别接口
func NewASRService(tracker *biz.Tracker, logger *zap.Logger) *ASRService {
	return &ASRService{tracker: tracker, logger: logger}
}

// StartRecognition 发起识别任务
// POST /api/v1/asr/recognize/:id
func (s *ASRService) StartRecognition(c *gin.Context) {
	var req struct {
		Language string `json:"language"`
	}
	// 请求体可为空，语言回落到文件上传选项
	_ = c.ShouldBindJSON(&req)

	task, err := s.tracker.Start(c.Request.Context(), c.Param("id"), req.Language)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.Success(c, task)
}

// GetProgress 查询识别进度
// GET /api/v1/asr/progress/:id
func (s *ASRService) GetProgress(c *gin.Context) {
	task, err := s.tracker.Progress(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.Success(c, gin.H{
		"file_id":  task.FileID,
		"status":   task.State,
		"progress": task.Progress,
		"error":    task.Error,
	})
}

// GetLanguages 支持的识别语言
// GET /api/v1/asr/languages
func (s *ASRService) GetLanguages(c *gin.Context) {
	response.Success(c, gin.H{"languages": filebiz.SupportedLanguages})
}

// WatchProgress 订阅识别进度推送
// GET /api/v1/ws/asr/progress/:id
func (s *ASRService) WatchProgress(c *gin.Context) {
	fileID := c.Param("id")

	events, cancel, err := s.tracker.Track(c.Request.Context(), fileID)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	defer cancel()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.String("file_id", fileID), zap.Error(err))
		return
	}
	defer conn.Close()

	// 读循环只负责感知客户端断开
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				s.logger.Debug("websocket write failed", zap.String("file_id", fileID), zap.Error(err))
				return
			}
			if ev.Lost || ev.State.Terminal() {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
		}
	}
}
