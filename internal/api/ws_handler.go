package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"folioforge/internal/auth"
	"folioforge/internal/worker"
)

const (
	wsAuthTimeout  = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteWait    = 5 * time.Second
)

// WsHandler 把 worker 发布的导出结果推送给浏览器。
// 客户端连接后第一帧必须是 {"type":"auth","token":"<access token>"}。
type WsHandler struct {
	notifications redis.UniversalClient
	authService   *auth.AuthService
	logger        *slog.Logger
	upgrader      websocket.Upgrader
}

// NewWsHandler 构造 WebSocket 处理器。allowedOrigins 为空时只允许同源。
func NewWsHandler(redisClient redis.UniversalClient, authService *auth.AuthService, logger *slog.Logger, allowedOrigins []string) *WsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WsHandler{
		notifications: redisClient,
		authService:   authService,
		logger:        logger,
		upgrader:      websocket.Upgrader{CheckOrigin: originChecker(allowedOrigins)},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if len(allowed) > 0 {
			return slices.Contains(allowed, origin)
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

type wsAuthMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// wsCloseError 是鉴权失败时要发给客户端的关闭帧。
type wsCloseError struct {
	code   int
	reason string
}

func (e *wsCloseError) Error() string { return "websocket auth rejected: " + e.reason }

func rejectWS(reason string) error {
	return &wsCloseError{code: websocket.ClosePolicyViolation, reason: reason}
}

// authenticate 校验首帧，只接受无需改密的 access token。
func (h *WsHandler) authenticate(message []byte) (uint, error) {
	var msg wsAuthMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return 0, rejectWS("invalid auth payload")
	}
	if msg.Type != "auth" || msg.Token == "" {
		return 0, rejectWS("auth required")
	}
	claims, err := h.authService.ValidateToken(msg.Token)
	if err != nil {
		return 0, rejectWS("unauthorized")
	}
	if claims.TokenType != "access" {
		return 0, rejectWS("access token required")
	}
	if claims.MustChangePassword {
		return 0, rejectWS("password change required")
	}
	return claims.UserID, nil
}

// exportFrame 解码频道消息，并确认它是发给 userID 的导出通知。
func exportFrame(userID uint, payload string) (worker.ExportNotifyMessage, error) {
	var msg worker.ExportNotifyMessage
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&msg); err != nil {
		return worker.ExportNotifyMessage{}, fmt.Errorf("decode export notification: %w", err)
	}
	if err := msg.Validate(userID); err != nil {
		return worker.ExportNotifyMessage{}, err
	}
	return msg, nil
}

// HandleConnection 完成鉴权后订阅用户频道，直到任一端断开。
func (h *WsHandler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("upgrade websocket failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	log := h.logger.With(slog.String("client_ip", c.ClientIP()))

	_ = conn.SetReadDeadline(time.Now().Add(wsAuthTimeout))
	_, first, err := conn.ReadMessage()
	if err != nil {
		log.Warn("websocket closed before auth", slog.Any("error", err))
		return
	}
	userID, err := h.authenticate(first)
	if err != nil {
		var closeErr *wsCloseError
		if errors.As(err, &closeErr) {
			writeClose(conn, closeErr.code, closeErr.reason)
		}
		log.Warn("websocket authentication failed", slog.Any("error", err))
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	log = log.With(slog.Uint64("user_id", uint64(userID)))
	log.Info("websocket authenticated")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go discardReads(conn, cancel)

	if err := h.relay(ctx, conn, userID, log); err != nil {
		log.Info("websocket connection closed", slog.Any("error", err))
		return
	}
	log.Info("websocket connection closed")
}

// discardReads 丢弃鉴权后的客户端消息，读失败即视为断开。
func discardReads(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *WsHandler) relay(ctx context.Context, conn *websocket.Conn, userID uint, log *slog.Logger) error {
	channel := worker.NotifyChannel(userID)
	pubsub := h.notifications.Subscribe(ctx, channel)
	defer pubsub.Close()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return errors.New("notification channel closed")
			}
			frame, err := exportFrame(userID, msg.Payload)
			if err != nil {
				log.Warn("dropping export notification", slog.String("channel", channel), slog.Any("error", err))
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(frame); err != nil {
				return fmt.Errorf("write notification: %w", err)
			}
			log.Info("export notification delivered",
				slog.Uint64("document_id", uint64(frame.DocumentID)),
				slog.String("status", frame.Status),
				slog.String("correlation_id", frame.CorrelationID),
			)
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return fmt.Errorf("write ping: %w", err)
			}
		}
	}
}

func writeClose(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(wsWriteWait))
}
