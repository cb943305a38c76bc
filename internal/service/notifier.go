package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-orz/orz"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"github.com/valyala/fasttemplate"
	"github.com/vendops/vendwatch/internal/config"
	"github.com/vendops/vendwatch/internal/models"
	"github.com/vendops/vendwatch/internal/repo"
	ws "github.com/vendops/vendwatch/internal/websocket"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
	"gorm.io/gorm"
)

var ErrIntentNotResendable = orz.NewError(400, "只有投递失败的通知可以重发")

// ChannelSender 单个渠道的投递实现
type ChannelSender interface {
	Send(ctx context.Context, user *models.User, occ *models.AlertOccurrence) error
}

// NotificationService 通知投递服务
// 每个 (用户, 渠道) 生成一条投递意图，只尝试投递一次，
// 失败后停留在 failed 状态等待人工重发
type NotificationService struct {
	logger *zap.Logger
	*orz.Service
	NotificationRepo *repo.NotificationRepo
	occurrenceRepo   *repo.OccurrenceRepo
	userRepo         *repo.UserRepo
	senders          map[models.Channel]ChannelSender
}

func NewNotificationService(logger *zap.Logger, db *gorm.DB, senders map[models.Channel]ChannelSender) *NotificationService {
	return &NotificationService{
		logger:           logger,
		Service:          orz.NewService(db),
		NotificationRepo: repo.NewNotificationRepo(db),
		occurrenceRepo:   repo.NewOccurrenceRepo(db),
		userRepo:         repo.NewUserRepo(db),
		senders:          senders,
	}
}

// Notify 向一组用户投递告警通知
// 各投递意图相互独立，单个失败不影响其他用户和渠道
func (s *NotificationService) Notify(ctx context.Context, occ *models.AlertOccurrence, userIDs []string, channel models.Channel) error {
	userIDs = dedupe(userIDs)
	if len(userIDs) == 0 {
		return nil
	}

	users, err := s.userRepo.FindByIdIn(ctx, userIDs)
	if err != nil {
		return err
	}
	userByID := make(map[string]*models.User, len(users))
	for i := range users {
		userByID[users[i].ID] = &users[i]
	}

	now := time.Now().UnixMilli()
	intents := make([]models.NotificationIntent, 0, len(userIDs))
	for _, userID := range userIDs {
		intents = append(intents, models.NotificationIntent{
			ID:        uuid.NewString(),
			AlertID:   occ.ID,
			UserID:    userID,
			Channel:   channel,
			Status:    models.IntentStatusPending,
			CreatedAt: now,
		})
	}
	if err := s.NotificationRepo.CreateBatch(ctx, intents); err != nil {
		return err
	}

	p := pool.New().WithMaxGoroutines(4)
	for i := range intents {
		intent := &intents[i]
		p.Go(func() {
			s.deliver(ctx, intent, userByID[intent.UserID], occ)
		})
	}
	p.Wait()
	return nil
}

// deliver 执行一次投递并落地结果，不重试
func (s *NotificationService) deliver(ctx context.Context, intent *models.NotificationIntent, user *models.User, occ *models.AlertOccurrence) {
	err := s.send(ctx, intent, user, occ)
	if err != nil {
		s.logger.Warn("通知投递失败",
			zap.String("intentId", intent.ID),
			zap.String("userId", intent.UserID),
			zap.String("channel", string(intent.Channel)),
			zap.Error(err),
		)
		if markErr := s.NotificationRepo.MarkFailed(ctx, intent.ID, err.Error()); markErr != nil {
			s.logger.Error("标记投递失败状态出错", zap.String("intentId", intent.ID), zap.Error(markErr))
		}
		return
	}
	if markErr := s.NotificationRepo.MarkSent(ctx, intent.ID, time.Now().UnixMilli()); markErr != nil {
		s.logger.Error("标记投递成功状态出错", zap.String("intentId", intent.ID), zap.Error(markErr))
	}
}

func (s *NotificationService) send(ctx context.Context, intent *models.NotificationIntent, user *models.User, occ *models.AlertOccurrence) error {
	if user == nil {
		return fmt.Errorf("用户不存在: %s", intent.UserID)
	}
	sender, ok := s.senders[intent.Channel]
	if !ok {
		return fmt.Errorf("不支持的通知渠道: %s", intent.Channel)
	}
	return sender.Send(ctx, user, occ)
}

// Resend 手动重发一条投递失败的通知
// 重发同样只尝试一次，失败后继续停留在 failed 状态
func (s *NotificationService) Resend(ctx context.Context, intentID string) (*models.NotificationIntent, error) {
	intent, err := s.NotificationRepo.FindById(ctx, intentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, orz.NewError(404, "通知不存在")
		}
		return nil, err
	}
	if intent.Status != models.IntentStatusFailed {
		return nil, ErrIntentNotResendable
	}

	occ, err := s.occurrenceRepo.FindById(ctx, intent.AlertID)
	if err != nil {
		return nil, err
	}
	user, err := s.userRepo.FindById(ctx, intent.UserID)
	if err != nil {
		return nil, err
	}

	s.deliver(ctx, &intent, &user, &occ)

	updated, err := s.NotificationRepo.FindById(ctx, intent.ID)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// buildAlertMessage 构建告警消息文本
func buildAlertMessage(occ *models.AlertOccurrence) string {
	levelIcon := ""
	switch occ.Severity {
	case models.SeverityLow:
		levelIcon = "ℹ️"
	case models.SeverityMedium, models.SeverityHigh:
		levelIcon = "⚠️"
	case models.SeverityCritical:
		levelIcon = "🚨"
	}

	metricName := ""
	switch occ.Metric {
	case models.MetricMemory:
		metricName = "内存告警"
	case models.MetricCPU:
		metricName = "CPU告警"
	case models.MetricDisk:
		metricName = "磁盘告警"
	}

	return fmt.Sprintf(
		"%s %s\n\n"+
			"规则: %s\n"+
			"触发条件: %s %s %.2f%%\n"+
			"当前值: %.2f%%\n"+
			"级别: %s\n"+
			"触发时间: %s",
		levelIcon,
		metricName,
		occ.RuleName,
		occ.Metric,
		occ.Operator,
		occ.Threshold,
		occ.Value,
		occ.Severity,
		time.UnixMilli(occ.CreatedAt).Local().Format("2006-01-02 15:04:05"),
	)
}

// EmailSender 邮件渠道，基于 SMTP
type EmailSender struct {
	logger *zap.Logger
	config config.SMTP
}

func NewEmailSender(logger *zap.Logger, config config.SMTP) *EmailSender {
	return &EmailSender{
		logger: logger,
		config: config,
	}
}

func (s *EmailSender) Send(ctx context.Context, user *models.User, occ *models.AlertOccurrence) error {
	if s.config.Host == "" {
		return fmt.Errorf("未配置 SMTP 服务器")
	}
	if user.Email == "" {
		return fmt.Errorf("用户未配置邮箱: %s", user.ID)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.config.From)
	m.SetHeader("To", user.Email)
	m.SetHeader("Subject", fmt.Sprintf("【告警】%s", occ.RuleName))
	m.SetBody("text/plain", buildAlertMessage(occ))

	dialer := gomail.NewDialer(s.config.Host, s.config.Port, s.config.Username, s.config.Password)
	if err := dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("邮件发送失败: %w", err)
	}

	s.logger.Info("邮件通知发送成功", zap.String("to", user.Email), zap.String("alertId", occ.ID))
	return nil
}

// ChatSender 聊天机器人渠道，通过 Webhook 推送
type ChatSender struct {
	logger *zap.Logger
	config config.Chat
	client *http.Client
}

func NewChatSender(logger *zap.Logger, config config.Chat) *ChatSender {
	return &ChatSender{
		logger: logger,
		config: config,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *ChatSender) Send(ctx context.Context, user *models.User, occ *models.AlertOccurrence) error {
	if s.config.WebhookURL == "" {
		return fmt.Errorf("未配置聊天机器人 Webhook")
	}

	message := buildAlertMessage(occ)

	var reqBody io.Reader
	if s.config.BodyTemplate != "" {
		// 自定义模板，支持变量替换
		reqBody = strings.NewReader(s.renderTemplate(message, user, occ))
	} else {
		body := map[string]interface{}{
			"msg_type": "text",
			"text": map[string]string{
				"content": message,
			},
			"target": user.ChatTarget,
		}
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("序列化请求体失败: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.WebhookURL, reqBody)
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("请求失败，状态码: %d, 响应: %s", resp.StatusCode, string(respBody))
	}

	s.logger.Info("聊天通知发送成功", zap.String("userId", user.ID), zap.String("alertId", occ.ID))
	return nil
}

// renderTemplate 渲染自定义请求体模板
func (s *ChatSender) renderTemplate(message string, user *models.User, occ *models.AlertOccurrence) string {
	t := fasttemplate.New(s.config.BodyTemplate, "{{", "}}")
	escape := func(v string) string {
		b, _ := json.Marshal(v)
		// json.Marshal 返回带双引号的字符串，模板中不需要外层双引号
		return string(b[1 : len(b)-1])
	}

	return t.ExecuteFuncString(func(w io.Writer, tag string) (int, error) {
		var v string
		switch tag {
		case "message":
			v = message
		case "target":
			v = user.ChatTarget
		case "user.name":
			v = user.Name
		case "alert.rule":
			v = occ.RuleName
		case "alert.metric":
			v = string(occ.Metric)
		case "alert.severity":
			v = string(occ.Severity)
		case "alert.value":
			v = fmt.Sprintf("%.2f", occ.Value)
		case "alert.threshold":
			v = fmt.Sprintf("%.2f", occ.Threshold)
		case "alert.createdAt":
			v = time.UnixMilli(occ.CreatedAt).Local().Format("2006-01-02 15:04:05")
		default:
			return w.Write([]byte("{{" + tag + "}}"))
		}
		return w.Write([]byte(escape(v)))
	})
}

// InAppSender 站内渠道，通过 WebSocket 推送
// 用户不在线时消息直接丢弃，投递仍视为成功
type InAppSender struct {
	logger    *zap.Logger
	wsManager *ws.Manager
}

func NewInAppSender(logger *zap.Logger, wsManager *ws.Manager) *InAppSender {
	return &InAppSender{
		logger:    logger,
		wsManager: wsManager,
	}
}

func (s *InAppSender) Send(ctx context.Context, user *models.User, occ *models.AlertOccurrence) error {
	payload, err := json.Marshal(map[string]interface{}{
		"type": "alert",
		"data": occ,
	})
	if err != nil {
		return err
	}

	if !s.wsManager.SendToUser(user.ID, payload) {
		s.logger.Debug("用户不在线，站内通知丢弃", zap.String("userId", user.ID))
	}
	return nil
}
