package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/proposal-studio/internal/goroutine"
	"github.com/ignatzorin/proposal-studio/internal/logger"
	"github.com/ignatzorin/proposal-studio/internal/models"
	"github.com/ignatzorin/proposal-studio/internal/telemetry"
)

const (
	webhookTimeout = 10 * time.Second
	// recordTimeout ограничивает запись результата доставки в базу.
	recordTimeout = 5 * time.Second

	// HeaderWebhookEvent имя события в исходящем запросе.
	HeaderWebhookEvent = "X-Proposal-Event"
	// HeaderWebhookSignature HMAC-SHA256 тела запроса, ключ секрет вебхука.
	HeaderWebhookSignature = "X-Proposal-Signature"
)

// WebhookDeliveryStore нужен диспетчеру для выборки и учёта доставок.
type WebhookDeliveryStore interface {
	ListActiveForEvent(ctx context.Context, userID uuid.UUID, event string) ([]models.WebhookConfiguration, error)
	RecordDelivery(ctx context.Context, id uuid.UUID, statusCode int, success bool, at time.Time) error
}

// WebhookPayload тело исходящего вебхука.
type WebhookPayload struct {
	ID         uuid.UUID `json:"id"`
	Event      string    `json:"event"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// WebhookDispatcher доставляет события в пользовательские вебхуки.
// Повторных попыток нет, результат пишется в конфигурацию вебхука.
type WebhookDispatcher struct {
	repo       WebhookDeliveryStore
	httpClient *http.Client
	wg         sync.WaitGroup
	mu         sync.Mutex
	closed     bool
	timeout    time.Duration
	now        func() time.Time
}

// NewWebhookDispatcher создаёт диспетчер. nil client заменяется клиентом с таймаутом 10 секунд.
func NewWebhookDispatcher(repo WebhookDeliveryStore, client *http.Client) *WebhookDispatcher {
	if client == nil {
		client = &http.Client{Timeout: webhookTimeout}
	}
	return &WebhookDispatcher{repo: repo, httpClient: client, timeout: webhookTimeout, now: time.Now}
}

// Dispatch асинхронно рассылает событие всем активным подписанным вебхукам.
func (d *WebhookDispatcher) Dispatch(ctx context.Context, userID uuid.UUID, event string, data any) {
	// запрос клиента может завершиться раньше доставки
	base := context.WithoutCancel(ctx)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		logger.Log.WithFields(logrus.Fields{
			"user_id": userID,
			"event":   event,
		}).Warn("webhook dispatcher: остановлен, событие не отправлено")
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	goroutine.SafeGo(func() {
		defer d.wg.Done()

		listCtx, cancel := context.WithTimeout(base, recordTimeout)
		hooks, err := d.repo.ListActiveForEvent(listCtx, userID, event)
		cancel()
		if err != nil {
			logger.Log.WithFields(logrus.Fields{
				"user_id": userID,
				"event":   event,
			}).WithError(err).Error("webhook dispatcher: не удалось получить вебхуки")
			return
		}

		for i := range hooks {
			if !hooks[i].IsActive || !hooks[i].Subscribed(event) {
				continue
			}
			d.Deliver(base, &hooks[i], event, data)
		}
	})
}

// Wait ждёт завершения запущенных доставок.
func (d *WebhookDispatcher) Wait() {
	d.wg.Wait()
}

// Shutdown перестаёт принимать новые события и ждёт уже запущенные доставки.
func (d *WebhookDispatcher) Shutdown() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}

// Deliver синхронно отправляет одно событие и записывает результат.
// Каждая доставка получает собственный таймаут, результат пишется
// даже если запрос к вебхуку упёрся в него.
func (d *WebhookDispatcher) Deliver(ctx context.Context, hook *models.WebhookConfiguration, event string, data any) models.WebhookDelivery {
	result := models.WebhookDelivery{WebhookID: hook.ID, Event: event}
	base := context.WithoutCancel(ctx)

	postCtx, cancel := context.WithTimeout(base, d.timeout)
	postCtx, span := telemetry.StartSpan(postCtx, "webhook.deliver")
	status, err := d.post(postCtx, hook, event, data)
	telemetry.EndSpan(span, err)
	cancel()

	result.StatusCode = status
	result.Success = err == nil && status >= 200 && status < 300
	if err != nil {
		result.Error = err.Error()
	} else if !result.Success {
		result.Error = fmt.Sprintf("получен код %d", status)
	}

	entry := logger.Log.WithFields(logrus.Fields{
		"webhook_id": hook.ID,
		"user_id":    hook.UserID,
		"event":      event,
		"status":     status,
	})
	if result.Success {
		entry.Debug("webhook dispatcher: событие доставлено")
	} else {
		entry.WithField("error", result.Error).Warn("webhook dispatcher: доставка не удалась")
	}

	recordCtx, cancelRecord := context.WithTimeout(base, recordTimeout)
	defer cancelRecord()
	if err := d.repo.RecordDelivery(recordCtx, hook.ID, status, result.Success, d.now()); err != nil {
		entry.WithError(err).Error("webhook dispatcher: не удалось сохранить результат доставки")
	}
	return result
}

func (d *WebhookDispatcher) post(ctx context.Context, hook *models.WebhookConfiguration, event string, data any) (int, error) {
	body, err := json.Marshal(WebhookPayload{
		ID:         uuid.New(),
		Event:      event,
		OccurredAt: d.now().UTC(),
		Data:       data,
	})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "ProposalStudio-Webhooks/1.0")
	req.Header.Set(HeaderWebhookEvent, event)
	req.Header.Set(HeaderWebhookSignature, "sha256="+SignWebhookBody(hook.Secret, body))

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return resp.StatusCode, nil
}

// SignWebhookBody возвращает hex HMAC-SHA256 тела.
func SignWebhookBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
