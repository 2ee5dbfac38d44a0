package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"nightlight/model"
	"nightlight/store"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const tokenCacheTTL = 24 * time.Hour

func tokenKey(userID uuid.UUID) string { return "push:tokens:" + userID.String() }

// Notifier persists notification records and pushes them to the gateway.
// Delivery is fire-and-forget: by the time an expire job fans out, there is no
// caller left to report to, so failures are logged and swallowed.
type Notifier struct {
	st         *store.PostgresStore
	rdb        *redis.Client // optional token cache; nil disables caching
	httpClient *http.Client
	gatewayURL string
	templates  Templates
	log        *zap.Logger
}

func New(st *store.PostgresStore, rdb *redis.Client, gatewayURL string, templates Templates, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{
		st:         st,
		rdb:        rdb,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		gatewayURL: gatewayURL,
		templates:  templates,
		log:        log,
	}
}

type pushMessage struct {
	To    []string          `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Send renders the template for kind, persists one notification row per
// recipient, and (unless persistOnly) pushes to the gateway. It never returns
// an error to the caller; the returned count is how many rows were persisted.
func (n *Notifier) Send(ctx context.Context, recipients []uuid.UUID, kind string, data map[string]string, persistOnly bool) int {
	if len(recipients) == 0 {
		return 0
	}

	title, body, err := n.templates.Render(kind, data)
	if err != nil {
		n.log.Warn("render notification failed", zap.String("kind", kind), zap.Error(err))
		return 0
	}

	ns := make([]model.Notification, 0, len(recipients))
	for _, r := range recipients {
		ns = append(ns, model.Notification{
			UserID: r,
			Type:   kind,
			Title:  title,
			Body:   body,
			Data:   data,
		})
	}
	if err := n.st.InsertNotifications(ctx, ns); err != nil {
		n.log.Warn("persist notifications failed", zap.String("kind", kind), zap.Error(err))
		return 0
	}

	if persistOnly || n.gatewayURL == "" {
		return len(ns)
	}

	tokens, err := n.resolveTokens(ctx, recipients)
	if err != nil {
		n.log.Warn("resolve push tokens failed", zap.String("kind", kind), zap.Error(err))
		return len(ns)
	}
	if len(tokens) == 0 {
		return len(ns)
	}

	if err := n.push(ctx, pushMessage{To: tokens, Title: title, Body: body, Data: data}); err != nil {
		n.log.Warn("push delivery failed", zap.String("kind", kind), zap.Error(err))
	}
	return len(ns)
}

// resolveTokens checks the Redis cache per user and falls back to the store
// for misses, refilling the cache with a TTL.
func (n *Notifier) resolveTokens(ctx context.Context, userIDs []uuid.UUID) ([]string, error) {
	if n.rdb == nil {
		return n.st.PushTokens(ctx, userIDs)
	}

	var tokens []string
	var misses []uuid.UUID
	for _, id := range userIDs {
		cached, err := n.rdb.LRange(ctx, tokenKey(id), 0, -1).Result()
		if err != nil || len(cached) == 0 {
			misses = append(misses, id)
			continue
		}
		tokens = append(tokens, cached...)
	}

	if len(misses) == 0 {
		return tokens, nil
	}

	for _, id := range misses {
		fetched, err := n.st.PushTokens(ctx, []uuid.UUID{id})
		if err != nil {
			return nil, err
		}
		if len(fetched) == 0 {
			continue
		}
		tokens = append(tokens, fetched...)

		pipe := n.rdb.TxPipeline()
		pipe.Del(ctx, tokenKey(id))
		pipe.RPush(ctx, tokenKey(id), toAny(fetched)...)
		pipe.Expire(ctx, tokenKey(id), tokenCacheTTL)
		if _, err := pipe.Exec(ctx); err != nil {
			// cache refill is best-effort
			n.log.Debug("push token cache refill failed", zap.Error(err))
		}
	}
	return tokens, nil
}

func (n *Notifier) push(ctx context.Context, msg pushMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.gatewayURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		b, _ := io.ReadAll(res.Body)
		return fmt.Errorf("push gateway error: %s %s", res.Status, string(b))
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
