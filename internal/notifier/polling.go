package notifier

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// CommandHandler answers one chat command; an empty reply sends nothing.
type CommandHandler func(ctx context.Context, command string) string

type chatMessage struct {
	Text string `json:"text"`
	Chat struct {
		ID int64 `json:"id"`
	} `json:"chat"`
}

type telegramUpdate struct {
	UpdateID int          `json:"update_id"`
	Message  *chatMessage `json:"message"`
}

// PollTimeout is the long-poll wait passed to getUpdates.
var PollTimeout = 30 * time.Second

// pollRetryDelay is the pause after a failed getUpdates call.
var pollRetryDelay = 5 * time.Second

// StartPolling long-polls getUpdates and answers commands until ctx is done.
// Messages from chats other than ChatID are ignored.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler CommandHandler) {
	client := &http.Client{Timeout: PollTimeout + 5*time.Second}
	if t.Client != nil && t.Client.Transport != nil {
		client.Transport = t.Client.Transport
	}

	offset := 0
	for ctx.Err() == nil {
		updates, err := t.getUpdates(ctx, client, offset)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Printf("[WARN] polling request failed: %v", err)
			select {
			case <-ctx.Done():
			case <-time.After(pollRetryDelay):
			}
			continue
		}
		for _, u := range updates {
			offset = u.UpdateID + 1
			t.dispatch(ctx, u.Message, handler)
		}
	}
	log.Println("[INFO] Telegram polling stopped")
}

func (t *TelegramNotifier) dispatch(ctx context.Context, msg *chatMessage, handler CommandHandler) {
	if msg == nil || strings.TrimSpace(msg.Text) == "" {
		return
	}
	if strconv.FormatInt(msg.Chat.ID, 10) != t.ChatID {
		log.Printf("[WARN] ignoring command from chat %d", msg.Chat.ID)
		return
	}
	command := strings.TrimSpace(msg.Text)
	log.Printf("[INFO] received command: %s", command)
	if reply := handler(ctx, command); reply != "" {
		if err := t.Send(ctx, reply); err != nil {
			log.Printf("[ERROR] send reply: %v", err)
		}
	}
}

func (t *TelegramNotifier) getUpdates(ctx context.Context, client *http.Client, offset int) ([]telegramUpdate, error) {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("timeout", strconv.Itoa(int(PollTimeout/time.Second)))
	q.Set("allowed_updates", `["message"]`)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.methodURL("getUpdates")+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create polling request: %w", err)
	}
	var updates []telegramUpdate
	if err := t.call(client, req, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}
