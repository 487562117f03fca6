// Package notifier delivers underwriting digests to a Telegram chat and
// answers the chat's commands.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultAPIBase = "https://api.telegram.org"
	// maxMessageLen is the Bot API limit on a single message text.
	maxMessageLen = 4096
)

// Sender delivers a message, retrying transient failures.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Telegram posts to one chat through the Bot API. Digests longer than a
// single message are split on line boundaries.
type Telegram struct {
	Token     string
	ChatID    string
	APIBase   string
	Client    *http.Client
	RetryBase time.Duration
}

// NewTelegram builds a client for chatID, routed through proxyURL when set.
func NewTelegram(token, chatID, proxyURL string) *Telegram {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &Telegram{
		Token:     token,
		ChatID:    chatID,
		APIBase:   defaultAPIBase,
		Client:    &http.Client{Timeout: 30 * time.Second, Transport: transport},
		RetryBase: time.Second,
	}
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type apiReply struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *Telegram) methodURL(method string) string {
	base := t.APIBase
	if base == "" {
		base = defaultAPIBase
	}
	return strings.TrimRight(base, "/") + "/bot" + t.Token + "/" + method
}

// Send delivers text as one or more HTML messages.
func (t *Telegram) Send(ctx context.Context, text string) error {
	for i, part := range splitMessage(text, maxMessageLen) {
		if err := t.sendOne(ctx, part); err != nil {
			return fmt.Errorf("send part %d: %w", i+1, err)
		}
	}
	return nil
}

func (t *Telegram) sendOne(ctx context.Context, text string) error {
	body, err := json.Marshal(sendMessageRequest{ChatID: t.ChatID, Text: text, ParseMode: "HTML"})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.methodURL("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bot api status %d: %s", resp.StatusCode, string(raw))
	}
	var reply apiReply
	if err := json.Unmarshal(raw, &reply); err == nil && !reply.OK {
		return fmt.Errorf("bot api rejected message: %s", reply.Description)
	}
	return nil
}

// SendWithRetry retries Send with doubling delays starting at RetryBase.
func (t *Telegram) SendWithRetry(ctx context.Context, text string, maxRetries int) error {
	delay := t.RetryBase
	if delay <= 0 {
		delay = time.Second
	}
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err = t.Send(ctx, text); err == nil {
			return nil
		}
		if attempt == maxRetries {
			break
		}
		log.Printf("[WARN] digest delivery failed (attempt %d/%d): %v, retrying in %v", attempt+1, maxRetries+1, err, delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("all %d retries exhausted: %w", maxRetries+1, err)
}

// splitMessage cuts text into chunks of at most limit bytes, preferring line
// breaks. A single overlong line is cut hard.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var parts []string
	for len(text) > limit {
		cut := strings.LastIndexByte(text[:limit], '\n')
		if cut <= 0 {
			cut = limit
		}
		parts = append(parts, text[:cut])
		text = strings.TrimPrefix(text[cut:], "\n")
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}
