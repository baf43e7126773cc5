package integrations

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TelegramClient represents telegram client.
type TelegramClient struct {
	token  string
	client *http.Client
}

// InlineKeyboardButton represents inline keyboard button.
type InlineKeyboardButton struct {
	Text         string `json:"text"`
	URL          string `json:"url,omitempty"`
	CallbackData string `json:"callback_data,omitempty"`
	Pay          bool   `json:"pay,omitempty"`
}

// ReplyMarkup represents reply markup.
type ReplyMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// LabeledPrice represents labeled price.
type LabeledPrice struct {
	Label  string `json:"label"`
	Amount int64  `json:"amount"`
}

// NewTelegramClient creates telegram client.
func NewTelegramClient(token string) *TelegramClient {
	return &TelegramClient{
		token:  token,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// SendMessage handles send message.
func (t *TelegramClient) SendMessage(chatID int64, text string) error {
	return t.SendMessageWithMarkup(chatID, text, nil)
}

// SendMessageWithMarkup handles send message with markup.
func (t *TelegramClient) SendMessageWithMarkup(chatID int64, text string, markup *ReplyMarkup) error {
	payload := map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	}
	if markup != nil {
		payload["reply_markup"] = markup
	}
	return t.post("sendMessage", payload)
}

// SendInvoice sends an in-chat invoice. For Telegram Stars the currency
// is XTR and provider_token stays empty.
func (t *TelegramClient) SendInvoice(chatID int64, title, description, payload, currency string, prices []LabeledPrice) error {
	body := map[string]interface{}{
		"chat_id":     chatID,
		"title":       title,
		"description": description,
		"payload":     payload,
		"currency":    currency,
		"prices":      prices,
	}
	return t.post("sendInvoice", body)
}

// AnswerPreCheckoutQuery handles answer pre checkout query.
func (t *TelegramClient) AnswerPreCheckoutQuery(queryID string, ok bool, errorMessage string) error {
	queryID = strings.TrimSpace(queryID)
	if queryID == "" {
		return nil
	}
	payload := map[string]interface{}{
		"pre_checkout_query_id": queryID,
		"ok":                    ok,
	}
	if !ok && strings.TrimSpace(errorMessage) != "" {
		payload["error_message"] = strings.TrimSpace(errorMessage)
	}
	return t.post("answerPreCheckoutQuery", payload)
}

// post handles internal post behavior.
func (t *TelegramClient) post(method string, payload map[string]interface{}) error {
	body, _ := json.Marshal(payload)
	url := fmt.Sprintf("https://api.telegram.org/bot%s/%s", t.token, method)
	resp, err := t.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("telegram %s status %d", method, resp.StatusCode)
	}
	return nil
}

// OperatorNotifier fans an alert out to every configured operator chat.
type OperatorNotifier struct {
	tg      *TelegramClient
	chatIDs []int64
}

// NewOperatorNotifier creates operator notifier.
func NewOperatorNotifier(tg *TelegramClient, chatIDs []int64) *OperatorNotifier {
	return &OperatorNotifier{tg: tg, chatIDs: chatIDs}
}

// Notify handles internal notify behavior.
func (n *OperatorNotifier) Notify(text string) {
	if n == nil || n.tg == nil {
		return
	}
	for _, chatID := range n.chatIDs {
		_ = n.tg.SendMessage(chatID, text)
	}
}
