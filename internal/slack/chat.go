package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

type postMessageRequest struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

// PostMessage sends text to channel with chat.postMessage.
func (c *Client) PostMessage(ctx context.Context, channel, text string) error {
	body, err := json.Marshal(postMessageRequest{Channel: channel, Text: text})
	if err != nil {
		return err
	}

	err = c.call(ctx, http.MethodPost, "chat.postMessage", nil,
		bytes.NewReader(body), "application/json; charset=utf-8", nil)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPostFailed, channel, err)
	}
	return nil
}
