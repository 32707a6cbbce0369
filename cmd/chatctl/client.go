package main

import (
	"fmt"
	"io"

	"github.com/go-resty/resty/v2"
)

// runAction posts one non-streaming action to /api/chat and prints the
// JSON envelope as-is.
func runAction(apiURL string, payload map[string]interface{}, out io.Writer) error {
	resp, err := resty.New().R().
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(apiURL + "/api/chat")
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out, string(resp.Body()))
	if resp.IsError() {
		return fmt.Errorf("http %d", resp.StatusCode())
	}
	return nil
}

// runSend streams one chat turn. The conversation id arrives in the
// x-chat-id header before the body; it goes to stderr so stdout stays
// pure stream.
func runSend(apiURL, userID, chatID, message string, useSearch bool, out, info io.Writer) error {
	payload := map[string]interface{}{"message": message}
	if userID != "" {
		payload["userId"] = userID
	}
	if chatID != "" {
		payload["chatId"] = chatID
	}
	if useSearch {
		payload["useSearch"] = true
	}

	resp, err := resty.New().R().
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		SetDoNotParseResponse(true).
		Post(apiURL + "/api/chat")
	if err != nil {
		return err
	}
	body := resp.RawBody()
	defer func() { _ = body.Close() }()

	if resp.StatusCode() != 200 {
		data, _ := io.ReadAll(body)
		return fmt.Errorf("http %d: %s", resp.StatusCode(), string(data))
	}
	if id := resp.Header().Get("x-chat-id"); id != "" {
		_, _ = fmt.Fprintf(info, "chat id: %s\n", id)
	}
	_, err = io.Copy(out, body)
	return err
}
