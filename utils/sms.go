package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// SMSClient posts text messages to an HTTP SMS gateway.
type SMSClient struct {
	http *resty.Client
}

type smsRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

func NewSMSClient(baseURL, apiKey string) *SMSClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}
	return &SMSClient{http: client}
}

func (s *SMSClient) Send(ctx context.Context, to, message string) error {
	if to == "" {
		return fmt.Errorf("recipient number is empty")
	}

	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(smsRequest{To: to, Message: message}).
		Post("/messages")
	if err != nil {
		return fmt.Errorf("sms gateway request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("sms gateway returned %d", resp.StatusCode())
	}
	return nil
}
