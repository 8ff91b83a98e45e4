// dare-engine/services/escrow_client.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"dare-engine/models"
	"dare-engine/utils"
)

// EscrowClient delivers settlement instructions to the external escrow
// ledger. The engine only decides outcomes — this collaborator is what
// actually moves funds.
type EscrowClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewEscrowClient(baseURL, token string) *EscrowClient {
	return &EscrowClient{
		BaseURL: baseURL,
		Token:   token,
		Client:  utils.HTTPClient,
	}
}

// DispatchInstruction POSTs one instruction to the escrow service.
func (c *EscrowClient) DispatchInstruction(ctx context.Context, inst *models.SettlementInstruction) error {
	url := fmt.Sprintf("%s/api/v1/instructions", c.BaseURL)

	payload, _ := json.Marshal(map[string]interface{}{
		"instruction_id": inst.ID,
		"dare_id":        inst.DareID,
		"type":           inst.Type,
		"recipient_id":   inst.RecipientID,
		"amount":         inst.Amount,
		"currency":       inst.Currency,
		"memo":           inst.Memo,
	})

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Printf("EscrowService /instructions returned %d: %s", resp.StatusCode, string(body))
		return fmt.Errorf("escrow dispatch failed: %d", resp.StatusCode)
	}
	return nil
}

// NotifierClient forwards terminal-state events to the messaging channel.
// Delivery mechanics (retries, fan-out) are the channel's problem.
type NotifierClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewNotifierClient(baseURL, token string) *NotifierClient {
	return &NotifierClient{
		BaseURL: baseURL,
		Token:   token,
		Client:  utils.HTTPClient,
	}
}

func (c *NotifierClient) DispatchEvent(ctx context.Context, event *models.NotificationEvent) error {
	url := fmt.Sprintf("%s/api/v1/events", c.BaseURL)

	payload, _ := json.Marshal(map[string]interface{}{
		"event_id": event.ID,
		"dare_id":  event.DareID,
		"kind":     event.Kind,
		"detail":   event.Detail,
	})

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Printf("NotifyService /events returned %d: %s", resp.StatusCode, string(body))
		return fmt.Errorf("notification dispatch failed: %d", resp.StatusCode)
	}
	return nil
}
