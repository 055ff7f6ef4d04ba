// Package directory talks to the agent-directory service. Role and
// account management live there; the engine only asks questions.
package directory

import (
	"fmt"
	"time"

	"rutero-field/internal/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// roleCheckResponse directory API response envelope
type roleCheckResponse struct {
	Status int    `json:"status"`
	Msg    string `json:"msg"`
	Data   struct {
		Allowed bool `json:"allowed"`
	} `json:"data"`
}

// Client agent-directory API client
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewClient creates a directory client from config.
func NewClient(cfg *config.DirectoryConfig, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: client,
		logger:     logger,
	}
}

// RoleCheck asks the directory whether the agent holds any of the given
// roles.
func (c *Client) RoleCheck(agentID string, roles []string) (bool, error) {
	request := map[string]interface{}{
		"agent_id": agentID,
		"roles":    roles,
	}

	var response roleCheckResponse
	resp, err := c.httpClient.R().
		SetBody(request).
		SetResult(&response).
		Post("/agents/role-check")

	if err != nil {
		c.logger.Error("Directory API call failed",
			zap.String("agent_id", agentID),
			zap.Error(err))
		return false, fmt.Errorf("failed to call directory API: %w", err)
	}

	if resp.StatusCode() != 200 || response.Status != 0 {
		c.logger.Error("Directory API returned error",
			zap.Int("status_code", resp.StatusCode()),
			zap.Int("status", response.Status),
			zap.String("msg", response.Msg))
		return false, fmt.Errorf("directory API error: %s", response.Msg)
	}

	return response.Data.Allowed, nil
}
