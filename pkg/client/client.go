/*
 *     Copyright 2024 The DLHub Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package client talks to the DLHub catalog service: it stages a servable's
// files, submits validated documents, and queries published servables. The
// metadata core never calls the network, this package is the only place
// HTTP happens.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	retry "github.com/avast/retry-go/v4"
	humanize "github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/MaxTuecke/dlhub-sdk/pkg/models"
	"github.com/MaxTuecke/dlhub-sdk/pkg/schemas"
)

// DefaultServiceAddress is the production catalog endpoint.
const DefaultServiceAddress = "https://api.dlhub.org/api/v1"

var retryOpts = []retry.Option{
	retry.Attempts(3),
	retry.DelayType(retry.BackOffDelay),
	retry.Delay(1 * time.Second),
	retry.MaxDelay(5 * time.Second),
}

// Credentials is the narrow view of the login collaborator the client
// needs. The client never drives the OAuth exchange itself.
type Credentials interface {
	IsLoggedIn() bool
	BearerToken(ctx context.Context) (string, error)
}

// ServableInfo is one row of the catalog listing.
type ServableInfo struct {
	UUID  string `json:"uuid"`
	Name  string `json:"name"`
	Owner string `json:"owner,omitempty"`
}

// TaskInfo is the status of an asynchronous publication task.
type TaskInfo struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// Client is the publication client for the catalog service.
type Client struct {
	serviceURL  string
	httpClient  *http.Client
	credentials Credentials
	stager      Stager
}

// Option configures a Client.
type Option func(*Client)

// WithServiceURL points the client at a non-default service address.
func WithServiceURL(url string) Option {
	return func(c *Client) { c.serviceURL = url }
}

// WithHTTPClient overrides the transport, e.g. to set a timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithCredentials attaches the login collaborator. Without it, only
// anonymous read operations are available.
func WithCredentials(creds Credentials) Option {
	return func(c *Client) { c.credentials = creds }
}

// WithStager attaches the staging backend used by PublishServable.
func WithStager(stager Stager) Option {
	return func(c *Client) { c.stager = stager }
}

// New creates a client for the production service.
func New(opts ...Option) *Client {
	c := &Client{
		serviceURL: DefaultServiceAddress,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Servables lists every servable registered with the service.
func (c *Client) Servables(ctx context.Context) ([]ServableInfo, error) {
	raw, err := c.do(ctx, http.MethodGet, "/servables", nil)
	if err != nil {
		return nil, err
	}

	var servables []ServableInfo
	if err := json.Unmarshal(raw, &servables); err != nil {
		return nil, fmt.Errorf("failed to parse servable listing: %w", err)
	}

	return servables, nil
}

// GetIDByName resolves a servable name to its identifier.
func (c *Client) GetIDByName(ctx context.Context, name string) (string, error) {
	servables, err := c.Servables(ctx)
	if err != nil {
		return "", err
	}

	for _, s := range servables {
		if s.Name == name {
			return s.UUID, nil
		}
	}

	return "", fmt.Errorf("no servable named %q is registered", name)
}

// DescribeServable returns the catalog entry for an identifier.
func (c *Client) DescribeServable(ctx context.Context, identifier string) (*ServableInfo, error) {
	servables, err := c.Servables(ctx)
	if err != nil {
		return nil, err
	}

	for i, s := range servables {
		if s.UUID == identifier {
			return &servables[i], nil
		}
	}

	return nil, fmt.Errorf("no servable with identifier %q is registered", identifier)
}

// PublishServable submits a servable to the catalog. A model without an
// identifier is assigned one; re-publishing a model that already carries an
// identifier registers a new version of the same servable. Returns the task
// identifier to poll for the publication outcome.
func (c *Client) PublishServable(ctx context.Context, model models.Model) (string, error) {
	if c.stager == nil {
		return "", fmt.Errorf("no stager configured, publication requires one")
	}

	if model.UUID() == "" {
		if _, err := model.AssignUUID(); err != nil {
			return "", err
		}
	}

	doc := model.ToDocument(true)

	if err := schemas.Validate(doc, "servable"); err != nil {
		return "", err
	}

	staged, err := c.stager.Stage(ctx, model.UUID(), model.Files())
	if err != nil {
		return "", fmt.Errorf("failed to stage servable files: %w", err)
	}

	logrus.Infof("publish: staged %s (%s) at %s",
		model.UUID(), humanize.Bytes(uint64(staged.Size)), staged.URI)

	doc["dlhub"].(models.Document)["transfer_method"] = models.Document{
		"S3":     staged.URI,
		"digest": staged.Digest.String(),
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}

	raw, err := c.do(ctx, http.MethodPost, "/publish", body)
	if err != nil {
		return "", err
	}

	var task TaskInfo
	if err := json.Unmarshal(raw, &task); err != nil {
		return "", fmt.Errorf("failed to parse publish response: %w", err)
	}

	logrus.Infof("publish: submitted %s as task %s", model.UUID(), task.TaskID)
	return task.TaskID, nil
}

// TaskStatus polls the outcome of a publication task.
func (c *Client) TaskStatus(ctx context.Context, taskID string) (*TaskInfo, error) {
	raw, err := c.do(ctx, http.MethodGet, "/publish/"+taskID+"/status", nil)
	if err != nil {
		return nil, err
	}

	task := &TaskInfo{}
	if err := json.Unmarshal(raw, task); err != nil {
		return nil, fmt.Errorf("failed to parse task status: %w", err)
	}

	return task, nil
}

// do performs one service call with bounded retries. Retries live here, at
// the transport boundary, never in the metadata core.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	return retry.DoWithData(func() ([]byte, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.serviceURL+path, reader)
		if err != nil {
			return nil, retry.Unrecoverable(err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		if c.credentials != nil && c.credentials.IsLoggedIn() {
			token, err := c.credentials.BearerToken(ctx)
			if err != nil {
				return nil, retry.Unrecoverable(err)
			}
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("service returned status %s", resp.Status)
		}
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, retry.Unrecoverable(fmt.Errorf("service rejected %s %s with status %s: %s",
				method, path, resp.Status, bytes.TrimSpace(raw)))
		}

		return raw, nil
	}, append(retryOpts, retry.Context(ctx))...)
}
