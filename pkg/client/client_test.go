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

package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	godigest "github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"

	"github.com/MaxTuecke/dlhub-sdk/pkg/models"
	"github.com/MaxTuecke/dlhub-sdk/pkg/models/servables"
	"github.com/MaxTuecke/dlhub-sdk/pkg/onnx"
)

// stubStager records what it was asked to stage and returns a fixed
// artifact.
type stubStager struct {
	identifier string
	files      map[string]string
	err        error
}

func (s *stubStager) Stage(ctx context.Context, identifier string, files map[string]string) (*StagedArtifact, error) {
	s.identifier = identifier
	s.files = files
	if s.err != nil {
		return nil, s.err
	}

	return &StagedArtifact{
		URI:    "s3://dlhub-anl/servables/" + identifier + "/servable.zip",
		Digest: godigest.Digest("sha256:deadbeef"),
		Size:   128,
	}, nil
}

type stubCredentials struct {
	token string
}

func (s stubCredentials) IsLoggedIn() bool { return s.token != "" }

func (s stubCredentials) BearerToken(ctx context.Context) (string, error) {
	return s.token, nil
}

type fixedIntrospector struct{}

func (fixedIntrospector) Introspect(path string) (*onnx.Topology, error) {
	return &onnx.Topology{
		OpsetVersion: 13,
		Inputs:       []onnx.TensorSpec{{Name: "input", Shape: []int64{onnx.DynamicDim, 784}}},
		Outputs:      []onnx.TensorSpec{{Name: "output", Shape: []int64{onnx.DynamicDim, 10}}},
		Layers:       []onnx.LayerInfo{{Name: "dense", OpType: "Gemm", Params: 7850}},
		TotalParams:  7850,
	}, nil
}

func testModel(t *testing.T) *servables.ONNXModel {
	t.Helper()

	m, err := servables.CreateModel("/tmp/model.onnx", nil,
		servables.WithIntrospector(fixedIntrospector{}))
	assert.NoError(t, err)
	m.SetTitle("MNIST classifier").SetName("mnist").AddCreator("Doe, Jane")
	return m
}

func TestPublishServable(t *testing.T) {
	var published models.Document
	var authHeader string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/publish", r.URL.Path)
		authHeader = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&published))
		assert.NoError(t, json.NewEncoder(w).Encode(TaskInfo{TaskID: "task-1", Status: "pending"}))
	}))
	defer srv.Close()

	stager := &stubStager{}
	c := New(
		WithServiceURL(srv.URL),
		WithCredentials(stubCredentials{token: "tok"}),
		WithStager(stager),
	)

	model := testModel(t)
	taskID, err := c.PublishServable(context.Background(), model)
	assert.NoError(t, err)
	assert.Equal(t, "task-1", taskID)
	assert.Equal(t, "Bearer tok", authHeader)

	// Publication assigns the identifier and stages under it.
	assert.NotEmpty(t, model.UUID())
	assert.Equal(t, model.UUID(), stager.identifier)
	assert.Equal(t, map[string]string{"model": "/tmp/model.onnx"}, stager.files)

	dlhub := published["dlhub"].(map[string]any)
	assert.Equal(t, model.UUID(), dlhub["id"])
	assert.Equal(t, map[string]any{
		"S3":     "s3://dlhub-anl/servables/" + model.UUID() + "/servable.zip",
		"digest": "sha256:deadbeef",
	}, dlhub["transfer_method"])

	// Staged paths in the document carry only the basename.
	files := dlhub["files"].(map[string]any)
	assert.Equal(t, "model.onnx", files["model"])
}

func TestPublishServableKeepsIdentifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewEncoder(w).Encode(TaskInfo{TaskID: "task-2"}))
	}))
	defer srv.Close()

	model := testModel(t)
	id, err := model.AssignUUID()
	assert.NoError(t, err)

	c := New(WithServiceURL(srv.URL), WithStager(&stubStager{}))
	_, err = c.PublishServable(context.Background(), model)
	assert.NoError(t, err)
	assert.Equal(t, id, model.UUID())
}

func TestPublishServableInvalidDocument(t *testing.T) {
	model, err := servables.CreateModel("/tmp/model.onnx", nil,
		servables.WithIntrospector(fixedIntrospector{}))
	assert.NoError(t, err)
	// No title or name: the document must be rejected before staging.

	stager := &stubStager{}
	c := New(WithServiceURL("http://unreachable.invalid"), WithStager(stager))

	_, err = c.PublishServable(context.Background(), model)
	assert.Error(t, err)
	assert.Empty(t, stager.identifier)
}

func TestPublishServableNoStager(t *testing.T) {
	c := New()
	_, err := c.PublishServable(context.Background(), testModel(t))
	assert.Error(t, err)
}

func TestPublishServableRejected(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "name already taken", http.StatusConflict)
	}))
	defer srv.Close()

	c := New(WithServiceURL(srv.URL), WithStager(&stubStager{}))
	_, err := c.PublishServable(context.Background(), testModel(t))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "name already taken")

	// Client errors are not retried.
	assert.Equal(t, 1, calls)
}

func TestServables(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/servables", r.URL.Path)
		assert.NoError(t, json.NewEncoder(w).Encode([]ServableInfo{
			{UUID: "6f21d2b4-9a31-4c50-a8a4-111111111111", Name: "mnist", Owner: "jdoe"},
			{UUID: "6f21d2b4-9a31-4c50-a8a4-222222222222", Name: "cifar", Owner: "jdoe"},
		}))
	}))
	defer srv.Close()

	c := New(WithServiceURL(srv.URL))

	servableList, err := c.Servables(context.Background())
	assert.NoError(t, err)
	assert.Len(t, servableList, 2)

	id, err := c.GetIDByName(context.Background(), "cifar")
	assert.NoError(t, err)
	assert.Equal(t, "6f21d2b4-9a31-4c50-a8a4-222222222222", id)

	_, err = c.GetIDByName(context.Background(), "missing")
	assert.Error(t, err)

	info, err := c.DescribeServable(context.Background(), "6f21d2b4-9a31-4c50-a8a4-111111111111")
	assert.NoError(t, err)
	assert.Equal(t, "mnist", info.Name)

	_, err = c.DescribeServable(context.Background(), "unknown")
	assert.Error(t, err)
}

func TestTaskStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/publish/task-1/status", r.URL.Path)
		assert.NoError(t, json.NewEncoder(w).Encode(TaskInfo{TaskID: "task-1", Status: "completed"}))
	}))
	defer srv.Close()

	c := New(WithServiceURL(srv.URL))

	task, err := c.TaskStatus(context.Background(), "task-1")
	assert.NoError(t, err)
	assert.Equal(t, "completed", task.Status)
}

func TestServerErrorRetried(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
			return
		}
		assert.NoError(t, json.NewEncoder(w).Encode([]ServableInfo{}))
	}))
	defer srv.Close()

	c := New(WithServiceURL(srv.URL))

	_, err := c.Servables(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}
