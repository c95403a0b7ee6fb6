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
	"fmt"
	"os"
	"path"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	godigest "github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"

	"github.com/MaxTuecke/dlhub-sdk/internal/pb"
	"github.com/MaxTuecke/dlhub-sdk/pkg/archiver"
)

const (
	// DefaultBucket is the staging bucket the service ingests from.
	DefaultBucket = "dlhub-anl"

	// stagingPrefix namespaces servable archives inside the bucket.
	stagingPrefix = "servables"

	archiveName = "servable.zip"

	uploadPartSize = 10 * 1024 * 1024
)

// StagedArtifact describes a servable archive placed in the staging area.
type StagedArtifact struct {
	// URI locates the archive, e.g. s3://bucket/servables/<uuid>/servable.zip.
	URI string

	// Digest is the sha256 of the archive, recorded in the document so the
	// ingest side can verify the transfer.
	Digest godigest.Digest

	// Size is the archive size in bytes.
	Size int64
}

// Stager places a servable's files where the ingest service can fetch them.
type Stager interface {
	// Stage archives the given logical-name to path mapping and uploads it
	// under the servable identifier.
	Stage(ctx context.Context, identifier string, files map[string]string) (*StagedArtifact, error)
}

// S3Stager stages servable archives in an S3 bucket.
type S3Stager struct {
	bucket   string
	uploader *manager.Uploader
}

// S3Option configures an S3Stager.
type S3Option func(*S3Stager)

// WithBucket stages into a non-default bucket.
func WithBucket(bucket string) S3Option {
	return func(s *S3Stager) { s.bucket = bucket }
}

// NewS3Stager creates a stager using the ambient AWS configuration.
func NewS3Stager(ctx context.Context, opts ...S3Option) (*S3Stager, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	stager := &S3Stager{
		bucket: DefaultBucket,
		uploader: manager.NewUploader(s3.NewFromConfig(cfg), func(u *manager.Uploader) {
			u.PartSize = uploadPartSize
		}),
	}
	for _, opt := range opts {
		opt(stager)
	}

	return stager, nil
}

// Stage zips the files into a temporary archive, then digests and uploads it
// concurrently. The digest and the upload each read their own handle on the
// finished archive, so neither blocks the other.
func (s *S3Stager) Stage(ctx context.Context, identifier string, files map[string]string) (*StagedArtifact, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("servable %s has no files to stage", identifier)
	}

	tmp, err := os.CreateTemp("", "dlhub-servable-*.zip")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging archive: %w", err)
	}
	tmp.Close()
	defer os.Remove(tmp.Name())

	if err := archiver.ZipFile(files, tmp.Name()); err != nil {
		return nil, err
	}

	info, err := os.Stat(tmp.Name())
	if err != nil {
		return nil, err
	}

	key := path.Join(stagingPrefix, identifier, archiveName)

	var dgst godigest.Digest
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		f, err := os.Open(tmp.Name())
		if err != nil {
			return err
		}
		defer f.Close()

		dgst, err = godigest.FromReader(f)
		return err
	})
	g.Go(func() error {
		f, err := os.Open(tmp.Name())
		if err != nil {
			return err
		}
		defer f.Close()

		progress := pb.NewProgressBar()
		reader := progress.Add("staging", identifier, info.Size(), f)

		_, err = s.uploader.Upload(gctx, &s3.PutObjectInput{
			Bucket: &s.bucket,
			Key:    &key,
			Body:   reader,
			ACL:    s3types.ObjectCannedACLPublicRead,
		})
		progress.Complete(identifier, fmt.Sprintf("staged %s", identifier))
		progress.Stop()
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to stage archive for %s: %w", identifier, err)
	}

	return &StagedArtifact{
		URI:    fmt.Sprintf("s3://%s/%s", s.bucket, key),
		Digest: dgst,
		Size:   info.Size(),
	}, nil
}
