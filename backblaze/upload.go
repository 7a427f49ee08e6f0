// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package backblaze

import (
	"context"
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kothar/go-backblaze"
	"github.com/rs/zerolog/log"

	"github.com/penny-vault/pvpanel/data"
)

var ErrBucketNotFound = errors.New("bucket not found")

// Uploader copies finished output files into a B2 bucket
type Uploader struct {
	KeyID          string
	ApplicationKey string
	BucketName     string
	Prefix         string

	mu        sync.Mutex
	bucket    *backblaze.Bucket
	authorize func() (*backblaze.Bucket, error)
}

func NewUploader(keyID, applicationKey, bucketName, prefix string) *Uploader {
	return &Uploader{
		KeyID:          keyID,
		ApplicationKey: applicationKey,
		BucketName:     bucketName,
		Prefix:         prefix,
	}
}

// RemoteName is the object name fn is stored under: the prefix, the name of
// the directory holding fn and the file name
func (uploader *Uploader) RemoteName(fn string) string {
	dirname := filepath.Base(filepath.Dir(fn))
	return strings.TrimPrefix(path.Join(uploader.Prefix, dirname, filepath.Base(fn)), "/")
}

// connect authorizes with B2 once and returns the shared bucket handle; it
// is safe for concurrent use
func (uploader *Uploader) connect() (*backblaze.Bucket, error) {
	uploader.mu.Lock()
	defer uploader.mu.Unlock()

	if uploader.bucket != nil {
		return uploader.bucket, nil
	}

	authorize := uploader.authorize
	if authorize == nil {
		authorize = uploader.openBucket
	}

	bucket, err := authorize()
	if err != nil {
		return nil, err
	}

	uploader.bucket = bucket
	return bucket, nil
}

func (uploader *Uploader) openBucket() (*backblaze.Bucket, error) {
	b2, err := backblaze.NewB2(backblaze.Credentials{
		KeyID:          uploader.KeyID,
		ApplicationKey: uploader.ApplicationKey,
	})
	if err != nil {
		log.Error().Err(err).Str("BucketName", uploader.BucketName).Msg("authorize backblaze failed")
		return nil, err
	}

	bucket, err := b2.Bucket(uploader.BucketName)
	if err != nil {
		log.Error().Err(err).Str("BucketName", uploader.BucketName).Msg("lookup bucket failed")
		return nil, err
	}
	if bucket == nil {
		log.Error().Str("BucketName", uploader.BucketName).Msg("bucket does not exist")
		return nil, ErrBucketNotFound
	}

	return bucket, nil
}

// Upload copies a single file to the bucket
func (uploader *Uploader) Upload(fn string) error {
	bucket, err := uploader.connect()
	if err != nil {
		return err
	}

	reader, err := os.Open(fn)
	if err != nil {
		return err
	}
	defer reader.Close()

	outName := uploader.RemoteName(fn)
	metadata := make(map[string]string)

	file, err := bucket.UploadFile(outName, metadata, reader)
	if err != nil {
		log.Error().Err(err).Str("FileName", outName).Str("BucketName", uploader.BucketName).Msg("save file to backblaze failed")
		return err
	}

	log.Info().Str("FileName", file.Name).Int64("Size", file.ContentLength).Str("ID", file.ID).Msg("uploaded file to backblaze")
	return nil
}

// PanelWriter writes a daily panel to local files and returns their paths
type PanelWriter interface {
	SavePaths(ctx context.Context, panel *data.DailyPanel) ([]string, error)
}

// Sink writes panels locally and then uploads every written file
type Sink struct {
	Writer   PanelWriter
	Uploader *Uploader
	upload   func(string) error
}

func NewSink(writer PanelWriter, uploader *Uploader) *Sink {
	return &Sink{
		Writer:   writer,
		Uploader: uploader,
		upload:   uploader.Upload,
	}
}

func (sink *Sink) Save(ctx context.Context, panel *data.DailyPanel) error {
	paths, err := sink.Writer.SavePaths(ctx, panel)
	if err != nil {
		return err
	}

	for _, fn := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := sink.upload(fn); err != nil {
			return err
		}
	}

	return nil
}
