// Package storage persists device backups in S3-compatible object
// storage. One backup is one JSON object under
// backups/<device_key>/<timestamp>.json.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/abcfood/fingerprint-bridge/internal/logger"
	"github.com/abcfood/fingerprint-bridge/pkg/device"
)

const keyPrefix = "backups/"

// TimestampLayout names backup objects; lexicographic order equals
// chronological order.
const TimestampLayout = "2006-01-02_15-04-05"

// Client is the slice of the S3 API the store uses. *s3.Client satisfies
// it; tests inject a fake.
type Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// NewClient builds an S3 client for the configured endpoint with static
// credentials. Path-style addressing keeps S3-compatible providers happy.
func NewClient(ctx context.Context, endpoint, region, accessKeyID, secretAccessKey string) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKeyID,
			secretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = &endpoint
		}
		o.UsePathStyle = true
	})
	return client, nil
}

// BackupInfo describes one stored backup object.
type BackupInfo struct {
	Key          string    `json:"key"`
	DeviceKey    string    `json:"device_key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// BackupStore reads and writes backup records in one bucket.
type BackupStore struct {
	client Client
	bucket string
}

// NewBackupStore wraps a client and bucket.
func NewBackupStore(client Client, bucket string) *BackupStore {
	return &BackupStore{client: client, bucket: bucket}
}

// objectKey builds the storage key for a device backup at ts.
func objectKey(deviceKey string, ts time.Time) string {
	return keyPrefix + deviceKey + "/" + ts.UTC().Format(TimestampLayout) + ".json"
}

// deviceKeyOf extracts the device key from a backup object key, or "".
func deviceKeyOf(key string) string {
	rest, ok := strings.CutPrefix(key, keyPrefix)
	if !ok {
		return ""
	}
	dev, _, ok := strings.Cut(rest, "/")
	if !ok {
		return ""
	}
	return dev
}

// Upload serializes the record and stores it. Returns the object key.
func (b *BackupStore) Upload(ctx context.Context, rec *device.BackupRecord) (string, error) {
	body, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("serialize backup for %s: %w", rec.DeviceKey, err)
	}

	ts, err := time.Parse(TimestampLayout, rec.Timestamp)
	if err != nil {
		ts = time.Now()
	}
	key := objectKey(rec.DeviceKey, ts)

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(string(body)),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("upload backup %s: %w", key, err)
	}
	logger.Info("Backup uploaded", "key", key, "bytes", len(body))
	return key, nil
}

// Download fetches and parses one backup object.
func (b *BackupStore) Download(ctx context.Context, key string) (*device.BackupRecord, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("download backup %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read backup %s: %w", key, err)
	}
	var rec device.BackupRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse backup %s: %w", key, err)
	}
	return &rec, nil
}

// List enumerates stored backups, newest first. An empty deviceKey lists
// the whole fleet.
func (b *BackupStore) List(ctx context.Context, deviceKey string) ([]BackupInfo, error) {
	prefix := keyPrefix
	if deviceKey != "" {
		prefix += deviceKey + "/"
	}

	var infos []BackupInfo
	var token *string
	for {
		out, err := b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(b.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list backups: %w", err)
		}
		for _, obj := range out.Contents {
			info := BackupInfo{Key: aws.ToString(obj.Key)}
			info.DeviceKey = deviceKeyOf(info.Key)
			if obj.Size != nil {
				info.Size = *obj.Size
			}
			if obj.LastModified != nil {
				info.LastModified = *obj.LastModified
			}
			infos = append(infos, info)
		}
		if out.NextContinuationToken == nil {
			break
		}
		token = out.NextContinuationToken
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].LastModified.After(infos[j].LastModified)
	})
	return infos, nil
}

// Delete removes one backup object.
func (b *BackupStore) Delete(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete backup %s: %w", key, err)
	}
	return nil
}

// CleanupOldBackups deletes backups older than retentionDays and returns
// the number removed. A delete failure stops the sweep; already-deleted
// objects stay deleted.
func (b *BackupStore) CleanupOldBackups(ctx context.Context, retentionDays int) (int, error) {
	infos, err := b.List(ctx, "")
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	deleted := 0
	for _, info := range infos {
		if !info.LastModified.Before(cutoff) {
			continue
		}
		if err := b.Delete(ctx, info.Key); err != nil {
			return deleted, err
		}
		logger.Debug("Old backup deleted", "key", info.Key, "age_days",
			int(time.Since(info.LastModified).Hours()/24))
		deleted++
	}
	return deleted, nil
}
