package storage

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abcfood/fingerprint-bridge/pkg/device"
)

type fakeObject struct {
	data     []byte
	modified time.Time
}

// fakeS3 is an in-memory bucket implementing the Client slice the store
// uses, with a configurable page size to exercise list pagination.
type fakeS3 struct {
	objects  map[string]fakeObject
	pageSize int
	putErr   error
	delErr   error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string]fakeObject), pageSize: 1000}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = fakeObject{data: data, modified: time.Now()}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(obj.data)))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.delErr != nil {
		return nil, f.delErr
	}
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if in.ContinuationToken != nil {
		for i, k := range keys {
			if k > *in.ContinuationToken {
				start = i
				break
			}
		}
	}

	out := &s3.ListObjectsV2Output{}
	end := start + f.pageSize
	if end > len(keys) {
		end = len(keys)
	}
	for _, k := range keys[start:end] {
		obj := f.objects[k]
		size := int64(len(obj.data))
		mod := obj.modified
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         &size,
			LastModified: &mod,
		})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(keys[end-1])
	}
	return out, nil
}

func sampleRecord(key string) *device.BackupRecord {
	return &device.BackupRecord{
		DeviceKey:  key,
		DeviceName: strings.ToUpper(key),
		Timestamp:  time.Now().UTC().Format(TimestampLayout),
		Users: []device.User{
			{UID: 1, UserID: "E1", Name: "Aung Aung", Privilege: device.PrivilegeUser},
		},
		Fingerprints: []device.Fingerprint{
			{UID: 1, FingerIndex: 6, Template: []byte{0x01, 0x02, 0xff}, Valid: 1},
		},
		UserCount:        1,
		FingerprintCount: 1,
	}
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	fake := newFakeS3()
	store := NewBackupStore(fake, "bucket")
	rec := sampleRecord("tmi")

	key, err := store.Upload(context.Background(), rec)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "backups/tmi/"))
	assert.True(t, strings.HasSuffix(key, ".json"))

	got, err := store.Download(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, rec, got, "round-trip must preserve the record, template bytes included")
}

func TestDownloadMissingKey(t *testing.T) {
	store := NewBackupStore(newFakeS3(), "bucket")

	_, err := store.Download(context.Background(), "backups/tmi/nope.json")
	require.Error(t, err)
}

func TestListFiltersByDevice(t *testing.T) {
	fake := newFakeS3()
	store := NewBackupStore(fake, "bucket")

	ctx := context.Background()
	_, err := store.Upload(ctx, sampleRecord("tmi"))
	require.NoError(t, err)
	_, err = store.Upload(ctx, sampleRecord("mmk"))
	require.NoError(t, err)

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	tmi, err := store.List(ctx, "tmi")
	require.NoError(t, err)
	require.Len(t, tmi, 1)
	assert.Equal(t, "tmi", tmi[0].DeviceKey)
	assert.NotZero(t, tmi[0].Size)
}

func TestListPaginates(t *testing.T) {
	fake := newFakeS3()
	fake.pageSize = 2
	store := NewBackupStore(fake, "bucket")

	now := time.Now()
	for i := 0; i < 5; i++ {
		key := objectKey("tmi", now.Add(time.Duration(i)*time.Minute))
		fake.objects[key] = fakeObject{data: []byte("{}"), modified: now}
	}

	all, err := store.List(context.Background(), "tmi")
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestCleanupOldBackups(t *testing.T) {
	fake := newFakeS3()
	store := NewBackupStore(fake, "bucket")

	now := time.Now()
	fake.objects["backups/tmi/old.json"] = fakeObject{
		data: []byte("{}"), modified: now.AddDate(0, 0, -120),
	}
	fake.objects["backups/tmi/older.json"] = fakeObject{
		data: []byte("{}"), modified: now.AddDate(0, 0, -91),
	}
	fake.objects["backups/tmi/fresh.json"] = fakeObject{
		data: []byte("{}"), modified: now.AddDate(0, 0, -10),
	}

	deleted, err := store.CleanupOldBackups(context.Background(), 90)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	_, oldLeft := fake.objects["backups/tmi/old.json"]
	_, freshLeft := fake.objects["backups/tmi/fresh.json"]
	assert.False(t, oldLeft)
	assert.True(t, freshLeft)
}

func TestCleanupStopsOnDeleteFailure(t *testing.T) {
	fake := newFakeS3()
	store := NewBackupStore(fake, "bucket")

	fake.objects["backups/tmi/old.json"] = fakeObject{
		data: []byte("{}"), modified: time.Now().AddDate(0, 0, -120),
	}
	fake.delErr = errors.New("access denied")

	_, err := store.CleanupOldBackups(context.Background(), 90)
	require.Error(t, err)
}

func TestDeviceKeyOf(t *testing.T) {
	assert.Equal(t, "tmi", deviceKeyOf("backups/tmi/2024-01-01_00-00-00.json"))
	assert.Equal(t, "", deviceKeyOf("other/tmi/x.json"))
	assert.Equal(t, "", deviceKeyOf("backups/dangling"))
}
