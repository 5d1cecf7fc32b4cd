package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abcfood/fingerprint-bridge/pkg/cache"
	"github.com/abcfood/fingerprint-bridge/pkg/device"
	"github.com/abcfood/fingerprint-bridge/pkg/device/devicetest"
	"github.com/abcfood/fingerprint-bridge/pkg/hris"
	"github.com/abcfood/fingerprint-bridge/pkg/storage"
)

// memS3 is a minimal in-memory bucket for the storage client interface.
type memS3 struct {
	objects map[string][]byte
}

func newMemS3() *memS3 {
	return &memS3{objects: make(map[string][]byte)}
}

func (m *memS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *memS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := m.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(data)))}, nil
}

func (m *memS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(m.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (m *memS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	now := time.Now()
	out := &s3.ListObjectsV2Output{}
	for _, k := range keys {
		size := int64(len(m.objects[k]))
		out.Contents = append(out.Contents, types.Object{
			Key: aws.String(k), Size: &size, LastModified: &now,
		})
	}
	return out, nil
}

type fakeDirectory struct {
	employees []hris.Employee
	err       error
}

func (f *fakeDirectory) Employees(context.Context) ([]hris.Employee, error) {
	return f.employees, f.err
}

type fixture struct {
	svc    *Service
	dialer *devicetest.Dialer
	cache  *cache.Cache
	s3     *memS3
	dir    *fakeDirectory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dialer := devicetest.NewDialer()
	pool, err := device.NewPoolFromConfigs([]device.Config{
		{Key: "tmi", Name: "TMI Office", IP: "10.0.0.1"},
		{Key: "mmk", Name: "MMK Factory", IP: "10.0.0.2"},
	}, dialer)
	require.NoError(t, err)

	c := cache.New(pool)
	mem := newMemS3()
	dir := &fakeDirectory{}
	return &fixture{
		svc:    New(pool, c, storage.NewBackupStore(mem, "bucket"), dir),
		dialer: dialer,
		cache:  c,
		s3:     mem,
		dir:    dir,
	}
}

func TestCountAttendancePrefersCache(t *testing.T) {
	f := newFixture(t)
	dev := f.dialer.Device("tmi")
	dev.Attendance = []device.Attendance{
		{UserID: "E1", Timestamp: time.Now()},
		{UserID: "E2", Timestamp: time.Now()},
	}

	// Empty cache: the count comes from the cheap size read.
	n, err := f.svc.CountAttendance(context.Background(), "tmi")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Contains(t, dev.CallNames(), "ReadSizes")

	// Populated cache: no device round-trip at all.
	_, err = f.cache.Refresh(context.Background(), "tmi")
	require.NoError(t, err)
	dials := dev.DialCount

	n, err = f.svc.CountAttendance(context.Background(), "tmi")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, dials, dev.DialCount)
}

func TestGetAttendanceCacheMissFallsBackToDevice(t *testing.T) {
	f := newFixture(t)
	day := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	f.dialer.Device("tmi").Attendance = []device.Attendance{
		{UserID: "E2", Timestamp: day.Add(9 * time.Hour)},
		{UserID: "E1", Timestamp: day.Add(8 * time.Hour)},
		{UserID: "E3", Timestamp: day.Add(10 * time.Hour)},
	}

	to := day.Add(9*time.Hour + 30*time.Minute)
	got, err := f.svc.GetAttendance(context.Background(), "tmi", &day, &to, true)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "E1", got[0].UserID)
	assert.Equal(t, "E2", got[1].UserID)
}

func TestFormatForHRIS(t *testing.T) {
	ts := time.Date(2024, time.May, 2, 8, 30, 15, 0, time.UTC)
	rows := FormatForHRIS([]device.Attendance{
		{UserID: "E1", Timestamp: ts, Status: 0},
		{UserID: "E2", Timestamp: ts, Status: 1},
		{UserID: "E3", Timestamp: ts, Status: 9},
	}, "tmi", "TMI Office")

	require.Len(t, rows, 3)
	assert.Equal(t, HRISRow{
		MachineCode:    "tmi",
		MachineName:    "TMI Office",
		DeviceID:       "E1",
		Date:           "2024-05-02 08:30:15",
		Time:           "08:30:15",
		AttendanceType: "regular",
		PunchType:      "Check-In",
	}, rows[0])
	assert.Equal(t, "Check-Out", rows[1].PunchType)
	assert.Equal(t, "9", rows[2].PunchType)
}

func TestSyncUsersFromHRISDryRun(t *testing.T) {
	f := newFixture(t)
	dev := f.dialer.Device("tmi")
	dev.Users = []device.User{{UID: 1, UserID: "E1", Name: "A"}}
	f.dir.employees = []hris.Employee{
		{ID: "E1", Name: "A"},
		{ID: "E2", Name: "B"},
	}

	res, err := f.svc.SyncUsersFromHRIS(context.Background(), "tmi", true)
	require.NoError(t, err)
	assert.Equal(t, []SyncChange{{UID: 2, UserID: "E2", Name: "B"}}, res.ToAdd)
	assert.Empty(t, res.ToUpdate)
	assert.Equal(t, []string{"E1"}, res.Unchanged)
	assert.True(t, res.DryRun)

	assert.NotContains(t, dev.CallNames(), "SetUser")
}

func TestSyncUsersFromHRISApplies(t *testing.T) {
	f := newFixture(t)
	dev := f.dialer.Device("tmi")
	dev.Users = []device.User{{UID: 1, UserID: "E1", Name: "A"}}
	f.dir.employees = []hris.Employee{
		{ID: "E1", Name: "A"},
		{ID: "E2", Name: "B"},
	}

	res, err := f.svc.SyncUsersFromHRIS(context.Background(), "tmi", false)
	require.NoError(t, err)
	require.Len(t, res.ToAdd, 1)

	sets := 0
	for _, call := range dev.CallNames() {
		if call == "SetUser" {
			sets++
		}
	}
	assert.Equal(t, 1, sets)

	require.Len(t, dev.Users, 2)
	assert.Equal(t, device.User{UID: 2, UserID: "E2", Name: "B"}, dev.Users[1])
}

func TestSyncUsersTruncatesLongNames(t *testing.T) {
	f := newFixture(t)
	long := strings.Repeat("x", 40)
	f.dir.employees = []hris.Employee{{ID: "E9", Name: long}}

	res, err := f.svc.SyncUsersFromHRIS(context.Background(), "tmi", true)
	require.NoError(t, err)
	require.Len(t, res.ToAdd, 1)
	assert.Len(t, res.ToAdd[0].Name, device.MaxNameBytes)
}

func TestTruncateNameKeepsRuneBoundary(t *testing.T) {
	// Myanmar script runes are three bytes each; the leading ASCII byte
	// shifts the limit into the middle of a rune, where a byte-exact cut
	// would leave an invalid tail.
	long := "U" + strings.Repeat("မ", device.MaxNameBytes)

	got := truncateName(long)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, device.MaxNameBytes-2, len(got))
	assert.Equal(t, 8, utf8.RuneCountInString(got))

	ascii := strings.Repeat("a", device.MaxNameBytes-1)
	assert.Equal(t, ascii, truncateName(ascii))
}

func TestSyncWithoutDirectoryNotConfigured(t *testing.T) {
	f := newFixture(t)
	f.svc.directory = nil

	_, err := f.svc.SyncUsersFromHRIS(context.Background(), "tmi", true)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestUpdateUserPreservesUnspecifiedFields(t *testing.T) {
	f := newFixture(t)
	dev := f.dialer.Device("tmi")
	dev.Users = []device.User{{
		UID: 1, UserID: "E1", Name: "Old Name",
		Privilege: device.PrivilegeAdmin, Password: "1234", Card: 77,
	}}

	name := "New Name"
	err := f.svc.UpdateUser(context.Background(), "tmi", 1, UserUpdate{Name: &name})
	require.NoError(t, err)

	u := dev.Users[0]
	assert.Equal(t, "New Name", u.Name)
	assert.Equal(t, "E1", u.UserID)
	assert.Equal(t, device.PrivilegeAdmin, u.Privilege)
	assert.Equal(t, "1234", u.Password)
	assert.Equal(t, 77, u.Card)
}

func TestUpdateUserUnknownUID(t *testing.T) {
	f := newFixture(t)

	name := "X"
	err := f.svc.UpdateUser(context.Background(), "tmi", 42, UserUpdate{Name: &name})
	assert.ErrorIs(t, err, device.ErrUnknownUser)
}

func TestDeleteUserUnknownUID(t *testing.T) {
	f := newFixture(t)

	err := f.svc.DeleteUser(context.Background(), "tmi", 42)
	assert.ErrorIs(t, err, device.ErrUnknownUser)
}

func TestRunBackupAndRestoreRoundTrip(t *testing.T) {
	f := newFixture(t)
	src := f.dialer.Device("tmi")
	src.Users = []device.User{{UID: 1, UserID: "E1", Name: "A"}}
	src.Templates = []device.Fingerprint{
		{UID: 1, FingerIndex: 6, Template: []byte{0xaa, 0xbb}, Valid: 1},
	}

	res, err := f.svc.RunBackup(context.Background(), "tmi", false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.UserCount)
	assert.Equal(t, 1, res.FingerprintCount)
	assert.Equal(t, 0, res.AttendanceCount)

	// Restore the tmi backup onto the other device.
	restore, err := f.svc.RestoreBackup(context.Background(), res.S3Key, "mmk", false)
	require.NoError(t, err)
	assert.Equal(t, "mmk", restore.TargetDevice)
	assert.Equal(t, 0, restore.SkippedFingerprints)

	dst := f.dialer.Device("mmk")
	require.Len(t, dst.Users, 1)
	require.Len(t, dst.Templates, 1)
	assert.Equal(t, []byte{0xaa, 0xbb}, dst.Templates[0].Template)
}

func TestRunBackupPrefersCachedAttendance(t *testing.T) {
	f := newFixture(t)
	dev := f.dialer.Device("tmi")
	dev.Attendance = []device.Attendance{{UserID: "E1", Timestamp: time.Now()}}

	_, err := f.cache.Refresh(context.Background(), "tmi")
	require.NoError(t, err)

	before := len(dev.CallNames())
	res, err := f.svc.RunBackup(context.Background(), "tmi", true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.AttendanceCount)

	// The backup session must not re-read attendance from the device.
	for _, call := range dev.CallNames()[before:] {
		assert.NotEqual(t, "GetAttendance", call)
	}
}

func TestRestoreDryRunNeverWrites(t *testing.T) {
	f := newFixture(t)
	src := f.dialer.Device("tmi")
	src.Users = []device.User{{UID: 1, UserID: "E1", Name: "A"}}

	res, err := f.svc.RunBackup(context.Background(), "tmi", false)
	require.NoError(t, err)

	before := len(src.CallNames())
	restore, err := f.svc.RestoreBackup(context.Background(), res.S3Key, "", true)
	require.NoError(t, err)
	assert.True(t, restore.DryRun)
	assert.Equal(t, "tmi", restore.TargetDevice)
	assert.Equal(t, 1, restore.UserCount)

	// No session at all on the target during a dry run.
	assert.Len(t, src.CallNames(), before)
}

func TestRestoreSkipsFailedFingerprints(t *testing.T) {
	f := newFixture(t)
	src := f.dialer.Device("tmi")
	src.Users = []device.User{{UID: 1, UserID: "E1", Name: "A"}}
	src.Templates = []device.Fingerprint{
		{UID: 1, FingerIndex: 6, Template: []byte{0x01}, Valid: 1},
		{UID: 1, FingerIndex: 7, Template: []byte{0x02}, Valid: 1},
	}

	res, err := f.svc.RunBackup(context.Background(), "tmi", false)
	require.NoError(t, err)

	dst := f.dialer.Device("mmk")
	dst.FingerErr = errors.New("template rejected")

	// Fingerprint failures are per-template best-effort; users still land.
	restore, err := f.svc.RestoreBackup(context.Background(), res.S3Key, "mmk", false)
	require.NoError(t, err)
	assert.Equal(t, 2, restore.SkippedFingerprints)
	assert.Len(t, dst.Users, 1)

	// A failing user write aborts the whole restore.
	dst.WriteErr = errors.New("device full")
	_, err = f.svc.RestoreBackup(context.Background(), res.S3Key, "mmk", false)
	require.Error(t, err)
}

func TestBackupWithoutStoreNotConfigured(t *testing.T) {
	f := newFixture(t)
	f.svc.store = nil

	_, err := f.svc.RunBackup(context.Background(), "tmi", false)
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = f.svc.ListBackups(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = f.svc.RestoreBackup(context.Background(), "k", "", true)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestDeviceStatusOnlineAndOffline(t *testing.T) {
	f := newFixture(t)
	dev := f.dialer.Device("tmi")
	dev.Info = device.Info{FirmwareVersion: "6.60", SerialNumber: "A1B2"}

	st, err := f.svc.DeviceStatus(context.Background(), "tmi")
	require.NoError(t, err)
	assert.True(t, st.Online)
	require.NotNil(t, st.Info)
	assert.Equal(t, "6.60", st.Info.FirmwareVersion)

	dev.DialErr = errors.New("no route to host")
	st, err = f.svc.DeviceStatus(context.Background(), "tmi")
	require.NoError(t, err)
	assert.False(t, st.Online)
	assert.NotEmpty(t, st.Error)

	_, err = f.svc.DeviceStatus(context.Background(), "nope")
	assert.ErrorIs(t, err, device.ErrUnknownDevice)
}

func TestFingerprintSummary(t *testing.T) {
	f := newFixture(t)
	dev := f.dialer.Device("tmi")
	dev.Users = []device.User{
		{UID: 1, UserID: "E1"},
		{UID: 2, UserID: "E2"},
	}
	dev.Templates = []device.Fingerprint{
		{UID: 1, FingerIndex: 6},
		{UID: 1, FingerIndex: 7},
		{UID: 2, FingerIndex: 6},
	}

	summary, err := f.svc.FingerprintSummary(context.Background(), "tmi")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"E1": 2, "E2": 1}, summary)

	only, err := f.svc.ListFingerprints(context.Background(), "tmi", "E1")
	require.NoError(t, err)
	assert.Len(t, only, 2)
}
