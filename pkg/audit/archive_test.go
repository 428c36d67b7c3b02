package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (m *mockPutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.input = in
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.body = body
	return &s3.PutObjectOutput{}, nil
}

func TestArchiver_Archive(t *testing.T) {
	putter := &mockPutter{}
	a := NewArchiver(putter, "audit-bucket", "cmsadmin/logs")
	a.now = func() time.Time { return time.Date(2026, 10, 15, 3, 0, 0, 0, time.UTC) }

	result, err := a.Archive(context.Background(), sampleEntries(), ExportFormatNDJSON)
	require.NoError(t, err)

	wantKey := "cmsadmin/logs/2026/10/15/admin-logs-1792033200.ndjson"
	assert.Equal(t, wantKey, result.Key)
	assert.Equal(t, "audit-bucket", result.Bucket)
	assert.Equal(t, 2, result.Entries)

	require.NotNil(t, putter.input)
	assert.Equal(t, "audit-bucket", aws.ToString(putter.input.Bucket))
	assert.Equal(t, wantKey, aws.ToString(putter.input.Key))
	assert.Equal(t, "application/x-ndjson", aws.ToString(putter.input.ContentType))
	assert.Equal(t, 2, strings.Count(string(putter.body), "\n"))
	assert.Equal(t, len(putter.body), result.Bytes)

	hash := sha256.Sum256(putter.body)
	assert.Equal(t, hex.EncodeToString(hash[:]), result.Checksum)
	assert.Equal(t, result.Checksum, putter.input.Metadata["checksum-sha256"])
	assert.Equal(t, "2", putter.input.Metadata["entries"])
}

func TestArchiver_UploadFailure(t *testing.T) {
	a := NewArchiver(&mockPutter{err: errors.New("access denied")}, "audit-bucket", "")

	_, err := a.Archive(context.Background(), sampleEntries(), ExportFormatJSON)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestArchiver_RejectsUnknownFormat(t *testing.T) {
	putter := &mockPutter{}
	a := NewArchiver(putter, "audit-bucket", "")

	_, err := a.Archive(context.Background(), sampleEntries(), "xml")
	assert.Error(t, err)
	assert.Nil(t, putter.input)
}
