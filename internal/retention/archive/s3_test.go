package archive

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attest/internal/records"
)

type fakeS3 struct {
	inputs []*s3.PutObjectInput
	bodies []string
	err    error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, string(body))
	return &s3.PutObjectOutput{}, nil
}

func TestS3Archiver_Archive(t *testing.T) {
	client := &fakeS3{}
	a, err := New(client, "audit-archive", "attest")
	require.NoError(t, err)
	a.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }

	err = a.Archive(context.Background(), "payment", []*records.LogRecord{
		{ID: "r-1", Level: records.LevelInfo, Category: "payment", Message: "charged"},
	})
	require.NoError(t, err)

	require.Len(t, client.inputs, 1)
	in := client.inputs[0]
	assert.Equal(t, "audit-archive", *in.Bucket)
	assert.True(t, strings.HasPrefix(*in.Key, "attest/payment/2026/03/01/"))
	assert.True(t, strings.HasSuffix(*in.Key, ".json"))
	assert.Equal(t, "1", in.Metadata["records"])
	assert.Contains(t, client.bodies[0], `"id":"r-1"`)
}

func TestS3Archiver_EmptyBatch(t *testing.T) {
	client := &fakeS3{}
	a, err := New(client, "b", "")
	require.NoError(t, err)

	require.NoError(t, a.Archive(context.Background(), "payment", nil))
	assert.Empty(t, client.inputs)
}

func TestS3Archiver_PutError(t *testing.T) {
	a, err := New(&fakeS3{err: errors.New("access denied")}, "b", "")
	require.NoError(t, err)

	err = a.Archive(context.Background(), "payment", []*records.LogRecord{{ID: "r-1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "b", "")
	assert.Error(t, err)
	_, err = New(&fakeS3{}, "", "")
	assert.Error(t, err)
}
