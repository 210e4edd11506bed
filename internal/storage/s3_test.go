package storage

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockS3API struct {
	calls             int
	lastInput         *s3.ListObjectsV2Input
	listObjectsV2Func func(ctx context.Context, params *s3.ListObjectsV2Input) (*s3.ListObjectsV2Output, error)
}

func (m *mockS3API) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.calls++
	m.lastInput = params
	if m.listObjectsV2Func != nil {
		return m.listObjectsV2Func(ctx, params)
	}
	return &s3.ListObjectsV2Output{}, nil
}

func TestS3Lister_ListObjects(t *testing.T) {
	tests := []struct {
		name     string
		output   *s3.ListObjectsV2Output
		wantKeys []string
	}{
		{
			name: "returns keys in backend order",
			output: &s3.ListObjectsV2Output{
				Contents: []types.Object{
					{Key: aws.String("b.json"), Size: aws.Int64(20)},
					{Key: aws.String("a.json"), Size: aws.Int64(10)},
				},
			},
			wantKeys: []string{"b.json", "a.json"},
		},
		{
			name:     "missing contents is an empty bucket",
			output:   &s3.ListObjectsV2Output{},
			wantKeys: []string{},
		},
		{
			name: "skips entries without a key",
			output: &s3.ListObjectsV2Output{
				Contents: []types.Object{
					{Key: nil},
					{Key: aws.String("a.json")},
				},
			},
			wantKeys: []string{"a.json"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockS3API{
				listObjectsV2Func: func(ctx context.Context, params *s3.ListObjectsV2Input) (*s3.ListObjectsV2Output, error) {
					return tt.output, nil
				},
			}
			lister := NewS3Lister(mock, 0, zerolog.Nop())

			objects, err := lister.ListObjects(context.Background(), "data-bucket")
			require.NoError(t, err)
			assert.Equal(t, tt.wantKeys, Keys(objects))
			assert.Equal(t, 1, mock.calls)
			assert.Equal(t, "data-bucket", aws.ToString(mock.lastInput.Bucket))
			assert.Nil(t, mock.lastInput.ContinuationToken)
			assert.Nil(t, mock.lastInput.MaxKeys)
		})
	}
}

func TestS3Lister_SinglePageOnly(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockS3API{
		listObjectsV2Func: func(ctx context.Context, params *s3.ListObjectsV2Input) (*s3.ListObjectsV2Output, error) {
			return &s3.ListObjectsV2Output{
				Contents:              []types.Object{{Key: aws.String("a.json")}, {Key: aws.String("b.json")}},
				IsTruncated:           aws.Bool(true),
				NextContinuationToken: aws.String("next"),
			}, nil
		},
	}
	lister := NewS3Lister(mock, 2, zerolog.New(&buf))

	objects, err := lister.ListObjects(context.Background(), "data-bucket")
	require.NoError(t, err)

	assert.Len(t, objects, 2)
	assert.Equal(t, 1, mock.calls)
	assert.Equal(t, int32(2), aws.ToInt32(mock.lastInput.MaxKeys))
	assert.Contains(t, buf.String(), "listing truncated")
}

func TestS3Lister_Error(t *testing.T) {
	mock := &mockS3API{
		listObjectsV2Func: func(ctx context.Context, params *s3.ListObjectsV2Input) (*s3.ListObjectsV2Output, error) {
			return nil, errors.New("NoSuchBucket")
		},
	}
	lister := NewS3Lister(mock, 0, zerolog.Nop())

	objects, err := lister.ListObjects(context.Background(), "missing")
	require.Error(t, err)
	assert.Nil(t, objects)
	assert.Contains(t, err.Error(), "list objects in bucket missing")
	assert.Contains(t, err.Error(), "NoSuchBucket")
}

func TestNormalizeEndpoint(t *testing.T) {
	assert.Equal(t, "https://s3.local:9000", normalizeEndpoint("s3.local:9000", true))
	assert.Equal(t, "http://s3.local:9000", normalizeEndpoint("s3.local:9000", false))
	assert.Equal(t, "http://s3.local:9000", normalizeEndpoint("//s3.local:9000", false))
	assert.Equal(t, "https://already", normalizeEndpoint("https://already", false))
}
