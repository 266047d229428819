package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"

	"github.com/mvoronin/promptstash/internal/common"
	"github.com/mvoronin/promptstash/internal/server/models"
)

func stubPresign(t *testing.T, putURL, getURL string, presignErr error) {
	t.Helper()

	origLoad := loadDefaultAWSConfig
	origNewClient := newS3ClientFromConfig
	origNewPresign := newS3PresignClient
	origPut := presignPutObject
	origGet := presignGetObject
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNewClient
		newS3PresignClient = origNewPresign
		presignPutObject = origPut
		presignGetObject = origGet
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return nil
	}
	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return nil
	}
	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		if presignErr != nil {
			return nil, presignErr
		}
		return &v4.PresignedHTTPRequest{URL: putURL}, nil
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		if presignErr != nil {
			return nil, presignErr
		}
		return &v4.PresignedHTTPRequest{URL: getURL}, nil
	}
}

func TestDocumentService_CreateReturnsUploadURL(t *testing.T) {
	stubPresign(t, "https://s3.local/put", "https://s3.local/get", nil)

	rm := &fakeRepoManager{documents: &fakeDocumentsRepo{rows: map[string]*models.Document{}}}
	s := NewDocumentService(nil, rm, testConfig())

	doc, uploadURL, err := s.Create(context.Background(), "u1", "notes.pdf", "application/pdf", 1024)
	require.NoError(t, err)
	require.Equal(t, "https://s3.local/put", uploadURL)
	require.Equal(t, "u1", doc.OwnerID)
	require.True(t, strings.HasPrefix(doc.StorageKey, "documents/u1/"), "storage key must be owner-scoped, got %q", doc.StorageKey)
}

func TestDocumentService_DownloadURL(t *testing.T) {
	stubPresign(t, "https://s3.local/put", "https://s3.local/get", nil)

	rm := &fakeRepoManager{documents: &fakeDocumentsRepo{rows: map[string]*models.Document{}}}
	s := NewDocumentService(nil, rm, testConfig())

	doc, _, err := s.Create(context.Background(), "u1", "notes.pdf", "application/pdf", 1024)
	require.NoError(t, err)

	url, err := s.DownloadURL(context.Background(), "u1", doc.ID)
	require.NoError(t, err)
	require.Equal(t, "https://s3.local/get", url)

	// Another tenant must not reach the document.
	_, err = s.DownloadURL(context.Background(), "u2", doc.ID)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestDocumentService_PresignError(t *testing.T) {
	stubPresign(t, "", "", errors.New("s3 down"))

	rm := &fakeRepoManager{documents: &fakeDocumentsRepo{rows: map[string]*models.Document{}}}
	s := NewDocumentService(nil, rm, testConfig())

	_, _, err := s.Create(context.Background(), "u1", "notes.pdf", "application/pdf", 1024)
	require.Error(t, err)
}
