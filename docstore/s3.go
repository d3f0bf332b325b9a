// Package docstore retrieves guidance documents from S3 and folds them into
// the outbound prompt, so replies can lean on curated reference material.
// The store is read-only and best-effort: when it fails, chat proceeds
// without augmentation.
package docstore

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/chatbridge/chatbridge/common/logger"
)

// S3API is the slice of the S3 client the store consumes.
type S3API interface {
	ListObjectsV2(ctx context.Context, params *awss3.ListObjectsV2Input,
		optFns ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *awss3.GetObjectInput,
		optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
}

// Store reads guidance documents from one bucket.
type Store struct {
	client S3API
	bucket string
}

func New(client S3API, bucket string) *Store {
	return &Store{client: client, bucket: bucket}
}

// NewFromConfig builds a Store on a shared AWS config.
func NewFromConfig(cfg aws.Config, bucket string) *Store {
	return New(awss3.NewFromConfig(cfg), bucket)
}

// Keys lists every object key in the bucket.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "list objects in %s", s.bucket)
		}
		for _, obj := range out.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			return keys, nil
		}
		token = out.NextContinuationToken
	}
}

// Read returns the text content of one object.
func (s *Store) Read(ctx context.Context, key string) (string, error) {
	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", errors.Wrapf(err, "get object %s", key)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", errors.Wrapf(err, "read object %s", key)
	}
	return string(data), nil
}

// textDocument filters to plain-text formats. Binary formats (PDF and
// friends) are skipped rather than garbled into the prompt.
func textDocument(key string) bool {
	lower := strings.ToLower(key)
	return strings.HasSuffix(lower, ".txt") || strings.HasSuffix(lower, ".md")
}

// ContextForTopic gathers documents whose key mentions the topic. The empty
// string matches nothing.
func (s *Store) ContextForTopic(ctx context.Context, topic string) (string, error) {
	if strings.TrimSpace(topic) == "" {
		return "", nil
	}
	return s.gather(ctx, func(key string) bool {
		return strings.Contains(strings.ToLower(key), strings.ToLower(topic))
	})
}

// AllContext concatenates every guidance document.
func (s *Store) AllContext(ctx context.Context) (string, error) {
	return s.gather(ctx, func(string) bool { return true })
}

func (s *Store) gather(ctx context.Context, match func(key string) bool) (string, error) {
	keys, err := s.Keys(ctx)
	if err != nil {
		return "", err
	}

	var docs []string
	for _, key := range keys {
		if !match(key) {
			continue
		}
		if !textDocument(key) {
			logger.Logger.Debug("skipping non-text guidance document", zap.String("key", key))
			continue
		}
		content, err := s.Read(ctx, key)
		if err != nil {
			// one unreadable document should not starve the rest
			logger.Logger.Warn("failed to read guidance document", zap.String("key", key), zap.Error(err))
			continue
		}
		if content != "" {
			docs = append(docs, content)
		}
	}
	return strings.Join(docs, "\n\n"), nil
}

// BuildPrompt wraps the user's message with whatever guidance applies:
// topic-matched documents first, the full set as a fallback, or the raw
// message when the bucket offers nothing.
func (s *Store) BuildPrompt(ctx context.Context, userInput string) (string, error) {
	docContext, err := s.ContextForTopic(ctx, userInput)
	if err != nil {
		return "", err
	}
	if docContext == "" {
		docContext, err = s.AllContext(ctx)
		if err != nil {
			return "", err
		}
	}
	if docContext == "" {
		return userInput, nil
	}

	return fmt.Sprintf(`Use the following guidance documents as reference:

%s

Answer the user's question:
%s

Ground the answer in the guidance above when it applies, say so when it does not, and keep the tone helpful and concise.`,
		docContext, userInput), nil
}
