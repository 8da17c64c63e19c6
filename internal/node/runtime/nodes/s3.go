package nodes

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/flowbase-io/flowbase/internal/node/runtime"
)

// S3 uploads, downloads, lists or deletes objects in an S3 bucket.
type S3 struct{}

func NewS3() *S3 { return &S3{} }

func (s *S3) Type() string { return "s3" }

func (s *S3) ConfigSchema() map[string]interface{} {
	return schema([]string{"operation", "bucket"}, map[string]interface{}{
		"operation":  prop("string", "upload, download, list or delete"),
		"bucket":     prop("string", "Bucket name"),
		"key":        prop("string", "Object key (upload, download, delete)"),
		"content":    prop("string", "Object content for upload"),
		"prefix":     prop("string", "Key prefix for list"),
		"region":     prop("string", "AWS region"),
		"endpoint":   prop("string", "Custom endpoint for S3-compatible stores"),
		"access_key": prop("string", "Static access key id"),
		"secret_key": prop("string", "Static secret access key"),
	})
}

func (s *S3) Execute(ctx context.Context, cfg map[string]interface{}, _ runtime.Input) (interface{}, error) {
	operation, err := stringConfig(cfg, "operation")
	if err != nil {
		return nil, err
	}
	bucket, err := stringConfig(cfg, "bucket")
	if err != nil {
		return nil, err
	}

	client, err := s.client(ctx, cfg)
	if err != nil {
		return nil, err
	}

	switch operation {
	case "upload":
		key, err := stringConfig(cfg, "key")
		if err != nil {
			return nil, err
		}
		content := optionalString(cfg, "content", "")
		_, err = client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader([]byte(content)),
		})
		if err != nil {
			return nil, fmt.Errorf("upload failed: %w", err)
		}
		return map[string]interface{}{"bucket": bucket, "key": key, "size": len(content)}, nil

	case "download":
		key, err := stringConfig(cfg, "key")
		if err != nil {
			return nil, err
		}
		out, err := client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, fmt.Errorf("download failed: %w", err)
		}
		defer out.Body.Close()
		content, err := io.ReadAll(out.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read object body: %w", err)
		}
		return map[string]interface{}{"bucket": bucket, "key": key, "content": string(content)}, nil

	case "list":
		out, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket: aws.String(bucket),
			Prefix: aws.String(optionalString(cfg, "prefix", "")),
		})
		if err != nil {
			return nil, fmt.Errorf("list failed: %w", err)
		}
		keys := make([]interface{}, 0, len(out.Contents))
		for _, obj := range out.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
		return map[string]interface{}{"bucket": bucket, "keys": keys, "count": len(keys)}, nil

	case "delete":
		key, err := stringConfig(cfg, "key")
		if err != nil {
			return nil, err
		}
		_, err = client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, fmt.Errorf("delete failed: %w", err)
		}
		return map[string]interface{}{"bucket": bucket, "key": key, "deleted": true}, nil

	default:
		return nil, fmt.Errorf("unsupported operation '%s'", operation)
	}
}

func (s *S3) client(ctx context.Context, cfg map[string]interface{}) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region := optionalString(cfg, "region", ""); region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if accessKey := optionalString(cfg, "access_key", ""); accessKey != "" {
		secretKey := optionalString(cfg, "secret_key", "")
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint := optionalString(cfg, "endpoint", ""); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}
