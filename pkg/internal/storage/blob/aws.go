package blob

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/yeisme/cloudvault/pkg/configs"
	"github.com/yeisme/cloudvault/pkg/internal/errs"
)

const awsDefaultList = 1000

func init() {
	RegisterFactory(configs.BlobTypeS3, func(ctx context.Context, cfg *configs.BlobConfig) (Store, error) {
		return NewAWSStore(ctx, cfg)
	})
}

// AWSStore 基于 aws-sdk-go-v2 的 S3 实现，同样适用于 R2、B2 S3 兼容端点.
type AWSStore struct {
	cli     *s3.Client
	presign *s3.PresignClient
	bucket  string
	timeout time.Duration
	expiry  time.Duration
}

// NewAWSStore 创建客户端，未配置静态凭据时走默认凭据链.
func NewAWSStore(ctx context.Context, cfg *configs.BlobConfig) (*AWSStore, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWS.Region)}
	if cfg.AWS.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWS.AccessKeyID, cfg.AWS.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	cli := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.AWS.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.Endpoint)
		}

		o.UsePathStyle = cfg.AWS.UsePathStyle
		// 第三方兼容端点多数不支持新的默认校验和
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	return &AWSStore{
		cli:     cli,
		presign: s3.NewPresignClient(cli),
		bucket:  cfg.Bucket,
		timeout: cfg.GetTimeout(),
		expiry:  cfg.GetPresignExpiry(),
	}, nil
}

func (s *AWSStore) Name() string   { return string(configs.BlobTypeS3) }
func (s *AWSStore) Bucket() string { return s.bucket }

func (s *AWSStore) Authenticate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.cli.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})

	return awsErr(err)
}

func (s *AWSStore) PresignUpload(ctx context.Context, key, contentType string, expiry time.Duration) (*UploadSlot, error) {
	in := &s3.PutObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}

	req, err := s.presign.PresignPutObject(ctx, in, s3.WithPresignExpires(expiry))
	if err != nil {
		return nil, awsErr(err)
	}

	headers := map[string]string{}

	for k := range req.SignedHeader {
		if strings.EqualFold(k, "host") {
			continue
		}

		headers[k] = req.SignedHeader.Get(k)
	}

	return &UploadSlot{
		URL:       req.URL,
		Method:    req.Method,
		Headers:   headers,
		ExpiresAt: time.Now().Add(expiry),
	}, nil
}

// Put 使用 UNSIGNED-PAYLOAD，流式上传无需预先计算摘要.
func (s *AWSStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (*Object, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	in := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          r,
		ContentLength: aws.Int64(size),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}

	out, err := s.cli.PutObject(ctx, in, s3.WithAPIOptions(v4.SwapComputePayloadSHA256ForUnsignedPayloadMiddleware))
	if err != nil {
		return nil, awsErr(err)
	}

	return &Object{
		Key:         key,
		Size:        size,
		ContentType: contentType,
		ObjectID:    aws.ToString(out.VersionId),
		ETag:        strings.Trim(aws.ToString(out.ETag), `"`),
		UpdatedAt:   time.Now(),
	}, nil
}

func (s *AWSStore) Stat(ctx context.Context, key string) (*Object, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.cli.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		return nil, awsErr(err)
	}

	return &Object{
		Key:         key,
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
		ObjectID:    aws.ToString(out.VersionId),
		ETag:        strings.Trim(aws.ToString(out.ETag), `"`),
		UpdatedAt:   aws.ToTime(out.LastModified),
	}, nil
}

func (s *AWSStore) Open(ctx context.Context, key string) (io.ReadCloser, *Object, error) {
	out, err := s.cli.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		return nil, nil, awsErr(err)
	}

	return out.Body, &Object{
		Key:         key,
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
		ObjectID:    aws.ToString(out.VersionId),
		ETag:        strings.Trim(aws.ToString(out.ETag), `"`),
		UpdatedAt:   aws.ToTime(out.LastModified),
	}, nil
}

func (s *AWSStore) ObjectURL(ctx context.Context, key string) (string, error) {
	req, err := s.presign.PresignGetObject(ctx,
		&s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)},
		s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", awsErr(err)
	}

	return req.URL, nil
}

func (s *AWSStore) Delete(ctx context.Context, key, objectID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	in := &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)}
	if objectID != "" {
		in.VersionId = aws.String(objectID)
	}

	if _, err := s.cli.DeleteObject(ctx, in); err != nil {
		if err = awsErr(err); errors.Is(err, ErrNotFound) {
			return nil
		}

		return err
	}

	return nil
}

func (s *AWSStore) List(ctx context.Context, prefix string, limit int) ([]Object, error) {
	if limit <= 0 {
		limit = awsDefaultList
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	objs := make([]Object, 0)
	pager := s3.NewListObjectsV2Paginator(s.cli, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for pager.HasMorePages() && len(objs) < limit {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, awsErr(err)
		}

		for _, o := range page.Contents {
			objs = append(objs, Object{
				Key:       aws.ToString(o.Key),
				Size:      aws.ToInt64(o.Size),
				ETag:      strings.Trim(aws.ToString(o.ETag), `"`),
				UpdatedAt: aws.ToTime(o.LastModified),
			})
			if len(objs) >= limit {
				break
			}
		}
	}

	return objs, nil
}

func awsErr(err error) error {
	if err == nil {
		return nil
	}

	var (
		nf  *types.NotFound
		nsk *types.NoSuchKey
	)
	if errors.As(err, &nf) || errors.As(err, &nsk) {
		return ErrNotFound
	}

	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		switch re.HTTPStatusCode() {
		case http.StatusNotFound:
			return ErrNotFound
		case http.StatusServiceUnavailable, http.StatusTooManyRequests, http.StatusRequestTimeout:
			return errs.Unavailable("storage service unavailable", err)
		}
	}

	return classify("s3", err)
}
