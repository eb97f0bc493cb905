package storage

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/temirov/repovault/internal/errkind"
)

const (
	bucketFieldNameConstant            = "s3.bucket"
	missingBucketMessageConstant       = "bucket name is required"
	clientNotConfiguredMessageConstant = "storage object client not configured"
	awsConfigurationErrorTemplate      = "unable to load AWS configuration: %w"
	checksumComputationErrorTemplate   = "unable to compute local checksum for %s: %w"
	contentRewindErrorTemplate         = "unable to rewind content for %s: %w"
	putObjectErrorTemplate             = "unable to upload %s: %w"
	headObjectErrorTemplate            = "unable to read back %s after upload: %w"
	existenceProbeErrorTemplate        = "unable to probe %s: %w"
	listObjectsErrorTemplate           = "unable to list backups under %s: %w"
	prefixSeparatorConstant            = "/"
	uploadVerifiedMessageConstant      = "upload verified"
	logFieldObjectKeyConstant          = "object_key"
	logFieldSizeBytesConstant          = "size_bytes"
	logFieldChecksumConstant           = "checksum_sha256"
	defaultPrefixConstant              = "backups/"
)

// ErrObjectClientNotConfigured indicates the gateway was constructed without a client.
var ErrObjectClientNotConfigured = errors.New(clientNotConfiguredMessageConstant)

// Settings carries the object-storage target configuration.
type Settings struct {
	Bucket string `mapstructure:"bucket"`
	Region string `mapstructure:"region"`
	Prefix string `mapstructure:"prefix"`
}

// ObjectClient is the narrow S3 capability the gateway depends on, satisfied
// by *s3.Client and by in-memory fakes in tests.
type ObjectClient interface {
	PutObject(executionContext context.Context, input *s3.PutObjectInput, optionFunctions ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(executionContext context.Context, input *s3.HeadObjectInput, optionFunctions ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(executionContext context.Context, input *s3.ListObjectsV2Input, optionFunctions ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// BackupObject describes one stored backup object in a listing.
type BackupObject struct {
	Key          string
	SizeBytes    int64
	LastModified time.Time
}

// UploadReceipt reports the verified outcome of an upload.
type UploadReceipt struct {
	ObjectKey string
	Checksum  string
	SizeBytes int64
}

// Gateway wraps the object-storage target with upload verification,
// existence probing, and prefix-scoped listing.
type Gateway struct {
	client ObjectClient
	bucket string
	prefix string
	logger *zap.Logger
}

// NewObjectClient builds a production S3 client for the configured region.
func NewObjectClient(executionContext context.Context, region string) (ObjectClient, error) {
	awsConfiguration, loadError := awsconfig.LoadDefaultConfig(executionContext, awsconfig.WithRegion(region))
	if loadError != nil {
		return nil, fmt.Errorf(awsConfigurationErrorTemplate, loadError)
	}
	return s3.NewFromConfig(awsConfiguration), nil
}

// NewGateway validates settings and constructs a storage gateway.
func NewGateway(client ObjectClient, settings Settings, logger *zap.Logger) (*Gateway, error) {
	if client == nil {
		return nil, ErrObjectClientNotConfigured
	}
	if len(strings.TrimSpace(settings.Bucket)) == 0 {
		return nil, errkind.ConfigurationError{FieldName: bucketFieldNameConstant, Message: missingBucketMessageConstant}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Gateway{
		client: client,
		bucket: settings.Bucket,
		prefix: normalizePrefix(settings.Prefix),
		logger: logger,
	}, nil
}

// Upload transfers content under the derived key and verifies the stored
// object's reported size and checksum against locally computed values. A
// mismatch returns an UploadVerificationError; the object is not deleted.
func (gateway *Gateway) Upload(executionContext context.Context, objectKey string, content io.ReadSeeker, contentLength int64, metadata map[string]string) (UploadReceipt, error) {
	fullKey := gateway.prefix + objectKey

	localChecksum, checksumError := computeContentChecksum(content)
	if checksumError != nil {
		return UploadReceipt{}, fmt.Errorf(checksumComputationErrorTemplate, fullKey, checksumError)
	}

	if _, rewindError := content.Seek(0, io.SeekStart); rewindError != nil {
		return UploadReceipt{}, fmt.Errorf(contentRewindErrorTemplate, fullKey, rewindError)
	}

	putInput := &s3.PutObjectInput{
		Bucket:            aws.String(gateway.bucket),
		Key:               aws.String(fullKey),
		Body:              content,
		ContentLength:     aws.Int64(contentLength),
		Metadata:          metadata,
		ChecksumAlgorithm: s3types.ChecksumAlgorithmSha256,
		ChecksumSHA256:    aws.String(localChecksum),
	}

	if _, putError := gateway.client.PutObject(executionContext, putInput); putError != nil {
		return UploadReceipt{}, fmt.Errorf(putObjectErrorTemplate, fullKey, putError)
	}

	headInput := &s3.HeadObjectInput{
		Bucket:       aws.String(gateway.bucket),
		Key:          aws.String(fullKey),
		ChecksumMode: s3types.ChecksumModeEnabled,
	}

	headOutput, headError := gateway.client.HeadObject(executionContext, headInput)
	if headError != nil {
		return UploadReceipt{}, fmt.Errorf(headObjectErrorTemplate, fullKey, headError)
	}

	storedSize := aws.ToInt64(headOutput.ContentLength)
	if storedSize != contentLength {
		return UploadReceipt{}, errkind.UploadVerificationError{
			ObjectKey:      fullKey,
			LocalSizeBytes: contentLength,
			StoredSize:     storedSize,
		}
	}

	storedChecksum := aws.ToString(headOutput.ChecksumSHA256)
	if len(storedChecksum) > 0 && storedChecksum != localChecksum {
		return UploadReceipt{}, errkind.UploadVerificationError{
			ObjectKey:      fullKey,
			LocalSizeBytes: contentLength,
			StoredSize:     storedSize,
			LocalChecksum:  localChecksum,
			StoredChecksum: storedChecksum,
		}
	}

	gateway.logger.Info(
		uploadVerifiedMessageConstant,
		zap.String(logFieldObjectKeyConstant, fullKey),
		zap.Int64(logFieldSizeBytesConstant, contentLength),
		zap.String(logFieldChecksumConstant, localChecksum),
	)

	return UploadReceipt{ObjectKey: objectKey, Checksum: localChecksum, SizeBytes: contentLength}, nil
}

// BackupExists performs a head probe for the derived key, not a listing.
func (gateway *Gateway) BackupExists(executionContext context.Context, objectKey string) (bool, error) {
	fullKey := gateway.prefix + objectKey

	headInput := &s3.HeadObjectInput{
		Bucket: aws.String(gateway.bucket),
		Key:    aws.String(fullKey),
	}

	_, headError := gateway.client.HeadObject(executionContext, headInput)
	if headError != nil {
		var notFoundError *s3types.NotFound
		if errors.As(headError, &notFoundError) {
			return false, nil
		}
		return false, fmt.Errorf(existenceProbeErrorTemplate, fullKey, headError)
	}

	return true, nil
}

// ListBackups returns every stored object under the repository's key prefix,
// all pages exhausted.
func (gateway *Gateway) ListBackups(executionContext context.Context, repositoryName string) ([]BackupObject, error) {
	listPrefix := gateway.prefix + repositoryKeyPrefix(repositoryName)

	listInput := &s3.ListObjectsV2Input{
		Bucket: aws.String(gateway.bucket),
		Prefix: aws.String(listPrefix),
	}

	var backups []BackupObject
	paginator := s3.NewListObjectsV2Paginator(gateway.client, listInput)
	for paginator.HasMorePages() {
		page, pageError := paginator.NextPage(executionContext)
		if pageError != nil {
			return nil, fmt.Errorf(listObjectsErrorTemplate, listPrefix, pageError)
		}

		for _, storedObject := range page.Contents {
			backups = append(backups, BackupObject{
				Key:          aws.ToString(storedObject.Key),
				SizeBytes:    aws.ToInt64(storedObject.Size),
				LastModified: aws.ToTime(storedObject.LastModified),
			})
		}
	}

	return backups, nil
}

func computeContentChecksum(content io.Reader) (string, error) {
	hasher := sha256.New()
	if _, copyError := io.Copy(hasher, content); copyError != nil {
		return "", copyError
	}
	return base64.StdEncoding.EncodeToString(hasher.Sum(nil)), nil
}

// normalizePrefix guarantees a single trailing slash and tolerates an empty prefix.
func normalizePrefix(rawPrefix string) string {
	trimmedPrefix := strings.TrimSpace(rawPrefix)
	if len(trimmedPrefix) == 0 {
		return ""
	}
	return strings.TrimRight(trimmedPrefix, prefixSeparatorConstant) + prefixSeparatorConstant
}

// DefaultSettingsValues supplies configuration defaults for the storage section.
func DefaultSettingsValues(configurationKeyPrefix string) map[string]any {
	return map[string]any{
		configurationKeyPrefix + ".prefix": defaultPrefixConstant,
	}
}
