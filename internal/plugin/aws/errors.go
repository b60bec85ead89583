package aws

import (
	"context"
	"errors"
	"net"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	apperrors "github.com/yairfalse/bucketlens/internal/errors"
)

// S3 error codes with dedicated handling.
const (
	codeNoSuchLifecycle    = "NoSuchLifecycleConfiguration"
	codeNoSuchPolicy       = "NoSuchBucketPolicy"
	codeNoSuchPublicAccess = "NoSuchPublicAccessBlockConfiguration"
	codeNoSuchEncryption   = "ServerSideEncryptionConfigurationNotFoundError"
	codeNoSuchBucket       = "NoSuchBucket"
)

var throttleCodes = map[string]bool{
	"Throttling":               true,
	"ThrottlingException":      true,
	"ThrottledException":       true,
	"SlowDown":                 true,
	"RequestLimitExceeded":     true,
	"TooManyRequestsException": true,
	"RequestTimeout":           true,
	"RequestTimeoutException":  true,
	"InternalError":            true,
	"ServiceUnavailable":       true,
}

// hasCode reports whether err is an API error with one of codes.
func hasCode(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, c := range codes {
		if apiErr.ErrorCode() == c {
			return true
		}
	}
	return false
}

// classify maps an SDK error onto the bucketlens error taxonomy.
func classify(op, bucket string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Transient(op, bucket, err)
	}

	var noBucket *types.NoSuchBucket
	if errors.As(err, &noBucket) || hasCode(err, codeNoSuchBucket) {
		return apperrors.NotFound(op, bucket, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && throttleCodes[apiErr.ErrorCode()] {
		return apperrors.Transient(op, bucket, err)
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		code := respErr.HTTPStatusCode()
		if code == 429 || code >= 500 {
			return apperrors.Transient(op, bucket, err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperrors.Transient(op, bucket, err)
	}

	return apperrors.Provider(op, bucket, err)
}
