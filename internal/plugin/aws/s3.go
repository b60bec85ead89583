package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/yairfalse/bucketlens/pkg/report"
)

// CallerIdentity verifies the active credentials via STS.
func (p *Plugin) CallerIdentity(ctx context.Context) (report.Identity, error) {
	out, err := call(ctx, p, "get caller identity", "", func(ctx context.Context) (*sts.GetCallerIdentityOutput, error) {
		return p.stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	})
	if err != nil {
		return report.Identity{}, err
	}
	return report.Identity{
		Account: aws.ToString(out.Account),
		ARN:     aws.ToString(out.Arn),
		UserID:  aws.ToString(out.UserId),
	}, nil
}

// ListResources lists bucket names in the order S3 returns them.
func (p *Plugin) ListResources(ctx context.Context) ([]string, error) {
	var names []string
	paginator := s3.NewListBucketsPaginator(p.s3Client, &s3.ListBucketsInput{})

	for paginator.HasMorePages() {
		page, err := call(ctx, p, "list buckets", "", func(ctx context.Context) (*s3.ListBucketsOutput, error) {
			return paginator.NextPage(ctx)
		})
		if err != nil {
			return nil, err
		}
		for _, bucket := range page.Buckets {
			names = append(names, aws.ToString(bucket.Name))
		}
	}

	return names, nil
}

// ListObjects pages through the full object listing of bucket.
func (p *Plugin) ListObjects(ctx context.Context, bucket string, fn func(report.Object) error) error {
	paginator := s3.NewListObjectsV2Paginator(p.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	})

	for paginator.HasMorePages() {
		page, err := call(ctx, p, "list objects", bucket, func(ctx context.Context) (*s3.ListObjectsV2Output, error) {
			return paginator.NextPage(ctx)
		})
		if err != nil {
			return err
		}
		for _, obj := range page.Contents {
			if err := fn(convertObject(obj)); err != nil {
				return err
			}
		}
	}

	return nil
}

func convertObject(obj types.Object) report.Object {
	class := string(obj.StorageClass)
	if class == "" {
		class = report.DefaultStorageClass
	}
	return report.Object{
		Key:          aws.ToString(obj.Key),
		Size:         aws.ToInt64(obj.Size),
		StorageClass: class,
	}
}

// LifecycleRules fetches the lifecycle configuration.
// A bucket without one yields configured=false and no error.
func (p *Plugin) LifecycleRules(ctx context.Context, bucket string) ([]report.LifecycleRule, bool, error) {
	out, err := call(ctx, p, "get lifecycle configuration", bucket, func(ctx context.Context) (*s3.GetBucketLifecycleConfigurationOutput, error) {
		return p.s3Client.GetBucketLifecycleConfiguration(ctx, &s3.GetBucketLifecycleConfigurationInput{
			Bucket: aws.String(bucket),
		})
	})
	if err != nil {
		if hasCode(err, codeNoSuchLifecycle) {
			return []report.LifecycleRule{}, false, nil
		}
		return nil, false, err
	}

	rules := make([]report.LifecycleRule, 0, len(out.Rules))
	for _, r := range out.Rules {
		rules = append(rules, convertLifecycleRule(r))
	}
	return rules, true, nil
}

func convertLifecycleRule(r types.LifecycleRule) report.LifecycleRule {
	rule := report.LifecycleRule{
		ID:     aws.ToString(r.ID),
		Status: string(r.Status),
	}

	if r.Filter != nil && r.Filter.Prefix != nil {
		rule.Prefix = aws.ToString(r.Filter.Prefix)
	}
	if r.Expiration != nil && r.Expiration.Days != nil {
		rule.ExpirationDays = aws.ToInt32(r.Expiration.Days)
	}
	for _, t := range r.Transitions {
		rule.Transitions = append(rule.Transitions, report.Transition{
			Days:         aws.ToInt32(t.Days),
			StorageClass: string(t.StorageClass),
		})
	}

	return rule
}

// Policy returns the bucket policy document if one is set.
func (p *Plugin) Policy(ctx context.Context, bucket string) (string, bool, error) {
	out, err := call(ctx, p, "get bucket policy", bucket, func(ctx context.Context) (*s3.GetBucketPolicyOutput, error) {
		return p.s3Client.GetBucketPolicy(ctx, &s3.GetBucketPolicyInput{Bucket: aws.String(bucket)})
	})
	if err != nil {
		if hasCode(err, codeNoSuchPolicy) {
			return "", false, nil
		}
		return "", false, err
	}
	policy := aws.ToString(out.Policy)
	return policy, policy != "", nil
}

// PublicAccessBlock returns the bucket public access block, or nil when none is configured.
func (p *Plugin) PublicAccessBlock(ctx context.Context, bucket string) (*report.PublicAccessBlock, error) {
	out, err := call(ctx, p, "get public access block", bucket, func(ctx context.Context) (*s3.GetPublicAccessBlockOutput, error) {
		return p.s3Client.GetPublicAccessBlock(ctx, &s3.GetPublicAccessBlockInput{Bucket: aws.String(bucket)})
	})
	if err != nil {
		if hasCode(err, codeNoSuchPublicAccess) {
			return nil, nil
		}
		return nil, err
	}

	cfg := out.PublicAccessBlockConfiguration
	if cfg == nil {
		return nil, nil
	}
	return &report.PublicAccessBlock{
		BlockPublicAcls:       aws.ToBool(cfg.BlockPublicAcls),
		IgnorePublicAcls:      aws.ToBool(cfg.IgnorePublicAcls),
		BlockPublicPolicy:     aws.ToBool(cfg.BlockPublicPolicy),
		RestrictPublicBuckets: aws.ToBool(cfg.RestrictPublicBuckets),
	}, nil
}

// Versioning returns the bucket versioning state. Unset fields read as "Disabled".
func (p *Plugin) Versioning(ctx context.Context, bucket string) (report.Versioning, error) {
	out, err := call(ctx, p, "get bucket versioning", bucket, func(ctx context.Context) (*s3.GetBucketVersioningOutput, error) {
		return p.s3Client.GetBucketVersioning(ctx, &s3.GetBucketVersioningInput{Bucket: aws.String(bucket)})
	})
	if err != nil {
		return report.Versioning{}, err
	}

	v := report.Versioning{Status: string(out.Status), MFADelete: string(out.MFADelete)}
	if v.Status == "" {
		v.Status = "Disabled"
	}
	if v.MFADelete == "" {
		v.MFADelete = "Disabled"
	}
	return v, nil
}

// Encryption returns the default encryption, or nil when none is configured.
func (p *Plugin) Encryption(ctx context.Context, bucket string) (*report.Encryption, error) {
	out, err := call(ctx, p, "get bucket encryption", bucket, func(ctx context.Context) (*s3.GetBucketEncryptionOutput, error) {
		return p.s3Client.GetBucketEncryption(ctx, &s3.GetBucketEncryptionInput{Bucket: aws.String(bucket)})
	})
	if err != nil {
		if hasCode(err, codeNoSuchEncryption) {
			return nil, nil
		}
		return nil, err
	}

	enc := &report.Encryption{}
	if out.ServerSideEncryptionConfiguration == nil {
		return enc, nil
	}
	for _, rule := range out.ServerSideEncryptionConfiguration.Rules {
		if rule.ApplyServerSideEncryptionByDefault != nil {
			enc.Enabled = true
			enc.Algorithm = string(rule.ApplyServerSideEncryptionByDefault.SSEAlgorithm)
			break
		}
	}
	return enc, nil
}
