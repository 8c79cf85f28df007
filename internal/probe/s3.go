package probe

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config configures the S3 prober.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	Prefix    string
	PathStyle bool
	Kinds     []string
}

// ObjectLister is the subset of the S3 client the prober needs.
type ObjectLister interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3 probes key prefixes in one bucket. A directory exists when any object
// sits under its prefix and has files when one of those objects is not a
// folder marker.
type S3 struct {
	client ObjectLister
	bucket string
	layout Layout
}

// NewS3 builds a prober using the default AWS credential chain.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("probe: s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("probe: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewS3WithClient(client, cfg), nil
}

// NewS3WithClient builds a prober on an existing client.
func NewS3WithClient(client ObjectLister, cfg S3Config) *S3 {
	return &S3{
		client: client,
		bucket: cfg.Bucket,
		layout: Layout{Root: strings.Trim(cfg.Prefix, "/"), Kinds: cfg.Kinds},
	}
}

func (p *S3) Probe(ctx context.Context, clientID, projectID, standTempID string) ([]Location, error) {
	dirs, err := p.layout.Directories(clientID, projectID, standTempID)
	if err != nil {
		return nil, err
	}
	out := make([]Location, 0, len(dirs))
	for _, dir := range dirs {
		loc, err := p.probePrefix(ctx, strings.TrimPrefix(dir, "/")+"/")
		if err != nil {
			return nil, err
		}
		loc.Directory = "s3://" + p.bucket + "/" + strings.TrimPrefix(dir, "/")
		out = append(out, loc)
	}
	return out, nil
}

func (p *S3) probePrefix(ctx context.Context, prefix string) (Location, error) {
	var loc Location
	var token *string
	for {
		res, err := p.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(p.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
			MaxKeys:           aws.Int32(100),
		})
		if err != nil {
			return Location{}, fmt.Errorf("probe: list %s: %w", prefix, err)
		}
		for _, obj := range res.Contents {
			loc.Exists = true
			if !strings.HasSuffix(aws.ToString(obj.Key), "/") {
				loc.HasFiles = true
				return loc, nil
			}
		}
		if !aws.ToBool(res.IsTruncated) || res.NextContinuationToken == nil {
			return loc, nil
		}
		token = res.NextContinuationToken
	}
}
