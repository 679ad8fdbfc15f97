package mirror

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"chadserv/logger"
)

// uploadToS3 streams the artifact to an S3 object using static
// credentials from accessInfo (accessKey, secretKey, region, bucket,
// key). The client is built per call; mirroring is rare enough that
// connection reuse does not matter.
func uploadToS3(ctx context.Context, accessInfo map[string]string, reader io.Reader) error {
	creds := credentials.NewStaticCredentialsProvider(accessInfo["accessKey"], accessInfo["secretKey"], "")
	bucket := accessInfo["bucket"]
	key := accessInfo["key"]

	client := s3.New(s3.Options{
		Region:      accessInfo["region"],
		Credentials: creds,
	})

	uploader := manager.NewUploader(client)
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   reader,
	})
	if err != nil {
		return fmt.Errorf("failed to upload object %s to bucket %s: %w", key, bucket, err)
	}

	logger.Infof("mirrored object '%s' to S3 bucket '%s'", key, bucket)
	return nil
}
