package mirror

import (
	"context"
	"fmt"
	"io"
)

// Write replicates an artifact to the backend named by backendType.
// accessInfo carries backend-specific credentials and target location.
// Replication is best-effort at the call site: a mirror failure is
// logged there, never surfaced to the job.
func Write(ctx context.Context, accessInfo map[string]string, reader io.Reader, backendType string) error {
	switch backendType {
	case "s3":
		if err := uploadToS3(ctx, accessInfo, reader); err != nil {
			return fmt.Errorf("failed to mirror to S3: %w", err)
		}
	case "gcs":
		if err := uploadToGCS(ctx, accessInfo, reader); err != nil {
			return fmt.Errorf("failed to mirror to GCS: %w", err)
		}
	case "sftp":
		if err := uploadToSFTP(ctx, accessInfo, reader); err != nil {
			return fmt.Errorf("failed to mirror to SFTP: %w", err)
		}
	default:
		return fmt.Errorf("unknown mirror backend: %s", backendType)
	}
	return nil
}
