package s3

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/dittowopi/pkg/store/content"
)

// maxDeleteObjects is the DeleteObjects per-request limit.
const maxDeleteObjects = 1000

// ListContent pages through every object under the key prefix.
func (s *S3ContentStore) ListContent(ctx context.Context) (ids []content.ContentID, err error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveOperation("ListContent", time.Since(start), err)
	}()

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.keyPrefix),
	})

	for paginator.HasMorePages() {
		if err = ctx.Err(); err != nil {
			return nil, err
		}

		page, perr := paginator.NextPage(ctx)
		if perr != nil {
			err = fmt.Errorf("failed to list objects: %w", perr)
			return nil, err
		}

		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			ids = append(ids, s.contentIDFromKey(*obj.Key))
		}
	}

	return ids, nil
}

// DeleteBatch removes ids with DeleteObjects, chunked to the S3 limit.
// A chunk whose request fails marks all of its ids as failed and the
// remaining chunks are still attempted.
func (s *S3ContentStore) DeleteBatch(ctx context.Context, ids []content.ContentID) (failures map[content.ContentID]error, err error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveOperation("DeleteBatch", time.Since(start), err)
	}()

	failures = make(map[content.ContentID]error)

	for i := 0; i < len(ids); i += maxDeleteObjects {
		if err = ctx.Err(); err != nil {
			for _, id := range ids[i:] {
				failures[id] = err
			}
			return failures, err
		}

		batch := ids[i:min(i+maxDeleteObjects, len(ids))]

		objects := make([]types.ObjectIdentifier, len(batch))
		for j, id := range batch {
			objects[j] = types.ObjectIdentifier{Key: aws.String(s.getObjectKey(id))}
		}

		result, derr := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{
				Objects: objects,
				Quiet:   aws.Bool(true),
			},
		})
		if derr != nil {
			for _, id := range batch {
				failures[id] = derr
			}
			continue
		}

		for _, e := range result.Errors {
			if e.Key == nil {
				continue
			}
			failures[s.contentIDFromKey(*e.Key)] = fmt.Errorf("%s: %s", aws.ToString(e.Code), aws.ToString(e.Message))
		}
	}

	return failures, nil
}

func (s *S3ContentStore) contentIDFromKey(key string) content.ContentID {
	return content.ContentID(strings.TrimPrefix(key, s.keyPrefix))
}
