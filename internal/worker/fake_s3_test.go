package worker

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeS3 struct {
	puts int
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts++
	return &s3.PutObjectOutput{}, nil
}
