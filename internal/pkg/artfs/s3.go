package artfs

import (
	"fmt"
	"io"
	"math"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	lru "github.com/hashicorp/golang-lru"
	"github.com/mattetti/filebuffer"
	"github.com/pkg/errors"
)

// S3FileSystem stores shards in Amazon S3. Paths are of the form
// "s3://bucket/key". Stat results are cached, since the partitioner stats
// output shards far more often than it creates them.
type S3FileSystem struct {
	s3Client    *s3.S3
	objectCache *lru.Cache
}

func parseS3URI(uri string) (*url.URL, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, err
	}
	if parsed.Scheme != "s3" {
		return nil, errors.Errorf("invalid S3 URI: %s", uri)
	}
	parsed.Path = strings.TrimPrefix(parsed.Path, "/")
	return parsed, nil
}

func (s *S3FileSystem) ListFiles(pathGlob string) ([]FileInfo, error) {
	parsed, err := parseS3URI(pathGlob)
	if err != nil {
		return nil, err
	}

	// S3 has no native globbing; list by the longest literal prefix and
	// filter client-side.
	baseURI := parsed.Path
	if globIdx := strings.IndexAny(baseURI, "*?["); globIdx != -1 {
		baseURI = baseURI[:globIdx]
	}

	s3Files := make([]FileInfo, 0)
	params := &s3.ListObjectsInput{
		Bucket: aws.String(parsed.Hostname()),
		Prefix: aws.String(baseURI),
	}
	err = s.s3Client.ListObjectsPages(params,
		func(page *s3.ListObjectsOutput, _ bool) bool {
			for _, object := range page.Contents {
				fullPath := fmt.Sprintf("s3://%s/%s", parsed.Hostname(), *object.Key)
				if matched, _ := path.Match(pathGlob, fullPath); !matched {
					continue
				}
				fInfo := FileInfo{
					Name: fullPath,
					Size: *object.Size,
				}
				s3Files = append(s3Files, fInfo)
				s.objectCache.Add(fInfo.Name, fInfo)
			}
			return true
		})

	return s3Files, err
}

func (s *S3FileSystem) OpenReader(filePath string) (io.ReadCloser, error) {
	parsed, err := parseS3URI(filePath)
	if err != nil {
		return nil, err
	}

	objStat, err := s.Stat(filePath)
	if err != nil {
		return nil, err
	}

	reader := &s3Reader{
		client:    s.s3Client,
		bucket:    parsed.Hostname(),
		key:       parsed.Path,
		chunkSize: 20 * 1024 * 1024, // Read in 20Mb chunks
		totalSize: objStat.Size,
	}
	err = reader.loadNextChunk()
	return reader, err
}

func (s *S3FileSystem) OpenWriter(filePath string) (io.WriteCloser, error) {
	parsed, err := parseS3URI(filePath)
	if err != nil {
		return nil, err
	}

	writer := &s3Writer{
		client: s.s3Client,
		bucket: parsed.Hostname(),
		key:    parsed.Path,
		buf:    filebuffer.New(nil),
	}
	return writer, nil
}

func (s *S3FileSystem) Stat(filePath string) (FileInfo, error) {
	if cached, exists := s.objectCache.Get(filePath); exists {
		return cached.(FileInfo), nil
	}

	parsed, err := parseS3URI(filePath)
	if err != nil {
		return FileInfo{}, err
	}

	params := &s3.ListObjectsInput{
		Bucket: aws.String(parsed.Hostname()),
		Prefix: aws.String(parsed.Path),
	}
	result, err := s.s3Client.ListObjects(params)
	if err != nil {
		return FileInfo{}, err
	}

	for _, object := range result.Contents {
		if *object.Key == parsed.Path {
			fInfo := FileInfo{
				Name: filePath,
				Size: *object.Size,
			}
			s.objectCache.Add(filePath, fInfo)
			return fInfo, nil
		}
	}

	return FileInfo{}, errors.Errorf("no file with key: %s", parsed.Path)
}

// DiskUsage on S3 never reports exhaustion; bucket capacity is not a
// resource the partitioner can run out of.
func (s *S3FileSystem) DiskUsage(location string) (DiskUsageInfo, error) {
	return DiskUsageInfo{
		Total: math.MaxInt64,
		Used:  0,
		Free:  math.MaxInt64,
	}, nil
}

func (s *S3FileSystem) Join(elem ...string) string {
	stripped := make([]string, len(elem))
	for i, str := range elem {
		stripped[i] = strings.TrimSuffix(str, "/")
	}
	return strings.Join(stripped, "/")
}

func (s *S3FileSystem) Init() error {
	sess, err := session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return err
	}
	s.s3Client = s3.New(sess)

	s.objectCache, err = lru.New(2048)
	return err
}
