package storage

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/rs/zerolog/log"
)

// StoredFile describes an uploaded asset file.
type StoredFile struct {
	URL         string
	SizeBytes   int64
	ContentType string
}

type Storage interface {
	SaveFile(ctx context.Context, fileHeader *multipart.FileHeader) (StoredFile, error)
}

type LocalStorage struct {
	uploadDir string
	// publicPrefix is the URL path the upload dir is served under.
	publicPrefix string
}

type SpacesStorage struct {
	client *s3.S3
	bucket string
	cdnURL string
}

func NewLocalStorage(uploadDir, publicPrefix string) *LocalStorage {
	return &LocalStorage{uploadDir: uploadDir, publicPrefix: strings.TrimSuffix(publicPrefix, "/")}
}

func (ls *LocalStorage) Dir() string { return ls.uploadDir }

func NewSpacesStorage(endpoint, region, bucket, cdnURL, accessKey, secretKey string) (*SpacesStorage, error) {
	config := &aws.Config{
		Credentials:      credentials.NewStaticCredentials(accessKey, secretKey, ""),
		Endpoint:         aws.String(endpoint),
		Region:           aws.String(region),
		S3ForcePathStyle: aws.Bool(false),
	}

	sess, err := session.NewSession(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &SpacesStorage{
		client: s3.New(sess),
		bucket: bucket,
		cdnURL: cdnURL,
	}, nil
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// normalizeFilename creates a unique, normalized filename without spaces
func normalizeFilename(originalFilename string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(originalFilename))
	baseName := strings.TrimSuffix(filepath.Base(originalFilename), filepath.Ext(originalFilename))
	baseName = strings.ReplaceAll(baseName, " ", "_")
	baseName = unsafeChars.ReplaceAllString(baseName, "")
	if baseName == "" {
		baseName = "file"
	}
	return fmt.Sprintf("%s_%s%s", baseName, now.Format("20060102_150405.000000"), ext)
}

// ContentType prefers the multipart header and falls back to the extension.
func ContentType(fileHeader *multipart.FileHeader) string {
	if ct := fileHeader.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" {
		return ct
	}
	return contentTypeFromExt(fileHeader.Filename)
}

func (ls *LocalStorage) SaveFile(ctx context.Context, fileHeader *multipart.FileHeader) (StoredFile, error) {
	name := normalizeFilename(fileHeader.Filename, time.Now())
	log.Debug().Str("original", fileHeader.Filename).Str("normalized", name).Msg("[storage] upload normalized")

	if err := os.MkdirAll(ls.uploadDir, 0o755); err != nil {
		return StoredFile{}, fmt.Errorf("failed to create upload directory: %w", err)
	}

	src, err := fileHeader.Open()
	if err != nil {
		return StoredFile{}, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(ls.uploadDir, name))
	if err != nil {
		return StoredFile{}, fmt.Errorf("failed to create destination file: %w", err)
	}
	defer dst.Close()

	n, err := io.Copy(dst, src)
	if err != nil {
		return StoredFile{}, fmt.Errorf("failed to save file: %w", err)
	}

	return StoredFile{
		URL:         ls.publicPrefix + "/" + name,
		SizeBytes:   n,
		ContentType: ContentType(fileHeader),
	}, nil
}

func (ss *SpacesStorage) SaveFile(ctx context.Context, fileHeader *multipart.FileHeader) (StoredFile, error) {
	name := normalizeFilename(fileHeader.Filename, time.Now())
	log.Debug().Str("original", fileHeader.Filename).Str("normalized", name).Msg("[storage] upload normalized")

	src, err := fileHeader.Open()
	if err != nil {
		return StoredFile{}, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	key := "uploads/" + name
	contentType := ContentType(fileHeader)

	_, err = ss.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(ss.bucket),
		Key:         aws.String(key),
		Body:        src,
		ContentType: aws.String(contentType),
		ACL:         aws.String("public-read"),
	})
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("[storage] failed to upload file to Spaces")
		return StoredFile{}, fmt.Errorf("failed to upload to Spaces: %w", err)
	}

	return StoredFile{
		URL:         fmt.Sprintf("%s/%s", strings.TrimSuffix(ss.cdnURL, "/"), key),
		SizeBytes:   fileHeader.Size,
		ContentType: contentType,
	}, nil
}

func contentTypeFromExt(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".avi":
		return "video/x-msvideo"
	case ".mov":
		return "video/quicktime"
	case ".html", ".htm":
		return "text/html"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
