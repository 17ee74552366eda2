// Package files stores uploaded attachments and tracks which keys are still
// referenced by application data.
package files

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sitework/sitework/internal/apperr"
	"github.com/sitework/sitework/internal/storage"
	"github.com/sitework/sitework/pkg/logger"
)

// Reference records that a document uses an object. Uploads that are never
// referenced here, nor by a material spec or site report, become orphans.
type Reference struct {
	Bucket       string    `json:"bucket" db:"bucket"`
	Key          string    `json:"key" db:"object_key"`
	DocumentType string    `json:"documentType" db:"document_type"`
	DocumentID   string    `json:"documentId" db:"document_id"`
	UploadedBy   string    `json:"uploadedBy" db:"uploaded_by"`
	ContentType  string    `json:"contentType" db:"content_type"`
	Size         int64     `json:"size" db:"size"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

type ReferenceStore interface {
	Add(ctx context.Context, ref Reference) error
}

// DocumentChecker returns an error when documentType/documentID does not name
// a stored document. Validation and not-found errors mean "gone".
type DocumentChecker interface {
	DocumentExists(ctx context.Context, documentType, documentID string) error
}

// Upload is one file received from a client.
type Upload struct {
	Bucket       string
	Filename     string
	ContentType  string
	Size         int64
	Body         io.Reader
	DocumentType string
	DocumentID   string
}

type Service struct {
	store   storage.ObjectStore
	refs    ReferenceStore
	docs    DocumentChecker
	buckets map[string]bool
	def     string
	expires time.Duration
	now     func() time.Time
}

// NewService accepts uploads into the listed buckets only. The first bucket is
// the default.
func NewService(store storage.ObjectStore, refs ReferenceStore, buckets []string) *Service {
	s := &Service{store: store, refs: refs, buckets: map[string]bool{}, expires: 15 * time.Minute, now: func() time.Time { return time.Now().UTC() }}
	for _, b := range buckets {
		s.buckets[b] = true
	}
	if len(buckets) > 0 {
		s.def = buckets[0]
	}
	return s
}

// WithDocuments makes Put refuse references to documents that do not exist.
func (s *Service) WithDocuments(d DocumentChecker) *Service {
	s.docs = d
	return s
}

func (s *Service) bucket(name string) (string, error) {
	if name == "" {
		name = s.def
	}
	if !s.buckets[name] {
		return "", apperr.Field("bucket", "unknown bucket")
	}
	return name, nil
}

// Put stores the upload under a fresh key and, when the upload names a
// document, records the reference.
func (s *Service) Put(ctx context.Context, uploader string, up Upload) (*Reference, error) {
	bucket, err := s.bucket(up.Bucket)
	if err != nil {
		return nil, err
	}
	if up.Size <= 0 {
		return nil, apperr.Field("file", "is empty")
	}
	if (up.DocumentType == "") != (up.DocumentID == "") {
		return nil, apperr.Field("documentId", "documentType and documentId go together")
	}
	if up.DocumentID != "" && s.docs != nil {
		if err := s.docs.DocumentExists(ctx, up.DocumentType, up.DocumentID); err != nil {
			return nil, err
		}
	}
	now := s.now()
	key := fmt.Sprintf("%s/%s%s", now.Format("2006/01/02"), uuid.NewString(), strings.ToLower(path.Ext(up.Filename)))
	contentType := up.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := s.store.Put(ctx, bucket, key, up.Body, up.Size, contentType); err != nil {
		return nil, apperr.Internal("store upload", err)
	}
	ref := &Reference{
		Bucket: bucket, Key: key, DocumentType: up.DocumentType, DocumentID: up.DocumentID,
		UploadedBy: uploader, ContentType: contentType, Size: up.Size, CreatedAt: now,
	}
	if up.DocumentID != "" {
		if err := s.refs.Add(ctx, *ref); err != nil {
			return nil, err
		}
	}
	logger.With(logger.Fields{"bucket": bucket, "key": key, "user": uploader}).Infof("file uploaded")
	return ref, nil
}

// URL returns a time-limited download link.
func (s *Service) URL(ctx context.Context, bucket, key string) (string, time.Time, error) {
	bucket, err := s.bucket(bucket)
	if err != nil {
		return "", time.Time{}, err
	}
	key = strings.TrimPrefix(key, "/")
	if key == "" || strings.Contains(key, "..") {
		return "", time.Time{}, apperr.Field("key", "invalid object key")
	}
	u, err := s.store.PresignGet(ctx, bucket, key, s.expires)
	if err != nil {
		return "", time.Time{}, err
	}
	return u, s.now().Add(s.expires), nil
}
