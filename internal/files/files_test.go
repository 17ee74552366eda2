package files

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sitework/sitework/internal/apperr"
	"github.com/sitework/sitework/internal/storage"
	"github.com/stretchr/testify/require"
)

func TestPutStoresAndRecordsReference(t *testing.T) {
	store := storage.NewMemoryStore()
	refs := NewMemoryReferences()
	svc := NewService(store, refs, []string{"attachments", "photos"})
	ctx := context.Background()

	ref, err := svc.Put(ctx, "u1", Upload{Filename: "Plan.PDF", Size: 4, Body: strings.NewReader("data"), DocumentType: "drawing", DocumentID: "d1"})
	require.NoError(t, err)
	require.Equal(t, "attachments", ref.Bucket)
	require.True(t, strings.HasSuffix(ref.Key, ".pdf"))
	require.Equal(t, "application/octet-stream", ref.ContentType)
	require.True(t, store.Has("attachments", ref.Key))

	keys, err := refs.ReferencedKeys(ctx)
	require.NoError(t, err)
	require.True(t, keys[ref.Key])

	// a bare upload is stored but not referenced
	bare, err := svc.Put(ctx, "u1", Upload{Bucket: "photos", Filename: "a.jpg", ContentType: "image/jpeg", Size: 1, Body: strings.NewReader("x")})
	require.NoError(t, err)
	keys, err = refs.ReferencedKeys(ctx)
	require.NoError(t, err)
	require.False(t, keys[bare.Key])

	url, _, err := svc.URL(ctx, "photos", "/"+bare.Key)
	require.NoError(t, err)
	require.Contains(t, url, bare.Key)
}

func TestPutValidation(t *testing.T) {
	svc := NewService(storage.NewMemoryStore(), NewMemoryReferences(), []string{"attachments"})
	ctx := context.Background()

	_, err := svc.Put(ctx, "u1", Upload{Bucket: "secrets", Size: 1, Body: strings.NewReader("x")})
	require.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = svc.Put(ctx, "u1", Upload{Size: 0, Body: strings.NewReader("")})
	require.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = svc.Put(ctx, "u1", Upload{Size: 1, Body: strings.NewReader("x"), DocumentID: "d1"})
	require.True(t, apperr.Is(err, apperr.KindValidation))

	_, _, err = svc.URL(ctx, "attachments", "../etc/passwd")
	require.True(t, apperr.Is(err, apperr.KindValidation))
	_, _, err = svc.URL(ctx, "attachments", "missing.pdf")
	require.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestReferencedKeysMergesSources(t *testing.T) {
	ctx := context.Background()
	refs := NewMemoryReferences(
		func(context.Context) ([]string, error) { return []string{"a", ""}, nil },
		func(context.Context) ([]string, error) { return []string{"b"}, nil },
	)
	keys, err := refs.ReferencedKeys(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]bool{"a": true, "b": true}, keys)

	failing := NewMemoryReferences(func(context.Context) ([]string, error) { return nil, errors.New("db down") })
	_, err = failing.ReferencedKeys(ctx)
	require.Error(t, err)
}

type knownDocs map[string]bool

func (k knownDocs) DocumentExists(_ context.Context, docType, docID string) error {
	if !k[docType+"/"+docID] {
		return apperr.Field("documentId", "does not exist")
	}
	return nil
}

func TestReferencesFollowDocumentLifetime(t *testing.T) {
	ctx := context.Background()
	docs := knownDocs{"material_spec/m1": true}
	refs := NewMemoryReferences().WithDocuments(docs)
	svc := NewService(storage.NewMemoryStore(), refs, []string{"attachments"}).WithDocuments(docs)

	_, err := svc.Put(ctx, "u1", Upload{Size: 1, Body: strings.NewReader("x"), DocumentType: "material_spec", DocumentID: "ghost"})
	require.True(t, apperr.Is(err, apperr.KindValidation))

	ref, err := svc.Put(ctx, "u1", Upload{Filename: "quote.pdf", Size: 1, Body: strings.NewReader("x"), DocumentType: "material_spec", DocumentID: "m1"})
	require.NoError(t, err)
	keys, err := refs.ReferencedKeys(ctx)
	require.NoError(t, err)
	require.True(t, keys[ref.Key])

	// the document is deleted
	delete(docs, "material_spec/m1")
	keys, err = refs.ReferencedKeys(ctx)
	require.NoError(t, err)
	require.False(t, keys[ref.Key])
}
