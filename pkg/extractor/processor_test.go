// --- START OF FINAL REVISED FILE pkg/extractor/processor_test.go ---
package extractor_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stackvity/dicom-extractor/internal/testutil"
	"github.com/stackvity/dicom-extractor/pkg/extractor"
	"github.com/stackvity/dicom-extractor/pkg/extractor/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newProcessor(t *testing.T, ex extractor.FieldExtractor, mutate func(*extractor.Options)) (*extractor.FileProcessor, *recordingHooks) {
	t.Helper()
	hooks := &recordingHooks{}
	opts := &extractor.Options{
		Extractor:   ex,
		FileTimeout: time.Second,
		EventHooks:  hooks,
	}
	if mutate != nil {
		mutate(opts)
	}
	handler, _ := testutil.BufferLogger()
	return extractor.NewFileProcessor(opts, handler, opts.CacheManager), hooks
}

func TestProcessFile_Success(t *testing.T) {
	rec := extractor.NewRecord("/data/a.dcm")
	rec.Set("Modality (0008, 0060)", "MR")
	mockEx := &testutil.MockFieldExtractor{}
	mockEx.On("Extract", mock.Anything, "/data/a.dcm").Return(rec, nil).Once()

	p, hooks := newProcessor(t, mockEx, nil)
	out := p.ProcessFile(context.Background(), "/data/a.dcm")

	require.True(t, out.Succeeded())
	assert.Same(t, rec, out.Record)
	assert.False(t, out.Cached)
	assert.Equal(t, extractor.StatusSuccess, hooks.status("/data/a.dcm"))
	mockEx.AssertExpectations(t)
}

func TestProcessFile_FailureKinds(t *testing.T) {
	tests := []struct {
		name string
		fn   extractor.FieldExtractorFunc
		want extractor.ErrorKind
	}{
		{
			name: "typed malformed",
			fn: func(ctx context.Context, path string) (*extractor.Record, error) {
				return nil, extractor.NewExtractError(extractor.ErrorKindMalformed, path, errors.New("bad length"))
			},
			want: extractor.ErrorKindMalformed,
		},
		{
			name: "wrapped sentinel",
			fn: func(ctx context.Context, path string) (*extractor.Record, error) {
				return nil, errors.Join(extractor.ErrUnsupported, errors.New("no magic"))
			},
			want: extractor.ErrorKindUnsupported,
		},
		{
			name: "plain error",
			fn: func(ctx context.Context, path string) (*extractor.Record, error) {
				return nil, errors.New("something odd")
			},
			want: extractor.ErrorKindUnknown,
		},
		{
			name: "nil record without error",
			fn: func(ctx context.Context, path string) (*extractor.Record, error) {
				return nil, nil
			},
			want: extractor.ErrorKindUnknown,
		},
		{
			name: "panic",
			fn: func(ctx context.Context, path string) (*extractor.Record, error) {
				panic("corrupt header")
			},
			want: extractor.ErrorKindPanic,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, hooks := newProcessor(t, tc.fn, nil)
			out := p.ProcessFile(context.Background(), "/data/x.dcm")
			require.False(t, out.Succeeded())
			require.NotNil(t, out.Failure)
			assert.Equal(t, tc.want, out.Failure.Kind)
			assert.Equal(t, "/data/x.dcm", out.Failure.Path)
			assert.NotEmpty(t, out.Failure.Message)
			assert.Equal(t, extractor.StatusFailed, hooks.status("/data/x.dcm"))
		})
	}
}

func TestProcessFile_TimeoutEvenWhenExtractorIgnoresContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	stuck := extractor.FieldExtractorFunc(func(ctx context.Context, path string) (*extractor.Record, error) {
		<-release
		return extractor.NewRecord(path), nil
	})
	p, _ := newProcessor(t, stuck, func(o *extractor.Options) { o.FileTimeout = 30 * time.Millisecond })

	start := time.Now()
	out := p.ProcessFile(context.Background(), "/data/slow.dcm")
	require.NotNil(t, out.Failure)
	assert.Equal(t, extractor.ErrorKindTimeout, out.Failure.Kind)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestProcessFile_TimeoutReportedByExtractor(t *testing.T) {
	polite := extractor.FieldExtractorFunc(func(ctx context.Context, path string) (*extractor.Record, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	p, _ := newProcessor(t, polite, func(o *extractor.Options) { o.FileTimeout = 20 * time.Millisecond })
	out := p.ProcessFile(context.Background(), "/data/slow.dcm")
	require.NotNil(t, out.Failure)
	assert.Equal(t, extractor.ErrorKindTimeout, out.Failure.Kind)
}

func TestProcessFile_Cache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.dcm")
	testutil.CreateDummyFile(t, path, "content")

	t.Run("hit skips extractor", func(t *testing.T) {
		mockEx := &testutil.MockFieldExtractor{}
		mockCache := &testutil.MockCacheManager{}
		mockCache.On("Check", path, mock.Anything, int64(7), mock.Anything).Return([]cache.Field{
			{Key: extractor.PathField, Value: path},
			{Key: "Modality (0008, 0060)", Value: "CT"},
			{Key: "Accession Number (0008, 0050)", Null: true},
		}, true).Once()

		p, hooks := newProcessor(t, mockEx, func(o *extractor.Options) {
			o.CacheEnabled = true
			o.CacheManager = mockCache
		})
		out := p.ProcessFile(context.Background(), path)

		require.True(t, out.Succeeded())
		assert.True(t, out.Cached)
		assert.Equal(t, []string{extractor.PathField, "Modality (0008, 0060)", "Accession Number (0008, 0050)"}, out.Record.Keys())
		v, _ := out.Record.Get("Accession Number (0008, 0050)")
		assert.Nil(t, v)
		assert.Equal(t, extractor.StatusCached, hooks.status(path))
		mockEx.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
		mockCache.AssertExpectations(t)
	})

	t.Run("miss extracts and updates", func(t *testing.T) {
		rec := extractor.NewRecord(path)
		rec.Set("Rows (0028, 0010)", int64(256))
		mockEx := &testutil.MockFieldExtractor{}
		mockEx.On("Extract", mock.Anything, path).Return(rec, nil).Once()
		mockCache := &testutil.MockCacheManager{}
		mockCache.On("Check", path, mock.Anything, int64(7), mock.Anything).Return(nil, false).Once()
		mockCache.On("Update", path, mock.Anything, int64(7), mock.Anything, []cache.Field{
			{Key: extractor.PathField, Value: path},
			{Key: "Rows (0028, 0010)", Value: "256"},
		}).Return(nil).Once()

		p, _ := newProcessor(t, mockEx, func(o *extractor.Options) {
			o.CacheEnabled = true
			o.CacheManager = mockCache
		})
		out := p.ProcessFile(context.Background(), path)
		require.True(t, out.Succeeded())
		assert.False(t, out.Cached)
		mockEx.AssertExpectations(t)
		mockCache.AssertExpectations(t)
	})

	t.Run("failures are not cached", func(t *testing.T) {
		mockCache := &testutil.MockCacheManager{}
		mockCache.On("Check", path, mock.Anything, int64(7), mock.Anything).Return(nil, false).Once()
		failing := extractor.FieldExtractorFunc(func(ctx context.Context, p string) (*extractor.Record, error) {
			return nil, extractor.NewExtractError(extractor.ErrorKindMalformed, p, nil)
		})
		p, _ := newProcessor(t, failing, func(o *extractor.Options) {
			o.CacheEnabled = true
			o.CacheManager = mockCache
		})
		out := p.ProcessFile(context.Background(), path)
		require.NotNil(t, out.Failure)
		mockCache.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

// --- END OF FINAL REVISED FILE pkg/extractor/processor_test.go ---
