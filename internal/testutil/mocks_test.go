// --- START OF FINAL REVISED FILE internal/testutil/mocks_test.go ---
package testutil_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stackvity/dicom-extractor/internal/testutil"
	"github.com/stackvity/dicom-extractor/pkg/extractor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The testify mocks only record calls; MemorySink has enough logic of its
// own to be worth checking.

func TestMemorySink(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")
	s := &testutil.MemorySink{FailOnAppend: 2, AppendErr: boom}

	a := extractor.NewRecord("/a")
	a.Set("X", 1)
	b := extractor.NewRecord("/b")
	b.Set("Y", 2)

	require.NoError(t, s.Append(ctx, extractor.Batch{a}))
	assert.ErrorIs(t, s.Append(ctx, extractor.Batch{b}), boom)
	require.NoError(t, s.Append(ctx, extractor.Batch{b}))

	res, err := s.Finalize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, []string{extractor.PathField, "X", "Y"}, res.Columns)
	assert.Len(t, s.Records(), 2)
	assert.Equal(t, 1, s.Finalized)
}

func TestEncodeDICOM_Layout(t *testing.T) {
	data := testutil.EncodeDICOM(testutil.DICOMOptions{}, testutil.Text(0x0008, 0x0060, "CS", "MR"))
	require.Greater(t, len(data), 132)
	assert.Equal(t, "DICM", string(data[128:132]))
	assert.Equal(t, []byte{0x02, 0x00, 0x00, 0x00, 'U', 'L'}, data[132:138])

	truncated := testutil.EncodeDICOM(testutil.DICOMOptions{TruncateBy: 2}, testutil.Text(0x0008, 0x0060, "CS", "MR"))
	assert.Len(t, truncated, len(data)-2)
}

// --- END OF FINAL REVISED FILE internal/testutil/mocks_test.go ---
