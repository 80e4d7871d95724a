// --- START OF FINAL REVISED FILE pkg/extractor/dicom/dicom_test.go ---
package dicom_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stackvity/dicom-extractor/internal/testutil"
	"github.com/stackvity/dicom-extractor/pkg/extractor"
	"github.com/stackvity/dicom-extractor/pkg/extractor/dicom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	keyPatientName = "Patient's Name (0010, 0010)"
	keyModality    = "Modality (0008, 0060)"
	keyRows        = "Rows (0028, 0010)"
	keySpacing     = "Pixel Spacing (0028, 0030)"
)

func basicElements() []testutil.DICOMElement {
	return []testutil.DICOMElement{
		testutil.Text(0x0008, 0x0060, "CS", "MR"),
		testutil.Text(0x0010, 0x0010, "PN", "Doe^John"),
		testutil.Uint16s(0x0028, 0x0010, 512),
		testutil.Text(0x0028, 0x0030, "DS", `0.5\0.5`),
	}
}

func extract(t *testing.T, opts dicom.Options, data []byte) (*extractor.Record, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "image.dcm")
	testutil.CreateDummyFile(t, path, string(data))
	ex, err := dicom.New(opts)
	require.NoError(t, err)
	return ex.Extract(context.Background(), path)
}

func get(t *testing.T, rec *extractor.Record, key string) any {
	t.Helper()
	v, ok := rec.Get(key)
	require.True(t, ok, "missing key %q in %v", key, rec.Keys())
	return v
}

func TestExtract_TransferSyntaxes(t *testing.T) {
	syntaxes := map[string]string{
		"explicit little endian": testutil.ExplicitVRLittleEndian,
		"implicit little endian": testutil.ImplicitVRLittleEndian,
		"explicit big endian":    testutil.ExplicitVRBigEndian,
		"deflated":               testutil.DeflatedExplicitVRLE,
	}
	for name, ts := range syntaxes {
		t.Run(name, func(t *testing.T) {
			rec, err := extract(t, dicom.Options{}, testutil.EncodeDICOM(testutil.DICOMOptions{TransferSyntax: ts}, basicElements()...))
			require.NoError(t, err)

			assert.Equal(t, extractor.PathField, rec.Keys()[0])
			assert.Equal(t, "MR", get(t, rec, keyModality))
			assert.Equal(t, "Doe^John", get(t, rec, keyPatientName))
			assert.Equal(t, int64(512), get(t, rec, keyRows))
			assert.Equal(t, `["0.5", "0.5"]`, get(t, rec, keySpacing))
		})
	}
}

func TestExtract_NoFileMetaGuessesEncoding(t *testing.T) {
	data := testutil.EncodeDICOM(testutil.DICOMOptions{OmitMeta: true, TransferSyntax: testutil.ImplicitVRLittleEndian}, basicElements()...)
	rec, err := extract(t, dicom.Options{}, data)
	require.NoError(t, err)
	assert.Equal(t, "Doe^John", get(t, rec, keyPatientName))
	assert.Equal(t, int64(512), get(t, rec, keyRows))
}

func TestExtract_MultiValuedNumbers(t *testing.T) {
	rec, err := extract(t, dicom.Options{}, testutil.EncodeDICOM(testutil.DICOMOptions{},
		testutil.Uint16s(0x0028, 0x0010, 1, 2, 3),
	))
	require.NoError(t, err)
	assert.Equal(t, "[1, 2, 3]", get(t, rec, keyRows))
}

func TestExtract_SequencesAreFlattened(t *testing.T) {
	for _, undefined := range []bool{false, true} {
		name := "definite length"
		if undefined {
			name = "undefined length"
		}
		t.Run(name, func(t *testing.T) {
			data := testutil.EncodeDICOM(testutil.DICOMOptions{},
				testutil.Sequence(0x0008, 0x1140, undefined,
					[]testutil.DICOMElement{testutil.Text(0x0008, 0x1155, "UI", "1.2.3")},
					[]testutil.DICOMElement{testutil.Text(0x0008, 0x1150, "UI", "1.2.840.10008.5.1.4.1.1.4")},
				),
				testutil.Text(0x0008, 0x0060, "CS", "CT"),
			)
			rec, err := extract(t, dicom.Options{}, data)
			require.NoError(t, err)

			prefix := "Referenced Image Sequence (0008, 1140) - "
			assert.Equal(t, "1.2.3", get(t, rec, prefix+"Referenced SOP Instance UID (0008, 1155)"))
			assert.Equal(t, "1.2.840.10008.5.1.4.1.1.4", get(t, rec, prefix+"Referenced SOP Class UID (0008, 1150)"))
			assert.Equal(t, "CT", get(t, rec, keyModality), "elements after the sequence are still read")
			_, hasSeq := rec.Get("Referenced Image Sequence (0008, 1140)")
			assert.False(t, hasSeq, "sequence elements have no value of their own")
		})
	}
}

func TestExtract_ExcludedGroupsAndPixelData(t *testing.T) {
	data := testutil.EncodeDICOM(testutil.DICOMOptions{},
		testutil.Text(0x0008, 0x0060, "CS", "MR"),
		testutil.Bytes(0x6000, 0x3000, "OW", []byte{1, 2, 3, 4}),
		testutil.Bytes(0x7FE0, 0x0010, "OW", []byte{9, 9, 9, 9}),
		testutil.Text(0x7FE1, 0x0010, "LO", "AFTER"),
	)
	rec, err := extract(t, dicom.Options{}, data)
	require.NoError(t, err)

	for _, k := range rec.Keys() {
		assert.NotContains(t, k, "(0002,", "file meta group is not part of the record")
		assert.NotContains(t, k, "(6000,", "overlay data is excluded")
		assert.NotContains(t, k, "(7FE")
	}
	assert.Equal(t, []string{extractor.PathField, keyModality}, rec.Keys())
}

func TestExtract_PrivateAndBinaryValues(t *testing.T) {
	data := testutil.EncodeDICOM(testutil.DICOMOptions{},
		testutil.Text(0x0009, 0x0010, "LO", "ACME"),
		testutil.Bytes(0x0009, 0x1001, "OB", []byte{0xDE, 0xAD}),
		testutil.Text(0x0008, 0x0050, "SH", ""),
	)
	rec, err := extract(t, dicom.Options{}, data)
	require.NoError(t, err)

	assert.Equal(t, "ACME", get(t, rec, "Private Creator (0009, 0010)"))
	assert.Equal(t, "dead", get(t, rec, "Private tag data (0009, 1001)"))
	assert.Nil(t, get(t, rec, "Accession Number (0008, 0050)"))
}

func TestExtract_SpecificCharacterSet(t *testing.T) {
	data := testutil.EncodeDICOM(testutil.DICOMOptions{},
		testutil.Text(0x0008, 0x0005, "CS", "ISO_IR 100"),
		testutil.Bytes(0x0010, 0x0010, "PN", []byte("M\xfcller^Hans ")),
	)
	rec, err := extract(t, dicom.Options{}, data)
	require.NoError(t, err)
	assert.Equal(t, "Müller^Hans", get(t, rec, keyPatientName))
	assert.Equal(t, "ISO_IR 100", get(t, rec, "Specific Character Set (0008, 0005)"))
}

func TestExtract_FailureKinds(t *testing.T) {
	t.Run("not dicom", func(t *testing.T) {
		_, err := extract(t, dicom.Options{}, []byte("plain text, not an image"))
		require.Error(t, err)
		assert.Equal(t, extractor.ErrorKindUnsupported, extractor.KindOf(err))
		assert.ErrorIs(t, err, extractor.ErrUnsupported)
	})

	t.Run("missing magic", func(t *testing.T) {
		_, err := extract(t, dicom.Options{}, make([]byte, 200))
		assert.Equal(t, extractor.ErrorKindUnsupported, extractor.KindOf(err))
	})

	t.Run("truncated", func(t *testing.T) {
		data := testutil.EncodeDICOM(testutil.DICOMOptions{TruncateBy: 3}, basicElements()...)
		_, err := extract(t, dicom.Options{}, data)
		require.Error(t, err)
		assert.Equal(t, extractor.ErrorKindMalformed, extractor.KindOf(err))
		assert.ErrorIs(t, err, extractor.ErrMalformed)
		assert.ErrorIs(t, err, extractor.ErrExtraction)
	})

	t.Run("length beyond end of file", func(t *testing.T) {
		data := testutil.EncodeDICOM(testutil.DICOMOptions{}, testutil.Text(0x0010, 0x0010, "PN", "Doe^John"))
		// Rewrite the 2-byte length of the last element to exceed the file.
		data[len(data)-10] = 0xFF
		data[len(data)-9] = 0x7F
		_, err := extract(t, dicom.Options{}, data)
		assert.Equal(t, extractor.ErrorKindMalformed, extractor.KindOf(err))
	})

	t.Run("missing file", func(t *testing.T) {
		ex, err := dicom.New(dicom.Options{})
		require.NoError(t, err)
		_, err = ex.Extract(context.Background(), filepath.Join(t.TempDir(), "absent.dcm"))
		require.Error(t, err)
		assert.Equal(t, extractor.ErrorKindIO, extractor.KindOf(err))
		var ee *extractor.ExtractError
		require.True(t, errors.As(err, &ee))
		assert.Contains(t, ee.Path, "absent.dcm")
	})
}

func TestExtract_CancelledContext(t *testing.T) {
	elems := make([]testutil.DICOMElement, 0, 200)
	for i := 0; i < 200; i++ {
		elems = append(elems, testutil.Text(0x0009, uint16(0x1000+i), "LO", "v"))
	}
	path := filepath.Join(t.TempDir(), "many.dcm")
	testutil.WriteDICOMFile(t, path, testutil.DICOMOptions{}, elems...)

	ex, err := dicom.New(dicom.Options{})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ex.Extract(ctx, path)
	require.Error(t, err)
	assert.Equal(t, extractor.ErrorKindCancelled, extractor.KindOf(err))
}

func TestExtract_TagSelection(t *testing.T) {
	data := testutil.EncodeDICOM(testutil.DICOMOptions{},
		append(basicElements(),
			testutil.Sequence(0x0008, 0x1140, false,
				[]testutil.DICOMElement{testutil.Text(0x0008, 0x1155, "UI", "1.2.3")},
			),
		)...,
	)

	t.Run("keyword", func(t *testing.T) {
		rec, err := extract(t, dicom.Options{Tags: []string{"Modality"}}, data)
		require.NoError(t, err)
		assert.Equal(t, []string{extractor.PathField, keyModality}, rec.Keys())
	})

	t.Run("tag forms", func(t *testing.T) {
		rec, err := extract(t, dicom.Options{Tags: []string{"0010,0010", "(0028, 0010)"}}, data)
		require.NoError(t, err)
		assert.Equal(t, []string{extractor.PathField, keyPatientName, keyRows}, rec.Keys())
	})

	t.Run("selected sequence keeps nested elements", func(t *testing.T) {
		rec, err := extract(t, dicom.Options{Tags: []string{"ReferencedImageSequence"}}, data)
		require.NoError(t, err)
		assert.Equal(t, []string{
			extractor.PathField,
			"Referenced Image Sequence (0008, 1140) - Referenced SOP Instance UID (0008, 1155)",
		}, rec.Keys())
	})

	t.Run("core preset", func(t *testing.T) {
		rec, err := extract(t, dicom.Options{Tags: []string{"core"}}, data)
		require.NoError(t, err)
		assert.Equal(t, []string{extractor.PathField, keyModality, keyPatientName, keyRows}, rec.Keys())
	})
}

func TestNew_RejectsUnknownKeyword(t *testing.T) {
	_, err := dicom.New(dicom.Options{Tags: []string{"NotARealKeyword"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, extractor.ErrConfigValidation)
}

func TestFingerprint_DependsOnSelection(t *testing.T) {
	all, err := dicom.New(dicom.Options{})
	require.NoError(t, err)
	some, err := dicom.New(dicom.Options{Tags: []string{"Modality"}})
	require.NoError(t, err)
	same, err := dicom.New(dicom.Options{Tags: []string{"0008,0060"}})
	require.NoError(t, err)

	assert.NotEqual(t, all.Fingerprint(), some.Fingerprint())
	assert.Equal(t, some.Fingerprint(), same.Fingerprint())
	var _ extractor.Fingerprinter = all
	var _ extractor.FieldExtractor = all
}

func TestParseTag(t *testing.T) {
	for _, in := range []string{"0010,0010", "(0010, 0010)", "00100010", " 0010,0010 "} {
		tag, err := dicom.ParseTag(in)
		require.NoError(t, err, in)
		assert.Equal(t, dicom.NewTag(0x0010, 0x0010), tag)
		assert.Equal(t, "(0010, 0010)", tag.String())
	}
	_, err := dicom.ParseTag("0010")
	assert.Error(t, err)
	_, err = dicom.ParseTag("zzzz,zzzz")
	assert.Error(t, err)
}

// --- END OF FINAL REVISED FILE pkg/extractor/dicom/dicom_test.go ---
