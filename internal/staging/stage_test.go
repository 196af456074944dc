package staging

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmaguard-client/internal/domain"
)

func TestStage_IsReady(t *testing.T) {
	tests := []struct {
		name  string
		file  domain.Blob
		drug  string
		ready bool
	}{
		{name: "nothing staged", ready: false},
		{name: "file only", file: NewMemoryBlob("sample.vcf", nil), ready: false},
		{name: "drug only", drug: "WARFARIN", ready: false},
		{name: "both", file: NewMemoryBlob("sample.vcf", nil), drug: "WARFARIN", ready: true},
		{name: "whitespace drug is passed through", file: NewMemoryBlob("sample.vcf", nil), drug: " ", ready: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			if tt.file != nil {
				s.SetFile(tt.file)
			}
			s.SetDrugName(tt.drug)
			assert.Equal(t, tt.ready, s.IsReady())
		})
	}
}

func TestStage_SetDrugNameVerbatim(t *testing.T) {
	s := New()
	s.SetDrugName("  warfarin ")
	assert.Equal(t, "  warfarin ", s.DrugName())
}

func TestStage_SetFileDoesNotEnforceExtension(t *testing.T) {
	s := New()
	s.SetFile(NewMemoryBlob("notes.txt", []byte("x")))
	require.NotNil(t, s.File())
	assert.Equal(t, "notes.txt", s.File().Name())
	assert.False(t, AcceptsFile("notes.txt"))
}

func TestAcceptsFile(t *testing.T) {
	assert.True(t, AcceptsFile("sample.vcf"))
	assert.True(t, AcceptsFile("SAMPLE.VCF"))
	assert.False(t, AcceptsFile("sample.vcf.gz"))
	assert.False(t, AcceptsFile("vcf"))
}

func TestStage_HandleDrag(t *testing.T) {
	s := New()

	for _, typ := range []DragEventType{DragEnter, DragOver} {
		out := s.HandleDrag(DragEvent{Type: typ})
		assert.True(t, out.PreventDefault)
		assert.True(t, out.StopPropagation)
		assert.True(t, s.DragActive())
	}

	out := s.HandleDrag(DragEvent{Type: DragLeave})
	assert.True(t, out.PreventDefault)
	assert.False(t, s.DragActive())
	assert.Nil(t, s.File())
}

func TestStage_DropStagesFirstFileOnly(t *testing.T) {
	s := New()
	first := NewMemoryBlob("first.vcf", []byte("a"))
	second := NewMemoryBlob("second.vcf", []byte("b"))

	s.HandleDrag(DragEvent{Type: DragEnter})
	out := s.HandleDrag(DragEvent{Type: Drop, Files: []domain.Blob{first, second}})

	assert.True(t, out.PreventDefault)
	assert.True(t, out.StopPropagation)
	assert.Same(t, first, out.Staged)
	assert.Same(t, first, s.File())
	assert.False(t, s.DragActive())
}

func TestStage_EmptyDropKeepsCurrentFile(t *testing.T) {
	s := New()
	current := NewMemoryBlob("current.vcf", nil)
	s.SetFile(current)

	out := s.HandleDrag(DragEvent{Type: Drop})

	assert.True(t, out.PreventDefault)
	assert.Nil(t, out.Staged)
	assert.Same(t, current, s.File())
}

func TestFileBlob(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.vcf")
	require.NoError(t, os.WriteFile(path, []byte("##fileformat=VCFv4.2\n"), 0o644))

	b, err := NewFileBlob(path)
	require.NoError(t, err)
	assert.Equal(t, "sample.vcf", b.Name())
	assert.Equal(t, int64(21), b.Size())

	for i := 0; i < 2; i++ {
		rc, err := b.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		assert.Equal(t, "##fileformat=VCFv4.2\n", string(data))
	}

	_, err = NewFileBlob(filepath.Join(dir, "missing.vcf"))
	assert.Error(t, err)

	_, err = NewFileBlob(dir)
	assert.Error(t, err)
}
