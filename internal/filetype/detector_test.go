package filetype

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPDFMediaType(t *testing.T) {
	tests := []struct {
		declared string
		want     bool
	}{
		{"application/pdf", true},
		{"Application/PDF", true},
		{"application/pdf; charset=binary", true},
		{"image/png", false},
		{"", false},
		{"application/x-pdf-ish", false},
	}
	for _, tt := range tests {
		t.Run(tt.declared, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPDFMediaType(tt.declared))
		})
	}
}

func TestDetect_MagicBytes(t *testing.T) {
	dir := t.TempDir()
	pdf := filepath.Join(dir, "paper.bin")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n"), 0o644))
	txt := filepath.Join(dir, "paper.pdf")
	require.NoError(t, os.WriteFile(txt, []byte("just some text pretending"), 0o644))

	d := New()

	info, err := d.Detect(pdf)
	require.NoError(t, err)
	assert.True(t, info.Supported)
	assert.Equal(t, PDFMediaType, info.MIMEType)

	info, err = d.Detect(txt)
	require.NoError(t, err)
	assert.False(t, info.Supported, "extension must not matter")
}

func TestDetect_MissingFile(t *testing.T) {
	_, err := New().Detect(filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}
