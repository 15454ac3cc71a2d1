package check

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestIsArchiveFile(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("plain text file", func(t *testing.T) {
		filePath := filepath.Join(tmpDir, "test.txt")
		if err := os.WriteFile(filePath, []byte("not a zip"), 0644); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
		got, err := isArchiveFile(filePath)
		if err != nil {
			t.Errorf("isArchiveFile() error = %v", err)
		}
		if got != false {
			t.Errorf("isArchiveFile() = %v, want false", got)
		}
	})

	t.Run("zip extension but invalid content", func(t *testing.T) {
		filePath := filepath.Join(tmpDir, "test.zip")
		if err := os.WriteFile(filePath, []byte("not a real zip file"), 0644); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
		got, err := isArchiveFile(filePath)
		if err != nil {
			t.Errorf("isArchiveFile() error = %v", err)
		}
		if got != false {
			t.Errorf("isArchiveFile() = %v, want false", got)
		}
	})

	t.Run("valid zip file", func(t *testing.T) {
		filePath := filepath.Join(tmpDir, "test2.zip")
		zipFile, err := os.Create(filePath)
		if err != nil {
			t.Fatalf("Failed to create zip file: %v", err)
		}
		w := zip.NewWriter(zipFile)
		f, err := w.Create("site.css")
		if err != nil {
			t.Fatalf("Failed to create file in zip: %v", err)
		}
		f.Write([]byte("header { color: red; }"))
		w.Close()
		zipFile.Close()

		got, err := isArchiveFile(filePath)
		if err != nil {
			t.Errorf("isArchiveFile() error = %v", err)
		}
		if !got {
			t.Errorf("isArchiveFile() = %v, want true", got)
		}
	})
}

func TestIsArchiveFile_NonExistent(t *testing.T) {
	_, err := isArchiveFile("/nonexistent/file.zip")
	if err == nil {
		t.Error("Expected error for non-existent file, got nil")
	}
}

func TestDetectUTF(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		want srcEncoding
	}{
		{
			name: "UTF-8 BOM",
			buf:  []byte{0xEF, 0xBB, 0xBF, 0x00},
			want: encUTF8,
		},
		{
			name: "UTF-16 Big Endian BOM",
			buf:  []byte{0xFE, 0xFF, 0x00, 0x00},
			want: encUTF16BigEndian,
		},
		{
			name: "UTF-16 Little Endian BOM",
			buf:  []byte{0xFF, 0xFE, 0x01, 0x00}, // Different from UTF-32LE
			want: encUTF16LittleEndian,
		},
		{
			name: "UTF-32 Big Endian BOM",
			buf:  []byte{0x00, 0x00, 0xFE, 0xFF},
			want: encUTF32BigEndian,
		},
		{
			name: "UTF-32 Little Endian BOM",
			buf:  []byte{0xFF, 0xFE, 0x00, 0x00},
			want: encUTF32LittleEndian,
		},
		{
			name: "No BOM",
			buf:  []byte{0x68, 0x65, 0x61, 0x64},
			want: encUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := detectUTF(tt.buf)
			if got != tt.want {
				t.Errorf("detectUTF() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBOMDetectionFunctions(t *testing.T) {
	t.Run("isUTF8BOM3", func(t *testing.T) {
		if !isUTF8BOM3([]byte{0xEF, 0xBB, 0xBF}) {
			t.Error("Expected true for UTF-8 BOM")
		}
		if isUTF8BOM3([]byte{0x00, 0x00, 0x00}) {
			t.Error("Expected false for non-BOM")
		}
	})

	t.Run("isUTF16BigEndianBOM2", func(t *testing.T) {
		if !isUTF16BigEndianBOM2([]byte{0xFE, 0xFF}) {
			t.Error("Expected true for UTF-16 BE BOM")
		}
		if isUTF16BigEndianBOM2([]byte{0xFF, 0xFE}) {
			t.Error("Expected false for UTF-16 LE BOM")
		}
	})

	t.Run("isUTF16LittleEndianBOM2", func(t *testing.T) {
		if !isUTF16LittleEndianBOM2([]byte{0xFF, 0xFE}) {
			t.Error("Expected true for UTF-16 LE BOM")
		}
		if isUTF16LittleEndianBOM2([]byte{0xFE, 0xFF}) {
			t.Error("Expected false for UTF-16 BE BOM")
		}
	})

	t.Run("isUTF32BigEndianBOM4", func(t *testing.T) {
		if !isUTF32BigEndianBOM4([]byte{0x00, 0x00, 0xFE, 0xFF}) {
			t.Error("Expected true for UTF-32 BE BOM")
		}
		if isUTF32BigEndianBOM4([]byte{0xFF, 0xFE, 0x00, 0x00}) {
			t.Error("Expected false for UTF-32 LE BOM")
		}
	})

	t.Run("isUTF32LittleEndianBOM4", func(t *testing.T) {
		if !isUTF32LittleEndianBOM4([]byte{0xFF, 0xFE, 0x00, 0x00}) {
			t.Error("Expected true for UTF-32 LE BOM")
		}
		if isUTF32LittleEndianBOM4([]byte{0x00, 0x00, 0xFE, 0xFF}) {
			t.Error("Expected false for UTF-32 BE BOM")
		}
	})
}

func TestIsStyleFile(t *testing.T) {
	tmpDir := t.TempDir()

	cssContent := []byte(".btn { color: red; }")

	tests := []struct {
		name      string
		filename  string
		content   []byte
		wantStyle bool
		wantEnc   srcEncoding
	}{
		{
			name:      "valid css file",
			filename:  "site.css",
			content:   cssContent,
			wantStyle: true,
			wantEnc:   encUnknown,
		},
		{
			name:      "css with UTF-8 BOM",
			filename:  "bom.css",
			content:   append([]byte{0xEF, 0xBB, 0xBF}, cssContent...),
			wantStyle: true,
			wantEnc:   encUTF8,
		},
		{
			name:      "non-css extension",
			filename:  "site.txt",
			content:   cssContent,
			wantStyle: false,
			wantEnc:   encUnknown,
		},
		{
			name:      "uppercase extension",
			filename:  "site.CSS",
			content:   cssContent,
			wantStyle: true,
			wantEnc:   encUnknown,
		},
		{
			name:      "css extension with binary content",
			filename:  "image.css",
			content:   []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00},
			wantStyle: false,
			wantEnc:   encUnknown,
		},
		{
			name:      "empty css file",
			filename:  "empty.css",
			content:   nil,
			wantStyle: true,
			wantEnc:   encUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, tt.filename)
			if err := os.WriteFile(path, tt.content, 0644); err != nil {
				t.Fatalf("Failed to create test file: %v", err)
			}
			gotStyle, gotEnc, err := isStyleFile(path)
			if err != nil {
				t.Errorf("isStyleFile() error = %v", err)
			}
			if gotStyle != tt.wantStyle {
				t.Errorf("isStyleFile() style = %v, want %v", gotStyle, tt.wantStyle)
			}
			if gotEnc != tt.wantEnc {
				t.Errorf("isStyleFile() enc = %v, want %v", gotEnc, tt.wantEnc)
			}
		})
	}
}

func TestIsStyleInArchive(t *testing.T) {
	tmpDir := t.TempDir()
	zipPath := filepath.Join(tmpDir, "styles.zip")

	zipFile, err := os.Create(zipPath)
	if err != nil {
		t.Fatalf("Failed to create zip file: %v", err)
	}
	w := zip.NewWriter(zipFile)
	for name, content := range map[string]string{
		"site.css":   "header { color: red; }",
		"readme.txt": "plain text",
	} {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatalf("Failed to create file in zip: %v", err)
		}
		fw.Write([]byte(content))
	}
	w.Close()
	zipFile.Close()

	r, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatalf("Failed to open zip: %v", err)
	}
	defer r.Close()

	for _, f := range r.File {
		style, _, err := isStyleInArchive(f)
		if err != nil {
			t.Errorf("isStyleInArchive(%s) error = %v", f.Name, err)
		}
		want := strings.HasSuffix(f.Name, ".css")
		if style != want {
			t.Errorf("isStyleInArchive(%s) = %v, want %v", f.Name, style, want)
		}
	}
}

func TestSelectReader(t *testing.T) {
	payload := "header { color: red; }"

	tests := []struct {
		name string
		data []byte
		enc  srcEncoding
	}{
		{
			name: "passthrough",
			data: []byte(payload),
			enc:  encUnknown,
		},
		{
			name: "utf8 bom stripped",
			data: append([]byte{0xEF, 0xBB, 0xBF}, payload...),
			enc:  encUTF8,
		},
		{
			name: "utf16le decoded",
			data: utf16LE(payload),
			enc:  encUTF16LittleEndian,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := selectReader(bytes.NewReader(tt.data), tt.enc)
			if r == nil {
				t.Fatal("selectReader() returned nil")
			}
			got, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("ReadAll() error = %v", err)
			}
			if string(got) != payload {
				t.Errorf("decoded = %q, want %q", got, payload)
			}
		})
	}
}

func utf16LE(s string) []byte {
	out := []byte{0xFF, 0xFE}
	for _, r := range s {
		out = append(out, byte(r), byte(r>>8))
	}
	return out
}
