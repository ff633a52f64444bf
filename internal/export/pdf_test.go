package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWritePDF(t *testing.T) {
	out := filepath.Join(t.TempDir(), "entry.pdf")
	text := "First paragraph of the archived talk.\n\nSecond paragraph with more detail.\n"
	if err := WritePDF("A Recorded Talk", text, out); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	info, err := os.Stat(out)
	if err != nil {
		t.Fatalf("stat output: %v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("pdf is empty")
	}
	head := make([]byte, 5)
	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	if _, err := f.Read(head); err != nil {
		t.Fatalf("read header: %v", err)
	}
	if !strings.HasPrefix(string(head), "%PDF-") {
		t.Fatalf("output is not a PDF: %q", head)
	}
}

func TestWritePDFEmptyTitle(t *testing.T) {
	out := filepath.Join(t.TempDir(), "untitled.pdf")
	if err := WritePDF("", "body only", out); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
}
