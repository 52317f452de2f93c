package detector

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadLabels(t *testing.T) {

	file := filepath.Join(t.TempDir(), "labels.txt")

	if err := os.WriteFile(file, []byte("person\n bicycle \n\ncar\n"), 0o600); err != nil {
		t.Fatalf("failed to write labels: %v", err)
	}

	labels, err := LoadLabels(file)

	if err != nil {
		t.Fatalf("LoadLabels returned error: %v", err)
	}

	want := []string{"person", "bicycle", "car"}

	if len(labels) != len(want) {
		t.Fatalf("expected %d labels, got %d: %v", len(want), len(labels), labels)
	}

	for i := range want {
		if labels[i] != want[i] {
			t.Errorf("label %d: expected %q, got %q", i, want[i], labels[i])
		}
	}

	if LabelFor(labels, 2) != "car" || LabelFor(labels, 9) != "class_9" {
		t.Errorf("unexpected LabelFor results")
	}
}

func TestLoadLabelsMissingFile(t *testing.T) {

	if _, err := LoadLabels(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Errorf("expected error for missing file")
	}
}
