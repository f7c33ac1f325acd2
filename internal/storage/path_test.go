package storage

import "testing"

func TestBuildDatasetFilePath(t *testing.T) {
	key, err := BuildDatasetFilePath("medical_insurance", 3)
	if err != nil {
		t.Fatalf("BuildDatasetFilePath() error = %v", err)
	}
	want := "datasets/medical_insurance/part-00003.parquet"
	if key != want {
		t.Fatalf("BuildDatasetFilePath() = %q, want %q", key, want)
	}
}

func TestDatasetPrefix(t *testing.T) {
	prefix, err := DatasetPrefix("medical_insurance")
	if err != nil {
		t.Fatalf("DatasetPrefix() error = %v", err)
	}
	if prefix != "datasets/medical_insurance/" {
		t.Fatalf("DatasetPrefix() = %q", prefix)
	}
}

func TestBuildPathRejectsInvalidComponent(t *testing.T) {
	if _, err := BuildDatasetFilePath("../oops", 1); err == nil {
		t.Fatal("expected invalid component error")
	}
	if _, err := BuildDatasetFilePath("medical_insurance", -1); err == nil {
		t.Fatal("expected negative sequence error")
	}
}
