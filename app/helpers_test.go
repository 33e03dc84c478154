package app

import (
	"runtime"
	"testing"
)

func TestParsePositiveInt(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"10", 10, false},
		{"0", 0, false},
		{"-3", -3, false},
		{"abc", 0, true},
		{"", 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := parsePositiveInt(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("parsePositiveInt(%q) expected error, got %d", tc.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parsePositiveInt(%q) unexpected error: %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("parsePositiveInt(%q) = %d, want %d", tc.in, got, tc.want)
			}
		})
	}
}

func TestGetWorkerCount(t *testing.T) {
	t.Run("defaults to cpu count", func(t *testing.T) {
		t.Setenv("WORKERS", "")
		if got := GetWorkerCount(); got != runtime.NumCPU() {
			t.Fatalf("GetWorkerCount() = %d, want %d", got, runtime.NumCPU())
		}
	})

	t.Run("env override", func(t *testing.T) {
		t.Setenv("WORKERS", "3")
		if got := GetWorkerCount(); got != 3 {
			t.Fatalf("GetWorkerCount() = %d, want 3", got)
		}
	})

	t.Run("invalid override ignored", func(t *testing.T) {
		t.Setenv("WORKERS", "zero")
		if got := GetWorkerCount(); got != runtime.NumCPU() {
			t.Fatalf("GetWorkerCount() = %d, want %d", got, runtime.NumCPU())
		}
	})
}
