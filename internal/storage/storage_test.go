package storage

import (
	"errors"
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := InitDB(Config{
		DatabasePath: filepath.Join(t.TempDir(), "catalog.db"),
		LogLevel:     "silent",
	})
	if err != nil {
		t.Fatalf("InitDB() error = %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return db
}

func TestRecordWheelAndGet(t *testing.T) {
	db := testDB(t)

	if err := db.RecordWheel("numpy", "numpy-1.24.0-cp314-cp314-ios.whl", "abc123", 1000); err != nil {
		t.Fatalf("RecordWheel() error = %v", err)
	}

	wheel, err := db.GetWheel("numpy", "numpy-1.24.0-cp314-cp314-ios.whl")
	if err != nil {
		t.Fatalf("GetWheel() error = %v", err)
	}
	if wheel.SHA256 != "abc123" || wheel.Size != 1000 {
		t.Errorf("wheel = %+v, want sha abc123 size 1000", wheel)
	}
}

func TestRecordWheelUpsert(t *testing.T) {
	db := testDB(t)

	if err := db.RecordWheel("numpy", "numpy-1.24.0-cp314-cp314-ios.whl", "abc123", 1000); err != nil {
		t.Fatalf("first RecordWheel() error = %v", err)
	}
	if err := db.RecordWheel("numpy", "numpy-1.24.0-cp314-cp314-ios.whl", "def456", 2000); err != nil {
		t.Fatalf("second RecordWheel() error = %v", err)
	}

	wheels, err := db.ListByPackage("numpy")
	if err != nil {
		t.Fatalf("ListByPackage() error = %v", err)
	}
	if len(wheels) != 1 {
		t.Fatalf("expected one record after upsert, got %d", len(wheels))
	}
	if wheels[0].SHA256 != "def456" || wheels[0].Size != 2000 {
		t.Errorf("record not updated: %+v", wheels[0])
	}
}

func TestRecordWheelValidation(t *testing.T) {
	db := testDB(t)

	if err := db.RecordWheel("", "file.whl", "abc", 1); !errors.Is(err, ErrEmptyPackage) {
		t.Errorf("empty package error = %v, want ErrEmptyPackage", err)
	}
	if err := db.RecordWheel("numpy", "", "abc", 1); err == nil {
		t.Error("expected error for empty filename")
	}
}

func TestGetWheelNotFound(t *testing.T) {
	db := testDB(t)

	if _, err := db.GetWheel("numpy", "missing.whl"); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestListWheelsOrdered(t *testing.T) {
	db := testDB(t)

	records := []struct{ pkg, filename string }{
		{"requests", "requests-2.28.0-py3-none-any.whl"},
		{"numpy", "numpy-1.25.0-cp314-cp314-ios.whl"},
		{"numpy", "numpy-1.24.0-cp314-cp314-ios.whl"},
	}
	for _, r := range records {
		if err := db.RecordWheel(r.pkg, r.filename, "hash", 1); err != nil {
			t.Fatalf("RecordWheel(%s) error = %v", r.filename, err)
		}
	}

	wheels, err := db.ListWheels()
	if err != nil {
		t.Fatalf("ListWheels() error = %v", err)
	}
	if len(wheels) != 3 {
		t.Fatalf("expected 3 records, got %d", len(wheels))
	}
	if wheels[0].Package != "numpy" || wheels[2].Package != "requests" {
		t.Errorf("records not ordered by package: %v, %v, %v",
			wheels[0].Package, wheels[1].Package, wheels[2].Package)
	}
	if wheels[0].Filename > wheels[1].Filename {
		t.Errorf("records not ordered by filename within package")
	}
}

func TestRecordAndLatestPlan(t *testing.T) {
	db := testDB(t)

	if err := db.RecordPlan([]byte(`[{"spec":"cffi"}]`), 1); err != nil {
		t.Fatalf("first RecordPlan() error = %v", err)
	}
	if err := db.RecordPlan([]byte(`[{"spec":"cffi"},{"spec":"cryptography"}]`), 2); err != nil {
		t.Fatalf("second RecordPlan() error = %v", err)
	}

	plan, err := db.LatestPlan()
	if err != nil {
		t.Fatalf("LatestPlan() error = %v", err)
	}
	if plan.PackageCount != 2 {
		t.Errorf("PackageCount = %d, want 2", plan.PackageCount)
	}
}

func TestLatestPlanNotFound(t *testing.T) {
	db := testDB(t)

	if _, err := db.LatestPlan(); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestRecordPlanEmpty(t *testing.T) {
	db := testDB(t)

	if err := db.RecordPlan(nil, 0); !errors.Is(err, ErrEmptyPlan) {
		t.Errorf("error = %v, want ErrEmptyPlan", err)
	}
}

func TestGetStats(t *testing.T) {
	db := testDB(t)

	if err := db.RecordWheel("numpy", "numpy-1.24.0-cp314-cp314-ios.whl", "a", 1); err != nil {
		t.Fatal(err)
	}
	if err := db.RecordWheel("numpy", "numpy-1.25.0-cp314-cp314-ios.whl", "b", 1); err != nil {
		t.Fatal(err)
	}
	if err := db.RecordWheel("requests", "requests-2.28.0-py3-none-any.whl", "c", 1); err != nil {
		t.Fatal(err)
	}
	if err := db.RecordPlan([]byte(`[{"spec":"numpy"}]`), 1); err != nil {
		t.Fatal(err)
	}

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if stats["total_wheels"].(int64) != 3 {
		t.Errorf("total_wheels = %v, want 3", stats["total_wheels"])
	}
	if stats["total_packages"].(int64) != 2 {
		t.Errorf("total_packages = %v, want 2", stats["total_packages"])
	}
	if stats["total_plans"].(int64) != 1 {
		t.Errorf("total_plans = %v, want 1", stats["total_plans"])
	}
}
