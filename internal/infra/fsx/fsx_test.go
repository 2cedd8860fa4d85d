package fsx

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func assertNoTemp(t *testing.T, dir, name string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir 失败：%v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "."+name+".tmp-") {
			t.Fatalf("临时文件未清理：%q", e.Name())
		}
	}
}

func TestWriteFileAtomicReplace_OverwritesAndNoTempLeft(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pages", "show")

	for _, body := range []string{"<html>v1</html>", "<html>v2</html>"} {
		if err := WriteFileAtomicReplace(dir, "the-office.html", []byte(body)); err != nil {
			t.Fatalf("不期望错误：%v", err)
		}
	}

	b, err := os.ReadFile(filepath.Join(dir, "the-office.html"))
	if err != nil {
		t.Fatalf("读取文件失败：%v", err)
	}
	if string(b) != "<html>v2</html>" {
		t.Fatalf("内容不一致：%q", string(b))
	}
	assertNoTemp(t, dir, "the-office.html")
}

func TestWriteFileAtomic_RenameFail_CleanupTemp(t *testing.T) {
	dir := t.TempDir()

	old := renameFunc
	renameFunc = func(oldpath, newpath string) error {
		return os.ErrPermission
	}
	defer func() { renameFunc = old }()

	err := WriteFileAtomicReplace(dir, "a.json", []byte("{}"))
	if !errors.Is(err, os.ErrPermission) {
		t.Fatalf("期望 ErrPermission，实际：%v", err)
	}
	assertNoTemp(t, dir, "a.json")
	if _, err := os.Stat(filepath.Join(dir, "a.json")); !os.IsNotExist(err) {
		t.Fatalf("不应写出最终文件，Stat err=%v", err)
	}
}

func TestWriteFileAtomicNoOverwrite_Exists(t *testing.T) {
	dir := t.TempDir()
	if err := WriteFileAtomicNoOverwrite(dir, "tvshow.nfo", []byte("first")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	err := WriteFileAtomicNoOverwrite(dir, "tvshow.nfo", []byte("second"))
	if !errors.Is(err, os.ErrExist) {
		t.Fatalf("期望 os.ErrExist，实际：%v", err)
	}
	b, _ := os.ReadFile(filepath.Join(dir, "tvshow.nfo"))
	if string(b) != "first" {
		t.Fatalf("已存在的文件不应被覆盖：%q", string(b))
	}
}

func TestWriteFileAtomic_TargetConflictDir(t *testing.T) {
	dir := t.TempDir()

	// 目标路径是目录：应返回 PathTypeConflictError，而不是 os.ErrExist。
	if err := os.Mkdir(filepath.Join(dir, "a.txt"), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}

	for _, write := range []func(string, string, []byte) error{WriteFileAtomicNoOverwrite, WriteFileAtomicReplace} {
		err := write(dir, "a.txt", []byte("hello"))
		if !IsPathTypeConflict(err) {
			t.Fatalf("期望 PathTypeConflictError，实际：%T %v", err, err)
		}
	}
}
