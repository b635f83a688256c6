package methods

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mholt/archiver/v3"
)

var ErrUnsupportedArchive = errors.New("unsupported archive format")

// IsArchive 按扩展名判断上传文件是否为压缩包
func IsArchive(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".zip", ".rar":
		return true
	}
	return false
}

// Unarchive 解压 zip/rar 到 dest
func Unarchive(src, dest string) error {
	if !IsArchive(src) {
		return ErrUnsupportedArchive
	}
	if err := os.MkdirAll(dest, os.ModePerm); err != nil {
		return err
	}
	return archiver.Unarchive(src, dest)
}

// ZipFileOut 把 files 中的文件按给定的条目名打包，返回 zip 字节
func ZipFileOut(files map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	zipWriter := zip.NewWriter(&buf)
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := addZipEntry(zipWriter, name, files[name]); err != nil {
			return nil, err
		}
	}
	if err := zipWriter.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func addZipEntry(zw *zip.Writer, name, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, file)
	return err
}
