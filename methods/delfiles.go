package methods

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var errFound = errors.New("found")

// FindShpFile 递归查找第一个指定扩展名的文件，扩展名不区分大小写
func FindShpFile(dir string, ex string) *string {
	var hit string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(d.Name()), ex) {
			hit = path
			return errFound
		}
		return nil
	})
	if !errors.Is(err, errFound) {
		return nil
	}
	return &hit
}

// WorkDir 在 base 下创建一个一次性工作目录，用完由调用方删除
func WorkDir(base string) (string, error) {
	dir := filepath.Join(base, "glebamap-"+uuid.NewString())
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", err
	}
	return dir, nil
}
