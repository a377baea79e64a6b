package packaging

import (
	"archive/zip"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/floodhapi/rofsw-extract/internal/domain"
)

// Finalize zips the job directory into <outputDir>/<name>.zip and removes the
// working directory. Returns the archive path. After Finalize the archive is
// the only artifact of the job.
func (j *Job) Finalize() (string, error) {
	zipPath := filepath.Join(j.outputDir, j.name+".zip")
	if err := zipDirectory(zipPath, j.dir); err != nil {
		os.Remove(zipPath)
		return "", domain.WrapError(domain.KindPackaging, "write archive", err)
	}
	if err := os.RemoveAll(j.dir); err != nil {
		return "", domain.WrapError(domain.KindPackaging, "remove working directory", err)
	}
	j.logger.Info("job packaged", "job", j.name, "zip", zipPath)
	return zipPath, nil
}

// zipDirectory writes every file under root into a deflate-compressed zip.
// Member names are slash-separated paths relative to root.
func zipDirectory(zipPath, root string) error {
	f, err := os.Create(zipPath)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(f)

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		return addMember(zw, filepath.ToSlash(rel), path)
	})
	if walkErr != nil {
		zw.Close()
		f.Close()
		return walkErr
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func addMember(zw *zip.Writer, name, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}
