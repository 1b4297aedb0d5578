// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package tarutils

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/logger"
	"github.com/klauspost/pgzip"
)

// CreateTarGzArchive packs the contents of sourceDir into a gzip compressed tarball.
// Entry names are relative to the parent of sourceDir, so that the archive expands
// into a directory with the same base name.
func CreateTarGzArchive(sourceDir string, outputArchivePath string) (err error) {
	logger.Log.Debugf("Creating archive (%s) from (%s)", outputArchivePath, sourceDir)

	outFile, err := os.Create(outputArchivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive (%s):\n%w", outputArchivePath, err)
	}
	defer func() {
		closeErr := outFile.Close()
		if err == nil && closeErr != nil {
			err = fmt.Errorf("failed to finalize archive (%s):\n%w", outputArchivePath, closeErr)
		}
	}()

	gzipWriter := pgzip.NewWriter(outFile)
	tarWriter := tar.NewWriter(gzipWriter)

	baseDir := filepath.Dir(filepath.Clean(sourceDir))

	err = filepath.WalkDir(sourceDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		return addTarEntry(tarWriter, baseDir, path, entry)
	})
	if err != nil {
		return fmt.Errorf("failed to create archive (%s):\n%w", outputArchivePath, err)
	}

	err = tarWriter.Close()
	if err != nil {
		return fmt.Errorf("failed to finalize tar stream (%s):\n%w", outputArchivePath, err)
	}

	err = gzipWriter.Close()
	if err != nil {
		return fmt.Errorf("failed to finalize gzip stream (%s):\n%w", outputArchivePath, err)
	}

	return nil
}

func addTarEntry(tarWriter *tar.Writer, baseDir string, path string, entry fs.DirEntry) error {
	info, err := entry.Info()
	if err != nil {
		return err
	}

	linkTarget := ""
	if info.Mode().Type() == fs.ModeSymlink {
		linkTarget, err = os.Readlink(path)
		if err != nil {
			return err
		}
	}

	header, err := tar.FileInfoHeader(info, linkTarget)
	if err != nil {
		return err
	}

	relPath, err := filepath.Rel(baseDir, path)
	if err != nil {
		return err
	}
	header.Name = filepath.ToSlash(relPath)
	if info.IsDir() {
		header.Name += "/"
	}

	err = tarWriter.WriteHeader(header)
	if err != nil {
		return err
	}

	if !info.Mode().IsRegular() {
		return nil
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = io.Copy(tarWriter, file)
	return err
}
