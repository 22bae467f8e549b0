package tools

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// extractBinary dispatches on assetName's extension: .zip and .tar.gz/.tgz
// are archives extracted atomically via a sibling temp directory; anything
// else is treated as a raw binary written directly to dest and marked
// executable.
func extractBinary(data []byte, assetName string, binaryPath string, dest string) (string, error) {
	switch {
	case strings.HasSuffix(assetName, ".zip"):
		return extractZip(data, binaryPath, dest)
	case strings.HasSuffix(assetName, ".tar.gz"), strings.HasSuffix(assetName, ".tgz"):
		return extractTarGz(data, binaryPath, dest)
	default:
		return extractRawBinary(data, assetName, dest)
	}
}

func extractRawBinary(data []byte, assetName, dest string) (string, error) {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", err
	}
	name := strings.TrimSuffix(filepath.Base(assetName), filepath.Ext(assetName))
	if name == "" {
		name = assetName
	}
	binDest := filepath.Join(dest, name)
	if err := os.WriteFile(binDest, data, 0o644); err != nil {
		return "", err
	}
	if err := markExecutable(binDest); err != nil {
		return "", err
	}
	return binDest, nil
}

// extractZip extracts a zip archive. If binaryPath names a single entry,
// only that entry is pulled out directly (no temp dir needed). Otherwise
// the whole tree is extracted atomically.
func extractZip(data []byte, binaryPath, dest string) (string, error) {
	r, err := zip.NewReader(bytesReaderAt(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("tools: open zip: %w", err)
	}

	if binaryPath != "" {
		for _, f := range r.File {
			if f.Name != binaryPath && !strings.HasSuffix(f.Name, binaryPath) {
				continue
			}
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return "", err
			}
			destPath := filepath.Join(dest, filepath.Base(binaryPath))
			if err := copyZipEntry(f, destPath); err != nil {
				return "", err
			}
			if err := markExecutable(destPath); err != nil {
				return "", err
			}
			return destPath, nil
		}
		return "", fmt.Errorf("tools: binary %q not found in archive", binaryPath)
	}

	tmp := atomicExtractDir(dest)
	if err := os.RemoveAll(tmp); err != nil {
		return "", err
	}
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return "", err
	}

	if err := extractZipAll(r, tmp); err != nil {
		return "", abortExtraction(tmp, err)
	}
	if err := finalizeExtraction(tmp, dest); err != nil {
		return "", err
	}
	return findMainBinary(dest)
}

func extractZipAll(r *zip.Reader, tmp string) error {
	for _, f := range r.File {
		outPath := filepath.Join(tmp, f.Name)
		if !strings.HasPrefix(outPath, filepath.Clean(tmp)+string(os.PathSeparator)) {
			return fmt.Errorf("tools: illegal path in archive: %s", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(outPath, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return err
		}
		if err := copyZipEntry(f, outPath); err != nil {
			return err
		}
	}
	return nil
}

func copyZipEntry(f *zip.File, destPath string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	mode := f.Mode()
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}

// extractTarGz mirrors extractZip for gzip-compressed tarballs.
func extractTarGz(data []byte, binaryPath, dest string) (string, error) {
	if binaryPath != "" {
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return "", err
		}
		gz, err := gzip.NewReader(bytesReader(data))
		if err != nil {
			return "", fmt.Errorf("tools: open tar.gz: %w", err)
		}
		defer gz.Close()
		tr := tar.NewReader(gz)
		for {
			hdr, err := tr.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return "", fmt.Errorf("tools: read tar entry: %w", err)
			}
			if hdr.Name != binaryPath && !strings.HasSuffix(hdr.Name, binaryPath) {
				continue
			}
			destPath := filepath.Join(dest, filepath.Base(binaryPath))
			out, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
			if err != nil {
				return "", err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return "", err
			}
			out.Close()
			if err := markExecutable(destPath); err != nil {
				return "", err
			}
			return destPath, nil
		}
		return "", fmt.Errorf("tools: binary %q not found in archive", binaryPath)
	}

	tmp := atomicExtractDir(dest)
	if err := os.RemoveAll(tmp); err != nil {
		return "", err
	}
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return "", err
	}

	if err := extractTarGzAll(data, tmp); err != nil {
		return "", abortExtraction(tmp, err)
	}
	if err := finalizeExtraction(tmp, dest); err != nil {
		return "", err
	}
	return findMainBinary(dest)
}

func extractTarGzAll(data []byte, tmp string) error {
	gz, err := gzip.NewReader(bytesReader(data))
	if err != nil {
		return fmt.Errorf("tools: open tar.gz: %w", err)
	}
	defer gz.Close()
	tr := tar.NewReader(gz)

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("tools: read tar entry: %w", err)
		}
		outPath := filepath.Join(tmp, hdr.Name)
		if !strings.HasPrefix(outPath, filepath.Clean(tmp)+string(os.PathSeparator)) {
			return fmt.Errorf("tools: illegal path in archive: %s", hdr.Name)
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(outPath, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			out.Close()
		}
	}
	return nil
}

// findMainBinary locates the extracted artifact's primary executable:
// prefer bin/, otherwise the first executable file at the archive root.
func findMainBinary(dir string) (string, error) {
	binDir := filepath.Join(dir, "bin")
	if entries, err := os.ReadDir(binDir); err == nil {
		for _, e := range entries {
			if !e.IsDir() {
				return filepath.Join(binDir, e.Name()), nil
			}
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if info, err := os.Stat(path); err == nil && info.Mode()&0o111 != 0 {
			return path, nil
		}
	}
	return "", fmt.Errorf("tools: no binary found in extracted archive %s", dir)
}
