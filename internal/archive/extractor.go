// Package archive fetches and extracts layer archives.
package archive

import (
	"archive/tar"    // For reading .tar archives
	"archive/zip"    // For reading .zip archives
	"compress/bzip2" // For reading .bz2 compressed data
	"compress/gzip"  // For reading .gz compressed data
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip" // For reading .7z archives
	"github.com/xi2/xz"          // For reading .xz compressed data
)

// ErrUnsupported is returned for archive names without a known extension.
var ErrUnsupported = errors.New("unsupported archive format")

// Extensions lists the supported archive extensions.
var Extensions = []string{".tar", ".tar.gz", ".tgz", ".tar.bz2", ".tar.xz", ".zip", ".7z"}

// Supported reports whether name ends in a supported archive extension.
func Supported(name string) bool {
	for _, ext := range Extensions {
		if strings.HasSuffix(strings.ToLower(name), ext) {
			return true
		}
	}
	return false
}

// Extract extracts the archive src into dest and returns the path of the
// top-level entry it created. The format is taken from the file name.
// Entries that would be written outside dest are rejected. Extraction stops
// with ctx's error once ctx is cancelled.
func Extract(ctx context.Context, src, dest string) (string, error) {
	lower := strings.ToLower(src)
	if !Supported(lower) {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, filepath.Base(src))
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", err
	}
	// All writes go through root, which refuses paths resolving outside dest
	root, err := os.OpenRoot(dest)
	if err != nil {
		return "", err
	}
	defer root.Close()

	out := &destDir{path: dest, root: root}
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return extractZip(ctx, src, out)
	case strings.HasSuffix(lower, ".7z"):
		return extract7z(ctx, src, out)
	default:
		return extractTar(ctx, src, out)
	}
}

// extractTar handles tar and compressed tar variants
func extractTar(ctx context.Context, src string, dest *destDir) (string, error) {
	f, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var reader io.Reader = f
	lower := strings.ToLower(src)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		gr, err := gzip.NewReader(f)
		if err != nil {
			return "", err
		}
		defer gr.Close()
		reader = gr
	case strings.HasSuffix(lower, ".tar.bz2"):
		reader = bzip2.NewReader(f)
	case strings.HasSuffix(lower, ".tar.xz"):
		xzr, err := xz.NewReader(f, 0)
		if err != nil {
			return "", err
		}
		reader = xzr
	}

	tr := tar.NewReader(reader)
	var top topLevel
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			break // End of archive
		}
		if err != nil {
			return "", err
		}

		rel, err := dest.entry(hdr.Name)
		if err != nil {
			return "", err
		}
		top.observe(hdr.Name)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := dest.mkdirAll(rel); err != nil {
				return "", err
			}
		case tar.TypeReg:
			if err := dest.writeFile(ctx, rel, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return "", err
			}
		case tar.TypeSymlink:
			if err := dest.writeSymlink(rel, hdr.Linkname); err != nil {
				return "", err
			}
		}
	}
	return top.path(dest.path), nil
}

// extractZip extracts a .zip archive
func extractZip(ctx context.Context, src string, dest *destDir) (string, error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		return "", err
	}
	defer r.Close()

	var top topLevel
	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		rel, err := dest.entry(f.Name)
		if err != nil {
			return "", err
		}
		top.observe(f.Name)

		if f.FileInfo().IsDir() {
			if err := dest.mkdirAll(rel); err != nil {
				return "", err
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		err = dest.writeFile(ctx, rel, rc, f.Mode().Perm())
		rc.Close()
		if err != nil {
			return "", err
		}
	}
	return top.path(dest.path), nil
}

// extract7z handles .7z extraction using the sevenzip library
func extract7z(ctx context.Context, src string, dest *destDir) (string, error) {
	r, err := sevenzip.OpenReader(src)
	if err != nil {
		return "", fmt.Errorf("failed to open 7z archive: %w", err)
	}
	defer r.Close()

	var top topLevel
	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		rel, err := dest.entry(f.Name)
		if err != nil {
			return "", err
		}
		top.observe(f.Name)

		if f.FileInfo().IsDir() {
			if err := dest.mkdirAll(rel); err != nil {
				return "", err
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		err = dest.writeFile(ctx, rel, rc, f.Mode().Perm())
		rc.Close()
		if err != nil {
			return "", err
		}
	}
	return top.path(dest.path), nil
}

// destDir is an extraction destination. Entries are addressed by their
// path relative to the destination.
type destDir struct {
	path string
	root *os.Root
}

// entry returns the relative path of the archive entry name and rejects
// names escaping the destination.
func (d *destDir) entry(name string) (string, error) {
	target := filepath.Join(d.path, filepath.FromSlash(name))
	if escapes(d.path, target) {
		return "", fmt.Errorf("archive entry %q escapes destination", name)
	}
	return filepath.Rel(d.path, target)
}

// escapes reports whether path lies outside dir.
func escapes(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// mkdirAll creates rel and its parents inside the destination.
func (d *destDir) mkdirAll(rel string) error {
	if rel == "." {
		return nil
	}
	cur := ""
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		cur = filepath.Join(cur, part)
		if err := d.root.Mkdir(cur, 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
			return err
		}
	}
	return nil
}

// writeSymlink creates the symlink rel -> linkname. The link must point
// inside the destination and no parent directory of rel may be a symlink.
func (d *destDir) writeSymlink(rel, linkname string) error {
	parent := filepath.Dir(rel)
	if filepath.IsAbs(linkname) || escapes(d.path, filepath.Join(d.path, parent, linkname)) {
		return fmt.Errorf("symlink %s -> %s escapes destination", rel, linkname)
	}
	if err := d.mkdirAll(parent); err != nil {
		return err
	}
	if parent != "." {
		cur := ""
		for _, part := range strings.Split(parent, string(filepath.Separator)) {
			cur = filepath.Join(cur, part)
			fi, err := d.root.Lstat(cur)
			if err != nil {
				return err
			}
			if fi.Mode()&fs.ModeSymlink != 0 {
				return fmt.Errorf("symlink %s is created through symlink %s", rel, cur)
			}
		}
	}
	if err := d.root.Remove(rel); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.Symlink(linkname, filepath.Join(d.path, rel))
}

// writeFile copies r into a new file at rel, creating parent directories.
func (d *destDir) writeFile(ctx context.Context, rel string, r io.Reader, perm fs.FileMode) (err error) {
	if err := d.mkdirAll(filepath.Dir(rel)); err != nil {
		return err
	}
	if perm == 0 {
		perm = 0o644
	}
	out, err := d.root.OpenFile(rel, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = io.Copy(out, &ctxReader{ctx: ctx, r: r})
	return err
}

// ctxReader stops reading once ctx is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// topLevel captures the first path component of the first archive entry.
type topLevel string

func (t *topLevel) observe(name string) {
	if *t != "" {
		return
	}
	name = strings.TrimPrefix(filepath.ToSlash(name), "./")
	if first, _, _ := strings.Cut(name, "/"); first != "" {
		*t = topLevel(first)
	}
}

func (t topLevel) path(dest string) string {
	return filepath.Join(dest, string(t))
}
