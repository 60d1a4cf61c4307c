package installer

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var gzipMagic = []byte{0x1f, 0x8b}

// Extract unpacks a tar or tar.gz archive into dest and returns the path of
// its single top-level directory.
//
// Every write goes through an os.Root opened on dest, so no entry can create
// or modify anything outside it. Entries with absolute names or names that
// escape dest are rejected, as are links pointing outside dest and entries
// whose path runs through a symlink the archive itself created. Device nodes
// and FIFOs are skipped.
func Extract(ctx context.Context, archive, dest string) (string, error) {
	f, err := os.Open(archive)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", fmt.Errorf("failed to create destination: %w", err)
	}
	root, err := os.OpenRoot(dest)
	if err != nil {
		return "", fmt.Errorf("failed to open destination: %w", err)
	}
	defer root.Close()

	br := bufio.NewReader(f)
	var r io.Reader = br
	if magic, err := br.Peek(2); err == nil && bytes.Equal(magic, gzipMagic) {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return "", fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	x := &extractor{root: root, symlinks: make(map[string]struct{})}
	roots := make(map[string]struct{})
	tr := tar.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read archive: %w", err)
		}

		name, err := cleanName(hdr.Name)
		if err != nil {
			return "", err
		}
		if name == "" {
			continue
		}
		roots[strings.SplitN(name, "/", 2)[0]] = struct{}{}

		if err := x.entry(tr, hdr, name); err != nil {
			return "", err
		}
	}

	if len(roots) != 1 {
		return "", fmt.Errorf("archive must contain exactly one top-level directory, found %d", len(roots))
	}
	var base string
	for top := range roots {
		base = top
	}
	return filepath.Join(dest, base), nil
}

// extractor writes entries below root and remembers which names it created
// as symlinks.
type extractor struct {
	root     *os.Root
	symlinks map[string]struct{}
}

// viaSymlink reports whether any parent of name is a symlink created by
// this archive.
func (x *extractor) viaSymlink(name string) bool {
	for dir := path.Dir(name); dir != "."; dir = path.Dir(dir) {
		if _, ok := x.symlinks[dir]; ok {
			return true
		}
	}
	return false
}

func (x *extractor) entry(tr *tar.Reader, hdr *tar.Header, name string) error {
	if x.viaSymlink(name) {
		return fmt.Errorf("archive entry %s runs through a symlink", name)
	}
	mode := os.FileMode(hdr.Mode).Perm()
	local := filepath.FromSlash(name)

	switch hdr.Typeflag {
	case tar.TypeDir:
		return x.root.MkdirAll(local, mode|0o700)

	case tar.TypeReg:
		if err := x.root.MkdirAll(filepath.Dir(local), 0o755); err != nil {
			return err
		}
		out, err := x.root.OpenFile(local, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", name, err)
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		return out.Close()

	case tar.TypeSymlink:
		linkTarget := hdr.Linkname
		if path.IsAbs(linkTarget) || !isLocal(path.Join(path.Dir(name), linkTarget)) {
			return fmt.Errorf("symlink %s points outside the archive: %s", name, linkTarget)
		}
		if err := x.root.MkdirAll(filepath.Dir(local), 0o755); err != nil {
			return err
		}
		if err := x.root.Symlink(linkTarget, local); err != nil {
			return err
		}
		x.symlinks[name] = struct{}{}
		return nil

	case tar.TypeLink:
		linkName, err := cleanName(hdr.Linkname)
		if err != nil || linkName == "" {
			return fmt.Errorf("hard link %s points outside the archive: %s", name, hdr.Linkname)
		}
		if x.viaSymlink(linkName) {
			return fmt.Errorf("hard link %s runs through a symlink: %s", name, hdr.Linkname)
		}
		if err := x.root.MkdirAll(filepath.Dir(local), 0o755); err != nil {
			return err
		}
		return x.root.Link(filepath.FromSlash(linkName), local)

	default:
		return nil
	}
}

// cleanName normalizes an entry name and rejects ones that leave the
// extraction root.
func cleanName(name string) (string, error) {
	if path.IsAbs(name) || strings.HasPrefix(name, `\`) {
		return "", fmt.Errorf("archive entry has absolute path: %s", name)
	}
	cleaned := path.Clean(name)
	if cleaned == "." {
		return "", nil
	}
	if !isLocal(cleaned) {
		return "", fmt.Errorf("archive entry escapes destination: %s", name)
	}
	return cleaned, nil
}

func isLocal(cleaned string) bool {
	cleaned = path.Clean(cleaned)
	return cleaned != ".." && !strings.HasPrefix(cleaned, "../")
}
