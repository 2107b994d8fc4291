package dicomio

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
	"google.golang.org/api/iterator"
)

// Entry is a candidate slice file
type Entry struct {
	Name string
	Size int64
}

// Source lists and opens slice files. Names returned by List are passed back
// to Open unchanged.
type Source interface {
	List(ctx context.Context) ([]Entry, error)
	Open(ctx context.Context, name string) (io.ReadCloser, int64, error)
	String() string
}

// NewSource returns a Google Storage source for gs://bucket/prefix paths and
// a directory source otherwise
func NewSource(ctx context.Context, location string) (Source, error) {
	if !strings.HasPrefix(location, "gs://") {
		return DirSource{Dir: location}, nil
	}

	bucket, prefix, err := splitGSPath(location)
	if err != nil {
		return nil, err
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, pfx.Err(err)
	}
	return &GCSSource{Client: client, Bucket: bucket, Prefix: prefix}, nil
}

// DirSource reads slices from a local directory
type DirSource struct {
	Dir string
}

func (d DirSource) String() string { return d.Dir }

// List returns the regular files directly inside the directory
func (d DirSource) List(ctx context.Context) ([]Entry, error) {
	files, err := os.ReadDir(d.Dir)
	if err != nil {
		return nil, fmt.Errorf("dicomio: reading %s: %w", d.Dir, err)
	}

	entries := make([]Entry, 0, len(files))
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{Name: f.Name(), Size: info.Size()})
	}
	return entries, nil
}

// Open opens a file of the directory
func (d DirSource) Open(ctx context.Context, name string) (io.ReadCloser, int64, error) {
	f, err := os.Open(filepath.Join(d.Dir, name))
	if err != nil {
		return nil, 0, err
	}
	fstat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, fstat.Size(), nil
}

// GCSSource reads slices stored under a prefix of a Google Storage bucket
type GCSSource struct {
	Client *storage.Client
	Bucket string
	Prefix string
}

func (g *GCSSource) String() string {
	return "gs://" + g.Bucket + "/" + g.Prefix
}

// List returns the objects directly under the prefix
func (g *GCSSource) List(ctx context.Context) ([]Entry, error) {
	prefix := g.Prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var entries []Entry
	it := g.Client.Bucket(g.Bucket).Objects(ctx, &storage.Query{Prefix: prefix, Delimiter: "/"})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, pfx.Err(fmt.Errorf("%s: %w", g, err))
		}
		// Sub-prefixes come back with an empty Name
		if attrs.Name == "" {
			continue
		}
		entries = append(entries, Entry{Name: path.Base(attrs.Name), Size: attrs.Size})
	}
	return entries, nil
}

// Open starts reading one object
func (g *GCSSource) Open(ctx context.Context, name string) (io.ReadCloser, int64, error) {
	obj := g.Client.Bucket(g.Bucket).Object(path.Join(g.Prefix, name))
	rdr, err := obj.NewReader(ctx)
	if err != nil {
		return nil, 0, pfx.Err(fmt.Errorf("%s/%s: %w", g, name, err))
	}
	return rdr, rdr.Attrs.Size, nil
}

// Close releases the storage client
func (g *GCSSource) Close() error {
	return g.Client.Close()
}

// splitGSPath splits gs://bucket/prefix into its bucket and prefix
func splitGSPath(location string) (bucket, prefix string, err error) {
	pathParts := strings.SplitN(strings.TrimPrefix(location, "gs://"), "/", 2)
	if pathParts[0] == "" {
		return "", "", fmt.Errorf("dicomio: no bucket in google storage path %q", location)
	}
	if len(pathParts) == 1 {
		return pathParts[0], "", nil
	}
	return pathParts[0], strings.TrimSuffix(pathParts[1], "/"), nil
}
