package snapshot

import (
	"archive/tar"
	"context"
	"crypto/md5"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/sys/unix"
)

// S3Config configures the S3-backed snapshot store.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool
	// CacheDir, if set, keeps downloaded/created tarballs on local disk so
	// repeated restores of the same snapshot skip the network round trip.
	CacheDir string
}

// S3Store stores each snapshot as a gzip-compressed tarball in S3, keyed by
// a hash of the project path so listings can be scoped per project without
// a separate index.
type S3Store struct {
	client   *s3.Client
	bucket   string
	cacheDir string
	cacheMu  sync.Mutex
}

// NewS3Store creates an S3-backed Store.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	var client *s3.Client

	if cfg.AccessKeyID != "" {
		opts := []func(*s3.Options){
			func(o *s3.Options) {
				o.Region = cfg.Region
				o.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
				if cfg.ForcePathStyle {
					o.UsePathStyle = true
				}
				if cfg.Endpoint != "" {
					o.BaseEndpoint = aws.String(cfg.Endpoint)
				}
			},
		}
		client = s3.New(s3.Options{}, opts...)
	} else {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("snapshot: load aws config: %w", err)
		}
		var s3Opts []func(*s3.Options)
		if cfg.ForcePathStyle {
			s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
		}
		if cfg.Endpoint != "" {
			s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = aws.String(cfg.Endpoint) })
		}
		client = s3.NewFromConfig(awsCfg, s3Opts...)
	}

	store := &S3Store{client: client, bucket: cfg.Bucket, cacheDir: cfg.CacheDir}
	if store.cacheDir != "" {
		if err := os.MkdirAll(store.cacheDir, 0o755); err != nil {
			return nil, fmt.Errorf("snapshot: create cache dir: %w", err)
		}
	}
	return store, nil
}

func projectPrefix(projectPath string) string {
	sum := md5.Sum([]byte(projectPath))
	return fmt.Sprintf("snapshots/%x", sum[:6])
}

func snapshotKey(projectPath, id string) string {
	encoded := base64.RawURLEncoding.EncodeToString([]byte(projectPath))
	return fmt.Sprintf("%s/%s__%s.tar.gz", projectPrefix(projectPath), id, encoded)
}

func decodeSnapshotKey(key string) (id, projectPath string, ok bool) {
	base := filepath.Base(key)
	base = strings.TrimSuffix(base, ".tar.gz")
	parts := strings.SplitN(base, "__", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	decoded, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", "", false
	}
	return parts[0], string(decoded), true
}

func (s *S3Store) cachePath(key string) string {
	if s.cacheDir == "" {
		return ""
	}
	sum := md5.Sum([]byte(key))
	return filepath.Join(s.cacheDir, fmt.Sprintf("%x.tar.gz", sum))
}

func (s *S3Store) Create(projectPath, label string) (string, error) {
	absPath, err := filepath.Abs(projectPath)
	if err != nil {
		return "", err
	}
	id, err := newID()
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp("", "ftl-snapshot-*.tar.gz")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := writeTarGz(tmp, absPath, LoadIgnoreFile(absPath)); err != nil {
		tmp.Close()
		return "", fmt.Errorf("snapshot: build tarball: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	key := snapshotKey(absPath, id)
	f, err := os.Open(tmpPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return "", err
	}

	ctx := context.Background()
	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(stat.Size()),
	}); err != nil {
		return "", fmt.Errorf("snapshot: upload: %w", err)
	}

	if s.cacheDir != "" {
		s.evictIfNeeded()
		if err := copyFile(tmpPath, s.cachePath(key), 0o644); err != nil {
			log.Printf("snapshot: cache store failed for %s: %v", key, err)
		}
	}

	return id, nil
}

func (s *S3Store) findKey(ctx context.Context, id, projectHint string) (string, string, error) {
	prefix := "snapshots/"
	if projectHint != "" {
		absHint, _ := filepath.Abs(projectHint)
		prefix = projectPrefix(absHint) + "/"
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return "", "", fmt.Errorf("snapshot: list: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			gotID, projectPath, ok := decodeSnapshotKey(key)
			if ok && gotID == id {
				return key, projectPath, nil
			}
		}
	}
	return "", "", fmt.Errorf("snapshot: %s not found", id)
}

func (s *S3Store) Restore(id, projectPath string) error {
	ctx := context.Background()
	key, _, err := s.findKey(ctx, id, "")
	if err != nil {
		return err
	}

	cachePath := s.cachePath(key)
	if cachePath != "" {
		if f, err := os.Open(cachePath); err == nil {
			defer f.Close()
			now := time.Now()
			os.Chtimes(cachePath, now, now)
			return extractTarGz(f, projectPath)
		}
	}

	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		return fmt.Errorf("snapshot: download: %w", err)
	}
	defer resp.Body.Close()

	if cachePath == "" {
		return extractTarGz(resp.Body, projectPath)
	}

	s.evictIfNeeded()
	tmp, err := os.CreateTemp(s.cacheDir, ".dl-tmp-*")
	if err != nil {
		return extractTarGz(resp.Body, projectPath)
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("snapshot: download: %w", err)
	}
	tmp.Close()
	os.Rename(tmpPath, cachePath)

	f, err := os.Open(cachePath)
	if err != nil {
		return err
	}
	defer f.Close()
	return extractTarGz(f, projectPath)
}

func (s *S3Store) List(projectPath string) ([]Info, error) {
	ctx := context.Background()
	prefix := "snapshots/"
	if projectPath != "" {
		absPath, _ := filepath.Abs(projectPath)
		prefix = projectPrefix(absPath) + "/"
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	var out []Info
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("snapshot: list: %w", err)
		}
		for _, obj := range page.Contents {
			id, decodedPath, ok := decodeSnapshotKey(aws.ToString(obj.Key))
			if !ok {
				continue
			}
			out = append(out, Info{
				ID:          id,
				ProjectPath: decodedPath,
				CreatedAt:   aws.ToTime(obj.LastModified),
			})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *S3Store) Delete(id string) error {
	ctx := context.Background()
	key, _, err := s.findKey(ctx, id, "")
	if err != nil {
		return err
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)}); err != nil {
		return fmt.Errorf("snapshot: delete: %w", err)
	}
	if cachePath := s.cachePath(key); cachePath != "" {
		os.Remove(cachePath)
	}
	return nil
}

// evictIfNeeded frees cached tarballs, oldest first, once the cache
// filesystem drops below a 20% free-space reserve.
func (s *S3Store) evictIfNeeded() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	var stat unix.Statfs_t
	if err := unix.Statfs(s.cacheDir, &stat); err != nil {
		log.Printf("snapshot-cache: statfs failed: %v", err)
		return
	}

	totalBytes := stat.Blocks * uint64(stat.Bsize)
	availBytes := stat.Bavail * uint64(stat.Bsize)
	reserveBytes := totalBytes / 5

	if availBytes > reserveBytes {
		return
	}

	entries, err := os.ReadDir(s.cacheDir)
	if err != nil {
		return
	}

	type cacheEntry struct {
		path  string
		size  int64
		mtime time.Time
	}
	var files []cacheEntry
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, cacheEntry{filepath.Join(s.cacheDir, e.Name()), info.Size(), info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mtime.Before(files[j].mtime) })

	needToFree := int64(reserveBytes - availBytes)
	var freed int64
	for _, f := range files {
		if freed >= needToFree {
			break
		}
		if err := os.Remove(f.path); err == nil {
			freed += f.size
		}
	}
}

func writeTarGz(w io.Writer, root string, ignorePatterns []string) error {
	gw := gzip.NewWriter(w)
	defer gw.Close()
	tw := tar.NewWriter(gw)
	defer tw.Close()

	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if ShouldIgnore(info.Name(), rel, ignorePatterns) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		link := ""
		if info.Mode()&os.ModeSymlink != 0 {
			link, err = os.Readlink(path)
			if err != nil {
				return err
			}
		}
		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			if _, err := io.Copy(tw, f); err != nil {
				return err
			}
		}
		return nil
	})
}

// extractTarGz unpacks a snapshot tarball under destRoot, rejecting any
// entry whose resolved path would escape destRoot.
func extractTarGz(r io.Reader, destRoot string) error {
	absRoot, err := filepath.Abs(destRoot)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(absRoot, 0o755); err != nil {
		return err
	}

	gr, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("snapshot: gzip: %w", err)
	}
	defer gr.Close()
	tr := tar.NewReader(gr)

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("snapshot: tar: %w", err)
		}

		target := filepath.Join(absRoot, hdr.Name)
		if !strings.HasPrefix(target, absRoot+string(filepath.Separator)) && target != absRoot {
			return fmt.Errorf("snapshot: tar entry %q escapes destination", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)); err != nil {
				return err
			}
		case tar.TypeSymlink:
			os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		default:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			out.Close()
			os.Chtimes(target, hdr.ModTime, hdr.ModTime)
		}
	}
}
