package tf

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultLibTensorFlowVersion is the default TensorFlow C library version
	// used by bootstrap. This should track the version validated by CI and
	// the examples.
	DefaultLibTensorFlowVersion = "2.15.0"

	defaultBootstrapBaseURL = "https://storage.googleapis.com/tensorflow/libtensorflow"

	// defaultMaxDownloadBytes bounds a single archive download. The CPU
	// builds are a few hundred megabytes; anything near this limit is not a
	// libtensorflow archive.
	defaultMaxDownloadBytes int64 = 4 << 30

	// Extraction limits protect against archives whose entries decompress
	// far beyond any plausible libtensorflow build.
	maxExtractedFileBytes  int64 = 8 << 30
	maxExtractedTotalBytes int64 = 16 << 30
)

var errSharedLibraryNotFound = errors.New("TensorFlow shared library not found")
var bootstrapCacheFallbackWarnOnce sync.Once

// Lock acquisition tuning. Variables rather than constants so tests can
// shorten the wait.
var (
	bootstrapLockAcquireTimeout = 5 * time.Minute
	bootstrapLockRetryInterval  = 100 * time.Millisecond
	bootstrapLockLogInterval    = 15 * time.Second
)

// BootstrapOption configures EnsureTensorFlowSharedLibrary.
type BootstrapOption func(*bootstrapConfig) error

type bootstrapConfig struct {
	libraryPath     string
	cacheDir        string
	version         string
	disableDownload bool
	expectedSHA256  string
	baseURL         string
	httpClient      *http.Client
	maxDownloadSize int64
	goos            string
	goarch          string
}

type runtimeArtifact struct {
	platform         string
	archiveExtension string
	primaryLibrary   string
	libraryGlob      string
}

// WithBootstrapLibraryPath forces bootstrap to use an existing TensorFlow shared library path.
func WithBootstrapLibraryPath(path string) BootstrapOption {
	return func(cfg *bootstrapConfig) error {
		path = strings.TrimSpace(path)
		if path == "" {
			return fmt.Errorf("bootstrap library path cannot be empty")
		}
		cfg.libraryPath = path
		return nil
	}
}

// WithBootstrapCacheDir sets the cache directory used by bootstrap downloads and extraction.
func WithBootstrapCacheDir(dir string) BootstrapOption {
	return func(cfg *bootstrapConfig) error {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			return fmt.Errorf("bootstrap cache directory cannot be empty")
		}
		cfg.cacheDir = dir
		return nil
	}
}

// WithBootstrapVersion sets the TensorFlow C library version to download (for example: 2.15.0).
func WithBootstrapVersion(version string) BootstrapOption {
	return func(cfg *bootstrapConfig) error {
		version = strings.TrimSpace(version)
		if version == "" {
			return fmt.Errorf("bootstrap version cannot be empty")
		}
		cfg.version = version
		return nil
	}
}

// WithBootstrapDisableDownload enables or disables network download in bootstrap mode.
func WithBootstrapDisableDownload(disable bool) BootstrapOption {
	return func(cfg *bootstrapConfig) error {
		cfg.disableDownload = disable
		return nil
	}
}

// WithBootstrapExpectedSHA256 enforces an expected SHA256 checksum for the downloaded archive.
func WithBootstrapExpectedSHA256(checksum string) BootstrapOption {
	return func(cfg *bootstrapConfig) error {
		checksum = strings.TrimSpace(strings.ToLower(checksum))
		if checksum == "" {
			return fmt.Errorf("expected SHA256 checksum cannot be empty")
		}
		if len(checksum) != 64 {
			return fmt.Errorf("expected SHA256 checksum must be 64 hex characters")
		}
		for _, r := range checksum {
			if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
				return fmt.Errorf("expected SHA256 checksum must be lowercase hex")
			}
		}
		cfg.expectedSHA256 = checksum
		return nil
	}
}

func withBootstrapBaseURL(baseURL string) BootstrapOption {
	return func(cfg *bootstrapConfig) error {
		baseURL = strings.TrimSpace(baseURL)
		if baseURL == "" {
			return fmt.Errorf("bootstrap base URL cannot be empty")
		}
		cfg.baseURL = baseURL
		return nil
	}
}

func withBootstrapHTTPClient(client *http.Client) BootstrapOption {
	return func(cfg *bootstrapConfig) error {
		if client == nil {
			return fmt.Errorf("bootstrap HTTP client cannot be nil")
		}
		cfg.httpClient = client
		return nil
	}
}

func withBootstrapMaxDownloadSize(limit int64) BootstrapOption {
	return func(cfg *bootstrapConfig) error {
		if limit <= 0 {
			return fmt.Errorf("bootstrap download size limit must be positive")
		}
		cfg.maxDownloadSize = limit
		return nil
	}
}

// EnsureTensorFlowSharedLibrary ensures a TensorFlow C shared library is
// available and returns a resolved absolute path to it.
//
// This function is opt-in and does not change existing explicit-path behavior.
func EnsureTensorFlowSharedLibrary(opts ...BootstrapOption) (string, error) {
	cfg, err := resolveBootstrapConfig(opts...)
	if err != nil {
		return "", err
	}

	if cfg.libraryPath != "" {
		return validateLibraryFile(cfg.libraryPath)
	}

	artifact, err := resolveRuntimeArtifact(cfg.goos, cfg.goarch)
	if err != nil {
		return "", err
	}

	installDir := filepath.Join(cfg.cacheDir, artifact.archiveName(cfg.version))
	if path, resolveErr := resolveExtractedLibraryPath(installDir, artifact); resolveErr == nil {
		return path, nil
	} else if !errors.Is(resolveErr, errSharedLibraryNotFound) {
		return "", resolveErr
	}

	if cfg.disableDownload {
		return "", fmt.Errorf("TensorFlow library not found in cache and download is disabled: %s", installDir)
	}

	if err := os.MkdirAll(cfg.cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create bootstrap cache directory %q: %w", cfg.cacheDir, err)
	}

	lockPath := filepath.Join(cfg.cacheDir, ".locks", fmt.Sprintf("%s-%s.lock", artifact.platform, cfg.version))
	var resolvedPath string
	if err := withProcessFileLock(lockPath, func() error {
		if path, resolveErr := resolveExtractedLibraryPath(installDir, artifact); resolveErr == nil {
			resolvedPath = path
			return nil
		} else if !errors.Is(resolveErr, errSharedLibraryNotFound) {
			return resolveErr
		}

		if err := downloadAndInstallRuntime(cfg, artifact, installDir); err != nil {
			return err
		}

		path, resolveErr := resolveExtractedLibraryPath(installDir, artifact)
		if resolveErr != nil {
			return fmt.Errorf("bootstrap completed but shared library could not be resolved: %w", resolveErr)
		}
		resolvedPath = path
		return nil
	}); err != nil {
		return "", err
	}

	return resolvedPath, nil
}

// InitializeEnvironmentWithBootstrap resolves a shared library path via
// bootstrap, sets it on the runtime, and initializes the TensorFlow
// environment.
func InitializeEnvironmentWithBootstrap(opts ...BootstrapOption) error {
	path, err := EnsureTensorFlowSharedLibrary(opts...)
	if err != nil {
		return err
	}

	mu.Lock()
	alreadyInitialized := refCount > 0
	currentPath := libPath
	mu.Unlock()

	if alreadyInitialized && currentPath != path {
		return fmt.Errorf("cannot change library path after environment is initialized")
	}

	if !alreadyInitialized {
		if err := SetSharedLibraryPath(path); err != nil {
			// Another goroutine may have initialized after we checked state.
			mu.Lock()
			alreadyInitialized = refCount > 0
			currentPath = libPath
			mu.Unlock()
			if !(alreadyInitialized && currentPath == path) {
				return err
			}
		}
	}

	return InitializeEnvironment()
}

func resolveBootstrapConfig(opts ...BootstrapOption) (bootstrapConfig, error) {
	disableDownload, err := parseBootstrapBoolEnv("LIBTENSORFLOW_DISABLE_DOWNLOAD")
	if err != nil {
		return bootstrapConfig{}, err
	}

	cfg := bootstrapConfig{
		libraryPath:     strings.TrimSpace(os.Getenv("LIBTENSORFLOW_PATH")),
		cacheDir:        strings.TrimSpace(os.Getenv("LIBTENSORFLOW_CACHE_DIR")),
		version:         strings.TrimSpace(os.Getenv("LIBTENSORFLOW_VERSION")),
		disableDownload: disableDownload,
		baseURL:         defaultBootstrapBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
		maxDownloadSize: defaultMaxDownloadBytes,
		goos:            runtime.GOOS,
		goarch:          runtime.GOARCH,
	}

	if cfg.version == "" {
		cfg.version = DefaultLibTensorFlowVersion
	}
	if cfg.cacheDir == "" {
		cfg.cacheDir = defaultBootstrapCacheDir()
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return bootstrapConfig{}, err
		}
	}

	version, err := normalizeRuntimeVersion(cfg.version)
	if err != nil {
		return bootstrapConfig{}, err
	}
	cfg.version = version

	if cfg.cacheDir == "" {
		return bootstrapConfig{}, fmt.Errorf("bootstrap cache directory is empty")
	}
	cfg.cacheDir = filepath.Clean(cfg.cacheDir)

	if strings.TrimSpace(cfg.baseURL) == "" {
		return bootstrapConfig{}, fmt.Errorf("bootstrap base URL is empty")
	}
	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	if err := validateBootstrapBaseURL(cfg.baseURL); err != nil {
		return bootstrapConfig{}, err
	}

	if cfg.httpClient == nil {
		return bootstrapConfig{}, fmt.Errorf("bootstrap HTTP client cannot be nil")
	}
	if cfg.maxDownloadSize <= 0 {
		return bootstrapConfig{}, fmt.Errorf("bootstrap download size limit must be positive")
	}

	return cfg, nil
}

// validateBootstrapBaseURL accepts https URLs, plus plain http for loopback
// hosts so tests and local mirrors can serve archives.
func validateBootstrapBaseURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid bootstrap base URL %q: %w", raw, err)
	}

	switch parsed.Scheme {
	case "https":
	case "http":
		host := parsed.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			return fmt.Errorf("bootstrap base URL %q must use https (plain http is only allowed for loopback hosts)", raw)
		}
	default:
		return fmt.Errorf("bootstrap base URL %q must use http or https", raw)
	}

	if parsed.Host == "" {
		return fmt.Errorf("bootstrap base URL %q has no host", raw)
	}

	return nil
}

func resolveRuntimeArtifact(goos, goarch string) (runtimeArtifact, error) {
	switch goos {
	case "darwin":
		switch goarch {
		case "arm64":
			return runtimeArtifact{
				platform:         "darwin-arm64",
				archiveExtension: "tar.gz",
				primaryLibrary:   "libtensorflow.dylib",
				libraryGlob:      "libtensorflow*.dylib",
			}, nil
		case "amd64":
			return runtimeArtifact{
				platform:         "darwin-x86_64",
				archiveExtension: "tar.gz",
				primaryLibrary:   "libtensorflow.dylib",
				libraryGlob:      "libtensorflow*.dylib",
			}, nil
		}
	case "linux":
		switch goarch {
		case "arm64":
			return runtimeArtifact{
				platform:         "linux-arm64",
				archiveExtension: "tar.gz",
				primaryLibrary:   "libtensorflow.so",
				libraryGlob:      "libtensorflow.so*",
			}, nil
		case "amd64":
			return runtimeArtifact{
				platform:         "linux-x86_64",
				archiveExtension: "tar.gz",
				primaryLibrary:   "libtensorflow.so",
				libraryGlob:      "libtensorflow.so*",
			}, nil
		}
	case "windows":
		switch goarch {
		case "amd64":
			return runtimeArtifact{
				platform:         "windows-x86_64",
				archiveExtension: "zip",
				primaryLibrary:   "tensorflow.dll",
				libraryGlob:      "tensorflow*.dll",
			}, nil
		}
	}

	return runtimeArtifact{}, fmt.Errorf("unsupported platform for TensorFlow bootstrap: GOOS=%s GOARCH=%s", goos, goarch)
}

func (a runtimeArtifact) archiveName(version string) string {
	return fmt.Sprintf("libtensorflow-cpu-%s-%s", a.platform, version)
}

func (a runtimeArtifact) archiveFilename(version string) string {
	return fmt.Sprintf("%s.%s", a.archiveName(version), a.archiveExtension)
}

func (a runtimeArtifact) downloadURL(baseURL, version string) string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(baseURL, "/"), a.archiveFilename(version))
}

func downloadAndInstallRuntime(cfg bootstrapConfig, artifact runtimeArtifact, installDir string) error {
	url := artifact.downloadURL(cfg.baseURL, cfg.version)
	archivePath, checksum, err := downloadRuntimeArchive(cfg, url)
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(archivePath)
	}()

	if cfg.expectedSHA256 != "" && checksum != cfg.expectedSHA256 {
		return fmt.Errorf("download checksum mismatch: expected %s, got %s", cfg.expectedSHA256, checksum)
	}

	stagingRoot := installDir + fmt.Sprintf(".staging-%d", time.Now().UnixNano())
	if err := os.RemoveAll(stagingRoot); err != nil {
		return fmt.Errorf("failed to clean bootstrap staging directory %q: %w", stagingRoot, err)
	}
	if err := os.MkdirAll(stagingRoot, 0o755); err != nil {
		return fmt.Errorf("failed to create bootstrap staging directory %q: %w", stagingRoot, err)
	}
	defer func() {
		_ = os.RemoveAll(stagingRoot)
	}()

	report, err := extractArchiveFile(archivePath, stagingRoot, artifact.archiveExtension, artifact.libraryGlob)
	if err != nil {
		return err
	}

	// libtensorflow archives extract lib/ and include/ directly at the
	// archive root, without a versioned top-level directory. Fall back to
	// the staging root when the named directory is absent.
	extractedInstallDir := filepath.Join(stagingRoot, artifact.archiveName(cfg.version))
	info, statErr := os.Stat(extractedInstallDir)
	if statErr != nil {
		if !errors.Is(statErr, os.ErrNotExist) {
			return fmt.Errorf("failed to inspect extracted install directory %q: %w", extractedInstallDir, statErr)
		}
		extractedInstallDir = stagingRoot
	} else if !info.IsDir() {
		return fmt.Errorf("extracted install path is not a directory: %q", extractedInstallDir)
	}

	if _, err := resolveExtractedLibraryPath(extractedInstallDir, artifact); err != nil {
		if errors.Is(err, errSharedLibraryNotFound) {
			libDir := filepath.Join(extractedInstallDir, "lib")
			if report.skippedLibraryLinkEntries > 0 {
				return fmt.Errorf("downloaded archive did not contain expected shared library in %q: %d link entries matching %q were skipped (links are not extracted)",
					libDir, report.skippedLibraryLinkEntries, artifact.libraryGlob)
			}
			return fmt.Errorf("downloaded archive did not contain expected shared library in %q", libDir)
		}
		return err
	}

	if err := os.RemoveAll(installDir); err != nil {
		return fmt.Errorf("failed to remove previous TensorFlow install at %q: %w", installDir, err)
	}

	if extractedInstallDir == stagingRoot {
		if err := os.Rename(stagingRoot, installDir); err != nil {
			return fmt.Errorf("failed to install TensorFlow library to %q: %w", installDir, err)
		}
		return nil
	}

	if err := os.Rename(extractedInstallDir, installDir); err != nil {
		return fmt.Errorf("failed to install TensorFlow library to %q: %w", installDir, err)
	}
	return nil
}

func downloadRuntimeArchive(cfg bootstrapConfig, url string) (archivePath string, checksum string, err error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to create download request for %q: %w", url, err)
	}

	resp, err := cfg.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to download TensorFlow archive from %q: %w", url, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		snippet = []byte(strings.TrimSpace(string(snippet)))
		if len(snippet) > 0 {
			return "", "", fmt.Errorf("failed to download TensorFlow archive from %q: HTTP %d: %s", url, resp.StatusCode, string(snippet))
		}
		return "", "", fmt.Errorf("failed to download TensorFlow archive from %q: HTTP %d", url, resp.StatusCode)
	}

	if resp.ContentLength > cfg.maxDownloadSize {
		return "", "", fmt.Errorf("refusing to download archive from %q: content-length=%d exceeds limit %d", url, resp.ContentLength, cfg.maxDownloadSize)
	}

	if err := os.MkdirAll(cfg.cacheDir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create cache directory %q: %w", cfg.cacheDir, err)
	}

	tmpFile, err := os.CreateTemp(cfg.cacheDir, "libtensorflow-*.archive")
	if err != nil {
		return "", "", fmt.Errorf("failed to create temporary archive file: %w", err)
	}
	tmpPath := tmpFile.Name()
	archivePath = tmpPath
	success := false
	defer func() {
		closeErr := tmpFile.Close()
		if err == nil && closeErr != nil {
			err = closeErr
		}
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	hasher := sha256.New()
	written, copyErr := io.Copy(io.MultiWriter(tmpFile, hasher), io.LimitReader(resp.Body, cfg.maxDownloadSize+1))
	if copyErr != nil {
		err = fmt.Errorf("failed to write TensorFlow archive to %q: %w", archivePath, copyErr)
		return "", "", err
	}
	if written == 0 {
		err = fmt.Errorf("downloaded TensorFlow archive is empty")
		return "", "", err
	}
	if written > cfg.maxDownloadSize {
		err = fmt.Errorf("downloaded archive from %q exceeds the maximum size limit of %d bytes", url, cfg.maxDownloadSize)
		return "", "", err
	}

	checksum = hex.EncodeToString(hasher.Sum(nil))
	success = true
	return archivePath, checksum, nil
}

// extractionReport summarizes what an archive extraction wrote and what it
// refused to write. Link entries are never extracted; the library-specific
// count feeds the error message when the shared library turns out to exist
// only as a link.
type extractionReport struct {
	regularFiles              int
	skippedLinkEntries        int
	skippedLibraryLinkEntries int
}

func extractArchiveFile(archivePath, destinationDir, extension, libraryGlob string) (extractionReport, error) {
	switch extension {
	case "tar.gz":
		return extractTarGzArchive(archivePath, destinationDir, libraryGlob)
	case "zip":
		return extractZIPArchive(archivePath, destinationDir, libraryGlob)
	default:
		return extractionReport{}, fmt.Errorf("unsupported archive extension %q", extension)
	}
}

func extractTarGzArchive(archivePath, destinationDir, libraryGlob string) (extractionReport, error) {
	var report extractionReport

	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return report, fmt.Errorf("failed to open archive %q: %w", archivePath, err)
	}
	defer func() {
		_ = archiveFile.Close()
	}()

	gzipReader, err := gzip.NewReader(archiveFile)
	if err != nil {
		return report, fmt.Errorf("failed to read gzip archive %q: %w", archivePath, err)
	}
	defer func() {
		_ = gzipReader.Close()
	}()

	tarReader := tar.NewReader(gzipReader)
	var totalExtracted int64

	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return report, fmt.Errorf("failed to read tar entry from %q: %w", archivePath, err)
		}

		targetPath, err := secureArchiveJoin(destinationDir, header.Name)
		if err != nil {
			return report, err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(targetPath, 0o755); err != nil {
				return report, fmt.Errorf("failed to create directory %q: %w", targetPath, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
				return report, fmt.Errorf("failed to create parent directory for %q: %w", targetPath, err)
			}

			mode := header.FileInfo().Mode().Perm()
			if mode == 0 {
				mode = 0o644
			}
			outFile, err := os.OpenFile(targetPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
			if err != nil {
				return report, fmt.Errorf("failed to create extracted file %q: %w", targetPath, err)
			}

			if err := copyExtractedFile(outFile, tarReader, header.Size, &totalExtracted, header.Name); err != nil {
				_ = outFile.Close()
				return report, fmt.Errorf("failed to extract file %q: %w", targetPath, err)
			}
			if err := outFile.Close(); err != nil {
				return report, fmt.Errorf("failed to close extracted file %q: %w", targetPath, err)
			}
			report.regularFiles++
		case tar.TypeSymlink, tar.TypeLink:
			// Links are never materialized. libtensorflow archives carry
			// version-suffix symlinks (libtensorflow.so -> libtensorflow.so.2);
			// the library glob resolves the real file instead.
			report.skippedLinkEntries++
			if matched, _ := filepath.Match(libraryGlob, filepath.Base(header.Name)); matched {
				report.skippedLibraryLinkEntries++
			}
		case tar.TypeXHeader, tar.TypeXGlobalHeader:
			continue
		default:
			continue
		}
	}

	if report.regularFiles == 0 {
		return report, fmt.Errorf("archive %q did not contain regular files", archivePath)
	}

	return report, nil
}

func extractZIPArchive(archivePath, destinationDir, libraryGlob string) (extractionReport, error) {
	var report extractionReport

	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return report, fmt.Errorf("failed to open ZIP archive %q: %w", archivePath, err)
	}
	defer func() {
		_ = reader.Close()
	}()

	var totalExtracted int64
	for _, entry := range reader.File {
		targetPath, err := secureArchiveJoin(destinationDir, entry.Name)
		if err != nil {
			return report, err
		}

		info := entry.FileInfo()
		if info.IsDir() {
			if err := os.MkdirAll(targetPath, 0o755); err != nil {
				return report, fmt.Errorf("failed to create directory %q: %w", targetPath, err)
			}
			continue
		}

		if info.Mode()&os.ModeSymlink != 0 {
			report.skippedLinkEntries++
			if matched, _ := filepath.Match(libraryGlob, filepath.Base(entry.Name)); matched {
				report.skippedLibraryLinkEntries++
			}
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}

		if entry.UncompressedSize64 > uint64(maxExtractedFileBytes) {
			return report, fmt.Errorf("archive entry %q declares %d bytes, exceeding the per-file extraction limit of %d", entry.Name, entry.UncompressedSize64, maxExtractedFileBytes)
		}

		if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
			return report, fmt.Errorf("failed to create parent directory for %q: %w", targetPath, err)
		}

		rc, err := entry.Open()
		if err != nil {
			return report, fmt.Errorf("failed to open ZIP entry %q: %w", entry.Name, err)
		}

		mode := entry.Mode().Perm()
		if mode == 0 {
			mode = 0o644
		}
		outFile, err := os.OpenFile(targetPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
		if err != nil {
			_ = rc.Close()
			return report, fmt.Errorf("failed to create extracted file %q: %w", targetPath, err)
		}

		if err := copyExtractedFile(outFile, rc, int64(entry.UncompressedSize64), &totalExtracted, entry.Name); err != nil {
			_ = outFile.Close()
			_ = rc.Close()
			return report, fmt.Errorf("failed to extract ZIP entry %q: %w", entry.Name, err)
		}

		if err := outFile.Close(); err != nil {
			_ = rc.Close()
			return report, fmt.Errorf("failed to close extracted file %q: %w", targetPath, err)
		}
		if err := rc.Close(); err != nil {
			return report, fmt.Errorf("failed to close ZIP entry %q: %w", entry.Name, err)
		}

		report.regularFiles++
	}

	if report.regularFiles == 0 {
		return report, fmt.Errorf("archive %q did not contain regular files", archivePath)
	}

	return report, nil
}

// copyExtractedFile copies one archive entry to disk while enforcing the
// per-file and per-archive extraction limits. declaredSize comes from the
// archive header; an entry may be shorter than declared but never longer.
func copyExtractedFile(dst io.Writer, src io.Reader, declaredSize int64, totalExtracted *int64, entryName string) error {
	if declaredSize < 0 {
		return fmt.Errorf("archive entry %q declares negative size %d", entryName, declaredSize)
	}
	if declaredSize > maxExtractedFileBytes {
		return fmt.Errorf("archive entry %q declares %d bytes, exceeding the per-file extraction limit of %d", entryName, declaredSize, maxExtractedFileBytes)
	}
	if *totalExtracted > maxExtractedTotalBytes-declaredSize {
		return fmt.Errorf("extracting archive entry %q would exceed the total extraction limit of %d bytes", entryName, maxExtractedTotalBytes)
	}

	written, err := io.Copy(dst, io.LimitReader(src, declaredSize))
	if err != nil {
		return err
	}
	*totalExtracted += written

	// Probe one byte past the declared size: extra data means the header
	// lied about the entry length.
	var probe [1]byte
	if n, _ := src.Read(probe[:]); n > 0 {
		return fmt.Errorf("archive entry %q is larger than its declared size %d", entryName, declaredSize)
	}

	return nil
}

func resolveExtractedLibraryPath(installDir string, artifact runtimeArtifact) (string, error) {
	libDir := filepath.Join(installDir, "lib")

	var invalidCandidates []error
	trackCandidateError := func(path string, validationErr error) {
		if validationErr == nil {
			return
		}
		if errors.Is(validationErr, os.ErrNotExist) {
			return
		}
		invalidCandidates = append(invalidCandidates, fmt.Errorf("%s: %w", path, validationErr))
	}

	primaryPath := filepath.Join(libDir, artifact.primaryLibrary)
	if path, err := validateLibraryFile(primaryPath); err == nil {
		return path, nil
	} else {
		trackCandidateError(primaryPath, err)
	}

	matches, err := filepath.Glob(filepath.Join(libDir, artifact.libraryGlob))
	if err != nil {
		return "", fmt.Errorf("failed to resolve TensorFlow library path: %w", err)
	}
	sort.Strings(matches)
	for _, match := range matches {
		path, err := validateLibraryFile(match)
		if err == nil {
			return path, nil
		}
		trackCandidateError(match, err)
	}

	if len(invalidCandidates) > 0 {
		return "", fmt.Errorf("found TensorFlow shared library candidates in %q but none are valid: %w", libDir, errors.Join(invalidCandidates...))
	}

	return "", errSharedLibraryNotFound
}

func validateLibraryFile(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("library path is empty")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path for %q: %w", path, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to stat library file %q: %w", absPath, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("library path points to a directory: %q", absPath)
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("library file is empty: %q", absPath)
	}

	return absPath, nil
}

func withProcessFileLock(lockPath string, fn func() error) (err error) {
	if fn == nil {
		return fmt.Errorf("lock callback is nil")
	}

	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory for %q: %w", lockPath, err)
	}

	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open lock file %q: %w", lockPath, err)
	}

	if err := acquireFileLock(file, lockPath); err != nil {
		_ = file.Close()
		return err
	}

	defer func() {
		unlockErr := unlockFile(file)
		closeErr := file.Close()
		err = errors.Join(err, unlockErr, closeErr)
	}()

	return fn()
}

// acquireFileLock polls a non-blocking lock until it is acquired or the
// acquire timeout passes. Waiting is logged periodically so a user stuck
// behind another process's download can see why nothing is happening.
func acquireFileLock(file *os.File, lockPath string) error {
	deadline := time.Now().Add(bootstrapLockAcquireTimeout)
	nextLog := time.Now().Add(bootstrapLockLogInterval)

	for {
		err := lockFile(file)
		if err == nil {
			return nil
		}
		if !isLockWouldBlock(err) {
			return fmt.Errorf("failed to acquire lock %q: %w", lockPath, err)
		}

		now := time.Now()
		if !now.Before(deadline) {
			return fmt.Errorf("timed out acquiring lock %q after %s", lockPath, bootstrapLockAcquireTimeout)
		}
		if !now.Before(nextLog) {
			log.Printf("waiting for bootstrap lock %q held by another process", lockPath)
			nextLog = now.Add(bootstrapLockLogInterval)
		}

		time.Sleep(bootstrapLockRetryInterval)
	}
}

func secureArchiveJoin(baseDir, archivePath string) (string, error) {
	archivePath = strings.TrimSpace(archivePath)
	if archivePath == "" {
		return "", fmt.Errorf("invalid empty archive entry path")
	}

	normalized := strings.ReplaceAll(archivePath, "\\", "/")
	if strings.HasPrefix(normalized, "/") {
		return "", fmt.Errorf("invalid absolute archive entry path %q", archivePath)
	}
	if len(normalized) >= 2 && ((normalized[0] >= 'A' && normalized[0] <= 'Z') || (normalized[0] >= 'a' && normalized[0] <= 'z')) && normalized[1] == ':' {
		return "", fmt.Errorf("invalid archive entry path with drive letter %q", archivePath)
	}

	cleaned := filepath.Clean(normalized)
	if cleaned == "." {
		return "", fmt.Errorf("invalid archive entry path %q", archivePath)
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("unsafe archive entry path %q", archivePath)
	}

	targetPath := filepath.Join(baseDir, cleaned)
	relPath, err := filepath.Rel(baseDir, targetPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve archive path %q: %w", archivePath, err)
	}
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("unsafe archive entry path %q", archivePath)
	}

	return targetPath, nil
}

func defaultBootstrapCacheDir() string {
	cacheDir, err := os.UserCacheDir()
	if err == nil && cacheDir != "" {
		return filepath.Join(cacheDir, "pure-tf", "libtensorflow")
	}

	fallback := filepath.Join(os.TempDir(), "pure-tf", "libtensorflow")
	bootstrapCacheFallbackWarnOnce.Do(func() {
		if err != nil {
			log.Printf("WARNING: failed to resolve user cache directory (%v); using temporary TensorFlow cache at %q. Set LIBTENSORFLOW_CACHE_DIR for a persistent cache.", err, fallback)
			return
		}
		log.Printf("WARNING: user cache directory is empty; using temporary TensorFlow cache at %q. Set LIBTENSORFLOW_CACHE_DIR for a persistent cache.", fallback)
	})
	return fallback
}

func normalizeRuntimeVersion(version string) (string, error) {
	version = strings.TrimSpace(version)
	version = strings.TrimPrefix(version, "v")
	if version == "" {
		return "", fmt.Errorf("TensorFlow version is empty")
	}

	parts := strings.Split(version, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("TensorFlow version must have format x.y.z, got %q", version)
	}

	for _, part := range parts {
		if part == "" {
			return "", fmt.Errorf("TensorFlow version must have format x.y.z, got %q", version)
		}
		if _, err := strconv.Atoi(part); err != nil {
			return "", fmt.Errorf("TensorFlow version must have numeric segments, got %q", version)
		}
	}

	return version, nil
}

func parseBootstrapBoolEnv(name string) (bool, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return false, nil
	}

	parsed, err := strconv.ParseBool(value)
	if err == nil {
		return parsed, nil
	}

	switch strings.ToLower(value) {
	case "1", "yes", "y", "on":
		return true, nil
	case "0", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value for %s: %q (expected true/false, 1/0, yes/no, on/off)", name, value)
	}
}
