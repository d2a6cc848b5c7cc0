package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	apperrors "expensecli/internal/errors"
)

// FileValidator checks ledger inputs and report output locations
type FileValidator struct {
	allowed  []string
	maxBytes int64
	logger   *slog.Logger
}

// NewFileValidator creates a validator accepting the given extensions
// (".xlsx", ".csv", ...) up to maxBytes. maxBytes <= 0 disables the size check.
func NewFileValidator(allowed []string, maxBytes int64, logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	normalized := make([]string, 0, len(allowed))
	for _, ext := range allowed {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized = append(normalized, ext)
	}
	return &FileValidator{
		allowed:  normalized,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// AllowedExtensions returns the accepted extensions
func (v *FileValidator) AllowedExtensions() []string {
	return append([]string(nil), v.allowed...)
}

// MaxBytes returns the upload size limit, 0 when unlimited
func (v *FileValidator) MaxBytes() int64 {
	return v.maxBytes
}

// ValidateUpload checks an uploaded file name and its declared size
func (v *FileValidator) ValidateUpload(filename string, size int64) error {
	if err := v.checkName(filename); err != nil {
		return err
	}
	if v.maxBytes > 0 && size > v.maxBytes {
		v.logger.Warn("Upload exceeds size limit",
			slog.String("file", filename),
			slog.Int64("size", size),
			slog.Int64("max_bytes", v.maxBytes))
		return apperrors.PayloadTooLarge(v.maxBytes)
	}
	return nil
}

func (v *FileValidator) checkName(filename string) error {
	base := filepath.Base(filename)
	ext := strings.ToLower(filepath.Ext(base))

	// Office lock files share the workbook extension
	if strings.HasPrefix(base, "~$") {
		v.logger.Warn("Rejecting temporary Excel file",
			slog.String("file", filename))
		return apperrors.ErrValidation("file", fmt.Sprintf("%s is a temporary Excel file", base))
	}

	for _, allowed := range v.allowed {
		if ext == allowed {
			return nil
		}
	}
	v.logger.Warn("Unsupported file type",
		slog.String("file", filename),
		slog.String("extension", ext))
	return apperrors.UnsupportedFormat(ext, v.allowed)
}

// ValidateInputFile checks a local ledger file before loading it
func (v *FileValidator) ValidateInputFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Error("Input file does not exist",
			slog.String("file", path))
		return fmt.Errorf("input file %s does not exist", path)
	}
	if err != nil {
		v.logger.Error("Failed to stat input file",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		v.logger.Error("Input path is a directory, not a file",
			slog.String("path", path))
		return fmt.Errorf("%s is a directory, not a file", path)
	}

	if err := v.ValidateUpload(path, info.Size()); err != nil {
		return err
	}

	v.logger.Debug("Input file validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateOutputDirectory ensures dir exists and is writable
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	probe, err := os.CreateTemp(dir, ".write_test")
	if err != nil {
		v.logger.Error("Output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	probe.Close()
	os.Remove(probe.Name())

	v.logger.Debug("Output directory validated",
		slog.String("directory", dir))
	return nil
}
