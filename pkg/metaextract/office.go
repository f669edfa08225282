package metaextract

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const maxOfficeProfiles = 32

// OfficeConverter wraps the external `soffice` headless binary behind a
// fixed-size pool of per-profile user-install directories, letting multiple
// conversions run concurrently without soffice instances stomping on each
// other's lock files.
type OfficeConverter struct {
	sofficeBin string
	profileDir string
	leases     chan string // each slot holds a reusable profile sub-directory
}

// NewOfficeConverter prepares maxOfficeProfiles profile directories under
// profileRoot and returns a converter ready to accept concurrent calls.
func NewOfficeConverter(sofficeBin, profileRoot string) (*OfficeConverter, error) {
	if sofficeBin == "" {
		sofficeBin = "soffice"
	}
	if err := os.MkdirAll(profileRoot, 0o755); err != nil {
		return nil, errors.WithStack(err)
	}

	leases := make(chan string, maxOfficeProfiles)
	for i := 0; i < maxOfficeProfiles; i++ {
		dir := filepath.Join(profileRoot, "profile-"+uuid.NewString())
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.WithStack(err)
		}
		leases <- dir
	}

	return &OfficeConverter{sofficeBin: sofficeBin, profileDir: profileRoot, leases: leases}, nil
}

// ConvertFile runs `soffice --headless --convert-to <targetExt> --outdir
// <outDir> <inputPath>`, isolated with a leased profile directory, and
// returns the produced file's path.
func (o *OfficeConverter) ConvertFile(ctx context.Context, inputPath, targetExt, outDir string) (string, error) {
	var profile string
	select {
	case profile = <-o.leases:
	case <-ctx.Done():
		return "", errors.WithStack(ctx.Err())
	}
	defer func() { o.leases <- profile }()

	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	args := []string{
		"--headless",
		"--env:UserInstallation=file://" + profile,
		"--convert-to", targetExt,
		"--outdir", outDir,
		inputPath,
	}
	cmd := exec.CommandContext(ctx, o.sofficeBin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", errors.Wrapf(err, "soffice convert failed: %s", strings.TrimSpace(stderr.String()))
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	return filepath.Join(outDir, base+"."+strings.TrimPrefix(targetExt, ".")), nil
}
