package sandbox

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/image"
)

// readPackageName reads the "name" field out of projectPath/package.json,
// the same lookup the original implementation's get_package_name performs
// (and, like it, this is a one-time lookup cached on the Provisioner for
// the life of the process rather than repeated per session).
func readPackageName(projectPath string) (string, error) {
	raw, err := os.ReadFile(filepath.Join(projectPath, "package.json"))
	if err != nil {
		return "", fmt.Errorf("reading package.json: %w", err)
	}
	var pkg struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &pkg); err != nil {
		return "", fmt.Errorf("parsing package.json: %w", err)
	}
	if pkg.Name == "" {
		return "", fmt.Errorf("package.json has no \"name\" field")
	}
	return pkg.Name, nil
}

// imageTag derives the tag for the per-session image, the same way the
// original implementation hashes the project path plus the entry code:
// two sessions with the same project path and entry code reuse the same
// built image instead of rebuilding. The contents of the project's files
// are not part of the hash, so editing them does not change the tag.
func imageTag(projectPath, code string) string {
	h := sha256.New()
	io.WriteString(h, projectPath)
	io.WriteString(h, "\x00")
	io.WriteString(h, code)
	return "jstsdebug/session:" + hex.EncodeToString(h.Sum(nil))[:32]
}

// ensureImage returns once tag exists locally, building it from
// p.projectPath/code/packageJSON/tsconfigJSON if it does not.
func (p *Provisioner) ensureImage(ctx context.Context, tag, code string, packageJSON, tsconfigJSON map[string]any) error {
	if _, _, err := p.docker.ImageInspectWithRaw(ctx, tag); err == nil {
		return nil
	}

	buildCtx, err := p.buildContext(code, packageJSON, tsconfigJSON)
	if err != nil {
		return &ProvisionError{Stage: "build-context", Err: err}
	}

	resp, err := p.docker.ImageBuild(ctx, buildCtx, build.ImageBuildOptions{
		Tags:       []string{tag},
		Remove:     true,
		Dockerfile: "Dockerfile",
	})
	if err != nil {
		return &ProvisionError{Stage: "image-build", Err: err}
	}
	defer resp.Body.Close()

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return &ProvisionError{Stage: "image-build-read", Err: err}
	}
	return nil
}

// buildContext assembles an in-memory tar stream containing the generated
// Dockerfile, package.json, tsconfig.json, entrypoint.ts, and a copy of
// the host project directory under <package-name>/ — mirroring the
// original implementation's build_or_get_image tar construction, which
// packs the project under its own package.json-derived directory name
// rather than a fixed placeholder.
func (p *Provisioner) buildContext(code string, packageJSONOverride, tsconfigOverride map[string]any) (io.Reader, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	pkgJSON := deepMerge(defaultPackageJSON(), packageJSONOverride)
	pkgBytes, err := marshalJSON(pkgJSON)
	if err != nil {
		return nil, err
	}
	tsconfig := deepMerge(defaultTSConfig(), tsconfigOverride)
	tsconfigBytes, err := marshalJSON(tsconfig)
	if err != nil {
		return nil, err
	}

	if err := addTarFile(tw, "package.json", pkgBytes); err != nil {
		return nil, err
	}
	if err := addTarFile(tw, "tsconfig.json", tsconfigBytes); err != nil {
		return nil, err
	}
	if err := addTarFile(tw, "entrypoint.ts", []byte(code)); err != nil {
		return nil, err
	}
	if err := addTarFile(tw, "Dockerfile", []byte(fmt.Sprintf(dockerfileTemplate, p.cfg.Image, p.packageName, p.packageName))); err != nil {
		return nil, err
	}
	if err := addTarDir(tw, p.packageName, p.projectPath); err != nil {
		return nil, err
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}
	return &buf, nil
}

func addTarFile(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content))}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := tw.Write(content)
	return err
}

// addTarDir walks a host directory and adds its files under
// tarPrefix/<relative path>, rejecting any entry that would escape the
// source tree.
func addTarDir(tw *tar.Writer, tarPrefix, hostDir string) error {
	return filepath.Walk(hostDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(hostDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if strings.HasPrefix(rel, "..") {
			return fmt.Errorf("sandbox: refusing to pack path outside project root: %s", rel)
		}
		tarName := filepath.ToSlash(filepath.Join(tarPrefix, rel))
		if info.IsDir() {
			return tw.WriteHeader(&tar.Header{Name: tarName + "/", Mode: 0o755, Typeflag: tar.TypeDir})
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return addTarFile(tw, tarName, content)
	})
}

// pullImageIfConfigured pulls the base image when PullImages is set; with
// it unset, no pull is attempted.
func (p *Provisioner) pullImageIfConfigured(ctx context.Context) error {
	if !p.cfg.PullImages {
		return nil
	}
	rc, err := p.docker.ImagePull(ctx, p.cfg.Image, image.PullOptions{})
	if err != nil {
		return &ProvisionError{Stage: "image-pull", Err: err}
	}
	defer rc.Close()
	_, err = io.Copy(io.Discard, rc)
	return err
}
